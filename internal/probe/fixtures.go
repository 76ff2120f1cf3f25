package probe

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

// deniedEmail は無効化されたユーザーとして扱われるアカウント。
const deniedEmail = "denied@clinicafisio.com.br"

// randomCPF はUUIDの乱数から11桁の数字列を生成する。
func randomCPF() string {
	id := uuid.New()
	var b strings.Builder
	for i := 0; i < 11; i++ {
		b.WriteByte('0' + id[i]%10)
	}
	return b.String()
}

// uniqueEmail は衝突しないテスト用メールアドレスを生成する。
func uniqueEmail(prefix string) string {
	return prefix + "-" + uuid.NewString()[:8] + "@example.com"
}

// newPatientPayload は新規患者登録用のリクエストボディを生成する。
func newPatientPayload() map[string]string {
	return map[string]string{
		"name":       "Probe Patient " + uuid.NewString(),
		"cpf":        randomCPF(),
		"email":      uniqueEmail("probe"),
		"phone":      "+5511999999999",
		"birth_date": "1990-01-01",
	}
}

// createPatient は患者を登録し、アーカイブのクリーンアップを登録する。
func createPatient(ctx context.Context, c *Case, client *Client, payload map[string]string) (string, error) {
	resp, err := client.Do(ctx, http.MethodPost, "/api/patients", payload)
	if err != nil {
		return "", err
	}
	if err := ExpectStatus(resp, http.StatusCreated); err != nil {
		return "", err
	}
	obj, err := ExpectObject(resp)
	if err != nil {
		return "", err
	}
	id, err := ExpectString(obj, "id")
	if err != nil {
		return "", err
	}

	c.Defer("archive patient "+id, func(ctx context.Context) error {
		resp, err := client.Do(ctx, http.MethodDelete, "/api/patients/"+id, nil)
		if err != nil {
			return err
		}
		return ExpectStatus(resp, http.StatusOK)
	})
	return id, nil
}
