package probe

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// ErrUnknownScenario は登録されていないシナリオ名が指定された場合のエラー。
var ErrUnknownScenario = errors.New("unknown scenario")

// ErrScenarioPanicked はシナリオ本体がpanicした場合のエラー。
var ErrScenarioPanicked = errors.New("scenario panicked")

// AssertionError は期待したレスポンスが得られなかったことを表す。
type AssertionError struct {
	Message string
}

func (e *AssertionError) Error() string {
	return "assertion failed: " + e.Message
}

// Failf はAssertionErrorを生成する。
func Failf(format string, args ...any) error {
	return &AssertionError{Message: fmt.Sprintf(format, args...)}
}

// IsAssertion はエラーがアサーション失敗かどうかを返す。
func IsAssertion(err error) bool {
	var aerr *AssertionError
	return errors.As(err, &aerr)
}

func bodySnippet(resp *Response) string {
	const maxLen = 200
	s := strings.TrimSpace(string(resp.Body))
	if len(s) > maxLen {
		return s[:maxLen] + "..."
	}
	return s
}

// ExpectStatus はステータスコードがwantのいずれかであることを検証する。
func ExpectStatus(resp *Response, want ...int) error {
	if slices.Contains(want, resp.StatusCode) {
		return nil
	}
	return Failf("%s %s: want status %v, got %d: %s",
		resp.Method, resp.Path, want, resp.StatusCode, bodySnippet(resp))
}

// ExpectClientError はステータスコードが4xxであることを検証する。
func ExpectClientError(resp *Response) error {
	if resp.StatusCode >= 400 && resp.StatusCode < 500 {
		return nil
	}
	return Failf("%s %s: want a client error status, got %d: %s",
		resp.Method, resp.Path, resp.StatusCode, bodySnippet(resp))
}

// ExpectFailure はステータスコードが400以上であることを検証する。
func ExpectFailure(resp *Response) error {
	if resp.StatusCode >= 400 {
		return nil
	}
	return Failf("%s %s: want an error status, got %d: %s",
		resp.Method, resp.Path, resp.StatusCode, bodySnippet(resp))
}

// ExpectObject はボディがJSONオブジェクトであることを検証して返す。
func ExpectObject(resp *Response) (map[string]any, error) {
	obj, err := resp.Object()
	if err != nil {
		return nil, &AssertionError{Message: err.Error()}
	}
	return obj, nil
}

// ExpectList はボディがJSONオブジェクトの配列であることを検証して返す。
func ExpectList(resp *Response) ([]map[string]any, error) {
	var list []map[string]any
	if err := resp.JSON(&list); err != nil {
		return nil, &AssertionError{Message: err.Error()}
	}
	if list == nil {
		return nil, Failf("%s %s: response is not a json array", resp.Method, resp.Path)
	}
	return list, nil
}

// ExpectString はオブジェクトのkeyが空でない文字列であることを検証して返す。
func ExpectString(obj map[string]any, key string) (string, error) {
	v, ok := obj[key]
	if !ok {
		return "", Failf("response is missing %q", key)
	}
	s, ok := v.(string)
	if !ok || s == "" {
		return "", Failf("%q should be a non-empty string, got %v", key, v)
	}
	return s, nil
}

// ExpectEqual はオブジェクトのkeyの値がwantと一致することを検証する。
func ExpectEqual(obj map[string]any, key string, want any) error {
	got, ok := obj[key]
	if !ok {
		return Failf("response is missing %q", key)
	}
	// JSONの数値はfloat64として読み込まれる
	if n, ok := want.(int); ok {
		want = float64(n)
	}
	if got != want {
		return Failf("%q: want %v, got %v", key, want, got)
	}
	return nil
}

// ExpectKeys はオブジェクトが全てのkeyを持つことを検証する。
func ExpectKeys(obj map[string]any, keys ...string) error {
	var missing []string
	for _, k := range keys {
		if _, ok := obj[k]; !ok {
			missing = append(missing, k)
		}
	}
	if len(missing) > 0 {
		return Failf("response is missing %s", strings.Join(missing, ", "))
	}
	return nil
}
