package probe

import (
	"context"
	"fmt"
	"net/http"
	"strings"
)

var patientFields = []string{"name", "cpf", "email", "phone"}

// containsTerm はオブジェクトのいずれかの値に語が含まれるかを返す（大文字小文字を区別しない）。
func containsTerm(obj map[string]any, term string) bool {
	term = strings.ToLower(term)
	for _, v := range obj {
		if strings.Contains(strings.ToLower(fmt.Sprint(v)), term) {
			return true
		}
	}
	return false
}

// listPatients は患者一覧を取得し、JSON配列であることを検証する。
func listPatients(ctx context.Context, client *Client, query string) ([]map[string]any, error) {
	resp, err := client.Do(ctx, http.MethodGet, "/api/patients"+query, nil)
	if err != nil {
		return nil, err
	}
	if err := ExpectStatus(resp, http.StatusOK); err != nil {
		return nil, err
	}
	if ct := resp.Header.Get("Content-Type"); !strings.Contains(ct, "application/json") {
		return nil, Failf("GET /api/patients%s: want json content type, got %q", query, ct)
	}
	return ExpectList(resp)
}

var patientsListScenario = Scenario{
	Name:        "patients-list",
	Description: "patient list supports search and pagination",
	Run: func(ctx context.Context, c *Case) error {
		resp, err := c.Client.Login(ctx, c.Env.Creds.Email, c.Env.Creds.Password)
		if err != nil {
			return err
		}
		if err := ExpectStatus(resp, http.StatusOK); err != nil {
			return err
		}
		c.Client.UseAuth(AuthBearer)

		all, err := listPatients(ctx, c.Client, "")
		if err != nil {
			return err
		}
		for _, p := range all {
			if err := ExpectKeys(p, patientFields...); err != nil {
				return err
			}
		}

		filtered, err := listPatients(ctx, c.Client, "?search=admin")
		if err != nil {
			return err
		}
		for _, p := range filtered {
			if !containsTerm(p, "admin") {
				return Failf("search=admin returned a patient without a match: %v", p["id"])
			}
		}

		paged, err := listPatients(ctx, c.Client, "?page=1&limit=2")
		if err != nil {
			return err
		}
		if len(paged) > 2 {
			return Failf("limit=2 returned %d patients", len(paged))
		}

		resp, err = c.Client.Do(ctx, http.MethodGet, "/api/patients?page=-1&limit=-5", nil)
		if err != nil {
			return err
		}
		if err := ExpectStatus(resp, http.StatusOK, http.StatusBadRequest); err != nil {
			return err
		}
		if resp.StatusCode == http.StatusOK {
			if _, err := ExpectList(resp); err != nil {
				return err
			}
		}

		combined, err := listPatients(ctx, c.Client, "?search=admin&page=1&limit=1")
		if err != nil {
			return err
		}
		if len(combined) > 1 {
			return Failf("limit=1 returned %d patients", len(combined))
		}
		if len(combined) == 1 && !containsTerm(combined[0], "admin") {
			return Failf("search=admin returned a patient without a match: %v", combined[0]["id"])
		}
		return nil
	},
}

var patientsCreateScenario = Scenario{
	Name:        "patients-create",
	Description: "patient creation validates CPF and rejects duplicates",
	Run: func(ctx context.Context, c *Case) error {
		c.Client.UseAuth(AuthBasic)

		payload := newPatientPayload()
		if _, err := createPatient(ctx, c, c.Client, payload); err != nil {
			return err
		}

		invalid := newPatientPayload()
		invalid["cpf"] = "123"
		resp, err := c.Client.Do(ctx, http.MethodPost, "/api/patients", invalid)
		if err != nil {
			return err
		}
		if err := ExpectFailure(resp); err != nil {
			return err
		}

		duplicate := newPatientPayload()
		duplicate["cpf"] = payload["cpf"]
		resp, err = c.Client.Do(ctx, http.MethodPost, "/api/patients", duplicate)
		if err != nil {
			return err
		}
		return ExpectFailure(resp)
	},
}

var patientsGetScenario = Scenario{
	Name:        "patients-get",
	Description: "patient details match what was created",
	Run: func(ctx context.Context, c *Case) error {
		c.Client.UseAuth(AuthBasic)

		payload := newPatientPayload()
		id, err := createPatient(ctx, c, c.Client, payload)
		if err != nil {
			return err
		}

		resp, err := c.Client.Do(ctx, http.MethodGet, "/api/patients/"+id, nil)
		if err != nil {
			return err
		}
		if err := ExpectStatus(resp, http.StatusOK); err != nil {
			return err
		}
		obj, err := ExpectObject(resp)
		if err != nil {
			return err
		}
		if err := ExpectKeys(obj, append([]string{"id"}, patientFields...)...); err != nil {
			return err
		}
		if err := ExpectEqual(obj, "id", id); err != nil {
			return err
		}
		for _, field := range patientFields {
			if err := ExpectEqual(obj, field, payload[field]); err != nil {
				return err
			}
		}
		return nil
	},
}

var patientsUpdateScenario = Scenario{
	Name:        "patients-update",
	Description: "patient update replaces fields and rejects invalid data",
	Run: func(ctx context.Context, c *Case) error {
		c.Client.UseAuth(AuthBasic)

		payload := newPatientPayload()
		id, err := createPatient(ctx, c, c.Client, payload)
		if err != nil {
			return err
		}
		path := "/api/patients/" + id

		update := map[string]string{
			"name":       "Updated Patient Name",
			"cpf":        payload["cpf"],
			"email":      uniqueEmail("updated"),
			"phone":      "+5511888888888",
			"birth_date": payload["birth_date"],
		}
		resp, err := c.Client.Do(ctx, http.MethodPut, path, update)
		if err != nil {
			return err
		}
		if err := ExpectStatus(resp, http.StatusOK); err != nil {
			return err
		}
		obj, err := ExpectObject(resp)
		if err != nil {
			return err
		}
		for field, want := range update {
			if err := ExpectEqual(obj, field, want); err != nil {
				return err
			}
		}

		missingName := map[string]string{
			"cpf":   payload["cpf"],
			"email": uniqueEmail("invalid"),
			"phone": "+5511777777777",
		}
		resp, err = c.Client.Do(ctx, http.MethodPut, path, missingName)
		if err != nil {
			return err
		}
		if err := ExpectClientError(resp); err != nil {
			return err
		}

		invalidCPF := map[string]string{
			"name":  "Invalid CPF Patient",
			"cpf":   "invalidcpf",
			"email": uniqueEmail("invalidcpf"),
			"phone": "+5511666666666",
		}
		resp, err = c.Client.Do(ctx, http.MethodPut, path, invalidCPF)
		if err != nil {
			return err
		}
		return ExpectClientError(resp)
	},
}

var patientsArchiveScenario = Scenario{
	Name:        "patients-archive",
	Description: "archived patients are hidden or flagged inactive",
	Run: func(ctx context.Context, c *Case) error {
		resp, err := c.Client.Login(ctx, c.Env.Creds.Email, c.Env.Creds.Password)
		if err != nil {
			return err
		}
		if err := ExpectStatus(resp, http.StatusOK); err != nil {
			return err
		}

		// 2回目のDELETEは冪等であることをクリーンアップで確認する
		id, err := createPatient(ctx, c, c.Client, newPatientPayload())
		if err != nil {
			return err
		}

		resp, err = c.Client.Do(ctx, http.MethodDelete, "/api/patients/"+id, nil)
		if err != nil {
			return err
		}
		if err := ExpectStatus(resp, http.StatusOK); err != nil {
			return err
		}

		resp, err = c.Client.Do(ctx, http.MethodGet, "/api/patients/"+id, nil)
		if err != nil {
			return err
		}
		switch resp.StatusCode {
		case http.StatusNotFound:
			return nil
		case http.StatusOK:
			obj, err := ExpectObject(resp)
			if err != nil {
				return err
			}
			active, _ := obj["active"].(bool)
			archived, _ := obj["archived"].(bool)
			if _, ok := obj["active"]; !ok {
				active = true
			}
			if active && !archived {
				return Failf("patient %s is still active after archive", id)
			}
			return nil
		default:
			return ExpectStatus(resp, http.StatusNotFound, http.StatusOK)
		}
	},
}
