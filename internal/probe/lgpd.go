package probe

import (
	"bytes"
	"context"
	"net/http"
	"strings"
)

// unknownPatientID は存在しない患者IDとして使う値。
const unknownPatientID = "00000000-0000-0000-0000-000000000000"

// checkExport はエクスポート形式ごとにレスポンスの中身を検証する。
func checkExport(resp *Response, format string) error {
	contentType := resp.Header.Get("Content-Type")
	switch format {
	case "json":
		obj, err := ExpectObject(resp)
		if err != nil {
			return err
		}
		_, hasID := obj["patient_id"]
		_, hasData := obj["data"]
		if !hasID && !hasData {
			return Failf("json export is missing patient_id and data")
		}
	case "csv":
		if !strings.Contains(contentType, "text/csv") &&
			!bytes.HasPrefix(resp.Body, []byte("\ufeff")) &&
			!bytes.Contains(resp.Body, []byte(",")) {
			return Failf("csv export is invalid: content type %q", contentType)
		}
	case "pdf":
		if contentType != "application/pdf" && !bytes.HasPrefix(resp.Body, []byte("%PDF")) {
			return Failf("pdf export is invalid: content type %q", contentType)
		}
	}
	return nil
}

var lgpdExportScenario = Scenario{
	Name:        "lgpd-export",
	Description: "patient data is exported as json, csv and pdf",
	Run: func(ctx context.Context, c *Case) error {
		resp, err := c.Client.Login(ctx, c.Env.Creds.Email, c.Env.Creds.Password)
		if err != nil {
			return err
		}
		if err := ExpectStatus(resp, http.StatusOK); err != nil {
			return err
		}

		payload := newPatientPayload()
		delete(payload, "birth_date")
		patientID, err := createPatient(ctx, c, c.Client, payload)
		if err != nil {
			return err
		}

		for _, format := range []string{"json", "csv", "pdf"} {
			resp, err := c.Client.Do(ctx, http.MethodPost, "/api/lgpd/export", map[string]string{
				"patient_id": patientID,
				"format":     format,
			})
			if err != nil {
				return err
			}
			if err := ExpectStatus(resp, http.StatusOK); err != nil {
				return err
			}
			if err := checkExport(resp, format); err != nil {
				return err
			}
		}

		resp, err = c.Client.Do(ctx, http.MethodPost, "/api/lgpd/export", map[string]string{"format": "json"})
		if err != nil {
			return err
		}
		if err := ExpectFailure(resp); err != nil {
			return err
		}

		resp, err = c.Client.Do(ctx, http.MethodPost, "/api/lgpd/export", map[string]string{
			"patient_id": unknownPatientID,
			"format":     "json",
		})
		if err != nil {
			return err
		}
		if resp.StatusCode != http.StatusOK {
			return ExpectFailure(resp)
		}
		// 200の場合は患者データを含まないこと
		var body map[string]any
		if err := resp.JSON(&body); err != nil {
			return &AssertionError{Message: err.Error()}
		}
		if _, ok := body["patient_id"]; ok {
			return Failf("export for unknown patient returned patient data")
		}
		return nil
	},
}
