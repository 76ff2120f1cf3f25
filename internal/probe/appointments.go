package probe

import (
	"context"
	"net/http"
	"time"
)

var appointmentsCreateScenario = Scenario{
	Name:        "appointments-create",
	Description: "appointments are created, conflicts and missing fields are rejected",
	Run: func(ctx context.Context, c *Case) error {
		resp, err := c.Client.Login(ctx, c.Env.Creds.Email, c.Env.Creds.Password)
		if err != nil {
			return err
		}
		if err := ExpectStatus(resp, http.StatusOK); err != nil {
			return err
		}
		c.Client.UseAuth(AuthBearer)

		patientID, err := createPatient(ctx, c, c.Client, newPatientPayload())
		if err != nil {
			return err
		}

		tomorrow := time.Now().UTC().Add(24 * time.Hour).Truncate(time.Second).Format(time.RFC3339)
		payload := map[string]any{
			"patient_id":       patientID,
			"appointment_date": tomorrow,
			"duration_minutes": 30,
			"notes":            "Initial appointment via probe",
		}
		resp, err = c.Client.Do(ctx, http.MethodPost, "/api/appointments", payload)
		if err != nil {
			return err
		}
		if err := ExpectStatus(resp, http.StatusCreated); err != nil {
			return err
		}
		obj, err := ExpectObject(resp)
		if err != nil {
			return err
		}
		appointmentID, err := ExpectString(obj, "id")
		if err != nil {
			return err
		}
		c.Defer("delete appointment "+appointmentID, func(ctx context.Context) error {
			resp, err := c.Client.Do(ctx, http.MethodDelete, "/api/appointments/"+appointmentID, nil)
			if err != nil {
				return err
			}
			return ExpectStatus(resp, http.StatusOK, http.StatusNoContent)
		})

		payload["notes"] = "Conflicting appointment"
		resp, err = c.Client.Do(ctx, http.MethodPost, "/api/appointments", payload)
		if err != nil {
			return err
		}
		if err := ExpectStatus(resp, http.StatusBadRequest, http.StatusConflict); err != nil {
			return err
		}

		dayAfter := time.Now().UTC().Add(48 * time.Hour).Truncate(time.Second).Format(time.RFC3339)
		resp, err = c.Client.Do(ctx, http.MethodPost, "/api/appointments", map[string]any{
			"appointment_date": dayAfter,
		})
		if err != nil {
			return err
		}
		if err := ExpectStatus(resp, http.StatusBadRequest); err != nil {
			return err
		}

		resp, err = c.Client.Do(ctx, http.MethodPost, "/api/appointments", map[string]any{
			"patient_id": patientID,
		})
		if err != nil {
			return err
		}
		return ExpectStatus(resp, http.StatusBadRequest)
	},
}

var painPointScenario = Scenario{
	Name:        "body-mapping-pain-point",
	Description: "pain points are registered on a session with intensity 0-10",
	Run: func(ctx context.Context, c *Case) error {
		c.Client.UseAuth(AuthBasic)

		patientID, err := createPatient(ctx, c, c.Client, newPatientPayload())
		if err != nil {
			return err
		}

		resp, err := c.Client.Do(ctx, http.MethodPost, "/api/sessions", map[string]any{
			"patient_id":   patientID,
			"session_type": "avaliacao",
			"session_date": "2025-09-14T10:00:00Z",
		})
		if err != nil {
			return err
		}
		if err := ExpectStatus(resp, http.StatusCreated); err != nil {
			return err
		}
		obj, err := ExpectObject(resp)
		if err != nil {
			return err
		}
		sessionID, err := ExpectString(obj, "id")
		if err != nil {
			return err
		}
		c.Defer("delete session "+sessionID, func(ctx context.Context) error {
			resp, err := c.Client.Do(ctx, http.MethodDelete, "/api/sessions/"+sessionID, nil)
			if err != nil {
				return err
			}
			return ExpectStatus(resp, http.StatusOK, http.StatusNoContent)
		})

		path := "/api/sessions/" + sessionID + "/pain-points"
		resp, err = c.Client.Do(ctx, http.MethodPost, path, map[string]any{
			"body_region":    "Lower Back",
			"pain_intensity": 7,
			"coordinates":    map[string]int{"x": 100, "y": 200},
			"notes":          "Sharp pain after exercise",
		})
		if err != nil {
			return err
		}
		if err := ExpectStatus(resp, http.StatusCreated); err != nil {
			return err
		}
		obj, err = ExpectObject(resp)
		if err != nil {
			return err
		}
		if err := ExpectEqual(obj, "body_region", "Lower Back"); err != nil {
			return err
		}
		if err := ExpectEqual(obj, "pain_intensity", 7); err != nil {
			return err
		}

		invalid := []map[string]any{
			{"body_region": "Upper Back", "pain_intensity": -1},
			{"body_region": "Neck", "pain_intensity": 11},
			{"pain_intensity": 5},
			{"body_region": "Left Knee"},
		}
		for _, body := range invalid {
			resp, err := c.Client.Do(ctx, http.MethodPost, path, body)
			if err != nil {
				return err
			}
			if err := ExpectFailure(resp); err != nil {
				return err
			}
		}
		return nil
	},
}
