package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"clinic-deploy/internal/domain"
	"clinic-deploy/internal/export"
	"clinic-deploy/internal/middleware"
	"clinic-deploy/internal/usecase"
	"clinic-deploy/pkg/httputil"
)

// ClinicHandler は患者・予約・セッション・LGPDエクスポートAPIのハンドラを提供する。
type ClinicHandler struct {
	service *usecase.ClinicService
}

// NewClinicHandler は新しいClinicHandlerを生成する。
func NewClinicHandler(service *usecase.ClinicService) *ClinicHandler {
	return &ClinicHandler{service: service}
}

// PatientRequest は患者の登録・更新リクエストの形式。
type PatientRequest struct {
	Name      string `json:"name"`
	CPF       string `json:"cpf"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	BirthDate string `json:"birth_date"`
}

// PatientResponse は患者のレスポンス形式。
type PatientResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	CPF       string `json:"cpf"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	BirthDate string `json:"birth_date,omitempty"`
	Active    bool   `json:"active"`
	Archived  bool   `json:"archived"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

// AppointmentRequest は予約登録リクエストの形式。
type AppointmentRequest struct {
	PatientID       string `json:"patient_id"`
	AppointmentDate string `json:"appointment_date"`
	DurationMinutes int    `json:"duration_minutes"`
	Notes           string `json:"notes"`
}

// AppointmentResponse は予約のレスポンス形式。
type AppointmentResponse struct {
	ID              string `json:"id"`
	PatientID       string `json:"patient_id"`
	AppointmentDate string `json:"appointment_date"`
	DurationMinutes int    `json:"duration_minutes"`
	Notes           string `json:"notes,omitempty"`
	CreatedAt       string `json:"created_at"`
}

// SessionRequest はセッション登録リクエストの形式。
type SessionRequest struct {
	PatientID   string `json:"patient_id"`
	SessionType string `json:"session_type"`
	SessionDate string `json:"session_date"`
}

// SessionResponse はセッションのレスポンス形式。
type SessionResponse struct {
	ID          string `json:"id"`
	PatientID   string `json:"patient_id"`
	SessionType string `json:"session_type"`
	SessionDate string `json:"session_date"`
	CreatedAt   string `json:"created_at"`
}

// PainPointRequest は疼痛部位登録リクエストの形式。
type PainPointRequest struct {
	BodyRegion    string              `json:"body_region"`
	PainIntensity *int                `json:"pain_intensity"`
	Coordinates   *domain.Coordinates `json:"coordinates"`
	Notes         string              `json:"notes"`
}

// PainPointResponse は疼痛部位のレスポンス形式。
type PainPointResponse struct {
	ID            string              `json:"id"`
	SessionID     string              `json:"session_id"`
	BodyRegion    string              `json:"body_region"`
	PainIntensity int                 `json:"pain_intensity"`
	Coordinates   *domain.Coordinates `json:"coordinates,omitempty"`
	Notes         string              `json:"notes,omitempty"`
	CreatedAt     string              `json:"created_at"`
}

// ExportRequest はLGPDエクスポートリクエストの形式。
type ExportRequest struct {
	PatientID string `json:"patient_id"`
	Format    string `json:"format"`
}

func toPatientResponse(p *domain.Patient) PatientResponse {
	return PatientResponse{
		ID:        p.ID,
		Name:      p.Name,
		CPF:       p.CPF,
		Email:     p.Email,
		Phone:     p.Phone,
		BirthDate: p.BirthDate,
		Active:    p.Active,
		Archived:  !p.Active,
		CreatedAt: p.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt: p.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func (req PatientRequest) toDomain() *domain.Patient {
	return &domain.Patient{
		Name:      req.Name,
		CPF:       req.CPF,
		Email:     req.Email,
		Phone:     req.Phone,
		BirthDate: req.BirthDate,
	}
}

// parseTimestamp はRFC3339形式の日時を解析する。空文字列はゼロ値を返す。
func parseTimestamp(field, value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, &domain.ValidationError{Field: field, Message: "must be an RFC3339 timestamp"}
	}
	return t, nil
}

// parseQueryInt はクエリパラメータを整数として解析する。未指定の場合は0を返す。
func parseQueryInt(r *http.Request, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, &domain.ValidationError{Field: name, Message: "must be an integer"}
	}
	return v, nil
}

// writeError はドメインエラーをHTTPステータスに変換して返し、監査ログを出力する。
func writeError(w http.ResponseWriter, r *http.Request, operation, resourceID string, err error) {
	middleware.WriteAuditLog(r.Context(), operation, resourceID, middleware.ResultFailed)

	var verr *domain.ValidationError
	switch {
	case errors.As(err, &verr):
		httputil.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", verr.Error())
	case errors.Is(err, domain.ErrPatientNotFound):
		httputil.Error(w, http.StatusNotFound, "PATIENT_NOT_FOUND", "patient not found")
	case errors.Is(err, domain.ErrAppointmentNotFound):
		httputil.Error(w, http.StatusNotFound, "APPOINTMENT_NOT_FOUND", "appointment not found")
	case errors.Is(err, domain.ErrSessionNotFound):
		httputil.Error(w, http.StatusNotFound, "SESSION_NOT_FOUND", "session not found")
	case errors.Is(err, domain.ErrDuplicateCPF):
		httputil.Error(w, http.StatusConflict, "DUPLICATE_CPF", "patient with this CPF already exists")
	case errors.Is(err, domain.ErrAppointmentConflict):
		httputil.Error(w, http.StatusConflict, "APPOINTMENT_CONFLICT", "appointment conflicts with an existing one")
	case errors.Is(err, domain.ErrUnsupportedExportFormat):
		httputil.Error(w, http.StatusBadRequest, "UNSUPPORTED_FORMAT", "format must be one of json, csv, pdf")
	default:
		slog.ErrorContext(r.Context(), "request failed",
			"operation", operation,
			"resource_id", resourceID,
			"error", err,
		)
		httputil.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
	}
}

// ListPatients は有効な患者を検索する。
func (h *ClinicHandler) ListPatients(w http.ResponseWriter, r *http.Request) {
	page, err := parseQueryInt(r, "page")
	if err != nil {
		writeError(w, r, "LIST_PATIENTS", "", err)
		return
	}
	limit, err := parseQueryInt(r, "limit")
	if err != nil {
		writeError(w, r, "LIST_PATIENTS", "", err)
		return
	}

	patients, err := h.service.ListPatients(r.Context(), domain.PatientFilter{
		Search: r.URL.Query().Get("search"),
		Page:   page,
		Limit:  limit,
	})
	if err != nil {
		writeError(w, r, "LIST_PATIENTS", "", err)
		return
	}

	resp := make([]PatientResponse, 0, len(patients))
	for _, p := range patients {
		resp = append(resp, toPatientResponse(p))
	}
	httputil.JSON(w, http.StatusOK, resp)
}

// CreatePatient は患者を登録する。
func (h *ClinicHandler) CreatePatient(w http.ResponseWriter, r *http.Request) {
	var req PatientRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}

	patient, err := h.service.CreatePatient(r.Context(), req.toDomain())
	if err != nil {
		writeError(w, r, "CREATE_PATIENT", "", err)
		return
	}

	middleware.WriteAuditLog(r.Context(), "CREATE_PATIENT", patient.ID, middleware.ResultSuccess)
	httputil.JSON(w, http.StatusCreated, toPatientResponse(patient))
}

// GetPatient は患者の詳細を取得する。
func (h *ClinicHandler) GetPatient(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	patient, err := h.service.GetPatient(r.Context(), id)
	if err != nil {
		writeError(w, r, "GET_PATIENT", id, err)
		return
	}

	middleware.WriteAuditLog(r.Context(), "GET_PATIENT", id, middleware.ResultSuccess)
	httputil.JSON(w, http.StatusOK, toPatientResponse(patient))
}

// UpdatePatient は患者の登録情報を更新する。
func (h *ClinicHandler) UpdatePatient(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req PatientRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}

	patient, err := h.service.UpdatePatient(r.Context(), id, req.toDomain())
	if err != nil {
		writeError(w, r, "UPDATE_PATIENT", id, err)
		return
	}

	middleware.WriteAuditLog(r.Context(), "UPDATE_PATIENT", id, middleware.ResultSuccess)
	httputil.JSON(w, http.StatusOK, toPatientResponse(patient))
}

// ArchivePatient は患者をアーカイブ（論理削除）する。
func (h *ClinicHandler) ArchivePatient(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	patient, err := h.service.ArchivePatient(r.Context(), id)
	if err != nil {
		writeError(w, r, "ARCHIVE_PATIENT", id, err)
		return
	}

	middleware.WriteAuditLog(r.Context(), "ARCHIVE_PATIENT", id, middleware.ResultSuccess)
	httputil.JSON(w, http.StatusOK, toPatientResponse(patient))
}

// CreateAppointment は予約を登録する。
func (h *ClinicHandler) CreateAppointment(w http.ResponseWriter, r *http.Request) {
	var req AppointmentRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}
	date, err := parseTimestamp("appointment_date", req.AppointmentDate)
	if err != nil {
		writeError(w, r, "CREATE_APPOINTMENT", req.PatientID, err)
		return
	}

	appointment, err := h.service.CreateAppointment(r.Context(), &domain.Appointment{
		PatientID:       req.PatientID,
		AppointmentDate: date,
		DurationMinutes: req.DurationMinutes,
		Notes:           req.Notes,
	})
	if err != nil {
		writeError(w, r, "CREATE_APPOINTMENT", req.PatientID, err)
		return
	}

	middleware.WriteAuditLog(r.Context(), "CREATE_APPOINTMENT", appointment.ID, middleware.ResultSuccess)
	httputil.JSON(w, http.StatusCreated, AppointmentResponse{
		ID:              appointment.ID,
		PatientID:       appointment.PatientID,
		AppointmentDate: appointment.AppointmentDate.UTC().Format(time.RFC3339),
		DurationMinutes: appointment.DurationMinutes,
		Notes:           appointment.Notes,
		CreatedAt:       appointment.CreatedAt.UTC().Format(time.RFC3339),
	})
}

// DeleteAppointment は予約を削除する。
func (h *ClinicHandler) DeleteAppointment(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.service.DeleteAppointment(r.Context(), id); err != nil {
		writeError(w, r, "DELETE_APPOINTMENT", id, err)
		return
	}

	middleware.WriteAuditLog(r.Context(), "DELETE_APPOINTMENT", id, middleware.ResultSuccess)
	httputil.JSON(w, http.StatusOK, map[string]string{"id": id, "status": "deleted"})
}

// CreateSession は施術セッションを登録する。
func (h *ClinicHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	var req SessionRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}
	date, err := parseTimestamp("session_date", req.SessionDate)
	if err != nil {
		writeError(w, r, "CREATE_SESSION", req.PatientID, err)
		return
	}

	session, err := h.service.CreateSession(r.Context(), &domain.Session{
		PatientID:   req.PatientID,
		SessionType: req.SessionType,
		SessionDate: date,
	})
	if err != nil {
		writeError(w, r, "CREATE_SESSION", req.PatientID, err)
		return
	}

	middleware.WriteAuditLog(r.Context(), "CREATE_SESSION", session.ID, middleware.ResultSuccess)
	httputil.JSON(w, http.StatusCreated, SessionResponse{
		ID:          session.ID,
		PatientID:   session.PatientID,
		SessionType: session.SessionType,
		SessionDate: session.SessionDate.UTC().Format(time.RFC3339),
		CreatedAt:   session.CreatedAt.UTC().Format(time.RFC3339),
	})
}

// DeleteSession はセッションを削除する。
func (h *ClinicHandler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.service.DeleteSession(r.Context(), id); err != nil {
		writeError(w, r, "DELETE_SESSION", id, err)
		return
	}

	middleware.WriteAuditLog(r.Context(), "DELETE_SESSION", id, middleware.ResultSuccess)
	httputil.JSON(w, http.StatusOK, map[string]string{"id": id, "status": "deleted"})
}

// CreatePainPoint はセッションに疼痛部位を登録する。
func (h *ClinicHandler) CreatePainPoint(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "id")

	var req PainPointRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}
	if req.PainIntensity == nil {
		writeError(w, r, "CREATE_PAIN_POINT", sessionID,
			&domain.ValidationError{Field: "pain_intensity", Message: "is required"})
		return
	}

	point, err := h.service.AddPainPoint(r.Context(), sessionID, &domain.PainPoint{
		BodyRegion:    req.BodyRegion,
		PainIntensity: *req.PainIntensity,
		Coordinates:   req.Coordinates,
		Notes:         req.Notes,
	})
	if err != nil {
		writeError(w, r, "CREATE_PAIN_POINT", sessionID, err)
		return
	}

	middleware.WriteAuditLog(r.Context(), "CREATE_PAIN_POINT", point.ID, middleware.ResultSuccess)
	httputil.JSON(w, http.StatusCreated, PainPointResponse{
		ID:            point.ID,
		SessionID:     point.SessionID,
		BodyRegion:    point.BodyRegion,
		PainIntensity: point.PainIntensity,
		Coordinates:   point.Coordinates,
		Notes:         point.Notes,
		CreatedAt:     point.CreatedAt.UTC().Format(time.RFC3339),
	})
}

// ExportPatientData はLGPDのデータポータビリティ要求に応じて患者データを出力する。
func (h *ClinicHandler) ExportPatientData(w http.ResponseWriter, r *http.Request) {
	var req ExportRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}
	format, err := domain.ParseExportFormat(req.Format)
	if err != nil {
		writeError(w, r, "LGPD_EXPORT", req.PatientID, err)
		return
	}

	data, err := h.service.ExportPatientData(r.Context(), req.PatientID)
	if err != nil {
		writeError(w, r, "LGPD_EXPORT", req.PatientID, err)
		return
	}

	switch format {
	case domain.ExportFormatCSV:
		body, err := export.CSV(data)
		if err != nil {
			writeError(w, r, "LGPD_EXPORT", req.PatientID, err)
			return
		}
		w.Header().Set("Content-Disposition", `attachment; filename="patient-`+data.Patient.ID+`.csv"`)
		httputil.Raw(w, http.StatusOK, "text/csv; charset=utf-8", body)
	case domain.ExportFormatPDF:
		body, err := export.PDF(data)
		if err != nil {
			writeError(w, r, "LGPD_EXPORT", req.PatientID, err)
			return
		}
		w.Header().Set("Content-Disposition", `attachment; filename="patient-`+data.Patient.ID+`.pdf"`)
		httputil.Raw(w, http.StatusOK, "application/pdf", body)
	default:
		httputil.JSON(w, http.StatusOK, export.NewDocument(data))
	}
	middleware.WriteAuditLog(r.Context(), "LGPD_EXPORT", req.PatientID, middleware.ResultSuccess)
}
