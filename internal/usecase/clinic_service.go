// Package usecase はアプリケーションのユースケースを実装する。
package usecase

import (
	"context"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"clinic-deploy/internal/domain"
)

const (
	defaultAppointmentMinutes = 60
	maxAppointmentMinutes     = 8 * 60
	maxPainIntensity          = 10
	cpfLength                 = 11
	birthDateLayout           = "2006-01-02"
)

// PatientRepository は患者データアクセスのインターフェース。
type PatientRepository interface {
	Create(ctx context.Context, patient *domain.Patient) error
	FindByID(ctx context.Context, id string) (*domain.Patient, error)
	FindActiveByCPF(ctx context.Context, cpf string) (*domain.Patient, error)
	List(ctx context.Context, filter domain.PatientFilter) ([]*domain.Patient, error)
	Update(ctx context.Context, patient *domain.Patient) error
	Archive(ctx context.Context, id string) error
}

// AppointmentRepository は予約データアクセスのインターフェース。
type AppointmentRepository interface {
	Create(ctx context.Context, appointment *domain.Appointment) error
	FindByID(ctx context.Context, id string) (*domain.Appointment, error)
	FindByPatientID(ctx context.Context, patientID string) ([]*domain.Appointment, error)
	Delete(ctx context.Context, id string) error
}

// SessionRepository はセッションと疼痛部位のデータアクセスのインターフェース。
type SessionRepository interface {
	Create(ctx context.Context, session *domain.Session) error
	FindByID(ctx context.Context, id string) (*domain.Session, error)
	FindByPatientID(ctx context.Context, patientID string) ([]*domain.Session, error)
	Delete(ctx context.Context, id string) error
	CreatePainPoint(ctx context.Context, point *domain.PainPoint) error
	FindPainPointsBySessionIDs(ctx context.Context, sessionIDs []string) ([]*domain.PainPoint, error)
}

// ClinicService はクリニックAPI（患者・予約・セッション・LGPDエクスポート）のビジネスロジックを提供する。
type ClinicService struct {
	patients     PatientRepository
	appointments AppointmentRepository
	sessions     SessionRepository
	now          func() time.Time
}

// NewClinicService は新しいClinicServiceを生成する。
func NewClinicService(patients PatientRepository, appointments AppointmentRepository, sessions SessionRepository) *ClinicService {
	return &ClinicService{
		patients:     patients,
		appointments: appointments,
		sessions:     sessions,
		now:          time.Now,
	}
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// validatePatient は患者の登録情報を検証し、前後の空白を取り除く。
func validatePatient(p *domain.Patient) error {
	p.Name = strings.TrimSpace(p.Name)
	p.CPF = strings.TrimSpace(p.CPF)
	p.Email = strings.TrimSpace(p.Email)
	p.Phone = strings.TrimSpace(p.Phone)
	p.BirthDate = strings.TrimSpace(p.BirthDate)

	if p.Name == "" {
		return &domain.ValidationError{Field: "name", Message: "is required"}
	}
	if len(p.CPF) != cpfLength || !isDigits(p.CPF) {
		return &domain.ValidationError{Field: "cpf", Message: "must contain exactly 11 digits"}
	}
	if p.Email == "" {
		return &domain.ValidationError{Field: "email", Message: "is required"}
	}
	if _, err := mail.ParseAddress(p.Email); err != nil {
		return &domain.ValidationError{Field: "email", Message: "is not a valid address"}
	}
	if p.Phone == "" {
		return &domain.ValidationError{Field: "phone", Message: "is required"}
	}
	if p.BirthDate != "" {
		if _, err := time.Parse(birthDateLayout, p.BirthDate); err != nil {
			return &domain.ValidationError{Field: "birth_date", Message: "must be formatted as YYYY-MM-DD"}
		}
	}
	return nil
}

// CreatePatient は新しい患者を登録する。
func (s *ClinicService) CreatePatient(ctx context.Context, patient *domain.Patient) (*domain.Patient, error) {
	if err := validatePatient(patient); err != nil {
		return nil, err
	}

	existing, err := s.patients.FindActiveByCPF(ctx, patient.CPF)
	if err != nil {
		return nil, fmt.Errorf("checking duplicate cpf: %w", err)
	}
	if existing != nil {
		return nil, domain.ErrDuplicateCPF
	}

	patient.ID = ""
	patient.Active = true
	if err := s.patients.Create(ctx, patient); err != nil {
		return nil, fmt.Errorf("saving patient: %w", err)
	}
	return patient, nil
}

// GetPatient は有効な患者を取得する。アーカイブ済みの患者は存在しないものとして扱う。
func (s *ClinicService) GetPatient(ctx context.Context, id string) (*domain.Patient, error) {
	patient, err := s.patients.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("finding patient: %w", err)
	}
	if patient == nil || !patient.Active {
		return nil, domain.ErrPatientNotFound
	}
	return patient, nil
}

// ListPatients は有効な患者を検索する。
func (s *ClinicService) ListPatients(ctx context.Context, filter domain.PatientFilter) ([]*domain.Patient, error) {
	if filter.Page < 0 {
		return nil, &domain.ValidationError{Field: "page", Message: "must not be negative"}
	}
	if filter.Limit < 0 {
		return nil, &domain.ValidationError{Field: "limit", Message: "must not be negative"}
	}
	filter.Search = strings.TrimSpace(filter.Search)

	patients, err := s.patients.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("listing patients: %w", err)
	}
	return patients, nil
}

// UpdatePatient は患者の登録情報を置き換える。
func (s *ClinicService) UpdatePatient(ctx context.Context, id string, input *domain.Patient) (*domain.Patient, error) {
	current, err := s.GetPatient(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := validatePatient(input); err != nil {
		return nil, err
	}

	if input.CPF != current.CPF {
		existing, err := s.patients.FindActiveByCPF(ctx, input.CPF)
		if err != nil {
			return nil, fmt.Errorf("checking duplicate cpf: %w", err)
		}
		if existing != nil && existing.ID != id {
			return nil, domain.ErrDuplicateCPF
		}
	}

	current.Name = input.Name
	current.CPF = input.CPF
	current.Email = input.Email
	current.Phone = input.Phone
	current.BirthDate = input.BirthDate
	if err := s.patients.Update(ctx, current); err != nil {
		return nil, fmt.Errorf("updating patient: %w", err)
	}
	current.UpdatedAt = s.now()
	return current, nil
}

// ArchivePatient は患者をアーカイブする。既にアーカイブ済みの場合も成功として扱う。
func (s *ClinicService) ArchivePatient(ctx context.Context, id string) (*domain.Patient, error) {
	patient, err := s.patients.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("finding patient: %w", err)
	}
	if patient == nil {
		return nil, domain.ErrPatientNotFound
	}
	if !patient.Active {
		return patient, nil
	}

	if err := s.patients.Archive(ctx, id); err != nil {
		return nil, fmt.Errorf("archiving patient: %w", err)
	}
	patient.Active = false
	return patient, nil
}

// CreateAppointment は予約を登録する。同じ患者の既存予約と時間帯が重なる場合はエラーを返す。
func (s *ClinicService) CreateAppointment(ctx context.Context, appointment *domain.Appointment) (*domain.Appointment, error) {
	appointment.PatientID = strings.TrimSpace(appointment.PatientID)
	if appointment.PatientID == "" {
		return nil, &domain.ValidationError{Field: "patient_id", Message: "is required"}
	}
	if appointment.AppointmentDate.IsZero() {
		return nil, &domain.ValidationError{Field: "appointment_date", Message: "is required"}
	}
	if appointment.DurationMinutes == 0 {
		appointment.DurationMinutes = defaultAppointmentMinutes
	}
	if appointment.DurationMinutes < 0 || appointment.DurationMinutes > maxAppointmentMinutes {
		return nil, &domain.ValidationError{Field: "duration_minutes", Message: "must be between 1 and 480"}
	}

	if _, err := s.GetPatient(ctx, appointment.PatientID); err != nil {
		return nil, err
	}

	existing, err := s.appointments.FindByPatientID(ctx, appointment.PatientID)
	if err != nil {
		return nil, fmt.Errorf("finding appointments: %w", err)
	}
	for _, other := range existing {
		if appointment.Overlaps(other) {
			return nil, domain.ErrAppointmentConflict
		}
	}

	if err := s.appointments.Create(ctx, appointment); err != nil {
		return nil, fmt.Errorf("saving appointment: %w", err)
	}
	return appointment, nil
}

// DeleteAppointment は予約を削除する。
func (s *ClinicService) DeleteAppointment(ctx context.Context, id string) error {
	appointment, err := s.appointments.FindByID(ctx, id)
	if err != nil {
		return fmt.Errorf("finding appointment: %w", err)
	}
	if appointment == nil {
		return domain.ErrAppointmentNotFound
	}
	if err := s.appointments.Delete(ctx, id); err != nil {
		return fmt.Errorf("deleting appointment: %w", err)
	}
	return nil
}

// CreateSession は施術セッションを登録する。
func (s *ClinicService) CreateSession(ctx context.Context, session *domain.Session) (*domain.Session, error) {
	session.PatientID = strings.TrimSpace(session.PatientID)
	session.SessionType = strings.TrimSpace(session.SessionType)
	if session.PatientID == "" {
		return nil, &domain.ValidationError{Field: "patient_id", Message: "is required"}
	}
	if session.SessionType == "" {
		return nil, &domain.ValidationError{Field: "session_type", Message: "is required"}
	}
	if session.SessionDate.IsZero() {
		session.SessionDate = s.now().UTC()
	}

	if _, err := s.GetPatient(ctx, session.PatientID); err != nil {
		return nil, err
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("saving session: %w", err)
	}
	return session, nil
}

// DeleteSession はセッションと紐づく疼痛部位を削除する。
func (s *ClinicService) DeleteSession(ctx context.Context, id string) error {
	session, err := s.sessions.FindByID(ctx, id)
	if err != nil {
		return fmt.Errorf("finding session: %w", err)
	}
	if session == nil {
		return domain.ErrSessionNotFound
	}
	if err := s.sessions.Delete(ctx, id); err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}
	return nil
}

// AddPainPoint はセッションに疼痛部位を登録する。
func (s *ClinicService) AddPainPoint(ctx context.Context, sessionID string, point *domain.PainPoint) (*domain.PainPoint, error) {
	point.BodyRegion = strings.TrimSpace(point.BodyRegion)
	if point.BodyRegion == "" {
		return nil, &domain.ValidationError{Field: "body_region", Message: "is required"}
	}
	if point.PainIntensity < 0 || point.PainIntensity > maxPainIntensity {
		return nil, &domain.ValidationError{Field: "pain_intensity", Message: "must be between 0 and 10"}
	}

	session, err := s.sessions.FindByID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("finding session: %w", err)
	}
	if session == nil {
		return nil, domain.ErrSessionNotFound
	}

	point.SessionID = sessionID
	if err := s.sessions.CreatePainPoint(ctx, point); err != nil {
		return nil, fmt.Errorf("saving pain point: %w", err)
	}
	return point, nil
}

// ExportPatientData はLGPDのデータポータビリティ要求に応じて患者の全データを集約する。
// アーカイブ済みの患者もエクスポート対象とする。
func (s *ClinicService) ExportPatientData(ctx context.Context, patientID string) (*domain.PatientExport, error) {
	patientID = strings.TrimSpace(patientID)
	if patientID == "" {
		return nil, &domain.ValidationError{Field: "patient_id", Message: "is required"}
	}

	patient, err := s.patients.FindByID(ctx, patientID)
	if err != nil {
		return nil, fmt.Errorf("finding patient: %w", err)
	}
	if patient == nil {
		return nil, domain.ErrPatientNotFound
	}

	appointments, err := s.appointments.FindByPatientID(ctx, patientID)
	if err != nil {
		return nil, fmt.Errorf("finding appointments: %w", err)
	}
	sessions, err := s.sessions.FindByPatientID(ctx, patientID)
	if err != nil {
		return nil, fmt.Errorf("finding sessions: %w", err)
	}

	sessionIDs := make([]string, len(sessions))
	for i, sess := range sessions {
		sessionIDs[i] = sess.ID
	}
	painPoints, err := s.sessions.FindPainPointsBySessionIDs(ctx, sessionIDs)
	if err != nil {
		return nil, fmt.Errorf("finding pain points: %w", err)
	}

	return &domain.PatientExport{
		Patient:      patient,
		Appointments: appointments,
		Sessions:     sessions,
		PainPoints:   painPoints,
		ExportedAt:   s.now().UTC(),
	}, nil
}
