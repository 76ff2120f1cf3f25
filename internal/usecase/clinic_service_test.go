package usecase

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"clinic-deploy/internal/domain"
)

// mockPatientRepository はテスト用のモックリポジトリ。
type mockPatientRepository struct {
	patients  map[string]*domain.Patient
	nextID    int
	findErr   error
	createErr error
	archived  []string
}

func newMockPatientRepository() *mockPatientRepository {
	return &mockPatientRepository{patients: make(map[string]*domain.Patient)}
}

func (m *mockPatientRepository) Create(ctx context.Context, patient *domain.Patient) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.nextID++
	patient.ID = fmt.Sprintf("patient-%d", m.nextID)
	patient.CreatedAt = time.Now()
	copied := *patient
	m.patients[patient.ID] = &copied
	return nil
}

func (m *mockPatientRepository) FindByID(ctx context.Context, id string) (*domain.Patient, error) {
	if m.findErr != nil {
		return nil, m.findErr
	}
	p, ok := m.patients[id]
	if !ok {
		return nil, nil
	}
	copied := *p
	return &copied, nil
}

func (m *mockPatientRepository) FindActiveByCPF(ctx context.Context, cpf string) (*domain.Patient, error) {
	for _, p := range m.patients {
		if p.CPF == cpf && p.Active {
			copied := *p
			return &copied, nil
		}
	}
	return nil, nil
}

func (m *mockPatientRepository) List(ctx context.Context, filter domain.PatientFilter) ([]*domain.Patient, error) {
	var result []*domain.Patient
	for _, p := range m.patients {
		if p.Active {
			result = append(result, p)
		}
	}
	return result, nil
}

func (m *mockPatientRepository) Update(ctx context.Context, patient *domain.Patient) error {
	copied := *patient
	m.patients[patient.ID] = &copied
	return nil
}

func (m *mockPatientRepository) Archive(ctx context.Context, id string) error {
	m.patients[id].Active = false
	m.archived = append(m.archived, id)
	return nil
}

// mockAppointmentRepository はテスト用のモックリポジトリ。
type mockAppointmentRepository struct {
	appointments map[string]*domain.Appointment
	nextID       int
	deleted      []string
}

func newMockAppointmentRepository() *mockAppointmentRepository {
	return &mockAppointmentRepository{appointments: make(map[string]*domain.Appointment)}
}

func (m *mockAppointmentRepository) Create(ctx context.Context, appointment *domain.Appointment) error {
	m.nextID++
	appointment.ID = fmt.Sprintf("appointment-%d", m.nextID)
	m.appointments[appointment.ID] = appointment
	return nil
}

func (m *mockAppointmentRepository) FindByID(ctx context.Context, id string) (*domain.Appointment, error) {
	return m.appointments[id], nil
}

func (m *mockAppointmentRepository) FindByPatientID(ctx context.Context, patientID string) ([]*domain.Appointment, error) {
	var result []*domain.Appointment
	for _, a := range m.appointments {
		if a.PatientID == patientID {
			result = append(result, a)
		}
	}
	return result, nil
}

func (m *mockAppointmentRepository) Delete(ctx context.Context, id string) error {
	delete(m.appointments, id)
	m.deleted = append(m.deleted, id)
	return nil
}

// mockSessionRepository はテスト用のモックリポジトリ。
type mockSessionRepository struct {
	sessions   map[string]*domain.Session
	painPoints []*domain.PainPoint
	nextID     int
}

func newMockSessionRepository() *mockSessionRepository {
	return &mockSessionRepository{sessions: make(map[string]*domain.Session)}
}

func (m *mockSessionRepository) Create(ctx context.Context, session *domain.Session) error {
	m.nextID++
	session.ID = fmt.Sprintf("session-%d", m.nextID)
	m.sessions[session.ID] = session
	return nil
}

func (m *mockSessionRepository) FindByID(ctx context.Context, id string) (*domain.Session, error) {
	return m.sessions[id], nil
}

func (m *mockSessionRepository) FindByPatientID(ctx context.Context, patientID string) ([]*domain.Session, error) {
	var result []*domain.Session
	for _, s := range m.sessions {
		if s.PatientID == patientID {
			result = append(result, s)
		}
	}
	return result, nil
}

func (m *mockSessionRepository) Delete(ctx context.Context, id string) error {
	delete(m.sessions, id)
	return nil
}

func (m *mockSessionRepository) CreatePainPoint(ctx context.Context, point *domain.PainPoint) error {
	m.nextID++
	point.ID = fmt.Sprintf("pain-point-%d", m.nextID)
	m.painPoints = append(m.painPoints, point)
	return nil
}

func (m *mockSessionRepository) FindPainPointsBySessionIDs(ctx context.Context, sessionIDs []string) ([]*domain.PainPoint, error) {
	var result []*domain.PainPoint
	for _, p := range m.painPoints {
		for _, id := range sessionIDs {
			if p.SessionID == id {
				result = append(result, p)
			}
		}
	}
	return result, nil
}

type clinicFixture struct {
	svc          *ClinicService
	patients     *mockPatientRepository
	appointments *mockAppointmentRepository
	sessions     *mockSessionRepository
}

func newClinicFixture() *clinicFixture {
	f := &clinicFixture{
		patients:     newMockPatientRepository(),
		appointments: newMockAppointmentRepository(),
		sessions:     newMockSessionRepository(),
	}
	f.svc = NewClinicService(f.patients, f.appointments, f.sessions)
	f.svc.now = func() time.Time { return time.Date(2025, 9, 14, 12, 0, 0, 0, time.UTC) }
	return f
}

func validPatient(cpf string) *domain.Patient {
	return &domain.Patient{
		Name:      "Test Patient",
		CPF:       cpf,
		Email:     "patient" + cpf + "@example.com",
		Phone:     "+5511999999999",
		BirthDate: "1990-01-01",
	}
}

func mustCreatePatient(t *testing.T, f *clinicFixture, cpf string) *domain.Patient {
	t.Helper()
	patient, err := f.svc.CreatePatient(context.Background(), validPatient(cpf))
	if err != nil {
		t.Fatalf("CreatePatient failed: %v", err)
	}
	return patient
}

func TestClinicService_CreatePatient_Success(t *testing.T) {
	f := newClinicFixture()
	patient := mustCreatePatient(t, f, "12345678909")

	if patient.ID == "" {
		t.Error("ID should be set")
	}
	if !patient.Active {
		t.Error("new patient should be active")
	}
	if patient.Phone != "+5511999999999" {
		t.Errorf("phone should be stored as given, got %s", patient.Phone)
	}
}

func TestClinicService_CreatePatient_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		modify func(p *domain.Patient)
		field  string
	}{
		{"missing name", func(p *domain.Patient) { p.Name = "  " }, "name"},
		{"short cpf", func(p *domain.Patient) { p.CPF = "123" }, "cpf"},
		{"non numeric cpf", func(p *domain.Patient) { p.CPF = "invalidcpf1" }, "cpf"},
		{"invalid email", func(p *domain.Patient) { p.Email = "not-an-email" }, "email"},
		{"missing phone", func(p *domain.Patient) { p.Phone = "" }, "phone"},
		{"invalid birth date", func(p *domain.Patient) { p.BirthDate = "01/01/1990" }, "birth_date"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newClinicFixture()
			p := validPatient("12345678909")
			tt.modify(p)

			_, err := f.svc.CreatePatient(context.Background(), p)

			var verr *domain.ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("want ValidationError, got %v", err)
			}
			if verr.Field != tt.field {
				t.Errorf("want field %s, got %s", tt.field, verr.Field)
			}
		})
	}
}

func TestClinicService_CreatePatient_DuplicateCPF(t *testing.T) {
	f := newClinicFixture()
	mustCreatePatient(t, f, "12345678909")

	_, err := f.svc.CreatePatient(context.Background(), validPatient("12345678909"))
	if !errors.Is(err, domain.ErrDuplicateCPF) {
		t.Errorf("want ErrDuplicateCPF, got %v", err)
	}
}

func TestClinicService_CreatePatient_CPFReusableAfterArchive(t *testing.T) {
	ctx := context.Background()
	f := newClinicFixture()
	first := mustCreatePatient(t, f, "12345678909")

	if _, err := f.svc.ArchivePatient(ctx, first.ID); err != nil {
		t.Fatalf("ArchivePatient failed: %v", err)
	}
	if _, err := f.svc.CreatePatient(ctx, validPatient("12345678909")); err != nil {
		t.Errorf("cpf of archived patient should be reusable, got %v", err)
	}
}

func TestClinicService_GetPatient_Archived(t *testing.T) {
	ctx := context.Background()
	f := newClinicFixture()
	patient := mustCreatePatient(t, f, "12345678909")

	if _, err := f.svc.GetPatient(ctx, patient.ID); err != nil {
		t.Fatalf("GetPatient failed: %v", err)
	}
	if _, err := f.svc.ArchivePatient(ctx, patient.ID); err != nil {
		t.Fatalf("ArchivePatient failed: %v", err)
	}
	if _, err := f.svc.GetPatient(ctx, patient.ID); !errors.Is(err, domain.ErrPatientNotFound) {
		t.Errorf("want ErrPatientNotFound after archive, got %v", err)
	}
}

func TestClinicService_GetPatient_RepositoryError(t *testing.T) {
	f := newClinicFixture()
	dbErr := errors.New("connection refused")
	f.patients.findErr = dbErr

	_, err := f.svc.GetPatient(context.Background(), "patient-1")
	if !errors.Is(err, dbErr) {
		t.Errorf("want wrapped repository error, got %v", err)
	}
}

func TestClinicService_ListPatients_NegativePaging(t *testing.T) {
	f := newClinicFixture()

	_, err := f.svc.ListPatients(context.Background(), domain.PatientFilter{Page: -1, Limit: -5})

	var verr *domain.ValidationError
	if !errors.As(err, &verr) || verr.Field != "page" {
		t.Errorf("want ValidationError on page, got %v", err)
	}
}

func TestClinicService_UpdatePatient_Success(t *testing.T) {
	f := newClinicFixture()
	patient := mustCreatePatient(t, f, "12345678901")

	input := validPatient("12345678901")
	input.Name = "Updated Patient Name"
	input.Email = "updatedemail@example.com"
	input.Phone = "+5511888888888"

	updated, err := f.svc.UpdatePatient(context.Background(), patient.ID, input)
	if err != nil {
		t.Fatalf("UpdatePatient failed: %v", err)
	}
	if updated.Name != "Updated Patient Name" || updated.Email != "updatedemail@example.com" || updated.Phone != "+5511888888888" {
		t.Errorf("unexpected patient: %+v", updated)
	}
	if updated.ID != patient.ID {
		t.Errorf("ID must not change, got %s", updated.ID)
	}
}

func TestClinicService_UpdatePatient_DuplicateCPF(t *testing.T) {
	f := newClinicFixture()
	mustCreatePatient(t, f, "11111111111")
	second := mustCreatePatient(t, f, "22222222222")

	_, err := f.svc.UpdatePatient(context.Background(), second.ID, validPatient("11111111111"))
	if !errors.Is(err, domain.ErrDuplicateCPF) {
		t.Errorf("want ErrDuplicateCPF, got %v", err)
	}
}

func TestClinicService_UpdatePatient_NotFound(t *testing.T) {
	f := newClinicFixture()

	_, err := f.svc.UpdatePatient(context.Background(), "missing", validPatient("12345678909"))
	if !errors.Is(err, domain.ErrPatientNotFound) {
		t.Errorf("want ErrPatientNotFound, got %v", err)
	}
}

func TestClinicService_ArchivePatient_Idempotent(t *testing.T) {
	ctx := context.Background()
	f := newClinicFixture()
	patient := mustCreatePatient(t, f, "12345678909")

	for i := 0; i < 2; i++ {
		archived, err := f.svc.ArchivePatient(ctx, patient.ID)
		if err != nil {
			t.Fatalf("ArchivePatient #%d failed: %v", i+1, err)
		}
		if archived.Active {
			t.Errorf("patient should be inactive after archive #%d", i+1)
		}
	}
	if len(f.patients.archived) != 1 {
		t.Errorf("repository Archive should be called once, got %d", len(f.patients.archived))
	}

	if _, err := f.svc.ArchivePatient(ctx, "missing"); !errors.Is(err, domain.ErrPatientNotFound) {
		t.Errorf("want ErrPatientNotFound, got %v", err)
	}
}

func TestClinicService_CreateAppointment_Conflict(t *testing.T) {
	ctx := context.Background()
	f := newClinicFixture()
	patient := mustCreatePatient(t, f, "12345678909")
	date := time.Date(2025, 9, 15, 10, 0, 0, 0, time.UTC)

	first, err := f.svc.CreateAppointment(ctx, &domain.Appointment{
		PatientID:       patient.ID,
		AppointmentDate: date,
		DurationMinutes: 30,
	})
	if err != nil {
		t.Fatalf("CreateAppointment failed: %v", err)
	}
	if first.ID == "" {
		t.Error("ID should be set")
	}

	_, err = f.svc.CreateAppointment(ctx, &domain.Appointment{
		PatientID:       patient.ID,
		AppointmentDate: date.Add(15 * time.Minute),
		DurationMinutes: 30,
	})
	if !errors.Is(err, domain.ErrAppointmentConflict) {
		t.Errorf("want ErrAppointmentConflict, got %v", err)
	}

	// 終了時刻ちょうどに始まる予約は重ならない
	if _, err := f.svc.CreateAppointment(ctx, &domain.Appointment{
		PatientID:       patient.ID,
		AppointmentDate: date.Add(30 * time.Minute),
		DurationMinutes: 30,
	}); err != nil {
		t.Errorf("adjacent appointment should be accepted, got %v", err)
	}
}

func TestClinicService_CreateAppointment_Invalid(t *testing.T) {
	ctx := context.Background()
	f := newClinicFixture()
	patient := mustCreatePatient(t, f, "12345678909")

	tests := []struct {
		name  string
		input *domain.Appointment
		field string
	}{
		{"missing patient", &domain.Appointment{AppointmentDate: time.Now()}, "patient_id"},
		{"missing date", &domain.Appointment{PatientID: patient.ID}, "appointment_date"},
		{"negative duration", &domain.Appointment{PatientID: patient.ID, AppointmentDate: time.Now(), DurationMinutes: -5}, "duration_minutes"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.CreateAppointment(ctx, tt.input)
			var verr *domain.ValidationError
			if !errors.As(err, &verr) || verr.Field != tt.field {
				t.Errorf("want ValidationError on %s, got %v", tt.field, err)
			}
		})
	}

	_, err := f.svc.CreateAppointment(ctx, &domain.Appointment{PatientID: "missing", AppointmentDate: time.Now()})
	if !errors.Is(err, domain.ErrPatientNotFound) {
		t.Errorf("want ErrPatientNotFound, got %v", err)
	}
}

func TestClinicService_CreateAppointment_DefaultDuration(t *testing.T) {
	f := newClinicFixture()
	patient := mustCreatePatient(t, f, "12345678909")

	appointment, err := f.svc.CreateAppointment(context.Background(), &domain.Appointment{
		PatientID:       patient.ID,
		AppointmentDate: time.Date(2025, 9, 15, 10, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("CreateAppointment failed: %v", err)
	}
	if appointment.DurationMinutes != defaultAppointmentMinutes {
		t.Errorf("want default duration %d, got %d", defaultAppointmentMinutes, appointment.DurationMinutes)
	}
}

func TestClinicService_DeleteAppointment(t *testing.T) {
	ctx := context.Background()
	f := newClinicFixture()
	patient := mustCreatePatient(t, f, "12345678909")
	appointment, err := f.svc.CreateAppointment(ctx, &domain.Appointment{
		PatientID:       patient.ID,
		AppointmentDate: time.Date(2025, 9, 15, 10, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("CreateAppointment failed: %v", err)
	}

	if err := f.svc.DeleteAppointment(ctx, appointment.ID); err != nil {
		t.Fatalf("DeleteAppointment failed: %v", err)
	}
	if err := f.svc.DeleteAppointment(ctx, appointment.ID); !errors.Is(err, domain.ErrAppointmentNotFound) {
		t.Errorf("want ErrAppointmentNotFound, got %v", err)
	}
}

func TestClinicService_AddPainPoint(t *testing.T) {
	ctx := context.Background()
	f := newClinicFixture()
	patient := mustCreatePatient(t, f, "12345678909")
	session, err := f.svc.CreateSession(ctx, &domain.Session{PatientID: patient.ID, SessionType: "avaliacao"})
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}
	if session.SessionDate.IsZero() {
		t.Error("session date should default to now")
	}

	point, err := f.svc.AddPainPoint(ctx, session.ID, &domain.PainPoint{
		BodyRegion:    "Lower Back",
		PainIntensity: 7,
		Coordinates:   &domain.Coordinates{X: 100, Y: 200},
	})
	if err != nil {
		t.Fatalf("AddPainPoint failed: %v", err)
	}
	if point.SessionID != session.ID {
		t.Errorf("want session %s, got %s", session.ID, point.SessionID)
	}

	for _, intensity := range []int{-1, 11} {
		_, err := f.svc.AddPainPoint(ctx, session.ID, &domain.PainPoint{BodyRegion: "Neck", PainIntensity: intensity})
		var verr *domain.ValidationError
		if !errors.As(err, &verr) || verr.Field != "pain_intensity" {
			t.Errorf("intensity %d: want ValidationError, got %v", intensity, err)
		}
	}

	_, err = f.svc.AddPainPoint(ctx, session.ID, &domain.PainPoint{PainIntensity: 5})
	var verr *domain.ValidationError
	if !errors.As(err, &verr) || verr.Field != "body_region" {
		t.Errorf("want ValidationError on body_region, got %v", err)
	}

	_, err = f.svc.AddPainPoint(ctx, "missing", &domain.PainPoint{BodyRegion: "Neck", PainIntensity: 5})
	if !errors.Is(err, domain.ErrSessionNotFound) {
		t.Errorf("want ErrSessionNotFound, got %v", err)
	}
}

func TestClinicService_DeleteSession_NotFound(t *testing.T) {
	f := newClinicFixture()

	err := f.svc.DeleteSession(context.Background(), "missing")
	if !errors.Is(err, domain.ErrSessionNotFound) {
		t.Errorf("want ErrSessionNotFound, got %v", err)
	}
}

func TestClinicService_ExportPatientData(t *testing.T) {
	ctx := context.Background()
	f := newClinicFixture()
	patient := mustCreatePatient(t, f, "12345678909")

	if _, err := f.svc.CreateAppointment(ctx, &domain.Appointment{
		PatientID:       patient.ID,
		AppointmentDate: time.Date(2025, 9, 15, 10, 0, 0, 0, time.UTC),
	}); err != nil {
		t.Fatalf("CreateAppointment failed: %v", err)
	}
	session, err := f.svc.CreateSession(ctx, &domain.Session{PatientID: patient.ID, SessionType: "avaliacao"})
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}
	if _, err := f.svc.AddPainPoint(ctx, session.ID, &domain.PainPoint{BodyRegion: "Knee", PainIntensity: 3}); err != nil {
		t.Fatalf("AddPainPoint failed: %v", err)
	}

	export, err := f.svc.ExportPatientData(ctx, patient.ID)
	if err != nil {
		t.Fatalf("ExportPatientData failed: %v", err)
	}
	if export.Patient.ID != patient.ID {
		t.Errorf("want patient %s, got %s", patient.ID, export.Patient.ID)
	}
	if len(export.Appointments) != 1 || len(export.Sessions) != 1 || len(export.PainPoints) != 1 {
		t.Errorf("unexpected export contents: %d appointments, %d sessions, %d pain points",
			len(export.Appointments), len(export.Sessions), len(export.PainPoints))
	}
	if !export.ExportedAt.Equal(f.svc.now()) {
		t.Errorf("unexpected exported_at: %v", export.ExportedAt)
	}
}

func TestClinicService_ExportPatientData_Errors(t *testing.T) {
	f := newClinicFixture()

	_, err := f.svc.ExportPatientData(context.Background(), "")
	var verr *domain.ValidationError
	if !errors.As(err, &verr) || verr.Field != "patient_id" {
		t.Errorf("want ValidationError on patient_id, got %v", err)
	}

	_, err = f.svc.ExportPatientData(context.Background(), "00000000-0000-0000-0000-000000000000")
	if !errors.Is(err, domain.ErrPatientNotFound) {
		t.Errorf("want ErrPatientNotFound, got %v", err)
	}
}
