package repository

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"clinic-deploy/internal/domain"
)

// AppointmentModel はgorm用のモデル定義。
type AppointmentModel struct {
	ID              string    `gorm:"type:char(36);primaryKey"`
	PatientID       string    `gorm:"type:char(36);not null;index:idx_appointment_patient"`
	AppointmentDate time.Time `gorm:"not null"`
	DurationMinutes int       `gorm:"not null"`
	Notes           string    `gorm:"type:text"`
	CreatedAt       time.Time `gorm:"not null;autoCreateTime"`
}

// TableName はテーブル名を返す。
func (AppointmentModel) TableName() string {
	return "appointments"
}

// BeforeCreate はレコード作成前にUUIDを生成する。
func (a *AppointmentModel) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	return nil
}

func (a *AppointmentModel) toDomain() *domain.Appointment {
	return &domain.Appointment{
		ID:              a.ID,
		PatientID:       a.PatientID,
		AppointmentDate: a.AppointmentDate.UTC(),
		DurationMinutes: a.DurationMinutes,
		Notes:           a.Notes,
		CreatedAt:       a.CreatedAt,
	}
}

// AppointmentRepository は予約データへのアクセスを提供する。
type AppointmentRepository struct {
	db *gorm.DB
}

// NewAppointmentRepository は新しいAppointmentRepositoryを生成する。
func NewAppointmentRepository(db *gorm.DB) *AppointmentRepository {
	return &AppointmentRepository{db: db}
}

// Create は新しい予約を保存する。
func (r *AppointmentRepository) Create(ctx context.Context, appointment *domain.Appointment) error {
	model := &AppointmentModel{
		PatientID:       appointment.PatientID,
		AppointmentDate: appointment.AppointmentDate.UTC(),
		DurationMinutes: appointment.DurationMinutes,
		Notes:           appointment.Notes,
	}
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		slog.ErrorContext(ctx, "failed to create appointment",
			"operation", "create_appointment",
			"patient_id", appointment.PatientID,
			"error", err,
		)
		return err
	}
	appointment.ID = model.ID
	appointment.CreatedAt = model.CreatedAt
	return nil
}

// FindByID は指定されたIDの予約を取得する。存在しない場合はnilを返す。
func (r *AppointmentRepository) FindByID(ctx context.Context, id string) (*domain.Appointment, error) {
	var model AppointmentModel
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		slog.ErrorContext(ctx, "failed to find appointment",
			"operation", "find_appointment_by_id",
			"appointment_id", id,
			"error", err,
		)
		return nil, err
	}
	return model.toDomain(), nil
}

// FindByPatientID は指定された患者の予約を日時順に取得する。
func (r *AppointmentRepository) FindByPatientID(ctx context.Context, patientID string) ([]*domain.Appointment, error) {
	var models []AppointmentModel
	err := r.db.WithContext(ctx).
		Where("patient_id = ?", patientID).
		Order("appointment_date ASC").
		Find(&models).Error
	if err != nil {
		slog.ErrorContext(ctx, "failed to find appointments by patient",
			"operation", "find_appointments_by_patient_id",
			"patient_id", patientID,
			"error", err,
		)
		return nil, err
	}

	appointments := make([]*domain.Appointment, len(models))
	for i, m := range models {
		appointments[i] = m.toDomain()
	}
	return appointments, nil
}

// Delete は予約を削除する。
func (r *AppointmentRepository) Delete(ctx context.Context, id string) error {
	if err := r.db.WithContext(ctx).Where("id = ?", id).Delete(&AppointmentModel{}).Error; err != nil {
		slog.ErrorContext(ctx, "failed to delete appointment",
			"operation", "delete_appointment",
			"appointment_id", id,
			"error", err,
		)
		return err
	}
	return nil
}
