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

// SessionModel はgorm用のモデル定義。
type SessionModel struct {
	ID          string    `gorm:"type:char(36);primaryKey"`
	PatientID   string    `gorm:"type:char(36);not null;index:idx_session_patient"`
	SessionType string    `gorm:"type:varchar(64);not null"`
	SessionDate time.Time `gorm:"not null"`
	CreatedAt   time.Time `gorm:"not null;autoCreateTime"`
}

// TableName はテーブル名を返す。
func (SessionModel) TableName() string {
	return "sessions"
}

// BeforeCreate はレコード作成前にUUIDを生成する。
func (s *SessionModel) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.New().String()
	}
	return nil
}

func (s *SessionModel) toDomain() *domain.Session {
	return &domain.Session{
		ID:          s.ID,
		PatientID:   s.PatientID,
		SessionType: s.SessionType,
		SessionDate: s.SessionDate.UTC(),
		CreatedAt:   s.CreatedAt,
	}
}

// PainPointModel はgorm用のモデル定義。
type PainPointModel struct {
	ID            string    `gorm:"type:char(36);primaryKey"`
	SessionID     string    `gorm:"type:char(36);not null;index:idx_pain_point_session"`
	BodyRegion    string    `gorm:"type:varchar(128);not null"`
	PainIntensity int       `gorm:"not null"`
	CoordX        *float64  `gorm:"column:coord_x"`
	CoordY        *float64  `gorm:"column:coord_y"`
	Notes         string    `gorm:"type:text"`
	CreatedAt     time.Time `gorm:"not null;autoCreateTime"`
}

// TableName はテーブル名を返す。
func (PainPointModel) TableName() string {
	return "pain_points"
}

// BeforeCreate はレコード作成前にUUIDを生成する。
func (p *PainPointModel) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	return nil
}

func (p *PainPointModel) toDomain() *domain.PainPoint {
	point := &domain.PainPoint{
		ID:            p.ID,
		SessionID:     p.SessionID,
		BodyRegion:    p.BodyRegion,
		PainIntensity: p.PainIntensity,
		Notes:         p.Notes,
		CreatedAt:     p.CreatedAt,
	}
	if p.CoordX != nil && p.CoordY != nil {
		point.Coordinates = &domain.Coordinates{X: *p.CoordX, Y: *p.CoordY}
	}
	return point
}

// SessionRepository はセッションと疼痛部位へのアクセスを提供する。
type SessionRepository struct {
	db *gorm.DB
}

// NewSessionRepository は新しいSessionRepositoryを生成する。
func NewSessionRepository(db *gorm.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// Create は新しいセッションを保存する。
func (r *SessionRepository) Create(ctx context.Context, session *domain.Session) error {
	model := &SessionModel{
		PatientID:   session.PatientID,
		SessionType: session.SessionType,
		SessionDate: session.SessionDate.UTC(),
	}
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		slog.ErrorContext(ctx, "failed to create session",
			"operation", "create_session",
			"patient_id", session.PatientID,
			"error", err,
		)
		return err
	}
	session.ID = model.ID
	session.CreatedAt = model.CreatedAt
	return nil
}

// FindByID は指定されたIDのセッションを取得する。存在しない場合はnilを返す。
func (r *SessionRepository) FindByID(ctx context.Context, id string) (*domain.Session, error) {
	var model SessionModel
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		slog.ErrorContext(ctx, "failed to find session",
			"operation", "find_session_by_id",
			"session_id", id,
			"error", err,
		)
		return nil, err
	}
	return model.toDomain(), nil
}

// FindByPatientID は指定された患者のセッションを日時順に取得する。
func (r *SessionRepository) FindByPatientID(ctx context.Context, patientID string) ([]*domain.Session, error) {
	var models []SessionModel
	err := r.db.WithContext(ctx).
		Where("patient_id = ?", patientID).
		Order("session_date ASC").
		Find(&models).Error
	if err != nil {
		slog.ErrorContext(ctx, "failed to find sessions by patient",
			"operation", "find_sessions_by_patient_id",
			"patient_id", patientID,
			"error", err,
		)
		return nil, err
	}

	sessions := make([]*domain.Session, len(models))
	for i, m := range models {
		sessions[i] = m.toDomain()
	}
	return sessions, nil
}

// Delete はセッションと紐づく疼痛部位を削除する。
func (r *SessionRepository) Delete(ctx context.Context, id string) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("session_id = ?", id).Delete(&PainPointModel{}).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", id).Delete(&SessionModel{}).Error
	})
	if err != nil {
		slog.ErrorContext(ctx, "failed to delete session",
			"operation", "delete_session",
			"session_id", id,
			"error", err,
		)
		return err
	}
	return nil
}

// CreatePainPoint は疼痛部位を保存する。
func (r *SessionRepository) CreatePainPoint(ctx context.Context, point *domain.PainPoint) error {
	model := &PainPointModel{
		SessionID:     point.SessionID,
		BodyRegion:    point.BodyRegion,
		PainIntensity: point.PainIntensity,
		Notes:         point.Notes,
	}
	if point.Coordinates != nil {
		x, y := point.Coordinates.X, point.Coordinates.Y
		model.CoordX = &x
		model.CoordY = &y
	}
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		slog.ErrorContext(ctx, "failed to create pain point",
			"operation", "create_pain_point",
			"session_id", point.SessionID,
			"error", err,
		)
		return err
	}
	point.ID = model.ID
	point.CreatedAt = model.CreatedAt
	return nil
}

// FindPainPointsBySessionIDs は複数セッションの疼痛部位をまとめて取得する。
func (r *SessionRepository) FindPainPointsBySessionIDs(ctx context.Context, sessionIDs []string) ([]*domain.PainPoint, error) {
	if len(sessionIDs) == 0 {
		return nil, nil
	}

	var models []PainPointModel
	err := r.db.WithContext(ctx).
		Where("session_id IN ?", sessionIDs).
		Order("created_at ASC").
		Find(&models).Error
	if err != nil {
		slog.ErrorContext(ctx, "failed to find pain points",
			"operation", "find_pain_points_by_session_ids",
			"error", err,
		)
		return nil, err
	}

	points := make([]*domain.PainPoint, len(models))
	for i, m := range models {
		points[i] = m.toDomain()
	}
	return points, nil
}

// AutoMigrate はクリニックAPIのテーブルを作成する。
func AutoMigrate(ctx context.Context, db *gorm.DB) error {
	return db.WithContext(ctx).AutoMigrate(
		&PatientModel{},
		&AppointmentModel{},
		&SessionModel{},
		&PainPointModel{},
	)
}
