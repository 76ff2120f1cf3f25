// Package repository はデータアクセス層の実装を提供する。
package repository

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"clinic-deploy/internal/domain"
)

// PatientModel はgorm用のモデル定義。
type PatientModel struct {
	ID        string    `gorm:"type:char(36);primaryKey"`
	Name      string    `gorm:"type:varchar(255);not null"`
	CPF       string    `gorm:"column:cpf;type:char(11);not null;index:idx_cpf_active"`
	Email     string    `gorm:"type:varchar(255);not null"`
	Phone     string    `gorm:"type:varchar(32);not null"`
	BirthDate string    `gorm:"type:varchar(10)"`
	Active    bool      `gorm:"not null;index:idx_cpf_active"`
	CreatedAt time.Time `gorm:"not null;autoCreateTime"`
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"`
}

// TableName はテーブル名を返す。
func (PatientModel) TableName() string {
	return "patients"
}

// BeforeCreate はレコード作成前にUUIDを生成する。
func (p *PatientModel) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	return nil
}

// toDomain はモデルをドメインエンティティに変換する。
func (p *PatientModel) toDomain() *domain.Patient {
	return &domain.Patient{
		ID:        p.ID,
		Name:      p.Name,
		CPF:       p.CPF,
		Email:     p.Email,
		Phone:     p.Phone,
		BirthDate: p.BirthDate,
		Active:    p.Active,
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
}

// PatientRepository は患者データへのアクセスを提供する。
type PatientRepository struct {
	db *gorm.DB
}

// NewPatientRepository は新しいPatientRepositoryを生成する。
func NewPatientRepository(db *gorm.DB) *PatientRepository {
	return &PatientRepository{db: db}
}

// Create は新しい患者を保存する。
func (r *PatientRepository) Create(ctx context.Context, patient *domain.Patient) error {
	model := &PatientModel{
		ID:        patient.ID,
		Name:      patient.Name,
		CPF:       patient.CPF,
		Email:     patient.Email,
		Phone:     patient.Phone,
		BirthDate: patient.BirthDate,
		Active:    patient.Active,
	}
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		slog.ErrorContext(ctx, "failed to create patient",
			"operation", "create_patient",
			"error", err,
		)
		return err
	}
	// gormで設定された値をドメインエンティティに反映
	patient.ID = model.ID
	patient.CreatedAt = model.CreatedAt
	patient.UpdatedAt = model.UpdatedAt
	return nil
}

// FindByID は指定されたIDの患者を取得する。存在しない場合はnilを返す。
func (r *PatientRepository) FindByID(ctx context.Context, id string) (*domain.Patient, error) {
	var model PatientModel
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		slog.ErrorContext(ctx, "failed to find patient",
			"operation", "find_patient_by_id",
			"patient_id", id,
			"error", err,
		)
		return nil, err
	}
	return model.toDomain(), nil
}

// FindActiveByCPF は指定されたCPFの有効な患者を取得する。存在しない場合はnilを返す。
func (r *PatientRepository) FindActiveByCPF(ctx context.Context, cpf string) (*domain.Patient, error) {
	var model PatientModel
	err := r.db.WithContext(ctx).
		Where("cpf = ? AND active = ?", cpf, true).
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		slog.ErrorContext(ctx, "failed to find patient by cpf",
			"operation", "find_active_by_cpf",
			"error", err,
		)
		return nil, err
	}
	return model.toDomain(), nil
}

// List は有効な患者を検索条件に従って取得する。
func (r *PatientRepository) List(ctx context.Context, filter domain.PatientFilter) ([]*domain.Patient, error) {
	query := r.db.WithContext(ctx).Where("active = ?", true)
	if filter.Search != "" {
		like := "%" + escapeLike(strings.ToLower(filter.Search)) + "%"
		query = query.Where(
			"LOWER(name) LIKE ? ESCAPE '!' OR LOWER(cpf) LIKE ? ESCAPE '!' OR "+
				"LOWER(email) LIKE ? ESCAPE '!' OR LOWER(phone) LIKE ? ESCAPE '!'",
			like, like, like, like,
		)
	}
	if filter.Limit > 0 {
		page := max(filter.Page, 1)
		query = query.Limit(filter.Limit).Offset((page - 1) * filter.Limit)
	}

	var models []PatientModel
	if err := query.Order("created_at ASC").Order("id ASC").Find(&models).Error; err != nil {
		slog.ErrorContext(ctx, "failed to list patients",
			"operation", "list_patients",
			"error", err,
		)
		return nil, err
	}

	patients := make([]*domain.Patient, len(models))
	for i, m := range models {
		patients[i] = m.toDomain()
	}
	return patients, nil
}

// Update は患者の登録情報を更新する。
func (r *PatientRepository) Update(ctx context.Context, patient *domain.Patient) error {
	err := r.db.WithContext(ctx).
		Model(&PatientModel{}).
		Where("id = ?", patient.ID).
		Updates(map[string]any{
			"name":       patient.Name,
			"cpf":        patient.CPF,
			"email":      patient.Email,
			"phone":      patient.Phone,
			"birth_date": patient.BirthDate,
		}).Error
	if err != nil {
		slog.ErrorContext(ctx, "failed to update patient",
			"operation", "update_patient",
			"patient_id", patient.ID,
			"error", err,
		)
		return err
	}
	return nil
}

// Archive は患者を論理削除（アーカイブ）する。
func (r *PatientRepository) Archive(ctx context.Context, id string) error {
	err := r.db.WithContext(ctx).
		Model(&PatientModel{}).
		Where("id = ?", id).
		Update("active", false).Error
	if err != nil {
		slog.ErrorContext(ctx, "failed to archive patient",
			"operation", "archive_patient",
			"patient_id", id,
			"error", err,
		)
		return err
	}
	return nil
}

// likeEscaper はLIKEのワイルドカードをリテラルとして扱うよう'!'でエスケープする。
// MySQLとSQLiteの両方で同じ書き方が通るようにバックスラッシュは使わない。
var likeEscaper = strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
