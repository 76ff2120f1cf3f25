package repository

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"clinic-deploy/internal/domain"
)

// MigrationRunModel はmigration_runsテーブルのモデル。
type MigrationRunModel struct {
	ID        string    `gorm:"type:char(36);primaryKey"`
	RunID     string    `gorm:"type:char(36);not null;index:idx_run_id"`
	Name      string    `gorm:"type:varchar(255);not null"`
	FilePath  string    `gorm:"type:varchar(1024);not null"`
	Total     int       `gorm:"not null"`
	Succeeded int       `gorm:"not null"`
	Applied   bool      `gorm:"not null"`
	Error     string    `gorm:"type:text"`
	AppliedAt time.Time `gorm:"not null;autoCreateTime;index:idx_applied_at"`
}

// TableName はテーブル名を指定。
func (MigrationRunModel) TableName() string {
	return "migration_runs"
}

// BeforeCreate はレコード作成前にUUIDを生成する。
func (m *MigrationRunModel) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	return nil
}

func (m *MigrationRunModel) toDomain() *domain.MigrationRecord {
	return &domain.MigrationRecord{
		RunID:     m.RunID,
		Name:      m.Name,
		FilePath:  m.FilePath,
		Total:     m.Total,
		Succeeded: m.Succeeded,
		Applied:   m.Applied,
		Error:     m.Error,
		AppliedAt: m.AppliedAt,
	}
}

// MigrationRepository はマイグレーション実行履歴を管理するリポジトリ。
type MigrationRepository struct {
	db *gorm.DB
}

// NewMigrationRepository は新しいMigrationRepositoryを生成する。
func NewMigrationRepository(db *gorm.DB) *MigrationRepository {
	return &MigrationRepository{db: db}
}

// AutoMigrate は履歴テーブルを作成する。
func (r *MigrationRepository) AutoMigrate(ctx context.Context) error {
	return r.db.WithContext(ctx).AutoMigrate(&MigrationRunModel{})
}

// RecordMigration はマイグレーション適用結果を記録する。
func (r *MigrationRepository) RecordMigration(ctx context.Context, runID string, report *domain.MigrationReport) error {
	model := &MigrationRunModel{
		RunID:     runID,
		Name:      report.Migration.Name,
		FilePath:  report.Migration.FilePath,
		Total:     report.Total,
		Succeeded: report.Succeeded,
		Applied:   report.FullyApplied(),
	}
	if report.Err != nil {
		model.Error = report.Err.Error()
	}
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		slog.ErrorContext(ctx, "failed to record migration",
			"operation", "record_migration",
			"run_id", runID,
			"migration", report.Migration.Name,
			"error", err,
		)
		return err
	}
	return nil
}

// FindRecent は新しい順に履歴を取得する。limitが0以下の場合は全件。
func (r *MigrationRepository) FindRecent(ctx context.Context, limit int) ([]*domain.MigrationRecord, error) {
	var models []MigrationRunModel
	query := r.db.WithContext(ctx).Order("applied_at DESC").Order("id ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&models).Error; err != nil {
		slog.ErrorContext(ctx, "failed to find migration history",
			"operation", "find_recent",
			"error", err,
		)
		return nil, err
	}

	records := make([]*domain.MigrationRecord, len(models))
	for i, m := range models {
		records[i] = m.toDomain()
	}
	return records, nil
}
