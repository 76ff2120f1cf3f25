package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"clinic-deploy/internal/domain"
	"clinic-deploy/internal/infra"
	"clinic-deploy/internal/sqltext"
)

// SQLExecutor はリモートでSQLを実行するクライアントのインターフェース。
type SQLExecutor interface {
	ExecuteSQL(ctx context.Context, statement string) (string, error)
	Exec(ctx context.Context, statement string) (string, error)
	Ping(ctx context.Context) error
}

// RunRecorder はマイグレーション結果を履歴として保存するインターフェース。
type RunRecorder interface {
	RecordMigration(ctx context.Context, runID string, report *domain.MigrationReport) error
}

// MigrationOption はMigrationServiceのオプション。
type MigrationOption func(*MigrationService)

// WithRecorder は実行履歴の保存先を設定する。
func WithRecorder(recorder RunRecorder) MigrationOption {
	return func(s *MigrationService) { s.recorder = recorder }
}

// WithPause はマイグレーション間の待機時間を設定する。
func WithPause(d time.Duration) MigrationOption {
	return func(s *MigrationService) { s.pause = d }
}

// WithoutFallback はフォールバックエンドポイントを使わない。
func WithoutFallback() MigrationOption {
	return func(s *MigrationService) { s.fallback = false }
}

// MigrationService はマイグレーション適用のビジネスロジックを提供する。
type MigrationService struct {
	executor SQLExecutor
	recorder RunRecorder
	pause    time.Duration
	fallback bool
	readFile func(name string) ([]byte, error)
}

// NewMigrationService は新しいMigrationServiceを生成する。
func NewMigrationService(executor SQLExecutor, opts ...MigrationOption) *MigrationService {
	s := &MigrationService{
		executor: executor,
		pause:    2 * time.Second,
		fallback: true,
		readFile: os.ReadFile,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CheckConnection は接続先に到達できるか確認する。
func (s *MigrationService) CheckConnection(ctx context.Context) error {
	if err := s.executor.Ping(ctx); err != nil {
		slog.ErrorContext(ctx, "connection check failed",
			"operation", "check_connection",
			"error", err,
		)
		return fmt.Errorf("%w: %v", domain.ErrConnectionFailed, err)
	}
	return nil
}

// ApplyMigrations はマイグレーションを順番に適用する。
// 1件の失敗で中断せず、全件の結果をRunReportにまとめて返す。
func (s *MigrationService) ApplyMigrations(ctx context.Context, migrations []domain.Migration) *domain.RunReport {
	run := &domain.RunReport{RunID: uuid.NewString()}

	for i, migration := range migrations {
		if i > 0 {
			if err := s.wait(ctx); err != nil {
				run.Migrations = append(run.Migrations, &domain.MigrationReport{Migration: migration, Err: err})
				continue
			}
		}

		report := s.applyMigration(ctx, migration)
		run.Migrations = append(run.Migrations, report)

		if s.recorder != nil {
			if err := s.recorder.RecordMigration(ctx, run.RunID, report); err != nil {
				slog.WarnContext(ctx, "failed to record migration history",
					"operation", "apply_migrations",
					"migration", migration.Name,
					"error", err,
				)
			}
		}
	}

	slog.InfoContext(ctx, "migration run finished",
		"operation", "apply_migrations",
		"run_id", run.RunID,
		"applied", run.AppliedCount(),
		"total", len(run.Migrations),
	)
	return run
}

// applyMigration は単一のマイグレーションを適用する。
func (s *MigrationService) applyMigration(ctx context.Context, migration domain.Migration) *domain.MigrationReport {
	ctx, span := infra.Tracer().Start(ctx, "apply_migration")
	defer span.End()
	span.SetAttributes(attribute.String("migration.name", migration.Name))

	report := &domain.MigrationReport{Migration: migration, StartedAt: time.Now()}
	defer func() { report.Duration = time.Since(report.StartedAt) }()

	sqlBytes, err := s.readFile(migration.FilePath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			err = fmt.Errorf("%w: %s", domain.ErrMigrationFileNotFound, migration.FilePath)
		} else {
			err = fmt.Errorf("failed to read migration file: %w", err)
		}
		slog.ErrorContext(ctx, "failed to read migration file",
			"operation", "apply_migration",
			"migration", migration.Name,
			"file_path", migration.FilePath,
			"error", err,
		)
		span.SetStatus(codes.Error, err.Error())
		report.Err = err
		return report
	}

	statements := sqltext.SplitStatements(string(sqlBytes))
	report.Total = len(statements)
	if report.Total == 0 {
		err := fmt.Errorf("%w: %s", domain.ErrEmptyMigration, migration.FilePath)
		slog.ErrorContext(ctx, "migration file has no statements",
			"operation", "apply_migration",
			"migration", migration.Name,
			"file_path", migration.FilePath,
		)
		span.SetStatus(codes.Error, err.Error())
		report.Err = err
		return report
	}
	slog.InfoContext(ctx, "applying migration",
		"operation", "apply_migration",
		"migration", migration.Name,
		"statements", report.Total,
	)

	// 失敗したステートメントがあっても後続は実行する
	for i, statement := range statements {
		result := s.executeStatement(ctx, statement)
		report.Results = append(report.Results, result)
		if result.Success() {
			report.Succeeded++
			slog.DebugContext(ctx, "statement executed",
				"operation", "apply_migration",
				"migration", migration.Name,
				"statement", i+1,
			)
			continue
		}
		slog.ErrorContext(ctx, "statement failed",
			"operation", "apply_migration",
			"migration", migration.Name,
			"statement", i+1,
			"error", result.Err,
		)
	}

	span.SetAttributes(
		attribute.Int("migration.statements", report.Total),
		attribute.Int("migration.succeeded", report.Succeeded),
	)
	if !report.FullyApplied() {
		span.SetStatus(codes.Error, "not all statements succeeded")
	}
	return report
}

// executeStatement はプライマリで実行し、失敗時は一度だけフォールバックで実行する。
// 両方失敗した場合は両方のエラーを保持する。
func (s *MigrationService) executeStatement(ctx context.Context, statement string) domain.ExecResult {
	payload, primaryErr := s.executor.ExecuteSQL(ctx, statement)
	if primaryErr == nil {
		return domain.ExecResult{Statement: statement, Payload: payload}
	}
	if !s.fallback {
		return domain.ExecResult{
			Statement: statement,
			Err:       fmt.Errorf("%w: %w", domain.ErrStatementFailed, primaryErr),
		}
	}

	payload, fallbackErr := s.executor.Exec(ctx, statement)
	if fallbackErr == nil {
		return domain.ExecResult{Statement: statement, Payload: payload}
	}
	return domain.ExecResult{
		Statement: statement,
		Err: fmt.Errorf("%w: %w", domain.ErrStatementFailed, errors.Join(
			fmt.Errorf("primary: %w", primaryErr),
			fmt.Errorf("fallback: %w", fallbackErr),
		)),
	}
}

func (s *MigrationService) wait(ctx context.Context) error {
	if s.pause <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(s.pause)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// RenderSQL はSQLエディタに貼り付けて手動適用できる形式でマイグレーションを出力する。
// 読み込めないファイルはスキップし、出力したマイグレーション数を返す。
func (s *MigrationService) RenderSQL(w io.Writer, migrations []domain.Migration) (int, error) {
	const rule = "-- =================================================="

	rendered := 0
	for i, migration := range migrations {
		sqlBytes, err := s.readFile(migration.FilePath)
		if err != nil {
			if _, werr := fmt.Fprintf(w, "-- skipped migration %d (%s): %v\n\n", i+1, migration.Name, err); werr != nil {
				return rendered, werr
			}
			continue
		}

		if _, err := fmt.Fprintf(w, "%s\n-- Migration %d: %s\n-- Source: %s\n%s\n%s\n\n",
			rule, i+1, migration.Name, migration.FilePath, rule, string(sqlBytes)); err != nil {
			return rendered, err
		}
		rendered++
	}
	return rendered, nil
}
