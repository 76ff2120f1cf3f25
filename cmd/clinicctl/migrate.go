package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"clinic-deploy/internal/domain"
	"clinic-deploy/internal/infra"
	"clinic-deploy/internal/repository"
	"clinic-deploy/internal/usecase"
)

// statementPreviewLen は失敗一覧に表示するステートメントの最大文字数。
const statementPreviewLen = 60

var (
	manifestPath string
	pause        time.Duration
	noFallback   bool
	historyLimit int
)

var errHistoryDisabled = errors.New("HISTORY_DATABASE_URL is not set")

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Manage Supabase migrations",
	Long:  "Apply, render and inspect the clinic database migrations on Supabase",
}

var migrateApplyCmd = &cobra.Command{
	Use:   "apply",
	Short: "Apply migrations to Supabase",
	Long:  "Apply every migration statement by statement and print a summary",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if manifestPath != "" {
			cfg.MigrationsManifest = manifestPath
		}
		if cmd.Flags().Changed("pause") {
			cfg.MigrationPause = pause
		}

		migrations, err := cfg.Migrations()
		if err != nil {
			return fmt.Errorf("failed to load migrations: %w", err)
		}

		// ネットワークに触れる前にキーの有無を確認する
		client, err := infra.NewSupabaseClient(cfg.SupabaseURL, cfg.SupabaseServiceKey)
		if err != nil {
			return fmt.Errorf("configuration error (set SUPABASE_SERVICE_ROLE_KEY): %w", err)
		}

		opts := []usecase.MigrationOption{usecase.WithPause(cfg.MigrationPause)}
		if noFallback {
			opts = append(opts, usecase.WithoutFallback())
		}
		if cfg.HistoryDatabaseURL != "" {
			history, err := openHistory(ctx)
			if err != nil {
				return err
			}
			opts = append(opts, usecase.WithRecorder(history))
		}
		service := usecase.NewMigrationService(client, opts...)

		fmt.Printf("Checking connection to %s...\n", cfg.SupabaseURL)
		if err := service.CheckConnection(ctx); err != nil {
			return err
		}

		fmt.Printf("Applying %d migration(s)...\n", len(migrations))
		run := service.ApplyMigrations(ctx, migrations)

		if err := printRunReport(os.Stdout, run); err != nil {
			return fmt.Errorf("failed to flush output: %w", err)
		}
		if !run.AllApplied() {
			return fmt.Errorf("%d of %d migrations fully applied", run.AppliedCount(), len(run.Migrations))
		}
		fmt.Println("All migrations applied successfully.")
		return nil
	},
}

var migratePrintCmd = &cobra.Command{
	Use:   "print",
	Short: "Print migrations as SQL for manual execution",
	Long:  "Print every migration as a block that can be pasted into the Supabase SQL editor",
	RunE: func(cmd *cobra.Command, args []string) error {
		if manifestPath != "" {
			cfg.MigrationsManifest = manifestPath
		}
		migrations, err := cfg.Migrations()
		if err != nil {
			return fmt.Errorf("failed to load migrations: %w", err)
		}

		// SQLの出力だけなので実行クライアントは不要
		service := usecase.NewMigrationService(nil)
		rendered, err := service.RenderSQL(os.Stdout, migrations)
		if err != nil {
			return fmt.Errorf("failed to render migrations: %w", err)
		}
		fmt.Fprintf(os.Stderr, "Rendered %d of %d migration(s).\n", rendered, len(migrations))
		return nil
	},
}

var migratePingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Check the connection to Supabase",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := infra.NewSupabaseClient(cfg.SupabaseURL, cfg.SupabaseServiceKey)
		if err != nil {
			return fmt.Errorf("configuration error (set SUPABASE_SERVICE_ROLE_KEY): %w", err)
		}
		service := usecase.NewMigrationService(client)
		if err := service.CheckConnection(cmd.Context()); err != nil {
			return err
		}
		fmt.Printf("Connected to %s.\n", cfg.SupabaseURL)
		return nil
	},
}

var migrateHistoryCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recorded migration runs",
	Long:  "Show migration results recorded in HISTORY_DATABASE_URL, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if cfg.HistoryDatabaseURL == "" {
			return errHistoryDisabled
		}

		history, err := openHistory(ctx)
		if err != nil {
			return err
		}
		records, err := history.FindRecent(ctx, historyLimit)
		if err != nil {
			return fmt.Errorf("failed to load migration history: %w", err)
		}
		if len(records) == 0 {
			fmt.Println("No migration history.")
			return nil
		}

		if err := printHistory(os.Stdout, records); err != nil {
			return fmt.Errorf("failed to flush output: %w", err)
		}
		return nil
	},
}

// openHistory は実行履歴のDBに接続し、テーブルを用意する。
func openHistory(ctx context.Context) (*repository.MigrationRepository, error) {
	db, err := infra.NewDB(cfg.HistoryDatabaseURL, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to history database: %w", err)
	}
	repo := repository.NewMigrationRepository(db)
	if err := repo.AutoMigrate(ctx); err != nil {
		return nil, fmt.Errorf("failed to prepare history table: %w", err)
	}
	return repo, nil
}

// printRunReport はマイグレーションごとの結果をテーブル形式で出力し、失敗したステートメントを列挙する。
func printRunReport(out io.Writer, run *domain.RunReport) error {
	w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "MIGRATION\tSTATEMENTS\tSUCCEEDED\tSTATUS\tDURATION")
	fmt.Fprintln(w, "---------\t----------\t---------\t------\t--------")
	for _, m := range run.Migrations {
		fmt.Fprintf(w, "%s\t%d\t%d\t%s\t%s\n",
			m.Migration.Name, m.Total, m.Succeeded, migrationStatus(m), m.Duration.Round(time.Millisecond))
	}
	if err := w.Flush(); err != nil {
		return err
	}

	for _, m := range run.Migrations {
		if m.Err != nil {
			fmt.Fprintf(out, "\n%s: %v\n", m.Migration.Name, m.Err)
			continue
		}
		for i, result := range m.Results {
			if result.Success() {
				continue
			}
			fmt.Fprintf(out, "\n%s statement %d: %s\n  %v\n",
				m.Migration.Name, i+1, previewStatement(result.Statement), result.Err)
		}
	}
	fmt.Fprintf(out, "\nRun %s: %d/%d migrations applied\n", run.RunID, run.AppliedCount(), len(run.Migrations))
	return nil
}

func migrationStatus(m *domain.MigrationReport) string {
	switch {
	case m.Err != nil:
		return "error"
	case m.FullyApplied():
		return "applied"
	case m.Succeeded > 0:
		return "partial"
	default:
		return "failed"
	}
}

// previewStatement はステートメントを1行に詰めて先頭だけを返す。
func previewStatement(statement string) string {
	s := strings.Join(strings.Fields(statement), " ")
	if len(s) > statementPreviewLen {
		return s[:statementPreviewLen] + "..."
	}
	return s
}

func printHistory(out io.Writer, records []*domain.MigrationRecord) error {
	w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "RUN\tNAME\tSTATEMENTS\tSTATUS\tAPPLIED AT")
	fmt.Fprintln(w, "---\t----\t----------\t------\t----------")
	for _, r := range records {
		status := "applied"
		if !r.Applied {
			status = fmt.Sprintf("failed (%d/%d)", r.Succeeded, r.Total)
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n",
			r.RunID, r.Name, r.Total, status, r.AppliedAt.Format("2006-01-02 15:04:05"))
	}
	return w.Flush()
}

func init() {
	migrateCmd.PersistentFlags().StringVar(&manifestPath, "manifest", "", "Migration manifest (TOML), overrides MIGRATIONS_MANIFEST")
	migrateApplyCmd.Flags().DurationVar(&pause, "pause", 2*time.Second, "Pause between migrations, overrides MIGRATION_PAUSE")
	migrateApplyCmd.Flags().BoolVar(&noFallback, "no-fallback", false, "Do not retry failed statements on the exec endpoint")
	migrateHistoryCmd.Flags().IntVar(&historyLimit, "limit", 20, "Maximum number of records (0 for all)")

	migrateCmd.AddCommand(migrateApplyCmd)
	migrateCmd.AddCommand(migratePrintCmd)
	migrateCmd.AddCommand(migratePingCmd)
	migrateCmd.AddCommand(migrateHistoryCmd)
}
