// Package main はデプロイ・検証用CLIのエントリポイント。
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"clinic-deploy/config"
	"clinic-deploy/internal/infra"
)

const version = "1.0.0"

// 全サブコマンドで共有する設定
var cfg *config.Config

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	var tp *sdktrace.TracerProvider
	rootCmd := &cobra.Command{
		Use:          "clinicctl",
		Short:        "Clinic database deployment and API probe CLI",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// .envファイルを読み込む（存在しない場合は無視）
			_ = godotenv.Load()
			cfg = config.Load()

			// ログは標準エラー、結果は標準出力に出す
			infra.SetupLogger(cfg, os.Stderr)

			var err error
			tp, err = infra.InitTracer(cmd.Context(), cfg, version)
			if err != nil {
				return fmt.Errorf("failed to init tracer: %w", err)
			}
			return nil
		},
	}

	// サブコマンド登録
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(probeCmd())
	rootCmd.AddCommand(versionCmd())

	err := rootCmd.ExecuteContext(ctx)

	if tp != nil {
		if shutdownErr := tp.Shutdown(context.WithoutCancel(ctx)); shutdownErr != nil {
			slog.Error("failed to shutdown tracer", "error", shutdownErr)
		}
	}
	if err != nil {
		os.Exit(1)
	}
}

// versionCmd はバージョン情報を表示する。
func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("clinicctl version %s\n", version)
		},
	}
}
