// Package config はアプリケーション設定の読み込みを提供する。
package config

import (
	"os"
	"strconv"
	"time"
)

// Config はアプリケーション設定を表す。
type Config struct {
	// Supabase（マイグレーション適用先）
	SupabaseURL        string
	SupabaseServiceKey string
	MigrationsManifest string
	MigrationPause     time.Duration
	HistoryDatabaseURL string

	// プローブ対象のクリニックAPI
	ProbeBaseURL  string
	ProbeEmail    string
	ProbePassword string
	ProbeTimeout  time.Duration

	// スタブサーバー
	Port        string
	DatabaseURL string

	LogLevel           string
	GoogleCloudProject string

	// OpenTelemetry
	OtelEnabled      bool
	OtelEndpoint     string
	OtelServiceName  string
	OtelSamplingRate float64
}

// Load は環境変数から設定を読み込む。
func Load() *Config {
	return &Config{
		SupabaseURL:        getEnv("SUPABASE_URL", "https://jfrddsmtpahpynihubue.supabase.co"),
		SupabaseServiceKey: os.Getenv("SUPABASE_SERVICE_ROLE_KEY"),
		MigrationsManifest: os.Getenv("MIGRATIONS_MANIFEST"),
		MigrationPause:     getDuration("MIGRATION_PAUSE", 2*time.Second),
		HistoryDatabaseURL: os.Getenv("HISTORY_DATABASE_URL"),

		ProbeBaseURL:  getEnv("PROBE_BASE_URL", "http://localhost:3000"),
		ProbeEmail:    getEnv("PROBE_EMAIL", "admin@clinicafisio.com.br"),
		ProbePassword: getEnv("PROBE_PASSWORD", "AdminTeste123!"),
		ProbeTimeout:  getDuration("PROBE_TIMEOUT", 30*time.Second),

		Port:        getEnv("PORT", "3000"),
		DatabaseURL: getEnv("DATABASE_URL", "file::memory:?cache=shared"),

		LogLevel:           getEnv("LOG_LEVEL", "INFO"),
		GoogleCloudProject: os.Getenv("GOOGLE_CLOUD_PROJECT"),

		OtelEnabled:      getBool("OTEL_ENABLED", false),
		OtelEndpoint:     getEnv("OTEL_ENDPOINT", "localhost:4317"),
		OtelServiceName:  getEnv("OTEL_SERVICE_NAME", "clinic-deploy"),
		OtelSamplingRate: getFloat("OTEL_SAMPLING_RATE", 1.0),
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getDuration(key string, defaultVal time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return defaultVal
	}
	return d
}

func getBool(key string, defaultVal bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return defaultVal
	}
	return b
}

func getFloat(key string, defaultVal float64) float64 {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	f, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return defaultVal
	}
	return f
}
