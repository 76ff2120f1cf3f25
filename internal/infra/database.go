// Package infra は外部サービスとの接続を提供する。
package infra

import (
	"fmt"
	"strings"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/plugin/opentelemetry/tracing"

	"clinic-deploy/config"
)

// NewDB はgormによるデータベース接続を初期化する。
// DSNが "mysql://" で始まる場合はMySQL、それ以外はSQLiteとして扱う。
func NewDB(dsn string, cfg *config.Config) (*gorm.DB, error) {
	dialector := openDialector(dsn)
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}

	if cfg != nil && cfg.OtelEnabled {
		if err := db.Use(tracing.NewPlugin()); err != nil {
			return nil, fmt.Errorf("registering tracing plugin: %w", err)
		}
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	// 接続プール設定
	if dialector.Name() == "sqlite" {
		// インメモリDBは接続ごとに別DBになるため1本に固定する
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxOpenConns(10)
		sqlDB.SetMaxIdleConns(5)
		sqlDB.SetConnMaxLifetime(30 * time.Minute)
	}

	return db, nil
}

func openDialector(dsn string) gorm.Dialector {
	if rest, ok := strings.CutPrefix(dsn, "mysql://"); ok {
		return mysql.Open(rest)
	}
	return sqlite.Open(strings.TrimPrefix(dsn, "sqlite://"))
}
