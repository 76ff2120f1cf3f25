package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"

	"clinic-deploy/internal/domain"
)

// manifest はマイグレーションマニフェスト（TOML）の形式。
//
//	[[migrations]]
//	name = "Core Entities"
//	file = "supabase/migrations/20250115_001_core_entities.sql"
type manifest struct {
	Migrations []struct {
		Name string `toml:"name"`
		File string `toml:"file"`
	} `toml:"migrations"`
}

// DefaultMigrations は組み込みのマイグレーション一覧を返す。
// パスはカレントディレクトリからの相対パス。
func DefaultMigrations() []domain.Migration {
	return []domain.Migration{
		{Name: "Core Entities", FilePath: "supabase/migrations/20250115_001_core_entities.sql"},
		{Name: "Patients Management", FilePath: "supabase/migrations/20250115_002_patients.sql"},
		{Name: "Appointments & Sessions", FilePath: "supabase/migrations/20250115_003_appointments_sessions.sql"},
	}
}

// LoadManifest はTOMLマニフェストからマイグレーション一覧を読み込む。
// 相対パスはマニフェストファイルのディレクトリを基準に解決する。
func LoadManifest(path string) ([]domain.Migration, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading manifest: %w", err)
	}

	var m manifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidManifest, err)
	}
	if len(m.Migrations) == 0 {
		return nil, fmt.Errorf("%w: no migrations declared in %s", domain.ErrInvalidManifest, path)
	}

	baseDir := filepath.Dir(path)
	migrations := make([]domain.Migration, 0, len(m.Migrations))
	for i, entry := range m.Migrations {
		if entry.Name == "" || entry.File == "" {
			return nil, fmt.Errorf("%w: entry %d requires name and file", domain.ErrInvalidManifest, i+1)
		}
		filePath := entry.File
		if !filepath.IsAbs(filePath) {
			filePath = filepath.Join(baseDir, filePath)
		}
		migrations = append(migrations, domain.Migration{Name: entry.Name, FilePath: filePath})
	}

	return migrations, nil
}

// Migrations はマニフェストが指定されていればそれを、なければ組み込みの一覧を返す。
func (c *Config) Migrations() ([]domain.Migration, error) {
	if c.MigrationsManifest == "" {
		return DefaultMigrations(), nil
	}
	return LoadManifest(c.MigrationsManifest)
}
