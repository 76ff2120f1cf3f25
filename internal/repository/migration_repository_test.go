package repository

import (
	"context"
	"testing"

	"clinic-deploy/internal/domain"
)

func TestMigrationRepository_RecordAndFind(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	repo := NewMigrationRepository(db)
	if err := repo.AutoMigrate(ctx); err != nil {
		t.Fatalf("AutoMigrate failed: %v", err)
	}

	applied := &domain.MigrationReport{
		Migration: domain.Migration{Name: "Core Entities", FilePath: "001.sql"},
		Total:     3,
		Succeeded: 3,
	}
	partial := &domain.MigrationReport{
		Migration: domain.Migration{Name: "Patients Management", FilePath: "002.sql"},
		Total:     2,
		Succeeded: 1,
	}
	missing := &domain.MigrationReport{
		Migration: domain.Migration{Name: "Appointments & Sessions", FilePath: "003.sql"},
		Err:       domain.ErrMigrationFileNotFound,
	}

	for _, report := range []*domain.MigrationReport{applied, partial, missing} {
		if err := repo.RecordMigration(ctx, "run-1", report); err != nil {
			t.Fatalf("RecordMigration failed: %v", err)
		}
	}

	records, err := repo.FindRecent(ctx, 0)
	if err != nil {
		t.Fatalf("FindRecent failed: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("want 3 records, got %d", len(records))
	}

	byName := make(map[string]*domain.MigrationRecord)
	for _, r := range records {
		if r.RunID != "run-1" {
			t.Errorf("want run-1, got %s", r.RunID)
		}
		byName[r.Name] = r
	}
	if !byName["Core Entities"].Applied {
		t.Error("Core Entities should be applied")
	}
	if byName["Patients Management"].Applied {
		t.Error("Patients Management should not be applied")
	}
	if byName["Appointments & Sessions"].Error != domain.ErrMigrationFileNotFound.Error() {
		t.Errorf("unexpected error text: %q", byName["Appointments & Sessions"].Error)
	}

	limited, err := repo.FindRecent(ctx, 2)
	if err != nil {
		t.Fatalf("FindRecent failed: %v", err)
	}
	if len(limited) != 2 {
		t.Errorf("want 2 records, got %d", len(limited))
	}
}

func TestMigrationRepository_RecordWithoutTable(t *testing.T) {
	db := setupTestDB(t)
	repo := NewMigrationRepository(db)

	err := repo.RecordMigration(context.Background(), "run-1", &domain.MigrationReport{})
	if err == nil {
		t.Fatal("expected error when table does not exist")
	}
}
