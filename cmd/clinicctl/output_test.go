package main

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"clinic-deploy/internal/domain"
	"clinic-deploy/internal/probe"
)

func TestPrintRunReport(t *testing.T) {
	run := &domain.RunReport{
		RunID: "run-1",
		Migrations: []*domain.MigrationReport{
			{
				Migration: domain.Migration{Name: "Core Entities"},
				Total:     2,
				Succeeded: 2,
				Results:   []domain.ExecResult{{Statement: "CREATE TABLE a (id int)"}, {Statement: "CREATE TABLE b (id int)"}},
			},
			{
				Migration: domain.Migration{Name: "Patients Management"},
				Total:     2,
				Succeeded: 1,
				Results: []domain.ExecResult{
					{Statement: "CREATE TABLE patients (id uuid)"},
					{Statement: "CREATE INDEX\n  idx_patients_cpf ON patients (cpf)", Err: errors.New("HTTP 400: boom")},
				},
			},
			{
				Migration: domain.Migration{Name: "Appointments & Sessions"},
				Err:       domain.ErrMigrationFileNotFound,
			},
		},
	}

	var buf bytes.Buffer
	if err := printRunReport(&buf, run); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	out := buf.String()

	for _, want := range []string{
		"applied",
		"partial",
		"error",
		"Patients Management statement 2: CREATE INDEX idx_patients_cpf ON patients (cpf)",
		"HTTP 400: boom",
		"Appointments & Sessions: migration file not found",
		"Run run-1: 1/3 migrations applied",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output should contain %q\n%s", want, out)
		}
	}
	if strings.Contains(out, "Core Entities statement") {
		t.Errorf("successful statements should not be listed\n%s", out)
	}
}

func TestPreviewStatement(t *testing.T) {
	long := "INSERT INTO patients (name) VALUES ('" + strings.Repeat("x", 100) + "')"

	got := previewStatement(long)
	if len(got) != statementPreviewLen+3 || !strings.HasSuffix(got, "...") {
		t.Errorf("want truncated preview, got %q", got)
	}
	if got := previewStatement("SELECT\n\t1"); got != "SELECT 1" {
		t.Errorf("want whitespace collapsed, got %q", got)
	}
}

func TestPrintHistory(t *testing.T) {
	at := time.Date(2025, 1, 15, 10, 0, 0, 0, time.UTC)
	records := []*domain.MigrationRecord{
		{RunID: "run-2", Name: "Core Entities", Total: 3, Succeeded: 3, Applied: true, AppliedAt: at},
		{RunID: "run-2", Name: "Patients Management", Total: 4, Succeeded: 1, AppliedAt: at},
	}

	var buf bytes.Buffer
	if err := printHistory(&buf, records); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "failed (1/4)") {
		t.Errorf("output should show partial counts\n%s", out)
	}
	if !strings.Contains(out, "2025-01-15 10:00:00") {
		t.Errorf("output should show applied time\n%s", out)
	}
}

func TestPrintProbeReport(t *testing.T) {
	report := &probe.Report{Results: []probe.Result{
		{Name: "auth-login", Duration: 120 * time.Millisecond},
		{Name: "patients-create", Err: probe.Failf("want 4xx, got 201")},
		{Name: "lgpd-export", CleanupErr: errors.New("cleanup archive patient p-1: boom")},
	}}

	var buf bytes.Buffer
	printProbeReport(&buf, report)
	out := buf.String()

	for _, want := range []string{
		"PASS  auth-login",
		"FAIL  patients-create",
		"want 4xx, got 201",
		"FAIL  lgpd-export",
		"cleanup archive patient p-1: boom",
		"1/3 scenarios passed",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output should contain %q\n%s", want, out)
		}
	}
}
