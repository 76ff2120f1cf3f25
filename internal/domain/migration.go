package domain

import "time"

// Migration は適用対象のマイグレーションを表すドメインモデル。
type Migration struct {
	Name     string // マイグレーション名（例: "Core Entities"）
	FilePath string // SQLファイルのパス
}

// ExecResult は1ステートメントの実行結果を表す。
type ExecResult struct {
	Statement string
	Payload   string // 成功時のレスポンスボディ
	Err       error  // 失敗時のエラー（成功時はnil）
}

// Success はステートメントが成功したかを返す。
func (r ExecResult) Success() bool {
	return r.Err == nil
}

// MigrationReport は1マイグレーションの適用結果を表す。
type MigrationReport struct {
	Migration Migration
	Total     int
	Succeeded int
	Results   []ExecResult
	Err       error // ファイル読み込み失敗など、ステートメント実行前のエラー
	StartedAt time.Time
	Duration  time.Duration
}

// FullyApplied は全ステートメントが成功したかを返す。ステートメントが0件の場合は適用扱いにしない。
func (r *MigrationReport) FullyApplied() bool {
	return r.Err == nil && r.Total > 0 && r.Succeeded == r.Total
}

// RunReport は1回の実行全体の結果を表す。
type RunReport struct {
	RunID      string
	Migrations []*MigrationReport
}

// AppliedCount は完全に適用されたマイグレーション数を返す。
func (r *RunReport) AppliedCount() int {
	count := 0
	for _, m := range r.Migrations {
		if m.FullyApplied() {
			count++
		}
	}
	return count
}

// AllApplied は全マイグレーションが完全に適用されたかを返す。
func (r *RunReport) AllApplied() bool {
	return r.AppliedCount() == len(r.Migrations)
}

// MigrationRecord は実行履歴として保存されたマイグレーション結果を表す。
type MigrationRecord struct {
	RunID     string
	Name      string
	FilePath  string
	Total     int
	Succeeded int
	Applied   bool
	Error     string
	AppliedAt time.Time
}
