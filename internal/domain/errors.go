package domain

import "errors"

var (
	// ErrMigrationFileNotFound はマイグレーションファイルが見つからない場合のエラー。
	ErrMigrationFileNotFound = errors.New("migration file not found")

	// ErrInvalidManifest はマイグレーションマニフェストのフォーマットが不正な場合のエラー。
	ErrInvalidManifest = errors.New("invalid migration manifest")

	// ErrEmptyMigration は実行可能なステートメントを含まないマイグレーションのエラー。
	ErrEmptyMigration = errors.New("migration has no statements")

	// ErrConnectionFailed は接続確認に失敗した場合のエラー。
	ErrConnectionFailed = errors.New("connection check failed")

	// ErrStatementFailed はステートメントがプライマリ・フォールバックの両方で失敗した場合のエラー。
	ErrStatementFailed = errors.New("statement failed")

	// ErrMissingServiceKey はサービスロールキーが設定されていない場合のエラー。
	ErrMissingServiceKey = errors.New("service role key is not set")

	// ErrPatientNotFound は指定された患者が存在しない場合のエラー。
	ErrPatientNotFound = errors.New("patient not found")

	// ErrDuplicateCPF は同じCPFの有効な患者が既に存在する場合のエラー。
	ErrDuplicateCPF = errors.New("patient with this CPF already exists")

	// ErrAppointmentNotFound は指定された予約が存在しない場合のエラー。
	ErrAppointmentNotFound = errors.New("appointment not found")

	// ErrAppointmentConflict は同じ患者の予約時間が重複する場合のエラー。
	ErrAppointmentConflict = errors.New("appointment conflicts with an existing one")

	// ErrSessionNotFound は指定されたセッションが存在しない場合のエラー。
	ErrSessionNotFound = errors.New("session not found")

	// ErrInvalidCredentials は認証情報が不正な場合のエラー。
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrUserDisabled はユーザーが無効化されている場合のエラー。
	ErrUserDisabled = errors.New("user is disabled")

	// ErrUnauthenticated は認証されていない場合のエラー。
	ErrUnauthenticated = errors.New("unauthenticated")

	// ErrUnsupportedExportFormat はエクスポート形式が未対応の場合のエラー。
	ErrUnsupportedExportFormat = errors.New("unsupported export format")
)

// ValidationError は入力値の検証エラーを表す。
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}
