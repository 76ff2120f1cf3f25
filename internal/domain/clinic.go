// Package domain はドメインモデルとビジネスルールを定義する。
package domain

import "time"

// Patient は患者エンティティを表す。
type Patient struct {
	ID        string
	Name      string
	CPF       string
	Email     string
	Phone     string
	BirthDate string // YYYY-MM-DD（任意）
	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// PatientFilter は患者一覧の検索条件を表す。
type PatientFilter struct {
	Search string
	Page   int // 1始まり
	Limit  int // 0は無制限
}

// Appointment は予約エンティティを表す。
type Appointment struct {
	ID              string
	PatientID       string
	AppointmentDate time.Time
	DurationMinutes int
	Notes           string
	CreatedAt       time.Time
}

// End は予約の終了時刻を返す。
func (a *Appointment) End() time.Time {
	return a.AppointmentDate.Add(time.Duration(a.DurationMinutes) * time.Minute)
}

// Overlaps は2つの予約の時間帯が重なるかを返す。
func (a *Appointment) Overlaps(other *Appointment) bool {
	return a.AppointmentDate.Before(other.End()) && other.AppointmentDate.Before(a.End())
}

// Session は施術セッションを表す。
type Session struct {
	ID          string
	PatientID   string
	SessionType string
	SessionDate time.Time
	CreatedAt   time.Time
}

// Coordinates はボディマップ上の座標を表す。
type Coordinates struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// PainPoint はセッションに登録された疼痛部位を表す。
type PainPoint struct {
	ID            string
	SessionID     string
	BodyRegion    string
	PainIntensity int // 0〜10
	Coordinates   *Coordinates
	Notes         string
	CreatedAt     time.Time
}

// User はクリニックAPIの利用者を表す。
type User struct {
	Email        string
	Name         string
	Role         string
	PasswordHash []byte
	Disabled     bool
}

// ExportFormat はLGPDエクスポートの出力形式を表す。
type ExportFormat string

const (
	ExportFormatJSON ExportFormat = "json"
	ExportFormatCSV  ExportFormat = "csv"
	ExportFormatPDF  ExportFormat = "pdf"
)

// PatientExport はLGPDデータポータビリティ用に集約した患者データを表す。
type PatientExport struct {
	Patient      *Patient
	Appointments []*Appointment
	Sessions     []*Session
	PainPoints   []*PainPoint
	ExportedAt   time.Time
}

// ParseExportFormat は文字列をExportFormatに変換する。空文字列はJSONとして扱う。
func ParseExportFormat(s string) (ExportFormat, error) {
	switch f := ExportFormat(s); f {
	case "":
		return ExportFormatJSON, nil
	case ExportFormatJSON, ExportFormatCSV, ExportFormatPDF:
		return f, nil
	default:
		return "", ErrUnsupportedExportFormat
	}
}
