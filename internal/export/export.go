// Package export はLGPDデータポータビリティ用の患者データ出力（JSON・CSV・PDF）を提供する。
package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"
	"time"

	"clinic-deploy/internal/domain"
)

// Document はJSONエクスポートの形式。
type Document struct {
	PatientID  string `json:"patient_id"`
	ExportedAt string `json:"exported_at"`
	Data       Data   `json:"data"`
}

// Data はエクスポート対象の患者データ。
type Data struct {
	Patient      PatientRecord       `json:"patient"`
	Appointments []AppointmentRecord `json:"appointments"`
	Sessions     []SessionRecord     `json:"sessions"`
	PainPoints   []PainPointRecord   `json:"pain_points"`
}

// PatientRecord は患者の登録情報。
type PatientRecord struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	CPF       string `json:"cpf"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	BirthDate string `json:"birth_date,omitempty"`
	Active    bool   `json:"active"`
	CreatedAt string `json:"created_at"`
}

// AppointmentRecord は予約の記録。
type AppointmentRecord struct {
	ID              string `json:"id"`
	AppointmentDate string `json:"appointment_date"`
	DurationMinutes int    `json:"duration_minutes"`
	Notes           string `json:"notes,omitempty"`
}

// SessionRecord は施術セッションの記録。
type SessionRecord struct {
	ID          string `json:"id"`
	SessionType string `json:"session_type"`
	SessionDate string `json:"session_date"`
}

// PainPointRecord は疼痛部位の記録。
type PainPointRecord struct {
	ID            string              `json:"id"`
	SessionID     string              `json:"session_id"`
	BodyRegion    string              `json:"body_region"`
	PainIntensity int                 `json:"pain_intensity"`
	Coordinates   *domain.Coordinates `json:"coordinates,omitempty"`
	Notes         string              `json:"notes,omitempty"`
}

// NewDocument はエクスポート結果をJSON出力用の形式に変換する。
func NewDocument(e *domain.PatientExport) Document {
	p := e.Patient
	doc := Document{
		PatientID:  p.ID,
		ExportedAt: e.ExportedAt.UTC().Format(time.RFC3339),
		Data: Data{
			Patient: PatientRecord{
				ID:        p.ID,
				Name:      p.Name,
				CPF:       p.CPF,
				Email:     p.Email,
				Phone:     p.Phone,
				BirthDate: p.BirthDate,
				Active:    p.Active,
				CreatedAt: p.CreatedAt.UTC().Format(time.RFC3339),
			},
			Appointments: make([]AppointmentRecord, 0, len(e.Appointments)),
			Sessions:     make([]SessionRecord, 0, len(e.Sessions)),
			PainPoints:   make([]PainPointRecord, 0, len(e.PainPoints)),
		},
	}
	for _, a := range e.Appointments {
		doc.Data.Appointments = append(doc.Data.Appointments, AppointmentRecord{
			ID:              a.ID,
			AppointmentDate: a.AppointmentDate.UTC().Format(time.RFC3339),
			DurationMinutes: a.DurationMinutes,
			Notes:           a.Notes,
		})
	}
	for _, s := range e.Sessions {
		doc.Data.Sessions = append(doc.Data.Sessions, SessionRecord{
			ID:          s.ID,
			SessionType: s.SessionType,
			SessionDate: s.SessionDate.UTC().Format(time.RFC3339),
		})
	}
	for _, pp := range e.PainPoints {
		doc.Data.PainPoints = append(doc.Data.PainPoints, PainPointRecord{
			ID:            pp.ID,
			SessionID:     pp.SessionID,
			BodyRegion:    pp.BodyRegion,
			PainIntensity: pp.PainIntensity,
			Coordinates:   pp.Coordinates,
			Notes:         pp.Notes,
		})
	}
	return doc
}

// csvHeader はCSVエクスポートの列。1行が1レコードに対応する。
var csvHeader = []string{"record_type", "id", "field", "value"}

// rows はエクスポート内容を「レコード種別・ID・項目・値」の行に展開する。
func rows(doc Document) [][]string {
	d := doc.Data
	p := d.Patient
	out := [][]string{
		{"patient", p.ID, "name", p.Name},
		{"patient", p.ID, "cpf", p.CPF},
		{"patient", p.ID, "email", p.Email},
		{"patient", p.ID, "phone", p.Phone},
		{"patient", p.ID, "birth_date", p.BirthDate},
		{"patient", p.ID, "active", strconv.FormatBool(p.Active)},
		{"patient", p.ID, "created_at", p.CreatedAt},
	}
	for _, a := range d.Appointments {
		out = append(out,
			[]string{"appointment", a.ID, "appointment_date", a.AppointmentDate},
			[]string{"appointment", a.ID, "duration_minutes", strconv.Itoa(a.DurationMinutes)},
			[]string{"appointment", a.ID, "notes", a.Notes},
		)
	}
	for _, s := range d.Sessions {
		out = append(out,
			[]string{"session", s.ID, "session_type", s.SessionType},
			[]string{"session", s.ID, "session_date", s.SessionDate},
		)
	}
	for _, pp := range d.PainPoints {
		out = append(out,
			[]string{"pain_point", pp.ID, "session_id", pp.SessionID},
			[]string{"pain_point", pp.ID, "body_region", pp.BodyRegion},
			[]string{"pain_point", pp.ID, "pain_intensity", strconv.Itoa(pp.PainIntensity)},
		)
		if pp.Coordinates != nil {
			out = append(out, []string{"pain_point", pp.ID, "coordinates",
				fmt.Sprintf("%g,%g", pp.Coordinates.X, pp.Coordinates.Y)})
		}
	}
	return out
}

// CSV はエクスポート内容をCSVに変換する。
func CSV(e *domain.PatientExport) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(csvHeader); err != nil {
		return nil, fmt.Errorf("writing csv header: %w", err)
	}
	if err := w.WriteAll(rows(NewDocument(e))); err != nil {
		return nil, fmt.Errorf("writing csv rows: %w", err)
	}
	return buf.Bytes(), nil
}

// PDF はエクスポート内容を1ページのテキストPDFに変換する。
// 1ページに収まらない行は切り捨てる。
func PDF(e *domain.PatientExport) ([]byte, error) {
	doc := NewDocument(e)
	lines := []string{
		"LGPD data export",
		"Patient: " + doc.PatientID,
		"Exported at: " + doc.ExportedAt,
		"",
	}
	for _, r := range rows(doc) {
		lines = append(lines, strings.Join(r, " | "))
	}
	return renderPDF(lines), nil
}

const (
	pdfLineHeight = 14
	pdfTopY       = 800
	pdfMaxLines   = 55
)

// escapePDFText はPDFの文字列リテラル用に括弧とバックスラッシュをエスケープし、
// 標準フォントで表示できない文字を置き換える。
func escapePDFText(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r == '(' || r == ')' || r == '\\':
			b.WriteByte('\\')
			b.WriteRune(r)
		case r < 0x20 || r > 0x7e:
			b.WriteByte('?')
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

func renderPDF(lines []string) []byte {
	if len(lines) > pdfMaxLines {
		lines = lines[:pdfMaxLines]
	}

	var content strings.Builder
	content.WriteString("BT\n/F1 10 Tf\n")
	fmt.Fprintf(&content, "%d TL\n50 %d Td\n", pdfLineHeight, pdfTopY)
	for _, line := range lines {
		fmt.Fprintf(&content, "(%s) Tj T*\n", escapePDFText(line))
	}
	content.WriteString("ET\n")
	stream := content.String()

	objects := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 >>",
		"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 595 842] /Contents 4 0 R /Resources << /Font << /F1 5 0 R >> >> >>",
		fmt.Sprintf("<< /Length %d >>\nstream\n%sendstream", len(stream), stream),
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica >>",
	}

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}

	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", len(objects)+1)
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)
	return buf.Bytes()
}
