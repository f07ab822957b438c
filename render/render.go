package render

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"strconv"
	"time"

	"battery-log-api/db"
)

// TimeLayout is how receipt times appear in listings.
const TimeLayout = "2006-01-02 15:04:05"

const missing = "-"

//go:embed templates/listing.html
var templatesFS embed.FS

var listingTemplate = template.Must(template.ParseFS(templatesFS, "templates/listing.html"))

type cell struct {
	Value string
	Text  bool
}

type page struct {
	Title       string
	Headers     []string
	Rows        [][]cell
	Count       int
	GeneratedAt string
}

// Renderer turns records into the HTML listing page.
type Renderer struct {
	loc *time.Location
	now func() time.Time
}

func New(loc *time.Location) *Renderer {
	if loc == nil {
		loc = time.UTC
	}
	return &Renderer{loc: loc, now: time.Now}
}

// Render returns the complete page or an error; it never returns a partial
// document.
func (r *Renderer) Render(stream *db.Stream, records []db.Record) ([]byte, error) {
	p := page{
		Title:       stream.Title,
		Headers:     Headers(stream),
		Rows:        make([][]cell, 0, len(records)),
		Count:       len(records),
		GeneratedAt: r.now().In(r.loc).Format(TimeLayout),
	}

	for _, rec := range records {
		if len(rec.Measurements) != len(stream.Fields) {
			return nil, fmt.Errorf("record %d has %d measurements, stream %s has %d fields",
				rec.ID, len(rec.Measurements), stream.Name, len(stream.Fields))
		}
		p.Rows = append(p.Rows, r.row(stream, rec))
	}

	var buf bytes.Buffer
	if err := listingTemplate.Execute(&buf, p); err != nil {
		return nil, fmt.Errorf("failed to render %s: %w", stream.Name, err)
	}
	return buf.Bytes(), nil
}

// Headers returns the column titles in display order.
func Headers(stream *db.Stream) []string {
	h := []string{"ID", "Recebido em", "ESP32", stream.SubjectLabel}
	for _, f := range stream.Fields {
		h = append(h, f.Label)
	}
	return h
}

func (r *Renderer) row(stream *db.Stream, rec db.Record) []cell {
	cells := []cell{
		{Value: strconv.FormatInt(rec.ID, 10)},
		{Value: r.FormatTime(rec.ReceivedAt)},
		{Value: nullString(rec.DeviceID.String, rec.DeviceID.Valid), Text: true},
		{Value: nullString(rec.SubjectID.String, rec.SubjectID.Valid), Text: true},
	}
	for i, f := range stream.Fields {
		cells = append(cells, cell{Value: FormatValue(f, rec.Measurements[i]), Text: f.Kind == db.KindText})
	}
	return cells
}

// FormatTime renders t in the configured zone as YYYY-MM-DD HH:MM:SS.
func (r *Renderer) FormatTime(t time.Time) string {
	if t.IsZero() {
		return missing
	}
	return t.In(r.loc).Format(TimeLayout)
}

// FormatValue applies the field's precision and unit suffix.
func FormatValue(f db.Field, v any) string {
	var s string
	switch val := v.(type) {
	case nil:
		return missing
	case float64:
		if f.Kind == db.KindText {
			s = strconv.FormatFloat(val, 'f', -1, 64)
		} else {
			s = strconv.FormatFloat(val, 'f', f.Precision, 64)
		}
	case int64:
		s = strconv.FormatFloat(float64(val), 'f', f.Precision, 64)
	case string:
		s = val
	default:
		s = fmt.Sprint(val)
	}

	if f.Unit == "" {
		return s
	}
	if f.Unit == "%" {
		return s + f.Unit
	}
	return s + " " + f.Unit
}

func nullString(s string, valid bool) string {
	if !valid {
		return missing
	}
	return s
}
