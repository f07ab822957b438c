package render

import (
	"database/sql"
	"strings"
	"testing"
	"time"

	"battery-log-api/db"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatValue(t *testing.T) {
	tests := []struct {
		name  string
		field db.Field
		value any
		want  string
	}{
		{"voltage two decimals", db.LogBateria.Fields[0], 3.7, "3.70 V"},
		{"percentage one decimal", db.LogBateria.Fields[1], 87.26, "87.3%"},
		{"integer percentage", db.LogBateria.Fields[2], 95.0, "95%"},
		{"plain integer", db.LogBateria.Fields[3], int64(120), "120"},
		{"capacity", db.LogBateria.Fields[4], 2500.0, "2500 mAh"},
		{"resistance", db.LogTeste.Fields[0], 45.2, "45.2 mΩ"},
		{"seconds", db.LogTeste.Fields[1], 3.14, "3.1 s"},
		{"text", db.LogTeste.Fields[3], "PASS", "PASS"},
		{"null", db.LogTeste.Fields[0], nil, "-"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatValue(tt.field, tt.value))
		})
	}
}

func TestRenderListing(t *testing.T) {
	r := New(time.UTC)
	r.now = func() time.Time { return time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC) }

	records := []db.Record{
		{
			ID:           2,
			DeviceID:     sql.NullString{String: "E1", Valid: true},
			SubjectID:    sql.NullString{String: "<S9>", Valid: true},
			ReceivedAt:   time.Date(2026, 10, 15, 8, 59, 58, 500, time.UTC),
			Measurements: []any{45.2, 3.1, 1.5, "PASS"},
		},
		{
			ID:           1,
			ReceivedAt:   time.Date(2026, 10, 15, 8, 0, 0, 0, time.UTC),
			Measurements: []any{nil, nil, nil, nil},
		},
	}

	out, err := r.Render(db.LogTeste, records)
	require.NoError(t, err)
	html := string(out)

	assert.Contains(t, html, "<title>Log de Testes</title>")
	assert.Contains(t, html, "2026-10-15 08:59:58")
	assert.Contains(t, html, "45.2 mΩ")
	assert.Contains(t, html, "1.5%")
	assert.Contains(t, html, "&lt;S9&gt;")
	assert.NotContains(t, html, "<S9>")
	assert.Contains(t, html, "2 registros")
	assert.Less(t, strings.Index(html, ">2</td>"), strings.Index(html, ">1</td>"))
}

func TestRenderTimezone(t *testing.T) {
	loc := time.FixedZone("BRT", -3*60*60)
	r := New(loc)
	assert.Equal(t, "2026-10-15 05:00:00", r.FormatTime(time.Date(2026, 10, 15, 8, 0, 0, 0, time.UTC)))
	assert.Equal(t, "-", r.FormatTime(time.Time{}))
}

func TestRenderEmpty(t *testing.T) {
	out, err := New(nil).Render(db.LogBateria, nil)
	require.NoError(t, err)
	assert.Contains(t, string(out), "Nenhum registro.")
}

func TestRenderRejectsMisalignedRecord(t *testing.T) {
	_, err := New(nil).Render(db.LogBateria, []db.Record{{ID: 1, Measurements: []any{1.0}}})
	assert.Error(t, err)
}
