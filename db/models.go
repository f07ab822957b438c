package db

import (
	"database/sql"
	"time"
)

// FieldKind is the column type of a measurement field.
type FieldKind int

const (
	KindReal FieldKind = iota + 1
	KindInteger
	KindText
)

// Field is one measurement column. Name is both the JSON key devices send
// and the column name.
type Field struct {
	Name      string
	Label     string
	Kind      FieldKind
	Precision int
	Unit      string
}

// Stream describes one record table and the fields its devices report.
type Stream struct {
	Name         string
	Title        string
	SubjectKey   string
	SubjectLabel string
	Fields       []Field
}

// DeviceKey is the JSON key and column identifying the reporting board.
const DeviceKey = "esp32_id"

var LogBateria = &Stream{
	Name:         "log_bateria",
	Title:        "Log de Baterias",
	SubjectKey:   "battery_id",
	SubjectLabel: "Bateria",
	Fields: []Field{
		{Name: "voltagem", Label: "Voltagem", Kind: KindReal, Precision: 2, Unit: "V"},
		{Name: "porcentagem", Label: "Carga", Kind: KindReal, Precision: 1, Unit: "%"},
		{Name: "soh", Label: "SoH", Kind: KindInteger, Unit: "%"},
		{Name: "ciclos", Label: "Ciclos", Kind: KindInteger},
		{Name: "capacidade", Label: "Capacidade", Kind: KindInteger, Unit: "mAh"},
	},
}

var LogTeste = &Stream{
	Name:         "log_teste",
	Title:        "Log de Testes",
	SubjectKey:   "serial_number",
	SubjectLabel: "Nº de série",
	Fields: []Field{
		{Name: "internal_resistance", Label: "Resistência interna", Kind: KindReal, Precision: 1, Unit: "mΩ"},
		{Name: "process_time_sec", Label: "Tempo de processo", Kind: KindReal, Precision: 1, Unit: "s"},
		{Name: "delta_soc", Label: "ΔSoC", Kind: KindReal, Precision: 1, Unit: "%"},
		{Name: "resultado", Label: "Resultado", Kind: KindText},
	},
}

var streams = []*Stream{LogBateria, LogTeste}

// Streams returns every known stream.
func Streams() []*Stream {
	out := make([]*Stream, len(streams))
	copy(out, streams)
	return out
}

// LookupStream finds a stream by table name.
func LookupStream(name string) (*Stream, bool) {
	for _, s := range streams {
		if s.Name == name {
			return s, true
		}
	}
	return nil, false
}

// Columns lists the insertable columns in bind order.
func (s *Stream) Columns() []string {
	cols := make([]string, 0, len(s.Fields)+2)
	cols = append(cols, DeviceKey, s.SubjectKey)
	for _, f := range s.Fields {
		cols = append(cols, f.Name)
	}
	return cols
}

// Values holds the payload value for each column, keyed by column name. A
// missing key binds as NULL.
type Values map[string]any

// Extract picks the stream's known keys out of a decoded JSON object.
// Unknown keys are dropped.
func (s *Stream) Extract(payload map[string]any) Values {
	out := make(Values, len(s.Fields)+2)
	for _, col := range s.Columns() {
		if v, ok := payload[col]; ok {
			out[col] = v
		}
	}
	return out
}

// Record is one committed row. Measurements are aligned with Stream.Fields
// and hold nil, float64 or string.
type Record struct {
	ID           int64
	DeviceID     sql.NullString
	SubjectID    sql.NullString
	ReceivedAt   time.Time
	Measurements []any
}
