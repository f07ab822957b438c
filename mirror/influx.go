package mirror

import (
	"context"
	"fmt"

	"battery-log-api/db"
	"battery-log-api/telemetry"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

const httpTimeoutSeconds = 5

type InfluxConfig struct {
	URL    string
	Token  string
	Org    string
	Bucket string
}

// Influx writes every committed record to InfluxDB as one point.
type Influx struct {
	client influxdb2.Client
	writer api.WriteAPIBlocking
}

var _ telemetry.Mirror = (*Influx)(nil)

func NewInflux(cfg InfluxConfig) *Influx {
	opts := influxdb2.DefaultOptions().SetHTTPRequestTimeout(httpTimeoutSeconds)
	client := influxdb2.NewClientWithOptions(cfg.URL, cfg.Token, opts)
	return &Influx{
		client: client,
		writer: client.WriteAPIBlocking(cfg.Org, cfg.Bucket),
	}
}

func (m *Influx) Mirror(ctx context.Context, rec telemetry.Committed) error {
	p := PointFor(rec)
	if p == nil {
		return nil
	}
	if err := m.writer.WritePoint(ctx, p); err != nil {
		return fmt.Errorf("failed to write point: %w", err)
	}
	return nil
}

func (m *Influx) Close() {
	m.client.Close()
}

// PointFor converts a committed record into a point named after its stream.
// Device and subject ids become tags; non-null measurements become fields.
// It returns nil when the record carries no measurement at all, since
// InfluxDB rejects points without fields.
func PointFor(rec telemetry.Committed) *write.Point {
	stream := rec.Stream

	tags := map[string]string{}
	if v, ok := rec.Values[db.DeviceKey].(string); ok && v != "" {
		tags[db.DeviceKey] = v
	}
	if v, ok := rec.Values[stream.SubjectKey].(string); ok && v != "" {
		tags[stream.SubjectKey] = v
	}

	fields := map[string]interface{}{}
	for _, f := range stream.Fields {
		if v, ok := fieldValue(f, rec.Values[f.Name]); ok {
			fields[f.Name] = v
		}
	}
	if len(fields) == 0 {
		return nil
	}
	fields["record_id"] = rec.ID

	return write.NewPoint(stream.Name, tags, fields, rec.ReceivedAt)
}

func fieldValue(f db.Field, v any) (any, bool) {
	switch val := v.(type) {
	case int64:
		if f.Kind == db.KindReal {
			return float64(val), true
		}
		return val, true
	case float64:
		return val, true
	case string:
		if f.Kind == db.KindText {
			return val, true
		}
	case bool:
		return val, true
	}
	return nil, false
}
