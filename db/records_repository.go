package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// MaxListLimit caps how many rows a listing may return.
const MaxListLimit = 100

// InsertRecord binds every stream column positionally and returns the id
// and receipt time the store assigned.
func InsertRecord(ctx context.Context, q DBTX, stream *Stream, values Values) (int64, time.Time, error) {
	cols := stream.Columns()
	placeholders := make([]string, len(cols))
	args := make([]any, len(cols))
	for i, col := range cols {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = values[col]
	}

	query := fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s) RETURNING id, received_at",
		stream.Name, strings.Join(cols, ", "), strings.Join(placeholders, ", "),
	)

	var (
		id         int64
		receivedAt timestamp
	)
	if err := q.QueryRowContext(ctx, query, args...).Scan(&id, &receivedAt); err != nil {
		return 0, time.Time{}, fmt.Errorf("failed to insert into %s: %w", stream.Name, err)
	}

	return id, receivedAt.Time, nil
}

// ListRecent returns up to limit rows, newest id first.
func ListRecent(ctx context.Context, q DBTX, stream *Stream, limit int) ([]Record, error) {
	if limit < 1 || limit > MaxListLimit {
		limit = MaxListLimit
	}

	cols := append([]string{"id", "received_at"}, stream.Columns()...)
	query := fmt.Sprintf(
		"SELECT %s FROM %s ORDER BY id DESC LIMIT $1",
		strings.Join(cols, ", "), stream.Name,
	)

	rows, err := q.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", stream.Name, err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		rec, err := scanRecord(rows, stream)
		if err != nil {
			return nil, fmt.Errorf("failed to scan %s row: %w", stream.Name, err)
		}
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read %s rows: %w", stream.Name, err)
	}

	return records, nil
}

// CountRecords returns the number of rows in the stream table.
func CountRecords(ctx context.Context, q DBTX, stream *Stream) (int, error) {
	var n int
	if err := q.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+stream.Name).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", stream.Name, err)
	}
	return n, nil
}

func scanRecord(rows *sql.Rows, stream *Stream) (Record, error) {
	var (
		rec        Record
		receivedAt timestamp
	)

	measurements := make([]any, len(stream.Fields))
	dest := make([]any, 0, len(stream.Fields)+4)
	dest = append(dest, &rec.ID, &receivedAt, &rec.DeviceID, &rec.SubjectID)
	for i, f := range stream.Fields {
		if f.Kind == KindText {
			measurements[i] = new(sql.NullString)
		} else {
			measurements[i] = new(sql.NullFloat64)
		}
		dest = append(dest, measurements[i])
	}

	if err := rows.Scan(dest...); err != nil {
		return Record{}, err
	}

	rec.ReceivedAt = receivedAt.Time
	rec.Measurements = make([]any, len(stream.Fields))
	for i, m := range measurements {
		switch v := m.(type) {
		case *sql.NullString:
			if v.Valid {
				rec.Measurements[i] = v.String
			}
		case *sql.NullFloat64:
			if v.Valid {
				rec.Measurements[i] = v.Float64
			}
		}
	}

	return rec, nil
}

var timestampLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02T15:04:05.999999999Z07:00",
	"2006-01-02T15:04:05",
}

// timestamp scans receipt times from either driver: pgx yields time.Time,
// sqlite yields CURRENT_TIMESTAMP text in UTC.
type timestamp struct {
	time.Time
}

func (t *timestamp) Scan(src any) error {
	switch v := src.(type) {
	case time.Time:
		t.Time = v.UTC()
		return nil
	case string:
		return t.parse(v)
	case []byte:
		return t.parse(string(v))
	case nil:
		t.Time = time.Time{}
		return nil
	default:
		return fmt.Errorf("unsupported timestamp type %T", src)
	}
}

func (t *timestamp) parse(s string) error {
	for _, layout := range timestampLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			t.Time = parsed.UTC()
			return nil
		}
	}
	return fmt.Errorf("unrecognised timestamp %q", s)
}
