package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
)

// Schema creates the stream tables when they are missing. Ensure is cheap
// once it has succeeded, so it can also guard the write path.
type Schema struct {
	provider *Provider
	streams  []*Stream

	mu    sync.Mutex
	ready bool
}

func NewSchema(provider *Provider, streams []*Stream) *Schema {
	return &Schema{provider: provider, streams: streams}
}

// Ensure runs CREATE TABLE IF NOT EXISTS for every stream. Connection
// failures wrap ErrUnavailable.
func (s *Schema) Ensure(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ready {
		return nil
	}

	err := s.provider.WithConn(ctx, func(conn *sql.Conn) error {
		for _, stream := range s.streams {
			if _, err := conn.ExecContext(ctx, CreateTableSQL(stream, s.provider.IsSQLite())); err != nil {
				return fmt.Errorf("failed to create table %s: %w", stream.Name, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.ready = true
	return nil
}

// Ready reports whether Ensure has completed successfully.
func (s *Schema) Ready() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ready
}

// CreateTableSQL renders the DDL for stream in the postgres or sqlite dialect.
// SQLite tables are STRICT so column types are enforced the way postgres
// enforces them.
func CreateTableSQL(stream *Stream, sqlite bool) string {
	var b strings.Builder

	fmt.Fprintf(&b, "CREATE TABLE IF NOT EXISTS %s (\n", stream.Name)
	if sqlite {
		b.WriteString("\tid INTEGER PRIMARY KEY AUTOINCREMENT,\n")
	} else {
		b.WriteString("\tid SERIAL PRIMARY KEY,\n")
	}
	fmt.Fprintf(&b, "\t%s TEXT,\n", DeviceKey)
	fmt.Fprintf(&b, "\t%s TEXT,\n", stream.SubjectKey)
	if sqlite {
		b.WriteString("\treceived_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP")
	} else {
		b.WriteString("\treceived_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP")
	}
	for _, f := range stream.Fields {
		fmt.Fprintf(&b, ",\n\t%s %s", f.Name, columnType(f.Kind))
	}
	b.WriteString("\n)")
	if sqlite {
		b.WriteString(" STRICT")
	}

	return b.String()
}

func columnType(kind FieldKind) string {
	switch kind {
	case KindInteger:
		return "INTEGER"
	case KindText:
		return "TEXT"
	default:
		return "REAL"
	}
}
