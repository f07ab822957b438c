package db

import (
	"context"
	"database/sql"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tableColumns(t *testing.T, p *Provider, table string) []string {
	t.Helper()
	var cols []string
	err := p.WithConn(context.Background(), func(conn *sql.Conn) error {
		rows, err := conn.QueryContext(context.Background(), "SELECT * FROM "+table+" LIMIT 0")
		if err != nil {
			return err
		}
		defer rows.Close()
		cols, err = rows.Columns()
		return err
	})
	require.NoError(t, err)
	return cols
}

func TestEnsureIsIdempotent(t *testing.T) {
	p := newTestProvider(t)
	ctx := context.Background()

	first := NewSchema(p, Streams())
	require.NoError(t, first.Ensure(ctx))
	assert.True(t, first.Ready())
	before := tableColumns(t, p, LogTeste.Name)

	second := NewSchema(p, Streams())
	require.NoError(t, second.Ensure(ctx))
	require.NoError(t, second.Ensure(ctx))
	after := tableColumns(t, p, LogTeste.Name)

	assert.Equal(t, before, after)
	assert.Equal(t, []string{
		"id", "esp32_id", "serial_number", "received_at",
		"internal_resistance", "process_time_sec", "delta_soc", "resultado",
	}, after)
}

func TestEnsureKeepsExistingRows(t *testing.T) {
	p := newTestStore(t)
	ctx := context.Background()

	err := p.WithConn(ctx, func(conn *sql.Conn) error {
		_, _, err := InsertRecord(ctx, conn, LogBateria, Values{"esp32_id": "E1"})
		return err
	})
	require.NoError(t, err)

	require.NoError(t, NewSchema(p, Streams()).Ensure(ctx))

	err = p.WithConn(ctx, func(conn *sql.Conn) error {
		n, err := CountRecords(ctx, conn, LogBateria)
		assert.Equal(t, 1, n)
		return err
	})
	require.NoError(t, err)
}

func TestEnsureUnavailable(t *testing.T) {
	s := NewSchema(NewProvider(Config{Driver: DriverSQLite}), Streams())
	err := s.Ensure(context.Background())
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.False(t, s.Ready())
}

func TestCreateTableSQLDialects(t *testing.T) {
	pg := CreateTableSQL(LogBateria, false)
	assert.Contains(t, pg, "CREATE TABLE IF NOT EXISTS log_bateria")
	assert.Contains(t, pg, "id SERIAL PRIMARY KEY")
	assert.Contains(t, pg, "received_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP")
	assert.Contains(t, pg, "soh INTEGER")
	assert.Contains(t, pg, "voltagem REAL")
	assert.False(t, strings.HasSuffix(pg, "STRICT"))

	lite := CreateTableSQL(LogTeste, true)
	assert.Contains(t, lite, "id INTEGER PRIMARY KEY AUTOINCREMENT")
	assert.Contains(t, lite, "resultado TEXT")
	assert.True(t, strings.HasSuffix(lite, ") STRICT"))
}
