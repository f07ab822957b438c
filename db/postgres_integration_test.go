package db

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// PostgresSuite runs the store against a real postgres container.
type PostgresSuite struct {
	suite.Suite

	ctx       context.Context
	container *postgres.PostgresContainer
	provider  *Provider
}

func TestPostgresSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping postgres container tests in short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	suite.Run(t, new(PostgresSuite))
}

func (s *PostgresSuite) SetupSuite() {
	s.ctx = context.Background()

	container, err := postgres.RunContainer(s.ctx,
		testcontainers.WithImage("postgres:16-alpine"),
		postgres.WithDatabase("telemetry"),
		postgres.WithUsername("telemetry"),
		postgres.WithPassword("telemetry"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	s.Require().NoError(err)
	s.container = container

	dsn, err := container.ConnectionString(s.ctx, "sslmode=disable")
	s.Require().NoError(err)

	s.provider = NewProvider(Config{Driver: DriverPostgres, DSN: dsn})
	s.Require().NoError(s.provider.Err())
	s.Require().NoError(NewSchema(s.provider, Streams()).Ensure(s.ctx))
}

func (s *PostgresSuite) TearDownSuite() {
	if s.provider != nil {
		s.provider.Close()
	}
	if s.container != nil {
		if err := s.container.Terminate(s.ctx); err != nil {
			s.T().Logf("failed to terminate postgres container: %v", err)
		}
	}
}

func (s *PostgresSuite) SetupTest() {
	err := s.provider.WithConn(s.ctx, func(conn *sql.Conn) error {
		for _, stream := range Streams() {
			if _, err := conn.ExecContext(s.ctx, "TRUNCATE "+stream.Name+" RESTART IDENTITY"); err != nil {
				return err
			}
		}
		return nil
	})
	s.Require().NoError(err)
}

func (s *PostgresSuite) TestSchemaIsIdempotent() {
	s.Require().NoError(NewSchema(s.provider, Streams()).Ensure(s.ctx))
	s.Require().NoError(NewSchema(s.provider, Streams()).Ensure(s.ctx))
}

func (s *PostgresSuite) TestInsertAndList() {
	var id int64
	err := s.provider.WithTx(s.ctx, func(tx *sql.Tx) error {
		var err error
		id, _, err = InsertRecord(s.ctx, tx, LogBateria, Values{
			"esp32_id":    "E1",
			"battery_id":  "B7",
			"voltagem":    3.7,
			"porcentagem": int64(80),
			"soh":         int64(95),
			"ciclos":      int64(120),
		})
		return err
	})
	s.Require().NoError(err)
	s.Equal(int64(1), id)

	var records []Record
	err = s.provider.WithConn(s.ctx, func(conn *sql.Conn) error {
		var err error
		records, err = ListRecent(s.ctx, conn, LogBateria, 10)
		return err
	})
	s.Require().NoError(err)
	s.Require().Len(records, 1)

	rec := records[0]
	s.Equal("B7", rec.SubjectID.String)
	s.InDelta(3.7, rec.Measurements[0].(float64), 1e-6)
	s.Equal(80.0, rec.Measurements[1])
	s.Equal(95.0, rec.Measurements[2])
	s.Nil(rec.Measurements[4])
	s.WithinDuration(time.Now(), rec.ReceivedAt, time.Minute)
}

func (s *PostgresSuite) TestIntegerColumnRejectsText() {
	err := s.provider.WithTx(s.ctx, func(tx *sql.Tx) error {
		_, _, err := InsertRecord(s.ctx, tx, LogBateria, Values{"soh": "full"})
		return err
	})
	s.Error(err)

	err = s.provider.WithConn(s.ctx, func(conn *sql.Conn) error {
		n, err := CountRecords(s.ctx, conn, LogBateria)
		s.Equal(0, n)
		return err
	})
	s.Require().NoError(err)
}

func (s *PostgresSuite) TestConcurrentInsertsGetDistinctIDs() {
	const workers = 20

	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		ids = map[int64]bool{}
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.provider.WithTx(s.ctx, func(tx *sql.Tx) error {
				id, _, err := InsertRecord(s.ctx, tx, LogTeste, Values{"resultado": "PASS"})
				if err == nil {
					mu.Lock()
					ids[id] = true
					mu.Unlock()
				}
				return err
			})
			s.NoError(err)
		}()
	}
	wg.Wait()

	s.Len(ids, workers)
}
