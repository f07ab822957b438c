package telemetry

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"battery-log-api/db"
	"battery-log-api/metrics"

	"go.uber.org/zap"
)

const mirrorTimeout = 5 * time.Second

// Committed describes a row that has been durably stored.
type Committed struct {
	Stream     *db.Stream
	ID         int64
	ReceivedAt time.Time
	Values     db.Values
}

// Mirror receives a copy of each committed record. Failures are logged and
// never affect the ingestion result.
type Mirror interface {
	Mirror(ctx context.Context, rec Committed) error
}

// Endpoint is one ingestion route: which stream it writes to and whether the
// shared secret is required.
type Endpoint struct {
	Stream        *db.Stream
	RequireAPIKey bool
}

type Service struct {
	provider *db.Provider
	schema   *db.Schema
	streams  map[string]*db.Stream
	auth     *Authenticator
	mirror   Mirror
	metrics  *metrics.Metrics
	logger   *zap.Logger
}

type Options struct {
	Provider *db.Provider
	Schema   *db.Schema
	// Streams limits Lookup to the enabled streams. Empty means every
	// built-in stream.
	Streams  []*db.Stream
	Auth     *Authenticator
	Mirror   Mirror
	Metrics  *metrics.Metrics
	Logger   *zap.Logger
}

func NewService(opts Options) *Service {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	streams := opts.Streams
	if len(streams) == 0 {
		streams = db.Streams()
	}
	byName := make(map[string]*db.Stream, len(streams))
	for _, stream := range streams {
		byName[stream.Name] = stream
	}

	return &Service{
		provider: opts.Provider,
		schema:   opts.Schema,
		streams:  byName,
		auth:     opts.Auth,
		mirror:   opts.Mirror,
		metrics:  opts.Metrics,
		logger:   logger.With(zap.String("component", "telemetry")),
	}
}

// Ingest authenticates, decodes and stores one record. Exactly one row is
// written when it returns nil and none otherwise.
func (s *Service) Ingest(ctx context.Context, ep Endpoint, body []byte, apiKey string) (*Committed, error) {
	const op = "ingest"
	stream := ep.Stream
	log := s.logger.With(zap.String("stream", stream.Name))

	if ep.RequireAPIKey && !s.auth.Authenticate(apiKey) {
		log.Warn("unauthorized ingestion attempt", zap.Bool("key_present", apiKey != ""))
		return nil, s.fail(stream, op, KindAuth, nil)
	}

	payload, err := DecodePayload(body)
	if err != nil {
		log.Info("rejected payload", zap.Error(err))
		return nil, s.fail(stream, op, KindValidation, err)
	}
	log.Debug("received payload", zap.Any("payload", payload))

	values := stream.Extract(payload)

	if err := s.ensureSchema(ctx); err != nil {
		log.Error("schema not available", zap.Error(err))
		return nil, s.fail(stream, op, storeKind(err), err)
	}

	rec := &Committed{Stream: stream, Values: values}
	start := time.Now()
	err = s.provider.WithTx(ctx, func(tx *sql.Tx) error {
		id, receivedAt, err := db.InsertRecord(ctx, tx, stream, values)
		if err != nil {
			return err
		}
		rec.ID, rec.ReceivedAt = id, receivedAt
		return nil
	})
	s.metrics.ObserveStore("insert", time.Since(start))
	if err != nil {
		log.Error("failed to store record", zap.Error(err))
		return nil, s.fail(stream, op, storeKind(err), err)
	}

	s.metrics.Ingest(stream.Name, metrics.OutcomeStored)
	log.Info("record stored", zap.Int64("id", rec.ID))

	s.mirrorRecord(ctx, *rec)

	return rec, nil
}

// Lookup returns the enabled stream called name.
func (s *Service) Lookup(name string) (*db.Stream, error) {
	stream, ok := s.streams[name]
	if !ok {
		return nil, &Error{Kind: KindNotFound, Op: "lookup", Err: fmt.Errorf("unknown stream %q", name)}
	}
	return stream, nil
}

// ListRecent returns up to limit records of stream, newest first. Missing
// tables are created first, so an empty store lists as empty.
func (s *Service) ListRecent(ctx context.Context, stream *db.Stream, limit int) ([]db.Record, error) {
	const op = "list_recent"
	log := s.logger.With(zap.String("stream", stream.Name))

	if err := s.ensureSchema(ctx); err != nil {
		log.Error("schema not available", zap.Error(err))
		s.metrics.Listing(stream.Name, storeKind(err).String())
		return nil, &Error{Kind: storeKind(err), Op: op, Err: err}
	}

	var records []db.Record
	start := time.Now()
	err := s.provider.WithConn(ctx, func(conn *sql.Conn) error {
		var err error
		records, err = db.ListRecent(ctx, conn, stream, limit)
		return err
	})
	s.metrics.ObserveStore("list", time.Since(start))
	if err != nil {
		log.Error("failed to list records", zap.Error(err))
		s.metrics.Listing(stream.Name, storeKind(err).String())
		return nil, &Error{Kind: storeKind(err), Op: op, Err: err}
	}

	s.metrics.Listing(stream.Name, metrics.OutcomeOK)
	return records, nil
}

// EnsureSchema creates missing tables. Callers at startup treat a failure as
// non-fatal; ingestion and listing retry it lazily.
func (s *Service) EnsureSchema(ctx context.Context) error {
	return s.ensureSchema(ctx)
}

func (s *Service) ensureSchema(ctx context.Context) error {
	if s.schema == nil {
		return nil
	}
	return s.schema.Ensure(ctx)
}

func (s *Service) mirrorRecord(ctx context.Context, rec Committed) {
	if s.mirror == nil {
		return
	}

	mctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), mirrorTimeout)
	defer cancel()

	if err := s.mirror.Mirror(mctx, rec); err != nil {
		s.logger.Warn("failed to mirror record",
			zap.String("stream", rec.Stream.Name),
			zap.Int64("id", rec.ID),
			zap.Error(err),
		)
	}
}

func (s *Service) fail(stream *db.Stream, op string, kind Kind, err error) error {
	s.metrics.Ingest(stream.Name, kind.String())
	return &Error{Kind: kind, Op: op, Err: err}
}

func storeKind(err error) Kind {
	if errors.Is(err, db.ErrUnavailable) {
		return KindStoreUnavailable
	}
	return KindStoreOperation
}
