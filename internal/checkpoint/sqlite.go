package checkpoint

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS checkpoints (
	thread_id  TEXT PRIMARY KEY,
	state      BLOB NOT NULL,
	next_node  TEXT NOT NULL DEFAULT '',
	step       INTEGER NOT NULL DEFAULT 0,
	updated_at INTEGER NOT NULL
)`

// SQLiteStore persists checkpoints in a SQLite database.
type SQLiteStore struct {
	db     *sql.DB
	path   string
	logger *zap.Logger

	tracer      trace.Tracer
	saveCounter metric.Int64Counter

	mu     sync.RWMutex
	closed bool
}

// OpenSQLite opens or creates the database at path. Parent directories are
// created. ":memory:" opens a private in-memory database.
func OpenSQLite(path string, logger *zap.Logger) (*SQLiteStore, error) {
	if path == "" {
		return nil, errors.New("sqlite path is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("creating checkpoint directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening checkpoint database: %w", err)
	}
	// One connection keeps ":memory:" databases intact and serializes writers.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating checkpoint schema: %w", err)
	}

	s := &SQLiteStore{
		db:     db,
		path:   path,
		logger: logger,
		tracer: otel.Tracer(instrumentationName),
	}
	s.saveCounter, err = otel.Meter(instrumentationName).Int64Counter(
		"agentgraph.checkpoint.saves_total",
		metric.WithDescription("Total number of checkpoints saved"),
		metric.WithUnit("{save}"),
	)
	if err != nil {
		logger.Warn("failed to create save counter", zap.Error(err))
	}

	logger.Debug("checkpoint store opened", zap.String("path", path))
	return s, nil
}

// Path returns the database path.
func (s *SQLiteStore) Path() string {
	return s.path
}

func (s *SQLiteStore) checkOpen() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}
	return nil
}

// Load implements Store.
func (s *SQLiteStore) Load(ctx context.Context, threadID string) (*Checkpoint, error) {
	ctx, span := s.tracer.Start(ctx, "checkpoint.load")
	defer span.End()
	span.SetAttributes(attribute.String("thread.id", threadID))

	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	var (
		data    []byte
		next    string
		step    int
		updated int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT state, next_node, step, updated_at FROM checkpoints WHERE thread_id = ?`, threadID,
	).Scan(&data, &next, &step, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		span.SetAttributes(attribute.Bool("found", false))
		return nil, ErrNotFound
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("loading checkpoint %s: %w", threadID, err)
	}

	rs, err := decode(threadID, data)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	span.SetAttributes(attribute.Bool("found", true), attribute.Int("step", step))
	return &Checkpoint{
		ThreadID:  threadID,
		State:     rs,
		Next:      next,
		Step:      step,
		UpdatedAt: time.Unix(0, updated),
	}, nil
}

// Save implements Store. cp.UpdatedAt is set to the save time.
func (s *SQLiteStore) Save(ctx context.Context, cp *Checkpoint) error {
	ctx, span := s.tracer.Start(ctx, "checkpoint.save")
	defer span.End()

	if err := s.checkOpen(); err != nil {
		return err
	}
	data, err := encode(cp)
	if err != nil {
		span.RecordError(err)
		return err
	}
	span.SetAttributes(
		attribute.String("thread.id", cp.ThreadID),
		attribute.String("next", cp.Next),
		attribute.Int("step", cp.Step),
	)

	now := time.Now()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO checkpoints (thread_id, state, next_node, step, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(thread_id) DO UPDATE SET
			state = excluded.state,
			next_node = excluded.next_node,
			step = excluded.step,
			updated_at = excluded.updated_at`,
		cp.ThreadID, data, cp.Next, cp.Step, now.UnixNano(),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("saving checkpoint %s: %w", cp.ThreadID, err)
	}
	cp.UpdatedAt = now

	if s.saveCounter != nil {
		s.saveCounter.Add(ctx, 1, metric.WithAttributes(attribute.Bool("done", cp.Done())))
	}
	s.logger.Debug("saved checkpoint",
		zap.String("thread_id", cp.ThreadID),
		zap.String("next", cp.Next),
		zap.Int("step", cp.Step))
	return nil
}

// Delete implements Store.
func (s *SQLiteStore) Delete(ctx context.Context, threadID string) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM checkpoints WHERE thread_id = ?`, threadID); err != nil {
		return fmt.Errorf("deleting checkpoint %s: %w", threadID, err)
	}
	return nil
}

// Threads implements Store.
func (s *SQLiteStore) Threads(ctx context.Context) ([]string, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `SELECT thread_id FROM checkpoints ORDER BY thread_id`)
	if err != nil {
		return nil, fmt.Errorf("listing checkpoints: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("listing checkpoints: %w", err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// Close implements Store.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

var _ Store = (*SQLiteStore)(nil)
