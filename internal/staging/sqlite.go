package staging

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/zeebo/blake3"
	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/niveshya/leadops/internal/shared"
)

const schema = `
CREATE TABLE IF NOT EXISTS staged_recordings (
	key         TEXT PRIMARY KEY,
	meeting_id  TEXT NOT NULL,
	filename    TEXT NOT NULL,
	mime_type   TEXT NOT NULL,
	data        BLOB NOT NULL,
	size        INTEGER NOT NULL,
	checksum    TEXT NOT NULL,
	duration_ms INTEGER NOT NULL,
	created_at  INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS staged_recordings_created ON staged_recordings (created_at, key);
`

var pragmas = []string{
	"PRAGMA journal_mode=WAL",
	"PRAGMA synchronous=NORMAL",
	"PRAGMA busy_timeout=5000",
	"PRAGMA temp_store=MEMORY",
}

// Config configures the SQLite store.
type Config struct {
	Path     string
	PoolSize int
	Clock    func() time.Time
	Logger   *slog.Logger
}

// SQLiteStore is a Store backed by a single SQLite file.
type SQLiteStore struct {
	pool   *sqlitex.Pool
	now    func() time.Time
	logger *slog.Logger
	path   string
}

var _ Store = (*SQLiteStore)(nil)

// Open opens or creates the database at cfg.Path and applies the schema.
func Open(ctx context.Context, cfg Config) (*SQLiteStore, error) {
	if cfg.Path == "" {
		return nil, errors.New("staging: path is required")
	}
	if cfg.PoolSize <= 0 {
		cfg.PoolSize = 2
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}

	pool, err := sqlitex.NewPool(cfg.Path, sqlitex.PoolOptions{
		PoolSize: cfg.PoolSize,
		PrepareConn: func(conn *sqlite.Conn) error {
			for _, pragma := range pragmas {
				if err := sqlitex.ExecuteTransient(conn, pragma, nil); err != nil {
					return fmt.Errorf("%s: %w", pragma, err)
				}
			}
			return nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("staging: open %s: %w", cfg.Path, err)
	}

	s := &SQLiteStore{pool: pool, now: cfg.Clock, logger: cfg.Logger, path: cfg.Path}
	if err := s.migrate(ctx); err != nil {
		_ = pool.Close()
		return nil, err
	}
	cfg.Logger.Debug("staging store opened", slog.String("path", cfg.Path))
	return s, nil
}

func (s *SQLiteStore) migrate(ctx context.Context) error {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return fmt.Errorf("staging: take conn: %w", err)
	}
	defer s.pool.Put(conn)
	if err := sqlitex.ExecuteScript(conn, schema, nil); err != nil {
		return fmt.Errorf("staging: apply schema: %w", err)
	}
	return nil
}

// Close closes the pool. It blocks until borrowed connections are returned.
func (s *SQLiteStore) Close() error {
	if err := s.pool.Close(); err != nil {
		return fmt.Errorf("staging: close %s: %w", s.path, err)
	}
	return nil
}

// Save stores rec under rec.Key, replacing any previous recording with that key.
func (s *SQLiteStore) Save(ctx context.Context, rec Recording) (Metadata, error) {
	if strings.TrimSpace(rec.Key) == "" {
		return Metadata{}, shared.NewFieldError(shared.ErrValidation, "key", "")
	}
	if len(rec.Data) == 0 {
		return Metadata{}, shared.NewFieldError(shared.ErrValidation, "data", "")
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = s.now()
	}
	meta := Metadata{
		Key:       rec.Key,
		MeetingID: rec.MeetingID,
		Filename:  rec.Filename,
		MIMEType:  rec.MIMEType,
		Size:      int64(len(rec.Data)),
		Checksum:  checksum(rec.Data),
		Duration:  rec.Duration.Truncate(time.Millisecond),
		CreatedAt: rec.CreatedAt.UTC().Truncate(time.Microsecond),
	}

	conn, err := s.pool.Take(ctx)
	if err != nil {
		return Metadata{}, fmt.Errorf("staging: take conn: %w", err)
	}
	defer s.pool.Put(conn)

	const q = `INSERT INTO staged_recordings
		(key, meeting_id, filename, mime_type, data, size, checksum, duration_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (key) DO UPDATE SET
			meeting_id = excluded.meeting_id,
			filename = excluded.filename,
			mime_type = excluded.mime_type,
			data = excluded.data,
			size = excluded.size,
			checksum = excluded.checksum,
			duration_ms = excluded.duration_ms,
			created_at = excluded.created_at`
	err = sqlitex.Execute(conn, q, &sqlitex.ExecOptions{
		Args: []any{
			meta.Key,
			meta.MeetingID,
			meta.Filename,
			meta.MIMEType,
			rec.Data,
			meta.Size,
			meta.Checksum,
			meta.Duration.Milliseconds(),
			meta.CreatedAt.UnixMicro(),
		},
	})
	if err != nil {
		return Metadata{}, fmt.Errorf("staging: save %s: %w", rec.Key, err)
	}
	return meta, nil
}

// Get loads the recording under key and verifies its checksum.
func (s *SQLiteStore) Get(ctx context.Context, key string) (Recording, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return Recording{}, fmt.Errorf("staging: take conn: %w", err)
	}
	defer s.pool.Put(conn)

	var (
		rec   Recording
		sum   string
		found bool
	)
	err = sqlitex.Execute(conn,
		`SELECT key, meeting_id, filename, mime_type, duration_ms, created_at, checksum, data
		 FROM staged_recordings WHERE key = ?`,
		&sqlitex.ExecOptions{
			Args: []any{key},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				found = true
				rec.Key = stmt.ColumnText(0)
				rec.MeetingID = stmt.ColumnText(1)
				rec.Filename = stmt.ColumnText(2)
				rec.MIMEType = stmt.ColumnText(3)
				rec.Duration = time.Duration(stmt.ColumnInt64(4)) * time.Millisecond
				rec.CreatedAt = time.UnixMicro(stmt.ColumnInt64(5)).UTC()
				sum = stmt.ColumnText(6)
				rec.Data = make([]byte, stmt.ColumnLen(7))
				stmt.ColumnBytes(7, rec.Data)
				return nil
			},
		})
	if err != nil {
		return Recording{}, fmt.Errorf("staging: get %s: %w", key, err)
	}
	if !found {
		return Recording{}, fmt.Errorf("%w: staged recording %s", ErrNotFound, key)
	}
	if checksum(rec.Data) != sum {
		s.logger.Warn("staged recording corrupt", slog.String("key", key))
		return Recording{}, fmt.Errorf("%w: %s", ErrCorrupt, key)
	}
	return rec, nil
}

// Delete removes the recording under key. Missing keys are not an error.
func (s *SQLiteStore) Delete(ctx context.Context, key string) error {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return fmt.Errorf("staging: take conn: %w", err)
	}
	defer s.pool.Put(conn)
	if err := sqlitex.Execute(conn, `DELETE FROM staged_recordings WHERE key = ?`, &sqlitex.ExecOptions{
		Args: []any{key},
	}); err != nil {
		return fmt.Errorf("staging: delete %s: %w", key, err)
	}
	return nil
}

// List returns metadata for every staged recording, oldest first.
func (s *SQLiteStore) List(ctx context.Context) ([]Metadata, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return nil, fmt.Errorf("staging: take conn: %w", err)
	}
	defer s.pool.Put(conn)

	var out []Metadata
	err = sqlitex.Execute(conn,
		`SELECT key, meeting_id, filename, mime_type, size, checksum, duration_ms, created_at
		 FROM staged_recordings ORDER BY created_at, key`,
		&sqlitex.ExecOptions{
			ResultFunc: func(stmt *sqlite.Stmt) error {
				out = append(out, Metadata{
					Key:       stmt.ColumnText(0),
					MeetingID: stmt.ColumnText(1),
					Filename:  stmt.ColumnText(2),
					MIMEType:  stmt.ColumnText(3),
					Size:      stmt.ColumnInt64(4),
					Checksum:  stmt.ColumnText(5),
					Duration:  time.Duration(stmt.ColumnInt64(6)) * time.Millisecond,
					CreatedAt: time.UnixMicro(stmt.ColumnInt64(7)).UTC(),
				})
				return nil
			},
		})
	if err != nil {
		return nil, fmt.Errorf("staging: list: %w", err)
	}
	return out, nil
}

func checksum(data []byte) string {
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:])
}
