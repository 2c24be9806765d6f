// Package sqlite is the embedded SQL backend built on modernc.org/sqlite.
package sqlite

import (
	"bytes"
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"graphstore/application/ports"
	pkgerrors "graphstore/pkg/errors"
)

//go:embed schema.sql
var schemaSQL string

// BackendName identifies this backend in stats.
const BackendName = "sqlite"

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

// Config holds configuration for the SQLite store.
type Config struct {
	Path        string
	BusyTimeout time.Duration
	Logger      *zap.Logger
}

// Store owns the connection pool and both repositories.
type Store struct {
	db     *sql.DB
	nodes  *NodeRepository
	edges  *EdgeRepository
	logger *zap.Logger
}

// Open opens or creates the database and applies the schema.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Path == "" {
		return nil, errors.New("sqlite path is required")
	}
	busy := cfg.BusyTimeout
	if busy <= 0 {
		busy = 5 * time.Second
	}

	inMemory := cfg.Path == MemoryPath
	if !inMemory {
		if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o750); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	// Write transactions start with BEGIN IMMEDIATE so the endpoint check
	// and the edge insert hold the write lock together.
	dsn := fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=busy_timeout(%d)&_txlock=immediate",
		cfg.Path, busy.Milliseconds())
	if !inMemory {
		dsn += "&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if inMemory {
		// Every connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("applying schema: %w", err)
	}

	logger.Info("sqlite store opened", zap.String("path", cfg.Path))
	return &Store{
		db:     db,
		nodes:  &NodeRepository{db: db, logger: logger},
		edges:  &EdgeRepository{db: db, logger: logger},
		logger: logger,
	}, nil
}

func (s *Store) Nodes() ports.NodeRepository { return s.nodes }
func (s *Store) Edges() ports.EdgeRepository { return s.edges }
func (s *Store) Name() string                { return BackendName }

func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }
func (s *Store) Close() error                   { return s.db.Close() }

// withTx runs fn in a write transaction and commits when it returns nil.
func withTx(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func dbError(op string, err error) error {
	if err == nil {
		return nil
	}
	if pkgerrors.GetAppError(err) != nil {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return pkgerrors.NewTimeoutError(op).WithCause(err)
	}
	var sqlErr *sqlite.Error
	if errors.As(err, &sqlErr) && sqlErr.Code()&0xff == sqlite3.SQLITE_BUSY {
		return pkgerrors.NewUnavailableError("sqlite").WithCause(err)
	}
	return pkgerrors.NewDatabaseError(op, err)
}

func isForeignKeyViolation(err error) bool {
	var sqlErr *sqlite.Error
	if !errors.As(err, &sqlErr) {
		return false
	}
	if sqlErr.Code() == sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY {
		return true
	}
	return sqlErr.Code()&0xff == sqlite3.SQLITE_CONSTRAINT && strings.Contains(sqlErr.Error(), "FOREIGN KEY")
}

const timeLayout = time.RFC3339Nano

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(timeLayout, s)
}

// encodeJSON stores v without HTML escaping; nil values become SQL NULL.
func encodeJSON(v interface{}, isNil bool) (sql.NullString, error) {
	if isNil {
		return sql.NullString{}, nil
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(bytes.TrimRight(buf.Bytes(), "\n")), Valid: true}, nil
}

func decodeJSON(s sql.NullString, v interface{}) error {
	if !s.Valid {
		return nil
	}
	return json.Unmarshal([]byte(s.String), v)
}
