// Package store keeps accounts, friendships, groups and message history in
// a SQLite database.
package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dkeye/Rendezvous/internal/core"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"
	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"
)

type Config struct {
	// Path of the database file; ":memory:" needs PoolSize 1.
	Path     string
	PoolSize int
	// BcryptCost defaults to bcrypt.DefaultCost.
	BcryptCost int
}

type Store struct {
	pool *sqlitex.Pool
	path string
	cost int
	now  func() time.Time
}

const schema = `
CREATE TABLE IF NOT EXISTS users (
	name        TEXT PRIMARY KEY,
	secret_hash BLOB NOT NULL,
	created_at  INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS friendships (
	a TEXT NOT NULL,
	b TEXT NOT NULL,
	PRIMARY KEY (a, b)
);
CREATE INDEX IF NOT EXISTS friendships_b ON friendships (b);
CREATE TABLE IF NOT EXISTS chat_groups (
	id   INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL UNIQUE
);
CREATE TABLE IF NOT EXISTS group_members (
	group_id INTEGER NOT NULL,
	name     TEXT NOT NULL,
	PRIMARY KEY (group_id, name)
);
CREATE INDEX IF NOT EXISTS group_members_name ON group_members (name);
CREATE TABLE IF NOT EXISTS direct_messages (
	id       INTEGER PRIMARY KEY AUTOINCREMENT,
	sender   TEXT NOT NULL,
	receiver TEXT NOT NULL,
	body     TEXT NOT NULL,
	sent_at  INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS direct_messages_pair ON direct_messages (sender, receiver);
CREATE TABLE IF NOT EXISTS group_messages (
	id       INTEGER PRIMARY KEY AUTOINCREMENT,
	group_id INTEGER NOT NULL,
	kind     TEXT NOT NULL,
	sender   TEXT NOT NULL,
	body     TEXT NOT NULL,
	sent_at  INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS group_messages_group ON group_messages (group_id);
`

var pragmas = []string{
	"PRAGMA journal_mode=WAL",
	"PRAGMA synchronous=NORMAL",
	"PRAGMA busy_timeout=5000",
	"PRAGMA foreign_keys=OFF",
	"PRAGMA temp_store=MEMORY",
}

// Open creates the database file and its parent directory if needed.
func Open(cfg Config) (*Store, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("store: path is required")
	}
	if cfg.Path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o750); err != nil {
			return nil, fmt.Errorf("store: create directory: %w", err)
		}
	}
	poolSize := cfg.PoolSize
	if poolSize <= 0 {
		poolSize = 4
	}
	cost := cfg.BcryptCost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}

	pool, err := sqlitex.NewPool(cfg.Path, sqlitex.PoolOptions{
		PoolSize:    poolSize,
		PrepareConn: prepareConn,
	})
	if err != nil {
		return nil, fmt.Errorf("store: opening %s: %w", cfg.Path, err)
	}
	s := &Store{pool: pool, path: cfg.Path, cost: cost, now: time.Now}

	// Surface schema errors at startup rather than on first use.
	conn, err := pool.Take(context.Background())
	if err != nil {
		_ = pool.Close()
		return nil, fmt.Errorf("store: %w", err)
	}
	pool.Put(conn)

	log.Info().Str("module", "store").Str("path", cfg.Path).Int("pool_size", poolSize).Msg("sqlite store opened")
	return s, nil
}

func prepareConn(conn *sqlite.Conn) error {
	for _, p := range pragmas {
		if err := sqlitex.ExecuteTransient(conn, p, nil); err != nil {
			return fmt.Errorf("store: %s: %w", p, err)
		}
	}
	if err := sqlitex.ExecuteScript(conn, schema, nil); err != nil {
		return fmt.Errorf("store: schema: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	if err := s.pool.Close(); err != nil {
		return fmt.Errorf("store: closing %s: %w", s.path, err)
	}
	log.Info().Str("module", "store").Str("path", s.path).Msg("sqlite store closed")
	return nil
}

func (s *Store) withConn(ctx context.Context, fn func(conn *sqlite.Conn) error) error {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return fmt.Errorf("store: take: %w", err)
	}
	defer s.pool.Put(conn)
	return fn(conn)
}

// withTx runs fn inside an IMMEDIATE transaction, rolled back when fn
// returns an error.
func (s *Store) withTx(ctx context.Context, fn func(conn *sqlite.Conn) error) error {
	return s.withConn(ctx, func(conn *sqlite.Conn) (err error) {
		endTransaction, err := sqlitex.ImmediateTransaction(conn)
		if err != nil {
			return fmt.Errorf("store: begin transaction: %w", err)
		}
		defer endTransaction(&err)
		return fn(conn)
	})
}

// exists reports whether query returns at least one row.
func exists(conn *sqlite.Conn, query string, args ...any) (bool, error) {
	found := false
	err := sqlitex.Execute(conn, query, &sqlitex.ExecOptions{
		Args: args,
		ResultFunc: func(*sqlite.Stmt) error {
			found = true
			return nil
		},
	})
	return found, err
}

func (s *Store) stamp() int64 { return s.now().UnixMilli() }

var (
	_ core.Accounts    = (*Store)(nil)
	_ core.Friendships = (*Store)(nil)
	_ core.Groups      = (*Store)(nil)
	_ core.History     = (*Store)(nil)
)
