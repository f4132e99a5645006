package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/dkeye/Rendezvous/internal/core"
	"github.com/dkeye/Rendezvous/internal/domain"
	"golang.org/x/crypto/bcrypt"
	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"
)

func (s *Store) Register(ctx context.Context, id domain.Identity, secret string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), s.cost)
	if err != nil {
		return fmt.Errorf("store: hash secret: %w", err)
	}
	return s.withTx(ctx, func(conn *sqlite.Conn) error {
		taken, err := exists(conn, `SELECT 1 FROM users WHERE name = ?`, string(id))
		if err != nil {
			return err
		}
		if taken {
			return core.ErrIdentityTaken
		}
		return sqlitex.Execute(conn, `INSERT INTO users (name, secret_hash, created_at) VALUES (?, ?, ?)`,
			&sqlitex.ExecOptions{Args: []any{string(id), hash, s.stamp()}})
	})
}

func (s *Store) Authenticate(ctx context.Context, id domain.Identity, secret string) (bool, error) {
	var hash []byte
	err := s.withConn(ctx, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn, `SELECT secret_hash FROM users WHERE name = ?`, &sqlitex.ExecOptions{
			Args: []any{string(id)},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				hash = make([]byte, stmt.ColumnLen(0))
				stmt.ColumnBytes(0, hash)
				return nil
			},
		})
	})
	if err != nil {
		return false, err
	}
	if hash == nil {
		return false, nil
	}
	err = bcrypt.CompareHashAndPassword(hash, []byte(secret))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return false, nil
	default:
		return false, fmt.Errorf("store: compare secret: %w", err)
	}
}

// Delete removes the account with its friendships and group memberships.
// History is kept.
func (s *Store) Delete(ctx context.Context, id domain.Identity, secret string) (bool, error) {
	ok, err := s.Authenticate(ctx, id, secret)
	if err != nil || !ok {
		return false, err
	}
	err = s.withTx(ctx, func(conn *sqlite.Conn) error {
		for _, q := range []string{
			`DELETE FROM users WHERE name = ?1`,
			`DELETE FROM friendships WHERE a = ?1 OR b = ?1`,
			`DELETE FROM group_members WHERE name = ?1`,
		} {
			if err := sqlitex.Execute(conn, q, &sqlitex.ExecOptions{Args: []any{string(id)}}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	return true, nil
}
