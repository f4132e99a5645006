package store

import (
	"context"

	"github.com/dkeye/Rendezvous/internal/core"
	"github.com/dkeye/Rendezvous/internal/domain"
	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"
)

// pair orders a friendship so each one is stored once.
func pair(a, b domain.Identity) (string, string) {
	if a > b {
		a, b = b, a
	}
	return string(a), string(b)
}

func (s *Store) Friends(ctx context.Context, id domain.Identity) ([]domain.Identity, error) {
	var out []domain.Identity
	err := s.withConn(ctx, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn, `
			SELECT b FROM friendships WHERE a = ?1
			UNION
			SELECT a FROM friendships WHERE b = ?1
			ORDER BY 1`, &sqlitex.ExecOptions{
			Args: []any{string(id)},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				out = append(out, domain.Identity(stmt.ColumnText(0)))
				return nil
			},
		})
	})
	return out, err
}

func (s *Store) AddFriend(ctx context.Context, a, b domain.Identity) error {
	if a == b {
		return core.ErrSelfFriend
	}
	lo, hi := pair(a, b)
	return s.withTx(ctx, func(conn *sqlite.Conn) error {
		for _, id := range []domain.Identity{a, b} {
			ok, err := exists(conn, `SELECT 1 FROM users WHERE name = ?`, string(id))
			if err != nil {
				return err
			}
			if !ok {
				return core.ErrUnknownIdentity
			}
		}
		already, err := exists(conn, `SELECT 1 FROM friendships WHERE a = ? AND b = ?`, lo, hi)
		if err != nil {
			return err
		}
		if already {
			return core.ErrAlreadyFriends
		}
		return sqlitex.Execute(conn, `INSERT INTO friendships (a, b) VALUES (?, ?)`,
			&sqlitex.ExecOptions{Args: []any{lo, hi}})
	})
}

func (s *Store) RemoveFriend(ctx context.Context, a, b domain.Identity) (bool, error) {
	lo, hi := pair(a, b)
	var changed bool
	err := s.withConn(ctx, func(conn *sqlite.Conn) error {
		err := sqlitex.Execute(conn, `DELETE FROM friendships WHERE a = ? AND b = ?`,
			&sqlitex.ExecOptions{Args: []any{lo, hi}})
		changed = conn.Changes() > 0
		return err
	})
	return changed, err
}
