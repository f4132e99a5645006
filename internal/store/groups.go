package store

import (
	"context"
	"strconv"

	"github.com/dkeye/Rendezvous/internal/core"
	"github.com/dkeye/Rendezvous/internal/domain"
	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"
)

func groupKey(gid domain.GroupID) (int64, bool) {
	n, err := strconv.ParseInt(string(gid), 10, 64)
	return n, err == nil && n > 0
}

func groupID(n int64) domain.GroupID { return domain.GroupID(strconv.FormatInt(n, 10)) }

func (s *Store) CreateGroup(ctx context.Context, name string) (domain.GroupID, error) {
	var gid domain.GroupID
	err := s.withTx(ctx, func(conn *sqlite.Conn) error {
		var existing int64
		err := sqlitex.Execute(conn, `SELECT id FROM chat_groups WHERE name = ?`, &sqlitex.ExecOptions{
			Args: []any{name},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				existing = stmt.ColumnInt64(0)
				return nil
			},
		})
		if err != nil {
			return err
		}
		if existing != 0 {
			gid = groupID(existing)
			return core.ErrGroupExists
		}
		if err := sqlitex.Execute(conn, `INSERT INTO chat_groups (name) VALUES (?)`,
			&sqlitex.ExecOptions{Args: []any{name}}); err != nil {
			return err
		}
		gid = groupID(conn.LastInsertRowID())
		return nil
	})
	return gid, err
}

func (s *Store) JoinGroup(ctx context.Context, gid domain.GroupID, id domain.Identity) error {
	key, ok := groupKey(gid)
	if !ok {
		return core.ErrUnknownGroup
	}
	return s.withTx(ctx, func(conn *sqlite.Conn) error {
		found, err := exists(conn, `SELECT 1 FROM chat_groups WHERE id = ?`, key)
		if err != nil {
			return err
		}
		if !found {
			return core.ErrUnknownGroup
		}
		return sqlitex.Execute(conn, `INSERT OR IGNORE INTO group_members (group_id, name) VALUES (?, ?)`,
			&sqlitex.ExecOptions{Args: []any{key, string(id)}})
	})
}

func (s *Store) GroupsOf(ctx context.Context, id domain.Identity) ([]domain.Group, error) {
	var out []domain.Group
	err := s.withConn(ctx, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn, `
			SELECT g.id, g.name FROM chat_groups g
			JOIN group_members m ON m.group_id = g.id
			WHERE m.name = ?
			ORDER BY g.id`, &sqlitex.ExecOptions{
			Args: []any{string(id)},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				out = append(out, domain.Group{ID: groupID(stmt.ColumnInt64(0)), Name: stmt.ColumnText(1)})
				return nil
			},
		})
	})
	return out, err
}

// Members lists the members of gid in join order.
func (s *Store) Members(ctx context.Context, gid domain.GroupID) ([]domain.Identity, error) {
	key, ok := groupKey(gid)
	if !ok {
		return nil, core.ErrUnknownGroup
	}
	var out []domain.Identity
	err := s.withConn(ctx, func(conn *sqlite.Conn) error {
		found, err := exists(conn, `SELECT 1 FROM chat_groups WHERE id = ?`, key)
		if err != nil {
			return err
		}
		if !found {
			return core.ErrUnknownGroup
		}
		return sqlitex.Execute(conn, `SELECT name FROM group_members WHERE group_id = ? ORDER BY rowid`,
			&sqlitex.ExecOptions{
				Args: []any{key},
				ResultFunc: func(stmt *sqlite.Stmt) error {
					out = append(out, domain.Identity(stmt.ColumnText(0)))
					return nil
				},
			})
	})
	return out, err
}
