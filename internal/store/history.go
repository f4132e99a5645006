package store

import (
	"context"
	"time"

	"github.com/dkeye/Rendezvous/internal/core"
	"github.com/dkeye/Rendezvous/internal/domain"
	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"
)

func (s *Store) SaveDirectMessage(ctx context.Context, sender, receiver domain.Identity, body string) error {
	return s.withConn(ctx, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn,
			`INSERT INTO direct_messages (sender, receiver, body, sent_at) VALUES (?, ?, ?, ?)`,
			&sqlitex.ExecOptions{Args: []any{string(sender), string(receiver), body, s.stamp()}})
	})
}

func (s *Store) SaveGroupMessage(ctx context.Context, gid domain.GroupID, msg domain.Message) error {
	key, ok := groupKey(gid)
	if !ok {
		return core.ErrUnknownGroup
	}
	sentAt := s.stamp()
	if !msg.SentAt.IsZero() {
		sentAt = msg.SentAt.UnixMilli()
	}
	kind := msg.Kind
	if kind == "" {
		kind = domain.MessageUser
	}
	return s.withConn(ctx, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn,
			`INSERT INTO group_messages (group_id, kind, sender, body, sent_at) VALUES (?, ?, ?, ?, ?)`,
			&sqlitex.ExecOptions{Args: []any{key, string(kind), msg.Sender, msg.Body, sentAt}})
	})
}

// DirectHistory returns the latest limit messages between a and b, oldest
// first.
func (s *Store) DirectHistory(ctx context.Context, a, b domain.Identity, limit int) ([]domain.Message, error) {
	var out []domain.Message
	err := s.withConn(ctx, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn, `
			SELECT sender, body, sent_at FROM (
				SELECT id, sender, body, sent_at FROM direct_messages
				WHERE (sender = ?1 AND receiver = ?2) OR (sender = ?2 AND receiver = ?1)
				ORDER BY id DESC LIMIT ?3
			) ORDER BY id`, &sqlitex.ExecOptions{
			Args: []any{string(a), string(b), limit},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				out = append(out, domain.Message{
					Kind:   domain.MessageUser,
					Sender: stmt.ColumnText(0),
					Body:   stmt.ColumnText(1),
					SentAt: time.UnixMilli(stmt.ColumnInt64(2)).UTC(),
				})
				return nil
			},
		})
	})
	return out, err
}

// GroupHistory returns the latest limit messages of gid, oldest first.
func (s *Store) GroupHistory(ctx context.Context, gid domain.GroupID, limit int) ([]domain.Message, error) {
	key, ok := groupKey(gid)
	if !ok {
		return nil, core.ErrUnknownGroup
	}
	var out []domain.Message
	err := s.withConn(ctx, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn, `
			SELECT kind, sender, body, sent_at FROM (
				SELECT id, kind, sender, body, sent_at FROM group_messages
				WHERE group_id = ? ORDER BY id DESC LIMIT ?
			) ORDER BY id`, &sqlitex.ExecOptions{
			Args: []any{key, limit},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				out = append(out, domain.Message{
					Kind:   domain.MessageKind(stmt.ColumnText(0)),
					Sender: stmt.ColumnText(1),
					Body:   stmt.ColumnText(2),
					SentAt: time.UnixMilli(stmt.ColumnInt64(3)).UTC(),
				})
				return nil
			},
		})
	})
	return out, err
}
