package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/skekre98/chatlog/messages"
)

// Messages is the PostgreSQL messages.Repository.
type Messages struct {
	pool       *pgxpool.Pool
	insertStmt string
	listStmt   string
}

var _ messages.Repository = (*Messages)(nil)

func NewMessages(pool *pgxpool.Pool, schema string) *Messages {
	table := pgx.Identifier{schema, "messages"}.Sanitize()
	return &Messages{
		pool: pool,
		insertStmt: `INSERT INTO ` + table + ` (message_content, user_id, posted_at)
VALUES ($1, $2, $3)
RETURNING message_id`,
		listStmt: `SELECT message_id, message_content, user_id, posted_at
FROM ` + table + `
ORDER BY posted_at DESC, message_id DESC
OFFSET $1 LIMIT $2`,
	}
}

func (r *Messages) Create(ctx context.Context, msg messages.PostMessage) (int64, error) {
	var id int64
	if err := r.pool.QueryRow(ctx, r.insertStmt, msg.Content, msg.UserID, msg.PostedAt).Scan(&id); err != nil {
		return 0, fmt.Errorf("insert message: %w", err)
	}
	return id, nil
}

func (r *Messages) List(ctx context.Context, offset, limit int64) ([]messages.Message, error) {
	rows, err := r.pool.Query(ctx, r.listStmt, offset, limit)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (messages.Message, error) {
		var m messages.Message
		err := row.Scan(&m.ID, &m.Content, &m.UserID, &m.PostedAt)
		m.PostedAt = m.PostedAt.UTC()
		return m, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan messages: %w", err)
	}
	return out, nil
}

func (r *Messages) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}
