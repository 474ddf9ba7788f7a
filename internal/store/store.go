package store

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Querier is the subset of pgx operations the stores use. Satisfied by
// both *pgxpool.Pool and pgx.Tx, so the same query code runs inside and
// outside transactions.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Stores aggregates the per-entity stores for dependency wiring. Built
// over a pool for regular use, or over a transaction by the TxRunner.
type Stores struct {
	Conversation ConversationStore
	Message      MessageStore
}

func New(q Querier) *Stores {
	return &Stores{
		Conversation: NewConversationStore(q),
		Message:      NewMessageStore(q),
	}
}
