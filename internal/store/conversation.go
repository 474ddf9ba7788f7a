package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"ilumina.app/assistant/internal/model"
)

type conversationStore struct {
	q Querier
}

// NewConversationStore creates a ConversationStore backed by Postgres.
func NewConversationStore(q Querier) ConversationStore {
	return &conversationStore{q: q}
}

func (s *conversationStore) GetByID(ctx context.Context, id int64) (*model.Conversation, error) {
	row := s.q.QueryRow(ctx,
		`SELECT id, submission_id, section, created_at
		 FROM conversations
		 WHERE id = $1`, id)

	conv, err := scanConversation(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return conv, nil
}

func (s *conversationStore) GetLatest(ctx context.Context, submissionID string, section model.Section) (*model.Conversation, error) {
	row := s.q.QueryRow(ctx,
		`SELECT id, submission_id, section, created_at
		 FROM conversations
		 WHERE submission_id = $1 AND section = $2
		 ORDER BY created_at DESC, id DESC
		 LIMIT 1`, submissionID, string(section))

	conv, err := scanConversation(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return conv, nil
}

func (s *conversationStore) Create(ctx context.Context, conv *model.Conversation) error {
	row := s.q.QueryRow(ctx,
		`INSERT INTO conversations (id, submission_id, section)
		 VALUES ($1, $2, $3)
		 RETURNING created_at`,
		conv.ID, conv.SubmissionID, string(conv.Section))

	return row.Scan(&conv.CreatedAt)
}

func (s *conversationStore) ListBySubmission(ctx context.Context, submissionID string) ([]model.Conversation, error) {
	rows, err := s.q.Query(ctx,
		`SELECT id, submission_id, section, created_at
		 FROM conversations
		 WHERE submission_id = $1
		 ORDER BY created_at DESC, id DESC`, submissionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var convs []model.Conversation
	for rows.Next() {
		conv, err := scanConversation(rows)
		if err != nil {
			return nil, err
		}
		convs = append(convs, *conv)
	}
	return convs, rows.Err()
}

func scanConversation(row pgx.Row) (*model.Conversation, error) {
	var (
		conv      model.Conversation
		section   string
		createdAt time.Time
	)
	if err := row.Scan(&conv.ID, &conv.SubmissionID, &section, &createdAt); err != nil {
		return nil, err
	}
	conv.Section = model.Section(section)
	conv.CreatedAt = createdAt
	return &conv, nil
}
