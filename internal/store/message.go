package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"ilumina.app/assistant/internal/model"
)

type messageStore struct {
	q Querier
}

// NewMessageStore creates a MessageStore backed by Postgres.
func NewMessageStore(q Querier) MessageStore {
	return &messageStore{q: q}
}

func (s *messageStore) Append(ctx context.Context, msg *model.ChatMessage) error {
	var classification []byte
	if msg.Classification != nil {
		data, err := json.Marshal(msg.Classification)
		if err != nil {
			return fmt.Errorf("marshaling classification: %w", err)
		}
		classification = data
	}

	row := s.q.QueryRow(ctx,
		`INSERT INTO messages (id, conversation_id, role, content, classification)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING created_at`,
		msg.ID, msg.ConversationID, string(msg.Role), msg.Content, classification)

	return row.Scan(&msg.CreatedAt)
}

func (s *messageStore) ListByConversation(ctx context.Context, conversationID int64) ([]model.ChatMessage, error) {
	rows, err := s.q.Query(ctx,
		`SELECT id, conversation_id, role, content, classification, created_at
		 FROM messages
		 WHERE conversation_id = $1
		 ORDER BY created_at ASC, id ASC`, conversationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectMessages(rows)
}

func (s *messageStore) ListByConversationDesc(ctx context.Context, conversationID int64, limit int32) ([]model.ChatMessage, error) {
	rows, err := s.q.Query(ctx,
		`SELECT id, conversation_id, role, content, classification, created_at
		 FROM messages
		 WHERE conversation_id = $1
		 ORDER BY created_at DESC, id DESC
		 LIMIT $2`, conversationID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectMessages(rows)
}

func collectMessages(rows pgx.Rows) ([]model.ChatMessage, error) {
	var msgs []model.ChatMessage
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, *msg)
	}
	return msgs, rows.Err()
}

func scanMessage(row pgx.Row) (*model.ChatMessage, error) {
	var (
		msg            model.ChatMessage
		role           string
		classification []byte
		createdAt      time.Time
	)
	if err := row.Scan(&msg.ID, &msg.ConversationID, &role, &msg.Content, &classification, &createdAt); err != nil {
		return nil, err
	}

	msg.Role = model.Role(role)
	msg.CreatedAt = createdAt

	if len(classification) > 0 {
		var c model.Classification
		if err := json.Unmarshal(classification, &c); err != nil {
			return nil, fmt.Errorf("unmarshaling classification for message %d: %w", msg.ID, err)
		}
		msg.Classification = &c
	}

	return &msg, nil
}
