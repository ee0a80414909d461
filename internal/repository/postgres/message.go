package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/noTilt3/SMARKETECH/internal/models"
)

type MessageStore struct {
	pool *pgxpool.Pool
}

func NewMessageStore(pool *pgxpool.Pool) *MessageStore {
	return &MessageStore{pool: pool}
}

func (s *MessageStore) Create(ctx context.Context, senderID, receiverID int64, content string) (*models.Message, error) {
	// The timestamp comes from now() at insert time — it is the ordering
	// key for the conversation, so it must be server-assigned, never
	// trusted from the client.
	query := `
		INSERT INTO messages (sender_id, receiver_id, content, created_at)
		VALUES ($1, $2, $3, now())
		RETURNING id, sender_id, receiver_id, content, created_at`

	var msg models.Message
	err := s.pool.QueryRow(ctx, query, senderID, receiverID, content).Scan(
		&msg.ID,
		&msg.SenderID,
		&msg.ReceiverID,
		&msg.Content,
		&msg.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert message: %w", err)
	}
	return &msg, nil
}

func (s *MessageStore) ListConversation(ctx context.Context, userID, otherUserID int64) ([]models.ConversationMessage, error) {
	// Matches the unordered pair: either direction between the two users.
	// Joining users twice gives the sender/receiver projections in one
	// round trip instead of N+1 lookups.
	query := `
		SELECT m.id, m.content, m.created_at,
		       su.id, su.email,
		       ru.id, ru.email
		FROM messages m
		JOIN users su ON su.id = m.sender_id
		JOIN users ru ON ru.id = m.receiver_id
		WHERE (m.sender_id = $1 AND m.receiver_id = $2)
		   OR (m.sender_id = $2 AND m.receiver_id = $1)
		ORDER BY m.created_at ASC`

	rows, err := s.pool.Query(ctx, query, userID, otherUserID)
	if err != nil {
		return nil, fmt.Errorf("list conversation: %w", err)
	}
	defer rows.Close()

	messages := make([]models.ConversationMessage, 0)
	for rows.Next() {
		var m models.ConversationMessage
		if err := rows.Scan(
			&m.ID,
			&m.Content,
			&m.CreatedAt,
			&m.Sender.ID,
			&m.Sender.Email,
			&m.Receiver.ID,
			&m.Receiver.Email,
		); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}

	return messages, nil
}

func (s *MessageStore) DistinctSenders(ctx context.Context, receiverID int64) ([]models.ContactSummary, error) {
	// Users who messaged the receiver show up in their contact list even
	// if never explicitly added. The self-filter guards against rows
	// where sender and receiver coincide.
	query := `
		SELECT DISTINCT u.id, u.nome, u.email
		FROM messages m
		JOIN users u ON u.id = m.sender_id
		WHERE m.receiver_id = $1 AND m.sender_id <> $1`

	rows, err := s.pool.Query(ctx, query, receiverID)
	if err != nil {
		return nil, fmt.Errorf("list senders: %w", err)
	}
	defer rows.Close()

	senders := make([]models.ContactSummary, 0)
	for rows.Next() {
		var cs models.ContactSummary
		if err := rows.Scan(&cs.ID, &cs.Nome, &cs.Email); err != nil {
			return nil, fmt.Errorf("scan sender: %w", err)
		}
		senders = append(senders, cs)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate senders: %w", err)
	}

	return senders, nil
}

func (s *MessageStore) LatestReceived(ctx context.Context, receiverID int64) (*time.Time, error) {
	// Polling clients call this constantly to detect unread activity, so
	// it fetches one timestamp, not message bodies. Served by the
	// (receiver_id, created_at DESC) index.
	query := `
		SELECT created_at
		FROM messages
		WHERE receiver_id = $1
		ORDER BY created_at DESC
		LIMIT 1`

	var ts time.Time
	err := s.pool.QueryRow(ctx, query, receiverID).Scan(&ts)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("latest received: %w", err)
	}
	return &ts, nil
}
