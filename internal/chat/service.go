// Package chat is the real-time core: the connection registry, the event
// publisher, and the conversation service the HTTP handlers sit on.
package chat

import (
	"context"
	"strings"
	"time"

	"github.com/noTilt3/SMARKETECH/internal/apperr"
	"github.com/noTilt3/SMARKETECH/internal/cache"
	"github.com/noTilt3/SMARKETECH/internal/models"
	"github.com/noTilt3/SMARKETECH/internal/repository"
	"go.uber.org/zap"
)

// maxContentLen is the message body cap, in runes. Longer bodies are
// truncated silently rather than rejected.
const maxContentLen = 2000

// EventMessageNew is emitted to a recipient's open streams when a message
// for them is persisted.
const EventMessageNew = "message:new"

// Notifier is what the service needs from the push side. The concrete
// implementation is *Publisher; tests substitute a recorder.
type Notifier interface {
	Publish(userID int64, event string, payload any)
}

// Service implements the conversation operations: contact listing and
// creation, message persistence and retrieval, and the latest-inbound
// lookup polling clients use. Persistence always happens first; the live
// push is a best-effort notification layered on top, and its outcome
// never affects the caller's result.
type Service struct {
	users    repository.UserRepository
	contacts repository.ContactRepository
	messages repository.MessageRepository
	notifier Notifier
	latest   *cache.LatestCache
	logger   *zap.Logger
}

func NewService(
	users repository.UserRepository,
	contacts repository.ContactRepository,
	messages repository.MessageRepository,
	notifier Notifier,
	latest *cache.LatestCache,
	logger *zap.Logger,
) *Service {
	return &Service{
		users:    users,
		contacts: contacts,
		messages: messages,
		notifier: notifier,
		latest:   latest,
		logger:   logger,
	}
}

// ListContacts returns the user's effective contact list: the users they
// explicitly added, plus everyone who has messaged them. Explicit entries
// come first and win on duplicates; dedupe is by user id.
func (s *Service) ListContacts(ctx context.Context, userID int64) ([]models.ContactSummary, error) {
	explicit, err := s.contacts.ListByOwner(ctx, userID)
	if err != nil {
		return nil, err
	}
	senders, err := s.messages.DistinctSenders(ctx, userID)
	if err != nil {
		return nil, err
	}

	seen := make(map[int64]bool, len(explicit)+len(senders))
	out := make([]models.ContactSummary, 0, len(explicit)+len(senders))
	for _, c := range explicit {
		if !seen[c.ID] {
			seen[c.ID] = true
			out = append(out, c)
		}
	}
	for _, c := range senders {
		if !seen[c.ID] {
			seen[c.ID] = true
			out = append(out, c)
		}
	}
	return out, nil
}

// AddContact resolves the email to a user and records the directed
// relationship. Re-adding an existing contact is a success that returns
// the same target; the relationship is never duplicated.
func (s *Service) AddContact(ctx context.Context, ownerID int64, email string) (*models.ContactSummary, error) {
	if strings.TrimSpace(email) == "" {
		return nil, apperr.InvalidArgument("email is required")
	}

	target, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if target == nil {
		return nil, apperr.NotFound("no user with that email")
	}
	if target.ID == ownerID {
		return nil, apperr.InvalidArgument("cannot add yourself as a contact")
	}

	if err := s.contacts.Add(ctx, ownerID, target.ID); err != nil {
		return nil, err
	}

	return &models.ContactSummary{
		ID:    target.ID,
		Nome:  target.Nome,
		Email: target.Email,
	}, nil
}

// ListConversation returns every message between the two users, oldest
// first. A partner that does not exist (or has never exchanged a message
// with the caller) yields an empty conversation, not an error.
func (s *Service) ListConversation(ctx context.Context, userID, otherUserID int64) ([]models.ConversationMessage, error) {
	return s.messages.ListConversation(ctx, userID, otherUserID)
}

// messageNotification is the message:new payload pushed over the stream.
// Field names are part of the wire contract with the browser client.
type messageNotification struct {
	ID         int64     `json:"id"`
	SenderID   int64     `json:"senderId"`
	ReceiverID int64     `json:"receiverId"`
	CreatedAt  time.Time `json:"created_at"`
}

// SendMessage persists a message and then notifies the recipient's open
// streams. Content is trimmed, must be non-empty, and is silently capped
// at 2000 characters. The returned record carries the store-assigned id
// and timestamp.
//
// The push happens after the insert commits and cannot fail the call:
// once persistence succeeds the sender gets a success, whether or not the
// recipient is connected.
func (s *Service) SendMessage(ctx context.Context, senderID, receiverID int64, content string) (*models.Message, error) {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return nil, apperr.InvalidArgument("message content is empty")
	}
	if runes := []rune(trimmed); len(runes) > maxContentLen {
		trimmed = string(runes[:maxContentLen])
	}

	msg, err := s.messages.Create(ctx, senderID, receiverID, trimmed)
	if err != nil {
		return nil, err
	}

	// Keep the polling hot path warm before the push goes out.
	s.latest.Set(ctx, receiverID, msg.CreatedAt)

	s.notifier.Publish(receiverID, EventMessageNew, messageNotification{
		ID:         msg.ID,
		SenderID:   msg.SenderID,
		ReceiverID: msg.ReceiverID,
		CreatedAt:  msg.CreatedAt,
	})

	return msg, nil
}

// LatestTimestamp returns the created_at of the newest message addressed
// to the user, or nil when they have never received one. Served from
// Redis when possible; Postgres is the source of truth on a miss.
func (s *Service) LatestTimestamp(ctx context.Context, userID int64) (*time.Time, error) {
	if ts, ok := s.latest.Get(ctx, userID); ok {
		return &ts, nil
	}

	ts, err := s.messages.LatestReceived(ctx, userID)
	if err != nil {
		return nil, err
	}
	if ts != nil {
		s.latest.Set(ctx, userID, *ts)
	}
	return ts, nil
}
