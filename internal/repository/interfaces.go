package repository

import (
	"context"
	"time"

	"github.com/noTilt3/SMARKETECH/internal/models"
)

// Every method takes context.Context first: these all hit the network, and
// the context carries the request deadline — if the caller disconnects, the
// query is cancelled instead of running to completion for nobody.
//
// The chat service depends on these interfaces, never on the pgx stores
// directly, so its tests run against in-memory fakes.

// UserRepository handles account data. The chat core reads users; the auth
// endpoints also create them.
type UserRepository interface {
	// Create inserts a user and returns it with ID and CreatedAt populated.
	Create(ctx context.Context, nome, email, passwordHash string) (*models.User, error)

	// GetByID returns a user, or nil, nil if not found.
	GetByID(ctx context.Context, userID int64) (*models.User, error)

	// GetByEmail looks a user up by email. Used for login and for adding
	// a contact by email. Returns nil, nil if not found.
	GetByEmail(ctx context.Context, email string) (*models.User, error)
}

// ContactRepository handles the explicit contact relationship rows.
type ContactRepository interface {
	// Add records that owner added contact. Idempotent: re-adding an
	// existing pair is a no-op, not an error.
	Add(ctx context.Context, ownerID, contactID int64) error

	// ListByOwner returns the users the owner explicitly added, most
	// recently added first.
	ListByOwner(ctx context.Context, ownerID int64) ([]models.ContactSummary, error)
}

// MessageRepository handles message persistence and the derived reads the
// chat endpoints need.
type MessageRepository interface {
	// Create persists a message with a server-assigned timestamp and
	// returns it with ID and CreatedAt populated.
	Create(ctx context.Context, senderID, receiverID int64, content string) (*models.Message, error)

	// ListConversation returns every message between the two users (in
	// either direction), ascending by created_at, with sender/receiver
	// projections joined in.
	ListConversation(ctx context.Context, userID, otherUserID int64) ([]models.ConversationMessage, error)

	// DistinctSenders returns the distinct users who have sent the
	// receiver a message — the implicit half of the contact list.
	DistinctSenders(ctx context.Context, receiverID int64) ([]models.ContactSummary, error)

	// LatestReceived returns the created_at of the most recent message
	// where the user is the receiver, or nil if there is none.
	LatestReceived(ctx context.Context, receiverID int64) (*time.Time, error)
}
