package models

import (
	"time"
)

// User is an account in the back office (the adms of the original schema).
// The chat core references users but does not own them — registration and
// profile editing live in the auth subsystem.
//
// Why int64 for ID and not UUID?
//   - The users table is bigserial. Every other table (contacts, messages)
//     carries user ids as foreign keys, and the JWT claims carry the same
//     integer. Changing the key type would ripple through all of them.
//
// PasswordHash is json:"-" so a User can be returned from a handler without
// ever leaking the bcrypt hash.
type User struct {
	ID           int64     `json:"id"`
	Nome         string    `json:"nome"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// ContactSummary is what the contact list returns for each entry: just
// enough to render a chat sidebar. It is produced both from explicit
// contact rows and from distinct senders of inbound messages, so it is
// deliberately not tied to the contacts table shape.
type ContactSummary struct {
	ID    int64  `json:"id"`
	Nome  string `json:"nome"`
	Email string `json:"email"`
}

// Contact is the explicit, directed relationship row: owner added target.
// Never mutated after creation; uniqueness is on (owner, contact) at the
// database level.
type Contact struct {
	OwnerUserID   int64     `json:"owner_user_id"`
	ContactUserID int64     `json:"contact_user_id"`
	CreatedAt     time.Time `json:"created_at"`
}

// Message is a single direct message between two users.
//
// Why int64 for ID (not UUID)?
//   - Messages are the highest-volume table; bigserial is smaller,
//     naturally ordered, and index-friendly. All messages go through this
//     one API, so a single sequence is fine.
//
// CreatedAt is assigned by Postgres at insert time and is the sole
// ordering key for a conversation.
type Message struct {
	ID         int64     `json:"id"`
	SenderID   int64     `json:"sender_id"`
	ReceiverID int64     `json:"receiver_id"`
	Content    string    `json:"content"`
	CreatedAt  time.Time `json:"created_at"`
}

// UserRef is the compact user projection embedded in conversation rows.
type UserRef struct {
	ID    int64  `json:"id"`
	Email string `json:"email"`
}

// ConversationMessage is a Message joined with its participants, the shape
// the conversation listing returns. The model matches the query, not the
// table: the handler never re-fetches sender/receiver separately.
type ConversationMessage struct {
	ID        int64     `json:"id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
	Sender    UserRef   `json:"sender"`
	Receiver  UserRef   `json:"receiver"`
}
