package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/noTilt3/SMARKETECH/internal/models"
)

type ContactStore struct {
	pool *pgxpool.Pool
}

func NewContactStore(pool *pgxpool.Pool) *ContactStore {
	return &ContactStore{pool: pool}
}

func (s *ContactStore) Add(ctx context.Context, ownerID, contactID int64) error {
	// ON CONFLICT DO NOTHING makes "add contact" idempotent: re-adding an
	// existing pair succeeds silently instead of tripping the unique
	// constraint on (owner_user_id, contact_user_id).
	query := `
		INSERT INTO contacts (owner_user_id, contact_user_id, created_at)
		VALUES ($1, $2, now())
		ON CONFLICT (owner_user_id, contact_user_id) DO NOTHING`

	_, err := s.pool.Exec(ctx, query, ownerID, contactID)
	if err != nil {
		return fmt.Errorf("add contact: %w", err)
	}
	return nil
}

func (s *ContactStore) ListByOwner(ctx context.Context, ownerID int64) ([]models.ContactSummary, error) {
	query := `
		SELECT u.id, u.nome, u.email
		FROM contacts c
		JOIN users u ON u.id = c.contact_user_id
		WHERE c.owner_user_id = $1
		ORDER BY c.created_at DESC`

	rows, err := s.pool.Query(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list contacts: %w", err)
	}
	defer rows.Close()

	contacts := make([]models.ContactSummary, 0)
	for rows.Next() {
		var cs models.ContactSummary
		if err := rows.Scan(&cs.ID, &cs.Nome, &cs.Email); err != nil {
			return nil, fmt.Errorf("scan contact: %w", err)
		}
		contacts = append(contacts, cs)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate contacts: %w", err)
	}

	return contacts, nil
}
