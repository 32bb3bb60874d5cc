// Package session holds the persisted wizard state and the stores that keep it.
package session

import (
	"context"

	"github.com/google/uuid"
)

// Store defines the interface for session storage operations.
// Every driver stores whole records: Save overwrites, Load returns a private
// copy, and a failed Save leaves the previous record intact.
type Store interface {
	// Create allocates a new ID. Nothing is stored until the first Save.
	Create(ctx context.Context) (string, error)

	// Load retrieves a session by ID.
	// Returns ErrNotFound if the session does not exist.
	Load(ctx context.Context, id string) (*Session, error)

	// Save persists the whole session under s.ID, replacing any previous record.
	Save(ctx context.Context, s *Session) error

	// Delete removes a session. Deleting a missing session is not an error.
	Delete(ctx context.Context, id string) error

	// Close closes the store and releases any resources.
	Close() error
}

// NewID returns a fresh session ID
func NewID() string {
	return uuid.NewString()
}

// ValidateID rejects IDs that are not UUIDs, so they can be used safely as
// file names and keys.
func ValidateID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return ErrInvalidID
	}
	return nil
}
