package user

import (
	"context"
	"time"
)

// Store persists users.
type Store interface {
	FindByABHAID(ctx context.Context, abhaID string) (*User, error)
	// Upsert inserts u or refreshes the profile fields of an existing user.
	// IsActive and LastLogin of an existing user are preserved.
	Upsert(ctx context.Context, u *User) error
	UpdateContact(ctx context.Context, abhaID string, upd ContactUpdate) (*User, error)
	TouchLastLogin(ctx context.Context, abhaID string, at time.Time) error
	// Deactivate reports false when the user is missing or already inactive.
	Deactivate(ctx context.Context, abhaID string) (bool, error)
	Search(ctx context.Context, query string, limit int) ([]*User, error)
	Recent(ctx context.Context, limit int) ([]*User, error)
	Stats(ctx context.Context, since time.Time) (*Stats, error)
}
