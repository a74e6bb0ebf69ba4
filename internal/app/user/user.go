/*
Package user contains the identity records behind authentication and the directory
contract the storage backends implement.

An Identity is the stored account; a PublicIdentity is the subset returned to clients.
*/
package user

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned when no identity matches the lookup.
	ErrNotFound = errors.New("user not found")

	// ErrConflict is returned when an insert collides with an existing username or email.
	ErrConflict = errors.New("user already exists")
)

// Identity is a stored account.
type Identity struct {
	// ID is the internal row id; it never leaves the process.
	ID int64

	// PublicID is the UUID used as token subject and in API payloads.
	PublicID string

	Username     string
	Email        string
	PasswordHash string

	// Elevated grants administrative operations.
	Elevated bool
}

// Public returns the client-facing view of the identity.
func (i Identity) Public() PublicIdentity {
	return PublicIdentity{
		UUID:     i.PublicID,
		Username: i.Username,
		IsAdmin:  i.Elevated,
	}
}

// PublicIdentity is the identity as serialized to clients.
type PublicIdentity struct {
	UUID     string `json:"uuid"`
	Username string `json:"username"`
	IsAdmin  bool   `json:"is_admin"`
}

// Registration holds the values of a new account. PasswordHash is already hashed.
type Registration struct {
	PublicID     string
	Username     string
	Email        string
	PasswordHash string
}

// Directory is the identity store.
type Directory interface {
	// FindByUsernameOrEmail returns the identity whose username or email equals s.
	FindByUsernameOrEmail(ctx context.Context, s string) (Identity, error)

	// FindByID returns the identity with the given public id.
	FindByID(ctx context.Context, publicID string) (Identity, error)

	// DeleteByID removes the identity with the given public id.
	DeleteByID(ctx context.Context, publicID string) error

	// Insert stores a new identity and returns it with its row id set.
	Insert(ctx context.Context, reg Registration) (Identity, error)

	// ListAll returns every identity ordered by row id.
	ListAll(ctx context.Context) ([]Identity, error)

	// SetElevated sets the elevated flag of the identity whose username or email equals s.
	SetElevated(ctx context.Context, s string, elevated bool) error
}

// Privileges resolves the elevated flag through a Directory.
type Privileges struct {
	Directory Directory
}

// Elevated returns the elevated flag of the user with the given public id.
func (p Privileges) Elevated(ctx context.Context, publicID string) (bool, error) {
	identity, err := p.Directory.FindByID(ctx, publicID)
	if err != nil {
		return false, err
	}
	return identity.Elevated, nil
}
