package domain

import "github.com/google/uuid"

// IdentityGenerator issues identities for custom cart entries. Identities must
// never repeat for the lifetime of a cart.
type IdentityGenerator interface {
	NewIdentity() string
}

// IdentityFunc adapts a function to IdentityGenerator.
type IdentityFunc func() string

func (f IdentityFunc) NewIdentity() string { return f() }

// UUIDv7Generator issues time-ordered UUIDv7 identities, so custom entries
// sort by creation time even after a reload.
type UUIDv7Generator struct{}

func (UUIDv7Generator) NewIdentity() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
