// internal/domain/identity/identity.go
package identity

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Kind distinguishes guest sessions from authenticated customers
type Kind string

const (
	KindGuest Kind = "guest"
	KindUser  Kind = "user"
)

// Identity is the owner of a cart. Exactly one identity is active per
// request; a guest identity is retired when its cart merges into a user cart.
type Identity struct {
	Kind  Kind   `json:"kind"`
	Value string `json:"value"`
}

// NewGuest creates a fresh guest identity
func NewGuest() Identity {
	return Identity{Kind: KindGuest, Value: uuid.New().String()}
}

// Guest wraps an existing client-persisted guest session ID
func Guest(sessionID string) Identity {
	return Identity{Kind: KindGuest, Value: sessionID}
}

// User wraps an authenticated customer ID
func User(customerID string) Identity {
	return Identity{Kind: KindUser, Value: customerID}
}

// Parse parses the wire form "guest:<id>" or "user:<id>"
func Parse(s string) (Identity, error) {
	kind, value, found := strings.Cut(s, ":")
	if !found || value == "" {
		return Identity{}, fmt.Errorf("malformed cart identity: %q", s)
	}

	switch Kind(kind) {
	case KindGuest, KindUser:
		return Identity{Kind: Kind(kind), Value: value}, nil
	default:
		return Identity{}, fmt.Errorf("unknown cart identity kind: %q", kind)
	}
}

// String returns the wire form used as persistence and reservation keys
func (i Identity) String() string {
	return string(i.Kind) + ":" + i.Value
}

// IsZero reports whether no identity has been assigned
func (i Identity) IsZero() bool {
	return i.Kind == "" && i.Value == ""
}

// IsGuest reports whether this is a guest session identity
func (i Identity) IsGuest() bool {
	return i.Kind == KindGuest
}
