// Package session manages the opaque cookie sessions issued by the OAuth
// layer and consumed by the chat hub.
package session

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/gsalazar/workchat/internal/domain"
)

// Session couples a resolved identity with its opaque token.
type Session struct {
	User      domain.Identity `json:"user"`
	CreatedAt time.Time       `json:"created_at"`
}

// Store persists sessions across restarts.
// All implementations must be safe for concurrent use.
type Store interface {
	// Create issues a new opaque session token for the given identity.
	Create(ctx context.Context, user domain.Identity) (string, error)

	// Get returns the session for a token, or domain.ErrSessionNotFound.
	Get(ctx context.Context, id string) (*Session, error)

	// Delete removes a session. Deleting an unknown token is not an error.
	Delete(ctx context.Context, id string) error

	// SetDisplayName updates the visible name on an existing session.
	SetDisplayName(ctx context.Context, id, name string) (*Session, error)
}

// newToken generates an opaque session token.
// Opaque (not JWT) so sessions can be revoked by deleting them from the store.
func newToken() (string, error) {
	bytes := make([]byte, 24)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("generate session token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(bytes), nil
}
