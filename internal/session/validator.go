package session

import (
	"context"
	"errors"
	"time"

	"github.com/gsalazar/workchat/internal/domain"
)

// Validator resolves session tokens with a bounded timeout so one slow store
// lookup cannot stall unrelated connections during the handshake.
type Validator struct {
	store   Store
	timeout time.Duration
}

func NewValidator(store Store, timeout time.Duration) *Validator {
	return &Validator{store: store, timeout: timeout}
}

// Resolve maps a token to the identity behind it. Unknown, expired, and
// empty tokens all come back as domain.ErrInvalidSession.
func (v *Validator) Resolve(ctx context.Context, token string) (domain.Identity, error) {
	if token == "" {
		return domain.Identity{}, domain.ErrInvalidSession
	}

	ctx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()

	sess, err := v.store.Get(ctx, token)
	if err != nil {
		if errors.Is(err, domain.ErrSessionNotFound) {
			return domain.Identity{}, domain.ErrInvalidSession
		}
		return domain.Identity{}, err
	}
	return sess.User, nil
}
