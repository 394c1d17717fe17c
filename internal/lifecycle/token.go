package lifecycle

import (
	"context"
	"sync/atomic"

	"github.com/diewo77/go-pharmacy/internal/apperr"
)

// AuthToken authorizes exactly one dispatch of exactly one document. It is
// passed explicitly into the send call and is useless once consumed.
type AuthToken struct {
	AdminID uint
	Scope   Ref
	ID      string

	used atomic.Bool
}

func NewAuthToken(adminID uint, scope Ref, id string) *AuthToken {
	return &AuthToken{AdminID: adminID, Scope: scope, ID: id}
}

// Used reports whether the token has been consumed.
func (t *AuthToken) Used() bool { return t.used.Load() }

func (t *AuthToken) consume(ref Ref) error {
	if t == nil {
		return apperr.Auth("missing token", nil)
	}
	if t.Scope != ref {
		return apperr.Auth("token scoped to "+t.Scope.String(), nil)
	}
	if !t.used.CompareAndSwap(false, true) {
		return apperr.Auth("token already used", nil)
	}
	return nil
}

// Authenticator performs re-authentication for one document.
type Authenticator interface {
	Authenticate(ctx context.Context, ref Ref) (*AuthToken, error)
}

// AuthenticatorFunc adapts a function to Authenticator.
type AuthenticatorFunc func(ctx context.Context, ref Ref) (*AuthToken, error)

func (f AuthenticatorFunc) Authenticate(ctx context.Context, ref Ref) (*AuthToken, error) {
	return f(ctx, ref)
}
