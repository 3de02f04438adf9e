package auth

import (
	"context"
	"strings"

	"gigline/internal/domain"
)

// Caller is the authenticated party behind a request. Role is the role the
// credential claims; the engine trusts the stored party row over it.
type Caller struct {
	PartyID string
	Role    domain.Role
	Source  string
}

// Authenticator resolves the caller of the current operation.
type Authenticator interface {
	CurrentParty(ctx context.Context) (Caller, error)
}

var ErrUnauthenticated = domain.ErrUnauthenticated

type callerKey struct{}

func WithCaller(ctx context.Context, c Caller) context.Context {
	return context.WithValue(ctx, callerKey{}, c)
}

func CallerFromContext(ctx context.Context) (Caller, bool) {
	c, ok := ctx.Value(callerKey{}).(Caller)
	if !ok || strings.TrimSpace(c.PartyID) == "" {
		return Caller{}, false
	}
	return c, true
}

// ContextAuthenticator reads the caller placed in the context by the HTTP middleware.
type ContextAuthenticator struct{}

func (ContextAuthenticator) CurrentParty(ctx context.Context) (Caller, error) {
	c, ok := CallerFromContext(ctx)
	if !ok {
		return Caller{}, ErrUnauthenticated
	}
	return c, nil
}

// Static always yields the same caller unless the context carries one. The CLI
// uses it to act as the party named by --as.
type Static struct {
	Caller Caller
}

func (s Static) CurrentParty(ctx context.Context) (Caller, error) {
	if c, ok := CallerFromContext(ctx); ok {
		return c, nil
	}
	if strings.TrimSpace(s.Caller.PartyID) == "" {
		return Caller{}, ErrUnauthenticated
	}
	return s.Caller, nil
}
