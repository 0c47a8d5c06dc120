package identity

import (
	"context"
	"strings"

	"github.com/google/uuid"

	pkgerrors "github.com/haatbari/haatbari-backend/pkg/errors"
)

type contextKey struct{}

// Identity is the shopper behind a request: either an authenticated user
// or an anonymous session. Exactly one side is set.
type Identity struct {
	UserID       *uuid.UUID
	SessionToken *string
}

// FromUser builds an authenticated identity.
func FromUser(userID uuid.UUID) Identity {
	return Identity{UserID: &userID}
}

// FromSession builds an anonymous identity keyed by session token.
func FromSession(token string) Identity {
	trimmed := strings.TrimSpace(token)
	return Identity{SessionToken: &trimmed}
}

// IsUser reports whether the identity is an authenticated user.
func (i Identity) IsUser() bool {
	return i.UserID != nil && *i.UserID != uuid.Nil
}

// IsSession reports whether the identity is an anonymous session.
func (i Identity) IsSession() bool {
	return i.SessionToken != nil && *i.SessionToken != ""
}

// Validate enforces that exactly one side of the union is populated.
func (i Identity) Validate() error {
	user := i.IsUser()
	session := i.IsSession()
	if user == session {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "request must carry exactly one of user or session identity")
	}
	return nil
}

// Key returns a stable string for logging and rate-limit scoping.
func (i Identity) Key() string {
	if i.IsUser() {
		return "user:" + i.UserID.String()
	}
	if i.IsSession() {
		return "session:" + *i.SessionToken
	}
	return "anonymous"
}

// WithContext stores the identity on the request context.
func WithContext(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, contextKey{}, id)
}

// FromContext extracts the identity placed by the auth middleware.
func FromContext(ctx context.Context) (Identity, error) {
	id, ok := ctx.Value(contextKey{}).(Identity)
	if !ok {
		return Identity{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "no identity on request")
	}
	if err := id.Validate(); err != nil {
		return Identity{}, err
	}
	return id, nil
}
