// Package auth resolves the calling investor from request credentials.
package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// ErrInvalidUser is returned when a request carries a malformed user id
var ErrInvalidUser = errors.New("invalid user id")

// Identity sources
const (
	SourceToken  = "token"
	SourceHeader = "header"
)

// User is the identity attached to a request
type User struct {
	ID     string
	Source string // SourceToken or SourceHeader
}

type contextKey int

const userKey contextKey = iota

// WithUser stores the user in ctx
func WithUser(ctx context.Context, u User) context.Context {
	return context.WithValue(ctx, userKey, u)
}

// UserFromContext returns the user stored in ctx, if any
func UserFromContext(ctx context.Context) (User, bool) {
	u, ok := ctx.Value(userKey).(User)
	return u, ok
}

// ContextResolver resolves user ids from request contexts populated by Middleware
type ContextResolver struct{}

// ResolveUser returns the canonical user id, "" for anonymous requests, or
// ErrInvalidUser when the stored id is not a UUID.
func (ContextResolver) ResolveUser(ctx context.Context) (string, error) {
	u, ok := UserFromContext(ctx)
	if !ok || u.ID == "" {
		return "", nil
	}

	id, err := uuid.Parse(u.ID)
	if err != nil {
		return "", fmt.Errorf("%w: %q from %s", ErrInvalidUser, u.ID, u.Source)
	}
	return id.String(), nil
}
