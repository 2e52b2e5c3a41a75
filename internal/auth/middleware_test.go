package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testSecret = "test-secret"
	testUserID = "6f1c2e8a-4b7d-4f3e-9a51-2d0c8b7e1f44"
)

func signToken(t *testing.T, method jwt.SigningMethod, key interface{}, claims jwt.Claims) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(method, claims).SignedString(key)
	require.NoError(t, err)
	return tok
}

func validClaims(sub string) jwt.RegisteredClaims {
	return jwt.RegisteredClaims{
		Subject:   sub,
		IssuedAt:  jwt.NewNumericDate(time.Now()),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}
}

// captureUser returns a handler recording the resolved user
func captureUser(got *User, seen *bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*got, *seen = UserFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})
}

func TestMiddleware_ValidToken(t *testing.T) {
	mw := NewMiddleware(testSecret, false, zerolog.Nop())
	var got User
	var seen bool

	req := httptest.NewRequest(http.MethodGet, "/api/analytics", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, jwt.SigningMethodHS256, []byte(testSecret), validClaims(testUserID)))
	rec := httptest.NewRecorder()

	mw.Handler(captureUser(&got, &seen)).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	require.True(t, seen)
	assert.Equal(t, testUserID, got.ID)
	assert.Equal(t, SourceToken, got.Source)
}

func TestMiddleware_RejectsBadCredentials(t *testing.T) {
	expired := validClaims(testUserID)
	expired.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))

	tests := []struct {
		name   string
		header string
	}{
		{"wrong secret", "Bearer " + signToken(t, jwt.SigningMethodHS256, []byte("other"), validClaims(testUserID))},
		{"expired", "Bearer " + signToken(t, jwt.SigningMethodHS256, []byte(testSecret), expired)},
		{"non uuid subject", "Bearer " + signToken(t, jwt.SigningMethodHS256, []byte(testSecret), validClaims("alice"))},
		{"wrong algorithm", "Bearer " + signToken(t, jwt.SigningMethodHS512, []byte(testSecret), validClaims(testUserID))},
		{"garbage", "Bearer not-a-token"},
		{"basic scheme", "Basic dXNlcjpwYXNz"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mw := NewMiddleware(testSecret, true, zerolog.Nop())
			var got User
			var seen bool

			req := httptest.NewRequest(http.MethodGet, "/api/analytics", nil)
			req.Header.Set("Authorization", tt.header)
			req.Header.Set(DevUserHeader, testUserID)
			rec := httptest.NewRecorder()

			mw.Handler(captureUser(&got, &seen)).ServeHTTP(rec, req)

			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.False(t, seen, "next handler must not run")
			assert.Contains(t, rec.Body.String(), `"error"`)
			assert.NotEmpty(t, rec.Header().Get("WWW-Authenticate"))
		})
	}
}

func TestMiddleware_AnonymousPassThrough(t *testing.T) {
	mw := NewMiddleware(testSecret, false, zerolog.Nop())
	var got User
	var seen bool

	req := httptest.NewRequest(http.MethodGet, "/api/analytics", nil)
	req.Header.Set(DevUserHeader, testUserID) // ignored outside dev mode
	rec := httptest.NewRecorder()

	mw.Handler(captureUser(&got, &seen)).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.False(t, seen)
}

func TestMiddleware_DevHeader(t *testing.T) {
	mw := NewMiddleware("", true, zerolog.Nop())
	var got User
	var seen bool

	req := httptest.NewRequest(http.MethodGet, "/api/analytics", nil)
	req.Header.Set(DevUserHeader, "  "+testUserID+" ")
	rec := httptest.NewRecorder()

	mw.Handler(captureUser(&got, &seen)).ServeHTTP(rec, req)

	require.True(t, seen)
	assert.Equal(t, testUserID, got.ID)
	assert.Equal(t, SourceHeader, got.Source)
}

func TestParseToken_NoSecret(t *testing.T) {
	mw := NewMiddleware("", false, zerolog.Nop())
	_, err := mw.ParseToken("anything")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestContextResolver(t *testing.T) {
	var resolver ContextResolver

	t.Run("anonymous", func(t *testing.T) {
		id, err := resolver.ResolveUser(context.Background())
		require.NoError(t, err)
		assert.Empty(t, id)
	})

	t.Run("canonicalizes uuid", func(t *testing.T) {
		ctx := WithUser(context.Background(), User{ID: "6F1C2E8A-4B7D-4F3E-9A51-2D0C8B7E1F44", Source: SourceHeader})
		id, err := resolver.ResolveUser(ctx)
		require.NoError(t, err)
		assert.Equal(t, testUserID, id)
	})

	t.Run("malformed id", func(t *testing.T) {
		ctx := WithUser(context.Background(), User{ID: "bob", Source: SourceHeader})
		_, err := resolver.ResolveUser(ctx)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrInvalidUser))
	})
}
