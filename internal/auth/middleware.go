package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ErrInvalidToken is returned for bearer tokens that fail verification
var ErrInvalidToken = errors.New("invalid token")

// DevUserHeader carries a user id directly when running in dev mode
const DevUserHeader = "X-Propfolio-User"

// Middleware attaches the caller's identity to the request context.
//
// A Bearer token must be a valid HS256 JWT whose subject is a UUID; anything
// else is rejected with 401. Requests without credentials pass through
// anonymously. In dev mode DevUserHeader is honoured when no token is sent.
type Middleware struct {
	secret  []byte
	devMode bool
	log     zerolog.Logger
}

// NewMiddleware creates a new auth middleware
func NewMiddleware(secret string, devMode bool, log zerolog.Logger) *Middleware {
	return &Middleware{
		secret:  []byte(secret),
		devMode: devMode,
		log:     log.With().Str("component", "auth").Logger(),
	}
}

// Handler wraps next with identity resolution
func (m *Middleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if authHeader := r.Header.Get("Authorization"); authHeader != "" {
			raw, ok := strings.CutPrefix(authHeader, "Bearer ")
			if !ok {
				m.reject(w, r, "unsupported authorization scheme")
				return
			}

			user, err := m.ParseToken(strings.TrimSpace(raw))
			if err != nil {
				m.log.Debug().Err(err).Str("path", r.URL.Path).Msg("Bearer token rejected")
				m.reject(w, r, "invalid or expired token")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
			return
		}

		if m.devMode {
			if id := strings.TrimSpace(r.Header.Get(DevUserHeader)); id != "" {
				user := User{ID: id, Source: SourceHeader}
				next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
				return
			}
		}

		next.ServeHTTP(w, r)
	})
}

// ParseToken verifies a bearer token and returns its user
func (m *Middleware) ParseToken(raw string) (User, error) {
	if len(m.secret) == 0 {
		return User{}, fmt.Errorf("%w: no signing secret configured", ErrInvalidToken)
	}

	claims := jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(raw, &claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return m.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return User{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	id, err := uuid.Parse(claims.Subject)
	if err != nil {
		return User{}, fmt.Errorf("%w: subject is not a user id", ErrInvalidToken)
	}

	return User{ID: id.String(), Source: SourceToken}, nil
}

func (m *Middleware) reject(w http.ResponseWriter, r *http.Request, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token"`)
	w.WriteHeader(http.StatusUnauthorized)
	if err := json.NewEncoder(w).Encode(map[string]string{"error": msg}); err != nil {
		m.log.Error().Err(err).Str("path", r.URL.Path).Msg("Failed to encode auth error")
	}
}
