// Package middleware holds the HTTP middleware shared by every route.
package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/Dan9191/credit-service/internal/config"
	"github.com/Dan9191/credit-service/internal/models"
	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

// RoleEmployee grants access to the employee endpoints
const RoleEmployee = "Employee"

const clockSkew = 60 * time.Second

type identityKey struct{}

// Identity is the authenticated caller
type Identity struct {
	Subject    string
	Roles      []string
	Email      string
	AuthHeader string
}

// HasRole reports whether the caller holds role
func (i Identity) HasRole(role string) bool {
	for _, r := range i.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// WithIdentity stores the caller in ctx
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// IdentityFrom returns the caller stored by AuthMiddleware
func IdentityFrom(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(Identity)
	return id, ok
}

// roles accepts the role claim as a single string or a list
type roles []string

func (r *roles) UnmarshalJSON(b []byte) error {
	var one string
	if err := json.Unmarshal(b, &one); err == nil {
		*r = roles{one}
		return nil
	}
	var many []string
	if err := json.Unmarshal(b, &many); err != nil {
		return fmt.Errorf("role claim must be a string or a list of strings: %w", err)
	}
	*r = many
	return nil
}

type claims struct {
	Role  roles  `json:"role"`
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// TokenParser validates bearer tokens
type TokenParser struct {
	secret []byte
	parser *jwt.Parser
}

// NewTokenParser initializes a parser for HS256 tokens. Issuer and audience
// are only enforced when set.
func NewTokenParser(secret, issuer, audience string) *TokenParser {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithLeeway(clockSkew),
	}
	if issuer != "" {
		opts = append(opts, jwt.WithIssuer(issuer))
	}
	if audience != "" {
		opts = append(opts, jwt.WithAudience(audience))
	}
	return &TokenParser{secret: []byte(secret), parser: jwt.NewParser(opts...)}
}

// Parse validates the Authorization header value and returns the caller
func (p *TokenParser) Parse(authHeader string) (Identity, error) {
	raw, ok := strings.CutPrefix(authHeader, "Bearer ")
	if !ok || strings.TrimSpace(raw) == "" {
		return Identity{}, fmt.Errorf("%w: missing or invalid Authorization header", models.ErrUnauthorized)
	}

	var c claims
	_, err := p.parser.ParseWithClaims(strings.TrimSpace(raw), &c, func(*jwt.Token) (interface{}, error) {
		return p.secret, nil
	})
	if err != nil {
		return Identity{}, fmt.Errorf("%w: invalid or expired token: %v", models.ErrUnauthorized, err)
	}
	if c.Subject == "" {
		return Identity{}, fmt.Errorf("%w: token has no subject", models.ErrUnauthorized)
	}
	return Identity{Subject: c.Subject, Roles: c.Role, Email: c.Email, AuthHeader: authHeader}, nil
}

// AuthMiddleware rejects requests without a valid bearer token and stores the
// caller's identity in the request context
func AuthMiddleware(cfg *config.Config, log *logrus.Logger) mux.MiddlewareFunc {
	parser := NewTokenParser(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTAudience)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, err := parser.Parse(r.Header.Get("Authorization"))
			if err != nil {
				log.WithField("request_id", RequestIDFrom(r.Context())).Debugf("Authentication failed: %v", err)
				WriteError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}

// RequireRole rejects callers that do not hold role
func RequireRole(role string) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := IdentityFrom(r.Context())
			if !ok {
				WriteError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			if !id.HasRole(role) {
				WriteError(w, http.StatusForbidden, "access denied")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// WriteError writes the standard JSON error body
func WriteError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(models.ErrorResponse{
		Status:    status,
		Error:     msg,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}
