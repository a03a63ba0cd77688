// Package auth provides authentication utilities using JSON Web Tokens (JWT).
// API callers present an HS256 bearer token naming the requester on whose
// behalf certificates are issued.
package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
)

// TokenExp specifies the duration for which a JWT token is valid.
// Tokens expire 3 hours after issuance.
const TokenExp = time.Hour * 3

var (
	// ErrNoSecret is returned when no signing secret is configured.
	ErrNoSecret = errors.New("authentication secret is not configured")
	// ErrNoToken is returned when the request carries no bearer token.
	ErrNoToken = errors.New("missing bearer token")
	// ErrInvalidToken is returned when the token cannot be verified.
	ErrInvalidToken = errors.New("invalid token")
)

// Claims defines the structure of JWT claims used in the authentication process.
type Claims struct {
	jwt.RegisteredClaims        // Standart JWT fields.
	RequesterID          string `json:"requester_id"` // RequesterID - unique ID of the caller.
}

// Authenticator signs and verifies tokens with a shared secret.
type Authenticator struct {
	secret []byte
}

// New creates an Authenticator. An empty secret yields an Authenticator
// that rejects every token.
func New(secret string) *Authenticator {
	return &Authenticator{secret: []byte(secret)}
}

// BuildJWTString creates a signed JWT token string for a given requesterID.
// If the provided requesterID is empty, it generates a new UUID for the requester.
// It sets the token's expiration time based on the TokenExp constant.
func (a *Authenticator) BuildJWTString(requesterID string) (string, error) {
	if len(a.secret) == 0 {
		return "", ErrNoSecret
	}
	if requesterID == "" {
		requesterID = uuid.New().String()
	}

	// Create a new token with given claims
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(TokenExp)),
		},
		RequesterID: requesterID,
	})

	// Sign token using the secret
	return token.SignedString(a.secret)
}

// RequesterID parses a token string, validates its signature and expiration,
// and returns the RequesterID claim.
func (a *Authenticator) RequesterID(tokenString string) (string, error) {
	if len(a.secret) == 0 {
		return "", ErrNoSecret
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid || claims.RequesterID == "" {
		return "", ErrInvalidToken
	}

	return claims.RequesterID, nil
}

// BearerToken extracts the token from an "Authorization: Bearer" header value.
func BearerToken(header string) (string, error) {
	const prefix = "bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", ErrNoToken
	}
	return strings.TrimSpace(header[len(prefix):]), nil
}

// contextKey defines a type of a key for storing requester ID value in context.
// Defined to avoid staticcheck warnings.
type contextKey string

const requesterKey contextKey = "requesterID"

// WithRequester stores the requester ID in the context.
func WithRequester(ctx context.Context, requesterID string) context.Context {
	return context.WithValue(ctx, requesterKey, requesterID)
}

// RequesterFromContext extracts the requester ID stored by WithRequester.
func RequesterFromContext(ctx context.Context) (string, bool) {
	requesterID, ok := ctx.Value(requesterKey).(string)
	return requesterID, ok
}

// Middleware rejects requests without a valid bearer token with
// 401 Unauthorized and passes the requester ID to the next handler
// through the request context.
func (a *Authenticator) Middleware() func(h http.Handler) http.Handler {
	return func(h http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, err := BearerToken(r.Header.Get("Authorization"))
			if err != nil {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			requesterID, err := a.RequesterID(token)
			if err != nil {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			h.ServeHTTP(w, r.WithContext(WithRequester(r.Context(), requesterID)))
		})
	}
}
