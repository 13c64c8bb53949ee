// Package auth provides authentication primitives for the backend: session
// token creation and verification (JWT) and password hashing (bcrypt).
// See internal/middleware/auth.go for the request-time logic that classifies
// missing versus invalid tokens.
package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	// DefaultTokenTTL is the session lifetime embedded in issued tokens.
	DefaultTokenTTL = 24 * time.Hour

	// MinSecretLength is the minimum accepted signing secret length. Shorter
	// secrets make HS256 brute-forceable offline from a single captured token.
	MinSecretLength = 32

	tokenIssuer = "wandertale"
)

var (
	// ErrSecretTooShort is returned by NewTokenAuthenticator for secrets under MinSecretLength bytes.
	ErrSecretTooShort = errors.New("auth: signing secret must be at least 32 bytes")
	// ErrTokenMissing is reported when a protected request carries no token at all.
	ErrTokenMissing = errors.New("auth: no token provided")
	// ErrTokenInvalid is returned when a token's signature, structure, or algorithm is wrong.
	ErrTokenInvalid = errors.New("auth: token is invalid")
	// ErrTokenExpired is returned when a structurally valid token's expiry is in the past.
	ErrTokenExpired = errors.New("auth: token is expired")
)

// Claims is the identity payload embedded in every session token.
type Claims struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}

// TokenAuthenticator issues and verifies stateless session tokens. The signing
// secret is injected at construction and held only in memory; verification
// performs no database lookup, so a token stays valid for its full lifetime
// regardless of later changes to the user record.
type TokenAuthenticator struct {
	secret []byte
	ttl    time.Duration
}

// NewTokenAuthenticator creates an authenticator with the given signing secret
// and token lifetime. A zero ttl falls back to DefaultTokenTTL. A negative ttl
// is kept as-is and issues already-expired tokens.
func NewTokenAuthenticator(secret []byte, ttl time.Duration) (*TokenAuthenticator, error) {
	if len(secret) < MinSecretLength {
		return nil, ErrSecretTooShort
	}
	if ttl == 0 {
		ttl = DefaultTokenTTL
	}
	secretCopy := make([]byte, len(secret))
	copy(secretCopy, secret)
	return &TokenAuthenticator{secret: secretCopy, ttl: ttl}, nil
}

// Issue creates a signed session token embedding the user's identity and an
// expiry ttl from now. Tokens issued at different instants differ and each
// remains independently valid until its own expiry.
func (a *TokenAuthenticator) Issue(userID, email string) (string, error) {
	now := time.Now()
	claims := &Claims{
		UserID: userID,
		Email:  email,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(a.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    tokenIssuer,
			Subject:   userID,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(a.secret)
}

// Verify parses and validates a session token, returning the embedded claims
// unchanged on success. Failure modes are distinguishable: ErrTokenExpired for
// a well-formed token past its expiry, ErrTokenInvalid for everything else
// (bad signature, tampered payload, malformed structure, wrong algorithm).
func (a *TokenAuthenticator) Verify(tokenString string) (*Claims, error) {
	if tokenString == "" {
		return nil, ErrTokenMissing
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrTokenInvalid
		}
		return a.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrTokenInvalid
	}

	return claims, nil
}
