// Package auth provides password hashing and bearer-token issuance for the
// accounts API.
//
// WHY JWT?
// JWT (JSON Web Token) is stateless: the server doesn't need to store session
// data. Everything needed to authenticate a request (user ID, expiry) is
// inside the signed token, so any instance holding the secret can verify it
// without a shared session store.
//
// JWT STRUCTURE (three base64url-encoded parts separated by dots):
//
//	HEADER.PAYLOAD.SIGNATURE
//	- Header: {"alg":"HS256","typ":"JWT"}
//	- Payload: {"sub":"42","iat":...,"exp":...,"iss":"accounts","jti":"..."}
//	- Signature: HMAC-SHA256(header+"."+payload, secretKey)
package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/xid"
)

// DefaultIssuer is the "iss" claim stamped on every token.
const DefaultIssuer = "accounts"

// MinSecretLength is the shortest HMAC secret NewTokenService accepts.
const MinSecretLength = 16

// ErrInvalidToken is returned by Verify for any token that must be rejected:
// bad signature, wrong algorithm or issuer, malformed payload, or expiry.
// Callers only need errors.Is(err, ErrInvalidToken); the wrapped cause is for logs.
var ErrInvalidToken = errors.New("auth: invalid token")

// TokenService handles JWT creation and validation.
//
// The secret is loaded once at startup and never rotated within a process.
// All fields are read-only after construction, so a single TokenService is
// safe to share between request goroutines.
type TokenService struct {
	secret []byte
	ttl    time.Duration
	issuer string
	now    func() time.Time
}

// NewTokenService creates a TokenService.
//
// A missing or short secret is a configuration error; callers treat it as
// fatal at startup. Generate one with: openssl rand -hex 32
func NewTokenService(secret string, ttl time.Duration, issuer string) (*TokenService, error) {
	if len(secret) < MinSecretLength {
		return nil, fmt.Errorf("auth: JWT secret must be at least %d characters", MinSecretLength)
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("auth: token lifetime must be positive, got %s", ttl)
	}
	if issuer == "" {
		issuer = DefaultIssuer
	}
	return &TokenService{
		secret: []byte(secret),
		ttl:    ttl,
		issuer: issuer,
		now:    time.Now,
	}, nil
}

// claims is the JWT payload. The subject ("sub") carries the user ID in
// decimal; ID ("jti") is unique per issued token.
type claims struct {
	jwt.RegisteredClaims
}

// Issue creates and signs a new access token for subjectID.
//
// Every call produces a distinct token, even for the same user in the same
// second, because of the random jti.
func (s *TokenService) Issue(subjectID int64) (string, error) {
	return s.issueWithTTL(subjectID, s.ttl)
}

// issueWithTTL is Issue with an explicit lifetime. Tests use a negative
// lifetime to mint already-expired tokens.
func (s *TokenService) issueWithTTL(subjectID int64, ttl time.Duration) (string, error) {
	now := s.now()

	c := claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(subjectID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			Issuer:    s.issuer,
			ID:        xid.New().String(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("auth: signing token: %w", err)
	}

	return signed, nil
}

// Verify parses and verifies a token string and returns the subject ID.
//
// VALIDATION CHECKS (performed by the jwt library):
//   - Signature is valid
//   - Algorithm is HS256 (blocks "alg":"none" and algorithm confusion)
//   - Token has not expired, and carries an exp claim at all
//   - Issuer matches
//   - Base64 segments are strictly encoded
func (s *TokenService) Verify(tokenStr string) (int64, error) {
	token, err := jwt.ParseWithClaims(
		tokenStr,
		&claims{},
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return s.secret, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithStrictDecoding(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return 0, fmt.Errorf("%w: token expired", ErrInvalidToken)
		}
		return 0, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	c, ok := token.Claims.(*claims)
	if !ok || !token.Valid {
		return 0, fmt.Errorf("%w: unexpected claims", ErrInvalidToken)
	}

	id, err := strconv.ParseInt(c.Subject, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: subject %q is not a user id", ErrInvalidToken, c.Subject)
	}

	return id, nil
}
