// Password hashing.
//
// WHY BCRYPT?
// bcrypt is a password hashing function specifically designed to be slow.
// That slowness makes offline brute-force attacks expensive.
//
// bcrypt automatically:
//   - Generates a random salt (two users with the same password get different hashes)
//   - Embeds the salt and cost in the output (no separate salt column needed)
//   - Compares digests in constant time
//
// Hash format (the full output of bcrypt.GenerateFromPassword):
//
//	$2a$12$<22-char salt><31-char hash>
//	 ^   ^
//	 |   cost (12 rounds → 2^12 iterations)
//	 version

package auth

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// DefaultCost is the bcrypt work factor used in production.
// Roughly ~250ms per hash on a modern server.
const DefaultCost = 12

// Bounds accepted by NewPasswordService.
const (
	MinCost = bcrypt.MinCost
	MaxCost = bcrypt.MaxCost
)

// maxPasswordBytes is bcrypt's input limit. Longer inputs are rejected, not
// truncated.
const maxPasswordBytes = 72

var (
	// ErrHashFormat means a stored hash could not be parsed. It signals data
	// corruption and must surface as a server fault, never to the client.
	ErrHashFormat = errors.New("auth: malformed password hash")

	// ErrPasswordTooLong is returned by Hash for plaintexts over 72 bytes.
	ErrPasswordTooLong = errors.New("auth: password must be 72 bytes or fewer")
)

// PasswordService provides bcrypt hashing and verification.
//
// It's a struct (not free functions) so that the cost can be injected
// in tests: cost 4 makes tests run in milliseconds.
type PasswordService struct {
	cost int
}

// NewPasswordService creates a PasswordService with the given bcrypt cost.
// Costs outside bcrypt's [4, 31] range are rejected.
func NewPasswordService(cost int) (*PasswordService, error) {
	if cost < MinCost || cost > MaxCost {
		return nil, fmt.Errorf("auth: bcrypt cost %d out of range [%d, %d]", cost, MinCost, MaxCost)
	}
	return &PasswordService{cost: cost}, nil
}

// NewPasswordServiceForTest creates a PasswordService with the minimum bcrypt
// cost. Use this in tests in other packages.
//
// Do NOT use in production: cost 4 is far too weak.
func NewPasswordServiceForTest() *PasswordService {
	return &PasswordService{cost: bcrypt.MinCost}
}

// Hash hashes the given plaintext password with bcrypt.
//
// The output is a self-contained string like:
//
//	$2a$12$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy
//
// Store this string directly in the database.
func (p *PasswordService) Hash(plaintext string) (string, error) {
	if len(plaintext) > maxPasswordBytes {
		return "", ErrPasswordTooLong
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(plaintext), p.cost)
	if err != nil {
		return "", fmt.Errorf("auth: hashing password: %w", err)
	}

	return string(hashed), nil
}

// Verify reports whether plaintext matches the stored bcrypt hash.
//
// A mismatch is (false, nil), not an error: wrong passwords are an expected
// outcome. The only error is ErrHashFormat, for a hash bcrypt cannot decode.
//
// bcrypt.CompareHashAndPassword compares the derived digests with
// crypto/subtle, so the running time does not depend on where they differ.
func (p *PasswordService) Verify(plaintext, hash string) (bool, error) {
	// bcrypt.Cost parses the header and salt without hashing anything, which
	// separates "unreadable hash" from "wrong password".
	if _, err := bcrypt.Cost([]byte(hash)); err != nil {
		return false, fmt.Errorf("%w: %v", ErrHashFormat, err)
	}

	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword),
		errors.Is(err, bcrypt.ErrPasswordTooLong):
		return false, nil
	default:
		return false, fmt.Errorf("%w: %v", ErrHashFormat, err)
	}
}
