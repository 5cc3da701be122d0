package verify

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// Status tracks the lifecycle of a one-time challenge.
type Status string

const (
	StatusPending  Status = "pending"
	StatusVerified Status = "verified"
	StatusExpired  Status = "expired"
	StatusLocked   Status = "locked"
)

const (
	// MaxAttempts is the cap on failed verification attempts per challenge.
	MaxAttempts = 5
	// TTL is the validity window of a challenge code.
	TTL = 5 * time.Minute
	codeDigits = 6
)

// Challenge is the single live one-time code for a phone number. At most one
// pending challenge exists per phone; a new request supersedes the prior one.
type Challenge struct {
	Phone     string
	CodeHash  []byte
	ExpiresAt time.Time
	Attempts  int
	Status    Status
	CreatedAt time.Time
}

// Expired reports whether the challenge is past its expiry instant.
func (c Challenge) Expired(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}

// GenerateCode produces a zero-padded 6-digit code from crypto/rand.
func GenerateCode() (string, error) {
	max := big.NewInt(1)
	for i := 0; i < codeDigits; i++ {
		max.Mul(max, big.NewInt(10))
	}
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", codeDigits, n), nil
}

// HashCode hashes a challenge code for storage.
func HashCode(code string) ([]byte, error) {
	return bcrypt.GenerateFromPassword([]byte(code), bcrypt.DefaultCost)
}

// MatchCode compares a stored hash against a submitted code.
func MatchCode(hash []byte, code string) bool {
	return bcrypt.CompareHashAndPassword(hash, []byte(code)) == nil
}
