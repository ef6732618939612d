package auth

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

const bcryptCost = 10

// PasswordHasher hashes plaintext passwords and verifies them against stored
// hashes. The hash output is self-describing (algorithm and cost are embedded)
// so Verify needs no knowledge of which parameters produced a given hash.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(password, hash string) bool
}

type bcryptHasher struct {
	cost int
}

// NewPasswordHasher returns the recommended bcrypt-backed hasher.
func NewPasswordHasher() PasswordHasher {
	return &bcryptHasher{cost: bcryptCost}
}

func (h *bcryptHasher) Hash(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hashed), nil
}

// Verify reports whether password matches hash. bcrypt's comparison is
// constant-time over the digest.
func (h *bcryptHasher) Verify(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// dummyHash is a valid bcrypt hash of a random string. Login paths compare
// against it when no user matches the email, keeping lookup-miss timing close
// to a real password check.
const dummyHash = "$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"

// DummyVerify burns one bcrypt comparison and always fails.
func DummyVerify(h PasswordHasher) {
	_ = h.Verify("", dummyHash)
}
