/*
Package password hashes and verifies account passwords with bcrypt.

The configured PASSWORD_SALT is applied as a pepper: the password is keyed with it via
HMAC-SHA256 before bcrypt sees it, so stored hashes are useless without the server's salt.
bcrypt still generates its own per-hash salt.
*/
package password

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// ErrMismatch is returned by Verify when the password does not match the hash.
var ErrMismatch = errors.New("password does not match")

// Hasher hashes passwords with a fixed pepper and bcrypt cost.
type Hasher struct {
	pepper []byte
	cost   int
}

// NewHasher returns a Hasher using pepper and bcrypt.DefaultCost.
func NewHasher(pepper []byte) *Hasher {
	return NewHasherWithCost(pepper, bcrypt.DefaultCost)
}

// NewHasherWithCost is NewHasher with an explicit bcrypt cost. Tests use bcrypt.MinCost.
func NewHasherWithCost(pepper []byte, cost int) *Hasher {
	p := make([]byte, len(pepper))
	copy(p, pepper)
	return &Hasher{pepper: p, cost: cost}
}

// Hash returns the bcrypt hash of the peppered password.
func (h *Hasher) Hash(plain string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword(h.peppered(plain), h.cost)
	if err != nil {
		return "", fmt.Errorf("hashing password: %w", err)
	}
	return string(hashed), nil
}

// Verify checks plain against hash. A mismatch returns ErrMismatch; any other error
// means the stored hash is unusable.
func (h *Hasher) Verify(plain, hash string) error {
	err := bcrypt.CompareHashAndPassword([]byte(hash), h.peppered(plain))
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return ErrMismatch
	}
	if err != nil {
		return fmt.Errorf("verifying password: %w", err)
	}
	return nil
}

// peppered keys plain with the pepper. The base64 form stays under bcrypt's 72-byte limit
// regardless of the password length.
func (h *Hasher) peppered(plain string) []byte {
	mac := hmac.New(sha256.New, h.pepper)
	mac.Write([]byte(plain))
	sum := mac.Sum(nil)

	out := make([]byte, base64.StdEncoding.EncodedLen(len(sum)))
	base64.StdEncoding.Encode(out, sum)
	return out
}
