package password

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const testPepper = "0123456789abcdef"

func TestHasher_HashAndVerify(t *testing.T) {
	h := NewHasherWithCost([]byte(testPepper), bcrypt.MinCost)

	hash, err := h.Hash("p1")
	require.NoError(t, err)
	assert.NotContains(t, hash, "p1")

	assert.NoError(t, h.Verify("p1", hash))
	assert.ErrorIs(t, h.Verify("p2", hash), ErrMismatch)
}

func TestHasher_DistinctHashesForSamePassword(t *testing.T) {
	h := NewHasherWithCost([]byte(testPepper), bcrypt.MinCost)

	first, err := h.Hash("secret")
	require.NoError(t, err)
	second, err := h.Hash("secret")
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
	assert.NoError(t, h.Verify("secret", first))
	assert.NoError(t, h.Verify("secret", second))
}

func TestHasher_PepperIsRequired(t *testing.T) {
	h := NewHasherWithCost([]byte(testPepper), bcrypt.MinCost)
	other := NewHasherWithCost([]byte("fedcba9876543210"), bcrypt.MinCost)

	hash, err := h.Hash("secret")
	require.NoError(t, err)

	assert.ErrorIs(t, other.Verify("secret", hash), ErrMismatch)
}

func TestHasher_LongPasswords(t *testing.T) {
	h := NewHasherWithCost([]byte(testPepper), bcrypt.MinCost)

	long := strings.Repeat("a", 100)
	hash, err := h.Hash(long)
	require.NoError(t, err)

	assert.NoError(t, h.Verify(long, hash))
	// Differs only after byte 72, which plain bcrypt would ignore.
	assert.ErrorIs(t, h.Verify(strings.Repeat("a", 99)+"b", hash), ErrMismatch)
}

func TestHasher_CorruptHash(t *testing.T) {
	h := NewHasherWithCost([]byte(testPepper), bcrypt.MinCost)

	err := h.Verify("secret", "not-a-bcrypt-hash")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrMismatch)
}
