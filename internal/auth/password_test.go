package auth

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestBcryptHasher_HashAndVerify(t *testing.T) {
	t.Parallel()

	h := NewBcryptHasher(bcrypt.MinCost)

	for _, password := range []string{"secret1", "pässwörd", " ", strings.Repeat("x", MaxPasswordBytes)} {
		hash, err := h.Hash(password)
		require.NoError(t, err)
		assert.NotContains(t, hash, password)
		assert.True(t, h.Verify(password, hash), "password %q should verify", password)
	}
}

func TestBcryptHasher_Salted(t *testing.T) {
	t.Parallel()

	h := NewBcryptHasher(bcrypt.MinCost)

	first, err := h.Hash("secret1")
	require.NoError(t, err)
	second, err := h.Hash("secret1")
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
}

func TestBcryptHasher_WrongPassword(t *testing.T) {
	t.Parallel()

	h := NewBcryptHasher(bcrypt.MinCost)

	hash, err := h.Hash("secret1")
	require.NoError(t, err)

	assert.False(t, h.Verify("secret2", hash))
	assert.False(t, h.Verify("", hash))
}

func TestBcryptHasher_MalformedHash(t *testing.T) {
	t.Parallel()

	h := NewBcryptHasher(bcrypt.MinCost)

	for _, hash := range []string{"", "not-a-hash", "$2a$10$short"} {
		assert.False(t, h.Verify("secret1", hash))
	}
}

func TestBcryptHasher_TooLong(t *testing.T) {
	t.Parallel()

	h := NewBcryptHasher(bcrypt.MinCost)

	_, err := h.Hash(strings.Repeat("x", MaxPasswordBytes+1))
	assert.Error(t, err)
}

func TestNewBcryptHasher_DefaultCost(t *testing.T) {
	t.Parallel()

	assert.Equal(t, bcrypt.DefaultCost, NewBcryptHasher(0).cost)
}
