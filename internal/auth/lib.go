package auth

import (
	"crypto/rand"
	"fmt"
)

const stateAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// RandomString returns n alphanumeric characters for OAuth state values.
// Bytes at or above the largest multiple of the alphabet size are discarded
// so every character is equally likely.
func RandomString(n int) (string, error) {
	const op = "auth.RandomString"

	limit := byte(256 - 256%len(stateAlphabet))
	out := make([]byte, 0, n)
	buf := make([]byte, n)

	for len(out) < n {
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("%s: %w", op, err)
		}
		for _, b := range buf {
			if b >= limit {
				continue
			}
			out = append(out, stateAlphabet[int(b)%len(stateAlphabet)])
			if len(out) == n {
				break
			}
		}
	}

	return string(out), nil
}
