package auth

import (
	"errors"
	"fmt"
	"maps"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const DefaultTokenTTL = 30 * time.Minute

var (
	ErrEmptySigningKey = errors.New("signing key is empty")
	ErrInvalidToken    = errors.New("invalid token")
	ErrTokenExpired    = errors.New("token expired")
)

// TokenIssuer mints and verifies HS256 tokens with a single process-wide key.
type TokenIssuer struct {
	key []byte
	ttl time.Duration
	now func() time.Time
}

func NewTokenIssuer(key []byte, ttl time.Duration) (*TokenIssuer, error) {
	if len(key) == 0 {
		return nil, ErrEmptySigningKey
	}
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}

	return &TokenIssuer{
		key: key,
		ttl: ttl,
		now: time.Now,
	}, nil
}

// Issue signs claims plus exp and iat. A non-positive ttl falls back to the
// issuer default.
func (t *TokenIssuer) Issue(claims map[string]any, ttl time.Duration) (string, error) {
	const op = "auth.TokenIssuer.Issue"

	if ttl <= 0 {
		ttl = t.ttl
	}

	now := t.now()
	mc := make(jwt.MapClaims, len(claims)+2)
	maps.Copy(mc, claims)
	mc["iat"] = now.Unix()
	mc["exp"] = now.Add(ttl).Unix()

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, mc).SignedString(t.key)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	return signed, nil
}

// Verify checks signature and expiry and returns the embedded claims.
func (t *TokenIssuer) Verify(tokenString string) (map[string]any, error) {
	claims := jwt.MapClaims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return t.key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}

	return claims, nil
}

// Subject extracts the sub claim.
func Subject(claims map[string]any) (string, error) {
	sub, err := jwt.MapClaims(claims).GetSubject()
	if err != nil || sub == "" {
		return "", ErrInvalidToken
	}
	return sub, nil
}
