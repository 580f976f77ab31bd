package models

import (
	"time"

	"github.com/gofrs/uuid"
)

type Credentials struct {
	UserID       uuid.UUID
	Email        string
	PasswordHash string // bcrypt hash
}

// User is an account as exposed to clients. PasswordHash never leaves the
// process.
type User struct {
	ID           uuid.UUID `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Phone        string    `json:"phone,omitempty"`
	Address      string    `json:"address,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// LoginResult is returned by every successful sign-in, local or OAuth.
type LoginResult struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

const TokenTypeBearer = "bearer"
