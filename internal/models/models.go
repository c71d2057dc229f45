package models

import (
	"time"

	"github.com/gofrs/uuid"
)

// User is the persisted identity record. PasswordHash and RefreshToken are
// never serialized; responses use Public.
type User struct {
	ID           uuid.UUID
	Username     string
	Email        string
	FullName     string
	PasswordHash string  // bcrypt hash
	RefreshToken *string // nil means no active session
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// PublicUser is the sanitized view of User returned to clients.
type PublicUser struct {
	ID        uuid.UUID `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	FullName  string    `json:"full_name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (u User) Public() PublicUser {
	return PublicUser{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		FullName:  u.FullName,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

// HasSession reports whether a refresh token is currently stored.
func (u User) HasSession() bool {
	return u.RefreshToken != nil && *u.RefreshToken != ""
}

type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// Session is what login and refresh hand back to the transport.
type Session struct {
	User   PublicUser
	Tokens TokenPair
}
