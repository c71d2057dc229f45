package storage

import (
	"context"
	"errors"
	"time"

	"auth_service/internal/models"

	"github.com/gofrs/uuid"
)

const usersTable = "users"

var (
	ErrNotFound      = errors.New("record not found")
	ErrAlreadyExists = errors.New("record already exists")
)

// Storage persists identity records. Every method touches a single row.
type Storage interface {
	// CreateUser inserts a new record. A duplicate username or email
	// yields ErrAlreadyExists.
	CreateUser(ctx context.Context, user models.User) error
	GetUserByID(ctx context.Context, userID uuid.UUID) (models.User, error)
	// GetUserByLogin resolves a record by username or email. An email
	// match wins over a username match.
	GetUserByLogin(ctx context.Context, login string) (models.User, error)

	// SaveUser writes the profile and password columns of an existing
	// record. The refresh token is written only through the methods below.
	SaveUser(ctx context.Context, user models.User) error

	// SetRefreshToken replaces the stored refresh token unconditionally.
	// A nil token clears the session.
	SetRefreshToken(ctx context.Context, userID uuid.UUID, token *string, updatedAt time.Time) error
	// RotateRefreshToken replaces the stored token only if it still equals
	// current, and returns ErrNotFound otherwise.
	RotateRefreshToken(ctx context.Context, userID uuid.UUID, current, next string, updatedAt time.Time) error

	Close() error
}
