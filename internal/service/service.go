package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"auth_service/internal/apperr"
	"auth_service/internal/auth"
	"auth_service/internal/models"
	"auth_service/internal/storage"

	"github.com/gofrs/uuid"
)

const (
	minPasswordLen = 8
	maxPasswordLen = 72 // bcrypt ignores bytes past 72
)

var errSessionRevoked = errors.New("refresh token superseded or revoked")

type Service interface {
	Register(ctx context.Context, input RegisterInput) (models.PublicUser, error)
	Login(ctx context.Context, identifier, password string) (models.Session, error)
	Logout(ctx context.Context, userID uuid.UUID) error
	Refresh(ctx context.Context, refreshToken string) (models.Session, error)
	ChangePassword(ctx context.Context, userID uuid.UUID, oldPassword, newPassword string) error
	CurrentUser(ctx context.Context, userID uuid.UUID) (models.PublicUser, error)
	UpdateAccountDetails(ctx context.Context, userID uuid.UUID, fullName, email string) (models.PublicUser, error)
}

type RegisterInput struct {
	Username string
	Email    string
	FullName string
	Password string
}

// SessionService drives the session lifecycle of an identity:
// login, refresh with rotation, logout and password change.
type SessionService struct {
	storage storage.Storage
	hasher  *auth.PasswordHasher
	tokens  *auth.TokenIssuer
	now     auth.Clock
}

var _ Service = (*SessionService)(nil)

func NewService(st storage.Storage, hasher *auth.PasswordHasher, tokens *auth.TokenIssuer, now auth.Clock) *SessionService {
	if now == nil {
		now = time.Now
	}
	return &SessionService{
		storage: st,
		hasher:  hasher,
		tokens:  tokens,
		now:     now,
	}
}

func (s *SessionService) Register(ctx context.Context, input RegisterInput) (models.PublicUser, error) {
	const op = "service.Register"

	username := normalize(input.Username)
	email := normalize(input.Email)
	fullName := strings.TrimSpace(input.FullName)

	if username == "" || email == "" || fullName == "" || input.Password == "" {
		return models.PublicUser{}, apperr.New(apperr.KindInvalidInput, "all fields are required")
	}
	if strings.Contains(username, "@") {
		// a handle must never be resolvable as someone's address
		return models.PublicUser{}, apperr.New(apperr.KindInvalidInput, "username must not contain '@'")
	}
	if err := validateEmail(email); err != nil {
		return models.PublicUser{}, err
	}
	if err := validatePassword(input.Password); err != nil {
		return models.PublicUser{}, err
	}

	hash, err := s.hasher.Hash(input.Password)
	if err != nil {
		return models.PublicUser{}, fmt.Errorf("%s: %w", op, err)
	}

	id, err := uuid.NewV4()
	if err != nil {
		return models.PublicUser{}, fmt.Errorf("%s: %w", op, err)
	}

	now := s.now().UTC()
	user := models.User{
		ID:           id,
		Username:     username,
		Email:        email,
		FullName:     fullName,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.storage.CreateUser(ctx, user); err != nil {
		if errors.Is(err, storage.ErrAlreadyExists) {
			return models.PublicUser{}, apperr.New(apperr.KindConflict, "username or email already taken").WithCause(err)
		}
		return models.PublicUser{}, fmt.Errorf("%s: %w", op, err)
	}

	return user.Public(), nil
}

// Login verifies credentials and starts a session, replacing any session
// the identity already had. An unknown identifier and a wrong password
// fail the same way.
func (s *SessionService) Login(ctx context.Context, identifier, password string) (models.Session, error) {
	const op = "service.Login"

	login := normalize(identifier)
	if login == "" || password == "" {
		return models.Session{}, apperr.ErrInvalidCredentials
	}

	user, err := s.storage.GetUserByLogin(ctx, login)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return models.Session{}, apperr.ErrInvalidCredentials.WithCause(apperr.ErrNotFound)
		}
		return models.Session{}, fmt.Errorf("%s: %w", op, err)
	}

	ok, err := s.hasher.Verify(password, user.PasswordHash)
	if err != nil {
		return models.Session{}, fmt.Errorf("%s: %w", op, err)
	}
	if !ok {
		return models.Session{}, apperr.ErrInvalidCredentials
	}

	tokens, err := s.issuePair(user)
	if err != nil {
		return models.Session{}, fmt.Errorf("%s: %w", op, err)
	}

	if err := s.storage.SetRefreshToken(ctx, user.ID, &tokens.RefreshToken, s.now().UTC()); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return models.Session{}, apperr.ErrInvalidCredentials.WithCause(err)
		}
		return models.Session{}, fmt.Errorf("%s: %w", op, err)
	}

	return models.Session{User: user.Public(), Tokens: tokens}, nil
}

// Logout clears the stored refresh token. Calling it without an active
// session is not an error.
func (s *SessionService) Logout(ctx context.Context, userID uuid.UUID) error {
	const op = "service.Logout"

	if err := s.storage.SetRefreshToken(ctx, userID, nil, s.now().UTC()); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return apperr.ErrNotFound.WithCause(err)
		}
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// Refresh exchanges the current refresh token for a new pair. The
// presented token stops working once this returns successfully.
func (s *SessionService) Refresh(ctx context.Context, refreshToken string) (models.Session, error) {
	const op = "service.Refresh"

	claims, err := s.tokens.VerifyRefresh(refreshToken)
	if err != nil {
		return models.Session{}, fmt.Errorf("%s: %w", op, err)
	}

	user, err := s.storage.GetUserByID(ctx, claims.UserID())
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return models.Session{}, apperr.ErrInvalidToken.WithCause(err)
		}
		return models.Session{}, fmt.Errorf("%s: %w", op, err)
	}

	if !user.HasSession() || subtle.ConstantTimeCompare([]byte(*user.RefreshToken), []byte(refreshToken)) != 1 {
		return models.Session{}, apperr.ErrInvalidToken.WithCause(errSessionRevoked)
	}

	tokens, err := s.issuePair(user)
	if err != nil {
		return models.Session{}, fmt.Errorf("%s: %w", op, err)
	}

	// A concurrent refresh, login or logout may have replaced the token
	// since it was read; the rotation only applies if it has not.
	err = s.storage.RotateRefreshToken(ctx, user.ID, refreshToken, tokens.RefreshToken, s.now().UTC())
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return models.Session{}, apperr.ErrInvalidToken.WithCause(errSessionRevoked)
		}
		return models.Session{}, fmt.Errorf("%s: %w", op, err)
	}

	return models.Session{User: user.Public(), Tokens: tokens}, nil
}

// ChangePassword replaces the password hash after re-verifying the old
// password. Existing sessions are left untouched.
func (s *SessionService) ChangePassword(ctx context.Context, userID uuid.UUID, oldPassword, newPassword string) error {
	const op = "service.ChangePassword"

	if err := validatePassword(newPassword); err != nil {
		return err
	}

	user, err := s.getUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	ok, err := s.hasher.Verify(oldPassword, user.PasswordHash)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if !ok {
		return apperr.ErrInvalidCredentials
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	user.PasswordHash = hash
	user.UpdatedAt = s.now().UTC()

	if err := s.saveUser(ctx, user); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (s *SessionService) CurrentUser(ctx context.Context, userID uuid.UUID) (models.PublicUser, error) {
	const op = "service.CurrentUser"

	user, err := s.getUser(ctx, userID)
	if err != nil {
		return models.PublicUser{}, fmt.Errorf("%s: %w", op, err)
	}

	return user.Public(), nil
}

func (s *SessionService) UpdateAccountDetails(ctx context.Context, userID uuid.UUID, fullName, email string) (models.PublicUser, error) {
	const op = "service.UpdateAccountDetails"

	fullName = strings.TrimSpace(fullName)
	email = normalize(email)
	if fullName == "" || email == "" {
		return models.PublicUser{}, apperr.New(apperr.KindInvalidInput, "full name and email are required")
	}
	if err := validateEmail(email); err != nil {
		return models.PublicUser{}, err
	}

	user, err := s.getUser(ctx, userID)
	if err != nil {
		return models.PublicUser{}, fmt.Errorf("%s: %w", op, err)
	}

	user.FullName = fullName
	user.Email = email
	user.UpdatedAt = s.now().UTC()

	if err := s.saveUser(ctx, user); err != nil {
		return models.PublicUser{}, fmt.Errorf("%s: %w", op, err)
	}

	return user.Public(), nil
}

func (s *SessionService) issuePair(user models.User) (models.TokenPair, error) {
	access, err := s.tokens.IssueAccess(user.ID, user.Username, user.Email)
	if err != nil {
		return models.TokenPair{}, err
	}

	refresh, err := s.tokens.IssueRefresh(user.ID)
	if err != nil {
		return models.TokenPair{}, err
	}

	return models.TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

func (s *SessionService) getUser(ctx context.Context, userID uuid.UUID) (models.User, error) {
	user, err := s.storage.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return models.User{}, apperr.ErrNotFound.WithCause(err)
		}
		return models.User{}, err
	}
	return user, nil
}

func (s *SessionService) saveUser(ctx context.Context, user models.User) error {
	err := s.storage.SaveUser(ctx, user)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, storage.ErrAlreadyExists):
		return apperr.New(apperr.KindConflict, "email already taken").WithCause(err)
	case errors.Is(err, storage.ErrNotFound):
		return apperr.ErrNotFound.WithCause(err)
	default:
		return err
	}
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func validateEmail(email string) error {
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return apperr.New(apperr.KindInvalidInput, "invalid email address")
	}
	return nil
}

func validatePassword(password string) error {
	if len(password) < minPasswordLen || len(password) > maxPasswordLen {
		return apperr.New(apperr.KindInvalidInput,
			fmt.Sprintf("password must be between %d and %d bytes", minPasswordLen, maxPasswordLen))
	}
	return nil
}
