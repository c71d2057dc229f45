package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"auth_service/internal/models"

	"github.com/gofrs/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSQLite(t *testing.T) *SQLiteStorage {
	t.Helper()
	s, err := NewSQLiteStorage(context.Background(), filepath.Join(t.TempDir(), "auth.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func testUser(username string) models.User {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return models.User{
		ID:           uuid.Must(uuid.NewV4()),
		Username:     username,
		Email:        username + "@example.com",
		FullName:     "Test " + username,
		PasswordHash: "$2a$04$hash",
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func TestSQLite_CreateAndGet(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newTestSQLite(t)

	user := testUser("alice")
	require.NoError(t, s.CreateUser(ctx, user))

	byID, err := s.GetUserByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, user.ID, byID.ID)
	assert.Equal(t, "alice", byID.Username)
	assert.Equal(t, "alice@example.com", byID.Email)
	assert.Nil(t, byID.RefreshToken)
	assert.True(t, user.CreatedAt.Equal(byID.CreatedAt))

	byName, err := s.GetUserByLogin(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, user.ID, byName.ID)

	byEmail, err := s.GetUserByLogin(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, user.ID, byEmail.ID)
}

func TestSQLite_NotFound(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newTestSQLite(t)

	_, err := s.GetUserByID(ctx, uuid.Must(uuid.NewV4()))
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = s.GetUserByLogin(ctx, "nobody")
	assert.ErrorIs(t, err, ErrNotFound)

	err = s.SaveUser(ctx, testUser("ghost"))
	assert.ErrorIs(t, err, ErrNotFound)

	token := "t"
	err = s.SetRefreshToken(ctx, uuid.Must(uuid.NewV4()), &token, time.Now())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLite_Duplicates(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newTestSQLite(t)

	alice := testUser("alice")
	require.NoError(t, s.CreateUser(ctx, alice))

	sameName := testUser("alice")
	sameName.Email = "other@example.com"
	assert.ErrorIs(t, s.CreateUser(ctx, sameName), ErrAlreadyExists)

	sameEmail := testUser("bob")
	sameEmail.Email = alice.Email
	assert.ErrorIs(t, s.CreateUser(ctx, sameEmail), ErrAlreadyExists)

	bob := testUser("bob")
	require.NoError(t, s.CreateUser(ctx, bob))
	bob.Email = alice.Email
	assert.ErrorIs(t, s.SaveUser(ctx, bob), ErrAlreadyExists)
}

func TestSQLite_SaveUserKeepsRefreshToken(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newTestSQLite(t)

	user := testUser("alice")
	require.NoError(t, s.CreateUser(ctx, user))

	token := "refresh-1"
	require.NoError(t, s.SetRefreshToken(ctx, user.ID, &token, time.Now()))

	user.FullName = "Alice Liddell"
	user.PasswordHash = "$2a$04$other"
	require.NoError(t, s.SaveUser(ctx, user))

	got, err := s.GetUserByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "Alice Liddell", got.FullName)
	assert.Equal(t, "$2a$04$other", got.PasswordHash)
	require.NotNil(t, got.RefreshToken)
	assert.Equal(t, "refresh-1", *got.RefreshToken)
}

func TestSQLite_RefreshTokenLifecycle(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newTestSQLite(t)

	user := testUser("alice")
	require.NoError(t, s.CreateUser(ctx, user))

	// rotation needs a stored token to compare against
	assert.ErrorIs(t, s.RotateRefreshToken(ctx, user.ID, "r1", "r2", time.Now()), ErrNotFound)

	r1 := "r1"
	require.NoError(t, s.SetRefreshToken(ctx, user.ID, &r1, time.Now()))
	require.NoError(t, s.RotateRefreshToken(ctx, user.ID, "r1", "r2", time.Now()))
	assert.ErrorIs(t, s.RotateRefreshToken(ctx, user.ID, "r1", "r3", time.Now()), ErrNotFound)

	got, err := s.GetUserByID(ctx, user.ID)
	require.NoError(t, err)
	require.NotNil(t, got.RefreshToken)
	assert.Equal(t, "r2", *got.RefreshToken)

	require.NoError(t, s.SetRefreshToken(ctx, user.ID, nil, time.Now()))
	got, err = s.GetUserByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Nil(t, got.RefreshToken)
	assert.False(t, got.HasSession())
}

func TestSQLite_InMemory(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	s, err := NewSQLiteStorage(ctx, ":memory:")
	require.NoError(t, err)
	defer s.Close()

	user := testUser("carol")
	require.NoError(t, s.CreateUser(ctx, user))

	_, err = s.GetUserByLogin(ctx, "carol@example.com")
	assert.NoError(t, err)
}

func TestSQLite_GetUserByLoginPrefersEmail(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newTestSQLite(t)

	alice := testUser("alice")
	require.NoError(t, s.CreateUser(ctx, alice))

	// a row written before handles were restricted
	shadow := testUser("mallory")
	shadow.Username = alice.Email
	require.NoError(t, s.CreateUser(ctx, shadow))

	got, err := s.GetUserByLogin(ctx, alice.Email)
	require.NoError(t, err)
	assert.Equal(t, alice.ID, got.ID)
}
