package auth

import (
	"errors"
	"strings"
	"testing"
	"time"

	"auth_service/internal/apperr"

	"github.com/gofrs/uuid"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestIssuer(t *testing.T, clock *fakeClock) *TokenIssuer {
	t.Helper()
	issuer, err := NewTokenIssuer(TokenConfig{
		AccessSecret:  []byte("access-secret"),
		RefreshSecret: []byte("refresh-secret"),
		AccessTTL:     15 * time.Minute,
		RefreshTTL:    24 * time.Hour,
		Issuer:        "auth_service",
	}, clock.Now)
	require.NoError(t, err)
	return issuer
}

func TestIssueAccess_RoundTrip(t *testing.T) {
	t.Parallel()
	issuer := newTestIssuer(t, &fakeClock{t: time.Now()})
	userID := uuid.Must(uuid.NewV4())

	tok, err := issuer.IssueAccess(userID, "alice", "alice@example.com")
	require.NoError(t, err)

	claims, err := issuer.VerifyAccess(tok)
	require.NoError(t, err)
	assert.Equal(t, userID, claims.UserID())
	assert.Equal(t, "alice", claims.Username)
	assert.Equal(t, "alice@example.com", claims.Email)
	assert.Equal(t, "auth_service", claims.Issuer)
}

func TestIssueRefresh_CarriesOnlySubject(t *testing.T) {
	t.Parallel()
	issuer := newTestIssuer(t, &fakeClock{t: time.Now()})
	userID := uuid.Must(uuid.NewV4())

	tok, err := issuer.IssueRefresh(userID)
	require.NoError(t, err)

	claims, err := issuer.VerifyRefresh(tok)
	require.NoError(t, err)
	assert.Equal(t, userID, claims.UserID())
	assert.Empty(t, claims.Username)
	assert.Empty(t, claims.Email)
}

func TestIssue_SameInstantTokensDiffer(t *testing.T) {
	t.Parallel()
	issuer := newTestIssuer(t, &fakeClock{t: time.Now()})
	userID := uuid.Must(uuid.NewV4())

	a, err := issuer.IssueRefresh(userID)
	require.NoError(t, err)
	b, err := issuer.IssueRefresh(userID)
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
}

func TestVerify_SecretsAreNotInterchangeable(t *testing.T) {
	t.Parallel()
	issuer := newTestIssuer(t, &fakeClock{t: time.Now()})
	userID := uuid.Must(uuid.NewV4())

	access, err := issuer.IssueAccess(userID, "alice", "alice@example.com")
	require.NoError(t, err)
	refresh, err := issuer.IssueRefresh(userID)
	require.NoError(t, err)

	_, err = issuer.VerifyRefresh(access)
	assert.ErrorIs(t, err, apperr.ErrInvalidToken)

	_, err = issuer.VerifyAccess(refresh)
	assert.ErrorIs(t, err, apperr.ErrInvalidToken)
}

func TestVerify_Expired(t *testing.T) {
	t.Parallel()
	clock := &fakeClock{t: time.Now()}
	issuer := newTestIssuer(t, clock)

	tok, err := issuer.IssueAccess(uuid.Must(uuid.NewV4()), "alice", "alice@example.com")
	require.NoError(t, err)

	clock.Advance(16 * time.Minute)

	_, err = issuer.VerifyAccess(tok)
	require.ErrorIs(t, err, apperr.ErrInvalidToken)
	assert.True(t, errors.Is(err, ErrTokenExpired), "internal reason should be expired, got %v", err)
	assert.Equal(t, apperr.ErrInvalidToken.Message, apperr.MessageOf(err))
}

func TestVerify_Malformed(t *testing.T) {
	t.Parallel()
	clock := &fakeClock{t: time.Now()}
	issuer := newTestIssuer(t, clock)

	tok, err := issuer.IssueAccess(uuid.Must(uuid.NewV4()), "alice", "alice@example.com")
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
	}{
		{name: "empty", token: ""},
		{name: "garbage", token: "not.a.jwt"},
		{name: "tampered signature", token: strings.Join(strings.Split(tok, ".")[:2], ".") + ".AAAA"},
		{name: "truncated", token: strings.Join(strings.Split(tok, ".")[:2], ".")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := issuer.VerifyAccess(tt.token)
			require.ErrorIs(t, err, apperr.ErrInvalidToken)
			assert.True(t, errors.Is(err, ErrTokenMalformed))
		})
	}
}

func TestVerify_RejectsOtherAlgorithms(t *testing.T) {
	t.Parallel()
	clock := &fakeClock{t: time.Now()}
	issuer := newTestIssuer(t, clock)

	claims := &Claims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:   uuid.Must(uuid.NewV4()).String(),
		Issuer:    "auth_service",
		ExpiresAt: jwt.NewNumericDate(clock.Now().Add(time.Hour)),
	}}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString([]byte("access-secret"))
	require.NoError(t, err)

	_, err = issuer.VerifyAccess(tok)
	assert.ErrorIs(t, err, apperr.ErrInvalidToken)
}

func TestVerify_RejectsNonUUIDSubject(t *testing.T) {
	t.Parallel()
	clock := &fakeClock{t: time.Now()}
	issuer := newTestIssuer(t, clock)

	claims := &Claims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:   "user-123",
		Issuer:    "auth_service",
		ExpiresAt: jwt.NewNumericDate(clock.Now().Add(time.Hour)),
	}}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("access-secret"))
	require.NoError(t, err)

	_, err = issuer.VerifyAccess(tok)
	assert.ErrorIs(t, err, ErrTokenMalformed)
}

func TestNewTokenIssuer_Validation(t *testing.T) {
	t.Parallel()

	base := TokenConfig{
		AccessSecret:  []byte("a"),
		RefreshSecret: []byte("r"),
		AccessTTL:     time.Minute,
		RefreshTTL:    time.Hour,
	}

	tests := []struct {
		name   string
		mutate func(*TokenConfig)
	}{
		{"empty access secret", func(c *TokenConfig) { c.AccessSecret = nil }},
		{"empty refresh secret", func(c *TokenConfig) { c.RefreshSecret = nil }},
		{"shared secret", func(c *TokenConfig) { c.RefreshSecret = []byte("a") }},
		{"zero access ttl", func(c *TokenConfig) { c.AccessTTL = 0 }},
		{"negative refresh ttl", func(c *TokenConfig) { c.RefreshTTL = -time.Second }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base
			tt.mutate(&cfg)
			_, err := NewTokenIssuer(cfg, nil)
			assert.Error(t, err)
		})
	}

	_, err := NewTokenIssuer(base, nil)
	assert.NoError(t, err)
}
