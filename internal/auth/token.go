package auth

import (
	"errors"
	"fmt"
	"time"

	"auth_service/internal/apperr"

	"github.com/gofrs/uuid"
	"github.com/golang-jwt/jwt/v5"
)

// Clock returns the current time. Tests substitute a fixed clock.
type Clock func() time.Time

// Claims carried by access tokens. Refresh tokens only use the registered
// claims (sub, jti, iat, exp).
type Claims struct {
	Username string `json:"username,omitempty"`
	Email    string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

type TokenConfig struct {
	AccessSecret  []byte
	RefreshSecret []byte
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	Issuer        string
}

// Failure reasons kept for logging. Callers only ever see
// apperr.KindInvalidToken.
var (
	ErrTokenExpired   = errors.New("token expired")
	ErrTokenMalformed = errors.New("token malformed")
)

// TokenIssuer mints and verifies HS256 tokens. Access and refresh tokens
// are signed with distinct secrets.
type TokenIssuer struct {
	cfg TokenConfig
	now Clock
}

func NewTokenIssuer(cfg TokenConfig, now Clock) (*TokenIssuer, error) {
	const op = "auth.NewTokenIssuer"

	switch {
	case len(cfg.AccessSecret) == 0 || len(cfg.RefreshSecret) == 0:
		return nil, fmt.Errorf("%s: signing secrets must not be empty", op)
	case string(cfg.AccessSecret) == string(cfg.RefreshSecret):
		return nil, fmt.Errorf("%s: access and refresh secrets must differ", op)
	case cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0:
		return nil, fmt.Errorf("%s: token ttl must be positive", op)
	}
	if now == nil {
		now = time.Now
	}

	return &TokenIssuer{cfg: cfg, now: now}, nil
}

func (t *TokenIssuer) IssueAccess(userID uuid.UUID, username, email string) (string, error) {
	claims := &Claims{
		Username: username,
		Email:    email,
	}
	return t.sign(claims, userID, t.cfg.AccessTTL, t.cfg.AccessSecret)
}

func (t *TokenIssuer) IssueRefresh(userID uuid.UUID) (string, error) {
	return t.sign(&Claims{}, userID, t.cfg.RefreshTTL, t.cfg.RefreshSecret)
}

// VerifyAccess returns the claims of a valid access token.
func (t *TokenIssuer) VerifyAccess(token string) (*Claims, error) {
	return t.verify(token, t.cfg.AccessSecret)
}

// VerifyRefresh returns the claims of a valid refresh token. It does not
// check whether the token is still the stored one.
func (t *TokenIssuer) VerifyRefresh(token string) (*Claims, error) {
	return t.verify(token, t.cfg.RefreshSecret)
}

func (t *TokenIssuer) sign(claims *Claims, userID uuid.UUID, ttl time.Duration, key []byte) (string, error) {
	const op = "auth.TokenIssuer.sign"

	// jti keeps two tokens minted in the same second distinct.
	tokenID, err := uuid.NewV4()
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	now := t.now()
	claims.RegisteredClaims = jwt.RegisteredClaims{
		ID:        tokenID.String(),
		Subject:   userID.String(),
		Issuer:    t.cfg.Issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(key)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	return signed, nil
}

func (t *TokenIssuer) verify(token string, key []byte) (*Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(t.now),
	}
	if t.cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(t.cfg.Issuer))
	}

	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return key, nil
	}, opts...)
	if err != nil || !parsed.Valid {
		reason := ErrTokenMalformed
		if errors.Is(err, jwt.ErrTokenExpired) {
			reason = ErrTokenExpired
		}
		return nil, apperr.Wrap(apperr.KindInvalidToken, reason)
	}

	if _, err := uuid.FromString(claims.Subject); err != nil {
		return nil, apperr.Wrap(apperr.KindInvalidToken, ErrTokenMalformed)
	}

	return claims, nil
}

// UserID parses the subject claim.
func (c *Claims) UserID() uuid.UUID {
	return uuid.FromStringOrNil(c.Subject)
}
