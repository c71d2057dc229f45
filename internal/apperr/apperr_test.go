package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorsIs_MatchesByKind(t *testing.T) {
	t.Parallel()

	err := fmt.Errorf("service.Refresh: %w", Wrap(KindInvalidToken, errors.New("session superseded")))

	assert.True(t, errors.Is(err, ErrInvalidToken))
	assert.False(t, errors.Is(err, ErrUnauthorized))
	assert.Equal(t, KindInvalidToken, KindOf(err))
}

func TestWrap_KeepsCauseOutOfMessage(t *testing.T) {
	t.Parallel()

	cause := errors.New("crypto/bcrypt: hashedSecret too short")
	err := Wrap(KindIntegrity, cause)

	require.ErrorIs(t, err, cause)
	assert.Equal(t, "internal error", MessageOf(err))
	assert.Contains(t, err.Error(), "hashedSecret too short")
}

func TestKindOf_UnknownIsInternal(t *testing.T) {
	t.Parallel()

	assert.Equal(t, KindInternal, KindOf(errors.New("boom")))
	assert.Equal(t, KindInternal, KindOf(nil))
	assert.Equal(t, "internal error", MessageOf(errors.New("db password=hunter2")))
}

func TestWithCause_DoesNotMutateSentinel(t *testing.T) {
	t.Parallel()

	err := ErrInvalidCredentials.WithCause(errors.New("not found"))

	assert.NotSame(t, ErrInvalidCredentials, err)
	assert.Nil(t, ErrInvalidCredentials.Unwrap())
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestKind_String(t *testing.T) {
	t.Parallel()

	tests := map[Kind]string{
		KindInvalidCredentials: "invalid_credentials",
		KindInvalidToken:       "invalid_token",
		KindUnauthorized:       "unauthorized",
		KindForbidden:          "forbidden",
		KindNotFound:           "not_found",
		KindIntegrity:          "integrity",
		KindInvalidInput:       "invalid_input",
		KindConflict:           "conflict",
		KindInternal:           "internal",
	}
	for kind, want := range tests {
		assert.Equal(t, want, kind.String())
	}
}
