package auth

import (
	"fmt"

	"auth_service/internal/apperr"

	"github.com/gofrs/uuid"
)

// Guard gates protected operations. Authenticate never reads storage: an
// access token stays valid until it expires, even after logout.
type Guard struct {
	issuer *TokenIssuer
}

func NewGuard(issuer *TokenIssuer) *Guard {
	return &Guard{issuer: issuer}
}

// Authenticate resolves the identity carried by an access token. Every
// failure, including a missing token, is reported as Unauthorized.
func (g *Guard) Authenticate(accessToken string) (*Claims, error) {
	if accessToken == "" {
		return nil, apperr.ErrUnauthorized.WithCause(ErrTokenMalformed)
	}

	claims, err := g.issuer.VerifyAccess(accessToken)
	if err != nil {
		return nil, apperr.ErrUnauthorized.WithCause(err)
	}

	return claims, nil
}

// AuthorizeOwnership permits a write only when the caller owns the resource.
func (g *Guard) AuthorizeOwnership(resourceOwnerID, callerID uuid.UUID) error {
	if resourceOwnerID == uuid.Nil || resourceOwnerID != callerID {
		return apperr.ErrForbidden.WithCause(fmt.Errorf("caller %s does not own resource of %s", callerID, resourceOwnerID))
	}
	return nil
}
