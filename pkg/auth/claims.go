package auth

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/licensehub-wallet/pkg/enums"
)

// AccessTokenPayload is the identity a token asserts: one user acting in one
// tenant with one role.
type AccessTokenPayload struct {
	UserID   uuid.UUID
	TenantID uuid.UUID
	Role     enums.ActorRole
	JTI      string
}

func (p AccessTokenPayload) validate() error {
	switch {
	case p.TenantID == uuid.Nil:
		return errors.New("tenant id is required")
	case p.UserID == uuid.Nil:
		return errors.New("user id is required")
	case !p.Role.IsValid():
		return fmt.Errorf("invalid actor role %q", p.Role)
	}
	return nil
}

// AccessTokenClaims is the JWT body shared with the identity service.
type AccessTokenClaims struct {
	UserID   uuid.UUID       `json:"user_id"`
	TenantID uuid.UUID       `json:"tenant_id"`
	Role     enums.ActorRole `json:"role"`
	jwt.RegisteredClaims
}

func (c *AccessTokenClaims) payload() AccessTokenPayload {
	return AccessTokenPayload{UserID: c.UserID, TenantID: c.TenantID, Role: c.Role, JTI: c.ID}
}
