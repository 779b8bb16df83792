package auth

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/hauslist/hauslist-backend/pkg/enums"
)

// AccessTokenPayload captures the data available when minting a JWT.
type AccessTokenPayload struct {
	HostID uuid.UUID
	Role   enums.HostRole
	JTI    string
}

// AccessTokenClaims represents the typed JWT issued to clients.
type AccessTokenClaims struct {
	HostID uuid.UUID      `json:"host_id"`
	Role   enums.HostRole `json:"role"`
	jwt.RegisteredClaims
}
