package tokenizer

import "github.com/golang-jwt/jwt/v5"

// AccessClaims combines standard claims with access-specific ones
type AccessClaims struct {
	jwt.RegisteredClaims
	Roles     []string `json:"roles"`
	RefreshID string   `json:"rid"` // ID of the refresh token
}

// RefreshClaims carry the roles so a rotation can re-mint them
type RefreshClaims struct {
	jwt.RegisteredClaims
	Roles []string `json:"roles"`
}
