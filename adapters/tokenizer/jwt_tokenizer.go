package tokenizer

import (
	"crypto/ecdsa"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"github.com/pharos-rwa/pharos/core"
	"github.com/pharos-rwa/pharos/ports"
)

const AudienceAccess = "session:access"
const AudienceRefresh = "session:refresh"

// JWTTokenizer implements the Tokenizer interface using JWT.
//
// Signing always uses the single current key. Validation accepts the
// current key plus a bounded set of previous verification keys, so
// tokens minted just before a key rotation remain valid until expiry.
type JWTTokenizer struct {
	signKey    *ecdsa.PrivateKey
	verifyKeys []*ecdsa.PublicKey // current key first
}

// NewJWTTokenizer creates a new JWT tokenizer. prevKeys are
// verification keys from earlier rotations, newest first.
func NewJWTTokenizer(signKey *ecdsa.PrivateKey, prevKeys ...*ecdsa.PublicKey) ports.Tokenizer {
	verifyKeys := append([]*ecdsa.PublicKey{&signKey.PublicKey}, prevKeys...)
	return &JWTTokenizer{signKey: signKey, verifyKeys: verifyKeys}
}

// SessionToAccessToken converts a Session to an access JWT token
func (j *JWTTokenizer) SessionToAccessToken(session *core.Session) (string, error) {
	claims := AccessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   session.Address,
			ID:        session.ID,
			ExpiresAt: jwt.NewNumericDate(session.AccessExpiry),
			IssuedAt:  jwt.NewNumericDate(session.IssuedAt),
			Audience:  jwt.ClaimStrings{AudienceAccess},
		},
		Roles:     rolesToStrings(session.Roles),
		RefreshID: session.RefreshID,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodES256, claims)

	signedToken, err := token.SignedString(j.signKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign access token: %w", err)
	}

	return signedToken, nil
}

// SessionToRefreshToken converts a Session to a refresh JWT token
func (j *JWTTokenizer) SessionToRefreshToken(session *core.Session) (string, error) {
	claims := RefreshClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   session.Address,
			ID:        session.RefreshID, // Use RefreshID as the JWT ID for the refresh token
			ExpiresAt: jwt.NewNumericDate(session.RefreshExpiry),
			IssuedAt:  jwt.NewNumericDate(session.IssuedAt),
			Audience:  jwt.ClaimStrings{AudienceRefresh},
		},
		Roles: rolesToStrings(session.Roles),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodES256, claims)

	signedToken, err := token.SignedString(j.signKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign refresh token: %w", err)
	}

	return signedToken, nil
}

// AccessTokenToSession parses an access token and returns the associated session
func (j *JWTTokenizer) AccessTokenToSession(tokenStr string) (*core.Session, error) {
	claims := &AccessClaims{}
	if err := j.parse(tokenStr, claims, AudienceAccess); err != nil {
		return nil, err
	}

	session := &core.Session{
		ID:           claims.ID,
		Address:      claims.Subject,
		Roles:        rolesFromStrings(claims.Roles),
		IssuedAt:     claims.IssuedAt.Time,
		AccessExpiry: claims.ExpiresAt.Time,
		RefreshID:    claims.RefreshID,
	}

	return session, nil
}

// RefreshTokenToSession parses a refresh token and returns the associated session
func (j *JWTTokenizer) RefreshTokenToSession(tokenStr string) (*core.Session, error) {
	claims := &RefreshClaims{}
	if err := j.parse(tokenStr, claims, AudienceRefresh); err != nil {
		return nil, err
	}

	// Refresh tokens carry partial session info; AccessExpiry is not
	// used when processing them.
	session := &core.Session{
		Address:       claims.Subject,
		Roles:         rolesFromStrings(claims.Roles),
		IssuedAt:      claims.IssuedAt.Time,
		RefreshExpiry: claims.ExpiresAt.Time,
		RefreshID:     claims.ID, // The JWT ID is the refresh token ID
	}

	return session, nil
}

// parse validates tokenStr against each verification key in order.
func (j *JWTTokenizer) parse(tokenStr string, claims jwt.Claims, audience string) error {
	var lastErr error
	var expired bool

	for _, key := range j.verifyKeys {
		token, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodECDSA); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return key, nil
		}, jwt.WithAudience(audience))

		if err == nil && token.Valid {
			return nil
		}
		// An expired verdict from any key wins over signature failures
		// against the remaining keys.
		if errors.Is(err, jwt.ErrTokenExpired) {
			expired = true
		}
		lastErr = err
	}

	if expired {
		return core.ErrTokenExpired
	}
	if lastErr != nil {
		return fmt.Errorf("failed to parse token: %w", lastErr)
	}
	return core.ErrInvalidToken
}

func rolesToStrings(roles []core.Role) []string {
	out := make([]string, len(roles))
	for i, r := range roles {
		out[i] = string(r)
	}
	return out
}

func rolesFromStrings(roles []string) []core.Role {
	out := make([]core.Role, 0, len(roles))
	for _, r := range roles {
		if role := core.Role(r); role.Valid() {
			out = append(out, role)
		}
	}
	return out
}
