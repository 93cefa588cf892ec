package core

import "time"

// Role is a coarse permission class carried inside session tokens.
type Role string

const (
	RoleInvestor Role = "investor"
	RoleCreditor Role = "creditor"
	RoleAdmin    Role = "admin"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleInvestor, RoleCreditor, RoleAdmin:
		return true
	}
	return false
}

// Nonce is a single-use challenge value bound to one address.
// At most one live nonce exists per address; issuing a new one
// replaces any prior live nonce for that address.
type Nonce struct {
	Address   string    // Ethereum address the nonce was issued for
	Value     string    // Random hex value embedded in the challenge
	IssuedAt  time.Time // When the nonce was created
	ExpiresAt time.Time // When the nonce expires
	Consumed  bool      // Whether the nonce has already been spent
}

// Expired reports whether the nonce is past its expiry at the given time.
func (n *Nonce) Expired(now time.Time) bool {
	return now.After(n.ExpiresAt)
}

// Challenge is the rendered message a wallet is asked to sign.
type Challenge struct {
	Address   string    // Ethereum address of the user
	Nonce     string    // Random nonce embedded in the message
	Message   string    // Full text presented to the wallet for signing
	IssuedAt  time.Time // When the challenge was created
	ExpiresAt time.Time // When the challenge expires
}

// Session represents an authenticated user session
type Session struct {
	ID            string    // Unique session identifier
	Address       string    // Ethereum address of the user
	Roles         []Role    // Roles granted to the session
	IssuedAt      time.Time // When the session was created
	RefreshExpiry time.Time // When the refresh capability expires
	AccessExpiry  time.Time // When the access capability expires
	RefreshID     string    // Unique identifier for the refresh token
}

// HasRole reports whether the session carries the given role.
func (s *Session) HasRole(role Role) bool {
	for _, r := range s.Roles {
		if r == role {
			return true
		}
	}
	return false
}
