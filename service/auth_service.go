package service

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/pharos-rwa/pharos/core"
	"github.com/pharos-rwa/pharos/internal/eth"
	"github.com/pharos-rwa/pharos/internal/metrics"
	"github.com/pharos-rwa/pharos/ports"
)

// challengePurpose is the domain-separation tag baked into every
// challenge message. A signature over a message carrying a different
// purpose line never authenticates here.
const challengePurpose = "pharos-auth-v1"

const challengeHeader = "Pharos RWA wants you to sign in with your Ethereum account:"

var nonceLine = regexp.MustCompile(`(?m)^Nonce: ([0-9a-f]+)$`)

// RoleResolver maps an authenticated address to its granted roles.
type RoleResolver func(address string) []core.Role

func defaultRoles(string) []core.Role {
	return []core.Role{core.RoleInvestor}
}

// AuthService handles the challenge/response authentication lifecycle
type AuthService struct {
	nonces    ports.NonceStore
	tokenizer ports.Tokenizer
	store     ports.Store
	eventPub  ports.EventPublisher
	roles     RoleResolver
	log       zerolog.Logger

	challengeTTL time.Duration
	accessTTL    time.Duration
	refreshTTL   time.Duration
}

// NewAuthService creates a new authentication service. A nil roles
// resolver grants every authenticated address the investor role.
func NewAuthService(
	nonces ports.NonceStore,
	tokenizer ports.Tokenizer,
	store ports.Store,
	eventPub ports.EventPublisher,
	roles RoleResolver,
	log zerolog.Logger,
) *AuthService {
	if roles == nil {
		roles = defaultRoles
	}
	return &AuthService{
		nonces:       nonces,
		tokenizer:    tokenizer,
		store:        store,
		eventPub:     eventPub,
		roles:        roles,
		log:          log.With().Str("component", "auth").Logger(),
		challengeTTL: 5 * time.Minute,
		accessTTL:    24 * time.Hour,
		refreshTTL:   7 * 24 * time.Hour,
	}
}

// AccessTTL returns the configured access token lifetime.
func (s *AuthService) AccessTTL() time.Duration {
	return s.accessTTL
}

// WithTTLs overrides the challenge and token lifetimes. Zero values
// keep the defaults.
func (s *AuthService) WithTTLs(challenge, access, refresh time.Duration) *AuthService {
	if challenge > 0 {
		s.challengeTTL = challenge
	}
	if access > 0 {
		s.accessTTL = access
	}
	if refresh > 0 {
		s.refreshTTL = refresh
	}
	return s
}

// CreateChallenge issues a fresh nonce for the address and renders the
// challenge message. Any prior live nonce for the address becomes
// invalid.
func (s *AuthService) CreateChallenge(ctx context.Context, address string) (*core.Challenge, error) {
	if !eth.ValidAddress(address) {
		return nil, core.ErrInvalidAddress
	}

	nonce, err := s.nonces.Issue(ctx, address, s.challengeTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to issue nonce: %w", err)
	}

	metrics.ChallengesIssued.Inc()
	s.log.Debug().Str("address", address).Msg("challenge issued")

	return &core.Challenge{
		Address:   address,
		Nonce:     nonce.Value,
		Message:   renderChallenge(address, nonce.Value, nonce.IssuedAt),
		IssuedAt:  nonce.IssuedAt,
		ExpiresAt: nonce.ExpiresAt,
	}, nil
}

// Login authenticates a user from a signed challenge message. The
// signature is verified first; only then is the nonce consumed, so a
// forged submission cannot burn a victim's outstanding challenge.
func (s *AuthService) Login(ctx context.Context, address, message, signature string) (*core.Session, string, string, error) {
	if !eth.ValidAddress(address) {
		return nil, "", "", core.ErrInvalidAddress
	}

	if err := eth.Verify(address, message, signature); err != nil {
		metrics.Logins.WithLabelValues("invalid_signature").Inc()
		return nil, "", "", err
	}

	msgAddress, nonceValue, err := parseChallenge(message)
	if err != nil {
		metrics.Logins.WithLabelValues("invalid_challenge").Inc()
		return nil, "", "", err
	}
	if !strings.EqualFold(msgAddress, address) {
		metrics.Logins.WithLabelValues("invalid_challenge").Inc()
		return nil, "", "", core.ErrInvalidChallenge
	}

	// Exactly one of any number of replays gets past this point.
	if err := s.nonces.Consume(ctx, address, nonceValue); err != nil {
		metrics.Logins.WithLabelValues("nonce_rejected").Inc()
		return nil, "", "", err
	}

	now := time.Now()
	session := &core.Session{
		ID:            uuid.New().String(),
		Address:       address,
		Roles:         s.roles(address),
		IssuedAt:      now,
		AccessExpiry:  now.Add(s.accessTTL),
		RefreshExpiry: now.Add(s.refreshTTL),
		RefreshID:     uuid.New().String(),
	}

	accessToken, err := s.tokenizer.SessionToAccessToken(session)
	if err != nil {
		return nil, "", "", fmt.Errorf("failed to create access token: %w", err)
	}

	refreshToken, err := s.tokenizer.SessionToRefreshToken(session)
	if err != nil {
		return nil, "", "", fmt.Errorf("failed to create refresh token: %w", err)
	}

	metrics.Logins.WithLabelValues("success").Inc()
	s.log.Info().Str("address", address).Str("session_id", session.ID).Msg("login succeeded")

	if err := s.eventPub.PublishLogin(ctx, address, session.ID); err != nil {
		// The session is already minted; event delivery is best effort.
		s.log.Warn().Err(err).Msg("failed to publish login event")
	}

	return session, accessToken, refreshToken, nil
}

// Refresh rotates the refresh token and issues new access and refresh tokens
func (s *AuthService) Refresh(ctx context.Context, refreshTokenStr string) (*core.Session, string, string, error) {
	session, err := s.tokenizer.RefreshTokenToSession(refreshTokenStr)
	if err != nil {
		return nil, "", "", fmt.Errorf("invalid refresh token: %w", err)
	}

	if time.Now().After(session.RefreshExpiry) {
		return nil, "", "", core.ErrTokenExpired
	}

	invalidated, err := s.store.IsTokenInvalidated(ctx, session.RefreshID)
	if err != nil {
		return nil, "", "", fmt.Errorf("failed to check token invalidation: %w", err)
	}
	if invalidated {
		return nil, "", "", core.ErrTokenInvalidated
	}

	// Invalidate the old refresh token for the remainder of its life.
	remaining := time.Until(session.RefreshExpiry)
	if err := s.store.InvalidateToken(ctx, session.RefreshID, remaining); err != nil {
		return nil, "", "", fmt.Errorf("failed to invalidate old token: %w", err)
	}

	now := time.Now()
	newSession := &core.Session{
		ID:            uuid.New().String(),
		Address:       session.Address,
		Roles:         session.Roles,
		IssuedAt:      now,
		AccessExpiry:  now.Add(s.accessTTL),
		RefreshExpiry: now.Add(s.refreshTTL),
		RefreshID:     uuid.New().String(),
	}

	accessToken, err := s.tokenizer.SessionToAccessToken(newSession)
	if err != nil {
		return nil, "", "", fmt.Errorf("failed to create new access token: %w", err)
	}

	refreshToken, err := s.tokenizer.SessionToRefreshToken(newSession)
	if err != nil {
		return nil, "", "", fmt.Errorf("failed to create new refresh token: %w", err)
	}

	return newSession, accessToken, refreshToken, nil
}

// Logout invalidates a refresh token
func (s *AuthService) Logout(ctx context.Context, refreshTokenStr string) error {
	session, err := s.tokenizer.RefreshTokenToSession(refreshTokenStr)
	if err != nil {
		return fmt.Errorf("invalid refresh token: %w", err)
	}

	// A token close to expiry still gets a full invalidation window,
	// covering clock skew between instances.
	remaining := time.Until(session.RefreshExpiry)
	if remaining < time.Hour {
		remaining = time.Hour
	}

	if err := s.store.InvalidateToken(ctx, session.RefreshID, remaining); err != nil {
		return fmt.Errorf("failed to invalidate token: %w", err)
	}

	if err := s.eventPub.PublishLogout(ctx, session.Address, session.RefreshID); err != nil {
		// The token is already invalidated, which is the critical part.
		s.log.Warn().Err(err).Msg("failed to publish logout event")
	}

	return nil
}

// ValidateAccessToken parses and validates an access token, returning
// the associated session.
func (s *AuthService) ValidateAccessToken(ctx context.Context, accessToken string) (*core.Session, error) {
	session, err := s.tokenizer.AccessTokenToSession(accessToken)
	if err != nil {
		return nil, err
	}

	if time.Now().After(session.AccessExpiry) {
		return nil, core.ErrTokenExpired
	}

	// Access tokens die with their refresh token so a logout cuts off
	// the whole session.
	if session.RefreshID != "" {
		invalidated, err := s.store.IsTokenInvalidated(ctx, session.RefreshID)
		if err != nil {
			return nil, fmt.Errorf("failed to check token invalidation: %w", err)
		}
		if invalidated {
			return nil, core.ErrTokenInvalidated
		}
	}

	return session, nil
}

// renderChallenge produces the fixed, versioned challenge template.
func renderChallenge(address, nonce string, issuedAt time.Time) string {
	return fmt.Sprintf("%s\n%s\n\nPurpose: %s\nNonce: %s\nIssued At: %s",
		challengeHeader, address, challengePurpose, nonce,
		issuedAt.UTC().Format(time.RFC3339))
}

// parseChallenge extracts the address and nonce from a submitted
// challenge message, rejecting anything that does not carry this
// service's header and purpose line.
func parseChallenge(message string) (address, nonce string, err error) {
	lines := strings.Split(message, "\n")
	if len(lines) < 2 || lines[0] != challengeHeader {
		return "", "", core.ErrInvalidChallenge
	}
	address = strings.TrimSpace(lines[1])
	if !eth.ValidAddress(address) {
		return "", "", core.ErrInvalidChallenge
	}

	if !strings.Contains(message, "\nPurpose: "+challengePurpose+"\n") {
		return "", "", core.ErrInvalidChallenge
	}

	m := nonceLine.FindStringSubmatch(message)
	if m == nil {
		return "", "", core.ErrInvalidChallenge
	}

	return address, m[1], nil
}
