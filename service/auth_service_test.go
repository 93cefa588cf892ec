package service

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pharos-rwa/pharos/adapters/noncestore"
	"github.com/pharos-rwa/pharos/adapters/store"
	"github.com/pharos-rwa/pharos/adapters/tokenizer"
	"github.com/pharos-rwa/pharos/core"
)

type stubPublisher struct {
	mu      sync.Mutex
	logins  int
	logouts int
}

func (p *stubPublisher) PublishLogin(ctx context.Context, address, sessionID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.logins++
	return nil
}

func (p *stubPublisher) PublishLogout(ctx context.Context, address, tokenID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.logouts++
	return nil
}

type wallet struct {
	key     *ecdsa.PrivateKey
	address string
}

func newWallet(t *testing.T) *wallet {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	return &wallet{key: key, address: crypto.PubkeyToAddress(key.PublicKey).Hex()}
}

func (w *wallet) sign(t *testing.T, message string) string {
	t.Helper()
	sig, err := crypto.Sign(accounts.TextHash([]byte(message)), w.key)
	require.NoError(t, err)
	sig[64] += 27
	return hexutil.Encode(sig)
}

func newTestService(t *testing.T, pub *stubPublisher) *AuthService {
	t.Helper()

	jwtKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	return NewAuthService(
		noncestore.NewMemoryStore(0),
		tokenizer.NewJWTTokenizer(jwtKey),
		store.NewMemoryStore(),
		pub,
		nil,
		zerolog.Nop(),
	)
}

func TestChallengeLoginFlow(t *testing.T) {
	pub := &stubPublisher{}
	s := newTestService(t, pub)
	w := newWallet(t)
	ctx := context.Background()

	challenge, err := s.CreateChallenge(ctx, w.address)
	require.NoError(t, err)
	assert.Contains(t, challenge.Message, w.address)
	assert.Contains(t, challenge.Message, "Purpose: pharos-auth-v1")
	assert.True(t, challenge.ExpiresAt.After(time.Now()))

	session, access, refresh, err := s.Login(ctx, w.address, challenge.Message, w.sign(t, challenge.Message))
	require.NoError(t, err)
	assert.Equal(t, w.address, session.Address)
	assert.Equal(t, []core.Role{core.RoleInvestor}, session.Roles)
	assert.NotEmpty(t, access)
	assert.NotEmpty(t, refresh)
	assert.Equal(t, 1, pub.logins)

	validated, err := s.ValidateAccessToken(ctx, access)
	require.NoError(t, err)
	assert.Equal(t, w.address, validated.Address)
}

func TestLoginReplayRejected(t *testing.T) {
	s := newTestService(t, &stubPublisher{})
	w := newWallet(t)
	ctx := context.Background()

	challenge, err := s.CreateChallenge(ctx, w.address)
	require.NoError(t, err)
	sig := w.sign(t, challenge.Message)

	_, _, _, err = s.Login(ctx, w.address, challenge.Message, sig)
	require.NoError(t, err)

	// Reusing the same signed message must fail.
	_, _, _, err = s.Login(ctx, w.address, challenge.Message, sig)
	assert.ErrorIs(t, err, core.ErrNonceAlreadyUsed)
}

func TestNewChallengeInvalidatesPriorOne(t *testing.T) {
	s := newTestService(t, &stubPublisher{})
	w := newWallet(t)
	ctx := context.Background()

	first, err := s.CreateChallenge(ctx, w.address)
	require.NoError(t, err)

	_, err = s.CreateChallenge(ctx, w.address)
	require.NoError(t, err)

	_, _, _, err = s.Login(ctx, w.address, first.Message, w.sign(t, first.Message))
	assert.ErrorIs(t, err, core.ErrNonceMismatch)
}

func TestLoginWrongSigner(t *testing.T) {
	s := newTestService(t, &stubPublisher{})
	victim := newWallet(t)
	attacker := newWallet(t)
	ctx := context.Background()

	challenge, err := s.CreateChallenge(ctx, victim.address)
	require.NoError(t, err)

	_, _, _, err = s.Login(ctx, victim.address, challenge.Message, attacker.sign(t, challenge.Message))
	assert.ErrorIs(t, err, core.ErrInvalidSignature)

	// The failed forgery must not burn the victim's challenge.
	_, _, _, err = s.Login(ctx, victim.address, challenge.Message, victim.sign(t, challenge.Message))
	assert.NoError(t, err)
}

func TestLoginForeignMessageRejected(t *testing.T) {
	s := newTestService(t, &stubPublisher{})
	w := newWallet(t)
	ctx := context.Background()

	_, err := s.CreateChallenge(ctx, w.address)
	require.NoError(t, err)

	// A signed message without this service's purpose line never
	// authenticates, even with a valid signature.
	foreign := "some other dapp asks you to sign:\n" + w.address
	_, _, _, err = s.Login(ctx, w.address, foreign, w.sign(t, foreign))
	assert.ErrorIs(t, err, core.ErrInvalidChallenge)
}

func TestLoginTamperedMessageRejected(t *testing.T) {
	s := newTestService(t, &stubPublisher{})
	w := newWallet(t)
	other := newWallet(t)
	ctx := context.Background()

	challenge, err := s.CreateChallenge(ctx, w.address)
	require.NoError(t, err)

	// Swap the address inside the signed message.
	tampered := strings.Replace(challenge.Message, w.address, other.address, 1)
	_, _, _, err = s.Login(ctx, w.address, tampered, w.sign(t, tampered))
	assert.ErrorIs(t, err, core.ErrInvalidChallenge)
}

func TestLoginInvalidAddress(t *testing.T) {
	s := newTestService(t, &stubPublisher{})

	_, err := s.CreateChallenge(context.Background(), "not-an-address")
	assert.ErrorIs(t, err, core.ErrInvalidAddress)

	_, _, _, err = s.Login(context.Background(), "not-an-address", "msg", "0x00")
	assert.ErrorIs(t, err, core.ErrInvalidAddress)
}

func TestRefreshRotatesTokens(t *testing.T) {
	s := newTestService(t, &stubPublisher{})
	w := newWallet(t)
	ctx := context.Background()

	challenge, err := s.CreateChallenge(ctx, w.address)
	require.NoError(t, err)

	_, _, refresh, err := s.Login(ctx, w.address, challenge.Message, w.sign(t, challenge.Message))
	require.NoError(t, err)

	session, newAccess, newRefresh, err := s.Refresh(ctx, refresh)
	require.NoError(t, err)
	assert.Equal(t, w.address, session.Address)
	assert.NotEmpty(t, newAccess)
	assert.NotEqual(t, refresh, newRefresh)

	// The old refresh token is single use.
	_, _, _, err = s.Refresh(ctx, refresh)
	assert.ErrorIs(t, err, core.ErrTokenInvalidated)
}

func TestLogoutInvalidatesSession(t *testing.T) {
	pub := &stubPublisher{}
	s := newTestService(t, pub)
	w := newWallet(t)
	ctx := context.Background()

	challenge, err := s.CreateChallenge(ctx, w.address)
	require.NoError(t, err)

	_, access, refresh, err := s.Login(ctx, w.address, challenge.Message, w.sign(t, challenge.Message))
	require.NoError(t, err)

	require.NoError(t, s.Logout(ctx, refresh))
	assert.Equal(t, 1, pub.logouts)

	_, err = s.ValidateAccessToken(ctx, access)
	assert.ErrorIs(t, err, core.ErrTokenInvalidated)

	_, _, _, err = s.Refresh(ctx, refresh)
	assert.ErrorIs(t, err, core.ErrTokenInvalidated)
}

func TestRoleResolverControlsClaims(t *testing.T) {
	jwtKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	w := newWallet(t)
	s := NewAuthService(
		noncestore.NewMemoryStore(0),
		tokenizer.NewJWTTokenizer(jwtKey),
		store.NewMemoryStore(),
		&stubPublisher{},
		func(address string) []core.Role {
			return []core.Role{core.RoleCreditor, core.RoleAdmin}
		},
		zerolog.Nop(),
	)
	ctx := context.Background()

	challenge, err := s.CreateChallenge(ctx, w.address)
	require.NoError(t, err)

	session, access, _, err := s.Login(ctx, w.address, challenge.Message, w.sign(t, challenge.Message))
	require.NoError(t, err)
	assert.True(t, session.HasRole(core.RoleAdmin))

	validated, err := s.ValidateAccessToken(ctx, access)
	require.NoError(t, err)
	assert.True(t, validated.HasRole(core.RoleCreditor))
	assert.False(t, validated.HasRole(core.RoleInvestor))
}
