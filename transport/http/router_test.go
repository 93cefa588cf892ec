package http

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	ethaccounts "github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pharos-rwa/pharos/adapters/noncestore"
	"github.com/pharos-rwa/pharos/adapters/store"
	"github.com/pharos-rwa/pharos/adapters/tokenizer"
	"github.com/pharos-rwa/pharos/core"
	"github.com/pharos-rwa/pharos/gateway"
	"github.com/pharos-rwa/pharos/service"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type noopPublisher struct{}

func (noopPublisher) PublishLogin(ctx context.Context, address, sessionID string) error { return nil }
func (noopPublisher) PublishLogout(ctx context.Context, address, tokenID string) error  { return nil }

// fakeNode answers every read with invoiceCount()=42 and accepts every
// transaction without ever mining it.
type fakeNode struct{}

func (fakeNode) ChainID(ctx context.Context) (*big.Int, error) { return big.NewInt(1), nil }

func (fakeNode) CallContract(ctx context.Context, msg ethereum.CallMsg) ([]byte, error) {
	return common.LeftPadBytes(big.NewInt(42).Bytes(), 32), nil
}

func (fakeNode) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	return 0, nil
}

func (fakeNode) SuggestGasPrice(ctx context.Context) (*big.Int, error) { return big.NewInt(1), nil }

func (fakeNode) EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error) {
	return 21000, nil
}

func (fakeNode) SendTransaction(ctx context.Context, tx *types.Transaction) error { return nil }

func (fakeNode) TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	return nil, ethereum.NotFound
}

type wallet struct {
	key     *ecdsa.PrivateKey
	address string
}

func newWallet(t *testing.T) *wallet {
	key, err := ethcrypto.GenerateKey()
	require.NoError(t, err)
	return &wallet{key: key, address: ethcrypto.PubkeyToAddress(key.PublicKey).Hex()}
}

func (w *wallet) sign(t *testing.T, message string) string {
	sig, err := ethcrypto.Sign(ethaccounts.TextHash([]byte(message)), w.key)
	require.NoError(t, err)
	sig[64] += 27
	return hexutil.Encode(sig)
}

func newTestRouter(t *testing.T, roles service.RoleResolver) (*gin.Engine, func()) {
	signKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	nonces := noncestore.NewMemoryStore(time.Minute)
	authService := service.NewAuthService(
		nonces,
		tokenizer.NewJWTTokenizer(signKey),
		store.NewMemoryStore(),
		noopPublisher{},
		roles,
		zerolog.Nop(),
	)

	gwKey, err := ethcrypto.GenerateKey()
	require.NoError(t, err)

	gw, err := gateway.New(context.Background(), fakeNode{}, gateway.Config{
		ContractAddress: common.HexToAddress("0x00000000000000000000000000000000000000aa"),
		SignerKey:       gwKey,
		ConfirmInterval: 5 * time.Millisecond,
		ConfirmTimeout:  50 * time.Millisecond,
	}, zerolog.Nop())
	require.NoError(t, err)

	cleanup := func() {
		nonces.Close()
		gw.Close()
	}
	return SetupRouter(authService, gw), cleanup
}

func doJSON(router *gin.Engine, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func login(t *testing.T, router *gin.Engine, w *wallet) string {
	resp := doJSON(router, http.MethodPost, "/auth/challenge", "", gin.H{"address": w.address})
	require.Equal(t, http.StatusOK, resp.Code)

	var challenge struct {
		Message string `json:"message"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &challenge))

	resp = doJSON(router, http.MethodPost, "/auth/login", "", gin.H{
		"address":   w.address,
		"message":   challenge.Message,
		"signature": w.sign(t, challenge.Message),
	})
	require.Equal(t, http.StatusOK, resp.Code)

	var tokens struct {
		AccessToken string `json:"access_token"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &tokens))
	require.NotEmpty(t, tokens.AccessToken)
	return tokens.AccessToken
}

func TestChallengeLoginAndMe(t *testing.T) {
	router, cleanup := newTestRouter(t, nil)
	defer cleanup()

	w := newWallet(t)
	token := login(t, router, w)

	resp := doJSON(router, http.MethodGet, "/api/me", token, nil)
	require.Equal(t, http.StatusOK, resp.Code)

	var me struct {
		Address string   `json:"address"`
		Roles   []string `json:"roles"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &me))
	assert.Equal(t, w.address, me.Address)
	assert.Equal(t, []string{"investor"}, me.Roles)
}

func TestLoginBadSignatureRejected(t *testing.T) {
	router, cleanup := newTestRouter(t, nil)
	defer cleanup()

	w := newWallet(t)
	other := newWallet(t)

	resp := doJSON(router, http.MethodPost, "/auth/challenge", "", gin.H{"address": w.address})
	require.Equal(t, http.StatusOK, resp.Code)

	var challenge struct {
		Message string `json:"message"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &challenge))

	resp = doJSON(router, http.MethodPost, "/auth/login", "", gin.H{
		"address":   w.address,
		"message":   challenge.Message,
		"signature": other.sign(t, challenge.Message),
	})
	assert.Equal(t, http.StatusUnauthorized, resp.Code)
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	router, cleanup := newTestRouter(t, nil)
	defer cleanup()

	resp := doJSON(router, http.MethodGet, "/api/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.Code)

	resp = doJSON(router, http.MethodGet, "/api/me", "not-a-token", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.Code)
}

func TestContractReadAuthenticated(t *testing.T) {
	router, cleanup := newTestRouter(t, nil)
	defer cleanup()

	token := login(t, router, newWallet(t))

	resp := doJSON(router, http.MethodPost, "/api/contract/read", token, gin.H{
		"method": "invoiceCount",
	})
	require.Equal(t, http.StatusOK, resp.Code)

	var out struct {
		Method string        `json:"method"`
		Result []interface{} `json:"result"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &out))
	assert.Equal(t, "invoiceCount", out.Method)
	require.Len(t, out.Result, 1)
	assert.Equal(t, "42", fmt.Sprintf("%v", out.Result[0]))
}

func TestContractWriteRequiresRole(t *testing.T) {
	router, cleanup := newTestRouter(t, nil)
	defer cleanup()

	// Default resolver only grants investor, which may not write.
	token := login(t, router, newWallet(t))

	resp := doJSON(router, http.MethodPost, "/api/contract/write", token, gin.H{
		"idempotency_key": "k1",
		"method":          "settleInvoice",
		"params":          []interface{}{1},
	})
	assert.Equal(t, http.StatusForbidden, resp.Code)
}

func TestContractWriteAndStatus(t *testing.T) {
	creditorRoles := func(address string) []core.Role {
		return []core.Role{core.RoleCreditor}
	}
	router, cleanup := newTestRouter(t, creditorRoles)
	defer cleanup()

	token := login(t, router, newWallet(t))

	resp := doJSON(router, http.MethodPost, "/api/contract/write", token, gin.H{
		"idempotency_key": "settle-1",
		"method":          "settleInvoice",
		"params":          []interface{}{1},
	})
	require.Equal(t, http.StatusAccepted, resp.Code)

	var submitted struct {
		Status string `json:"status"`
		TxHash string `json:"tx_hash"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &submitted))
	assert.Equal(t, string(core.StatusPending), submitted.Status)
	assert.NotEmpty(t, submitted.TxHash)

	resp = doJSON(router, http.MethodGet, "/api/contract/calls/settle-1", token, nil)
	require.Equal(t, http.StatusOK, resp.Code)

	resp = doJSON(router, http.MethodGet, "/api/contract/calls/unknown", token, nil)
	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func TestHealthz(t *testing.T) {
	router, cleanup := newTestRouter(t, nil)
	defer cleanup()

	resp := doJSON(router, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, resp.Code)
}
