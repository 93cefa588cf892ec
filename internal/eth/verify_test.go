package eth

import (
	"testing"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pharos-rwa/pharos/core"
)

// signText produces a wallet-style personal-sign signature (V = 27/28).
func signText(t *testing.T, keyHex, message string) string {
	t.Helper()

	key, err := crypto.HexToECDSA(keyHex)
	require.NoError(t, err)

	sig, err := crypto.Sign(accounts.TextHash([]byte(message)), key)
	require.NoError(t, err)
	sig[64] += 27

	return hexutil.Encode(sig)
}

const testKeyHex = "b71c71a67e1177ad4e901695e1b4b9ee17ae16c6668d313eac2f96dbcda3f291"

func testAddress(t *testing.T) string {
	t.Helper()
	key, err := crypto.HexToECDSA(testKeyHex)
	require.NoError(t, err)
	return crypto.PubkeyToAddress(key.PublicKey).Hex()
}

func TestVerifyRoundtrip(t *testing.T) {
	message := "Pharos RWA wants you to sign in"
	sig := signText(t, testKeyHex, message)

	require.NoError(t, Verify(testAddress(t), message, sig))
}

func TestVerifyCaseInsensitiveAddress(t *testing.T) {
	message := "case test"
	sig := signText(t, testKeyHex, message)

	lower := "0x" + testAddress(t)[2:]
	require.NoError(t, Verify(lower, message, sig))
}

func TestVerifyWrongAddress(t *testing.T) {
	sig := signText(t, testKeyHex, "hello")

	err := Verify("0x0000000000000000000000000000000000000001", "hello", sig)
	assert.ErrorIs(t, err, core.ErrInvalidSignature)
}

func TestVerifyWrongMessage(t *testing.T) {
	sig := signText(t, testKeyHex, "hello")

	// Recovery over a different message yields a different address.
	err := Verify(testAddress(t), "goodbye", sig)
	assert.ErrorIs(t, err, core.ErrInvalidSignature)
}

func TestVerifyMalformedSignatures(t *testing.T) {
	addr := testAddress(t)

	badRecovery := make([]byte, 65)
	badRecovery[64] = 29 // neither 0/1 nor 27/28 after normalization

	for name, sig := range map[string]string{
		"not hex":      "zzzz",
		"no prefix":    "deadbeef",
		"too short":    "0xdeadbeef",
		"bad recovery": hexutil.Encode(badRecovery),
		"all zero":     hexutil.Encode(make([]byte, 65)),
	} {
		t.Run(name, func(t *testing.T) {
			err := Verify(addr, "msg", sig)
			assert.ErrorIs(t, err, core.ErrInvalidSignature)
		})
	}
}

func TestVerifyInvalidAddressFormat(t *testing.T) {
	sig := signText(t, testKeyHex, "msg")

	assert.ErrorIs(t, Verify("not-an-address", "msg", sig), core.ErrInvalidAddress)
	assert.ErrorIs(t, Verify("0x1234", "msg", sig), core.ErrInvalidAddress)
}
