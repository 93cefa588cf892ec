package secret

import (
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKeyHex = "4c0883a69102937d6231471b5dbb6204fe512961708279feb1be6ae5538da033"

func TestParseSignerKey(t *testing.T) {
	key, err := ParseSignerKey(testKeyHex)
	require.NoError(t, err)
	assert.NotEmpty(t, crypto.PubkeyToAddress(key.PublicKey).Hex())

	withPrefix, err := ParseSignerKey("0x" + testKeyHex)
	require.NoError(t, err)
	assert.Equal(t, key.D, withPrefix.D)
}

func TestParseSignerKeyRejectsBadInput(t *testing.T) {
	_, err := ParseSignerKey("not-hex")
	require.Error(t, err)
	// The input must not leak through the error message.
	assert.NotContains(t, err.Error(), "not-hex")

	_, err = ParseSignerKey("deadbeef")
	require.Error(t, err)
}

func TestParseSessionKey(t *testing.T) {
	key, err := ParseSessionKey(testKeyHex)
	require.NoError(t, err)
	assert.True(t, key.Curve.IsOnCurve(key.X, key.Y))

	_, err = ParseSessionKey("00")
	require.Error(t, err)

	_, err = ParseSessionKey("zz")
	require.Error(t, err)
}

func TestWipe(t *testing.T) {
	data := []byte{1, 2, 3, 4}
	Wipe(data)
	assert.Equal(t, []byte{0, 0, 0, 0}, data)
}
