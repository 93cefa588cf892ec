// Package secret handles credential material that must not outlive its
// use: raw key bytes are wiped once the parsed key exists.
package secret

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"encoding/hex"
	"fmt"
	"math/big"
	"runtime"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"
)

// Wipe overwrites sensitive bytes in place.
func Wipe(data []byte) {
	for i := range data {
		data[i] = 0
	}
	runtime.KeepAlive(data)
}

// ParseSignerKey decodes a hex-encoded secp256k1 private key and wipes
// the intermediate raw bytes. The error never echoes the input.
func ParseSignerKey(hexKey string) (*ecdsa.PrivateKey, error) {
	raw, err := hex.DecodeString(strings.TrimPrefix(hexKey, "0x"))
	if err != nil {
		return nil, fmt.Errorf("signer key is not valid hex")
	}
	defer Wipe(raw)

	key, err := crypto.ToECDSA(raw)
	if err != nil {
		return nil, fmt.Errorf("signer key is not a valid secp256k1 key")
	}
	return key, nil
}

// ParseSessionKey decodes a hex-encoded P-256 scalar into the session
// token signing key, wiping the intermediate raw bytes.
func ParseSessionKey(hexKey string) (*ecdsa.PrivateKey, error) {
	raw, err := hex.DecodeString(strings.TrimPrefix(hexKey, "0x"))
	if err != nil {
		return nil, fmt.Errorf("session key is not valid hex")
	}
	defer Wipe(raw)

	curve := elliptic.P256()
	d := new(big.Int).SetBytes(raw)
	if d.Sign() <= 0 || d.Cmp(curve.Params().N) >= 0 {
		return nil, fmt.Errorf("session key scalar out of range")
	}

	key := &ecdsa.PrivateKey{D: d}
	key.Curve = curve
	key.X, key.Y = curve.ScalarBaseMult(d.Bytes())
	return key, nil
}
