// Package eth implements EIP-191 personal-sign message verification.
package eth

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/pharos-rwa/pharos/core"
)

// SignatureLength is the byte length of a wallet signature (r || s || v).
const SignatureLength = 65

var addressPattern = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)

// ValidAddress reports whether s has the 0x-prefixed 40-hex-digit form.
func ValidAddress(s string) bool {
	return addressPattern.MatchString(s)
}

// RecoverAddress recovers the signer address from a personal-sign
// signature over message. The message is hashed with the standard
// "\x19Ethereum Signed Message:\n" prefix before recovery. Malformed
// signatures return core.ErrInvalidSignature, never a panic.
func RecoverAddress(message string, signature string) (common.Address, error) {
	sig, err := hexutil.Decode(signature)
	if err != nil {
		return common.Address{}, fmt.Errorf("decode signature: %w", core.ErrInvalidSignature)
	}
	if len(sig) != SignatureLength {
		return common.Address{}, fmt.Errorf("signature must be %d bytes: %w", SignatureLength, core.ErrInvalidSignature)
	}

	// Wallets emit V as 27/28; SigToPub expects 0/1.
	v := make([]byte, SignatureLength)
	copy(v, sig)
	if v[64] >= 27 {
		v[64] -= 27
	}
	if v[64] > 1 {
		return common.Address{}, fmt.Errorf("invalid recovery id: %w", core.ErrInvalidSignature)
	}

	hash := accounts.TextHash([]byte(message))
	pub, err := crypto.SigToPub(hash, v)
	if err != nil {
		return common.Address{}, fmt.Errorf("recover public key: %w", core.ErrInvalidSignature)
	}

	return crypto.PubkeyToAddress(*pub), nil
}

// Verify recovers the signer of (message, signature) and compares it
// to the claimed address, case-insensitively on the checksum form.
func Verify(claimedAddress, message, signature string) error {
	if !ValidAddress(claimedAddress) {
		return core.ErrInvalidAddress
	}

	recovered, err := RecoverAddress(message, signature)
	if err != nil {
		return err
	}

	if !strings.EqualFold(recovered.Hex(), claimedAddress) {
		return core.ErrInvalidSignature
	}

	return nil
}
