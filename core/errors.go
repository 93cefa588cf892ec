package core

import "errors"

// Authentication errors. None of these are ever retried locally; they
// surface immediately as unauthorized responses.
var (
	ErrInvalidSignature = errors.New("invalid signature")
	ErrInvalidAddress   = errors.New("invalid ethereum address")
	ErrNonceExpired     = errors.New("nonce expired or not found")
	ErrNonceAlreadyUsed = errors.New("nonce already used")
	ErrNonceMismatch    = errors.New("nonce value mismatch")
	ErrInvalidChallenge = errors.New("invalid challenge")

	ErrTokenExpired     = errors.New("token has expired")
	ErrTokenInvalidated = errors.New("token has been invalidated")
	ErrInvalidToken     = errors.New("invalid token")
)

// Gateway errors. RpcUnavailable and RpcTimeout are transient and
// retried with backoff; the rest are terminal for the attempt.
var (
	ErrRpcUnavailable         = errors.New("rpc node unavailable")
	ErrRpcTimeout             = errors.New("rpc call timed out")
	ErrContractReverted       = errors.New("contract execution reverted")
	ErrGasEstimationFailed    = errors.New("gas estimation failed")
	ErrAlreadyInFlight        = errors.New("call with this idempotency key already in flight")
	ErrAdmissionLimitExceeded = errors.New("too many in-flight submissions")
	ErrUnknownMethod          = errors.New("unknown contract method")
	ErrCallNotFound           = errors.New("no call recorded for this idempotency key")
)

// Transient reports whether err is a transient gateway failure that
// may succeed on a later attempt.
func Transient(err error) bool {
	return errors.Is(err, ErrRpcUnavailable) || errors.Is(err, ErrRpcTimeout)
}
