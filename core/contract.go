package core

import (
	"time"

	"github.com/shopspring/decimal"
)

// CallKind distinguishes read-only calls from state-changing ones.
type CallKind string

const (
	CallRead  CallKind = "read"
	CallWrite CallKind = "write"
)

// CallStatus is the lifecycle state of a contract call.
type CallStatus string

const (
	// StatusSuccess means the call completed; for writes the
	// transaction was mined and did not revert.
	StatusSuccess CallStatus = "success"
	// StatusReverted means the transaction was mined but rejected by
	// contract logic. Terminal; never retried.
	StatusReverted CallStatus = "reverted"
	// StatusPending means the transaction was accepted by the node but
	// a confirmation has not been observed yet.
	StatusPending CallStatus = "pending"
	// StatusFailed means the call never reached the chain, e.g. all
	// submission attempts failed transiently.
	StatusFailed CallStatus = "failed"
)

// GasMode selects how the fee budget for a write call is computed.
type GasMode string

const (
	// GasFixed uses the explicit limit and price from the policy.
	GasFixed GasMode = "fixed"
	// GasEstimate asks the node for an estimate and scales it by the
	// policy multiplier. Estimation failure is surfaced, never defaulted.
	GasEstimate GasMode = "estimate"
)

// GasPolicy is the per-request rule for computing gas parameters.
type GasPolicy struct {
	Mode       GasMode         `json:"mode"`
	FixedLimit uint64          `json:"fixed_limit,omitempty"`
	FixedPrice string          `json:"fixed_price,omitempty"` // wei, decimal string
	Multiplier decimal.Decimal `json:"multiplier,omitempty"`  // applied to estimates
}

// DefaultGasPolicy estimates gas and pads the estimate by 20%.
func DefaultGasPolicy() GasPolicy {
	return GasPolicy{
		Mode:       GasEstimate,
		Multiplier: decimal.NewFromFloat(1.2),
	}
}

// ContractCallRequest describes one call against the configured
// contract. Writes must carry a caller-supplied idempotency key.
type ContractCallRequest struct {
	IdempotencyKey string        `json:"idempotency_key,omitempty"`
	Method         string        `json:"method"`
	Params         []interface{} `json:"params"`
	Kind           CallKind      `json:"kind"`
	Gas            GasPolicy     `json:"gas_policy"`
}

// ContractCallResult is the outcome of a contract call.
type ContractCallResult struct {
	Status      CallStatus    `json:"status"`
	TxHash      string        `json:"transaction_hash,omitempty"` // writes only
	BlockNumber uint64        `json:"block_number,omitempty"`     // once mined
	ReturnData  []interface{} `json:"return_data,omitempty"`      // reads only
	ErrorDetail string        `json:"error_detail,omitempty"`
	CompletedAt time.Time     `json:"-"`
}

// Terminal reports whether the result will not change anymore.
func (r *ContractCallResult) Terminal() bool {
	return r.Status == StatusSuccess || r.Status == StatusReverted || r.Status == StatusFailed
}
