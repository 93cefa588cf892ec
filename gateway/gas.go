package gateway

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/shopspring/decimal"

	"github.com/pharos-rwa/pharos/core"
)

// gasParams resolves the gas limit and price for a write call from its
// policy. Estimation failures surface as ErrGasEstimationFailed and
// are never retried or silently defaulted.
func (g *Gateway) gasParams(ctx context.Context, policy core.GasPolicy, msg ethereum.CallMsg) (uint64, *big.Int, error) {
	switch policy.Mode {
	case core.GasFixed:
		if policy.FixedLimit == 0 {
			return 0, nil, fmt.Errorf("fixed gas policy requires a limit")
		}
		price, ok := new(big.Int).SetString(policy.FixedPrice, 10)
		if !ok || price.Sign() <= 0 {
			return 0, nil, fmt.Errorf("fixed gas policy requires a positive wei price, got %q", policy.FixedPrice)
		}
		return policy.FixedLimit, price, nil

	case core.GasEstimate, "":
		estimate, err := g.node.EstimateGas(ctx, msg)
		if err != nil {
			// A revert during estimation is the contract rejecting the
			// call, not an estimation problem.
			if classified := Classify(err); errors.Is(classified, core.ErrContractReverted) {
				return 0, nil, classified
			}
			return 0, nil, fmt.Errorf("%w: %v", core.ErrGasEstimationFailed, err)
		}

		mult := policy.Multiplier
		if mult.IsZero() {
			mult = decimal.NewFromInt(1)
		}
		limit := decimal.NewFromInt(int64(estimate)).Mul(mult).Ceil().IntPart()

		price, err := g.node.SuggestGasPrice(ctx)
		if err != nil {
			return 0, nil, Classify(err)
		}
		return uint64(limit), price, nil

	default:
		return 0, nil, fmt.Errorf("unknown gas mode %q", policy.Mode)
	}
}
