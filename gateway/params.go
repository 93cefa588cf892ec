package gateway

import (
	"encoding/json"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	ethaddr "github.com/pharos-rwa/pharos/internal/eth"
)

// coerceArgs converts JSON-decoded parameters into the Go values
// abi.Pack expects for the method's input types. Parameters arrive
// positionally; a count mismatch is an error, never padded.
func coerceArgs(method abi.Method, params []interface{}) ([]interface{}, error) {
	if len(params) != len(method.Inputs) {
		return nil, fmt.Errorf("method %s takes %d parameters, got %d",
			method.Name, len(method.Inputs), len(params))
	}

	args := make([]interface{}, len(params))
	for i, input := range method.Inputs {
		arg, err := coerceArg(input.Type, params[i])
		if err != nil {
			return nil, fmt.Errorf("parameter %d (%s %s): %w", i, input.Name, input.Type.String(), err)
		}
		args[i] = arg
	}

	return args, nil
}

func coerceArg(t abi.Type, v interface{}) (interface{}, error) {
	switch t.T {
	case abi.AddressTy:
		s, ok := v.(string)
		if !ok || !ethaddr.ValidAddress(s) {
			return nil, fmt.Errorf("expected 0x-prefixed address string, got %v", v)
		}
		return common.HexToAddress(s), nil

	case abi.UintTy, abi.IntTy:
		n, err := coerceBigInt(v)
		if err != nil {
			return nil, err
		}
		if err := checkIntRange(t, n); err != nil {
			return nil, err
		}
		if t.Size > 64 {
			return n, nil
		}
		return coerceSizedInt(t, n), nil

	case abi.StringTy:
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("expected string, got %T", v)
		}
		return s, nil

	case abi.BoolTy:
		b, ok := v.(bool)
		if !ok {
			return nil, fmt.Errorf("expected bool, got %T", v)
		}
		return b, nil

	case abi.BytesTy:
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("expected hex string, got %T", v)
		}
		return hexutil.Decode(s)

	default:
		return nil, fmt.Errorf("unsupported parameter type %s", t.String())
	}
}

func coerceBigInt(v interface{}) (*big.Int, error) {
	switch n := v.(type) {
	case json.Number:
		i, ok := new(big.Int).SetString(n.String(), 10)
		if !ok {
			return nil, fmt.Errorf("invalid integer %q", n.String())
		}
		return i, nil
	case float64:
		if n != float64(int64(n)) {
			return nil, fmt.Errorf("non-integral number %v", n)
		}
		return big.NewInt(int64(n)), nil
	case string:
		base := 10
		s := n
		if strings.HasPrefix(n, "0x") || strings.HasPrefix(n, "0X") {
			base, s = 16, n[2:]
		}
		i, ok := new(big.Int).SetString(s, base)
		if !ok {
			return nil, fmt.Errorf("invalid integer %q", n)
		}
		return i, nil
	default:
		return nil, fmt.Errorf("expected number or numeric string, got %T", v)
	}
}

// checkIntRange rejects values outside the ABI type's representable
// range. Narrowing must never truncate: a uint8 argument of 300 would
// otherwise reach the chain as 44.
func checkIntRange(t abi.Type, n *big.Int) error {
	if t.T == abi.UintTy {
		max := new(big.Int).Lsh(big.NewInt(1), uint(t.Size))
		if n.Sign() < 0 || n.Cmp(max) >= 0 {
			return fmt.Errorf("value %s out of range for %s", n, t.String())
		}
		return nil
	}

	bound := new(big.Int).Lsh(big.NewInt(1), uint(t.Size-1))
	min := new(big.Int).Neg(bound)
	if n.Cmp(min) < 0 || n.Cmp(bound) >= 0 {
		return fmt.Errorf("value %s out of range for %s", n, t.String())
	}
	return nil
}

// coerceSizedInt narrows a range-checked n for ABI integer types of 64
// bits or fewer, which abi.Pack requires as native Go integers.
func coerceSizedInt(t abi.Type, n *big.Int) interface{} {
	if t.T == abi.UintTy {
		u := n.Uint64()
		switch t.Size {
		case 8:
			return uint8(u)
		case 16:
			return uint16(u)
		case 32:
			return uint32(u)
		default:
			return u
		}
	}
	i := n.Int64()
	switch t.Size {
	case 8:
		return int8(i)
	case 16:
		return int16(i)
	case 32:
		return int32(i)
	default:
		return i
	}
}
