// Package fixedpoint provides the integer-only arithmetic primitives the pool
// accounting engine is built on: full-precision multiply-then-divide and a
// flooring integer square root. All results floor; there is no rounding mode.
package fixedpoint

import (
	"errors"
	"math/big"

	"github.com/holiman/uint256"
)

var (
	// ErrArithmeticOverflow is returned when an operand or result exceeds 256 bits,
	// or when the divisor is zero.
	ErrArithmeticOverflow = errors.New("arithmetic overflow")
	// ErrNegativeInput is returned when a negative operand is passed.
	ErrNegativeInput = errors.New("negative input")
)

// MulDiv computes floor(x * y / denominator) with a 512-bit intermediate
// product, so x*y never wraps. Operands and the result must fit in 256 bits.
// A zero denominator is reported as ErrArithmeticOverflow.
func MulDiv(x, y, denominator *big.Int) (*big.Int, error) {
	if x.Sign() < 0 || y.Sign() < 0 || denominator.Sign() < 0 {
		return nil, ErrNegativeInput
	}

	xU, overflow := uint256.FromBig(x)
	if overflow {
		return nil, ErrArithmeticOverflow
	}
	yU, overflow := uint256.FromBig(y)
	if overflow {
		return nil, ErrArithmeticOverflow
	}
	dU, overflow := uint256.FromBig(denominator)
	if overflow {
		return nil, ErrArithmeticOverflow
	}
	if dU.IsZero() {
		return nil, ErrArithmeticOverflow
	}

	result, overflow := new(uint256.Int).MulDivOverflow(xU, yU, dU)
	if overflow {
		return nil, ErrArithmeticOverflow
	}

	return result.ToBig(), nil
}

// Sqrt returns the largest integer r such that r*r <= n (floor square root).
func Sqrt(n *big.Int) (*big.Int, error) {
	if n.Sign() < 0 {
		return nil, ErrNegativeInput
	}
	return new(big.Int).Sqrt(n), nil
}
