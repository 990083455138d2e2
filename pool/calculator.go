package pool

import (
	"errors"
	"fmt"
	"math/big"
	"sync"
)

var (
	// basisPointDivisor is a constant representing 100% in basis points (10000).
	basisPointDivisor = big.NewInt(10000)

	// ErrInvalidAmount is returned when an input amount is nil, zero or negative.
	ErrInvalidAmount = errors.New("amount must be non-nil and positive")
	// ErrInvalidReserves is returned when a quote is requested against an empty reserve.
	ErrInvalidReserves = errors.New("reserves must be positive")
	// ErrInsufficientLiquidity is returned when a swap would drain the output reserve
	// or the pool has no liquidity to trade against.
	ErrInsufficientLiquidity = errors.New("insufficient liquidity for swap")
	// ErrInsufficientInitialLiquidity is returned when the first deposit is too small
	// to cover the permanently locked minimum shares.
	ErrInsufficientInitialLiquidity = errors.New("initial deposit below minimum liquidity")
	// ErrZeroLiquidityMinted is returned when a deposit rounds to zero shares.
	ErrZeroLiquidityMinted = errors.New("deposit mints zero shares")
	// ErrInsufficientShares is returned when a withdrawal exceeds the owner's share balance.
	ErrInsufficientShares = errors.New("insufficient share balance")
)

// Calculator holds reusable big.Int objects to avoid memory allocations during
// quoting. Instances are NOT safe for concurrent use by themselves; they are
// managed by the sync.Pool below.
type Calculator struct {
	feeMultiplier   *big.Int
	amountInWithFee *big.Int
	numerator       *big.Int
	denominator     *big.Int
}

// calculatorPool manages a pool of Calculator objects, allowing safe concurrent
// quoting without per-call allocations.
var calculatorPool = sync.Pool{
	New: func() any {
		return &Calculator{
			feeMultiplier:   new(big.Int),
			amountInWithFee: new(big.Int),
			numerator:       new(big.Int),
			denominator:     new(big.Int),
		}
	},
}

// GetAmountOut quotes the constant-product output for an exact input against
// the given reserves, after deducting feeBps from the input. Pure: no pool
// state is read or written. Floor division throughout.
func GetAmountOut(amountIn, reserveIn, reserveOut *big.Int, feeBps uint16) (*big.Int, error) {
	calc := calculatorPool.Get().(*Calculator)
	defer calculatorPool.Put(calc)
	return calc.getAmountOut(amountIn, reserveIn, reserveOut, feeBps)
}

// GetEquivalentAmount quotes the amount of asset B matching amountA at the
// current reserve ratio: floor(amountA * reserveB / reserveA). Used to compute
// the balanced second leg of a liquidity deposit.
func GetEquivalentAmount(amountA, reserveA, reserveB *big.Int) (*big.Int, error) {
	calc := calculatorPool.Get().(*Calculator)
	defer calculatorPool.Put(calc)
	return calc.getEquivalentAmount(amountA, reserveA, reserveB)
}

func (c *Calculator) getAmountOut(amountIn, reserveIn, reserveOut *big.Int, feeBps uint16) (*big.Int, error) {
	if amountIn == nil || amountIn.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	if reserveIn == nil || reserveOut == nil || reserveIn.Sign() <= 0 || reserveOut.Sign() <= 0 {
		return nil, fmt.Errorf("%w: reserveIn=%s reserveOut=%s", ErrInvalidReserves,
			bigString(reserveIn), bigString(reserveOut))
	}

	// amountOut = reserveOut * amountInAfterFee / (reserveIn + amountInAfterFee)
	// expressed in basis points to keep everything integer.
	c.feeMultiplier.Sub(basisPointDivisor, big.NewInt(int64(feeBps)))
	c.amountInWithFee.Mul(amountIn, c.feeMultiplier)
	c.numerator.Mul(reserveOut, c.amountInWithFee)
	c.denominator.Mul(reserveIn, basisPointDivisor)
	c.denominator.Add(c.denominator, c.amountInWithFee)

	return new(big.Int).Div(c.numerator, c.denominator), nil
}

func (c *Calculator) getEquivalentAmount(amountA, reserveA, reserveB *big.Int) (*big.Int, error) {
	if amountA == nil || amountA.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	if reserveA == nil || reserveB == nil || reserveA.Sign() <= 0 || reserveB.Sign() <= 0 {
		return nil, fmt.Errorf("%w: reserveA=%s reserveB=%s", ErrInvalidReserves,
			bigString(reserveA), bigString(reserveB))
	}

	c.numerator.Mul(amountA, reserveB)
	return new(big.Int).Div(c.numerator, reserveA), nil
}

func bigString(n *big.Int) string {
	if n == nil {
		return "<nil>"
	}
	return n.String()
}
