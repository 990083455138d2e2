// Package pool implements the accounting engine for a single two-asset
// constant-product pair: reserve tracking, ownership-share mint/burn and
// fee-adjusted swaps. Value moves through an injected ledger collaborator;
// the engine never holds custody itself.
//
// A Pool is not safe for concurrent use. The surrounding execution
// environment is expected to serialize mutating calls per pair, so every
// mutation here is a single run-to-completion step.
package pool

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/defistate/defistate-amm-go/fixedpoint"
	"github.com/defistate/defistate-amm-go/ledger"
)

// DefaultFeeBps is the standard proportional trading fee (0.3%).
const DefaultFeeBps uint16 = 30

var (
	// MinimumShares is minted to LockedSharesHolder on the first deposit and can
	// never be burned, so an active pool can never return to zero total shares.
	MinimumShares = big.NewInt(1000)

	// LockedSharesHolder owns the permanently locked minimum shares.
	LockedSharesHolder = common.Address{}

	// ErrInvalidConfig is returned when a pool is constructed with bad parameters.
	ErrInvalidConfig = errors.New("invalid pool configuration")
)

// Pool owns the reserves and share supply for one asset pair.
type Pool struct {
	assetA  common.Address
	assetB  common.Address
	account common.Address // custody account on the ledger
	feeBps  uint16

	reserveA     *big.Int
	reserveB     *big.Int
	totalShares  *big.Int
	shareBalance map[common.Address]*big.Int

	ledger ledger.Ledger
}

// New creates an empty pool for the given pair. The account is the ledger
// address holding the pool's custody; feeBps is the proportional trading fee
// in basis points (30 = 0.3%).
func New(assetA, assetB, account common.Address, feeBps uint16, l ledger.Ledger) (*Pool, error) {
	if assetA == assetB {
		return nil, fmt.Errorf("%w: identical assets %s", ErrInvalidConfig, assetA.Hex())
	}
	if l == nil {
		return nil, fmt.Errorf("%w: ledger cannot be nil", ErrInvalidConfig)
	}
	if feeBps >= 10000 {
		return nil, fmt.Errorf("%w: feeBps %d out of range", ErrInvalidConfig, feeBps)
	}
	return &Pool{
		assetA:       assetA,
		assetB:       assetB,
		account:      account,
		feeBps:       feeBps,
		reserveA:     new(big.Int),
		reserveB:     new(big.Int),
		totalShares:  new(big.Int),
		shareBalance: make(map[common.Address]*big.Int),
		ledger:       l,
	}, nil
}

// AssetA returns the pair's first asset.
func (p *Pool) AssetA() common.Address { return p.assetA }

// AssetB returns the pair's second asset.
func (p *Pool) AssetB() common.Address { return p.assetB }

// Account returns the pool's custody address on the ledger.
func (p *Pool) Account() common.Address { return p.account }

// FeeBps returns the pool's trading fee in basis points.
func (p *Pool) FeeBps() uint16 { return p.feeBps }

// Reserves returns copies of the current reserves.
func (p *Pool) Reserves() (reserveA, reserveB *big.Int) {
	return new(big.Int).Set(p.reserveA), new(big.Int).Set(p.reserveB)
}

// TotalShares returns a copy of the outstanding share supply.
func (p *Pool) TotalShares() *big.Int {
	return new(big.Int).Set(p.totalShares)
}

// SharesOf returns a copy of owner's share balance.
func (p *Pool) SharesOf(owner common.Address) *big.Int {
	bal, ok := p.shareBalance[owner]
	if !ok {
		return new(big.Int)
	}
	return new(big.Int).Set(bal)
}

// K returns the current reserve product reserveA * reserveB. Swaps may only
// grow this value; the fee is the sole source of growth.
func (p *Pool) K() *big.Int {
	return new(big.Int).Mul(p.reserveA, p.reserveB)
}

// AddLiquidity deposits the exact amounts supplied and mints ownership shares
// to the provider. The first deposit mints sqrt(amountA*amountB) shares and
// permanently locks MinimumShares under LockedSharesHolder; later deposits
// mint min(amountA*S/reserveA, amountB*S/reserveB), floored. Matching the
// reserve ratio is the caller's responsibility (the router pre-quotes).
//
// Both amounts are pulled into pool custody before any share is credited.
func (p *Pool) AddLiquidity(provider common.Address, amountA, amountB *big.Int) (*big.Int, error) {
	if amountA == nil || amountA.Sign() <= 0 || amountB == nil || amountB.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}

	// All share math runs against the pre-transfer state so a failure here
	// aborts before any value moves.
	first := p.totalShares.Sign() == 0

	var minted *big.Int
	if first {
		product := new(big.Int).Mul(amountA, amountB)
		root, err := fixedpoint.Sqrt(product)
		if err != nil {
			return nil, err
		}
		minted = root.Sub(root, MinimumShares)
		if minted.Sign() <= 0 {
			return nil, fmt.Errorf("%w: sqrt(%s*%s) <= %s", ErrInsufficientInitialLiquidity,
				amountA.String(), amountB.String(), MinimumShares.String())
		}
	} else {
		byA, err := fixedpoint.MulDiv(amountA, p.totalShares, p.reserveA)
		if err != nil {
			return nil, err
		}
		byB, err := fixedpoint.MulDiv(amountB, p.totalShares, p.reserveB)
		if err != nil {
			return nil, err
		}
		minted = byA
		if byB.Cmp(byA) < 0 {
			minted = byB
		}
		if minted.Sign() == 0 {
			return nil, ErrZeroLiquidityMinted
		}
	}

	// Pull both legs into custody. If the second leg fails, return the first
	// so the call leaves no partial state behind.
	if err := p.ledger.TransferIn(p.assetA, provider, p.account, amountA); err != nil {
		return nil, fmt.Errorf("pull asset A: %w", err)
	}
	if err := p.ledger.TransferIn(p.assetB, provider, p.account, amountB); err != nil {
		if refundErr := p.ledger.TransferOut(p.assetA, p.account, provider, amountA); refundErr != nil {
			return nil, fmt.Errorf("pull asset B: %w (refund failed: %v)", err, refundErr)
		}
		return nil, fmt.Errorf("pull asset B: %w", err)
	}

	p.reserveA.Add(p.reserveA, amountA)
	p.reserveB.Add(p.reserveB, amountB)
	p.totalShares.Add(p.totalShares, minted)
	p.creditShares(provider, minted)
	if first {
		p.totalShares.Add(p.totalShares, MinimumShares)
		p.creditShares(LockedSharesHolder, MinimumShares)
	}

	return new(big.Int).Set(minted), nil
}

// RemoveLiquidity burns shares from the provider and pays out the floored
// pro-rata portion of both reserves. State is updated before any transfer
// leaves custody.
func (p *Pool) RemoveLiquidity(provider common.Address, shares *big.Int) (amountA, amountB *big.Int, err error) {
	if shares == nil || shares.Sign() <= 0 {
		return nil, nil, ErrInvalidAmount
	}
	// The minimum shares are never released: the locked holder cannot burn,
	// so an active pool cannot return to zero total shares.
	if provider == LockedSharesHolder {
		return nil, nil, fmt.Errorf("%w: minimum shares are permanently locked", ErrInsufficientShares)
	}
	balance, ok := p.shareBalance[provider]
	if !ok || balance.Cmp(shares) < 0 {
		return nil, nil, fmt.Errorf("%w: owner %s has %s, needs %s", ErrInsufficientShares,
			provider.Hex(), p.SharesOf(provider).String(), shares.String())
	}

	amountA, err = fixedpoint.MulDiv(shares, p.reserveA, p.totalShares)
	if err != nil {
		return nil, nil, err
	}
	amountB, err = fixedpoint.MulDiv(shares, p.reserveB, p.totalShares)
	if err != nil {
		return nil, nil, err
	}

	// Book-keep first, transfer out after (never interleave).
	p.debitShares(provider, shares)
	p.totalShares.Sub(p.totalShares, shares)
	p.reserveA.Sub(p.reserveA, amountA)
	p.reserveB.Sub(p.reserveB, amountB)

	if amountA.Sign() > 0 {
		if err := p.ledger.TransferOut(p.assetA, p.account, provider, amountA); err != nil {
			return nil, nil, fmt.Errorf("push asset A: %w", err)
		}
	}
	if amountB.Sign() > 0 {
		if err := p.ledger.TransferOut(p.assetB, p.account, provider, amountB); err != nil {
			return nil, nil, fmt.Errorf("push asset B: %w", err)
		}
	}

	return amountA, amountB, nil
}

// Swap trades an exact input of one asset for the other under the
// constant-product formula, net of the pool fee. The full input (fee
// included) is added to the input reserve, which is what makes the reserve
// product non-decreasing across swaps. Output goes to the recipient.
func (p *Pool) Swap(trader, recipient common.Address, amountIn *big.Int, inputIsAssetA bool) (*big.Int, error) {
	if amountIn == nil || amountIn.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	if p.reserveA.Sign() == 0 || p.reserveB.Sign() == 0 {
		return nil, fmt.Errorf("%w: pool has no reserves", ErrInsufficientLiquidity)
	}

	assetIn, assetOut := p.assetA, p.assetB
	reserveIn, reserveOut := p.reserveA, p.reserveB
	if !inputIsAssetA {
		assetIn, assetOut = p.assetB, p.assetA
		reserveIn, reserveOut = p.reserveB, p.reserveA
	}

	amountOut, err := GetAmountOut(amountIn, reserveIn, reserveOut, p.feeBps)
	if err != nil {
		return nil, err
	}
	if amountOut.Cmp(reserveOut) >= 0 {
		return nil, fmt.Errorf("%w: output %s would drain reserve %s", ErrInsufficientLiquidity,
			amountOut.String(), reserveOut.String())
	}

	// Pull input, update reserves, then push output. The reserve update is
	// complete before the outbound transfer can trigger anything external.
	if err := p.ledger.TransferIn(assetIn, trader, p.account, amountIn); err != nil {
		return nil, fmt.Errorf("pull input: %w", err)
	}
	reserveIn.Add(reserveIn, amountIn)
	reserveOut.Sub(reserveOut, amountOut)

	if amountOut.Sign() > 0 {
		if err := p.ledger.TransferOut(assetOut, p.account, recipient, amountOut); err != nil {
			return nil, fmt.Errorf("push output: %w", err)
		}
	}

	return amountOut, nil
}

// QuoteAmountOut quotes a swap against this pool's current reserves without
// mutating anything.
func (p *Pool) QuoteAmountOut(amountIn *big.Int, inputIsAssetA bool) (*big.Int, error) {
	if inputIsAssetA {
		return GetAmountOut(amountIn, p.reserveA, p.reserveB, p.feeBps)
	}
	return GetAmountOut(amountIn, p.reserveB, p.reserveA, p.feeBps)
}

func (p *Pool) creditShares(owner common.Address, amount *big.Int) {
	bal, ok := p.shareBalance[owner]
	if !ok {
		p.shareBalance[owner] = new(big.Int).Set(amount)
		return
	}
	bal.Add(bal, amount)
}

func (p *Pool) debitShares(owner common.Address, amount *big.Int) {
	bal := p.shareBalance[owner]
	bal.Sub(bal, amount)
	if bal.Sign() == 0 {
		delete(p.shareBalance, owner)
	}
}
