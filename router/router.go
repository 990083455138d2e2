// Package router provides the stateless orchestration layer over the pool
// engine: optimal liquidity amounts, slippage and deadline protection, and
// exact-input multi-hop path swaps. Every operation is a single-shot
// request/response call; no router state survives between calls.
package router

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/defistate/defistate-amm-go/fixedpoint"
	"github.com/defistate/defistate-amm-go/ledger"
	"github.com/defistate/defistate-amm-go/pool"
	"github.com/defistate/defistate-amm-go/registry"
)

// Config holds the router's collaborators.
type Config struct {
	Ledger   ledger.Ledger
	Pools    *registry.Registry
	Logger   Logger
	Registry prometheus.Registerer // required for metrics
}

// validate checks that required dependencies are present.
func (c *Config) validate() error {
	if c.Ledger == nil {
		return errors.New("config: Ledger cannot be nil")
	}
	if c.Pools == nil {
		return errors.New("config: Pools cannot be nil")
	}
	if c.Logger == nil {
		return errors.New("config: Logger cannot be nil")
	}
	if c.Registry == nil {
		return errors.New("config: Registry cannot be nil")
	}
	return nil
}

// Router drives pool mutations on behalf of callers. It holds no reserve or
// share state of its own.
type Router struct {
	ledger  ledger.Ledger
	pools   *registry.Registry
	logger  Logger
	metrics *Metrics
}

// NewRouter constructs a router from a configuration, returning an error if
// the config is invalid.
func NewRouter(cfg *Config) (*Router, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &Router{
		ledger:  cfg.Ledger,
		pools:   cfg.Pools,
		logger:  cfg.Logger,
		metrics: NewMetrics(cfg.Registry),
	}, nil
}

// checkDeadline is evaluated once at entry to each top-level operation.
// now == deadline succeeds.
func (r *Router) checkDeadline(deadline uint64) error {
	if now := r.ledger.CurrentTime(); now > deadline {
		return fmt.Errorf("%w: now=%d deadline=%d", ErrDeadlineExpired, now, deadline)
	}
	return nil
}

// AddLiquidity deposits into the pool at the current reserve ratio. For an
// uninitialized pool the desired amounts are used as-is; otherwise the router
// quotes the matching leg in both directions and uses whichever pairing stays
// within both desired maximums, spending all of one side. amountAMin and
// amountBMin bound the slippage between quoting and execution.
func (r *Router) AddLiquidity(
	p *pool.Pool,
	provider common.Address,
	amountADesired, amountBDesired *big.Int,
	amountAMin, amountBMin *big.Int,
	deadline uint64,
) (amountA, amountB, shares *big.Int, err error) {
	defer func() {
		r.metrics.liquidityOps.WithLabelValues("add", statusOf(err)).Inc()
	}()

	if err = r.checkDeadline(deadline); err != nil {
		return nil, nil, nil, err
	}

	amountA, amountB, err = r.optimalLiquidityAmounts(p, amountADesired, amountBDesired, amountAMin, amountBMin)
	if err != nil {
		return nil, nil, nil, err
	}

	shares, err = p.AddLiquidity(provider, amountA, amountB)
	if err != nil {
		return nil, nil, nil, err
	}

	r.logger.Debug("liquidity added",
		"provider", provider.Hex(),
		"amountA", amountA.String(),
		"amountB", amountB.String(),
		"shares", shares.String(),
	)
	return amountA, amountB, shares, nil
}

// RemoveLiquidity burns shares and pays out both assets, enforcing the
// caller's per-asset minimums. The payout amounts are fully determined by the
// pre-call pool state, so both minimums are checked before the pool mutates.
func (r *Router) RemoveLiquidity(
	p *pool.Pool,
	provider common.Address,
	shares *big.Int,
	amountAMin, amountBMin *big.Int,
	deadline uint64,
) (amountA, amountB *big.Int, err error) {
	defer func() {
		r.metrics.liquidityOps.WithLabelValues("remove", statusOf(err)).Inc()
	}()

	if err = r.checkDeadline(deadline); err != nil {
		return nil, nil, err
	}
	if shares == nil || shares.Sign() <= 0 {
		return nil, nil, pool.ErrInvalidAmount
	}

	view := p.Snapshot()
	if view.TotalShares.Sign() > 0 {
		expectedA, quoteErr := fixedpoint.MulDiv(shares, view.ReserveA, view.TotalShares)
		if quoteErr != nil {
			return nil, nil, quoteErr
		}
		expectedB, quoteErr := fixedpoint.MulDiv(shares, view.ReserveB, view.TotalShares)
		if quoteErr != nil {
			return nil, nil, quoteErr
		}
		if amountAMin != nil && expectedA.Cmp(amountAMin) < 0 {
			return nil, nil, fmt.Errorf("%w: would receive %s, minimum %s",
				ErrInsufficientAAmount, expectedA.String(), amountAMin.String())
		}
		if amountBMin != nil && expectedB.Cmp(amountBMin) < 0 {
			return nil, nil, fmt.Errorf("%w: would receive %s, minimum %s",
				ErrInsufficientBAmount, expectedB.String(), amountBMin.String())
		}
	}

	amountA, amountB, err = p.RemoveLiquidity(provider, shares)
	if err != nil {
		return nil, nil, err
	}

	r.logger.Debug("liquidity removed",
		"provider", provider.Hex(),
		"shares", shares.String(),
		"amountA", amountA.String(),
		"amountB", amountB.String(),
	)
	return amountA, amountB, nil
}

// GetAmountsOut quotes the full output chain for an exact-input path.
// amounts[0] is the input; amounts[i] is the output of hop i. Pure: nothing
// is mutated. Each hop is priced against the reserve state the earlier hops
// leave behind, so a pool appearing more than once in the path is quoted the
// way execution will actually find it.
func (r *Router) GetAmountsOut(amountIn *big.Int, path []common.Address) ([]*big.Int, error) {
	hops, err := r.resolvePath(path)
	if err != nil {
		return nil, err
	}
	return r.quoteHops(amountIn, path, hops)
}

// simulatedReserves is a pool's reserve state as the quote chain advances.
type simulatedReserves struct {
	reserveA *big.Int
	reserveB *big.Int
}

// quoteHops prices the chain hop by hop, carrying each pool's simulated
// post-hop reserves forward.
func (r *Router) quoteHops(amountIn *big.Int, path []common.Address, hops []hop) ([]*big.Int, error) {
	states := make(map[*pool.Pool]*simulatedReserves, len(hops))

	amounts := make([]*big.Int, len(path))
	amounts[0] = new(big.Int).Set(amountIn)
	for i, h := range hops {
		state, ok := states[h.pool]
		if !ok {
			reserveA, reserveB := h.pool.Reserves()
			state = &simulatedReserves{reserveA: reserveA, reserveB: reserveB}
			states[h.pool] = state
		}
		reserveIn, reserveOut := state.reserveA, state.reserveB
		if !h.inputIsAssetA {
			reserveIn, reserveOut = state.reserveB, state.reserveA
		}

		out, err := pool.GetAmountOut(amounts[i], reserveIn, reserveOut, h.pool.FeeBps())
		if err != nil {
			return nil, fmt.Errorf("hop %d (%s -> %s): %w", i, path[i].Hex(), path[i+1].Hex(), err)
		}

		// apply the hop to the simulated state: the full input, fee included,
		// lands in the pool, mirroring Pool.Swap
		reserveIn.Add(reserveIn, amounts[i])
		reserveOut.Sub(reserveOut, out)
		amounts[i+1] = out
	}
	return amounts, nil
}

// SwapExactTokensForTokens swaps an exact input along the path, each hop's
// output feeding the next. The whole chain is quoted against current reserves
// before any value moves, so a failing hop or a short final output surfaces
// with no reserve mutated. The final output must reach amountOutMin; exactly
// equal succeeds. Intermediate outputs pass through the trader's account; the
// last hop pays the recipient.
func (r *Router) SwapExactTokensForTokens(
	trader, recipient common.Address,
	amountIn, amountOutMin *big.Int,
	path []common.Address,
	deadline uint64,
) (amounts []*big.Int, err error) {
	timer := prometheus.NewTimer(r.metrics.swapDuration.WithLabelValues())
	defer func() {
		timer.ObserveDuration()
		r.metrics.swapsTotal.WithLabelValues(statusOf(err)).Inc()
	}()

	if err = r.checkDeadline(deadline); err != nil {
		return nil, err
	}

	hops, err := r.resolvePath(path)
	if err != nil {
		return nil, err
	}

	// Dry run: price the whole chain before committing anything.
	amounts, err = r.GetAmountsOut(amountIn, path)
	if err != nil {
		return nil, err
	}
	finalOut := amounts[len(amounts)-1]
	if amountOutMin != nil && finalOut.Cmp(amountOutMin) < 0 {
		return nil, fmt.Errorf("%w: would receive %s, minimum %s",
			ErrInsufficientOutputAmount, finalOut.String(), amountOutMin.String())
	}

	// Execute hop by hop. The dry run carried each pool's simulated post-hop
	// reserves, so every realized output equals its dry-run amount — repeated
	// pools included — and no hop can fail past this point.
	for i, hop := range hops {
		hopRecipient := trader
		if i == len(hops)-1 {
			hopRecipient = recipient
		}
		out, swapErr := hop.pool.Swap(trader, hopRecipient, amounts[i], hop.inputIsAssetA)
		if swapErr != nil {
			err = fmt.Errorf("hop %d (%s -> %s): %w", i, path[i].Hex(), path[i+1].Hex(), swapErr)
			return nil, err
		}
		amounts[i+1] = out
	}

	r.logger.Debug("path swap executed",
		"trader", trader.Hex(),
		"recipient", recipient.Hex(),
		"hops", len(hops),
		"amountIn", amountIn.String(),
		"amountOut", finalOut.String(),
	)
	return amounts, nil
}

type hop struct {
	pool          *pool.Pool
	inputIsAssetA bool
}

// resolvePath maps each consecutive asset pair to its pool and trade direction.
func (r *Router) resolvePath(path []common.Address) ([]hop, error) {
	if len(path) < 2 {
		return nil, fmt.Errorf("%w: need at least 2 assets, got %d", ErrInvalidPath, len(path))
	}

	hops := make([]hop, 0, len(path)-1)
	for i := 0; i < len(path)-1; i++ {
		assetIn, assetOut := path[i], path[i+1]
		if assetIn == assetOut {
			return nil, fmt.Errorf("%w: hop %d repeats asset %s", ErrInvalidPath, i, assetIn.Hex())
		}
		p, err := r.pools.Get(assetIn, assetOut)
		if err != nil {
			return nil, err
		}
		hops = append(hops, hop{pool: p, inputIsAssetA: assetIn == p.AssetA()})
	}
	return hops, nil
}

// optimalLiquidityAmounts picks the deposit pair for AddLiquidity.
func (r *Router) optimalLiquidityAmounts(
	p *pool.Pool,
	amountADesired, amountBDesired *big.Int,
	amountAMin, amountBMin *big.Int,
) (*big.Int, *big.Int, error) {
	view := p.Snapshot()
	if view.TotalShares.Sign() == 0 {
		return amountADesired, amountBDesired, nil
	}

	amountBOptimal, err := pool.GetEquivalentAmount(amountADesired, view.ReserveA, view.ReserveB)
	if err != nil {
		return nil, nil, err
	}
	if amountBOptimal.Cmp(amountBDesired) <= 0 {
		if amountBMin != nil && amountBOptimal.Cmp(amountBMin) < 0 {
			return nil, nil, fmt.Errorf("%w: need %s, minimum %s",
				ErrInsufficientBAmount, amountBOptimal.String(), amountBMin.String())
		}
		return amountADesired, amountBOptimal, nil
	}

	amountAOptimal, err := pool.GetEquivalentAmount(amountBDesired, view.ReserveB, view.ReserveA)
	if err != nil {
		return nil, nil, err
	}
	// amountBOptimal > amountBDesired implies amountAOptimal <= amountADesired
	if amountAMin != nil && amountAOptimal.Cmp(amountAMin) < 0 {
		return nil, nil, fmt.Errorf("%w: need %s, minimum %s",
			ErrInsufficientAAmount, amountAOptimal.String(), amountAMin.String())
	}
	return amountAOptimal, amountBDesired, nil
}
