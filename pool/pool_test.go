package pool

import (
	"math/big"
	"math/rand"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/defistate/defistate-amm-go/ledger"
)

var (
	assetA      = common.HexToAddress("0x0000000000000000000000000000000000000a01")
	assetB      = common.HexToAddress("0x0000000000000000000000000000000000000a02")
	poolAccount = common.HexToAddress("0x00000000000000000000000000000000000000f1")
	providerX   = common.HexToAddress("0x0000000000000000000000000000000000000101")
	providerY   = common.HexToAddress("0x0000000000000000000000000000000000000102")
	trader      = common.HexToAddress("0x0000000000000000000000000000000000000103")
)

func e18(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil))
}

// newTestPool creates an empty pool with generously funded accounts.
func newTestPool(t *testing.T) (*Pool, *ledger.Memory) {
	t.Helper()
	l := ledger.NewMemory()
	for _, owner := range []common.Address{providerX, providerY, trader} {
		l.Mint(assetA, owner, e18(1_000_000))
		l.Mint(assetB, owner, e18(1_000_000))
	}
	p, err := New(assetA, assetB, poolAccount, DefaultFeeBps, l)
	require.NoError(t, err)
	return p, l
}

// requireShareConservation asserts sum(shareBalance) == totalShares, the
// locked minimum included.
func requireShareConservation(t *testing.T, p *Pool) {
	t.Helper()
	sum := new(big.Int)
	for _, bal := range p.ShareBalances() {
		sum.Add(sum, bal)
	}
	require.Equal(t, 0, sum.Cmp(p.TotalShares()),
		"share supply mismatch: sum=%s total=%s", sum.String(), p.TotalShares().String())
}

func TestNewValidation(t *testing.T) {
	l := ledger.NewMemory()

	_, err := New(assetA, assetA, poolAccount, DefaultFeeBps, l)
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = New(assetA, assetB, poolAccount, DefaultFeeBps, nil)
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = New(assetA, assetB, poolAccount, 10000, l)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestFirstDepositLocksMinimumShares(t *testing.T) {
	p, l := newTestPool(t)

	minted, err := p.AddLiquidity(providerX, e18(5), e18(20))
	require.NoError(t, err)

	// sqrt(5e18 * 20e18) = 10e18, minus the locked minimum
	expected := new(big.Int).Sub(e18(10), MinimumShares)
	assert.Equal(t, 0, expected.Cmp(minted))
	assert.Equal(t, 0, expected.Cmp(p.SharesOf(providerX)))
	assert.Equal(t, 0, MinimumShares.Cmp(p.SharesOf(LockedSharesHolder)))
	assert.Equal(t, 0, e18(10).Cmp(p.TotalShares()))
	requireShareConservation(t, p)

	// both legs landed in custody
	assert.Equal(t, 0, e18(5).Cmp(l.BalanceOf(assetA, poolAccount)))
	assert.Equal(t, 0, e18(20).Cmp(l.BalanceOf(assetB, poolAccount)))
}

func TestFirstDepositBelowMinimum(t *testing.T) {
	p, l := newTestPool(t)
	balBefore := l.BalanceOf(assetA, providerX)

	// sqrt(1000*1000) == MinimumShares, so nothing is left to mint
	_, err := p.AddLiquidity(providerX, big.NewInt(1000), big.NewInt(1000))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInsufficientInitialLiquidity)

	// the failure happened before any value moved
	assert.Equal(t, 0, balBefore.Cmp(l.BalanceOf(assetA, providerX)))
	rA, rB := p.Reserves()
	assert.Equal(t, int64(0), rA.Int64())
	assert.Equal(t, int64(0), rB.Int64())
}

func TestProportionalMint(t *testing.T) {
	p, _ := newTestPool(t)

	_, err := p.AddLiquidity(providerX, e18(5), e18(20))
	require.NoError(t, err)

	// same ratio at 10x scale mints exactly 10x the share supply
	minted, err := p.AddLiquidity(providerY, e18(50), e18(200))
	require.NoError(t, err)
	assert.Equal(t, 0, e18(100).Cmp(minted))
	requireShareConservation(t, p)

	rA, rB := p.Reserves()
	assert.Equal(t, 0, e18(55).Cmp(rA))
	assert.Equal(t, 0, e18(220).Cmp(rB))
}

func TestDepositRoundsToZeroShares(t *testing.T) {
	p, _ := newTestPool(t)

	_, err := p.AddLiquidity(providerX, e18(5), e18(20))
	require.NoError(t, err)

	// 1 smallest unit of each against 18-decimal reserves floors to zero shares
	_, err = p.AddLiquidity(providerY, big.NewInt(1), big.NewInt(1))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrZeroLiquidityMinted)
	requireShareConservation(t, p)
}

func TestAddLiquidityInvalidAmounts(t *testing.T) {
	p, _ := newTestPool(t)

	_, err := p.AddLiquidity(providerX, big.NewInt(0), e18(1))
	assert.ErrorIs(t, err, ErrInvalidAmount)
	_, err = p.AddLiquidity(providerX, e18(1), nil)
	assert.ErrorIs(t, err, ErrInvalidAmount)
	_, err = p.AddLiquidity(providerX, e18(1), big.NewInt(-5))
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestRemoveLiquidityInsufficientShares(t *testing.T) {
	p, _ := newTestPool(t)

	_, err := p.AddLiquidity(providerX, e18(5), e18(20))
	require.NoError(t, err)

	// Y holds no shares at all
	_, _, err = p.RemoveLiquidity(providerY, big.NewInt(1))
	assert.ErrorIs(t, err, ErrInsufficientShares)

	// X cannot burn more than owned
	tooMany := new(big.Int).Add(p.SharesOf(providerX), big.NewInt(1))
	_, _, err = p.RemoveLiquidity(providerX, tooMany)
	assert.ErrorIs(t, err, ErrInsufficientShares)

	_, _, err = p.RemoveLiquidity(providerX, big.NewInt(0))
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestFullWithdrawalLeavesDust(t *testing.T) {
	p, l := newTestPool(t)

	_, err := p.AddLiquidity(providerX, e18(5), e18(20))
	require.NoError(t, err)

	all := p.SharesOf(providerX)
	amountA, amountB, err := p.RemoveLiquidity(providerX, all)
	require.NoError(t, err)

	// floor division holds back exactly the locked minimum's entitlement
	expectedA := new(big.Int).Sub(e18(5), big.NewInt(500))
	expectedB := new(big.Int).Sub(e18(20), big.NewInt(2000))
	assert.Equal(t, 0, expectedA.Cmp(amountA))
	assert.Equal(t, 0, expectedB.Cmp(amountB))

	rA, rB := p.Reserves()
	assert.Equal(t, int64(500), rA.Int64())
	assert.Equal(t, int64(2000), rB.Int64())
	assert.Equal(t, 0, MinimumShares.Cmp(p.TotalShares()))
	assert.Equal(t, int64(0), p.SharesOf(providerX).Int64())
	requireShareConservation(t, p)

	// the pool never goes back to the uninitialized state
	assert.True(t, rA.Sign() > 0 && rB.Sign() > 0)

	// custody matches the residual reserves
	assert.Equal(t, 0, rA.Cmp(l.BalanceOf(assetA, poolAccount)))
	assert.Equal(t, 0, rB.Cmp(l.BalanceOf(assetB, poolAccount)))
}

// The locked minimum can never be burned, even after every real depositor
// has exited: an active pool must not return to zero total shares.
func TestLockedMinimumCannotBeBurned(t *testing.T) {
	p, _ := newTestPool(t)

	_, err := p.AddLiquidity(providerX, e18(5), e18(20))
	require.NoError(t, err)
	_, _, err = p.RemoveLiquidity(providerX, p.SharesOf(providerX))
	require.NoError(t, err)

	// only the locked minimum remains outstanding
	require.Equal(t, 0, MinimumShares.Cmp(p.TotalShares()))

	_, _, err = p.RemoveLiquidity(LockedSharesHolder, MinimumShares)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInsufficientShares)

	// the pool stays active with its residual reserves intact
	assert.Equal(t, 0, MinimumShares.Cmp(p.TotalShares()))
	assert.Equal(t, 0, MinimumShares.Cmp(p.SharesOf(LockedSharesHolder)))
	rA, rB := p.Reserves()
	assert.Equal(t, int64(500), rA.Int64())
	assert.Equal(t, int64(2000), rB.Int64())
	requireShareConservation(t, p)
}

func TestSwap(t *testing.T) {
	p, l := newTestPool(t)

	_, err := p.AddLiquidity(providerX, e18(5), e18(20))
	require.NoError(t, err)
	_, err = p.AddLiquidity(providerY, e18(50), e18(200))
	require.NoError(t, err)

	kBefore := p.K()
	traderBBefore := l.BalanceOf(assetB, trader)

	quoted, err := p.QuoteAmountOut(e18(10), true)
	require.NoError(t, err)

	out, err := p.Swap(trader, trader, e18(10), true)
	require.NoError(t, err)
	assert.Equal(t, 0, quoted.Cmp(out), "realized output must match the quote")
	assert.Equal(t, 0, newBigIntFromString("33760197014006464522").Cmp(out))

	rA, rB := p.Reserves()
	assert.Equal(t, 0, e18(65).Cmp(rA), "input reserve grows by the full input, fee included")
	expectedB := new(big.Int).Sub(e18(220), out)
	assert.Equal(t, 0, expectedB.Cmp(rB))
	assert.True(t, p.K().Cmp(kBefore) >= 0, "reserve product must not decrease")

	received := new(big.Int).Sub(l.BalanceOf(assetB, trader), traderBBefore)
	assert.Equal(t, 0, out.Cmp(received))
}

func TestSwapReverseDirection(t *testing.T) {
	p, _ := newTestPool(t)

	_, err := p.AddLiquidity(providerX, e18(55), e18(220))
	require.NoError(t, err)

	out, err := p.Swap(trader, trader, e18(40), false)
	require.NoError(t, err)
	assert.Equal(t, 0, newBigIntFromString("8440049253501616130").Cmp(out))

	rA, rB := p.Reserves()
	assert.Equal(t, 0, new(big.Int).Sub(e18(55), out).Cmp(rA))
	assert.Equal(t, 0, e18(260).Cmp(rB))
}

func TestSwapFailures(t *testing.T) {
	p, _ := newTestPool(t)

	// empty pool
	_, err := p.Swap(trader, trader, e18(1), true)
	assert.ErrorIs(t, err, ErrInsufficientLiquidity)

	_, err = p.AddLiquidity(providerX, e18(5), e18(20))
	require.NoError(t, err)

	_, err = p.Swap(trader, trader, big.NewInt(0), true)
	assert.ErrorIs(t, err, ErrInvalidAmount)

	// a trader with no balance fails at the pull, leaving reserves untouched
	broke := common.HexToAddress("0x00000000000000000000000000000000000000bb")
	rABefore, rBBefore := p.Reserves()
	_, err = p.Swap(broke, broke, e18(1), true)
	require.Error(t, err)
	assert.ErrorIs(t, err, ledger.ErrInsufficientBalance)
	rA, rB := p.Reserves()
	assert.Equal(t, 0, rABefore.Cmp(rA))
	assert.Equal(t, 0, rBBefore.Cmp(rB))
}

// Drives a random operation sequence and checks the structural invariants
// after every step: share conservation, positive reserves while shares are
// outstanding, and a non-decreasing reserve product across swaps.
func TestInvariantsUnderRandomSequence(t *testing.T) {
	p, _ := newTestPool(t)
	rng := rand.New(rand.NewSource(42))

	_, err := p.AddLiquidity(providerX, e18(100), e18(400))
	require.NoError(t, err)

	providers := []common.Address{providerX, providerY}
	for i := 0; i < 500; i++ {
		who := providers[rng.Intn(len(providers))]
		switch rng.Intn(3) {
		case 0:
			amountA := new(big.Int).Add(e18(1), big.NewInt(rng.Int63n(1e9)))
			rA, rB := p.Reserves()
			amountB, err := GetEquivalentAmount(amountA, rA, rB)
			require.NoError(t, err)
			if amountB.Sign() == 0 {
				continue
			}
			_, err = p.AddLiquidity(who, amountA, amountB)
			require.NoError(t, err)
		case 1:
			owned := p.SharesOf(who)
			if owned.Sign() == 0 {
				continue
			}
			burn := new(big.Int).Div(owned, big.NewInt(int64(rng.Intn(9)+2)))
			if burn.Sign() == 0 {
				continue
			}
			_, _, err := p.RemoveLiquidity(who, burn)
			require.NoError(t, err)
		case 2:
			kBefore := p.K()
			amountIn := new(big.Int).Add(big.NewInt(1_000_000), big.NewInt(rng.Int63n(1e12)))
			_, err := p.Swap(trader, trader, amountIn, rng.Intn(2) == 0)
			require.NoError(t, err)
			require.True(t, p.K().Cmp(kBefore) >= 0, "step %d: reserve product decreased", i)
		}

		requireShareConservation(t, p)
		if p.TotalShares().Sign() > 0 {
			rA, rB := p.Reserves()
			require.True(t, rA.Sign() > 0 && rB.Sign() > 0,
				"step %d: active pool with empty reserve", i)
		}
	}
}

// The end-to-end scenario: first deposit, proportional second deposit, a
// priced swap, then a full exit by the first depositor.
func TestDepositSwapWithdrawScenario(t *testing.T) {
	p, _ := newTestPool(t)

	mintedX, err := p.AddLiquidity(providerX, e18(5), e18(20))
	require.NoError(t, err)
	assert.Equal(t, 0, new(big.Int).Sub(e18(10), MinimumShares).Cmp(mintedX))

	mintedY, err := p.AddLiquidity(providerY, e18(50), e18(200))
	require.NoError(t, err)
	assert.Equal(t, 0, e18(100).Cmp(mintedY))

	out, err := p.Swap(trader, trader, e18(10), true)
	require.NoError(t, err)
	assert.Equal(t, 0, newBigIntFromString("33760197014006464522").Cmp(out))

	amountA, amountB, err := p.RemoveLiquidity(providerX, mintedX)
	require.NoError(t, err)
	assert.Equal(t, 0, newBigIntFromString("5909090909090908500").Cmp(amountA))
	assert.Equal(t, 0, newBigIntFromString("16930891180544865168").Cmp(amountB))

	rA, rB := p.Reserves()
	assert.Equal(t, 0, newBigIntFromString("59090909090909091500").Cmp(rA))
	assert.Equal(t, 0, newBigIntFromString("169308911805448670310").Cmp(rB))
	assert.Equal(t, 0, newBigIntFromString("100000000000000001000").Cmp(p.TotalShares()))
	requireShareConservation(t, p)
}

func TestSnapshot(t *testing.T) {
	p, _ := newTestPool(t)

	_, err := p.AddLiquidity(providerX, e18(5), e18(20))
	require.NoError(t, err)

	view := p.Snapshot()
	assert.Equal(t, assetA, view.AssetA)
	assert.Equal(t, assetB, view.AssetB)
	assert.Equal(t, DefaultFeeBps, view.FeeBps)
	assert.Equal(t, 0, e18(5).Cmp(view.ReserveA))

	// snapshot must be detached from live state
	view.ReserveA.SetInt64(0)
	rA, _ := p.Reserves()
	assert.Equal(t, 0, e18(5).Cmp(rA))
}
