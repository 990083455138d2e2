package pool

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// View is a deep-copy snapshot of a pool's state, safe to hand to consumers
// and to serialize.
type View struct {
	AssetA      common.Address `json:"assetA"`
	AssetB      common.Address `json:"assetB"`
	Account     common.Address `json:"account"`
	FeeBps      uint16         `json:"feeBps"` // i.e 30 for 0.3%
	ReserveA    *big.Int       `json:"reserveA"`
	ReserveB    *big.Int       `json:"reserveB"`
	TotalShares *big.Int       `json:"totalShares"`
}

// Snapshot returns a deep copy of the pool's current state.
func (p *Pool) Snapshot() View {
	return View{
		AssetA:      p.assetA,
		AssetB:      p.assetB,
		Account:     p.account,
		FeeBps:      p.feeBps,
		ReserveA:    new(big.Int).Set(p.reserveA),
		ReserveB:    new(big.Int).Set(p.reserveB),
		TotalShares: new(big.Int).Set(p.totalShares),
	}
}

// ShareBalances returns a deep copy of the share ownership map, including the
// locked minimum under LockedSharesHolder.
func (p *Pool) ShareBalances() map[common.Address]*big.Int {
	out := make(map[common.Address]*big.Int, len(p.shareBalance))
	for owner, bal := range p.shareBalance {
		out[owner] = new(big.Int).Set(bal)
	}
	return out
}
