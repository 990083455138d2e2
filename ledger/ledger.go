// Package ledger defines the external ledger collaborator the AMM core moves
// value through. The core never holds custody or performs authorization
// itself; it instructs the ledger and trusts the surrounding execution
// environment to serialize mutating calls (call-level atomicity).
package ledger

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Ledger is the value-transfer and time collaborator injected into the pool
// engine and router. Implementations must reject transfers the payer cannot
// cover and must not partially apply a transfer.
type Ledger interface {
	// TransferIn pulls amount of asset from the payer into to's custody.
	TransferIn(asset common.Address, from, to common.Address, amount *big.Int) error

	// TransferOut pushes amount of asset out of from's custody to the recipient.
	TransferOut(asset common.Address, from, to common.Address, amount *big.Int) error

	// BalanceOf reports the current balance of owner for the given asset.
	BalanceOf(asset common.Address, owner common.Address) *big.Int

	// CurrentTime returns the ledger's notion of now as a Unix timestamp.
	// Deadline checks in the router are evaluated against this clock.
	CurrentTime() uint64
}
