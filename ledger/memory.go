package ledger

import (
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

var (
	// ErrInsufficientBalance is returned when a transfer exceeds the payer's balance.
	ErrInsufficientBalance = errors.New("insufficient balance")
	// ErrInvalidAmount is returned when a transfer amount is nil or negative.
	ErrInvalidAmount = errors.New("amount must be non-nil and non-negative")
)

// Memory is a thread-safe in-memory Ledger used by tests and the demo binary.
// Balances are keyed by asset, then owner.
type Memory struct {
	mu       sync.RWMutex
	balances map[common.Address]map[common.Address]*big.Int
	clock    func() time.Time
}

// NewMemory creates an empty in-memory ledger backed by the wall clock.
func NewMemory() *Memory {
	return &Memory{
		balances: make(map[common.Address]map[common.Address]*big.Int),
		clock:    time.Now,
	}
}

// WithClock overrides the ledger clock for deterministic tests.
func (m *Memory) WithClock(clock func() time.Time) *Memory {
	if clock != nil {
		m.clock = clock
	}
	return m
}

// Mint credits owner with amount of asset out of thin air. Test/demo seeding only.
func (m *Memory) Mint(asset, owner common.Address, amount *big.Int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.credit(asset, owner, amount)
}

func (m *Memory) TransferIn(asset common.Address, from, to common.Address, amount *big.Int) error {
	return m.transfer(asset, from, to, amount)
}

func (m *Memory) TransferOut(asset common.Address, from, to common.Address, amount *big.Int) error {
	return m.transfer(asset, from, to, amount)
}

func (m *Memory) BalanceOf(asset common.Address, owner common.Address) *big.Int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	owners, ok := m.balances[asset]
	if !ok {
		return new(big.Int)
	}
	bal, ok := owners[owner]
	if !ok {
		return new(big.Int)
	}
	return new(big.Int).Set(bal)
}

func (m *Memory) CurrentTime() uint64 {
	return uint64(m.clock().Unix())
}

// transfer debits and credits under one lock so a transfer is never partially
// applied, matching the atomicity the core assumes of the real ledger.
func (m *Memory) transfer(asset common.Address, from, to common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return ErrInvalidAmount
	}
	if amount.Sign() == 0 {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	owners, ok := m.balances[asset]
	if !ok {
		return fmt.Errorf("%w: asset %s owner %s", ErrInsufficientBalance, asset.Hex(), from.Hex())
	}
	fromBal, ok := owners[from]
	if !ok || fromBal.Cmp(amount) < 0 {
		return fmt.Errorf("%w: asset %s owner %s", ErrInsufficientBalance, asset.Hex(), from.Hex())
	}

	fromBal.Sub(fromBal, amount)
	if fromBal.Sign() == 0 {
		delete(owners, from)
	}
	m.credit(asset, to, amount)
	return nil
}

// credit assumes the lock is held.
func (m *Memory) credit(asset, owner common.Address, amount *big.Int) {
	if amount == nil || amount.Sign() <= 0 {
		return
	}
	owners, ok := m.balances[asset]
	if !ok {
		owners = make(map[common.Address]*big.Int)
		m.balances[asset] = owners
	}
	bal, ok := owners[owner]
	if !ok {
		owners[owner] = new(big.Int).Set(amount)
		return
	}
	bal.Add(bal, amount)
}
