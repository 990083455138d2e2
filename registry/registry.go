// Package registry manages the mapping from asset pairs to pool instances.
// Pool references are obtained here and handed into router calls by the
// caller; the registry itself never mutates pool state.
package registry

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/defistate/defistate-amm-go/ledger"
	"github.com/defistate/defistate-amm-go/pool"
)

var (
	// ErrIdenticalAssets is returned when both sides of a pair are the same asset.
	ErrIdenticalAssets = errors.New("pair assets must differ")
	// ErrPoolExists is returned when a pool for the pair already exists.
	ErrPoolExists = errors.New("pool already exists")
	// ErrPoolNotFound is returned when no pool exists for the pair.
	ErrPoolNotFound = errors.New("pool not found")
)

// PairKey is the canonical identity of an asset pair: Asset0 sorts below
// Asset1 byte-wise, so (a, b) and (b, a) map to the same key.
type PairKey struct {
	Asset0 common.Address `json:"asset0"`
	Asset1 common.Address `json:"asset1"`
}

// NewPairKey builds the canonical key for two assets, in either order.
func NewPairKey(a, b common.Address) (PairKey, error) {
	if a == b {
		return PairKey{}, fmt.Errorf("%w: %s", ErrIdenticalAssets, a.Hex())
	}
	if bytes.Compare(a.Bytes(), b.Bytes()) < 0 {
		return PairKey{Asset0: a, Asset1: b}, nil
	}
	return PairKey{Asset0: b, Asset1: a}, nil
}

// CustodyAddress derives the deterministic ledger address holding the pair's
// pool custody.
func (k PairKey) CustodyAddress() common.Address {
	return common.BytesToAddress(crypto.Keccak256(k.Asset0.Bytes(), k.Asset1.Bytes())[12:])
}

// Registry is a simple, non-thread-safe mapping from pair keys to pools.
// Callers that share a registry across goroutines must serialize access,
// the same way pool mutations are serialized.
type Registry struct {
	pools         map[PairKey]*pool.Pool
	keys          []PairKey // creation order, for stable iteration
	ledger        ledger.Ledger
	defaultFeeBps uint16
}

// NewRegistry creates an empty registry. Pools created through it share the
// given ledger and default fee.
func NewRegistry(l ledger.Ledger, defaultFeeBps uint16) *Registry {
	return &Registry{
		pools:         make(map[PairKey]*pool.Pool),
		ledger:        l,
		defaultFeeBps: defaultFeeBps,
	}
}

// Create registers a new empty pool for the pair at the registry's default
// fee. Asset order does not matter; the pool's AssetA is the canonical Asset0.
func (r *Registry) Create(a, b common.Address) (*pool.Pool, error) {
	return r.CreateWithFee(a, b, r.defaultFeeBps)
}

// CreateWithFee registers a new empty pool for the pair with an explicit fee.
func (r *Registry) CreateWithFee(a, b common.Address, feeBps uint16) (*pool.Pool, error) {
	key, err := NewPairKey(a, b)
	if err != nil {
		return nil, err
	}
	if _, exists := r.pools[key]; exists {
		return nil, fmt.Errorf("%w: %s/%s", ErrPoolExists, key.Asset0.Hex(), key.Asset1.Hex())
	}

	p, err := pool.New(key.Asset0, key.Asset1, key.CustodyAddress(), feeBps, r.ledger)
	if err != nil {
		return nil, err
	}
	r.pools[key] = p
	r.keys = append(r.keys, key)
	return p, nil
}

// Get returns the pool for the pair, in either asset order.
func (r *Registry) Get(a, b common.Address) (*pool.Pool, error) {
	key, err := NewPairKey(a, b)
	if err != nil {
		return nil, err
	}
	p, ok := r.pools[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s/%s", ErrPoolNotFound, key.Asset0.Hex(), key.Asset1.Hex())
	}
	return p, nil
}

// All returns the registered pools in creation order.
func (r *Registry) All() []*pool.Pool {
	out := make([]*pool.Pool, 0, len(r.keys))
	for _, key := range r.keys {
		out = append(out, r.pools[key])
	}
	return out
}

// View is a deep-copy snapshot of every registered pool.
type View struct {
	Pools []pool.View `json:"pools"`
}

// View snapshots the registry. The result shares no memory with live state.
func (r *Registry) View() View {
	views := make([]pool.View, 0, len(r.keys))
	for _, key := range r.keys {
		views = append(views, r.pools[key].Snapshot())
	}
	return View{Pools: views}
}
