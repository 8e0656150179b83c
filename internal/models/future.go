package models

import (
	"math/big"

	"github.com/yield-indexer/internal/types"
)

// Future is a principal-token issuer. It is keyed by the PT address.
type Future struct {
	Address            string            `json:"address"`
	Factory            string            `json:"factory"`
	State              types.FutureState `json:"state"`
	Expiration         uint64            `json:"expiration"`
	TokenizationFee    *big.Int          `json:"tokenizationFee"`
	Underlying         string            `json:"underlying"`
	IBT                string            `json:"ibt"`
	YT                 string            `json:"yt"`
	TotalAssets        *big.Int          `json:"totalAssets"`
	IBTRate            *big.Int          `json:"ibtRate"`
	PTRate             *big.Int          `json:"ptRate"`
	ExpiryIBTRate      *big.Int          `json:"expiryIbtRate,omitempty"`
	ExpiryPTRate       *big.Int          `json:"expiryPtRate,omitempty"`
	UnclaimedFees      *big.Int          `json:"unclaimedFees"`
	TotalCollectedFees *big.Int          `json:"totalCollectedFees"`
	YieldGenerators    []string          `json:"yieldGenerators"`
	Pools              []string          `json:"pools"`
	LPVaults           []string          `json:"lpVaults"`
	LastAPYSnapshot    string            `json:"lastApySnapshot,omitempty"`
	CreatedAtBlock     uint64            `json:"createdAtBlock"`
	CreatedAtTimestamp uint64            `json:"createdAtTimestamp"`
}

func (f *Future) EntityKind() Kind { return KindFuture }
func (f *Future) EntityID() string { return f.Address }

// AddYieldGenerator records a yield row, reporting whether it was new
func (f *Future) AddYieldGenerator(id string) bool {
	var added bool
	f.YieldGenerators, added = appendUnique(f.YieldGenerators, id)
	return added
}

// AddPool links a pool, reporting whether it was new
func (f *Future) AddPool(id string) bool {
	var added bool
	f.Pools, added = appendUnique(f.Pools, id)
	return added
}

// AddLPVault links an LP vault, reporting whether it was new
func (f *Future) AddLPVault(id string) bool {
	var added bool
	f.LPVaults, added = appendUnique(f.LPVaults, id)
	return added
}

// LPVault wraps pool liquidity of one future behind an ERC-4626 share
type LPVault struct {
	Address            string   `json:"address"`
	Factory            string   `json:"factory"`
	Future             string   `json:"future"`
	Pool               string   `json:"pool,omitempty"`
	PoolIndex          *big.Int `json:"poolIndex"`
	Asset              string   `json:"asset"`
	TotalAssets        *big.Int `json:"totalAssets"`
	TotalSupply        *big.Int `json:"totalSupply"`
	CreatedAtBlock     uint64   `json:"createdAtBlock"`
	CreatedAtTimestamp uint64   `json:"createdAtTimestamp"`
}

func (v *LPVault) EntityKind() Kind { return KindLPVault }
func (v *LPVault) EntityID() string { return v.Address }
