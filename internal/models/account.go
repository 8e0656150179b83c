package models

import (
	"math/big"

	"github.com/yield-indexer/internal/types"
)

// Account is an address that touched an indexed contract
type Account struct {
	Address            string   `json:"address"`
	CreatedAtBlock     uint64   `json:"createdAtBlock"`
	CreatedAtTimestamp uint64   `json:"createdAtTimestamp"`
	Portfolio          []string `json:"portfolio"`
}

func (a *Account) EntityKind() Kind { return KindAccount }
func (a *Account) EntityID() string { return a.Address }

// AddPosition links an AccountAsset row, reporting whether it was new
func (a *Account) AddPosition(id string) bool {
	var added bool
	a.Portfolio, added = appendUnique(a.Portfolio, id)
	return added
}

// AccountAsset is one ledger row.
//
// Spot rows hold the balance last read from chain; for share-based assets
// AssetsValue holds the same balance converted to the vault's assets.
// Yield rows (Type YIELD) hold the yield owed to a YT holder in IBT units,
// accrued from IBT rate growth since LastRate.
type AccountAsset struct {
	ID                 string          `json:"id"`
	Account            string          `json:"account"`
	Asset              string          `json:"asset"`
	Type               types.AssetType `json:"type"`
	Balance            *big.Int        `json:"balance"`
	AssetsValue        *big.Int        `json:"assetsValue,omitempty"`
	GeneratedYield     bool            `json:"generatedYield"`
	LastRate           *big.Int        `json:"lastRate,omitempty"`
	Future             string          `json:"future,omitempty"`
	CreatedAtBlock     uint64          `json:"createdAtBlock"`
	UpdatedAtBlock     uint64          `json:"updatedAtBlock"`
	UpdatedAtTimestamp uint64          `json:"updatedAtTimestamp"`
}

func (a *AccountAsset) EntityKind() Kind { return KindAccountAsset }
func (a *AccountAsset) EntityID() string { return a.ID }

// BalanceOrZero never returns nil
func (a *AccountAsset) BalanceOrZero() *big.Int { return zero(a.Balance) }

// AssetAmount is a delta-accumulated amount of an asset inside a scope.
// Pool-scoped rows are reserve legs, transaction-scoped rows are flows.
type AssetAmount struct {
	ID             string   `json:"id"`
	Scope          string   `json:"scope"`
	Asset          string   `json:"asset"`
	Tag            string   `json:"tag,omitempty"`
	Amount         *big.Int `json:"amount"`
	CreatedAtBlock uint64   `json:"createdAtBlock"`
	UpdatedAtBlock uint64   `json:"updatedAtBlock"`
}

func (a *AssetAmount) EntityKind() Kind { return KindAssetAmount }
func (a *AssetAmount) EntityID() string { return a.ID }

// AmountOrZero never returns nil
func (a *AssetAmount) AmountOrZero() *big.Int { return zero(a.Amount) }
