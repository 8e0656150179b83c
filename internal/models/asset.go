package models

import (
	"math/big"

	"github.com/yield-indexer/internal/types"
)

// Asset is the metadata of a fungible token. Name, symbol and decimals are
// read once at creation and never refreshed.
type Asset struct {
	Address            string          `json:"address"`
	ChainID            int64           `json:"chainId"`
	Name               string          `json:"name"`
	Symbol             string          `json:"symbol"`
	Decimals           uint8           `json:"decimals"`
	Type               types.AssetType `json:"type"`
	Price              string          `json:"price,omitempty"`
	Underlying         string          `json:"underlying,omitempty"`
	Future             string          `json:"future,omitempty"`
	CreatedAtBlock     uint64          `json:"createdAtBlock"`
	CreatedAtTimestamp uint64          `json:"createdAtTimestamp"`
}

func (a *Asset) EntityKind() Kind { return KindAsset }
func (a *Asset) EntityID() string { return a.Address }

// AssetPrice is the latest answer of an oracle feed pricing one asset in USD.
// It is keyed by the feed (aggregator) address that emits price updates.
type AssetPrice struct {
	Feed               string   `json:"feed"`
	Asset              string   `json:"asset"`
	Value              *big.Int `json:"value"`
	Decimals           uint8    `json:"decimals"`
	RoundID            *big.Int `json:"roundId,omitempty"`
	UpdatedAtBlock     uint64   `json:"updatedAtBlock"`
	UpdatedAtTimestamp uint64   `json:"updatedAtTimestamp"`
}

func (p *AssetPrice) EntityKind() Kind { return KindAssetPrice }
func (p *AssetPrice) EntityID() string { return p.Feed }
