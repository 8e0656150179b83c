// Package models defines the derived entities maintained by the indexer.
//
// Entities reference each other by key, never by pointer. Big integers are
// stored as *big.Int and derived ratios as decimal.Decimal; both encode to
// exact JSON numbers.
package models

import (
	"fmt"
	"math/big"
)

// Kind names an entity table
type Kind string

const (
	KindNetwork          Kind = "Network"
	KindFactory          Kind = "Factory"
	KindAccount          Kind = "Account"
	KindAsset            Kind = "Asset"
	KindAssetPrice       Kind = "AssetPrice"
	KindAccountAsset     Kind = "AccountAsset"
	KindAssetAmount      Kind = "AssetAmount"
	KindFuture           Kind = "Future"
	KindLPVault          Kind = "LPVault"
	KindPool             Kind = "Pool"
	KindFutureDailyStats Kind = "FutureDailyStats"
	KindAPRInTime        Kind = "APRInTime"
	KindAPYInTime        Kind = "APYInTime"
	KindTransaction      Kind = "Transaction"
	KindTransfer         Kind = "Transfer"
	KindDataSource       Kind = "DataSource"
)

// Entity is anything the store can persist
type Entity interface {
	EntityKind() Kind
	EntityID() string
}

// WriteOnce marks entities that are never modified after creation
type WriteOnce interface {
	Entity
	writeOnce()
}

// New returns an empty entity of the given kind, ready for decoding
func New(kind Kind) (Entity, error) {
	switch kind {
	case KindNetwork:
		return &Network{}, nil
	case KindFactory:
		return &Factory{}, nil
	case KindAccount:
		return &Account{}, nil
	case KindAsset:
		return &Asset{}, nil
	case KindAssetPrice:
		return &AssetPrice{}, nil
	case KindAccountAsset:
		return &AccountAsset{}, nil
	case KindAssetAmount:
		return &AssetAmount{}, nil
	case KindFuture:
		return &Future{}, nil
	case KindLPVault:
		return &LPVault{}, nil
	case KindPool:
		return &Pool{}, nil
	case KindFutureDailyStats:
		return &FutureDailyStats{}, nil
	case KindAPRInTime:
		return &APRInTime{}, nil
	case KindAPYInTime:
		return &APYInTime{}, nil
	case KindTransaction:
		return &Transaction{}, nil
	case KindTransfer:
		return &Transfer{}, nil
	case KindDataSource:
		return &DataSource{}, nil
	}
	return nil, fmt.Errorf("unknown entity kind %q", kind)
}

// zero returns v, or a fresh zero when v is nil
func zero(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return v
}

func appendUnique(list []string, id string) ([]string, bool) {
	for _, existing := range list {
		if existing == id {
			return list, false
		}
	}
	return append(list, id), true
}
