// Package adapter reads protocol contract state. Every read returns a value
// or an error; SafeReader turns errors into documented defaults.
package adapter

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// TokenReader reads ERC-20 state
type TokenReader interface {
	Name(ctx context.Context, token common.Address) (string, error)
	Symbol(ctx context.Context, token common.Address) (string, error)
	Decimals(ctx context.Context, token common.Address) (uint8, error)
	TotalSupply(ctx context.Context, token common.Address) (*big.Int, error)
	BalanceOf(ctx context.Context, token, account common.Address) (*big.Int, error)
}

// VaultReader reads ERC-4626 vault state (IBTs and LP vaults)
type VaultReader interface {
	ConvertToAssets(ctx context.Context, vault common.Address, shares *big.Int) (*big.Int, error)
	Asset(ctx context.Context, vault common.Address) (common.Address, error)
	TotalAssets(ctx context.Context, vault common.Address) (*big.Int, error)
}

// FutureReader reads principal-token state
type FutureReader interface {
	Underlying(ctx context.Context, pt common.Address) (common.Address, error)
	IBT(ctx context.Context, pt common.Address) (common.Address, error)
	YT(ctx context.Context, pt common.Address) (common.Address, error)
	Maturity(ctx context.Context, pt common.Address) (*big.Int, error)
	TotalAssets(ctx context.Context, pt common.Address) (*big.Int, error)
	IBTRate(ctx context.Context, pt common.Address) (*big.Int, error)
	PTRate(ctx context.Context, pt common.Address) (*big.Int, error)
	TokenizationFee(ctx context.Context, pt common.Address) (*big.Int, error)
	CurrentYieldOfUserInIBT(ctx context.Context, pt, user common.Address) (*big.Int, error)
}

// PoolReader reads two-coin AMM pool state
type PoolReader interface {
	Fee(ctx context.Context, pool common.Address) (*big.Int, error)
	AdminFee(ctx context.Context, pool common.Address) (*big.Int, error)
	LPToken(ctx context.Context, pool common.Address) (common.Address, error)
	Balances(ctx context.Context, pool common.Address, i int) (*big.Int, error)
	PriceScale(ctx context.Context, pool common.Address) (*big.Int, error)
	LastPrices(ctx context.Context, pool common.Address) (*big.Int, error)
}

// FactoryReader reads AMM factory state
type FactoryReader interface {
	Admin(ctx context.Context, factory common.Address) (common.Address, error)
	FeeReceiver(ctx context.Context, factory common.Address) (common.Address, error)
}

// OracleReader reads a feed registry and its price feeds
type OracleReader interface {
	GetFeed(ctx context.Context, registry, base, quote common.Address) (common.Address, error)
	LatestAnswer(ctx context.Context, feed common.Address) (*big.Int, error)
	FeedDecimals(ctx context.Context, feed common.Address) (uint8, error)
}

// Reader is every contract read the indexer performs
type Reader interface {
	TokenReader
	VaultReader
	FutureReader
	PoolReader
	FactoryReader
	OracleReader
}

// AdapterError wraps a failed contract call with the call site
type AdapterError struct {
	Contract common.Address
	Method   string
	Err      error
}

func (e *AdapterError) Error() string {
	return fmt.Sprintf("contract call %s on %s: %v", e.Method, e.Contract.Hex(), e.Err)
}

func (e *AdapterError) Unwrap() error {
	return e.Err
}

// NewAdapterError creates a new AdapterError
func NewAdapterError(contract common.Address, method string, err error) *AdapterError {
	return &AdapterError{Contract: contract, Method: method, Err: err}
}

type blockKey struct{}

// WithBlock pins contract reads made with ctx to block number
func WithBlock(ctx context.Context, number uint64) context.Context {
	return context.WithValue(ctx, blockKey{}, new(big.Int).SetUint64(number))
}

// BlockFromContext returns the pinned block, or nil for latest
func BlockFromContext(ctx context.Context) *big.Int {
	if n, ok := ctx.Value(blockKey{}).(*big.Int); ok {
		return n
	}
	return nil
}
