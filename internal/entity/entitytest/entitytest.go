// Package entitytest wires a resolver over an in-memory chain and store
// with a small deployed protocol: one future, its pool and tokens.
package entitytest

import (
	"bytes"
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"github.com/yield-indexer/internal/adapter"
	"github.com/yield-indexer/internal/adapter/adaptertest"
	"github.com/yield-indexer/internal/entity"
	"github.com/yield-indexer/internal/events"
	"github.com/yield-indexer/internal/logging"
	"github.com/yield-indexer/internal/storage"
)

// Protocol addresses seeded on the fake chain
var (
	Factory    = common.HexToAddress("0x00000000000000000000000000000000000000f0")
	PT         = common.HexToAddress("0x0000000000000000000000000000000000000a01")
	YT         = common.HexToAddress("0x0000000000000000000000000000000000000a02")
	IBT        = common.HexToAddress("0x0000000000000000000000000000000000000a03")
	Underlying = common.HexToAddress("0x0000000000000000000000000000000000000a04")
	Pool       = common.HexToAddress("0x0000000000000000000000000000000000000b01")
	LP         = common.HexToAddress("0x0000000000000000000000000000000000000b02")
	LPVault    = common.HexToAddress("0x0000000000000000000000000000000000000c01")
	Registry   = common.HexToAddress("0x0000000000000000000000000000000000000d01")
	Feed       = common.HexToAddress("0x0000000000000000000000000000000000000d02")
	USD        = common.HexToAddress("0x0000000000000000000000000000000000000348")
	Alice      = common.HexToAddress("0x00000000000000000000000000000000000a11ce")
	Bob        = common.HexToAddress("0x0000000000000000000000000000000000000b0b")
)

// Maturity of the seeded future
const Maturity = 40_000_000

// Wad returns n * 1e18
func Wad(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), big.NewInt(1e18))
}

// Env is a resolver over fake state. Logs collects everything logged.
type Env struct {
	Chain    *adaptertest.Chain
	Backend  *storage.MemoryBackend
	Session  *storage.Session
	Reader   *adapter.SafeReader
	Resolver *entity.Resolver
	Logger   *logging.Logger
	Logs     *bytes.Buffer
	Options  entity.Options
}

// New seeds the fake chain and opens a first session
func New(t *testing.T) *Env {
	t.Helper()

	chain := adaptertest.NewChain()
	chain.SetToken(PT, adaptertest.Token{Name: "Principal", Symbol: "PT", Decimals: 18})
	chain.SetToken(YT, adaptertest.Token{Name: "Yield", Symbol: "YT", Decimals: 18})
	chain.SetToken(IBT, adaptertest.Token{Name: "Vault share", Symbol: "IBT", Decimals: 18})
	chain.SetToken(Underlying, adaptertest.Token{Name: "Underlying", Symbol: "UND", Decimals: 18})
	chain.SetToken(LP, adaptertest.Token{Name: "Pool LP", Symbol: "LP", Decimals: 18})
	chain.SetToken(LPVault, adaptertest.Token{Name: "LP Vault", Symbol: "LPV", Decimals: 18})
	chain.SetFuture(PT, &adaptertest.Future{
		Underlying:      Underlying,
		IBT:             IBT,
		YT:              YT,
		Maturity:        big.NewInt(Maturity),
		IBTRate:         Wad(1),
		PTRate:          Wad(1),
		TokenizationFee: big.NewInt(0),
		TotalAssets:     big.NewInt(0),
	})
	chain.SetVault(IBT, &adaptertest.Vault{Asset: Underlying, Rate: Wad(1), TotalAssets: big.NewInt(0)})
	chain.SetVault(LPVault, &adaptertest.Vault{Asset: Underlying, Rate: Wad(1), TotalAssets: big.NewInt(0)})
	chain.SetPool(Pool, &adaptertest.Pool{
		Fee:        big.NewInt(20_000_000),
		AdminFee:   big.NewInt(5_000_000_000),
		LPToken:    LP,
		Balances:   [2]*big.Int{big.NewInt(0), big.NewInt(0)},
		PriceScale: Wad(1),
		LastPrices: big.NewInt(9e17),
	})
	chain.SetSupply(LP, big.NewInt(0))
	chain.SetSupply(LPVault, big.NewInt(0))
	chain.SetFactory(Factory, Alice, Bob)

	logs := &bytes.Buffer{}
	logger := logging.NewLoggerWithOutput(logging.LevelDebug, logging.FormatJSON, logs)

	e := &Env{
		Chain:   chain,
		Backend: storage.NewMemoryBackend(),
		Reader:  adapter.NewSafeReader(chain, logger),
		Logger:  logger,
		Logs:    logs,
		Options: entity.Options{ChainID: 1, FeedRegistry: Registry, USD: USD},
	}
	e.Renew()
	return e
}

// Renew opens a fresh session over the same backend
func (e *Env) Renew() {
	e.Session = storage.NewSession(e.Backend)
	e.Resolver = entity.NewResolver(e.Session, e.Reader, e.Options, e.Logger)
}

// Commit commits the current session and opens a new one
func (e *Env) Commit(t *testing.T) {
	t.Helper()
	if _, err := e.Session.Commit(context.Background(), nil); err != nil {
		t.Fatalf("commit: %v", err)
	}
	e.Renew()
}

// Envelope returns an envelope at block and timestamp
func Envelope(block, timestamp uint64) events.Envelope {
	return events.Envelope{
		TxHash:         common.BigToHash(new(big.Int).SetUint64(block*1000 + timestamp%1000)),
		BlockNumber:    block,
		BlockTimestamp: timestamp,
		GasPrice:       big.NewInt(1_000_000_000),
		GasUsed:        21_000,
	}
}

// Deploy creates the factory, future and pool as the factory events would
func (e *Env) Deploy(t *testing.T, env events.Envelope) {
	t.Helper()
	ctx := context.Background()
	factory, err := e.Resolver.GetOrCreateFactory(ctx, Factory, env)
	if err != nil {
		t.Fatalf("factory: %v", err)
	}
	if _, err := e.Resolver.GetOrCreateFuture(ctx, PT, factory, env); err != nil {
		t.Fatalf("future: %v", err)
	}
	if _, err := e.Resolver.GetOrCreatePool(ctx, Pool, IBT, PT, factory, env); err != nil {
		t.Fatalf("pool: %v", err)
	}
}
