// Package adaptertest provides an in-memory chain for tests. Any read of
// state that was never set reverts, which mirrors calling a contract that
// lacks the method.
package adaptertest

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/yield-indexer/internal/adapter"
)

// ErrRevert is returned for any unset state
var ErrRevert = errors.New("execution reverted")

// Future is the principal-token state of a fake future
type Future struct {
	Underlying      common.Address
	IBT             common.Address
	YT              common.Address
	Maturity        *big.Int
	IBTRate         *big.Int
	PTRate          *big.Int
	TokenizationFee *big.Int
	TotalAssets     *big.Int
}

// Pool is the state of a fake two-coin pool
type Pool struct {
	Fee        *big.Int
	AdminFee   *big.Int
	LPToken    common.Address
	Balances   [2]*big.Int
	PriceScale *big.Int
	LastPrices *big.Int
}

// Token is ERC-20 metadata
type Token struct {
	Name     string
	Symbol   string
	Decimals uint8
}

// Vault is ERC-4626 state; shares convert at Rate (1e18 == 1:1)
type Vault struct {
	Asset       common.Address
	Rate        *big.Int
	TotalAssets *big.Int
}

type balanceKey struct {
	token, account common.Address
}

type feedKey struct {
	base, quote common.Address
}

// Chain implements adapter.Reader over in-memory state
type Chain struct {
	mu sync.Mutex

	tokens    map[common.Address]Token
	supplies  map[common.Address]*big.Int
	balances  map[balanceKey]*big.Int
	vaults    map[common.Address]*Vault
	futures   map[common.Address]*Future
	pools     map[common.Address]*Pool
	admins    map[common.Address]common.Address
	receivers map[common.Address]common.Address
	feeds     map[feedKey]common.Address
	answers   map[common.Address]*big.Int
	feedDecs  map[common.Address]uint8
	yields    map[balanceKey]*big.Int

	calls map[string]int
}

// NewChain creates an empty fake chain
func NewChain() *Chain {
	return &Chain{
		tokens:    make(map[common.Address]Token),
		supplies:  make(map[common.Address]*big.Int),
		balances:  make(map[balanceKey]*big.Int),
		vaults:    make(map[common.Address]*Vault),
		futures:   make(map[common.Address]*Future),
		pools:     make(map[common.Address]*Pool),
		admins:    make(map[common.Address]common.Address),
		receivers: make(map[common.Address]common.Address),
		feeds:     make(map[feedKey]common.Address),
		answers:   make(map[common.Address]*big.Int),
		feedDecs:  make(map[common.Address]uint8),
		yields:    make(map[balanceKey]*big.Int),
		calls:     make(map[string]int),
	}
}

// Calls returns how many times method was called
func (c *Chain) Calls(method string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls[method]
}

func (c *Chain) count(method string) {
	c.calls[method]++
}

func revert(contract common.Address, method string) error {
	return adapter.NewAdapterError(contract, method, ErrRevert)
}

// Setup helpers

func (c *Chain) SetToken(addr common.Address, t Token) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tokens[addr] = t
}

func (c *Chain) SetSupply(token common.Address, v *big.Int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.supplies[token] = v
}

func (c *Chain) SetBalance(token, account common.Address, v *big.Int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.balances[balanceKey{token, account}] = v
}

func (c *Chain) SetVault(addr common.Address, v *Vault) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.vaults[addr] = v
}

func (c *Chain) SetFuture(pt common.Address, f *Future) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.futures[pt] = f
}

// SetIBTRate changes the rate reported by a future
func (c *Chain) SetIBTRate(pt common.Address, rate *big.Int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if f, ok := c.futures[pt]; ok {
		f.IBTRate = rate
	}
}

func (c *Chain) SetPool(addr common.Address, p *Pool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pools[addr] = p
}

func (c *Chain) SetFactory(addr, admin, feeReceiver common.Address) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.admins[addr] = admin
	c.receivers[addr] = feeReceiver
}

func (c *Chain) SetFeed(base, quote, feed common.Address, answer *big.Int, decimals uint8) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.feeds[feedKey{base, quote}] = feed
	c.answers[feed] = answer
	c.feedDecs[feed] = decimals
}

func (c *Chain) SetUserYield(pt, user common.Address, v *big.Int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.yields[balanceKey{pt, user}] = v
}

// adapter.TokenReader

func (c *Chain) Name(_ context.Context, token common.Address) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.count("name")
	t, ok := c.tokens[token]
	if !ok {
		return "", revert(token, "name")
	}
	return t.Name, nil
}

func (c *Chain) Symbol(_ context.Context, token common.Address) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.count("symbol")
	t, ok := c.tokens[token]
	if !ok {
		return "", revert(token, "symbol")
	}
	return t.Symbol, nil
}

func (c *Chain) Decimals(_ context.Context, token common.Address) (uint8, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.count("decimals")
	t, ok := c.tokens[token]
	if !ok {
		return 0, revert(token, "decimals")
	}
	return t.Decimals, nil
}

func (c *Chain) TotalSupply(_ context.Context, token common.Address) (*big.Int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.count("totalSupply")
	v, ok := c.supplies[token]
	if !ok {
		return nil, revert(token, "totalSupply")
	}
	return new(big.Int).Set(v), nil
}

// BalanceOf returns zero for known tokens without an explicit balance
func (c *Chain) BalanceOf(_ context.Context, token, account common.Address) (*big.Int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.count("balanceOf")
	if v, ok := c.balances[balanceKey{token, account}]; ok {
		return new(big.Int).Set(v), nil
	}
	if _, ok := c.tokens[token]; ok {
		return new(big.Int), nil
	}
	return nil, revert(token, "balanceOf")
}

// adapter.VaultReader

func (c *Chain) ConvertToAssets(_ context.Context, vault common.Address, shares *big.Int) (*big.Int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.count("convertToAssets")
	v, ok := c.vaults[vault]
	if !ok || v.Rate == nil {
		return nil, revert(vault, "convertToAssets")
	}
	out := new(big.Int).Mul(shares, v.Rate)
	return out.Quo(out, big.NewInt(1e18)), nil
}

func (c *Chain) Asset(_ context.Context, vault common.Address) (common.Address, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.count("asset")
	v, ok := c.vaults[vault]
	if !ok {
		return common.Address{}, revert(vault, "asset")
	}
	return v.Asset, nil
}

// TotalAssets answers for vaults first, then futures
func (c *Chain) TotalAssets(_ context.Context, addr common.Address) (*big.Int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.count("totalAssets")
	if v, ok := c.vaults[addr]; ok && v.TotalAssets != nil {
		return new(big.Int).Set(v.TotalAssets), nil
	}
	if f, ok := c.futures[addr]; ok && f.TotalAssets != nil {
		return new(big.Int).Set(f.TotalAssets), nil
	}
	return nil, revert(addr, "totalAssets")
}

// adapter.FutureReader

func (c *Chain) future(pt common.Address, method string) (*Future, error) {
	c.count(method)
	f, ok := c.futures[pt]
	if !ok {
		return nil, revert(pt, method)
	}
	return f, nil
}

func (c *Chain) Underlying(_ context.Context, pt common.Address) (common.Address, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	f, err := c.future(pt, "underlying")
	if err != nil {
		return common.Address{}, err
	}
	return f.Underlying, nil
}

func (c *Chain) IBT(_ context.Context, pt common.Address) (common.Address, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	f, err := c.future(pt, "getIBT")
	if err != nil {
		return common.Address{}, err
	}
	return f.IBT, nil
}

func (c *Chain) YT(_ context.Context, pt common.Address) (common.Address, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	f, err := c.future(pt, "getYT")
	if err != nil {
		return common.Address{}, err
	}
	return f.YT, nil
}

func bigOrRevert(v *big.Int, contract common.Address, method string) (*big.Int, error) {
	if v == nil {
		return nil, revert(contract, method)
	}
	return new(big.Int).Set(v), nil
}

func (c *Chain) Maturity(_ context.Context, pt common.Address) (*big.Int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	f, err := c.future(pt, "maturity")
	if err != nil {
		return nil, err
	}
	return bigOrRevert(f.Maturity, pt, "maturity")
}

func (c *Chain) IBTRate(_ context.Context, pt common.Address) (*big.Int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	f, err := c.future(pt, "getIBTRate")
	if err != nil {
		return nil, err
	}
	return bigOrRevert(f.IBTRate, pt, "getIBTRate")
}

func (c *Chain) PTRate(_ context.Context, pt common.Address) (*big.Int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	f, err := c.future(pt, "getPTRate")
	if err != nil {
		return nil, err
	}
	return bigOrRevert(f.PTRate, pt, "getPTRate")
}

func (c *Chain) TokenizationFee(_ context.Context, pt common.Address) (*big.Int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	f, err := c.future(pt, "getTokenizationFee")
	if err != nil {
		return nil, err
	}
	return bigOrRevert(f.TokenizationFee, pt, "getTokenizationFee")
}

func (c *Chain) CurrentYieldOfUserInIBT(_ context.Context, pt, user common.Address) (*big.Int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.count("getCurrentYieldOfUserInIBT")
	return bigOrRevert(c.yields[balanceKey{pt, user}], pt, "getCurrentYieldOfUserInIBT")
}

// adapter.PoolReader

func (c *Chain) pool(addr common.Address, method string) (*Pool, error) {
	c.count(method)
	p, ok := c.pools[addr]
	if !ok {
		return nil, revert(addr, method)
	}
	return p, nil
}

func (c *Chain) Fee(_ context.Context, addr common.Address) (*big.Int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, err := c.pool(addr, "fee")
	if err != nil {
		return nil, err
	}
	return bigOrRevert(p.Fee, addr, "fee")
}

func (c *Chain) AdminFee(_ context.Context, addr common.Address) (*big.Int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, err := c.pool(addr, "admin_fee")
	if err != nil {
		return nil, err
	}
	return bigOrRevert(p.AdminFee, addr, "admin_fee")
}

func (c *Chain) LPToken(_ context.Context, addr common.Address) (common.Address, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, err := c.pool(addr, "token")
	if err != nil {
		return common.Address{}, err
	}
	return p.LPToken, nil
}

func (c *Chain) Balances(_ context.Context, addr common.Address, i int) (*big.Int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, err := c.pool(addr, "balances")
	if err != nil {
		return nil, err
	}
	if i < 0 || i > 1 {
		return nil, revert(addr, fmt.Sprintf("balances(%d)", i))
	}
	return bigOrRevert(p.Balances[i], addr, "balances")
}

func (c *Chain) PriceScale(_ context.Context, addr common.Address) (*big.Int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, err := c.pool(addr, "price_scale")
	if err != nil {
		return nil, err
	}
	return bigOrRevert(p.PriceScale, addr, "price_scale")
}

func (c *Chain) LastPrices(_ context.Context, addr common.Address) (*big.Int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, err := c.pool(addr, "last_prices")
	if err != nil {
		return nil, err
	}
	return bigOrRevert(p.LastPrices, addr, "last_prices")
}

// adapter.FactoryReader

func (c *Chain) Admin(_ context.Context, factory common.Address) (common.Address, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.count("admin")
	a, ok := c.admins[factory]
	if !ok {
		return common.Address{}, revert(factory, "admin")
	}
	return a, nil
}

func (c *Chain) FeeReceiver(_ context.Context, factory common.Address) (common.Address, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.count("fee_receiver")
	a, ok := c.receivers[factory]
	if !ok {
		return common.Address{}, revert(factory, "fee_receiver")
	}
	return a, nil
}

// adapter.OracleReader

func (c *Chain) GetFeed(_ context.Context, registry, base, quote common.Address) (common.Address, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.count("getFeed")
	f, ok := c.feeds[feedKey{base, quote}]
	if !ok {
		return common.Address{}, revert(registry, "getFeed")
	}
	return f, nil
}

func (c *Chain) LatestAnswer(_ context.Context, feed common.Address) (*big.Int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.count("latestAnswer")
	return bigOrRevert(c.answers[feed], feed, "latestAnswer")
}

func (c *Chain) FeedDecimals(_ context.Context, feed common.Address) (uint8, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.count("feedDecimals")
	d, ok := c.feedDecs[feed]
	if !ok {
		return 0, revert(feed, "decimals")
	}
	return d, nil
}

var _ adapter.Reader = (*Chain)(nil)
