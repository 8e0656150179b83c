package adapter

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/yield-indexer/internal/logging"
)

// RPCClient is the slice of *ethclient.Client the indexer talks to
type RPCClient interface {
	ethereum.ContractCaller
	CodeAt(ctx context.Context, contract common.Address, blockNumber *big.Int) ([]byte, error)
	ChainID(ctx context.Context) (*big.Int, error)
	BlockNumber(ctx context.Context) (uint64, error)
	FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]gethtypes.Log, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*gethtypes.Header, error)
	TransactionByHash(ctx context.Context, hash common.Hash) (*gethtypes.Transaction, bool, error)
	TransactionReceipt(ctx context.Context, hash common.Hash) (*gethtypes.Receipt, error)
	Close()
}

// DialFunc connects one endpoint
type DialFunc func(ctx context.Context, url string) (RPCClient, error)

// RPCPool manages multiple RPC endpoints with failover on rate limiting (429).
// It sticks to the current endpoint until it is rate limited, then moves to
// the next one not in cooldown. Calls are retried once per endpoint.
type RPCPool struct {
	endpoints    []string
	clients      []RPCClient
	dial         DialFunc
	currentIndex int
	mu           sync.RWMutex
	cooldowns    map[int]time.Time // when each endpoint was rate limited
	cooldownTime time.Duration
	now          func() time.Time
	logger       *logging.Logger
}

// RPCPoolConfig holds configuration for creating an RPC pool
type RPCPoolConfig struct {
	Endpoints []string
	// CooldownTime is how long a rate-limited endpoint is skipped. Default: 60 seconds
	CooldownTime time.Duration
	// Dial defaults to ethclient.DialContext
	Dial DialFunc
}

// NewRPCPool connects the first endpoint; the others are dialed on first use
func NewRPCPool(ctx context.Context, cfg *RPCPoolConfig) (*RPCPool, error) {
	if cfg == nil || len(cfg.Endpoints) == 0 {
		return nil, fmt.Errorf("at least one RPC endpoint is required")
	}

	cooldownTime := cfg.CooldownTime
	if cooldownTime == 0 {
		cooldownTime = 60 * time.Second
	}
	dial := cfg.Dial
	if dial == nil {
		dial = func(ctx context.Context, url string) (RPCClient, error) {
			return ethclient.DialContext(ctx, url)
		}
	}

	pool := &RPCPool{
		endpoints:    cfg.Endpoints,
		clients:      make([]RPCClient, len(cfg.Endpoints)),
		dial:         dial,
		cooldowns:    make(map[int]time.Time),
		cooldownTime: cooldownTime,
		now:          time.Now,
		logger:       logging.GetGlobalLogger().ForSubsystem("rpc-pool"),
	}

	client, err := dial(ctx, cfg.Endpoints[0])
	if err != nil {
		return nil, fmt.Errorf("failed to connect to primary RPC endpoint: %w", err)
	}
	pool.clients[0] = client

	pool.logger.WithField("endpoints", len(cfg.Endpoints)).Info("rpc pool initialized")
	return pool, nil
}

// current returns the active client and its index
func (p *RPCPool) current() (RPCClient, int) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.clients[p.currentIndex], p.currentIndex
}

// GetCurrentIndex returns the current endpoint index
func (p *RPCPool) GetCurrentIndex() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.currentIndex
}

// EndpointCount returns the number of endpoints in the pool
func (p *RPCPool) EndpointCount() int {
	return len(p.endpoints)
}

// OnRateLimited puts the endpoint at index in cooldown and switches to the
// next available one. It fails when every endpoint is cooling down.
func (p *RPCPool) OnRateLimited(ctx context.Context, index int) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.cooldowns[index] = p.now()
	if p.currentIndex != index {
		// another caller already moved on
		return nil
	}

	for i := 1; i < len(p.endpoints); i++ {
		next := (index + i) % len(p.endpoints)
		if at, exists := p.cooldowns[next]; exists {
			if p.now().Sub(at) < p.cooldownTime {
				continue
			}
			delete(p.cooldowns, next)
		}
		if err := p.switchToEndpoint(ctx, next); err != nil {
			p.logger.WithError(err).WithField("endpoint", next).Warn("rpc endpoint switch failed")
			continue
		}
		p.logger.WithFields(map[string]interface{}{"from": index, "to": next}).Info("rpc endpoint rate limited, switched")
		return nil
	}

	return fmt.Errorf("all %d RPC endpoints are rate limited", len(p.endpoints))
}

// switchToEndpoint must be called with the lock held
func (p *RPCPool) switchToEndpoint(ctx context.Context, index int) error {
	if p.clients[index] == nil {
		client, err := p.dial(ctx, p.endpoints[index])
		if err != nil {
			return fmt.Errorf("failed to connect to endpoint %d: %w", index, err)
		}
		p.clients[index] = client
	}
	p.currentIndex = index
	return nil
}

// TryResetToPrimary switches back to endpoint 0 once its cooldown expired
func (p *RPCPool) TryResetToPrimary(ctx context.Context) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.currentIndex == 0 {
		return true
	}
	if at, exists := p.cooldowns[0]; exists {
		if p.now().Sub(at) < p.cooldownTime {
			return false
		}
		delete(p.cooldowns, 0)
	}
	if err := p.switchToEndpoint(ctx, 0); err != nil {
		return false
	}
	p.logger.Info("rpc pool back on primary endpoint")
	return true
}

// IsRateLimitError checks if an error indicates rate limiting (429)
func IsRateLimitError(err error) bool {
	if err == nil {
		return false
	}
	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "429") ||
		strings.Contains(errStr, "rate limit") ||
		strings.Contains(errStr, "too many requests") ||
		strings.Contains(errStr, "exceeded") ||
		strings.Contains(errStr, "throttl")
}

// do runs fn on the active client, failing over on rate-limit errors
func (p *RPCPool) do(ctx context.Context, fn func(RPCClient) error) error {
	if p.GetCurrentIndex() != 0 {
		p.TryResetToPrimary(ctx)
	}

	var err error
	for attempt := 0; attempt < len(p.endpoints); attempt++ {
		client, index := p.current()
		if err = fn(client); !IsRateLimitError(err) {
			return err
		}
		if switchErr := p.OnRateLimited(ctx, index); switchErr != nil {
			return fmt.Errorf("%w (%v)", err, switchErr)
		}
	}
	return err
}

func (p *RPCPool) CallContract(ctx context.Context, msg ethereum.CallMsg, block *big.Int) ([]byte, error) {
	var out []byte
	err := p.do(ctx, func(c RPCClient) error {
		var err error
		out, err = c.CallContract(ctx, msg, block)
		return err
	})
	return out, err
}

func (p *RPCPool) CodeAt(ctx context.Context, contract common.Address, block *big.Int) ([]byte, error) {
	var out []byte
	err := p.do(ctx, func(c RPCClient) error {
		var err error
		out, err = c.CodeAt(ctx, contract, block)
		return err
	})
	return out, err
}

func (p *RPCPool) ChainID(ctx context.Context) (*big.Int, error) {
	var out *big.Int
	err := p.do(ctx, func(c RPCClient) error {
		var err error
		out, err = c.ChainID(ctx)
		return err
	})
	return out, err
}

func (p *RPCPool) BlockNumber(ctx context.Context) (uint64, error) {
	var out uint64
	err := p.do(ctx, func(c RPCClient) error {
		var err error
		out, err = c.BlockNumber(ctx)
		return err
	})
	return out, err
}

func (p *RPCPool) FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]gethtypes.Log, error) {
	var out []gethtypes.Log
	err := p.do(ctx, func(c RPCClient) error {
		var err error
		out, err = c.FilterLogs(ctx, q)
		return err
	})
	return out, err
}

func (p *RPCPool) HeaderByNumber(ctx context.Context, number *big.Int) (*gethtypes.Header, error) {
	var out *gethtypes.Header
	err := p.do(ctx, func(c RPCClient) error {
		var err error
		out, err = c.HeaderByNumber(ctx, number)
		return err
	})
	return out, err
}

func (p *RPCPool) TransactionByHash(ctx context.Context, hash common.Hash) (*gethtypes.Transaction, bool, error) {
	var (
		out     *gethtypes.Transaction
		pending bool
	)
	err := p.do(ctx, func(c RPCClient) error {
		var err error
		out, pending, err = c.TransactionByHash(ctx, hash)
		return err
	})
	return out, pending, err
}

func (p *RPCPool) TransactionReceipt(ctx context.Context, hash common.Hash) (*gethtypes.Receipt, error) {
	var out *gethtypes.Receipt
	err := p.do(ctx, func(c RPCClient) error {
		var err error
		out, err = c.TransactionReceipt(ctx, hash)
		return err
	})
	return out, err
}

// Close closes all client connections
func (p *RPCPool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	for i, client := range p.clients {
		if client != nil {
			client.Close()
			p.clients[i] = nil
		}
	}
}

// Status returns the current status of the pool
func (p *RPCPool) Status() *RPCPoolStatus {
	p.mu.RLock()
	defer p.mu.RUnlock()

	status := &RPCPoolStatus{
		TotalEndpoints: len(p.endpoints),
		CurrentIndex:   p.currentIndex,
		EndpointStatus: make([]EndpointStatus, len(p.endpoints)),
	}
	for i := range p.endpoints {
		es := EndpointStatus{
			Index:     i,
			Connected: p.clients[i] != nil,
			IsCurrent: i == p.currentIndex,
		}
		if at, exists := p.cooldowns[i]; exists {
			if remaining := p.cooldownTime - p.now().Sub(at); remaining > 0 {
				es.InCooldown = true
				es.CooldownRemaining = remaining.String()
			}
		}
		status.EndpointStatus[i] = es
	}
	return status
}

// RPCPoolStatus represents the current status of the RPC pool
type RPCPoolStatus struct {
	TotalEndpoints int              `json:"totalEndpoints"`
	CurrentIndex   int              `json:"currentIndex"`
	EndpointStatus []EndpointStatus `json:"endpoints"`
}

// EndpointStatus represents the status of a single endpoint
type EndpointStatus struct {
	Index             int    `json:"index"`
	Connected         bool   `json:"connected"`
	IsCurrent         bool   `json:"isCurrent"`
	InCooldown        bool   `json:"inCooldown"`
	CooldownRemaining string `json:"cooldownRemaining,omitempty"`
}

var _ RPCClient = (*RPCPool)(nil)
