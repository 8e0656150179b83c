package adapter

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// endpointStub answers BlockNumber with its head or a fixed error
type endpointStub struct {
	head   uint64
	err    error
	calls  int
	closed bool
}

func (e *endpointStub) CallContract(context.Context, ethereum.CallMsg, *big.Int) ([]byte, error) {
	e.calls++
	return []byte{byte(e.head)}, e.err
}
func (e *endpointStub) CodeAt(context.Context, common.Address, *big.Int) ([]byte, error) {
	return nil, e.err
}
func (e *endpointStub) ChainID(context.Context) (*big.Int, error) { return big.NewInt(1), e.err }
func (e *endpointStub) BlockNumber(context.Context) (uint64, error) {
	e.calls++
	return e.head, e.err
}
func (e *endpointStub) FilterLogs(context.Context, ethereum.FilterQuery) ([]gethtypes.Log, error) {
	e.calls++
	return nil, e.err
}
func (e *endpointStub) HeaderByNumber(context.Context, *big.Int) (*gethtypes.Header, error) {
	return &gethtypes.Header{}, e.err
}
func (e *endpointStub) TransactionByHash(context.Context, common.Hash) (*gethtypes.Transaction, bool, error) {
	return nil, false, e.err
}
func (e *endpointStub) TransactionReceipt(context.Context, common.Hash) (*gethtypes.Receipt, error) {
	return nil, e.err
}
func (e *endpointStub) Close() { e.closed = true }

func newStubPool(t *testing.T, stubs ...*endpointStub) (*RPCPool, map[string]int) {
	t.Helper()
	urls := make([]string, len(stubs))
	byURL := make(map[string]*endpointStub)
	dials := make(map[string]int)
	for i, s := range stubs {
		urls[i] = string(rune('a' + i))
		byURL[urls[i]] = s
	}
	pool, err := NewRPCPool(context.Background(), &RPCPoolConfig{
		Endpoints:    urls,
		CooldownTime: time.Minute,
		Dial: func(_ context.Context, url string) (RPCClient, error) {
			dials[url]++
			return byURL[url], nil
		},
	})
	require.NoError(t, err)
	return pool, dials
}

func TestRPCPool_LazyDial(t *testing.T) {
	pool, dials := newStubPool(t, &endpointStub{head: 1}, &endpointStub{head: 2})

	assert.Equal(t, 1, dials["a"])
	assert.Zero(t, dials["b"])
	assert.Equal(t, 2, pool.EndpointCount())

	head, err := pool.BlockNumber(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(1), head)

	status := pool.Status()
	assert.True(t, status.EndpointStatus[0].Connected)
	assert.False(t, status.EndpointStatus[1].Connected)
}

func TestRPCPool_FailsOverOnRateLimit(t *testing.T) {
	primary := &endpointStub{head: 1, err: errors.New("429 Too Many Requests")}
	backup := &endpointStub{head: 2}
	pool, _ := newStubPool(t, primary, backup)
	now := time.Now()
	pool.now = func() time.Time { return now }

	head, err := pool.BlockNumber(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(2), head)
	assert.Equal(t, 1, pool.GetCurrentIndex())

	status := pool.Status()
	assert.True(t, status.EndpointStatus[0].InCooldown)
	assert.True(t, status.EndpointStatus[1].IsCurrent)

	// primary stays skipped during its cooldown
	_, err = pool.BlockNumber(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, primary.calls)

	// and is preferred again once it expires
	primary.err = nil
	now = now.Add(2 * time.Minute)
	head, err = pool.BlockNumber(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(1), head)
	assert.Equal(t, 0, pool.GetCurrentIndex())
}

func TestRPCPool_AllRateLimited(t *testing.T) {
	limited := errors.New("rate limit exceeded")
	pool, _ := newStubPool(t, &endpointStub{err: limited}, &endpointStub{err: limited})

	_, err := pool.FilterLogs(context.Background(), ethereum.FilterQuery{})
	require.Error(t, err)
	assert.ErrorIs(t, err, limited)
	assert.Contains(t, err.Error(), "all 2 RPC endpoints are rate limited")
}

func TestRPCPool_OtherErrorsDoNotFailOver(t *testing.T) {
	primary := &endpointStub{err: errors.New("execution reverted")}
	pool, dials := newStubPool(t, primary, &endpointStub{})

	_, err := pool.CallContract(context.Background(), ethereum.CallMsg{}, nil)
	require.Error(t, err)
	assert.Equal(t, 0, pool.GetCurrentIndex())
	assert.Zero(t, dials["b"])
}

func TestRPCPool_Close(t *testing.T) {
	a, b := &endpointStub{err: errors.New("throttled")}, &endpointStub{}
	pool, _ := newStubPool(t, a, b)
	_, err := pool.BlockNumber(context.Background())
	require.NoError(t, err)

	pool.Close()
	assert.True(t, a.closed)
	assert.True(t, b.closed)
}

func TestIsRateLimitError(t *testing.T) {
	assert.False(t, IsRateLimitError(nil))
	assert.False(t, IsRateLimitError(errors.New("execution reverted")))
	for _, msg := range []string{"429", "Rate limit reached", "too many requests", "compute units exceeded", "request throttled"} {
		assert.True(t, IsRateLimitError(errors.New(msg)), msg)
	}
}

func TestNewRPCPool_RequiresEndpoint(t *testing.T) {
	_, err := NewRPCPool(context.Background(), &RPCPoolConfig{})
	assert.Error(t, err)
}
