package adapter

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/redis/go-redis/v9"

	"github.com/yield-indexer/internal/circuitbreaker"
	"github.com/yield-indexer/internal/logging"
)

// CachedTokenReader serves immutable token metadata (name, symbol,
// decimals) from Redis and falls through to the wrapped reader on a miss.
// Cache failures open a circuit breaker and reads go direct until it closes.
// Only successful reads are cached, so a reverted call is retried on the
// next creation attempt rather than pinned to its default.
type CachedTokenReader struct {
	Reader
	client  redis.Cmdable
	breaker *circuitbreaker.CircuitBreaker
	chainID int64
	ttl     time.Duration
	logger  *logging.Logger
}

// NewCachedTokenReader decorates reader with a Redis metadata cache
func NewCachedTokenReader(reader Reader, client redis.Cmdable, chainID int64, ttl time.Duration) *CachedTokenReader {
	return &CachedTokenReader{
		Reader:  reader,
		client:  client,
		breaker: circuitbreaker.NewCircuitBreaker(circuitbreaker.DefaultConfig("token-metadata-cache")),
		chainID: chainID,
		ttl:     ttl,
		logger:  logging.GetGlobalLogger().ForSubsystem("metadata-cache"),
	}
}

// Breaker exposes the cache circuit breaker for status reporting
func (c *CachedTokenReader) Breaker() *circuitbreaker.CircuitBreaker {
	return c.breaker
}

func (c *CachedTokenReader) key(token common.Address, field string) string {
	return fmt.Sprintf("token:%d:%s:%s", c.chainID, strings.ToLower(token.Hex()), field)
}

// lookup returns the cached value and whether it was present
func (c *CachedTokenReader) lookup(ctx context.Context, key string) (string, bool) {
	var value string
	err := c.breaker.Execute(ctx, func() error {
		v, err := c.client.Get(ctx, key).Result()
		if errors.Is(err, redis.Nil) {
			// a miss is a healthy answer
			return nil
		}
		if err != nil {
			return err
		}
		value = v
		return nil
	})
	if err != nil {
		c.logger.WithError(err).WithField("key", key).Debug("metadata cache read skipped")
		return "", false
	}
	return value, value != ""
}

func (c *CachedTokenReader) store(ctx context.Context, key, value string) {
	err := c.breaker.Execute(ctx, func() error {
		return c.client.Set(ctx, key, value, c.ttl).Err()
	})
	if err != nil {
		c.logger.WithError(err).WithField("key", key).Debug("metadata cache write skipped")
	}
}

func (c *CachedTokenReader) Name(ctx context.Context, token common.Address) (string, error) {
	key := c.key(token, "name")
	if v, ok := c.lookup(ctx, key); ok {
		return v, nil
	}
	v, err := c.Reader.Name(ctx, token)
	if err != nil {
		return "", err
	}
	c.store(ctx, key, v)
	return v, nil
}

func (c *CachedTokenReader) Symbol(ctx context.Context, token common.Address) (string, error) {
	key := c.key(token, "symbol")
	if v, ok := c.lookup(ctx, key); ok {
		return v, nil
	}
	v, err := c.Reader.Symbol(ctx, token)
	if err != nil {
		return "", err
	}
	c.store(ctx, key, v)
	return v, nil
}

func (c *CachedTokenReader) Decimals(ctx context.Context, token common.Address) (uint8, error) {
	key := c.key(token, "decimals")
	if v, ok := c.lookup(ctx, key); ok {
		if d, err := strconv.ParseUint(v, 10, 8); err == nil {
			return uint8(d), nil
		}
	}
	d, err := c.Reader.Decimals(ctx, token)
	if err != nil {
		return 0, err
	}
	c.store(ctx, key, strconv.FormatUint(uint64(d), 10))
	return d, nil
}

var _ Reader = (*CachedTokenReader)(nil)
