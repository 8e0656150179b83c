package adapter

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/yield-indexer/internal/logging"
)

// Defaults substituted for failed reads
const (
	UnknownString   = "Unknown"
	DefaultDecimals = uint8(18)
)

// SafeReader never fails: a reverted read is logged and replaced by its
// default (zero, the zero address, "Unknown" or 18 decimals). It does not
// retry, so replays stay deterministic.
type SafeReader struct {
	reader Reader
	logger *logging.Logger
}

// NewSafeReader wraps reader
func NewSafeReader(reader Reader, logger *logging.Logger) *SafeReader {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	return &SafeReader{reader: reader, logger: logger}
}

func try[T any](ctx context.Context, s *SafeReader, subsystem, call string, contract common.Address, def T, fn func() (T, error)) T {
	v, err := fn()
	if err != nil {
		s.logger.WithFields(map[string]interface{}{
			logging.FieldSubsystem: subsystem,
			logging.FieldCall:      call,
			logging.FieldContract:  contract.Hex(),
			logging.FieldBlock:     blockField(ctx),
		}).WithError(err).Warn("contract read failed, using default")
		return def
	}
	return v
}

func tryBig(ctx context.Context, s *SafeReader, subsystem, call string, contract common.Address, fn func() (*big.Int, error)) *big.Int {
	v := try[*big.Int](ctx, s, subsystem, call, contract, nil, fn)
	if v == nil {
		return new(big.Int)
	}
	return v
}

func blockField(ctx context.Context) string {
	if n := BlockFromContext(ctx); n != nil {
		return n.String()
	}
	return "latest"
}

func (s *SafeReader) TryName(ctx context.Context, token common.Address) string {
	return try(ctx, s, "token", "name", token, UnknownString, func() (string, error) {
		return s.reader.Name(ctx, token)
	})
}

func (s *SafeReader) TrySymbol(ctx context.Context, token common.Address) string {
	return try(ctx, s, "token", "symbol", token, UnknownString, func() (string, error) {
		return s.reader.Symbol(ctx, token)
	})
}

func (s *SafeReader) TryDecimals(ctx context.Context, token common.Address) uint8 {
	return try(ctx, s, "token", "decimals", token, DefaultDecimals, func() (uint8, error) {
		return s.reader.Decimals(ctx, token)
	})
}

func (s *SafeReader) TryTotalSupply(ctx context.Context, token common.Address) *big.Int {
	return tryBig(ctx, s, "token", "totalSupply", token, func() (*big.Int, error) {
		return s.reader.TotalSupply(ctx, token)
	})
}

func (s *SafeReader) TryBalanceOf(ctx context.Context, token, account common.Address) *big.Int {
	return tryBig(ctx, s, "token", "balanceOf", token, func() (*big.Int, error) {
		return s.reader.BalanceOf(ctx, token, account)
	})
}

func (s *SafeReader) TryConvertToAssets(ctx context.Context, vault common.Address, shares *big.Int) *big.Int {
	return tryBig(ctx, s, "vault", "convertToAssets", vault, func() (*big.Int, error) {
		return s.reader.ConvertToAssets(ctx, vault, shares)
	})
}

func (s *SafeReader) TryAsset(ctx context.Context, vault common.Address) common.Address {
	return try(ctx, s, "vault", "asset", vault, common.Address{}, func() (common.Address, error) {
		return s.reader.Asset(ctx, vault)
	})
}

func (s *SafeReader) TryTotalAssets(ctx context.Context, vault common.Address) *big.Int {
	return tryBig(ctx, s, "vault", "totalAssets", vault, func() (*big.Int, error) {
		return s.reader.TotalAssets(ctx, vault)
	})
}

func (s *SafeReader) TryUnderlying(ctx context.Context, pt common.Address) common.Address {
	return try(ctx, s, "future", "underlying", pt, common.Address{}, func() (common.Address, error) {
		return s.reader.Underlying(ctx, pt)
	})
}

func (s *SafeReader) TryIBT(ctx context.Context, pt common.Address) common.Address {
	return try(ctx, s, "future", "getIBT", pt, common.Address{}, func() (common.Address, error) {
		return s.reader.IBT(ctx, pt)
	})
}

func (s *SafeReader) TryYT(ctx context.Context, pt common.Address) common.Address {
	return try(ctx, s, "future", "getYT", pt, common.Address{}, func() (common.Address, error) {
		return s.reader.YT(ctx, pt)
	})
}

func (s *SafeReader) TryMaturity(ctx context.Context, pt common.Address) *big.Int {
	return tryBig(ctx, s, "future", "maturity", pt, func() (*big.Int, error) {
		return s.reader.Maturity(ctx, pt)
	})
}

func (s *SafeReader) TryIBTRate(ctx context.Context, pt common.Address) *big.Int {
	return tryBig(ctx, s, "future", "getIBTRate", pt, func() (*big.Int, error) {
		return s.reader.IBTRate(ctx, pt)
	})
}

func (s *SafeReader) TryPTRate(ctx context.Context, pt common.Address) *big.Int {
	return tryBig(ctx, s, "future", "getPTRate", pt, func() (*big.Int, error) {
		return s.reader.PTRate(ctx, pt)
	})
}

func (s *SafeReader) TryTokenizationFee(ctx context.Context, pt common.Address) *big.Int {
	return tryBig(ctx, s, "future", "getTokenizationFee", pt, func() (*big.Int, error) {
		return s.reader.TokenizationFee(ctx, pt)
	})
}

func (s *SafeReader) TryCurrentYieldOfUserInIBT(ctx context.Context, pt, user common.Address) *big.Int {
	return tryBig(ctx, s, "future", "getCurrentYieldOfUserInIBT", pt, func() (*big.Int, error) {
		return s.reader.CurrentYieldOfUserInIBT(ctx, pt, user)
	})
}

func (s *SafeReader) TryFee(ctx context.Context, pool common.Address) *big.Int {
	return tryBig(ctx, s, "pool", "fee", pool, func() (*big.Int, error) {
		return s.reader.Fee(ctx, pool)
	})
}

func (s *SafeReader) TryAdminFee(ctx context.Context, pool common.Address) *big.Int {
	return tryBig(ctx, s, "pool", "admin_fee", pool, func() (*big.Int, error) {
		return s.reader.AdminFee(ctx, pool)
	})
}

func (s *SafeReader) TryLPToken(ctx context.Context, pool common.Address) common.Address {
	return try(ctx, s, "pool", "token", pool, common.Address{}, func() (common.Address, error) {
		return s.reader.LPToken(ctx, pool)
	})
}

func (s *SafeReader) TryBalances(ctx context.Context, pool common.Address, i int) *big.Int {
	return tryBig(ctx, s, "pool", "balances", pool, func() (*big.Int, error) {
		return s.reader.Balances(ctx, pool, i)
	})
}

func (s *SafeReader) TryPriceScale(ctx context.Context, pool common.Address) *big.Int {
	return tryBig(ctx, s, "pool", "price_scale", pool, func() (*big.Int, error) {
		return s.reader.PriceScale(ctx, pool)
	})
}

func (s *SafeReader) TryLastPrices(ctx context.Context, pool common.Address) *big.Int {
	return tryBig(ctx, s, "pool", "last_prices", pool, func() (*big.Int, error) {
		return s.reader.LastPrices(ctx, pool)
	})
}

func (s *SafeReader) TryAdmin(ctx context.Context, factory common.Address) common.Address {
	return try(ctx, s, "factory", "admin", factory, common.Address{}, func() (common.Address, error) {
		return s.reader.Admin(ctx, factory)
	})
}

func (s *SafeReader) TryFeeReceiver(ctx context.Context, factory common.Address) common.Address {
	return try(ctx, s, "factory", "fee_receiver", factory, common.Address{}, func() (common.Address, error) {
		return s.reader.FeeReceiver(ctx, factory)
	})
}

func (s *SafeReader) TryGetFeed(ctx context.Context, registry, base, quote common.Address) common.Address {
	return try(ctx, s, "oracle", "getFeed", registry, common.Address{}, func() (common.Address, error) {
		return s.reader.GetFeed(ctx, registry, base, quote)
	})
}

func (s *SafeReader) TryLatestAnswer(ctx context.Context, feed common.Address) *big.Int {
	return tryBig(ctx, s, "oracle", "latestAnswer", feed, func() (*big.Int, error) {
		return s.reader.LatestAnswer(ctx, feed)
	})
}

func (s *SafeReader) TryFeedDecimals(ctx context.Context, feed common.Address) uint8 {
	return try(ctx, s, "oracle", "decimals", feed, DefaultDecimals, func() (uint8, error) {
		return s.reader.FeedDecimals(ctx, feed)
	})
}
