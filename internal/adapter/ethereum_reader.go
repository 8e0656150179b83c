package adapter

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/time/rate"
)

// ErrEmptyResult is returned when a call hits an address without code
var ErrEmptyResult = errors.New("empty call result")

// EthereumReader performs ABI-packed eth_call reads
type EthereumReader struct {
	caller  ethereum.ContractCaller
	abi     abi.ABI
	limiter *rate.Limiter
}

// EthereumReaderConfig configures an EthereumReader
type EthereumReaderConfig struct {
	// RequestsPerSecond throttles calls; zero disables throttling
	RequestsPerSecond float64
	Burst             int
}

// NewEthereumReader creates a reader over caller, typically an *ethclient.Client
func NewEthereumReader(caller ethereum.ContractCaller, cfg *EthereumReaderConfig) *EthereumReader {
	r := &EthereumReader{
		caller: caller,
		abi:    parsedViewABI,
	}
	if cfg != nil && cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst < 1 {
			burst = 1
		}
		r.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}
	return r
}

func (r *EthereumReader) call(ctx context.Context, contract common.Address, method string, args ...interface{}) ([]interface{}, error) {
	if r.limiter != nil {
		if err := r.limiter.Wait(ctx); err != nil {
			return nil, NewAdapterError(contract, method, err)
		}
	}

	data, err := r.abi.Pack(method, args...)
	if err != nil {
		return nil, NewAdapterError(contract, method, fmt.Errorf("pack: %w", err))
	}

	out, err := r.caller.CallContract(ctx, ethereum.CallMsg{
		To:   &contract,
		Data: data,
	}, BlockFromContext(ctx))
	if err != nil {
		return nil, NewAdapterError(contract, method, err)
	}
	if len(out) == 0 {
		return nil, NewAdapterError(contract, method, ErrEmptyResult)
	}

	values, err := r.abi.Unpack(method, out)
	if err != nil {
		return nil, NewAdapterError(contract, method, fmt.Errorf("unpack: %w", err))
	}
	if len(values) == 0 {
		return nil, NewAdapterError(contract, method, ErrEmptyResult)
	}
	return values, nil
}

func (r *EthereumReader) callBig(ctx context.Context, contract common.Address, method string, args ...interface{}) (*big.Int, error) {
	values, err := r.call(ctx, contract, method, args...)
	if err != nil {
		return nil, err
	}
	v, ok := values[0].(*big.Int)
	if !ok {
		return nil, NewAdapterError(contract, method, fmt.Errorf("unexpected result type %T", values[0]))
	}
	return v, nil
}

func (r *EthereumReader) callAddress(ctx context.Context, contract common.Address, method string, args ...interface{}) (common.Address, error) {
	values, err := r.call(ctx, contract, method, args...)
	if err != nil {
		return common.Address{}, err
	}
	v, ok := values[0].(common.Address)
	if !ok {
		return common.Address{}, NewAdapterError(contract, method, fmt.Errorf("unexpected result type %T", values[0]))
	}
	return v, nil
}

func (r *EthereumReader) callString(ctx context.Context, contract common.Address, method string) (string, error) {
	values, err := r.call(ctx, contract, method)
	if err != nil {
		return "", err
	}
	v, ok := values[0].(string)
	if !ok {
		return "", NewAdapterError(contract, method, fmt.Errorf("unexpected result type %T", values[0]))
	}
	return v, nil
}

func (r *EthereumReader) callUint8(ctx context.Context, contract common.Address, method string) (uint8, error) {
	values, err := r.call(ctx, contract, method)
	if err != nil {
		return 0, err
	}
	v, ok := values[0].(uint8)
	if !ok {
		return 0, NewAdapterError(contract, method, fmt.Errorf("unexpected result type %T", values[0]))
	}
	return v, nil
}

// TokenReader

func (r *EthereumReader) Name(ctx context.Context, token common.Address) (string, error) {
	return r.callString(ctx, token, "name")
}

func (r *EthereumReader) Symbol(ctx context.Context, token common.Address) (string, error) {
	return r.callString(ctx, token, "symbol")
}

func (r *EthereumReader) Decimals(ctx context.Context, token common.Address) (uint8, error) {
	return r.callUint8(ctx, token, "decimals")
}

func (r *EthereumReader) TotalSupply(ctx context.Context, token common.Address) (*big.Int, error) {
	return r.callBig(ctx, token, "totalSupply")
}

func (r *EthereumReader) BalanceOf(ctx context.Context, token, account common.Address) (*big.Int, error) {
	return r.callBig(ctx, token, "balanceOf", account)
}

// VaultReader

func (r *EthereumReader) ConvertToAssets(ctx context.Context, vault common.Address, shares *big.Int) (*big.Int, error) {
	return r.callBig(ctx, vault, "convertToAssets", shares)
}

func (r *EthereumReader) Asset(ctx context.Context, vault common.Address) (common.Address, error) {
	return r.callAddress(ctx, vault, "asset")
}

// TotalAssets serves both ERC-4626 vaults and principal tokens
func (r *EthereumReader) TotalAssets(ctx context.Context, vault common.Address) (*big.Int, error) {
	return r.callBig(ctx, vault, "totalAssets")
}

// FutureReader

func (r *EthereumReader) Underlying(ctx context.Context, pt common.Address) (common.Address, error) {
	return r.callAddress(ctx, pt, "underlying")
}

func (r *EthereumReader) IBT(ctx context.Context, pt common.Address) (common.Address, error) {
	return r.callAddress(ctx, pt, "getIBT")
}

func (r *EthereumReader) YT(ctx context.Context, pt common.Address) (common.Address, error) {
	return r.callAddress(ctx, pt, "getYT")
}

func (r *EthereumReader) Maturity(ctx context.Context, pt common.Address) (*big.Int, error) {
	return r.callBig(ctx, pt, "maturity")
}

func (r *EthereumReader) IBTRate(ctx context.Context, pt common.Address) (*big.Int, error) {
	return r.callBig(ctx, pt, "getIBTRate")
}

func (r *EthereumReader) PTRate(ctx context.Context, pt common.Address) (*big.Int, error) {
	return r.callBig(ctx, pt, "getPTRate")
}

func (r *EthereumReader) TokenizationFee(ctx context.Context, pt common.Address) (*big.Int, error) {
	return r.callBig(ctx, pt, "getTokenizationFee")
}

func (r *EthereumReader) CurrentYieldOfUserInIBT(ctx context.Context, pt, user common.Address) (*big.Int, error) {
	return r.callBig(ctx, pt, "getCurrentYieldOfUserInIBT", user)
}

// PoolReader

func (r *EthereumReader) Fee(ctx context.Context, pool common.Address) (*big.Int, error) {
	return r.callBig(ctx, pool, "fee")
}

func (r *EthereumReader) AdminFee(ctx context.Context, pool common.Address) (*big.Int, error) {
	return r.callBig(ctx, pool, "admin_fee")
}

func (r *EthereumReader) LPToken(ctx context.Context, pool common.Address) (common.Address, error) {
	return r.callAddress(ctx, pool, "token")
}

func (r *EthereumReader) Balances(ctx context.Context, pool common.Address, i int) (*big.Int, error) {
	return r.callBig(ctx, pool, "balances", big.NewInt(int64(i)))
}

func (r *EthereumReader) PriceScale(ctx context.Context, pool common.Address) (*big.Int, error) {
	return r.callBig(ctx, pool, "price_scale")
}

func (r *EthereumReader) LastPrices(ctx context.Context, pool common.Address) (*big.Int, error) {
	return r.callBig(ctx, pool, "last_prices")
}

// FactoryReader

func (r *EthereumReader) Admin(ctx context.Context, factory common.Address) (common.Address, error) {
	return r.callAddress(ctx, factory, "admin")
}

func (r *EthereumReader) FeeReceiver(ctx context.Context, factory common.Address) (common.Address, error) {
	return r.callAddress(ctx, factory, "fee_receiver")
}

// OracleReader

func (r *EthereumReader) GetFeed(ctx context.Context, registry, base, quote common.Address) (common.Address, error) {
	return r.callAddress(ctx, registry, "getFeed", base, quote)
}

func (r *EthereumReader) LatestAnswer(ctx context.Context, feed common.Address) (*big.Int, error) {
	return r.callBig(ctx, feed, "latestAnswer")
}

func (r *EthereumReader) FeedDecimals(ctx context.Context, feed common.Address) (uint8, error) {
	return r.callUint8(ctx, feed, "decimals")
}

var _ Reader = (*EthereumReader)(nil)
