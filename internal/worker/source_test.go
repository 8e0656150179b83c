package worker

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/yield-indexer/internal/errors"
)

type fakeChain struct {
	head     uint64
	tx       *gethtypes.Transaction
	receipt  *gethtypes.Receipt
	time     uint64
	err      error
	query    ethereum.FilterQuery
	headers  int
	txs      int
	receipts int
	filters  int
}

func (c *fakeChain) BlockNumber(context.Context) (uint64, error) {
	return c.head, c.err
}

func (c *fakeChain) FilterLogs(_ context.Context, q ethereum.FilterQuery) ([]gethtypes.Log, error) {
	c.filters++
	c.query = q
	if c.err != nil {
		return nil, c.err
	}
	return []gethtypes.Log{{BlockNumber: q.FromBlock.Uint64()}}, nil
}

func (c *fakeChain) HeaderByNumber(_ context.Context, number *big.Int) (*gethtypes.Header, error) {
	c.headers++
	if c.err != nil {
		return nil, c.err
	}
	return &gethtypes.Header{Number: number, Time: c.time}, nil
}

func (c *fakeChain) TransactionByHash(context.Context, common.Hash) (*gethtypes.Transaction, bool, error) {
	c.txs++
	return c.tx, false, c.err
}

func (c *fakeChain) TransactionReceipt(context.Context, common.Hash) (*gethtypes.Receipt, error) {
	c.receipts++
	return c.receipt, c.err
}

func signedChain(t *testing.T) (*fakeChain, common.Address) {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	tx := gethtypes.NewTx(&gethtypes.DynamicFeeTx{
		ChainID:   big.NewInt(1),
		Nonce:     3,
		GasTipCap: big.NewInt(1e9),
		GasFeeCap: big.NewInt(30e9),
		Gas:       100_000,
		To:        &common.Address{0x01},
		Value:     new(big.Int),
	})
	signed, err := gethtypes.SignTx(tx, gethtypes.LatestSignerForChainID(big.NewInt(1)), key)
	require.NoError(t, err)

	return &fakeChain{
		head:    100,
		tx:      signed,
		receipt: &gethtypes.Receipt{GasUsed: 52_000, EffectiveGasPrice: big.NewInt(12e9)},
		time:    1_700_000_000,
	}, crypto.PubkeyToAddress(key.PublicKey)
}

func TestEthLogSource_TxContext(t *testing.T) {
	chain, sender := signedChain(t)
	src := NewEthLogSource(chain, 1)
	log := gethtypes.Log{BlockNumber: 42, TxHash: common.HexToHash("0xabc")}

	txc, err := src.TxContext(context.Background(), log)
	require.NoError(t, err)
	assert.Equal(t, sender, txc.From)
	assert.Equal(t, uint64(1_700_000_000), txc.Timestamp)
	assert.Equal(t, uint64(52_000), txc.GasUsed)
	assert.Equal(t, int64(12e9), txc.GasPrice.Int64())

	// a second log of the same transaction hits the cache
	log.Index = 4
	again, err := src.TxContext(context.Background(), log)
	require.NoError(t, err)
	assert.Equal(t, txc, again)
	assert.Equal(t, 1, chain.headers)
	assert.Equal(t, 1, chain.txs)
	assert.Equal(t, 1, chain.receipts)

	// another transaction in the same block reuses the block timestamp
	_, err = src.TxContext(context.Background(), gethtypes.Log{BlockNumber: 42, TxHash: common.HexToHash("0xdef")})
	require.NoError(t, err)
	assert.Equal(t, 1, chain.headers)
	assert.Equal(t, 2, chain.txs)
}

func TestEthLogSource_GasPriceFallback(t *testing.T) {
	chain, _ := signedChain(t)
	chain.receipt.EffectiveGasPrice = nil
	src := NewEthLogSource(chain, 1)

	txc, err := src.TxContext(context.Background(), gethtypes.Log{BlockNumber: 1, TxHash: common.HexToHash("0x1")})
	require.NoError(t, err)
	assert.Equal(t, chain.tx.GasPrice(), txc.GasPrice)
}

func TestEthLogSource_FilterLogs(t *testing.T) {
	chain, _ := signedChain(t)
	src := NewEthLogSource(chain, 1)
	ctx := context.Background()

	logs, err := src.FilterLogs(ctx, 10, 20, nil, []common.Hash{{0x01}})
	require.NoError(t, err)
	assert.Nil(t, logs)
	assert.Zero(t, chain.filters, "no sources means no query")

	addrs := []common.Address{{0xaa}, {0xbb}}
	topics := []common.Hash{{0x01}, {0x02}}
	logs, err = src.FilterLogs(ctx, 10, 20, addrs, topics)
	require.NoError(t, err)
	assert.Len(t, logs, 1)
	assert.Equal(t, uint64(10), chain.query.FromBlock.Uint64())
	assert.Equal(t, uint64(20), chain.query.ToBlock.Uint64())
	assert.Equal(t, addrs, chain.query.Addresses)
	assert.Equal(t, [][]common.Hash{topics}, chain.query.Topics)

	head, err := src.LatestBlock(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(100), head)
}

func TestEthLogSource_TransportErrorsAreRetryable(t *testing.T) {
	chain, _ := signedChain(t)
	chain.err = errors.New("503 service unavailable")
	src := NewEthLogSource(chain, 1)
	ctx := context.Background()

	_, err := src.LatestBlock(ctx)
	assert.True(t, apperrors.IsRetryable(err))

	_, err = src.FilterLogs(ctx, 1, 2, []common.Address{{0x01}}, nil)
	assert.True(t, apperrors.IsRetryable(err))

	_, err = src.TxContext(ctx, gethtypes.Log{BlockNumber: 1})
	assert.True(t, apperrors.IsRetryable(err))
	assert.Equal(t, apperrors.CategoryTransport, apperrors.Categorize(err).Category)
}
