package worker

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"

	"github.com/yield-indexer/internal/decoder"
	apperrors "github.com/yield-indexer/internal/errors"
)

// LogSource supplies logs and the block and transaction context their
// envelopes carry
type LogSource interface {
	// LatestBlock returns the chain head
	LatestBlock(ctx context.Context) (uint64, error)
	// FilterLogs returns the logs emitted in [from, to] by any of addresses
	// whose first topic is one of topics
	FilterLogs(ctx context.Context, from, to uint64, addresses []common.Address, topics []common.Hash) ([]gethtypes.Log, error)
	// TxContext returns the timestamp, sender and gas of the log's transaction
	TxContext(ctx context.Context, log gethtypes.Log) (decoder.TxContext, error)
}

// ChainClient is the subset of *ethclient.Client the log source uses
type ChainClient interface {
	BlockNumber(ctx context.Context) (uint64, error)
	FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]gethtypes.Log, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*gethtypes.Header, error)
	TransactionByHash(ctx context.Context, hash common.Hash) (*gethtypes.Transaction, bool, error)
	TransactionReceipt(ctx context.Context, hash common.Hash) (*gethtypes.Receipt, error)
}

// maxCachedContexts bounds the per-transaction context cache
const maxCachedContexts = 4096

// EthLogSource reads logs over JSON-RPC
type EthLogSource struct {
	client ChainClient
	signer gethtypes.Signer

	mu         sync.Mutex
	timestamps map[uint64]uint64
	contexts   map[common.Hash]decoder.TxContext
}

// NewEthLogSource creates a log source for the chain with chainID
func NewEthLogSource(client ChainClient, chainID int64) *EthLogSource {
	return &EthLogSource{
		client:     client,
		signer:     gethtypes.LatestSignerForChainID(big.NewInt(chainID)),
		timestamps: make(map[uint64]uint64),
		contexts:   make(map[common.Hash]decoder.TxContext),
	}
}

func (s *EthLogSource) LatestBlock(ctx context.Context) (uint64, error) {
	n, err := s.client.BlockNumber(ctx)
	if err != nil {
		return 0, apperrors.NewTransportError("eth_blockNumber", err)
	}
	return n, nil
}

func (s *EthLogSource) FilterLogs(ctx context.Context, from, to uint64, addresses []common.Address, topics []common.Hash) ([]gethtypes.Log, error) {
	if len(addresses) == 0 {
		return nil, nil
	}
	logs, err := s.client.FilterLogs(ctx, ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(from),
		ToBlock:   new(big.Int).SetUint64(to),
		Addresses: addresses,
		Topics:    [][]common.Hash{topics},
	})
	if err != nil {
		return nil, apperrors.NewTransportError(fmt.Sprintf("eth_getLogs %d-%d", from, to), err)
	}
	return logs, nil
}

func (s *EthLogSource) TxContext(ctx context.Context, log gethtypes.Log) (decoder.TxContext, error) {
	s.mu.Lock()
	cached, ok := s.contexts[log.TxHash]
	s.mu.Unlock()
	if ok {
		return cached, nil
	}

	ts, err := s.timestamp(ctx, log.BlockNumber)
	if err != nil {
		return decoder.TxContext{}, err
	}
	tx, _, err := s.client.TransactionByHash(ctx, log.TxHash)
	if err != nil {
		return decoder.TxContext{}, apperrors.NewTransportError("eth_getTransactionByHash", err)
	}
	receipt, err := s.client.TransactionReceipt(ctx, log.TxHash)
	if err != nil {
		return decoder.TxContext{}, apperrors.NewTransportError("eth_getTransactionReceipt", err)
	}
	from, err := gethtypes.Sender(s.signer, tx)
	if err != nil {
		return decoder.TxContext{}, fmt.Errorf("recover sender of %s: %w", log.TxHash.Hex(), err)
	}

	gasPrice := receipt.EffectiveGasPrice
	if gasPrice == nil {
		gasPrice = tx.GasPrice()
	}
	out := decoder.TxContext{
		Timestamp: ts,
		From:      from,
		GasUsed:   receipt.GasUsed,
		GasPrice:  gasPrice,
	}

	s.mu.Lock()
	if len(s.contexts) >= maxCachedContexts {
		s.contexts = make(map[common.Hash]decoder.TxContext)
	}
	s.contexts[log.TxHash] = out
	s.mu.Unlock()
	return out, nil
}

func (s *EthLogSource) timestamp(ctx context.Context, block uint64) (uint64, error) {
	s.mu.Lock()
	ts, ok := s.timestamps[block]
	s.mu.Unlock()
	if ok {
		return ts, nil
	}
	header, err := s.client.HeaderByNumber(ctx, new(big.Int).SetUint64(block))
	if err != nil {
		return 0, apperrors.NewTransportError("eth_getBlockByNumber", err)
	}

	s.mu.Lock()
	if len(s.timestamps) >= maxCachedContexts {
		s.timestamps = make(map[uint64]uint64)
	}
	s.timestamps[block] = header.Time
	s.mu.Unlock()
	return header.Time, nil
}

var _ LogSource = (*EthLogSource)(nil)
