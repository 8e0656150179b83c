package mapping

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	apperrors "github.com/yield-indexer/internal/errors"
	"github.com/yield-indexer/internal/events"
	"github.com/yield-indexer/internal/fixedpoint"
	"github.com/yield-indexer/internal/ids"
	"github.com/yield-indexer/internal/models"
	"github.com/yield-indexer/internal/types"
)

// newTransaction starts the record of the logical transaction behind env.
// The user is the account that sent the chain transaction.
func newTransaction(env events.Envelope, txType types.TransactionType) *models.Transaction {
	return &models.Transaction{
		ID:          ids.Transaction(env.TxHash, env.LogIndex),
		Hash:        ids.Hash(env.TxHash),
		LogIndex:    env.LogIndex,
		BlockNumber: env.BlockNumber,
		Timestamp:   env.BlockTimestamp,
		Type:        txType,
		User:        ids.Address(env.From),
		AmountsIn:   []string{},
		AmountsOut:  []string{},
		GasUsed:     env.GasUsed,
		GasPrice:    fixedpoint.Copy(env.GasPrice),
		Fee:         new(big.Int),
		AdminFee:    new(big.Int),
	}
}

// flowIn adds amount of asset to what the transaction put into the protocol
func (u *unit) flowIn(ctx context.Context, tx *models.Transaction, asset common.Address, amount *big.Int, env events.Envelope) error {
	amt, err := u.ledger.AccumulateFlow(ctx, tx.ID, asset, amount, env, ids.TagIn)
	if err != nil {
		return err
	}
	tx.AmountsIn = appendOnce(tx.AmountsIn, amt.ID)
	return nil
}

// flowOut adds amount of asset to what the transaction took out of the protocol
func (u *unit) flowOut(ctx context.Context, tx *models.Transaction, asset common.Address, amount *big.Int, env events.Envelope) error {
	amt, err := u.ledger.AccumulateFlow(ctx, tx.ID, asset, amount, env, ids.TagOut)
	if err != nil {
		return err
	}
	tx.AmountsOut = appendOnce(tx.AmountsOut, amt.ID)
	return nil
}

// record stores tx. A transaction replayed under the same key is kept as is.
func (u *unit) record(ctx context.Context, tx *models.Transaction) error {
	inserted, err := u.session.Insert(ctx, tx)
	if err != nil {
		return err
	}
	if !inserted {
		u.logger.WithField("transaction", tx.ID).Debug("transaction already recorded")
	}
	return nil
}

// spot refreshes the spot balances of account in every asset
func (u *unit) spot(ctx context.Context, account common.Address, env events.Envelope, assets ...common.Address) error {
	for _, asset := range assets {
		if _, err := u.ledger.UpdateSpotBalance(ctx, account, asset, env); err != nil {
			return err
		}
	}
	return nil
}

func (u *unit) future(ctx context.Context, pt common.Address) (*models.Future, error) {
	f, ok, err := u.LoadFuture(ctx, pt)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperrors.NewMissingReferenceError(string(models.KindFuture), ids.Address(pt))
	}
	return f, nil
}

func (u *unit) pool(ctx context.Context, addr common.Address) (*models.Pool, error) {
	p, ok, err := u.LoadPool(ctx, addr)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperrors.NewMissingReferenceError(string(models.KindPool), ids.Address(addr))
	}
	return p, nil
}

// poolFuture returns the future of p, or nil for a pool of an unindexed future
func (u *unit) poolFuture(ctx context.Context, p *models.Pool) (*models.Future, error) {
	f, _, err := u.LoadFutureByID(ctx, p.Future)
	return f, err
}

func appendOnce(list []string, id string) []string {
	for _, v := range list {
		if v == id {
			return list
		}
	}
	return append(list, id)
}

func addr(s string) common.Address {
	return common.HexToAddress(s)
}
