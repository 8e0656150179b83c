// Package mapping turns decoded protocol events into entity updates. Every
// event is one logical transaction applied inside its own storage session.
//
// A reference to an entity the indexer never created is logged and the
// event is dropped. An invariant violation is returned in strict mode and
// handled the same way otherwise.
package mapping

import (
	"context"
	"fmt"

	"github.com/yield-indexer/internal/adapter"
	"github.com/yield-indexer/internal/entity"
	apperrors "github.com/yield-indexer/internal/errors"
	"github.com/yield-indexer/internal/events"
	"github.com/yield-indexer/internal/ledger"
	"github.com/yield-indexer/internal/logging"
	"github.com/yield-indexer/internal/stats"
	"github.com/yield-indexer/internal/storage"
)

// Options configures a Handler
type Options struct {
	entity.Options
	// Strict returns invariant violations instead of skipping the event
	Strict bool
}

// Handler applies events. It holds no per-event state and may be shared.
type Handler struct {
	reader *adapter.SafeReader
	opts   Options
	logger *logging.Logger
}

// NewHandler creates a handler reading contracts through reader
func NewHandler(reader *adapter.SafeReader, opts Options, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	return &Handler{
		reader: reader,
		opts:   opts,
		logger: logger.ForSubsystem("mapping"),
	}
}

// unit is the set of collaborators bound to one event's session
type unit struct {
	*entity.Resolver
	session *storage.Session
	ledger  *ledger.Ledger
	stats   *stats.Engine
	logger  *logging.Logger
	opts    Options
}

// Handle applies ev to session. Contract reads are pinned to the event's
// block. A skipped event leaves the session empty.
func (h *Handler) Handle(ctx context.Context, session *storage.Session, ev events.Event) error {
	env := ev.Header()
	ctx = adapter.WithBlock(ctx, env.BlockNumber)

	logger := h.logger.WithFields(map[string]interface{}{
		logging.FieldEvent:    ev.Name(),
		logging.FieldContract: env.Contract.Hex(),
		logging.FieldTxHash:   env.TxHash.Hex(),
		logging.FieldLogIndex: env.LogIndex,
		logging.FieldBlock:    env.BlockNumber,
	})
	resolver := entity.NewResolver(session, h.reader, h.opts.Options, logger)
	u := &unit{
		Resolver: resolver,
		session:  session,
		ledger:   ledger.New(resolver, logger),
		stats:    stats.New(resolver, logger),
		logger:   logger,
		opts:     h.opts,
	}

	err := u.dispatch(ctx, ev)
	switch {
	case err == nil:
		return nil
	case apperrors.IsMissingReference(err):
		session.Discard()
		logger.WithError(err).Warn("event references an unindexed entity, skipped")
		return nil
	case apperrors.IsInvariant(err):
		if h.opts.Strict {
			return err
		}
		session.Discard()
		logger.WithError(err).Warn("invariant violated, event skipped")
		return nil
	}
	return fmt.Errorf("%s at %s/%d: %w", ev.Name(), env.TxHash.Hex(), env.LogIndex, err)
}

func (u *unit) dispatch(ctx context.Context, ev events.Event) error {
	switch e := ev.(type) {
	case *events.PTDeployed:
		return u.onPTDeployed(ctx, e)
	case *events.CurvePoolDeployed:
		return u.onCurvePoolDeployed(ctx, e)
	case *events.LPVaultDeployed:
		return u.onLPVaultDeployed(ctx, e)
	case *events.RegistryChange:
		return u.onRegistryChange(ctx, e)

	case *events.Mint:
		return u.onMint(ctx, e)
	case *events.Redeem:
		return u.onRedeem(ctx, e)
	case *events.YieldUpdated:
		return u.onYieldUpdated(ctx, e)
	case *events.YieldClaimed:
		return u.onYieldClaimed(ctx, e)
	case *events.FeeClaimed:
		return u.onFeeClaimed(ctx, e)
	case *events.Paused:
		return u.onPaused(ctx, e)
	case *events.Unpaused:
		return u.onUnpaused(ctx, e)
	case *events.RatesStoredAtExpiry:
		return u.onRatesStoredAtExpiry(ctx, e)

	case *events.Transfer:
		return u.onTransfer(ctx, e)

	case *events.AddLiquidity:
		return u.onAddLiquidity(ctx, e)
	case *events.RemoveLiquidity:
		return u.onRemoveLiquidity(ctx, e)
	case *events.RemoveLiquidityOne:
		return u.onRemoveLiquidityOne(ctx, e)
	case *events.TokenExchange:
		return u.onTokenExchange(ctx, e)
	case *events.CommitNewParameters:
		return u.onCommitNewParameters(ctx, e)
	case *events.NewParameters:
		return u.onNewParameters(ctx, e)
	case *events.ClaimAdminFee:
		return u.onClaimAdminFee(ctx, e)

	case *events.Deposit:
		return u.onVaultDeposit(ctx, e)
	case *events.Withdraw:
		return u.onVaultWithdraw(ctx, e)

	case *events.FeedConfirmed:
		return u.onFeedConfirmed(ctx, e)
	case *events.AnswerUpdated:
		return u.onAnswerUpdated(ctx, e)
	}
	u.logger.Debug("no handler for event")
	return nil
}
