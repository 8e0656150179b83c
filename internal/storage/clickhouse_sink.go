package storage

import (
	"context"
	"fmt"
	"math/big"
	"sort"
	"sync"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	apperrors "github.com/yield-indexer/internal/errors"
	"github.com/yield-indexer/internal/logging"
	"github.com/yield-indexer/internal/models"
)

// Analytic mirror tables
const (
	TableTransactions     = "transactions"
	TableTransfers        = "transfers"
	TableAPRInTime        = "apr_in_time"
	TableAPYInTime        = "apy_in_time"
	TableFutureDailyStats = "future_daily_stats"
)

// batchPreparer is the part of driver.Conn the sink needs
type batchPreparer interface {
	PrepareBatch(ctx context.Context, query string, opts ...driver.PrepareBatchOption) (driver.Batch, error)
}

// ClickHouseSink mirrors append-only entities and daily statistics into
// ClickHouse. Rows are buffered and written in batches; the entity store
// stays the source of truth, so a failed flush only delays the mirror.
type ClickHouseSink struct {
	conn      batchPreparer
	batchSize int
	logger    *logging.Logger

	mu      sync.Mutex
	pending map[string][][]interface{}
	rows    int
}

// NewClickHouseSink creates a sink flushing every batchSize rows
func NewClickHouseSink(db *ClickHouseDB, batchSize int) *ClickHouseSink {
	return newClickHouseSink(db.Conn(), batchSize)
}

func newClickHouseSink(conn batchPreparer, batchSize int) *ClickHouseSink {
	if batchSize < 1 {
		batchSize = 1
	}
	return &ClickHouseSink{
		conn:      conn,
		batchSize: batchSize,
		logger:    logging.GetGlobalLogger().ForSubsystem("clickhouse-sink"),
		pending:   make(map[string][][]interface{}),
	}
}

// Publish buffers the mirrored rows of cs and flushes when the buffer is full
func (s *ClickHouseSink) Publish(ctx context.Context, cs *Changeset) error {
	rows := AnalyticRows(cs)
	if len(rows) == 0 {
		return nil
	}

	s.mu.Lock()
	for table, r := range rows {
		s.pending[table] = append(s.pending[table], r...)
		s.rows += len(r)
	}
	full := s.rows >= s.batchSize
	s.mu.Unlock()

	if full {
		return s.Flush(ctx)
	}
	return nil
}

// Flush writes every buffered row. Rows of a table that fails stay buffered.
func (s *ClickHouseSink) Flush(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tables := make([]string, 0, len(s.pending))
	for table := range s.pending {
		tables = append(tables, table)
	}
	sort.Strings(tables)

	for _, table := range tables {
		rows := s.pending[table]
		if len(rows) == 0 {
			continue
		}
		if err := s.send(ctx, table, rows); err != nil {
			return apperrors.NewStoreError(fmt.Sprintf("flush %s", table), err)
		}
		s.logger.WithFields(map[string]interface{}{
			"table": table,
			"rows":  len(rows),
		}).Debug("flushed analytic rows")
		s.rows -= len(rows)
		delete(s.pending, table)
	}
	return nil
}

// Pending returns the number of buffered rows
func (s *ClickHouseSink) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rows
}

func (s *ClickHouseSink) send(ctx context.Context, table string, rows [][]interface{}) error {
	batch, err := s.conn.PrepareBatch(ctx, "INSERT INTO "+table)
	if err != nil {
		return err
	}
	for _, row := range rows {
		if err := batch.Append(row...); err != nil {
			_ = batch.Abort() // nolint:errcheck // already failing
			return err
		}
	}
	return batch.Send()
}

// AnalyticRows converts the mirrored records of cs into column-ordered rows
// keyed by table. Entities outside the mirror are skipped.
func AnalyticRows(cs *Changeset) map[string][][]interface{} {
	out := make(map[string][][]interface{})
	if cs == nil {
		return out
	}
	for _, r := range cs.Records {
		switch e := r.Entity.(type) {
		case *models.Transaction:
			out[TableTransactions] = append(out[TableTransactions], []interface{}{
				e.ID, e.Hash, uint32(e.LogIndex), e.BlockNumber, unixTime(e.Timestamp), // #nosec G115
				string(e.Type), e.User, e.Future, e.Pool, e.LPVault,
				e.GasUsed, bigOrZero(e.GasPrice), bigOrZero(e.Fee), bigOrZero(e.AdminFee),
			})
		case *models.Transfer:
			out[TableTransfers] = append(out[TableTransfers], []interface{}{
				e.ID, e.Hash, uint32(e.LogIndex), e.BlockNumber, unixTime(e.Timestamp), // #nosec G115
				e.Asset, e.From, e.To, bigOrZero(e.Amount),
			})
		case *models.APRInTime:
			out[TableAPRInTime] = append(out[TableAPRInTime], []interface{}{
				e.ID, e.Pool, e.Future, unixTime(e.Timestamp), e.BlockNumber,
				bigOrZero(e.SpotPrice), bigOrZero(e.IBTRate), bigOrZero(e.PTRate), e.APR,
			})
		case *models.APYInTime:
			out[TableAPYInTime] = append(out[TableAPYInTime], []interface{}{
				e.ID, e.Future, unixTime(e.Timestamp), e.BlockNumber,
				bigOrZero(e.IBTRate), bigOrZero(e.PTRate), e.APY,
			})
		case *models.FutureDailyStats:
			out[TableFutureDailyStats] = append(out[TableFutureDailyStats], []interface{}{
				e.ID, e.Future, e.DayID, unixTime(e.Date),
				bigOrZero(e.IBTRateMA), bigOrZero(e.LastIBTRate), e.DailyUpdates,
				e.RealizedAPR7D, e.RealizedAPR30D, e.RealizedAPR90D,
				e.DailyDeposits, e.DailyWithdrawals, e.DailySwaps,
				e.DailyAddLiquidity, e.DailyRemoveLiquidity, e.UpdatedAtBlock,
			})
		}
	}
	return out
}

func unixTime(ts uint64) time.Time {
	return time.Unix(int64(ts), 0).UTC() // #nosec G115 - block timestamps fit in int64
}

func bigOrZero(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return v
}

var _ Sink = (*ClickHouseSink)(nil)
