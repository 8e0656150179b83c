// Package worker replays protocol logs into the entity store. Events are
// applied strictly one at a time in (block, log index) order; each event's
// session is committed together with the cursor before the next one starts.
package worker

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/google/uuid"

	"github.com/yield-indexer/internal/decoder"
	"github.com/yield-indexer/internal/events"
	"github.com/yield-indexer/internal/logging"
	"github.com/yield-indexer/internal/models"
	"github.com/yield-indexer/internal/retry"
	"github.com/yield-indexer/internal/storage"
	"github.com/yield-indexer/internal/types"
)

// EventHandler applies one decoded event to a session
type EventHandler interface {
	Handle(ctx context.Context, session *storage.Session, ev events.Event) error
}

// Source is a contract followed from a fixed block
type Source struct {
	Address    common.Address
	Template   types.Template
	StartBlock uint64
}

// Config configures an Indexer
type Config struct {
	Source  LogSource
	Backend storage.Backend
	Decoder *decoder.Decoder
	Handler EventHandler
	// Sink is optional and receives every committed changeset
	Sink storage.Sink
	// Static are followed from the start; dynamic sources come from the store
	Static        []Source
	StartBlock    uint64
	FinalityDepth uint64
	BlocksPerPoll uint64
	PollInterval  time.Duration
	CommitRetry   *retry.RetryConfig
	Logger        *logging.Logger
}

// Status is a snapshot of the indexer's progress
type Status struct {
	RunID           string          `json:"runId"`
	Running         bool            `json:"running"`
	Cursor          *storage.Cursor `json:"cursor,omitempty"`
	Head            uint64          `json:"head"`
	SafeHead        uint64          `json:"safeHead"`
	EventsProcessed int64           `json:"eventsProcessed"`
	EventsSkipped   int64           `json:"eventsSkipped"`
	DataSources     int             `json:"dataSources"`
	LastPoll        time.Time       `json:"lastPoll,omitempty"`
	LastError       string          `json:"lastError,omitempty"`
}

// Result summarizes one RunOnce call
type Result struct {
	From, To uint64
	Events   int
	CaughtUp bool
}

// Indexer drives the replay loop
type Indexer struct {
	cfg    Config
	runID  string
	logger *logging.Logger

	mu      sync.RWMutex
	status  Status
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewIndexer validates cfg and creates an indexer
func NewIndexer(cfg Config) (*Indexer, error) {
	if cfg.Source == nil {
		return nil, fmt.Errorf("log source cannot be nil")
	}
	if cfg.Backend == nil {
		return nil, fmt.Errorf("backend cannot be nil")
	}
	if cfg.Handler == nil {
		return nil, fmt.Errorf("event handler cannot be nil")
	}
	if cfg.Decoder == nil {
		cfg.Decoder = decoder.New()
	}
	if cfg.BlocksPerPoll == 0 {
		cfg.BlocksPerPoll = 2000
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 12 * time.Second
	}
	if cfg.CommitRetry == nil {
		cfg.CommitRetry = retry.CommitRetryConfig(5, 500*time.Millisecond)
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.GetGlobalLogger()
	}
	for _, s := range cfg.Static {
		if !cfg.Decoder.Supports(s.Template) {
			return nil, fmt.Errorf("static source %s has unknown template %q", s.Address.Hex(), s.Template)
		}
	}

	runID := uuid.NewString()
	return &Indexer{
		cfg:    cfg,
		runID:  runID,
		logger: cfg.Logger.ForSubsystem("indexer").WithField(logging.FieldRunID, runID),
		status: Status{RunID: runID},
	}, nil
}

// RunID identifies this process in logs and status
func (i *Indexer) RunID() string {
	return i.runID
}

// Status returns a copy of the current status
func (i *Indexer) Status() Status {
	i.mu.RLock()
	defer i.mu.RUnlock()
	s := i.status
	if s.Cursor != nil {
		c := *s.Cursor
		s.Cursor = &c
	}
	s.Running = i.running
	return s
}

// Start runs the poll loop until Stop or ctx cancellation
func (i *Indexer) Start(ctx context.Context) error {
	i.mu.Lock()
	if i.running {
		i.mu.Unlock()
		return fmt.Errorf("indexer is already running")
	}
	i.running = true
	i.stopCh = make(chan struct{})
	i.doneCh = make(chan struct{})
	i.mu.Unlock()

	i.logger.WithFields(map[string]interface{}{
		"pollInterval":  i.cfg.PollInterval.String(),
		"blocksPerPoll": i.cfg.BlocksPerPoll,
		"finality":      i.cfg.FinalityDepth,
	}).Info("indexer started")

	go i.pollLoop(ctx)
	return nil
}

// Stop signals the poll loop and waits for the current batch to finish
func (i *Indexer) Stop(ctx context.Context) error {
	i.mu.Lock()
	if !i.running {
		i.mu.Unlock()
		return fmt.Errorf("indexer is not running")
	}
	stopCh, doneCh := i.stopCh, i.doneCh
	i.mu.Unlock()

	close(stopCh)
	select {
	case <-doneCh:
	case <-ctx.Done():
		return ctx.Err()
	}

	i.mu.Lock()
	i.running = false
	i.mu.Unlock()

	if i.cfg.Sink != nil {
		if err := i.cfg.Sink.Flush(ctx); err != nil {
			i.logger.WithError(err).Warn("sink flush on stop failed")
		}
	}
	i.logger.Info("indexer stopped")
	return nil
}

func (i *Indexer) pollLoop(ctx context.Context) {
	defer close(i.doneCh)

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-i.stopCh:
			return
		case <-timer.C:
		}

		res, err := i.RunOnce(ctx)
		wait := i.cfg.PollInterval
		switch {
		case err != nil:
			i.logger.WithError(err).Error("replay batch failed")
		case !res.CaughtUp:
			// still behind the safe head
			wait = 0
		}
		timer.Reset(wait)
	}
}

// RunOnce applies the next window of finalized blocks. The window ends at
// BlocksPerPoll blocks or the safe head, whichever comes first.
func (i *Indexer) RunOnce(ctx context.Context) (Result, error) {
	res, err := i.runOnce(ctx)

	i.mu.Lock()
	i.status.LastPoll = time.Now().UTC()
	if err != nil {
		i.status.LastError = err.Error()
	} else {
		i.status.LastError = ""
	}
	i.mu.Unlock()
	return res, err
}

func (i *Indexer) runOnce(ctx context.Context) (Result, error) {
	cursor, resumed, err := i.cfg.Backend.Cursor(ctx)
	if err != nil {
		return Result{}, err
	}
	from := i.cfg.StartBlock
	if resumed {
		// the cursor's block is queried again and filtered by log index
		from = cursor.BlockNumber
		if cursor.LogIndex == storage.EndOfBlock {
			from++
		}
	}

	head, err := i.cfg.Source.LatestBlock(ctx)
	if err != nil {
		return Result{}, err
	}
	var safe uint64
	if head >= i.cfg.FinalityDepth {
		safe = head - i.cfg.FinalityDepth
	}
	i.mu.Lock()
	i.status.Head, i.status.SafeHead = head, safe
	i.mu.Unlock()

	if head < i.cfg.FinalityDepth || from > safe {
		return Result{From: from, To: from, CaughtUp: true}, nil
	}
	to := from + i.cfg.BlocksPerPoll - 1
	if to > safe {
		to = safe
	}
	res := Result{From: from, To: to, CaughtUp: to == safe}

	sources, err := i.loadSources(ctx)
	if err != nil {
		return res, err
	}

	pos := from
	for {
		logs, err := i.cfg.Source.FilterLogs(ctx, pos, to, sources.addresses(), i.cfg.Decoder.Topics(sources.templates()...))
		if err != nil {
			return res, err
		}
		sortLogs(logs)

		requery := false
		for _, log := range logs {
			if resumed && !cursor.After(log.BlockNumber, log.Index) {
				continue
			}
			src, ok := sources[log.Address]
			if !ok || log.BlockNumber < src.StartBlock {
				continue
			}

			added, err := i.apply(ctx, log, src)
			if err != nil {
				return res, err
			}
			cursor, resumed = storage.Cursor{BlockNumber: log.BlockNumber, LogIndex: log.Index}, true
			res.Events++

			if len(added) > 0 {
				for _, s := range added {
					if _, exists := sources[s.Address]; !exists {
						sources[s.Address] = s
					}
				}
				// later logs of the batch may come from the new sources
				pos = log.BlockNumber
				requery = true
				break
			}
		}
		if !requery {
			break
		}
	}

	done := storage.BlockDone(to)
	if err := i.commit(ctx, storage.NewSession(i.cfg.Backend), &done); err != nil {
		return res, err
	}
	i.mu.Lock()
	i.status.Cursor = &done
	i.status.DataSources = len(sources)
	i.mu.Unlock()

	i.logger.WithFields(map[string]interface{}{
		"from":   from,
		"to":     to,
		"events": res.Events,
	}).Debug("replay window applied")
	return res, nil
}

// apply decodes and handles one log in its own session and commits it with
// the cursor. It returns the data sources the event registered.
func (i *Indexer) apply(ctx context.Context, log gethtypes.Log, src Source) ([]Source, error) {
	logger := i.logger.WithFields(map[string]interface{}{
		logging.FieldContract: log.Address.Hex(),
		logging.FieldTxHash:   log.TxHash.Hex(),
		logging.FieldLogIndex: log.Index,
		logging.FieldBlock:    log.BlockNumber,
	})

	txc, err := i.cfg.Source.TxContext(ctx, log)
	if err != nil {
		return nil, err
	}
	ev, err := i.cfg.Decoder.Decode(log, src.Template, txc)
	if err != nil {
		logger.WithError(err).Warn("undecodable log skipped")
		ev = nil
	}

	session := storage.NewSession(i.cfg.Backend)
	if ev != nil {
		if err := i.cfg.Handler.Handle(logging.WithLogger(ctx, logger), session, ev); err != nil {
			return nil, err
		}
	}

	var added []Source
	for _, e := range session.Dirty() {
		if ds, ok := e.(*models.DataSource); ok {
			added = append(added, fromDataSource(ds))
		}
	}

	cursor := storage.Cursor{BlockNumber: log.BlockNumber, LogIndex: log.Index, UpdatedAt: time.Now().UTC()}
	if err := i.commit(ctx, session, &cursor); err != nil {
		return nil, err
	}

	i.mu.Lock()
	if ev != nil {
		i.status.EventsProcessed++
	} else {
		i.status.EventsSkipped++
	}
	i.status.Cursor = &cursor
	i.mu.Unlock()
	return added, nil
}

// commit writes session with cursor, retrying transient store failures,
// then hands the changeset to the sink
func (i *Indexer) commit(ctx context.Context, session *storage.Session, cursor *storage.Cursor) error {
	var cs *storage.Changeset
	err := retry.Do(logging.WithLogger(ctx, i.logger), i.cfg.CommitRetry, func(ctx context.Context, _ int) error {
		var err error
		cs, err = session.Commit(ctx, cursor)
		return err
	})
	if err != nil {
		return fmt.Errorf("commit at %d/%d: %w", cursor.BlockNumber, cursor.LogIndex, err)
	}

	if i.cfg.Sink != nil && cs.Len() > 0 {
		if err := i.cfg.Sink.Publish(ctx, cs); err != nil {
			i.logger.WithError(err).Warn("sink publish failed")
		}
	}
	return nil
}

type sourceSet map[common.Address]Source

func (s sourceSet) addresses() []common.Address {
	out := make([]common.Address, 0, len(s))
	for addr := range s {
		out = append(out, addr)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Cmp(out[j]) < 0 })
	return out
}

func (s sourceSet) templates() []types.Template {
	seen := make(map[types.Template]bool)
	var out []types.Template
	for _, src := range s {
		if !seen[src.Template] {
			seen[src.Template] = true
			out = append(out, src.Template)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (i *Indexer) loadSources(ctx context.Context) (sourceSet, error) {
	set := make(sourceSet, len(i.cfg.Static))
	for _, s := range i.cfg.Static {
		set[s.Address] = s
	}
	stored, err := i.cfg.Backend.DataSources(ctx)
	if err != nil {
		return nil, err
	}
	for _, ds := range stored {
		s := fromDataSource(ds)
		if !i.cfg.Decoder.Supports(s.Template) {
			i.logger.WithField(logging.FieldContract, ds.Address).Warn("stored data source has unknown template")
			continue
		}
		if _, exists := set[s.Address]; !exists {
			set[s.Address] = s
		}
	}
	return set, nil
}

func fromDataSource(ds *models.DataSource) Source {
	return Source{
		Address:    common.HexToAddress(ds.Address),
		Template:   types.Template(ds.Template),
		StartBlock: ds.StartBlock,
	}
}

func sortLogs(logs []gethtypes.Log) {
	sort.SliceStable(logs, func(a, b int) bool {
		if logs[a].BlockNumber != logs[b].BlockNumber {
			return logs[a].BlockNumber < logs[b].BlockNumber
		}
		return logs[a].Index < logs[b].Index
	})
}
