// Package storage persists derived entities. Handlers mutate entities
// through a Session; a Session's changes reach the Backend in a single
// atomic commit together with the replay cursor.
package storage

import (
	"context"
	"math"
	"time"

	"github.com/yield-indexer/internal/models"
)

// Cursor is the position of the last fully applied event
type Cursor struct {
	BlockNumber uint64    `json:"blockNumber"`
	LogIndex    uint      `json:"logIndex"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// EndOfBlock is the log index of a cursor whose block was applied in full
const EndOfBlock uint = math.MaxInt32

// BlockDone returns the cursor marking block as fully applied
func BlockDone(block uint64) Cursor {
	return Cursor{BlockNumber: block, LogIndex: EndOfBlock, UpdatedAt: time.Now().UTC()}
}

// After reports whether (block, logIndex) comes strictly after the cursor
func (c Cursor) After(block uint64, logIndex uint) bool {
	if block != c.BlockNumber {
		return block > c.BlockNumber
	}
	return logIndex > c.LogIndex
}

// Record is one encoded entity in a changeset
type Record struct {
	Kind      models.Kind
	ID        string
	Data      []byte
	WriteOnce bool
	Entity    models.Entity
}

// Changeset is everything one event changed
type Changeset struct {
	Records []Record
	Cursor  *Cursor
}

// Len returns the number of records
func (c *Changeset) Len() int {
	if c == nil {
		return 0
	}
	return len(c.Records)
}

// Backend stores encoded entities
type Backend interface {
	// Get returns the encoded entity, or false when absent
	Get(ctx context.Context, kind models.Kind, id string) ([]byte, bool, error)
	// Commit applies every record and the cursor atomically.
	// Write-once records that already exist are left untouched.
	Commit(ctx context.Context, cs *Changeset) error
	// Cursor returns the last committed cursor, or false on a fresh store
	Cursor(ctx context.Context) (Cursor, bool, error)
	// DataSources lists every registered dynamic data source
	DataSources(ctx context.Context) ([]*models.DataSource, error)
}

// Sink receives committed changesets, for example an analytic mirror
type Sink interface {
	Publish(ctx context.Context, cs *Changeset) error
	Flush(ctx context.Context) error
}
