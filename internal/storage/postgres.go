package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/yield-indexer/internal/config"
	apperrors "github.com/yield-indexer/internal/errors"
	"github.com/yield-indexer/internal/models"
)

// PostgresDB wraps the pgxpool connection
type PostgresDB struct {
	pool *pgxpool.Pool
}

// NewPostgresDB creates a new Postgres database connection
func NewPostgresDB(cfg *config.PostgresConfig) (*PostgresDB, error) {
	connString := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=disable pool_max_conns=%d",
		cfg.Host,
		cfg.Port,
		cfg.User,
		cfg.Password,
		cfg.Database,
		cfg.MaxConnections,
	)

	poolConfig, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("unable to parse connection string: %w", err)
	}

	poolConfig.MaxConns = int32(cfg.MaxConnections) // #nosec G115 - MaxConnections is validated in config
	poolConfig.MinConns = 2
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute
	poolConfig.HealthCheckPeriod = time.Minute

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	return &PostgresDB{pool: pool}, nil
}

// Close closes the database connection pool
func (db *PostgresDB) Close() {
	if db.pool != nil {
		db.pool.Close()
	}
}

// Pool returns the underlying connection pool
func (db *PostgresDB) Pool() *pgxpool.Pool {
	return db.pool
}

// Ping checks if the database is reachable
func (db *PostgresDB) Ping(ctx context.Context) error {
	return db.pool.Ping(ctx)
}

// PostgresBackend stores entities as JSONB documents keyed by (kind, id).
// Every changeset is applied in one transaction with the cursor row.
type PostgresBackend struct {
	db *PostgresDB
}

// NewPostgresBackend creates a backend over db
func NewPostgresBackend(db *PostgresDB) *PostgresBackend {
	return &PostgresBackend{db: db}
}

const (
	selectEntitySQL = `SELECT data FROM entities WHERE kind = $1 AND id = $2`

	upsertEntitySQL = `
		INSERT INTO entities (kind, id, data, updated_block, updated_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (kind, id) DO UPDATE
		SET data = EXCLUDED.data, updated_block = EXCLUDED.updated_block, updated_at = NOW()`

	insertEntitySQL = `
		INSERT INTO entities (kind, id, data, updated_block, updated_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (kind, id) DO NOTHING`

	upsertCursorSQL = `
		INSERT INTO indexer_cursor (id, block_number, log_index, updated_at)
		VALUES (1, $1, $2, $3)
		ON CONFLICT (id) DO UPDATE
		SET block_number = EXCLUDED.block_number, log_index = EXCLUDED.log_index, updated_at = EXCLUDED.updated_at`

	selectCursorSQL = `SELECT block_number, log_index, updated_at FROM indexer_cursor WHERE id = 1`

	selectDataSourcesSQL = `SELECT data FROM entities WHERE kind = $1`
)

func (b *PostgresBackend) Get(ctx context.Context, kind models.Kind, id string) ([]byte, bool, error) {
	var data []byte
	err := b.db.pool.QueryRow(ctx, selectEntitySQL, string(kind), id).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, apperrors.NewStoreError(fmt.Sprintf("select %s %s", kind, id), err)
	}
	return data, true, nil
}

func (b *PostgresBackend) Commit(ctx context.Context, cs *Changeset) error {
	tx, err := b.db.pool.Begin(ctx)
	if err != nil {
		return apperrors.NewStoreError("begin transaction", err)
	}
	defer func() {
		_ = tx.Rollback(ctx) // nolint:errcheck // no-op after commit
	}()

	var block uint64
	if cs.Cursor != nil {
		block = cs.Cursor.BlockNumber
	}

	batch := &pgx.Batch{}
	for _, r := range cs.Records {
		query := upsertEntitySQL
		if r.WriteOnce {
			query = insertEntitySQL
		}
		batch.Queue(query, string(r.Kind), r.ID, r.Data, int64(block)) // #nosec G115 - block numbers fit in int64
	}
	if cs.Cursor != nil {
		updatedAt := cs.Cursor.UpdatedAt
		if updatedAt.IsZero() {
			updatedAt = time.Now().UTC()
		}
		batch.Queue(upsertCursorSQL, int64(cs.Cursor.BlockNumber), int64(cs.Cursor.LogIndex), updatedAt) // #nosec G115
	}

	if batch.Len() > 0 {
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return apperrors.NewStoreError("write changeset", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return apperrors.NewStoreError("commit transaction", err)
	}
	return nil
}

func (b *PostgresBackend) Cursor(ctx context.Context) (Cursor, bool, error) {
	var (
		block, logIndex int64
		updatedAt       time.Time
	)
	err := b.db.pool.QueryRow(ctx, selectCursorSQL).Scan(&block, &logIndex, &updatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Cursor{}, false, nil
	}
	if err != nil {
		return Cursor{}, false, apperrors.NewStoreError("select cursor", err)
	}
	// #nosec G115 - both columns are written from unsigned values
	return Cursor{BlockNumber: uint64(block), LogIndex: uint(logIndex), UpdatedAt: updatedAt}, true, nil
}

func (b *PostgresBackend) DataSources(ctx context.Context) ([]*models.DataSource, error) {
	rows, err := b.db.pool.Query(ctx, selectDataSourcesSQL, string(models.KindDataSource))
	if err != nil {
		return nil, apperrors.NewStoreError("select data sources", err)
	}
	defer rows.Close()

	var out []*models.DataSource
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, apperrors.NewStoreError("scan data source", err)
		}
		var ds models.DataSource
		if err := json.Unmarshal(data, &ds); err != nil {
			return nil, apperrors.NewDecodeError("data source", err)
		}
		out = append(out, &ds)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewStoreError("iterate data sources", err)
	}
	sortDataSources(out)
	return out, nil
}

var _ Backend = (*PostgresBackend)(nil)
