package storage

import (
	"math/big"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yield-indexer/internal/config"
	"github.com/yield-indexer/internal/models"
)

func testPostgresConfig() *config.PostgresConfig {
	return &config.PostgresConfig{
		Host:           "localhost",
		Port:           "5432",
		Database:       "yield_indexer",
		User:           "indexer",
		Password:       "indexer_dev_password",
		MaxConnections: 4,
	}
}

func TestNewPostgresDB(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	db, err := NewPostgresDB(testPostgresConfig())
	if err != nil {
		t.Skipf("Skipping test - Postgres not available: %v", err)
		return
	}
	defer db.Close()

	ctx := testContext(t)
	if err := db.Ping(ctx); err != nil {
		t.Errorf("Ping() error = %v", err)
	}
	if db.Pool() == nil {
		t.Error("Pool() returned nil")
	}
}

func TestPostgresBackend_Commit(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	cfg := testPostgresConfig()
	db, err := NewPostgresDB(cfg)
	if err != nil {
		t.Skipf("Skipping test - Postgres not available: %v", err)
		return
	}
	defer db.Close()

	if err := RunMigrations(cfg.DSN(), "../../migrations/postgres"); err != nil {
		t.Skipf("Skipping test - migrations failed: %v", err)
		return
	}

	ctx := testContext(t)
	backend := NewPostgresBackend(db)
	id := "test-" + uuid.NewString()

	s := NewSession(backend)
	s.Save(&models.AssetAmount{ID: id, Scope: "scope", Asset: "0xa", Amount: big.NewInt(15)})
	_, err = s.Insert(ctx, &models.Transfer{ID: id, Amount: big.NewInt(1)})
	require.NoError(t, err)
	_, err = s.Commit(ctx, &Cursor{BlockNumber: 100, LogIndex: 2})
	require.NoError(t, err)

	// write-once rows survive a second insert
	require.NoError(t, backend.Commit(ctx, &Changeset{Records: []Record{
		{Kind: models.KindTransfer, ID: id, Data: []byte(`{"id":"x","amount":9}`), WriteOnce: true},
	}}))

	fresh := NewSession(backend)
	amount, ok, err := Get[*models.AssetAmount](ctx, fresh, models.KindAssetAmount, id)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(15), amount.Amount.Int64())

	tr, ok, err := Get[*models.Transfer](ctx, fresh, models.KindTransfer, id)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(1), tr.Amount.Int64())

	cursor, ok, err := backend.Cursor(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, uint64(100), cursor.BlockNumber)
}
