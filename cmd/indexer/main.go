// Package main provides the indexer entry point: it replays protocol events
// into the entity store and serves the ops endpoints.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/yield-indexer/internal/adapter"
	"github.com/yield-indexer/internal/api"
	"github.com/yield-indexer/internal/config"
	"github.com/yield-indexer/internal/entity"
	"github.com/yield-indexer/internal/logging"
	"github.com/yield-indexer/internal/mapping"
	"github.com/yield-indexer/internal/retry"
	"github.com/yield-indexer/internal/storage"
	"github.com/yield-indexer/internal/types"
	"github.com/yield-indexer/internal/worker"
)

func main() {
	var (
		migrate       = flag.Bool("migrate", true, "Apply Postgres migrations before starting")
		flushMetadata = flag.Bool("flush-metadata", false, "Drop cached token metadata for the chain before starting")
	)
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	logging.InitGlobalLogger(logging.LogLevel(cfg.Logging.Level), logging.LogFormat(cfg.Logging.Format))
	logger := logging.GetGlobalLogger().ForSubsystem("main")

	if err := cfg.Validate(); err != nil {
		logger.WithError(err).Fatal("invalid configuration")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := run(ctx, cfg, logger, *migrate, *flushMetadata); err != nil {
		logger.WithError(err).Fatal("indexer exited")
	}
}

func run(ctx context.Context, cfg *config.Config, logger *logging.Logger, migrate, flushMetadata bool) error {
	backend, closeBackend, err := openBackend(ctx, cfg, logger, migrate)
	if err != nil {
		return err
	}
	defer closeBackend()

	logger.WithField("network", cfg.Chain.NetworkName).Info("connecting to chain")
	client, err := adapter.NewRPCPool(ctx, &adapter.RPCPoolConfig{
		Endpoints:    cfg.Chain.RPCURLs,
		CooldownTime: cfg.Chain.RPCCooldown,
	})
	if err != nil {
		return fmt.Errorf("dial rpc: %w", err)
	}
	defer client.Close()

	chainID, err := client.ChainID(ctx)
	if err != nil {
		return fmt.Errorf("read chain id: %w", err)
	}
	if chainID.Int64() != cfg.Chain.ChainID {
		return fmt.Errorf("rpc serves chain %s, configured for %d", chainID, cfg.Chain.ChainID)
	}

	var reader adapter.Reader = adapter.NewEthereumReader(client, &adapter.EthereumReaderConfig{
		RequestsPerSecond: cfg.Chain.RPCRateLimit,
		Burst:             cfg.Chain.RPCBurst,
	})
	var breakers []api.BreakerProvider
	if cfg.Database.Redis.Enabled {
		cache, err := storage.NewRedisCache(&cfg.Database.Redis)
		if err != nil {
			// the cache only saves calls
			logger.WithError(err).Warn("redis unavailable, token metadata is read directly")
		} else {
			defer cache.Close()
			if flushMetadata {
				n, err := cache.InvalidateTokens(ctx, cfg.Chain.ChainID)
				if err != nil {
					logger.WithError(err).Warn("metadata flush failed")
				} else {
					logger.WithField("keys", n).Info("token metadata flushed")
				}
			}
			cached := adapter.NewCachedTokenReader(reader, cache.Client(), cfg.Chain.ChainID, cfg.Cache.MetadataTTL)
			breakers = append(breakers, cached)
			reader = cached
		}
	}
	safe := adapter.NewSafeReader(reader, logging.GetGlobalLogger().ForSubsystem("reader"))

	opts := entity.Options{
		ChainID: cfg.Chain.ChainID,
		USD:     common.HexToAddress(cfg.Protocol.USDDenomination),
	}
	if cfg.Protocol.FeedRegistry != "" {
		opts.FeedRegistry = common.HexToAddress(cfg.Protocol.FeedRegistry)
	}

	if err := bootstrap(ctx, backend, safe, opts, cfg.Chain.NetworkName); err != nil {
		return err
	}

	var sink storage.Sink
	if cfg.Database.ClickHouse.Enabled {
		ch, err := storage.NewClickHouseDB(&cfg.Database.ClickHouse)
		if err != nil {
			return fmt.Errorf("connect clickhouse: %w", err)
		}
		defer ch.Close()
		sink = storage.NewClickHouseSink(ch, cfg.Database.ClickHouse.BatchSize)
	}

	indexer, err := worker.NewIndexer(worker.Config{
		Source:        worker.NewEthLogSource(client, cfg.Chain.ChainID),
		Backend:       backend,
		Handler:       mapping.NewHandler(safe, mapping.Options{Options: opts, Strict: cfg.Indexer.StrictInvariants}, nil),
		Sink:          sink,
		Static:        staticSources(cfg),
		StartBlock:    cfg.Chain.StartBlock,
		FinalityDepth: cfg.Chain.FinalityDepth,
		BlocksPerPoll: cfg.Chain.BlocksPerPoll,
		PollInterval:  cfg.Chain.PollInterval,
		CommitRetry:   retry.CommitRetryConfig(cfg.Indexer.CommitAttempts, cfg.Indexer.CommitBackoff),
	})
	if err != nil {
		return err
	}

	server := api.NewServer(&api.ServerConfig{
		Host:            cfg.Server.Host,
		Port:            cfg.Server.Port,
		ReadTimeout:     10 * time.Second,
		WriteTimeout:    10 * time.Second,
		IdleTimeout:     60 * time.Second,
		ShutdownTimeout: 10 * time.Second,
		StaleAfter:      10 * cfg.Chain.PollInterval,
	}, indexer, nil, breakers...)
	server.AddComponent("rpcPool", func() interface{} { return client.Status() })
	go func() {
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Error("ops server failed")
		}
	}()

	if err := indexer.Start(ctx); err != nil {
		return err
	}
	logger.WithField(logging.FieldRunID, indexer.RunID()).Info("indexer running")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	sig := <-sigChan
	logger.WithField("signal", sig.String()).Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := indexer.Stop(shutdownCtx); err != nil {
		logger.WithError(err).Warn("indexer stop failed")
	}
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Warn("ops server shutdown failed")
	}
	return nil
}

// openBackend connects the configured entity store
func openBackend(ctx context.Context, cfg *config.Config, logger *logging.Logger, migrate bool) (storage.Backend, func(), error) {
	if cfg.Indexer.Backend == "memory" {
		logger.Warn("using the in-memory backend, progress is lost on exit")
		return storage.NewMemoryBackend(), func() {}, nil
	}

	if migrate {
		if err := storage.RunMigrations(cfg.Database.Postgres.DSN(), "migrations/postgres"); err != nil {
			return nil, nil, fmt.Errorf("migrate postgres: %w", err)
		}
	}

	var db *storage.PostgresDB
	err := retry.WithRetry(logging.WithLogger(ctx, logger), func(ctx context.Context, attempt int) error {
		var err error
		db, err = storage.NewPostgresDB(&cfg.Database.Postgres)
		return err
	})
	if err != nil {
		return nil, nil, fmt.Errorf("connect postgres: %w", err)
	}
	return storage.NewPostgresBackend(db), db.Close, nil
}

// bootstrap writes the network entity before the first event
func bootstrap(ctx context.Context, backend storage.Backend, reader *adapter.SafeReader, opts entity.Options, network string) error {
	session := storage.NewSession(backend)
	resolver := entity.NewResolver(session, reader, opts, nil)
	if _, err := resolver.EnsureNetwork(ctx, opts.ChainID, network); err != nil {
		return err
	}
	if _, err := session.Commit(ctx, nil); err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}
	return nil
}

func staticSources(cfg *config.Config) []worker.Source {
	var out []worker.Source
	for _, f := range cfg.Protocol.Factories {
		out = append(out, worker.Source{
			Address:    common.HexToAddress(f),
			Template:   types.TemplateFactory,
			StartBlock: cfg.Chain.StartBlock,
		})
	}
	if cfg.Protocol.FeedRegistry != "" {
		out = append(out, worker.Source{
			Address:    common.HexToAddress(cfg.Protocol.FeedRegistry),
			Template:   types.TemplateFeedRegistry,
			StartBlock: cfg.Chain.StartBlock,
		})
	}
	return out
}
