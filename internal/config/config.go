// Package config provides configuration management for the yield indexer.
// It loads configuration from environment variables and .env files.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"

	apperrors "github.com/yield-indexer/internal/errors"
)

// DefaultUSDDenomination is the pseudo-address oracle registries use for USD
const DefaultUSDDenomination = "0x0000000000000000000000000000000000000348"

// Config holds all application configuration
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Chain    ChainConfig
	Protocol ProtocolConfig
	Indexer  IndexerConfig
	Cache    CacheConfig
	Logging  LoggingConfig
}

// ServerConfig holds the ops endpoint configuration
type ServerConfig struct {
	Port string
	Host string
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Postgres   PostgresConfig
	ClickHouse ClickHouseConfig
	Redis      RedisConfig
}

// PostgresConfig holds Postgres configuration
type PostgresConfig struct {
	Host           string
	Port           string
	Database       string
	User           string
	Password       string
	MaxConnections int
}

// DSN returns the postgres connection URL
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		p.User, p.Password, p.Host, p.Port, p.Database)
}

// ClickHouseConfig holds ClickHouse configuration.
// The analytic mirror is optional.
type ClickHouseConfig struct {
	Enabled   bool
	Host      string
	Port      string
	Database  string
	User      string
	Password  string
	BatchSize int
}

// RedisConfig holds Redis configuration. The metadata cache is optional.
type RedisConfig struct {
	Enabled        bool
	Host           string
	Port           string
	Password       string
	DB             int
	MaxConnections int
}

// Addr returns host:port
func (r RedisConfig) Addr() string {
	return r.Host + ":" + r.Port
}

// ChainConfig holds the RPC endpoint and replay window settings
type ChainConfig struct {
	NetworkName string
	ChainID     int64
	// RPCURLs are tried in order; later ones take over while earlier ones are rate limited
	RPCURLs       []string
	RPCCooldown   time.Duration
	StartBlock    uint64
	FinalityDepth uint64
	BlocksPerPoll uint64
	PollInterval  time.Duration
	// RPCRateLimit is the sustained contract-call rate per second; zero disables throttling
	RPCRateLimit float64
	RPCBurst     int
}

// ProtocolConfig holds the statically known protocol contracts
type ProtocolConfig struct {
	Factories       []string
	FeedRegistry    string
	USDDenomination string
}

// IndexerConfig holds mapping behavior switches
type IndexerConfig struct {
	// Backend selects the entity store: "postgres" or "memory"
	Backend string
	// StrictInvariants turns invariant violations into hard errors
	StrictInvariants bool
	CommitAttempts   int
	CommitBackoff    time.Duration
}

// CacheConfig holds cache configuration
type CacheConfig struct {
	MetadataTTL time.Duration
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string
	Format string
}

// LoadConfig loads configuration from .env file and environment variables
func LoadConfig() (*Config, error) {
	// .env is optional; variables can be set directly
	if err := godotenv.Load(); err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("error loading .env file: %w", err)
		}
	}

	config := &Config{
		Server: ServerConfig{
			Port: getEnv("SERVER_PORT", "8080"),
			Host: getEnv("SERVER_HOST", "0.0.0.0"),
		},
		Database: DatabaseConfig{
			Postgres: PostgresConfig{
				Host:           getEnv("POSTGRES_HOST", "localhost"),
				Port:           getEnv("POSTGRES_PORT", "5432"),
				Database:       getEnv("POSTGRES_DB", "yield_indexer"),
				User:           getEnv("POSTGRES_USER", "indexer"),
				Password:       getEnv("POSTGRES_PASSWORD", ""),
				MaxConnections: getEnvAsInt("POSTGRES_MAX_CONNECTIONS", 10),
			},
			ClickHouse: ClickHouseConfig{
				Enabled:   getEnvAsBool("CLICKHOUSE_ENABLED", false),
				Host:      getEnv("CLICKHOUSE_HOST", "localhost"),
				Port:      getEnv("CLICKHOUSE_PORT", "9000"),
				Database:  getEnv("CLICKHOUSE_DB", "yield_indexer"),
				User:      getEnv("CLICKHOUSE_USER", "default"),
				Password:  getEnv("CLICKHOUSE_PASSWORD", ""),
				BatchSize: getEnvAsInt("CLICKHOUSE_BATCH_SIZE", 500),
			},
			Redis: RedisConfig{
				Enabled:        getEnvAsBool("REDIS_ENABLED", false),
				Host:           getEnv("REDIS_HOST", "localhost"),
				Port:           getEnv("REDIS_PORT", "6379"),
				Password:       getEnv("REDIS_PASSWORD", ""),
				DB:             getEnvAsInt("REDIS_DB", 0),
				MaxConnections: getEnvAsInt("REDIS_MAX_CONNECTIONS", 10),
			},
		},
		Chain: ChainConfig{
			NetworkName:   getEnv("NETWORK_NAME", "mainnet"),
			ChainID:       int64(getEnvAsInt("CHAIN_ID", 1)),
			RPCURLs:       getEnvAsList("RPC_URL"),
			RPCCooldown:   getEnvAsDuration("RPC_COOLDOWN", 60*time.Second),
			StartBlock:    getEnvAsUint64("START_BLOCK", 0),
			FinalityDepth: getEnvAsUint64("FINALITY_DEPTH", 64),
			BlocksPerPoll: getEnvAsUint64("BLOCKS_PER_POLL", 2000),
			PollInterval:  getEnvAsDuration("POLL_INTERVAL", 12*time.Second),
			RPCRateLimit:  getEnvAsFloat("RPC_RATE_LIMIT", 0),
			RPCBurst:      getEnvAsInt("RPC_BURST", 10),
		},
		Protocol: ProtocolConfig{
			Factories:       getEnvAsList("FACTORY_ADDRESSES"),
			FeedRegistry:    getEnv("FEED_REGISTRY_ADDRESS", ""),
			USDDenomination: getEnv("USD_DENOMINATION", DefaultUSDDenomination),
		},
		Indexer: IndexerConfig{
			Backend:          getEnv("INDEXER_BACKEND", "postgres"),
			StrictInvariants: getEnvAsBool("STRICT_INVARIANTS", false),
			CommitAttempts:   getEnvAsInt("COMMIT_ATTEMPTS", 5),
			CommitBackoff:    getEnvAsDuration("COMMIT_BACKOFF", 500*time.Millisecond),
		},
		Cache: CacheConfig{
			MetadataTTL: getEnvAsDuration("METADATA_CACHE_TTL", 24*time.Hour),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	return config, nil
}

// Validate checks the settings the indexer cannot run without
func (c *Config) Validate() error {
	if len(c.Chain.RPCURLs) == 0 {
		return apperrors.NewConfigError("RPC_URL", "must be set")
	}
	if len(c.Protocol.Factories) == 0 {
		return apperrors.NewConfigError("FACTORY_ADDRESSES", "at least one factory is required")
	}
	for _, f := range c.Protocol.Factories {
		if !common.IsHexAddress(f) {
			return apperrors.NewConfigError("FACTORY_ADDRESSES", fmt.Sprintf("%q is not an address", f))
		}
	}
	if c.Protocol.FeedRegistry != "" && !common.IsHexAddress(c.Protocol.FeedRegistry) {
		return apperrors.NewConfigError("FEED_REGISTRY_ADDRESS", "not an address")
	}
	if !common.IsHexAddress(c.Protocol.USDDenomination) {
		return apperrors.NewConfigError("USD_DENOMINATION", "not an address")
	}
	switch c.Indexer.Backend {
	case "postgres", "memory":
	default:
		return apperrors.NewConfigError("INDEXER_BACKEND", fmt.Sprintf("unknown backend %q", c.Indexer.Backend))
	}
	if c.Chain.BlocksPerPoll == 0 {
		return apperrors.NewConfigError("BLOCKS_PER_POLL", "must be positive")
	}
	if c.Indexer.CommitAttempts < 1 {
		return apperrors.NewConfigError("COMMIT_ATTEMPTS", "must be at least 1")
	}
	return nil
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt gets an environment variable as an integer with a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsUint64(key string, defaultValue uint64) uint64 {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseUint(valueStr, 10, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsDuration gets an environment variable as a duration with a default value
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsList splits a comma separated variable, dropping blanks
func getEnvAsList(key string) []string {
	var out []string
	for _, part := range strings.Split(getEnv(key, ""), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
