// Package config loads the engine's typed configuration from the
// environment: per-section sub-structs, a godotenv-backed Load(), and
// Default*Config() constructors callers can start from in tests without
// touching the environment at all.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/ashgroveq/mtfengine/internal/models"
)

// Config holds everything the engine needs to run one backtest instance.
type Config struct {
	// Common
	Environment string
	LogLevel    string

	// Engine holds the core's own knobs.
	Engine EngineConfig

	// Redis backs the optional distributed EventRelay and
	// PositionStateStore in internal/pubsub; the core runs without it
	// when Enabled is false.
	Redis RedisConfig

	// Checkpoint controls where and how often checkpoints are written.
	Checkpoint CheckpointConfig
}

// EngineConfig holds the core engine knobs.
type EngineConfig struct {
	BarHistoryLimit   int
	MaxSymbols        int
	MaxMemoryMB       int
	EnabledTimeframes []models.Timeframe
	ParallelThreshold int
}

// DefaultEngineConfig returns the documented defaults.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		BarHistoryLimit:   1000,
		MaxSymbols:        10,
		MaxMemoryMB:       1000,
		EnabledTimeframes: append([]models.Timeframe{}, models.AllTimeframes...),
		ParallelThreshold: 5,
	}
}

// CheckpointConfig controls checkpoint cadence, rotation, and compression.
type CheckpointConfig struct {
	Dir                string
	BacktestID         string // empty means a fresh random ID per run
	IntervalSecs       int
	TicksPerCheckpoint int64
	MaxCheckpoints     int
	CompressionLevel   int
	EnableAuto         bool
}

// DefaultCheckpointConfig returns the documented defaults, including the
// tick-count trigger (1,000,000 ticks since the last checkpoint).
func DefaultCheckpointConfig() CheckpointConfig {
	return CheckpointConfig{
		Dir:                "./checkpoints",
		IntervalSecs:       60,
		TicksPerCheckpoint: 1_000_000,
		MaxCheckpoints:     5,
		CompressionLevel:   6,
		EnableAuto:         true,
	}
}

// RedisConfig holds connection settings for the optional distributed
// relay/state-store in internal/pubsub.
type RedisConfig struct {
	Enabled      bool
	Host         string
	Port         int
	Password     string
	DB           int
	PoolSize     int
	MinIdleConns int
	StreamName   string
}

// DefaultRedisConfig returns a disabled-by-default Redis config; the relay
// is purely additive, so the core must run without Redis
// present at all.
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Enabled:      false,
		Host:         "localhost",
		Port:         6379,
		Password:     "",
		DB:           0,
		PoolSize:     10,
		MinIdleConns: 5,
		StreamName:   "mtfengine.events",
	}
}

// Load loads configuration from environment variables, loading a .env file
// first if one is present (ignored if absent).
func Load() (*Config, error) {
	_ = godotenv.Load()

	engine := DefaultEngineConfig()
	engine.BarHistoryLimit = getEnvAsInt("ENGINE_BAR_HISTORY_LIMIT", engine.BarHistoryLimit)
	engine.MaxSymbols = getEnvAsInt("ENGINE_MAX_SYMBOLS", engine.MaxSymbols)
	engine.MaxMemoryMB = getEnvAsInt("ENGINE_MAX_MEMORY_MB", engine.MaxMemoryMB)
	engine.ParallelThreshold = getEnvAsInt("ENGINE_PARALLEL_THRESHOLD", engine.ParallelThreshold)
	if tfs, err := parseTimeframeSlice(getEnv("ENGINE_ENABLED_TIMEFRAMES", "")); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	} else if len(tfs) > 0 {
		engine.EnabledTimeframes = tfs
	}

	checkpoint := DefaultCheckpointConfig()
	checkpoint.Dir = getEnv("CHECKPOINT_DIR", checkpoint.Dir)
	checkpoint.BacktestID = getEnv("CHECKPOINT_BACKTEST_ID", checkpoint.BacktestID)
	checkpoint.IntervalSecs = getEnvAsInt("CHECKPOINT_INTERVAL_SECS", checkpoint.IntervalSecs)
	checkpoint.TicksPerCheckpoint = getEnvAsInt64("CHECKPOINT_TICKS_PER_CHECKPOINT", checkpoint.TicksPerCheckpoint)
	checkpoint.MaxCheckpoints = getEnvAsInt("CHECKPOINT_MAX_CHECKPOINTS", checkpoint.MaxCheckpoints)
	checkpoint.CompressionLevel = getEnvAsInt("CHECKPOINT_COMPRESSION_LEVEL", checkpoint.CompressionLevel)
	checkpoint.EnableAuto = getEnvAsBool("CHECKPOINT_ENABLE_AUTO", checkpoint.EnableAuto)

	redis := DefaultRedisConfig()
	redis.Enabled = getEnvAsBool("REDIS_ENABLED", redis.Enabled)
	redis.Host = getEnv("REDIS_HOST", redis.Host)
	redis.Port = getEnvAsInt("REDIS_PORT", redis.Port)
	redis.Password = getEnv("REDIS_PASSWORD", redis.Password)
	redis.DB = getEnvAsInt("REDIS_DB", redis.DB)
	redis.PoolSize = getEnvAsInt("REDIS_POOL_SIZE", redis.PoolSize)
	redis.MinIdleConns = getEnvAsInt("REDIS_MIN_IDLE_CONNS", redis.MinIdleConns)
	redis.StreamName = getEnv("REDIS_STREAM_NAME", redis.StreamName)

	cfg := &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		Engine:      engine,
		Redis:       redis,
		Checkpoint:  checkpoint,
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// Validate checks the subset of options whose values would otherwise fail
// silently or confusingly deep inside the engine.
func (c *Config) Validate() error {
	if c.Engine.MaxSymbols <= 0 {
		return fmt.Errorf("ENGINE_MAX_SYMBOLS must be positive")
	}
	if c.Engine.BarHistoryLimit <= 0 {
		return fmt.Errorf("ENGINE_BAR_HISTORY_LIMIT must be positive")
	}
	if len(c.Engine.EnabledTimeframes) == 0 {
		return fmt.Errorf("ENGINE_ENABLED_TIMEFRAMES must not be empty")
	}
	if c.Checkpoint.MaxCheckpoints <= 0 {
		return fmt.Errorf("CHECKPOINT_MAX_CHECKPOINTS must be positive")
	}
	if c.Redis.Enabled && c.Redis.Host == "" {
		return fmt.Errorf("REDIS_HOST is required when REDIS_ENABLED is true")
	}
	return nil
}

func parseTimeframeSlice(value string) ([]models.Timeframe, error) {
	if value == "" {
		return nil, nil
	}
	tokens := strings.Split(value, ",")
	out := make([]models.Timeframe, 0, len(tokens))
	for _, tok := range tokens {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			continue
		}
		tf, err := models.ParseTimeframe(tok)
		if err != nil {
			return nil, err
		}
		out = append(out, tf)
	}
	return out, nil
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	intValue, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return intValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	intValue, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return defaultValue
	}
	return intValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	boolValue, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}
	return boolValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	duration, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}
	return duration
}
