package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashgroveq/mtfengine/internal/models"
)

func TestDefaultEngineConfig(t *testing.T) {
	cfg := DefaultEngineConfig()
	assert.Equal(t, 1000, cfg.BarHistoryLimit)
	assert.Equal(t, 10, cfg.MaxSymbols)
	assert.Equal(t, 1000, cfg.MaxMemoryMB)
	assert.Equal(t, 5, cfg.ParallelThreshold)
	assert.Len(t, cfg.EnabledTimeframes, 6)
}

func TestDefaultCheckpointConfig(t *testing.T) {
	cfg := DefaultCheckpointConfig()
	assert.Equal(t, 60, cfg.IntervalSecs)
	assert.Equal(t, int64(1_000_000), cfg.TicksPerCheckpoint)
	assert.Equal(t, 5, cfg.MaxCheckpoints)
	assert.Equal(t, 6, cfg.CompressionLevel)
	assert.True(t, cfg.EnableAuto)
}

func TestValidate_CatchesBadValues(t *testing.T) {
	good := &Config{
		Engine:     DefaultEngineConfig(),
		Redis:      DefaultRedisConfig(),
		Checkpoint: DefaultCheckpointConfig(),
	}
	require.NoError(t, good.Validate())

	noSymbols := *good
	noSymbols.Engine.MaxSymbols = 0
	assert.Error(t, noSymbols.Validate())

	noTimeframes := *good
	noTimeframes.Engine = DefaultEngineConfig()
	noTimeframes.Engine.EnabledTimeframes = nil
	assert.Error(t, noTimeframes.Validate())

	redisNoHost := *good
	redisNoHost.Redis.Enabled = true
	redisNoHost.Redis.Host = ""
	assert.Error(t, redisNoHost.Validate())
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("ENGINE_MAX_SYMBOLS", "3")
	t.Setenv("ENGINE_ENABLED_TIMEFRAMES", "1m,5m")
	t.Setenv("CHECKPOINT_ENABLE_AUTO", "false")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Engine.MaxSymbols)
	assert.Equal(t, []models.Timeframe{models.M1, models.M5}, cfg.Engine.EnabledTimeframes)
	assert.False(t, cfg.Checkpoint.EnableAuto)
}

func TestLoad_RejectsUnknownTimeframeToken(t *testing.T) {
	t.Setenv("ENGINE_ENABLED_TIMEFRAMES", "1m,2m")
	_, err := Load()
	assert.Error(t, err)
}
