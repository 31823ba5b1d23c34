package config

import (
	"errors"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/uniflow/internal/effect"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, Config{
		Executor: ExecutorConfig{CatchErrors: true, MaxConcurrency: 0, Retire: "keep"},
		Log:      LogConfig{Level: "info"},
		Store:    StoreConfig{Path: ""},
	}, cfg)
	assert.Equal(t, effect.RetireKeep, cfg.RetirePolicy())
	assert.Equal(t, slog.LevelInfo, cfg.SlogLevel())
}

func TestLoad_Full(t *testing.T) {
	cfg, err := Load(filepath.Join("testdata", "full.cue"))
	require.NoError(t, err)

	assert.False(t, cfg.Executor.CatchErrors)
	assert.Equal(t, int64(4), cfg.Executor.MaxConcurrency)
	assert.Equal(t, effect.RetireCancel, cfg.RetirePolicy())
	assert.Equal(t, slog.LevelDebug, cfg.SlogLevel())
	assert.Equal(t, "journal.db", cfg.Store.Path)
	assert.Len(t, cfg.ExecutorOptions(), 3)
}

func TestLoad_PartialKeepsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join("testdata", "partial.cue"))
	require.NoError(t, err)

	assert.Equal(t, int64(2), cfg.Executor.MaxConcurrency)
	assert.True(t, cfg.Executor.CatchErrors)
	assert.Equal(t, "keep", cfg.Executor.Retire)
}

func TestLoad_UnknownFieldRejected(t *testing.T) {
	_, err := Load(filepath.Join("testdata", "unknown_field.cue"))
	require.Error(t, err)

	var ce *ConfigError
	require.True(t, errors.As(err, &ce), "got %T: %v", err, err)
	assert.Contains(t, ce.Error(), "retries")
}

func TestLoad_BadEnumRejected(t *testing.T) {
	_, err := Load(filepath.Join("testdata", "bad_retire.cue"))
	assert.Error(t, err)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join("testdata", "nope.cue"))
	assert.ErrorContains(t, err, "read config")
}

func TestParse_NegativeConcurrency(t *testing.T) {
	_, err := Parse([]byte(`executor: max_concurrency: -1`), "neg.cue")
	assert.Error(t, err)
}

func TestParse_SyntaxError(t *testing.T) {
	_, err := Parse([]byte(`executor: {`), "broken.cue")

	var ce *ConfigError
	require.True(t, errors.As(err, &ce))
	assert.True(t, ce.Pos.IsValid())
	assert.Contains(t, ce.Error(), "broken.cue")
}

func TestExecutorOptions_Applied(t *testing.T) {
	cfg, err := Parse([]byte(`executor: catch_errors: false`), "x.cue")
	require.NoError(t, err)

	// Options must be accepted by the executor constructor.
	x := effect.New(effect.HandlerFunc(nil), cfg.ExecutorOptions()...)
	defer x.Stop()
	assert.False(t, x.Stopped())
}

func TestConfigError_Format(t *testing.T) {
	e := &ConfigError{Field: "executor.retire", Message: "bad value"}
	assert.Equal(t, "executor.retire: bad value", e.Error())
}
