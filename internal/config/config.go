// Package config loads runtime configuration from CUE files validated
// against an embedded schema.
package config

import (
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/uniflow/internal/effect"
)

//go:embed schema.cue
var schemaCUE string

// Config is the resolved runtime configuration.
type Config struct {
	Executor ExecutorConfig `json:"executor"`
	Log      LogConfig      `json:"log"`
	Store    StoreConfig    `json:"store"`
}

type ExecutorConfig struct {
	CatchErrors    bool   `json:"catch_errors"`
	MaxConcurrency int64  `json:"max_concurrency"`
	Retire         string `json:"retire"`
}

type LogConfig struct {
	Level string `json:"level"`
}

type StoreConfig struct {
	Path string `json:"path"`
}

// ConfigError is a configuration error with its CUE source position.
type ConfigError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *ConfigError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Default returns the configuration an empty file resolves to.
func Default() Config {
	cfg, err := Parse(nil, "default.cue")
	if err != nil {
		panic(fmt.Sprintf("config: embedded schema is invalid: %v", err))
	}
	return cfg
}

// Load reads and validates the CUE file at path.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	return Parse(data, path)
}

// Parse validates CUE source against #Config and resolves defaults.
func Parse(data []byte, filename string) (Config, error) {
	ctx := cuecontext.New()

	schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return Config{}, formatCUEError(err)
	}

	src := ctx.CompileBytes(data, cue.Filename(filename))
	if err := src.Err(); err != nil {
		return Config{}, formatCUEError(err)
	}

	v := schema.LookupPath(cue.ParsePath("#Config")).Unify(src)
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return Config{}, formatCUEError(err)
	}

	var cfg Config
	var err error
	if cfg.Executor.CatchErrors, err = lookup(v, "executor.catch_errors").Bool(); err != nil {
		return Config{}, formatCUEError(err)
	}
	if cfg.Executor.MaxConcurrency, err = lookup(v, "executor.max_concurrency").Int64(); err != nil {
		return Config{}, formatCUEError(err)
	}
	if cfg.Executor.Retire, err = lookup(v, "executor.retire").String(); err != nil {
		return Config{}, formatCUEError(err)
	}
	if cfg.Log.Level, err = lookup(v, "log.level").String(); err != nil {
		return Config{}, formatCUEError(err)
	}
	if cfg.Store.Path, err = lookup(v, "store.path").String(); err != nil {
		return Config{}, formatCUEError(err)
	}
	return cfg, nil
}

func lookup(v cue.Value, path string) cue.Value {
	field := v.LookupPath(cue.ParsePath(path))
	if d, ok := field.Default(); ok {
		return d
	}
	return field
}

// RetirePolicy maps executor.retire to an effect.RetirePolicy.
func (c Config) RetirePolicy() effect.RetirePolicy {
	if c.Executor.Retire == "cancel" {
		return effect.RetireCancel
	}
	return effect.RetireKeep
}

// ExecutorOptions converts the executor section to effect options.
func (c Config) ExecutorOptions() []effect.Option {
	return []effect.Option{
		effect.WithCatchErrors(c.Executor.CatchErrors),
		effect.WithMaxConcurrency(c.Executor.MaxConcurrency),
		effect.WithRetirePolicy(c.RetirePolicy()),
	}
}

// SlogLevel maps log.level to a slog.Level.
func (c Config) SlogLevel() slog.Level {
	switch c.Log.Level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	first := errs[0]
	field := "config"
	if path := first.Path(); len(path) > 0 {
		field = strings.Join(path, ".")
	}
	msg, args := first.Msg()
	ce := &ConfigError{Field: field, Message: fmt.Sprintf(msg, args...)}
	if positions := errors.Positions(first); len(positions) > 0 {
		ce.Pos = positions[0]
	}
	return ce
}
