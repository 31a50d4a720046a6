// Package config loads catalogctl settings from a YAML file, environment
// variables prefixed STRATA_ and bound command flags, in increasing order of
// precedence.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/goliatone/go-strata"
)

// Supported derived-default engines.
const (
	EvaluatorExpr = "expr"
	EvaluatorCEL  = "cel"
	EvaluatorJS   = "js"
)

// Config is the resolved catalogctl configuration.
type Config struct {
	// Definitions are definition files applied to DefinitionLayer at start.
	Definitions     []string      `mapstructure:"definitions"`
	DefinitionLayer string        `mapstructure:"definition_layer"`
	Layers          []LayerConfig `mapstructure:"layers"`
	Store           StoreConfig   `mapstructure:"store"`
	Log             LogConfig     `mapstructure:"log"`
	Evaluator       string        `mapstructure:"evaluator"`
	Watch           WatchConfig   `mapstructure:"watch"`
}

// LayerConfig registers an extra layer next to the well-known ones.
type LayerConfig struct {
	Name     string `mapstructure:"name"`
	Label    string `mapstructure:"label"`
	Priority int    `mapstructure:"priority"`
}

// StoreConfig points at the sqlite database holding persisted layers.
type StoreConfig struct {
	Path   string   `mapstructure:"path"`
	Layers []string `mapstructure:"layers"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type WatchConfig struct {
	Debounce time.Duration `mapstructure:"debounce"`
}

// Defaults returns the configuration used when nothing is set.
func Defaults() Config {
	return Config{
		DefinitionLayer: strata.LayerSharedDefinition,
		Store: StoreConfig{
			Layers: []string{strata.LayerUserEdit},
		},
		Log: LogConfig{
			Level:  "warn",
			Format: "text",
		},
		Evaluator: EvaluatorExpr,
		Watch: WatchConfig{
			Debounce: 250 * time.Millisecond,
		},
	}
}

// SetDefaults registers Defaults on v.
func SetDefaults(v *viper.Viper) {
	d := Defaults()
	v.SetDefault("definitions", d.Definitions)
	v.SetDefault("definition_layer", d.DefinitionLayer)
	v.SetDefault("store.path", d.Store.Path)
	v.SetDefault("store.layers", d.Store.Layers)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
	v.SetDefault("evaluator", d.Evaluator)
	v.SetDefault("watch.debounce", d.Watch.Debounce)
}

// Load reads path into v, or looks for .strata.yaml in the working directory
// when path is empty, and returns the validated configuration. A missing
// default file is not an error.
func Load(v *viper.Viper, path string) (Config, error) {
	if v == nil {
		v = viper.New()
	}
	SetDefaults(v)
	v.SetEnvPrefix("STRATA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName(".strata")
		v.SetConfigType("yaml")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("config: read: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: decode: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the values that cannot be checked by decoding alone.
func (c Config) Validate() error {
	if !slices.Contains([]string{EvaluatorExpr, EvaluatorCEL, EvaluatorJS}, c.Evaluator) {
		return fmt.Errorf("config: unknown evaluator %q", c.Evaluator)
	}
	if _, err := c.SlogLevel(); err != nil {
		return err
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		return fmt.Errorf("config: unknown log format %q", c.Log.Format)
	}
	seen := map[string]struct{}{}
	for _, layer := range c.Layers {
		if layer.Name == "" {
			return fmt.Errorf("config: layer name is required")
		}
		if _, ok := seen[layer.Name]; ok {
			return fmt.Errorf("config: layer %q declared twice", layer.Name)
		}
		seen[layer.Name] = struct{}{}
	}
	return nil
}

// SlogLevel parses Log.Level.
func (c Config) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return 0, fmt.Errorf("config: log level: %w", err)
	}
	return level, nil
}

// Scopes returns the configured extra layers.
func (c Config) Scopes() []strata.Scope {
	out := make([]strata.Scope, 0, len(c.Layers))
	for _, layer := range c.Layers {
		var opts []strata.ScopeOption
		if layer.Label != "" {
			opts = append(opts, strata.WithScopeLabel(layer.Label))
		}
		out = append(out, strata.NewScope(layer.Name, layer.Priority, opts...))
	}
	return out
}
