// Package config loads cache settings from YAML.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"gopkg.in/yaml.v3"

	"github.com/IvanBrykalov/policycache/cache"
)

// ErrMaximumCapacity is returned for the unsupported maximum-capacity key.
// Entry sizes are bounded with maximum-volume instead.
var ErrMaximumCapacity = errors.New("config: maximum-capacity is not supported, use maximum-volume")

// Config is the YAML document.
type Config struct {
	Name       string     `yaml:"name"`
	Eviction   Eviction   `yaml:"eviction"`
	Expiration Expiration `yaml:"expiration"`
	Log        Log        `yaml:"log"`
	Metrics    Metrics    `yaml:"metrics"`
}

// Eviction holds limits and the replacement policy. Zero limits are unlimited.
type Eviction struct {
	Policy                  string        `yaml:"policy"`
	MaximumSize             int           `yaml:"maximum-size"`
	MaximumVolume           int64         `yaml:"maximum-volume"`
	MaximumEntrySize        int64         `yaml:"maximum-entry-size"`
	PreferableSize          int           `yaml:"preferable-size"`
	PreferableVolume        int64         `yaml:"preferable-volume"`
	ScheduledEvictionPeriod time.Duration `yaml:"scheduled-eviction-period"`

	// Recognized only to be rejected.
	MaximumCapacity *int64 `yaml:"maximum-capacity"`
}

type Expiration struct {
	DefaultTTL   time.Duration `yaml:"default-ttl"`
	RefreshAfter time.Duration `yaml:"refresh-after"`
}

type Log struct {
	// Level is one of debug, info, warn, error, none.
	Level string `yaml:"level"`
}

type Metrics struct {
	Namespace string `yaml:"namespace"`
	Subsystem string `yaml:"subsystem"`
	// Listen is the address for /metrics; empty disables the endpoint.
	Listen string `yaml:"listen"`
}

// Default returns the configuration used for missing keys.
func Default() Config {
	return Config{
		Eviction: Eviction{Policy: cache.PolicyLRU.String()},
		Log:      Log{Level: "info"},
		Metrics:  Metrics{Namespace: "policycache"},
	}
}

// Parse decodes a YAML document over Default and validates it.
// Unknown keys are errors.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("config: decode: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Load reads and parses the file at path.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(data)
}

// Validate checks the policy name, the log level and every limit.
func (c Config) Validate() error {
	if c.Eviction.MaximumCapacity != nil {
		return ErrMaximumCapacity
	}
	if _, err := cache.ParsePolicyKind(c.Eviction.Policy); err != nil {
		return fmt.Errorf("config: eviction.policy: %w", err)
	}
	if _, err := levelOption(c.Log.Level); err != nil {
		return err
	}
	opt := Options[string, struct{}](c)
	if err := opt.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// Options converts c into cache options. Collaborators that YAML cannot
// express (loader, sizers, observers, logger) are left for the caller.
// An unknown policy name yields the zero PolicyKind; call Validate first.
func Options[K comparable, V any](c Config) cache.Options[K, V] {
	kind, _ := cache.ParsePolicyKind(c.Eviction.Policy)
	return cache.Options[K, V]{
		Name:                    c.Name,
		PolicyKind:              kind,
		MaximumSize:             c.Eviction.MaximumSize,
		MaximumVolume:           c.Eviction.MaximumVolume,
		MaximumEntrySize:        c.Eviction.MaximumEntrySize,
		PreferableSize:          c.Eviction.PreferableSize,
		PreferableVolume:        c.Eviction.PreferableVolume,
		ScheduledEvictionPeriod: c.Eviction.ScheduledEvictionPeriod,
		DefaultTTL:              c.Expiration.DefaultTTL,
		RefreshAfter:            c.Expiration.RefreshAfter,
	}
}

// Filter wraps logger so that only records at or above the configured
// level pass.
func (l Log) Filter(logger log.Logger) log.Logger {
	opt, err := levelOption(l.Level)
	if err != nil {
		opt = level.AllowInfo()
	}
	return level.NewFilter(logger, opt)
}

func levelOption(name string) (level.Option, error) {
	switch strings.ToLower(name) {
	case "debug":
		return level.AllowDebug(), nil
	case "", "info":
		return level.AllowInfo(), nil
	case "warn", "warning":
		return level.AllowWarn(), nil
	case "error":
		return level.AllowError(), nil
	case "none":
		return level.AllowNone(), nil
	}
	return nil, fmt.Errorf("config: log.level: unknown level %q", name)
}
