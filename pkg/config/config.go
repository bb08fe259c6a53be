// Package config holds the tool configuration of pipo.
//
// Configuration is layered. [Default] supplies every value, a TOML file
// overrides it, and PIPO_* environment variables override the file. The
// file is either a project's pipo.toml, read from its [tool] table, or a
// standalone file passed with --config that uses the same [tool] layout:
//
//	[tool.server]
//	addr = "localhost:5173"
//	watch = true
//	poll_interval = "250ms"
//
//	[tool.compiler]
//	default = "esbuild"
//	jsx = "automatic"
//
//	[tool.cdn]
//	base = "https://esm.sh"
//	pin = true
//
//	[tool.store]
//	backend = "redis"
//	redis_url = "redis://localhost:6379/0"
//
// Variables from a .env file are used when the process environment does not
// set them. A Config is passed explicitly to the components that need it;
// there is no package-level instance.
package config

import (
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/charmbracelet/log"
	"github.com/redis/go-redis/v9"

	"github.com/matzehuels/pipo/pkg/cdn"
	"github.com/matzehuels/pipo/pkg/compiler"
	"github.com/matzehuels/pipo/pkg/errors"
	"github.com/matzehuels/pipo/pkg/integrations/npm"
	"github.com/matzehuels/pipo/pkg/modules"
)

// Store backends.
const (
	StoreMemory = "memory"
	StoreRedis  = "redis"
)

// =============================================================================
// Types
// =============================================================================

// Config is the complete tool configuration.
type Config struct {
	Server   Server   `toml:"server"`
	Compiler Compiler `toml:"compiler"`
	CDN      CDN      `toml:"cdn"`
	Store    Store    `toml:"store"`
	Log      Log      `toml:"log"`
}

// Server configures pipo serve.
type Server struct {
	Addr         string   `toml:"addr"`
	Watch        bool     `toml:"watch"`
	PollInterval Duration `toml:"poll_interval"`
}

// Compiler selects the default backend and its options.
type Compiler struct {
	Default string `toml:"default"`
	compiler.Options
}

// CDN configures external dependency resolution.
type CDN struct {
	Base      string   `toml:"base"`
	Target    string   `toml:"target"`
	Bundle    bool     `toml:"bundle"`
	KeepNames bool     `toml:"keep_names"`
	Pin       bool     `toml:"pin"` // resolve dist-tags through the registry
	Registry  string   `toml:"registry"`
	CacheTTL  Duration `toml:"cache_ttl"`
}

// Store selects where compiled modules live.
type Store struct {
	Backend  string   `toml:"backend"`
	RedisURL string   `toml:"redis_url"`
	Prefix   string   `toml:"prefix"`
	TTL      Duration `toml:"ttl"`
}

// Log configures the logger.
type Log struct {
	Level string `toml:"level"`
}

// Duration is a time.Duration written as a string such as "250ms".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(string(b))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// =============================================================================
// Defaults
// =============================================================================

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		Server: Server{
			Addr:         "localhost:5173",
			PollInterval: Duration{250 * time.Millisecond},
		},
		Compiler: Compiler{
			Default: compiler.ESBuildName,
			Options: compiler.DefaultOptions(),
		},
		CDN: CDN{
			Base:     cdn.DefaultBase,
			Target:   cdn.DefaultTarget,
			Registry: npm.DefaultRegistry,
			CacheTTL: Duration{time.Hour},
		},
		Store: Store{
			Backend: StoreMemory,
			Prefix:  "pipo:",
			TTL:     Duration{modules.DefaultRedisTTL},
		},
		Log: Log{Level: "info"},
	}
}

// =============================================================================
// Loading
// =============================================================================

// Load returns the configuration for path and dotenv. An empty path skips
// the file and a missing dotenv file is ignored; a missing config file is an
// error.
func Load(path, dotenv string) (*Config, error) {
	cfg := Default()
	if path != "" {
		if err := cfg.decodeFile(path); err != nil {
			return nil, err
		}
	}
	env, err := readDotenv(dotenv)
	if err != nil {
		return nil, err
	}
	if err := cfg.applyEnv(lookup(env)); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// sections of pipo.toml that belong to the project manifest.
var manifestSections = []string{"project", "dependencies"}

func (c *Config) decodeFile(path string) error {
	var doc struct {
		Tool toml.Primitive `toml:"tool"`
	}
	meta, err := toml.DecodeFile(path, &doc)
	if err != nil {
		return errors.Wrap(errors.ErrCodeInvalidInput, err, "read config %s", path)
	}
	if meta.IsDefined("tool") {
		if err := meta.PrimitiveDecode(doc.Tool, c); err != nil {
			return errors.Wrap(errors.ErrCodeInvalidInput, err, "decode [tool] in %s", path)
		}
	}
	for _, key := range meta.Undecoded() {
		if len(key) > 0 && slices.Contains(manifestSections, key[0]) {
			continue
		}
		return errors.New(errors.ErrCodeInvalidInput, "%s: unknown config key %s", path, key)
	}
	return nil
}

// =============================================================================
// Environment
// =============================================================================

// EnvPrefix prefixes every environment variable read by [Load].
const EnvPrefix = "PIPO_"

// envVars maps variable names, without [EnvPrefix], to setters.
var envVars = []struct {
	name  string
	apply func(c *Config, v string) error
}{
	{"ADDR", func(c *Config, v string) error { c.Server.Addr = v; return nil }},
	{"WATCH", func(c *Config, v string) error { return setBool(&c.Server.Watch, v) }},
	{"POLL_INTERVAL", func(c *Config, v string) error { return c.Server.PollInterval.UnmarshalText([]byte(v)) }},
	{"COMPILER", func(c *Config, v string) error { c.Compiler.Default = v; return nil }},
	{"JSX", func(c *Config, v string) error { c.Compiler.JSX = compiler.JSXRuntime(v); return nil }},
	{"TARGET", func(c *Config, v string) error { c.Compiler.Target = v; return nil }},
	{"WASM_MODULE", func(c *Config, v string) error { c.Compiler.Module = v; return nil }},
	{"CDN_BASE", func(c *Config, v string) error { c.CDN.Base = v; return nil }},
	{"CDN_BUNDLE", func(c *Config, v string) error { return setBool(&c.CDN.Bundle, v) }},
	{"PIN", func(c *Config, v string) error { return setBool(&c.CDN.Pin, v) }},
	{"NPM_REGISTRY", func(c *Config, v string) error { c.CDN.Registry = v; return nil }},
	{"STORE", func(c *Config, v string) error { c.Store.Backend = v; return nil }},
	{"REDIS_URL", func(c *Config, v string) error { c.Store.RedisURL = v; return nil }},
	{"LOG_LEVEL", func(c *Config, v string) error { c.Log.Level = v; return nil }},
}

func (c *Config) applyEnv(get func(string) (string, bool)) error {
	for _, e := range envVars {
		v, ok := get(EnvPrefix + e.name)
		if !ok {
			continue
		}
		if err := e.apply(c, strings.TrimSpace(v)); err != nil {
			return errors.Wrap(errors.ErrCodeInvalidInput, err, "%s%s", EnvPrefix, e.name)
		}
	}
	return nil
}

// lookup reads the process environment first and falls back to dotenv.
func lookup(dotenv map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		if v, ok := os.LookupEnv(key); ok {
			return v, true
		}
		v, ok := dotenv[key]
		return v, ok
	}
}

func setBool(dst *bool, v string) error {
	switch strings.ToLower(v) {
	case "1", "true", "yes", "on":
		*dst = true
	case "0", "false", "no", "off", "":
		*dst = false
	default:
		return fmt.Errorf("invalid boolean %q", v)
	}
	return nil
}

// =============================================================================
// Validation
// =============================================================================

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return errors.New(errors.ErrCodeInvalidInput, "server address cannot be empty")
	}
	if c.Server.PollInterval.Duration <= 0 {
		return errors.New(errors.ErrCodeInvalidInput, "poll interval must be positive")
	}
	if c.Compiler.Default == "" {
		return errors.New(errors.ErrCodeInvalidInput, "no default compiler")
	}
	switch c.Compiler.JSX {
	case "", compiler.JSXClassic, compiler.JSXAutomatic:
	default:
		return errors.New(errors.ErrCodeInvalidInput, "unknown jsx runtime %q", c.Compiler.JSX)
	}
	if err := errors.ValidateURL(c.CDN.Base); err != nil {
		return err
	}
	if c.CDN.Pin {
		if err := errors.ValidateURL(c.CDN.Registry); err != nil {
			return err
		}
	}
	switch c.Store.Backend {
	case StoreMemory:
	case StoreRedis:
		if _, err := c.Store.Redis(); err != nil {
			return err
		}
	default:
		return errors.New(errors.ErrCodeInvalidInput, "unknown store backend %q", c.Store.Backend)
	}
	if _, err := log.ParseLevel(c.Log.Level); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidInput, err, "log level")
	}
	return nil
}

// =============================================================================
// Component Settings
// =============================================================================

// Redis returns the connection settings for the redis store.
func (s Store) Redis() (modules.RedisConfig, error) {
	if s.RedisURL == "" {
		return modules.RedisConfig{}, errors.New(errors.ErrCodeInvalidInput, "redis store requires redis_url")
	}
	opts, err := redis.ParseURL(s.RedisURL)
	if err != nil {
		return modules.RedisConfig{}, errors.Wrap(errors.ErrCodeInvalidInput, err, "redis_url")
	}
	return modules.RedisConfig{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
		Prefix:   s.Prefix,
		TTL:      s.TTL.Duration,
	}, nil
}

// Resolver returns a CDN resolver for these settings.
func (c CDN) Resolver() *cdn.Resolver {
	r := cdn.NewResolver()
	r.Base = c.Base
	if c.Target != "" {
		r.Target = c.Target
	}
	r.Bundle = c.Bundle
	r.KeepNames = c.KeepNames
	return r
}

// ParseLevel returns the log level, info when it cannot be parsed.
func (l Log) ParseLevel() log.Level {
	lvl, err := log.ParseLevel(l.Level)
	if err != nil {
		return log.InfoLevel
	}
	return lvl
}
