// Package config provides layered configuration loading from CLI flags,
// environment variables, and compiled defaults, following spec.md §6's
// key list (port, concurrency bound, cache expiration, cache dir, solver
// backend selection).
//
// Grounded on the otterscale agent's config package: a viper instance
// with compiled defaults, an env prefix, and pflag-bound overrides —
// generalized from that project's server/agent option split down to
// this service's single flat option set.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const envPrefix = "RATTLER_SERVER"

const (
	keyPort                      = "port"
	keyConcurrentDownloads       = "concurrent_repodata_downloads_per_request"
	keyCacheExpirationSeconds    = "repodata_cache_expiration_seconds"
	keyCacheDir                  = "cache_dir"
	keySolverBackend             = "solver"
)

// Option describes one configuration entry: its viper key, CLI flag name,
// compiled default, and help text.
type Option struct {
	Key         string
	Flag        string
	Default     any
	Description string
}

// Options is every configuration entry this service exposes (spec.md
// §6).
var Options = []Option{
	{Key: keyPort, Flag: "port", Default: 3000, Description: "HTTP listen port"},
	{Key: keyConcurrentDownloads, Flag: "concurrent-repodata-downloads-per-request", Default: 1, Description: "Concurrency bound for index fetches within a single request"},
	{Key: keyCacheExpirationSeconds, Flag: "repodata-cache-expiration-seconds", Default: 1800, Description: "Freshness window, in seconds, for cached package indices"},
	{Key: keyCacheDir, Flag: "cache-dir", Default: defaultCacheDir(), Description: "Directory used for any on-disk cache artifacts"},
	{Key: keySolverBackend, Flag: "solver", Default: "portable", Description: "Solver backend to use (portable, noop)"},
}

// Config wraps a viper instance and exposes typed accessors for every
// known key.
type Config struct {
	v *viper.Viper
}

// New loads configuration from environment variables and compiled
// defaults. Call BindFlags before parsing CLI flags if flag overrides are
// wanted; flags take the highest priority once bound.
func New() *Config {
	v := viper.New()
	for _, o := range Options {
		v.SetDefault(o.Key, o.Default)
	}

	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	return &Config{v: v}
}

// BindFlags registers a CLI flag for every Option on fs and binds it to
// the underlying viper key, so a parsed flag overrides the environment
// and compiled default.
func (c *Config) BindFlags(fs *pflag.FlagSet) error {
	for _, o := range Options {
		switch d := o.Default.(type) {
		case string:
			fs.String(o.Flag, d, o.Description)
		case int:
			fs.Int(o.Flag, d, o.Description)
		case time.Duration:
			fs.Duration(o.Flag, d, o.Description)
		default:
			return fmt.Errorf("config: unsupported default type for key %s", o.Key)
		}
		if err := c.v.BindPFlag(o.Key, fs.Lookup(o.Flag)); err != nil {
			return fmt.Errorf("config: bind flag %s: %w", o.Flag, err)
		}
	}
	return nil
}

// Port returns the HTTP listen port.
func (c *Config) Port() int { return c.v.GetInt(keyPort) }

// ConcurrentDownloadsPerRequest returns the configured fan-out bound for
// index fetches within a single request (spec.md §4.5 "concurrency bound
// of N").
func (c *Config) ConcurrentDownloadsPerRequest() int {
	n := c.v.GetInt(keyConcurrentDownloads)
	if n < 1 {
		return 1
	}
	return n
}

// CacheExpiration returns the freshness window for cached indices.
func (c *Config) CacheExpiration() time.Duration {
	return time.Duration(c.v.GetInt(keyCacheExpirationSeconds)) * time.Second
}

// CacheDir returns the directory configured for on-disk cache artifacts.
func (c *Config) CacheDir() string { return c.v.GetString(keyCacheDir) }

// SolverBackend returns the configured solver backend name.
func (c *Config) SolverBackend() string { return c.v.GetString(keySolverBackend) }

func defaultCacheDir() string {
	return "/var/cache/rattler-server"
}
