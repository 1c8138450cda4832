package codesearch

import (
	"fmt"
	"time"
)

const (
	// DefaultAPIURL is the Bitbucket Cloud REST API root.
	DefaultAPIURL = "https://api.bitbucket.org/2.0"
	// DefaultMaxPages bounds how many paginated search requests are issued
	// for a single query.
	DefaultMaxPages = 100
	// DefaultCacheDir is where cached page responses are stored.
	DefaultCacheDir = "cache"
	// DefaultCacheTTL is how long a cached page response stays valid.
	DefaultCacheTTL = time.Hour
)

// Config carries everything the Bitbucket client needs. Credentials
// typically come from the APP_USERNAME and APP_PASSWORD environment
// variables or from the configuration file; empty credentials yield
// unauthenticated requests, which the remote service is likely to reject.
type Config struct {
	APIURL    string        `mapstructure:"api_url"`
	Workspace string        `mapstructure:"workspace"`
	Username  string        `mapstructure:"username"`
	Password  string        `mapstructure:"password"`
	MaxPages  int           `mapstructure:"max_pages"`
	CacheDir  string        `mapstructure:"cache_dir"`
	CacheTTL  time.Duration `mapstructure:"cache_ttl"`
	NoCache   bool          `mapstructure:"no_cache"`
}

func (c *Config) Validate() error {
	if c.Workspace == "" {
		return fmt.Errorf("missing workspace name")
	}
	if c.MaxPages < 1 {
		return fmt.Errorf("max_pages must be at least 1")
	}
	if c.CacheTTL < 0 {
		return fmt.Errorf("cache_ttl cannot be negative")
	}
	return nil
}
