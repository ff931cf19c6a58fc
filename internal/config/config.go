package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds service configuration loaded from YAML and env.
type Config struct {
	ServerPort string

	ArchiveAPIURL     string
	ArchiveAPITimeout time.Duration

	StoreURL      string
	StoreTimeout  time.Duration
	StoreVariable string

	ParquetBaseURL  string
	PeriodTablePath string

	DefaultBaseTemp float64

	RequestTimeout time.Duration
	CacheTTL       time.Duration
	CacheBackend   string // "in_memory" or "memcached"

	MemcachedAddrs        string
	MemcachedTimeout      time.Duration
	MemcachedMaxIdleConns int

	RetryAttempts  int
	RetryBaseDelay time.Duration
	RetryMaxDelay  time.Duration
	RateLimitRPS   int
	RateLimitBurst int

	CircuitBreakerEnabled          bool
	CircuitBreakerFailureThreshold int
	CircuitBreakerSuccessThreshold int
	CircuitBreakerTimeout          time.Duration

	ShutdownTimeout time.Duration
}

type fileConfig struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`

	ArchiveAPI struct {
		URL     string `yaml:"url"`
		Timeout string `yaml:"timeout"`
	} `yaml:"archive_api"`

	Store struct {
		URL      string `yaml:"url"`
		Timeout  string `yaml:"timeout"`
		Variable string `yaml:"variable"`
	} `yaml:"store"`

	Parquet struct {
		BaseURL         string `yaml:"base_url"`
		PeriodTablePath string `yaml:"period_table_path"`
	} `yaml:"parquet"`

	GDD struct {
		BaseTemp *float64 `yaml:"base_temp"`
	} `yaml:"gdd"`

	Request struct {
		Timeout string `yaml:"timeout"`
	} `yaml:"request"`

	Cache struct {
		Backend   string `yaml:"backend"`
		TTL       string `yaml:"ttl"`
		Memcached struct {
			Addrs        string `yaml:"addrs"`
			Timeout      string `yaml:"timeout"`
			MaxIdleConns int    `yaml:"max_idle_conns"`
		} `yaml:"memcached"`
	} `yaml:"cache"`

	Reliability struct {
		RetryMaxAttempts int    `yaml:"retry_max_attempts"`
		RetryBaseDelay   string `yaml:"retry_base_delay"`
		RetryMaxDelay    string `yaml:"retry_max_delay"`
		RateLimitRPS     int    `yaml:"rate_limit_rps"`
		RateLimitBurst   int    `yaml:"rate_limit_burst"`
		CircuitBreaker   struct {
			Enabled          bool   `yaml:"enabled"`
			FailureThreshold int    `yaml:"failure_threshold"`
			SuccessThreshold int    `yaml:"success_threshold"`
			Timeout          string `yaml:"timeout"`
		} `yaml:"circuit_breaker"`
	} `yaml:"reliability"`

	Shutdown struct {
		Timeout string `yaml:"timeout"`
	} `yaml:"shutdown"`
}

// Load reads configuration from config/{ENV_NAME}.yaml (default dev).
// Call from the project root. A missing file is not an error for the CLI;
// use Defaults() there instead.
func Load() (*Config, error) {
	env := os.Getenv("ENV_NAME")
	if env == "" {
		env = "dev"
	}

	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("config: get working directory: %w", err)
	}
	configPath := filepath.Join(cwd, "config", env+".yaml")
	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found: %s", configPath)
		}
		return nil, fmt.Errorf("read config file: %w", err)
	}

	return parse(data)
}

// Defaults returns a configuration with every field at its default value,
// used by climatectl when no config file is present. Environment overrides
// still apply, except that an unknown CACHE_BACKEND falls back to in_memory
// instead of failing: the CLI never opens a cache.
func Defaults() *Config {
	cfg := fromFile(fileConfig{})
	if err := validate(cfg); err != nil {
		cfg.CacheBackend = "in_memory"
	}
	return cfg
}

func parse(data []byte) (*Config, error) {
	var fc fileConfig
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, &fc); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	cfg := fromFile(fc)
	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// fromFile resolves the effective configuration from a parsed file, applying
// env overrides and defaults. Validation is the caller's responsibility.
func fromFile(fc fileConfig) *Config {
	cfg := &Config{}

	cfg.ServerPort = fc.Server.Port
	if cfg.ServerPort == "" {
		cfg.ServerPort = "8080"
	}

	cfg.ArchiveAPIURL = strings.TrimSpace(os.Getenv("ARCHIVE_API_URL"))
	if cfg.ArchiveAPIURL == "" {
		cfg.ArchiveAPIURL = fc.ArchiveAPI.URL
	}
	if cfg.ArchiveAPIURL == "" {
		cfg.ArchiveAPIURL = "https://archive-api.open-meteo.com/v1/archive"
	}
	cfg.ArchiveAPITimeout = parseDuration(fc.ArchiveAPI.Timeout, 10*time.Second)

	cfg.StoreURL = strings.TrimSpace(os.Getenv("STORE_URL"))
	if cfg.StoreURL == "" {
		cfg.StoreURL = fc.Store.URL
	}
	if cfg.StoreURL == "" {
		cfg.StoreURL = "https://storage.googleapis.com/gcp-public-data-arco-era5/ar/full_37-1h-0p25deg-chunk-1.zarr-v3"
	}
	cfg.StoreTimeout = parseDuration(fc.Store.Timeout, 15*time.Second)
	cfg.StoreVariable = fc.Store.Variable
	if cfg.StoreVariable == "" {
		cfg.StoreVariable = "2m_temperature"
	}

	cfg.ParquetBaseURL = fc.Parquet.BaseURL
	cfg.PeriodTablePath = fc.Parquet.PeriodTablePath

	cfg.DefaultBaseTemp = 5
	if fc.GDD.BaseTemp != nil {
		cfg.DefaultBaseTemp = *fc.GDD.BaseTemp
	}

	cfg.RequestTimeout = parseDuration(fc.Request.Timeout, 15*time.Second)
	cfg.CacheTTL = parseDuration(fc.Cache.TTL, 6*time.Hour)
	cfg.CacheBackend = strings.TrimSpace(strings.ToLower(os.Getenv("CACHE_BACKEND")))
	if cfg.CacheBackend == "" {
		cfg.CacheBackend = strings.TrimSpace(strings.ToLower(fc.Cache.Backend))
	}
	if cfg.CacheBackend == "" {
		cfg.CacheBackend = "in_memory"
	}
	cfg.MemcachedAddrs = strings.TrimSpace(os.Getenv("MEMCACHED_ADDRS"))
	if cfg.MemcachedAddrs == "" {
		cfg.MemcachedAddrs = strings.TrimSpace(fc.Cache.Memcached.Addrs)
	}
	if cfg.MemcachedAddrs == "" {
		cfg.MemcachedAddrs = "localhost:11211"
	}
	cfg.MemcachedTimeout = parseDuration(fc.Cache.Memcached.Timeout, 500*time.Millisecond)
	cfg.MemcachedMaxIdleConns = fc.Cache.Memcached.MaxIdleConns
	if cfg.MemcachedMaxIdleConns <= 0 {
		cfg.MemcachedMaxIdleConns = 2
	}

	cfg.RetryAttempts = fc.Reliability.RetryMaxAttempts
	if cfg.RetryAttempts <= 0 {
		cfg.RetryAttempts = 3
	}
	cfg.RetryBaseDelay = parseDuration(fc.Reliability.RetryBaseDelay, 100*time.Millisecond)
	cfg.RetryMaxDelay = parseDuration(fc.Reliability.RetryMaxDelay, 2*time.Second)
	cfg.RateLimitRPS = fc.Reliability.RateLimitRPS
	if cfg.RateLimitRPS <= 0 {
		cfg.RateLimitRPS = 100
	}
	cfg.RateLimitBurst = fc.Reliability.RateLimitBurst
	if cfg.RateLimitBurst <= 0 {
		cfg.RateLimitBurst = 250
	}

	cfg.CircuitBreakerEnabled = fc.Reliability.CircuitBreaker.Enabled
	cfg.CircuitBreakerFailureThreshold = fc.Reliability.CircuitBreaker.FailureThreshold
	if cfg.CircuitBreakerFailureThreshold <= 0 {
		cfg.CircuitBreakerFailureThreshold = 5
	}
	cfg.CircuitBreakerSuccessThreshold = fc.Reliability.CircuitBreaker.SuccessThreshold
	if cfg.CircuitBreakerSuccessThreshold <= 0 {
		cfg.CircuitBreakerSuccessThreshold = 2
	}
	cfg.CircuitBreakerTimeout = parseDuration(fc.Reliability.CircuitBreaker.Timeout, 30*time.Second)

	cfg.ShutdownTimeout = parseDuration(fc.Shutdown.Timeout, 30*time.Second)

	return cfg
}

// parseDuration parses a duration string and returns defaultVal on empty
// string, parse error, or non-positive result.
func parseDuration(s string, defaultVal time.Duration) time.Duration {
	s = strings.TrimSpace(s)
	if s == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return defaultVal
	}
	return d
}

// validate performs post-load validation. RequestTimeout must leave room for
// at least one upstream call; CacheBackend must be a known value.
func validate(cfg *Config) error {
	if cfg.RequestTimeout <= cfg.ArchiveAPITimeout {
		cfg.RequestTimeout = cfg.ArchiveAPITimeout + time.Second
	}
	switch cfg.CacheBackend {
	case "in_memory", "memcached":
		// valid
	default:
		return fmt.Errorf("cache.backend must be in_memory or memcached, got %q", cfg.CacheBackend)
	}
	return nil
}
