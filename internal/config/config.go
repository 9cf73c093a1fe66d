package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Default station profile: Schiphol, mask advisory for wind blowing from
// north-east (45) through south-west (225).
const (
	DefaultStationID   = "0-20000-0-06240"
	DefaultStationName = "Schiphol Airport"
	defaultEDRBaseURL  = "https://api.dataplatform.knmi.nl/edr/v1/collections/10-minute-in-situ-meteorological-observations"
)

// StationProfile binds a station to its deployment-fixed threshold range.
// Known variants use 45-225 and 90-180; both are expressed here instead of
// per-deployment constants.
type StationProfile struct {
	ID         string
	Name       string
	MinDegrees float64
	MaxDegrees float64
}

// Config holds service configuration loaded from YAML and env.
type Config struct {
	ServerPort string

	EDRBaseURL string
	EDRToken   string
	EDRTimeout time.Duration

	RequestTimeout time.Duration
	CacheTTL       time.Duration
	CacheBackend   string // "in_memory" or "memcached"

	MemcachedAddrs        string
	MemcachedTimeout      time.Duration
	MemcachedMaxIdleConns int

	RateLimitRPS   int
	RateLimitBurst int

	ShutdownTimeout time.Duration

	DefaultLookbackHours  int
	DefaultRefreshSeconds int

	PollEnabled  bool
	PollInterval time.Duration

	AllowedOrigins []string

	Stations []StationProfile
}

type fileConfig struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`

	EDR struct {
		BaseURL string `yaml:"base_url"`
		Timeout string `yaml:"timeout"`
	} `yaml:"edr"`

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
		RateLimitRPS   int `yaml:"rate_limit_rps"`
		RateLimitBurst int `yaml:"rate_limit_burst"`
	} `yaml:"reliability"`

	Shutdown struct {
		Timeout string `yaml:"timeout"`
	} `yaml:"shutdown"`

	Dashboard struct {
		DefaultLookbackHours  int `yaml:"default_lookback_hours"`
		DefaultRefreshSeconds int `yaml:"default_refresh_seconds"`
	} `yaml:"dashboard"`

	Poller struct {
		Enabled  *bool  `yaml:"enabled"`
		Interval string `yaml:"interval"`
	} `yaml:"poller"`

	API struct {
		AllowedOrigins []string `yaml:"allowed_origins"`
	} `yaml:"api"`

	Stations []struct {
		ID         string  `yaml:"id"`
		Name       string  `yaml:"name"`
		MinDegrees float64 `yaml:"min_degrees"`
		MaxDegrees float64 `yaml:"max_degrees"`
	} `yaml:"stations"`
}

type secretsFile struct {
	KNMIEDRToken string `yaml:"knmi_edr_token"`
}

// Load reads configuration from config/{ENV_NAME}.yaml (default dev) and
// config/secrets.yaml. The EDR token comes from KNMI_EDR_TOKEN env or the
// secrets file; its absence is fatal. Call from project root.
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

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	cfg := &Config{}

	cfg.ServerPort = fc.Server.Port
	if cfg.ServerPort == "" {
		cfg.ServerPort = "8080"
	}

	cfg.EDRToken = os.Getenv("KNMI_EDR_TOKEN")
	if cfg.EDRToken == "" {
		secretsPath := filepath.Join(cwd, "config", "secrets.yaml")
		secretsData, err := os.ReadFile(secretsPath)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("read secrets file: %w", err)
			}
		} else {
			var sec secretsFile
			if err := yaml.Unmarshal(secretsData, &sec); err != nil {
				return nil, fmt.Errorf("parse secrets file: %w", err)
			}
			cfg.EDRToken = sec.KNMIEDRToken
		}
	}
	if cfg.EDRToken == "" {
		return nil, fmt.Errorf("KNMI_EDR_TOKEN required (set env or config/secrets.yaml knmi_edr_token)")
	}

	cfg.EDRBaseURL = fc.EDR.BaseURL
	if cfg.EDRBaseURL == "" {
		cfg.EDRBaseURL = defaultEDRBaseURL
	}
	cfg.EDRTimeout = parseDuration(fc.EDR.Timeout, 30*time.Second)

	cfg.RequestTimeout = parseDuration(fc.Request.Timeout, 35*time.Second)
	cfg.CacheTTL = parseDuration(fc.Cache.TTL, 30*time.Second)

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

	cfg.RateLimitRPS = fc.Reliability.RateLimitRPS
	if cfg.RateLimitRPS <= 0 {
		cfg.RateLimitRPS = 50
	}
	cfg.RateLimitBurst = fc.Reliability.RateLimitBurst
	if cfg.RateLimitBurst <= 0 {
		cfg.RateLimitBurst = 100
	}

	cfg.ShutdownTimeout = parseDuration(fc.Shutdown.Timeout, 30*time.Second)

	cfg.DefaultLookbackHours = fc.Dashboard.DefaultLookbackHours
	if cfg.DefaultLookbackHours <= 0 {
		cfg.DefaultLookbackHours = 6
	}
	cfg.DefaultRefreshSeconds = fc.Dashboard.DefaultRefreshSeconds
	if cfg.DefaultRefreshSeconds <= 0 {
		cfg.DefaultRefreshSeconds = 60
	}

	cfg.PollEnabled = true
	if fc.Poller.Enabled != nil {
		cfg.PollEnabled = *fc.Poller.Enabled
	}
	cfg.PollInterval = parseDuration(fc.Poller.Interval, time.Minute)

	cfg.AllowedOrigins = fc.API.AllowedOrigins

	for _, s := range fc.Stations {
		cfg.Stations = append(cfg.Stations, StationProfile{
			ID:         strings.TrimSpace(s.ID),
			Name:       strings.TrimSpace(s.Name),
			MinDegrees: s.MinDegrees,
			MaxDegrees: s.MaxDegrees,
		})
	}
	if len(cfg.Stations) == 0 {
		cfg.Stations = []StationProfile{{
			ID:         DefaultStationID,
			Name:       DefaultStationName,
			MinDegrees: 45,
			MaxDegrees: 225,
		}}
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// parseDuration parses a duration string and returns defaultVal on empty
// string, parse error, or a non-positive result.
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

// validate performs post-load validation of configuration values.
func validate(cfg *Config) error {
	if cfg.EDRTimeout <= 0 {
		return fmt.Errorf("edr.timeout must be positive")
	}
	if cfg.RequestTimeout <= cfg.EDRTimeout {
		cfg.RequestTimeout = cfg.EDRTimeout + 5*time.Second
	}
	switch cfg.CacheBackend {
	case "in_memory", "memcached":
		// valid
	default:
		return fmt.Errorf("cache.backend must be in_memory or memcached, got %q", cfg.CacheBackend)
	}
	if cfg.DefaultLookbackHours < 1 || cfg.DefaultLookbackHours > 24 {
		return fmt.Errorf("dashboard.default_lookback_hours must be within 1-24, got %d", cfg.DefaultLookbackHours)
	}
	if cfg.DefaultRefreshSeconds < 10 || cfg.DefaultRefreshSeconds > 600 {
		return fmt.Errorf("dashboard.default_refresh_seconds must be within 10-600, got %d", cfg.DefaultRefreshSeconds)
	}
	for _, s := range cfg.Stations {
		if s.ID == "" {
			return fmt.Errorf("stations: id is required")
		}
		if s.MinDegrees < 0 || s.MinDegrees >= 360 || s.MaxDegrees < 0 || s.MaxDegrees >= 360 || s.MinDegrees > s.MaxDegrees {
			return fmt.Errorf("station %s: threshold range %.1f-%.1f invalid", s.ID, s.MinDegrees, s.MaxDegrees)
		}
	}
	return nil
}
