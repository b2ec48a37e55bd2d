package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Symbols   []string        `mapstructure:"symbols"`
	Pair      PairConfig      `mapstructure:"pair"`
	Analytics AnalyticsConfig `mapstructure:"analytics"`
	Buffer    BufferConfig    `mapstructure:"buffer"`
	Store     StoreConfig     `mapstructure:"store"`
	Feed      FeedConfig      `mapstructure:"feed"`
	HTTP      HTTPConfig      `mapstructure:"http"`
	Log       LogConfig       `mapstructure:"log"`
	Postgres  PostgresConfig  `mapstructure:"postgres"`
}

type AppConfig struct {
	Environment string `mapstructure:"environment"` // "dev" or "prod"
}

// PairConfig selects the two tracked symbols the analytics run on.
type PairConfig struct {
	X string `mapstructure:"x"`
	Y string `mapstructure:"y"`
}

type AnalyticsConfig struct {
	Timeframe       string        `mapstructure:"timeframe"`        // "1s", "1m" or "5m"
	Window          int           `mapstructure:"window"`           // rolling window, 10-100
	ZScoreThreshold float64       `mapstructure:"zscore_threshold"` // alert threshold, 1.0-3.0
	RefreshInterval time.Duration `mapstructure:"refresh_interval"` // analytics cycle period
	Stationarity    bool          `mapstructure:"stationarity"`     // run the ADF test each cycle
}

type BufferConfig struct {
	Capacity int `mapstructure:"capacity"`
}

type StoreConfig struct {
	Dedup string `mapstructure:"dedup"` // "exact" or "none"
}

type FeedConfig struct {
	Provider        string        `mapstructure:"provider"` // "binance" or "synthetic"
	WSURL           string        `mapstructure:"ws_url"`
	RESTURL         string        `mapstructure:"rest_url"`
	RESTTimeout     time.Duration `mapstructure:"rest_timeout"`
	ReconnectDelay  time.Duration `mapstructure:"reconnect_delay"`
	ValidateSymbols bool          `mapstructure:"validate_symbols"`
	SyntheticRate   time.Duration `mapstructure:"synthetic_rate"` // tick spacing of the synthetic feed
}

type HTTPConfig struct {
	Addr string `mapstructure:"addr"` // empty disables the HTTP surface
}

// Options defines the logger configuration options.
type LogConfig struct {
	Level       string `mapstructure:"level"`       // log level: "debug", "info", "warn", "error"
	Format      string `mapstructure:"format"`      // log format: "json" or "console"
	OutputFile  string `mapstructure:"output_file"` // file path to store logs (optional)
	Environment string `mapstructure:"environment"` // environment: "dev" or "prod"
	MaxSizeMB   int    `mapstructure:"max_size_mb"` // rotate after this many megabytes
	MaxBackups  int    `mapstructure:"max_backups"` // rotated files to keep
	MaxAgeDays  int    `mapstructure:"max_age_days"`
}

const (
	MinWindow    = 10
	MaxWindow    = 100
	MinThreshold = 1.0
	MaxThreshold = 3.0
)

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.environment", "dev")
	v.SetDefault("symbols", []string{"BTCUSDT", "ETHUSDT"})
	v.SetDefault("pair.x", "")
	v.SetDefault("pair.y", "")

	v.SetDefault("analytics.timeframe", "1m")
	v.SetDefault("analytics.window", 30)
	v.SetDefault("analytics.zscore_threshold", 2.0)
	v.SetDefault("analytics.refresh_interval", 2*time.Second)
	v.SetDefault("analytics.stationarity", true)

	v.SetDefault("buffer.capacity", 10000)
	v.SetDefault("store.dedup", "exact")

	v.SetDefault("feed.provider", "binance")
	v.SetDefault("feed.ws_url", "wss://fstream.binance.com")
	v.SetDefault("feed.rest_url", "https://fapi.binance.com")
	v.SetDefault("feed.rest_timeout", 10*time.Second)
	v.SetDefault("feed.reconnect_delay", 3*time.Second)
	v.SetDefault("feed.validate_symbols", true)
	v.SetDefault("feed.synthetic_rate", 200*time.Millisecond)

	v.SetDefault("http.addr", ":8080")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("log.output_file", "")
	v.SetDefault("log.environment", "dev")
	v.SetDefault("log.max_size_mb", 10)
	v.SetDefault("log.max_backups", 5)
	v.SetDefault("log.max_age_days", 7)

	v.SetDefault("postgres.enabled", false)
	v.SetDefault("postgres.host", "localhost")
	v.SetDefault("postgres.port", 5432)
	v.SetDefault("postgres.user", "postgres")
	v.SetDefault("postgres.password", "")
	v.SetDefault("postgres.dbname", "pairwatch")
	v.SetDefault("postgres.sslmode", "disable")
	v.SetDefault("postgres.timezone", "UTC")
	v.SetDefault("postgres.create_db", false)
	v.SetDefault("postgres.ssm_prefix", "/pairwatch/postgres/")
	v.SetDefault("postgres.max_open_conns", 5)
	v.SetDefault("postgres.max_idle_conns", 2)
	v.SetDefault("postgres.conn_max_lifetime", time.Hour)
	v.SetDefault("postgres.retention", 30*24*time.Hour)
	v.SetDefault("postgres.retention_every", time.Hour)
}

// Load loads application configuration using Viper.
// It reads from config.yaml and overrides with environment variables.
func Load() *Config {
	// TODO: env path
	var dir string
	ex, _ := os.Executable()
	if strings.Contains(ex, "go-build") {
		pwd, _ := os.Getwd()
		dir = filepath.Join(pwd, "../../config")
	} else {
		dir = filepath.Join(filepath.Dir(ex), "../config")
	}

	cfg, err := LoadFrom(dir)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	return cfg
}

// LoadFrom reads config.yaml from the given directories (first match wins),
// applies a .env file from the working directory if present, then environment
// overrides, and validates the result. A missing config file is not an error.
func LoadFrom(dirs ...string) (*Config, error) {
	// .env is optional; real environment variables take precedence over it.
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config") // config.yaml
	v.SetConfigType("yaml")
	for _, dir := range dirs {
		v.AddConfigPath(dir)
	}

	// Support environment variables with dot notation (e.g., ANALYTICS_WINDOW)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) normalize() {
	for i, s := range c.Symbols {
		c.Symbols[i] = strings.ToUpper(strings.TrimSpace(s))
	}
	c.Pair.X = strings.ToUpper(strings.TrimSpace(c.Pair.X))
	c.Pair.Y = strings.ToUpper(strings.TrimSpace(c.Pair.Y))
	if c.Pair.X == "" && len(c.Symbols) > 0 {
		c.Pair.X = c.Symbols[0]
	}
	if c.Pair.Y == "" {
		for _, s := range c.Symbols {
			if s != c.Pair.X {
				c.Pair.Y = s
				break
			}
		}
	}
}

// Validate checks the recognized option ranges.
func (c *Config) Validate() error {
	seen := make(map[string]bool, len(c.Symbols))
	for _, s := range c.Symbols {
		if s == "" {
			return errors.New("symbols: empty symbol")
		}
		if seen[s] {
			return fmt.Errorf("symbols: duplicate %s", s)
		}
		seen[s] = true
	}
	if len(seen) < 2 {
		return fmt.Errorf("symbols: need at least 2, got %d", len(seen))
	}
	if err := c.ValidatePair(c.Pair.X, c.Pair.Y); err != nil {
		return err
	}

	switch c.Analytics.Timeframe {
	case "1s", "1m", "5m":
	default:
		return fmt.Errorf("analytics.timeframe: must be 1s, 1m or 5m, got %q", c.Analytics.Timeframe)
	}
	if c.Analytics.Window < MinWindow || c.Analytics.Window > MaxWindow {
		return fmt.Errorf("analytics.window: must be in [%d, %d], got %d", MinWindow, MaxWindow, c.Analytics.Window)
	}
	if c.Analytics.ZScoreThreshold < MinThreshold || c.Analytics.ZScoreThreshold > MaxThreshold {
		return fmt.Errorf("analytics.zscore_threshold: must be in [%.1f, %.1f], got %v",
			MinThreshold, MaxThreshold, c.Analytics.ZScoreThreshold)
	}
	if c.Analytics.RefreshInterval <= 0 {
		return fmt.Errorf("analytics.refresh_interval: must be positive, got %s", c.Analytics.RefreshInterval)
	}
	if c.Buffer.Capacity < 1 {
		return fmt.Errorf("buffer.capacity: must be >= 1, got %d", c.Buffer.Capacity)
	}
	switch c.Store.Dedup {
	case "exact", "none":
	default:
		return fmt.Errorf("store.dedup: must be exact or none, got %q", c.Store.Dedup)
	}
	switch c.Feed.Provider {
	case "binance", "synthetic":
	default:
		return fmt.Errorf("feed.provider: must be binance or synthetic, got %q", c.Feed.Provider)
	}
	if c.Postgres.Retention < 0 {
		return fmt.Errorf("postgres.retention: must not be negative, got %s", c.Postgres.Retention)
	}
	if c.Postgres.Retention > 0 && c.Postgres.RetentionEvery <= 0 {
		return fmt.Errorf("postgres.retention_every: must be positive, got %s", c.Postgres.RetentionEvery)
	}
	return nil
}

// ValidatePair checks that x and y are distinct tracked symbols.
func (c *Config) ValidatePair(x, y string) error {
	if x == y {
		return fmt.Errorf("pair: x and y must differ, both are %q", x)
	}
	for _, s := range []string{x, y} {
		found := false
		for _, tracked := range c.Symbols {
			if tracked == s {
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("pair: %q is not a tracked symbol", s)
		}
	}
	return nil
}
