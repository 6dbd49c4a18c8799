package config

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	RequestTimeout  time.Duration `yaml:"request_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type DatabaseConfig struct {
	URL      string `yaml:"url"`
	MaxConns int32  `yaml:"max_conns"`
}

type RedisConfig struct {
	URL      string `yaml:"url"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type GatewayConfig struct {
	KeyID     string        `yaml:"key_id"`
	KeySecret string        `yaml:"key_secret"`
	BaseURL   string        `yaml:"base_url"`
	Currency  string        `yaml:"currency"`
	Timeout   time.Duration `yaml:"timeout"`
	Sandbox   bool          `yaml:"sandbox"` // dev only: sign and accept payments locally
}

type PricingConfig struct {
	UnitPrice int64 `yaml:"unit_price"` // major units per system
}

type DocumentsConfig struct {
	URL           string        `yaml:"url"`
	Token         string        `yaml:"token"`
	SigningSecret string        `yaml:"signing_secret"` // mint short-lived HS256 tokens instead of a static token
	Workers       int           `yaml:"workers"`
	QueueKey      string        `yaml:"queue_key"`
	MaxAttempts   int           `yaml:"max_attempts"`
	StuckAfter    time.Duration `yaml:"stuck_after"`
	Timeout       time.Duration `yaml:"timeout"`
}

// Enabled reports whether a document generator endpoint is configured.
func (d DocumentsConfig) Enabled() bool { return d.URL != "" }

type ReconcilerConfig struct {
	Interval    time.Duration `yaml:"interval"`
	GracePeriod time.Duration `yaml:"grace_period"` // how long a capture may stay un-activated before replay
	BatchSize   int           `yaml:"batch_size"`
}

type RateLimitConfig struct {
	OrdersPerWindow int           `yaml:"orders_per_window"` // 0 disables
	Window          time.Duration `yaml:"window"`
}

type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Log        LogConfig        `yaml:"log"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	Gateway    GatewayConfig    `yaml:"gateway"`
	Pricing    PricingConfig    `yaml:"pricing"`
	Documents  DocumentsConfig  `yaml:"documents"`
	Reconciler ReconcilerConfig `yaml:"reconciler"`
	RateLimit  RateLimitConfig  `yaml:"rate_limit"`

	Runtime RuntimeConfig `yaml:"-"`
}

// LoadConfig parses the -config and -dev flags and loads the configuration.
func LoadConfig() (*Config, error) {
	var configPath string
	var dev bool
	flag.StringVar(&configPath, "config", "config.yaml", "path to config yaml")
	flag.BoolVar(&dev, "dev", false, "development mode")
	flag.Parse()

	// .env is optional; real environment variables win over it.
	_ = godotenv.Load()

	return Load(configPath, dev)
}

// Load reads the YAML file at path (a missing file is tolerated), overlays the
// environment, applies defaults and validates the result.
func Load(path string, dev bool) (*Config, error) {
	var cfg Config
	if path != "" {
		b, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			// env-only deployment
		case err != nil:
			return nil, fmt.Errorf("read config: %w", err)
		default:
			if err := yaml.Unmarshal(b, &cfg); err != nil {
				return nil, fmt.Errorf("parse config: %w", err)
			}
		}
	}
	if err := applyEnv(&cfg); err != nil {
		return nil, err
	}
	applyDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.Runtime.Dev = dev
	return &cfg, nil
}

func applyEnv(cfg *Config) error {
	str := map[string]*string{
		"RAZORPAY_KEY_ID":          &cfg.Gateway.KeyID,
		"RAZORPAY_KEY_SECRET":      &cfg.Gateway.KeySecret,
		"RAZORPAY_BASE_URL":        &cfg.Gateway.BaseURL,
		"PAYMENT_CURRENCY":         &cfg.Gateway.Currency,
		"DATABASE_URL":             &cfg.Database.URL,
		"REDIS_URL":                &cfg.Redis.URL,
		"REDIS_PASSWORD":           &cfg.Redis.Password,
		"DOCUMENTS_URL":            &cfg.Documents.URL,
		"DOCUMENTS_TOKEN":          &cfg.Documents.Token,
		"DOCUMENTS_SIGNING_SECRET": &cfg.Documents.SigningSecret,
		"LOG_LEVEL":                &cfg.Log.Level,
		"LOG_FORMAT":               &cfg.Log.Format,
	}
	for key, dst := range str {
		if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	if v, ok := os.LookupEnv("PORT"); ok && v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("PORT: %w", err)
		}
		cfg.Server.Port = port
	}
	if v, ok := os.LookupEnv("UNIT_PRICE"); ok && v != "" {
		price, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("UNIT_PRICE: %w", err)
		}
		cfg.Pricing.UnitPrice = price
	}
	return nil
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Port <= 0 {
		cfg.Server.Port = 8080
	}
	cfg.Server.ReadTimeout = orDefault(cfg.Server.ReadTimeout, 10*time.Second)
	cfg.Server.WriteTimeout = orDefault(cfg.Server.WriteTimeout, 30*time.Second)
	cfg.Server.RequestTimeout = orDefault(cfg.Server.RequestTimeout, 20*time.Second)
	cfg.Server.ShutdownTimeout = orDefault(cfg.Server.ShutdownTimeout, 15*time.Second)

	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.Database.MaxConns <= 0 {
		cfg.Database.MaxConns = 10
	}

	if cfg.Gateway.BaseURL == "" {
		cfg.Gateway.BaseURL = "https://api.razorpay.com"
	}
	if cfg.Gateway.Currency == "" {
		cfg.Gateway.Currency = "INR"
	}
	cfg.Gateway.Timeout = orDefault(cfg.Gateway.Timeout, 10*time.Second)

	if cfg.Pricing.UnitPrice <= 0 {
		cfg.Pricing.UnitPrice = 999
	}

	if cfg.Documents.Workers <= 0 {
		cfg.Documents.Workers = 4
	}
	if cfg.Documents.QueueKey == "" {
		cfg.Documents.QueueKey = "amc:documents"
	}
	if cfg.Documents.MaxAttempts <= 0 {
		cfg.Documents.MaxAttempts = 5
	}
	cfg.Documents.StuckAfter = orDefault(cfg.Documents.StuckAfter, 5*time.Minute)
	cfg.Documents.Timeout = orDefault(cfg.Documents.Timeout, 15*time.Second)

	cfg.Reconciler.Interval = orDefault(cfg.Reconciler.Interval, time.Minute)
	cfg.Reconciler.GracePeriod = orDefault(cfg.Reconciler.GracePeriod, 5*time.Minute)
	if cfg.Reconciler.BatchSize <= 0 {
		cfg.Reconciler.BatchSize = 50
	}

	cfg.RateLimit.Window = orDefault(cfg.RateLimit.Window, time.Minute)
}

// Validate fails fast on settings the service cannot run without.
func (c *Config) Validate() error {
	var missing []string
	if c.Gateway.KeyID == "" {
		missing = append(missing, "gateway.key_id (RAZORPAY_KEY_ID)")
	}
	if c.Gateway.KeySecret == "" {
		missing = append(missing, "gateway.key_secret (RAZORPAY_KEY_SECRET)")
	}
	if c.Database.URL == "" {
		missing = append(missing, "database.url (DATABASE_URL)")
	}
	if c.Redis.URL == "" {
		missing = append(missing, "redis.url (REDIS_URL)")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}
	if c.RateLimit.OrdersPerWindow < 0 {
		return errors.New("rate_limit.orders_per_window must not be negative")
	}
	return nil
}

func orDefault(d, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return d
}
