package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/creasty/defaults"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"FactorLens/pkg/util"
)

type Config struct {
	Environment string `yaml:"environment" default:"development"`
	Server      struct {
		Port            int           `yaml:"port" default:"8080"`
		ReadTimeout     time.Duration `yaml:"read_timeout" default:"15s"`
		WriteTimeout    time.Duration `yaml:"write_timeout" default:"30s"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"10s"`
		RateLimit       int           `yaml:"rate_limit" default:"6"`
		RateWindow      time.Duration `yaml:"rate_window" default:"1m"`
	} `yaml:"server"`
	Metrics struct {
		Enabled bool   `yaml:"enabled" default:"true"`
		Path    string `yaml:"path" default:"/metrics"`
	} `yaml:"metrics"`
	Logging struct {
		Level   string `yaml:"level" default:"info"`
		Format  string `yaml:"format" default:"json"`
		Output  string `yaml:"output" default:"stdout"`
		Collect struct {
			Enabled       bool          `yaml:"enabled"`
			Topic         string        `yaml:"topic" default:"factorlens.logs"`
			FlushInterval time.Duration `yaml:"flush_interval" default:"30s"`
			MaxErrors     int           `yaml:"max_errors" default:"100"`
		} `yaml:"collect"`
	} `yaml:"logging"`
	Engine struct {
		Window      int           `yaml:"window" default:"252"`
		RidgeAlpha  float64       `yaml:"ridge_alpha" default:"1.0"`
		Coverage    float64       `yaml:"coverage" default:"0.85"`
		Workers     int           `yaml:"workers"`
		ShockFactor string        `yaml:"shock_factor" default:"^VIX"`
		ShockSize   float64       `yaml:"shock_size" default:"0.2"`
		Tail        string        `yaml:"tail" default:"upper"`
		RefreshCron string        `yaml:"refresh_cron" default:"@every 1h"`
		RunOnStart  bool          `yaml:"run_on_start" default:"true"`
		LockTTL     time.Duration `yaml:"lock_ttl" default:"10m"`
	} `yaml:"engine"`
	Universe struct {
		// Empty lists fall back to the built-in watchlist and factor set.
		Tickers []string `yaml:"tickers"`
		Factors []string `yaml:"factors"`
	} `yaml:"universe"`
	Data struct {
		Source    string        `yaml:"source" default:"csv"`
		Path      string        `yaml:"path" default:"data/prices.csv"`
		URL       string        `yaml:"url"`
		Table     string        `yaml:"table" default:"prices"`
		StartDate string        `yaml:"start_date" default:"2018-01-01"`
		Timeout   time.Duration `yaml:"timeout" default:"30s"`
		Retries   int           `yaml:"retries" default:"2"`
	} `yaml:"data"`
	Backend struct {
		Type string `yaml:"type" default:"sqlite"`
	} `yaml:"backend"`
	SQLite struct {
		Path string `yaml:"path" default:"data/factorlens.db"`
	} `yaml:"sqlite"`
	Kafka struct {
		Enabled      bool     `yaml:"enabled"`
		Brokers      []string `yaml:"brokers"`
		BetasTopic   string   `yaml:"betas_topic" default:"factorlens.betas"`
		RunsTopic    string   `yaml:"runs_topic" default:"factorlens.runs"`
		RefreshTopic string   `yaml:"refresh_topic" default:"factorlens.refresh"`
		RequiredAcks int      `yaml:"required_acks" default:"-1"`
		Compression  string   `yaml:"compression" default:"snappy"`
		Producer     struct {
			MaxAttempts  int           `yaml:"max_attempts" default:"5"`
			Linger       time.Duration `yaml:"linger" default:"50ms"`
			BatchBytes   int           `yaml:"batch_bytes" default:"1048576"`
			BatchSize    int           `yaml:"batch_size" default:"500"`
			WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
			ReadTimeout  time.Duration `yaml:"read_timeout" default:"10s"`
			Async        bool          `yaml:"async"`
		} `yaml:"producer"`
		Consumer struct {
			GroupID    string        `yaml:"group_id" default:"factorlens-refresh"`
			Workers    int           `yaml:"workers" default:"1"`
			BufferSize int           `yaml:"buffer_size" default:"16"`
			RetryMax   int           `yaml:"retry_max" default:"3"`
			BackoffMin time.Duration `yaml:"backoff_min" default:"500ms"`
			BackoffMax time.Duration `yaml:"backoff_max" default:"10s"`
			DLQTopic   string        `yaml:"dlq_topic" default:"factorlens.refresh.dlq"`
			MinBytes   int           `yaml:"min_bytes" default:"1"`
			MaxBytes   int           `yaml:"max_bytes" default:"1048576"`
		} `yaml:"consumer"`
	} `yaml:"kafka"`
	ClickHouse struct {
		Host             string        `yaml:"host" default:"localhost"`
		Port             int           `yaml:"port" default:"9000"`
		Database         string        `yaml:"database" default:"factorlens"`
		User             string        `yaml:"user" default:"default"`
		Password         string        `yaml:"password"`
		UseHTTP          bool          `yaml:"use_http"`
		AsyncInsert      bool          `yaml:"async_insert"`
		WaitForAsync     bool          `yaml:"wait_for_async_insert"`
		DialTimeout      time.Duration `yaml:"dial_timeout" default:"5s"`
		ReadTimeout      time.Duration `yaml:"read_timeout" default:"30s"`
		WriteTimeout     time.Duration `yaml:"write_timeout" default:"30s"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time" default:"60s"`
	} `yaml:"clickhouse"`
	Redis struct {
		Enabled      bool          `yaml:"enabled"`
		Addr         string        `yaml:"addr" default:"localhost:6379"`
		Password     string        `yaml:"password"`
		DB           int           `yaml:"db"`
		TTL          time.Duration `yaml:"ttl" default:"1h"`
		PoolSize     int           `yaml:"pool_size" default:"10"`
		MinIdleConns int           `yaml:"min_idle_conns" default:"2"`
		PoolTimeout  time.Duration `yaml:"pool_timeout" default:"30s"`
	} `yaml:"redis"`
	// Cache sizes the in-process cache, standalone or as the L1 in front of Redis.
	Cache struct {
		MaxEntries int           `yaml:"max_entries" default:"1000"`
		Cleanup    time.Duration `yaml:"cleanup" default:"5m"`
	} `yaml:"cache"`
	Archive struct {
		Enabled  bool   `yaml:"enabled"`
		Bucket   string `yaml:"bucket"`
		Prefix   string `yaml:"prefix" default:"runs"`
		Region   string `yaml:"region" default:"ap-northeast-1"`
		Endpoint string `yaml:"endpoint"`
	} `yaml:"archive"`
}

// Default returns a config with every default applied and no file read.
func Default() *Config {
	var c Config
	if err := defaults.Set(&c); err != nil {
		panic(fmt.Sprintf("config defaults: %v", err))
	}
	return &c
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(b)
}

// Parse applies defaults, then decodes YAML over them and validates.
func Parse(b []byte) (*Config, error) {
	var c Config
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("config defaults: %w", err)
	}
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &c, nil
}

// LoadWithEnv loads .env (if present), the YAML file, then environment overrides.
// A missing YAML file is not an error; defaults are used instead.
func LoadWithEnv(path string) (*Config, error) {
	_ = godotenv.Load()

	var (
		c   *Config
		err error
	)
	if _, statErr := os.Stat(path); statErr == nil {
		c, err = Load(path)
		if err != nil {
			return nil, err
		}
	} else if errors.Is(statErr, os.ErrNotExist) {
		c = Default()
	} else {
		return nil, fmt.Errorf("stat config: %w", statErr)
	}

	c.applyEnv()
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("FACTORLENS_ENV"); v != "" {
		c.Environment = v
	}
	if v := os.Getenv("FACTORLENS_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Server.Port = n
		}
	}
	if v := os.Getenv("FACTORLENS_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("FACTORLENS_WINDOW"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Engine.Window = n
		}
	}
	if v := os.Getenv("FACTORLENS_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Engine.Workers = n
		}
	}
	if v := os.Getenv("FACTORLENS_DATA_SOURCE"); v != "" {
		c.Data.Source = v
	}
	if v := os.Getenv("FACTORLENS_DATA_PATH"); v != "" {
		c.Data.Path = v
	}
	if v := os.Getenv("FACTORLENS_DATA_URL"); v != "" {
		c.Data.URL = v
	}
	if v := os.Getenv("FACTORLENS_BACKEND"); v != "" {
		c.Backend.Type = v
	}
	if v := os.Getenv("FACTORLENS_TICKERS"); v != "" {
		c.Universe.Tickers = util.SplitList(v)
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = util.SplitList(v)
		c.Kafka.Enabled = true
	}
	if v := os.Getenv("CLICKHOUSE_HOST"); v != "" {
		c.ClickHouse.Host = v
	}
	if v := os.Getenv("CLICKHOUSE_PASSWORD"); v != "" {
		c.ClickHouse.Password = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
		c.Redis.Enabled = true
	}
	if v := os.Getenv("FACTORLENS_ARCHIVE_BUCKET"); v != "" {
		c.Archive.Bucket = v
		c.Archive.Enabled = true
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	if c.Engine.Window < 1 {
		return fmt.Errorf("engine.window must be >= 1, got %d", c.Engine.Window)
	}
	if c.Engine.RidgeAlpha < 0 {
		return fmt.Errorf("engine.ridge_alpha must be >= 0, got %g", c.Engine.RidgeAlpha)
	}
	if c.Engine.Coverage <= 0 || c.Engine.Coverage > 1 {
		return fmt.Errorf("engine.coverage must be in (0, 1], got %g", c.Engine.Coverage)
	}
	if c.Engine.Tail != "upper" && c.Engine.Tail != "lower" {
		return fmt.Errorf("engine.tail must be 'upper' or 'lower', got '%s'", c.Engine.Tail)
	}
	switch c.Backend.Type {
	case "clickhouse", "sqlite", "none":
	default:
		return fmt.Errorf("backend.type must be 'clickhouse', 'sqlite' or 'none', got '%s'", c.Backend.Type)
	}
	switch c.Data.Source {
	case "csv":
		if c.Data.Path == "" {
			return fmt.Errorf("data.path is required for csv source")
		}
	case "http":
		if c.Data.URL == "" {
			return fmt.Errorf("data.url is required for http source")
		}
	case "clickhouse":
	default:
		return fmt.Errorf("data.source must be 'csv', 'clickhouse' or 'http', got '%s'", c.Data.Source)
	}
	if _, ok := util.ParseDate(c.Data.StartDate); !ok {
		return fmt.Errorf("data.start_date: cannot parse %q", c.Data.StartDate)
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers cannot be empty when kafka is enabled")
	}
	if c.Archive.Enabled && c.Archive.Bucket == "" {
		return fmt.Errorf("archive.bucket is required when archive is enabled")
	}
	return nil
}

// StartDate returns data.start_date parsed as a UTC day.
func (c *Config) StartDate() time.Time {
	t, _ := util.ParseDate(c.Data.StartDate)
	return t
}
