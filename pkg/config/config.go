package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"SignalCast/pkg/util"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment"`
	Server      struct {
		Port            int           `yaml:"port"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
		// SlowThreshold marks requests logged as slow by the metrics middleware.
		SlowThreshold time.Duration `yaml:"slow_threshold"`
		DisableCORS   bool          `yaml:"disable_cors"`
		CORSOrigins   []string      `yaml:"cors_origins"`
		RateLimit     struct {
			Capacity     int     `yaml:"capacity"`
			RefillPerSec float64 `yaml:"refill_per_sec"`
		} `yaml:"rate_limit"`
	} `yaml:"server"`
	Log struct {
		Level      string `yaml:"level"`
		Format     string `yaml:"format"`
		Output     string `yaml:"output"`
		TimeFormat string `yaml:"time_format"`
		Topic      string `yaml:"topic"`
	} `yaml:"log"`
	Metrics struct {
		Enabled bool   `yaml:"enabled"`
		Path    string `yaml:"path"`
	} `yaml:"metrics"`
	Prediction struct {
		Policy           string        `yaml:"policy"`
		Threshold        float64       `yaml:"threshold"`
		Horizon          time.Duration `yaml:"horizon"`
		HistoryBars      int           `yaml:"history_bars"`
		PrimaryTimeframe string        `yaml:"primary_timeframe"`
		HigherTimeframe  string        `yaml:"higher_timeframe"`
		FetchTimeout     time.Duration `yaml:"fetch_timeout"`
		ResolveInterval  time.Duration `yaml:"resolve_interval"`
		ResolveBatch     int           `yaml:"resolve_batch"`
		SwingLookback    int           `yaml:"swing_lookback"`
		ProximityPct     float64       `yaml:"proximity_pct"`
		MaxGaps          int           `yaml:"max_gaps"`
		Symbols          []string      `yaml:"symbols"`
	} `yaml:"prediction"`
	Sources struct {
		Order        []string `yaml:"order"`
		AlphaVantage struct {
			APIKey  string        `yaml:"api_key"`
			BaseURL string        `yaml:"base_url"`
			Timeout time.Duration `yaml:"timeout"`
		} `yaml:"alpha_vantage"`
	} `yaml:"sources"`
	Cache struct {
		Type          string        `yaml:"type"`
		Prefix        string        `yaml:"prefix"`
		MemoryMaxSize int           `yaml:"memory_max_size"`
		QuoteTTL      time.Duration `yaml:"quote_ttl"`
		SeriesTTL     time.Duration `yaml:"series_ttl"`
		// MemoryTTL bounds how long the layered cache serves from memory.
		MemoryTTL       time.Duration `yaml:"memory_ttl"`
		CleanupInterval time.Duration `yaml:"cleanup_interval"`
	} `yaml:"cache"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		PoolSize int    `yaml:"pool_size"`
	} `yaml:"redis"`
	Queue struct {
		Workers    int           `yaml:"workers"`
		QueueSize  int           `yaml:"queue_size"`
		RetryLimit int           `yaml:"retry_limit"`
		RetryDelay time.Duration `yaml:"retry_delay"`
		KeyPrefix  string        `yaml:"key_prefix"`
	} `yaml:"queue"`
	Kafka struct {
		Enabled      bool     `yaml:"enabled"`
		Brokers      []string `yaml:"brokers"`
		RequiredAcks int      `yaml:"required_acks"`
		Compression  string   `yaml:"compression"`
		Topics       struct {
			Predictions string `yaml:"predictions"`
			Resolutions string `yaml:"resolutions"`
			Bars        string `yaml:"bars"`
			Logs        string `yaml:"logs"`
		} `yaml:"topics"`
		Producer struct {
			MaxAttempts  int           `yaml:"max_attempts"`
			Linger       time.Duration `yaml:"linger"`
			BatchBytes   int           `yaml:"batch_bytes"`
			BatchSize    int           `yaml:"batch_size"`
			WriteTimeout time.Duration `yaml:"write_timeout"`
			ReadTimeout  time.Duration `yaml:"read_timeout"`
			Async        bool          `yaml:"async"`
		} `yaml:"producer"`
		Consumer struct {
			GroupID    string        `yaml:"group_id"`
			Workers    int           `yaml:"workers"`
			BufferSize int           `yaml:"buffer_size"`
			RetryMax   int           `yaml:"retry_max"`
			BackoffMin time.Duration `yaml:"backoff_min"`
			BackoffMax time.Duration `yaml:"backoff_max"`
			DLQTopic   string        `yaml:"dlq_topic"`
			MinBytes   int           `yaml:"min_bytes"`
			MaxBytes   int           `yaml:"max_bytes"`
			// AutoOffsetReset is "earliest" or "latest" for a new group.
			AutoOffsetReset string `yaml:"auto_offset_reset"`
		} `yaml:"consumer"`
	} `yaml:"kafka"`
	ClickHouse struct {
		Enabled          bool          `yaml:"enabled"`
		Host             string        `yaml:"host"`
		Port             int           `yaml:"port"`
		Database         string        `yaml:"database"`
		User             string        `yaml:"user"`
		Password         string        `yaml:"password"`
		UseHTTP          bool          `yaml:"use_http"`
		AsyncInsert      bool          `yaml:"async_insert"`
		WaitForAsync     bool          `yaml:"wait_for_async_insert"`
		DialTimeout      time.Duration `yaml:"dial_timeout"`
		ReadTimeout      time.Duration `yaml:"read_timeout"`
		WriteTimeout     time.Duration `yaml:"write_timeout"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time"`
	} `yaml:"clickhouse"`
	Stream struct {
		Enabled        bool          `yaml:"enabled"`
		URL            string        `yaml:"url"`
		Token          string        `yaml:"token"`
		ReconnectDelay time.Duration `yaml:"reconnect_delay"`
		PingInterval   time.Duration `yaml:"ping_interval"`
		MaxRPS         int           `yaml:"max_rps"`
	} `yaml:"stream"`
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(b)
}

// Parse decodes YAML bytes, fills defaults and validates.
func Parse(b []byte) (*Config, error) {
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	c.applyDefaults()

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}
	if err := c.ApplyEnv(os.Getenv); err != nil {
		return nil, err
	}
	return c, nil
}

// ApplyEnv overrides fields from the environment and revalidates.
func (c *Config) ApplyEnv(getenv func(string) string) error {
	if v := getenv("ALPHA_VANTAGE_API_KEY"); v != "" {
		c.Sources.AlphaVantage.APIKey = v
	}
	if v := getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = util.SplitList(v)
	}
	if v := getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
	}
	if v := getenv("CLICKHOUSE_HOST"); v != "" {
		c.ClickHouse.Host = v
	}
	if v := getenv("SYMBOLS"); v != "" {
		c.Prediction.Symbols = util.SplitList(v)
	}
	if v := getenv("PREDICTION_POLICY"); v != "" {
		c.Prediction.Policy = v
	}
	if v := getenv("PREDICTION_THRESHOLD"); v != "" {
		th, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("PREDICTION_THRESHOLD: %w", err)
		}
		c.Prediction.Threshold = th
	}
	if v := getenv("SERVER_PORT"); v != "" {
		c.Server.Port = util.ParseIntDefault(v, c.Server.Port)
	}
	if v := getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	return c.Validate()
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 10 * time.Second
	}
	if c.Server.SlowThreshold == 0 {
		c.Server.SlowThreshold = time.Second
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "console"
	}
	if c.Log.Output == "" {
		c.Log.Output = "stdout"
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}

	p := &c.Prediction
	if p.Policy == "" {
		p.Policy = "production"
	}
	if p.Threshold == 0 {
		p.Threshold = 75
	}
	if p.Horizon == 0 {
		p.Horizon = 5 * time.Minute
	}
	if p.HistoryBars == 0 {
		p.HistoryBars = 100
	}
	if p.PrimaryTimeframe == "" {
		p.PrimaryTimeframe = "1h"
	}
	if p.HigherTimeframe == "" {
		p.HigherTimeframe = "4h"
	}
	if p.FetchTimeout == 0 {
		p.FetchTimeout = 10 * time.Second
	}
	if p.ResolveInterval == 0 {
		p.ResolveInterval = time.Minute
	}
	if p.ResolveBatch == 0 {
		p.ResolveBatch = 100
	}

	if len(c.Sources.Order) == 0 {
		c.Sources.Order = []string{"store", "alpha_vantage", "mock"}
	}
	if c.Sources.AlphaVantage.BaseURL == "" {
		c.Sources.AlphaVantage.BaseURL = "https://www.alphavantage.co/query"
	}
	if c.Sources.AlphaVantage.Timeout == 0 {
		c.Sources.AlphaVantage.Timeout = 10 * time.Second
	}

	if c.Cache.Type == "" {
		c.Cache.Type = "memory"
	}
	if c.Cache.Prefix == "" {
		c.Cache.Prefix = "signalcast"
	}
	if c.Cache.MemoryMaxSize == 0 {
		c.Cache.MemoryMaxSize = 10000
	}
	if c.Cache.QuoteTTL == 0 {
		c.Cache.QuoteTTL = 30 * time.Second
	}
	if c.Cache.SeriesTTL == 0 {
		c.Cache.SeriesTTL = time.Minute
	}
	if c.Cache.MemoryTTL == 0 {
		c.Cache.MemoryTTL = 5 * time.Second
	}
	if c.Cache.CleanupInterval == 0 {
		c.Cache.CleanupInterval = time.Minute
	}

	if c.Queue.Workers == 0 {
		c.Queue.Workers = 2
	}
	if c.Queue.QueueSize == 0 {
		c.Queue.QueueSize = 1000
	}
	if c.Queue.RetryLimit == 0 {
		c.Queue.RetryLimit = 3
	}
	if c.Queue.RetryDelay == 0 {
		c.Queue.RetryDelay = 5 * time.Second
	}
	if c.Queue.KeyPrefix == "" {
		c.Queue.KeyPrefix = "signalcast:queue"
	}

	t := &c.Kafka.Topics
	if t.Predictions == "" {
		t.Predictions = "signalcast.predictions"
	}
	if t.Resolutions == "" {
		t.Resolutions = "signalcast.resolutions"
	}
	if t.Bars == "" {
		t.Bars = "signalcast.bars"
	}
	if t.Logs == "" {
		t.Logs = "signalcast.logs"
	}

	if c.Stream.ReconnectDelay == 0 {
		c.Stream.ReconnectDelay = 5 * time.Second
	}
	if c.Stream.PingInterval == 0 {
		c.Stream.PingInterval = 30 * time.Second
	}
	if c.Stream.MaxRPS == 0 {
		c.Stream.MaxRPS = 50
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	switch strings.ToLower(c.Prediction.Policy) {
	case "production", "legacy":
	default:
		return fmt.Errorf("prediction.policy must be 'production' or 'legacy', got '%s'", c.Prediction.Policy)
	}
	if c.Prediction.Threshold < 0 || c.Prediction.Threshold > 100 {
		return fmt.Errorf("prediction.threshold must be within [0,100], got %v", c.Prediction.Threshold)
	}
	if c.Prediction.HistoryBars < 20 {
		return fmt.Errorf("prediction.history_bars must be at least 20, got %d", c.Prediction.HistoryBars)
	}
	for _, s := range c.Sources.Order {
		switch s {
		case "store", "alpha_vantage", "mock":
		default:
			return fmt.Errorf("sources.order: unknown source '%s'", s)
		}
	}
	switch c.Cache.Type {
	case "memory", "redis", "layered":
	default:
		return fmt.Errorf("cache.type must be 'memory', 'redis' or 'layered', got '%s'", c.Cache.Type)
	}
	if c.Cache.Type != "memory" && c.Redis.Addr == "" {
		return fmt.Errorf("redis.addr is required for cache.type '%s'", c.Cache.Type)
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers cannot be empty when kafka is enabled")
	}
	switch c.Kafka.Consumer.AutoOffsetReset {
	case "", "earliest", "latest":
	default:
		return fmt.Errorf("kafka.consumer.auto_offset_reset must be 'earliest' or 'latest', got '%s'", c.Kafka.Consumer.AutoOffsetReset)
	}
	if c.ClickHouse.Enabled && c.ClickHouse.Host == "" {
		return fmt.Errorf("clickhouse.host is required when clickhouse is enabled")
	}
	if c.Stream.Enabled && c.Stream.URL == "" {
		return fmt.Errorf("stream.url is required when stream is enabled")
	}
	return nil
}
