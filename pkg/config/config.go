package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/creasty/defaults"
	"github.com/sethvargo/go-envconfig"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is prepended to every environment override, e.g. GAPSIGHT_UPSTREAM_BASE_URL.
const EnvPrefix = "GAPSIGHT_"

type LogConfig struct {
	Level  string `yaml:"level" env:"LEVEL" default:"info"`
	Format string `yaml:"format" env:"FORMAT" default:"json"`
	Output string `yaml:"output" env:"OUTPUT" default:"stdout"`
	// Collect ships aggregated error logs to kafka.log_topic when Kafka is enabled.
	Collect         bool          `yaml:"collect" env:"COLLECT"`
	CollectInterval time.Duration `yaml:"collect_interval" default:"30s"`
}

type ServerConfig struct {
	Port            int           `yaml:"port" env:"PORT" default:"8080"`
	ReadTimeout     time.Duration `yaml:"read_timeout" default:"10s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" default:"60s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"15s"`
	CORSOrigins     []string      `yaml:"cors_origins" env:"CORS_ORIGINS"`
	// ReportsPerMinute limits report downloads and insight refreshes per client IP.
	ReportsPerMinute int `yaml:"reports_per_minute" default:"30"`
}

type MetricsConfig struct {
	Disabled bool   `yaml:"disabled" env:"DISABLED"`
	Path     string `yaml:"path" default:"/metrics"`
}

type UpstreamConfig struct {
	BaseURL       string        `yaml:"base_url" env:"BASE_URL"`
	Timeout       time.Duration `yaml:"timeout" env:"TIMEOUT" default:"10s"`
	RetryAttempts int           `yaml:"retry_attempts" default:"2"`
	RetryBase     time.Duration `yaml:"retry_base" default:"200ms"`
}

type CacheTTL struct {
	Summary  time.Duration `yaml:"summary" default:"60s"`
	Growth   time.Duration `yaml:"growth" default:"5m"`
	Insights time.Duration `yaml:"insights" default:"10m"`
	Chart    time.Duration `yaml:"chart" default:"5m"`
}

type CacheConfig struct {
	Backend    string   `yaml:"backend" env:"BACKEND" default:"memory"`
	MemorySize int      `yaml:"memory_size" default:"1000"`
	ChartSize  int      `yaml:"chart_size" default:"64"`
	TTL        CacheTTL `yaml:"ttl"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr" env:"ADDR" default:"localhost:6379"`
	Password string `yaml:"password" env:"PASSWORD"`
	DB       int    `yaml:"db" env:"DB"`
	Prefix   string `yaml:"prefix" default:"gapsight"`
	// Pool settings; zero keeps the client defaults.
	PoolSize     int           `yaml:"pool_size" default:"10"`
	MinIdleConns int           `yaml:"min_idle_conns" default:"2"`
	PoolTimeout  time.Duration `yaml:"pool_timeout" default:"5s"`
}

type SnapshotsConfig struct {
	Enabled  bool          `yaml:"enabled" env:"ENABLED"`
	Interval time.Duration `yaml:"interval" env:"INTERVAL" default:"15m"`
	Backend  string        `yaml:"backend" env:"BACKEND" default:"clickhouse"`
	// HistoryDays bounds the archive window used when upstream growth is unavailable.
	HistoryDays  int           `yaml:"history_days" default:"90"`
	BatchSize    int           `yaml:"batch_size" default:"500"`
	BatchTimeout time.Duration `yaml:"batch_timeout" default:"2s"`
}

type KafkaProducerConfig struct {
	MaxAttempts  int           `yaml:"max_attempts" default:"3"`
	Linger       time.Duration `yaml:"linger" default:"50ms"`
	BatchBytes   int           `yaml:"batch_bytes" default:"1048576"`
	BatchSize    int           `yaml:"batch_size" default:"100"`
	WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
	ReadTimeout  time.Duration `yaml:"read_timeout" default:"10s"`
	Async        bool          `yaml:"async"`
}

type KafkaConsumerConfig struct {
	GroupID    string        `yaml:"group_id" env:"GROUP_ID" default:"gapsight-snapshots"`
	Workers    int           `yaml:"workers" default:"2"`
	BufferSize int           `yaml:"buffer_size" default:"256"`
	RetryMax   int           `yaml:"retry_max" default:"3"`
	BackoffMin time.Duration `yaml:"backoff_min" default:"200ms"`
	BackoffMax time.Duration `yaml:"backoff_max" default:"5s"`
	DLQTopic   string        `yaml:"dlq_topic"`
	MinBytes   int           `yaml:"min_bytes" default:"1"`
	MaxBytes   int           `yaml:"max_bytes" default:"10485760"`
}

type KafkaConfig struct {
	Enabled      bool                `yaml:"enabled" env:"ENABLED"`
	Brokers      []string            `yaml:"brokers" env:"BROKERS"`
	Topic        string              `yaml:"topic" env:"TOPIC" default:"gapsight.snapshots"`
	LogTopic     string              `yaml:"log_topic" env:"LOG_TOPIC" default:"gapsight.logs"`
	RequiredAcks int                 `yaml:"required_acks" default:"-1"`
	Compression  string              `yaml:"compression" default:"snappy"`
	Producer     KafkaProducerConfig `yaml:"producer"`
	Consumer     KafkaConsumerConfig `yaml:"consumer" env:", prefix=CONSUMER_"`
}

type ClickHouseConfig struct {
	Enabled          bool          `yaml:"enabled" env:"ENABLED"`
	Host             string        `yaml:"host" env:"HOST"`
	Port             int           `yaml:"port" env:"PORT" default:"9000"`
	Database         string        `yaml:"database" env:"DATABASE" default:"gapsight"`
	User             string        `yaml:"user" env:"USER" default:"default"`
	Password         string        `yaml:"password" env:"PASSWORD"`
	UseHTTP          bool          `yaml:"use_http"`
	AsyncInsert      bool          `yaml:"async_insert"`
	WaitForAsync     bool          `yaml:"wait_for_async_insert"`
	DialTimeout      time.Duration `yaml:"dial_timeout" default:"5s"`
	ReadTimeout      time.Duration `yaml:"read_timeout" default:"30s"`
	WriteTimeout     time.Duration `yaml:"write_timeout" default:"30s"`
	MaxExecutionTime time.Duration `yaml:"max_execution_time" default:"60s"`
}

type QueueConfig struct {
	Enabled    bool          `yaml:"enabled" env:"ENABLED"`
	Name       string        `yaml:"name" default:"gapsight-jobs"`
	Workers    int           `yaml:"workers" default:"2"`
	RetryLimit int           `yaml:"retry_limit" default:"3"`
	RetryDelay time.Duration `yaml:"retry_delay" default:"10s"`
}

type Config struct {
	Environment string           `yaml:"environment" env:"ENVIRONMENT" default:"development"`
	Log         LogConfig        `yaml:"log" env:", prefix=LOG_"`
	Server      ServerConfig     `yaml:"server" env:", prefix=SERVER_"`
	Metrics     MetricsConfig    `yaml:"metrics" env:", prefix=METRICS_"`
	Upstream    UpstreamConfig   `yaml:"upstream" env:", prefix=UPSTREAM_"`
	Cache       CacheConfig      `yaml:"cache" env:", prefix=CACHE_"`
	Redis       RedisConfig      `yaml:"redis" env:", prefix=REDIS_"`
	Snapshots   SnapshotsConfig  `yaml:"snapshots" env:", prefix=SNAPSHOTS_"`
	Kafka       KafkaConfig      `yaml:"kafka" env:", prefix=KAFKA_"`
	ClickHouse  ClickHouseConfig `yaml:"clickhouse" env:", prefix=CLICKHOUSE_"`
	Queue       QueueConfig      `yaml:"queue" env:", prefix=QUEUE_"`
}

// Load reads a YAML file, fills defaults and validates. An empty path means defaults only.
func Load(path string) (*Config, error) {
	c, err := read(path)
	if err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

// LoadWithEnv is Load with GAPSIGHT_* environment variables applied on top of the file.
func LoadWithEnv(ctx context.Context, path string) (*Config, error) {
	return LoadWithLookuper(ctx, path, envconfig.OsLookuper())
}

// LoadWithLookuper is LoadWithEnv with an explicit variable source.
func LoadWithLookuper(ctx context.Context, path string, l envconfig.Lookuper) (*Config, error) {
	c, err := read(path)
	if err != nil {
		return nil, err
	}
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:           c,
		Lookuper:         envconfig.PrefixLookuper(EnvPrefix, l),
		DefaultOverwrite: true,
	}); err != nil {
		return nil, fmt.Errorf("env config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

func read(path string) (*Config, error) {
	var c Config
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(b, &c); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("config defaults: %w", err)
	}
	return &c, nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	var errs []error
	if c.Environment == "" {
		errs = append(errs, errors.New("environment is required"))
	}
	if c.Upstream.BaseURL == "" {
		errs = append(errs, errors.New("upstream.base_url is required"))
	}
	switch c.Cache.Backend {
	case "memory", "redis", "layered":
	default:
		errs = append(errs, fmt.Errorf("cache.backend must be 'memory', 'redis' or 'layered', got '%s'", c.Cache.Backend))
	}
	if c.Snapshots.Enabled {
		switch c.Snapshots.Backend {
		case "kafka":
			if !c.Kafka.Enabled {
				errs = append(errs, errors.New("snapshots.backend 'kafka' needs kafka.enabled"))
			}
		case "clickhouse":
			if !c.ClickHouse.Enabled {
				errs = append(errs, errors.New("snapshots.backend 'clickhouse' needs clickhouse.enabled"))
			}
		default:
			errs = append(errs, fmt.Errorf("snapshots.backend must be 'kafka' or 'clickhouse', got '%s'", c.Snapshots.Backend))
		}
		if c.Snapshots.Interval <= 0 {
			errs = append(errs, errors.New("snapshots.interval must be positive"))
		}
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		errs = append(errs, errors.New("kafka.brokers cannot be empty when kafka is enabled"))
	}
	if c.ClickHouse.Enabled && c.ClickHouse.Host == "" {
		errs = append(errs, errors.New("clickhouse.host is required when clickhouse is enabled"))
	}
	if c.Queue.Enabled && c.Queue.Workers <= 0 {
		errs = append(errs, errors.New("queue.workers must be positive"))
	}
	return errors.Join(errs...)
}

// NeedsRedis reports whether any enabled component talks to Redis.
func (c *Config) NeedsRedis() bool {
	return c.Cache.Backend != "memory" || c.Queue.Enabled
}
