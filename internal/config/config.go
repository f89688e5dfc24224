package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"regexp"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig    `mapstructure:"server"`
	Log      LogConfig       `mapstructure:"log"`
	Auth     AuthConfig      `mapstructure:"auth"`
	Metrics  MetricsConfig   `mapstructure:"metrics"`
	Database DatabaseConfig  `mapstructure:"database"`
	Redis    RedisConfig     `mapstructure:"redis"`
	Kafka    KafkaConfig     `mapstructure:"kafka"`
	CallLog  CallLogConfig   `mapstructure:"calllog"`
	Entities []EntityConfig  `mapstructure:"entities"`
	Channels []ChannelConfig `mapstructure:"channels"`
}

type ServerConfig struct {
	Port string `mapstructure:"port"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

type AuthConfig struct {
	AdminKey string `mapstructure:"admin_key"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

type DatabaseConfig struct {
	DSN          string `mapstructure:"dsn"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
}

type CallLogConfig struct {
	Enabled      bool              `mapstructure:"enabled"`
	Correlation  CorrelationConfig `mapstructure:"correlation"`
	ExcludePaths []string          `mapstructure:"exclude_paths"` // doublestar patterns, matched without the leading slash
	Outbound     OutboundConfig    `mapstructure:"outbound"`
	Completion   CompletionConfig  `mapstructure:"completion"`
	Retention    RetentionConfig   `mapstructure:"retention"`
	Dispatch     DispatchConfig    `mapstructure:"dispatch"`
}

type CorrelationConfig struct {
	HeaderName   string `mapstructure:"header_name"`
	EnsureHeader bool   `mapstructure:"ensure_header"` // generate a key when the caller sent none
}

type OutboundConfig struct {
	Enabled      bool     `mapstructure:"enabled"`
	ExcludeHosts []string `mapstructure:"exclude_hosts"`
}

const (
	CompletionSync  = "sync"
	CompletionAsync = "async"
)

type CompletionConfig struct {
	Mode            string        `mapstructure:"mode"`
	Workers         int           `mapstructure:"workers"`
	QueueSize       int           `mapstructure:"queue_size"`
	RetryMaxElapsed time.Duration `mapstructure:"retry_max_elapsed"`
}

type RetentionConfig struct {
	TTLHours int    `mapstructure:"ttl_hours"` // 0 disables pruning
	Schedule string `mapstructure:"schedule"`
}

type DispatchConfig struct {
	Concurrent bool `mapstructure:"concurrent"`
}

// EntityConfig maps a logical entity type to the table holding it.
type EntityConfig struct {
	Type  string `mapstructure:"type"`
	Table string `mapstructure:"table"`
	Key   string `mapstructure:"key"`
}

type ChannelConfig struct {
	Name      string           `mapstructure:"name"`
	Sink      SinkConfig       `mapstructure:"sink"`
	Redactors []RedactorConfig `mapstructure:"redactors"`
}

const (
	SinkLog       = "log"
	SinkRedis     = "redis"
	SinkKafka     = "kafka"
	SinkWebSocket = "websocket"
	SinkMemory    = "memory"
)

type SinkConfig struct {
	Type   string `mapstructure:"type"`
	Output string `mapstructure:"output"`  // log: stdout, stderr or a file path
	Key    string `mapstructure:"key"`     // redis list key
	MaxLen int64  `mapstructure:"max_len"` // redis list cap
	Topic  string `mapstructure:"topic"`   // kafka topic
	Size   int    `mapstructure:"size"`    // memory ring size
}

type RedactorConfig struct {
	Type        string   `mapstructure:"type"`
	Paths       []string `mapstructure:"paths"`
	Replacement string   `mapstructure:"replacement"`
	Strategy    string   `mapstructure:"strategy"`
}

func (c CompletionConfig) Async() bool { return c.Mode == CompletionAsync }

// Load reads config.yaml from . or ./configs, or the given file when set.
// e.g. APILOGS_DATABASE_DSN overrides database.dsn
func Load(file string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
	}

	v.SetEnvPrefix("apilogs")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			log.Println("No config file found, using defaults and env vars")
		} else {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("log.level", "info")
	v.SetDefault("auth.admin_key", "")
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")
	v.SetDefault("database.dsn", "")
	v.SetDefault("database.max_open_conns", 20)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("kafka.brokers", []string{})

	v.SetDefault("calllog.enabled", true)
	v.SetDefault("calllog.correlation.header_name", "Idempotency-Key")
	v.SetDefault("calllog.correlation.ensure_header", true)
	v.SetDefault("calllog.exclude_paths", []string{"health", "metrics"})
	v.SetDefault("calllog.outbound.enabled", true)
	v.SetDefault("calllog.outbound.exclude_hosts", []string{})
	v.SetDefault("calllog.completion.mode", CompletionSync)
	v.SetDefault("calllog.completion.workers", 4)
	v.SetDefault("calllog.completion.queue_size", 1024)
	v.SetDefault("calllog.completion.retry_max_elapsed", "5s")
	v.SetDefault("calllog.retention.ttl_hours", 8760)
	v.SetDefault("calllog.retention.schedule", "@every 1h")
	v.SetDefault("calllog.dispatch.concurrent", true)

	v.SetDefault("channels", []map[string]any{
		{"name": "api_logs_raw", "sink": map[string]any{"type": SinkLog, "output": "stdout"}},
		{"name": "api_logs_redacted", "sink": map[string]any{"type": SinkMemory, "size": 1000},
			"redactors": []map[string]any{{"type": "common_headers"}, {"type": "common_body"}}},
	})
}

var identifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// Validate rejects configurations the service cannot start with.
func (c *Config) Validate() error {
	var errs []error
	cl := c.CallLog

	if strings.TrimSpace(cl.Correlation.HeaderName) == "" {
		errs = append(errs, errors.New("calllog.correlation.header_name must not be empty"))
	}
	switch cl.Completion.Mode {
	case CompletionSync:
	case CompletionAsync:
		if cl.Completion.Workers <= 0 {
			errs = append(errs, errors.New("calllog.completion.workers must be positive in async mode"))
		}
		if cl.Completion.QueueSize <= 0 {
			errs = append(errs, errors.New("calllog.completion.queue_size must be positive in async mode"))
		}
	default:
		errs = append(errs, fmt.Errorf("calllog.completion.mode %q: want sync or async", cl.Completion.Mode))
	}
	if cl.Completion.RetryMaxElapsed < 0 {
		errs = append(errs, errors.New("calllog.completion.retry_max_elapsed must not be negative"))
	}
	if cl.Retention.TTLHours < 0 {
		errs = append(errs, errors.New("calllog.retention.ttl_hours must not be negative"))
	}
	for _, p := range cl.ExcludePaths {
		if !doublestar.ValidatePattern(p) {
			errs = append(errs, fmt.Errorf("calllog.exclude_paths: bad pattern %q", p))
		}
	}
	for _, p := range cl.Outbound.ExcludeHosts {
		if !doublestar.ValidatePattern(p) {
			errs = append(errs, fmt.Errorf("calllog.outbound.exclude_hosts: bad pattern %q", p))
		}
	}

	seenTypes := map[string]bool{}
	for i, e := range c.Entities {
		switch {
		case e.Type == "":
			errs = append(errs, fmt.Errorf("entities[%d]: type is required", i))
		case seenTypes[e.Type]:
			errs = append(errs, fmt.Errorf("entities[%d]: duplicate type %q", i, e.Type))
		}
		seenTypes[e.Type] = true
		if !identifier.MatchString(e.Table) {
			errs = append(errs, fmt.Errorf("entities[%d]: bad table name %q", i, e.Table))
		}
		if e.Key != "" && !identifier.MatchString(e.Key) {
			errs = append(errs, fmt.Errorf("entities[%d]: bad key column %q", i, e.Key))
		}
	}

	seenChannels := map[string]bool{}
	for i, ch := range c.Channels {
		switch {
		case ch.Name == "":
			errs = append(errs, fmt.Errorf("channels[%d]: name is required", i))
		case seenChannels[ch.Name]:
			errs = append(errs, fmt.Errorf("channels[%d]: duplicate name %q", i, ch.Name))
		}
		seenChannels[ch.Name] = true
		errs = append(errs, c.validateSink(i, ch.Sink)...)
	}
	return errors.Join(errs...)
}

func (c *Config) validateSink(i int, s SinkConfig) []error {
	switch s.Type {
	case SinkLog, SinkWebSocket, SinkMemory:
		return nil
	case SinkRedis:
		if c.Redis.Addr == "" {
			return []error{fmt.Errorf("channels[%d]: redis sink needs redis.addr", i)}
		}
	case SinkKafka:
		var errs []error
		if len(c.Kafka.Brokers) == 0 {
			errs = append(errs, fmt.Errorf("channels[%d]: kafka sink needs kafka.brokers", i))
		}
		if s.Topic == "" {
			errs = append(errs, fmt.Errorf("channels[%d]: kafka sink needs a topic", i))
		}
		return errs
	default:
		return []error{fmt.Errorf("channels[%d]: unknown sink type %q", i, s.Type)}
	}
	return nil
}
