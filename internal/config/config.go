package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	ServiceName    = "beer-stock"
	ServiceVersion = "0.1.0"
)

const envPrefix = "BEERSTOCK_"

type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	GRPC      GRPCConfig      `yaml:"grpc"`
	Store     StoreConfig     `yaml:"store"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Log       LogConfig       `yaml:"log"`
}

type HTTPConfig struct {
	Addr            string        `yaml:"addr"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type GRPCConfig struct {
	Addr string `yaml:"addr"`
}

type StoreConfig struct {
	// Driver is one of memory, mysql, postgres, redis.
	Driver          string        `yaml:"driver"`
	DSN             string        `yaml:"dsn"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	RedisAddr       string        `yaml:"redis_addr"`
	RedisPoolSize   int           `yaml:"redis_pool_size"`
	LockTTL         time.Duration `yaml:"lock_ttl"`
	LockWait        time.Duration `yaml:"lock_wait"`
}

type KafkaConfig struct {
	Brokers      []string      `yaml:"brokers"`
	Topic        string        `yaml:"topic"`
	BatchTimeout time.Duration `yaml:"batch_timeout"`
}

type TelemetryConfig struct {
	OTLPEndpoint string `yaml:"otlp_endpoint"`
	Insecure     bool   `yaml:"insecure"`
}

type LogConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

func Default() *Config {
	return &Config{
		HTTP: HTTPConfig{
			Addr:            ":8080",
			ShutdownTimeout: 5 * time.Second,
		},
		GRPC: GRPCConfig{
			Addr: ":50051",
		},
		Store: StoreConfig{
			Driver:          "memory",
			MaxOpenConns:    50,
			MaxIdleConns:    25,
			ConnMaxLifetime: 5 * time.Minute,
			RedisAddr:       "localhost:6379",
			RedisPoolSize:   100,
			LockTTL:         5 * time.Second,
			LockWait:        2 * time.Second,
		},
		Kafka: KafkaConfig{
			Topic:        "beer-stock-events",
			BatchTimeout: 10 * time.Millisecond,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads the YAML file at path, when given, over the defaults and then applies
// BEERSTOCK_* environment overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := applyEnv(cfg, os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.Store.Driver {
	case "memory", "redis":
	case "mysql", "postgres":
		if c.Store.DSN == "" {
			return fmt.Errorf("store.dsn is required for driver %s", c.Store.Driver)
		}
	default:
		return fmt.Errorf("unknown store driver %q", c.Store.Driver)
	}
	if c.HTTP.Addr == "" {
		return fmt.Errorf("http.addr is required")
	}
	if len(c.Kafka.Brokers) > 0 && c.Kafka.Topic == "" {
		return fmt.Errorf("kafka.topic is required when brokers are set")
	}
	return nil
}

type lookupFunc func(key string) (string, bool)

func applyEnv(cfg *Config, lookup lookupFunc) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(envPrefix + key); ok {
			*dst = v
		}
	}
	var errs []string
	dur := func(key string, dst *time.Duration) {
		if v, ok := lookup(envPrefix + key); ok {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Sprintf("%s%s: %v", envPrefix, key, err))
				return
			}
			*dst = d
		}
	}
	num := func(key string, dst *int) {
		if v, ok := lookup(envPrefix + key); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Sprintf("%s%s: %v", envPrefix, key, err))
				return
			}
			*dst = n
		}
	}

	str("HTTP_ADDR", &cfg.HTTP.Addr)
	dur("HTTP_SHUTDOWN_TIMEOUT", &cfg.HTTP.ShutdownTimeout)
	str("GRPC_ADDR", &cfg.GRPC.Addr)

	str("STORE_DRIVER", &cfg.Store.Driver)
	str("STORE_DSN", &cfg.Store.DSN)
	num("STORE_MAX_OPEN_CONNS", &cfg.Store.MaxOpenConns)
	num("STORE_MAX_IDLE_CONNS", &cfg.Store.MaxIdleConns)
	dur("STORE_CONN_MAX_LIFETIME", &cfg.Store.ConnMaxLifetime)
	str("REDIS_ADDR", &cfg.Store.RedisAddr)
	num("REDIS_POOL_SIZE", &cfg.Store.RedisPoolSize)
	dur("STORE_LOCK_TTL", &cfg.Store.LockTTL)
	dur("STORE_LOCK_WAIT", &cfg.Store.LockWait)

	if v, ok := lookup(envPrefix + "KAFKA_BROKERS"); ok {
		cfg.Kafka.Brokers = splitList(v)
	}
	str("KAFKA_TOPIC", &cfg.Kafka.Topic)

	str("OTLP_ENDPOINT", &cfg.Telemetry.OTLPEndpoint)
	if v, ok := lookup(envPrefix + "OTLP_INSECURE"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, fmt.Sprintf("%sOTLP_INSECURE: %v", envPrefix, err))
		} else {
			cfg.Telemetry.Insecure = b
		}
	}

	str("LOG_LEVEL", &cfg.Log.Level)

	if len(errs) > 0 {
		return fmt.Errorf("invalid environment: %s", strings.Join(errs, "; "))
	}
	return nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
