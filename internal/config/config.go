package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Mode       string        `mapstructure:"mode"`
	Port       int           `mapstructure:"port"`
	ReadLimit  int64         `mapstructure:"read_limit"`
	PingPeriod time.Duration `mapstructure:"ping_period"`
	SendBuffer int           `mapstructure:"send_buffer"`
	Secret     string        `mapstructure:"secret"`
	LogLevel   string        `mapstructure:"log_level"`

	Redis   RedisConfig   `mapstructure:"redis"`
	Breaker BreakerConfig `mapstructure:"breaker"`
	SQLite  SQLiteConfig  `mapstructure:"sqlite"`
	Kafka   KafkaConfig   `mapstructure:"kafka"`

	// Prices is a list rather than a map: viper lowercases map keys and
	// product ids are case sensitive.
	Prices []Price `mapstructure:"prices"`
}

// RedisConfig selects the cart store. An empty Addr keeps carts in memory.
type RedisConfig struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	CartTTL  time.Duration `mapstructure:"cart_ttl"`
}

type BreakerConfig struct {
	FailureThreshold uint32        `mapstructure:"failure_threshold"`
	OpenTimeout      time.Duration `mapstructure:"open_timeout"`
}

// SQLiteConfig selects the refund store. An empty Path keeps refunds in memory.
type SQLiteConfig struct {
	Path string `mapstructure:"path"`
}

// KafkaConfig enables refund events when Brokers is non-empty.
type KafkaConfig struct {
	Brokers      []string      `mapstructure:"brokers"`
	Topic        string        `mapstructure:"topic"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

type Price struct {
	Product string `mapstructure:"product"`
	Variant string `mapstructure:"variant"`
	Amount  string `mapstructure:"amount"`
}

// PriceTable flattens Prices into the "product" / "product:variant" form.
func (c *Config) PriceTable() map[string]string {
	out := make(map[string]string, len(c.Prices))
	for _, p := range c.Prices {
		key := p.Product
		if p.Variant != "" {
			key += ":" + p.Variant
		}
		out[key] = p.Amount
	}
	return out
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("mode", "release")
	v.SetDefault("port", 8080)
	v.SetDefault("read_limit", 32768)
	v.SetDefault("ping_period", "54s")
	v.SetDefault("send_buffer", 64)
	v.SetDefault("secret", "change-me")
	v.SetDefault("log_level", "info")

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.cart_ttl", "168h")
	v.SetDefault("breaker.failure_threshold", 5)
	v.SetDefault("breaker.open_timeout", "10s")
	v.SetDefault("sqlite.path", "")
	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.topic", "refund-events")
	v.SetDefault("kafka.write_timeout", "5s")
}

// Load reads config/config.<CONFIG_ENV>.yaml on top of the defaults.
// SHOPROOM_* environment variables win over both, e.g. SHOPROOM_REDIS_ADDR.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	fileName := fmt.Sprintf("config/config.%s.yaml", env)

	v.SetConfigFile(fileName)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetEnvPrefix("shoproom")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		fmt.Printf("⚠️ Config file not found (%s), using defaults\n", fileName)
	} else {
		fmt.Printf("✅ Loaded config: %s\n", fileName)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	fmt.Printf("🧩 Mode: %s | Port: %d | Redis: %q | SQLite: %q\n", cfg.Mode, cfg.Port, cfg.Redis.Addr, cfg.SQLite.Path)
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if c.SendBuffer <= 0 {
		return fmt.Errorf("send_buffer must be positive, got %d", c.SendBuffer)
	}
	for i, p := range c.Prices {
		if p.Product == "" || p.Amount == "" {
			return fmt.Errorf("prices[%d]: product and amount are required", i)
		}
	}
	return nil
}
