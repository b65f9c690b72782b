package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

const (
	StoreMongo = "mongo"
	StoreRedis = "redis"
)

// Config holds application configuration loaded from environment variables.
type Config struct {
	Debug bool `env:"DEBUG" envDefault:"false"`

	// Public base URL of this service; the keep-alive pinger hits APP_URL/health.
	AppURL string `env:"APP_URL" envDefault:"http://localhost:8080"`

	Server struct {
		Port               int    `env:"PORT" envDefault:"8080"`
		CORSAllowedOrigins string `env:"CORS_ALLOWED_ORIGINS" envDefault:"*"`
	}

	Telegram struct {
		BotToken    string        `env:"TELEGRAM_BOT_TOKEN,required,notEmpty"`
		APIBaseURL  string        `env:"TELEGRAM_API_BASE_URL" envDefault:"https://api.telegram.org"`
		PollTimeout time.Duration `env:"TELEGRAM_POLL_TIMEOUT" envDefault:"30s"`
	}

	// Record store backend: mongo or redis
	RecordStore string `env:"RECORD_STORE" envDefault:"mongo"`

	Mongo struct {
		URI        string `env:"MONGO_URI" envDefault:"mongodb://localhost:27017"`
		Database   string `env:"DB_NAME" envDefault:"codemycode"`
		Collection string `env:"COLLECTION_NAME" envDefault:"codemycode"`
	}

	Redis struct {
		Addr      string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
		Password  string `env:"REDIS_PASSWORD" envDefault:""`
		DB        int    `env:"REDIS_DB" envDefault:"0"`
		KeyPrefix string `env:"REDIS_KEY_PREFIX" envDefault:"record:"`
	}

	Delivery struct {
		FetchTimeout     time.Duration `env:"IMAGE_FETCH_TIMEOUT" envDefault:"30s"`
		FetchConcurrency int           `env:"IMAGE_FETCH_CONCURRENCY" envDefault:"4"`
	}

	KeepAlive struct {
		Enabled  bool          `env:"KEEP_ALIVE_ENABLED" envDefault:"false"`
		Interval time.Duration `env:"KEEP_ALIVE_INTERVAL" envDefault:"14m"`
	}
}

// Load reads .env (if present) and the process environment into Config.
func Load() (*Config, error) {
	// .env is optional; in production variables are set directly
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints env tags cannot express.
func (c *Config) Validate() error {
	c.RecordStore = strings.ToLower(strings.TrimSpace(c.RecordStore))
	switch c.RecordStore {
	case StoreMongo, StoreRedis:
	default:
		return fmt.Errorf("invalid RECORD_STORE %q: want %s or %s", c.RecordStore, StoreMongo, StoreRedis)
	}
	if c.Delivery.FetchConcurrency <= 0 {
		return fmt.Errorf("invalid IMAGE_FETCH_CONCURRENCY: %d", c.Delivery.FetchConcurrency)
	}
	if c.Delivery.FetchTimeout <= 0 {
		return fmt.Errorf("invalid IMAGE_FETCH_TIMEOUT: %s", c.Delivery.FetchTimeout)
	}
	if c.KeepAlive.Enabled && c.KeepAlive.Interval <= 0 {
		return fmt.Errorf("invalid KEEP_ALIVE_INTERVAL: %s", c.KeepAlive.Interval)
	}
	return nil
}

// HealthURL returns the endpoint the keep-alive pinger requests.
func (c *Config) HealthURL() string {
	return strings.TrimRight(c.AppURL, "/") + "/health"
}

// HTTPAddr is the listen address of the health server.
func (c *Config) HTTPAddr() string {
	return fmt.Sprintf(":%d", c.Server.Port)
}
