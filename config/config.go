package config

import (
	"fmt"
	"log"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	Port      string `env:"PORT" envDefault:"3000"`
	StaticDir string `env:"STATIC_DIR" envDefault:"./dist/client"`
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`

	FiltersPath   string `env:"FILTERS_PATH" envDefault:"./config.json"`
	SnapshotPath  string `env:"SNAPSHOT_PATH" envDefault:"./data/listings.json"`
	CSVExportPath string `env:"CSV_EXPORT_PATH"`

	Schedule       string `env:"SCRAPE_SCHEDULE" envDefault:"0 2 * * *"`
	SearchBaseURL  string `env:"SEARCH_BASE_URL" envDefault:"https://www.leboncoin.fr/recherche"`
	SearchCategory string `env:"SEARCH_CATEGORY" envDefault:"2"`

	ChromeBin         string        `env:"CHROME_BIN"`
	Headless          bool          `env:"HEADLESS" envDefault:"true"`
	NavigationTimeout time.Duration `env:"NAVIGATION_TIMEOUT" envDefault:"30s"`
	SelectorTimeout   time.Duration `env:"SELECTOR_TIMEOUT" envDefault:"12s"`

	RunTimeout     time.Duration `env:"RUN_TIMEOUT" envDefault:"3m"`
	MaxRetries     int           `env:"MAX_RETRIES" envDefault:"2"`
	RetryBaseDelay time.Duration `env:"RETRY_BASE_DELAY" envDefault:"30s"`
	MinRunInterval time.Duration `env:"MIN_RUN_INTERVAL" envDefault:"1m"`

	PostgresEnabled  bool   `env:"POSTGRES_ENABLED" envDefault:"false"`
	PostgresHost     string `env:"POSTGRES_HOST" envDefault:"localhost"`
	PostgresPort     string `env:"POSTGRES_PORT" envDefault:"5432"`
	PostgresUser     string `env:"POSTGRES_USER" envDefault:"scraper"`
	PostgresPassword string `env:"POSTGRES_PASSWORD" envDefault:"scraper123"`
	PostgresDB       string `env:"POSTGRES_DB" envDefault:"cars_db"`
	PostgresSSLMode  string `env:"POSTGRES_SSLMODE" envDefault:"disable"`

	RedisAddr     string        `env:"REDIS_ADDR"`
	RedisPassword string        `env:"REDIS_PASSWORD"`
	RedisLockKey  string        `env:"REDIS_LOCK_KEY" envDefault:"car-scraper:browser-session"`
	RedisLockTTL  time.Duration `env:"REDIS_LOCK_TTL" envDefault:"5m"`
}

// Load reads the .env file and returns a populated Config struct.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("[config] No .env file found, falling back to system env vars")
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config: parse env: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// validate rejects settings that break the single-flight lock. The Redis
// lease is held for one run attempt, which RUN_TIMEOUT bounds.
func (c *Config) validate() error {
	if c.RedisAddr != "" && c.RedisLockTTL <= c.RunTimeout {
		return fmt.Errorf("config: REDIS_LOCK_TTL (%v) must exceed RUN_TIMEOUT (%v)", c.RedisLockTTL, c.RunTimeout)
	}
	return nil
}

// DSN returns the PostgreSQL connection string.
func (c *Config) DSN() string {
	return "host=" + c.PostgresHost +
		" port=" + c.PostgresPort +
		" user=" + c.PostgresUser +
		" password=" + c.PostgresPassword +
		" dbname=" + c.PostgresDB +
		" sslmode=" + c.PostgresSSLMode
}

// Addr returns the HTTP listen address.
func (c *Config) Addr() string {
	return ":" + c.Port
}
