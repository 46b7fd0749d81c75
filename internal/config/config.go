package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Database    DatabaseConfig    `mapstructure:"database"`
	ETL         ETLConfig         `mapstructure:"etl"`
	Backoff     BackoffConfig     `mapstructure:"backoff"`
	RateLimit   RateLimitConfig   `mapstructure:"rate_limit"`
	Checkpoint  CheckpointConfig  `mapstructure:"checkpoint"`
	SchemaDrift SchemaDriftConfig `mapstructure:"schema_drift"`
	Sources     SourcesConfig     `mapstructure:"sources"`
	Archive     ArchiveConfig     `mapstructure:"archive"`
}

type ServerConfig struct {
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
}

type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"` // postgres or sqlite
	DSN             string        `mapstructure:"dsn"`
	Path            string        `mapstructure:"path"` // sqlite file path
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
	LogLevel        string        `mapstructure:"log_level"` // silent, error, warn, info
}

// DSNString returns the connection string for the configured driver.
func (c *DatabaseConfig) DSNString() string {
	if c.Driver == "postgres" {
		return c.DSN
	}
	if c.DSN != "" {
		return c.DSN
	}
	return c.Path
}

type ETLConfig struct {
	BatchSize    int           `mapstructure:"batch_size"`
	MaxRetries   int           `mapstructure:"max_retries"`
	Workers      int           `mapstructure:"workers"`
	RunTimeout   time.Duration `mapstructure:"run_timeout"`
	RunOnStartup bool          `mapstructure:"run_on_startup"`
}

type BackoffConfig struct {
	BaseDelay time.Duration `mapstructure:"base_delay"`
	Factor    float64       `mapstructure:"factor"`
	MaxDelay  time.Duration `mapstructure:"max_delay"`
}

type RateLimitConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

type CheckpointConfig struct {
	Enabled  bool `mapstructure:"enabled"`
	Interval int  `mapstructure:"interval"`
}

type SchemaDriftConfig struct {
	Enabled   bool    `mapstructure:"enabled"`
	Threshold float64 `mapstructure:"threshold"`
}

type SourcesConfig struct {
	CoinPaprika CoinPaprikaConfig `mapstructure:"coinpaprika"`
	CoinGecko   CoinGeckoConfig   `mapstructure:"coingecko"`
	CSV         CSVConfig         `mapstructure:"csv"`
}

type CoinPaprikaConfig struct {
	Enabled           bool          `mapstructure:"enabled"`
	BaseURL           string        `mapstructure:"base_url"`
	APIKey            string        `mapstructure:"api_key"`
	RequestsPerMinute int           `mapstructure:"requests_per_minute"`
	Limit             int           `mapstructure:"limit"`
	Timeout           time.Duration `mapstructure:"timeout"`
}

type CoinGeckoConfig struct {
	Enabled           bool          `mapstructure:"enabled"`
	BaseURL           string        `mapstructure:"base_url"`
	APIKey            string        `mapstructure:"api_key"`
	RequestsPerMinute int           `mapstructure:"requests_per_minute"`
	PerPage           int           `mapstructure:"per_page"`
	Timeout           time.Duration `mapstructure:"timeout"`
}

type CSVConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	Path         string `mapstructure:"path"`
	CreateSample bool   `mapstructure:"create_sample"`
}

// ArchiveConfig points at an S3-compatible bucket that receives raw extractions.
type ArchiveConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Type      string `mapstructure:"type"` // s3, r2, s3compatible; empty auto-detects
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	UseSSL    bool   `mapstructure:"use_ssl"`
	Bucket    string `mapstructure:"bucket"`
	Region    string `mapstructure:"region"`
	Prefix    string `mapstructure:"prefix"`
}

func Load(configPath string) (*Config, error) {
	// Load .env file if exists
	_ = godotenv.Load()

	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Secrets and deployment overrides use their conventional names
	v.BindEnv("database.driver", "DATABASE_DRIVER")
	v.BindEnv("database.dsn", "DATABASE_DSN")
	v.BindEnv("sources.coinpaprika.api_key", "COINPAPRIKA_API_KEY")
	v.BindEnv("sources.coingecko.api_key", "COINGECKO_API_KEY")
	v.BindEnv("sources.csv.path", "CSV_FILE_PATH")
	v.BindEnv("archive.endpoint", "ARCHIVE_ENDPOINT")
	v.BindEnv("archive.access_key", "ARCHIVE_ACCESS_KEY")
	v.BindEnv("archive.secret_key", "ARCHIVE_SECRET_KEY")
	v.BindEnv("etl.run_on_startup", "RUN_ETL_ON_STARTUP")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "./data/cryptoetl.db")
	v.SetDefault("database.max_idle_conns", 2)
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.conn_max_lifetime", time.Hour)
	v.SetDefault("database.auto_migrate", true)
	v.SetDefault("database.log_level", "warn")

	v.SetDefault("etl.batch_size", 100)
	v.SetDefault("etl.max_retries", 3)
	v.SetDefault("etl.workers", 3)
	v.SetDefault("etl.run_timeout", 5*time.Minute)
	v.SetDefault("etl.run_on_startup", true)

	v.SetDefault("backoff.base_delay", time.Second)
	v.SetDefault("backoff.factor", 2.0)
	v.SetDefault("backoff.max_delay", 60*time.Second)

	v.SetDefault("rate_limit.enabled", true)

	v.SetDefault("checkpoint.enabled", true)
	v.SetDefault("checkpoint.interval", 50)

	v.SetDefault("schema_drift.enabled", true)
	v.SetDefault("schema_drift.threshold", 0.8)

	v.SetDefault("sources.coinpaprika.enabled", true)
	v.SetDefault("sources.coinpaprika.base_url", "https://api.coinpaprika.com/v1")
	v.SetDefault("sources.coinpaprika.requests_per_minute", 25)
	v.SetDefault("sources.coinpaprika.limit", 100)
	v.SetDefault("sources.coinpaprika.timeout", 30*time.Second)

	v.SetDefault("sources.coingecko.enabled", true)
	v.SetDefault("sources.coingecko.base_url", "https://api.coingecko.com/api/v3")
	v.SetDefault("sources.coingecko.requests_per_minute", 50)
	v.SetDefault("sources.coingecko.per_page", 100)
	v.SetDefault("sources.coingecko.timeout", 30*time.Second)

	v.SetDefault("sources.csv.enabled", true)
	v.SetDefault("sources.csv.path", "./data/crypto_data.csv")
	v.SetDefault("sources.csv.create_sample", true)

	v.SetDefault("archive.enabled", false)
	v.SetDefault("archive.use_ssl", true)
	v.SetDefault("archive.prefix", "raw")
}

// Validate checks the values every component relies on at construction.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "postgres":
		if c.Database.DSN == "" {
			return fmt.Errorf("database: dsn is required for postgres")
		}
	case "sqlite":
		if c.Database.DSNString() == "" {
			return fmt.Errorf("database: path is required for sqlite")
		}
	default:
		return fmt.Errorf("database: unknown driver %q", c.Database.Driver)
	}

	if c.ETL.MaxRetries < 1 {
		return fmt.Errorf("etl: max_retries must be at least 1")
	}
	if c.ETL.Workers < 1 {
		return fmt.Errorf("etl: workers must be at least 1")
	}
	if c.ETL.BatchSize < 1 {
		return fmt.Errorf("etl: batch_size must be positive")
	}
	if c.Backoff.BaseDelay <= 0 || c.Backoff.MaxDelay < c.Backoff.BaseDelay {
		return fmt.Errorf("backoff: need 0 < base_delay <= max_delay")
	}
	if c.Backoff.Factor < 1 {
		return fmt.Errorf("backoff: factor must be >= 1")
	}
	if c.Checkpoint.Interval < 1 {
		return fmt.Errorf("checkpoint: interval must be positive")
	}
	if c.SchemaDrift.Threshold <= 0 || c.SchemaDrift.Threshold > 1 {
		return fmt.Errorf("schema_drift: threshold must be within (0,1]")
	}
	if c.Archive.Enabled && c.Archive.Bucket == "" {
		return fmt.Errorf("archive: bucket is required when enabled")
	}
	return nil
}
