package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config enumerates every recognized option. It is loaded and validated once
// at process start; components receive the sub-structures they need.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Indexer    IndexerConfig    `mapstructure:"indexer"`
	Pipeline   PipelineConfig   `mapstructure:"pipeline"`
	Procedures ProceduresConfig `mapstructure:"procedures"`
	Upload     UploadConfig     `mapstructure:"upload"`
	Archive    ArchiveConfig    `mapstructure:"archive"`
}

type ServerConfig struct {
	Port int        `mapstructure:"port"`
	Mode string     `mapstructure:"mode"`
	CORS CORSConfig `mapstructure:"cors"`
}

type CORSConfig struct {
	AllowedOrigins  []string `mapstructure:"allowed_origins"`
	AllowAllOrigins bool     `mapstructure:"allow_all_origins"`
}

// DatabaseConfig selects the durable document store. If the configured
// driver is unreachable at startup the engine degrades to in-memory mode
// instead of failing.
type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"` // postgres, sqlite
	DSN             string        `mapstructure:"dsn"`    // postgres connection string
	Path            string        `mapstructure:"path"`   // sqlite file path
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// IndexerConfig drives the bulk video-understanding service workflow.
type IndexerConfig struct {
	BaseURL     string  `mapstructure:"base_url"`
	APIKey      string  `mapstructure:"api_key"`
	IndexID     string  `mapstructure:"index_id"`
	Temperature float64 `mapstructure:"temperature"`

	// Polling: exponentially increasing interval bounded by min/max, with an
	// overall indexing timeout.
	PollMinInterval time.Duration `mapstructure:"poll_min_interval"`
	PollMaxInterval time.Duration `mapstructure:"poll_max_interval"`
	IndexingTimeout time.Duration `mapstructure:"indexing_timeout"`

	// Bounded retry with exponential backoff, shared by upload, status, and
	// generation call sites.
	MaxRetries        int           `mapstructure:"max_retries"`
	RetryBaseInterval time.Duration `mapstructure:"retry_base_interval"`
	RetryMaxInterval  time.Duration `mapstructure:"retry_max_interval"`

	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

type PipelineConfig struct {
	Workers      int           `mapstructure:"workers"`
	DirRetention time.Duration `mapstructure:"dir_retention"`
}

// ProceduresConfig names the HTTP runner endpoints for the externally hosted
// analysis procedures. Types without an endpoint fall back to the default
// base URL joined with the analysis type.
type ProceduresConfig struct {
	BaseURL   string            `mapstructure:"base_url"`
	Endpoints map[string]string `mapstructure:"endpoints"`
	Timeout   time.Duration     `mapstructure:"timeout"`
}

type UploadConfig struct {
	TempDir          string   `mapstructure:"temp_dir"`
	MaxSizeMB        int64    `mapstructure:"max_size_mb"`
	SupportedFormats []string `mapstructure:"supported_formats"`
}

// ArchiveConfig enables archival of accepted source videos to object storage.
type ArchiveConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Type      string `mapstructure:"type"` // local, s3
	Dir       string `mapstructure:"dir"`  // local archive root
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	UseSSL    bool   `mapstructure:"use_ssl"`
	Bucket    string `mapstructure:"bucket"`
	Region    string `mapstructure:"region"`
	PublicURL string `mapstructure:"public_url"`
}

// Load reads configuration from an optional YAML file with environment
// variable overrides. A missing config file is not an error; missing required
// values are caught by Validate.
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

	// Bind environment variables explicitly for sensitive data
	v.BindEnv("database.driver", "DB_DRIVER")
	v.BindEnv("database.dsn", "DB_DSN")
	v.BindEnv("database.path", "DB_PATH")
	v.BindEnv("indexer.api_key", "INDEXER_API_KEY")
	v.BindEnv("indexer.base_url", "INDEXER_BASE_URL")
	v.BindEnv("indexer.index_id", "INDEXER_INDEX_ID")
	v.BindEnv("procedures.base_url", "PROCEDURES_BASE_URL")
	v.BindEnv("archive.access_key", "ARCHIVE_ACCESS_KEY")
	v.BindEnv("archive.secret_key", "ARCHIVE_SECRET_KEY")

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
	v.SetDefault("server.cors.allow_all_origins", true)
	v.SetDefault("server.cors.allowed_origins", []string{})

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "./data/reelscope.db")
	v.SetDefault("database.auto_migrate", true)
	v.SetDefault("database.max_idle_conns", 2)
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.conn_max_lifetime", time.Hour)

	v.SetDefault("indexer.base_url", "https://api.twelvelabs.io/v1.3")
	v.SetDefault("indexer.temperature", 0.7)
	v.SetDefault("indexer.poll_min_interval", 2*time.Second)
	v.SetDefault("indexer.poll_max_interval", 30*time.Second)
	v.SetDefault("indexer.indexing_timeout", 15*time.Minute)
	v.SetDefault("indexer.max_retries", 3)
	v.SetDefault("indexer.retry_base_interval", time.Second)
	v.SetDefault("indexer.retry_max_interval", 20*time.Second)
	v.SetDefault("indexer.request_timeout", 2*time.Minute)

	v.SetDefault("pipeline.workers", 4)
	v.SetDefault("pipeline.dir_retention", time.Hour)

	v.SetDefault("procedures.timeout", 10*time.Minute)

	v.SetDefault("upload.temp_dir", "")
	v.SetDefault("upload.max_size_mb", 512)
	v.SetDefault("upload.supported_formats", []string{".mp4", ".mov", ".avi", ".mkv", ".webm"})

	v.SetDefault("archive.enabled", false)
	v.SetDefault("archive.type", "local")
	v.SetDefault("archive.dir", "./data/archive")
}

// Validate fails fast on missing or inconsistent required values.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("database.driver must be postgres or sqlite, got %q", c.Database.Driver)
	}
	if c.Database.Driver == "postgres" && c.Database.DSN == "" {
		return fmt.Errorf("database.dsn is required for the postgres driver")
	}

	if c.Indexer.PollMinInterval <= 0 || c.Indexer.PollMaxInterval < c.Indexer.PollMinInterval {
		return fmt.Errorf("indexer poll interval bounds are inverted: min=%s max=%s",
			c.Indexer.PollMinInterval, c.Indexer.PollMaxInterval)
	}
	if c.Indexer.IndexingTimeout <= 0 {
		return fmt.Errorf("indexer.indexing_timeout must be positive")
	}
	if c.Indexer.MaxRetries < 1 {
		return fmt.Errorf("indexer.max_retries must be at least 1")
	}

	if c.Pipeline.Workers < 1 {
		return fmt.Errorf("pipeline.workers must be at least 1")
	}

	if len(c.Upload.SupportedFormats) == 0 {
		return fmt.Errorf("upload.supported_formats must not be empty")
	}

	if c.Archive.Enabled {
		switch c.Archive.Type {
		case "local":
			if c.Archive.Dir == "" {
				return fmt.Errorf("archive.dir is required for local archiving")
			}
		case "s3":
			if c.Archive.Bucket == "" {
				return fmt.Errorf("archive.bucket is required for s3 archiving")
			}
		default:
			return fmt.Errorf("archive.type must be local or s3, got %q", c.Archive.Type)
		}
	}

	return nil
}

// MultimodalEnabled reports whether the remote indexer is usable: it needs
// credentials plus a target index.
func (c *Config) MultimodalEnabled() bool {
	return c.Indexer.APIKey != "" && c.Indexer.IndexID != ""
}
