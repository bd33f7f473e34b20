package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// PlaceholderAPIKey is the value shipped in sample .env files. It is treated
// the same as an unset key.
const PlaceholderAPIKey = "your_claude_api_key_here"

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Inference InferenceConfig `mapstructure:"inference"`
	Caption   CaptionConfig   `mapstructure:"caption"`
	Upload    UploadConfig    `mapstructure:"upload"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
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

type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"` // sqlite or postgres
	Path            string        `mapstructure:"path"`   // sqlite file
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

// DSN builds the driver-specific connection string.
func (c *DatabaseConfig) DSN() string {
	if c.Driver == "postgres" {
		return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
	}
	return c.Path
}

type StorageConfig struct {
	Type      string `mapstructure:"type"` // local, s3, r2, s3compatible
	LocalDir  string `mapstructure:"local_dir"`
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	UseSSL    bool   `mapstructure:"use_ssl"`
	Bucket    string `mapstructure:"bucket"`
	Region    string `mapstructure:"region"`
	PublicURL string `mapstructure:"public_url"`
}

type InferenceConfig struct {
	Provider   string        `mapstructure:"provider"`
	Model      string        `mapstructure:"model"`
	APIKey     string        `mapstructure:"api_key"`
	BaseURL    string        `mapstructure:"base_url"`
	APIVersion string        `mapstructure:"api_version"`
	MaxTokens  int           `mapstructure:"max_tokens"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

// HasCredential reports whether a usable API key is configured.
func (c *InferenceConfig) HasCredential() bool {
	return c.APIKey != "" && c.APIKey != PlaceholderAPIKey
}

type CaptionConfig struct {
	MaxConcurrentBatches int             `mapstructure:"max_concurrent_batches"`
	Fallbacks            FallbacksConfig `mapstructure:"fallbacks"`
}

type FallbacksConfig struct {
	Unreadable FallbackCaption `mapstructure:"unreadable"`
	Transport  FallbackCaption `mapstructure:"transport"`
	Parse      FallbackCaption `mapstructure:"parse"`
}

type FallbackCaption struct {
	Punchline   string `mapstructure:"punchline"`
	Description string `mapstructure:"description"`
}

type UploadConfig struct {
	MaxFileSize    int64 `mapstructure:"max_file_size"`
	MaxFiles       int   `mapstructure:"max_files"`
	ThumbnailWidth int   `mapstructure:"thumbnail_width"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
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

	// Secrets and deployment-specific values use their conventional names
	v.BindEnv("server.port", "PORT")
	v.BindEnv("database.driver", "DB_DRIVER")
	v.BindEnv("database.host", "DB_HOST")
	v.BindEnv("database.port", "DB_PORT")
	v.BindEnv("database.user", "DB_USER")
	v.BindEnv("database.password", "DB_PASSWORD")
	v.BindEnv("database.dbname", "DB_NAME")
	v.BindEnv("storage.type", "STORAGE_TYPE")
	v.BindEnv("storage.endpoint", "S3_ENDPOINT")
	v.BindEnv("storage.access_key", "S3_ACCESS_KEY")
	v.BindEnv("storage.secret_key", "S3_SECRET_KEY")
	v.BindEnv("storage.bucket", "S3_BUCKET")
	v.BindEnv("storage.public_url", "S3_PUBLIC_URL")
	v.BindEnv("inference.api_key", "CLAUDE_API_KEY")
	v.BindEnv("inference.base_url", "CLAUDE_BASE_URL")
	v.BindEnv("inference.model", "CLAUDE_MODEL")

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
	v.SetDefault("server.port", 5000)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.cors.allow_all_origins", true)
	v.SetDefault("server.cors.allowed_origins", []string{})

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "./data/kinflick.db")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "kinflick")
	v.SetDefault("database.dbname", "kinflick")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.max_open_conns", 20)
	v.SetDefault("database.conn_max_lifetime", time.Hour)
	v.SetDefault("database.auto_migrate", true)

	v.SetDefault("storage.type", "local")
	v.SetDefault("storage.local_dir", "./uploads")
	v.SetDefault("storage.use_ssl", true)
	v.SetDefault("storage.bucket", "kinflick")
	v.SetDefault("storage.public_url", "/uploads")

	v.SetDefault("inference.provider", "anthropic")
	v.SetDefault("inference.model", "claude-3-opus-20240229")
	v.SetDefault("inference.base_url", "https://api.anthropic.com")
	v.SetDefault("inference.api_version", "2023-06-01")
	v.SetDefault("inference.max_tokens", 500)
	v.SetDefault("inference.timeout", 30*time.Second)

	v.SetDefault("caption.max_concurrent_batches", 4)
	v.SetDefault("caption.fallbacks.unreadable.punchline", "Image processing failed")
	v.SetDefault("caption.fallbacks.unreadable.description", "Our AI couldn't process this image. Please try again or choose a different photo.")
	v.SetDefault("caption.fallbacks.transport.punchline", "Error occurred")
	v.SetDefault("caption.fallbacks.transport.description", "There was an error processing this image. Please try again or choose a different photo.")
	v.SetDefault("caption.fallbacks.parse.punchline", "Processing error")
	v.SetDefault("caption.fallbacks.parse.description", "Our AI generated content that couldn't be processed correctly. Please try again.")

	v.SetDefault("upload.max_file_size", 10*1024*1024)
	v.SetDefault("upload.max_files", 10)
	v.SetDefault("upload.thumbnail_width", 320)

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")
}

// Validate checks settings that would otherwise fail late at request time.
// A missing inference credential is not an error here: the server still
// serves photos and stored pages, and caption generation reports it.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("database: unknown driver %q", c.Database.Driver)
	}

	switch c.Storage.Type {
	case "local":
		if c.Storage.LocalDir == "" {
			return fmt.Errorf("storage: local_dir is required for local storage")
		}
	case "s3", "r2", "s3compatible", "":
		if c.Storage.Bucket == "" {
			return fmt.Errorf("storage: bucket is required")
		}
	default:
		return fmt.Errorf("storage: unknown type %q", c.Storage.Type)
	}

	if c.Inference.MaxTokens <= 0 {
		return fmt.Errorf("inference: max_tokens must be positive")
	}
	if c.Caption.MaxConcurrentBatches <= 0 {
		return fmt.Errorf("caption: max_concurrent_batches must be positive")
	}
	if c.Upload.MaxFiles <= 0 || c.Upload.MaxFileSize <= 0 {
		return fmt.Errorf("upload: max_files and max_file_size must be positive")
	}
	return nil
}
