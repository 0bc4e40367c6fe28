package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	// Server
	Port string `mapstructure:"PORT"`
	Env  string `mapstructure:"ENV"`

	// Logging
	LogLevel string `mapstructure:"LOG_LEVEL"`

	// Data
	DataDir     string `mapstructure:"DATA_DIR"`
	ArtifactDir string `mapstructure:"ARTIFACT_DIR"`

	// Stats views are rebuilt on every start; the DSN defaults to an in-memory database
	StatsDSN string `mapstructure:"STATS_DSN"`

	// Redis (empty disables redis and uses the in-process cache)
	RedisURL      string        `mapstructure:"REDIS_URL"`
	ImageCacheTTL time.Duration `mapstructure:"IMAGE_CACHE_TTL"`

	// CORS
	CorsOrigins []string `mapstructure:"CORS_ORIGINS"`

	// External APIs
	APISportsKey            string        `mapstructure:"APISPORTS_API_KEY"`
	APISportsBaseURL        string        `mapstructure:"APISPORTS_BASE_URL"`
	ImageRateLimit          float64       `mapstructure:"IMAGE_RATE_LIMIT"`
	ImageMaxRetries         int           `mapstructure:"IMAGE_MAX_RETRIES"`
	ImageRetryBackoff       time.Duration `mapstructure:"IMAGE_RETRY_BACKOFF"`
	FallbackImageURL        string        `mapstructure:"FALLBACK_IMAGE_URL"`
	ExternalAPITimeout      time.Duration `mapstructure:"EXTERNAL_API_TIMEOUT"`
	CircuitBreakerThreshold int           `mapstructure:"CIRCUIT_BREAKER_THRESHOLD"`

	// Background jobs
	RetrainSchedule string `mapstructure:"RETRAIN_SCHEDULE"`
}

func LoadConfig() (*Config, error) {
	v := viper.New()
	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	v.AddConfigPath("..")

	v.SetDefault("PORT", "8080")
	v.SetDefault("ENV", "development")
	v.SetDefault("LOG_LEVEL", "")
	v.SetDefault("DATA_DIR", "data")
	v.SetDefault("ARTIFACT_DIR", "artifacts")
	v.SetDefault("STATS_DSN", "file::memory:")
	v.SetDefault("REDIS_URL", "")
	v.SetDefault("IMAGE_CACHE_TTL", "24h")
	v.SetDefault("CORS_ORIGINS", "http://localhost:8501,http://localhost:3000")
	v.SetDefault("APISPORTS_API_KEY", "")
	v.SetDefault("APISPORTS_BASE_URL", "https://v1.formula-1.api-sports.io")
	v.SetDefault("IMAGE_RATE_LIMIT", 1.0) // requests per second
	v.SetDefault("IMAGE_MAX_RETRIES", 3)
	v.SetDefault("IMAGE_RETRY_BACKOFF", "1s")
	v.SetDefault("FALLBACK_IMAGE_URL", "https://www.formula1.com/etc/designs/fom-website/images/f1_logo.svg")
	v.SetDefault("EXTERNAL_API_TIMEOUT", "10s")
	v.SetDefault("CIRCUIT_BREAKER_THRESHOLD", 5)
	v.SetDefault("RETRAIN_SCHEDULE", "") // cron spec, empty disables

	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	config.CorsOrigins = nil
	if corsStr := v.GetString("CORS_ORIGINS"); corsStr != "" {
		for _, origin := range strings.Split(corsStr, ",") {
			if origin = strings.TrimSpace(origin); origin != "" {
				config.CorsOrigins = append(config.CorsOrigins, origin)
			}
		}
	}

	config.APISportsBaseURL = strings.TrimRight(config.APISportsBaseURL, "/")

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// Validate rejects settings no component can run with
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("DATA_DIR must not be empty")
	}
	if c.ArtifactDir == "" {
		return fmt.Errorf("ARTIFACT_DIR must not be empty")
	}
	if c.ImageRateLimit <= 0 {
		return fmt.Errorf("IMAGE_RATE_LIMIT must be positive, got %v", c.ImageRateLimit)
	}
	if c.ImageMaxRetries < 0 {
		return fmt.Errorf("IMAGE_MAX_RETRIES must not be negative, got %d", c.ImageMaxRetries)
	}
	return nil
}

// HasImageAPI reports whether an API key was supplied for image lookups
func (c *Config) HasImageAPI() bool {
	return c.APISportsKey != ""
}

// ArtifactPath joins name onto the artifact directory
func (c *Config) ArtifactPath(name string) string {
	return filepath.Join(c.ArtifactDir, name)
}

func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}
