package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port                  string   `mapstructure:"PORT"`
	Env                   string   `mapstructure:"ENV"`
	DatabaseURL           string   `mapstructure:"DATABASE_URL"`
	DBMaxConns            int32    `mapstructure:"DB_MAX_CONNS"`
	DBMinConns            int32    `mapstructure:"DB_MIN_CONNS"`
	RedisURL              string   `mapstructure:"REDIS_URL"`
	OrthancURL            string   `mapstructure:"ORTHANC_URL"`
	OrthancUsername       string   `mapstructure:"ORTHANC_USERNAME"`
	OrthancPassword       string   `mapstructure:"ORTHANC_PASSWORD"`
	OrthancTimeoutSeconds int      `mapstructure:"ORTHANC_TIMEOUT_SECONDS"`
	IngestConcurrency     int      `mapstructure:"INGEST_CONCURRENCY"`
	JobResultTTLSeconds   int      `mapstructure:"JOB_RESULT_TTL_SECONDS"`
	CORSOrigins           []string `mapstructure:"CORS_ORIGINS"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 5)
	v.SetDefault("ORTHANC_URL", "http://localhost:8042")
	v.SetDefault("ORTHANC_TIMEOUT_SECONDS", 7)
	v.SetDefault("INGEST_CONCURRENCY", 3)
	v.SetDefault("JOB_RESULT_TTL_SECONDS", 3600)
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")

	// Bind env vars explicitly so Unmarshal picks them up
	v.BindEnv("PORT")
	v.BindEnv("ENV")
	v.BindEnv("DATABASE_URL")
	v.BindEnv("DB_MAX_CONNS")
	v.BindEnv("DB_MIN_CONNS")
	v.BindEnv("REDIS_URL")
	v.BindEnv("ORTHANC_URL")
	v.BindEnv("ORTHANC_USERNAME")
	v.BindEnv("ORTHANC_PASSWORD")
	v.BindEnv("ORTHANC_TIMEOUT_SECONDS")
	v.BindEnv("INGEST_CONCURRENCY")
	v.BindEnv("JOB_RESULT_TTL_SECONDS")
	v.BindEnv("CORS_ORIGINS")

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.CORSOrigins == nil {
		origins := v.GetString("CORS_ORIGINS")
		if origins != "" {
			cfg.CORSOrigins = strings.Split(origins, ",")
		}
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// OrthancTimeout returns the per-request deadline for archive metadata calls.
func (c *Config) OrthancTimeout() time.Duration {
	if c.OrthancTimeoutSeconds <= 0 {
		return 7 * time.Second
	}
	return time.Duration(c.OrthancTimeoutSeconds) * time.Second
}

// JobResultTTL returns how long terminal job outcomes stay in the result cache.
func (c *Config) JobResultTTL() time.Duration {
	if c.JobResultTTLSeconds <= 0 {
		return time.Hour
	}
	return time.Duration(c.JobResultTTLSeconds) * time.Second
}

// Validate checks that the configuration is safe to run. The archive
// credentials must both be present or both absent; a half-configured pair is
// almost always a deployment mistake.
func (c *Config) Validate() error {
	if c.OrthancURL == "" {
		return fmt.Errorf("ORTHANC_URL is required")
	}
	if (c.OrthancUsername == "") != (c.OrthancPassword == "") {
		return fmt.Errorf("ORTHANC_USERNAME and ORTHANC_PASSWORD must be set together")
	}
	if c.IngestConcurrency < 1 {
		return fmt.Errorf("INGEST_CONCURRENCY must be at least 1, got %d", c.IngestConcurrency)
	}
	return nil
}
