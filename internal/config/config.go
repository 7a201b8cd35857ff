// Package config provides application configuration loading and management.
package config

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const defaultJWTSecret = "your-secret-key-change-in-production"

// Config holds application configuration values loaded from file or environment variables.
type Config struct {
	JWTSecret       string `mapstructure:"JWT_SECRET"`
	SessionTTLHours int    `mapstructure:"SESSION_TTL_HOURS"`
	Port            string `mapstructure:"PORT"`

	DBDriver                 string `mapstructure:"DB_DRIVER"`
	DBPath                   string `mapstructure:"DB_PATH"`
	DBHost                   string `mapstructure:"DB_HOST"`
	DBPort                   string `mapstructure:"DB_PORT"`
	DBUser                   string `mapstructure:"DB_USER"`
	DBPassword               string `mapstructure:"DB_PASSWORD"`
	DBName                   string `mapstructure:"DB_NAME"`
	DBSSLMode                string `mapstructure:"DB_SSLMODE"`
	DBMaxOpenConns           int    `mapstructure:"DB_MAX_OPEN_CONNS"`
	DBMaxIdleConns           int    `mapstructure:"DB_MAX_IDLE_CONNS"`
	DBConnMaxLifetimeMinutes int    `mapstructure:"DB_CONN_MAX_LIFETIME_MINUTES"`
	DBSchemaMode             string `mapstructure:"DB_SCHEMA_MODE"`

	DBAutoMigrateAllowDestructive bool `mapstructure:"DB_AUTOMIGRATE_ALLOW_DESTRUCTIVE"`

	RedisURL       string `mapstructure:"REDIS_URL"`
	AllowedOrigins string `mapstructure:"ALLOWED_ORIGINS"`
	Env            string `mapstructure:"APP_ENV"`
	FeatureFlags   string `mapstructure:"FEATURE_FLAGS"`

	AdminUsername string `mapstructure:"ADMIN_USERNAME"`
	AdminPassword string `mapstructure:"ADMIN_PASSWORD"`

	MediaBackend         string `mapstructure:"MEDIA_BACKEND"`
	MediaDir             string `mapstructure:"MEDIA_DIR"`
	MediaMaxUploadSizeMB int    `mapstructure:"MEDIA_MAX_UPLOAD_SIZE_MB"`
	MinioEndpoint        string `mapstructure:"MINIO_ENDPOINT"`
	MinioAccessKey       string `mapstructure:"MINIO_ACCESS_KEY"`
	MinioSecretKey       string `mapstructure:"MINIO_SECRET_KEY"`
	MinioBucket          string `mapstructure:"MINIO_BUCKET"`
	MinioRegion          string `mapstructure:"MINIO_REGION"`
	MinioUseSSL          bool   `mapstructure:"MINIO_USE_SSL"`
	MinioPublicURL       string `mapstructure:"MINIO_PUBLIC_URL"`

	AIBaseURL        string  `mapstructure:"AI_BASE_URL"`
	AIAPIKey         string  `mapstructure:"AI_API_KEY"`
	AIModel          string  `mapstructure:"AI_MODEL"`
	AITemperature    float64 `mapstructure:"AI_TEMPERATURE"`
	AITimeoutSeconds int     `mapstructure:"AI_TIMEOUT_SECONDS"`
	AIMaxConcurrent  int     `mapstructure:"AI_MAX_CONCURRENT"`
	AIRulesFile      string  `mapstructure:"ASSISTANT_RULES_FILE"`

	TracingEnabled  bool    `mapstructure:"TRACING_ENABLED"`
	TracingExporter string  `mapstructure:"TRACING_EXPORTER"`
	OTLPEndpoint    string  `mapstructure:"OTLP_ENDPOINT"`
	TracingSampler  float64 `mapstructure:"TRACING_SAMPLER_RATIO"`
}

// LoadConfig loads application configuration from file and environment variables.
func LoadConfig() (*Config, error) {
	viper.AddConfigPath(".")
	viper.AddConfigPath("..")
	viper.AddConfigPath("../..")
	viper.SetConfigName("config")
	viper.SetConfigType("yml")
	viper.AutomaticEnv()

	// The base file is optional; environment variables alone are enough.
	_ = viper.ReadInConfig()

	env := viper.GetString("APP_ENV")
	if env == "" {
		env = "development"
	}

	if env != "development" && env != "test" {
		viper.SetConfigName("config." + env)
		if err := viper.MergeInConfig(); err != nil {
			return nil, fmt.Errorf("required profile-specific config 'config.%s.yml' not found: %w", env, err)
		}
		log.Printf("Loaded profile-specific configuration: config.%s.yml", env)
	}

	setDefaults()

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}
	config.normalize()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

func setDefaults() {
	viper.SetDefault("PORT", "8375")
	viper.SetDefault("JWT_SECRET", defaultJWTSecret)
	viper.SetDefault("SESSION_TTL_HOURS", 24*7)

	viper.SetDefault("DB_DRIVER", "postgres")
	viper.SetDefault("DB_PATH", "tdh.db")
	viper.SetDefault("DB_HOST", "localhost")
	viper.SetDefault("DB_PORT", "5432")
	viper.SetDefault("DB_USER", "user")
	viper.SetDefault("DB_PASSWORD", "password")
	viper.SetDefault("DB_NAME", "tdh")
	viper.SetDefault("DB_SSLMODE", "disable")
	viper.SetDefault("DB_MAX_OPEN_CONNS", 25)
	viper.SetDefault("DB_MAX_IDLE_CONNS", 10)
	viper.SetDefault("DB_CONN_MAX_LIFETIME_MINUTES", 5)
	viper.SetDefault("DB_SCHEMA_MODE", "hybrid")
	viper.SetDefault("DB_AUTOMIGRATE_ALLOW_DESTRUCTIVE", false)

	viper.SetDefault("REDIS_URL", "localhost:6379")
	viper.SetDefault("ALLOWED_ORIGINS", "http://localhost:5173,http://localhost:3000")
	viper.SetDefault("APP_ENV", "development")
	viper.SetDefault("FEATURE_FLAGS", "")

	viper.SetDefault("ADMIN_USERNAME", "")
	viper.SetDefault("ADMIN_PASSWORD", "")

	viper.SetDefault("MEDIA_BACKEND", "local")
	viper.SetDefault("MEDIA_DIR", "/tmp/tdh/media")
	viper.SetDefault("MEDIA_MAX_UPLOAD_SIZE_MB", 10)
	viper.SetDefault("MINIO_BUCKET", "tdh-media")
	viper.SetDefault("MINIO_USE_SSL", false)

	viper.SetDefault("AI_BASE_URL", "https://generativelanguage.googleapis.com/v1beta/openai/")
	viper.SetDefault("AI_MODEL", "gemini-1.5-flash")
	viper.SetDefault("AI_TEMPERATURE", 0.4)
	viper.SetDefault("AI_TIMEOUT_SECONDS", 20)
	viper.SetDefault("AI_MAX_CONCURRENT", 4)
	viper.SetDefault("ASSISTANT_RULES_FILE", "")

	viper.SetDefault("TRACING_ENABLED", false)
	viper.SetDefault("TRACING_EXPORTER", "stdout")
	viper.SetDefault("TRACING_SAMPLER_RATIO", 1.0)
}

func (c *Config) normalize() {
	c.DBSSLMode = strings.ToLower(strings.TrimSpace(c.DBSSLMode))
	c.DBDriver = strings.ToLower(strings.TrimSpace(c.DBDriver))
	c.DBSchemaMode = strings.ToLower(strings.TrimSpace(c.DBSchemaMode))
	c.MediaBackend = strings.ToLower(strings.TrimSpace(c.MediaBackend))
	c.Env = strings.ToLower(strings.TrimSpace(c.Env))
}

// IsProduction reports whether the configured environment is production.
func (c *Config) IsProduction() bool {
	return c.Env == "production" || c.Env == "prod"
}

// SessionTTL returns the lifetime of an issued session token.
func (c *Config) SessionTTL() time.Duration {
	if c.SessionTTLHours <= 0 {
		return 24 * time.Hour
	}
	return time.Duration(c.SessionTTLHours) * time.Hour
}

// AITimeout returns the bound applied to each assistant collaborator call.
func (c *Config) AITimeout() time.Duration {
	if c.AITimeoutSeconds <= 0 {
		return 20 * time.Second
	}
	return time.Duration(c.AITimeoutSeconds) * time.Second
}

// Validate ensures that required configuration values are present and meet security standards.
func (c *Config) Validate() error {
	if c.Port == "" {
		return errors.New("PORT is required")
	}
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}

	switch c.DBDriver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("DB_DRIVER must be postgres or sqlite, got %q", c.DBDriver)
	}

	switch c.MediaBackend {
	case "local", "minio":
	default:
		return fmt.Errorf("MEDIA_BACKEND must be local or minio, got %q", c.MediaBackend)
	}
	if c.MediaBackend == "minio" && c.MinioEndpoint == "" {
		return errors.New("MINIO_ENDPOINT is required when MEDIA_BACKEND=minio")
	}
	if c.MediaMaxUploadSizeMB <= 0 {
		return errors.New("MEDIA_MAX_UPLOAD_SIZE_MB must be positive")
	}
	if c.AdminUsername != "" && c.AdminPassword == "" {
		return errors.New("ADMIN_PASSWORD is required when ADMIN_USERNAME is set")
	}

	if c.IsProduction() {
		if c.JWTSecret == defaultJWTSecret {
			return errors.New("JWT_SECRET must be changed from the default value in production")
		}
		if len(c.JWTSecret) < 32 {
			return errors.New("JWT_SECRET must be at least 32 characters in production")
		}
		if c.DBDriver == "postgres" {
			if c.DBPassword == "password" || c.DBPassword == "" {
				return errors.New("a strong DB_PASSWORD is required in production")
			}
			if c.DBSSLMode == "disable" || c.DBSSLMode == "" {
				return errors.New("DB_SSLMODE must enable TLS in production")
			}
		}
		if c.AdminPassword != "" && len(c.AdminPassword) < 12 {
			return errors.New("ADMIN_PASSWORD must be at least 12 characters in production")
		}
		if c.AllowedOrigins == "*" {
			log.Println("WARNING: ALLOWED_ORIGINS is set to '*' in production. This is insecure.")
		}
	} else if len(c.JWTSecret) < 32 {
		log.Println("WARNING: JWT_SECRET is shorter than 32 characters. Consider using a stronger secret for production.")
	}

	return nil
}
