// Package config provides application configuration loading and management.
package config

import (
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/spf13/viper"
)

// Voter identity modes.
const (
	AuthModeJWT       = "jwt"
	AuthModeAnonymous = "anonymous"
	AuthModeMixed     = "mixed"
)

// Storage drivers.
const (
	StorageDriverS3    = "s3"
	StorageDriverLocal = "local"
)

const defaultJWTSecret = "your-secret-key-change-in-production"

// Config holds application configuration values loaded from file or environment variables.
type Config struct {
	Env            string `mapstructure:"APP_ENV"`
	Port           string `mapstructure:"PORT"`
	AllowedOrigins string `mapstructure:"ALLOWED_ORIGINS"`

	DBHost     string `mapstructure:"DB_HOST"`
	DBPort     string `mapstructure:"DB_PORT"`
	DBUser     string `mapstructure:"DB_USER"`
	DBPassword string `mapstructure:"DB_PASSWORD"`
	DBName     string `mapstructure:"DB_NAME"`
	DBSSLMode  string `mapstructure:"DB_SSLMODE"`

	// DBSchemaMode is one of sql, auto, hybrid.
	DBSchemaMode string `mapstructure:"DB_SCHEMA_MODE"`

	RedisURL string `mapstructure:"REDIS_URL"`

	AuthMode     string `mapstructure:"AUTH_MODE"`
	JWTSecret    string `mapstructure:"JWT_SECRET"`
	JWTIssuer    string `mapstructure:"JWT_ISSUER"`
	JWTAudience  string `mapstructure:"JWT_AUDIENCE"`
	VoterHashKey string `mapstructure:"VOTER_HASH_KEY"`

	StorageDriver     string `mapstructure:"STORAGE_DRIVER"`
	S3Bucket          string `mapstructure:"S3_BUCKET"`
	S3Region          string `mapstructure:"S3_REGION"`
	S3Endpoint        string `mapstructure:"S3_ENDPOINT"`
	S3AccessKeyID     string `mapstructure:"S3_ACCESS_KEY_ID"`
	S3SecretAccessKey string `mapstructure:"S3_SECRET_ACCESS_KEY"`
	S3UseSSL          bool   `mapstructure:"S3_USE_SSL"`
	S3PublicURL       string `mapstructure:"S3_PUBLIC_URL"`
	LocalStorageDir   string `mapstructure:"LOCAL_STORAGE_DIR"`
	LocalStorageURL   string `mapstructure:"LOCAL_STORAGE_URL"`
	MaxUploadBytes    int64  `mapstructure:"MAX_UPLOAD_BYTES"`

	LLMBaseURL           string `mapstructure:"LLM_BASE_URL"`
	LLMAPIKey            string `mapstructure:"LLM_API_KEY"`
	LLMModel             string `mapstructure:"LLM_MODEL"`
	LLMTimeoutSeconds    int    `mapstructure:"LLM_TIMEOUT_SECONDS"`
	AssistantProfilePath string `mapstructure:"ASSISTANT_PROFILE_PATH"`

	TracingEnabled    bool    `mapstructure:"TRACING_ENABLED"`
	TracingExporter   string  `mapstructure:"TRACING_EXPORTER"`
	OTLPEndpoint      string  `mapstructure:"OTLP_ENDPOINT"`
	TracingSampleRate float64 `mapstructure:"TRACING_SAMPLE_RATE"`

	RateLimitLikes         int `mapstructure:"RATE_LIMIT_LIKES"`
	RateLimitChat          int `mapstructure:"RATE_LIMIT_CHAT"`
	RateLimitWindowSeconds int `mapstructure:"RATE_LIMIT_WINDOW_SECONDS"`
}

// LoadConfig loads application configuration from file and environment variables.
func LoadConfig() (*Config, error) {
	viper.AddConfigPath(".")
	viper.AddConfigPath("..")
	viper.AddConfigPath("../..")
	viper.SetConfigName("config")
	viper.SetConfigType("yml")
	viper.AutomaticEnv()

	// The base file is optional; env vars and defaults are enough to boot.
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
	viper.SetDefault("APP_ENV", "development")
	viper.SetDefault("PORT", "8375")
	viper.SetDefault("ALLOWED_ORIGINS", "http://localhost:5173,http://localhost:3000,http://127.0.0.1:5173")

	viper.SetDefault("DB_HOST", "localhost")
	viper.SetDefault("DB_PORT", "5432")
	viper.SetDefault("DB_USER", "user")
	viper.SetDefault("DB_PASSWORD", "password")
	viper.SetDefault("DB_NAME", "strayland")
	viper.SetDefault("DB_SSLMODE", "disable")
	viper.SetDefault("DB_SCHEMA_MODE", "hybrid")

	viper.SetDefault("REDIS_URL", "localhost:6379")

	viper.SetDefault("AUTH_MODE", AuthModeMixed)
	viper.SetDefault("JWT_SECRET", defaultJWTSecret)
	viper.SetDefault("JWT_ISSUER", "strayland-api")
	viper.SetDefault("JWT_AUDIENCE", "strayland-app")
	viper.SetDefault("VOTER_HASH_KEY", "")

	viper.SetDefault("STORAGE_DRIVER", StorageDriverLocal)
	viper.SetDefault("S3_BUCKET", "images")
	viper.SetDefault("S3_REGION", "us-east-1")
	viper.SetDefault("S3_USE_SSL", true)
	viper.SetDefault("LOCAL_STORAGE_DIR", "./uploads")
	viper.SetDefault("LOCAL_STORAGE_URL", "/uploads")
	viper.SetDefault("MAX_UPLOAD_BYTES", 10<<20)

	viper.SetDefault("LLM_BASE_URL", "https://api.openai.com/v1")
	viper.SetDefault("LLM_API_KEY", "")
	viper.SetDefault("LLM_MODEL", "gpt-4o-mini")
	viper.SetDefault("LLM_TIMEOUT_SECONDS", 30)
	viper.SetDefault("ASSISTANT_PROFILE_PATH", "")

	viper.SetDefault("TRACING_ENABLED", false)
	viper.SetDefault("TRACING_EXPORTER", "stdout")
	viper.SetDefault("OTLP_ENDPOINT", "localhost:4318")
	viper.SetDefault("TRACING_SAMPLE_RATE", 1.0)

	viper.SetDefault("RATE_LIMIT_LIKES", 60)
	viper.SetDefault("RATE_LIMIT_CHAT", 20)
	viper.SetDefault("RATE_LIMIT_WINDOW_SECONDS", 60)
}

func (c *Config) normalize() {
	c.Env = strings.ToLower(strings.TrimSpace(c.Env))
	c.DBSSLMode = strings.ToLower(strings.TrimSpace(c.DBSSLMode))
	c.DBSchemaMode = strings.ToLower(strings.TrimSpace(c.DBSchemaMode))
	c.AuthMode = strings.ToLower(strings.TrimSpace(c.AuthMode))
	c.StorageDriver = strings.ToLower(strings.TrimSpace(c.StorageDriver))
}

// IsProduction reports whether the config describes a production deployment.
func (c *Config) IsProduction() bool {
	return c.Env == "production" || c.Env == "prod"
}

// AllowsAnonymousVoters reports whether an X-Client-Id token may stand in for a user.
func (c *Config) AllowsAnonymousVoters() bool {
	return c.AuthMode == AuthModeAnonymous || c.AuthMode == AuthModeMixed
}

// UsesJWT reports whether bearer tokens are accepted.
func (c *Config) UsesJWT() bool {
	return c.AuthMode == AuthModeJWT || c.AuthMode == AuthModeMixed
}

// Validate ensures that required configuration values are present and meet security standards.
func (c *Config) Validate() error {
	if c.Port == "" {
		return errors.New("PORT is required")
	}

	switch c.AuthMode {
	case AuthModeJWT, AuthModeAnonymous, AuthModeMixed:
	default:
		return fmt.Errorf("AUTH_MODE must be one of jwt, anonymous, mixed (got %q)", c.AuthMode)
	}

	switch c.StorageDriver {
	case StorageDriverLocal:
	case StorageDriverS3:
		if c.S3Bucket == "" {
			return errors.New("S3_BUCKET is required when STORAGE_DRIVER is s3")
		}
	default:
		return fmt.Errorf("STORAGE_DRIVER must be one of s3, local (got %q)", c.StorageDriver)
	}

	if c.MaxUploadBytes <= 0 {
		return errors.New("MAX_UPLOAD_BYTES must be positive")
	}

	if c.UsesJWT() && c.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}

	if c.IsProduction() {
		if c.UsesJWT() {
			if c.JWTSecret == defaultJWTSecret {
				return errors.New("JWT_SECRET must be changed from the default value in production")
			}
			if len(c.JWTSecret) < 32 {
				return errors.New("JWT_SECRET must be at least 32 characters in production")
			}
		}
		if c.AllowsAnonymousVoters() && c.VoterHashKey == "" {
			return errors.New("VOTER_HASH_KEY is required in production when anonymous voters are allowed")
		}
		if c.DBPassword == "password" || c.DBPassword == "" {
			return errors.New("a strong DB_PASSWORD is required in production")
		}
		if c.DBSSLMode == "disable" || c.DBSSLMode == "" {
			return errors.New("DB_SSLMODE must not be 'disable' in production")
		}
		if c.AllowedOrigins == "*" {
			log.Println("WARNING: ALLOWED_ORIGINS is set to '*' in production. This is insecure.")
		}
	} else if c.UsesJWT() && len(c.JWTSecret) < 32 {
		log.Println("WARNING: JWT_SECRET is shorter than 32 characters. Consider using a stronger secret for production.")
	}

	return nil
}
