// Package config loads runtime settings from the environment, an optional
// .env file and an optional config.yaml.
package config

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration values.
type Config struct {
	Port     string `mapstructure:"PORT"`
	Env      string `mapstructure:"ENV"`
	LogLevel string `mapstructure:"LOG_LEVEL"`
	BaseURL  string `mapstructure:"BASE_URL"`

	// Postgres. DatabaseURL wins over the discrete DB_* settings.
	DatabaseURL    string `mapstructure:"DATABASE_URL"`
	DBHost         string `mapstructure:"DB_HOST"`
	DBUser         string `mapstructure:"DB_USER"`
	DBPassword     string `mapstructure:"DB_PASSWORD"`
	DBName         string `mapstructure:"DB_NAME"`
	DBPort         string `mapstructure:"DB_PORT"`
	DBMaxIdleConns int    `mapstructure:"DB_MAX_IDLE_CONNS"`
	DBMaxOpenConns int    `mapstructure:"DB_MAX_OPEN_CONNS"`

	JWTSecret string        `mapstructure:"JWT_SECRET"`
	JWTExpiry time.Duration `mapstructure:"JWT_EXPIRY"`

	GeminiAPIKey string        `mapstructure:"GEMINI_API_KEY"`
	GeminiModel  string        `mapstructure:"GEMINI_MODEL"`
	AITimeout    time.Duration `mapstructure:"AI_TIMEOUT"`

	RedisURL        string        `mapstructure:"REDIS_URL"`
	ListingCacheTTL time.Duration `mapstructure:"LISTING_CACHE_TTL"`

	StorageDriver      string `mapstructure:"STORAGE_DRIVER"`
	UploadDir          string `mapstructure:"UPLOAD_DIR"`
	AWSRegion          string `mapstructure:"AWS_REGION"`
	AWSAccessKeyID     string `mapstructure:"AWS_ACCESS_KEY_ID"`
	AWSSecretAccessKey string `mapstructure:"AWS_SECRET_ACCESS_KEY"`
	AWSS3Bucket        string `mapstructure:"AWS_S3_BUCKET"`
	CloudinaryURL      string `mapstructure:"CLOUDINARY_URL"`

	FirebaseServiceAccountPath string `mapstructure:"FIREBASE_SERVICE_ACCOUNT_PATH"`
	GoogleClientID             string `mapstructure:"GOOGLE_CLIENT_ID"`

	CORSOrigins         []string `mapstructure:"CORS_ORIGINS"`
	RecommendRatePerMin int      `mapstructure:"RECOMMEND_RATE_PER_MIN"`
	RecommendBurst      int      `mapstructure:"RECOMMEND_BURST"`
}

var defaultCORSOrigins = []string{
	"https://hacktruck-8c735.web.app",
	"https://hacktruck-b0e4d.web.app",
	"http://localhost:5173",
	"http://localhost:4173",
}

// Load reads the .env file (if any), config.yaml (if any) and the process
// environment, in increasing order of precedence.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables only")
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	return fromViper(v)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("PORT", "8080")
	v.SetDefault("ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("BASE_URL", "http://localhost:8080")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "")
	v.SetDefault("DB_NAME", "hacktruck")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_MAX_IDLE_CONNS", 10)
	v.SetDefault("DB_MAX_OPEN_CONNS", 100)
	v.SetDefault("JWT_SECRET", "")
	v.SetDefault("JWT_EXPIRY", "24h")
	v.SetDefault("GEMINI_API_KEY", "")
	v.SetDefault("GEMINI_MODEL", "gemini-2.0-flash")
	v.SetDefault("AI_TIMEOUT", "15s")
	v.SetDefault("REDIS_URL", "")
	v.SetDefault("LISTING_CACHE_TTL", "30s")
	v.SetDefault("STORAGE_DRIVER", "")
	v.SetDefault("UPLOAD_DIR", "./uploads")
	v.SetDefault("AWS_REGION", "")
	v.SetDefault("AWS_ACCESS_KEY_ID", "")
	v.SetDefault("AWS_SECRET_ACCESS_KEY", "")
	v.SetDefault("AWS_S3_BUCKET", "")
	v.SetDefault("CLOUDINARY_URL", "")
	v.SetDefault("FIREBASE_SERVICE_ACCOUNT_PATH", "")
	v.SetDefault("GOOGLE_CLIENT_ID", "")
	v.SetDefault("CORS_ORIGINS", strings.Join(defaultCORSOrigins, ","))
	v.SetDefault("RECOMMEND_RATE_PER_MIN", 30)
	v.SetDefault("RECOMMEND_BURST", 10)
}

// fromViper decodes v into a Config. Durations and the origin list are read
// through viper's typed getters so that plain env strings like "15s" or
// "a,b,c" decode the same way as YAML values.
func fromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	cfg.JWTExpiry = v.GetDuration("JWT_EXPIRY")
	cfg.AITimeout = v.GetDuration("AI_TIMEOUT")
	cfg.ListingCacheTTL = v.GetDuration("LISTING_CACHE_TTL")
	cfg.CORSOrigins = splitList(v.GetString("CORS_ORIGINS"))
	if len(cfg.CORSOrigins) == 0 {
		cfg.CORSOrigins = v.GetStringSlice("CORS_ORIGINS")
	}

	return &cfg, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Validate checks the settings the server cannot start without.
func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}
	if c.JWTExpiry <= 0 {
		return fmt.Errorf("JWT_EXPIRY must be positive, got %s", c.JWTExpiry)
	}
	if c.AITimeout <= 0 {
		return fmt.Errorf("AI_TIMEOUT must be positive, got %s", c.AITimeout)
	}
	switch c.StorageDriver {
	case "", "local", "s3", "cloudinary":
	default:
		return fmt.Errorf("unknown STORAGE_DRIVER %q", c.StorageDriver)
	}
	return nil
}

// DSN returns the Postgres connection string.
func (c *Config) DSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	return fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=disable",
		c.DBHost, c.DBUser, c.DBPassword, c.DBName, c.DBPort,
	)
}

// IsProduction reports whether ENV is "production".
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}
