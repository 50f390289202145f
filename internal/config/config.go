package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds every setting the server and admin CLI read from the environment.
type Config struct {
	Environment string
	Port        string
	BaseURL     string
	CORSOrigins []string

	LogLevel string
	LogFile  string

	Database DatabaseConfig
	Auth     AuthConfig
	Storage  StorageConfig
	Redis    RedisConfig
	Search   SearchConfig
	Email    EmailConfig
	Tracing  TracingConfig

	FFProbePath         string
	MaintenanceInterval time.Duration
	MediaRetention      time.Duration

	// Optional backends that must pass a startup check, e.g. "redis,storage".
	RequiredServices []string
}

type DatabaseConfig struct {
	URL      string
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string
}

// DSN builds a postgres DSN, preferring DATABASE_URL when set.
func (d DatabaseConfig) DSN() string {
	if d.URL != "" {
		return d.URL
	}
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s TimeZone=UTC",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
}

type AuthConfig struct {
	JWTSecret       string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
	ResetTokenTTL   time.Duration
	SecureCookies   bool
}

type StorageConfig struct {
	Driver         string // "s3" or "minio"
	Bucket         string
	Region         string
	CDNBaseURL     string
	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioUseSSL    bool
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
}

// Enabled reports whether a Redis host was configured.
func (r RedisConfig) Enabled() bool { return r.Host != "" }

type SearchConfig struct {
	ElasticsearchURL string
	Index            string
}

type EmailConfig struct {
	From   string
	Region string
}

type TracingConfig struct {
	Enabled      bool
	Endpoint     string
	SamplingRate float64
}

// Load reads .env (when present) and the process environment.
func Load() (*Config, error) {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	cfg := &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		Port:        getEnv("PORT", "8787"),
		BaseURL:     getEnv("APP_BASE_URL", "http://localhost:3000"),
		CORSOrigins: splitList(getEnv("CORS_ORIGINS", "*")),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		LogFile:     getEnv("LOG_FILE", "vidshare.log"),
		Database: DatabaseConfig{
			URL:      os.Getenv("DATABASE_URL"),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: os.Getenv("DB_PASSWORD"),
			Name:     getEnv("DB_NAME", "vidshare"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Auth: AuthConfig{
			JWTSecret:       os.Getenv("JWT_SECRET"),
			AccessTokenTTL:  getDuration("ACCESS_TOKEN_TTL", 15*time.Minute),
			RefreshTokenTTL: getDuration("REFRESH_TOKEN_TTL", 10*24*time.Hour),
			ResetTokenTTL:   getDuration("RESET_TOKEN_TTL", time.Hour),
		},
		Storage: StorageConfig{
			Driver:         strings.ToLower(getEnv("STORAGE_DRIVER", "s3")),
			Bucket:         os.Getenv("AWS_BUCKET"),
			Region:         getEnv("AWS_REGION", "us-east-1"),
			CDNBaseURL:     os.Getenv("CDN_BASE_URL"),
			MinioEndpoint:  os.Getenv("MINIO_ENDPOINT"),
			MinioAccessKey: os.Getenv("MINIO_ACCESS_KEY"),
			MinioSecretKey: os.Getenv("MINIO_SECRET_KEY"),
			MinioUseSSL:    getBool("MINIO_USE_SSL", false),
		},
		Redis: RedisConfig{
			Host:     os.Getenv("REDIS_HOST"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
		},
		Search: SearchConfig{
			ElasticsearchURL: os.Getenv("ELASTICSEARCH_URL"),
			Index:            getEnv("ELASTICSEARCH_INDEX", "videos"),
		},
		Email: EmailConfig{
			From:   os.Getenv("EMAIL_FROM"),
			Region: getEnv("SES_REGION", getEnv("AWS_REGION", "us-east-1")),
		},
		Tracing: TracingConfig{
			Enabled:      getBool("OTEL_ENABLED", false),
			Endpoint:     getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4318"),
			SamplingRate: getFloat("OTEL_SAMPLING_RATE", 1.0),
		},
		FFProbePath:         getEnv("FFPROBE_PATH", "ffprobe"),
		MaintenanceInterval: getDuration("MAINTENANCE_INTERVAL", time.Hour),
		MediaRetention:      getDuration("MEDIA_RETENTION", 30*24*time.Hour),
		RequiredServices:    splitList(strings.ToLower(os.Getenv("REQUIRED_SERVICES"))),
	}
	cfg.Auth.SecureCookies = cfg.IsProduction()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// IsProduction reports whether ENVIRONMENT is production.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// Validate reports every missing required setting at once.
func (c *Config) Validate() error {
	var missing []string
	if c.Auth.JWTSecret == "" {
		if c.IsProduction() {
			missing = append(missing, "JWT_SECRET")
		} else {
			c.Auth.JWTSecret = "dev-secret-change-me"
		}
	}
	switch c.Storage.Driver {
	case "s3":
		if c.IsProduction() && c.Storage.Bucket == "" {
			missing = append(missing, "AWS_BUCKET")
		}
	case "minio":
		if c.Storage.MinioEndpoint == "" {
			missing = append(missing, "MINIO_ENDPOINT")
		}
	default:
		return fmt.Errorf("unsupported STORAGE_DRIVER %q", c.Storage.Driver)
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required environment variables: %s", strings.Join(missing, ", "))
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getBool(key string, defaultValue bool) bool {
	if v, err := strconv.ParseBool(os.Getenv(key)); err == nil {
		return v
	}
	return defaultValue
}

func getFloat(key string, defaultValue float64) float64 {
	if v, err := strconv.ParseFloat(os.Getenv(key), 64); err == nil {
		return v
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if v, err := time.ParseDuration(os.Getenv(key)); err == nil {
		return v
	}
	return defaultValue
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
