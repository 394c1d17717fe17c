// Package config provides application configuration loaded from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	App      AppConfig
	Auth     AuthConfig
	Mail     MailConfig
	Storage  StorageConfig
	AWS      AWSConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port         string
	ReadTimeout  int // seconds
	WriteTimeout int // seconds
	IdleTimeout  int // seconds
}

// DatabaseConfig holds connection settings. Driver is "postgres" or "sqlite".
type DatabaseConfig struct {
	Driver   string
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
	// Path is the sqlite file when Driver is sqlite.
	Path string
	// SecretARN, when set, holds the connection URL in AWS Secrets Manager.
	SecretARN string
}

// AppConfig holds application-level settings.
type AppConfig struct {
	Dev bool
	// Migrations selects how the schema is applied: "auto" (gorm) or "sql".
	Migrations    string
	MigrationsDir string
	Seed          bool
	PharmacyName  string
	Metrics       bool
}

// AuthConfig holds session and dispatch-token settings.
type AuthConfig struct {
	SessionSecret string
	JWTSecret     string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	AdminEmail    string
	AdminPassword string
}

// MailConfig selects the dispatch driver: "ses" or "log".
type MailConfig struct {
	Driver  string
	From    string
	ReplyTo string
}

// StorageConfig selects where rendered artifacts are retained: "s3" or "memory".
type StorageConfig struct {
	Driver string
	Bucket string
	Prefix string
}

type AWSConfig struct {
	Region string
}

// DSN returns the PostgreSQL connection string in key=value format.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode,
	)
}

// URL returns the PostgreSQL connection string in URL format.
func (d DatabaseConfig) URL() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

// NeedsAWS reports whether any component is configured to talk to AWS.
func (c *Config) NeedsAWS() bool {
	return c.Mail.Driver == "ses" || c.Storage.Driver == "s3" || c.Database.SecretARN != ""
}

// Load reads configuration from environment variables.
// It uses sensible defaults for local development.
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         getEnv("PORT", "8080"),
			ReadTimeout:  getEnvInt("SERVER_READ_TIMEOUT", 15),
			WriteTimeout: getEnvInt("SERVER_WRITE_TIMEOUT", 30),
			IdleTimeout:  getEnvInt("SERVER_IDLE_TIMEOUT", 60),
		},
		Database: DatabaseConfig{
			Driver:    getEnv("DB_DRIVER", "postgres"),
			Host:      getEnv("DB_HOST", "localhost"),
			Port:      getEnvInt("DB_PORT", 5432),
			User:      getEnv("DB_USER", "pharmacy"),
			Password:  getEnv("DB_PASSWORD", "pharmacy123"),
			DBName:    getEnv("DB_NAME", "pharmacy"),
			SSLMode:   getEnv("DB_SSLMODE", "disable"),
			Path:      getEnv("DB_PATH", "pharmacy.db"),
			SecretARN: getEnv("DATABASE_SECRET_ARN", ""),
		},
		App: AppConfig{
			Dev:           getEnvBool("DEV", true),
			Migrations:    getEnv("MIGRATIONS", "auto"),
			MigrationsDir: getEnv("MIGRATIONS_DIR", "migrations"),
			Seed:          getEnvBool("SEED", true),
			PharmacyName:  getEnv("PHARMACY_NAME", "Pharmacy"),
			Metrics:       getEnvBool("METRICS_ENABLED", true),
		},
		Auth: AuthConfig{
			SessionSecret: getEnv("SESSION_SECRET", "devsessionsecret"),
			JWTSecret:     getEnv("JWT_SECRET", "devjwtsecret"),
			AccessTTL:     time.Duration(getEnvInt("DISPATCH_TOKEN_TTL_MINUTES", 5)) * time.Minute,
			RefreshTTL:    time.Duration(getEnvInt("DISPATCH_REFRESH_TTL_MINUTES", 30)) * time.Minute,
			AdminEmail:    getEnv("ADMIN_EMAIL", "admin@pharmacy.local"),
			AdminPassword: getEnv("ADMIN_PASSWORD", ""),
		},
		Mail: MailConfig{
			Driver:  getEnv("MAIL_DRIVER", "log"),
			From:    getEnv("SES_FROM_EMAIL", ""),
			ReplyTo: getEnv("SES_REPLY_TO", ""),
		},
		Storage: StorageConfig{
			Driver: getEnv("ARTIFACT_STORE", "memory"),
			Bucket: getEnv("ARTIFACT_S3_BUCKET", ""),
			Prefix: getEnv("ARTIFACT_S3_PREFIX", "pharmacy/"),
		},
		AWS: AWSConfig{
			Region: getEnv("AWS_REGION", getEnv("AWS_DEFAULT_REGION", "eu-central-1")),
		},
	}
}

// getEnv returns the value of an environment variable or a default.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt returns the integer value of an environment variable or a default.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

// getEnvBool returns the boolean value of an environment variable or a default.
// Accepts "1", "true", "yes" as true; everything else is false.
func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value == "1" || value == "true" || value == "yes"
}
