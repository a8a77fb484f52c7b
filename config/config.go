// Package config loads and validates application configuration from
// environment variables. Every problem found while loading is collected and
// reported in one aggregated error so a misconfigured deployment fails fast
// with the full list of what to fix.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// PoolConfig holds settings for the PostgreSQL connection pool.
type PoolConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	MaxSize  int
}

// AuthConfig holds JWT settings.
type AuthConfig struct {
	JWTSecret            string
	AccessTokenDuration  time.Duration
	RefreshTokenDuration time.Duration
}

// StorageConfig holds file-store settings. Buckets become directories under
// Root for the local store.
type StorageConfig struct {
	Root string
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port string
}

// AppConfig is the top-level configuration for the service.
type AppConfig struct {
	DB      *PoolConfig
	Auth    *AuthConfig
	Storage *StorageConfig
	Server  *ServerConfig
}

func getRequiredEnv(key string, errs *[]string) string {
	value, exists := os.LookupEnv(key)
	if !exists {
		*errs = append(*errs, fmt.Sprintf("missing required environment variable: %s", key))
		return ""
	}
	return value
}

func getOptionalEnv(key string, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getOptionalEnvInt(key string, defaultValue int, errs *[]string) int {
	valueStr, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}
	valueInt, err := strconv.Atoi(valueStr)
	if err != nil {
		*errs = append(*errs, fmt.Sprintf("invalid value for %s: expected integer, got '%s': %v", key, valueStr, err))
		return defaultValue
	}
	return valueInt
}

func getOptionalEnvDuration(key string, defaultValue time.Duration, errs *[]string) time.Duration {
	valueStr, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}
	valueDuration, err := time.ParseDuration(valueStr)
	if err != nil {
		*errs = append(*errs, fmt.Sprintf("invalid value for %s: expected duration string, got '%s': %v", key, valueStr, err))
		return defaultValue
	}
	return valueDuration
}

// clampPoolSize keeps the pool size within sane bounds. Out-of-range values
// are reported and clamped rather than rejected.
func clampPoolSize(size int, varName string, errs *[]string) int {
	if size < 2 {
		*errs = append(*errs, fmt.Sprintf("pool size for %s (%d) is less than minimum 2, clamping to 2", varName, size))
		return 2
	}
	if size > 100 {
		*errs = append(*errs, fmt.Sprintf("pool size for %s (%d) is greater than maximum 100, clamping to 100", varName, size))
		return 100
	}
	return size
}

// LoadConfig reads the environment and returns a validated AppConfig, or a
// single error aggregating every problem encountered.
func LoadConfig() (*AppConfig, error) {
	var errs []string

	dbUser := getRequiredEnv("DB_USER", &errs)
	dbPassword := getRequiredEnv("DB_PASSWORD", &errs)
	dbName := getRequiredEnv("DB_NAME", &errs)
	dbHost := getOptionalEnv("DB_HOST", "localhost")
	dbPort := getOptionalEnvInt("DB_PORT", 5432, &errs)
	poolSize := clampPoolSize(getOptionalEnvInt("DB_POOL_SIZE", 10, &errs), "DB_POOL_SIZE", &errs)

	dbConfig := &PoolConfig{
		Host:     dbHost,
		Port:     dbPort,
		User:     dbUser,
		Password: dbPassword,
		DBName:   dbName,
		MaxSize:  poolSize,
	}

	jwtSecret := getRequiredEnv("JWT_SECRET", &errs)
	authConfig := &AuthConfig{
		JWTSecret:            jwtSecret,
		AccessTokenDuration:  getOptionalEnvDuration("JWT_ACCESS_TOKEN_DURATION", 15*time.Minute, &errs),
		RefreshTokenDuration: getOptionalEnvDuration("JWT_REFRESH_TOKEN_DURATION", 168*time.Hour, &errs),
	}

	storageConfig := &StorageConfig{
		Root: getOptionalEnv("STORAGE_ROOT", "./data/uploads"),
	}

	serverConfig := &ServerConfig{
		Port: getOptionalEnv("PORT", "8080"),
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("configuration errors:\n- %s", strings.Join(errs, "\n- "))
	}

	return &AppConfig{
		DB:      dbConfig,
		Auth:    authConfig,
		Storage: storageConfig,
		Server:  serverConfig,
	}, nil
}
