// Package config handles loading application configuration from environment
// variables. All config is centralized here so no other package reads env
// vars directly. Sensible defaults are provided for development.
package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
)

// Config holds all application configuration. Populated from environment
// variables at startup. Passed to other packages via dependency injection.
type Config struct {
	// Env is the runtime environment: "development" or "production".
	Env string

	// Port is the HTTP listen port (default: 8080).
	Port int

	// BaseURL is the public-facing URL used for media links and CORS.
	BaseURL string

	// LogLevel controls log verbosity: "debug", "info", "warn", "error".
	LogLevel string

	// Database holds MariaDB connection settings.
	Database DatabaseConfig

	// Redis holds Redis connection settings.
	Redis RedisConfig

	// Auth holds authentication-related settings.
	Auth AuthConfig

	// Upload holds media upload settings.
	Upload UploadConfig

	// Places holds upstream place-search and geocoding settings.
	Places PlacesConfig

	// Map holds map session defaults (initial viewport, focus behavior).
	Map MapConfig
}

// DatabaseConfig holds MariaDB connection parameters. Individual fields
// (Host, User, Password, Name) are read from separate env vars so container
// orchestrators can manage each independently. If DATABASE_URL is set, it
// takes precedence over the individual fields.
type DatabaseConfig struct {
	// Host is the MariaDB address in host:port format (default: "localhost:3306").
	// If no port is specified, 3306 is appended automatically.
	Host string

	// User is the MariaDB username (default: "memoria").
	User string

	// Password is the MariaDB password (default: "memoria").
	Password string

	// Name is the database name (default: "memoria").
	Name string

	// dsnOverride is set when DATABASE_URL is provided, bypassing individual fields.
	dsnOverride string

	// MaxOpenConns is the maximum number of open connections in the pool.
	MaxOpenConns int

	// MaxIdleConns is the maximum number of idle connections in the pool.
	MaxIdleConns int

	// ConnMaxLifetime is how long a connection can be reused.
	ConnMaxLifetime time.Duration
}

// DSN returns the go-sql-driver/mysql connection string. If DATABASE_URL was
// set, it is returned as-is. Otherwise the DSN is built from the individual
// Host/User/Password/Name fields using the driver's Config.FormatDSN()
// to safely handle special characters in passwords.
func (d DatabaseConfig) DSN() string {
	if d.dsnOverride != "" {
		return d.dsnOverride
	}
	cfg := mysql.NewConfig()
	cfg.User = d.User
	cfg.Passwd = d.Password
	cfg.Net = "tcp"
	cfg.Addr = ensurePort(d.Host, "3306")
	cfg.DBName = d.Name
	cfg.ParseTime = true
	return cfg.FormatDSN()
}

// ensurePort appends the default port if the host string doesn't include one.
// Allows users to set DB_HOST=mydb (gets :3306) or DB_HOST=mydb:3307 (as-is).
func ensurePort(host, defaultPort string) string {
	_, _, err := net.SplitHostPort(host)
	if err != nil {
		return net.JoinHostPort(host, defaultPort)
	}
	return host
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	// URL is the Redis connection URL (e.g., "redis://localhost:6379").
	URL string
}

// AuthConfig holds authentication settings.
type AuthConfig struct {
	// SessionTTL is how long sessions last before expiring.
	SessionTTL time.Duration
}

// UploadConfig holds media upload settings.
type UploadConfig struct {
	// MaxSize is the maximum upload file size in bytes.
	MaxSize int64

	// MediaPath is the root directory for media blob storage.
	MediaPath string

	// PublicPath is the URL path prefix under which media blobs are served.
	PublicPath string
}

// PlacesConfig holds settings for the upstream place-search and geocoding
// backends (Google Places / Google Geocoding).
type PlacesConfig struct {
	// APIKey is the Google Maps Platform key. The resolver degrades to
	// "details unavailable" records when lookups fail without it.
	APIKey string

	// PlacesBaseURL is the Places API base URL (overridable for tests).
	PlacesBaseURL string

	// GeocodeBaseURL is the Geocoding API base URL (overridable for tests).
	GeocodeBaseURL string

	// Language is the language code sent upstream (default: "ja").
	Language string

	// SearchRadius is the default search radius in meters.
	SearchRadius int

	// Timeout is the per-request timeout for upstream calls.
	Timeout time.Duration

	// CacheTTL is how long resolved places stay cached. Repeated identical
	// lookups within this window never hit the network.
	CacheTTL time.Duration
}

// MapConfig holds map session defaults.
type MapConfig struct {
	// InitialLat, InitialLng and InitialZoom define the starting viewport.
	InitialLat  float64
	InitialLng  float64
	InitialZoom float64

	// FocusZoom is the zoom level used when reframing onto a memory.
	FocusZoom float64

	// SearchDebounce is the idle period that coalesces rapid search
	// keystrokes into a single upstream call.
	SearchDebounce time.Duration
}

// Load reads configuration from environment variables with sensible defaults.
// Returns an error if required variables are missing.
func Load() (*Config, error) {
	cfg := &Config{
		Env:      getEnv("ENV", "development"),
		Port:     getEnvInt("PORT", 8080),
		BaseURL:  getEnv("BASE_URL", "http://localhost:8080"),
		LogLevel: getEnv("LOG_LEVEL", "debug"),

		Database: DatabaseConfig{
			Host:            getEnv("DB_HOST", "localhost:3306"),
			User:            getEnv("DB_USER", "memoria"),
			Password:        getEnv("DB_PASSWORD", "memoria"),
			Name:            getEnv("DB_NAME", "memoria"),
			dsnOverride:     getEnv("DATABASE_URL", ""),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
		},

		Redis: RedisConfig{
			URL: getEnv("REDIS_URL", "redis://localhost:6379"),
		},

		Auth: AuthConfig{
			SessionTTL: getEnvDuration("SESSION_TTL", 720*time.Hour),
		},

		Upload: UploadConfig{
			MaxSize:    getEnvInt64("MAX_UPLOAD_SIZE", 20*1024*1024), // 20MB; videos allowed
			MediaPath:  getEnv("MEDIA_PATH", "./media"),
			PublicPath: getEnv("MEDIA_PUBLIC_PATH", "/media"),
		},

		Places: PlacesConfig{
			APIKey:         getEnv("GOOGLE_MAPS_API_KEY", ""),
			PlacesBaseURL:  getEnv("PLACES_BASE_URL", "https://maps.googleapis.com/maps/api/place"),
			GeocodeBaseURL: getEnv("GEOCODE_BASE_URL", "https://maps.googleapis.com/maps/api/geocode"),
			Language:       getEnv("PLACES_LANGUAGE", "ja"),
			SearchRadius:   getEnvInt("PLACES_SEARCH_RADIUS", 1000),
			Timeout:        getEnvDuration("PLACES_TIMEOUT", 10*time.Second),
			CacheTTL:       getEnvDuration("PLACES_CACHE_TTL", 2*time.Minute),
		},

		Map: MapConfig{
			InitialLat:     getEnvFloat("MAP_INITIAL_LAT", 35.6895),
			InitialLng:     getEnvFloat("MAP_INITIAL_LNG", 139.6917),
			InitialZoom:    getEnvFloat("MAP_INITIAL_ZOOM", 12),
			FocusZoom:      getEnvFloat("MAP_FOCUS_ZOOM", 15),
			SearchDebounce: getEnvDuration("MAP_SEARCH_DEBOUNCE", 300*time.Millisecond),
		},
	}

	// The place backends refuse requests without a key; fail fast in
	// production instead of serving a permanently degraded resolver.
	envLower := strings.ToLower(cfg.Env)
	if envLower == "production" || envLower == "prod" {
		if cfg.Places.APIKey == "" {
			return nil, fmt.Errorf("GOOGLE_MAPS_API_KEY is required in production")
		}
	}

	return cfg, nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	env := strings.ToLower(c.Env)
	return env == "development" || env == "dev"
}

// IsProduction returns true if not running in development mode.
func (c *Config) IsProduction() bool {
	return !c.IsDevelopment()
}

// --- Helper functions for reading environment variables ---

// getEnv reads a string env var or returns the default.
func getEnv(key, defaultVal string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return defaultVal
}

// getEnvInt reads an integer env var or returns the default.
func getEnvInt(key string, defaultVal int) int {
	if val, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

// getEnvInt64 reads an int64 env var or returns the default.
func getEnvInt64(key string, defaultVal int64) int64 {
	if val, ok := os.LookupEnv(key); ok {
		if i, err := strconv.ParseInt(val, 10, 64); err == nil {
			return i
		}
	}
	return defaultVal
}

// getEnvFloat reads a float env var or returns the default.
func getEnvFloat(key string, defaultVal float64) float64 {
	if val, ok := os.LookupEnv(key); ok {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

// getEnvDuration reads a duration env var (e.g., "720h") or returns the default.
func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}
