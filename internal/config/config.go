// Package config handles application configuration loading and management.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/unifiedui/community-gateway/internal/services/authgate"
	"github.com/unifiedui/community-gateway/internal/services/chat"
)

// Config holds all configuration for the application.
type Config struct {
	Server   ServerConfig
	Cache    CacheConfig
	DocDB    DocDBConfig
	Vault    VaultConfig
	Identity IdentityConfig
	Gate     GateConfig
	Session  SessionConfig
	Chat     ChatConfig
	Log      LogConfig
}

// ServerConfig holds server-related configuration.
type ServerConfig struct {
	Host            string
	Port            int
	GinMode         string
	StaticDir       string
	CORSOrigins     []string
	EnableDocs      bool
	ShutdownTimeout time.Duration
}

// Address returns the server address in host:port format.
func (c ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// CacheConfig holds cache-related configuration.
type CacheConfig struct {
	Host      string
	Port      string
	Password  string
	DB        int
	TTL       time.Duration
	KeyPrefix string
}

// DocDBConfig holds document database configuration.
type DocDBConfig struct {
	URI      string
	Database string
}

// VaultConfig holds vault configuration.
type VaultConfig struct {
	Type  string
	Files []string
	// EncryptionKey may be a literal or a vault reference.
	EncryptionKey string
}

// IdentityConfig holds identity provider configuration.
type IdentityConfig struct {
	URL string
	// APIKey may be a literal or a vault reference.
	APIKey  string
	Timeout time.Duration
}

// GateConfig holds the session gate's route policy.
type GateConfig struct {
	PublicPaths       []string
	PublicPrefixes    []string
	AuthPaths         []string
	SignInPath        string
	AuthenticatedPath string
	RefreshThreshold  time.Duration
	LookupTimeout     time.Duration
}

// SessionConfig holds session cookie configuration.
type SessionConfig struct {
	CookiePrefix string
	CookieDomain string
	CookieSecure bool
	CookieMaxAge time.Duration
	UserCacheTTL time.Duration
}

// ChatConfig holds chat backend configuration.
type ChatConfig struct {
	Type       string
	URL        string
	ChatflowID string
	// APIKey may be a literal or a vault reference.
	APIKey            string
	Model             string
	SystemPrompt      string
	Timeout           time.Duration
	RateLimit         float64
	RateBurst         int
	MaxQuestionLength int
	MaxHistory        int
	KeepAlive         time.Duration
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string
	Format string
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not found)
	_ = godotenv.Load()

	routes := authgate.DefaultRouteConfig()

	cfg := &Config{
		Server: ServerConfig{
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			Port:            getEnvAsInt("SERVER_PORT", 8080),
			GinMode:         getEnv("GIN_MODE", "release"),
			StaticDir:       getEnv("STATIC_DIR", ""),
			CORSOrigins:     getEnvAsList("CORS_ALLOWED_ORIGINS", nil),
			EnableDocs:      getEnvAsBool("ENABLE_DOCS", true),
			ShutdownTimeout: getEnvAsDuration("SHUTDOWN_TIMEOUT_SECONDS", 10*time.Second),
		},
		Cache: CacheConfig{
			Host:      getEnv("REDIS_HOST", "localhost"),
			Port:      getEnv("REDIS_PORT", "6379"),
			Password:  getEnv("REDIS_PASSWORD", ""),
			DB:        getEnvAsInt("REDIS_DB", 0),
			TTL:       getEnvAsDuration("CACHE_TTL_SECONDS", 180*time.Second),
			KeyPrefix: getEnv("CACHE_KEY_PREFIX", "cg:"),
		},
		DocDB: DocDBConfig{
			URI:      getEnv("MONGODB_URI", "mongodb://localhost:27017"),
			Database: getEnv("MONGODB_DATABASE", "community"),
		},
		Vault: VaultConfig{
			Type:          getEnv("VAULT_TYPE", "dotenv"),
			Files:         getEnvAsList("VAULT_DOTENV_FILES", nil),
			EncryptionKey: getEnv("SECRETS_ENCRYPTION_KEY", ""),
		},
		Identity: IdentityConfig{
			URL:     getEnv("IDENTITY_URL", ""),
			APIKey:  getEnv("IDENTITY_API_KEY", ""),
			Timeout: getEnvAsDuration("IDENTITY_TIMEOUT_SECONDS", 10*time.Second),
		},
		Gate: GateConfig{
			PublicPaths:       getEnvAsList("GATE_PUBLIC_PATHS", routes.PublicPaths),
			PublicPrefixes:    getEnvAsList("GATE_PUBLIC_PREFIXES", routes.PublicPrefixes),
			AuthPaths:         getEnvAsList("GATE_AUTH_PATHS", routes.AuthPaths),
			SignInPath:        getEnv("GATE_SIGNIN_PATH", routes.SignInPath),
			AuthenticatedPath: getEnv("GATE_AUTHENTICATED_PATH", routes.AuthenticatedPath),
			RefreshThreshold:  getEnvAsDuration("GATE_REFRESH_THRESHOLD_SECONDS", routes.RefreshThreshold),
			LookupTimeout:     getEnvAsDuration("GATE_LOOKUP_TIMEOUT_SECONDS", routes.LookupTimeout),
		},
		Session: SessionConfig{
			CookiePrefix: getEnv("SESSION_COOKIE_PREFIX", "cg"),
			CookieDomain: getEnv("SESSION_COOKIE_DOMAIN", ""),
			CookieSecure: getEnvAsBool("SESSION_COOKIE_SECURE", true),
			CookieMaxAge: getEnvAsDuration("SESSION_COOKIE_MAX_AGE_SECONDS", 30*24*time.Hour),
			UserCacheTTL: getEnvAsDuration("SESSION_USER_CACHE_TTL_SECONDS", 60*time.Second),
		},
		Chat: ChatConfig{
			Type:              getEnv("CHAT_BACKEND_TYPE", string(chat.BackendTypeFlowise)),
			URL:               getEnv("CHAT_BACKEND_URL", "http://localhost:3000"),
			ChatflowID:        getEnv("CHAT_CHATFLOW_ID", ""),
			APIKey:            getEnv("CHAT_API_KEY", ""),
			Model:             getEnv("CHAT_MODEL", ""),
			SystemPrompt:      getEnv("CHAT_SYSTEM_PROMPT", ""),
			Timeout:           getEnvAsDuration("CHAT_TIMEOUT_SECONDS", 60*time.Second),
			RateLimit:         getEnvAsFloat("CHAT_RATE_LIMIT_PER_SECOND", 0.5),
			RateBurst:         getEnvAsInt("CHAT_RATE_BURST", 5),
			MaxQuestionLength: getEnvAsInt("CHAT_MAX_QUESTION_LENGTH", chat.DefaultMaxQuestionLength),
			MaxHistory:        getEnvAsInt("CHAT_MAX_HISTORY", chat.DefaultMaxHistory),
			KeepAlive:         getEnvAsDuration("CHAT_KEEPALIVE_SECONDS", 15*time.Second),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// RouteConfig returns the gate policy described by the configuration.
func (c *Config) RouteConfig() authgate.RouteConfig {
	return authgate.RouteConfig{
		PublicPaths:       c.Gate.PublicPaths,
		PublicPrefixes:    c.Gate.PublicPrefixes,
		AuthPaths:         c.Gate.AuthPaths,
		RefreshThreshold:  c.Gate.RefreshThreshold,
		SignInPath:        c.Gate.SignInPath,
		AuthenticatedPath: c.Gate.AuthenticatedPath,
		LookupTimeout:     c.Gate.LookupTimeout,
	}
}

// Validate rejects values the gateway cannot start with.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", c.Server.Port)
	}
	if c.Identity.URL == "" {
		return fmt.Errorf("IDENTITY_URL is required")
	}
	if err := c.RouteConfig().Validate(); err != nil {
		return fmt.Errorf("invalid gate configuration: %w", err)
	}
	switch chat.BackendType(c.Chat.Type) {
	case chat.BackendTypeFlowise, chat.BackendTypeOpenAI:
	default:
		return fmt.Errorf("unsupported chat backend type: %s", c.Chat.Type)
	}
	if c.Chat.RateLimit < 0 || c.Chat.RateBurst < 0 {
		return fmt.Errorf("chat rate limit must not be negative")
	}
	return nil
}

// getEnv gets an environment variable with a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt gets an environment variable as an integer with a default value.
func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

// getEnvAsDuration reads a whole number of seconds.
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if seconds, err := strconv.Atoi(value); err == nil {
			return time.Duration(seconds) * time.Second
		}
	}
	return defaultValue
}

// getEnvAsList splits a comma separated variable, dropping empty items.
func getEnvAsList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}
