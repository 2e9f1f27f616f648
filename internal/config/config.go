// Package config provides application configuration management with support for environment variables, command-line flags, and .env files.
package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Remote backend names accepted by REMOTE_BACKEND.
const (
	RemoteSQLite   = "sqlite"
	RemoteSupabase = "supabase"
)

// Config holds the application configuration.
type Config struct {
	App    AppConfig
	Logger LoggerConfig
	Server ServerConfig
	Auth   AuthConfig
	Remote RemoteConfig
}

// AppConfig holds application-level configuration.
type AppConfig struct {
	Environment string
	// DataPath is the root for the guest store, search index and token key.
	DataPath string
	// SavePromptThreshold is the guest entry count at which clients should
	// suggest creating an account.
	SavePromptThreshold int
}

// LoggerConfig holds logging configuration.
type LoggerConfig struct {
	Level string
}

// ServerConfig holds server configuration.
type ServerConfig struct {
	Port           string        // Server port (default: 8080)
	ReadTimeout    time.Duration // HTTP read timeout (default: 15s)
	WriteTimeout   time.Duration // HTTP write timeout (default: 15s)
	IdleTimeout    time.Duration // HTTP idle timeout (default: 60s)
	CORSOrigins    []string
	RateLimitRPS   float64
	RateLimitBurst int
}

// AuthConfig holds account token configuration.
type AuthConfig struct {
	// PASETO v4 symmetric key for access tokens (32 bytes, hex encoded).
	// Empty means load or generate one under DataPath.
	AccessTokenKey      string
	AccessTokenDuration time.Duration
}

// RemoteConfig selects and configures the account entry table.
type RemoteConfig struct {
	Backend     string
	SQLitePath  string
	SupabaseURL string
	SupabaseKey string
	Table       string
}

// LoadConfig loads configuration from the process arguments.
func LoadConfig() (*Config, error) {
	return Load(os.Args[1:])
}

// Load builds configuration from multiple sources with precedence:
// 1. Command-line flags (highest priority).
// 2. Environment variables.
// 3. .env file.
// 4. Default values (lowest priority).
func Load(args []string) (*Config, error) {
	fs := flag.NewFlagSet("nibble-server", flag.ContinueOnError)

	env := fs.String("env", "", "Environment (development, staging, production)")
	logLevel := fs.String("log-level", "", "Log level (debug, info, warn, error)")
	dataPath := fs.String("data-path", "", "Base path for local data")
	savePrompt := fs.String("save-prompt-threshold", "", "Guest entry count that triggers the save prompt (default: 3)")

	serverPort := fs.String("port", "", "Server port (default: 8080)")
	readTimeout := fs.String("read-timeout", "", "HTTP read timeout (default: 15s)")
	writeTimeout := fs.String("write-timeout", "", "HTTP write timeout (default: 15s)")
	idleTimeout := fs.String("idle-timeout", "", "HTTP idle timeout (default: 60s)")
	corsOrigins := fs.String("cors-origins", "", "Comma separated allowed origins (default: *)")
	rateRPS := fs.String("rate-limit-rps", "", "Write requests per second per client (default: 5)")
	rateBurst := fs.String("rate-limit-burst", "", "Write burst per client (default: 20)")

	accessTokenDuration := fs.String("access-token-duration", "", "Access token lifetime (default: 720h)")

	remoteBackend := fs.String("remote-backend", "", "Account entry backend: sqlite or supabase (default: sqlite)")
	sqlitePath := fs.String("sqlite-path", "", "SQLite database path (default: {data}/entries.db)")

	envFile := fs.String("env-file", ".env", "Path to .env file")

	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("parse flags: %w", err)
	}

	// Load .env file if it exists. Existing env vars are not overridden.
	_ = godotenv.Load(*envFile)

	cfg := &Config{
		App: AppConfig{
			Environment:         getConfigValue(*env, "ENV", "development"),
			DataPath:            getConfigValue(*dataPath, "DATA_PATH", ""),
			SavePromptThreshold: getIntConfigValue(*savePrompt, "SAVE_PROMPT_THRESHOLD", 3),
		},
		Logger: LoggerConfig{
			Level: getConfigValue(*logLevel, "LOG_LEVEL", "info"),
		},
		Server: ServerConfig{
			Port:           getConfigValue(*serverPort, "PORT", "8080"),
			CORSOrigins:    splitList(getConfigValue(*corsOrigins, "CORS_ORIGINS", "*")),
			RateLimitRPS:   getFloatConfigValue(*rateRPS, "RATE_LIMIT_RPS", 5),
			RateLimitBurst: getIntConfigValue(*rateBurst, "RATE_LIMIT_BURST", 20),
		},
		Auth: AuthConfig{
			AccessTokenKey: getConfigValue("", "TOKEN_KEY", ""),
		},
		Remote: RemoteConfig{
			Backend:     strings.ToLower(getConfigValue(*remoteBackend, "REMOTE_BACKEND", RemoteSQLite)),
			SQLitePath:  getConfigValue(*sqlitePath, "SQLITE_PATH", ""),
			SupabaseURL: getConfigValue("", "SUPABASE_URL", ""),
			SupabaseKey: getConfigValue("", "SUPABASE_KEY", ""),
			Table:       getConfigValue("", "SUPABASE_TABLE", "food_entries"),
		},
	}

	var err error
	if cfg.Auth.AccessTokenDuration, err = parseDuration(*accessTokenDuration, "ACCESS_TOKEN_TTL", "720h"); err != nil {
		return nil, fmt.Errorf("invalid access token duration: %w", err)
	}
	if cfg.Server.ReadTimeout, err = parseDuration(*readTimeout, "SERVER_READ_TIMEOUT", "15s"); err != nil {
		return nil, fmt.Errorf("invalid read timeout: %w", err)
	}
	if cfg.Server.WriteTimeout, err = parseDuration(*writeTimeout, "SERVER_WRITE_TIMEOUT", "15s"); err != nil {
		return nil, fmt.Errorf("invalid write timeout: %w", err)
	}
	if cfg.Server.IdleTimeout, err = parseDuration(*idleTimeout, "SERVER_IDLE_TIMEOUT", "60s"); err != nil {
		return nil, fmt.Errorf("invalid idle timeout: %w", err)
	}

	if err := cfg.expandPaths(); err != nil {
		return nil, fmt.Errorf("invalid data path: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required config values are present and valid.
func (c *Config) Validate() error {
	if c.App.Environment == "" {
		return errors.New("ENV is required")
	}

	validEnvs := map[string]bool{
		"development": true,
		"staging":     true,
		"production":  true,
	}
	if !validEnvs[c.App.Environment] {
		return fmt.Errorf("invalid environment: %s (must be development, staging, or production)", c.App.Environment)
	}

	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[strings.ToLower(c.Logger.Level)] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logger.Level)
	}

	if c.App.DataPath == "" {
		return errors.New("data path cannot be empty after expansion")
	}

	if c.App.SavePromptThreshold < 1 {
		return fmt.Errorf("save prompt threshold must be positive, got %d", c.App.SavePromptThreshold)
	}

	switch c.Remote.Backend {
	case RemoteSQLite:
	case RemoteSupabase:
		if c.Remote.SupabaseURL == "" || c.Remote.SupabaseKey == "" {
			return errors.New("SUPABASE_URL and SUPABASE_KEY are required for the supabase backend")
		}
		if c.Remote.Table == "" {
			return errors.New("SUPABASE_TABLE cannot be empty")
		}
	default:
		return fmt.Errorf("invalid remote backend: %s (must be sqlite or supabase)", c.Remote.Backend)
	}

	if c.Server.RateLimitRPS <= 0 || c.Server.RateLimitBurst <= 0 {
		return errors.New("rate limit rps and burst must be positive")
	}

	return nil
}

// GuestStorePath is where the badger guest store lives.
func (c *Config) GuestStorePath() string {
	return filepath.Join(c.App.DataPath, "guests")
}

// SearchIndexPath is where the catalog search index lives.
func (c *Config) SearchIndexPath() string {
	return filepath.Join(c.App.DataPath, "search")
}

// expandPath expands ~ and makes the path absolute.
// If path is empty and defaultPath is provided, uses the default.
func expandPath(path, defaultPath string) (string, error) {
	if path == "" {
		return defaultPath, nil
	}

	if strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(homeDir, path[2:])
	}

	if !filepath.IsAbs(path) {
		absPath, err := filepath.Abs(path)
		if err != nil {
			return "", fmt.Errorf("failed to get absolute path: %w", err)
		}
		path = absPath
	}

	return filepath.Clean(path), nil
}

// expandPaths resolves DataPath (default ~/Nibble) and the sqlite path
// beneath it.
func (c *Config) expandPaths() error {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("failed to get home directory: %w", err)
	}

	expanded, err := expandPath(c.App.DataPath, filepath.Join(homeDir, "Nibble"))
	if err != nil {
		return err
	}
	c.App.DataPath = expanded

	sqlitePath, err := expandPath(c.Remote.SQLitePath, filepath.Join(c.App.DataPath, "entries.db"))
	if err != nil {
		return err
	}
	c.Remote.SQLitePath = sqlitePath
	return nil
}

// getConfigValue returns the first non-empty value from flag, env var, or default.
func getConfigValue(flagValue, envKey, defaultValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if envKey != "" {
		if envValue := os.Getenv(envKey); envValue != "" {
			return envValue
		}
	}
	return defaultValue
}

// getIntConfigValue returns an int from flag, env var, or default.
func getIntConfigValue(flagValue, envKey string, defaultValue int) int {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue
	}
	var result int
	if _, err := fmt.Sscanf(strValue, "%d", &result); err != nil {
		return defaultValue
	}
	return result
}

// getFloatConfigValue returns a float from flag, env var, or default.
func getFloatConfigValue(flagValue, envKey string, defaultValue float64) float64 {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue
	}
	var result float64
	if _, err := fmt.Sscanf(strValue, "%g", &result); err != nil {
		return defaultValue
	}
	return result
}

func parseDuration(flagValue, envKey, defaultValue string) (time.Duration, error) {
	s := getConfigValue(flagValue, envKey, defaultValue)
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%q: %w", s, err)
	}
	return d, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
