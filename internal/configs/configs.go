/*
Package configs loads the server configuration from environment variables.

Token settings, the database DSN and the password salt have no defaults: a missing
value is a startup error. In the development environment a .env file in the working
directory is loaded first, without overriding variables that are already set.
*/
package configs

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// PasswordSaltLength is the exact byte length required of PASSWORD_SALT.
const PasswordSaltLength = 16

// AppConfig contains every configuration value the server needs.
type AppConfig struct {
	// General Server Settings
	Environment string
	Port        int

	// Security Settings
	AllowedOrigins     []string
	JWTSecret          string
	JWTIssuer          string
	JWTAudience        string
	AuthTokenExpiry    time.Duration
	PasswordSalt       []byte
	WSHandshakeTimeout time.Duration

	// AdminUsers are usernames or emails granted the elevated flag at startup.
	AdminUsers []string

	// Database Settings
	DatabaseDSN string
}

// IsDevelopment reports whether the server runs in the development environment.
func (c *AppConfig) IsDevelopment() bool {
	return c.Environment == "development"
}

// LoadConfig reads and validates the configuration from the environment.
func LoadConfig() (*AppConfig, error) {
	cfg := &AppConfig{}

	// --- General Server Settings ---
	cfg.Environment = os.Getenv("ENVIRONMENT")
	if cfg.Environment == "" {
		cfg.Environment = "development"
	}

	if cfg.IsDevelopment() {
		// A missing .env file is not an error; the variables may come from the shell.
		_ = godotenv.Load()
	}

	portStr := os.Getenv("PORT")
	if portStr == "" {
		portStr = "3001"
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, fmt.Errorf("invalid PORT environment variable: %w", err)
	}
	if port < 1024 || port > 65535 {
		return nil, fmt.Errorf("port number %d is outside the allowed range (%d-%d)", port, 1024, 65535)
	}
	cfg.Port = port

	// --- Security Settings ---
	cfg.AllowedOrigins = splitList(os.Getenv("ALLOWED_ORIGINS"))
	cfg.AdminUsers = splitList(os.Getenv("ADMIN_USERS"))

	if cfg.JWTSecret, err = required("JWT_SECRET"); err != nil {
		return nil, err
	}
	if cfg.JWTIssuer, err = required("JWT_ISSUER"); err != nil {
		return nil, err
	}
	if cfg.JWTAudience, err = required("JWT_AUDIENCE"); err != nil {
		return nil, err
	}

	expiryStr, err := required("AUTH_TOKEN_EXPIRY")
	if err != nil {
		return nil, err
	}
	expiry, err := strconv.ParseUint(expiryStr, 10, 32)
	if err != nil || expiry == 0 {
		return nil, fmt.Errorf("AUTH_TOKEN_EXPIRY must be a positive number of seconds, got %q", expiryStr)
	}
	cfg.AuthTokenExpiry = time.Duration(expiry) * time.Second

	salt, err := required("PASSWORD_SALT")
	if err != nil {
		return nil, err
	}
	if len(salt) != PasswordSaltLength {
		return nil, fmt.Errorf("PASSWORD_SALT must be exactly %d bytes long, got %d", PasswordSaltLength, len(salt))
	}
	cfg.PasswordSalt = []byte(salt)

	cfg.WSHandshakeTimeout = 10 * time.Second
	if timeoutStr := os.Getenv("WS_HANDSHAKE_TIMEOUT"); timeoutStr != "" {
		timeout, err := time.ParseDuration(timeoutStr)
		if err != nil || timeout <= 0 {
			return nil, fmt.Errorf("invalid WS_HANDSHAKE_TIMEOUT %q", timeoutStr)
		}
		cfg.WSHandshakeTimeout = timeout
	}

	// --- Database Settings ---
	if cfg.DatabaseDSN, err = required("DATABASE_URL"); err != nil {
		return nil, err
	}

	return cfg, nil
}

// required returns the value of an environment variable that must be set.
func required(key string) (string, error) {
	value := os.Getenv(key)
	if value == "" {
		return "", fmt.Errorf("%s environment variable is required", key)
	}
	return value, nil
}

// splitList splits a comma-separated value, dropping blank entries.
func splitList(value string) []string {
	items := []string{}
	for _, item := range strings.Split(value, ",") {
		if trimmed := strings.TrimSpace(item); trimmed != "" {
			items = append(items, trimmed)
		}
	}
	return items
}
