package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds infrastructure-level configuration loaded from the
// environment. SignerPrivateKey and RPCURL may carry credentials and
// must never appear in logs.
type Config struct {
	// Server
	ListenAddr string

	// Redis backs the nonce and invalidation stores and the event
	// stream. Empty falls back to in-memory stores with no events.
	RedisURL string

	// Chain
	RPCURL           string
	ContractAddress  string
	SignerPrivateKey string // hex-encoded secp256k1 key

	// Session token signing key (hex-encoded P-256 scalar). Empty means
	// an ephemeral key is generated at startup.
	JWTPrivateKey string

	// Auth lifetimes
	ChallengeTTL time.Duration
	AccessTTL    time.Duration
	RefreshTTL   time.Duration

	// Gateway tunables
	MaxInFlightSubmissions int
	SubmitRatePerSecond    int
	ConfirmInterval        time.Duration
	ConfirmTimeout         time.Duration
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		ListenAddr:             getEnv("LISTEN_ADDR", ":9000"),
		RedisURL:               getEnv("REDIS_URL", ""),
		RPCURL:                 getEnv("RPC_URL", ""),
		ContractAddress:        getEnv("CONTRACT_ADDRESS", ""),
		SignerPrivateKey:       getEnv("SIGNER_PRIVATE_KEY", ""),
		JWTPrivateKey:          getEnv("JWT_PRIVATE_KEY", ""),
		ChallengeTTL:           getEnvDuration("CHALLENGE_TTL", 5*time.Minute),
		AccessTTL:              getEnvDuration("ACCESS_TTL", 24*time.Hour),
		RefreshTTL:             getEnvDuration("REFRESH_TTL", 7*24*time.Hour),
		MaxInFlightSubmissions: getEnvInt("MAX_INFLIGHT_SUBMISSIONS", 8),
		SubmitRatePerSecond:    getEnvInt("SUBMIT_RATE", 5),
		ConfirmInterval:        getEnvDuration("CONFIRM_INTERVAL", 2*time.Second),
		ConfirmTimeout:         getEnvDuration("CONFIRM_TIMEOUT", 2*time.Minute),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.RPCURL == "" {
		return fmt.Errorf("RPC_URL is required")
	}

	if c.ContractAddress == "" {
		return fmt.Errorf("CONTRACT_ADDRESS is required")
	}

	if c.SignerPrivateKey == "" {
		return fmt.Errorf("SIGNER_PRIVATE_KEY is required")
	}

	if c.ChallengeTTL <= 0 || c.AccessTTL <= 0 || c.RefreshTTL <= 0 {
		return fmt.Errorf("token and challenge TTLs must be positive")
	}

	if c.MaxInFlightSubmissions <= 0 {
		return fmt.Errorf("MAX_INFLIGHT_SUBMISSIONS must be positive")
	}

	if c.SubmitRatePerSecond <= 0 {
		return fmt.Errorf("SUBMIT_RATE must be positive")
	}

	return nil
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getEnvInt gets an integer environment variable with a default value
func getEnvInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvDuration gets a duration environment variable with a default value
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
