// Copyright 2025 Certen Protocol

package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/catalystdao/generalised-relayer-sub000/pkg/chaintypes"
)

// Config holds process-wide configuration for the relayer, read once at
// startup from environment variables.
type Config struct {
	RedisHost    string
	RedisPort    int
	RedisDBIndex int

	ChainsConfigPath string

	ListenAddr string // admin HTTP surface: /health, /metrics, /getAMBs, /prioritiseAMBMessage

	NewOrdersDelay          time.Duration
	EvaluationWindow        time.Duration
	EvaluationRetryInterval time.Duration
	TransactionTimeout      time.Duration
	PollInterval            time.Duration
	TickInterval            time.Duration
	StallRecoveryInterval   time.Duration

	MaxPendingTransactions int
	EvalMaxConcurrent      int
	EvalMaxTries           int
	SubmitMaxTries         int
	ConfirmMaxTries        int
	MaxResubmits           int

	GasBuffer           uint64
	ProfitabilityFactor float64

	LogLevel string
}

// Load reads configuration from environment variables, applying the
// same defaults a local development deployment would want.
func Load() (*Config, error) {
	cfg := &Config{
		RedisHost:    getEnv("REDIS_HOST", "localhost"),
		RedisPort:    getEnvInt("REDIS_PORT", 6379),
		RedisDBIndex: getEnvInt("REDIS_DB_INDEX", 0),

		ChainsConfigPath: getEnv("RELAYER_CONFIG", "./chains.json"),

		ListenAddr: getEnv("LISTEN_ADDR", ":8080"),

		NewOrdersDelay:          getEnvDuration("NEW_ORDERS_DELAY", 10*time.Second),
		EvaluationWindow:        getEnvDuration("EVALUATION_WINDOW", 24*time.Hour),
		EvaluationRetryInterval: getEnvDuration("EVALUATION_RETRY_INTERVAL", 30*time.Second),
		TransactionTimeout:      getEnvDuration("TRANSACTION_TIMEOUT", 5*time.Minute),
		PollInterval:            getEnvDuration("POLL_INTERVAL", 5*time.Second),
		TickInterval:            getEnvDuration("TICK_INTERVAL", time.Second),
		StallRecoveryInterval:   getEnvDuration("STALL_RECOVERY_INTERVAL", 30*time.Second),

		MaxPendingTransactions: getEnvInt("MAX_PENDING_TRANSACTIONS", 50),
		EvalMaxConcurrent:      getEnvInt("EVAL_MAX_CONCURRENT", 8),
		EvalMaxTries:           getEnvInt("EVAL_MAX_TRIES", 10),
		SubmitMaxTries:         getEnvInt("SUBMIT_MAX_TRIES", 5),
		ConfirmMaxTries:        getEnvInt("CONFIRM_MAX_TRIES", 10),
		MaxResubmits:           getEnvInt("MAX_RESUBMITS", 5),

		GasBuffer:           uint64(getEnvInt("GAS_BUFFER", 50000)),
		ProfitabilityFactor: getEnvFloat("PROFITABILITY_FACTOR", 1.1),

		LogLevel: getEnv("LOG_LEVEL", "info"),
	}
	return cfg, nil
}

// Validate fails fast on configuration that would otherwise surface as
// a confusing runtime error later.
func (c *Config) Validate() error {
	if c.ChainsConfigPath == "" {
		return fmt.Errorf("RELAYER_CONFIG must name a chain descriptor file")
	}
	if c.ProfitabilityFactor < 1.0 {
		return fmt.Errorf("PROFITABILITY_FACTOR must be >= 1.0, got %f", c.ProfitabilityFactor)
	}
	if c.MaxPendingTransactions <= 0 {
		return fmt.Errorf("MAX_PENDING_TRANSACTIONS must be positive")
	}
	return nil
}

// LoadChains parses the chain descriptor list named by ChainsConfigPath.
func (c *Config) LoadChains() ([]chaintypes.ChainConfig, error) {
	data, err := os.ReadFile(c.ChainsConfigPath)
	if err != nil {
		return nil, fmt.Errorf("read chains config %s: %w", c.ChainsConfigPath, err)
	}
	var chains []chaintypes.ChainConfig
	if err := json.Unmarshal(data, &chains); err != nil {
		return nil, fmt.Errorf("parse chains config: %w", err)
	}
	return chains, nil
}

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultValue
}
