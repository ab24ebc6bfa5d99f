package config

import (
	"fmt"
	"os"
	"strconv"
)

// Config holds all environment-sourced configuration for the status monitor.
type Config struct {
	SSOInstanceARN  string
	IdentityStoreID string
	AWSRegion       string
	CleanupTable    string
	AlertWebhookURL string
	AlertSecretARN  string
	StatusCheck     StatusCheckConfig
}

// Load reads configuration from environment variables and validates required
// fields.
func Load() (*Config, error) {
	cfg := &Config{
		SSOInstanceARN:  os.Getenv("SSO_INSTANCE_ARN"),
		IdentityStoreID: os.Getenv("IDENTITY_STORE_ID"),
		AWSRegion:       os.Getenv("AWS_REGION"),
		CleanupTable:    os.Getenv("CLEANUP_HISTORY_TABLE"),
		AlertWebhookURL: os.Getenv("ALERT_WEBHOOK_URL"),
		AlertSecretARN:  os.Getenv("ALERT_SIGNING_SECRET_ARN"),
		StatusCheck:     DefaultStatusCheckConfig(),
	}

	if v := os.Getenv("STATUS_TIMEOUT_SECONDS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid STATUS_TIMEOUT_SECONDS %q: %w", v, err)
		}
		cfg.StatusCheck.TimeoutSeconds = n
	}
	if v := os.Getenv("STATUS_RETRY_ATTEMPTS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid STATUS_RETRY_ATTEMPTS %q: %w", v, err)
		}
		cfg.StatusCheck.RetryAttempts = n
	}
	if v := os.Getenv("STATUS_RETRY_DELAY_SECONDS"); v != "" {
		n, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid STATUS_RETRY_DELAY_SECONDS %q: %w", v, err)
		}
		cfg.StatusCheck.RetryDelaySeconds = n
	}
	if v := os.Getenv("STATUS_PARALLEL_CHECKS"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("invalid STATUS_PARALLEL_CHECKS %q: %w", v, err)
		}
		cfg.StatusCheck.EnableParallelChecks = b
	}
	if v := os.Getenv("STATUS_MAX_CONCURRENT_CHECKS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid STATUS_MAX_CONCURRENT_CHECKS %q: %w", v, err)
		}
		cfg.StatusCheck.MaxConcurrentChecks = n
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	required := map[string]string{
		"SSO_INSTANCE_ARN":  c.SSOInstanceARN,
		"IDENTITY_STORE_ID": c.IdentityStoreID,
	}

	var missing []string
	for name, val := range required {
		if val == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required environment variables: %v", missing)
	}

	if violations := c.StatusCheck.Validate(); len(violations) > 0 {
		return fmt.Errorf("invalid status check configuration: %v", violations)
	}
	return nil
}

// StatusCheckConfig is the shared policy every checker and the orchestrator
// run under. It is constructed once and read-only afterwards.
type StatusCheckConfig struct {
	TimeoutSeconds        int     `json:"timeout_seconds"`
	RetryAttempts         int     `json:"retry_attempts"`
	RetryDelaySeconds     float64 `json:"retry_delay_seconds"`
	EnableParallelChecks  bool    `json:"enable_parallel_checks"`
	MaxConcurrentChecks   int     `json:"max_concurrent_checks"`
	IncludeDetailedErrors bool    `json:"include_detailed_errors"`
}

// DefaultStatusCheckConfig returns the stock policy.
func DefaultStatusCheckConfig() StatusCheckConfig {
	return StatusCheckConfig{
		TimeoutSeconds:        30,
		RetryAttempts:         2,
		RetryDelaySeconds:     1,
		EnableParallelChecks:  true,
		MaxConcurrentChecks:   4,
		IncludeDetailedErrors: true,
	}
}

// Validate returns a list of human-readable violations rather than an error,
// so callers can report every problem at once. An empty list means the config
// is usable.
func (c StatusCheckConfig) Validate() []string {
	var violations []string
	if c.TimeoutSeconds <= 0 {
		violations = append(violations, fmt.Sprintf("timeout_seconds must be > 0, got %d", c.TimeoutSeconds))
	}
	if c.RetryAttempts < 0 {
		violations = append(violations, fmt.Sprintf("retry_attempts must be >= 0, got %d", c.RetryAttempts))
	}
	if c.RetryDelaySeconds < 0 {
		violations = append(violations, fmt.Sprintf("retry_delay_seconds must be >= 0, got %g", c.RetryDelaySeconds))
	}
	if c.MaxConcurrentChecks <= 0 {
		violations = append(violations, fmt.Sprintf("max_concurrent_checks must be > 0, got %d", c.MaxConcurrentChecks))
	}
	return violations
}
