package application

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	billing "club-ledger/internal/billing/domain"
)

// Config is the billing policy.
type Config struct {
	AdultAge             int           `yaml:"adult_age"`
	FamilyGroupExemption bool          `yaml:"family_group_exemption"`
	LinkBatchConcurrency int           `yaml:"link_batch_concurrency"`
	LinkExpiry           time.Duration `yaml:"-"`
	Currency             string        `yaml:"currency"`
	PaymentBackURL       string        `yaml:"payment_back_url"`
}

type fileConfig struct {
	AdultAge             *int    `yaml:"adult_age"`
	FamilyGroupExemption *bool   `yaml:"family_group_exemption"`
	LinkBatchConcurrency *int    `yaml:"link_batch_concurrency"`
	LinkExpiry           *string `yaml:"link_expiry"`
	Currency             *string `yaml:"currency"`
	PaymentBackURL       *string `yaml:"payment_back_url"`
}

// DefaultConfig returns the built-in policy.
func DefaultConfig() Config {
	return Config{
		AdultAge:             18,
		FamilyGroupExemption: true,
		LinkBatchConcurrency: 4,
		LinkExpiry:           72 * time.Hour,
		Currency:             "ARS",
	}
}

// LoadConfig loads the policy from BILLING_POLICY_FILE (optional) and
// applies BILLING_* environment overrides.
func LoadConfig() (Config, error) {
	cfg := DefaultConfig()
	if path := os.Getenv("BILLING_POLICY_FILE"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, err
		}
		if cfg, err = ParseConfig(data); err != nil {
			return cfg, err
		}
	}

	cfg.AdultAge = getenvIntDefault("BILLING_ADULT_AGE", cfg.AdultAge)
	cfg.LinkBatchConcurrency = getenvIntDefault("BILLING_LINK_BATCH_CONCURRENCY", cfg.LinkBatchConcurrency)
	cfg.Currency = getenvDefault("BILLING_CURRENCY", cfg.Currency)
	cfg.PaymentBackURL = getenvDefault("BILLING_PAYMENT_BACK_URL", cfg.PaymentBackURL)
	if value := os.Getenv("BILLING_FAMILY_GROUP_EXEMPTION"); value != "" {
		parsed, err := strconv.ParseBool(value)
		if err != nil {
			return cfg, errors.New("billing config: BILLING_FAMILY_GROUP_EXEMPTION must be a boolean")
		}
		cfg.FamilyGroupExemption = parsed
	}
	if value := os.Getenv("BILLING_LINK_EXPIRY"); value != "" {
		parsed, err := time.ParseDuration(value)
		if err != nil {
			return cfg, errors.New("billing config: invalid BILLING_LINK_EXPIRY")
		}
		cfg.LinkExpiry = parsed
	}
	return cfg, cfg.validate()
}

// ParseConfig reads a YAML policy on top of the defaults.
func ParseConfig(data []byte) (Config, error) {
	cfg := DefaultConfig()
	var raw fileConfig
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return cfg, err
	}
	if raw.AdultAge != nil {
		cfg.AdultAge = *raw.AdultAge
	}
	if raw.FamilyGroupExemption != nil {
		cfg.FamilyGroupExemption = *raw.FamilyGroupExemption
	}
	if raw.LinkBatchConcurrency != nil {
		cfg.LinkBatchConcurrency = *raw.LinkBatchConcurrency
	}
	if raw.LinkExpiry != nil && *raw.LinkExpiry != "" {
		parsed, err := time.ParseDuration(*raw.LinkExpiry)
		if err != nil {
			return cfg, errors.New("billing config: invalid link_expiry")
		}
		cfg.LinkExpiry = parsed
	}
	if raw.Currency != nil {
		cfg.Currency = strings.ToUpper(strings.TrimSpace(*raw.Currency))
	}
	if raw.PaymentBackURL != nil {
		cfg.PaymentBackURL = *raw.PaymentBackURL
	}
	return cfg, cfg.validate()
}

// Policy returns the classification switches.
func (c Config) Policy() billing.Policy {
	return billing.Policy{AdultAge: c.AdultAge, FamilyGroupExemption: c.FamilyGroupExemption}
}

func (c Config) validate() error {
	if c.AdultAge <= 0 {
		return errors.New("billing config: adult_age must be positive")
	}
	if c.LinkBatchConcurrency <= 0 {
		return errors.New("billing config: link_batch_concurrency must be positive")
	}
	if c.Currency == "" {
		return errors.New("billing config: currency required")
	}
	if c.LinkExpiry < 0 {
		return errors.New("billing config: link_expiry must not be negative")
	}
	return nil
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvIntDefault(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

// SystemClock returns the current UTC time.
type SystemClock struct{}

// Now implements billing.Clock.
func (SystemClock) Now() time.Time { return time.Now().UTC() }
