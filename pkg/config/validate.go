// Package config loads and validates service configuration.
package config

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// ValidateCore ensures critical configuration is present.
func (c *Config) ValidateCore() error {
	var missing []string

	if strings.TrimSpace(c.Database.URL) == "" {
		missing = append(missing, "DATABASE_URL")
	}
	if strings.TrimSpace(c.Redis.URL) == "" {
		missing = append(missing, "REDIS_URL")
	}
	if strings.TrimSpace(c.Server.Port) == "" {
		missing = append(missing, "SERVER_PORT")
	}
	if strings.TrimSpace(c.JWT.Secret) == "" || c.JWT.Secret == "change-this-secret" {
		missing = append(missing, "JWT_SECRET")
	}

	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}

	if _, err := decimal.NewFromString(c.Lending.AnnualRatePercent); err != nil {
		return fmt.Errorf("LENDING_ANNUAL_RATE is not a number: %q", c.Lending.AnnualRatePercent)
	}

	return nil
}

// AnnualRate returns the configured APR as a decimal percentage. Invalid
// values were rejected by ValidateCore, so parsing failures fall back to zero.
func (c *Config) AnnualRate() decimal.Decimal {
	rate, err := decimal.NewFromString(c.Lending.AnnualRatePercent)
	if err != nil {
		return decimal.Zero
	}
	return rate
}
