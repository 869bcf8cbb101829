// Copyright (c) 2025 CarrierGate Inc. All Rights Reserved.
// This is licensed software from CarrierGate Inc, for limitations
// and restrictions contact your company contract manager.

package config

import (
	"fmt"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// Load reads configuration from environment variables.
// It attempts to load from .env file first (for local development),
// then parses environment variables into the Config struct.
func Load() (*Config, error) {
	// Load .env file if it exists (for local development)
	// In production, environment variables are injected directly
	if err := godotenv.Load(); err != nil {
		logrus.Warnf("no .env file found or error loading it: %v (this is normal in production)", err)
	} else {
		logrus.Infof("loaded environment variables from .env file")
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config from environment: %w", err)
	}

	return cfg, nil
}

// Validate performs custom validation on the configuration.
func (c *Config) Validate() error {
	if c.MetricsPort < 1 || c.MetricsPort > 65535 {
		return fmt.Errorf("invalid METRICS_PORT: %d (must be 1-65535)", c.MetricsPort)
	}
	if c.FlowPort < 1 || c.FlowPort > 65535 {
		return fmt.Errorf("invalid FLOW_CHANNEL_PORT: %d (must be 1-65535)", c.FlowPort)
	}
	if c.FlowPort == c.MetricsPort {
		return fmt.Errorf("FLOW_CHANNEL_PORT and METRICS_PORT must differ")
	}

	if c.SlotCount < 1 {
		return fmt.Errorf("invalid SLOT_COUNT: %d (must be at least 1)", c.SlotCount)
	}
	if c.DeviceID == "" {
		return fmt.Errorf("DEVICE_ID is required")
	}
	if c.EntitlementEndpoint == "" {
		return fmt.Errorf("ENTITLEMENT_ENDPOINT is required")
	}
	if c.EntitlementTimeoutSec < 1 {
		return fmt.Errorf("invalid ENTITLEMENT_TIMEOUT_SEC: %d", c.EntitlementTimeoutSec)
	}

	return nil
}
