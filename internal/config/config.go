// Copyright (c) 2025 CarrierGate Inc. All Rights Reserved.
// This is licensed software from CarrierGate Inc, for limitations
// and restrictions contact your company contract manager.

package config

// Config holds all application configuration loaded from environment variables.
// This struct uses github.com/caarlos0/env for automatic environment variable
// parsing; the carrier policy itself (capabilities, timeouts, throttle
// durations, quota caps) lives in the YAML file named by CARRIER_CONFIG_PATH.
type Config struct {
	// Server configuration
	MetricsPort int    `env:"METRICS_PORT" envDefault:"8080"`
	FlowPort    int    `env:"FLOW_CHANNEL_PORT" envDefault:"8090"`
	Environment string `env:"ENVIRONMENT" envDefault:"dev"`
	ServiceName string `env:"SERVICE_NAME" envDefault:"SlicePurchaseOrchestrator"`

	// Device identity
	DeviceID       string `env:"DEVICE_ID,required"`
	SlotCount      int    `env:"SLOT_COUNT" envDefault:"1"`
	SubscriptionID int    `env:"SUBSCRIPTION_ID" envDefault:"1"`

	// Device capability flags, normally fed by the platform's telephony
	// agent; exposed as environment toggles for reference deployments.
	PremiumSupported bool `env:"PREMIUM_CAPABILITIES_SUPPORTED" envDefault:"true"`
	DefaultDataSub   bool `env:"DEFAULT_DATA_SUBSCRIPTION" envDefault:"true"`

	// Entitlement server
	EntitlementEndpoint   string `env:"ENTITLEMENT_ENDPOINT,required"`
	EntitlementTimeoutSec int    `env:"ENTITLEMENT_TIMEOUT_SEC" envDefault:"10"`
	EntitlementMaxRetries int    `env:"ENTITLEMENT_MAX_RETRIES" envDefault:"3"`

	// Redis configuration
	RedisHost         string `env:"REDIS_HOST" envDefault:"localhost"`
	RedisPort         string `env:"REDIS_PORT" envDefault:"6379"`
	RedisPassword     string `env:"REDIS_PASSWORD"`
	RedisMaxRetries   int    `env:"REDIS_MAX_RETRIES" envDefault:"5"`
	RedisRetryDelayMs int    `env:"REDIS_RETRY_DELAY_MS" envDefault:"1000"`

	// Carrier policy configuration
	CarrierConfigPath string `env:"CARRIER_CONFIG_PATH" envDefault:"config/carrier.yaml"`

	// Telemetry configuration
	OtelEnabled     bool   `env:"OTEL_ENABLED" envDefault:"true"`
	OtelServiceName string `env:"OTEL_SERVICE_NAME" envDefault:"slice-purchase"`
}
