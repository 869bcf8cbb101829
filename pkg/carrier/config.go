package carrier

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/carriergate/slicepurchase/pkg/capability"
)

// Config is the per-carrier purchase configuration: which premium
// capabilities are sellable, where the purchase flow lives, and the policy
// knobs (timeouts, backoff durations, notification quota caps).
type Config struct {
	CarrierName  string             `yaml:"carrierName"`
	Capabilities []CapabilityConfig `yaml:"capabilities"`
	Timeouts     TimeoutConfig      `yaml:"timeouts"`
	Throttle     ThrottleConfig     `yaml:"throttle"`
	Quota        QuotaConfig        `yaml:"quota"`

	// NotificationsDisabledResult selects how a notifications_disabled
	// channel response is reported to the caller: "user_disabled" or
	// "user_canceled". Carriers that do not distinguish the two map it to
	// user_canceled.
	NotificationsDisabledResult string `yaml:"notificationsDisabledResult"`
}

// CapabilityConfig configures one purchasable capability.
type CapabilityConfig struct {
	Capability  string `yaml:"capability"`
	Enabled     bool   `yaml:"enabled"`
	PurchaseURL string `yaml:"purchaseUrl,omitempty"` // fallback when the entitlement response carries none
}

// TimeoutConfig holds the orchestrator timer durations.
type TimeoutConfig struct {
	UserResponse Duration `yaml:"userResponse"`
	NetworkSetup Duration `yaml:"networkSetup"`
}

// ThrottleConfig holds the two backoff categories applied after terminal
// purchase outcomes.
type ThrottleConfig struct {
	UserBackoff        Duration `yaml:"userBackoff"`
	EntitlementBackoff Duration `yaml:"entitlementBackoff"`
}

// QuotaConfig caps how many purchase notifications may be shown per device.
type QuotaConfig struct {
	DailyMax   int `yaml:"dailyMax"`
	MonthlyMax int `yaml:"monthlyMax"`
}

// Duration wraps time.Duration so YAML configs can use human-readable
// values like "5m" or "24h".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// AsDuration returns the underlying time.Duration.
func (d Duration) AsDuration() time.Duration {
	return time.Duration(d)
}

// LoadConfig loads carrier configuration from a YAML file.
// Supports environment variable expansion in the form ${VAR_NAME} or ${VAR_NAME:default}.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read carrier config %s: %w", path, err)
	}

	expanded := expandEnvVars(string(data))

	var config Config
	if err := yaml.Unmarshal([]byte(expanded), &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML carrier config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid carrier config: %w", err)
	}

	return &config, nil
}

// Validate validates the configuration for common errors.
func (c *Config) Validate() error {
	if c.CarrierName == "" {
		return fmt.Errorf("carrierName is required")
	}

	seen := make(map[string]bool)
	for _, cc := range c.Capabilities {
		if cc.Capability == "" {
			return fmt.Errorf("capability entry with empty name found")
		}
		if _, err := capability.Parse(cc.Capability); err != nil {
			return fmt.Errorf("capability entry invalid: %w", err)
		}
		if seen[cc.Capability] {
			return fmt.Errorf("duplicate capability entry: %s", cc.Capability)
		}
		seen[cc.Capability] = true
		if cc.PurchaseURL != "" && !IsTrustedPurchaseURL(cc.PurchaseURL) {
			return fmt.Errorf("purchaseUrl for %s must be an absolute https URL to a non-local host, got %q",
				cc.Capability, cc.PurchaseURL)
		}
	}

	if c.Timeouts.UserResponse <= 0 {
		return fmt.Errorf("timeouts.userResponse must be positive")
	}
	if c.Timeouts.NetworkSetup <= 0 {
		return fmt.Errorf("timeouts.networkSetup must be positive")
	}
	if c.Throttle.UserBackoff < 0 || c.Throttle.EntitlementBackoff < 0 {
		return fmt.Errorf("throttle durations must be non-negative")
	}
	if c.Quota.DailyMax < 0 || c.Quota.MonthlyMax < 0 {
		return fmt.Errorf("quota caps must be non-negative")
	}

	switch c.NotificationsDisabledResult {
	case "", "user_canceled", "user_disabled":
	default:
		return fmt.Errorf("notificationsDisabledResult must be user_canceled or user_disabled, got %q",
			c.NotificationsDisabledResult)
	}

	return nil
}

// Lookup returns the configuration entry for a capability, if present.
func (c *Config) Lookup(cap capability.Capability) (*CapabilityConfig, bool) {
	for i := range c.Capabilities {
		if c.Capabilities[i].Capability == cap.String() {
			return &c.Capabilities[i], true
		}
	}
	return nil, false
}

// Supports reports whether the carrier sells the given capability.
func (c *Config) Supports(cap capability.Capability) bool {
	cc, ok := c.Lookup(cap)
	return ok && cc.Enabled
}

// ResultForNotificationsDisabled resolves the configured result code for a
// notifications_disabled channel response.
func (c *Config) ResultForNotificationsDisabled() capability.Result {
	if c.NotificationsDisabledResult == "user_disabled" {
		return capability.ResultUserDisabled
	}
	return capability.ResultUserCanceled
}

// expandEnvVars expands environment variables in the format ${VAR} or ${VAR:default}.
func expandEnvVars(s string) string {
	return os.Expand(s, func(key string) string {
		parts := strings.SplitN(key, ":", 2)
		varName := parts[0]
		defaultValue := ""
		if len(parts) == 2 {
			defaultValue = parts[1]
		}

		value := os.Getenv(varName)
		if value == "" {
			return defaultValue
		}
		return value
	})
}
