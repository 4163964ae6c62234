// env.go - Environment variable configuration and validation
package conf

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// envBinding holds metadata for environment variable bindings (internal use)
type envBinding struct {
	ConfigKey string             // Viper config key
	EnvVar    string             // Environment variable name
	Validate  func(string) error // Optional validation function
}

// getEnvBindings returns the environment variables that are validated before use.
// Every other key is still reachable through AutomaticEnv as OBSLV2_<SECTION>_<KEY>.
func getEnvBindings() []envBinding {
	return []envBinding{
		{"debug", "OBSLV2_DEBUG", validateEnvBool},

		{"worker.ringsize", "OBSLV2_WORKER_RINGSIZE", validateEnvPositiveInt},
		{"worker.waitmode", "OBSLV2_WORKER_WAITMODE", validateEnvOneOf("signal", "spin")},
		{"worker.pollinterval", "OBSLV2_WORKER_POLLINTERVAL", validateEnvDuration},
		{"worker.stoptimeout", "OBSLV2_WORKER_STOPTIMEOUT", validateEnvDuration},

		{"host.driver", "OBSLV2_HOST_DRIVER", validateEnvOneOf("ticker", "malgo")},
		{"host.samplerate", "OBSLV2_HOST_SAMPLERATE", validateEnvPositiveInt},
		{"host.blocksize", "OBSLV2_HOST_BLOCKSIZE", validateEnvPositiveInt},
		{"host.duration", "OBSLV2_HOST_DURATION", validateEnvDuration},

		{"plugin.name", "OBSLV2_PLUGIN_NAME", validateEnvOneOf("reverse", "sampler")},

		{"telemetry.enabled", "OBSLV2_TELEMETRY_ENABLED", validateEnvBool},
		{"sentry.enabled", "OBSLV2_SENTRY_ENABLED", validateEnvBool},
		{"sentry.dsn", "OBSLV2_SENTRY_DSN", nil},
	}
}

// bindEnvVars sets up environment variable bindings with validation (internal)
func bindEnvVars() error {
	bindings := getEnvBindings()
	var warnings []string

	for _, binding := range bindings {
		if err := viper.BindEnv(binding.ConfigKey, binding.EnvVar); err != nil {
			warnings = append(warnings, fmt.Sprintf("Failed to bind %s: %v", binding.EnvVar, err))
			continue
		}

		if binding.Validate != nil {
			if envValue := os.Getenv(binding.EnvVar); envValue != "" {
				if err := binding.Validate(envValue); err != nil {
					warnings = append(warnings, fmt.Sprintf("Invalid %s value '%s': %v", binding.EnvVar, envValue, err))
				}
			}
		}
	}

	if len(warnings) > 0 {
		return fmt.Errorf("environment variable issues:\n  - %s", strings.Join(warnings, "\n  - "))
	}

	return nil
}

// validateEnvBool validates boolean environment variables
func validateEnvBool(value string) error {
	if _, err := strconv.ParseBool(value); err != nil {
		return fmt.Errorf("invalid boolean value '%s': must be true/false, 1/0, t/f, TRUE/FALSE, T/F", value)
	}
	return nil
}

func validateEnvPositiveInt(value string) error {
	n, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("invalid integer: %w", err)
	}
	if n <= 0 {
		return fmt.Errorf("must be positive, got %d", n)
	}
	return nil
}

func validateEnvDuration(value string) error {
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("invalid duration: %w", err)
	}
	if d < 0 {
		return fmt.Errorf("must not be negative, got %s", d)
	}
	return nil
}

func validateEnvOneOf(valid ...string) func(string) error {
	return func(value string) error {
		for _, v := range valid {
			if value == v {
				return nil
			}
		}
		return fmt.Errorf("must be one of: %s", strings.Join(valid, ", "))
	}
}
