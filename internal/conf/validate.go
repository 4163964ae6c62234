// conf/validate.go

package conf

import (
	"fmt"
	"net"
	"time"

	"github.com/danfengzi/obs-lv2/internal/ring"
)

// ValidationError represents a collection of validation errors
type ValidationError struct {
	Errors []string
}

// Error returns a string representation of the validation errors
func (ve ValidationError) Error() string {
	return fmt.Sprintf("Validation errors: %v", ve.Errors)
}

// ValidateSettings validates the entire Settings struct
func ValidateSettings(settings *Settings) error {
	ve := ValidationError{}

	ve.Errors = append(ve.Errors, validateWorkerSettings(&settings.Worker)...)
	ve.Errors = append(ve.Errors, validateHostSettings(&settings.Host)...)
	ve.Errors = append(ve.Errors, validatePluginSettings(&settings.Plugin)...)
	ve.Errors = append(ve.Errors, validateTelemetrySettings(&settings.Telemetry)...)

	if settings.Sentry.Enabled && settings.Sentry.DSN == "" {
		ve.Errors = append(ve.Errors, "sentry.dsn is required when sentry is enabled")
	}

	if len(ve.Errors) > 0 {
		return ve
	}
	return nil
}

func validateWorkerSettings(s *WorkerSettings) []string {
	var errs []string

	if s.RingSize < ring.MinCapacity || s.RingSize > ring.MaxCapacity {
		errs = append(errs, fmt.Sprintf("worker.ringsize must be between %d and %d, got %d", ring.MinCapacity, ring.MaxCapacity, s.RingSize))
	}
	if s.WaitMode != "signal" && s.WaitMode != "spin" {
		errs = append(errs, fmt.Sprintf("worker.waitmode must be signal or spin, got %q", s.WaitMode))
	}
	if s.PollInterval < time.Millisecond {
		errs = append(errs, "worker.pollinterval must be at least 1ms")
	}
	if s.StopTimeout <= 0 {
		errs = append(errs, "worker.stoptimeout must be positive")
	}
	if s.WarnRate <= 0 {
		errs = append(errs, "worker.warnrate must be positive")
	}

	return errs
}

func validateHostSettings(s *HostSettings) []string {
	var errs []string

	if s.Driver != "ticker" && s.Driver != "malgo" {
		errs = append(errs, fmt.Sprintf("host.driver must be ticker or malgo, got %q", s.Driver))
	}
	if s.SampleRate < 8000 || s.SampleRate > 384000 {
		errs = append(errs, fmt.Sprintf("host.samplerate must be between 8000 and 384000, got %d", s.SampleRate))
	}
	if s.BlockSize < 16 || s.BlockSize > 8192 {
		errs = append(errs, fmt.Sprintf("host.blocksize must be between 16 and 8192, got %d", s.BlockSize))
	}
	if s.Channels < 1 || s.Channels > 8 {
		errs = append(errs, fmt.Sprintf("host.channels must be between 1 and 8, got %d", s.Channels))
	}
	if s.Duration < 0 {
		errs = append(errs, "host.duration must not be negative")
	}

	return errs
}

func validatePluginSettings(s *PluginSettings) []string {
	var errs []string

	switch s.Name {
	case "reverse":
		if s.Interval < 1 {
			errs = append(errs, "plugin.interval must be at least 1")
		}
	case "sampler":
		if s.Sample == "" {
			errs = append(errs, "plugin.sample is required for the sampler plugin")
		}
		if len(s.Sample) > MaxSamplePathLen {
			errs = append(errs, fmt.Sprintf("plugin.sample must be at most %d bytes, got %d", MaxSamplePathLen, len(s.Sample)))
		}
		if s.Slots < 1 || s.Slots > 255 {
			errs = append(errs, fmt.Sprintf("plugin.slots must be between 1 and 255, got %d", s.Slots))
		}
		if s.CacheTTL < 0 {
			errs = append(errs, fmt.Sprintf("plugin.cachettl must not be negative, got %s", s.CacheTTL))
		}
	default:
		errs = append(errs, fmt.Sprintf("plugin.name must be reverse or sampler, got %q", s.Name))
	}

	return errs
}

func validateTelemetrySettings(s *TelemetrySettings) []string {
	if !s.Enabled {
		return nil
	}
	if _, _, err := net.SplitHostPort(s.Listen); err != nil {
		return []string{fmt.Sprintf("telemetry.listen %q is not a host:port address: %v", s.Listen, err)}
	}
	return nil
}
