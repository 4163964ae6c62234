package worker

import (
	"fmt"
	"time"

	"github.com/danfengzi/obs-lv2/internal/ring"
)

// WaitMode selects how the worker waits for requests.
type WaitMode int

const (
	// WaitSignal sleeps on the wake channel with a poll timer fallback.
	WaitSignal WaitMode = iota
	// WaitSpin yields in a tight loop. Burns a core; only for latency benchmarks.
	WaitSpin
)

// ParseWaitMode maps a configuration string to a WaitMode.
func ParseWaitMode(s string) (WaitMode, error) {
	switch s {
	case "", "signal":
		return WaitSignal, nil
	case "spin":
		return WaitSpin, nil
	default:
		return WaitSignal, fmt.Errorf("unknown worker wait mode %q", s)
	}
}

func (m WaitMode) String() string {
	if m == WaitSpin {
		return "spin"
	}
	return "signal"
}

// Defaults
const (
	DefaultRingSize     = 4096
	DefaultPollInterval = 100 * time.Millisecond
	DefaultStopTimeout  = 2 * time.Second
	DefaultWarnRate     = 1.0 // warnings per second
)

// Config holds worker tuning. The zero value of any field means its default.
type Config struct {
	RingSize     int           // bytes per ring, rounded up to a power of two
	WaitMode     WaitMode      // how the idle worker waits
	PollInterval time.Duration // wake-up fallback in signal mode
	StopTimeout  time.Duration // how long Stop waits for the loop
	WarnRate     float64       // max worker-side warnings per second
}

// DefaultConfig returns the stock worker configuration.
func DefaultConfig() Config {
	return Config{
		RingSize:     DefaultRingSize,
		WaitMode:     WaitSignal,
		PollInterval: DefaultPollInterval,
		StopTimeout:  DefaultStopTimeout,
		WarnRate:     DefaultWarnRate,
	}
}

func (c *Config) applyDefaults() {
	if c.RingSize == 0 {
		c.RingSize = DefaultRingSize
	}
	if c.PollInterval <= 0 {
		c.PollInterval = DefaultPollInterval
	}
	if c.StopTimeout <= 0 {
		c.StopTimeout = DefaultStopTimeout
	}
	if c.WarnRate <= 0 {
		c.WarnRate = DefaultWarnRate
	}
}

// Validate checks the configuration after defaults are applied.
func (c Config) Validate() error {
	if c.RingSize != 0 && (c.RingSize < ring.MinCapacity || c.RingSize > ring.MaxCapacity) {
		return fmt.Errorf("ring size %d not in [%d, %d]", c.RingSize, ring.MinCapacity, ring.MaxCapacity)
	}
	if c.WaitMode != WaitSignal && c.WaitMode != WaitSpin {
		return fmt.Errorf("invalid wait mode %d", c.WaitMode)
	}
	return nil
}
