package host

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/danfengzi/obs-lv2/internal/logger"
)

// Driver names accepted by NewDriver.
const (
	DriverTicker = "ticker"
	DriverMalgo  = "malgo"
)

// Driver clocks an Engine until ctx is cancelled.
type Driver interface {
	Name() string
	Run(ctx context.Context, e *Engine) error
}

// NewDriver returns the driver registered under name.
func NewDriver(name string) (Driver, error) {
	switch name {
	case DriverTicker:
		return &TickerDriver{}, nil
	case DriverMalgo:
		return &MalgoDriver{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, name)
	}
}

// TickerDriver runs cycles from a time.Ticker on a goroutine locked to its
// OS thread. It needs no audio hardware.
type TickerDriver struct{}

// Name implements Driver.
func (*TickerDriver) Name() string { return DriverTicker }

// Run implements Driver.
func (*TickerDriver) Run(ctx context.Context, e *Engine) error {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	cfg := e.Config()
	out := make([]float32, cfg.BlockSamples())

	ticker := time.NewTicker(cfg.Period())
	defer ticker.Stop()

	GetLogger().Info("ticker driver started",
		logger.Int("sample_rate", cfg.SampleRate),
		logger.Int("block_size", cfg.BlockSize),
		logger.Duration("period", cfg.Period()))

	for {
		select {
		case <-ctx.Done():
			GetLogger().Info("ticker driver stopped", logger.Uint64("cycles", e.Stats().Cycles))
			return nil
		case <-ticker.C:
			if err := e.Cycle(out); err != nil {
				return err
			}
		}
	}
}
