// Package host simulates the audio side of a plugin host: a fixed-size block
// clock that renders a plugin and pumps its worker responses every cycle.
package host

import (
	"fmt"
	"sync/atomic"
	"time"
)

// Processor renders one block of interleaved float32 audio. It runs on the
// audio goroutine and must not block.
type Processor interface {
	Process(out []float32, frames int)
}

// Pumper delivers pending worker responses. *worker.Worker implements it.
type Pumper interface {
	Pump() error
}

// MetricsRecorder receives engine events. Methods run on the audio goroutine.
type MetricsRecorder interface {
	RecordCycle(duration time.Duration, overrun bool)
	RecordPumpError()
	RecordRecorderBytes(written, dropped int)
}

// Config describes the block clock.
type Config struct {
	SampleRate int
	BlockSize  int // frames per cycle
	Channels   int
}

// Validate checks that the clock can run.
func (c Config) Validate() error {
	switch {
	case c.SampleRate <= 0:
		return fmt.Errorf("%w: sample rate must be positive, got %d", ErrInvalidConfig, c.SampleRate)
	case c.BlockSize <= 0:
		return fmt.Errorf("%w: block size must be positive, got %d", ErrInvalidConfig, c.BlockSize)
	case c.Channels <= 0:
		return fmt.Errorf("%w: channel count must be positive, got %d", ErrInvalidConfig, c.Channels)
	}
	return nil
}

// Period is the wall-clock length of one block.
func (c Config) Period() time.Duration {
	return time.Duration(c.BlockSize) * time.Second / time.Duration(c.SampleRate)
}

// BlockSamples is the number of interleaved samples in one block.
func (c Config) BlockSamples() int {
	return c.BlockSize * c.Channels
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithMetrics attaches a metrics recorder.
func WithMetrics(m MetricsRecorder) EngineOption {
	return func(e *Engine) { e.metrics = m }
}

// WithRecorder copies every rendered block into r.
func WithRecorder(r *Recorder) EngineOption {
	return func(e *Engine) { e.recorder = r }
}

// EngineStats is a snapshot of engine counters.
type EngineStats struct {
	Cycles     uint64
	PumpErrors uint64
	Overruns   uint64
}

// Engine binds a processor to its worker and runs one audio cycle at a time.
type Engine struct {
	cfg       Config
	processor Processor
	pumper    Pumper
	metrics   MetricsRecorder
	recorder  *Recorder

	cycles     atomic.Uint64
	pumpErrors atomic.Uint64
	overruns   atomic.Uint64
}

// NewEngine creates an engine. The worker behind pumper must already be started.
func NewEngine(cfg Config, processor Processor, pumper Pumper, opts ...EngineOption) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if processor == nil || pumper == nil {
		return nil, fmt.Errorf("%w: processor and pumper are required", ErrInvalidConfig)
	}

	e := &Engine{cfg: cfg, processor: processor, pumper: pumper}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Config returns the block clock configuration.
func (e *Engine) Config() Config {
	return e.cfg
}

// Cycle renders one block into out, which must hold exactly
// Config().BlockSamples() samples, then pumps worker responses.
func (e *Engine) Cycle(out []float32) error {
	if len(out) != e.cfg.BlockSamples() {
		return ErrBlockSize
	}

	start := time.Now()

	clear(out)
	e.processor.Process(out, e.cfg.BlockSize)

	pumpFailed := false
	if err := e.pumper.Pump(); err != nil {
		pumpFailed = true
		e.pumpErrors.Add(1)
	}

	if e.recorder != nil {
		written, dropped := e.recorder.Write(out)
		if e.metrics != nil {
			e.metrics.RecordRecorderBytes(written, dropped)
		}
	}

	elapsed := time.Since(start)
	overrun := elapsed > e.cfg.Period()
	e.cycles.Add(1)
	if overrun {
		e.overruns.Add(1)
	}
	if e.metrics != nil {
		if pumpFailed {
			e.metrics.RecordPumpError()
		}
		e.metrics.RecordCycle(elapsed, overrun)
	}

	return nil
}

// Stats returns a snapshot of the engine counters. Safe from any goroutine.
func (e *Engine) Stats() EngineStats {
	return EngineStats{
		Cycles:     e.cycles.Load(),
		PumpErrors: e.pumpErrors.Load(),
		Overruns:   e.overruns.Load(),
	}
}
