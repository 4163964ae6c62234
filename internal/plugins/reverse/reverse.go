// Package reverse is a minimal hosted plugin that exercises the work offload
// channel: the audio side schedules small payloads and the worker answers
// each one with the same bytes in reverse order.
package reverse

import (
	"encoding/binary"
	"fmt"
	"math"
	"sync/atomic"
	"time"

	"github.com/danfengzi/obs-lv2/internal/errors"
	"github.com/danfengzi/obs-lv2/internal/logger"
	"github.com/danfengzi/obs-lv2/internal/observability/metrics"
	"github.com/danfengzi/obs-lv2/internal/worker"
)

const (
	// Name identifies the plugin in configuration and metrics.
	Name = "reverse"

	// MaxPayload bounds the payloads kept in the response history.
	MaxPayload = 64

	defaultHistory = 256
	toneHz         = 440
	toneGain       = 0.1
)

// Scheduler queues work requests. *worker.Worker implements it.
type Scheduler interface {
	Schedule(payload []byte) error
}

// Config tunes the plugin.
type Config struct {
	SampleRate int
	Channels   int
	Interval   int // blocks between automatic requests, 0 disables them
	History    int // responses kept for inspection
}

// Stats is a snapshot of plugin counters.
type Stats struct {
	Scheduled  uint64
	Rejected   uint64
	Worked     uint64
	Responses  uint64
	Mismatches uint64 // automatic responses that did not decode to a sent sequence
	EndRuns    uint64
}

// Option configures a Plugin.
type Option func(*Plugin)

// WithMetrics records worker side operations.
func WithMetrics(r metrics.Recorder) Option {
	return func(p *Plugin) { p.metrics = r }
}

// Plugin implements host.Processor, worker.Interface and worker.EndRunner.
type Plugin struct {
	sched   Scheduler
	cfg     Config
	metrics metrics.Recorder

	// audio side
	blocks  int
	seq     uint32
	phase   float64
	request [MaxPayload]byte
	history [][MaxPayload]byte
	lengths []int
	next    int // next history slot

	// worker side
	scratch [MaxPayload]byte

	scheduled  atomic.Uint64
	rejected   atomic.Uint64
	worked     atomic.Uint64
	responses  atomic.Uint64
	mismatches atomic.Uint64
	endRuns    atomic.Uint64
}

var (
	_ worker.Interface = (*Plugin)(nil)
	_ worker.EndRunner = (*Plugin)(nil)
)

// New creates a plugin that schedules through sched.
func New(sched Scheduler, cfg Config, opts ...Option) *Plugin {
	if cfg.History <= 0 {
		cfg.History = defaultHistory
	}
	if cfg.Channels <= 0 {
		cfg.Channels = 1
	}
	p := &Plugin{
		sched:   sched,
		cfg:     cfg,
		metrics: metrics.NoOpRecorder{},
		history: make([][MaxPayload]byte, cfg.History),
		lengths: make([]int, cfg.History),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Request schedules payload as-is. Audio goroutine only.
func (p *Plugin) Request(payload []byte) error {
	if err := p.sched.Schedule(payload); err != nil {
		p.rejected.Add(1)
		return err
	}
	p.scheduled.Add(1)
	return nil
}

// Process renders a quiet tone and, every Interval blocks, schedules the
// next sequence number as a 4-byte big-endian payload.
func (p *Plugin) Process(out []float32, frames int) {
	if p.cfg.Interval > 0 && p.blocks%p.cfg.Interval == 0 {
		binary.BigEndian.PutUint32(p.request[:4], p.seq)
		if p.Request(p.request[:4]) == nil {
			p.seq++
		}
	}
	p.blocks++

	if p.cfg.SampleRate <= 0 {
		return
	}
	step := 2 * math.Pi * toneHz / float64(p.cfg.SampleRate)
	ch := p.cfg.Channels
	for f := 0; f < frames && (f+1)*ch <= len(out); f++ {
		v := float32(math.Sin(p.phase) * toneGain)
		for c := range ch {
			out[f*ch+c] = v
		}
		p.phase += step
		if p.phase >= 2*math.Pi {
			p.phase -= 2 * math.Pi
		}
	}
}

// Work answers payload with its bytes reversed. Worker goroutine.
func (p *Plugin) Work(r worker.Responder, payload []byte) error {
	start := time.Now()
	if len(payload) > MaxPayload {
		p.metrics.RecordOperation(metrics.OpReverse, metrics.StatusError)
		p.metrics.RecordError(metrics.OpReverse, string(errors.CategoryValidation))
		return fmt.Errorf("%w: %d bytes, limit %d", ErrPayloadTooLarge, len(payload), MaxPayload)
	}

	n := len(payload)
	for i, b := range payload {
		p.scratch[n-1-i] = b
	}
	p.worked.Add(1)

	if err := r.Respond(p.scratch[:n]); err != nil {
		p.metrics.RecordOperation(metrics.OpReverse, metrics.StatusError)
		p.metrics.RecordError(metrics.OpReverse, string(errors.CategoryLimit))
		return err
	}

	p.metrics.RecordOperation(metrics.OpReverse, metrics.StatusSuccess)
	p.metrics.RecordDuration(metrics.OpReverse, time.Since(start).Seconds())
	return nil
}

// WorkResponse stores the response in the history. Audio goroutine.
func (p *Plugin) WorkResponse(payload []byte) error {
	slot := p.next % len(p.history)
	n := copy(p.history[slot][:], payload)
	p.lengths[slot] = n
	p.next++

	// Automatic requests come back as the little-endian form of a sequence
	// number that was already sent.
	if p.cfg.Interval > 0 && n == 4 && binary.LittleEndian.Uint32(payload) >= p.seq {
		p.mismatches.Add(1)
	}
	p.responses.Add(1)
	return nil
}

// EndRun is called after every Pump.
func (p *Plugin) EndRun() {
	p.endRuns.Add(1)
}

// History returns copies of the retained responses, oldest first. It must
// not run concurrently with Pump.
func (p *Plugin) History() [][]byte {
	count := min(p.next, len(p.history))
	out := make([][]byte, 0, count)
	for i := p.next - count; i < p.next; i++ {
		slot := i % len(p.history)
		out = append(out, append([]byte(nil), p.history[slot][:p.lengths[slot]]...))
	}
	return out
}

// Stats returns a snapshot of the plugin counters. Safe from any goroutine.
func (p *Plugin) Stats() Stats {
	return Stats{
		Scheduled:  p.scheduled.Load(),
		Rejected:   p.rejected.Load(),
		Worked:     p.worked.Load(),
		Responses:  p.responses.Load(),
		Mismatches: p.mismatches.Load(),
		EndRuns:    p.endRuns.Load(),
	}
}

// LogSummary writes the counters at info level.
func (p *Plugin) LogSummary() {
	s := p.Stats()
	GetLogger().Info("reverse plugin summary",
		logger.Uint64("scheduled", s.Scheduled),
		logger.Uint64("rejected", s.Rejected),
		logger.Uint64("responses", s.Responses),
		logger.Uint64("mismatches", s.Mismatches),
		logger.Uint64("end_runs", s.EndRuns))
}
