// Package sampler is a hosted plugin that loads audio files off the audio
// thread and loops the most recently loaded one.
//
// Loading follows the work offload protocol end to end. A control goroutine
// calls RequestLoad; the audio side turns that into a load request; the
// worker decodes the file into a slot of the plugin's slot table and
// responds with the slot number; the audio side installs the sample in
// WorkResponse and schedules a free request for the sample it replaced.
//
// Request frames:
//
//	opLoad  | path bytes
//	opFree  | slot
//
// Response frames:
//
//	opLoaded | slot
//	opFailed
package sampler

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/danfengzi/obs-lv2/internal/errors"
	"github.com/danfengzi/obs-lv2/internal/logger"
	"github.com/danfengzi/obs-lv2/internal/observability/metrics"
	"github.com/danfengzi/obs-lv2/internal/privacy"
	"github.com/danfengzi/obs-lv2/internal/ring"
	"github.com/danfengzi/obs-lv2/internal/worker"
)

const (
	// Name identifies the plugin in configuration and metrics.
	Name = "sampler"

	// MaxPathLen bounds the path carried in a load request.
	MaxPathLen = 1024

	// DefaultSlots is the slot table size when Config.Slots is zero.
	DefaultSlots = 4

	// maxSlots keeps slot numbers in a single byte.
	maxSlots = 255

	defaultGain = 0.8
)

const (
	opLoad byte = iota + 1
	opFree
)

const (
	opLoaded byte = iota + 1
	opFailed
)

const noSlot = -1

// Scheduler queues work requests. *worker.Worker implements it.
type Scheduler interface {
	Schedule(payload []byte) error
}

// Config tunes the plugin.
type Config struct {
	SampleRate int
	Channels   int
	Slots      int           // decoded samples the worker may hold at once
	Gain       float32       // playback gain, 0 means the default
	CacheTTL   time.Duration // how long decoded files are reused, 0 disables
}

// Stats is a snapshot of plugin counters.
type Stats struct {
	LoadsRequested uint64 // load requests scheduled
	LoadsRejected  uint64 // load requests the worker ring refused, retried later
	Loaded         uint64 // files decoded by the worker or taken from the cache
	CacheHits      uint64 // loads served without decoding
	LoadFailed     uint64 // files the worker could not decode or place
	Installed      uint64 // samples swapped in on the audio side
	Freed          uint64 // slots released by the worker
	FreesDeferred  uint64 // free requests the worker ring refused, retried later
	BadResponses   uint64 // responses naming an empty or unknown slot
}

// Option configures a Plugin.
type Option func(*Plugin)

// WithMetrics records worker side operations.
func WithMetrics(r metrics.Recorder) Option {
	return func(p *Plugin) { p.metrics = r }
}

// Plugin implements host.Processor and worker.Interface.
type Plugin struct {
	sched   Scheduler
	cfg     Config
	metrics metrics.Recorder

	// pending is the path most recently handed to RequestLoad.
	pending atomic.Pointer[string]

	// slots is shared: the worker stores decoded samples, the audio side
	// loads the one named in a response.
	slots []atomic.Pointer[Sample]

	// audio side
	request     []byte
	freeReq     [2]byte
	current     *Sample
	currentSlot int
	pos         int
	pendingFree []int

	// worker side
	inUse   []bool
	respBuf [2]byte
	cache   *decodeCache

	loadsRequested atomic.Uint64
	loadsRejected  atomic.Uint64
	loaded         atomic.Uint64
	cacheHits      atomic.Uint64
	loadFailed     atomic.Uint64
	installed      atomic.Uint64
	freed          atomic.Uint64
	freesDeferred  atomic.Uint64
	badResponses   atomic.Uint64
}

var _ worker.Interface = (*Plugin)(nil)

// New creates a plugin that schedules through sched.
func New(sched Scheduler, cfg Config, opts ...Option) *Plugin {
	if cfg.Slots <= 0 {
		cfg.Slots = DefaultSlots
	}
	cfg.Slots = min(cfg.Slots, maxSlots)
	if cfg.Channels <= 0 {
		cfg.Channels = 1
	}
	if cfg.Gain == 0 {
		cfg.Gain = defaultGain
	}

	p := &Plugin{
		sched:       sched,
		cfg:         cfg,
		metrics:     metrics.NoOpRecorder{},
		slots:       make([]atomic.Pointer[Sample], cfg.Slots),
		request:     make([]byte, 1+MaxPathLen),
		currentSlot: noSlot,
		pendingFree: make([]int, 0, cfg.Slots),
		inUse:       make([]bool, cfg.Slots),
		cache:       newDecodeCache(cfg.CacheTTL),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// RequestLoad asks the plugin to load path. Only the latest path is kept if
// called again before the audio side picks it up. Safe from any goroutine.
func (p *Plugin) RequestLoad(path string) error {
	if path == "" {
		return fmt.Errorf("%w: empty path", ErrBadRequest)
	}
	if len(path) > MaxPathLen {
		return fmt.Errorf("%w: %d bytes, limit %d", ErrPathTooLong, len(path), MaxPathLen)
	}
	p.pending.Store(&path)
	return nil
}

// Current returns the sample being played, or nil. Audio goroutine only.
func (p *Plugin) Current() *Sample {
	return p.current
}

// Process retries deferred frees, schedules a pending load and renders the
// current sample in a loop. Audio goroutine only.
func (p *Plugin) Process(out []float32, frames int) {
	p.flushFrees()

	if path := p.pending.Swap(nil); path != nil {
		p.request[0] = opLoad
		n := copy(p.request[1:], *path)
		switch err := p.sched.Schedule(p.request[:1+n]); {
		case errors.Is(err, ring.ErrNoSpace):
			p.loadsRejected.Add(1)
			// Put it back unless a newer path arrived meanwhile.
			p.pending.CompareAndSwap(nil, path)
		case err != nil:
			// The request can never fit the ring.
			p.loadFailed.Add(1)
		default:
			p.loadsRequested.Add(1)
		}
	}

	s := p.current
	if s == nil || s.Frames == 0 || s.Channels != p.cfg.Channels {
		return
	}
	ch := p.cfg.Channels
	gain := p.cfg.Gain
	for f := 0; f < frames && (f+1)*ch <= len(out); f++ {
		src := s.Data[p.pos*ch : p.pos*ch+ch]
		dst := out[f*ch : f*ch+ch]
		for c := range dst {
			dst[c] = src[c] * gain
		}
		p.pos++
		if p.pos == s.Frames {
			p.pos = 0
		}
	}
}

// WorkResponse installs a loaded sample. Audio goroutine only.
func (p *Plugin) WorkResponse(payload []byte) error {
	if len(payload) == 0 {
		p.badResponses.Add(1)
		return ErrBadRequest
	}

	switch payload[0] {
	case opLoaded:
		if len(payload) < 2 || int(payload[1]) >= len(p.slots) {
			p.badResponses.Add(1)
			return ErrBadRequest
		}
		slot := int(payload[1])
		s := p.slots[slot].Load()
		if s == nil {
			p.badResponses.Add(1)
			return ErrBadRequest
		}

		if p.currentSlot != noSlot {
			p.queueFree(p.currentSlot)
		}
		p.current = s
		p.currentSlot = slot
		p.pos = 0
		p.installed.Add(1)
		p.flushFrees()
		return nil

	case opFailed:
		// The worker already counted and logged the failure.
		return nil

	default:
		p.badResponses.Add(1)
		return ErrBadRequest
	}
}

// queueFree remembers slot until a free request for it is accepted.
func (p *Plugin) queueFree(slot int) {
	if len(p.pendingFree) < cap(p.pendingFree) {
		p.pendingFree = append(p.pendingFree, slot)
	}
}

// flushFrees schedules deferred free requests in order until one is refused.
func (p *Plugin) flushFrees() {
	sent := 0
	for _, slot := range p.pendingFree {
		p.freeReq[0] = opFree
		p.freeReq[1] = byte(slot)
		if p.sched.Schedule(p.freeReq[:]) != nil {
			p.freesDeferred.Add(1)
			break
		}
		sent++
	}
	if sent > 0 {
		n := copy(p.pendingFree, p.pendingFree[sent:])
		p.pendingFree = p.pendingFree[:n]
	}
}

// Work handles load and free requests. Worker goroutine.
func (p *Plugin) Work(r worker.Responder, payload []byte) error {
	if len(payload) == 0 {
		return fmt.Errorf("%w: empty request", ErrBadRequest)
	}

	switch payload[0] {
	case opLoad:
		return p.load(r, string(payload[1:]))
	case opFree:
		if len(payload) < 2 {
			return fmt.Errorf("%w: free without slot", ErrBadRequest)
		}
		return p.free(int(payload[1]))
	default:
		return fmt.Errorf("%w: opcode %d", ErrBadRequest, payload[0])
	}
}

func (p *Plugin) load(r worker.Responder, path string) error {
	start := time.Now()
	log := GetLogger().With(logger.String("path", privacy.ScrubMessage(path)))

	slot := p.freeSlot()
	if slot == noSlot {
		return p.failLoad(r, log, ErrNoFreeSlot)
	}

	s, cached, err := p.decode(path)
	if err != nil {
		return p.failLoad(r, log, err)
	}

	p.slots[slot].Store(s)
	p.inUse[slot] = true

	p.respBuf[0] = opLoaded
	p.respBuf[1] = byte(slot)
	if err := r.Respond(p.respBuf[:2]); err != nil {
		// The audio side will never learn about this slot.
		p.slots[slot].Store(nil)
		p.inUse[slot] = false
		return p.failLoad(r, log, err)
	}

	elapsed := time.Since(start)
	p.loaded.Add(1)
	if cached {
		p.cacheHits.Add(1)
	}
	p.metrics.RecordOperation(metrics.OpSampleLoad, metrics.StatusSuccess)
	p.metrics.RecordDuration(metrics.OpSampleLoad, elapsed.Seconds())
	log.Info("sample loaded",
		logger.Int("slot", slot),
		logger.Int("frames", s.Frames),
		logger.Int("source_rate", s.SourceRate),
		logger.Bool("cached", cached),
		logger.Duration("elapsed", elapsed))
	return nil
}

func (p *Plugin) failLoad(r worker.Responder, log logger.Logger, err error) error {
	p.loadFailed.Add(1)
	p.metrics.RecordOperation(metrics.OpSampleLoad, metrics.StatusError)
	p.metrics.RecordError(metrics.OpSampleLoad, errorType(err))
	log.Warn("sample load failed", logger.Error(privacy.WrapError(err)))

	p.respBuf[0] = opFailed
	_ = r.Respond(p.respBuf[:1])
	return err
}

func (p *Plugin) free(slot int) error {
	if slot >= len(p.slots) || !p.inUse[slot] {
		p.metrics.RecordOperation(metrics.OpSampleFree, metrics.StatusError)
		return fmt.Errorf("%w: free of unused slot %d", ErrBadRequest, slot)
	}
	p.slots[slot].Store(nil)
	p.inUse[slot] = false
	p.freed.Add(1)
	p.metrics.RecordOperation(metrics.OpSampleFree, metrics.StatusSuccess)
	return nil
}

// freeSlot returns the first unused slot or noSlot. Worker goroutine.
func (p *Plugin) freeSlot() int {
	for i, used := range p.inUse {
		if !used {
			return i
		}
	}
	return noSlot
}

// errorType maps an error to the error_type metrics label.
func errorType(err error) string {
	var ee *errors.EnhancedError
	if errors.As(err, &ee) {
		return ee.GetCategory()
	}
	return "unknown"
}

// Stats returns a snapshot of the plugin counters. Safe from any goroutine.
func (p *Plugin) Stats() Stats {
	return Stats{
		LoadsRequested: p.loadsRequested.Load(),
		LoadsRejected:  p.loadsRejected.Load(),
		Loaded:         p.loaded.Load(),
		CacheHits:      p.cacheHits.Load(),
		LoadFailed:     p.loadFailed.Load(),
		Installed:      p.installed.Load(),
		Freed:          p.freed.Load(),
		FreesDeferred:  p.freesDeferred.Load(),
		BadResponses:   p.badResponses.Load(),
	}
}

// LogSummary writes the counters at info level.
func (p *Plugin) LogSummary() {
	s := p.Stats()
	GetLogger().Info("sampler plugin summary",
		logger.Uint64("loads_requested", s.LoadsRequested),
		logger.Uint64("loaded", s.Loaded),
		logger.Uint64("cache_hits", s.CacheHits),
		logger.Uint64("load_failed", s.LoadFailed),
		logger.Uint64("installed", s.Installed),
		logger.Uint64("freed", s.Freed))
}
