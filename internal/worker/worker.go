package worker

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/danfengzi/obs-lv2/internal/errors"
	"github.com/danfengzi/obs-lv2/internal/logger"
	"github.com/danfengzi/obs-lv2/internal/ring"
)

// Option configures a Worker at construction.
type Option func(*Worker)

// WithMetrics attaches a metrics recorder.
func WithMetrics(m MetricsRecorder) Option {
	return func(w *Worker) {
		w.metrics = m
	}
}

// WithLogger replaces the package logger.
func WithLogger(l logger.Logger) Option {
	return func(w *Worker) {
		if l != nil {
			w.log = l
		}
	}
}

// WithID overrides the generated instance ID.
func WithID(id string) Option {
	return func(w *Worker) {
		if id != "" {
			w.id = id
		}
	}
}

// Stats is a snapshot of worker counters.
type Stats struct {
	Scheduled         uint64 // requests accepted by Schedule
	Rejected          uint64 // requests refused for lack of space
	Processed         uint64 // Work calls that returned nil
	WorkFailed        uint64 // Work calls that returned an error
	Panics            uint64 // Work calls that panicked
	Responded         uint64 // responses queued by Respond
	ResponsesRejected uint64 // responses refused for lack of space
	Delivered         uint64 // WorkResponse calls made by Pump
	DeliveryFailed    uint64 // WorkResponse calls that failed or panicked
	ProtocolErrors    uint64 // framing violations in either ring
}

type counters struct {
	scheduled         atomic.Uint64
	rejected          atomic.Uint64
	processed         atomic.Uint64
	workFailed        atomic.Uint64
	panics            atomic.Uint64
	responded         atomic.Uint64
	responsesRejected atomic.Uint64
	delivered         atomic.Uint64
	deliveryFailed    atomic.Uint64
	protocolErrors    atomic.Uint64
}

// binding is the plugin capability resolved once in Start.
type binding struct {
	iface     Interface
	endRunner EndRunner
}

// Worker runs plugin work off the audio thread. Schedule and Pump belong to
// the audio thread; everything else may be called from any goroutine.
type Worker struct {
	id  string
	cfg Config

	requests  *ring.Ring
	responses *ring.Ring

	// reqBuf is owned by the worker goroutine, respBuf by the audio thread.
	reqBuf  []byte
	respBuf []byte

	wake     chan struct{}
	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once

	started atomic.Bool
	state   atomic.Int32
	binding atomic.Pointer[binding]

	responder responder
	stats     counters
	metrics   MetricsRecorder
	log       logger.Logger
	warn      *rate.Limiter
}

// New allocates both rings and all buffers up front. The worker goroutine is
// not started until Start.
func New(cfg Config, opts ...Option) (*Worker, error) {
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, errors.New(err).
			Component(componentWorker).
			Category(errors.CategoryConfiguration).
			Build()
	}

	requests, err := ring.New(cfg.RingSize)
	if err != nil {
		return nil, err
	}
	responses, err := ring.New(cfg.RingSize)
	if err != nil {
		return nil, err
	}

	w := &Worker{
		id:        uuid.New().String(),
		cfg:       cfg,
		requests:  requests,
		responses: responses,
		reqBuf:    make([]byte, requests.MaxPayload()),
		respBuf:   make([]byte, responses.MaxPayload()),
		wake:      make(chan struct{}, 1),
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
		log:       GetLogger(),
		warn:      rate.NewLimiter(rate.Limit(cfg.WarnRate), 1),
	}
	w.responder.w = w

	for _, opt := range opts {
		opt(w)
	}
	w.log = w.log.With(logger.String("worker_id", w.id))

	return w, nil
}

// ID returns the instance ID.
func (w *Worker) ID() string { return w.id }

// State returns the loop's current phase.
func (w *Worker) State() State { return State(w.state.Load()) }

// Config returns the effective configuration.
func (w *Worker) Config() Config { return w.cfg }

// Stats returns a snapshot of the counters.
func (w *Worker) Stats() Stats {
	return Stats{
		Scheduled:         w.stats.scheduled.Load(),
		Rejected:          w.stats.rejected.Load(),
		Processed:         w.stats.processed.Load(),
		WorkFailed:        w.stats.workFailed.Load(),
		Panics:            w.stats.panics.Load(),
		Responded:         w.stats.responded.Load(),
		ResponsesRejected: w.stats.responsesRejected.Load(),
		Delivered:         w.stats.delivered.Load(),
		DeliveryFailed:    w.stats.deliveryFailed.Load(),
		ProtocolErrors:    w.stats.protocolErrors.Load(),
	}
}

// Start binds the plugin capability and launches the worker goroutine. The
// goroutine also exits when ctx is done. A worker can only be started once.
func (w *Worker) Start(ctx context.Context, iface Interface) error {
	if iface == nil {
		return ErrNilInterface
	}
	if !w.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}

	b := &binding{iface: iface}
	if er, ok := iface.(EndRunner); ok {
		b.endRunner = er
	}
	w.binding.Store(b)

	w.state.Store(int32(StateWaiting))
	if w.metrics != nil {
		w.metrics.SetRunning(true)
	}

	w.log.Info("worker started",
		logger.Int("ring_size", w.requests.Capacity()),
		logger.String("wait_mode", w.cfg.WaitMode.String()),
		logger.Duration("poll_interval", w.cfg.PollInterval),
		logger.Bool("end_run", b.endRunner != nil))

	go w.loop(ctx, iface)
	return nil
}

// Stop asks the loop to exit after the current callback and waits up to
// StopTimeout for it. Calling Stop again after a timeout waits again.
func (w *Worker) Stop() error {
	if !w.started.Load() {
		return ErrNotStarted
	}
	w.stopOnce.Do(func() { close(w.stop) })

	timer := time.NewTimer(w.cfg.StopTimeout)
	defer timer.Stop()

	select {
	case <-w.done:
		return nil
	case <-timer.C:
		w.log.Warn("worker did not stop in time",
			logger.Duration("timeout", w.cfg.StopTimeout),
			logger.String("state", w.State().String()))
		return ErrStopTimeout
	}
}

// Done is closed when the worker goroutine has exited.
func (w *Worker) Done() <-chan struct{} { return w.done }

// Schedule queues a work request. Audio thread only. It returns
// ring.ErrNoSpace when the request ring is full and a protocol error when
// the payload can never fit. It does not retry.
func (w *Worker) Schedule(payload []byte) error {
	if err := w.requests.Enqueue(payload); err != nil {
		if errors.Is(err, ring.ErrNoSpace) {
			w.stats.rejected.Add(1)
			if w.metrics != nil {
				w.metrics.RecordRejected(DirectionRequest)
			}
		} else {
			w.stats.protocolErrors.Add(1)
			if w.metrics != nil {
				w.metrics.RecordProtocolError(DirectionRequest)
			}
		}
		return err
	}

	w.stats.scheduled.Add(1)
	if w.metrics != nil {
		w.metrics.RecordScheduled()
	}

	select {
	case w.wake <- struct{}{}:
	default:
	}
	return nil
}

// Pump delivers every queued response to WorkResponse in order, then calls
// EndRun if the plugin has it. Audio thread only; it never waits. The first
// framing violation is returned after the offending frame is dropped.
func (w *Worker) Pump() error {
	b := w.binding.Load()
	if b == nil {
		return ErrNotStarted
	}

	var firstErr error
	for {
		n, ok, err := w.responses.Dequeue(w.respBuf)
		if err != nil {
			w.responses.Discard()
			w.stats.protocolErrors.Add(1)
			if w.metrics != nil {
				w.metrics.RecordProtocolError(DirectionResponse)
			}
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if !ok {
			break
		}

		if !w.deliver(b.iface, w.respBuf[:n]) {
			w.stats.deliveryFailed.Add(1)
		}
		w.stats.delivered.Add(1)
		if w.metrics != nil {
			w.metrics.RecordDelivered()
		}
	}

	if b.endRunner != nil {
		b.endRunner.EndRun()
	}
	return firstErr
}

// deliver calls WorkResponse, containing panics so the audio thread survives.
func (w *Worker) deliver(iface Interface, payload []byte) (ok bool) {
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()
	return iface.WorkResponse(payload) == nil
}

func (w *Worker) setState(s State) {
	w.state.Store(int32(s))
}

func (w *Worker) loop(ctx context.Context, iface Interface) {
	defer close(w.done)
	defer func() {
		w.setState(StateStopped)
		if w.metrics != nil {
			w.metrics.SetRunning(false)
		}
		w.log.Info("worker stopped",
			logger.Uint64("processed", w.stats.processed.Load()),
			logger.Uint64("failed", w.stats.workFailed.Load()+w.stats.panics.Load()))
	}()

	timer := time.NewTimer(w.cfg.PollInterval)
	defer timer.Stop()

	for {
		if w.stopping(ctx) {
			return
		}

		w.setState(StateDraining)
		n, ok, err := w.requests.Dequeue(w.reqBuf)
		if err != nil {
			w.requests.Discard()
			w.stats.protocolErrors.Add(1)
			if w.metrics != nil {
				w.metrics.RecordProtocolError(DirectionRequest)
			}
			w.log.Error("dropped malformed work request", logger.Error(err))
			continue
		}
		if !ok {
			w.setState(StateWaiting)
			if !w.wait(ctx, timer) {
				return
			}
			continue
		}

		w.setState(StateDispatching)
		w.dispatch(iface, w.reqBuf[:n])
	}
}

// stopping reports whether Stop was called or ctx is done.
func (w *Worker) stopping(ctx context.Context) bool {
	select {
	case <-w.stop:
		return true
	case <-ctx.Done():
		return true
	default:
		return false
	}
}

// wait blocks until there may be work. It returns false when the loop should exit.
func (w *Worker) wait(ctx context.Context, timer *time.Timer) bool {
	if w.cfg.WaitMode == WaitSpin {
		runtime.Gosched()
		return true
	}

	timer.Reset(w.cfg.PollInterval)
	select {
	case <-w.wake:
		return true
	case <-timer.C:
		return true
	case <-w.stop:
		return false
	case <-ctx.Done():
		return false
	}
}

func (w *Worker) dispatch(iface Interface, payload []byte) {
	start := time.Now()
	panicked, err := w.runWork(iface, payload)
	elapsed := time.Since(start)

	status := WorkStatusOK
	switch {
	case panicked:
		status = WorkStatusPanic
		w.stats.panics.Add(1)
	case err != nil:
		status = WorkStatusError
		w.stats.workFailed.Add(1)
	default:
		w.stats.processed.Add(1)
	}
	if w.metrics != nil {
		w.metrics.RecordWork(status, elapsed)
	}

	if err != nil && w.warn.Allow() {
		w.log.Warn("work callback failed",
			logger.Error(err),
			logger.String("status", status),
			logger.Int("payload_bytes", len(payload)),
			logger.Duration("elapsed", elapsed))
	}
}

// runWork calls Work and converts a panic into an error.
func (w *Worker) runWork(iface Interface, payload []byte) (panicked bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			panicked = true
			err = errors.Newf("work callback panicked: %v", r).
				Component(componentWorker).
				Category(errors.CategoryPlugin).
				Context("worker_id", w.id).
				Build()
		}
	}()
	return false, iface.Work(&w.responder, payload)
}
