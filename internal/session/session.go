// Package session assembles a hosted plugin from settings: the worker, the
// demo plugin, the engine that clocks them and the optional output recorder.
package session

import (
	"context"
	"fmt"

	"github.com/danfengzi/obs-lv2/internal/conf"
	"github.com/danfengzi/obs-lv2/internal/errors"
	"github.com/danfengzi/obs-lv2/internal/host"
	"github.com/danfengzi/obs-lv2/internal/logger"
	"github.com/danfengzi/obs-lv2/internal/observability"
	"github.com/danfengzi/obs-lv2/internal/plugins/reverse"
	"github.com/danfengzi/obs-lv2/internal/plugins/sampler"
	"github.com/danfengzi/obs-lv2/internal/worker"
)

// Plugin is what a session hosts: an audio processor with work capability.
type Plugin interface {
	host.Processor
	worker.Interface
	LogSummary()
}

// ErrUnknownPlugin is returned for a plugin name that is not built in.
var ErrUnknownPlugin = errors.New(errors.NewStd("session: unknown plugin")).
	Component("session").
	Category(errors.CategoryValidation).
	Build()

// Session is one plugin instance wired to its worker and engine.
type Session struct {
	Worker   *worker.Worker
	Plugin   Plugin
	Engine   *host.Engine
	Recorder *host.Recorder // nil unless host.record is set

	sampler    *sampler.Plugin
	samplePath string
}

// WorkerConfig maps worker settings onto worker.Config.
func WorkerConfig(s conf.WorkerSettings) (worker.Config, error) {
	mode, err := worker.ParseWaitMode(s.WaitMode)
	if err != nil {
		return worker.Config{}, err
	}
	return worker.Config{
		RingSize:     s.RingSize,
		WaitMode:     mode,
		PollInterval: s.PollInterval,
		StopTimeout:  s.StopTimeout,
		WarnRate:     s.WarnRate,
	}, nil
}

// HostConfig maps host settings onto host.Config.
func HostConfig(s conf.HostSettings) host.Config {
	return host.Config{
		SampleRate: s.SampleRate,
		BlockSize:  s.BlockSize,
		Channels:   s.Channels,
	}
}

// New builds a session. m may be nil to run without metrics.
func New(settings *conf.Settings, m *observability.Metrics) (*Session, error) {
	wcfg, err := WorkerConfig(settings.Worker)
	if err != nil {
		return nil, err
	}

	var wopts []worker.Option
	if m != nil {
		// The ID is fixed up front so the metric labels match the worker's logs.
		id := fmt.Sprintf("%s-worker", settings.Plugin.Name)
		wopts = append(wopts, worker.WithID(id), worker.WithMetrics(m.Worker.ForWorker(id)))
	}
	w, err := worker.New(wcfg, wopts...)
	if err != nil {
		return nil, err
	}

	hcfg := HostConfig(settings.Host)
	s := &Session{Worker: w}

	switch settings.Plugin.Name {
	case reverse.Name:
		var opts []reverse.Option
		if m != nil {
			opts = append(opts, reverse.WithMetrics(m.Plugin.ForPlugin(reverse.Name)))
		}
		s.Plugin = reverse.New(w, reverse.Config{
			SampleRate: hcfg.SampleRate,
			Channels:   hcfg.Channels,
			Interval:   settings.Plugin.Interval,
		}, opts...)
	case sampler.Name:
		var opts []sampler.Option
		if m != nil {
			opts = append(opts, sampler.WithMetrics(m.Plugin.ForPlugin(sampler.Name)))
		}
		s.sampler = sampler.New(w, sampler.Config{
			SampleRate: hcfg.SampleRate,
			Channels:   hcfg.Channels,
			Slots:      settings.Plugin.Slots,
			CacheTTL:   settings.Plugin.CacheTTL,
		}, opts...)
		s.Plugin = s.sampler
		s.samplePath = settings.Plugin.Sample
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownPlugin, settings.Plugin.Name)
	}

	var eopts []host.EngineOption
	if m != nil {
		eopts = append(eopts, host.WithMetrics(m.Host.ForDriver(settings.Host.Driver)))
	}
	if settings.Host.Record != "" {
		rec, err := host.NewRecorder(settings.Host.Record, hcfg)
		if err != nil {
			return nil, err
		}
		s.Recorder = rec
		eopts = append(eopts, host.WithRecorder(rec))
	}

	s.Engine, err = host.NewEngine(hcfg, s.Plugin, w, eopts...)
	if err != nil {
		if s.Recorder != nil {
			_ = s.Recorder.Close()
		}
		return nil, err
	}
	return s, nil
}

// Start queues the initial sample load, if any, and launches the worker.
// The load is only scheduled from Process, so queueing it first leaves
// nothing running when the path is rejected.
func (s *Session) Start(ctx context.Context) error {
	if s.sampler != nil && s.samplePath != "" {
		if err := s.sampler.RequestLoad(s.samplePath); err != nil {
			return err
		}
	}
	return s.Worker.Start(ctx, s.Plugin)
}

// Stop stops the worker. It returns worker.ErrStopTimeout if a callback is
// still running after the configured stop timeout.
func (s *Session) Stop() error {
	return s.Worker.Stop()
}

// LogSummary logs engine, worker and plugin counters.
func (s *Session) LogSummary() {
	es := s.Engine.Stats()
	ws := s.Worker.Stats()
	GetLogger().Info("session summary",
		logger.Uint64("cycles", es.Cycles),
		logger.Uint64("overruns", es.Overruns),
		logger.Uint64("pump_errors", es.PumpErrors),
		logger.Uint64("scheduled", ws.Scheduled),
		logger.Uint64("rejected", ws.Rejected),
		logger.Uint64("processed", ws.Processed),
		logger.Uint64("delivered", ws.Delivered),
		logger.Uint64("protocol_errors", ws.ProtocolErrors))
	s.Plugin.LogSummary()
}
