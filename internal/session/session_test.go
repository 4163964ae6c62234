package session_test

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/danfengzi/obs-lv2/internal/conf"
	"github.com/danfengzi/obs-lv2/internal/observability"
	"github.com/danfengzi/obs-lv2/internal/plugins/reverse"
	"github.com/danfengzi/obs-lv2/internal/plugins/sampler"
	"github.com/danfengzi/obs-lv2/internal/session"
	"github.com/danfengzi/obs-lv2/internal/testutil"
	"github.com/danfengzi/obs-lv2/internal/worker"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func testSettings() *conf.Settings {
	return &conf.Settings{
		Worker: conf.WorkerSettings{
			RingSize:     1024,
			WaitMode:     "signal",
			PollInterval: 10 * time.Millisecond,
			StopTimeout:  time.Second,
			WarnRate:     1,
		},
		Host: conf.HostSettings{
			Driver:     "ticker",
			SampleRate: 48000,
			BlockSize:  64,
			Channels:   2,
		},
		Plugin: conf.PluginSettings{
			Name:     reverse.Name,
			Interval: 1,
		},
	}
}

func TestWorkerConfig(t *testing.T) {
	t.Parallel()

	cfg, err := session.WorkerConfig(conf.WorkerSettings{RingSize: 512, WaitMode: "spin"})
	require.NoError(t, err)
	assert.Equal(t, 512, cfg.RingSize)
	assert.Equal(t, worker.WaitSpin, cfg.WaitMode)

	_, err = session.WorkerConfig(conf.WorkerSettings{WaitMode: "busy"})
	require.Error(t, err)
}

func TestNewRejectsUnknownPlugin(t *testing.T) {
	t.Parallel()

	settings := testSettings()
	settings.Plugin.Name = "chorus"
	_, err := session.New(settings, nil)
	require.ErrorIs(t, err, session.ErrUnknownPlugin)
}

func TestReverseSessionCycles(t *testing.T) {
	t.Parallel()

	m, err := observability.NewMetrics()
	require.NoError(t, err)

	s, err := session.New(testSettings(), m)
	require.NoError(t, err)
	require.Nil(t, s.Recorder)
	require.NoError(t, s.Start(context.Background()))
	t.Cleanup(func() { _ = s.Stop() })

	rev, ok := s.Plugin.(*reverse.Plugin)
	require.True(t, ok)

	out := make([]float32, s.Engine.Config().BlockSamples())
	cycle := func() error { return s.Engine.Cycle(out) }
	testutil.PumpUntil(t, cycle, func() bool { return rev.Stats().Responses >= 5 }, testutil.DefaultTestTimeout)

	require.NoError(t, s.Stop())
	assert.Zero(t, rev.Stats().Mismatches)
	assert.Zero(t, s.Engine.Stats().PumpErrors)

	families, err := m.Registry().Gather()
	require.NoError(t, err)
	scheduled := counterSum(families, "lv2_worker_scheduled_total", "worker_id", "reverse-worker")
	assert.InDelta(t, float64(s.Worker.Stats().Scheduled), scheduled, 0)
	assert.GreaterOrEqual(t, scheduled, 5.0)
	assert.Zero(t, counterSum(families, "lv2_worker_scheduled_total", "worker_id", "other-worker"))

	count, err := promtestutil.GatherAndCount(m.Registry(), "lv2_host_cycles_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	assert.NotPanics(t, s.LogSummary)
}

func TestSamplerSessionLoadsConfiguredSample(t *testing.T) {
	t.Parallel()

	settings := testSettings()
	settings.Plugin.Name = "sampler"
	settings.Plugin.Sample = filepath.Join(t.TempDir(), "missing.wav")
	settings.Host.Record = filepath.Join(t.TempDir(), "out", "render.wav")

	s, err := session.New(settings, nil)
	require.NoError(t, err)
	require.NotNil(t, s.Recorder)
	require.NoError(t, s.Start(context.Background()))
	t.Cleanup(func() { _ = s.Stop() })

	out := make([]float32, s.Engine.Config().BlockSamples())
	cycle := func() error { return s.Engine.Cycle(out) }
	testutil.PumpUntil(t, cycle, func() bool { return s.Worker.Stats().WorkFailed == 1 }, testutil.DefaultTestTimeout)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, s.Recorder.Run(ctx))
	assert.Positive(t, s.Recorder.Stats().EncodedBytes)
}

func TestStartRejectsLongSamplePathWithoutStartingWorker(t *testing.T) {
	t.Parallel()

	assert.Equal(t, conf.MaxSamplePathLen, sampler.MaxPathLen)

	settings := testSettings()
	settings.Plugin.Name = "sampler"
	settings.Plugin.Slots = 4
	settings.Plugin.Sample = strings.Repeat("a", sampler.MaxPathLen+1)

	s, err := session.New(settings, nil)
	require.NoError(t, err)

	require.ErrorIs(t, s.Start(context.Background()), sampler.ErrPathTooLong)
	assert.Equal(t, worker.StateIdle, s.Worker.State())
	require.ErrorIs(t, s.Stop(), worker.ErrNotStarted)
}

// counterSum adds up every sample of the named counter whose label matches.
func counterSum(families []*dto.MetricFamily, name, labelName, labelValue string) float64 {
	var sum float64
	for _, mf := range families {
		if mf.GetName() != name || mf.GetType() != dto.MetricType_COUNTER {
			continue
		}
		for _, metric := range mf.GetMetric() {
			for _, label := range metric.GetLabel() {
				if label.GetName() == labelName && label.GetValue() == labelValue {
					sum += metric.GetCounter().GetValue()
				}
			}
		}
	}
	return sum
}
