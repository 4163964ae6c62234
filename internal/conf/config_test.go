package conf

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

// resetViper isolates a test from the global viper and config file state.
func resetViper(t *testing.T) {
	t.Helper()
	viper.Reset()
	SetConfigFile("")
	t.Cleanup(func() {
		viper.Reset()
		SetConfigFile("")
	})
}

func TestLoadDefaults(t *testing.T) {
	resetViper(t)

	settings, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 4096, settings.Worker.RingSize)
	assert.Equal(t, "signal", settings.Worker.WaitMode)
	assert.Equal(t, 100*time.Millisecond, settings.Worker.PollInterval)
	assert.Equal(t, 2*time.Second, settings.Worker.StopTimeout)
	assert.InDelta(t, 1.0, settings.Worker.WarnRate, 0)

	assert.Equal(t, "ticker", settings.Host.Driver)
	assert.Equal(t, 48000, settings.Host.SampleRate)
	assert.Equal(t, 256, settings.Host.BlockSize)
	assert.Equal(t, 2, settings.Host.Channels)
	assert.Zero(t, settings.Host.Duration)

	assert.Equal(t, "reverse", settings.Plugin.Name)
	assert.Equal(t, 8, settings.Plugin.Interval)
	assert.Equal(t, 4, settings.Plugin.Slots)
	assert.Equal(t, 5*time.Minute, settings.Plugin.CacheTTL)

	assert.Equal(t, "info", settings.Logging.DefaultLevel)
	require.NotNil(t, settings.Logging.Console)
	assert.True(t, settings.Logging.Console.Enabled)

	assert.False(t, settings.Telemetry.Enabled)
	assert.Equal(t, "127.0.0.1:8090", settings.Telemetry.Listen)
	assert.Same(t, settings, GetSettings())
}

func TestLoadEnvironmentOverrides(t *testing.T) {
	resetViper(t)
	t.Setenv("OBSLV2_WORKER_RINGSIZE", "8192")
	t.Setenv("OBSLV2_WORKER_WAITMODE", "spin")
	t.Setenv("OBSLV2_HOST_BLOCKSIZE", "128")
	t.Setenv("OBSLV2_WORKER_POLLINTERVAL", "20ms")

	settings, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8192, settings.Worker.RingSize)
	assert.Equal(t, "spin", settings.Worker.WaitMode)
	assert.Equal(t, 128, settings.Host.BlockSize)
	assert.Equal(t, 20*time.Millisecond, settings.Worker.PollInterval)
}

func TestLoadExplicitConfigFile(t *testing.T) {
	resetViper(t)

	path := filepath.Join(t.TempDir(), "obs.yaml")
	content := `
worker:
  ringsize: 1024
  stoptimeout: 500ms
host:
  driver: malgo
  samplerate: 44100
plugin:
  name: sampler
  sample: /tmp/kick.wav
logging:
  defaultlevel: debug
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	SetConfigFile(path)

	settings, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 1024, settings.Worker.RingSize)
	assert.Equal(t, 500*time.Millisecond, settings.Worker.StopTimeout)
	assert.Equal(t, "malgo", settings.Host.Driver)
	assert.Equal(t, 44100, settings.Host.SampleRate)
	assert.Equal(t, "sampler", settings.Plugin.Name)
	assert.Equal(t, "/tmp/kick.wav", settings.Plugin.Sample)
	assert.Equal(t, "debug", settings.Logging.DefaultLevel)
	assert.Equal(t, path, ConfigFileUsed())

	// Untouched keys keep their defaults
	assert.Equal(t, "signal", settings.Worker.WaitMode)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	resetViper(t)
	SetConfigFile(filepath.Join(t.TempDir(), "absent.yaml"))

	_, err := Load()
	require.Error(t, err)
}

func TestLoadRejectsInvalidSettings(t *testing.T) {
	resetViper(t)
	t.Setenv("OBSLV2_PLUGIN_NAME", "sampler")

	_, err := Load()
	require.Error(t, err)

	var ve ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Contains(t, ve.Errors, "plugin.sample is required for the sampler plugin")
}

func validSettings() *Settings {
	return &Settings{
		Worker: WorkerSettings{
			RingSize:     4096,
			WaitMode:     "signal",
			PollInterval: 100 * time.Millisecond,
			StopTimeout:  2 * time.Second,
			WarnRate:     1,
		},
		Host: HostSettings{
			Driver:     "ticker",
			SampleRate: 48000,
			BlockSize:  256,
			Channels:   2,
		},
		Plugin:    PluginSettings{Name: "reverse", Interval: 8},
		Telemetry: TelemetrySettings{Enabled: true, Listen: "127.0.0.1:8090"},
	}
}

func TestValidateSettings(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name    string
		mutate  func(s *Settings)
		wantErr int
	}{
		{name: "valid", mutate: func(*Settings) {}},
		{name: "ring too small", mutate: func(s *Settings) { s.Worker.RingSize = 8 }, wantErr: 1},
		{name: "unknown wait mode", mutate: func(s *Settings) { s.Worker.WaitMode = "sleep" }, wantErr: 1},
		{name: "poll interval too short", mutate: func(s *Settings) { s.Worker.PollInterval = time.Microsecond }, wantErr: 1},
		{name: "unknown driver", mutate: func(s *Settings) { s.Host.Driver = "jack" }, wantErr: 1},
		{name: "block size out of range", mutate: func(s *Settings) { s.Host.BlockSize = 4 }, wantErr: 1},
		{name: "unknown plugin", mutate: func(s *Settings) { s.Plugin.Name = "delay" }, wantErr: 1},
		{
			name: "sampler slots and cache",
			mutate: func(s *Settings) {
				s.Plugin = PluginSettings{Name: "sampler", Sample: "kick.wav", Slots: 0, CacheTTL: -time.Second}
			},
			wantErr: 2,
		},
		{
			name: "sample path too long",
			mutate: func(s *Settings) {
				s.Plugin = PluginSettings{Name: "sampler", Sample: strings.Repeat("a", MaxSamplePathLen+1), Slots: 4}
			},
			wantErr: 1,
		},
		{name: "bad listen address", mutate: func(s *Settings) { s.Telemetry.Listen = "8090" }, wantErr: 1},
		{name: "sentry without dsn", mutate: func(s *Settings) { s.Sentry.Enabled = true }, wantErr: 1},
		{
			name: "errors accumulate",
			mutate: func(s *Settings) {
				s.Worker.StopTimeout = 0
				s.Host.Channels = 0
				s.Host.SampleRate = 1000
			},
			wantErr: 3,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			s := validSettings()
			tc.mutate(s)
			err := ValidateSettings(s)

			if tc.wantErr == 0 {
				require.NoError(t, err)
				return
			}
			var ve ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Len(t, ve.Errors, tc.wantErr, ve.Errors)
		})
	}
}

func TestBindEnvVarsReportsInvalidValues(t *testing.T) {
	resetViper(t)
	t.Setenv("OBSLV2_WORKER_RINGSIZE", "lots")
	t.Setenv("OBSLV2_DEBUG", "maybe")

	err := bindEnvVars()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "OBSLV2_WORKER_RINGSIZE")
	assert.Contains(t, err.Error(), "OBSLV2_DEBUG")
}

func TestMarshalYAML(t *testing.T) {
	t.Parallel()

	data, err := MarshalYAML(validSettings())
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, yaml.Unmarshal(data, &decoded))
	require.Contains(t, decoded, "worker")
	worker, ok := decoded["worker"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, 4096, worker["ringsize"])
	assert.Equal(t, "signal", worker["waitmode"])
}
