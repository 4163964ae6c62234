package logger_test

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danfengzi/obs-lv2/internal/logger"
)

func TestSlogLoggerLevels(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name      string
		level     logger.LogLevel
		wantDebug bool
		wantInfo  bool
		wantWarn  bool
	}{
		{name: "debug", level: logger.LogLevelDebug, wantDebug: true, wantInfo: true, wantWarn: true},
		{name: "info", level: logger.LogLevelInfo, wantInfo: true, wantWarn: true},
		{name: "warn", level: logger.LogLevelWarn, wantWarn: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			buf := &bytes.Buffer{}
			log := logger.NewSlogLogger(buf, tc.level, time.UTC)

			log.Debug("debug message")
			log.Info("info message")
			log.Warn("warn message")

			out := buf.String()
			assert.Equal(t, tc.wantDebug, strings.Contains(out, "debug message"))
			assert.Equal(t, tc.wantInfo, strings.Contains(out, "info message"))
			assert.Equal(t, tc.wantWarn, strings.Contains(out, "warn message"))
		})
	}
}

func TestTraceLevelLabel(t *testing.T) {
	t.Parallel()

	buf := &bytes.Buffer{}
	log := logger.NewSlogLogger(buf, logger.LogLevelTrace, time.UTC)
	log.Trace("very chatty")

	assert.Contains(t, buf.String(), "level=TRACE")
	assert.Contains(t, buf.String(), "very chatty")
}

func TestModuleNestingAndFields(t *testing.T) {
	t.Parallel()

	buf := &bytes.Buffer{}
	log := logger.NewSlogLogger(buf, logger.LogLevelInfo, time.UTC).
		Module("worker").
		Module("loop").
		With(logger.String("worker_id", "w1"))

	log.Info("drained",
		logger.Int("frames", 3),
		logger.Duration("elapsed", 1500*time.Millisecond),
		logger.Bool("stopping", false))

	out := buf.String()
	assert.Contains(t, out, "module=worker.loop")
	assert.Contains(t, out, "worker_id=w1")
	assert.Contains(t, out, "frames=3")
	assert.Contains(t, out, "elapsed=1.5s")
	assert.Contains(t, out, "stopping=false")
}

func TestWithDoesNotLeakIntoParent(t *testing.T) {
	t.Parallel()

	buf := &bytes.Buffer{}
	parent := logger.NewSlogLogger(buf, logger.LogLevelInfo, time.UTC)
	_ = parent.With(logger.String("child_only", "yes"))

	parent.Info("parent line")
	assert.NotContains(t, buf.String(), "child_only")
}

func TestErrorFieldNil(t *testing.T) {
	t.Parallel()

	buf := &bytes.Buffer{}
	log := logger.NewSlogLogger(buf, logger.LogLevelInfo, time.UTC)
	log.Error("nothing wrong", logger.Error(nil))

	assert.Contains(t, buf.String(), "nothing wrong")
}

func TestCentralLoggerFileOutput(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "nested", "main.log")

	cl, err := logger.NewCentralLogger(&logger.LoggingConfig{
		DefaultLevel: "debug",
		Timezone:     "UTC",
		Console:      &logger.ConsoleOutput{Enabled: false},
		FileOutput: &logger.FileOutput{
			Enabled: true,
			Path:    path,
			Level:   "debug",
		},
		ModuleLevels: map[string]string{"worker": "info"},
	})
	require.NoError(t, err)

	cl.Module("host").Debug("host line", logger.Int("block_size", 256))
	cl.Module("worker").Module("loop").Debug("filtered worker line")
	cl.Module("worker").Info("worker line", logger.Uint64("responses", 7))

	require.NoError(t, cl.Flush())
	require.NoError(t, cl.Close())
	require.NoError(t, cl.Close(), "close must be idempotent")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "host line", entry["msg"])
	assert.Equal(t, "host", entry["module"])
	assert.InDelta(t, 256, entry["block_size"], 0)

	assert.NotContains(t, string(data), "filtered worker line")
	assert.Contains(t, lines[1], "worker line")
}

func TestModuleLevelsInheritByPrefix(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "levels.log")
	cl, err := logger.NewCentralLogger(&logger.LoggingConfig{
		DefaultLevel: "warn",
		Console:      &logger.ConsoleOutput{Enabled: false},
		FileOutput:   &logger.FileOutput{Enabled: true, Path: path, Level: "trace"},
		ModuleLevels: map[string]string{
			"plugins":         "debug",
			"plugins.sampler": "error",
		},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = cl.Close() })

	cl.Module("plugins").Module("reverse").Debug("reverse debug")
	cl.Module("plugins").Module("sampler").Warn("sampler warn")
	cl.Module("host").Info("host info")
	cl.Module("host").Warn("host warn")
	require.NoError(t, cl.Module("host").Flush())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	out := string(data)
	assert.Contains(t, out, "reverse debug")
	assert.NotContains(t, out, "sampler warn")
	assert.NotContains(t, out, "host info")
	assert.Contains(t, out, "host warn")
}

func TestCentralLoggerRejectsBadTimezone(t *testing.T) {
	t.Parallel()

	_, err := logger.NewCentralLogger(&logger.LoggingConfig{Timezone: "Not/AZone"})
	require.Error(t, err)

	_, err = logger.NewCentralLogger(nil)
	require.Error(t, err)
}
