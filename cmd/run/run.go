// Package run implements the host simulation command.
package run

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/danfengzi/obs-lv2/internal/conf"
	"github.com/danfengzi/obs-lv2/internal/errors"
	"github.com/danfengzi/obs-lv2/internal/host"
	"github.com/danfengzi/obs-lv2/internal/logger"
	"github.com/danfengzi/obs-lv2/internal/observability"
	"github.com/danfengzi/obs-lv2/internal/session"
	"github.com/danfengzi/obs-lv2/internal/telemetry"
	"github.com/danfengzi/obs-lv2/internal/worker"
)

const telemetryFlushTimeout = 2 * time.Second

// Command creates the run command.
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Host a demo plugin on a simulated or real audio clock",
		Long: "Start a plugin instance with its worker and clock it block by block " +
			"until interrupted or until --duration elapses.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return Run(cmd.Context(), settings)
		},
	}

	if err := setupFlags(cmd); err != nil {
		fmt.Printf("error setting up flags: %v\n", err)
		os.Exit(1)
	}

	return cmd
}

// setupFlags configures flags specific to the run command.
func setupFlags(cmd *cobra.Command) error {
	cmd.Flags().String("driver", viper.GetString("host.driver"), "Audio clock driver (ticker, malgo)")
	cmd.Flags().Int("samplerate", viper.GetInt("host.samplerate"), "Sample rate in Hz")
	cmd.Flags().Int("blocksize", viper.GetInt("host.blocksize"), "Frames per audio cycle")
	cmd.Flags().Duration("duration", viper.GetDuration("host.duration"), "Stop after this long, 0 runs until interrupted")
	cmd.Flags().String("record", viper.GetString("host.record"), "Record rendered output to this WAV file")
	cmd.Flags().String("plugin", viper.GetString("plugin.name"), "Plugin to host (reverse, sampler)")
	cmd.Flags().String("sample", viper.GetString("plugin.sample"), "WAV or FLAC file for the sampler plugin")
	cmd.Flags().String("waitmode", viper.GetString("worker.waitmode"), "Worker wait mode (signal, spin)")
	cmd.Flags().Bool("telemetry", viper.GetBool("telemetry.enabled"), "Enable Prometheus telemetry endpoint")
	cmd.Flags().String("listen", viper.GetString("telemetry.listen"), "Listen address and port of telemetry endpoint")

	bindings := map[string]string{
		"host.driver":       "driver",
		"host.samplerate":   "samplerate",
		"host.blocksize":    "blocksize",
		"host.duration":     "duration",
		"host.record":       "record",
		"plugin.name":       "plugin",
		"plugin.sample":     "sample",
		"worker.waitmode":   "waitmode",
		"telemetry.enabled": "telemetry",
		"telemetry.listen":  "listen",
	}
	for key, flag := range bindings {
		if err := viper.BindPFlag(key, cmd.Flags().Lookup(flag)); err != nil {
			return fmt.Errorf("error binding flag %s: %w", flag, err)
		}
	}
	return nil
}

// Run hosts the configured plugin until ctx is done, host.duration elapses
// or a component fails.
func Run(ctx context.Context, settings *conf.Settings) error {
	log := GetLogger()

	var (
		metrics  *observability.Metrics
		endpoint *observability.Endpoint
	)
	if settings.Telemetry.Enabled {
		var err error
		if metrics, err = observability.NewMetrics(); err != nil {
			return err
		}
		if endpoint, err = observability.NewEndpoint(settings, metrics); err != nil {
			return err
		}
	}

	s, err := session.New(settings, metrics)
	if err != nil {
		return err
	}

	driver, err := host.NewDriver(settings.Host.Driver)
	if err != nil {
		closeRecorder(s)
		return err
	}

	if settings.Host.Duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, settings.Host.Duration)
		defer cancel()
	}

	if err := s.Start(ctx); err != nil {
		closeRecorder(s)
		return err
	}

	log.Info("hosting plugin",
		logger.String("plugin", settings.Plugin.Name),
		logger.String("driver", driver.Name()),
		logger.String("worker_id", s.Worker.ID()),
		logger.Duration("duration", settings.Host.Duration))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return driver.Run(gctx, s.Engine)
	})
	if s.Recorder != nil {
		g.Go(func() error {
			return s.Recorder.Run(gctx)
		})
	}
	if endpoint != nil {
		g.Go(func() error {
			return endpoint.Run(gctx)
		})
	}

	runErr := g.Wait()

	stopErr := s.Stop()
	if errors.Is(stopErr, worker.ErrStopTimeout) {
		telemetry.CaptureError(stopErr, "worker")
		telemetry.Flush(telemetryFlushTimeout)
	}

	s.LogSummary()
	if runErr != nil {
		log.Error("host stopped with error", logger.Error(runErr))
		telemetry.CaptureError(runErr, "host")
	} else {
		log.Info("host stopped")
	}

	return errors.Join(runErr, stopErr)
}

// closeRecorder finalizes the output file when the recorder never ran.
func closeRecorder(s *session.Session) {
	if s.Recorder != nil {
		_ = s.Recorder.Close()
	}
}
