// Package bench measures work offload round-trip throughput and the CPU an
// idle worker burns in each wait mode.
package bench

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v3/process"
	"github.com/spf13/cobra"

	"github.com/danfengzi/obs-lv2/internal/conf"
	"github.com/danfengzi/obs-lv2/internal/cpuspec"
	"github.com/danfengzi/obs-lv2/internal/plugins/reverse"
	"github.com/danfengzi/obs-lv2/internal/ring"
	"github.com/danfengzi/obs-lv2/internal/session"
	"github.com/danfengzi/obs-lv2/internal/worker"
)

// Options controls a benchmark run.
type Options struct {
	Requests int           // round trips per wait mode
	Window   int           // requests in flight at most
	Idle     time.Duration // idle CPU sampling window per wait mode
}

// Result is the outcome for one wait mode.
type Result struct {
	Mode         worker.WaitMode
	Requests     int
	Elapsed      time.Duration
	RoundTrips   float64 // per second
	Rejected     uint64
	IdleCPUPct   float64
	IdleMeasured bool
}

// Command creates the bench command.
func Command(settings *conf.Settings) *cobra.Command {
	opts := Options{}

	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Measure worker round-trip throughput and idle CPU per wait mode",
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.Requests < 1 {
				return fmt.Errorf("requests must be positive, got %d", opts.Requests)
			}
			if opts.Window < 1 {
				return fmt.Errorf("window must be positive, got %d", opts.Window)
			}
			out := cmd.OutOrStdout()
			printCPU(out, cpuspec.GetCPUSpec())

			results, err := Run(cmd.Context(), settings.Worker, opts)
			if err != nil {
				return err
			}
			printResults(out, results)
			return nil
		},
	}

	cmd.Flags().IntVarP(&opts.Requests, "requests", "n", 100000, "round trips per wait mode")
	cmd.Flags().IntVar(&opts.Window, "window", 32, "maximum requests in flight")
	cmd.Flags().DurationVar(&opts.Idle, "idle", 2*time.Second, "idle CPU sampling window per wait mode, 0 skips it")

	return cmd
}

// Run benchmarks the signal and spin wait modes in turn.
func Run(ctx context.Context, ws conf.WorkerSettings, opts Options) ([]Result, error) {
	base, err := session.WorkerConfig(ws)
	if err != nil {
		return nil, err
	}

	var results []Result
	for _, mode := range []worker.WaitMode{worker.WaitSignal, worker.WaitSpin} {
		cfg := base
		cfg.WaitMode = mode

		res, err := throughput(ctx, cfg, opts)
		if err != nil {
			return nil, err
		}

		if opts.Idle > 0 {
			pct, err := idleCPU(ctx, cfg, opts.Idle)
			if err != nil {
				return nil, err
			}
			res.IdleCPUPct = pct
			res.IdleMeasured = true
		}
		results = append(results, res)
	}
	return results, nil
}

// throughput drives the reverse plugin from the calling goroutine, which
// plays the audio thread: it keeps up to Window requests in flight and
// pumps responses until Requests round trips have completed.
func throughput(ctx context.Context, cfg worker.Config, opts Options) (Result, error) {
	w, err := worker.New(cfg)
	if err != nil {
		return Result{}, err
	}
	p := reverse.New(w, reverse.Config{History: 1})
	if err := w.Start(ctx, p); err != nil {
		return Result{}, err
	}

	var payload [4]byte
	sent := 0
	start := time.Now()
	for p.Stats().Responses < uint64(opts.Requests) {
		if ctx.Err() != nil {
			break
		}
		inFlight := sent - int(p.Stats().Responses)
		for sent < opts.Requests && inFlight < opts.Window {
			binary.BigEndian.PutUint32(payload[:], uint32(sent))
			if err := p.Request(payload[:]); err != nil {
				if ring.IsProtocolError(err) {
					_ = w.Stop()
					return Result{}, err
				}
				break
			}
			sent++
			inFlight++
		}
		if err := w.Pump(); err != nil {
			_ = w.Stop()
			return Result{}, err
		}
		runtime.Gosched()
	}
	elapsed := time.Since(start)

	if err := w.Stop(); err != nil {
		return Result{}, err
	}

	done := int(p.Stats().Responses)
	return Result{
		Mode:       cfg.WaitMode,
		Requests:   done,
		Elapsed:    elapsed,
		RoundTrips: float64(done) / elapsed.Seconds(),
		Rejected:   w.Stats().Rejected,
	}, nil
}

// idleCPU starts a worker with nothing to do and reports the process CPU
// it costs over window, as a percentage of one core.
func idleCPU(ctx context.Context, cfg worker.Config, window time.Duration) (float64, error) {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return 0, fmt.Errorf("failed to get process information: %w", err)
	}

	w, err := worker.New(cfg)
	if err != nil {
		return 0, err
	}
	if err := w.Start(ctx, reverse.New(w, reverse.Config{History: 1})); err != nil {
		return 0, err
	}

	before, err := proc.TimesWithContext(ctx)
	if err != nil {
		_ = w.Stop()
		return 0, fmt.Errorf("failed to get CPU times: %w", err)
	}
	start := time.Now()

	select {
	case <-time.After(window):
	case <-ctx.Done():
	}

	after, err := proc.TimesWithContext(context.WithoutCancel(ctx))
	elapsed := time.Since(start)
	if stopErr := w.Stop(); stopErr != nil {
		return 0, stopErr
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get CPU times: %w", err)
	}

	used := (after.User + after.System) - (before.User + before.System)
	return used / elapsed.Seconds() * 100, nil
}

func printCPU(out io.Writer, spec cpuspec.CPUSpec) {
	fmt.Fprintf(out, "CPU: %s\n", spec)
	if !spec.SupportsSpin() {
		fmt.Fprintf(out, "warning: spin mode shares a single CPU with the audio goroutine, expect it to be slow\n")
	}
	fmt.Fprintln(out)
}

func printResults(out io.Writer, results []Result) {
	fmt.Fprintf(out, "Mode     Round trips   Elapsed      Throughput          Rejected   Idle CPU\n")
	fmt.Fprintf(out, "───────  ────────────  ───────────  ──────────────────  ─────────  ────────\n")
	for _, r := range results {
		idle := "n/a"
		if r.IdleMeasured {
			idle = fmt.Sprintf("%6.1f%%", r.IdleCPUPct)
		}
		fmt.Fprintf(out, "%-7s  %12d  %11s  %12.0f ops/s  %9d  %8s\n",
			r.Mode, r.Requests, r.Elapsed.Round(time.Microsecond), r.RoundTrips, r.Rejected, idle)
	}
}
