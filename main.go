package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/danfengzi/obs-lv2/cmd"
	"github.com/danfengzi/obs-lv2/internal/buildinfo"
	"github.com/danfengzi/obs-lv2/internal/conf"
	"github.com/danfengzi/obs-lv2/internal/telemetry"
)

// version and buildDate are set at build time with
// -ldflags "-X main.version=... -X main.buildDate=...".
var (
	version   = "dev"
	buildDate = "unknown"
)

const sentryShutdownTimeout = 2 * time.Second

func main() {
	os.Exit(run())
}

func run() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	settings := &conf.Settings{}
	info := buildinfo.New(version, buildDate)
	rootCmd := cmd.RootCommand(settings, info)

	err := rootCmd.ExecuteContext(ctx)
	telemetry.Shutdown(sentryShutdownTimeout)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}
