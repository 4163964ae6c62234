package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/danfengzi/obs-lv2/cmd/bench"
	"github.com/danfengzi/obs-lv2/cmd/config"
	"github.com/danfengzi/obs-lv2/cmd/run"
	"github.com/danfengzi/obs-lv2/internal/buildinfo"
	"github.com/danfengzi/obs-lv2/internal/conf"
	"github.com/danfengzi/obs-lv2/internal/logger"
	"github.com/danfengzi/obs-lv2/internal/telemetry"
)

// RootCommand creates and returns the root command. settings is filled in
// before any subcommand runs.
func RootCommand(settings *conf.Settings, info buildinfo.BuildInfo) *cobra.Command {
	var configPath string

	rootCmd := &cobra.Command{
		Use:           "obs-lv2",
		Short:         "Host for LV2-style plugins with real-time safe work offload",
		Version:       info.GetVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config.yaml (default: search standard locations)")
	if err := setupFlags(rootCmd); err != nil {
		fmt.Printf("error setting up flags: %v\n", err)
		os.Exit(1)
	}

	rootCmd.AddCommand(
		run.Command(settings),
		bench.Command(settings),
		config.Command(settings),
	)

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		return initialize(settings, configPath, info)
	}
	rootCmd.PersistentPostRun = func(cmd *cobra.Command, args []string) {
		_ = logger.Global().Flush()
	}

	return rootCmd
}

// initialize loads settings and sets up logging and telemetry before any
// subcommand runs.
func initialize(settings *conf.Settings, configPath string, info buildinfo.BuildInfo) error {
	if configPath != "" {
		conf.SetConfigFile(configPath)
	}

	loaded, err := conf.Load()
	if err != nil {
		return err
	}
	*settings = *loaded

	if settings.Debug {
		settings.Logging.DefaultLevel = "debug"
		if settings.Logging.Console != nil {
			settings.Logging.Console.Level = "debug"
		}
	}

	cl, err := logger.NewCentralLogger(&settings.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	logger.SetGlobal(cl)

	log := logger.Global().Module("main")
	if path := conf.ConfigFileUsed(); path != "" {
		log.Info("loaded configuration", logger.String("path", path))
	} else {
		log.Info("no config file found, using defaults and environment")
	}

	return telemetry.InitSentry(settings, info)
}

// setupFlags defines flags that are global to the command line interface.
func setupFlags(rootCmd *cobra.Command) error {
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug output")

	if err := viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug")); err != nil {
		return fmt.Errorf("error binding flags: %w", err)
	}
	return nil
}
