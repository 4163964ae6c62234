// Package conf loads and validates obs-lv2 settings from a YAML file,
// OBSLV2_ environment variables and command line flags, in that order of
// increasing precedence.
package conf

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/danfengzi/obs-lv2/internal/logger"
)

// EnvPrefix is prepended to every environment variable override.
const EnvPrefix = "OBSLV2"

// MaxSamplePathLen is the longest plugin.sample path a sampler load request can carry.
const MaxSamplePathLen = 1024

// WorkerSettings tunes the work offload channel.
type WorkerSettings struct {
	RingSize     int           `yaml:"ringsize"`     // bytes per ring, rounded up to a power of two
	WaitMode     string        `yaml:"waitmode"`     // signal or spin
	PollInterval time.Duration `yaml:"pollinterval"` // idle wake-up fallback
	StopTimeout  time.Duration `yaml:"stoptimeout"`  // how long shutdown waits for the worker
	WarnRate     float64       `yaml:"warnrate"`     // worker warnings per second
}

// HostSettings configures the simulated plugin host.
type HostSettings struct {
	Driver     string        `yaml:"driver"`     // ticker or malgo
	SampleRate int           `yaml:"samplerate"` // frames per second
	BlockSize  int           `yaml:"blocksize"`  // frames per audio cycle
	Channels   int           `yaml:"channels"`   // interleaved output channels
	Duration   time.Duration `yaml:"duration"`   // 0 runs until interrupted
	Record     string        `yaml:"record"`     // optional WAV file for the rendered output
}

// PluginSettings selects the hosted demo plugin.
type PluginSettings struct {
	Name     string        `yaml:"name"`     // reverse or sampler
	Sample   string        `yaml:"sample"`   // WAV or FLAC file for the sampler
	Interval int           `yaml:"interval"` // blocks between reverse requests
	Slots    int           `yaml:"slots"`    // decoded samples the sampler worker may hold
	CacheTTL time.Duration `yaml:"cachettl"` // how long decoded samples stay cached, 0 disables
}

// TelemetrySettings controls the Prometheus endpoint.
type TelemetrySettings struct {
	Enabled bool   `yaml:"enabled"` // serve /metrics
	Listen  string `yaml:"listen"`  // listen address
}

// SentrySettings controls opt-in error reporting.
type SentrySettings struct {
	Enabled bool   `yaml:"enabled"`
	DSN     string `yaml:"dsn"`
	Debug   bool   `yaml:"debug"`
}

// Settings is the complete application configuration.
type Settings struct {
	Debug     bool                 `yaml:"debug"`
	Worker    WorkerSettings       `yaml:"worker"`
	Host      HostSettings         `yaml:"host"`
	Plugin    PluginSettings       `yaml:"plugin"`
	Logging   logger.LoggingConfig `yaml:"logging"`
	Telemetry TelemetrySettings    `yaml:"telemetry"`
	Sentry    SentrySettings       `yaml:"sentry"`
}

var (
	settingsInstance *Settings
	settingsMutex    sync.RWMutex
	configFile       string
)

// SetConfigFile makes Load read exactly this file instead of searching the
// default config paths.
func SetConfigFile(path string) {
	settingsMutex.Lock()
	defer settingsMutex.Unlock()
	configFile = path
}

// Load reads the configuration file and environment variables into a new Settings.
func Load() (*Settings, error) {
	settingsMutex.Lock()
	defer settingsMutex.Unlock()

	settings := &Settings{}

	if err := initViper(); err != nil {
		return nil, fmt.Errorf("error initializing viper: %w", err)
	}

	if err := viper.Unmarshal(settings); err != nil {
		return nil, fmt.Errorf("error unmarshaling config into struct: %w", err)
	}

	if err := ValidateSettings(settings); err != nil {
		return nil, fmt.Errorf("error validating settings: %w", err)
	}

	settingsInstance = settings
	return settingsInstance, nil
}

// initViper sets defaults, environment bindings and reads the config file if any.
func initViper() error {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	setDefaultConfig()

	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	if err := bindEnvVars(); err != nil {
		GetLogger().Warn("ignoring invalid environment overrides", logger.Error(err))
	}

	if configFile != "" {
		viper.SetConfigFile(configFile)
		if err := viper.ReadInConfig(); err != nil {
			return fmt.Errorf("error reading config file %s: %w", configFile, err)
		}
		return nil
	}

	configPaths, err := GetDefaultConfigPaths()
	if err != nil {
		return fmt.Errorf("error getting default config paths: %w", err)
	}
	for _, path := range configPaths {
		viper.AddConfigPath(path)
	}

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			// Defaults and environment are enough to run
			return nil
		}
		return fmt.Errorf("fatal error reading config file: %w", err)
	}

	return nil
}

// GetSettings returns the settings from the last successful Load, or nil.
func GetSettings() *Settings {
	settingsMutex.RLock()
	defer settingsMutex.RUnlock()
	return settingsInstance
}

// ConfigFileUsed returns the path of the file Load read, or "" when running on defaults.
func ConfigFileUsed() string {
	return viper.ConfigFileUsed()
}

// MarshalYAML renders settings the way they would appear in config.yaml.
func MarshalYAML(settings *Settings) ([]byte, error) {
	data, err := yaml.Marshal(settings)
	if err != nil {
		return nil, fmt.Errorf("error marshaling settings to YAML: %w", err)
	}
	return data, nil
}
