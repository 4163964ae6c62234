// conf/defaults.go default values for settings
package conf

import (
	"time"

	"github.com/spf13/viper"
)

// Sets default values for the configuration.
func setDefaultConfig() {
	viper.SetDefault("debug", false)

	viper.SetDefault("worker.ringsize", 4096)
	viper.SetDefault("worker.waitmode", "signal")
	viper.SetDefault("worker.pollinterval", 100*time.Millisecond)
	viper.SetDefault("worker.stoptimeout", 2*time.Second)
	viper.SetDefault("worker.warnrate", 1.0)

	viper.SetDefault("host.driver", "ticker")
	viper.SetDefault("host.samplerate", 48000)
	viper.SetDefault("host.blocksize", 256)
	viper.SetDefault("host.channels", 2)
	viper.SetDefault("host.duration", time.Duration(0))
	viper.SetDefault("host.record", "")

	viper.SetDefault("plugin.name", "reverse")
	viper.SetDefault("plugin.sample", "")
	viper.SetDefault("plugin.interval", 8)
	viper.SetDefault("plugin.slots", 4)
	viper.SetDefault("plugin.cachettl", 5*time.Minute)

	viper.SetDefault("logging.defaultlevel", "info")
	viper.SetDefault("logging.timezone", "Local")
	viper.SetDefault("logging.console.enabled", true)
	viper.SetDefault("logging.console.level", "info")
	viper.SetDefault("logging.fileoutput.enabled", false)
	viper.SetDefault("logging.fileoutput.path", "logs/obs-lv2.log")
	viper.SetDefault("logging.fileoutput.level", "info")

	viper.SetDefault("telemetry.enabled", false)
	viper.SetDefault("telemetry.listen", "127.0.0.1:8090")

	viper.SetDefault("sentry.enabled", false)
	viper.SetDefault("sentry.dsn", "")
	viper.SetDefault("sentry.debug", false)
}
