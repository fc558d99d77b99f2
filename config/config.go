// Package config parses exporter configuration from CLI flags and
// NVME_EXPORTER_-prefixed environment variables via kingpin.
package config

import (
	"time"

	"github.com/alecthomas/kingpin/v2"

	"github.com/prometheus-community/nvme_exporter/nvme"
)

const ioctlTimeout = 5 * time.Second

// Config holds the resolved exporter configuration.
type Config struct {
	ListenAddress     string
	Devices           string
	DiscoveryInterval time.Duration
	StaleDeviceGrace  time.Duration
	CollectNamespace  bool
	CollectErrorLog   bool
	CollectSelfTest   bool
	IoctlTimeout      time.Duration
}

// Register binds Config's flags onto app and returns a pointer that is
// populated once app.Parse has run.
func Register(app *kingpin.Application) *Config {
	cfg := &Config{IoctlTimeout: ioctlTimeout}

	var discoveryIntervalSeconds, staleDeviceGraceSeconds uint

	app.Flag("listen-address", "Address to listen on for telemetry").
		Short('l').
		Envar("NVME_EXPORTER_LISTEN_ADDRESS").
		Default("0.0.0.0:9998").
		StringVar(&cfg.ListenAddress)

	app.Flag("devices", "Glob pattern of device paths to scrape").
		Short('d').
		Envar("NVME_EXPORTER_DEVICES").
		Default("/dev/nvme*").
		StringVar(&cfg.Devices)

	app.Flag("discovery-interval", "Seconds to cache controller discovery before refreshing").
		Envar("NVME_EXPORTER_DISCOVERY_INTERVAL").
		Default("30").
		UintVar(&discoveryIntervalSeconds)

	app.Flag("collect-namespace", "Collect per-namespace size metrics").
		Envar("NVME_EXPORTER_COLLECT_NAMESPACE").
		Default("true").
		BoolVar(&cfg.CollectNamespace)

	app.Flag("collect-error-log", "Collect the error information log summary").
		Envar("NVME_EXPORTER_COLLECT_ERROR_LOG").
		Default("true").
		BoolVar(&cfg.CollectErrorLog)

	app.Flag("collect-self-test", "Collect the device self-test log summary").
		Envar("NVME_EXPORTER_COLLECT_SELF_TEST").
		Default("true").
		BoolVar(&cfg.CollectSelfTest)

	app.Flag("stale-device-grace", "Seconds to keep reporting a device that has vanished from discovery").
		Envar("NVME_EXPORTER_STALE_DEVICE_GRACE").
		Default("300").
		UintVar(&staleDeviceGraceSeconds)

	app.Action(func(*kingpin.ParseContext) error {
		cfg.DiscoveryInterval = time.Duration(discoveryIntervalSeconds) * time.Second
		cfg.StaleDeviceGrace = time.Duration(staleDeviceGraceSeconds) * time.Second
		return validate(cfg)
	})

	return cfg
}

func validate(cfg *Config) error {
	if cfg.DiscoveryInterval <= 0 {
		return nvme.NewParseError("discovery interval must be greater than zero")
	}
	if cfg.StaleDeviceGrace <= 0 {
		return nvme.NewParseError("stale-device-grace must be greater than zero")
	}
	return nil
}
