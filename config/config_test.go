package config

import (
	"testing"
	"time"

	kingpin "github.com/alecthomas/kingpin/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parseArgs(t *testing.T, args ...string) (*Config, error) {
	t.Helper()
	app := kingpin.New("nvme_exporter", "")
	cfg := Register(app)
	_, err := app.Parse(args)
	return cfg, err
}

func TestDefaultsEnableOptionalCollectors(t *testing.T) {
	cfg, err := parseArgs(t)
	require.NoError(t, err)

	assert.True(t, cfg.CollectNamespace)
	assert.True(t, cfg.CollectErrorLog)
	assert.True(t, cfg.CollectSelfTest)
	assert.Equal(t, "0.0.0.0:9998", cfg.ListenAddress)
	assert.Equal(t, "/dev/nvme*", cfg.Devices)
	assert.Equal(t, 30*time.Second, cfg.DiscoveryInterval)
	assert.Equal(t, 300*time.Second, cfg.StaleDeviceGrace)
}

func TestBoolFlagsCanBeDisabled(t *testing.T) {
	cfg, err := parseArgs(t,
		"--collect-namespace=false",
		"--collect-error-log=false",
		"--collect-self-test=false",
	)
	require.NoError(t, err)

	assert.False(t, cfg.CollectNamespace)
	assert.False(t, cfg.CollectErrorLog)
	assert.False(t, cfg.CollectSelfTest)
}

func TestRejectsZeroDiscoveryInterval(t *testing.T) {
	_, err := parseArgs(t, "--discovery-interval=0")
	assert.Error(t, err)
}

func TestRejectsZeroStaleDeviceGrace(t *testing.T) {
	_, err := parseArgs(t, "--stale-device-grace=0")
	assert.Error(t, err)
}
