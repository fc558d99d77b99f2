package collector

import (
	"testing"
	"time"

	"github.com/go-kit/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prometheus-community/nvme_exporter/config"
	"github.com/prometheus-community/nvme_exporter/metrics"
	"github.com/prometheus-community/nvme_exporter/nvme"
)

func testConfig() *config.Config {
	return &config.Config{
		Devices:           "/dev/nvme*",
		DiscoveryInterval: 30 * time.Second,
		StaleDeviceGrace:  300 * time.Second,
		CollectNamespace:  true,
		CollectErrorLog:   true,
		CollectSelfTest:   true,
		IoctlTimeout:      5 * time.Second,
	}
}

func newTestCollector() *Collector {
	return New(testConfig(), log.NewNopLogger())
}

func TestMergeDeviceStateKeepsNewlyDiscoveredDevice(t *testing.T) {
	c := newTestCollector()
	now := time.Now()

	discovered := map[string]struct{}{"nvme0": {}}
	collected := map[string]metrics.DeviceSnapshot{
		"nvme0": {Device: "nvme0", Accessible: true},
	}

	snapshots := c.mergeDeviceState(now, discovered, collected)
	require.Len(t, snapshots, 1)
	assert.Equal(t, "nvme0", snapshots[0].Device)
	assert.True(t, snapshots[0].Accessible)
}

func TestMergeDeviceStateRetainsStaleDeviceWithinGrace(t *testing.T) {
	c := newTestCollector()
	now := time.Now()

	// First scrape discovers nvme0.
	c.mergeDeviceState(now, map[string]struct{}{"nvme0": {}}, map[string]metrics.DeviceSnapshot{
		"nvme0": {Device: "nvme0", Accessible: true},
	})

	// Second scrape: nvme0 vanished from discovery, but grace has not elapsed.
	later := now.Add(10 * time.Second)
	snapshots := c.mergeDeviceState(later, map[string]struct{}{}, map[string]metrics.DeviceSnapshot{})

	require.Len(t, snapshots, 1)
	assert.Equal(t, "nvme0", snapshots[0].Device)
	assert.False(t, snapshots[0].Accessible)
}

func TestMergeDeviceStateEvictsStaleDeviceBeyondGrace(t *testing.T) {
	c := newTestCollector()
	c.cfg.StaleDeviceGrace = 5 * time.Second
	now := time.Now()

	c.mergeDeviceState(now, map[string]struct{}{"nvme0": {}}, map[string]metrics.DeviceSnapshot{
		"nvme0": {Device: "nvme0", Accessible: true},
	})

	later := now.Add(time.Minute)
	snapshots := c.mergeDeviceState(later, map[string]struct{}{}, map[string]metrics.DeviceSnapshot{})

	assert.Empty(t, snapshots)
}

func TestMergeDeviceStateSortsByName(t *testing.T) {
	c := newTestCollector()
	now := time.Now()

	discovered := map[string]struct{}{"nvme1": {}, "nvme0": {}}
	collected := map[string]metrics.DeviceSnapshot{
		"nvme1": {Device: "nvme1", Accessible: true},
		"nvme0": {Device: "nvme0", Accessible: true},
	}

	snapshots := c.mergeDeviceState(now, discovered, collected)
	require.Len(t, snapshots, 2)
	assert.Equal(t, "nvme0", snapshots[0].Device)
	assert.Equal(t, "nvme1", snapshots[1].Device)
}

func TestMinimalSnapshotFallsBackToUnknown(t *testing.T) {
	controller := nvme.Controller{Name: "nvme0"}
	snapshot := minimalSnapshot(controller, false)

	assert.Equal(t, "unknown", snapshot.Model)
	assert.Equal(t, "unknown", snapshot.Serial)
	assert.Equal(t, "unknown", snapshot.Firmware)
	assert.False(t, snapshot.Accessible)
}

func TestFirstNonEmpty(t *testing.T) {
	assert.Equal(t, "a", firstNonEmpty("", "a", "b"))
	assert.Equal(t, "", firstNonEmpty("", ""))
}

func TestValidateStartupDevicesFailsWithNoControllers(t *testing.T) {
	c := newTestCollector()
	c.cfg.Devices = "/dev/this-pattern-matches-nothing*"

	err := c.ValidateStartupDevices()
	require.Error(t, err)

	var nvmeErr *nvme.Error
	require.ErrorAs(t, err, &nvmeErr)
	assert.Equal(t, nvme.KindNoReadableDevices, nvmeErr.Kind)
}
