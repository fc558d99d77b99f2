// Package collector discovers NVMe controllers, collects their metrics, and
// caches device state across scrapes so that a controller which briefly
// disappears or fails to respond still reports its last-known values.
package collector

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"github.com/prometheus-community/nvme_exporter/config"
	"github.com/prometheus-community/nvme_exporter/metrics"
	"github.com/prometheus-community/nvme_exporter/nvme"
)

// Collector owns the discovery cache and per-device state across scrapes.
// A single Collector is shared by every HTTP request; its mutable state
// (discoveryCache and devices) is guarded by mu.
type Collector struct {
	cfg    *config.Config
	logger log.Logger

	mu             sync.Mutex
	discoveryCache *cachedDiscovery
	devices        map[string]cachedDevice
}

type cachedDiscovery struct {
	controllers []nvme.Controller
	expiresAt   time.Time
}

type cachedDevice struct {
	snapshot metrics.DeviceSnapshot
	lastSeen time.Time
}

// New builds a Collector with empty discovery and device caches.
func New(cfg *config.Config, logger log.Logger) *Collector {
	return &Collector{
		cfg:     cfg,
		logger:  logger,
		devices: make(map[string]cachedDevice),
	}
}

// ValidateStartupDevices discovers controllers and confirms at least one
// responds to a SMART read. It is meant to run once at process start, so a
// misconfigured exporter fails fast instead of serving an empty /metrics.
func (c *Collector) ValidateStartupDevices() error {
	now := time.Now()
	controllers, err := c.loadControllers(now)
	if err != nil {
		return err
	}
	if len(controllers) == 0 {
		return nvme.ErrNoReadableDevices
	}

	timeoutMs := uint32(c.cfg.IoctlTimeout.Milliseconds())
	readable := 0
	for _, controller := range controllers {
		device, err := nvme.Open(controller.DevPath)
		if err != nil {
			continue
		}
		_, err = device.SmartLog(timeoutMs)
		device.Close()
		if err == nil {
			readable++
		}
	}

	if readable == 0 {
		return nvme.ErrNoReadableDevices
	}
	return nil
}

// Scrape runs one full collection pass across every discovered controller
// and renders the result as Prometheus text exposition format.
func (c *Collector) Scrape() (string, error) {
	startedAt := time.Now()
	now := startedAt

	controllers, err := c.loadControllers(now)
	if err != nil {
		return "", err
	}

	previousDevices := c.loadPreviousDevices()

	discoveredNames := make(map[string]struct{}, len(controllers))
	for _, controller := range controllers {
		discoveredNames[controller.Name] = struct{}{}
	}

	collected := make(map[string]metrics.DeviceSnapshot, len(controllers))
	scrapeSuccess := true

	for _, controller := range controllers {
		snapshot, err := c.collectController(controller)
		if err != nil {
			scrapeSuccess = false
			level.Warn(c.logger).Log(
				"msg", "failed to collect device metrics",
				"controller", controller.Name,
				"device", controller.DevPath,
				"err", err,
			)

			if cached, ok := previousDevices[controller.Name]; ok {
				fallback := cached.snapshot
				fallback.Accessible = false
				collected[controller.Name] = fallback
			} else {
				collected[controller.Name] = minimalSnapshot(controller, false)
			}
			continue
		}
		collected[controller.Name] = snapshot
	}

	snapshots := c.mergeDeviceState(now, discoveredNames, collected)

	report := &metrics.ScrapeReport{
		DurationSeconds:       time.Since(startedAt).Seconds(),
		Success:               scrapeSuccess,
		DiscoveredDeviceCount: len(controllers),
		Devices:               snapshots,
		CollectNamespace:      c.cfg.CollectNamespace,
		CollectErrorLog:       c.cfg.CollectErrorLog,
		CollectSelfTest:       c.cfg.CollectSelfTest,
	}

	return metrics.Render(report)
}

func (c *Collector) collectController(controller nvme.Controller) (metrics.DeviceSnapshot, error) {
	device, err := nvme.Open(controller.DevPath)
	if err != nil {
		return metrics.DeviceSnapshot{}, err
	}
	defer device.Close()

	timeoutMs := uint32(c.cfg.IoctlTimeout.Milliseconds())

	identify, err := device.IdentifyController(timeoutMs)
	if err != nil {
		level.Warn(c.logger).Log(
			"msg", "identify controller failed, continuing with discovery labels",
			"controller", controller.Name,
			"err", err,
		)
		identify = nil
	}

	smart, err := device.SmartLog(timeoutMs)
	if err != nil {
		return metrics.DeviceSnapshot{}, err
	}

	model := firstNonEmpty(identifyModel(identify), controller.Model, "unknown")
	serial := firstNonEmpty(identifySerial(identify), controller.Serial, "unknown")
	firmware := firstNonEmpty(identifyFirmware(identify), controller.Firmware, "unknown")

	var namespaces []metrics.NamespaceSnapshot
	if c.cfg.CollectNamespace {
		for _, namespace := range controller.Namespaces {
			ns, err := device.IdentifyNamespace(namespace.NSID, timeoutMs)
			if err != nil {
				level.Warn(c.logger).Log(
					"msg", "identify namespace failed",
					"controller", controller.Name,
					"namespace", namespace.Name,
					"err", err,
				)
				continue
			}
			namespaces = append(namespaces, metrics.NamespaceSnapshot{
				Namespace: namespace.Name,
				Nsze:      ns.Nsze,
				Ncap:      ns.Ncap,
				Nuse:      ns.Nuse,
			})
		}
	}

	var errorLog *metrics.ErrorLogSnapshot
	if c.cfg.CollectErrorLog {
		summary, err := device.ErrorLog(timeoutMs)
		if err != nil {
			level.Warn(c.logger).Log("msg", "error log collection failed", "controller", controller.Name, "err", err)
		} else {
			errorLog = &metrics.ErrorLogSnapshot{
				NonZeroEntries: summary.NonZeroEntries,
				MaxErrorCount:  summary.MaxErrorCount,
			}
		}
	}

	var selfTest *metrics.SelfTestSnapshot
	if c.cfg.CollectSelfTest {
		summary, err := device.SelfTestLog(timeoutMs)
		if err != nil {
			level.Warn(c.logger).Log("msg", "self-test log collection failed", "controller", controller.Name, "err", err)
		} else {
			selfTest = &metrics.SelfTestSnapshot{
				CurrentOperation:       summary.CurrentOperation,
				CurrentCompletionRatio: summary.CurrentCompletionRatio,
			}
		}
	}

	return metrics.DeviceSnapshot{
		Device:     controller.Name,
		Model:      model,
		Serial:     serial,
		Firmware:   firmware,
		Accessible: true,
		Smart:      smart,
		Namespaces: namespaces,
		ErrorLog:   errorLog,
		SelfTest:   selfTest,
	}, nil
}

func identifyModel(identify *nvme.IdentifyController) string {
	if identify == nil {
		return ""
	}
	return identify.Model
}

func identifySerial(identify *nvme.IdentifyController) string {
	if identify == nil {
		return ""
	}
	return identify.Serial
}

func identifyFirmware(identify *nvme.IdentifyController) string {
	if identify == nil {
		return ""
	}
	return identify.FirmwareRevision
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if value != "" {
			return value
		}
	}
	return ""
}

func minimalSnapshot(controller nvme.Controller, accessible bool) metrics.DeviceSnapshot {
	return metrics.DeviceSnapshot{
		Device:     controller.Name,
		Model:      firstNonEmpty(controller.Model, "unknown"),
		Serial:     firstNonEmpty(controller.Serial, "unknown"),
		Firmware:   firstNonEmpty(controller.Firmware, "unknown"),
		Accessible: accessible,
	}
}

func (c *Collector) loadPreviousDevices() map[string]cachedDevice {
	c.mu.Lock()
	defer c.mu.Unlock()

	previous := make(map[string]cachedDevice, len(c.devices))
	for name, device := range c.devices {
		previous[name] = device
	}
	return previous
}

func (c *Collector) mergeDeviceState(now time.Time, discoveredNames map[string]struct{}, collected map[string]metrics.DeviceSnapshot) []metrics.DeviceSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	for name, snapshot := range collected {
		c.devices[name] = cachedDevice{snapshot: snapshot, lastSeen: now}
	}

	for name, cached := range c.devices {
		if _, ok := discoveredNames[name]; !ok {
			cached.snapshot.Accessible = false
			c.devices[name] = cached
		}
	}

	grace := c.cfg.StaleDeviceGrace
	for name, cached := range c.devices {
		if _, ok := discoveredNames[name]; ok {
			continue
		}
		if now.Sub(cached.lastSeen) > grace {
			delete(c.devices, name)
		}
	}

	snapshots := make([]metrics.DeviceSnapshot, 0, len(c.devices))
	for _, cached := range c.devices {
		snapshots = append(snapshots, cached.snapshot)
	}
	sort.Slice(snapshots, func(i, j int) bool { return snapshots[i].Device < snapshots[j].Device })
	return snapshots
}

func (c *Collector) loadControllers(now time.Time) ([]nvme.Controller, error) {
	c.mu.Lock()
	if c.discoveryCache != nil && now.Before(c.discoveryCache.expiresAt) {
		controllers := c.discoveryCache.controllers
		c.mu.Unlock()
		return controllers, nil
	}
	c.mu.Unlock()

	controllers, err := nvme.DiscoverControllers(c.cfg.Devices)
	if err != nil {
		return nil, fmt.Errorf("discovering controllers: %w", err)
	}

	c.mu.Lock()
	c.discoveryCache = &cachedDiscovery{
		controllers: controllers,
		expiresAt:   now.Add(c.cfg.DiscoveryInterval),
	}
	c.mu.Unlock()

	return controllers, nil
}
