// Package metrics renders a collected scrape as Prometheus text exposition
// format. Each call to Render builds a fresh registry - the exporter has no
// long-lived Collector, since device state lives in the collector package's
// cache rather than in registered metric vectors.
package metrics

import (
	"bytes"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"

	"github.com/prometheus-community/nvme_exporter/nvme"
)

// NamespaceSnapshot is the collected state of one namespace at scrape time.
type NamespaceSnapshot struct {
	Namespace string
	Nsze      uint64
	Ncap      uint64
	Nuse      uint64
}

// ErrorLogSnapshot is the collected state of a device's error information log.
type ErrorLogSnapshot struct {
	NonZeroEntries uint64
	MaxErrorCount  uint64
}

// SelfTestSnapshot is the collected state of a device's self-test log.
type SelfTestSnapshot struct {
	CurrentOperation       uint8
	CurrentCompletionRatio float64
}

// DeviceSnapshot is everything known about one controller at scrape time. A
// device that failed to respond still appears here with Accessible false: it
// keeps the values of its last successful snapshot when one is cached, and
// otherwise carries only its identity labels with Smart left nil.
type DeviceSnapshot struct {
	Device     string
	Model      string
	Serial     string
	Firmware   string
	Accessible bool
	Smart      *nvme.SmartLog
	Namespaces []NamespaceSnapshot
	ErrorLog   *ErrorLogSnapshot
	SelfTest   *SelfTestSnapshot
}

// ScrapeReport is the full result of one collection pass, ready to render.
type ScrapeReport struct {
	DurationSeconds       float64
	Success               bool
	DiscoveredDeviceCount int
	Devices               []DeviceSnapshot
	CollectNamespace      bool
	CollectErrorLog       bool
	CollectSelfTest       bool
}

// Render encodes report as Prometheus text exposition format using a
// registry scoped to this single call.
func Render(report *ScrapeReport) (string, error) {
	registry := prometheus.NewRegistry()

	m, err := newMetricSet(registry)
	if err != nil {
		return "", fmt.Errorf("building metric set: %w", err)
	}

	for _, device := range report.Devices {
		m.recordDevice(device, report)
	}

	m.scrapeDurationSeconds.Set(report.DurationSeconds)
	m.scrapeSuccess.Set(boolToFloat64(report.Success))
	m.deviceCount.Set(float64(report.DiscoveredDeviceCount))

	families, err := registry.Gather()
	if err != nil {
		return "", fmt.Errorf("gathering metrics: %w", err)
	}

	var buf bytes.Buffer
	encoder := expfmt.NewEncoder(&buf, expfmt.FmtText)
	for _, family := range families {
		if err := encoder.Encode(family); err != nil {
			return "", fmt.Errorf("encoding metrics: %w", err)
		}
	}

	return buf.String(), nil
}

type metricSet struct {
	info *prometheus.GaugeVec

	criticalWarning                  *prometheus.GaugeVec
	criticalWarningAvailableSpare    *prometheus.GaugeVec
	criticalWarningTemperature       *prometheus.GaugeVec
	criticalWarningReliability       *prometheus.GaugeVec
	criticalWarningReadOnly          *prometheus.GaugeVec
	criticalWarningVolatileBackup    *prometheus.GaugeVec

	temperatureCelsius       *prometheus.GaugeVec
	temperatureSensorCelsius *prometheus.GaugeVec

	availableSpareRatio          *prometheus.GaugeVec
	availableSpareThresholdRatio *prometheus.GaugeVec
	percentageUsedRatio          *prometheus.GaugeVec
	healthy                      *prometheus.GaugeVec

	dataUnitsReadTotal                  *prometheus.CounterVec
	dataUnitsWrittenTotal               *prometheus.CounterVec
	hostReadCommandsTotal               *prometheus.CounterVec
	hostWriteCommandsTotal              *prometheus.CounterVec
	controllerBusyTimeSecondsTotal      *prometheus.CounterVec
	powerCyclesTotal                    *prometheus.CounterVec
	powerOnHoursTotal                   *prometheus.CounterVec
	unsafeShutdownsTotal                *prometheus.CounterVec
	mediaErrorsTotal                    *prometheus.CounterVec
	errorLogEntriesTotal                *prometheus.CounterVec
	warningTemperatureTimeMinutesTotal  *prometheus.CounterVec
	criticalTemperatureTimeMinutesTotal *prometheus.CounterVec
	thermalMgmtT1TransitionsTotal       *prometheus.CounterVec
	thermalMgmtT2TransitionsTotal       *prometheus.CounterVec
	thermalMgmtT1TimeSecondsTotal       *prometheus.CounterVec
	thermalMgmtT2TimeSecondsTotal       *prometheus.CounterVec

	namespaceSize        *prometheus.GaugeVec
	namespaceCapacity    *prometheus.GaugeVec
	namespaceUtilization *prometheus.GaugeVec

	deviceAccessible               *prometheus.GaugeVec
	errorLogNonZeroEntries         *prometheus.GaugeVec
	errorLogMaxErrorCount          *prometheus.GaugeVec
	selfTestCurrentOperation       *prometheus.GaugeVec
	selfTestCurrentCompletionRatio *prometheus.GaugeVec

	scrapeDurationSeconds prometheus.Gauge
	scrapeSuccess         prometheus.Gauge
	deviceCount           prometheus.Gauge
}

func newMetricSet(registry *prometheus.Registry) (*metricSet, error) {
	m := &metricSet{
		info: gaugeVec(registry, "nvme_info", "NVMe device information", "device", "model", "serial", "firmware"),

		criticalWarning:               gaugeVec(registry, "nvme_critical_warning", "Raw critical warning bitfield", "device"),
		criticalWarningAvailableSpare: gaugeVec(registry, "nvme_critical_warning_available_spare", "Critical warning bit 0", "device"),
		criticalWarningTemperature:    gaugeVec(registry, "nvme_critical_warning_temperature", "Critical warning bit 1", "device"),
		criticalWarningReliability:    gaugeVec(registry, "nvme_critical_warning_reliability", "Critical warning bit 2", "device"),
		criticalWarningReadOnly:       gaugeVec(registry, "nvme_critical_warning_read_only", "Critical warning bit 3", "device"),
		criticalWarningVolatileBackup: gaugeVec(registry, "nvme_critical_warning_volatile_backup", "Critical warning bit 4", "device"),

		temperatureCelsius:       gaugeVec(registry, "nvme_temperature_celsius", "NVMe composite temperature in Celsius", "device"),
		temperatureSensorCelsius: gaugeVec(registry, "nvme_temperature_sensor_celsius", "NVMe temperature sensor readings in Celsius", "device", "sensor"),

		availableSpareRatio:          gaugeVec(registry, "nvme_available_spare_ratio", "Available spare ratio", "device"),
		availableSpareThresholdRatio: gaugeVec(registry, "nvme_available_spare_threshold_ratio", "Available spare threshold ratio", "device"),
		percentageUsedRatio:          gaugeVec(registry, "nvme_percentage_used_ratio", "Percentage used ratio, can be greater than 1.0", "device"),
		healthy:                      gaugeVec(registry, "nvme_healthy", "Derived health indicator", "device"),

		dataUnitsReadTotal:                  counterVec(registry, "nvme_data_units_read_total", "Data units read", "device"),
		dataUnitsWrittenTotal:               counterVec(registry, "nvme_data_units_written_total", "Data units written", "device"),
		hostReadCommandsTotal:               counterVec(registry, "nvme_host_read_commands_total", "Host read commands", "device"),
		hostWriteCommandsTotal:              counterVec(registry, "nvme_host_write_commands_total", "Host write commands", "device"),
		controllerBusyTimeSecondsTotal:      counterVec(registry, "nvme_controller_busy_time_seconds_total", "Controller busy time in seconds", "device"),
		powerCyclesTotal:                    counterVec(registry, "nvme_power_cycles_total", "Power cycle count", "device"),
		powerOnHoursTotal:                   counterVec(registry, "nvme_power_on_hours_total", "Power on hours", "device"),
		unsafeShutdownsTotal:                counterVec(registry, "nvme_unsafe_shutdowns_total", "Unsafe shutdown count", "device"),
		mediaErrorsTotal:                    counterVec(registry, "nvme_media_errors_total", "Media error count", "device"),
		errorLogEntriesTotal:                counterVec(registry, "nvme_error_log_entries_total", "Error log entries", "device"),
		warningTemperatureTimeMinutesTotal:  counterVec(registry, "nvme_warning_temperature_time_minutes_total", "Warning temperature time in minutes", "device"),
		criticalTemperatureTimeMinutesTotal: counterVec(registry, "nvme_critical_temperature_time_minutes_total", "Critical temperature time in minutes", "device"),
		thermalMgmtT1TransitionsTotal:       counterVec(registry, "nvme_thermal_mgmt_t1_transitions_total", "Thermal management T1 transitions", "device"),
		thermalMgmtT2TransitionsTotal:       counterVec(registry, "nvme_thermal_mgmt_t2_transitions_total", "Thermal management T2 transitions", "device"),
		thermalMgmtT1TimeSecondsTotal:       counterVec(registry, "nvme_thermal_mgmt_t1_time_seconds_total", "Thermal management T1 total time in seconds", "device"),
		thermalMgmtT2TimeSecondsTotal:       counterVec(registry, "nvme_thermal_mgmt_t2_time_seconds_total", "Thermal management T2 total time in seconds", "device"),

		namespaceSize:        gaugeVec(registry, "nvme_namespace_size_sectors", "Namespace size in LBAs", "device", "namespace"),
		namespaceCapacity:    gaugeVec(registry, "nvme_namespace_capacity_sectors", "Namespace capacity in LBAs", "device", "namespace"),
		namespaceUtilization: gaugeVec(registry, "nvme_namespace_utilization_sectors", "Namespace utilization in LBAs", "device", "namespace"),

		deviceAccessible:               gaugeVec(registry, "nvme_device_accessible", "Whether the device is currently readable", "device"),
		errorLogNonZeroEntries:         gaugeVec(registry, "nvme_error_log_non_zero_entries", "Number of non-zero entries in log page 0x01", "device"),
		errorLogMaxErrorCount:          gaugeVec(registry, "nvme_error_log_max_error_count", "Largest error count found in log page 0x01", "device"),
		selfTestCurrentOperation:       gaugeVec(registry, "nvme_self_test_current_operation", "Current self-test operation from log page 0x06", "device"),
		selfTestCurrentCompletionRatio: gaugeVec(registry, "nvme_self_test_current_completion_ratio", "Current self-test completion ratio from log page 0x06", "device"),

		scrapeDurationSeconds: gauge(registry, "nvme_exporter_scrape_duration_seconds", "Time to collect all metrics"),
		scrapeSuccess:         gauge(registry, "nvme_exporter_scrape_success", "1 if scrape succeeded, 0 if errors occurred"),
		deviceCount:           gauge(registry, "nvme_exporter_device_count", "Number of NVMe controllers discovered"),
	}

	return m, nil
}

func (m *metricSet) recordDevice(device DeviceSnapshot, report *ScrapeReport) {
	m.info.WithLabelValues(device.Device, device.Model, device.Serial, device.Firmware).Set(1.0)
	m.deviceAccessible.WithLabelValues(device.Device).Set(boolToFloat64(device.Accessible))

	if smart := device.Smart; smart != nil {
		m.criticalWarning.WithLabelValues(device.Device).Set(float64(smart.CriticalWarning))
		m.criticalWarningAvailableSpare.WithLabelValues(device.Device).Set(boolToFloat64(smart.CriticalWarningAvailableSpare()))
		m.criticalWarningTemperature.WithLabelValues(device.Device).Set(boolToFloat64(smart.CriticalWarningTemperature()))
		m.criticalWarningReliability.WithLabelValues(device.Device).Set(boolToFloat64(smart.CriticalWarningReliability()))
		m.criticalWarningReadOnly.WithLabelValues(device.Device).Set(boolToFloat64(smart.CriticalWarningReadOnly()))
		m.criticalWarningVolatileBackup.WithLabelValues(device.Device).Set(boolToFloat64(smart.CriticalWarningVolatileBackup()))

		if celsius, ok := smart.TemperatureCelsius(); ok {
			m.temperatureCelsius.WithLabelValues(device.Device).Set(celsius)
		}
		for sensor := 0; sensor < 8; sensor++ {
			if celsius, ok := smart.SensorCelsius(sensor); ok {
				m.temperatureSensorCelsius.WithLabelValues(device.Device, fmt.Sprintf("%d", sensor+1)).Set(celsius)
			}
		}

		m.availableSpareRatio.WithLabelValues(device.Device).Set(smart.AvailableSpareRatio())
		m.availableSpareThresholdRatio.WithLabelValues(device.Device).Set(smart.AvailableSpareThresholdRatio())
		m.percentageUsedRatio.WithLabelValues(device.Device).Set(smart.PercentUsedRatio())
		m.healthy.WithLabelValues(device.Device).Set(boolToFloat64(smart.Healthy()))

		m.dataUnitsReadTotal.WithLabelValues(device.Device).Add(smart.DataUnitsRead.Float64())
		m.dataUnitsWrittenTotal.WithLabelValues(device.Device).Add(smart.DataUnitsWritten.Float64())
		m.hostReadCommandsTotal.WithLabelValues(device.Device).Add(smart.HostReadCommands.Float64())
		m.hostWriteCommandsTotal.WithLabelValues(device.Device).Add(smart.HostWriteCommands.Float64())
		m.controllerBusyTimeSecondsTotal.WithLabelValues(device.Device).Add(smart.ControllerBusyMinutes.Float64() * 60.0)
		m.powerCyclesTotal.WithLabelValues(device.Device).Add(smart.PowerCycles.Float64())
		m.powerOnHoursTotal.WithLabelValues(device.Device).Add(smart.PowerOnHours.Float64())
		m.unsafeShutdownsTotal.WithLabelValues(device.Device).Add(smart.UnsafeShutdowns.Float64())
		m.mediaErrorsTotal.WithLabelValues(device.Device).Add(smart.MediaErrors.Float64())
		m.errorLogEntriesTotal.WithLabelValues(device.Device).Add(smart.NumErrLogEntries.Float64())
		m.warningTemperatureTimeMinutesTotal.WithLabelValues(device.Device).Add(float64(smart.WarningTempTimeMinutes))
		m.criticalTemperatureTimeMinutesTotal.WithLabelValues(device.Device).Add(float64(smart.CriticalTempTimeMinutes))
		m.thermalMgmtT1TransitionsTotal.WithLabelValues(device.Device).Add(float64(smart.ThmTemp1TransCount))
		m.thermalMgmtT2TransitionsTotal.WithLabelValues(device.Device).Add(float64(smart.ThmTemp2TransCount))
		m.thermalMgmtT1TimeSecondsTotal.WithLabelValues(device.Device).Add(float64(smart.ThmTemp1TotalTimeSec))
		m.thermalMgmtT2TimeSecondsTotal.WithLabelValues(device.Device).Add(float64(smart.ThmTemp2TotalTimeSec))
	}

	if report.CollectNamespace {
		for _, namespace := range device.Namespaces {
			m.namespaceSize.WithLabelValues(device.Device, namespace.Namespace).Set(float64(namespace.Nsze))
			m.namespaceCapacity.WithLabelValues(device.Device, namespace.Namespace).Set(float64(namespace.Ncap))
			m.namespaceUtilization.WithLabelValues(device.Device, namespace.Namespace).Set(float64(namespace.Nuse))
		}
	}

	if report.CollectErrorLog && device.ErrorLog != nil {
		m.errorLogNonZeroEntries.WithLabelValues(device.Device).Set(float64(device.ErrorLog.NonZeroEntries))
		m.errorLogMaxErrorCount.WithLabelValues(device.Device).Set(float64(device.ErrorLog.MaxErrorCount))
	}

	if report.CollectSelfTest && device.SelfTest != nil {
		m.selfTestCurrentOperation.WithLabelValues(device.Device).Set(float64(device.SelfTest.CurrentOperation))
		m.selfTestCurrentCompletionRatio.WithLabelValues(device.Device).Set(device.SelfTest.CurrentCompletionRatio)
	}
}

func gauge(registry *prometheus.Registry, name, help string) prometheus.Gauge {
	g := prometheus.NewGauge(prometheus.GaugeOpts{Name: name, Help: help})
	registry.MustRegister(g)
	return g
}

func gaugeVec(registry *prometheus.Registry, name, help string, labels ...string) *prometheus.GaugeVec {
	g := prometheus.NewGaugeVec(prometheus.GaugeOpts{Name: name, Help: help}, labels)
	registry.MustRegister(g)
	return g
}

func counterVec(registry *prometheus.Registry, name, help string, labels ...string) *prometheus.CounterVec {
	c := prometheus.NewCounterVec(prometheus.CounterOpts{Name: name, Help: help}, labels)
	registry.MustRegister(c)
	return c
}

func boolToFloat64(value bool) float64 {
	if value {
		return 1.0
	}
	return 0.0
}
