// Copyright 2017-2022 Daniel Swarbrick. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package nvme implements NVMe Admin passthrough and the binary log page
// decoders used by the exporter: Identify Controller, Identify Namespace,
// SMART/Health (log 0x02), Error Information (log 0x01), and Device
// Self-Test (log 0x06), plus controller/namespace discovery.
package nvme

const (
	SmartLogBytes      = 512
	IdentifyBytes      = 4096
	SelfTestLogBytes   = 564
	ErrorLogEntryBytes = 64
	ErrorLogEntries    = 16
	ErrorLogBytes      = ErrorLogEntryBytes * ErrorLogEntries

	maxTempSensors = 8
)

// SmartLog is the decoded SMART/Health log page (log ID 0x02).
type SmartLog struct {
	CriticalWarning        uint8
	TemperatureKelvin      uint16
	AvailSpare             uint8
	SpareThresh            uint8
	PercentUsed            uint8
	DataUnitsRead          Uint128
	DataUnitsWritten       Uint128
	HostReadCommands       Uint128
	HostWriteCommands      Uint128
	ControllerBusyMinutes  Uint128
	PowerCycles            Uint128
	PowerOnHours           Uint128
	UnsafeShutdowns        Uint128
	MediaErrors            Uint128
	NumErrLogEntries       Uint128
	WarningTempTimeMinutes uint32
	CriticalTempTimeMinutes uint32
	TempSensorKelvin       [maxTempSensors]uint16
	ThmTemp1TransCount     uint32
	ThmTemp2TransCount     uint32
	ThmTemp1TotalTimeSec   uint32
	ThmTemp2TotalTimeSec   uint32
}

// TemperatureCelsius converts the composite temperature to Celsius. A
// Kelvin reading of zero means the field is unpopulated; the second return
// value reports whether the conversion is meaningful.
func (s *SmartLog) TemperatureCelsius() (float64, bool) {
	return kelvinToCelsius(s.TemperatureKelvin)
}

// SensorCelsius converts the reading from sensor index (0-based, 0..7) to
// Celsius, reporting false when the sensor reads zero (unpopulated).
func (s *SmartLog) SensorCelsius(index int) (float64, bool) {
	if index < 0 || index >= len(s.TempSensorKelvin) {
		return 0, false
	}
	return kelvinToCelsius(s.TempSensorKelvin[index])
}

func kelvinToCelsius(kelvin uint16) (float64, bool) {
	if kelvin == 0 {
		return 0, false
	}
	return float64(kelvin) - 273.15, true
}

// AvailableSpareRatio returns the available-spare percentage as a 0..1 ratio.
func (s *SmartLog) AvailableSpareRatio() float64 { return float64(s.AvailSpare) / 100.0 }

// AvailableSpareThresholdRatio returns the spare threshold as a 0..1 ratio.
func (s *SmartLog) AvailableSpareThresholdRatio() float64 { return float64(s.SpareThresh) / 100.0 }

// PercentUsedRatio returns percentage-used as a ratio; it is intentionally
// unclamped and may exceed 1.0.
func (s *SmartLog) PercentUsedRatio() float64 { return float64(s.PercentUsed) / 100.0 }

// CriticalWarningAvailableSpare reports critical-warning bit 0.
func (s *SmartLog) CriticalWarningAvailableSpare() bool { return s.CriticalWarning&(1<<0) != 0 }

// CriticalWarningTemperature reports critical-warning bit 1.
func (s *SmartLog) CriticalWarningTemperature() bool { return s.CriticalWarning&(1<<1) != 0 }

// CriticalWarningReliability reports critical-warning bit 2.
func (s *SmartLog) CriticalWarningReliability() bool { return s.CriticalWarning&(1<<2) != 0 }

// CriticalWarningReadOnly reports critical-warning bit 3.
func (s *SmartLog) CriticalWarningReadOnly() bool { return s.CriticalWarning&(1<<3) != 0 }

// CriticalWarningVolatileBackup reports critical-warning bit 4.
func (s *SmartLog) CriticalWarningVolatileBackup() bool { return s.CriticalWarning&(1<<4) != 0 }

// Healthy reports the derived health indicator: no critical warnings, spare
// capacity at or above threshold, and no media errors.
func (s *SmartLog) Healthy() bool {
	return s.CriticalWarning == 0 &&
		uint16(s.AvailSpare) >= uint16(s.SpareThresh) &&
		s.MediaErrors.Lo == 0 && s.MediaErrors.Hi == 0
}

// IdentifyController holds the fields of the Identify Controller data
// structure (CNS=0x01) that this exporter cares about.
type IdentifyController struct {
	Serial           string
	Model            string
	FirmwareRevision string
}

// IdentifyNamespace holds the fields of the Identify Namespace data
// structure (CNS=0x00) that this exporter cares about.
type IdentifyNamespace struct {
	Nsze uint64
	Ncap uint64
	Nuse uint64
}

// ErrorLogSummary summarizes the Error Information log page (log ID 0x01)
// over its fixed 16-entry window.
type ErrorLogSummary struct {
	NonZeroEntries uint64
	MaxErrorCount  uint64
}

// SelfTestLogSummary summarizes the Device Self-Test log page (log ID 0x06).
type SelfTestLogSummary struct {
	CurrentOperation        uint8
	CurrentCompletionRatio  float64
}
