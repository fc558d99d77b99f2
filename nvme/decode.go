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

package nvme

import "strings"

// ParseSmartLog decodes a 512-byte SMART/Health log page (log ID 0x02). It
// is pure and total: any length other than SmartLogBytes is reported as an
// UnexpectedSize error rather than panicking.
func ParseSmartLog(buf []byte) (*SmartLog, error) {
	if len(buf) != SmartLogBytes {
		return nil, errUnexpectedSize(SmartLogBytes, len(buf))
	}

	s := &SmartLog{
		CriticalWarning:         buf[0],
		TemperatureKelvin:       leUint16(buf[1:3]),
		AvailSpare:              buf[3],
		SpareThresh:             buf[4],
		PercentUsed:             buf[5],
		DataUnitsRead:           leUint128(buf, 32),
		DataUnitsWritten:        leUint128(buf, 48),
		HostReadCommands:        leUint128(buf, 64),
		HostWriteCommands:       leUint128(buf, 80),
		ControllerBusyMinutes:   leUint128(buf, 96),
		PowerCycles:             leUint128(buf, 112),
		PowerOnHours:            leUint128(buf, 128),
		UnsafeShutdowns:         leUint128(buf, 144),
		MediaErrors:             leUint128(buf, 160),
		NumErrLogEntries:        leUint128(buf, 176),
		WarningTempTimeMinutes:  leUint32(buf[192:196]),
		CriticalTempTimeMinutes: leUint32(buf[196:200]),
		ThmTemp1TransCount:      leUint32(buf[216:220]),
		ThmTemp2TransCount:      leUint32(buf[220:224]),
		ThmTemp1TotalTimeSec:    leUint32(buf[224:228]),
		ThmTemp2TotalTimeSec:    leUint32(buf[228:232]),
	}

	for i := 0; i < maxTempSensors; i++ {
		off := 200 + i*2
		s.TempSensorKelvin[i] = leUint16(buf[off : off+2])
	}

	return s, nil
}

// ParseIdentifyController decodes a 4096-byte Identify Controller data
// structure (CNS=0x01), extracting the serial/model/firmware ASCII fields.
func ParseIdentifyController(buf []byte) (*IdentifyController, error) {
	if len(buf) != IdentifyBytes {
		return nil, errUnexpectedSize(IdentifyBytes, len(buf))
	}

	return &IdentifyController{
		Serial:           trimNvmeASCII(buf[4:24]),
		Model:            trimNvmeASCII(buf[24:64]),
		FirmwareRevision: trimNvmeASCII(buf[64:72]),
	}, nil
}

// ParseIdentifyNamespace decodes a 4096-byte Identify Namespace data
// structure (CNS=0x00), extracting NSZE/NCAP/NUSE.
func ParseIdentifyNamespace(buf []byte) (*IdentifyNamespace, error) {
	if len(buf) != IdentifyBytes {
		return nil, errUnexpectedSize(IdentifyBytes, len(buf))
	}

	return &IdentifyNamespace{
		Nsze: leUint64(buf[0:8]),
		Ncap: leUint64(buf[8:16]),
		Nuse: leUint64(buf[16:24]),
	}, nil
}

// ParseErrorLog decodes the Error Information log page (log ID 0x01). The
// buffer length must be a positive multiple of ErrorLogEntryBytes; each
// 64-byte entry's leading 8 bytes are its little-endian error count.
func ParseErrorLog(buf []byte) (*ErrorLogSummary, error) {
	if len(buf) == 0 || len(buf)%ErrorLogEntryBytes != 0 {
		return nil, errInvalidData("error log buffer size %d is not divisible by %d", len(buf), ErrorLogEntryBytes)
	}

	summary := &ErrorLogSummary{}
	for offset := 0; offset < len(buf); offset += ErrorLogEntryBytes {
		count := leUint64(buf[offset : offset+8])
		if count > 0 {
			summary.NonZeroEntries++
		}
		if count > summary.MaxErrorCount {
			summary.MaxErrorCount = count
		}
	}

	return summary, nil
}

// ParseSelfTestLog decodes the Device Self-Test log page (log ID 0x06).
func ParseSelfTestLog(buf []byte) (*SelfTestLogSummary, error) {
	if len(buf) != SelfTestLogBytes {
		return nil, errUnexpectedSize(SelfTestLogBytes, len(buf))
	}

	return &SelfTestLogSummary{
		CurrentOperation:       buf[0],
		CurrentCompletionRatio: float64(buf[1]) / 100.0,
	}, nil
}

// trimNvmeASCII interprets buf as UTF-8-lossy text (invalid byte sequences
// become U+FFFD), strips trailing NULs, then trims surrounding whitespace -
// the convention NVMe uses for its space-and-NUL-padded ASCII identification
// fields.
func trimNvmeASCII(buf []byte) string {
	value := strings.ToValidUTF8(string(buf), "�")
	value = strings.TrimRight(value, "\x00")
	return strings.TrimSpace(value)
}

func leUint16(buf []byte) uint16 {
	return uint16(buf[0]) | uint16(buf[1])<<8
}

func leUint32(buf []byte) uint32 {
	return uint32(buf[0]) | uint32(buf[1])<<8 | uint32(buf[2])<<16 | uint32(buf[3])<<24
}

func leUint64(buf []byte) uint64 {
	var v uint64
	for i := 7; i >= 0; i-- {
		v = v<<8 | uint64(buf[i])
	}
	return v
}

func leUint128(buf []byte, offset int) Uint128 {
	var raw [16]byte
	copy(raw[:], buf[offset:offset+16])
	return uint128FromLE(raw)
}
