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

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSmartLogRejectsWrongSize(t *testing.T) {
	_, err := ParseSmartLog(make([]byte, 511))
	require.Error(t, err)

	var nvmeErr *Error
	require.ErrorAs(t, err, &nvmeErr)
	assert.Equal(t, KindUnexpectedSize, nvmeErr.Kind)
	assert.Equal(t, SmartLogBytes, nvmeErr.Expected)
	assert.Equal(t, 511, nvmeErr.Actual)
}

func TestParseSmartLogRoundTripsCounters(t *testing.T) {
	buf := make([]byte, SmartLogBytes)
	buf[0] = 0
	binary.LittleEndian.PutUint16(buf[1:3], 310)
	buf[3] = 80
	buf[4] = 10
	buf[5] = 5
	binary.LittleEndian.PutUint64(buf[32:40], ^uint64(0)) // DataUnitsRead low 64 bits maxed out
	binary.LittleEndian.PutUint32(buf[192:196], 12)
	binary.LittleEndian.PutUint32(buf[196:200], 3)
	binary.LittleEndian.PutUint16(buf[200:202], 311) // sensor 1
	binary.LittleEndian.PutUint32(buf[216:220], 1)
	binary.LittleEndian.PutUint32(buf[220:224], 2)
	binary.LittleEndian.PutUint32(buf[224:228], 100)
	binary.LittleEndian.PutUint32(buf[228:232], 200)

	smart, err := ParseSmartLog(buf)
	require.NoError(t, err)

	assert.Equal(t, uint16(310), smart.TemperatureKelvin)
	assert.Equal(t, uint8(80), smart.AvailSpare)
	assert.Equal(t, uint8(10), smart.SpareThresh)
	assert.Equal(t, uint8(5), smart.PercentUsed)
	assert.Equal(t, uint64(0), smart.DataUnitsRead.Hi)
	assert.Equal(t, ^uint64(0), smart.DataUnitsRead.Lo)
	assert.Equal(t, uint32(12), smart.WarningTempTimeMinutes)
	assert.Equal(t, uint32(3), smart.CriticalTempTimeMinutes)
	assert.Equal(t, uint16(311), smart.TempSensorKelvin[0])
	assert.Equal(t, uint32(1), smart.ThmTemp1TransCount)
	assert.Equal(t, uint32(2), smart.ThmTemp2TransCount)
	assert.Equal(t, uint32(100), smart.ThmTemp1TotalTimeSec)
	assert.Equal(t, uint32(200), smart.ThmTemp2TotalTimeSec)

	celsius, ok := smart.TemperatureCelsius()
	require.True(t, ok)
	assert.InDelta(t, 36.85, celsius, 0.001)
}

func TestTemperatureZeroKelvinIsUndefined(t *testing.T) {
	buf := make([]byte, SmartLogBytes)
	smart, err := ParseSmartLog(buf)
	require.NoError(t, err)

	_, ok := smart.TemperatureCelsius()
	assert.False(t, ok)
}

func TestCriticalWarningBits(t *testing.T) {
	buf := make([]byte, SmartLogBytes)
	buf[0] = 0b0001_1111

	smart, err := ParseSmartLog(buf)
	require.NoError(t, err)

	assert.True(t, smart.CriticalWarningAvailableSpare())
	assert.True(t, smart.CriticalWarningTemperature())
	assert.True(t, smart.CriticalWarningReliability())
	assert.True(t, smart.CriticalWarningReadOnly())
	assert.True(t, smart.CriticalWarningVolatileBackup())
}

func TestHealthy(t *testing.T) {
	buf := make([]byte, SmartLogBytes)
	buf[3] = 80 // avail spare
	buf[4] = 10 // spare threshold

	smart, err := ParseSmartLog(buf)
	require.NoError(t, err)
	assert.True(t, smart.Healthy())

	buf[0] = 0x01 // critical warning set
	smart, err = ParseSmartLog(buf)
	require.NoError(t, err)
	assert.False(t, smart.Healthy())
}

func TestParseIdentifyController(t *testing.T) {
	buf := make([]byte, IdentifyBytes)
	copy(buf[4:24], "SN12345             ")
	copy(buf[24:64], "Samsung SSD                             ")
	copy(buf[64:72], "1.0.0\x00\x00\x00")

	identify, err := ParseIdentifyController(buf)
	require.NoError(t, err)
	assert.Equal(t, "SN12345", identify.Serial)
	assert.Equal(t, "Samsung SSD", identify.Model)
	assert.Equal(t, "1.0.0", identify.FirmwareRevision)
}

func TestParseIdentifyControllerRejectsWrongSize(t *testing.T) {
	_, err := ParseIdentifyController(make([]byte, 100))
	assert.Error(t, err)
}

func TestParseIdentifyNamespace(t *testing.T) {
	buf := make([]byte, IdentifyBytes)
	binary.LittleEndian.PutUint64(buf[0:8], 1000)
	binary.LittleEndian.PutUint64(buf[8:16], 900)
	binary.LittleEndian.PutUint64(buf[16:24], 500)

	ns, err := ParseIdentifyNamespace(buf)
	require.NoError(t, err)
	assert.Equal(t, uint64(1000), ns.Nsze)
	assert.Equal(t, uint64(900), ns.Ncap)
	assert.Equal(t, uint64(500), ns.Nuse)
}

func TestParseErrorLogCountsNonZeroEntries(t *testing.T) {
	buf := make([]byte, ErrorLogBytes)
	binary.LittleEndian.PutUint64(buf[0:8], 5)
	binary.LittleEndian.PutUint64(buf[64:72], 2)

	summary, err := ParseErrorLog(buf)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), summary.NonZeroEntries)
	assert.Equal(t, uint64(5), summary.MaxErrorCount)
}

func TestParseErrorLogRejectsNonMultipleOf64(t *testing.T) {
	_, err := ParseErrorLog(make([]byte, 65))
	assert.Error(t, err)

	_, err = ParseErrorLog(make([]byte, 0))
	assert.Error(t, err)
}

func TestParseSelfTestLog(t *testing.T) {
	buf := make([]byte, SelfTestLogBytes)
	buf[0] = 2
	buf[1] = 57

	selfTest, err := ParseSelfTestLog(buf)
	require.NoError(t, err)
	assert.Equal(t, uint8(2), selfTest.CurrentOperation)
	assert.InDelta(t, 0.57, selfTest.CurrentCompletionRatio, 0.0001)
}

func TestTrimNvmeASCII(t *testing.T) {
	assert.Equal(t, "Samsung SSD", trimNvmeASCII([]byte("Samsung SSD  \x00\x00\x00")))
	// idempotent
	assert.Equal(t, "Samsung SSD", trimNvmeASCII([]byte(trimNvmeASCII([]byte("Samsung SSD  \x00\x00\x00")))))
}
