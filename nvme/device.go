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
	"golang.org/x/sys/unix"
)

// Device owns an open file descriptor for an NVMe character device
// (e.g. /dev/nvme0) for the duration of a single collection. It is not
// safe for concurrent use by multiple goroutines.
type Device struct {
	Path string
	fd   int
}

// Open opens path read-only and returns a Device ready to issue admin
// passthrough commands. The caller must Close it when done.
func Open(path string) (*Device, error) {
	fd, err := unix.Open(path, unix.O_RDONLY, 0)
	if err != nil {
		return nil, errIO(path, err)
	}
	return &Device{Path: path, fd: fd}, nil
}

// Close releases the underlying file descriptor.
func (d *Device) Close() error {
	return unix.Close(d.fd)
}

// IdentifyController issues Identify (CNS=0x01) and decodes the result.
func (d *Device) IdentifyController(timeoutMs uint32) (*IdentifyController, error) {
	buf := make([]byte, IdentifyBytes)
	cmd := identifyCommand(0, buf, timeoutMs)
	if err := submitAdminCommand(uintptr(d.fd), d.Path, &cmd, buf); err != nil {
		return nil, err
	}
	return ParseIdentifyController(buf)
}

// IdentifyNamespace issues Identify (CNS=0x00) for nsid and decodes the result.
func (d *Device) IdentifyNamespace(nsid uint32, timeoutMs uint32) (*IdentifyNamespace, error) {
	buf := make([]byte, IdentifyBytes)
	cmd := identifyCommand(nsid, buf, timeoutMs)
	if err := submitAdminCommand(uintptr(d.fd), d.Path, &cmd, buf); err != nil {
		return nil, err
	}
	return ParseIdentifyNamespace(buf)
}

// SmartLog issues Get Log Page for the SMART/Health log and decodes it.
func (d *Device) SmartLog(timeoutMs uint32) (*SmartLog, error) {
	buf := make([]byte, SmartLogBytes)
	if err := d.getControllerLogPage(LogIDSmartHealth, buf, timeoutMs); err != nil {
		return nil, err
	}
	return ParseSmartLog(buf)
}

// ErrorLog issues Get Log Page for the Error Information log (fixed
// 16-entry window) and decodes it.
func (d *Device) ErrorLog(timeoutMs uint32) (*ErrorLogSummary, error) {
	buf := make([]byte, ErrorLogBytes)
	if err := d.getControllerLogPage(LogIDErrorInformation, buf, timeoutMs); err != nil {
		return nil, err
	}
	return ParseErrorLog(buf)
}

// SelfTestLog issues Get Log Page for the Device Self-Test log and decodes it.
func (d *Device) SelfTestLog(timeoutMs uint32) (*SelfTestLogSummary, error) {
	buf := make([]byte, SelfTestLogBytes)
	if err := d.getControllerLogPage(LogIDSelfTest, buf, timeoutMs); err != nil {
		return nil, err
	}
	return ParseSelfTestLog(buf)
}

func (d *Device) getControllerLogPage(lid uint8, buf []byte, timeoutMs uint32) error {
	cmd, err := getLogPageCommand(nsidControllerScope, lid, buf, timeoutMs)
	if err != nil {
		return err
	}
	return submitAdminCommand(uintptr(d.fd), d.Path, &cmd, buf)
}
