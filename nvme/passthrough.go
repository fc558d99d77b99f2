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
	"runtime"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/prometheus-community/nvme_exporter/nvme/ioctl"
)

// Admin command opcodes, per the NVMe Base Specification.
const (
	opcodeIdentify    uint8 = 0x06
	opcodeGetLogPage  uint8 = 0x02
)

// Log page identifiers used by the exporter.
const (
	LogIDErrorInformation uint8 = 0x01
	LogIDSmartHealth      uint8 = 0x02
	LogIDSelfTest         uint8 = 0x06
)

const nsidControllerScope uint32 = 0xFFFFFFFF

// adminPassthruCommand mirrors <linux/nvme_ioctl.h>'s
// struct nvme_admin_cmd byte-for-byte: opcode through result, in this exact
// field order, with no implicit padding inserted by the layout (verified by
// TestPassthruCommandLayout). The kernel copies this struct directly off of
// the ioctl argument pointer, so field order and width are load-bearing.
type adminPassthruCommand struct {
	opcode      uint8
	flags       uint8
	rsvd1       uint16
	nsid        uint32
	cdw2        uint32
	cdw3        uint32
	metadata    uint64
	addr        uint64
	metadataLen uint32
	dataLen     uint32
	cdw10       uint32
	cdw11       uint32
	cdw12       uint32
	cdw13       uint32
	cdw14       uint32
	cdw15       uint32
	timeoutMs   uint32
	result      uint32
} // 72 bytes

// NVME_IOCTL_ADMIN_CMD, as defined in <linux/nvme_ioctl.h>: _IOWR('N', 0x41, struct nvme_admin_cmd).
var nvmeIOCTLAdminCmd = ioctl.Iowr('N', 0x41, unsafe.Sizeof(adminPassthruCommand{}))

// identifyCommand builds the command frame for an Identify Controller
// (nsid=0, cdw10=0x01) or Identify Namespace (nsid=namespace, cdw10=0x00)
// admin command, per the NVMe spec's CNS encoding in CDW10.
func identifyCommand(nsid uint32, buf []byte, timeoutMs uint32) adminPassthruCommand {
	cdw10 := uint32(0x00)
	if nsid == 0 {
		cdw10 = 0x01
	}

	return adminPassthruCommand{
		opcode:    opcodeIdentify,
		nsid:      nsid,
		addr:      uint64(uintptr(unsafe.Pointer(&buf[0]))),
		dataLen:   uint32(len(buf)),
		cdw10:     cdw10,
		timeoutMs: timeoutMs,
	}
}

// getLogPageCommand builds the command frame for a Get Log Page admin
// command. length must be non-zero and a multiple of 4; NUMD (CDW10 bits
// 31:16) is (length/4)-1, saturating at 0 for a 4-byte buffer.
func getLogPageCommand(nsid uint32, lid uint8, buf []byte, timeoutMs uint32) (adminPassthruCommand, error) {
	length := len(buf)
	if length == 0 || length%4 != 0 {
		return adminPassthruCommand{}, errInvalidData("log page length %d must be non-zero and divisible by 4", length)
	}

	numd := uint32(length/4) - 1
	cdw10 := (numd << 16) | uint32(lid)

	return adminPassthruCommand{
		opcode:    opcodeGetLogPage,
		nsid:      nsid,
		addr:      uint64(uintptr(unsafe.Pointer(&buf[0]))),
		dataLen:   uint32(length),
		cdw10:     cdw10,
		timeoutMs: timeoutMs,
	}, nil
}

// submitAdminCommand issues cmd against fd via the NVMe admin passthrough
// ioctl. buf must be the same buffer cmd.addr points into, and must stay
// alive (not be garbage-collected or moved) until this call returns - the
// kernel dereferences cmd.addr as a raw host pointer, with no relationship
// to the Go buf slice header once the ioctl is in flight.
func submitAdminCommand(fd uintptr, device string, cmd *adminPassthruCommand, buf []byte) error {
	if err := ioctl.Ioctl(fd, nvmeIOCTLAdminCmd, uintptr(unsafe.Pointer(cmd))); err != nil {
		if err == unix.EPERM || err == unix.EACCES {
			return errPermissionDenied(device)
		}
		return errIoctl(device, err)
	}
	// Keep buf reachable until the ioctl has returned, so the garbage
	// collector cannot reclaim or relocate it out from under the kernel.
	runtime.KeepAlive(buf)
	return nil
}
