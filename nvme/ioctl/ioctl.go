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

// Package ioctl implements the Linux kernel ioctl request-code macros
// (<uapi/asm-generic/ioctl.h>) needed to build the NVMe admin passthrough
// request code, and a thin wrapper around the ioctl(2) syscall itself.
package ioctl

import (
	"golang.org/x/sys/unix"
)

// Constants from <asm-generic/ioctl.h>.
const (
	iocNRBits   = 8
	iocTypeBits = 8
	iocSizeBits = 14
	iocDirBits  = 2

	iocNRShift   = 0
	iocTypeShift = iocNRShift + iocNRBits
	iocSizeShift = iocTypeShift + iocTypeBits
	iocDirShift  = iocSizeShift + iocSizeBits

	iocWrite = 1
	iocRead  = 2
)

// Iow builds a "write" ioctl request code, per _IOW().
func Iow(typ byte, nr byte, size uintptr) uintptr {
	return ioc(iocWrite, typ, nr, size)
}

// Ior builds a "read" ioctl request code, per _IOR().
func Ior(typ byte, nr byte, size uintptr) uintptr {
	return ioc(iocRead, typ, nr, size)
}

// Iowr builds a "read/write" ioctl request code, per _IOWR(). The NVMe admin
// passthrough command uses this direction: the caller writes the command
// frame and the kernel writes back the completion result field.
func Iowr(typ byte, nr byte, size uintptr) uintptr {
	return ioc(iocWrite|iocRead, typ, nr, size)
}

func ioc(dir int, typ byte, nr byte, size uintptr) uintptr {
	return (uintptr(dir) << iocDirShift) |
		(uintptr(typ) << iocTypeShift) |
		(uintptr(nr) << iocNRShift) |
		(size << iocSizeShift)
}

// Ioctl invokes the ioctl(2) syscall on fd with the given request code and
// argument pointer, returning the raw errno as an error when the kernel
// reports failure.
func Ioctl(fd uintptr, req uintptr, arg uintptr) error {
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, fd, req, arg)
	if errno != 0 {
		return errno
	}
	return nil
}
