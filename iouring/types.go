/*
 * Copyright 2025 CloudWeGo Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package iouring

import "unsafe"

// SubmissionEntry is the io_uring_sqe ABI structure: one I/O operation
// queued for the kernel. It must stay exactly 64 bytes.
type SubmissionEntry struct {
	Opcode      uint8
	Flags       uint8
	IoPrio      uint16
	Fd          int32
	Off         uint64
	Addr        uint64
	Len         uint32
	OpcodeFlags uint32
	UserData    uint64
	BufIndex    uint16
	Personality uint16
	SpliceFdIn  int32
	_           [2]uint64
}

// CompletionEntry is the io_uring_cqe ABI structure: the outcome of one
// previously submitted operation. It must stay exactly 16 bytes.
type CompletionEntry struct {
	UserData uint64
	Res      int32
	Flags    uint32
}

// Iovec describes one scatter/gather buffer for READV/WRITEV.
type Iovec struct {
	Base uintptr
	Len  uint64
}

// Set points the Iovec at b.
func (p *Iovec) Set(b []byte) {
	p.Len = uint64(len(b))
	if p.Len > 0 {
		p.Base = uintptr(unsafe.Pointer(&b[0]))
	}
}

// TimeSpec matches the kernel's __kernel_timespec layout, used by
// IORING_OP_TIMEOUT and the CQE-wait timeout argument.
type TimeSpec struct {
	TvSec  int64
	TvNsec int64
}

// IsZero reports whether the timespec represents zero duration.
func (p *TimeSpec) IsZero() bool {
	return *p == TimeSpec{}
}

// Msghdr mirrors struct msghdr for SENDMSG/RECVMSG.
type Msghdr struct {
	Name       *byte
	Namelen    uint32
	_          uint32
	Iov        *Iovec
	Iovlen     uint64
	Control    *byte
	Controllen uint64
	Flags      int32
	_          int32
}
