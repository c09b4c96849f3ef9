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

// Package iouring is the kernel I/O interface: a thin wrapper around
// Linux's io_uring submission/completion ring pair.
//
// Unlike a general-purpose io_uring binding, this package assumes a
// single-threaded, cooperative caller (package ringrt's scheduler): no
// background goroutines submit or drain on its behalf, so every
// exported method is meant to be called from the one goroutine driving
// the scheduler loop.
//
// Adapted from the teacher's internal/iouring package: the mmap layout,
// peek/advance protocol, and opcode/flag constants are kept, but the
// two-goroutine eventloop and the pooled-userData dispatch model are
// dropped (user_data is, per design, the fiber table index itself, so
// no independent tracking object is needed) in favor of the Cancel
// primitive and the CLAMP/NODROP setup contract that the single-
// threaded scheduler in package ringrt relies on.
package iouring

import (
	"runtime"
	"sync/atomic"
	"syscall"
	"unsafe"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// Config configures Ring construction. Trimmed from the teacher's
// iouring.Config: the batching/interval knobs only make sense for a
// background submitter goroutine, which this design doesn't have.
type Config struct {
	// Entries is the requested submission queue size. It is not
	// required to be a power of two: IORING_SETUP_CLAMP is always set,
	// so an oversized request is clamped by the kernel instead of
	// failing setup.
	Entries uint32
}

// DefaultConfig mirrors the ring size original_source/src/runtime/uring.rs
// requests (1024 entries).
func DefaultConfig() Config {
	return Config{Entries: 1024}
}

// ioUringParams is io_uring_params, used both as setup input (Flags,
// SqThread*) and output (Features, the two ring offset blocks).
type ioUringParams struct {
	SqEntries    uint32
	CqEntries    uint32
	Flags        uint32
	SqThreadCpu  uint32
	SqThreadIdle uint32
	Features     uint32
	WqFd         uint32
	Resv         [3]uint32
	SqOff        sqringOffsets
	CqOff        cqringOffsets
}

type sqringOffsets struct {
	Head        uint32
	Tail        uint32
	RingMask    uint32
	RingEntries uint32
	Flags       uint32
	Dropped     uint32
	Array       uint32
	Resv1       uint32
	Resv2       uint64
}

type cqringOffsets struct {
	Head        uint32
	Tail        uint32
	RingMask    uint32
	RingEntries uint32
	Overflow    uint32
	Cqes        uint32
	Flags       uint32
	Resv1       uint32
	Resv2       uint64
}

// Ring is one io_uring instance: a file descriptor plus the memory
// mappings backing its submission and completion rings.
type Ring struct {
	fd      int
	params  ioUringParams
	sq      submissionQueue
	cq      completionQueue
	sqeMem  []byte
	ringMem []byte
}

type submissionQueue struct {
	head        *uint32
	tail        *uint32
	ringMask    uint32
	ringEntries uint32
	flags       *uint32
	dropped     *uint32
	array       *uint32
	sqes        []SubmissionEntry
}

type completionQueue struct {
	head        *uint32
	tail        *uint32
	ringMask    uint32
	ringEntries uint32
	overflow    *uint32
	cqes        []CompletionEntry
}

// New creates a Ring, mapping its rings into this process.
//
// IORING_SETUP_CLAMP is always requested, so a too-large Entries value
// never panics or fails setup — the kernel clamps it to its own limit,
// following original_source/src/runtime/uring.rs's setup_clamp() call.
// IORING_FEAT_NODROP is required: the dispatcher in package ringrt
// depends on every completion eventually surfacing, and implementing
// completion-queue backpressure is explicitly out of scope.
func New(cfg Config) (*Ring, error) {
	params := ioUringParams{Flags: IORING_SETUP_CLAMP}
	fd, err := setup(cfg.Entries, &params)
	if err != nil {
		return nil, errors.Wrap(err, "iouring: io_uring_setup")
	}

	if params.Features&IORING_FEAT_SINGLE_MMAP == 0 {
		unix.Close(fd)
		return nil, errors.New("iouring: kernel lacks IORING_FEAT_SINGLE_MMAP (requires Linux 5.4+)")
	}
	if params.Features&IORING_FEAT_NODROP == 0 {
		unix.Close(fd)
		return nil, errors.New("iouring: kernel lacks IORING_FEAT_NODROP")
	}

	ring := &Ring{fd: fd, params: params}

	pageSize := uint32(unix.Getpagesize())

	sqRingSize := params.SqOff.Array + params.SqEntries*uint32(unsafe.Sizeof(uint32(0)))
	cqRingSize := params.CqOff.Cqes + params.CqEntries*uint32(unsafe.Sizeof(CompletionEntry{}))
	ringSize := sqRingSize
	if cqRingSize > ringSize {
		ringSize = cqRingSize
	}
	ringSize = (ringSize + pageSize - 1) &^ (pageSize - 1)

	ringPtr, err := unix.Mmap(fd, 0, int(ringSize),
		unix.PROT_READ|unix.PROT_WRITE,
		unix.MAP_SHARED|unix.MAP_POPULATE)
	if err != nil {
		ring.Close()
		return nil, errors.Wrap(err, "iouring: mmap ring")
	}
	ring.ringMem = ringPtr

	sqeSize := params.SqEntries * uint32(unsafe.Sizeof(SubmissionEntry{}))
	sqePtr, err := unix.Mmap(fd, 0x10000000, int(sqeSize),
		unix.PROT_READ|unix.PROT_WRITE,
		unix.MAP_SHARED|unix.MAP_POPULATE)
	if err != nil {
		ring.Close()
		return nil, errors.Wrap(err, "iouring: mmap sqes")
	}
	ring.sqeMem = sqePtr

	ring.sq.head = (*uint32)(unsafe.Pointer(&ring.ringMem[params.SqOff.Head]))
	ring.sq.tail = (*uint32)(unsafe.Pointer(&ring.ringMem[params.SqOff.Tail]))
	ring.sq.ringMask = *(*uint32)(unsafe.Pointer(&ring.ringMem[params.SqOff.RingMask]))
	ring.sq.ringEntries = *(*uint32)(unsafe.Pointer(&ring.ringMem[params.SqOff.RingEntries]))
	ring.sq.flags = (*uint32)(unsafe.Pointer(&ring.ringMem[params.SqOff.Flags]))
	ring.sq.dropped = (*uint32)(unsafe.Pointer(&ring.ringMem[params.SqOff.Dropped]))
	ring.sq.array = (*uint32)(unsafe.Pointer(&ring.ringMem[params.SqOff.Array]))
	ring.sq.sqes = unsafe.Slice((*SubmissionEntry)(unsafe.Pointer(&ring.sqeMem[0])), params.SqEntries)

	ring.cq.head = (*uint32)(unsafe.Pointer(&ring.ringMem[params.CqOff.Head]))
	ring.cq.tail = (*uint32)(unsafe.Pointer(&ring.ringMem[params.CqOff.Tail]))
	ring.cq.ringMask = *(*uint32)(unsafe.Pointer(&ring.ringMem[params.CqOff.RingMask]))
	ring.cq.ringEntries = *(*uint32)(unsafe.Pointer(&ring.ringMem[params.CqOff.RingEntries]))
	ring.cq.overflow = (*uint32)(unsafe.Pointer(&ring.ringMem[params.CqOff.Overflow]))
	ring.cq.cqes = unsafe.Slice((*CompletionEntry)(unsafe.Pointer(&ring.ringMem[params.CqOff.Cqes])), params.CqEntries)

	runtime.SetFinalizer(ring, func(r *Ring) { r.Close() })

	return ring, nil
}

// PeekSQE reserves the next free submission slot for the caller to
// fill, returning nil if the ring is full. The caller must call
// AdvanceSQ once the entry is populated. When reset is true the slot is
// zeroed first; otherwise it may retain a previous operation's fields.
func (r *Ring) PeekSQE(reset bool) *SubmissionEntry {
	q := &r.sq

	tail := atomic.LoadUint32(q.tail)
	head := atomic.LoadUint32(q.head)
	if tail-head >= q.ringEntries {
		return nil
	}

	idx := tail & q.ringMask
	sqe := &q.sqes[idx]
	if reset {
		*sqe = SubmissionEntry{}
	}

	arrayPtr := (*uint32)(unsafe.Pointer(uintptr(unsafe.Pointer(q.array)) + uintptr(idx)*4))
	*arrayPtr = idx

	return sqe
}

// AdvanceSQ commits the most recently peeked submission entry.
func (r *Ring) AdvanceSQ() {
	atomic.AddUint32(r.sq.tail, 1)
}

// PendingSQEs returns the number of entries queued but not yet
// submitted to the kernel.
func (r *Ring) PendingSQEs() uint32 {
	return atomic.LoadUint32(r.sq.tail) - atomic.LoadUint32(r.sq.head)
}

// Submit flushes pending entries to the kernel via io_uring_enter,
// returning the number the kernel accepted.
func (r *Ring) Submit() (int, error) {
	toSubmit := r.PendingSQEs()
	if toSubmit == 0 {
		return 0, nil
	}
	for {
		submitted, errno := enter(r.fd, toSubmit, 0, 0)
		if errno == syscall.EINTR {
			continue
		}
		if errno != 0 {
			return submitted, errno
		}
		return submitted, nil
	}
}

// PeekCQE returns the oldest unconsumed completion without blocking, or
// nil if none is available. The caller must call AdvanceCQ once done.
func (r *Ring) PeekCQE() *CompletionEntry {
	q := &r.cq
	head := atomic.LoadUint32(q.head)
	tail := atomic.LoadUint32(q.tail)
	if head == tail {
		return nil
	}
	return &q.cqes[head&q.ringMask]
}

// WaitCQE blocks the calling goroutine (and, transitively, the OS
// thread it is pinned to — see ringrt.Start) until at least one
// completion is available.
func (r *Ring) WaitCQE() (*CompletionEntry, error) {
	q := &r.cq
	head := atomic.LoadUint32(q.head)
	tail := atomic.LoadUint32(q.tail)

	for head == tail {
		_, errno := enter(r.fd, 0, 1, IORING_ENTER_GETEVENTS)
		if errno == syscall.EINTR || errno == syscall.EAGAIN {
			tail = atomic.LoadUint32(q.tail)
			continue
		}
		if errno != 0 {
			return nil, errno
		}
		tail = atomic.LoadUint32(q.tail)
	}

	return &q.cqes[head&q.ringMask], nil
}

// AdvanceCQ releases the oldest completion slot back to the kernel.
func (r *Ring) AdvanceCQ() {
	atomic.AddUint32(r.cq.head, 1)
}

// Cancel queues an IORING_OP_ASYNC_CANCEL targeting a previously
// submitted entry's user_data; it reaches the kernel on the next Submit
// (or at once, if the ring was full). Its own completion carries the reserved
// cancelUserData sentinel and must be discarded by the caller's
// completion dispatcher rather than delivered to a fiber.
func (r *Ring) Cancel(targetUserData uint64) {
	sqe := r.PeekSQE(true)
	if sqe == nil {
		r.Submit()
		sqe = r.PeekSQE(true)
	}
	sqe.Opcode = IORING_OP_ASYNC_CANCEL
	sqe.Addr = targetUserData
	sqe.UserData = cancelUserData
	r.AdvanceSQ()
}

// IsCancelSentinel reports whether a completion's UserData is the
// reserved cancel sentinel, whose result carries no fiber to resume.
func IsCancelSentinel(userData uint64) bool {
	return userData == cancelUserData
}

// Close unmaps the rings and closes the file descriptor. Safe to call
// more than once.
func (r *Ring) Close() error {
	if r == nil {
		return nil
	}
	runtime.SetFinalizer(r, nil)

	var firstErr error
	if r.ringMem != nil {
		if err := unix.Munmap(r.ringMem); err != nil && firstErr == nil {
			firstErr = err
		}
		r.ringMem = nil
	}
	if r.sqeMem != nil {
		if err := unix.Munmap(r.sqeMem); err != nil && firstErr == nil {
			firstErr = err
		}
		r.sqeMem = nil
	}
	if r.fd >= 0 {
		if err := unix.Close(r.fd); err != nil && firstErr == nil {
			firstErr = err
		}
		r.fd = -1
	}
	return firstErr
}
