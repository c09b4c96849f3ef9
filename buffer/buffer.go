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

// Package buffer is a dual-mapped circular byte buffer: a single
// memfd-backed region of physical memory mapped twice into consecutive
// virtual address ranges, so that a logical byte range wrapping past
// the end of the buffer still reads back as one contiguous Go slice.
//
// Ported near-literally from original_source/src/circular_buffer.rs
// using golang.org/x/sys/unix in place of libc, following the same
// layout:
//
//	physical memory: D E 0 0 0 0 A B C
//	                   ^tail     ^head
//
//	virtual memory:  D E 0 0 0 0 A B C D E 0 0 0 0 A B C
//	                             \-------/ contiguous
package buffer

import (
	"runtime"
	"unsafe"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

const pageSize = 4096

type state struct {
	fd      int
	pointer uintptr
	length  int // one copy; the virtual reservation is 2*length
	head    uint64
	tail    uint64
}

// Data is the consumer half of a circular buffer: the committed,
// readable bytes.
type Data struct {
	s *state
}

// Uninit is the producer half: the writable, not-yet-committed bytes.
type Uninit struct {
	s *state
}

// New creates a circular buffer of at least requestedLength bytes,
// rounded up first to a multiple of the page size and then to a power
// of two (so wraparound arithmetic can use a bitwise AND instead of a
// modulo).
func New(requestedLength int) (*Data, *Uninit, error) {
	length, err := calculateLength(requestedLength)
	if err != nil {
		return nil, nil, err
	}

	fd, err := unix.MemfdCreate("ringrt-circular-buffer", unix.MFD_CLOEXEC)
	if err != nil {
		return nil, nil, errors.Wrap(err, "buffer: memfd_create")
	}
	if err := unix.Ftruncate(fd, int64(length)); err != nil {
		unix.Close(fd)
		return nil, nil, errors.Wrap(err, "buffer: ftruncate")
	}

	reservation, err := unix.Mmap(-1, 0, 2*length, unix.PROT_NONE, unix.MAP_PRIVATE|unix.MAP_ANONYMOUS)
	if err != nil {
		unix.Close(fd)
		return nil, nil, errors.Wrap(err, "buffer: reserving virtual address range")
	}
	pointer := uintptr(unsafe.Pointer(&reservation[0]))

	if err := fileMapFixed(fd, pointer, length); err != nil {
		unix.Munmap(reservation)
		unix.Close(fd)
		return nil, nil, errors.Wrap(err, "buffer: mapping first half")
	}
	if err := fileMapFixed(fd, pointer+uintptr(length), length); err != nil {
		unix.Munmap(reservation)
		unix.Close(fd)
		return nil, nil, errors.Wrap(err, "buffer: mapping second half")
	}

	s := &state{fd: fd, pointer: pointer, length: length}

	data := &Data{s: s}
	uninit := &Uninit{s: s}
	runtime.SetFinalizer(data, func(d *Data) { d.s.closeOnce() })

	return data, uninit, nil
}

func calculateLength(requested int) (int, error) {
	if requested <= 0 {
		return 0, errors.New("buffer: length must be positive")
	}
	length := nextMultiple(requested, pageSize)
	length = nextPowerOfTwo(length)
	return length, nil
}

func nextMultiple(n, m int) int {
	return ((n + m - 1) / m) * m
}

func nextPowerOfTwo(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}

// fileMapFixed maps fd's full contents at the fixed virtual address
// addr. golang.org/x/sys/unix's Mmap wrapper always lets the kernel
// pick the address, so a MAP_FIXED placement goes through the raw
// mmap(2) syscall directly.
func fileMapFixed(fd int, addr uintptr, length int) error {
	ret, _, errno := unix.Syscall6(
		unix.SYS_MMAP,
		addr,
		uintptr(length),
		uintptr(unix.PROT_READ|unix.PROT_WRITE),
		uintptr(unix.MAP_SHARED|unix.MAP_FIXED),
		uintptr(fd),
		0,
	)
	if errno != 0 {
		return errno
	}
	if ret != addr {
		return errors.Errorf("buffer: kernel placed mapping at %#x, wanted %#x", ret, addr)
	}
	return nil
}

func (s *state) dataLen() int {
	return int(s.tail - s.head)
}

func (s *state) uninitLen() int {
	return s.length - s.dataLen()
}

func p2Modulo(n uint64, m int) uint64 {
	return n & uint64(m-1)
}

func (s *state) bytesAt(offset uint64, n int) []byte {
	base := s.pointer + uintptr(offset)
	return unsafe.Slice((*byte)(unsafe.Pointer(base)), n)
}

// Bytes returns the committed, unconsumed region. The slice is valid
// until the next Consume or Commit call.
func (d *Data) Bytes() []byte {
	return d.s.bytesAt(p2Modulo(d.s.head, d.s.length), d.s.dataLen())
}

// Len reports the number of committed, unconsumed bytes.
func (d *Data) Len() int {
	return d.s.dataLen()
}

// Consume advances head by n, releasing that many bytes back to the
// producer side. n must not exceed len(d.Bytes()).
func (d *Data) Consume(n int) {
	if n > d.s.dataLen() {
		panic("buffer: Consume exceeds committed data")
	}
	d.s.head += uint64(n)
}

// Close releases the circular buffer's mappings and backing file. Safe
// to call from either the Data or Uninit half; safe to call more than
// once.
func (d *Data) Close() error {
	runtime.SetFinalizer(d, nil)
	return d.s.closeOnce()
}

// Bytes returns the uncommitted, writable region. The slice is valid
// until the next Commit or Consume call.
func (u *Uninit) Bytes() []byte {
	return u.s.bytesAt(p2Modulo(u.s.tail, u.s.length), u.s.uninitLen())
}

// Len reports the number of writable bytes remaining before the buffer
// is full.
func (u *Uninit) Len() int {
	return u.s.uninitLen()
}

// Commit advances tail by n, exposing bytes written into
// u.Bytes()[:n] to the consumer side. n must not exceed
// len(u.Bytes()).
func (u *Uninit) Commit(n int) {
	if n > u.s.uninitLen() {
		panic("buffer: Commit exceeds uninitialized space")
	}
	u.s.tail += uint64(n)
}

// Close releases the circular buffer's mappings and backing file.
func (u *Uninit) Close() error {
	return u.s.closeOnce()
}

func (s *state) closeOnce() error {
	if s.fd == -1 {
		return nil
	}
	data := unsafe.Slice((*byte)(unsafe.Pointer(s.pointer)), 2*s.length)
	err := unix.Munmap(data)
	closeErr := unix.Close(s.fd)
	s.fd = -1
	if err != nil {
		return errors.Wrap(err, "buffer: munmap")
	}
	if closeErr != nil {
		return errors.Wrap(closeErr, "buffer: close memfd")
	}
	return nil
}
