// Package stack allocates guarded, demand-paged stacks for fiber execution.
package stack

import (
	"unsafe"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

const pageSize = 4096

// Stack is a raw mapping usable as a fiber's execution stack.
//
// The stack grows downward: Base is the highest address, usable by the
// first push. The lowest guardPages pages (see New) carry no permissions, so an
// overflow faults immediately instead of corrupting an adjacent mapping.
type Stack struct {
	pointer uintptr // lowest address of the whole mapping, including guard pages
	length  int     // total bytes, including guard pages
}

// New reserves a stack of guardPages+usablePages pages.
//
// Grounded on original_source/src/runtime/stack.rs: a single anonymous
// mapping sized for guard+usable pages, with the guard region at the low
// end stripped of permissions via mprotect.
func New(guardPages, usablePages int) (Stack, error) {
	if guardPages < 1 {
		guardPages = 1
	}
	if usablePages < 1 {
		usablePages = 1
	}
	length := (guardPages + usablePages) * pageSize

	data, err := unix.Mmap(-1, 0, length, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANONYMOUS)
	if err != nil {
		return Stack{}, errors.Wrap(err, "stack: mmap")
	}
	pointer := uintptr(unsafe.Pointer(&data[0]))

	guardLen := guardPages * pageSize
	if err := unix.Mprotect(data[:guardLen], unix.PROT_NONE); err != nil {
		_ = unix.Munmap(data)
		return Stack{}, errors.Wrap(err, "stack: mprotect guard page")
	}

	return Stack{pointer: pointer, length: length}, nil
}

// Base returns the highest usable address, where a fresh stack begins.
func (s Stack) Base() uintptr {
	return s.pointer + uintptr(s.length)
}

// Free releases the entire mapping, guard pages included.
func (s Stack) Free() error {
	data := unsafe.Slice((*byte)(unsafe.Pointer(s.pointer)), s.length)
	if err := unix.Munmap(data); err != nil {
		return errors.Wrap(err, "stack: munmap")
	}
	return nil
}

// Pool recycles stack base pointers so the scheduler can avoid repeated
// mmap/mprotect round trips for short-lived fibers.
type Pool struct {
	guardPages, usablePages int
	free                    []Stack
}

// NewPool creates a pool that allocates stacks of the given shape on demand.
func NewPool(guardPages, usablePages int) *Pool {
	return &Pool{guardPages: guardPages, usablePages: usablePages}
}

// Get returns a pooled stack if one is available, otherwise allocates one.
func (p *Pool) Get() (Stack, error) {
	if n := len(p.free); n > 0 {
		s := p.free[n-1]
		p.free = p.free[:n-1]
		return s, nil
	}
	return New(p.guardPages, p.usablePages)
}

// Put returns a stack to the pool for reuse.
func (p *Pool) Put(s Stack) {
	p.free = append(p.free, s)
}

// Close frees every pooled stack. Stacks currently lent out via Get are
// the caller's responsibility.
func (p *Pool) Close() error {
	var first error
	for _, s := range p.free {
		if err := s.Free(); err != nil && first == nil {
			first = err
		}
	}
	p.free = nil
	return first
}
