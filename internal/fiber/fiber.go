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

// Package fiber is the fiber table: per-fiber scheduling state, keyed
// by a compact recyclable index. It owns no scheduling policy of its
// own (that's package ringrt) — just storage and the index-recycling
// slab discipline.
//
// Grounded on original_source/src/runtime/mod.rs's Fibers(slab::Slab<FiberState>)
// and FiberIndex, translated from a crate-private slab into a small
// hand-rolled free-list slab (the examples pack ships no slab-allocator
// dependency to reuse).
package fiber

import (
	"github.com/ringrt/ringrt/internal/contextswitch"
	"github.com/ringrt/ringrt/internal/stack"
)

// Index is a stable, compact identifier into a Table, recyclable once
// its slot is removed.
type Index uint32

// JoinState is the state of a fiber's join handle.
type JoinState int

const (
	// JoinUnused means no JoinHandle has parked on this fiber yet.
	JoinUnused JoinState = iota
	// JoinWaiting means a fiber is parked awaiting this one's completion;
	// Waiter names it.
	JoinWaiting
	// JoinDropped means the JoinHandle was dropped.
	JoinDropped
)

// SyscallResult is the outcome of a syscall submitted on a fiber's
// behalf: either a non-negative return value or an OS errno.
type SyscallResult struct {
	Value int32
	Errno int32
	// Valid is false until the completion dispatcher deposits a result.
	Valid bool
}

// State is one fiber's scheduling record.
type State struct {
	Stack        stack.Stack // owns the fiber's execution stack; grows down from Stack.Base()
	Continuation contextswitch.Continuation

	// Entry is the fiber's body, invoked by the fixed, non-closure
	// assembly entry point once execution first reaches it. Raw stack
	// switching jumps to a machine code address with no Go calling
	// convention in effect, so the code actually jumped to can never be
	// a closure (it would need its captured-variable context set up by
	// the Go ABI, which a bare RET does not do); instead the jumped-to
	// function is a fixed package-level trampoline that looks up the
	// running fiber and calls its Entry as an ordinary Go call.
	Entry func()

	Completed bool
	Cancelled bool
	// Scheduled is set while the fiber sits in the ready queue, to
	// prevent it from being enqueued twice.
	Scheduled bool

	JoinState JoinState
	Waiter    Index // valid iff JoinState == JoinWaiting

	PendingSyscall SyscallResult

	Parent   Index
	HasParent bool
	Children map[Index]struct{}
}

// Table is the slab of live fibers, indexed by Index.
type Table struct {
	slots []slot
	free  []Index
}

type slot struct {
	state    State
	occupied bool
}

// NewTable creates an empty fiber table.
func NewTable() *Table {
	return &Table{}
}

// Get returns the state for fiber i. Panics if i is not a live index,
// matching the teacher-adjacent convention of failing loudly on
// programmer error rather than returning an error for an internal
// invariant violation.
func (t *Table) Get(i Index) *State {
	s := &t.slots[i]
	if !s.occupied {
		panic("fiber: use of removed fiber index")
	}
	return &s.state
}

// Add inserts a new fiber state, with entry as its Entry, and returns
// its index.
func (t *Table) Add(parent Index, hasParent bool, s stack.Stack, continuation contextswitch.Continuation, entry func()) Index {
	state := State{
		Stack:        s,
		Continuation: continuation,
		Entry:        entry,
		JoinState:    JoinUnused,
		Parent:       parent,
		HasParent:    hasParent,
		Children:     make(map[Index]struct{}),
	}

	if n := len(t.free); n > 0 {
		idx := t.free[n-1]
		t.free = t.free[:n-1]
		t.slots[idx] = slot{state: state, occupied: true}
		return idx
	}

	t.slots = append(t.slots, slot{state: state, occupied: true})
	return Index(len(t.slots) - 1)
}

// Remove frees fiber i's slot for reuse. The caller must ensure i is
// both Completed and has JoinState == JoinDropped before calling this
// (package ringrt enforces that rule at every call site).
func (t *Table) Remove(i Index) {
	t.slots[i] = slot{}
	t.free = append(t.free, i)
}
