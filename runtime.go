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

// Package ringrt is a single-threaded userspace concurrency runtime
// built atop Linux's io_uring: a cooperative fiber scheduler whose
// fibers switch userspace stacks directly instead of running as
// futures or goroutines, with every blocking operation routed through
// one kernel submission/completion queue pair per OS thread.
//
// One runtime lives per OS thread. Grounded on original_source/src/runtime/mod.rs's
// RuntimeState, translated from a thread_local! cell into a
// goroutine-local one (package internal/gls) pinned to its OS thread
// via runtime.LockOSThread, since Go has no native thread-local
// storage.
package ringrt

import (
	"sync"

	"github.com/pkg/errors"

	"github.com/ringrt/ringrt/internal/contextswitch"
	"github.com/ringrt/ringrt/internal/fiber"
	"github.com/ringrt/ringrt/internal/gls"
	"github.com/ringrt/ringrt/internal/stack"
	"github.com/ringrt/ringrt/iouring"
)

type runtimeState struct {
	ring    *iouring.Ring
	fibers  *fiber.Table
	ready   []fiber.Index
	running fiber.Index

	stackPool *stack.Pool
	bootstrap contextswitch.Continuation

	guardPages       int
	usableStackPages int
}

var runtimes sync.Map // goroutine id (uint64) -> *runtimeState

func runtimeExists() bool {
	_, ok := runtimes.Load(gls.ID())
	return ok
}

func currentRuntime() *runtimeState {
	v, ok := runtimes.Load(gls.ID())
	if !ok {
		panic("ringrt: called outside of ringrt.Start (no runtime installed on this goroutine)")
	}
	return v.(*runtimeState)
}

func installRuntime(rt *runtimeState) {
	id := gls.ID()
	if _, exists := runtimes.Load(id); exists {
		panic("ringrt: Start called while a runtime is already running on this OS thread")
	}
	runtimes.Store(id, rt)
}

func uninstallRuntime() {
	runtimes.Delete(gls.ID())
}

func newRuntimeState(cfg config) (*runtimeState, error) {
	ring, err := iouring.New(cfg.ringConfig())
	if err != nil {
		return nil, errors.Wrap(err, "ringrt: kernel unavailable")
	}
	return &runtimeState{
		ring:             ring,
		fibers:           fiber.NewTable(),
		stackPool:        stack.NewPool(cfg.guardPages, cfg.usableStackPages),
		guardPages:       cfg.guardPages,
		usableStackPages: cfg.usableStackPages,
	}, nil
}

func (rt *runtimeState) close() {
	_ = rt.stackPool.Close()
	_ = rt.ring.Close()
}

func (rt *runtimeState) allocateStack() (stack.Stack, error) {
	return rt.stackPool.Get()
}

// schedule idempotently appends fiber i to the ready queue, guarded by
// its per-fiber Scheduled bit so a fiber woken twice before it runs
// isn't enqueued twice.
func (rt *runtimeState) schedule(i fiber.Index) {
	state := rt.fibers.Get(i)
	if state.Scheduled {
		return
	}
	state.Scheduled = true
	rt.ready = append(rt.ready, i)
}

func (rt *runtimeState) popReady() (fiber.Index, bool) {
	if len(rt.ready) == 0 {
		return 0, false
	}
	i := rt.ready[0]
	rt.ready = rt.ready[1:]
	rt.fibers.Get(i).Scheduled = false
	return i, true
}

// processIO drains every completion currently available without
// blocking, depositing results into the waiting fiber's slot and
// scheduling it. The reserved cancel sentinel is discarded: it carries
// no fiber to resume.
func (rt *runtimeState) processIO() {
	for {
		cqe := rt.ring.PeekCQE()
		if cqe == nil {
			return
		}

		if !iouring.IsCancelSentinel(cqe.UserData) {
			idx := fiber.Index(cqe.UserData)
			state := rt.fibers.Get(idx)
			result := fiber.SyscallResult{Valid: true}
			if cqe.Res < 0 {
				result.Errno = cqe.Res
			} else {
				result.Value = cqe.Res
			}
			state.PendingSyscall = result
			rt.schedule(idx)
		}

		rt.ring.AdvanceCQ()
	}
}

// processIOAndWait drains completions and returns the next ready
// fiber, blocking on the kernel (WaitCQE) when none is available.
func (rt *runtimeState) processIOAndWait() fiber.Index {
	for {
		rt.processIO()

		if i, ok := rt.popReady(); ok {
			rt.running = i
			return i
		}

		if _, err := rt.ring.WaitCQE(); err != nil {
			panic(errors.Wrap(err, "ringrt: waiting for a completion"))
		}
	}
}

// parkWithoutScheduling switches away from fiber idx until some other
// party reschedules it. If idx is itself the next ready fiber (it was
// scheduled before it could switch away, e.g. by its own waker or by a
// completion that was already available), it keeps running without a
// switch.
func (rt *runtimeState) parkWithoutScheduling(idx fiber.Index) {
	to := rt.processIOAndWait()
	if to == idx {
		return
	}
	toState := rt.fibers.Get(to)
	fromState := rt.fibers.Get(idx)
	contextswitch.Jump(&fromState.Continuation, toState.Continuation)
}

func (rt *runtimeState) reclaimStack(idx fiber.Index) {
	state := rt.fibers.Get(idx)
	rt.stackPool.Put(state.Stack)
	rt.fibers.Remove(idx)
}

// containingAncestor walks up to the nearest enclosing "contained"
// scope. Resolved, per the distilled specification's open question, as
// the root fiber: the one with no parent.
func containingAncestor(rt *runtimeState, idx fiber.Index) fiber.Index {
	for {
		state := rt.fibers.Get(idx)
		if !state.HasParent {
			return idx
		}
		idx = state.Parent
	}
}

// cancelRecursive sets idx's cancelled flag and every live descendant's,
// scheduling any that are currently parked so they observe the flag at
// their next suspension check. Already-cancelled subtrees short-circuit.
func cancelRecursive(rt *runtimeState, idx fiber.Index) {
	state := rt.fibers.Get(idx)
	if state.Cancelled {
		return
	}
	state.Cancelled = true

	if !state.Completed && !state.Scheduled && idx != rt.running {
		rt.schedule(idx)
	}

	for child := range state.Children {
		cancelRecursive(rt, child)
	}
}
