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

package ringrt

import (
	"runtime"

	"github.com/pkg/errors"

	"github.com/ringrt/ringrt/internal/contextswitch"
	"github.com/ringrt/ringrt/internal/fiber"
)

// Start installs a fresh runtime pinned to the current OS thread,
// creates the root fiber from closure, runs it to completion, and
// returns its result. Panics if a runtime is already installed on this
// thread (nested Start), and if closure itself panics, the panic is
// caught and returned as an error instead of propagating.
func Start[T any](closure func() T, opts ...Option) (T, error) {
	var zero T

	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	rt, err := newRuntimeState(cfg)
	if err != nil {
		return zero, err
	}

	installRuntime(rt)
	defer uninstallRuntime()
	defer rt.close()

	rootStack, err := rt.allocateStack()
	if err != nil {
		return zero, errors.Wrap(err, "ringrt: allocating root fiber stack")
	}

	res := &spawnResult[T]{}
	entry := rootTrampoline(rt, closure, res)
	continuation := contextswitch.PrepareStack(rootStack.Base(), fiberEntryTrampoline)

	root := rt.fibers.Add(0, false, rootStack, continuation, entry)
	rt.running = root

	contextswitch.Jump(&rt.bootstrap, continuation)

	if res.panicked {
		return zero, errors.Wrapf(toError(res.recovered), "ringrt: root fiber panicked")
	}
	return res.value, nil
}

// Spawn creates a child of the running fiber, schedules it, and
// returns a handle to observe its eventual result. Must be called from
// inside a running fiber (i.e., inside Start).
func Spawn[T any](closure func() T) *JoinHandle[T] {
	rt := currentRuntime()

	childStack, err := rt.allocateStack()
	if err != nil {
		panic(errors.Wrap(err, "ringrt: allocating fiber stack"))
	}

	res := &spawnResult[T]{}
	entry := spawnTrampoline(rt, closure, res)
	continuation := contextswitch.PrepareStack(childStack.Base(), fiberEntryTrampoline)

	parent := rt.running
	child := rt.fibers.Add(parent, true, childStack, continuation, entry)
	rt.fibers.Get(parent).Children[child] = struct{}{}
	if rt.fibers.Get(parent).Cancelled {
		rt.fibers.Get(child).Cancelled = true
	}
	rt.schedule(child)

	return &JoinHandle[T]{rt: rt, fiber: child, result: res}
}

// YieldNow reschedules the running fiber behind whatever is already
// ready and switches to it. If the ready queue is empty even after
// draining completions, it returns immediately without switching.
func YieldNow() {
	rt := currentRuntime()
	rt.processIO()

	if len(rt.ready) == 0 {
		return
	}

	running := rt.running
	rt.schedule(running)
	to, _ := rt.popReady()
	rt.running = to

	toState := rt.fibers.Get(to)
	fromState := rt.fibers.Get(running)
	contextswitch.Jump(&fromState.Continuation, toState.Continuation)
}

// Waker schedules a specific parked fiber. Obtained via Park.
type Waker struct {
	rt    *runtimeState
	fiber fiber.Index
}

// Schedule idempotently appends the bound fiber back onto the ready
// queue. Safe to call more than once, and from within schedule itself.
func (w *Waker) Schedule() {
	w.rt.schedule(w.fiber)
}

// Park hands a Waker for the running fiber to schedule, then switches
// away. Execution resumes once some party calls the waker's Schedule.
func Park(schedule func(w *Waker)) {
	rt := currentRuntime()
	running := rt.running
	schedule(&Waker{rt: rt, fiber: running})
	rt.parkWithoutScheduling(running)
}

// Cancel sets the cancelled flag on the running fiber and every live
// descendant, waking any that are currently parked.
func Cancel() {
	rt := currentRuntime()
	cancelRecursive(rt, rt.running)
}

// IsCancelled reports whether the running fiber has been cancelled.
func IsCancelled() bool {
	rt := currentRuntime()
	return rt.fibers.Get(rt.running).Cancelled
}

// CancelPropagating cancels the nearest enclosing contained scope
// (the root fiber, by default) rather than just the running fiber.
func CancelPropagating() {
	rt := currentRuntime()
	cancelRecursive(rt, containingAncestor(rt, rt.running))
}

// JoinHandle observes the eventual result of a fiber spawned with Spawn.
type JoinHandle[T any] struct {
	rt     *runtimeState
	fiber  fiber.Index
	result *spawnResult[T]
}

// Join waits for the target fiber to complete and returns its result,
// or the error it panicked with. If the calling fiber is cancelled
// before the target completes (and the target itself is not already
// cancelled), Join returns ErrCancelled immediately without waiting —
// checked both before the first park and again every time Join is
// woken without the target having completed, since cancelRecursive can
// reschedule a parked joiner on its own without the target ever
// completing.
func (h *JoinHandle[T]) Join() (T, error) {
	var zero T
	rt := h.rt
	state := rt.fibers.Get(h.fiber)

	if !state.Completed {
		running := rt.running
		runningState := rt.fibers.Get(running)

		if runningState.Cancelled && !state.Cancelled {
			return zero, ErrCancelled
		}

		state.JoinState = fiber.JoinWaiting
		state.Waiter = running

		for {
			rt.parkWithoutScheduling(running)
			state = rt.fibers.Get(h.fiber)
			if state.Completed {
				break
			}
			if rt.fibers.Get(running).Cancelled && !state.Cancelled {
				state.JoinState = fiber.JoinUnused
				return zero, ErrCancelled
			}
		}
	}

	if h.result.panicked {
		return zero, errors.Wrapf(toError(h.result.recovered), "ringrt: spawned fiber panicked")
	}
	return h.result.value, nil
}

// Cancel sets the cancelled flag on the target fiber and every live
// descendant of it, waking any that are currently parked. The handle
// remains joinable afterward.
func (h *JoinHandle[T]) Cancel() {
	cancelRecursive(h.rt, h.fiber)
}

// CancelPropagating sets the cancelled flag on the target fiber and
// every live descendant of it.
func (h *JoinHandle[T]) CancelPropagating() {
	cancelRecursive(h.rt, h.fiber)
}

// Drop releases this handle's claim on the target fiber's stack and
// table slot. Go has no destructors, so collaborators must call this
// explicitly once they're done with a JoinHandle they do not intend to
// Join — exactly as a dropped Rust JoinHandle would.
func (h *JoinHandle[T]) Drop() {
	state := h.rt.fibers.Get(h.fiber)
	state.JoinState = fiber.JoinDropped
	if state.Completed {
		h.rt.reclaimStack(h.fiber)
	}
}
