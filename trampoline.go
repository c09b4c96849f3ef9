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
	"runtime/debug"

	"github.com/ringrt/ringrt/internal/contextswitch"
	"github.com/ringrt/ringrt/internal/fiber"
	"github.com/ringrt/ringrt/internal/rtlog"
)

// spawnResult is the Go-managed stand-in for the Rust original's
// "union cell at the top of the stack": a single slot that first holds
// nothing, then (after the closure runs) holds either its return value
// or a captured panic.
//
// Go closures already heap-allocate their captured variables under GC
// supervision, so backing this with a plain Go pointer is strictly
// safer than replaying the raw-stack-memory trick the Rust
// implementation uses to avoid a heap allocation per spawn — the
// logical "one cell, two lifetimes" shape survives; only the storage
// changes.
type spawnResult[T any] struct {
	value     T
	panicked  bool
	recovered interface{}
	stack     string
}

func runGuarded[T any](closure func() T, res *spawnResult[T]) {
	defer func() {
		if r := recover(); r != nil {
			res.panicked = true
			res.recovered = r
			res.stack = string(debug.Stack())
		}
	}()
	res.value = closure()
}

// fiberEntryTrampoline is the one machine code address every fiber's
// prepared stack actually jumps to. Raw stack switching (see package
// contextswitch) resumes execution with a bare RET and no Go calling
// convention in effect, so the jumped-to function can capture nothing:
// it must be a plain package-level func. The real, per-fiber body
// (rootTrampoline's or spawnTrampoline's closure, which does capture
// its runtime, user closure, and result slot) is instead stashed in the
// fiber table and invoked here as an ordinary Go call once the fiber
// table already knows which fiber is running.
func fiberEntryTrampoline() {
	rt := currentRuntime()
	entry := rt.fibers.Get(rt.running).Entry
	entry()
}

// rootTrampoline is the entry point of the fiber created by Start. It
// has no parent and no join handle, so on completion it reclaims its
// own stack and table slot directly instead of deferring to the
// JoinHandle lifecycle the way spawnTrampoline does.
func rootTrampoline[T any](rt *runtimeState, closure func() T, res *spawnResult[T]) contextswitch.Trampoline {
	return func() {
		running := rt.running

		runGuarded(closure, res)

		state := rt.fibers.Get(running)
		state.Completed = true
		state.Cancelled = true

		if len(state.Children) > 0 {
			rt.parkWithoutScheduling(running)
		}

		rt.reclaimStack(running)

		var dummy contextswitch.Continuation
		contextswitch.Jump(&dummy, rt.bootstrap)
		panic("ringrt: unreachable: resumed a reclaimed root fiber")
	}
}

// spawnTrampoline is the entry point of every fiber created by Spawn.
// Mirrors original_source/src/runtime/mod.rs's spawn_trampoline, with
// its stack-pool/slot-removal decision reconciled to the stricter rule
// documented in SPEC_FULL.md: a slot is freed only when the fiber is
// both completed and its join handle dropped, checked here and in
// JoinHandle.Drop.
func spawnTrampoline[T any](rt *runtimeState, closure func() T, res *spawnResult[T]) contextswitch.Trampoline {
	return func() {
		running := rt.running

		runGuarded(closure, res)

		state := rt.fibers.Get(running)
		state.Completed = true
		state.Cancelled = true

		if len(state.Children) > 0 {
			rt.parkWithoutScheduling(running)
			state = rt.fibers.Get(running)
		}

		if state.JoinState == fiber.JoinWaiting {
			rt.schedule(state.Waiter)
		} else if res.panicked {
			rtlog.L().WithField("stack", res.stack).
				Warn("ringrt: fiber panicked with no joiner to observe it; cancel-propagating")
			cancelRecursive(rt, containingAncestor(rt, running))
		}

		if state.HasParent {
			parent := rt.fibers.Get(state.Parent)
			delete(parent.Children, running)
			if parent.Completed && len(parent.Children) == 0 {
				rt.schedule(state.Parent)
			}
		}

		if state.JoinState == fiber.JoinDropped {
			rt.reclaimStack(running)
		}

		to := rt.processIOAndWait()
		toState := rt.fibers.Get(to)
		var dummy contextswitch.Continuation
		contextswitch.Jump(&dummy, toState.Continuation)
		panic("ringrt: unreachable: resumed a terminated fiber")
	}
}
