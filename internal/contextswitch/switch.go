// Package contextswitch implements userspace stack switching.
//
// It is the only architecture-specific part of the core. Grounded on the
// two-primitive design of original_source/src/runtime/context_switch.rs
// (prepare_stack/jump); the assembly itself has no counterpart anywhere
// in the retrieval pack (no .s files exist in any example repo) and is
// written from first principles following Go's calling convention for
// the target architecture.
package contextswitch

import (
	"reflect"
)

// Continuation is an opaque saved stack pointer. The zero value is never
// valid; it is only ever produced by PrepareStack or by Jump writing
// through its from argument.
type Continuation uintptr

// Trampoline is the function a freshly prepared stack begins executing
// at. It receives no arguments (all fiber state is reached through
// runtime globals) and must never return.
type Trampoline func()

// FuncEntry resolves the machine code entry point of a trampoline, for
// use with PrepareStack. fn must not be a method value or a closure
// that captures variables: it is reached by a raw jump with no Go
// calling-convention context in effect, so any captured-variable state
// a closure would need is never set up. Callers needing per-fiber state
// must stash it somewhere reachable by other means (see
// fiber.State.Entry) and look it up from inside a plain function.
func FuncEntry(fn Trampoline) uintptr {
	return reflect.ValueOf(fn).Pointer()
}

// PrepareStack is the exported, architecture-independent entry point.
func PrepareStack(base uintptr, fn Trampoline) Continuation {
	return prepareStack(base, FuncEntry(fn))
}

// Jump is the exported, architecture-independent entry point.
func Jump(from *Continuation, to Continuation) {
	jump(from, to)
}
