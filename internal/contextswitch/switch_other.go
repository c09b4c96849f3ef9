//go:build !amd64

package contextswitch

// prepareStack and jump have only ever been written for amd64 (see
// switch_amd64.s): the core's context-switch primitive is, per design,
// the one non-portable component. original_source/src/runtime/context_switch.rs
// takes the same stance with a compile_error! outside x86_64.

func prepareStack(base uintptr, entry uintptr) Continuation {
	panic("contextswitch: no stack-switching implementation for this architecture")
}

func jump(from *Continuation, to Continuation) {
	panic("contextswitch: no stack-switching implementation for this architecture")
}
