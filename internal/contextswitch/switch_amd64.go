//go:build amd64

package contextswitch

// prepareStack arranges for the first jump targeting the returned
// continuation to begin execution at the code address entry, running on
// base (the highest address of a stack allocated by package stack).
//
// Implemented in switch_amd64.s.
func prepareStack(base uintptr, entry uintptr) Continuation

// jump spills the caller's callee-saved registers onto its own stack,
// records the resulting stack pointer through from, then restores the
// register set saved at to and resumes execution there.
//
// jump returns only once some later jump targets the continuation that
// was written through from. Implemented in switch_amd64.s.
func jump(from *Continuation, to Continuation)
