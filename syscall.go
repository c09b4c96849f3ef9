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
	"syscall"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"

	"github.com/ringrt/ringrt/internal/fiber"
	"github.com/ringrt/ringrt/iouring"
)

// Syscall submits entry to the kernel on behalf of the running fiber
// and parks it until a completion (or cancellation) arrives.
//
// entry's UserData field is overwritten with the running fiber's
// index: the whole point of routing every blocking operation through
// this one function is that the completion dispatcher never needs any
// tracking structure beyond the fiber table itself.
func Syscall(entry iouring.SubmissionEntry) (uint32, error) {
	rt := currentRuntime()
	running := rt.running

	if rt.fibers.Get(running).Cancelled {
		return 0, ErrCancelled
	}

	submit(rt, running, entry)
	rt.parkWithoutScheduling(running)

	state := rt.fibers.Get(running)
	for !state.PendingSyscall.Valid {
		if !state.Cancelled {
			panic("ringrt: fiber resumed mid-syscall with neither a result nor a cancellation")
		}
		rt.ring.Cancel(uint64(running))
		if _, err := rt.ring.Submit(); err != nil {
			panic(errors.Wrap(err, "ringrt: submitting cancellation"))
		}
		rt.parkWithoutScheduling(running)
		state = rt.fibers.Get(running)
	}

	result := state.PendingSyscall
	state.PendingSyscall = fiber.SyscallResult{}
	return decodeResult(result)
}

func submit(rt *runtimeState, running fiber.Index, entry iouring.SubmissionEntry) {
	sqe := rt.ring.PeekSQE(true)
	if sqe == nil {
		if _, err := rt.ring.Submit(); err != nil {
			panic(errors.Wrap(err, "ringrt: submitting to make room in the ring"))
		}
		sqe = rt.ring.PeekSQE(true)
		if sqe == nil {
			panic("ringrt: submission ring has no free slots even after a flush")
		}
	}
	*sqe = entry
	sqe.UserData = uint64(running)
	rt.ring.AdvanceSQ()

	if _, err := rt.ring.Submit(); err != nil {
		panic(errors.Wrap(err, "ringrt: submitting syscall"))
	}
}

func decodeResult(result fiber.SyscallResult) (uint32, error) {
	if result.Errno != 0 {
		errno := syscall.Errno(-result.Errno)
		if errno == unix.ECANCELED {
			return 0, ErrCancelled
		}
		return 0, errors.Wrapf(errno, "ringrt: syscall failed")
	}
	return uint32(result.Value), nil
}

// NOP issues a no-op syscall, useful for exercising the syscall bridge
// and the kernel round trip without any side effect.
func NOP() error {
	var entry iouring.SubmissionEntry
	entry.Opcode = iouring.IORING_OP_NOP
	_, err := Syscall(entry)
	return err
}
