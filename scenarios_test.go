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

package ringrt_test

import (
	"runtime"
	"testing"
	"time"
	"unsafe"

	"github.com/stretchr/testify/require"

	"github.com/ringrt/ringrt"
	"github.com/ringrt/ringrt/iouring"
)

// skipIfUnsupported mirrors iouring_test.go's helper: these scenarios
// need a real kernel to submit against.
func skipIfUnsupported(t *testing.T) {
	t.Helper()
	if runtime.GOOS != "linux" {
		t.Skip("io_uring is only supported on Linux")
	}
	ring, err := iouring.New(iouring.Config{Entries: 2})
	if err != nil {
		t.Skipf("io_uring unavailable: %v", err)
	}
	ring.Close()
}

// sleepFor submits an IORING_OP_TIMEOUT for d and waits on it, for use
// by scenarios that need a fiber to block for a known duration. A
// timeout that expires naturally completes with -ETIME, which is not
// a failure for this purpose, so the error is deliberately ignored by
// callers that only care about elapsed wall-clock time or
// cancellation.
func sleepFor(d time.Duration) error {
	ts := iouring.TimeSpec{TvSec: int64(d / time.Second), TvNsec: int64(d % time.Second)}
	var entry iouring.SubmissionEntry
	entry.Opcode = iouring.IORING_OP_TIMEOUT
	entry.Addr = uint64(uintptr(unsafe.Pointer(&ts)))
	entry.Len = 1
	_, err := ringrt.Syscall(entry)
	return err
}

func TestStartReturnsClosureResult(t *testing.T) {
	skipIfUnsupported(t)

	result, err := ringrt.Start(func() int { return 123 })
	require.NoError(t, err)
	require.Equal(t, 123, result)
}

func TestStartWaitsForForgottenChild(t *testing.T) {
	skipIfUnsupported(t)

	start := time.Now()
	_, err := ringrt.Start(func() int {
		ringrt.Spawn(func() int {
			_ = sleepFor(5 * time.Millisecond)
			return 0
		})
		return 0
	})
	elapsed := time.Since(start)

	require.NoError(t, err)
	require.GreaterOrEqual(t, elapsed, 5*time.Millisecond)
}

func TestSiblingWriteObservedOnlyAfterYield(t *testing.T) {
	skipIfUnsupported(t)

	_, err := ringrt.Start(func() int {
		observed := 0

		handle := ringrt.Spawn(func() int {
			observed = 1
			return 0
		})

		// The child is scheduled but has not run yet: nothing has
		// switched away from the parent since Spawn returned.
		require.Equal(t, 0, observed)

		ringrt.YieldNow()
		require.Equal(t, 1, observed)

		_, joinErr := handle.Join()
		require.NoError(t, joinErr)
		return 0
	})
	require.NoError(t, err)
}

func TestNOPSyscallReturnsZero(t *testing.T) {
	skipIfUnsupported(t)

	_, err := ringrt.Start(func() int {
		require.NoError(t, ringrt.NOP())
		return 0
	})
	require.NoError(t, err)
}

func TestCancelMidSleepReturnsPromptly(t *testing.T) {
	skipIfUnsupported(t)

	const sleepDuration = 200 * time.Millisecond

	_, err := ringrt.Start(func() int {
		handle := ringrt.Spawn(func() int {
			_ = sleepFor(sleepDuration)
			return 0
		})

		ringrt.YieldNow()
		handle.Cancel()

		start := time.Now()
		_, joinErr := handle.Join()
		elapsed := time.Since(start)

		// The child observes cancellation inside sleepFor (which it
		// ignores), completes normally, and wakes this joiner well
		// before the original sleep duration would have elapsed.
		require.NoError(t, joinErr)
		require.Less(t, elapsed, sleepDuration/2)
		return 0
	})
	require.NoError(t, err)
}
