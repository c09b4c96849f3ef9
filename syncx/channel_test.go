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

package syncx_test

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ringrt/ringrt"
	"github.com/ringrt/ringrt/iouring"
	"github.com/ringrt/ringrt/syncx"
)

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

// TestChannelClosedObservedAfterDrain is the channel-closed scenario:
// an unbounded channel's receiver observes a sent value before it
// observes the channel's closure.
func TestChannelClosedObservedAfterDrain(t *testing.T) {
	skipIfUnsupported(t)

	_, err := ringrt.Start(func() int {
		ch := syncx.NewUnbounded[int]()
		require.NoError(t, ch.Send(42))
		ch.Close()

		v, err := ch.Recv()
		require.NoError(t, err)
		require.Equal(t, 42, v)

		_, err = ch.Recv()
		require.ErrorIs(t, err, syncx.ErrClosed)
		return 0
	})
	require.NoError(t, err)
}

// TestBoundedChannelBlocksProducer exercises Notify's park/wake path: a
// producer fills a bounded channel, its second Send must suspend until
// a consumer, running as a child fiber, drains the first message.
func TestBoundedChannelBlocksProducer(t *testing.T) {
	skipIfUnsupported(t)

	_, err := ringrt.Start(func() int {
		ch := syncx.NewBounded[int](1)
		var received []int

		consumer := ringrt.Spawn(func() int {
			for i := 0; i < 2; i++ {
				v, err := ch.Recv()
				require.NoError(t, err)
				received = append(received, v)
			}
			return 0
		})

		require.NoError(t, ch.Send(1))
		require.NoError(t, ch.Send(2))

		_, joinErr := consumer.Join()
		require.NoError(t, joinErr)
		require.Equal(t, []int{1, 2}, received)
		return 0
	})
	require.NoError(t, err)
}

func TestNewBoundedRejectsNonPositiveCapacity(t *testing.T) {
	require.Panics(t, func() { syncx.NewBounded[int](0) })
}
