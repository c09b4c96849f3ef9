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

package buffer

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/require"
)

func skipIfUnsupported(t *testing.T) {
	t.Helper()
	if runtime.GOOS != "linux" {
		t.Skip("dual mmap requires Linux")
	}
}

func pattern(n, offset int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte((i + offset) % 251)
	}
	return b
}

func TestNewRejectsNonPositiveLength(t *testing.T) {
	_, _, err := New(0)
	require.Error(t, err)
}

func TestLengthRoundsUpToPageAndPowerOfTwo(t *testing.T) {
	length, err := calculateLength(1)
	require.NoError(t, err)
	require.Equal(t, pageSize, length)

	length, err = calculateLength(pageSize + 1)
	require.NoError(t, err)
	require.Equal(t, nextPowerOfTwo(2*pageSize), length)
}

// TestWrapAroundIsContiguous is the circular buffer wrap scenario: fill
// a 4096-byte buffer to one byte short of full, drain it completely,
// then write two more bytes. Those two bytes land on either side of
// the physical wraparound point but must read back as one contiguous
// slice thanks to the dual mapping.
func TestWrapAroundIsContiguous(t *testing.T) {
	skipIfUnsupported(t)

	data, uninit, err := New(4096)
	require.NoError(t, err)
	defer data.Close()

	require.Equal(t, 4096, uninit.Len())
	first := pattern(4095, 0)
	n := copy(uninit.Bytes(), first)
	require.Equal(t, 4095, n)
	uninit.Commit(4095)

	require.Equal(t, 4095, data.Len())
	require.Equal(t, first, data.Bytes())
	data.Consume(4095)
	require.Equal(t, 0, data.Len())

	require.Equal(t, 4096, uninit.Len())
	second := pattern(2, 4095)
	n = copy(uninit.Bytes(), second)
	require.Equal(t, 2, n)
	uninit.Commit(2)

	require.Equal(t, 2, data.Len())
	require.Equal(t, second, data.Bytes())
}

func TestConsumeBeyondCommittedPanics(t *testing.T) {
	skipIfUnsupported(t)

	data, uninit, err := New(4096)
	require.NoError(t, err)
	defer data.Close()

	uninit.Commit(10)
	require.Panics(t, func() { data.Consume(11) })
}

func TestCommitBeyondUninitPanics(t *testing.T) {
	skipIfUnsupported(t)

	_, uninit, err := New(4096)
	require.NoError(t, err)

	require.Panics(t, func() { uninit.Commit(uninit.Len() + 1) })
}

func TestCloseIsIdempotent(t *testing.T) {
	skipIfUnsupported(t)

	data, _, err := New(4096)
	require.NoError(t, err)
	require.NoError(t, data.Close())
	require.NoError(t, data.Close())
}
