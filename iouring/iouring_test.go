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

package iouring

import (
	"net"
	"runtime"
	"sync"
	"syscall"
	"testing"
	"time"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// skipIfUnsupported checks if io_uring is available and skips the test if not.
func skipIfUnsupported(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("io_uring is only supported on Linux")
	}

	ring, err := New(Config{Entries: 2})
	if err != nil {
		t.Skipf("io_uring unavailable: %v", err)
	}
	ring.Close()
}

func getFd(t *testing.T, conn net.Conn) int {
	t.Helper()

	syscallConn, err := conn.(syscall.Conn).SyscallConn()
	require.NoError(t, err)

	var fd int
	err = syscallConn.Control(func(f uintptr) {
		fd = int(f)
	})
	require.NoError(t, err)

	return fd
}

type connPair struct {
	client net.Conn
	server net.Conn
}

func (p *connPair) Close() {
	_ = p.client.Close()
	_ = p.server.Close()
}

func createConnections(t *testing.T, n int) []connPair {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	ret := make([]connPair, n)
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < n; i++ {
			conn, err := ln.Accept()
			require.NoError(t, err)
			ret[i].server = conn
		}
	}()
	addr := ln.Addr().String()
	for i := 0; i < n; i++ {
		conn, err := net.Dial("tcp", addr)
		require.NoError(t, err)
		ret[i].client = conn
	}
	wg.Wait()
	return ret
}

func TestConnectionReadWrite(t *testing.T) {
	skipIfUnsupported(t)

	ring, err := New(Config{Entries: 10})
	require.NoError(t, err)
	defer ring.Close()

	c := createConnections(t, 1)[0]
	defer c.Close()

	readBuf := make([]byte, 128)
	readIov := Iovec{}
	readIov.Set(readBuf)

	sqe := ring.PeekSQE(true)
	sqe.Opcode = IORING_OP_READV
	sqe.Fd = int32(getFd(t, c.server))
	sqe.Addr = uint64(uintptr(unsafe.Pointer(&readIov)))
	sqe.Len = 1
	sqe.UserData = 100
	ring.AdvanceSQ()

	testData := []byte("hello world")
	var writeIov [3]Iovec
	writeIov[0].Set(testData[0:6])
	writeIov[1].Set(testData[6:7])
	writeIov[2].Set(testData[7:])

	sqe = ring.PeekSQE(true)
	sqe.Opcode = IORING_OP_WRITEV
	sqe.Fd = int32(getFd(t, c.client))
	sqe.Addr = uint64(uintptr(unsafe.Pointer(&writeIov[0])))
	sqe.Len = 3
	sqe.UserData = 200
	ring.AdvanceSQ()

	submitted, err := ring.Submit()
	require.NoError(t, err)
	require.Equal(t, 2, submitted)

	var readRes, writeRes int32
	for i := 0; i < 2; i++ {
		cqe, err := ring.WaitCQE()
		require.NoError(t, err)

		switch cqe.UserData {
		case 100:
			require.GreaterOrEqual(t, cqe.Res, int32(0))
			readRes = cqe.Res
		case 200:
			require.GreaterOrEqual(t, cqe.Res, int32(0))
			writeRes = cqe.Res
		default:
			require.Fail(t, "unexpected user data")
		}
		ring.AdvanceCQ()
	}

	require.Equal(t, int32(len(testData)), writeRes)
	require.Equal(t, int32(len(testData)), readRes)

	readData := readBuf[:readRes]
	assert.Equal(t, string(testData), string(readData))
}

func TestConnectionClosed(t *testing.T) {
	skipIfUnsupported(t)

	const numConns = 10

	ring, err := New(Config{Entries: 2 * numConns})
	require.NoError(t, err)
	defer ring.Close()

	conns := createConnections(t, numConns)
	defer func() {
		for _, p := range conns {
			p.Close()
		}
	}()

	for i := 0; i < numConns; i++ {
		sqe := ring.PeekSQE(true)
		require.NotNil(t, sqe)
		sqe.Opcode = IORING_OP_POLL_ADD
		sqe.Fd = int32(getFd(t, conns[i].server))
		sqe.UserData = uint64(i)
		sqe.OpcodeFlags = uint32(POLLHUP | POLLERR | POLLRDHUP)
		ring.AdvanceSQ()
	}
	submitted, err := ring.Submit()
	require.NoError(t, err)
	require.Equal(t, numConns, submitted)

	closedIndices := make(map[int]bool)
	for _, i := range []int{1, 4, 7} {
		conns[i].client.Close()
		closedIndices[i] = true
	}

	time.Sleep(10 * time.Millisecond)
	for i := 0; i < len(closedIndices); i++ {
		cqe := ring.PeekCQE()
		require.NotNil(t, cqe)
		assert.True(t, closedIndices[int(cqe.UserData)])
		assert.NotZero(t, uint32(cqe.Res)&(POLLHUP|POLLRDHUP|POLLERR))
		ring.AdvanceCQ()
	}
}

func TestCancelSentinelDiscarded(t *testing.T) {
	skipIfUnsupported(t)

	ring, err := New(Config{Entries: 8})
	require.NoError(t, err)
	defer ring.Close()

	sqe := ring.PeekSQE(true)
	sqe.Opcode = IORING_OP_NOP
	sqe.UserData = 42
	ring.AdvanceSQ()

	submitted, err := ring.Submit()
	require.NoError(t, err)
	require.Equal(t, 1, submitted)

	ring.Cancel(42)
	submitted, err = ring.Submit()
	require.NoError(t, err)
	require.Equal(t, 1, submitted)

	seenFiber, seenCancel := false, false
	for i := 0; i < 2; i++ {
		cqe, err := ring.WaitCQE()
		require.NoError(t, err)
		if IsCancelSentinel(cqe.UserData) {
			seenCancel = true
		} else {
			assert.Equal(t, uint64(42), cqe.UserData)
			seenFiber = true
		}
		ring.AdvanceCQ()
	}
	assert.True(t, seenFiber)
	assert.True(t, seenCancel)
}
