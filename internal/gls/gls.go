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

// Package gls gives package ringrt a goroutine-local identity to key
// its per-thread runtime state on, since Go exposes no native
// thread-local or goroutine-local storage.
//
// Combined with runtime.LockOSThread (one goroutine pinned exclusively
// to one OS thread for the lifetime of a ringrt.Start call), a
// goroutine id is equivalent to the OS-thread-local key the original
// design calls for.
package gls

import (
	"runtime"
	"strconv"

	"github.com/ringrt/ringrt/internal/unsafex"
)

// ID returns the calling goroutine's runtime-assigned numeric id.
//
// There is no supported Go API for this. Parsing it out of the header
// line of a runtime.Stack dump ("goroutine 37 [running]:") is the
// standard workaround used throughout the ecosystem for pure-Go
// goroutine-local storage, in place of a cgo or go:linkname trick.
func ID() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	b := buf[:n]

	const prefix = "goroutine "
	for i := 0; i < len(prefix); i++ {
		if b[i] != prefix[i] {
			panic("gls: unexpected runtime.Stack header")
		}
	}
	b = b[len(prefix):]

	end := 0
	for end < len(b) && b[end] != ' ' {
		end++
	}

	id, err := strconv.ParseUint(unsafex.BinaryToString(b[:end]), 10, 64)
	if err != nil {
		panic("gls: could not parse goroutine id: " + err.Error())
	}
	return id
}
