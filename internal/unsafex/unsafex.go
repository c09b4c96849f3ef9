//go:build go1.21

/*
 * Copyright 2024 CloudWeGo Authors
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

// Package unsafex is zero-copy string/[]byte conversion, used on
// internal/gls's goroutine-id parsing path: ID() extracts a decimal id
// out of a runtime.Stack dump on every currentRuntime() call, and
// strconv.ParseUint needs a string — BinaryToString avoids copying the
// parsed byte slice just to satisfy that signature.
package unsafex

import "unsafe"

// BinaryToString converts []byte to string without copy. The result
// aliases b's backing array; the caller must not mutate b afterward.
func BinaryToString(b []byte) string {
	return unsafe.String(unsafe.SliceData(b), len(b))
}

// StringToBinary converts string to []byte without copy. The result
// aliases s's backing storage and must not be mutated.
func StringToBinary(s string) []byte {
	return unsafe.Slice(unsafe.StringData(s), len(s))
}
