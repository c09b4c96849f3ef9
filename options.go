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

import "github.com/ringrt/ringrt/iouring"

// defaultRingEntries matches the ring size original_source/src/runtime/uring.rs
// requests.
const defaultRingEntries = 1024

// defaultGuardPages and defaultUsableStackPages match the values
// original_source/src/runtime/mod.rs's allocate_stack uses.
const (
	defaultGuardPages       = 1
	defaultUsableStackPages = 32
)

type config struct {
	ringEntries      uint32
	guardPages       int
	usableStackPages int
}

func defaultConfig() config {
	return config{
		ringEntries:      defaultRingEntries,
		guardPages:       defaultGuardPages,
		usableStackPages: defaultUsableStackPages,
	}
}

// Option configures Start. Modeled on the teacher's functional-option
// style (iouring.Config{...}) generalized into the with-func idiom
// used broadly across the ecosystem's configuration layers.
type Option func(*config)

// WithRingEntries overrides the number of io_uring submission slots
// requested at startup. The kernel clamps an oversized request rather
// than failing (see iouring.New).
func WithRingEntries(n uint32) Option {
	return func(c *config) { c.ringEntries = n }
}

// WithGuardPages overrides the number of inaccessible (PROT_NONE) guard
// pages at the low end of each fiber's stack mapping.
func WithGuardPages(n int) Option {
	return func(c *config) { c.guardPages = n }
}

// WithUsableStackPages overrides the number of usable pages in each
// fiber's stack.
func WithUsableStackPages(n int) Option {
	return func(c *config) { c.usableStackPages = n }
}

func (c config) ringConfig() iouring.Config {
	return iouring.Config{Entries: c.ringEntries}
}
