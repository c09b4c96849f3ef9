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

// Package syncx is intra-runtime synchronization built directly on
// ringrt's Park/Waker primitive, translated from the
// Future/Waker idiom of original_source/src/sync/notify.rs and
// channel.rs into fiber park/wake: where the original registers a
// std::task::Waker with an async executor, this registers a
// ringrt.Waker with the fiber scheduler.
package syncx

import "github.com/ringrt/ringrt"

// Notify holds an ordered queue of fibers awaiting a signal. A
// runtime's fibers run strictly one at a time, so there is no locking
// here beyond what ringrt's own Park/Waker contract already gives.
type Notify struct {
	waiters []*ringrt.Waker
}

// NewNotify creates an empty Notify.
func NewNotify() *Notify {
	return &Notify{}
}

// Wait parks the calling fiber until NotifyOne or NotifyAll selects it.
func (n *Notify) Wait() {
	ringrt.Park(func(w *ringrt.Waker) {
		n.waiters = append(n.waiters, w)
	})
}

// NotifyOne wakes the longest-waiting registered fiber, if any.
func (n *Notify) NotifyOne() {
	if len(n.waiters) == 0 {
		return
	}
	w := n.waiters[0]
	n.waiters = n.waiters[1:]
	w.Schedule()
}

// NotifyAll wakes every currently registered fiber.
func (n *Notify) NotifyAll() {
	waiters := n.waiters
	n.waiters = nil
	for _, w := range waiters {
		w.Schedule()
	}
}
