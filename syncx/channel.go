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

package syncx

import (
	"github.com/pkg/errors"

	"github.com/ringrt/ringrt"
)

// ErrClosed is returned by Recv once a channel's queue has drained and
// its sending side has closed. Declared as a plain sentinel compared
// via errors.Is, the same convention the teacher's xbuf/bufiox-style
// packages use for their own sentinel errors.
var ErrClosed = errors.New("syncx: channel closed")

// Channel is a single-runtime FIFO message queue built on Notify.
// Unlike a Go channel, it has no separate Sender/Receiver handle types
// (the original_source split exists to let the borrow checker enforce
// close-direction; Go's GC makes that unnecessary) — any number of
// fibers may call Send, Recv, and Close on the same *Channel.
type Channel[MSG any] struct {
	queue    []MSG
	capacity int // 0 means unbounded

	noLongerFull  *Notify
	noLongerEmpty *Notify

	closed bool
}

// NewUnbounded creates a channel with no capacity limit; Send never
// suspends.
func NewUnbounded[MSG any]() *Channel[MSG] {
	return &Channel[MSG]{
		noLongerFull:  NewNotify(),
		noLongerEmpty: NewNotify(),
	}
}

// NewBounded creates a channel that holds at most capacity messages;
// Send suspends once full. capacity must be positive.
func NewBounded[MSG any](capacity int) *Channel[MSG] {
	if capacity <= 0 {
		panic("syncx: bounded channel capacity must be positive")
	}
	return &Channel[MSG]{
		capacity:      capacity,
		noLongerFull:  NewNotify(),
		noLongerEmpty: NewNotify(),
	}
}

// Send enqueues msg, suspending (on a bounded channel, at capacity)
// until there is room. If the calling fiber is cancelled while about
// to suspend, Send returns ringrt.ErrCancelled without enqueueing. If
// the channel is closed while Send is suspended waiting for room (or
// is already closed when called, still at capacity), Send returns
// ErrClosed without enqueueing: a close means no further draining is
// promised, so a permanently full channel can never be waited out.
func (c *Channel[MSG]) Send(msg MSG) error {
	for {
		if c.capacity == 0 || len(c.queue) < c.capacity {
			c.queue = append(c.queue, msg)
			c.noLongerEmpty.NotifyOne()
			return nil
		}

		if c.closed {
			return ErrClosed
		}

		if ringrt.IsCancelled() {
			return ringrt.ErrCancelled
		}
		c.noLongerFull.Wait()
	}
}

// Recv dequeues the oldest pending message, suspending while the queue
// is empty and the channel is open. Returns ErrClosed once the queue
// is empty and Close has been called. If the calling fiber is
// cancelled while about to suspend, Recv returns ringrt.ErrCancelled
// without consuming a message — an addition over original_source's
// channel.rs, which has no cancellation concept.
func (c *Channel[MSG]) Recv() (MSG, error) {
	var zero MSG
	for {
		if len(c.queue) > 0 {
			msg := c.queue[0]
			c.queue = c.queue[1:]
			c.noLongerFull.NotifyOne()
			return msg, nil
		}

		if c.closed {
			return zero, ErrClosed
		}

		if ringrt.IsCancelled() {
			return zero, ringrt.ErrCancelled
		}
		c.noLongerEmpty.Wait()
	}
}

// Close marks the channel closed: pending messages remain receivable,
// but once drained, Recv returns ErrClosed, and any fiber suspended in
// Send waiting for room wakes to ErrClosed instead of waiting forever
// for a drain that will never come. Safe to call more than once.
func (c *Channel[MSG]) Close() {
	if c.closed {
		return
	}
	c.closed = true
	c.noLongerEmpty.NotifyAll()
	c.noLongerFull.NotifyAll()
}
