// Copyright 2017 The Cacophony Project. All rights reserved.
// Use of this source code is governed by the Apache License Version 2.0;
// see the LICENSE file for further details.

// Package syncbus provides the two sharing primitives the device's
// activities need around physical buses and frame buffers that only
// one activity may touch at a time: a Mutex meant to be held across a
// whole multi-transaction interaction with a bus rather than per
// transaction, and a generic ownership Token for handing a shared
// buffer from a producer to a consumer without copying it.
package syncbus

import "sync"

// Mutex guards a shared physical bus (the VSPI bus shared by the
// visual imager, the display and the touchscreen; the I2C bus shared
// by the thermal imager's CCI interface, the RTC/parameter store, and
// the sensor sampler). Callers must hold it for an entire multi-step
// interaction with the bus, not re-acquire it per transfer, since the
// bus is not safe to interleave mid-sequence.
type Mutex struct {
	mu sync.Mutex
}

// Lock acquires exclusive use of the bus.
func (m *Mutex) Lock() { m.mu.Lock() }

// Unlock releases the bus for the next holder.
func (m *Mutex) Unlock() { m.mu.Unlock() }

// Token hands a value of type T from exactly one producer to exactly
// one consumer at a time, without copying it on every notification.
// It implements the "ownership token" pattern: a producer calls
// Publish to hand a value over; the consumer calls Take to receive
// it, which returns the token to the producer for the next Publish.
type Token[T any] struct {
	mu    sync.Mutex
	value T
	held  bool
}

// NewToken returns a Token initially owned by the producer, holding
// empty.
func NewToken[T any]() *Token[T] {
	return &Token[T]{held: true}
}

// Publish hands v to the consumer. It must only be called while the
// token is held by the producer (i.e. after construction or after a
// prior Take).
func (t *Token[T]) Publish(v T) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.value = v
	t.held = false
}

// Take returns the published value and true, handing the token back
// to the producer, or the zero value and false if nothing has been
// published since the last Take.
func (t *Token[T]) Take() (T, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.held {
		var zero T
		return zero, false
	}
	v := t.value
	t.held = true
	return v, true
}
