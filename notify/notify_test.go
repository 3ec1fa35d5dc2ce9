// Copyright 2017 The Cacophony Project. All rights reserved.
// Use of this source code is governed by the Apache License Version 2.0;
// see the LICENSE file for further details.

package notify

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

const (
	evA Event = 1 << iota
	evB
	evC
)

func TestSignalThenWaitReturnsEvent(t *testing.T) {
	var s Set
	s.Signal(evA)
	assert.Equal(t, evA, s.Wait())
}

func TestCoalescesMultipleSignals(t *testing.T) {
	var s Set
	s.Signal(evA)
	s.Signal(evB)
	bits := s.Wait()
	assert.True(t, Has(bits, evA))
	assert.True(t, Has(bits, evB))
	assert.False(t, Has(bits, evC))
}

func TestWaitClearsSet(t *testing.T) {
	var s Set
	s.Signal(evA)
	s.Wait()
	bits := s.WaitTimeout(10 * time.Millisecond)
	assert.Equal(t, Event(0), bits)
}

func TestWaitBlocksUntilSignalled(t *testing.T) {
	var s Set
	done := make(chan Event, 1)
	go func() {
		done <- s.Wait()
	}()

	time.Sleep(10 * time.Millisecond)
	s.Signal(evC)

	select {
	case bits := <-done:
		assert.Equal(t, evC, bits)
	case <-time.After(time.Second):
		t.Fatal("Wait did not return after Signal")
	}
}

func TestWaitTimeoutExpires(t *testing.T) {
	var s Set
	start := time.Now()
	bits := s.WaitTimeout(20 * time.Millisecond)
	assert.Equal(t, Event(0), bits)
	assert.True(t, time.Since(start) >= 20*time.Millisecond)
}
