// Copyright 2020 Dan Julio
// Copyright 2017 The Cacophony Project. All rights reserved.
// Use of this source code is governed by the Apache License Version 2.0;
// see the LICENSE file for further details.

package thermal

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakePacketSource replays a fixed sequence of packets, then returns
// discard packets forever once exhausted.
type fakePacketSource struct {
	packets [][]byte
	i       int
}

func (s *fakePacketSource) readPacket() ([]byte, error) {
	if s.i >= len(s.packets) {
		return discardPacket(), nil
	}
	p := s.packets[s.i]
	s.i++
	return p, nil
}

func discardPacket() []byte {
	p := make([]byte, vospiPacketLen)
	p[0] = 0x0F
	return p
}

// linePacket builds a valid VoSPI packet for the given line (and, if
// line == 20, segment) with a distinctive fill value so tests can
// check placement in the frame buffer.
func linePacket(line, segment byte, fill uint16) []byte {
	p := make([]byte, vospiPacketLen)
	p[0] = 0x00
	if line == segmentLineNum {
		p[0] = segment << 4
	}
	p[1] = line
	for i := vospiHeaderLen; i+1 < vospiPacketLen; i += 2 {
		p[i] = byte(fill >> 8)
		p[i+1] = byte(fill)
	}
	return p
}

func segmentPackets(segment byte, fill uint16) [][]byte {
	pkts := make([][]byte, 0, packetsPerSegment)
	for line := byte(0); line <= maxLineNum; line++ {
		pkts = append(pkts, linePacket(line, segment, fill))
	}
	return pkts
}

func TestAssemblerCompletesFourSegmentFrame(t *testing.T) {
	a := newAssembler()
	deadline := time.Now().Add(time.Second)

	for seg := byte(1); seg <= 4; seg++ {
		src := &fakePacketSource{packets: segmentPackets(seg, uint16(seg)*100)}
		done, err := a.transferSegment(src, deadline)
		require.NoError(t, err)
		if seg < 4 {
			assert.False(t, done)
		} else {
			assert.True(t, done)
		}
	}

	assert.Equal(t, uint16(100), a.buf[0][0])
	assert.Equal(t, uint16(200), a.buf[30][0])
	assert.Equal(t, uint16(400), a.buf[90][0])
}

func TestAssemblerRejectsOutOfSequenceSegment(t *testing.T) {
	a := newAssembler()
	deadline := time.Now().Add(time.Second)

	// Jump straight to segment 3 without segment 1/2: should never
	// leave segment 1 since validSegmentRegion never gets set.
	src := &fakePacketSource{packets: segmentPackets(3, 1)}
	done, err := a.transferSegment(src, deadline)
	require.NoError(t, err)
	assert.False(t, done)
	assert.Equal(t, 1, a.curSegment)
}

func TestAssemblerEndsSegmentOnRepeatedLine(t *testing.T) {
	a := newAssembler()
	deadline := time.Now().Add(time.Second)

	var pkts [][]byte
	for line := byte(0); line <= 5; line++ {
		pkts = append(pkts, linePacket(line, 0, 7))
	}
	pkts = append(pkts, linePacket(5, 0, 7)) // duplicate line 5

	src := &fakePacketSource{packets: pkts}
	done, err := a.transferSegment(src, deadline)
	require.NoError(t, err)
	assert.False(t, done)
}

func TestTransferSegmentGivesUpAtDeadline(t *testing.T) {
	a := newAssembler()
	src := &fakePacketSource{packets: nil} // every read is a discard packet
	done, err := a.transferSegment(src, time.Now().Add(5*time.Millisecond))
	require.NoError(t, err)
	assert.False(t, done)
}

type erroringSource struct{}

func (erroringSource) readPacket() ([]byte, error) {
	return nil, errors.New("spi failure")
}

func TestTransferSegmentPropagatesReadError(t *testing.T) {
	a := newAssembler()
	_, err := a.transferSegment(erroringSource{}, time.Now().Add(time.Second))
	assert.Error(t, err)
}
