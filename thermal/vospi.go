// Copyright 2020 Dan Julio
// Copyright 2017 The Cacophony Project. All rights reserved.
// Use of this source code is governed by the Apache License Version 2.0;
// see the LICENSE file for further details.

package thermal

import (
	"errors"
	"time"
)

// packetSource reads one raw 164-byte VoSPI packet from the sensor.
// It never returns a short read; the returned slice is only valid
// until the next call.
type packetSource interface {
	readPacket() ([]byte, error)
}

// assembler reassembles the four 60-packet segments of a VoSPI stream
// into a Frame. Segment state (curSegment, validSegmentRegion) is
// carried across calls to transferSegment, since one call only
// attempts to acquire a single segment within one vsync period.
//
// This is a direct port of the segment/line/discard-packet state
// machine: frame reassembly only trusts packets once a segment 1
// header has been positively identified at line 20, and any
// unexpected segment number restarts the search from segment 1. A
// repeated line number ends the current attempt without advancing
// or resetting the segment state.
type assembler struct {
	buf                Frame
	curSegment         int
	validSegmentRegion bool
}

func newAssembler() *assembler {
	return &assembler{curSegment: 1}
}

// transferSegment attempts to read one segment's worth of packets
// before deadline. It returns true once the fourth segment of a frame
// has been completed, at which point buf holds the whole frame.
func (a *assembler) transferSegment(src packetSource, deadline time.Time) (bool, error) {
	prevLine := byte(noPrevLine)
	beforeValidData := true
	success := false

	for {
		data, line, seg, ok, err := readValidPacket(src)
		if err != nil {
			return false, err
		}
		if !ok {
			if time.Now().After(deadline) {
				return false, nil
			}
			continue
		}

		if line == prevLine {
			// Line numbers must strictly increase within a segment;
			// seeing a repeat means this is garbage.
			return false, nil
		}

		if line == segmentLineNum {
			if !a.validSegmentRegion {
				if seg == 1 {
					beforeValidData = false
					a.validSegmentRegion = true
				}
			} else if seg < 2 || seg > 4 {
				a.validSegmentRegion = false
				a.curSegment = 1
			}
		}

		if (beforeValidData || a.validSegmentRegion) && line <= maxLineNum {
			a.copyLine(line, data)
		}

		if line == maxLineNum {
			if a.validSegmentRegion {
				if a.curSegment < segmentsPerFrame {
					a.curSegment++
				} else {
					success = true
					a.curSegment = 1
					a.validSegmentRegion = false
				}
			}
			return success, nil
		}

		prevLine = line
	}
}

// readValidPacket reads one packet and reports whether it carries a
// real line (as opposed to a discard/sync packet, recognised by the
// low nibble of the first header byte being 0xF).
func readValidPacket(src packetSource) (data []byte, line, seg byte, ok bool, err error) {
	packet, err := src.readPacket()
	if err != nil {
		return nil, 0, 0, false, err
	}
	if len(packet) != vospiPacketLen {
		return nil, 0, 0, false, errors.New("thermal: short VoSPI packet")
	}
	if packet[0]&0x0F == 0x0F {
		return nil, 0, 0, false, nil
	}
	line = packet[1]
	if line == segmentLineNum {
		seg = packet[0] >> 4
	}
	return packet[vospiHeaderLen:], line, seg, true, nil
}

// copyLine writes one packet's 80 words into the frame buffer at the
// offset determined by the current segment and line number.
func (a *assembler) copyLine(line byte, data []byte) {
	offset := (a.curSegment-1)*30*FrameCols + int(line)*(FrameCols/2)
	for i := 0; i+1 < len(data); i += 2 {
		row := offset / FrameCols
		col := offset % FrameCols
		a.buf[row][col] = uint16(data[i])<<8 | uint16(data[i+1])
		offset++
	}
}
