// Copyright 2020 Dan Julio
// Copyright 2017 The Cacophony Project. All rights reserved.
// Use of this source code is governed by the Apache License Version 2.0;
// see the LICENSE file for further details.

package thermal

const (
	// FrameCols and FrameRows are the dimensions of a complete
	// thermal frame.
	FrameCols = 160
	FrameRows = 120

	vospiPacketLen    = 164 // 4 byte header + 160 bytes of data
	vospiHeaderLen    = 4
	vospiDataLen      = vospiPacketLen - vospiHeaderLen
	packetsPerSegment = 60
	segmentsPerFrame  = 4
	segmentLineNum    = 20 // packet carrying the segment number
	maxLineNum        = packetsPerSegment - 1
	noPrevLine        = 255 // sentinel: no line seen yet this segment attempt

	// telemetryWordCount is the size, in 16-bit words, of the telemetry
	// block appended as the final row of a frame.
	telemetryWordCount = 80
)

// Frame holds one complete 160x120 TLinear radiometric thermal image.
// Each value is a count in 0.01K or 0.1K depending on the sensor's
// auto-resolution state (see Telemetry.Resolution).
type Frame [FrameRows][FrameCols]uint16

// GainMode is the thermal sensor's radiometric gain setting.
type GainMode int

const (
	GainUnknown GainMode = iota
	GainHigh
	GainLow
	GainAuto
)

func (g GainMode) String() string {
	switch g {
	case GainHigh:
		return "HIGH"
	case GainLow:
		return "LOW"
	case GainAuto:
		return "AUTO"
	default:
		return "UNKNOWN"
	}
}

// Resolution is the TLinear auto-resolution state: whether a count in
// a Frame represents 0.01K or 0.1K.
type Resolution int

const (
	ResolutionUnknown Resolution = iota
	Resolution001K
	Resolution01K
)

func (r Resolution) String() string {
	switch r {
	case Resolution001K:
		return "0.01K"
	case Resolution01K:
		return "0.1K"
	default:
		return "UNKNOWN"
	}
}
