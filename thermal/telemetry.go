// Copyright 2020 Dan Julio
// Copyright 2018 The Cacophony Project. All rights reserved.
// Use of this source code is governed by the Apache License Version 2.0;
// see the LICENSE file for further details.

// Telemetry word layout below follows the FLIR Lepton SDK's own
// telemetry packet, the same one github.com/TheCacophonyProject/
// lepton3's telemetry.go decodes, extended with the housing (AUX)
// temperature and TLinear resolution fields this device's gain-mode
// and resolution handling need.
package thermal

import (
	"bytes"
	"encoding/binary"
)

// big16 implements binary.ByteOrder for the Lepton's wire format:
// 16-bit big-endian words, with 32/64-bit values built from
// byte-swapped pairs of those words.
type big16 struct{}

func (big16) Uint16(b []byte) uint16 {
	return uint16(b[1]) | uint16(b[0])<<8
}

func (big16) PutUint16(b []byte, v uint16) {
	b[0] = byte(v >> 8)
	b[1] = byte(v)
}

func (big16) Uint32(b []byte) uint32 {
	return uint32(b[1]) | uint32(b[0])<<8 | uint32(b[3])<<16 | uint32(b[2])<<24
}

func (big16) PutUint32(b []byte, v uint32) {
	b[1] = byte(v)
	b[0] = byte(v >> 8)
	b[3] = byte(v >> 16)
	b[2] = byte(v >> 24)
}

func (big16) Uint64(b []byte) uint64 {
	return uint64(b[1]) | uint64(b[0])<<8 | uint64(b[3])<<16 | uint64(b[2])<<24 |
		uint64(b[5])<<32 | uint64(b[4])<<40 | uint64(b[7])<<48 | uint64(b[6])<<56
}

func (big16) PutUint64(b []byte, v uint64) {
	b[1] = byte(v)
	b[0] = byte(v >> 8)
	b[3] = byte(v >> 16)
	b[2] = byte(v >> 24)
	b[5] = byte(v >> 32)
	b[4] = byte(v >> 40)
	b[7] = byte(v >> 48)
	b[6] = byte(v >> 56)
}

func (big16) String() string { return "big16" }

// Big16 is the byte order telemetry words are encoded in.
var Big16 binary.ByteOrder = big16{}

const (
	statusGainModeMask  uint32 = 3 << 2
	statusGainModeShift uint32 = 2
)

// Telemetry holds the fields extracted from a frame's telemetry row
// that the rest of the device cares about.
type Telemetry struct {
	FPATempC      float64
	HousingTempC  float64
	GainMode      GainMode
	EffectiveGain GainMode
	Resolution    Resolution
	FrameCount    int
}

// telemetryWords names the leading fields of the 80-word telemetry
// row that this device reads; binary.Read only consumes as many bytes
// as the struct needs, so the trailing unused words are simply never
// decoded.
type telemetryWords struct {
	Revision     uint16     // 0
	TimeOnMS     uint32     // 1-2
	StatusBits   uint32     // 3-4
	Reserved5    [15]uint16 // 5-19
	FrameCounter uint32     // 20-21
	FrameMean    uint16     // 22
	Reserved23   uint16     // 23
	FPATemp      centiK     // 24
	Reserved25   [3]uint16  // 25-27
	HousingTemp  centiK     // 28
	Reserved29   [2]uint16  // 29-30
	ResolutionB  uint16     // 31: TLinear auto-resolution state
	EffGainB     uint16     // 32: effective gain mode
}

// centiK is a temperature in 0.01 degrees Kelvin, the Lepton's native
// temperature unit.
type centiK uint16

func (c centiK) toC() float64 {
	return float64(int(c))/100 - 273.15
}

// ParseTelemetry decodes the 80-word (160-byte) telemetry row that
// forms the final row of every thermal frame.
func ParseTelemetry(raw []byte) (Telemetry, error) {
	var tw telemetryWords
	if err := binary.Read(bytes.NewReader(raw), Big16, &tw); err != nil {
		return Telemetry{}, err
	}

	t := Telemetry{
		FPATempC:     tw.FPATemp.toC(),
		HousingTempC: tw.HousingTemp.toC(),
		GainMode:     statusToGainMode(tw.StatusBits),
		FrameCount:   int(tw.FrameCounter),
	}
	if tw.ResolutionB == 0 {
		t.Resolution = Resolution001K
	} else {
		t.Resolution = Resolution01K
	}
	if tw.EffGainB == 0 {
		t.EffectiveGain = GainHigh
	} else {
		t.EffectiveGain = GainLow
	}
	return t, nil
}

func statusToGainMode(status uint32) GainMode {
	switch status & statusGainModeMask >> statusGainModeShift {
	case 0:
		return GainHigh
	case 1:
		return GainLow
	case 2:
		return GainAuto
	default:
		return GainUnknown
	}
}
