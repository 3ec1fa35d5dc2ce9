// Copyright 2020 Dan Julio
// This file is part of firecam.

package thermal

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTelemetry80ExtractsLastRow(t *testing.T) {
	var f Frame
	for col := 0; col < FrameCols; col++ {
		f[FrameRows-1][col] = uint16(col)
	}

	raw := Telemetry80(&f)
	assert.Len(t, raw, telemetryWordCount*2)
	assert.Equal(t, byte(0), raw[0])
	assert.Equal(t, byte(5), raw[5*2+1])
}

func TestGainModeString(t *testing.T) {
	assert.Equal(t, "HIGH", GainHigh.String())
	assert.Equal(t, "LOW", GainLow.String())
	assert.Equal(t, "AUTO", GainAuto.String())
	assert.Equal(t, "UNKNOWN", GainUnknown.String())
}
