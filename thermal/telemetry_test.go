// Copyright 2020 Dan Julio
// Copyright 2018 The Cacophony Project. All rights reserved.
// Use of this source code is governed by the Apache License Version 2.0;
// see the LICENSE file for further details.

package thermal

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encodeTelemetry(tw telemetryWords) []byte {
	var buf bytes.Buffer
	if err := binary.Write(&buf, Big16, tw); err != nil {
		panic(err)
	}
	return buf.Bytes()
}

func TestParseTelemetryExtractsTemperaturesAndGain(t *testing.T) {
	tw := telemetryWords{
		StatusBits:  1 << 2, // gain mode LOW
		FPATemp:     centiK(30000),
		HousingTemp: centiK(29500),
		ResolutionB: 0,
		EffGainB:    1,
	}

	telem, err := ParseTelemetry(encodeTelemetry(tw))
	require.NoError(t, err)

	assert.InDelta(t, 26.85, telem.FPATempC, 0.01)
	assert.InDelta(t, 21.85, telem.HousingTempC, 0.01)
	assert.Equal(t, GainLow, telem.GainMode)
	assert.Equal(t, GainLow, telem.EffectiveGain)
	assert.Equal(t, Resolution001K, telem.Resolution)
}

func TestParseTelemetryResolutionSwitchesTo01K(t *testing.T) {
	tw := telemetryWords{ResolutionB: 1}
	telem, err := ParseTelemetry(encodeTelemetry(tw))
	require.NoError(t, err)
	assert.Equal(t, Resolution01K, telem.Resolution)
}

func TestParseTelemetryRejectsShortBuffer(t *testing.T) {
	_, err := ParseTelemetry([]byte{0x01})
	assert.Error(t, err)
}
