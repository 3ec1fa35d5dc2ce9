// Copyright 2020 Dan Julio
// This file is part of firecam.

package imagerecord

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordRoundTripsAllPayloads(t *testing.T) {
	r := Record{
		Metadata: Metadata{
			Camera:         "firecam-ab12",
			SequenceNumber: 7,
			Battery:        3.81,
			Charge:         "ON",
		},
		JPEG:        []byte{0xFF, 0xD8, 0xFF, 0xD9},
		Radiometric: []byte{0x6A, 0xE3, 0x6A, 0xE4},
		Telemetry:   []byte{0x00, 0x01},
	}

	data, err := json.Marshal(r)
	require.NoError(t, err)

	var out Record
	require.NoError(t, json.Unmarshal(data, &out))

	assert.Equal(t, r.Metadata, out.Metadata)
	assert.Equal(t, r.JPEG, out.JPEG)
	assert.Equal(t, r.Radiometric, out.Radiometric)
	assert.Equal(t, r.Telemetry, out.Telemetry)
	assert.True(t, out.HasJPEG())
	assert.True(t, out.HasRadiometric())
	assert.True(t, out.HasTelemetry())
}

func TestRecordOmitsAbsentPayloads(t *testing.T) {
	r := Record{Metadata: Metadata{Camera: "firecam-ab12"}}

	data, err := json.Marshal(r)
	require.NoError(t, err)

	var raw map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &raw))

	_, hasJPEG := raw["jpeg"]
	_, hasRad := raw["radiometric"]
	_, hasTel := raw["telemetry"]
	assert.False(t, hasJPEG)
	assert.False(t, hasRad)
	assert.False(t, hasTel)

	var out Record
	require.NoError(t, json.Unmarshal(data, &out))
	assert.False(t, out.HasJPEG())
	assert.False(t, out.HasRadiometric())
	assert.False(t, out.HasTelemetry())
}

func TestEncodeRadiometricBigEndian(t *testing.T) {
	buf := EncodeRadiometric(1, 2, func(row, col int) uint16 {
		return uint16(27315 + col)
	})
	assert.Equal(t, []byte{0x6A, 0xB3, 0x6A, 0xB4}, buf)
}
