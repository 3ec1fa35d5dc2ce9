// Copyright 2020 Dan Julio
// This file is part of firecam.

package thermal

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGainModeCCIRoundTrip(t *testing.T) {
	for _, mode := range []GainMode{GainHigh, GainLow, GainAuto} {
		value, err := gainModeToCCI(mode)
		assert.NoError(t, err)
		assert.Equal(t, mode, cciToGainMode(value))
	}
}

func TestGainModeToCCIRejectsUnknown(t *testing.T) {
	_, err := gainModeToCCI(GainUnknown)
	assert.Error(t, err)
}

func TestCCIToGainModeUnknownValue(t *testing.T) {
	assert.Equal(t, GainUnknown, cciToGainMode(99))
}
