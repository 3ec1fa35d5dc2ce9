// Copyright 2020 Dan Julio
// This file is part of firecam.

package visual

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFindMarkerLocatesSecondByte(t *testing.T) {
	buf := []byte{0x00, 0xFF, 0xD8, 0x01, 0xFF, 0xD9}
	assert.Equal(t, 2, findMarker(buf, jpegStartMarker))
	assert.Equal(t, 5, findMarker(buf, jpegEndMarker))
}

func TestFindMarkerReturnsMinusOneWhenAbsent(t *testing.T) {
	buf := []byte{0x00, 0x01, 0x02}
	assert.Equal(t, -1, findMarker(buf, jpegEndMarker))
}

func TestFindMarkerRequiresPrecedingFF(t *testing.T) {
	buf := []byte{0xD9, 0xD9}
	assert.Equal(t, -1, findMarker(buf, jpegEndMarker))
}
