// Copyright 2020 Dan Julio
// This file is part of firecam.

package wifi

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danjulio/firecam/store"
)

func TestRenderIPReadsMostSignificantOctetFromIndexThree(t *testing.T) {
	ip := [4]byte{1, 4, 168, 192} // index0=LSB .. index3=MSB
	assert.Equal(t, "192.168.4.1", RenderIP(ip))
}

func TestParseIPWritesMostSignificantOctetToIndexThree(t *testing.T) {
	ip, err := ParseIP("192.168.4.1")
	require.NoError(t, err)
	assert.Equal(t, [4]byte{1, 4, 168, 192}, ip)
}

func TestIPRoundTrip(t *testing.T) {
	for _, want := range [][4]byte{
		{0, 0, 0, 0},
		{255, 255, 255, 255},
		{2, 4, 168, 192},
		{17, 200, 33, 9},
	} {
		s := RenderIP(want)
		got, err := ParseIP(s)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}

func TestParseIPRejectsMalformed(t *testing.T) {
	_, err := ParseIP("192.168.4")
	assert.Error(t, err)

	_, err = ParseIP("192.168.4.999")
	assert.Error(t, err)

	_, err = ParseIP("a.b.c.d")
	assert.Error(t, err)
}

func TestToStoreMasksUnsettableFlags(t *testing.T) {
	c := Config{Flags: 0xFF}
	assert.Equal(t, uint8(SettableMask), c.ToStore().Flags)
}

func TestFromStoreRoundTrip(t *testing.T) {
	info := store.WifiInfo{
		APSSID:  "firecam-ab12",
		APPW:    "",
		STASSID: "home",
		STAPW:   "homepass",
		Flags:   FlagEnabled,
		APIP:    [4]byte{1, 4, 168, 192},
		STAIP:   [4]byte{2, 4, 168, 192},
	}
	c := FromStore(info)
	assert.Equal(t, info, c.ToStore())
}

func TestValidatePasswordRejectsShortNonEmpty(t *testing.T) {
	assert.NoError(t, ValidatePassword(""))
	assert.NoError(t, ValidatePassword("12345678"))
	assert.Error(t, ValidatePassword("1234567"))
	assert.Error(t, ValidatePassword("a"))
}
