// Copyright 2020 Dan Julio
// This file is part of firecam.

package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memBacking is an in-memory Backing double that lets tests control
// exactly what Init sees on first read.
type memBacking struct {
	data []byte
}

func (m *memBacking) ReadAll() ([]byte, error) {
	if m.data == nil {
		return nil, assertErr("not written")
	}
	out := make([]byte, len(m.data))
	copy(out, m.data)
	return out, nil
}

func (m *memBacking) WriteAt(offset int, data []byte) error {
	if m.data == nil {
		m.data = make([]byte, sramSize)
	}
	copy(m.data[offset:], data)
	return nil
}

type assertErr string

func (e assertErr) Error() string { return string(e) }

func TestInitFromEmptyBackingWritesDefaults(t *testing.T) {
	b := &memBacking{}
	s := New(b, [2]byte{0xAB, 0x12})
	require.NoError(t, s.Init())

	assert.True(t, s.validMagic())
	assert.Equal(t, byte(layoutVersion), s.shadow[addrVersion])
	assert.Equal(t, s.computeChecksum(), s.shadow[addrChecksum])

	info := s.WifiInfo()
	assert.Equal(t, "firecam-ab12", info.APSSID)
	assert.Equal(t, [4]byte{1, 4, 168, 192}, info.APIP)
	assert.Equal(t, [4]byte{2, 4, 168, 192}, info.STAIP)

	gui, err := s.GUIState()
	require.NoError(t, err)
	assert.Equal(t, GainAuto, gui.GainMode)
	assert.Equal(t, "Fusion", gui.Palette)
	assert.EqualValues(t, 1, gui.RecordInterval)
	assert.True(t, gui.RecArducamEnable)
	assert.True(t, gui.RecLeptonEnable)

	// Init wrote the full block back out.
	assert.Len(t, b.data, sramSize)
}

func TestInitReinitialisesOnBadChecksum(t *testing.T) {
	b := &memBacking{data: make([]byte, sramSize)}
	b.data[addrMagic0] = magicWord0
	b.data[addrMagic1] = magicWord1
	b.data[addrVersion] = layoutVersion
	b.data[addrChecksum] = 0xFF // wrong on purpose

	s := New(b, [2]byte{0x00, 0x01})
	require.NoError(t, s.Init())
	assert.Equal(t, s.computeChecksum(), s.shadow[addrChecksum])
}

func TestInitUpgradesVersion1WithoutDisturbingWifi(t *testing.T) {
	b := &memBacking{data: make([]byte, sramSize)}
	b.data[addrMagic0] = magicWord0
	b.data[addrMagic1] = magicWord1
	b.data[addrVersion] = 1
	copy(b.data[addrAPSSID:], []byte("mycamera\x00"))
	b.data[addrRecEn] = 1
	// Compute a checksum matching this partial (version-1-shaped) layout.
	var cs byte
	for i := 0; i < addrChecksum; i++ {
		cs += b.data[i]
	}
	b.data[addrChecksum] = cs

	s := New(b, [2]byte{0x00, 0x01})
	require.NoError(t, s.Init())

	assert.Equal(t, byte(layoutVersion), s.shadow[addrVersion])
	assert.True(t, s.RecEnable())
	info := s.WifiInfo()
	assert.Equal(t, "mycamera", info.APSSID)
	// Version-2 fields were added with defaults.
	assert.Equal(t, [4]byte{1, 4, 168, 192}, info.APIP)
}

func TestSetWifiInfoRoundTrips(t *testing.T) {
	s := New(&memBacking{}, [2]byte{0, 0})
	require.NoError(t, s.Init())

	info := WifiInfo{
		APSSID:  "firecam-test",
		APPW:    "sekrit",
		STASSID: "homewifi",
		STAPW:   "homepass",
		Flags:   0x01,
		APIP:    [4]byte{1, 4, 168, 192},
		STAIP:   [4]byte{50, 4, 168, 192},
	}
	require.NoError(t, s.SetWifiInfo(info))

	got := s.WifiInfo()
	assert.Equal(t, info, got)
}

func TestSetWifiInfoMasksUnsettableFlags(t *testing.T) {
	s := New(&memBacking{}, [2]byte{0, 0})
	require.NoError(t, s.Init())

	require.NoError(t, s.SetWifiInfo(WifiInfo{Flags: 0xFF}))
	assert.Equal(t, uint8(wifiFlagMask), s.WifiInfo().Flags)
}

func TestGUIStateRepairsInvalidInterval(t *testing.T) {
	s := New(&memBacking{}, [2]byte{0, 0})
	require.NoError(t, s.Init())

	s.mu.Lock()
	s.shadow[addrInterval] = 0xFF
	s.shadow[addrInterval+1] = 0xFF
	s.shadow[addrChecksum] = s.computeChecksum()
	s.mu.Unlock()

	st, err := s.GUIState()
	require.NoError(t, err)
	assert.EqualValues(t, allowedIntervals[0], st.RecordInterval)
}

func TestGUIStateRepairsInvalidPalette(t *testing.T) {
	s := New(&memBacking{}, [2]byte{0, 0})
	require.NoError(t, s.Init())

	s.mu.Lock()
	s.storeString("NoSuchPalette", addrPalette, paletteNameMaxLen)
	s.shadow[addrChecksum] = s.computeChecksum()
	s.mu.Unlock()

	st, err := s.GUIState()
	require.NoError(t, err)
	assert.Equal(t, allowedPalettes[0], st.Palette)
}

func TestSetGUIStateSnapsInvalidFields(t *testing.T) {
	s := New(&memBacking{}, [2]byte{0, 0})
	require.NoError(t, s.Init())

	require.NoError(t, s.SetGUIState(GUIState{
		RecordInterval: 42,
		Palette:        "Bogus",
		GainMode:       GainHigh,
	}))

	st, err := s.GUIState()
	require.NoError(t, err)
	assert.EqualValues(t, allowedIntervals[0], st.RecordInterval)
	assert.Equal(t, allowedPalettes[0], st.Palette)
	assert.Equal(t, GainHigh, st.GainMode)
}

func TestAllowedSetsAreCopies(t *testing.T) {
	a := AllowedIntervals()
	a[0] = 9999
	assert.NotEqual(t, a[0], AllowedIntervals()[0])

	p := AllowedPalettes()
	p[0] = "mutated"
	assert.NotEqual(t, p[0], AllowedPalettes()[0])
}
