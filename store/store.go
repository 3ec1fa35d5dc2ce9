// Copyright 2020 Dan Julio
// Copyright 2017 The Cacophony Project. All rights reserved.
// Use of this source code is governed by the Apache License Version 2.0;
// see the LICENSE file for further details.

// Package store owns the shadow copy of the handheld's persistent
// parameter block: Wi-Fi credentials, recording enables, gain mode,
// palette selection and recording interval, all of which must survive
// a power cycle. The original camera firmware kept this block in a real-time
// clock chip's battery-backed SRAM; that chip is out of scope for this
// port (see the Backing interface below), but the shadow-array layout,
// checksum and partial-write regions are carried over unchanged so
// that a future RTC-backed implementation can drop in without
// touching callers.
package store

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
)

// Field lengths, straight from the persistent-storage layout. String
// fields reserve one extra byte for a NUL terminator.
const (
	ssidMaxLen        = 32
	pwMaxLen          = 32
	paletteNameMaxLen = 16
	recIntervalLen    = 2

	magicWord0    = 0x12
	magicWord1    = 0x34
	layoutVersion = 2

	// sramSize and sramStartAddr describe the DS3232 real-time clock's
	// battery-backed SRAM region (registers 0x14-0xFF, 236 bytes) that
	// the persistent store lived in. Kept as named constants even
	// though this port's default Backing does not address an RTC chip,
	// so the shadow array's size matches what a real Backing must
	// provide.
	sramSize = 236
)

// Byte offsets within the shadow array. Computed the same way the
// original layout chains its #defines: each field's address is the
// previous field's address plus the previous field's length.
const (
	addrMagic0   = 0
	addrMagic1   = 1
	addrVersion  = 2
	addrRecEn    = 3
	addrWifiEn   = 4
	addrAPSSID   = 5
	addrAPPW     = addrAPSSID + ssidMaxLen + 1
	addrSTASSID  = addrAPPW + pwMaxLen + 1
	addrSTAPW    = addrSTASSID + ssidMaxLen + 1
	addrAPIP     = addrSTAPW + pwMaxLen + 1
	addrSTAIP    = addrAPIP + 4
	addrRecArd   = addrSTAIP + 4
	addrRecLep   = addrRecArd + 1
	addrGainMode = addrRecLep + 1
	addrPalette  = addrGainMode + 1
	addrInterval = addrPalette + paletteNameMaxLen + 1

	addrLastValid = addrInterval + recIntervalLen
	addrChecksum  = sramSize - 1

	wifiUpdateLen = addrRecArd - addrWifiEn
	guiUpdateLen  = addrLastValid - addrRecArd
)

// allowedIntervals is the fixed set of legal recording intervals, in
// seconds.
var allowedIntervals = []uint16{1, 5, 30, 60, 300, 1800, 3600}

// allowedPalettes is the fixed set of legal thermal palette names.
var allowedPalettes = []string{"Grayscale", "Fusion", "Rainbow", "Rainbow2", "Ironblack", "Arctic"}

// GainMode mirrors the sensor's three gain settings, stored as a
// single byte.
type GainMode uint8

const (
	GainHigh GainMode = 0
	GainLow  GainMode = 1
	GainAuto GainMode = 2
)

// region identifies which subset of the shadow array a write touches,
// so the caller only has to move the bytes it changed across the slow
// backing store rather than the whole block.
type region int

const (
	regionFull region = iota
	regionWifi
	regionRec
	regionGUI
)

// WifiInfo is the Wi-Fi half of the persistent store: two SSID/
// password pairs (access-point and station/client) plus the flags and
// static IPs that go with them. IP addresses are stored MSB-first at
// index 3 down to LSB at index 0, matching the layout the wire
// protocol's asymmetric render/parse also uses; callers must not
// "normalise" this ordering.
type WifiInfo struct {
	APSSID  string
	APPW    string
	STASSID string
	STAPW   string
	Flags   uint8
	APIP    [4]byte
	STAIP   [4]byte
}

// GUIState is the camera-operation half of the persistent store.
type GUIState struct {
	RecArducamEnable bool
	RecLeptonEnable  bool
	GainMode         GainMode
	RecordInterval   uint16
	Palette          string
}

// Backing is the seam between the shadow array and durable storage.
// The original firmware backed this with a DS3232 real-time clock
// chip's battery-backed SRAM, reached over I2C; that chip is out of
// scope here (spec Non-goals exclude RTC hardware), so this port
// supplies a file-backed implementation instead. A future build
// targeting real hardware only needs to satisfy this interface.
type Backing interface {
	// ReadAll returns the full persisted block, or an error if it
	// cannot be read (including "never written", which the store
	// treats identically to a corrupt block: reinitialise).
	ReadAll() ([]byte, error)
	// WriteAt writes data starting at the given offset.
	WriteAt(offset int, data []byte) error
}

// Store owns the shadow array and serialises all access. The original
// firmware got away without a mutex because only one FreeRTOS task
// ever touched persistent storage; a Go port has no such guarantee
// from the language, so Store enforces it itself.
type Store struct {
	mu      sync.Mutex
	backing Backing
	shadow  [sramSize]byte
	macLow  [2]byte // last two bytes of the interface MAC, for the default SSID
}

// New creates a Store backed by b. macLow supplies the two bytes used
// to derive the default access-point SSID ("firecam-XXXX"); pass the
// last two bytes of the device's soft-AP MAC address, already adjusted
// the way the ESP-IDF soft-AP derivation does (station MAC plus one).
func New(b Backing, macLow [2]byte) *Store {
	return &Store{backing: b, macLow: macLow}
}

// Init loads the shadow array from the backing store, and initialises
// it with defaults if it is missing or corrupt, or upgrades it in
// place if it carries the older single-region layout.
func (s *Store) Init() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := s.backing.ReadAll()
	if err == nil && len(raw) == sramSize {
		copy(s.shadow[:], raw)
	}

	if !s.validMagic() || s.computeChecksum() != s.shadow[addrChecksum] {
		s.initDefaults(false)
		return s.writeRegion(regionFull)
	}
	if s.shadow[addrVersion] == 1 {
		s.initDefaults(true)
		return s.writeRegion(regionFull)
	}
	return nil
}

func (s *Store) validMagic() bool {
	return s.shadow[addrMagic0] == magicWord0 && s.shadow[addrMagic1] == magicWord1
}

// computeChecksum sums every byte before the checksum byte, modulo
// 256 (the natural overflow of a uint8 accumulator).
func (s *Store) computeChecksum() byte {
	var cs byte
	for i := 0; i < addrChecksum; i++ {
		cs += s.shadow[i]
	}
	return cs
}

// initDefaults fills the shadow array with default values. When
// upgrade is true only the fields introduced since layout version 1
// are (re)initialised; existing Wi-Fi and recording-enable fields are
// left alone, matching the original firmware's additive upgrade path.
func (s *Store) initDefaults(upgrade bool) {
	if !upgrade {
		for i := range s.shadow {
			s.shadow[i] = 0
		}
		s.shadow[addrMagic0] = magicWord0
		s.shadow[addrMagic1] = magicWord1
		s.shadow[addrVersion] = layoutVersion
		s.shadow[addrRecEn] = 0
		s.shadow[addrWifiEn] = wifiFlagStartupEnable
		s.storeString(defaultAPSSID(s.macLow), addrAPSSID, ssidMaxLen)
		s.storeString("", addrAPPW, pwMaxLen)
	} else {
		s.shadow[addrVersion] = layoutVersion
	}

	s.storeString("", addrSTASSID, ssidMaxLen)
	s.storeString("", addrSTAPW, pwMaxLen)
	s.shadow[addrAPIP+3] = 192
	s.shadow[addrAPIP+2] = 168
	s.shadow[addrAPIP+1] = 4
	s.shadow[addrAPIP+0] = 1
	s.shadow[addrSTAIP+3] = 192
	s.shadow[addrSTAIP+2] = 168
	s.shadow[addrSTAIP+1] = 4
	s.shadow[addrSTAIP+0] = 2
	s.shadow[addrRecArd] = 1
	s.shadow[addrRecLep] = 1
	s.shadow[addrGainMode] = byte(GainAuto)
	s.storeString("Fusion", addrPalette, paletteNameMaxLen)
	binary.BigEndian.PutUint16(s.shadow[addrInterval:], allowedIntervals[0])

	s.shadow[addrChecksum] = s.computeChecksum()
}

// defaultAPSSID builds "firecam-XXXX" from the two MAC bytes, using
// the same hex-nibble-to-ASCII expansion as the original firmware.
func defaultAPSSID(macLow [2]byte) string {
	return fmt.Sprintf("firecam-%02x%02x", macLow[0], macLow[1])
}

// storeString copies s into the shadow array at start, truncating to
// maxLen and NUL-padding the remainder, exactly like the original
// firmware's fixed-width string fields.
func (s *Store) storeString(str string, start, maxLen int) {
	b := []byte(str)
	for i := 0; i < maxLen; i++ {
		if i < len(b) {
			s.shadow[start+i] = b[i]
		} else {
			s.shadow[start+i] = 0
		}
	}
}

func (s *Store) readString(start, maxLen int) string {
	end := start
	for end < start+maxLen && s.shadow[end] != 0 {
		end++
	}
	return string(s.shadow[start:end])
}

// writeRegion pushes the region of the shadow array that changed
// (plus the checksum byte, which always changes) to the backing
// store. Matches the original firmware's rationale of keeping any
// single locked bus transaction short.
func (s *Store) writeRegion(r region) error {
	switch r {
	case regionFull:
		return s.backing.WriteAt(0, s.shadow[:])
	case regionWifi:
		if err := s.backing.WriteAt(addrWifiEn, s.shadow[addrWifiEn:addrWifiEn+wifiUpdateLen]); err != nil {
			return err
		}
		return s.backing.WriteAt(addrChecksum, s.shadow[addrChecksum:addrChecksum+1])
	case regionRec:
		if err := s.backing.WriteAt(addrRecEn, s.shadow[addrRecEn:addrRecEn+1]); err != nil {
			return err
		}
		return s.backing.WriteAt(addrChecksum, s.shadow[addrChecksum:addrChecksum+1])
	case regionGUI:
		if err := s.backing.WriteAt(addrRecArd, s.shadow[addrRecArd:addrRecArd+guiUpdateLen]); err != nil {
			return err
		}
		return s.backing.WriteAt(addrChecksum, s.shadow[addrChecksum:addrChecksum+1])
	}
	return errors.New("store: unknown region")
}

const wifiFlagStartupEnable = 0x01

// wifiFlagMask is the set of flag bits a caller is allowed to persist
// via SetWifiInfo: bit 0 (Wi-Fi enabled), bit 4 (static IP) and bit 7
// (client mode). Bits 2 and 3 are status bits (initialised,
// connected) maintained by the Wi-Fi reinitialise collaborator, not
// settable here; they are cleared on write rather than round-tripped,
// matching the original firmware's PS_WIFI_FLAG_MASK.
const wifiFlagMask = 0x01 | 0x10 | 0x80

// WifiInfo returns a copy of the persisted Wi-Fi configuration.
func (s *Store) WifiInfo() WifiInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	var info WifiInfo
	info.APSSID = s.readString(addrAPSSID, ssidMaxLen)
	info.APPW = s.readString(addrAPPW, pwMaxLen)
	info.STASSID = s.readString(addrSTASSID, ssidMaxLen)
	info.STAPW = s.readString(addrSTAPW, pwMaxLen)
	info.Flags = s.shadow[addrWifiEn] & wifiFlagMask
	copy(info.APIP[:], s.shadow[addrAPIP:addrAPIP+4])
	copy(info.STAIP[:], s.shadow[addrSTAIP:addrSTAIP+4])
	return info
}

// SetWifiInfo persists a new Wi-Fi configuration.
func (s *Store) SetWifiInfo(info WifiInfo) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.storeString(info.APSSID, addrAPSSID, ssidMaxLen)
	s.storeString(info.APPW, addrAPPW, pwMaxLen)
	s.storeString(info.STASSID, addrSTASSID, ssidMaxLen)
	s.storeString(info.STAPW, addrSTAPW, pwMaxLen)
	s.shadow[addrWifiEn] = info.Flags & wifiFlagMask
	copy(s.shadow[addrAPIP:addrAPIP+4], info.APIP[:])
	copy(s.shadow[addrSTAIP:addrSTAIP+4], info.STAIP[:])
	s.shadow[addrChecksum] = s.computeChecksum()
	return s.writeRegion(regionWifi)
}

// RecEnable returns whether recording should auto-resume at boot.
func (s *Store) RecEnable() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.shadow[addrRecEn] != 0
}

// SetRecEnable persists the auto-resume-recording flag.
func (s *Store) SetRecEnable(en bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if en {
		s.shadow[addrRecEn] = 1
	} else {
		s.shadow[addrRecEn] = 0
	}
	s.shadow[addrChecksum] = s.computeChecksum()
	return s.writeRegion(regionRec)
}

// GUIState returns the persisted operating state, self-repairing (and
// persisting the repair) any field that has drifted outside its legal
// set, the way a corrupted or foreign-written record interval or
// palette name would after e.g. a firmware downgrade.
func (s *Store) GUIState() (GUIState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var st GUIState
	st.RecArducamEnable = s.shadow[addrRecArd] != 0
	st.RecLeptonEnable = s.shadow[addrRecLep] != 0
	st.GainMode = GainMode(s.shadow[addrGainMode])

	repair := false

	st.RecordInterval = binary.BigEndian.Uint16(s.shadow[addrInterval:])
	if !validInterval(st.RecordInterval) {
		st.RecordInterval = allowedIntervals[0]
		binary.BigEndian.PutUint16(s.shadow[addrInterval:], st.RecordInterval)
		repair = true
	}

	st.Palette = s.readString(addrPalette, paletteNameMaxLen)
	if !validPalette(st.Palette) {
		st.Palette = allowedPalettes[0]
		s.storeString(st.Palette, addrPalette, paletteNameMaxLen)
		repair = true
	}

	if repair {
		s.shadow[addrChecksum] = s.computeChecksum()
		if err := s.writeRegion(regionGUI); err != nil {
			return st, err
		}
	}
	return st, nil
}

// SetGUIState persists a new operating state. RecordInterval and
// Palette are snapped to the first legal value if they are not
// members of the fixed allowed sets, rather than rejected outright.
func (s *Store) SetGUIState(st GUIState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !validInterval(st.RecordInterval) {
		st.RecordInterval = allowedIntervals[0]
	}
	if !validPalette(st.Palette) {
		st.Palette = allowedPalettes[0]
	}

	if st.RecArducamEnable {
		s.shadow[addrRecArd] = 1
	} else {
		s.shadow[addrRecArd] = 0
	}
	if st.RecLeptonEnable {
		s.shadow[addrRecLep] = 1
	} else {
		s.shadow[addrRecLep] = 0
	}
	s.shadow[addrGainMode] = byte(st.GainMode)
	binary.BigEndian.PutUint16(s.shadow[addrInterval:], st.RecordInterval)
	s.storeString(st.Palette, addrPalette, paletteNameMaxLen)
	s.shadow[addrChecksum] = s.computeChecksum()
	return s.writeRegion(regionGUI)
}

func validInterval(v uint16) bool {
	for _, a := range allowedIntervals {
		if a == v {
			return true
		}
	}
	return false
}

func validPalette(name string) bool {
	for _, p := range allowedPalettes {
		if p == name {
			return true
		}
	}
	return false
}

// AllowedIntervals returns the fixed set of legal recording intervals.
func AllowedIntervals() []uint16 {
	out := make([]uint16, len(allowedIntervals))
	copy(out, allowedIntervals)
	return out
}

// AllowedPalettes returns the fixed set of legal palette names.
func AllowedPalettes() []string {
	out := make([]string, len(allowedPalettes))
	copy(out, allowedPalettes)
	return out
}
