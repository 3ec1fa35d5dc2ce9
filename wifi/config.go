// Copyright 2020 Dan Julio
// This file is part of firecam.

// Package wifi models the handheld's Wi-Fi configuration: the access
// point the camera itself runs plus the client network it can join,
// and the deliberately asymmetric byte layout the wire protocol uses
// for IPv4 addresses.
package wifi

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/danjulio/firecam/store"
)

// Flag bits within a Config's Flags byte. Bits 2 and 3 are status
// bits owned by the reinitialise collaborator and are never accepted
// from a set_wifi command; SettableMask identifies the three bits a
// caller may change.
const (
	FlagEnabled     uint8 = 0x01
	FlagInitialized uint8 = 0x04
	FlagConnected   uint8 = 0x08
	FlagStaticIP    uint8 = 0x10
	FlagClientMode  uint8 = 0x80

	SettableMask = FlagEnabled | FlagStaticIP | FlagClientMode

	// minPasswordLen is WPA2's minimum; a shorter password is rejected
	// with a user-visible message when it originates from the
	// on-device keyboard (handled by the caller, not this package).
	minPasswordLen = 8
)

// Config is the full Wi-Fi configuration surface, combining the
// persisted fields with the live, non-persisted current IP address
// the station interface picked up (DHCP or static).
type Config struct {
	APSSID  string
	APPW    string
	STASSID string
	STAPW   string
	Flags   uint8
	APIP    [4]byte
	STAIP   [4]byte
	CurIP   [4]byte
}

// FromStore builds a Config from the persisted Wi-Fi info, leaving
// CurIP zeroed; callers fill it in from the live network stack.
func FromStore(info store.WifiInfo) Config {
	return Config{
		APSSID:  info.APSSID,
		APPW:    info.APPW,
		STASSID: info.STASSID,
		STAPW:   info.STAPW,
		Flags:   info.Flags,
		APIP:    info.APIP,
		STAIP:   info.STAIP,
	}
}

// ToStore projects the persistable fields of a Config back into a
// store.WifiInfo, masking Flags to the settable bits.
func (c Config) ToStore() store.WifiInfo {
	return store.WifiInfo{
		APSSID:  c.APSSID,
		APPW:    c.APPW,
		STASSID: c.STASSID,
		STAPW:   c.STAPW,
		Flags:   c.Flags & SettableMask,
		APIP:    c.APIP,
		STAIP:   c.STAIP,
	}
}

// ValidatePassword reports whether pw meets WPA2's minimum length.
// Empty passwords (open network) are always accepted.
func ValidatePassword(pw string) error {
	if pw != "" && len(pw) < minPasswordLen {
		return fmt.Errorf("wifi: password must be at least %d characters", minPasswordLen)
	}
	return nil
}

// RenderIP formats a stored IP byte array as "a.b.c.d", reading the
// most-significant octet from index 3 down to the least-significant
// at index 0. This mirrors the persistent store's internal layout
// exactly; it is not the conventional network-byte-order reading of
// the array, and must not be "corrected" to read index 0 first.
func RenderIP(ip [4]byte) string {
	return fmt.Sprintf("%d.%d.%d.%d", ip[3], ip[2], ip[1], ip[0])
}

// ParseIP parses "a.b.c.d" into the same index-reversed layout
// RenderIP reads from: the octets are consumed left to right and
// written into indices [3], [2], [1], [0] in that order, so the first
// octet parsed (the most significant) lands at index 3.
func ParseIP(s string) ([4]byte, error) {
	var out [4]byte
	parts := strings.Split(s, ".")
	if len(parts) != 4 {
		return out, errors.New("wifi: malformed IP address")
	}
	for i, idx := range [4]int{3, 2, 1, 0} {
		v, err := strconv.Atoi(parts[i])
		if err != nil || v < 0 || v > 255 {
			return out, fmt.Errorf("wifi: invalid octet %q", parts[i])
		}
		out[idx] = byte(v)
	}
	return out, nil
}

// Reinitialiser is the collaborator the orchestrator calls after a
// set_wifi command persists a new configuration. The actual radio
// reinitialise sequence (RF calibration, AP/STA bring-up) is out of
// scope per the Non-goals this package's caller honors; Reinitialiser
// is the seam a real network-stack implementation would satisfy.
type Reinitialiser interface {
	// Reinit applies cfg to the live network stack, returning an error
	// if it could not be brought up with the new configuration.
	Reinit(cfg Config) error
}

// UnsupportedReinitialiser is the stand-in Reinitialiser for this
// port: it always fails, so the orchestrator's "could not restart
// Wi-Fi" user-visible message path is exercised the same way it would
// be for a real, failing radio bring-up.
type UnsupportedReinitialiser struct{}

func (UnsupportedReinitialiser) Reinit(Config) error {
	return errors.New("wifi: radio reinitialise is not implemented on this platform")
}
