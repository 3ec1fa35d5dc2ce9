// Copyright 2020 Dan Julio
// This file is part of firecam.

// Package rtc converts between time.Time and the field-by-field time
// representation the set_time command and the on-disk session/file
// naming scheme both use: separate second, minute, hour, weekday, day,
// month and year-since-1970 fields, matching the original firmware's
// tmElements_t. The real-time clock chip that representation was
// designed to be written to byte-for-byte is out of scope for this
// port (see store.Backing); this package only carries the conversion,
// which the orchestrator and command responder both still need.
package rtc

import (
	"fmt"
	"time"
)

// Elements is the field-by-field time representation used on the
// wire for set_time and internally for deriving session directory
// names. Year is offset from 1970, not 1900 or 0; Weekday follows the
// original firmware's convention of Sunday = 1.
type Elements struct {
	Second  uint8
	Minute  uint8
	Hour    uint8
	Weekday uint8 // 1=Sunday .. 7=Saturday
	Day     uint8
	Month   uint8 // 1=January .. 12=December
	Year    uint8 // offset from 1970
}

// Break decomposes t (interpreted in UTC, matching the device's
// single-timezone clock) into Elements.
func Break(t time.Time) Elements {
	u := t.UTC()
	return Elements{
		Second:  uint8(u.Second()),
		Minute:  uint8(u.Minute()),
		Hour:    uint8(u.Hour()),
		Weekday: uint8(u.Weekday()) + 1,
		Day:     uint8(u.Day()),
		Month:   uint8(u.Month()),
		Year:    uint8(u.Year() - 1970),
	}
}

// Make reassembles Elements into a time.Time, the inverse of Break.
// Weekday is not used to compute the result; it is redundant
// information carried for display, exactly as in the original
// firmware, and Make derives it itself via time.Date's normalisation.
func Make(e Elements) time.Time {
	return time.Date(1970+int(e.Year), time.Month(e.Month), int(e.Day),
		int(e.Hour), int(e.Minute), int(e.Second), 0, time.UTC)
}

// DispString renders "DOW MON DD HH:MM:SS YYYY", the diagnostic
// display format.
func DispString(e Elements) string {
	return fmt.Sprintf("%s %s %2d %2d:%02d:%02d %4d",
		weekdayString(e.Weekday), monthString(e.Month), e.Day, e.Hour, e.Minute, e.Second, 1970+int(e.Year))
}

// ShortString renders "YY_MM_DD_HH_MM_SS", used to derive session
// directory names. Year is always taken modulo 100, matching the
// original firmware's assumption that the device runs post-2000.
func ShortString(e Elements) string {
	return fmt.Sprintf("%02d_%02d_%02d_%02d_%02d_%02d",
		(1970+int(e.Year))%100, e.Month, e.Day, e.Hour, e.Minute, e.Second)
}

var weekdayStrings = [...]string{"Err", "Sun", "Mon", "Tue", "Wed", "Thu", "Fri", "Sat"}
var monthStrings = [...]string{"Err", "Jan", "Feb", "Mar", "Apr", "May", "Jun", "Jul", "Aug", "Sep", "Oct", "Nov", "Dec"}

func weekdayString(w uint8) string {
	if w > 7 {
		return weekdayStrings[0]
	}
	return weekdayStrings[w]
}

func monthString(m uint8) string {
	if m > 12 {
		return monthStrings[0]
	}
	return monthStrings[m]
}
