// Copyright 2020 Dan Julio
// This file is part of firecam.

package command

import (
	"encoding/json"

	"github.com/danjulio/firecam/rtc"
)

// name identifies one of the ten recognised commands by its exact
// wire string, matching json_utilities.c's json_parse_cmd.
type name string

const (
	cmdGetStatus name = "get_status"
	cmdGetImage  name = "get_image"
	cmdGetConfig name = "get_config"
	cmdSetConfig name = "set_config"
	cmdSetTime   name = "set_time"
	cmdGetWifi   name = "get_wifi"
	cmdSetWifi   name = "set_wifi"
	cmdRecordOn  name = "record_on"
	cmdRecordOff name = "record_off"
	cmdPoweroff  name = "poweroff"
)

// request is the wire shape of every incoming command: a name plus an
// arguments object whose shape depends on the name.
type request struct {
	Cmd  name            `json:"cmd"`
	Args json.RawMessage `json:"args"`
}

// StatusInfo is what the orchestrator supplies to answer get_status.
type StatusInfo struct {
	Camera    string
	Version   string
	Recording bool
	Now       rtc.Elements
	Battery   float64
	Charge    string
}

// statusWire is the JSON shape of a get_status response.
type statusWire struct {
	Camera    string  `json:"Camera"`
	Version   string  `json:"Version"`
	Recording int     `json:"Recording"`
	Time      string  `json:"Time"`
	Date      string  `json:"Date"`
	Battery   float64 `json:"Battery"`
	Charge    string  `json:"Charge"`
}

// ConfigInfo is the full recording configuration surfaced by
// get_config and mutated (in part) by set_config.
type ConfigInfo struct {
	ArducamEnable  bool   `json:"arducam_enable"`
	LeptonEnable   bool   `json:"lepton_enable"`
	GainMode       uint8  `json:"gain_mode"`
	RecordInterval uint16 `json:"record_interval"`
}

// ConfigArgs carries a set_config request: any field left nil retains
// its current value, matching "omitted fields retain current value".
type ConfigArgs struct {
	ArducamEnable  *bool   `json:"arducam_enable"`
	LeptonEnable   *bool   `json:"lepton_enable"`
	GainMode       *uint8  `json:"gain_mode"`
	RecordInterval *uint16 `json:"record_interval"`
}

// WifiStatus is what get_wifi reports. Passwords are never echoed
// back over the socket.
type WifiStatus struct {
	APSSID  string `json:"ap_ssid"`
	STASSID string `json:"sta_ssid"`
	Flags   uint8  `json:"flags"`
	APIP    string `json:"ap_ip_addr"`
	STAIP   string `json:"sta_ip_addr"`
	CurIP   string `json:"cur_ip_addr"`
}

// WifiArgs carries a set_wifi request. As with ConfigArgs, a nil
// field retains its current value.
type WifiArgs struct {
	APSSID  *string `json:"ap_ssid"`
	APPW    *string `json:"ap_pw"`
	STASSID *string `json:"sta_ssid"`
	STAPW   *string `json:"sta_pw"`
	Flags   *uint8  `json:"flags"`
	APIP    *string `json:"ap_ip_addr"`
	STAIP   *string `json:"sta_ip_addr"`
}

// TimeArgs carries a set_time request. Unlike ConfigArgs and
// WifiArgs, every field is required; a request missing any of them is
// a protocol violation and is discarded.
type TimeArgs struct {
	Sec  *uint8 `json:"sec"`
	Min  *uint8 `json:"min"`
	Hour *uint8 `json:"hour"`
	Dow  *uint8 `json:"dow"`
	Day  *uint8 `json:"day"`
	Mon  *uint8 `json:"mon"`
	Year *uint8 `json:"year"`
}

// complete reports whether every field of a TimeArgs was supplied.
func (a TimeArgs) complete() bool {
	return a.Sec != nil && a.Min != nil && a.Hour != nil && a.Dow != nil &&
		a.Day != nil && a.Mon != nil && a.Year != nil
}
