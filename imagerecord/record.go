// Copyright 2020 Dan Julio
// Copyright 2017 The Cacophony Project. All rights reserved.
// Use of this source code is governed by the Apache License Version 2.0;
// see the LICENSE file for further details.

// Package imagerecord defines the externally visible composite unit
// produced once per top-of-second cycle: a metadata object plus up to
// three optional, individually presence-flagged payloads. The same
// type backs the on-disk file format, the get_image command response,
// and the orchestrator's response-buffer handoff to the command
// responder.
package imagerecord

import (
	"encoding/base64"
	"encoding/json"
)

// Metadata is always present in a Record.
type Metadata struct {
	Camera           string  `json:"Camera"`
	Version          string  `json:"Version"`
	SequenceNumber   uint32  `json:"Sequence Number"`
	Time             string  `json:"Time"`
	Date             string  `json:"Date"`
	Battery          float64 `json:"Battery"`
	Charge           string  `json:"Charge"`
	FPATemp          float64 `json:"FPA Temp"`
	AUXTemp          float64 `json:"AUX Temp"`
	LensTemp         float64 `json:"Lens Temp"`
	LeptonGainMode   string  `json:"Lepton Gain Mode"`
	LeptonResolution string  `json:"Lepton Resolution"`
}

// Record is the metadata plus up to three optional payloads. JPEG,
// Radiometric and Telemetry are nil when absent, which is how the
// presence flags named in the spec are represented in Go: a nil slice
// marshals to an omitted field via the omitempty tag below rather
// than to "null".
type Record struct {
	Metadata    Metadata `json:"metadata"`
	JPEG        []byte   `json:"jpeg,omitempty"`
	Radiometric []byte   `json:"radiometric,omitempty"`
	Telemetry   []byte   `json:"telemetry,omitempty"`
}

// MarshalJSON base64-encodes the optional payloads at serialisation
// time. The encoded copies are scoped to this single call and
// discarded once json.Marshal returns; no base64 copy of the payload
// buffers outlives it.
func (r Record) MarshalJSON() ([]byte, error) {
	type wire struct {
		Metadata    Metadata `json:"metadata"`
		JPEG        string   `json:"jpeg,omitempty"`
		Radiometric string   `json:"radiometric,omitempty"`
		Telemetry   string   `json:"telemetry,omitempty"`
	}
	w := wire{Metadata: r.Metadata}
	if r.JPEG != nil {
		w.JPEG = base64.StdEncoding.EncodeToString(r.JPEG)
	}
	if r.Radiometric != nil {
		w.Radiometric = base64.StdEncoding.EncodeToString(r.Radiometric)
	}
	if r.Telemetry != nil {
		w.Telemetry = base64.StdEncoding.EncodeToString(r.Telemetry)
	}
	return json.Marshal(w)
}

// UnmarshalJSON reverses MarshalJSON, used when a file is re-read (or
// a command argument echoes a previous record back).
func (r *Record) UnmarshalJSON(data []byte) error {
	type wire struct {
		Metadata    Metadata `json:"metadata"`
		JPEG        string   `json:"jpeg,omitempty"`
		Radiometric string   `json:"radiometric,omitempty"`
		Telemetry   string   `json:"telemetry,omitempty"`
	}
	var w wire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	r.Metadata = w.Metadata
	var err error
	if w.JPEG != "" {
		if r.JPEG, err = base64.StdEncoding.DecodeString(w.JPEG); err != nil {
			return err
		}
	}
	if w.Radiometric != "" {
		if r.Radiometric, err = base64.StdEncoding.DecodeString(w.Radiometric); err != nil {
			return err
		}
	}
	if w.Telemetry != "" {
		if r.Telemetry, err = base64.StdEncoding.DecodeString(w.Telemetry); err != nil {
			return err
		}
	}
	return nil
}

// HasJPEG, HasRadiometric and HasTelemetry are the presence flags the
// spec calls for, derived from whether the corresponding payload is
// nil rather than stored as separate bools.
func (r Record) HasJPEG() bool        { return r.JPEG != nil }
func (r Record) HasRadiometric() bool { return r.Radiometric != nil }
func (r Record) HasTelemetry() bool   { return r.Telemetry != nil }
