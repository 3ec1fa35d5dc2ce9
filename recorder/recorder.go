// Copyright 2020 Dan Julio
// Copyright 2017 The Cacophony Project. All rights reserved.
// Use of this source code is governed by the Apache License Version 2.0;
// see the LICENSE file for further details.

// Package recorder owns the recording session lifecycle: probing for
// storage, creating the session directory tree, and writing each
// assembled image record to its own file. It mirrors the original
// firmware's file task, with the SD card driver and FATFS calls
// replaced by a CardProbe seam and the host filesystem.
package recorder

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/danjulio/firecam/imagerecord"
	"github.com/danjulio/firecam/rtc"
)

const (
	// filesPerGroup bounds how many files share a group_NNNN
	// subdirectory; purely a filesystem-performance measure, not a
	// semantic one.
	filesPerGroup = 100

	// maxWriteChunk bounds a single write() call, mirroring the
	// original task's MAX_FILE_WRITE_LEN so a write failure is
	// detected promptly rather than after buffering an entire record.
	maxWriteChunk = 4096

	// CardCheckPeriod is how often a caller should invoke
	// Recorder.CardPresent while not recording, matching the original
	// task's card-presence poll rate.
	CardCheckPeriod = 2 * time.Second
)

// ErrNoCard is returned by Start when no storage is present.
var ErrNoCard = errors.New("recorder: no card present")

// CardProbe abstracts storage presence detection, standing in for the
// original firmware's SD card insertion/removal probing over SDMMC.
type CardProbe interface {
	// Present reports whether storage is currently usable.
	Present() bool
}

// DirCardProbe implements CardProbe by checking that Root exists and
// is a directory, the host-filesystem equivalent of "is there a card
// mounted here".
type DirCardProbe struct {
	Root string
}

func (p DirCardProbe) Present() bool {
	info, err := os.Stat(p.Root)
	return err == nil && info.IsDir()
}

// Recorder manages one recording session at a time under Root. It is
// not safe for concurrent use; callers that follow the
// single-owner-goroutine pattern used elsewhere in this port (the
// orchestrator driving the recorder synchronously) don't need their
// own locking.
type Recorder struct {
	root  string
	probe CardProbe

	active     bool
	sessionDir string
	seqNum     uint32
	curGroup   int
}

// New returns a Recorder rooted at root, using probe to detect
// storage presence. DirCardProbe{root} is the natural probe for a
// plain host filesystem.
func New(root string, probe CardProbe) *Recorder {
	return &Recorder{root: root, probe: probe, curGroup: -1}
}

// CardPresent reports the current storage presence state.
func (r *Recorder) CardPresent() bool {
	return r.probe.Present()
}

// Active reports whether a recording session is underway.
func (r *Recorder) Active() bool {
	return r.active
}

// Start begins a new recording session, creating
// "session_YY_MM_DD_HH_MM_SS" under Root. It fails with ErrNoCard if
// storage is not present; the caller (the orchestrator) is
// responsible for surfacing the "insert a SD card" message.
func (r *Recorder) Start(now time.Time) error {
	if !r.probe.Present() {
		return ErrNoCard
	}

	dirName := "session_" + rtc.ShortString(rtc.Break(now))
	if err := os.MkdirAll(filepath.Join(r.root, dirName), 0o755); err != nil {
		return fmt.Errorf("recorder: creating session directory: %w", err)
	}

	r.sessionDir = dirName
	r.seqNum = 1
	r.curGroup = -1
	r.active = true
	return nil
}

// Stop ends the current recording session. It does not touch any
// files already written.
func (r *Recorder) Stop() {
	r.active = false
	r.sessionDir = ""
	r.seqNum = 0
	r.curGroup = -1
}

// WriteRecord serialises rec to JSON and writes it to the next
// sequenced file in the current session, advancing the sequence
// number only on success. A write failure here is the "fatal record
// write failure" case the orchestrator must treat as fatal: stop
// recording and escalate to a reboot, per the error taxonomy.
func (r *Recorder) WriteRecord(rec imagerecord.Record) error {
	if !r.active {
		return errors.New("recorder: no active session")
	}

	group := int(r.seqNum-1) / filesPerGroup
	groupName := fmt.Sprintf("group_%04d", group)
	if group != r.curGroup {
		if err := os.MkdirAll(filepath.Join(r.root, r.sessionDir, groupName), 0o755); err != nil {
			return fmt.Errorf("recorder: creating group directory: %w", err)
		}
		r.curGroup = group
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("recorder: encoding record: %w", err)
	}

	fileName := fmt.Sprintf("img_%05d.json", r.seqNum)
	path := filepath.Join(r.root, r.sessionDir, groupName, fileName)
	if err := writeChunked(path, data); err != nil {
		return err
	}

	r.seqNum++
	return nil
}

// writeChunked writes data to path maxWriteChunk bytes at a time,
// matching the original task's bounded fwrite loop so a failing write
// is caught mid-file rather than assumed complete by a single
// buffered call.
func writeChunked(path string, data []byte) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("recorder: opening %s: %w", path, err)
	}
	defer f.Close()

	bw := bufio.NewWriterSize(f, maxWriteChunk)
	offset := 0
	for offset < len(data) {
		end := offset + maxWriteChunk
		if end > len(data) {
			end = len(data)
		}
		n, err := bw.Write(data[offset:end])
		if err != nil {
			return fmt.Errorf("recorder: writing %s: %w", path, err)
		}
		offset += n
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("recorder: flushing %s: %w", path, err)
	}
	return nil
}

// SequenceNumber returns the sequence number the next WriteRecord
// call will use.
func (r *Recorder) SequenceNumber() uint32 {
	return r.seqNum
}

// SessionDir returns the current session's directory name, or "" if
// no session is active.
func (r *Recorder) SessionDir() string {
	return r.sessionDir
}
