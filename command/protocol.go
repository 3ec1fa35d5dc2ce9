// Copyright 2020 Dan Julio
// This file is part of firecam.

// Package command implements the single-connection TCP command
// responder: a 0x02/0x03-delimited JSON protocol carried over a
// bounded receive buffer, with a synchronous/asynchronous response
// split mirroring the original firmware's cmd_task and
// json_utilities.
package command

import (
	"bytes"
	"time"
)

const (
	frameStart = 0x02
	frameStop  = 0x03

	// maxJSONLen bounds a single command's JSON payload; anything
	// longer is a protocol violation and is dropped.
	maxJSONLen = 256

	// maxRxBuffer bounds how much unterminated input is retained
	// between reads, standing in for the original's fixed-size
	// circular receive buffer.
	maxRxBuffer = 1024

	// maxTxChunk bounds a single conn.Write call when sending a
	// response, so a stalled client is detected promptly.
	maxTxChunk = 1024

	// responseWait is how long the responder waits for an
	// asynchronous response (get_image) to become available before
	// giving up on the request.
	responseWait = 1500 * time.Millisecond
)

// frame wraps payload in the 0x02/0x03 delimiters used for both
// commands and responses.
func frame(payload []byte) []byte {
	out := make([]byte, 0, len(payload)+2)
	out = append(out, frameStart)
	out = append(out, payload...)
	out = append(out, frameStop)
	return out
}

// FrameExtractor pulls complete 0x02<JSON>0x03 frames out of a stream
// of bytes arriving in arbitrary-sized reads. It is deliberately not
// a true ring buffer as in the original firmware; a growing slice
// trimmed to maxRxBuffer gives the same bounded-memory behaviour with
// far less bookkeeping.
type FrameExtractor struct {
	buf []byte
}

// Feed appends data to the pending buffer and extracts every complete
// frame it can find. It returns the extracted JSON payloads (start
// and stop bytes stripped) and a count of protocol violations
// encountered along the way (oversized payloads between a matched
// pair of delimiters).
//
// Framing algorithm, matching the original's process_rx_data /
// in_buffer: scan for the next 0x03. If a 0x02 appears anywhere
// before it, the bytes between them are a command. If no 0x02
// precedes it, the stray 0x03 is skipped without error. Either way
// the buffer is consumed through the 0x03 and scanning resumes on
// the remainder.
//
// When more than one 0x02 precedes the 0x03, this picks the nearest
// one (bytes.LastIndexByte), not the earliest one the original's
// forward scan from rx_circular_pop_index would pick. A well-formed
// stream never has two unmatched 0x02s pending at once, so the two
// choices only differ on an already-malformed stream, where the
// nearest match discards the smaller amount of garbage.
func (f *FrameExtractor) Feed(data []byte) ([][]byte, int) {
	f.buf = append(f.buf, data...)

	var frames [][]byte
	violations := 0
	for {
		stop := bytes.IndexByte(f.buf, frameStop)
		if stop < 0 {
			break
		}
		start := bytes.LastIndexByte(f.buf[:stop], frameStart)
		if start >= 0 {
			payload := f.buf[start+1 : stop]
			if len(payload) <= maxJSONLen {
				cp := make([]byte, len(payload))
				copy(cp, payload)
				frames = append(frames, cp)
			} else {
				violations++
			}
		}
		f.buf = f.buf[stop+1:]
	}

	if len(f.buf) > maxRxBuffer {
		f.buf = f.buf[len(f.buf)-maxRxBuffer:]
	}

	return frames, violations
}
