// Copyright 2020 Dan Julio
// This file is part of firecam.

package command

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFrameExtractorExtractsOneFrame(t *testing.T) {
	var fe FrameExtractor
	frames, violations := fe.Feed(frame([]byte(`{"cmd":"get_status"}`)))
	assert.Equal(t, 0, violations)
	if assert.Len(t, frames, 1) {
		assert.Equal(t, `{"cmd":"get_status"}`, string(frames[0]))
	}
}

func TestFrameExtractorHandlesSplitReads(t *testing.T) {
	var fe FrameExtractor
	whole := frame([]byte(`{"cmd":"record_on"}`))

	frames, _ := fe.Feed(whole[:3])
	assert.Empty(t, frames)

	frames, violations := fe.Feed(whole[3:])
	assert.Equal(t, 0, violations)
	if assert.Len(t, frames, 1) {
		assert.Equal(t, `{"cmd":"record_on"}`, string(frames[0]))
	}
}

func TestFrameExtractorSkipsStraySTOPWithoutSTART(t *testing.T) {
	var fe FrameExtractor

	// A lone 0x03 with no preceding 0x02 must be skipped without
	// producing a frame or a violation, then normal framing resumes.
	input := append([]byte{frameStop}, frame([]byte(`{"cmd":"poweroff"}`))...)
	frames, violations := fe.Feed(input)

	assert.Equal(t, 0, violations)
	if assert.Len(t, frames, 1) {
		assert.Equal(t, `{"cmd":"poweroff"}`, string(frames[0]))
	}
}

func TestFrameExtractorAtMostOneSTARTBetweenDelimiters(t *testing.T) {
	var fe FrameExtractor

	// Two STARTs before a STOP: the payload begins at the *last*
	// START seen before the STOP (the nearest one), not at the
	// earliest one as the original in_buffer scan did.
	input := []byte{frameStart}
	input = append(input, []byte(`{"cmd":"junk"}`)...)
	input = append(input, frameStart)
	input = append(input, []byte(`{"cmd":"get_status"}`)...)
	input = append(input, frameStop)

	frames, _ := fe.Feed(input)
	if assert.Len(t, frames, 1) {
		assert.Equal(t, `{"cmd":"get_status"}`, string(frames[0]))
	}
}

func TestFrameExtractorDropsOversizedPayload(t *testing.T) {
	var fe FrameExtractor
	big := bytes.Repeat([]byte("x"), maxJSONLen+1)

	frames, violations := fe.Feed(frame(big))
	assert.Empty(t, frames)
	assert.Equal(t, 1, violations)
}

func TestFrameExtractorCapsUnterminatedBuffer(t *testing.T) {
	var fe FrameExtractor
	fe.Feed(bytes.Repeat([]byte("x"), maxRxBuffer+500))
	assert.LessOrEqual(t, len(fe.buf), maxRxBuffer)
}
