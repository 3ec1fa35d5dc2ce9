// Copyright 2020 Dan Julio
// This file is part of firecam.

package display

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danjulio/firecam/thermal"
)

func TestRenderThermalMapsMinAndMaxToPaletteEnds(t *testing.T) {
	palette, ok := ByName("Grayscale")
	require.True(t, ok)

	var frame thermal.Frame
	frame[0][0] = 1000
	frame[10][10] = 5000
	// Everything else defaults to 0, below the chosen min, so set a
	// floor explicitly to keep the test's min/max unambiguous.
	for r := range frame {
		for c := range frame[r] {
			if frame[r][c] == 0 {
				frame[r][c] = 1000
			}
		}
	}
	frame[0][0] = 1000
	frame[10][10] = 5000

	img := RenderThermal(&frame, palette)
	assert.Equal(t, thermal.FrameCols, img.Width)
	assert.Equal(t, thermal.FrameRows, img.Height)

	minPixel := img.Pixels[0*thermal.FrameCols+0]
	maxPixel := img.Pixels[10*thermal.FrameCols+10]
	assert.Equal(t, palette.Lookup(0), minPixel)
	assert.Equal(t, palette.Lookup(254), maxPixel)
}

func TestRenderThermalHandlesFlatFrameWithoutPanicking(t *testing.T) {
	palette, _ := ByName("Fusion")
	var frame thermal.Frame
	for r := range frame {
		for c := range frame[r] {
			frame[r][c] = 4200
		}
	}

	img := RenderThermal(&frame, palette)
	for _, px := range img.Pixels {
		assert.Equal(t, palette.Lookup(0), px)
	}
}

func TestRenderVisualDecodesAndScales(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 8, 4))
	for y := 0; y < 4; y++ {
		for x := 0; x < 8; x++ {
			src.Set(x, y, color.RGBA{R: 200, G: 10, B: 10, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, src, &jpeg.Options{Quality: 100}))

	out, err := RenderVisual(buf.Bytes(), 4)
	require.NoError(t, err)
	assert.Equal(t, 4, out.Width)
	assert.Equal(t, 2, out.Height)
	assert.Len(t, out.Pixels, 8)
}

func TestRenderVisualRejectsUnsupportedScale(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 9, 9))
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, src, nil))

	_, err := RenderVisual(buf.Bytes(), 4)
	assert.Error(t, err)
}

func TestByNameCoversFixedPaletteSet(t *testing.T) {
	for _, name := range []string{"Grayscale", "Fusion", "Rainbow", "Rainbow2", "Ironblack", "Arctic"} {
		_, ok := ByName(name)
		assert.True(t, ok, name)
	}
	_, ok := ByName("NotAPalette")
	assert.False(t, ok)
}
