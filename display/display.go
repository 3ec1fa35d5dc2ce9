// Copyright 2020 Dan Julio
// This file is part of firecam.

// Package display renders the two imager buffers into RGB565 pixels:
// JPEG-decode for the visual camera, and min-max linearisation plus a
// palette lookup for the radiometric thermal frame. It has no
// knowledge of an actual screen; the orchestrator hands it buffers and
// gets pixels back, mirroring how the original firmware's display
// activity consumed sys_cam_buffer/sys_lep_buffer into its own
// gui_cam_bufferP/gui_lep_bufferP without owning either source.
package display

import (
	"bytes"
	"fmt"
	"image/jpeg"

	"github.com/danjulio/firecam/thermal"
)

// ThermalImage is an RGB565 rendering of a thermal frame, row-major,
// same dimensions as the source frame.
type ThermalImage struct {
	Width, Height int
	Pixels        []uint16
}

// RenderThermal linearises frame's min/max range to 8 bits and maps
// it through palette, producing one RGB565 pixel per source sample.
// A frame with every pixel equal (diff == 0, an edge case the
// original firmware's equivalent routine doesn't guard) renders as
// the palette's lowest intensity rather than dividing by zero.
func RenderThermal(frame *thermal.Frame, palette Palette) ThermalImage {
	img := ThermalImage{
		Width:  thermal.FrameCols,
		Height: thermal.FrameRows,
		Pixels: make([]uint16, thermal.FrameRows*thermal.FrameCols),
	}

	minVal, maxVal := uint16(0xFFFF), uint16(0)
	for r := 0; r < thermal.FrameRows; r++ {
		for c := 0; c < thermal.FrameCols; c++ {
			v := frame[r][c]
			if v < minVal {
				minVal = v
			}
			if v > maxVal {
				maxVal = v
			}
		}
	}

	diff := uint32(maxVal - minVal)

	i := 0
	for r := 0; r < thermal.FrameRows; r++ {
		for c := 0; c < thermal.FrameCols; c++ {
			var t8 uint8
			if diff > 0 {
				t32 := uint32(frame[r][c]-minVal) * 254 / diff
				if t32 > 255 {
					t32 = 255
				}
				t8 = uint8(t32)
			}
			img.Pixels[i] = palette.Lookup(t8)
			i++
		}
	}

	return img
}

// VisualImage is an RGB565 rendering of a decoded JPEG, downscaled to
// dstWidth if the source is a multiple of it (1:1, 2:1, 4:1 or 8:1),
// matching the original's tjpgd scale factors.
type VisualImage struct {
	Width, Height int
	Pixels        []uint16
}

// RenderVisual decodes a JPEG image and scales it to dstWidth via
// nearest-neighbor sampling, standing in for the original's tjpgd
// integer-power-of-two scale factors (0=1:1 .. 3=8:1). dstWidth must
// evenly divide the decoded width by a power of two in {1,2,4,8}.
func RenderVisual(jpegData []byte, dstWidth int) (VisualImage, error) {
	img, err := jpeg.Decode(bytes.NewReader(jpegData))
	if err != nil {
		return VisualImage{}, fmt.Errorf("display: decoding jpeg: %w", err)
	}

	bounds := img.Bounds()
	srcWidth := bounds.Dx()
	srcHeight := bounds.Dy()

	scale, err := scaleFactor(srcWidth, dstWidth)
	if err != nil {
		return VisualImage{}, err
	}

	dstHeight := srcHeight / scale
	out := VisualImage{
		Width:  dstWidth,
		Height: dstHeight,
		Pixels: make([]uint16, dstWidth*dstHeight),
	}

	i := 0
	for y := 0; y < dstHeight; y++ {
		sy := bounds.Min.Y + y*scale
		for x := 0; x < dstWidth; x++ {
			sx := bounds.Min.X + x*scale
			r, g, b, _ := img.At(sx, sy).RGBA()
			out.Pixels[i] = rgb565(uint8(r>>8), uint8(g>>8), uint8(b>>8))
			i++
		}
	}

	return out, nil
}

func scaleFactor(srcWidth, dstWidth int) (int, error) {
	if dstWidth <= 0 {
		return 0, fmt.Errorf("display: invalid destination width %d", dstWidth)
	}
	switch srcWidth / dstWidth {
	case 1, 2, 4, 8:
		if srcWidth%dstWidth == 0 {
			return srcWidth / dstWidth, nil
		}
	}
	return 0, fmt.Errorf("display: unsupported scale from %d to %d", srcWidth, dstWidth)
}
