// Copyright 2020 Dan Julio
// This file is part of firecam.

package display

// rgbStop is one control point of a piecewise-linear gradient used to
// build a 256-entry palette lookup table, analogous to the original
// firmware's hand-authored 256x3 palette_map_t tables but generated
// from a handful of named color keypoints instead of carrying the
// full tables verbatim.
type rgbStop struct {
	pos     float64 // 0..1
	r, g, b uint8
}

// buildLUT linearly interpolates between stops (which must be sorted
// by pos and span [0,1]) to produce a 256-entry RGB565 lookup table,
// indexed by an 8-bit linearised thermal intensity.
func buildLUT(stops []rgbStop) [256]uint16 {
	var lut [256]uint16
	for i := 0; i < 256; i++ {
		t := float64(i) / 255.0

		lo, hi := stops[0], stops[len(stops)-1]
		for s := 0; s < len(stops)-1; s++ {
			if t >= stops[s].pos && t <= stops[s+1].pos {
				lo, hi = stops[s], stops[s+1]
				break
			}
		}

		span := hi.pos - lo.pos
		frac := 0.0
		if span > 0 {
			frac = (t - lo.pos) / span
		}

		r := lerp(lo.r, hi.r, frac)
		g := lerp(lo.g, hi.g, frac)
		b := lerp(lo.b, hi.b, frac)
		lut[i] = rgb565(r, g, b)
	}
	return lut
}

func lerp(a, b uint8, frac float64) uint8 {
	v := float64(a) + frac*(float64(b)-float64(a))
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v + 0.5)
}

// rgb565 packs an 8-bit-per-channel color into RGB565, matching the
// original's RGB_TO_16BIT macro. The original also defines a
// byte-swapped variant (RGB_TO_16BIT_SWAP) for its particular LVGL
// framebuffer layout; that swap is a display-controller quirk with no
// meaning on a host target; this port always produces the canonical
// big-endian-within-uint16 packing.
func rgb565(r, g, b uint8) uint16 {
	return (uint16(r&0xF8) << 8) | (uint16(g&0xFC) << 3) | uint16(b>>3)
}

// Palette is a named 256-entry RGB565 lookup table for rendering
// linearised 8-bit thermal intensities.
type Palette struct {
	Name string
	lut  [256]uint16
}

// Lookup maps an 8-bit linearised intensity to its RGB565 pixel
// value.
func (p Palette) Lookup(intensity uint8) uint16 {
	return p.lut[intensity]
}

// palettes holds the fixed set named throughout the command and store
// packages, in the original firmware's display order.
var palettes = []Palette{
	{Name: "Grayscale", lut: buildLUT([]rgbStop{
		{0, 0, 0, 0},
		{1, 255, 255, 255},
	})},
	{Name: "Fusion", lut: buildLUT([]rgbStop{
		{0.00, 0, 0, 40},
		{0.25, 80, 0, 110},
		{0.50, 200, 30, 30},
		{0.75, 255, 140, 0},
		{1.00, 255, 255, 200},
	})},
	{Name: "Rainbow", lut: buildLUT([]rgbStop{
		{0.00, 120, 0, 160},
		{0.25, 0, 0, 255},
		{0.50, 0, 200, 0},
		{0.75, 255, 255, 0},
		{1.00, 255, 0, 0},
	})},
	{Name: "Rainbow2", lut: buildLUT([]rgbStop{
		{0.00, 120, 0, 160},
		{0.15, 0, 0, 255},
		{0.30, 0, 200, 0},
		{0.45, 255, 255, 0},
		{0.50, 255, 0, 0},
		{0.65, 120, 0, 160},
		{0.80, 0, 0, 255},
		{0.90, 0, 200, 0},
		{1.00, 255, 255, 0},
	})},
	{Name: "Ironblack", lut: buildLUT([]rgbStop{
		{0.00, 255, 255, 255},
		{0.35, 255, 200, 0},
		{0.65, 140, 0, 100},
		{1.00, 0, 0, 0},
	})},
	{Name: "Arctic", lut: buildLUT([]rgbStop{
		{0.00, 0, 0, 30},
		{0.40, 0, 80, 160},
		{0.70, 120, 220, 255},
		{1.00, 255, 255, 255},
	})},
}

// ByName returns the palette with the given name and true, or the
// zero Palette and false if name isn't one of the fixed set. Names
// must match store.AllowedPalettes exactly.
func ByName(name string) (Palette, bool) {
	for _, p := range palettes {
		if p.Name == name {
			return p, true
		}
	}
	return Palette{}, false
}

// Names returns every palette name in display order.
func Names() []string {
	names := make([]string, len(palettes))
	for i, p := range palettes {
		names[i] = p.Name
	}
	return names
}
