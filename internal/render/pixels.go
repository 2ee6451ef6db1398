// Package render turns grid cells into RGBA pixels.
package render

import (
	"image/color"

	"crowdsim/internal/core"
)

// DefaultPalette colours cells by their core.Cell* value.
var DefaultPalette = []color.RGBA{
	core.CellEmpty:    {R: 18, G: 18, B: 24, A: 255},
	core.CellObstacle: {R: 110, G: 110, B: 120, A: 255},
	core.CellPerson:   {R: 240, G: 190, B: 60, A: 255},
}

// FillPalette converts cell values into RGBA pixels using a palette. Values
// past the end of the palette use its last entry. When the palette is empty
// the buffer is cleared to transparent black.
func FillPalette(buf []byte, cells []uint8, palette []color.RGBA) {
	if len(palette) == 0 {
		clear(buf[:4*len(cells)])
		return
	}

	last := len(palette) - 1
	for i, c := range cells {
		idx := int(c)
		if idx > last {
			idx = last
		}
		base := i * 4
		col := palette[idx]
		buf[base+0] = col.R
		buf[base+1] = col.G
		buf[base+2] = col.B
		buf[base+3] = col.A
	}
}

// Mark paints the given cells of a w-wide pixel buffer with col.
func Mark(buf []byte, w int, cells []core.Pos, col color.RGBA) {
	if w <= 0 {
		return
	}
	h := len(buf) / 4 / w
	for _, p := range cells {
		if p.X < 0 || p.Y < 0 || p.X >= w || p.Y >= h {
			continue
		}
		base := (p.Y*w + p.X) * 4
		buf[base+0] = col.R
		buf[base+1] = col.G
		buf[base+2] = col.B
		buf[base+3] = col.A
	}
}
