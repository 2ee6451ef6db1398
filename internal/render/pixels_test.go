package render

import (
	"image/color"
	"testing"

	"crowdsim/internal/core"
)

func TestFillPaletteUsesCellValues(t *testing.T) {
	cells := []uint8{core.CellEmpty, core.CellObstacle, core.CellPerson, 9}
	buf := make([]byte, 4*len(cells))
	FillPalette(buf, cells, DefaultPalette)

	for i, c := range cells {
		idx := int(c)
		if idx >= len(DefaultPalette) {
			idx = len(DefaultPalette) - 1
		}
		want := DefaultPalette[idx]
		got := color.RGBA{R: buf[i*4], G: buf[i*4+1], B: buf[i*4+2], A: buf[i*4+3]}
		if got != want {
			t.Fatalf("cell %d: got %v, expected %v", i, got, want)
		}
	}
}

func TestFillPaletteEmptyClears(t *testing.T) {
	buf := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	FillPalette(buf, []uint8{1, 2}, nil)
	for i, b := range buf {
		if b != 0 {
			t.Fatalf("byte %d = %d, expected 0", i, b)
		}
	}
}

func TestMarkSkipsOutOfRange(t *testing.T) {
	buf := make([]byte, 4*3*2)
	red := color.RGBA{R: 255, A: 255}
	Mark(buf, 3, []core.Pos{core.P(2, 1), core.P(3, 0), core.P(0, 2), core.NoPos}, red)
	for i := 0; i < 6; i++ {
		want := byte(0)
		if i == 5 {
			want = 255
		}
		if buf[i*4] != want {
			t.Fatalf("pixel %d red = %d, expected %d", i, buf[i*4], want)
		}
	}
}
