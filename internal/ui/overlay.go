//go:build ebiten

package ui

import (
	"image/color"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"

	"crowdsim/internal/core"
	"crowdsim/internal/render"
)

type goalProvider interface {
	Size() core.Size
	Goals() []core.Pos
}

// Overlay draws the goals of persons still walking on top of the grid.
// Key 1 toggles it.
type Overlay struct {
	src     goalProvider
	scale   int
	show    bool
	maskImg *ebiten.Image
	maskBuf []byte
	tint    color.RGBA
}

// NewOverlay constructs a new overlay instance.
func NewOverlay(src goalProvider, scale int) *Overlay {
	return &Overlay{src: src, scale: scale, show: true, tint: color.RGBA{R: 64, G: 164, B: 223, A: 160}}
}

// Update handles the toggle key.
func (o *Overlay) Update() {
	if inpututil.IsKeyJustPressed(ebiten.KeyDigit1) {
		o.show = !o.show
	}
}

// Draw renders the overlay onto the provided screen.
func (o *Overlay) Draw(screen *ebiten.Image) {
	if !o.show {
		return
	}
	size := o.src.Size()
	total := size.W * size.H
	if total == 0 {
		return
	}
	if o.maskImg == nil || o.maskImg.Bounds().Dx() != size.W || o.maskImg.Bounds().Dy() != size.H {
		o.maskImg = ebiten.NewImage(size.W, size.H)
		o.maskBuf = make([]byte, 4*total)
	}
	clear(o.maskBuf)
	render.Mark(o.maskBuf, size.W, o.src.Goals(), o.tint)
	o.maskImg.WritePixels(o.maskBuf)

	scale := o.scale
	if scale <= 0 {
		scale = 1
	}
	op := &ebiten.DrawImageOptions{}
	op.GeoM.Scale(float64(scale), float64(scale))
	screen.DrawImage(o.maskImg, op)
}
