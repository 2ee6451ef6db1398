//go:build ebiten

package app

import (
	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"

	"crowdsim/internal/core"
	"crowdsim/internal/logging"
	"crowdsim/internal/render"
	"crowdsim/internal/sim"
	"crowdsim/internal/ui"
)

// Controller is the simulation surface the viewer drives.
type Controller interface {
	Size() core.Size
	Cells() []uint8
	Goals() []core.Pos
	Parameters() core.ParameterSnapshot
	State() sim.State
	Pause() error
	Continue() error
	Advance(n int) error
}

// Game adapts a running simulation to the ebiten.Game interface.
type Game struct {
	sim     Controller
	painter *render.GridPainter
	overlay *ui.Overlay
	hud     *ui.HUD
	log     logging.Logger
	quit    func()

	scale int
}

// New constructs a Game for the provided simulation. quit runs once when the
// window is closed with Q or Escape.
func New(s Controller, title string, cfg *Config, log logging.Logger, quit func()) *Game {
	size := s.Size()
	if log == nil {
		log = logging.NoOpLogger{}
	}
	return &Game{
		sim:     s,
		painter: render.NewGridPainter(size.W, size.H, nil),
		overlay: ui.NewOverlay(s, cfg.Scale),
		hud:     ui.NewHUD(s, title, cfg.HUDWidth),
		log:     log,
		quit:    quit,
		scale:   cfg.Scale,
	}
}

// Update handles per-frame input. Ticks run on the simulation's own workers.
func (g *Game) Update() error {
	if inpututil.IsKeyJustPressed(ebiten.KeyQ) || inpututil.IsKeyJustPressed(ebiten.KeyEscape) {
		if g.quit != nil {
			g.quit()
		}
		return ebiten.Termination
	}
	if inpututil.IsKeyJustPressed(ebiten.KeySpace) {
		g.togglePause()
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyN) && g.sim.State() == sim.Paused {
		if err := g.sim.Advance(1); err != nil {
			g.log.Warn("single step failed", "error", err)
		}
	}
	g.overlay.Update()
	g.hud.Update()
	return nil
}

func (g *Game) togglePause() {
	var err error
	switch g.sim.State() {
	case sim.Running:
		err = g.sim.Pause()
	case sim.Paused:
		err = g.sim.Continue()
	}
	if err != nil {
		g.log.Warn("pause toggle failed", "error", err)
	}
}

// Draw renders the current simulation state.
func (g *Game) Draw(screen *ebiten.Image) {
	g.painter.Blit(screen, g.sim.Cells(), g.scale)
	g.overlay.Draw(screen)
	g.hud.Draw(screen, g.sim.Size().W*g.scale, g.scale)
}

// Layout returns the logical screen size.
func (g *Game) Layout(outsideWidth, outsideHeight int) (int, int) {
	s := g.sim.Size()
	return s.W*g.scale + g.hud.Width(), s.H * g.scale
}
