package ui

import (
	"fmt"
	"image"
	"image/png"
	"os"
	"sync/atomic"
	"time"

	"github.com/FabianRolfMatthiasNoll/SpectrumEmulator/internal/core"
	"github.com/FabianRolfMatthiasNoll/SpectrumEmulator/internal/keymap"
	"github.com/FabianRolfMatthiasNoll/SpectrumEmulator/internal/logger"
	"github.com/FabianRolfMatthiasNoll/SpectrumEmulator/internal/video"
	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
)

// App is the ebiten window. The game loop is the display context: Layout
// resizes, Draw presents, Update forwards keys to the machine.
type App struct {
	cfg       Config
	m         core.Machine
	presenter *video.Presenter
	dev       *device
	completer *video.Completer
	log       *logger.Logger
	redrawLog *logger.Logger

	keys   []ebiten.Key
	mods   keymap.Modifiers
	table  keymap.Table
	dirty  atomic.Bool
	outW   int
	outH   int
	closed bool

	// overlay
	showStats  bool
	shotQueued bool
	toastMsg   string
	toastUntil time.Time
	lastTitle  time.Time
	lastDrawn  uint64
}

// NewApp creates the window state and the GPU resources for every frame slot.
func NewApp(cfg Config, m core.Machine, frames *video.Pool, log *logger.Logger) (*App, error) {
	cfg.Defaults()
	ebiten.SetWindowTitle(cfg.Title)
	g := m.Geometry()
	w := g.Width * cfg.Scale
	ebiten.SetWindowSize(w, w*3/4)
	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)
	ebiten.SetVsyncEnabled(!cfg.NoVSync)
	// a redraw with no new frame leaves the last one on screen
	ebiten.SetScreenClearedEveryFrame(false)

	l := log.Module("ui")
	completer := video.NewCompleter(video.PoolSize)
	dev := newDevice(completer)
	p, err := video.NewPresenter(frames, dev, log)
	if err != nil {
		completer.Close()
		return nil, err
	}
	return &App{
		cfg:       cfg,
		m:         m,
		presenter: p,
		dev:       dev,
		completer: completer,
		log:       l,
		redrawLog: l.Every(time.Second),
		table:     keymap.Spectrum48,
	}, nil
}

func (a *App) Run() error { return ebiten.RunGame(a) }

// RequestRedraw marks a new frame as available. Safe from any goroutine.
func (a *App) RequestRedraw() { a.dirty.Store(true) }

func (a *App) Update() error {
	if inpututil.IsKeyJustPressed(ebiten.KeyEscape) {
		return ebiten.Termination
	}

	// Host keys → Spectrum keyboard matrix
	a.keys = inpututil.AppendJustPressedKeys(a.keys[:0])
	for _, k := range a.keys {
		if code, ok := a.code(k); ok {
			a.m.KeyDown(code)
		}
	}
	a.keys = inpututil.AppendJustReleasedKeys(a.keys[:0])
	for _, k := range a.keys {
		if code, ok := a.code(k); ok {
			a.m.KeyUp(code)
		}
	}
	if ebiten.IsFocused() {
		a.mods.Update(a.m, ebiten.IsKeyPressed(ebiten.KeyShift), ebiten.IsKeyPressed(ebiten.KeyAlt))
	} else {
		a.mods.Release(a.m)
	}

	// Stats overlay (F1)
	if inpututil.IsKeyJustPressed(ebiten.KeyF1) {
		a.showStats = !a.showStats
	}
	// Screenshot (F12)
	if inpututil.IsKeyJustPressed(ebiten.KeyF12) {
		a.shotQueued = true
	}
	a.updateTitle()
	return nil
}

func (a *App) code(k ebiten.Key) (uint32, bool) {
	r, ok := keyRunes[k]
	if !ok {
		return 0, false
	}
	return a.table.Lookup(r)
}

func (a *App) Draw(screen *ebiten.Image) {
	a.dev.beginFrame(screen)
	if !a.dirty.Swap(false) {
		return
	}
	before := a.presenter.Stats().Drawn
	if err := a.presenter.Redraw(); err != nil {
		// a broken device fails on every refresh
		a.redrawLog.Error().Err(err).Msg("redraw")
	}
	// overlays go on top of a fresh frame only; the surface is never cleared
	if a.presenter.Stats().Drawn == before {
		return
	}
	if a.shotQueued {
		a.shotQueued = false
		if name, err := a.saveScreenshot(); err != nil {
			a.toast("Screenshot failed: " + err.Error())
		} else {
			a.toast("Saved " + name)
		}
	}
	a.drawOverlay(screen)
}

// Layout keeps the logical screen at the window's size so the presenter can
// fill it at 4:3.
func (a *App) Layout(outW, outH int) (int, int) {
	if outW != a.outW || outH != a.outH {
		a.outW, a.outH = outW, outH
		a.presenter.Resize(outW, outH)
	}
	return outW, outH
}

func (a *App) updateTitle() {
	now := time.Now()
	if now.Sub(a.lastTitle) < time.Second {
		return
	}
	drawn := a.presenter.Stats().Drawn
	fps := float64(drawn-a.lastDrawn) / now.Sub(a.lastTitle).Seconds()
	if a.lastTitle.IsZero() {
		fps = 0
	}
	a.lastTitle, a.lastDrawn = now, drawn
	ebiten.SetWindowTitle(fmt.Sprintf("%s - %.0f fps, %d dropped", a.cfg.Title, fps, a.presenter.Pool().Stats().Dropped))
}

// Close retires the last frame and frees GPU resources. Call after Run has
// returned and the audio side has stopped.
func (a *App) Close() {
	if a.closed {
		return
	}
	a.closed = true
	a.dev.retire()
	a.presenter.Close()
	a.completer.Close()
}

func (a *App) Presenter() *video.Presenter { return a.presenter }

func (a *App) saveScreenshot() (string, error) {
	pix, w, h := a.dev.lastRGBA()
	if pix == nil {
		return "", fmt.Errorf("nothing drawn yet")
	}
	img := &image.RGBA{
		Pix:    make([]byte, len(pix)),
		Stride: 4 * w,
		Rect:   image.Rect(0, 0, w, h),
	}
	copy(img.Pix, pix)
	ts := time.Now().Format("20060102_150405")
	name := fmt.Sprintf("screenshot_%s.png", ts)
	f, err := os.Create(name)
	if err != nil {
		return "", err
	}
	defer f.Close()
	return name, png.Encode(f, img)
}
