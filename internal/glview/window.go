//go:build !nogl

package glview

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/FabianRolfMatthiasNoll/SpectrumEmulator/internal/core"
	"github.com/FabianRolfMatthiasNoll/SpectrumEmulator/internal/keymap"
	"github.com/FabianRolfMatthiasNoll/SpectrumEmulator/internal/logger"
	"github.com/FabianRolfMatthiasNoll/SpectrumEmulator/internal/thread"
	"github.com/FabianRolfMatthiasNoll/SpectrumEmulator/internal/video"
	"github.com/go-gl/gl/v3.2-core/gl"
	"github.com/veandco/go-sdl2/sdl"
)

// pollMs bounds how long the loop sleeps in SDL before checking fences.
const pollMs = 2

// Window is the SDL window, its GL context and the presenter drawing into it.
type Window struct {
	cfg       Config
	m         core.Machine
	log       *logger.Logger
	redrawLog *logger.Logger
	win       *sdl.Window
	ctx       sdl.GLContext
	dev       *device
	completer *video.Completer
	presenter *video.Presenter
	mods      keymap.Modifiers
	table     keymap.Table
	focused   bool

	redrawEvent  atomic.Uint32
	redrawQueued atomic.Bool

	lastTitle time.Time
	lastDrawn uint64
	closed    bool
}

// New opens the window on the main thread and creates the GPU resources for
// every slot of frames. thread.Main must be running.
func New(cfg Config, m core.Machine, frames *video.Pool, log *logger.Logger) (*Window, error) {
	cfg.Defaults()
	l := log.Module("glview")
	w := &Window{
		cfg:       cfg,
		m:         m,
		log:       l,
		redrawLog: l.Every(time.Second),
		table:     keymap.Spectrum48,
		focused:   true,
	}
	if err := thread.CallErr(func() error { return w.open(frames) }); err != nil {
		return nil, err
	}
	return w, nil
}

func (w *Window) open(frames *video.Pool) error {
	if err := sdl.Init(sdl.INIT_VIDEO | sdl.INIT_EVENTS); err != nil {
		return &video.InitError{Resource: "sdl", Err: err}
	}
	for _, a := range [][2]int{
		{sdl.GL_CONTEXT_MAJOR_VERSION, 3},
		{sdl.GL_CONTEXT_MINOR_VERSION, 2},
		{sdl.GL_CONTEXT_FLAGS, sdl.GL_CONTEXT_FORWARD_COMPATIBLE_FLAG},
		{sdl.GL_CONTEXT_PROFILE_MASK, sdl.GL_CONTEXT_PROFILE_CORE},
		{sdl.GL_DOUBLEBUFFER, 1},
	} {
		if err := sdl.GLSetAttribute(sdl.GLattr(a[0]), a[1]); err != nil {
			sdl.Quit()
			return &video.InitError{Resource: "gl attributes", Err: err}
		}
	}

	g := w.m.Geometry()
	width := int32(g.Width * w.cfg.Scale)
	win, err := sdl.CreateWindow(w.cfg.Title, sdl.WINDOWPOS_CENTERED, sdl.WINDOWPOS_CENTERED,
		width, width*3/4, sdl.WINDOW_OPENGL|sdl.WINDOW_RESIZABLE|sdl.WINDOW_ALLOW_HIGHDPI)
	if err != nil {
		sdl.Quit()
		return &video.InitError{Resource: "window", Err: err}
	}
	w.win = win

	ctx, err := win.GLCreateContext()
	if err != nil {
		w.destroyWindow()
		return &video.InitError{Resource: "gl context", Err: err}
	}
	w.ctx = ctx
	if err := gl.Init(); err != nil {
		w.destroyWindow()
		return &video.InitError{Resource: "gl functions", Err: err}
	}
	w.log.Info().Str("gl", gl.GoStr(gl.GetString(gl.VERSION))).
		Str("renderer", gl.GoStr(gl.GetString(gl.RENDERER))).Msg("context created")

	interval := 1
	if w.cfg.NoVSync {
		interval = 0
	}
	if err := sdl.GLSetSwapInterval(interval); err != nil {
		w.log.Warn().Err(err).Int("interval", interval).Msg("swap interval")
	}

	ev := sdl.RegisterEvents(1)
	if ev == ^uint32(0) {
		w.destroyWindow()
		return &video.InitError{Resource: "redraw event", Err: sdl.GetError()}
	}

	w.completer = video.NewCompleter(video.PoolSize)
	w.dev = newDevice(w.completer, win)
	p, err := video.NewPresenter(frames, w.dev, w.log)
	if err != nil {
		w.completer.Close()
		w.destroyWindow()
		return err
	}
	w.presenter = p
	w.resize(win.GLGetDrawableSize())
	w.redrawEvent.Store(ev)
	return nil
}

func (w *Window) destroyWindow() {
	if w.ctx != nil {
		sdl.GLDeleteContext(w.ctx)
		w.ctx = nil
	}
	if w.win != nil {
		_ = w.win.Destroy()
		w.win = nil
	}
	sdl.Quit()
}

// RequestRedraw wakes the event loop to present the newest frame. Requests
// made before the previous one was handled are folded into it. Safe from any
// goroutine.
func (w *Window) RequestRedraw() {
	t := w.redrawEvent.Load()
	if t == 0 || !w.redrawQueued.CompareAndSwap(false, true) {
		return
	}
	if _, err := sdl.PushEvent(&sdl.UserEvent{Type: t}); err != nil {
		w.redrawQueued.Store(false)
	}
}

// Run processes window events until the window is closed or Esc is pressed.
func (w *Window) Run() error {
	return thread.CallErr(func() error {
		for {
			ev := sdl.WaitEventTimeout(pollMs)
			for ; ev != nil; ev = sdl.PollEvent() {
				if !w.handle(ev) {
					return nil
				}
			}
			if w.focused {
				ms := sdl.GetModState()
				w.mods.Update(w.m, ms&sdl.KMOD_SHIFT != 0, ms&sdl.KMOD_ALT != 0)
			}
			w.dev.poll()
			w.updateTitle()
		}
	})
}

func (w *Window) handle(ev sdl.Event) bool {
	switch e := ev.(type) {
	case *sdl.QuitEvent:
		return false

	case *sdl.WindowEvent:
		switch e.Event {
		case sdl.WINDOWEVENT_SIZE_CHANGED:
			w.resize(w.win.GLGetDrawableSize())
		case sdl.WINDOWEVENT_FOCUS_LOST:
			w.focused = false
			w.mods.Release(w.m)
		case sdl.WINDOWEVENT_FOCUS_GAINED:
			w.focused = true
		}

	case *sdl.KeyboardEvent:
		if e.Repeat != 0 {
			break
		}
		if e.Keysym.Sym == sdl.K_ESCAPE && e.Type == sdl.KEYDOWN {
			return false
		}
		code, ok := w.code(e.Keysym.Sym)
		if !ok {
			break
		}
		if e.Type == sdl.KEYDOWN {
			w.m.KeyDown(code)
		} else {
			w.m.KeyUp(code)
		}

	case *sdl.UserEvent:
		if e.Type != w.redrawEvent.Load() {
			break
		}
		w.redrawQueued.Store(false)
		if err := w.presenter.Redraw(); err != nil {
			w.redrawLog.Error().Err(err).Msg("redraw")
		}
	}
	return true
}

// code maps an SDL keycode to the machine key. Printable keycodes are their
// unshifted ASCII character.
func (w *Window) code(sym sdl.Keycode) (uint32, bool) {
	r := rune(sym)
	if sym == sdl.K_KP_ENTER {
		r = '\r'
	}
	if r <= 0 || r > 0x7f {
		return 0, false
	}
	return w.table.Lookup(r)
}

func (w *Window) resize(dw, dh int32) {
	gl.Viewport(0, 0, dw, dh)
	w.presenter.Resize(int(dw), int(dh))
}

func (w *Window) updateTitle() {
	now := time.Now()
	if now.Sub(w.lastTitle) < time.Second {
		return
	}
	drawn := w.presenter.Stats().Drawn
	fps := float64(drawn-w.lastDrawn) / now.Sub(w.lastTitle).Seconds()
	if w.lastTitle.IsZero() {
		fps = 0
	}
	w.lastTitle, w.lastDrawn = now, drawn
	w.win.SetTitle(fmt.Sprintf("%s - %.0f fps, %d dropped", w.cfg.Title, fps, w.presenter.Pool().Stats().Dropped))
}

func (w *Window) Presenter() *video.Presenter { return w.presenter }

// Close waits for the GPU, returns every slot and destroys the window. Call
// after Run has returned and the audio side has stopped.
func (w *Window) Close() {
	if w.closed {
		return
	}
	w.closed = true
	w.redrawEvent.Store(0)
	thread.Call(func() {
		w.dev.finish()
		w.presenter.Close()
		w.completer.Close()
		w.destroyWindow()
	})
}
