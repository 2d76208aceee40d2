package bridge

import (
	"encoding/binary"
	"testing"

	"github.com/FabianRolfMatthiasNoll/SpectrumEmulator/internal/audio"
	"github.com/FabianRolfMatthiasNoll/SpectrumEmulator/internal/core"
	"github.com/FabianRolfMatthiasNoll/SpectrumEmulator/internal/core/testcard"
	"github.com/FabianRolfMatthiasNoll/SpectrumEmulator/internal/logger"
	"github.com/FabianRolfMatthiasNoll/SpectrumEmulator/internal/video"
)

// counter paints every pixel with the tick number and produces n samples.
type counter struct {
	geo   core.Geometry
	n     int
	tick  uint32
	frame []byte
}

func newCounter(w, h, stride, n int) *counter {
	return &counter{geo: core.Geometry{Width: w, Height: h, BytesPerRow: stride}, n: n, frame: make([]byte, h*stride)}
}

func (c *counter) Geometry() core.Geometry { return c.geo }
func (c *counter) KeyDown(uint32)          {}
func (c *counter) KeyUp(uint32)            {}

func (c *counter) AdvanceOneTick(buf []float32) (int, []byte) {
	c.tick++
	for i := 0; i+3 < len(c.frame); i += 4 {
		binary.LittleEndian.PutUint32(c.frame[i:], c.tick)
	}
	for i := 0; i < c.n && i < len(buf); i++ {
		buf[i] = float32(c.tick)
	}
	return c.n, c.frame
}

type sliceTap struct{ got []int }

func (t *sliceTap) Push(s []float32) { t.got = append(t.got, len(s)) }

func TestBridge_FillPublishesAndRequestsRedraw(t *testing.T) {
	m := newCounter(2, 2, 8, 882)
	frames := video.NewPool(2, 2, 8)
	redraws := 0
	b := New(m, frames, func() { redraws++ })

	buf := make([]float32, 1024)
	if n := b.Fill(buf); n != 882 {
		t.Fatalf("Fill = %d, want 882", n)
	}
	if redraws != 1 {
		t.Fatalf("redraws = %d, want 1", redraws)
	}
	s := frames.TakePending()
	if s == nil {
		t.Fatal("no frame published")
	}
	if got := binary.LittleEndian.Uint32(s.Pixels[12:]); got != 1 {
		t.Fatalf("pixel = %d, want tick 1", got)
	}
}

func TestBridge_ExhaustedPoolKeepsAudio(t *testing.T) {
	m := newCounter(2, 2, 8, 882)
	frames := video.NewPool(2, 2, 8)
	b := New(m, frames, nil)

	// hold every slot
	for i := 0; i < video.PoolSize; i++ {
		frames.Acquire()
	}
	buf := make([]float32, 1024)
	if n := b.Fill(buf); n != 882 {
		t.Fatalf("Fill = %d, want 882", n)
	}
	if buf[881] != 1 {
		t.Fatalf("sample = %v, want 1", buf[881])
	}
	if b.Dropped() != 1 || frames.Stats().Dropped != 1 {
		t.Fatalf("dropped = %d / %d, want 1", b.Dropped(), frames.Stats().Dropped)
	}
}

func TestBridge_ClampsSampleCount(t *testing.T) {
	m := newCounter(2, 2, 8, 5000)
	tap := &sliceTap{}
	b := New(m, video.NewPool(2, 2, 8), nil)
	b.SetTap(tap)
	if n := b.Fill(make([]float32, 1024)); n != 1024 {
		t.Fatalf("Fill = %d, want 1024", n)
	}
	if len(tap.got) != 1 || tap.got[0] != 1024 {
		t.Fatalf("tap = %v", tap.got)
	}
}

// Wires the whole path: headless audio drives the machine, the headless
// device draws, and the latest frame wins when the display lags.
func TestBridge_EndToEnd(t *testing.T) {
	m := newCounter(4, 3, 16, 882)
	frames := video.NewPool(4, 3, 16)
	completer := video.NewCompleter(video.PoolSize)
	defer completer.Close()
	dev := video.NewHeadless(completer)
	pres, err := video.NewPresenter(frames, dev, logger.Nop())
	if err != nil {
		t.Fatalf("NewPresenter: %v", err)
	}

	b := New(m, frames, nil)
	var out *audio.Headless
	var played []float32
	ap, err := audio.NewPool(audio.HeadlessOpener(func(s []float32) {
		if len(s) > 0 {
			played = append(played, s[0])
		}
	}, &out), audio.DefaultFormat(), b, logger.Nop())
	if err != nil {
		t.Fatalf("audio.NewPool: %v", err)
	}
	if err := ap.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	// three ticks before the display gets a turn
	for i := 0; i < 3; i++ {
		out.PlayNext()
	}
	if err := pres.Redraw(); err != nil {
		t.Fatalf("Redraw: %v", err)
	}
	if dev.Draws() != 1 {
		t.Fatalf("draws = %d, want 1", dev.Draws())
	}
	if got := dev.Last().Pix[2]; got != 3 {
		t.Fatalf("drawn tick = %d, want 3", got)
	}
	if st := frames.Stats(); st.Superseded != 2 {
		t.Fatalf("superseded = %d, want 2", st.Superseded)
	}

	// refilled chunks come round after the primed silence
	for i := 0; i < 3; i++ {
		out.PlayNext()
	}
	if err := ap.Close(); err != nil {
		t.Fatalf("audio Close: %v", err)
	}
	pres.Close()

	want := []float32{0, 0, 0, 1, 2, 3}
	if len(played) != len(want) {
		t.Fatalf("played = %v, want %v", played, want)
	}
	for i := range want {
		if played[i] != want[i] {
			t.Fatalf("played = %v, want %v", played, want)
		}
	}
	if b.Ticks() != 6 {
		t.Fatalf("ticks = %d, want 6", b.Ticks())
	}
}

func TestBridge_WithTestcard(t *testing.T) {
	m := testcard.New()
	g := m.Geometry()
	frames := video.NewPool(g.Width, g.Height, g.BytesPerRow)
	b := New(m, frames, nil)
	if n := b.Fill(make([]float32, 1024)); n != testcard.SamplesPerTick {
		t.Fatalf("Fill = %d", n)
	}
	s := frames.TakePending()
	if s == nil || len(s.Pixels) != g.FrameBytes() {
		t.Fatal("testcard frame not published")
	}
}
