// Package testcard is a stand-in machine that needs no ROM. It draws a
// Spectrum-style test card with a scrolling bar, shows the keyboard matrix,
// and beeps while a key is held.
package testcard

import (
	"encoding/binary"
	"math"
	"sync/atomic"

	"github.com/FabianRolfMatthiasNoll/SpectrumEmulator/internal/core"
)

const (
	Width        = 352
	Height       = 288
	BytesPerRow  = Width * 4
	Border       = 48
	ScreenWidth  = 256
	ScreenHeight = 192

	// SamplesPerTick is one 50 Hz frame at 44.1 kHz.
	SamplesPerTick = 882
	toneHz         = 875.0
	sampleRate     = 44100.0
	volume         = 0.25
)

// Palette is the 48K's eight colours at normal and bright intensity.
var Palette = [16]uint32{
	0x000000, 0x0000E6, 0xE60000, 0xE600E6, 0x00E600, 0x00E6E6, 0xE6E600, 0xE6E6E6,
	0x000000, 0x0000FF, 0xFF0000, 0xFF00FF, 0x00FF00, 0x00FFFF, 0xFFFF00, 0xFFFFFF,
}

type Machine struct {
	pixels []byte
	frame  uint64
	phase  float64

	// one byte of pressed half-row bits per row, written from the input side
	rows [8]atomic.Uint32
}

var _ core.Machine = (*Machine)(nil)

func New() *Machine {
	return &Machine{pixels: make([]byte, Height*BytesPerRow)}
}

func (m *Machine) Geometry() core.Geometry {
	return core.Geometry{Width: Width, Height: Height, BytesPerRow: BytesPerRow}
}

// KeyDown sets the bits of code in its keyboard row. code is row<<5 | mask.
func (m *Machine) KeyDown(code uint32) {
	r := &m.rows[(code>>5)&7]
	for {
		old := r.Load()
		if r.CompareAndSwap(old, old|code&0x1F) {
			return
		}
	}
}

func (m *Machine) KeyUp(code uint32) {
	r := &m.rows[(code>>5)&7]
	for {
		old := r.Load()
		if r.CompareAndSwap(old, old&^(code&0x1F)) {
			return
		}
	}
}

// Row returns the pressed bits of one keyboard half-row.
func (m *Machine) Row(i int) uint8 { return uint8(m.rows[i&7].Load()) }

func (m *Machine) anyKey() bool {
	for i := range m.rows {
		if m.rows[i].Load() != 0 {
			return true
		}
	}
	return false
}

// Frame is the number of ticks run so far.
func (m *Machine) Frame() uint64 { return m.frame }

func (m *Machine) AdvanceOneTick(audio []float32) (int, []byte) {
	m.frame++
	held := m.anyKey()
	m.render(held)

	n := min(SamplesPerTick, len(audio))
	step := toneHz / sampleRate
	for i := 0; i < n; i++ {
		if !held {
			audio[i] = 0
			continue
		}
		m.phase += step
		if m.phase >= 1 {
			m.phase -= math.Floor(m.phase)
		}
		if m.phase < 0.5 {
			audio[i] = volume
		} else {
			audio[i] = -volume
		}
	}
	return n, m.pixels
}

func (m *Machine) render(held bool) {
	border := Palette[7]
	if held {
		border = Palette[2]
	}
	bar := int(m.frame % ScreenHeight)

	for y := 0; y < Height; y++ {
		row := m.pixels[y*BytesPerRow : (y+1)*BytesPerRow]
		sy := y - Border
		for x := 0; x < Width; x++ {
			sx := x - Border
			c := border
			switch {
			case sy < 0 || sy >= ScreenHeight || sx < 0 || sx >= ScreenWidth:
			case sy == bar:
				c = Palette[15]
			case sy >= ScreenHeight-16:
				c = m.matrixColour(sx)
			default:
				// eight vertical bars, bright in the lower half
				c = Palette[sx/(ScreenWidth/8)+8*(sy*2/ScreenHeight)]
			}
			binary.LittleEndian.PutUint32(row[x*4:], c)
		}
	}
}

// matrixColour lights one 32-pixel cell per keyboard row with a pressed key.
func (m *Machine) matrixColour(sx int) uint32 {
	if m.Row(sx/32) != 0 {
		return Palette[12]
	}
	return Palette[0]
}
