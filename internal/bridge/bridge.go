// Package bridge runs the machine from the audio callback and hands each
// rendered frame to the video pool.
package bridge

import (
	"sync/atomic"

	"github.com/FabianRolfMatthiasNoll/SpectrumEmulator/internal/core"
	"github.com/FabianRolfMatthiasNoll/SpectrumEmulator/internal/video"
)

// Tap receives a copy of every tick's samples. Push must not block.
type Tap interface {
	Push(samples []float32)
}

// Bridge is an audio.Filler. One Fill is one machine tick.
type Bridge struct {
	machine core.Machine
	frames  *video.Pool
	stride  int
	redraw  func()
	tap     Tap

	ticks   atomic.Uint64
	dropped atomic.Uint64
}

// New ties machine to frames. redraw is called after each published frame and
// must not block; it is how the display learns there is something to draw.
func New(machine core.Machine, frames *video.Pool, redraw func()) *Bridge {
	if redraw == nil {
		redraw = func() {}
	}
	return &Bridge{
		machine: machine,
		frames:  frames,
		stride:  machine.Geometry().BytesPerRow,
		redraw:  redraw,
	}
}

// SetTap installs a sample tap. Call before audio starts.
func (b *Bridge) SetTap(t Tap) { b.tap = t }

// Fill advances the machine one tick. The audio is always kept; the picture
// is dropped when every frame slot is busy.
func (b *Bridge) Fill(samples []float32) int {
	n, pixels := b.machine.AdvanceOneTick(samples)
	n = max(0, min(n, len(samples)))
	b.ticks.Add(1)

	if b.tap != nil {
		b.tap.Push(samples[:n])
	}

	s := b.frames.Acquire()
	if s == nil {
		b.dropped.Add(1)
		return n
	}
	s.CopyFrom(pixels, b.stride)
	b.frames.Publish(s)
	b.redraw()
	return n
}

func (b *Bridge) Ticks() uint64 { return b.ticks.Load() }

func (b *Bridge) Dropped() uint64 { return b.dropped.Load() }
