// Package aspect keeps the emulated picture at 4:3 on a surface of any size.
package aspect

import (
	"math"
	"sync/atomic"
)

// Ratio is the display aspect of the emulated machine.
const Ratio = 4.0 / 3.0

// Transform scales the full-surface quad in clip space. Both factors are >= 1:
// the picture fills the surface and whatever overflows is clipped.
type Transform struct {
	ScaleX float32
	ScaleY float32
}

// Identity leaves the quad untouched.
func Identity() Transform { return Transform{ScaleX: 1, ScaleY: 1} }

// Compute returns the transform for a surface of w×h pixels.
// Degenerate sizes (minimised window, first layout pass) give the identity.
func Compute(w, h int) Transform {
	if w <= 0 || h <= 0 {
		return Identity()
	}
	a := (float64(w) / float64(h)) / Ratio
	if a < 1 {
		return Transform{ScaleX: float32(1 / a), ScaleY: 1}
	}
	return Transform{ScaleX: 1, ScaleY: float32(a)}
}

// Matrix returns the column-major 2x2 matrix as the four floats a shader uniform expects.
func (t Transform) Matrix() [4]float32 {
	return [4]float32{t.ScaleX, 0, 0, t.ScaleY}
}

// Holder publishes the current transform from the resize path to the draw path.
// Both factors travel in one 64-bit word so a reader never sees half an update.
// The zero value holds the identity.
type Holder struct {
	bits atomic.Uint64
}

func (h *Holder) Store(t Transform) {
	h.bits.Store(uint64(math.Float32bits(t.ScaleX))<<32 | uint64(math.Float32bits(t.ScaleY)))
}

func (h *Holder) Load() Transform {
	v := h.bits.Load()
	if v == 0 {
		return Identity()
	}
	return Transform{
		ScaleX: math.Float32frombits(uint32(v >> 32)),
		ScaleY: math.Float32frombits(uint32(v)),
	}
}

// Resize recomputes and stores the transform for a new surface size.
func (h *Holder) Resize(w, h2 int) Transform {
	t := Compute(w, h2)
	h.Store(t)
	return t
}
