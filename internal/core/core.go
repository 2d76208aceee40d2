// Package core is the contract between the front-end and an emulated machine.
package core

// Geometry is the fixed size of the frames a machine produces.
type Geometry struct {
	Width       int
	Height      int
	BytesPerRow int
}

// FrameBytes is the length of one frame.
func (g Geometry) FrameBytes() int { return g.Height * g.BytesPerRow }

// Machine is driven one tick at a time from the audio callback.
type Machine interface {
	Geometry() Geometry

	// AdvanceOneTick runs the machine for one video frame. It writes at most
	// len(audio) samples into audio and returns how many it wrote, along with
	// the rendered frame: Height rows of BytesPerRow bytes holding 32-bit
	// little-endian 0x00RRGGBB pixels. The frame stays valid until the next call.
	AdvanceOneTick(audio []float32) (samples int, pixels []byte)

	// KeyDown and KeyUp may be called from any goroutine and never block.
	KeyDown(code uint32)
	KeyUp(code uint32)
}
