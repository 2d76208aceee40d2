// Package video hands finished frames from the emulation tick to the display.
//
// The producer (the audio callback) fills a Slot and publishes it, the
// display context draws whatever is newest, and the GPU completion path
// gives the slot back. A Device hides which graphics API does the drawing.
package video

import (
	"errors"
	"fmt"
)

// Texture is a GPU image the size of one frame.
type Texture interface {
	// Upload replaces the whole image with 32-bit 0x00RRGGBB little-endian
	// pixels. Called on the display context only.
	Upload(pixels []byte, stride int) error
	Dispose()
}

// Pipeline is the compiled shader program plus the static full-surface quad.
type Pipeline interface {
	Dispose()
}

// Device draws one textured quad per frame without clearing the target.
//
// Draw binds the quad, the texture and the uniform, presents the result and
// arranges for done to run once the GPU has stopped reading the texture.
// done must run exactly once, including when Draw fails after it was queued.
type Device interface {
	NewTexture(width, height int) (Texture, error)
	NewPipeline() (Pipeline, error)
	Draw(p Pipeline, tex Texture, u *Uniform, done func()) error
}

// ErrInit marks a failure to create GPU resources at startup.
var ErrInit = errors.New("video init failed")

// InitError tells which resource could not be created.
type InitError struct {
	Resource string
	Err      error
}

func (e *InitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("video: create %s: %v", e.Resource, e.Err)
	}
	return fmt.Sprintf("video: create %s", e.Resource)
}

func (e *InitError) Unwrap() error { return e.Err }

func (e *InitError) Is(target error) bool { return target == ErrInit }
