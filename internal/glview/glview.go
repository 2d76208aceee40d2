// Package glview is the SDL2 window with an OpenGL 3.2 core presenter.
//
// All SDL and GL calls run on the main OS thread through package thread.
// GPU completion is tracked with fence syncs polled from the event loop.
// Build with -tags nogl to leave it out.
package glview

import "errors"

// ErrUnavailable is returned by New when the binary was built without GL.
var ErrUnavailable = errors.New("glview: built without OpenGL support")

type Config struct {
	Title   string
	Scale   int
	NoVSync bool
}

func (c *Config) Defaults() {
	if c.Title == "" {
		c.Title = "zxemu"
	}
	if c.Scale <= 0 {
		c.Scale = 2
	}
}

// quadVertices is a triangle strip over clip space as x, y, u, v. The
// texture origin is the top row of the frame, so v runs opposite to y.
func quadVertices() [16]float32 {
	return [16]float32{
		-1, -1, 0, 1,
		1, -1, 1, 1,
		-1, 1, 0, 0,
		1, 1, 1, 0,
	}
}
