package ui

import (
	_ "embed"
	"errors"
	"fmt"

	"github.com/FabianRolfMatthiasNoll/SpectrumEmulator/internal/video"
	"github.com/hajimehoshi/ebiten/v2"
)

//go:embed shaders/present.kage
var presentShaderSrc []byte

var errNoTarget = errors.New("ebiten: draw outside a frame")

// device is a video.Device on top of ebiten's command queue.
//
// ebiten orders WritePixels after every earlier draw that read the image, so a
// texture is free to reuse once the frame that drew it has been flushed. The
// done callbacks of one frame are therefore retired when the next one begins.
type device struct {
	completer *video.Completer
	target    *ebiten.Image
	current   []func()
	last      *texture
	indices   []uint16
}

func newDevice(c *video.Completer) *device {
	return &device{
		completer: c,
		current:   make([]func(), 0, video.PoolSize),
		indices:   []uint16{0, 1, 2, 1, 3, 2},
	}
}

type texture struct {
	img  *ebiten.Image
	w, h int
	rgba []byte
}

type pipeline struct {
	shader *ebiten.Shader
}

func (p *pipeline) Dispose() { p.shader.Deallocate() }

func (d *device) NewTexture(w, h int) (video.Texture, error) {
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("texture %dx%d", w, h)
	}
	return &texture{img: ebiten.NewImage(w, h), w: w, h: h, rgba: make([]byte, w*h*4)}, nil
}

func (d *device) NewPipeline() (video.Pipeline, error) {
	s, err := ebiten.NewShader(presentShaderSrc)
	if err != nil {
		return nil, fmt.Errorf("compile present shader: %w", err)
	}
	return &pipeline{shader: s}, nil
}

func (t *texture) Upload(pix []byte, stride int) error {
	video.BGRXToRGBA(t.rgba, pix, t.w, t.h, stride)
	t.img.WritePixels(t.rgba)
	return nil
}

func (t *texture) Dispose() { t.img.Deallocate() }

// beginFrame retires the previous frame and sets the surface for this one.
func (d *device) beginFrame(screen *ebiten.Image) {
	d.retire()
	d.target = screen
}

func (d *device) retire() {
	for _, done := range d.current {
		d.completer.Submit(done)
	}
	d.current = d.current[:0]
}

func (d *device) Draw(p video.Pipeline, tex video.Texture, u *video.Uniform, done func()) error {
	if d.target == nil {
		done()
		return errNoTarget
	}
	t := tex.(*texture)
	b := d.target.Bounds()
	dw, dh := float32(b.Dx()), float32(b.Dy())
	sw, sh := float32(t.w), float32(t.h)
	vs := []ebiten.Vertex{
		{DstX: 0, DstY: 0, SrcX: 0, SrcY: 0, ColorR: 1, ColorG: 1, ColorB: 1, ColorA: 1},
		{DstX: dw, DstY: 0, SrcX: sw, SrcY: 0, ColorR: 1, ColorG: 1, ColorB: 1, ColorA: 1},
		{DstX: 0, DstY: dh, SrcX: 0, SrcY: sh, ColorR: 1, ColorG: 1, ColorB: 1, ColorA: 1},
		{DstX: dw, DstY: dh, SrcX: sw, SrcY: sh, ColorR: 1, ColorG: 1, ColorB: 1, ColorA: 1},
	}
	op := &ebiten.DrawTrianglesShaderOptions{Blend: ebiten.BlendCopy}
	op.Images[0] = t.img
	op.Uniforms = map[string]any{"Transform": u[:]}
	d.target.DrawTrianglesShader(vs, d.indices, p.(*pipeline).shader, op)

	d.last = t
	d.current = append(d.current, done)
	return nil
}

// lastRGBA is the picture most recently drawn, as uploaded.
func (d *device) lastRGBA() (pix []byte, w, h int) {
	if d.last == nil {
		return nil, 0, 0
	}
	return d.last.rgba, d.last.w, d.last.h
}
