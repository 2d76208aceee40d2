package video

import (
	"errors"
	"image"
	"sync"
	"sync/atomic"
)

// Headless is a Device without a GPU. It keeps the last drawn picture as RGBA
// for checksums and screenshots, and completes every draw through a Completer
// as soon as it is recorded.
type Headless struct {
	completer *Completer

	mu       sync.Mutex
	last     *image.RGBA
	lastU    Uniform
	draws    atomic.Uint64
	textures atomic.Int32
	failNext atomic.Bool
	failUp   atomic.Bool
}

func NewHeadless(c *Completer) *Headless { return &Headless{completer: c} }

var (
	errHeadlessFail   = errors.New("headless: injected draw failure")
	errHeadlessUpload = errors.New("headless: injected upload failure")
)

type headlessTexture struct {
	img *image.RGBA
	dev *Headless
}

type headlessPipeline struct{}

func (headlessPipeline) Dispose() {}

func (d *Headless) NewTexture(w, h int) (Texture, error) {
	if w <= 0 || h <= 0 {
		return nil, errors.New("headless: empty texture")
	}
	d.textures.Add(1)
	return &headlessTexture{img: image.NewRGBA(image.Rect(0, 0, w, h)), dev: d}, nil
}

func (d *Headless) NewPipeline() (Pipeline, error) { return headlessPipeline{}, nil }

func (t *headlessTexture) Upload(pix []byte, stride int) error {
	if t.dev.failUp.CompareAndSwap(true, false) {
		return errHeadlessUpload
	}
	BGRXToRGBA(t.img.Pix, pix, t.img.Rect.Dx(), t.img.Rect.Dy(), stride)
	return nil
}

func (t *headlessTexture) Dispose() {
	if t.img != nil {
		t.img = nil
		t.dev.textures.Add(-1)
	}
}

func (d *Headless) Draw(_ Pipeline, tex Texture, u *Uniform, done func()) error {
	if d.failNext.CompareAndSwap(true, false) {
		done()
		return errHeadlessFail
	}
	t := tex.(*headlessTexture)
	d.mu.Lock()
	if d.last == nil || d.last.Rect != t.img.Rect {
		d.last = image.NewRGBA(t.img.Rect)
	}
	copy(d.last.Pix, t.img.Pix)
	d.lastU = *u
	d.mu.Unlock()
	d.draws.Add(1)
	d.completer.Submit(done)
	return nil
}

// Last returns a copy of the most recently drawn picture, or nil before the first draw.
func (d *Headless) Last() *image.RGBA {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.last == nil {
		return nil
	}
	img := image.NewRGBA(d.last.Rect)
	copy(img.Pix, d.last.Pix)
	return img
}

// LastUniform is the transform of the most recent draw.
func (d *Headless) LastUniform() Uniform {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lastU
}

func (d *Headless) Draws() uint64 { return d.draws.Load() }

// LiveTextures counts textures created and not yet disposed.
func (d *Headless) LiveTextures() int { return int(d.textures.Load()) }

// FailNextDraw makes the next Draw report an error.
func (d *Headless) FailNextDraw() { d.failNext.Store(true) }

// FailNextUpload makes the next texture Upload report an error.
func (d *Headless) FailNextUpload() { d.failUp.Store(true) }

// BGRXToRGBA converts w×h little-endian 0x00RRGGBB pixels into opaque RGBA.
func BGRXToRGBA(dst, src []byte, w, h, stride int) {
	if stride <= 0 {
		stride = w * 4
	}
	for y := 0; y < h; y++ {
		s := src[y*stride:]
		d := dst[y*w*4:]
		for x := 0; x < w; x++ {
			i := x * 4
			d[i+0] = s[i+2]
			d[i+1] = s[i+1]
			d[i+2] = s[i+0]
			d[i+3] = 0xff
		}
	}
}
