//go:build !nogl

package glview

import (
	"errors"
	"fmt"
	"time"

	"github.com/FabianRolfMatthiasNoll/SpectrumEmulator/internal/video"
	"github.com/go-gl/gl/v3.2-core/gl"
	"github.com/veandco/go-sdl2/sdl"
)

// device implements video.Device on the current GL context. Every method
// must be called on the thread that owns the context.
type device struct {
	completer *video.Completer
	win       *sdl.Window
	fences    []fence
}

// fence is a presented frame whose texture the GPU may still be reading.
type fence struct {
	sync uintptr
	done func()
}

type pipeline struct {
	program uint32
	vao     uint32
	vbo     uint32
}

// texture owns the frame image and the uniform buffer used with it, so an
// in-flight draw never sees the next frame's transform.
type texture struct {
	id   uint32
	ubo  uint32
	w, h int32
}

func newDevice(c *video.Completer, win *sdl.Window) *device {
	return &device{completer: c, win: win}
}

func glError(op string) error {
	if e := gl.GetError(); e != gl.NO_ERROR {
		return fmt.Errorf("%s: gl error 0x%x", op, e)
	}
	return nil
}

func (d *device) NewPipeline() (video.Pipeline, error) {
	prog, err := createProgram(vertexShader, fragmentShader)
	if err != nil {
		return nil, err
	}
	p := &pipeline{program: prog}

	pos := gl.GetAttribLocation(prog, gl.Str("Position\x00"))
	uv := gl.GetAttribLocation(prog, gl.Str("UV\x00"))
	block := gl.GetUniformBlockIndex(prog, gl.Str("Frame\x00"))
	if pos < 0 || uv < 0 || block == gl.INVALID_INDEX {
		gl.DeleteProgram(prog)
		return nil, errors.New("shader interface mismatch")
	}
	gl.UniformBlockBinding(prog, block, frameBinding)
	gl.UseProgram(prog)
	gl.Uniform1i(gl.GetUniformLocation(prog, gl.Str("Texture\x00")), 0)

	q := quadVertices()
	gl.GenVertexArrays(1, &p.vao)
	gl.BindVertexArray(p.vao)
	gl.GenBuffers(1, &p.vbo)
	gl.BindBuffer(gl.ARRAY_BUFFER, p.vbo)
	gl.BufferData(gl.ARRAY_BUFFER, len(q)*4, gl.Ptr(&q[0]), gl.STATIC_DRAW)
	gl.EnableVertexAttribArray(uint32(pos))
	gl.VertexAttribPointerWithOffset(uint32(pos), 2, gl.FLOAT, false, 16, 0)
	gl.EnableVertexAttribArray(uint32(uv))
	gl.VertexAttribPointerWithOffset(uint32(uv), 2, gl.FLOAT, false, 16, 8)
	gl.BindVertexArray(0)

	if err := glError("pipeline"); err != nil {
		p.Dispose()
		return nil, err
	}
	return p, nil
}

func (p *pipeline) Dispose() {
	gl.DeleteBuffers(1, &p.vbo)
	gl.DeleteVertexArrays(1, &p.vao)
	gl.DeleteProgram(p.program)
}

func (d *device) NewTexture(w, h int) (video.Texture, error) {
	t := &texture{w: int32(w), h: int32(h)}
	gl.GenTextures(1, &t.id)
	gl.BindTexture(gl.TEXTURE_2D, t.id)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MAG_FILTER, gl.NEAREST)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MIN_FILTER, gl.NEAREST)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_S, gl.CLAMP_TO_EDGE)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_T, gl.CLAMP_TO_EDGE)
	gl.TexImage2D(gl.TEXTURE_2D, 0, gl.RGBA8, t.w, t.h, 0,
		gl.BGRA, gl.UNSIGNED_INT_8_8_8_8_REV, nil)

	gl.GenBuffers(1, &t.ubo)
	gl.BindBuffer(gl.UNIFORM_BUFFER, t.ubo)
	gl.BufferData(gl.UNIFORM_BUFFER, 16, nil, gl.DYNAMIC_DRAW)
	gl.BindBuffer(gl.UNIFORM_BUFFER, 0)

	if err := glError("texture"); err != nil {
		t.Dispose()
		return nil, err
	}
	return t, nil
}

// Upload takes 0x00RRGGBB words as stored in memory, which GL reads as BGRA
// bytes with the reversed packed type.
func (t *texture) Upload(pix []byte, stride int) error {
	if len(pix) < stride*int(t.h-1)+int(t.w)*4 {
		return fmt.Errorf("upload: %d bytes for %dx%d", len(pix), t.w, t.h)
	}
	gl.BindTexture(gl.TEXTURE_2D, t.id)
	gl.PixelStorei(gl.UNPACK_ROW_LENGTH, int32(stride/4))
	gl.TexSubImage2D(gl.TEXTURE_2D, 0, 0, 0, t.w, t.h,
		gl.BGRA, gl.UNSIGNED_INT_8_8_8_8_REV, gl.Ptr(pix))
	gl.PixelStorei(gl.UNPACK_ROW_LENGTH, 0)
	return glError("upload")
}

func (t *texture) Dispose() {
	gl.DeleteBuffers(1, &t.ubo)
	gl.DeleteTextures(1, &t.id)
}

// Draw covers the drawable with the scaled quad and swaps. The back buffer is
// never cleared; with both factors at least 1 the quad covers all of it.
func (d *device) Draw(vp video.Pipeline, vt video.Texture, u *video.Uniform, done func()) error {
	p := vp.(*pipeline)
	t := vt.(*texture)

	gl.UseProgram(p.program)
	gl.BindVertexArray(p.vao)
	gl.ActiveTexture(gl.TEXTURE0)
	gl.BindTexture(gl.TEXTURE_2D, t.id)
	gl.BindBuffer(gl.UNIFORM_BUFFER, t.ubo)
	gl.BufferSubData(gl.UNIFORM_BUFFER, 0, 16, gl.Ptr(&u[0]))
	gl.BindBufferBase(gl.UNIFORM_BUFFER, frameBinding, t.ubo)
	gl.DrawArrays(gl.TRIANGLE_STRIP, 0, 4)
	gl.BindVertexArray(0)
	if err := glError("draw"); err != nil {
		done()
		return err
	}

	sync := gl.FenceSync(gl.SYNC_GPU_COMMANDS_COMPLETE, 0)
	d.win.GLSwap()
	if sync == 0 {
		gl.Finish()
		d.completer.Submit(done)
		return nil
	}
	d.fences = append(d.fences, fence{sync: sync, done: done})
	return nil
}

// poll hands back every frame whose fence has signalled.
func (d *device) poll() {
	n := 0
	for _, f := range d.fences {
		if gl.ClientWaitSync(f.sync, 0, 0) == gl.TIMEOUT_EXPIRED {
			d.fences[n] = f
			n++
			continue
		}
		// signalled, or WAIT_FAILED which leaves nothing to wait for
		gl.DeleteSync(f.sync)
		d.completer.Submit(f.done)
	}
	clear(d.fences[n:])
	d.fences = d.fences[:n]
}

// finish waits for every outstanding fence. Used on shutdown.
func (d *device) finish() {
	for _, f := range d.fences {
		gl.ClientWaitSync(f.sync, gl.SYNC_FLUSH_COMMANDS_BIT, uint64(time.Second))
		gl.DeleteSync(f.sync)
		d.completer.Submit(f.done)
	}
	clear(d.fences)
	d.fences = d.fences[:0]
}
