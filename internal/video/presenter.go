package video

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/FabianRolfMatthiasNoll/SpectrumEmulator/internal/aspect"
	"github.com/FabianRolfMatthiasNoll/SpectrumEmulator/internal/logger"
)

// Presenter draws the newest published frame on every redraw request.
// Redraw and Resize run on the display context; Close after the display loop has stopped.
type Presenter struct {
	pool      *Pool
	dev       Device
	pipeline  Pipeline
	transform aspect.Holder
	log       *logger.Logger

	inflight sync.WaitGroup
	drawn    atomic.Uint64
	skipped  atomic.Uint64
	failed   atomic.Uint64
	closed   bool
}

// NewPresenter creates the pipeline and one texture per slot. On failure every
// resource created so far is disposed.
func NewPresenter(pool *Pool, dev Device, log *logger.Logger) (*Presenter, error) {
	p := &Presenter{pool: pool, dev: dev, log: log.Module("presenter")}

	pipeline, err := dev.NewPipeline()
	if err != nil {
		return nil, wrapInit("pipeline", err)
	}
	p.pipeline = pipeline

	for _, s := range pool.Slots() {
		tex, err := dev.NewTexture(pool.Width, pool.Height)
		if err != nil {
			p.dispose()
			return nil, wrapInit(fmt.Sprintf("texture %d", s.index), err)
		}
		s.tex = tex
	}
	p.log.Debug().Int("w", pool.Width).Int("h", pool.Height).Int("slots", PoolSize).Msg("ready")
	return p, nil
}

func wrapInit(resource string, err error) error {
	if _, ok := err.(*InitError); ok {
		return err
	}
	return &InitError{Resource: resource, Err: err}
}

// Resize recomputes the aspect transform; the next draw picks it up.
func (p *Presenter) Resize(w, h int) {
	t := p.transform.Resize(w, h)
	p.log.Debug().Int("w", w).Int("h", h).Float32("sx", t.ScaleX).Float32("sy", t.ScaleY).Msg("resize")
}

// Transform returns the transform the next draw will use.
func (p *Presenter) Transform() aspect.Transform { return p.transform.Load() }

// Redraw draws the pending frame, if any. With nothing pending it does no GPU
// work and the surface keeps showing the previous frame.
func (p *Presenter) Redraw() error {
	s := p.pool.TakePending()
	if s == nil {
		p.skipped.Add(1)
		return nil
	}
	p.inflight.Add(1)
	done := func() {
		p.pool.Release(s)
		p.inflight.Done()
	}

	if err := s.tex.Upload(s.Pixels, s.Stride); err != nil {
		done()
		p.failed.Add(1)
		return fmt.Errorf("upload slot %d: %w", s.index, err)
	}
	s.uniform = Uniform(p.transform.Load().Matrix())
	if err := p.dev.Draw(p.pipeline, s.tex, &s.uniform, done); err != nil {
		p.failed.Add(1)
		return fmt.Errorf("draw slot %d: %w", s.index, err)
	}
	p.drawn.Add(1)
	return nil
}

// Close waits for every frame still on the GPU, then frees the textures and
// the pipeline. It must not race Redraw.
func (p *Presenter) Close() {
	if p.closed {
		return
	}
	p.closed = true
	p.inflight.Wait()
	p.dispose()
	p.log.Debug().Uint64("drawn", p.drawn.Load()).Uint64("skipped", p.skipped.Load()).Msg("closed")
}

func (p *Presenter) dispose() {
	for _, s := range p.pool.Slots() {
		if s.tex != nil {
			s.tex.Dispose()
			s.tex = nil
		}
	}
	if p.pipeline != nil {
		p.pipeline.Dispose()
		p.pipeline = nil
	}
}

// PresenterStats counts redraw outcomes.
type PresenterStats struct {
	Drawn   uint64
	Skipped uint64
	Failed  uint64
}

func (p *Presenter) Stats() PresenterStats {
	return PresenterStats{
		Drawn:   p.drawn.Load(),
		Skipped: p.skipped.Load(),
		Failed:  p.failed.Load(),
	}
}

func (p *Presenter) Pool() *Pool { return p.pool }
