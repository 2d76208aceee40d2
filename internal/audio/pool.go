package audio

import (
	"sync"
	"sync/atomic"

	"github.com/FabianRolfMatthiasNoll/SpectrumEmulator/internal/logger"
)

// PoolSize is the number of chunks in circulation.
const PoolSize = 3

// Pool owns the chunks and the queue they cycle through.
//
// All chunks are silent and enqueued before playback starts, so the device
// has something to play while the first tick is computed. Each played chunk
// is refilled and re-enqueued before the callback returns.
type Pool struct {
	format Format
	queue  Queue
	filler Filler
	chunks [PoolSize]*Chunk
	log    *logger.Logger

	callbacks atomic.Uint64
	partial   atomic.Uint64
	samples   atomic.Uint64
	lost      atomic.Uint64

	closeOnce sync.Once
	closeErr  error
}

// NewPool opens the device and primes it. Nothing is left open on failure.
func NewPool(open Opener, f Format, filler Filler, log *logger.Logger) (*Pool, error) {
	if err := f.validate(); err != nil {
		return nil, &InitError{Stage: StageFormat, Err: err}
	}
	p := &Pool{format: f, filler: filler, log: log.Module("audio")}

	q, err := open(f, p.played)
	if err != nil {
		return nil, &InitError{Stage: StageDevice, Err: err}
	}
	p.queue = q

	for i := range p.chunks {
		c := newChunk(i, f.ChunkSamples)
		c.size.Store(int32(f.ChunkSamples))
		p.chunks[i] = c
		if err := q.Enqueue(c); err != nil {
			_ = q.Close()
			return nil, &InitError{Stage: StageBuffer, Err: err}
		}
	}
	p.log.Debug().
		Int("rate", f.SampleRate).
		Int("channels", f.Channels).
		Int("chunk", f.ChunkSamples).
		Msg("primed")
	return p, nil
}

// played is the device callback. It runs on the device's context.
func (p *Pool) played(c *Chunk) {
	c.move(Enqueued, CallbackOwned)
	p.callbacks.Add(1)

	n := p.filler.Fill(c.samples)
	switch {
	case n < 0:
		n = 0
	case n > len(c.samples):
		n = len(c.samples)
	}
	if n < len(c.samples) {
		p.partial.Add(1)
	}
	p.samples.Add(uint64(n))
	c.size.Store(int32(n))

	c.move(CallbackOwned, Enqueued)
	if err := p.queue.Enqueue(c); err != nil {
		c.move(Enqueued, Released)
		if p.lost.Add(1) == 1 {
			p.log.Warn().Err(err).Int("chunk", c.index).Msg("chunk lost")
		}
	}
}

func (p *Pool) Start() error {
	if err := p.queue.Start(); err != nil {
		return err
	}
	p.log.Info().Msg("playback started")
	return nil
}

// Close stops the device, takes the chunks back and releases the device.
// No fill runs after Close returns.
func (p *Pool) Close() error {
	p.closeOnce.Do(func() {
		if err := p.queue.Stop(); err != nil {
			p.closeErr = err
		}
		for _, c := range p.chunks {
			c.state.Store(int32(Released))
		}
		if err := p.queue.Close(); err != nil && p.closeErr == nil {
			p.closeErr = err
		}
		p.log.Debug().Uint64("callbacks", p.callbacks.Load()).Msg("closed")
	})
	return p.closeErr
}

func (p *Pool) Format() Format { return p.format }

func (p *Pool) Chunks() []*Chunk { return p.chunks[:] }

// Stats are running totals of callback traffic.
type Stats struct {
	Callbacks uint64
	Partial   uint64
	Samples   uint64
	Lost      uint64
}

func (p *Pool) Stats() Stats {
	return Stats{
		Callbacks: p.callbacks.Load(),
		Partial:   p.partial.Load(),
		Samples:   p.samples.Load(),
		Lost:      p.lost.Load(),
	}
}

// Underruns is how often the device found no chunk ready and played silence,
// or 0 when the queue does not count them.
func (p *Pool) Underruns() uint64 {
	if u, ok := p.queue.(interface{ Underruns() uint64 }); ok {
		return u.Underruns()
	}
	return 0
}
