package audio

import (
	"encoding/binary"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ebitengine/oto/v3"
)

// oto allows one context per process.
var (
	otoOnce   sync.Once
	otoCtx    *oto.Context
	otoFormat Format
	otoErr    error
)

func otoContext(f Format, buffer time.Duration) (*oto.Context, error) {
	otoOnce.Do(func() {
		ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
			SampleRate:   f.SampleRate,
			ChannelCount: f.Channels,
			Format:       oto.FormatFloat32LE,
			BufferSize:   buffer,
		})
		if err != nil {
			otoErr = err
			return
		}
		<-ready
		otoCtx, otoFormat = ctx, f
	})
	if otoErr != nil {
		return nil, otoErr
	}
	if otoFormat.SampleRate != f.SampleRate || otoFormat.Channels != f.Channels {
		return nil, fmt.Errorf("device already open at %d Hz, %d ch", otoFormat.SampleRate, otoFormat.Channels)
	}
	return otoCtx, nil
}

// OtoOpener plays chunks through the system audio device. buffer is the
// device-side latency; the player keeps about one chunk ahead of it.
func OtoOpener(buffer time.Duration) Opener {
	return func(f Format, played func(*Chunk)) (Queue, error) {
		ctx, err := otoContext(f, buffer)
		if err != nil {
			return nil, err
		}
		q := &otoQueue{chunkReader: newChunkReader(played)}
		q.player = ctx.NewPlayer(q.chunkReader)
		q.player.SetBufferSize(f.ChunkSamples * 4)
		return q, nil
	}
}

type otoQueue struct {
	*chunkReader
	player *oto.Player
	closed atomic.Bool
}

func (q *otoQueue) Enqueue(c *Chunk) error {
	if q.closed.Load() {
		return ErrClosed
	}
	return q.push(c)
}

func (q *otoQueue) Start() error {
	if q.closed.Load() {
		return ErrClosed
	}
	q.setStopped(false)
	q.player.Play()
	return nil
}

// Stop is ordered so the reader lock is never held while calling into oto,
// which holds its own lock around Read.
func (q *otoQueue) Stop() error {
	q.setStopped(true)
	q.player.Pause()
	return nil
}

func (q *otoQueue) Close() error {
	if !q.closed.CompareAndSwap(false, true) {
		return nil
	}
	_ = q.Stop()
	err := q.player.Close()
	q.drain()
	return err
}

// chunkReader turns queued chunks into the little-endian float32 byte stream
// oto pulls. One goroutine pushes (the played callback, or setup before
// playback) and one reads, so the ring needs no lock. mu only keeps Read and
// Stop apart.
type chunkReader struct {
	ring       [PoolSize + 1]*Chunk
	head, tail atomic.Uint32

	mu      sync.Mutex
	stopped bool
	cur     *Chunk
	off     int

	played    func(*Chunk)
	underruns atomic.Uint64
}

func newChunkReader(played func(*Chunk)) *chunkReader {
	return &chunkReader{played: played, stopped: true}
}

func (r *chunkReader) push(c *Chunk) error {
	t := r.tail.Load()
	if t-r.head.Load() == uint32(len(r.ring)) {
		return fmt.Errorf("%w (%d chunks)", ErrQueueFull, len(r.ring))
	}
	r.ring[t%uint32(len(r.ring))] = c
	r.tail.Store(t + 1)
	return nil
}

func (r *chunkReader) pop() *Chunk {
	h := r.head.Load()
	if h == r.tail.Load() {
		return nil
	}
	i := h % uint32(len(r.ring))
	c := r.ring[i]
	r.ring[i] = nil
	r.head.Store(h + 1)
	return c
}

func (r *chunkReader) setStopped(v bool) {
	r.mu.Lock()
	r.stopped = v
	r.mu.Unlock()
}

func (r *chunkReader) drain() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cur, r.off = nil, 0
	for r.pop() != nil {
	}
}

// Read never blocks and always fills p. Gaps are padded with silence.
func (r *chunkReader) Read(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopped {
		clear(p)
		return len(p), nil
	}

	n, empty := 0, 0
	for n+4 <= len(p) {
		if r.cur == nil {
			if r.cur = r.pop(); r.cur == nil {
				r.underruns.Add(1)
				break
			}
			r.off = 0
		}
		data := r.cur.Data()
		for r.off < len(data) && n+4 <= len(p) {
			binary.LittleEndian.PutUint32(p[n:], math.Float32bits(data[r.off]))
			r.off++
			n += 4
		}
		if r.off < len(data) {
			break
		}
		if len(data) == 0 {
			empty++
		} else {
			empty = 0
		}
		c := r.cur
		r.cur = nil
		r.played(c)
		// a filler that keeps producing nothing must not spin the device thread
		if empty >= len(r.ring) {
			break
		}
	}
	clear(p[n:])
	return len(p), nil
}

func (r *chunkReader) Underruns() uint64 { return r.underruns.Load() }
