// Package wavtap records the samples sent to the audio device into a WAV file
// without doing any file I/O on the audio callback.
package wavtap

import (
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/FabianRolfMatthiasNoll/SpectrumEmulator/internal/logger"
	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

const (
	bitDepth     = 16
	pcmFormat    = 1
	drainPeriod  = 20 * time.Millisecond
	ringDuration = 2 // seconds of audio the ring can hold
)

// ring is a single-producer, single-consumer float buffer. Positions only grow;
// the producer publishes w after copying, the consumer publishes r after reading.
type ring struct {
	w    atomic.Uint64
	_    [56]byte
	r    atomic.Uint64
	_    [56]byte
	buf  []float32
	mask uint64
}

func newRing(capacity int) *ring {
	size := 1
	for size < capacity {
		size <<= 1
	}
	return &ring{buf: make([]float32, size), mask: uint64(size - 1)}
}

// write copies as much of p as fits and returns the count.
func (b *ring) write(p []float32) int {
	w, r := b.w.Load(), b.r.Load()
	free := uint64(len(b.buf)) - (w - r)
	n := min(uint64(len(p)), free)
	for i := uint64(0); i < n; i++ {
		b.buf[(w+i)&b.mask] = p[i]
	}
	b.w.Store(w + n)
	return int(n)
}

func (b *ring) read(p []float32) int {
	r, w := b.r.Load(), b.w.Load()
	n := min(uint64(len(p)), w-r)
	for i := uint64(0); i < n; i++ {
		p[i] = b.buf[(r+i)&b.mask]
	}
	b.r.Store(r + n)
	return int(n)
}

// Tap is a bridge.Tap that writes 16-bit PCM.
type Tap struct {
	ring *ring
	enc  *wav.Encoder
	out  io.Closer
	log  *logger.Logger

	scratch []float32
	ints    *audio.IntBuffer

	dropped atomic.Uint64
	written atomic.Uint64

	stop chan struct{}
	wg   sync.WaitGroup
	once sync.Once
	err  error
}

// Create opens path and starts the writer goroutine.
func Create(path string, sampleRate, channels int, log *logger.Logger) (*Tap, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("wav tap: %w", err)
	}
	return New(f, sampleRate, channels, log), nil
}

// New records into w, which is closed by Close.
func New(w io.WriteSeeker, sampleRate, channels int, log *logger.Logger) *Tap {
	t := &Tap{
		ring:    newRing(sampleRate * channels * ringDuration),
		enc:     wav.NewEncoder(w, sampleRate, bitDepth, channels, pcmFormat),
		log:     log.Module("wav"),
		scratch: make([]float32, 4096),
		ints: &audio.IntBuffer{
			Format:         &audio.Format{NumChannels: channels, SampleRate: sampleRate},
			Data:           make([]int, 4096),
			SourceBitDepth: bitDepth,
		},
		stop: make(chan struct{}),
	}
	if c, ok := w.(io.Closer); ok {
		t.out = c
	}
	t.wg.Add(1)
	go t.run()
	return t
}

// Push queues samples for writing. It never blocks; what does not fit is counted and lost.
func (t *Tap) Push(samples []float32) {
	if n := t.ring.write(samples); n < len(samples) {
		t.dropped.Add(uint64(len(samples) - n))
	}
}

func (t *Tap) run() {
	defer t.wg.Done()
	tick := time.NewTicker(drainPeriod)
	defer tick.Stop()
	for {
		select {
		case <-t.stop:
			t.drain()
			return
		case <-tick.C:
			t.drain()
		}
	}
}

func (t *Tap) drain() {
	for t.err == nil {
		n := t.ring.read(t.scratch)
		if n == 0 {
			return
		}
		t.ints.Data = t.ints.Data[:n]
		for i, s := range t.scratch[:n] {
			t.ints.Data[i] = toPCM16(s)
		}
		if err := t.enc.Write(t.ints); err != nil {
			t.err = err
			t.log.Error().Err(err).Msg("write failed, recording stopped")
			return
		}
		t.written.Add(uint64(n))
	}
}

func toPCM16(s float32) int {
	switch {
	case s >= 1:
		return 32767
	case s <= -1:
		return -32768
	}
	return int(s * 32767)
}

// Close flushes everything pushed so far, finalises the header and closes the file.
// Push must not be called concurrently with or after Close.
func (t *Tap) Close() error {
	t.once.Do(func() {
		close(t.stop)
		t.wg.Wait()
		if err := t.enc.Close(); err != nil && t.err == nil {
			t.err = err
		}
		if t.out != nil {
			if err := t.out.Close(); err != nil && t.err == nil {
				t.err = err
			}
		}
		t.log.Debug().Uint64("samples", t.written.Load()).Uint64("dropped", t.dropped.Load()).Msg("closed")
	})
	return t.err
}

func (t *Tap) Written() uint64 { return t.written.Load() }

func (t *Tap) Dropped() uint64 { return t.dropped.Load() }
