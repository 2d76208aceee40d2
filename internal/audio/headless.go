package audio

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Headless plays chunks into nowhere. PlayNext consumes one chunk on the
// caller's goroutine, which makes the callback order deterministic in tests;
// Run paces it in real time from a ticker.
type Headless struct {
	format Format
	played func(*Chunk)

	mu      sync.Mutex
	queue   chan *Chunk
	started bool
	closed  atomic.Bool

	sink      func([]float32)
	consumed  atomic.Uint64
	underruns atomic.Uint64
}

// HeadlessOpener returns an Opener for a Headless queue. sink, if not nil,
// receives the samples of every played chunk.
func HeadlessOpener(sink func([]float32), out **Headless) Opener {
	return func(f Format, played func(*Chunk)) (Queue, error) {
		h := &Headless{
			format: f,
			played: played,
			queue:  make(chan *Chunk, PoolSize+1),
			sink:   sink,
		}
		if out != nil {
			*out = h
		}
		return h, nil
	}
}

func (h *Headless) Enqueue(c *Chunk) error {
	if h.closed.Load() {
		return ErrClosed
	}
	select {
	case h.queue <- c:
		return nil
	default:
		return ErrQueueFull
	}
}

func (h *Headless) Start() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed.Load() {
		return ErrClosed
	}
	h.started = true
	return nil
}

func (h *Headless) Stop() error {
	h.mu.Lock()
	h.started = false
	h.mu.Unlock()
	return nil
}

func (h *Headless) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.started = false
	h.closed.Store(true)
	for {
		select {
		case <-h.queue:
		default:
			return nil
		}
	}
}

// PlayNext plays the chunk at the head of the queue and reports it played.
// It returns false when stopped or when nothing is queued.
func (h *Headless) PlayNext() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.started {
		return false
	}
	var c *Chunk
	select {
	case c = <-h.queue:
	default:
		h.underruns.Add(1)
		return false
	}
	data := c.Data()
	if h.sink != nil {
		h.sink(data)
	}
	h.consumed.Add(uint64(len(data)))
	h.played(c)
	return true
}

// Run plays one chunk per period until ctx is done.
func (h *Headless) Run(ctx context.Context, period time.Duration) {
	t := time.NewTicker(period)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			h.PlayNext()
		}
	}
}

// Queued is the number of chunks waiting to play.
func (h *Headless) Queued() int { return len(h.queue) }

// Consumed is the number of samples played so far.
func (h *Headless) Consumed() uint64 { return h.consumed.Load() }

func (h *Headless) Underruns() uint64 { return h.underruns.Load() }
