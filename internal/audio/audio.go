// Package audio keeps a fixed set of sample chunks circulating between the
// output device and the emulation tick that fills them.
package audio

import (
	"errors"
	"fmt"
	"sync/atomic"
)

// Format describes the output stream. Samples are 32-bit floats.
type Format struct {
	SampleRate   int
	Channels     int
	ChunkSamples int
}

// DefaultFormat is 44.1 kHz mono with 1024-sample (4096-byte) chunks.
func DefaultFormat() Format {
	return Format{SampleRate: 44100, Channels: 1, ChunkSamples: 1024}
}

func (f Format) validate() error {
	switch {
	case f.SampleRate <= 0:
		return fmt.Errorf("sample rate %d", f.SampleRate)
	case f.Channels != 1 && f.Channels != 2:
		return fmt.Errorf("%d channels", f.Channels)
	case f.ChunkSamples <= 0 || f.ChunkSamples%f.Channels != 0:
		return fmt.Errorf("chunk of %d samples", f.ChunkSamples)
	}
	return nil
}

// ChunkState tracks who owns a chunk.
type ChunkState int32

const (
	Enqueued ChunkState = iota
	CallbackOwned
	Released
)

func (s ChunkState) String() string {
	switch s {
	case Enqueued:
		return "enqueued"
	case CallbackOwned:
		return "callback-owned"
	case Released:
		return "released"
	}
	return fmt.Sprintf("chunk-state(%d)", int32(s))
}

// Chunk is one fixed-capacity sample buffer. Its samples may only be written
// while the pool's callback owns it.
type Chunk struct {
	index   int
	samples []float32
	size    atomic.Int32
	state   atomic.Int32
}

func newChunk(index, capacity int) *Chunk {
	return &Chunk{index: index, samples: make([]float32, capacity)}
}

func (c *Chunk) Index() int { return c.index }

func (c *Chunk) Cap() int { return len(c.samples) }

// Len is the number of valid samples reported by the last fill.
func (c *Chunk) Len() int { return int(c.size.Load()) }

// Data returns the valid samples.
func (c *Chunk) Data() []float32 { return c.samples[:c.Len()] }

func (c *Chunk) State() ChunkState { return ChunkState(c.state.Load()) }

func (c *Chunk) move(from, to ChunkState) {
	if !c.state.CompareAndSwap(int32(from), int32(to)) {
		panic(fmt.Sprintf("audio: chunk %d: illegal transition %v -> %v (is %v)", c.index, from, to, c.State()))
	}
}

// Queue is an output device that plays chunks in the order they are enqueued
// and reports each one through the played callback given to its Opener.
type Queue interface {
	Enqueue(c *Chunk) error
	Start() error
	// Stop halts playback. No played callback runs once Stop returns.
	Stop() error
	// Close releases the device. Chunks still queued are dropped.
	Close() error
}

// Opener creates a Queue. played runs on the device's own context, once per
// chunk, after its samples have been consumed.
type Opener func(f Format, played func(*Chunk)) (Queue, error)

// Filler writes one tick of samples into buf and returns how many it wrote.
type Filler interface {
	Fill(buf []float32) int
}

// FillerFunc adapts a function to Filler.
type FillerFunc func(buf []float32) int

func (f FillerFunc) Fill(buf []float32) int { return f(buf) }

// ErrInit marks a failure to bring up audio output.
var ErrInit = errors.New("audio init failed")

// ErrClosed is returned by a queue that no longer accepts chunks.
var ErrClosed = errors.New("audio: queue closed")

// ErrQueueFull is returned by a queue that has no room left for the chunk.
var ErrQueueFull = errors.New("audio: queue full")

// Stage is the initialization step that failed.
type Stage string

const (
	StageFormat Stage = "format"
	StageDevice Stage = "device"
	StageBuffer Stage = "buffer"
)

type InitError struct {
	Stage Stage
	Err   error
}

func (e *InitError) Error() string {
	return fmt.Sprintf("audio: %s: %v", e.Stage, e.Err)
}

func (e *InitError) Unwrap() error { return e.Err }

func (e *InitError) Is(target error) bool { return target == ErrInit }
