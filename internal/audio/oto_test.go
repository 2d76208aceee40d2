package audio

import (
	"encoding/binary"
	"errors"
	"math"
	"testing"
)

func filledChunk(index int, samples ...float32) *Chunk {
	c := newChunk(index, 8)
	copy(c.samples, samples)
	c.size.Store(int32(len(samples)))
	return c
}

func sampleAt(p []byte, i int) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(p[i*4:]))
}

func TestChunkReader_StreamsInOrder(t *testing.T) {
	var played []int
	r := newChunkReader(func(c *Chunk) { played = append(played, c.Index()) })
	r.setStopped(false)
	_ = r.push(filledChunk(0, 1, 2, 3))
	_ = r.push(filledChunk(1, 4, 5))

	p := make([]byte, 4*4)
	if n, err := r.Read(p); n != len(p) || err != nil {
		t.Fatalf("Read = %d, %v", n, err)
	}
	for i, want := range []float32{1, 2, 3, 4} {
		if got := sampleAt(p, i); got != want {
			t.Fatalf("sample %d = %v, want %v", i, got, want)
		}
	}
	if len(played) != 1 || played[0] != 0 {
		t.Fatalf("played = %v, want [0]", played)
	}

	_, _ = r.Read(p)
	if got := sampleAt(p, 0); got != 5 {
		t.Fatalf("sample = %v, want 5", got)
	}
	if len(played) != 2 {
		t.Fatalf("played = %v, want two chunks", played)
	}
}

func TestChunkReader_ReenqueueInsideCallback(t *testing.T) {
	var r *chunkReader
	fills := 0
	r = newChunkReader(func(c *Chunk) {
		fills++
		c.samples[0] = float32(fills)
		c.size.Store(1)
		if err := r.push(c); err != nil {
			t.Fatalf("push: %v", err)
		}
	})
	r.setStopped(false)
	for i := 0; i < PoolSize; i++ {
		_ = r.push(filledChunk(i, 0))
	}

	p := make([]byte, 4*10)
	_, _ = r.Read(p)
	if fills != 10 {
		t.Fatalf("fills = %d, want 10", fills)
	}
	if got := sampleAt(p, 9); got != 7 {
		t.Fatalf("last sample = %v, want 7", got)
	}
	if r.Underruns() != 0 {
		t.Fatalf("underruns = %d", r.Underruns())
	}
}

func TestChunkReader_UnderrunPadsSilence(t *testing.T) {
	r := newChunkReader(func(*Chunk) {})
	r.setStopped(false)
	_ = r.push(filledChunk(0, 9))

	p := make([]byte, 4*4)
	for i := range p {
		p[i] = 0xAA
	}
	_, _ = r.Read(p)
	if sampleAt(p, 0) != 9 {
		t.Fatalf("first sample = %v", sampleAt(p, 0))
	}
	for i := 1; i < 4; i++ {
		if s := sampleAt(p, i); s != 0 {
			t.Fatalf("sample %d = %v, want silence", i, s)
		}
	}
	if r.Underruns() != 1 {
		t.Fatalf("underruns = %d, want 1", r.Underruns())
	}
}

func TestChunkReader_EmptyChunksDoNotSpin(t *testing.T) {
	var r *chunkReader
	calls := 0
	r = newChunkReader(func(c *Chunk) {
		calls++
		_ = r.push(c)
	})
	r.setStopped(false)
	for i := 0; i < PoolSize; i++ {
		_ = r.push(filledChunk(i))
	}
	p := make([]byte, 64)
	_, _ = r.Read(p)
	if calls != len(r.ring) {
		t.Fatalf("callbacks = %d, want %d", calls, len(r.ring))
	}
}

func TestChunkReader_StoppedIsSilent(t *testing.T) {
	calls := 0
	r := newChunkReader(func(*Chunk) { calls++ })
	_ = r.push(filledChunk(0, 1, 1))

	p := make([]byte, 16)
	p[0] = 1
	if n, _ := r.Read(p); n != 16 || p[0] != 0 {
		t.Fatalf("stopped read = %d bytes, first %d", n, p[0])
	}
	if calls != 0 {
		t.Fatalf("callbacks while stopped = %d", calls)
	}
}

func TestChunkReader_FullRing(t *testing.T) {
	r := newChunkReader(func(*Chunk) {})
	for i := 0; i < len(r.ring); i++ {
		if err := r.push(filledChunk(i, 1)); err != nil {
			t.Fatalf("push %d: %v", i, err)
		}
	}
	if err := r.push(filledChunk(9, 1)); !errors.Is(err, ErrQueueFull) {
		t.Fatalf("push into a full ring: %v, want ErrQueueFull", err)
	}
	r.drain()
	if r.pop() != nil {
		t.Fatal("ring not empty after drain")
	}
}
