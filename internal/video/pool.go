package video

import (
	"fmt"
	"sync/atomic"
)

// PoolSize is the number of frame slots. One may be filling, one waiting and one on the GPU.
const PoolSize = 3

// SlotState is where a slot is in its cycle.
type SlotState int32

const (
	Free SlotState = iota
	Filling
	Pending
	InFlight
)

func (s SlotState) String() string {
	switch s {
	case Free:
		return "free"
	case Filling:
		return "filling"
	case Pending:
		return "pending"
	case InFlight:
		return "in-flight"
	}
	return fmt.Sprintf("state(%d)", int32(s))
}

// Uniform is the per-frame shader input: a column-major 2x2 transform, 16 bytes.
type Uniform [4]float32

// Slot is one reusable frame. The producer writes Pixels between Acquire and
// Publish; everything else belongs to the display side.
type Slot struct {
	index  int
	state  atomic.Int32
	Pixels []byte
	Stride int

	tex     Texture
	uniform Uniform
}

func (s *Slot) Index() int { return s.index }

func (s *Slot) State() SlotState { return SlotState(s.state.Load()) }

// CopyFrom copies one frame into the slot row by row. srcStride is the byte
// length of a source row and may be larger than the slot's row.
func (s *Slot) CopyFrom(src []byte, srcStride int) {
	if srcStride <= 0 || srcStride == s.Stride {
		copy(s.Pixels, src)
		return
	}
	row := min(s.Stride, srcStride)
	for dst, off := 0, 0; dst < len(s.Pixels) && off < len(src); dst, off = dst+s.Stride, off+srcStride {
		copy(s.Pixels[dst:dst+row], src[off:min(off+row, len(src))])
	}
}

func (s *Slot) move(from, to SlotState) {
	if !s.state.CompareAndSwap(int32(from), int32(to)) {
		panic(fmt.Sprintf("video: slot %d: illegal transition %v -> %v (is %v)", s.index, from, to, s.State()))
	}
}

// Stats are running totals of pool traffic.
type Stats struct {
	Published  uint64
	Superseded uint64
	Dropped    uint64
	Taken      uint64
	Released   uint64
}

// Pool is a fixed arena of frame slots with a one-entry, latest-wins mailbox.
//
// Acquire and Publish belong to the single producer, TakePending to the single
// consumer. Release may run on any goroutine. Nothing here blocks or allocates.
type Pool struct {
	Width, Height int

	slots   [PoolSize]Slot
	mailbox atomic.Int32 // index of the pending slot, -1 when empty

	published, superseded, dropped, taken, released atomic.Uint64
}

// NewPool allocates every slot's staging memory up front.
func NewPool(width, height, stride int) *Pool {
	if stride < width*4 {
		stride = width * 4
	}
	p := &Pool{Width: width, Height: height}
	for i := range p.slots {
		p.slots[i].index = i
		p.slots[i].Stride = stride
		p.slots[i].Pixels = make([]byte, stride*height)
	}
	p.mailbox.Store(-1)
	return p
}

// Slots exposes the arena for resource setup and teardown.
func (p *Pool) Slots() []*Slot {
	out := make([]*Slot, len(p.slots))
	for i := range p.slots {
		out[i] = &p.slots[i]
	}
	return out
}

// Acquire hands the producer a free slot, or nil when all are busy. A nil
// result means this tick's picture is dropped.
func (p *Pool) Acquire() *Slot {
	for i := range p.slots {
		s := &p.slots[i]
		if s.state.CompareAndSwap(int32(Free), int32(Filling)) {
			return s
		}
	}
	p.dropped.Add(1)
	return nil
}

// Publish makes s the frame to draw next. A frame still waiting in the mailbox
// is returned to the free list undrawn.
func (p *Pool) Publish(s *Slot) {
	s.move(Filling, Pending)
	p.published.Add(1)
	old := p.mailbox.Swap(int32(s.index))
	if old >= 0 && int(old) != s.index {
		p.slots[old].move(Pending, Free)
		p.superseded.Add(1)
	}
}

// TakePending empties the mailbox. The returned slot is in flight until Release.
func (p *Pool) TakePending() *Slot {
	idx := p.mailbox.Swap(-1)
	if idx < 0 {
		return nil
	}
	s := &p.slots[idx]
	s.move(Pending, InFlight)
	p.taken.Add(1)
	return s
}

// Release returns a drawn slot once the GPU is done reading it.
func (p *Pool) Release(s *Slot) {
	s.move(InFlight, Free)
	p.released.Add(1)
}

func (p *Pool) Stats() Stats {
	return Stats{
		Published:  p.published.Load(),
		Superseded: p.superseded.Load(),
		Dropped:    p.dropped.Load(),
		Taken:      p.taken.Load(),
		Released:   p.released.Load(),
	}
}
