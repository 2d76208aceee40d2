package video

import (
	"sync"
	"testing"
)

func TestPool_LatestWins(t *testing.T) {
	p := NewPool(4, 2, 16)

	a := p.Acquire()
	a.Pixels[0] = 1
	p.Publish(a)
	b := p.Acquire()
	b.Pixels[0] = 2
	p.Publish(b)

	got := p.TakePending()
	if got != b {
		t.Fatalf("took slot %d, want %d", got.Index(), b.Index())
	}
	if got.Pixels[0] != 2 {
		t.Fatalf("pixel = %d, want 2", got.Pixels[0])
	}
	if a.State() != Free {
		t.Fatalf("superseded slot is %v, want free", a.State())
	}
	if p.TakePending() != nil {
		t.Fatal("mailbox not empty after take")
	}
	if st := p.Stats(); st.Superseded != 1 || st.Published != 2 || st.Taken != 1 {
		t.Fatalf("stats = %+v", st)
	}
}

func TestPool_ExhaustionDropsThenRecovers(t *testing.T) {
	p := NewPool(4, 2, 16)

	// two frames on the GPU, one waiting
	first := p.Acquire()
	p.Publish(first)
	p.TakePending()
	second := p.Acquire()
	p.Publish(second)
	p.TakePending()
	third := p.Acquire()
	p.Publish(third)

	if s := p.Acquire(); s != nil {
		t.Fatalf("acquired slot %d from an exhausted pool", s.Index())
	}
	if got := p.Stats().Dropped; got != 1 {
		t.Fatalf("dropped = %d, want 1", got)
	}

	p.Release(first)
	s := p.Acquire()
	if s != first {
		t.Fatalf("got %v, want the released slot", s)
	}
	if third.State() != Pending {
		t.Fatalf("waiting frame is %v, want pending", third.State())
	}
}

func TestPool_TakeEmpty(t *testing.T) {
	p := NewPool(4, 2, 16)
	if p.TakePending() != nil {
		t.Fatal("took a frame from an empty mailbox")
	}
}

func TestPool_IllegalTransitionPanics(t *testing.T) {
	p := NewPool(4, 2, 16)
	s := p.Acquire()

	defer func() {
		if recover() == nil {
			t.Fatal("releasing a filling slot did not panic")
		}
	}()
	p.Release(s)
}

func TestPool_RepublishSameSlot(t *testing.T) {
	p := NewPool(4, 2, 16)
	s := p.Acquire()
	p.Publish(s)
	if got := p.TakePending(); got != s {
		t.Fatalf("got %v, want %v", got, s)
	}
	p.Release(s)
	if s.State() != Free {
		t.Fatalf("state = %v, want free", s.State())
	}
}

func TestSlot_CopyFromStride(t *testing.T) {
	p := NewPool(2, 2, 8)
	s := p.Acquire()

	// 12-byte source rows: 8 bytes of picture plus 4 of padding
	src := []byte{
		1, 1, 1, 1, 2, 2, 2, 2, 9, 9, 9, 9,
		3, 3, 3, 3, 4, 4, 4, 4, 9, 9, 9, 9,
	}
	s.CopyFrom(src, 12)
	want := []byte{1, 1, 1, 1, 2, 2, 2, 2, 3, 3, 3, 3, 4, 4, 4, 4}
	for i := range want {
		if s.Pixels[i] != want[i] {
			t.Fatalf("pixels = %v, want %v", s.Pixels, want)
		}
	}
}

func TestNewPool_StrideAtLeastRow(t *testing.T) {
	p := NewPool(10, 3, 0)
	for _, s := range p.Slots() {
		if s.Stride != 40 || len(s.Pixels) != 120 {
			t.Fatalf("slot %d: stride %d len %d", s.Index(), s.Stride, len(s.Pixels))
		}
	}
}

// One producer, one consumer and a completion goroutine hammer the pool.
// Every drawn frame must be whole and frames must never go backwards.
func TestPool_ConcurrentHandoff(t *testing.T) {
	const frames = 20000
	p := NewPool(8, 4, 32)
	c := NewCompleter(PoolSize)
	defer c.Close()

	var wg sync.WaitGroup
	done := make(chan struct{})

	wg.Add(1)
	go func() {
		defer wg.Done()
		defer close(done)
		for n := 1; n <= frames; n++ {
			s := p.Acquire()
			if s == nil {
				continue
			}
			for i := range s.Pixels {
				s.Pixels[i] = byte(n)
			}
			s.Pixels[0], s.Pixels[1] = byte(n>>8), byte(n)
			p.Publish(s)
		}
	}()

	last := -1
	for {
		s := p.TakePending()
		if s == nil {
			select {
			case <-done:
				wg.Wait()
				if st := p.Stats(); st.Published != st.Superseded+st.Taken+pendingCount(p) {
					t.Fatalf("stats do not add up: %+v", st)
				}
				return
			default:
				continue
			}
		}
		n := int(s.Pixels[0])<<8 | int(s.Pixels[1])
		for i := 2; i < len(s.Pixels); i++ {
			if s.Pixels[i] != byte(n) {
				t.Errorf("frame %d torn at byte %d", n, i)
				break
			}
		}
		if n <= last {
			t.Errorf("frame %d drawn after %d", n, last)
		}
		last = n
		c.Submit(func() { p.Release(s) })
	}
}

func pendingCount(p *Pool) uint64 {
	if p.mailbox.Load() >= 0 {
		return 1
	}
	return 0
}
