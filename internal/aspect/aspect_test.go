package aspect

import (
	"sync"
	"testing"
)

func TestCompute(t *testing.T) {
	tests := []struct {
		name string
		w, h int
		want Transform
	}{
		{"exact 4:3", 400, 300, Transform{1, 1}},
		{"wide", 800, 300, Transform{1, 2}},
		{"tall", 200, 300, Transform{2, 1}},
		{"tall 3:4", 300, 400, Transform{16.0 / 9, 1}},
		{"zero width", 0, 300, Identity()},
		{"zero height", 400, 0, Identity()},
		{"negative", -4, -3, Identity()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Compute(tt.w, tt.h)
			if !near(got.ScaleX, tt.want.ScaleX) || !near(got.ScaleY, tt.want.ScaleY) {
				t.Fatalf("Compute(%d, %d) = %+v, want %+v", tt.w, tt.h, got, tt.want)
			}
		})
	}
}

func TestComputeNeverShrinks(t *testing.T) {
	for w := 1; w < 2000; w += 37 {
		for h := 1; h < 2000; h += 41 {
			tr := Compute(w, h)
			if tr.ScaleX < 1 || tr.ScaleY < 1 {
				t.Fatalf("Compute(%d, %d) = %+v has a factor below 1", w, h, tr)
			}
			if tr.ScaleX != 1 && tr.ScaleY != 1 {
				t.Fatalf("Compute(%d, %d) = %+v scales both axes", w, h, tr)
			}
		}
	}
}

func TestMatrix(t *testing.T) {
	m := Transform{ScaleX: 1.5, ScaleY: 1}.Matrix()
	if m != [4]float32{1.5, 0, 0, 1} {
		t.Fatalf("got %v", m)
	}
}

func TestHolderZeroValueIsIdentity(t *testing.T) {
	var h Holder
	if got := h.Load(); got != Identity() {
		t.Fatalf("got %+v, want identity", got)
	}
}

func TestHolderResize(t *testing.T) {
	var h Holder
	h.Resize(800, 300)
	if got := h.Load(); got.ScaleX != 1 || !near(got.ScaleY, 2) {
		t.Fatalf("got %+v, want {1 2}", got)
	}
	h.Resize(200, 300)
	if got := h.Load(); !near(got.ScaleX, 2) || got.ScaleY != 1 {
		t.Fatalf("got %+v, want {2 1}", got)
	}
}

// A reader must only ever observe one of the transforms that were stored.
func TestHolderNoTornReads(t *testing.T) {
	var h Holder
	a, b := Transform{1, 2}, Transform{3, 1}
	h.Store(a)

	var wg sync.WaitGroup
	stop := make(chan struct{})
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; ; i++ {
			select {
			case <-stop:
				return
			default:
			}
			if i%2 == 0 {
				h.Store(b)
			} else {
				h.Store(a)
			}
		}
	}()
	for i := 0; i < 100000; i++ {
		if got := h.Load(); got != a && got != b {
			close(stop)
			wg.Wait()
			t.Fatalf("torn read %+v", got)
		}
	}
	close(stop)
	wg.Wait()
}

func near(a, b float32) bool {
	d := a - b
	return d < 1e-5 && d > -1e-5
}
