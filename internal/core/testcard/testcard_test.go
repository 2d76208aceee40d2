package testcard

import (
	"encoding/binary"
	"testing"
)

func pixel(pix []byte, x, y int) uint32 {
	return binary.LittleEndian.Uint32(pix[y*BytesPerRow+x*4:])
}

func TestMachine_Geometry(t *testing.T) {
	g := New().Geometry()
	if g.Width != 352 || g.Height != 288 || g.BytesPerRow != 1408 {
		t.Fatalf("geometry = %+v", g)
	}
	if g.FrameBytes() != 288*1408 {
		t.Fatalf("frame bytes = %d", g.FrameBytes())
	}
}

func TestMachine_TickProducesSilenceAndFrame(t *testing.T) {
	m := New()
	buf := make([]float32, 1024)
	for i := range buf {
		buf[i] = 7
	}
	n, pix := m.AdvanceOneTick(buf)
	if n != SamplesPerTick {
		t.Fatalf("samples = %d, want %d", n, SamplesPerTick)
	}
	for i := 0; i < n; i++ {
		if buf[i] != 0 {
			t.Fatalf("sample %d = %v, want silence with no key held", i, buf[i])
		}
	}
	if buf[n] != 7 {
		t.Fatal("wrote past the produced samples")
	}
	if len(pix) != Height*BytesPerRow {
		t.Fatalf("frame is %d bytes", len(pix))
	}
	if got := pixel(pix, 0, 0); got != Palette[7] {
		t.Fatalf("border = %06x, want %06x", got, Palette[7])
	}
	if got := pixel(pix, Border+40, Border+100); got != Palette[9] {
		t.Fatalf("bar pixel = %06x, want %06x", got, Palette[9])
	}
}

func TestMachine_ShortBuffer(t *testing.T) {
	n, _ := New().AdvanceOneTick(make([]float32, 100))
	if n != 100 {
		t.Fatalf("samples = %d, want 100", n)
	}
}

func TestMachine_KeyMatrix(t *testing.T) {
	m := New()
	m.KeyDown(0x21) // A
	m.KeyDown(0x22) // S
	if got := m.Row(1); got != 0x03 {
		t.Fatalf("row 1 = %02x, want 03", got)
	}
	m.KeyUp(0x21)
	if got := m.Row(1); got != 0x02 {
		t.Fatalf("row 1 = %02x, want 02", got)
	}
	m.KeyUp(0x22)
	if got := m.Row(1); got != 0 {
		t.Fatalf("row 1 = %02x, want 00", got)
	}
}

func TestMachine_KeyHeldBeepsAndFlashesBorder(t *testing.T) {
	m := New()
	m.KeyDown(0xE1) // space
	buf := make([]float32, 1024)
	n, pix := m.AdvanceOneTick(buf)

	var hi, lo int
	for _, s := range buf[:n] {
		switch s {
		case volume:
			hi++
		case -volume:
			lo++
		}
	}
	if hi == 0 || lo == 0 || hi+lo != n {
		t.Fatalf("tone has %d high and %d low samples of %d", hi, lo, n)
	}
	if got := pixel(pix, 0, 0); got != Palette[2] {
		t.Fatalf("border = %06x, want %06x", got, Palette[2])
	}
	// row 7 cell of the matrix strip is lit
	if got := pixel(pix, Border+7*32+4, Border+ScreenHeight-4); got != Palette[12] {
		t.Fatalf("matrix cell = %06x, want %06x", got, Palette[12])
	}
}
