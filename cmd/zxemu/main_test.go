package main

import (
	"fmt"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/FabianRolfMatthiasNoll/SpectrumEmulator/internal/config"
	"github.com/FabianRolfMatthiasNoll/SpectrumEmulator/internal/logger"
)

func headlessConfig(ticks int) config.Config {
	return config.Config{
		Video:    config.Video{Backend: "ebiten", Scale: 2},
		Audio:    config.Audio{Backend: "headless", SampleRate: 44100, ChunkSamples: 1024},
		Headless: config.Headless{Enabled: true, Ticks: ticks},
	}
}

func TestRunHeadless_Deterministic(t *testing.T) {
	a, err := runHeadless(headlessConfig(12), logger.Nop())
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	b, err := runHeadless(headlessConfig(12), logger.Nop())
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if a != b {
		t.Fatalf("crc differs between runs: %08x vs %08x", a, b)
	}
	c, err := runHeadless(headlessConfig(13), logger.Nop())
	if err != nil {
		t.Fatalf("third run: %v", err)
	}
	if c == a {
		t.Fatalf("one more tick left the picture unchanged (%08x)", c)
	}
}

func TestRunHeadless_ExpectAndPNG(t *testing.T) {
	crc, err := runHeadless(headlessConfig(5), logger.Nop())
	if err != nil {
		t.Fatal(err)
	}

	cfg := headlessConfig(5)
	cfg.Headless.Expect = fmt.Sprintf("0X%08X", crc)
	cfg.Headless.PNG = filepath.Join(t.TempDir(), "frame.png")
	if _, err := runHeadless(cfg, logger.Nop()); err != nil {
		t.Fatalf("expect %s: %v", cfg.Headless.Expect, err)
	}
	f, err := os.Open(cfg.Headless.PNG)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	img, err := png.Decode(f)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 352 || b.Dy() != 288 {
		t.Fatalf("png is %v, want 352x288", b)
	}

	cfg.Headless.PNG = ""
	cfg.Headless.Expect = fmt.Sprintf("%08x", crc^1)
	if _, err := runHeadless(cfg, logger.Nop()); err == nil {
		t.Fatal("wrong expectation passed")
	}
}

func TestCheckCRC(t *testing.T) {
	cases := []struct {
		expect string
		ok     bool
	}{
		{"", true},
		{"1a2b3c4d", true},
		{"0x1A2B3C4D", true},
		{" 1a2b3c4d\n", true},
		{"1a2b3c4e", false},
		{"1a2b3c4", false},
	}
	for _, c := range cases {
		if err := checkCRC(0x1a2b3c4d, c.expect); (err == nil) != c.ok {
			t.Errorf("checkCRC(%q) = %v, want ok=%v", c.expect, err, c.ok)
		}
	}
}

func TestTickPeriod(t *testing.T) {
	if got := tickPeriod(audioFormat(config.Audio{SampleRate: 44100, ChunkSamples: 1024})); got.Milliseconds() != 20 {
		t.Fatalf("tick period = %v, want 20ms", got)
	}
}
