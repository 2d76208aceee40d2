package main

import (
	"context"
	"errors"
	"fmt"
	"hash/crc32"
	"image"
	"image/png"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/FabianRolfMatthiasNoll/SpectrumEmulator/internal/audio"
	"github.com/FabianRolfMatthiasNoll/SpectrumEmulator/internal/bridge"
	"github.com/FabianRolfMatthiasNoll/SpectrumEmulator/internal/config"
	"github.com/FabianRolfMatthiasNoll/SpectrumEmulator/internal/core/testcard"
	"github.com/FabianRolfMatthiasNoll/SpectrumEmulator/internal/glview"
	"github.com/FabianRolfMatthiasNoll/SpectrumEmulator/internal/logger"
	"github.com/FabianRolfMatthiasNoll/SpectrumEmulator/internal/monitoring"
	"github.com/FabianRolfMatthiasNoll/SpectrumEmulator/internal/thread"
	"github.com/FabianRolfMatthiasNoll/SpectrumEmulator/internal/ui"
	"github.com/FabianRolfMatthiasNoll/SpectrumEmulator/internal/video"
	"github.com/FabianRolfMatthiasNoll/SpectrumEmulator/internal/wavtap"
	"github.com/spf13/pflag"
)

// display is a window that presents frames from the pool.
type display interface {
	Run() error
	RequestRedraw()
	Presenter() *video.Presenter
	Close()
}

func main() {
	cfg, err := config.Parse(os.Args[0], os.Args[1:])
	if errors.Is(err, pflag.ErrHelp) {
		return
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	log := newLogger(cfg.Log)

	// SDL and GL want the main thread; ebiten takes it itself.
	if cfg.Video.Backend == "gl" && !cfg.Headless.Enabled {
		code := 0
		thread.Main(func() { code = exit(log, run(cfg, log)) })
		os.Exit(code)
	}
	os.Exit(exit(log, run(cfg, log)))
}

func newLogger(c config.Log) *logger.Logger {
	if c.JSON {
		return logger.New(os.Stderr, c.Level)
	}
	return logger.NewConsole(c.Level, "zxemu", c.NoColor)
}

func exit(log *logger.Logger, err error) int {
	if err != nil {
		log.Error().Err(err).Msg("exit")
		return 1
	}
	return 0
}

func audioFormat(c config.Audio) audio.Format {
	return audio.Format{SampleRate: c.SampleRate, Channels: 1, ChunkSamples: c.ChunkSamples}
}

func run(cfg config.Config, log *logger.Logger) error {
	if cfg.Headless.Enabled {
		_, err := runHeadless(cfg, log)
		return err
	}

	m := testcard.New()
	g := m.Geometry()
	frames := video.NewPool(g.Width, g.Height, g.BytesPerRow)

	var disp display
	switch cfg.Video.Backend {
	case "gl":
		w, err := glview.New(glview.Config{Title: cfg.Video.Title, Scale: cfg.Video.Scale, NoVSync: cfg.Video.NoVSync}, m, frames, log)
		if err != nil {
			return err
		}
		disp = w
	default:
		a, err := ui.NewApp(ui.Config{Title: cfg.Video.Title, Scale: cfg.Video.Scale, NoVSync: cfg.Video.NoVSync}, m, frames, log)
		if err != nil {
			return err
		}
		disp = a
	}
	defer disp.Close()

	br := bridge.New(m, frames, disp.RequestRedraw)
	format := audioFormat(cfg.Audio)

	if cfg.Record.WAV != "" {
		tap, err := wavtap.Create(cfg.Record.WAV, format.SampleRate, format.Channels, log)
		if err != nil {
			return err
		}
		defer func() {
			if err := tap.Close(); err != nil {
				log.Error().Err(err).Str("file", cfg.Record.WAV).Msg("recording")
			}
		}()
		br.SetTap(tap)
	}

	var (
		open audio.Opener
		hb   *audio.Headless
	)
	switch cfg.Audio.Backend {
	case "headless":
		open = audio.HeadlessOpener(nil, &hb)
	default:
		open = audio.OtoOpener(cfg.Audio.Buffer())
	}
	snd, err := audio.NewPool(open, format, br, log)
	if err != nil {
		return err
	}
	// deferred after the display so it stops first
	defer func() { _ = snd.Close() }()

	if cfg.Monitoring.Enabled {
		srv := monitoring.New(cfg.Monitoring, monitoring.NewRegistry(sources(frames, disp.Presenter(), snd)), log)
		if err := srv.Start(); err != nil {
			return err
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			_ = srv.Shutdown(ctx)
		}()
	}

	if err := snd.Start(); err != nil {
		return err
	}
	if hb != nil {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go hb.Run(ctx, tickPeriod(format))
	}

	log.Info().Str("video", cfg.Video.Backend).Str("audio", cfg.Audio.Backend).
		Int("rate", format.SampleRate).Int("chunk", format.ChunkSamples).Msg("running")
	err = disp.Run()
	log.Info().Uint64("ticks", br.Ticks()).Uint64("dropped", br.Dropped()).
		Uint64("underruns", snd.Underruns()).Msg("stopped")
	return err
}

// tickPeriod is how long one tick's worth of samples plays.
func tickPeriod(f audio.Format) time.Duration {
	return time.Duration(testcard.SamplesPerTick) * time.Second / time.Duration(f.SampleRate)
}

func sources(frames *video.Pool, p *video.Presenter, snd *audio.Pool) monitoring.Sources {
	return monitoring.Sources{
		Frames: func() (uint64, uint64, uint64, uint64, uint64) {
			s := frames.Stats()
			return s.Published, s.Superseded, s.Dropped, s.Taken, s.Released
		},
		Redraws: func() (uint64, uint64, uint64) {
			s := p.Stats()
			return s.Drawn, s.Skipped, s.Failed
		},
		Audio: func() (uint64, uint64, uint64, uint64) {
			s := snd.Stats()
			return s.Callbacks, s.Partial, s.Samples, s.Lost
		},
		Underruns: snd.Underruns,
	}
}

// runHeadless drives the whole pipeline without a window or sound card: each
// played chunk runs one tick and every published frame is presented on an
// in-memory device. It returns the CRC32 of the last presented picture.
func runHeadless(cfg config.Config, log *logger.Logger) (uint32, error) {
	ticks := cfg.Headless.Ticks
	if ticks <= 0 {
		ticks = 1
	}

	m := testcard.New()
	g := m.Geometry()
	frames := video.NewPool(g.Width, g.Height, g.BytesPerRow)
	completer := video.NewCompleter(video.PoolSize)
	defer completer.Close()
	dev := video.NewHeadless(completer)
	presenter, err := video.NewPresenter(frames, dev, log)
	if err != nil {
		return 0, err
	}
	defer presenter.Close()
	w := g.Width * max(cfg.Video.Scale, 1)
	presenter.Resize(w, w*3/4)

	var dirty atomic.Bool
	br := bridge.New(m, frames, func() { dirty.Store(true) })
	if cfg.Record.WAV != "" {
		tap, err := wavtap.Create(cfg.Record.WAV, cfg.Audio.SampleRate, 1, log)
		if err != nil {
			return 0, err
		}
		defer tap.Close()
		br.SetTap(tap)
	}

	var hb *audio.Headless
	snd, err := audio.NewPool(audio.HeadlessOpener(nil, &hb), audioFormat(cfg.Audio), br, log)
	if err != nil {
		return 0, err
	}
	if err := snd.Start(); err != nil {
		_ = snd.Close()
		return 0, err
	}

	start := time.Now()
	for i := 0; i < ticks; i++ {
		hb.PlayNext()
		if dirty.Swap(false) {
			if err := presenter.Redraw(); err != nil {
				_ = snd.Close()
				return 0, err
			}
		}
	}
	dur := time.Since(start)
	_ = snd.Close()

	img := dev.Last()
	if img == nil {
		return 0, errors.New("headless: nothing was presented")
	}
	crc := crc32.ChecksumIEEE(img.Pix)
	log.Info().Int("ticks", ticks).Dur("elapsed", dur.Truncate(time.Millisecond)).
		Float64("tps", float64(ticks)/dur.Seconds()).
		Str("fb_crc32", fmt.Sprintf("%08x", crc)).
		Uint64("dropped", frames.Stats().Dropped).Msg("headless")

	if cfg.Headless.PNG != "" {
		if err := saveFramePNG(img, cfg.Headless.PNG); err != nil {
			return crc, fmt.Errorf("write PNG: %w", err)
		}
		log.Info().Str("file", cfg.Headless.PNG).Msg("wrote")
	}
	return crc, checkCRC(crc, cfg.Headless.Expect)
}

// checkCRC compares against an expected hex value, with or without 0x and in
// any case. An empty expectation always passes.
func checkCRC(crc uint32, expect string) error {
	if expect == "" {
		return nil
	}
	want := strings.TrimPrefix(strings.ToLower(strings.TrimSpace(expect)), "0x")
	got := fmt.Sprintf("%08x", crc)
	if got != want {
		return fmt.Errorf("checksum mismatch: got %s, want %s", got, want)
	}
	return nil
}

func saveFramePNG(img *image.RGBA, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
