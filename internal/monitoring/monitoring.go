// Package monitoring exports the frame and audio counters to Prometheus and
// optionally serves pprof next to them.
package monitoring

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/pprof"

	"github.com/FabianRolfMatthiasNoll/SpectrumEmulator/internal/config"
	"github.com/FabianRolfMatthiasNoll/SpectrumEmulator/internal/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "zxemu"

// Sources are read at scrape time. Any of them may be nil.
type Sources struct {
	Frames    func() (published, superseded, dropped, taken, released uint64)
	Redraws   func() (drawn, skipped, failed uint64)
	Audio     func() (callbacks, partial, samples, lost uint64)
	Underruns func() uint64
}

// NewRegistry registers one collector per counter on a private registry.
func NewRegistry(src Sources) *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(prometheus.NewGoCollector())

	counter := func(subsystem, name, help string, f func() uint64) {
		reg.MustRegister(prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      name,
			Help:      help,
		}, func() float64 { return float64(f()) }))
	}

	if src.Frames != nil {
		f := src.Frames
		counter("frames", "published_total", "Frames published by the emulation tick.", func() uint64 { p, _, _, _, _ := f(); return p })
		counter("frames", "superseded_total", "Frames replaced before they were drawn.", func() uint64 { _, s, _, _, _ := f(); return s })
		counter("frames", "dropped_total", "Ticks whose picture was dropped because every slot was busy.", func() uint64 { _, _, d, _, _ := f(); return d })
		counter("frames", "taken_total", "Frames taken by the display.", func() uint64 { _, _, _, t, _ := f(); return t })
		counter("frames", "released_total", "Frames returned after the GPU finished with them.", func() uint64 { _, _, _, _, r := f(); return r })
	}
	if src.Redraws != nil {
		f := src.Redraws
		counter("display", "drawn_total", "Redraws that drew a frame.", func() uint64 { d, _, _ := f(); return d })
		counter("display", "skipped_total", "Redraws with no new frame.", func() uint64 { _, s, _ := f(); return s })
		counter("display", "failed_total", "Redraws the device rejected.", func() uint64 { _, _, e := f(); return e })
	}
	if src.Audio != nil {
		f := src.Audio
		counter("audio", "callbacks_total", "Chunks refilled by the device callback.", func() uint64 { c, _, _, _ := f(); return c })
		counter("audio", "partial_total", "Chunks filled below capacity.", func() uint64 { _, p, _, _ := f(); return p })
		counter("audio", "samples_total", "Samples produced.", func() uint64 { _, _, s, _ := f(); return s })
		counter("audio", "lost_total", "Chunks the device refused to take back.", func() uint64 { _, _, _, l := f(); return l })
	}
	if src.Underruns != nil {
		counter("audio", "underruns_total", "Device reads that found no chunk queued.", src.Underruns)
	}
	return reg
}

// Server serves /metrics and, when enabled, /debug/pprof.
type Server struct {
	conf config.Monitoring
	srv  *http.Server
	log  *logger.Logger
}

func New(conf config.Monitoring, reg *prometheus.Registry, log *logger.Logger) *Server {
	log = log.Module("monitoring")
	h := http.NewServeMux()

	if conf.Profiling {
		prefix := conf.URLPrefix + "/debug/pprof"
		h.HandleFunc(prefix+"/", pprof.Index)
		h.HandleFunc(prefix+"/cmdline", pprof.Cmdline)
		h.HandleFunc(prefix+"/profile", pprof.Profile)
		h.HandleFunc(prefix+"/symbol", pprof.Symbol)
		h.HandleFunc(prefix+"/trace", pprof.Trace)
		for _, name := range []string{"allocs", "block", "goroutine", "heap", "mutex", "threadcreate"} {
			h.Handle(prefix+"/"+name, pprof.Handler(name))
		}
		log.Info().Str("path", prefix).Msg("profiling enabled")
	}
	h.Handle(conf.URLPrefix+"/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	return &Server{
		conf: conf,
		srv:  &http.Server{Addr: fmt.Sprintf(":%d", conf.Port), Handler: h},
		log:  log,
	}
}

// Start listens and serves in the background.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return fmt.Errorf("monitoring: %w", err)
	}
	s.log.Info().Str("addr", ln.Addr().String()).Msg("serving metrics")
	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error().Err(err).Msg("metrics server stopped")
		}
	}()
	return nil
}

func (s *Server) Handler() http.Handler { return s.srv.Handler }

func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Debug().Msg("shutting down")
	return s.srv.Shutdown(ctx)
}

func (s *Server) String() string {
	return fmt.Sprintf("monitoring::%s:%d", s.conf.URLPrefix, s.conf.Port)
}
