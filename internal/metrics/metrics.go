// Package metrics exports presenter counters in Prometheus format.
package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "wlpresent"

// Presenter collects buffer and round-trip counts for one process. A nil
// *Presenter is valid and records nothing.
type Presenter struct {
	registry *prometheus.Registry

	imports         *prometheus.CounterVec
	importFailures  *prometheus.CounterVec
	framesShown     prometheus.Counter
	buffersReleased prometheus.Counter
	roundtrips      prometheus.Histogram
	roundtripErrors prometheus.Counter
	running         prometheus.Gauge
}

// NewPresenter registers the presenter collectors on a private registry.
func NewPresenter() *Presenter {
	p := &Presenter{
		registry: prometheus.NewRegistry(),
		imports: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "buffers_imported_total",
			Help:      "Dmabuf imports accepted by the compositor.",
		}, []string{"format"}),
		importFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "buffer_import_failures_total",
			Help:      "Dmabuf imports rejected or left unanswered.",
		}, []string{"format"}),
		framesShown: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_shown_total",
			Help:      "Frames handed to the compositor.",
		}),
		buffersReleased: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "buffers_released_total",
			Help:      "Show cycles completed by a compositor release.",
		}),
		roundtrips: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "roundtrip_seconds",
			Help:      "Latency of wl_display.sync round-trips.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 8),
		}),
		roundtripErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "roundtrip_errors_total",
			Help:      "Round-trips that timed out or hit a connection error.",
		}),
		running: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "session_running",
			Help:      "1 while the presentation session is running.",
		}),
	}
	p.registry.MustRegister(
		p.imports,
		p.importFailures,
		p.framesShown,
		p.buffersReleased,
		p.roundtrips,
		p.roundtripErrors,
		p.running,
		collectors.NewGoCollector(),
	)
	return p
}

func (p *Presenter) Registry() *prometheus.Registry {
	if p == nil {
		return nil
	}
	return p.registry
}

func (p *Presenter) BufferImported(format string) {
	if p == nil {
		return
	}
	p.imports.WithLabelValues(format).Inc()
}

func (p *Presenter) ImportFailed(format string) {
	if p == nil {
		return
	}
	p.importFailures.WithLabelValues(format).Inc()
}

func (p *Presenter) FrameShown() {
	if p == nil {
		return
	}
	p.framesShown.Inc()
}

func (p *Presenter) BufferReleased() {
	if p == nil {
		return
	}
	p.buffersReleased.Inc()
}

func (p *Presenter) Roundtrip(d time.Duration, err error) {
	if p == nil {
		return
	}
	if err != nil {
		p.roundtripErrors.Inc()
		return
	}
	p.roundtrips.Observe(d.Seconds())
}

func (p *Presenter) SessionRunning(running bool) {
	if p == nil {
		return
	}
	if running {
		p.running.Set(1)
	} else {
		p.running.Set(0)
	}
}

// Handler serves the registry in the Prometheus text format.
func (p *Presenter) Handler() http.Handler {
	if p == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}

// Server exposes /metrics over HTTP.
type Server struct {
	srv    *http.Server
	ln     net.Listener
	logger *slog.Logger
}

// Listen binds addr and serves p in the background until Shutdown.
func Listen(addr string, p *Presenter, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", p.Handler())
	s := &Server{
		srv:    &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second},
		ln:     ln,
		logger: logger,
	}
	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server stopped", "error", err)
		}
	}()
	logger.Info("metrics server listening", "addr", ln.Addr().String())
	return s, nil
}

// Addr is the bound address, useful when listening on port 0.
func (s *Server) Addr() string {
	return s.ln.Addr().String()
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Debug("shutting down metrics server")
	return s.srv.Shutdown(ctx)
}
