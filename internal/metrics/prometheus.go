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

	"goattach/internal/journal"
)

// Prometheus implements Collector with its own registry.
type Prometheus struct {
	discovered prometheus.Counter
	outcomes   *prometheus.CounterVec
	polls      *prometheus.HistogramVec

	registry *prometheus.Registry
}

// NewPrometheus creates the collectors under namespace, "goattach" by default.
func NewPrometheus(namespace string) *Prometheus {
	if namespace == "" {
		namespace = "goattach"
	}
	p := &Prometheus{registry: prometheus.NewRegistry()}

	p.discovered = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "jvms_discovered_total",
		Help:      "Total number of JVMs returned by discovery, counted per poll",
	})
	p.outcomes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "attach_outcomes_total",
		Help:      "Total number of attach decisions by outcome",
	}, []string{"outcome"})
	p.polls = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "poll_duration_seconds",
		Help:      "Duration of discovery poll cycles",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	}, []string{"status"})

	p.registry.MustRegister(
		p.discovered,
		p.outcomes,
		p.polls,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return p
}

func (p *Prometheus) Discovered(n int) { p.discovered.Add(float64(n)) }

func (p *Prometheus) Outcome(o journal.Outcome) { p.outcomes.WithLabelValues(string(o)).Inc() }

func (p *Prometheus) Poll(d time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	p.polls.WithLabelValues(status).Observe(d.Seconds())
}

// Registry returns the Prometheus registry for HTTP handler setup.
func (p *Prometheus) Registry() *prometheus.Registry { return p.registry }

// Handler serves the registry in the Prometheus exposition format.
func (p *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{Registry: p.registry})
}

// Serve exposes /metrics on addr until ctx is done.
func (p *Prometheus) Serve(ctx context.Context, addr string, logger *slog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", p.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	logger.Info("serving metrics", "addr", ln.Addr().String())

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

var _ Collector = (*Prometheus)(nil)
