// Package metrics exposes Prometheus metrics for the gateway on a dedicated
// listener, separate from the API listener so scrapes never compete with
// forwarded traffic.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the gateway's instrument set.
type Metrics struct {
	// ForwardedRequests counts proxied requests by method and relayed status class.
	ForwardedRequests *prometheus.CounterVec

	// AuthRejections counts authentication pipeline rejections by reason.
	AuthRejections *prometheus.CounterVec

	// PathRejections counts requests refused by the path guard.
	PathRejections prometheus.Counter

	// ForwardDuration observes the end-to-end upstream call latency.
	ForwardDuration prometheus.Histogram

	// CredentialRotations counts bearer cookie issues and refreshes.
	CredentialRotations prometheus.Counter

	registry *prometheus.Registry
}

// New creates the instrument set under the given namespace.
func New(namespace string) *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(registry)

	return &Metrics{
		ForwardedRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "forwarded_requests_total",
			Help:      "Proxied requests by method and upstream status class.",
		}, []string{"method", "status"}),
		AuthRejections: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "auth_rejections_total",
			Help:      "Authentication rejections by reason.",
		}, []string{"reason"}),
		PathRejections: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "path_rejections_total",
			Help:      "Requests refused by the path guard before any network call.",
		}),
		ForwardDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "forward_duration_seconds",
			Help:      "Latency of upstream forwards.",
			Buckets:   prometheus.DefBuckets,
		}),
		CredentialRotations: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "credential_rotations_total",
			Help:      "Bearer credential cookie issues and refreshes.",
		}),
		registry: registry,
	}
}

// Server serves the /metrics endpoint on its own listener.
type Server struct {
	srv *http.Server
}

// NewServer builds the metrics HTTP server for the given instrument set.
func NewServer(m *Metrics, addr string) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))

	return &Server{
		srv: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 10 * time.Second,
		},
	}
}

func (s *Server) ListenAndServe() error {
	return s.srv.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
