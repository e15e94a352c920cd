// Package metricsserver exposes the pipeline's Prometheus metrics over
// HTTP, grounded on the teacher's metrics.Timer/Handler pattern.
package metricsserver

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	MessagesProcessedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "messages_processed_total",
			Help: "Total number of input messages processed, by topic and outcome",
		},
		[]string{"topic", "status"},
	)

	MessageProcessingSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "message_processing_seconds",
			Help:    "Time to run one message through C2->C3->C4, by topic",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"topic"},
	)

	ActiveConsumers = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "active_consumers",
			Help: "Number of currently running consumer workers, by consumer type",
		},
		[]string{"consumer_type"},
	)

	AnomaliesDetectedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "anomalies_detected_total",
			Help: "Total number of anomalies flagged by the detector, by anomaly type",
		},
		[]string{"anomaly_type"},
	)

	RedisOperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "redis_operations_total",
			Help: "Total number of shared-cache operations, by operation and outcome",
		},
		[]string{"operation", "status"},
	)
)

func init() {
	prometheus.MustRegister(
		MessagesProcessedTotal,
		MessageProcessingSeconds,
		ActiveConsumers,
		AnomaliesDetectedTotal,
		RedisOperationsTotal,
	)
}

// Handler returns the Prometheus scrape handler for mounting at /metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer times a single operation against a *HistogramVec, mirroring
// the teacher's metrics.Timer helper.
type Timer struct {
	start time.Time
}

func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

func (t *Timer) ObserveSeconds(histogram *prometheus.HistogramVec, labels ...string) {
	histogram.WithLabelValues(labels...).Observe(time.Since(t.start).Seconds())
}

// Server runs the /metrics HTTP endpoint and can be shut down cleanly.
type Server struct {
	srv *http.Server
}

// NewServer builds a Server bound to addr (e.g. ":8090"), exposing
// /metrics via the Prometheus handler.
func NewServer(addr string) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())
	return &Server{srv: &http.Server{Addr: addr, Handler: mux}}
}

// Run starts serving until the context is canceled.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.srv.Shutdown(shutdownCtx)
	}
}
