package report

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// MetricsServer exposes the prometheus registry over HTTP.
type MetricsServer struct {
	srv *http.Server
	log *logrus.Entry
}

// NewMetricsServer builds the /metrics endpoint for reg on addr.
func NewMetricsServer(addr string, reg *prometheus.Registry, log *logrus.Entry) *MetricsServer {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	return &MetricsServer{
		srv: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
		log: log,
	}
}

// Start serves in the background until Shutdown.
func (m *MetricsServer) Start() {
	go func() {
		if err := m.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			if m.log != nil {
				m.log.WithError(err).Warn("metrics server stopped")
			}
		}
	}()
}

// Shutdown stops the server gracefully.
func (m *MetricsServer) Shutdown(ctx context.Context) error {
	return m.srv.Shutdown(ctx)
}
