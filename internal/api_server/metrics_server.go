package apiserver

import (
	"context"
	"errors"
	"net"
	"net/http"

	"github.com/aide-monitoring/workflow-tracker/internal/store"
	"github.com/aide-monitoring/workflow-tracker/pkg/metrics"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

type MetricServer struct {
	bindAddress string
	httpServer  *http.Server
	listener    net.Listener
}

// NewMetricServer serves /metrics. The store collector, which counts workflows and pending
// jobs on every scrape, lives in a registry owned by this server so that several servers can
// coexist in one process.
func NewMetricServer(bindAddress string, listener net.Listener, s store.Store) *MetricServer {
	registry := prometheus.NewRegistry()
	registry.MustRegister(metrics.NewWorkflowStatsCollector(s))

	router := chi.NewRouter()

	prometheusMetricHandler := metrics.NewPrometheusMetricsHandler(registry)
	router.Handle("/metrics", prometheusMetricHandler.Handler())

	return &MetricServer{
		bindAddress: bindAddress,
		listener:    listener,
		httpServer: &http.Server{
			Addr:    bindAddress,
			Handler: router,
		},
	}
}

func (m *MetricServer) Handler() http.Handler {
	return m.httpServer.Handler
}

func (m *MetricServer) Run(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		ctxTimeout, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
		defer cancel()

		m.httpServer.SetKeepAlivesEnabled(false)
		_ = m.httpServer.Shutdown(ctxTimeout)
		zap.S().Named("metrics_server").Info("metrics server terminated")
	}()

	zap.S().Named("metrics_server").Infof("serving metrics: %s", m.bindAddress)
	if err := m.httpServer.Serve(m.listener); err != nil && !errors.Is(err, net.ErrClosed) && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
