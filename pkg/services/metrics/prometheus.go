package metrics

import (
	"net"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/pai-dev/pai-go/pkg/config"
)

// NewPrometheusService creates a new service for gathering prometheus
// metrics.
func NewPrometheusService(cfg config.BasicService, log *zap.Logger) *Service {
	return NewService("Prometheus", promhttp.Handler(), cfg, log)
}

func newListener(addr string) (net.Listener, error) {
	return net.Listen("tcp", addr)
}
