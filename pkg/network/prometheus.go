package network

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metric used in monitoring service.
var peersConnected = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Help:      "Number of connected peers",
		Name:      "peers_connected",
		Namespace: "pai",
	},
)

func updatePeersConnectedMetric(pConnected int) {
	peersConnected.Set(float64(pConnected))
}

func init() {
	prometheus.MustRegister(
		peersConnected,
	)
}
