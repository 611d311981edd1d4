package server

import (
	"github.com/prometheus/client_golang/prometheus"
)

var paiGoVersion = prometheus.NewGaugeVec(
	prometheus.GaugeOpts{
		Help:      "pai-go version",
		Name:      "version",
		Namespace: "pai",
	},
	[]string{"version"})

func setPaiGoVersion(nodeVer string) {
	paiGoVersion.WithLabelValues(nodeVer).Add(1)
}

func init() {
	prometheus.MustRegister(
		paiGoVersion,
	)
}
