package matchstore

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	storeWritesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "turumi_store_writes_total",
			Help: "Match store writes by operation and result",
		},
		[]string{"op", "result"},
	)

	wsConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "turumi_store_ws_connections_active",
			Help: "Currently connected websocket clients",
		},
	)

	wsMessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "turumi_store_ws_messages_total",
			Help: "Websocket frames delivered by type",
		},
		[]string{"type"},
	)

	loginsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "turumi_store_logins_total",
			Help: "Login attempts by result",
		},
		[]string{"result"},
	)
)

func recordWrite(op string, err error) {
	result := "ok"
	switch {
	case err == nil:
	case isClientError(err):
		result = "rejected"
	default:
		result = "error"
	}
	storeWritesTotal.WithLabelValues(op, result).Inc()
}
