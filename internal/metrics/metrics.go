// Package metrics holds the process-wide Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ConnectedClients tracks live websocket connections joined to a room.
	ConnectedClients = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "graphstudio",
		Name:      "connected_clients",
		Help:      "Number of websocket connections currently joined to a project room.",
	})

	// BroadcastsSent counts mutation events fanned out to room members.
	BroadcastsSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "graphstudio",
		Name:      "broadcasts_sent_total",
		Help:      "Mutation events delivered to realtime room members.",
	}, []string{"event"})

	// DeltaQueries counts changes-since-watermark requests served.
	DeltaQueries = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "graphstudio",
		Name:      "delta_queries_total",
		Help:      "Delta sync queries served.",
	})
)
