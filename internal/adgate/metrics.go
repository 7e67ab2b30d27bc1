// SPDX-License-Identifier: MIT

package adgate

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	gateEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cinegate",
		Subsystem: "gate",
		Name:      "events_total",
		Help:      "Gate transitions by ad kind and outcome",
	}, []string{"kind", "outcome"})

	gateActiveAds = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "cinegate",
		Subsystem: "gate",
		Name:      "active_ads",
		Help:      "Number of ads currently on screen",
	})

	gateSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "cinegate",
		Subsystem: "gate",
		Name:      "sessions",
		Help:      "Number of live gate sessions",
	})

	gateSessionsSwept = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "cinegate",
		Subsystem: "gate",
		Name:      "sessions_swept_total",
		Help:      "Gate sessions removed after idling past their TTL",
	})
)

type metricsObserver struct{}

func (metricsObserver) GateEvent(kind Kind, outcome Outcome) {
	gateEventsTotal.WithLabelValues(string(kind), string(outcome)).Inc()
	switch outcome {
	case OutcomeShown:
		gateActiveAds.Inc()
	case OutcomeCompleted, OutcomeCancelled, OutcomeAbandoned:
		gateActiveAds.Dec()
	}
}
