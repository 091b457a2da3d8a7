package models

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	worldLabel = "world"
)

var (
	sessionCount = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "session_count",
		Help: "The number of sessions.",
	}, []string{worldLabel})

	sessionCountTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "session_count_total",
		Help: "The total number of sessions.",
	}, []string{worldLabel})

	entityCount = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "entity_count",
		Help: "The number of entities stored in session grids.",
	}, []string{worldLabel})

	entityMoveTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "entity_move_total",
		Help: "The total number of entity moves.",
	}, []string{worldLabel})

	gridQueryDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "grid_query_duration_seconds",
		Help:    "The duration of session grid region queries.",
		Buckets: prometheus.ExponentialBuckets(0.00001, 4, 8),
	}, []string{worldLabel})
)

func instrumentIncreaseSessionGauge(world string) {
	sessionCount.
		With(prometheus.Labels{worldLabel: world}).
		Inc()
}

func instrumentDecreaseSessionGauge(world string) {
	sessionCount.
		With(prometheus.Labels{worldLabel: world}).
		Dec()
}

func instrumentCountSession(world string) {
	sessionCountTotal.
		With(prometheus.Labels{worldLabel: world}).
		Inc()
}

func instrumentEntityGauge(world string, delta float64) {
	entityCount.
		With(prometheus.Labels{worldLabel: world}).
		Add(delta)
}

func instrumentCountEntityMove(world string) {
	entityMoveTotal.
		With(prometheus.Labels{worldLabel: world}).
		Inc()
}

func instrumentGridQuery(world string, seconds float64) {
	gridQueryDuration.
		With(prometheus.Labels{worldLabel: world}).
		Observe(seconds)
}
