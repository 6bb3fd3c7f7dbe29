package main

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	requestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "roundclip_requests_total",
			Help: "Video requests by final outcome.",
		},
		[]string{"outcome"},
	)

	stageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "roundclip_stage_duration_seconds",
			Help:    "Time spent in each pipeline stage.",
			Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"stage"},
	)

	registeredUsers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "roundclip_registered_users",
			Help: "Users currently known to the registry.",
		},
	)

	membershipLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "roundclip_membership_lookups_total",
			Help: "Membership lookups by result: member, not_member, error, rejected.",
		},
		[]string{"result"},
	)

	circuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "roundclip_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open).",
		},
		[]string{"name"},
	)
)
