package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SwapsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gateway_swaps_total",
		Help: "The total number of swap executions processed",
	}, []string{"status", "side"})

	LatencyBucket = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "gateway_latency_bucket",
		Help:    "Request latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"endpoint"})

	RiskRejects = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gateway_risk_rejects_total",
		Help: "Total risk engine rejections",
	}, []string{"reason"})

	LockWaitSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "gateway_lock_wait_seconds",
		Help:    "Time spent waiting to acquire a wallet lock",
		Buckets: prometheus.DefBuckets,
	}, []string{"scope"})

	NonceResetsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gateway_nonce_resets_total",
		Help: "Total nonce cache stale resets",
	}, []string{"scope"})

	ConfirmationSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "gateway_confirmation_seconds",
		Help:    "Time spent polling for transaction confirmation",
		Buckets: prometheus.DefBuckets,
	}, []string{"outcome"})

	LeaseExpiriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gateway_lease_expiries_total",
		Help: "Total externally-leased locks reclaimed by the reaper",
	}, []string{"scope"})
)
