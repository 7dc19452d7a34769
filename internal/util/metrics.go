package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	PaymentsInitiatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "payments_initiated_total",
		Help: "Total number of purchase intents that reserved stock",
	})

	PaymentsInitiationFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "payments_initiation_failed_total",
		Help: "Total number of failed purchase initiations",
	}, []string{"reason"})

	TransactionsFinalizedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "transactions_finalized_total",
		Help: "Total number of transactions reaching a terminal status",
	}, []string{"status"})

	StockRestoredTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "stock_restored_total",
		Help: "Total quantity credited back on cancellations and rejections",
	})

	StockReserveLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "stock_reserve_latency_seconds",
		Help:    "Latency of stock reservation inside purchase initiation",
		Buckets: prometheus.DefBuckets,
	})

	GatewayRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "gateway_request_duration_seconds",
		Help:    "Latency of outbound payment gateway calls",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})

	GatewayErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gateway_errors_total",
		Help: "Total number of gateway call failures",
	}, []string{"operation", "kind"})

	ExpirySweepCanceledTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "expiry_sweep_canceled_total",
		Help: "Total number of transactions canceled by the expiry sweep",
	})

	StatusSweepUpdatedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "status_sweep_updated_total",
		Help: "Total number of transactions finalized by the status sweep",
	}, []string{"status"})

	SweepTickDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "sweep_tick_duration_seconds",
		Help:    "Duration of one reconciliation sweep tick",
		Buckets: prometheus.DefBuckets,
	}, []string{"sweep"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
)
