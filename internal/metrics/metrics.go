package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"route", "method", "status"},
	)

	// Outbound STK pushes
	StkPushTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stk_push_total",
			Help: "Total STK push submissions",
		},
		[]string{"result"}, // accepted|rejected|error
	)

	// Inbound callbacks
	CallbacksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mpesa_callbacks_total",
			Help: "Total M-Pesa callbacks received",
		},
		[]string{"outcome"}, // confirmed|rejected|unknown_handle|malformed
	)

	IntentsPending = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "payment_intents_pending",
			Help: "Intents currently awaiting a callback",
		},
	)
	IntentsExpired = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "payment_intents_expired_total",
			Help: "Intents swept by the reconciler without a callback",
		},
	)

	// Definitive outcome known but the order write failed; needs manual
	// reconciliation.
	ReconciliationWriteFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "reconciliation_write_failures_total",
			Help: "Order updates that failed after a payment outcome was known",
		},
	)

	// Worker queue
	WorkerQueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "worker_queue_depth",
			Help: "Current worker queue depth",
		},
	)
)

// handler for the /metrics endpoint
var Handler = promhttp.Handler

func Init() {
	prometheus.MustRegister(RequestsTotal)
	prometheus.MustRegister(StkPushTotal)
	prometheus.MustRegister(CallbacksTotal)
	prometheus.MustRegister(IntentsPending)
	prometheus.MustRegister(IntentsExpired)
	prometheus.MustRegister(ReconciliationWriteFailures)
	prometheus.MustRegister(WorkerQueueDepth)
}
