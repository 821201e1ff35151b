// Package metrics exposes the Prometheus collectors of the service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Devoluciones counts allocation protocol runs by operation
	// (registrar | revertir) and result.
	Devoluciones = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cimbrasys",
		Name:      "devoluciones_total",
		Help:      "Register/revert return operations by result.",
	}, []string{"operacion", "resultado"})

	ContratosCreados = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cimbrasys",
		Name:      "contratos_creados_total",
		Help:      "Contract creation attempts by result.",
	}, []string{"resultado"})

	TxReintentos = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "cimbrasys",
		Name:      "tx_reintentos_total",
		Help:      "Transactions replayed after a serialization failure.",
	})

	HTTPDuracion = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "cimbrasys",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency by route and status.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route", "status"})

	JobsProcesados = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cimbrasys",
		Name:      "jobs_procesados_total",
		Help:      "Background jobs by queue and result.",
	}, []string{"queue", "resultado"})
)
