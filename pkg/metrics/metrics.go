package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors of the API and the worker.
type Metrics struct {
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Denials counts refused requests by denial kind.
	DenialsTotal *prometheus.CounterVec

	// Audit pipeline
	AuditRecordsTotal *prometheus.CounterVec
	AuditQueueDepth   prometheus.Gauge

	// Billing
	PlanCacheLookups   *prometheus.CounterVec
	DowngradesApplied  prometheus.Counter
	AuditArchivedTotal prometheus.Counter
}

// New creates the collectors and registers them on registry.
func New(registry prometheus.Registerer) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "church_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "church_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		DenialsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "church_denials_total",
				Help: "Total number of requests refused by the access pipeline",
			},
			[]string{"kind"},
		),
		AuditRecordsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "church_audit_records_total",
				Help: "Audit records by outcome (recorded, failed, skipped)",
			},
			[]string{"outcome"},
		),
		AuditQueueDepth: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "church_audit_queue_depth",
				Help: "Audit jobs waiting in the queue",
			},
		),
		PlanCacheLookups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "church_plan_cache_lookups_total",
				Help: "Plan registry lookups by result (hit, miss, error)",
			},
			[]string{"result"},
		),
		DowngradesApplied: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "church_downgrades_applied_total",
				Help: "Pending plan downgrades applied by the worker",
			},
		),
		AuditArchivedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "church_audit_archived_total",
				Help: "Audit log rows archived to object storage",
			},
		),
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.DenialsTotal,
		m.AuditRecordsTotal,
		m.AuditQueueDepth,
		m.PlanCacheLookups,
		m.DowngradesApplied,
		m.AuditArchivedTotal,
	)
	return m
}

// Nop returns collectors registered on a throwaway registry.
func Nop() *Metrics {
	return New(prometheus.NewRegistry())
}

// Middleware records request counts and latency by route template.
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.HTTPRequestsTotal.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		m.HTTPRequestDuration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}

// Handler serves the registry in the Prometheus text format.
func Handler(registry prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
