package observability

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/kursadbilgin/rowhook/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics stores Prometheus collectors used by the API and delivery runs.
type Metrics struct {
	registry *prometheus.Registry

	httpRequestsTotal      *prometheus.CounterVec
	httpRequestDuration    *prometheus.HistogramVec
	attemptsTotal          *prometheus.CounterVec
	attemptDuration        *prometheus.HistogramVec
	runsTotal              *prometheus.CounterVec
	runsInflight           prometheus.Gauge
	permanentFailuresTotal prometheus.Counter
}

func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "rowhook",
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests processed by method, path, and status.",
			},
			[]string{"method", "path", "status"},
		),
		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "rowhook",
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds by method and path.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		attemptsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "rowhook",
				Name:      "delivery_attempts_total",
				Help:      "Total number of record delivery attempts by pass and outcome.",
			},
			[]string{"pass", "outcome"},
		),
		attemptDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "rowhook",
				Name:      "delivery_attempt_duration_seconds",
				Help:      "Webhook request duration in seconds grouped by pass.",
				Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
			},
			[]string{"pass"},
		),
		runsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "rowhook",
				Name:      "runs_total",
				Help:      "Total number of finished runs by terminal status.",
			},
			[]string{"status"},
		),
		runsInflight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "rowhook",
				Name:      "runs_inflight",
				Help:      "Current number of runs in progress.",
			},
		),
		permanentFailuresTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "rowhook",
				Name:      "permanent_failures_total",
				Help:      "Total number of records that failed both the dispatch pass and the retry sweep.",
			},
		),
	}

	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequestsTotal,
		m.httpRequestDuration,
		m.attemptsTotal,
		m.attemptDuration,
		m.runsTotal,
		m.runsInflight,
		m.permanentFailuresTotal,
	)

	return m
}

func (m *Metrics) Handler() http.Handler {
	if m == nil || m.registry == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) HTTPMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		path := routePath(c)
		// Avoid self-scrape noise for request counters.
		if path == "/metrics" {
			return err
		}

		m.recordHTTPRequest(c.Method(), path, statusFromResult(c, err), time.Since(start))
		return err
	}
}

func (m *Metrics) ObserveAttempt(pass domain.Pass, outcome domain.Outcome, duration time.Duration) {
	if m == nil {
		return
	}

	passLabel := normalizeLabel(pass.String())
	m.attemptsTotal.WithLabelValues(passLabel, outcomeLabel(outcome)).Inc()

	seconds := duration.Seconds()
	if seconds < 0 {
		seconds = 0
	}
	m.attemptDuration.WithLabelValues(passLabel).Observe(seconds)
}

func (m *Metrics) IncRunsInFlight() {
	if m == nil {
		return
	}
	m.runsInflight.Inc()
}

func (m *Metrics) DecRunsInFlight() {
	if m == nil {
		return
	}
	m.runsInflight.Dec()
}

func (m *Metrics) ObserveRunFinished(summary domain.RunSummary) {
	if m == nil {
		return
	}
	m.runsTotal.WithLabelValues(normalizeLabel(summary.Status().String())).Inc()
	m.permanentFailuresTotal.Add(float64(len(summary.PermanentlyFailed)))
}

func (m *Metrics) recordHTTPRequest(method string, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}

	methodLabel := strings.ToUpper(strings.TrimSpace(method))
	if methodLabel == "" {
		methodLabel = "UNKNOWN"
	}
	pathLabel := strings.TrimSpace(path)
	if pathLabel == "" {
		pathLabel = "unmatched"
	}

	m.httpRequestsTotal.WithLabelValues(methodLabel, pathLabel, strconv.Itoa(status)).Inc()
	m.httpRequestDuration.WithLabelValues(methodLabel, pathLabel).Observe(duration.Seconds())
}

func routePath(c *fiber.Ctx) string {
	if c == nil {
		return "unmatched"
	}

	if route := c.Route(); route != nil {
		if path := strings.TrimSpace(route.Path); path != "" {
			return path
		}
	}
	return "unmatched"
}

func statusFromResult(c *fiber.Ctx, err error) int {
	if err != nil {
		if fiberErr, ok := err.(*fiber.Error); ok {
			return fiberErr.Code
		}
		return fiber.StatusInternalServerError
	}

	if c == nil {
		return fiber.StatusOK
	}

	status := c.Response().StatusCode()
	if status == 0 {
		return fiber.StatusOK
	}
	return status
}

func outcomeLabel(outcome domain.Outcome) string {
	if outcome.Delivered {
		return "delivered"
	}
	return normalizeLabel(outcome.Kind.String())
}

func normalizeLabel(value string) string {
	normalized := strings.ToLower(strings.TrimSpace(value))
	if normalized == "" {
		return "unknown"
	}
	return normalized
}
