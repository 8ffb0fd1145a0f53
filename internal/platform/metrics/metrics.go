// Package metrics owns the service's Prometheus registry. All recorder
// methods are safe on a nil *Metrics so components can run without one.
package metrics

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "dashboard"

type Metrics struct {
	registry *prometheus.Registry

	requestDuration *prometheus.HistogramVec
	activeRequests  prometheus.Gauge

	notificationsCreated *prometheus.CounterVec
	publishFailures      *prometheus.CounterVec
	websocketDrops       prometheus.Counter
	reorderItems         *prometheus.CounterVec
	orderResolutions     *prometheus.CounterVec
	mailFailures         *prometheus.CounterVec

	dbPoolActive prometheus.Gauge
	dbPoolIdle   prometheus.Gauge
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by method, route pattern and status.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
		activeRequests: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "http_active_requests",
			Help:      "Requests currently being served.",
		}),
		notificationsCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_created_total",
			Help:      "Notification rows written, by type.",
		}, []string{"type"}),
		publishFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "realtime_publish_failures_total",
			Help:      "Live publishes that failed or timed out, by event.",
		}, []string{"event"}),
		websocketDrops: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "websocket_dropped_messages_total",
			Help:      "Messages dropped because a client send buffer was full.",
		}),
		reorderItems: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reorder_items_total",
			Help:      "Stock items processed by bulk reorder, by outcome.",
		}, []string{"outcome"}),
		orderResolutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "order_resolutions_total",
			Help:      "Order confirm/reject attempts, by action and outcome.",
		}, []string{"action", "outcome"}),
		mailFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mail_failures_total",
			Help:      "Outbound mail that could not be handed off, by template.",
		}, []string{"template"}),
		dbPoolActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "db_pool_active_connections",
			Help:      "Acquired database connections.",
		}),
		dbPoolIdle: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "db_pool_idle_connections",
			Help:      "Idle database connections.",
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.requestDuration,
		m.activeRequests,
		m.notificationsCreated,
		m.publishFailures,
		m.websocketDrops,
		m.reorderItems,
		m.orderResolutions,
		m.mailFailures,
		m.dbPoolActive,
		m.dbPoolIdle,
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() echo.HandlerFunc {
	return echo.WrapHandler(promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
}

// Middleware records request latency labelled by the route pattern rather
// than the raw path, so IDs do not explode label cardinality.
func (m *Metrics) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if m == nil {
				return next(c)
			}
			m.activeRequests.Inc()
			defer m.activeRequests.Dec()

			start := time.Now()
			err := next(c)

			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			status := c.Response().Status
			if err != nil {
				var he *echo.HTTPError
				if errors.As(err, &he) {
					status = he.Code
				} else {
					status = http.StatusInternalServerError
				}
			}
			m.requestDuration.
				WithLabelValues(c.Request().Method, route, strconv.Itoa(status)).
				Observe(time.Since(start).Seconds())
			return err
		}
	}
}

func (m *Metrics) NotificationCreated(kind string) {
	if m == nil {
		return
	}
	m.notificationsCreated.WithLabelValues(kind).Inc()
}

func (m *Metrics) PublishFailed(event string) {
	if m == nil {
		return
	}
	m.publishFailures.WithLabelValues(event).Inc()
}

func (m *Metrics) WebSocketDropped() {
	if m == nil {
		return
	}
	m.websocketDrops.Inc()
}

func (m *Metrics) ReorderItem(outcome string) {
	if m == nil {
		return
	}
	m.reorderItems.WithLabelValues(outcome).Inc()
}

func (m *Metrics) OrderResolved(action, outcome string) {
	if m == nil {
		return
	}
	m.orderResolutions.WithLabelValues(action, outcome).Inc()
}

func (m *Metrics) MailFailed(template string) {
	if m == nil {
		return
	}
	m.mailFailures.WithLabelValues(template).Inc()
}

// SetPoolStats updates the database pool gauges.
func (m *Metrics) SetPoolStats(active, idle int32) {
	if m == nil {
		return
	}
	m.dbPoolActive.Set(float64(active))
	m.dbPoolIdle.Set(float64(idle))
}
