package zonemap

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type sdkMetrics struct {
	operations *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	clicks     *prometheus.CounterVec
	openPages  prometheus.Gauge
}

func newSDKMetrics(reg prometheus.Registerer) (*sdkMetrics, error) {
	m := &sdkMetrics{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "zonemap",
			Subsystem: "sdk",
			Name:      "operations_total",
			Help:      "SDK operations by type and status.",
		}, []string{"operation", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "zonemap",
			Subsystem: "sdk",
			Name:      "operation_duration_seconds",
			Help:      "SDK operation duration in seconds.",
			Buckets:   []float64{.0001, .0005, .001, .005, .01, .05, .1, .5, 1, 5, 30},
		}, []string{"operation"}),
		clicks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "zonemap",
			Subsystem: "sdk",
			Name:      "clicks_total",
			Help:      "Map clicks by outcome.",
		}, []string{"outcome"}),
		openPages: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "zonemap",
			Subsystem: "sdk",
			Name:      "open_pages",
			Help:      "Pages opened and not yet closed.",
		}),
	}
	if err := registerOrReuse(reg, &m.operations); err != nil {
		return nil, err
	}
	if err := registerOrReuse(reg, &m.duration); err != nil {
		return nil, err
	}
	if err := registerOrReuse(reg, &m.clicks); err != nil {
		return nil, err
	}
	if err := registerOrReuse(reg, &m.openPages); err != nil {
		return nil, err
	}
	return m, nil
}

// registerOrReuse lets several clients share one registry.
func registerOrReuse[T prometheus.Collector](reg prometheus.Registerer, c *T) error {
	err := reg.Register(*c)
	if err == nil {
		return nil
	}
	var are prometheus.AlreadyRegisteredError
	if !errors.As(err, &are) {
		return fmt.Errorf("zonemap: register metric: %w", err)
	}
	existing, ok := are.ExistingCollector.(T)
	if !ok {
		return fmt.Errorf("zonemap: metric registered with type %T", are.ExistingCollector)
	}
	*c = existing
	return nil
}

// observer reports SDK calls to slog and prometheus. A nil observer is a no-op.
type observer struct {
	logger  *slog.Logger
	metrics *sdkMetrics
}

func newObserver(logger *slog.Logger, reg prometheus.Registerer) (*observer, error) {
	o := &observer{logger: logger}
	if reg != nil {
		m, err := newSDKMetrics(reg)
		if err != nil {
			return nil, err
		}
		o.metrics = m
	}
	return o, nil
}

func (o *observer) observe(op string, start time.Time, err error, attrs ...any) {
	if o == nil {
		return
	}
	dur := time.Since(start)

	if o.metrics != nil {
		status := "ok"
		if err != nil {
			status = "error"
		}
		o.metrics.operations.WithLabelValues(op, status).Inc()
		o.metrics.duration.WithLabelValues(op).Observe(dur.Seconds())
	}
	if o.logger == nil {
		return
	}
	args := append([]any{"op", op, "duration", dur}, attrs...)
	if err != nil {
		o.logger.Warn("zonemap operation failed", append(args, "error", err)...)
		return
	}
	o.logger.Debug("zonemap operation", args...)
}

func (o *observer) click(accepted bool) {
	if o == nil || o.metrics == nil {
		return
	}
	outcome := "rejected"
	if accepted {
		outcome = "accepted"
	}
	o.metrics.clicks.WithLabelValues(outcome).Inc()
}

func (o *observer) pageOpened() {
	if o != nil && o.metrics != nil {
		o.metrics.openPages.Inc()
	}
}

func (o *observer) pageClosed() {
	if o != nil && o.metrics != nil {
		o.metrics.openPages.Dec()
	}
}
