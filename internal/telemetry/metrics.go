package telemetry

import (
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/meallensai/meallens-go"

// Metrics holds the client's metric instruments. Instruments created before
// Init installs a real provider are no-ops, so callers never need to check.
type Metrics struct {
	RequestsTotal      metric.Int64Counter
	RequestErrorsTotal metric.Int64Counter
	RequestDuration    metric.Float64Histogram

	CacheReadsTotal metric.Int64Counter

	PreloadRunsTotal metric.Int64Counter
}

var (
	once    sync.Once
	metrics *Metrics
)

// Get returns the singleton Metrics instance.
func Get() *Metrics {
	once.Do(func() {
		metrics = initMetrics()
	})
	return metrics
}

func initMetrics() *Metrics {
	meter := otel.GetMeterProvider().Meter(meterName)

	m := &Metrics{}
	m.RequestsTotal, _ = meter.Int64Counter("meallens.requests.total",
		metric.WithDescription("Backend requests issued"))
	m.RequestErrorsTotal, _ = meter.Int64Counter("meallens.requests.errors.total",
		metric.WithDescription("Backend requests that failed, by error kind"))
	m.RequestDuration, _ = meter.Float64Histogram("meallens.requests.duration",
		metric.WithDescription("Backend request duration"),
		metric.WithUnit("s"))
	m.CacheReadsTotal, _ = meter.Int64Counter("meallens.cache.reads.total",
		metric.WithDescription("Cache read outcomes by resource"))
	m.PreloadRunsTotal, _ = meter.Int64Counter("meallens.preload.runs.total",
		metric.WithDescription("History preload executions by outcome"))
	return m
}
