package observability

import (
	"sync/atomic"
	"time"

	"github.com/boddenberg/finanzo-go/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"
)

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	// Registry is the Prometheus registry that owns these metrics.
	// Exposed so the /metrics endpoint can use it.
	Registry *prometheus.Registry

	requestDuration  *prometheus.HistogramVec
	mirrorWrites     *prometheus.CounterVec
	outboxPending    prometheus.Gauge
	outboxReplayed   prometheus.Counter
	localWriteErrors *prometheus.CounterVec
	initTotal        *prometheus.CounterVec
	initDuration     prometheus.Histogram
	cacheHits        *prometheus.CounterVec
	cacheMisses      *prometheus.CounterVec
	logins           *prometheus.CounterVec

	lastInitSource atomic.Value // string
}

// NewMetrics creates a dedicated Prometheus registry and registers all
// application metrics in it. Using a private registry avoids "duplicate
// collector" panics when NewMetrics is called more than once (e.g. in tests).
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	m := &Metrics{
		Registry: reg,

		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "finanzo_request_duration_seconds",
				Help:    "Duration of requests by operation.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		mirrorWrites: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "finanzo_mirror_writes_total",
				Help: "Remote mirror writes by entity, operation and outcome.",
			},
			[]string{"entity", "op", "status"},
		),
		outboxPending: factory.NewGauge(prometheus.GaugeOpts{
			Name: "finanzo_outbox_pending",
			Help: "Mirror writes waiting for replay.",
		}),
		outboxReplayed: factory.NewCounter(prometheus.CounterOpts{
			Name: "finanzo_outbox_replayed_total",
			Help: "Outbox entries successfully replayed.",
		}),
		localWriteErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "finanzo_local_write_errors_total",
				Help: "Failed writes to the local cache.",
			},
			[]string{"key"},
		),
		initTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "finanzo_init_total",
				Help: "Initializations by data source.",
			},
			[]string{"source"},
		),
		initDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "finanzo_init_duration_seconds",
			Help:    "Time to load the session state at startup.",
			Buckets: prometheus.DefBuckets,
		}),
		cacheHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "finanzo_cache_hits_total",
				Help: "Total cache hits.",
			},
			[]string{"cache"},
		),
		cacheMisses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "finanzo_cache_misses_total",
				Help: "Total cache misses.",
			},
			[]string{"cache"},
		),
		logins: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "finanzo_logins_total",
				Help: "Login attempts by credential source and outcome.",
			},
			[]string{"method", "status"},
		),
	}
	m.lastInitSource.Store("")
	return m
}

// RecordRequestDuration records the duration of an operation.
func (m *Metrics) RecordRequestDuration(operation string, d time.Duration) {
	m.requestDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// RecordMirrorWrite counts one mirror attempt; status is ok, failed,
// rejected or skipped.
func (m *Metrics) RecordMirrorWrite(entity, op, status string) {
	m.mirrorWrites.WithLabelValues(entity, op, status).Inc()
}

func (m *Metrics) SetOutboxPending(n int) {
	m.outboxPending.Set(float64(n))
}

func (m *Metrics) AddOutboxReplayed(n int) {
	m.outboxReplayed.Add(float64(n))
}

func (m *Metrics) IncrLocalWriteError(key string) {
	m.localWriteErrors.WithLabelValues(key).Inc()
}

// RecordInit records where the startup state came from (remote or local).
func (m *Metrics) RecordInit(source string, d time.Duration) {
	m.initTotal.WithLabelValues(source).Inc()
	m.initDuration.Observe(d.Seconds())
	m.lastInitSource.Store(source)
}

// IncrCacheHit increments the cache hit counter.
func (m *Metrics) IncrCacheHit(cache string) {
	m.cacheHits.WithLabelValues(cache).Inc()
}

// IncrCacheMiss increments the cache miss counter.
func (m *Metrics) IncrCacheMiss(cache string) {
	m.cacheMisses.WithLabelValues(cache).Inc()
}

func (m *Metrics) IncrLogin(method, status string) {
	m.logins.WithLabelValues(method, status).Inc()
}

// GetSyncSnapshot returns the synchronizer counters for GET /v1/metrics/sync.
func (m *Metrics) GetSyncSnapshot() *domain.SyncMetrics {
	hits := getCounterValue(m.cacheHits, "session")
	misses := getCounterValue(m.cacheMisses, "session")
	hitRate := float64(0)
	if hits+misses > 0 {
		hitRate = hits / (hits + misses)
	}

	return &domain.SyncMetrics{
		MirrorSucceeded: int64(sumCounter(m.mirrorWrites, "status", "ok")),
		MirrorFailed:    int64(sumCounter(m.mirrorWrites, "status", "failed")),
		OutboxReplayed:  int64(readMetric(m.outboxReplayed)),
		OutboxPending:   int64(readMetric(m.outboxPending)),
		LocalWriteFails: int64(sumCounter(m.localWriteErrors, "", "")),
		CacheHitRate:    hitRate,
		InitSource:      m.lastInitSource.Load().(string),
	}
}

// getCounterValue extracts the current float64 value from a CounterVec for a given label.
func getCounterValue(cv *prometheus.CounterVec, label string) float64 {
	return readMetric(cv.WithLabelValues(label))
}

// sumCounter adds up every child of cv whose label name has the given
// value. An empty name sums all children.
func sumCounter(cv *prometheus.CounterVec, name, value string) float64 {
	ch := make(chan prometheus.Metric, 64)
	go func() {
		cv.Collect(ch)
		close(ch)
	}()

	var total float64
	for metric := range ch {
		pb := &dto.Metric{}
		if err := metric.Write(pb); err != nil || pb.Counter == nil {
			continue
		}
		if name == "" || hasLabel(pb, name, value) {
			total += pb.Counter.GetValue()
		}
	}
	return total
}

func hasLabel(pb *dto.Metric, name, value string) bool {
	for _, lp := range pb.GetLabel() {
		if lp.GetName() == name && lp.GetValue() == value {
			return true
		}
	}
	return false
}

func readMetric(c prometheus.Metric) float64 {
	pb := &dto.Metric{}
	if err := c.Write(pb); err != nil {
		return 0
	}
	switch {
	case pb.Counter != nil:
		return pb.Counter.GetValue()
	case pb.Gauge != nil:
		return pb.Gauge.GetValue()
	}
	return 0
}
