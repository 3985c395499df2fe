package store

import (
	"sync/atomic"
	"time"

	"github.com/heysubinoy/quotakv/pkg/kv"
	"github.com/prometheus/client_golang/prometheus"
)

// Operation names used for metrics.
const (
	OpList   = "list"
	OpGet    = "get"
	OpInsert = "insert"
	OpUpsert = "upsert"
	OpRemove = "remove"
)

// opCounter holds count, rejections and cumulative latency for one operation.
// Uses atomic operations for thread-safe updates without locks.
type opCounter struct {
	count     atomic.Uint64
	rejected  atomic.Uint64
	latencyNs atomic.Uint64
}

func (c *opCounter) record(elapsed time.Duration, err error) {
	c.count.Add(1)
	c.latencyNs.Add(uint64(elapsed.Nanoseconds()))
	if err != nil {
		c.rejected.Add(1)
	}
}

func (c *opCounter) snapshot() OpSnapshot {
	count := c.count.Load()
	snap := OpSnapshot{Count: count, Rejected: c.rejected.Load()}
	if count > 0 {
		snap.AvgLatency = time.Duration(c.latencyNs.Load() / count)
	}
	return snap
}

func (c *opCounter) reset() {
	c.count.Store(0)
	c.rejected.Store(0)
	c.latencyNs.Store(0)
}

// Metrics holds timing statistics for store operations.
type Metrics struct {
	List   opCounter
	Get    opCounter
	Insert opCounter
	Upsert opCounter
	Remove opCounter
}

// InstrumentedStore wraps any kv.Store implementation with timing metrics,
// both as an in-process snapshot and as Prometheus collectors.
type InstrumentedStore struct {
	store   kv.Store
	metrics *Metrics

	operations *prometheus.CounterVec
	duration   *prometheus.HistogramVec
}

// Compile-time check to ensure InstrumentedStore implements kv.Store.
var _ kv.Store = (*InstrumentedStore)(nil)

// NewInstrumentedStore wraps a store with instrumentation, registering its
// collectors with reg. A nil reg skips Prometheus registration.
func NewInstrumentedStore(store kv.Store, reg prometheus.Registerer) (*InstrumentedStore, error) {
	s := &InstrumentedStore{
		store:   store,
		metrics: &Metrics{},
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "quotakv",
			Subsystem: "store",
			Name:      "operations_total",
			Help:      "Total store operations by operation and outcome",
		}, []string{"op", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "quotakv",
			Subsystem: "store",
			Name:      "operation_duration_seconds",
			Help:      "Latency of store operations",
			Buckets:   prometheus.ExponentialBuckets(1e-7, 4, 10),
		}, []string{"op"}),
	}
	if reg == nil {
		return s, nil
	}
	collectors := []prometheus.Collector{
		s.operations,
		s.duration,
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "quotakv",
			Subsystem: "store",
			Name:      "entries",
			Help:      "Current number of stored entries",
		}, func() float64 { return float64(store.Len()) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "quotakv",
			Subsystem: "store",
			Name:      "capacity",
			Help:      "Maximum number of stored entries",
		}, func() float64 { return float64(store.Capacity()) }),
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *InstrumentedStore) observe(op string, c *opCounter, start time.Time, err error) {
	elapsed := time.Since(start)
	c.record(elapsed, err)

	outcome := "ok"
	if err != nil {
		outcome = kv.Kind(err)
	}
	s.operations.WithLabelValues(op, outcome).Inc()
	s.duration.WithLabelValues(op).Observe(elapsed.Seconds())
}

// List delegates to the wrapped store and records timing.
func (s *InstrumentedStore) List() []kv.Entry {
	start := time.Now()
	entries := s.store.List()
	s.observe(OpList, &s.metrics.List, start, nil)
	return entries
}

// Get delegates to the wrapped store and records timing.
func (s *InstrumentedStore) Get(key string) (kv.Entry, error) {
	start := time.Now()
	entry, err := s.store.Get(key)
	s.observe(OpGet, &s.metrics.Get, start, err)
	return entry, err
}

// Insert delegates to the wrapped store and records timing.
func (s *InstrumentedStore) Insert(key, value string) (kv.Entry, error) {
	start := time.Now()
	entry, err := s.store.Insert(key, value)
	s.observe(OpInsert, &s.metrics.Insert, start, err)
	return entry, err
}

// Upsert delegates to the wrapped store and records timing.
func (s *InstrumentedStore) Upsert(key, value string) (kv.Entry, error) {
	start := time.Now()
	entry, err := s.store.Upsert(key, value)
	s.observe(OpUpsert, &s.metrics.Upsert, start, err)
	return entry, err
}

// Remove delegates to the wrapped store and records timing.
func (s *InstrumentedStore) Remove(key string) error {
	start := time.Now()
	err := s.store.Remove(key)
	s.observe(OpRemove, &s.metrics.Remove, start, err)
	return err
}

// Len and Capacity pass through without being recorded.
func (s *InstrumentedStore) Len() int { return s.store.Len() }
func (s *InstrumentedStore) Capacity() int { return s.store.Capacity() }

// GetMetrics returns a snapshot of current metrics.
func (s *InstrumentedStore) GetMetrics() MetricsSnapshot {
	return MetricsSnapshot{
		Entries:  s.store.Len(),
		Capacity: s.store.Capacity(),
		Operations: map[string]OpSnapshot{
			OpList:   s.metrics.List.snapshot(),
			OpGet:    s.metrics.Get.snapshot(),
			OpInsert: s.metrics.Insert.snapshot(),
			OpUpsert: s.metrics.Upsert.snapshot(),
			OpRemove: s.metrics.Remove.snapshot(),
		},
	}
}

// ResetMetrics clears the snapshot counters. Prometheus counters are
// monotonic and are left untouched.
func (s *InstrumentedStore) ResetMetrics() {
	s.metrics.List.reset()
	s.metrics.Get.reset()
	s.metrics.Insert.reset()
	s.metrics.Upsert.reset()
	s.metrics.Remove.reset()
}

// OpSnapshot is a point-in-time view of a single operation's metrics.
type OpSnapshot struct {
	Count      uint64
	Rejected   uint64
	AvgLatency time.Duration
}

// MetricsSnapshot is a point-in-time view of metrics.
type MetricsSnapshot struct {
	Entries    int
	Capacity   int
	Operations map[string]OpSnapshot
}
