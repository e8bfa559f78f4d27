package observability

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Momena-akhtar/classfellow-sub000/plugin/ai/session"
)

// Metrics collects API and session metrics. It implements session.Observer.
type Metrics struct {
	mu sync.Mutex

	// Session counters
	chunksIngested    atomic.Int64
	autoTriggers      atomic.Int64
	manualTriggers    atomic.Int64
	summariesStored   atomic.Int64
	storeFailures     atomic.Int64
	storeFailuresByOp map[string]int64

	// Per-operation API metrics
	opMetrics map[string]*OperationMetrics

	// Recent request durations, oldest first
	durations    []time.Duration
	maxDurations int
}

// OperationMetrics represents metrics for one API operation.
type OperationMetrics struct {
	requestCount  atomic.Int64
	errorCount    atomic.Int64
	totalDuration atomic.Int64 // milliseconds
}

// NewMetrics creates a new metrics collector keeping the last maxDurations request durations.
func NewMetrics(maxDurations int) *Metrics {
	if maxDurations <= 0 {
		maxDurations = 1000
	}
	return &Metrics{
		storeFailuresByOp: make(map[string]int64),
		opMetrics:         make(map[string]*OperationMetrics),
		durations:         make([]time.Duration, 0, maxDurations),
		maxDurations:      maxDurations,
	}
}

// ChunkIngested implements session.Observer.
func (m *Metrics) ChunkIngested(string, int64) {
	m.chunksIngested.Add(1)
}

// Triggered implements session.Observer.
func (m *Metrics) Triggered(_ string, manual bool) {
	if manual {
		m.manualTriggers.Add(1)
		return
	}
	m.autoTriggers.Add(1)
}

// SummaryStored implements session.Observer.
func (m *Metrics) SummaryStored(string) {
	m.summariesStored.Add(1)
}

// StoreFailure implements session.Observer.
func (m *Metrics) StoreFailure(op string, _ error) {
	m.storeFailures.Add(1)
	m.mu.Lock()
	m.storeFailuresByOp[op]++
	m.mu.Unlock()
}

// RecordRequest records a completed API request.
func (m *Metrics) RecordRequest(operation string, duration time.Duration, failed bool) {
	om := m.getOperationMetrics(operation)
	om.requestCount.Add(1)
	om.totalDuration.Add(duration.Milliseconds())
	if failed {
		om.errorCount.Add(1)
	}

	m.mu.Lock()
	if len(m.durations) >= m.maxDurations {
		m.durations = m.durations[1:]
	}
	m.durations = append(m.durations, duration)
	m.mu.Unlock()
}

func (m *Metrics) getOperationMetrics(operation string) *OperationMetrics {
	m.mu.Lock()
	defer m.mu.Unlock()

	om, ok := m.opMetrics[operation]
	if !ok {
		om = &OperationMetrics{}
		m.opMetrics[operation] = om
	}
	return om
}

// Reset resets all metrics.
func (m *Metrics) Reset() {
	m.chunksIngested.Store(0)
	m.autoTriggers.Store(0)
	m.manualTriggers.Store(0)
	m.summariesStored.Store(0)
	m.storeFailures.Store(0)

	m.mu.Lock()
	m.storeFailuresByOp = make(map[string]int64)
	m.opMetrics = make(map[string]*OperationMetrics)
	m.durations = make([]time.Duration, 0, m.maxDurations)
	m.mu.Unlock()
}

// Snapshot returns a point-in-time copy of current metrics.
func (m *Metrics) Snapshot() *MetricsSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := &MetricsSnapshot{
		ChunksIngested:    m.chunksIngested.Load(),
		AutoTriggers:      m.autoTriggers.Load(),
		ManualTriggers:    m.manualTriggers.Load(),
		SummariesStored:   m.summariesStored.Load(),
		StoreFailures:     m.storeFailures.Load(),
		StoreFailuresByOp: make(map[string]int64, len(m.storeFailuresByOp)),
		Operations:        make(map[string]*OperationSnapshot, len(m.opMetrics)),
	}
	for op, n := range m.storeFailuresByOp {
		snap.StoreFailuresByOp[op] = n
	}
	for op, om := range m.opMetrics {
		count := om.requestCount.Load()
		total := om.totalDuration.Load()
		var avg int64
		if count > 0 {
			avg = total / count
		}
		snap.RequestTotal += count
		snap.RequestFailed += om.errorCount.Load()
		snap.Operations[op] = &OperationSnapshot{
			RequestCount:  count,
			ErrorCount:    om.errorCount.Load(),
			AvgDurationMs: avg,
		}
	}
	snap.P50LatencyMs, snap.P95LatencyMs = percentiles(m.durations)
	return snap
}

// MetricsSnapshot represents a point-in-time snapshot of metrics.
type MetricsSnapshot struct {
	RequestTotal      int64                         `json:"requestTotal"`
	RequestFailed     int64                         `json:"requestFailed"`
	P50LatencyMs      int64                         `json:"p50LatencyMs"`
	P95LatencyMs      int64                         `json:"p95LatencyMs"`
	ChunksIngested    int64                         `json:"chunksIngested"`
	AutoTriggers      int64                         `json:"autoTriggers"`
	ManualTriggers    int64                         `json:"manualTriggers"`
	SummariesStored   int64                         `json:"summariesStored"`
	StoreFailures     int64                         `json:"storeFailures"`
	StoreFailuresByOp map[string]int64              `json:"storeFailuresByOp"`
	Operations        map[string]*OperationSnapshot `json:"operations"`
}

// OperationSnapshot represents metrics for one API operation.
type OperationSnapshot struct {
	RequestCount  int64 `json:"requestCount"`
	ErrorCount    int64 `json:"errorCount"`
	AvgDurationMs int64 `json:"avgDurationMs"`
}

func percentiles(durations []time.Duration) (p50, p95 int64) {
	if len(durations) == 0 {
		return 0, 0
	}
	sorted := make([]time.Duration, len(durations))
	copy(sorted, durations)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	at := func(p float64) int64 {
		idx := int(float64(len(sorted)-1) * p)
		return sorted[idx].Milliseconds()
	}
	return at(0.50), at(0.95)
}

var _ session.Observer = (*Metrics)(nil)
