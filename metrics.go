package mqnicgo

import (
	"sync/atomic"
	"time"
)

// LatencyBuckets defines the upper bound, in nanoseconds, of each latency
// histogram bucket used by Metrics. Buckets are not cumulative: an
// observation is counted only in the first bucket whose bound it does not
// exceed, and anything above the last bound is counted in the last bucket.
var LatencyBuckets = [8]int64{
	1_000, 10_000, 100_000, 1_000_000,
	10_000_000, 100_000_000, 1_000_000_000, 10_000_000_000,
}

// Metrics accumulates driver-wide counters using only atomics, so the hot
// RX/TX poll loops never take a lock to record an observation.
type Metrics struct {
	RxPackets  atomic.Uint64
	TxPackets  atomic.Uint64
	RxBytes    atomic.Uint64
	TxBytes    atomic.Uint64
	RxHints    atomic.Uint64
	MempoolExhaustions atomic.Uint64
	TxBackpressureEvents atomic.Uint64

	drainLatency [8]atomic.Uint64

	StartTime atomic.Int64
	StopTime  atomic.Int64
}

// NewMetrics creates a Metrics instance with StartTime set to now.
func NewMetrics(now time.Time) *Metrics {
	m := &Metrics{}
	m.StartTime.Store(now.UnixNano())
	return m
}

// RecordRxBatch records one RxBatch/RxBatchHints call's results.
func (m *Metrics) RecordRxBatch(packets int, bytes uint64, hints int, elapsed time.Duration) {
	m.RxPackets.Add(uint64(packets))
	m.RxBytes.Add(bytes)
	m.RxHints.Add(uint64(hints))
	m.recordLatency(elapsed)
}

// RecordTxBatch records one TxBatch call's results.
func (m *Metrics) RecordTxBatch(packets int, bytes uint64, requested int) {
	m.TxPackets.Add(uint64(packets))
	m.TxBytes.Add(bytes)
	if packets < requested {
		m.TxBackpressureEvents.Add(1)
	}
}

// RecordMempoolExhaustion increments the exhaustion counter. Nothing in this
// module calls it: RxQueue.Refill stops silently when the mempool is empty,
// so MempoolExhaustions only counts what a caller records here.
func (m *Metrics) RecordMempoolExhaustion() {
	m.MempoolExhaustions.Add(1)
}

func (m *Metrics) recordLatency(d time.Duration) {
	ns := d.Nanoseconds()
	for i, bound := range LatencyBuckets {
		if ns <= bound {
			m.drainLatency[i].Add(1)
			return
		}
	}
	m.drainLatency[len(m.drainLatency)-1].Add(1)
}

// Stop records the StopTime.
func (m *Metrics) Stop(now time.Time) {
	m.StopTime.Store(now.UnixNano())
}

// MetricsSnapshot is a point-in-time, plain-value copy of Metrics for
// reporting (CLI printouts, test assertions).
type MetricsSnapshot struct {
	RxPackets            uint64
	TxPackets            uint64
	RxBytes              uint64
	TxBytes              uint64
	RxHints              uint64
	MempoolExhaustions   uint64
	TxBackpressureEvents uint64
	UptimeSeconds        float64
}

// Snapshot computes a MetricsSnapshot at the current instant.
func (m *Metrics) Snapshot(now time.Time) MetricsSnapshot {
	start := m.StartTime.Load()
	uptime := time.Duration(now.UnixNano() - start).Seconds()
	return MetricsSnapshot{
		RxPackets:            m.RxPackets.Load(),
		TxPackets:            m.TxPackets.Load(),
		RxBytes:              m.RxBytes.Load(),
		TxBytes:              m.TxBytes.Load(),
		RxHints:              m.RxHints.Load(),
		MempoolExhaustions:   m.MempoolExhaustions.Load(),
		TxBackpressureEvents: m.TxBackpressureEvents.Load(),
		UptimeSeconds:        uptime,
	}
}

// Observer receives per-batch notifications, for callers that want to
// sample every call rather than poll Metrics.Snapshot periodically.
type Observer interface {
	ObserveRxBatch(packets int, bytes uint64, hints int, elapsed time.Duration)
	ObserveTxBatch(packets int, bytes uint64, requested int)
}

// NoOpObserver discards every observation.
type NoOpObserver struct{}

func (NoOpObserver) ObserveRxBatch(int, uint64, int, time.Duration) {}
func (NoOpObserver) ObserveTxBatch(int, uint64, int)                {}

// MetricsObserver forwards every observation into a Metrics instance.
type MetricsObserver struct {
	Metrics *Metrics
}

func (o MetricsObserver) ObserveRxBatch(packets int, bytes uint64, hints int, elapsed time.Duration) {
	o.Metrics.RecordRxBatch(packets, bytes, hints, elapsed)
}

func (o MetricsObserver) ObserveTxBatch(packets int, bytes uint64, requested int) {
	o.Metrics.RecordTxBatch(packets, bytes, requested)
}

// fanoutObserver forwards every observation to both primary and extra.
// Device uses it to keep its own Metrics current while still delivering
// observations to a caller-supplied Observer.
type fanoutObserver struct {
	primary MetricsObserver
	extra   Observer
}

func (f fanoutObserver) ObserveRxBatch(packets int, bytes uint64, hints int, elapsed time.Duration) {
	f.primary.ObserveRxBatch(packets, bytes, hints, elapsed)
	f.extra.ObserveRxBatch(packets, bytes, hints, elapsed)
}

func (f fanoutObserver) ObserveTxBatch(packets int, bytes uint64, requested int) {
	f.primary.ObserveTxBatch(packets, bytes, requested)
	f.extra.ObserveTxBatch(packets, bytes, requested)
}

var (
	_ Observer = NoOpObserver{}
	_ Observer = MetricsObserver{}
	_ Observer = fanoutObserver{}
)
