// Package mqnicgo is a userspace, kernel-bypass driver for a multi-queue
// programmable NIC. Application threads poll hardware descriptor rings
// directly through memory-mapped BAR0 registers and exchange packets
// through DMA-backed buffers; see internal/ring for the queue engine and
// internal/appctl for the per-application dispatch/feedback protocol.
package mqnicgo

import (
	"time"
	"unsafe"

	"github.com/mqnic-project/mqnicgo/internal/appctl"
	"github.com/mqnic-project/mqnicgo/internal/bufpool"
	"github.com/mqnic-project/mqnicgo/internal/device"
	"github.com/mqnic-project/mqnicgo/internal/dma"
	"github.com/mqnic-project/mqnicgo/internal/errs"
	"github.com/mqnic-project/mqnicgo/internal/hints"
	"github.com/mqnic-project/mqnicgo/internal/logging"
)

// Options carries optional collaborators for Init: a logger and an
// Observer. A nil Logger means logging.Default(); a nil Observer means
// observations go only to the Device's built-in Metrics.
type Options struct {
	Logger   *logging.Logger
	Observer Observer
}

// Device is a fully initialized NIC interface.
type Device struct {
	inner     *device.Device
	params    Params
	metrics   *Metrics
	observer  Observer
	logger    *logging.Logger
	mailboxes []*appctl.Mailbox
	refiller  *bufpool.AsyncRefiller
	hintRings []*hints.Ring
}

// Init brings up a NIC interface over an already-mapped BAR0 region. PCI
// enumeration, BAR mapping, and IOMMU setup are the caller's
// responsibility; Init only consumes the mapped base pointer and a DMA
// allocator.
func Init(bar0 unsafe.Pointer, bar0Size uintptr, alloc dma.Allocator, params Params, opts *Options) (*Device, error) {
	if opts == nil {
		opts = &Options{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.Default()
	}

	inner, err := device.Init(device.Config{
		Bar0:       bar0,
		Bar0Size:   bar0Size,
		Alloc:      alloc,
		RxQueues:   params.RxQueues,
		TxQueues:   params.TxQueues,
		BypassMode: params.BypassMode,
		QueueSize:  params.QueueEntries,
	})
	if err != nil {
		return nil, errs.Wrap("Init", err)
	}

	metrics := NewMetrics(time.Now())
	observer := Observer(MetricsObserver{Metrics: metrics})
	if opts.Observer != nil {
		observer = fanoutObserver{primary: MetricsObserver{Metrics: metrics}, extra: opts.Observer}
	}

	d := &Device{
		inner:    inner,
		params:   params,
		metrics:  metrics,
		observer: observer,
		logger:   logger,
	}

	for _, q := range inner.RxQueues {
		d.mailboxes = append(d.mailboxes, appctl.NewMailbox(q.Mailbox()))
		d.hintRings = append(d.hintRings, hints.NewRing())
	}

	if params.EnableAsyncRefill {
		refiller, err := bufpool.NewAsyncRefiller(64)
		if err != nil {
			logger.Warn("async refill disabled", "err", err)
		} else {
			d.refiller = refiller
			for _, q := range inner.RxQueues {
				_ = q.Pool().AsyncRefill(refiller, q.Pool().Len())
			}
		}
	}

	logger.Info("device initialized", "rxQueues", params.RxQueues, "txQueues", params.TxQueues, "bypass", params.BypassMode)

	return d, nil
}

// RxBatch harvests up to len(out) received buffers from queue qid.
func (d *Device) RxBatch(qid int, out []*bufpool.PktBuf) int {
	start := time.Now()
	n, _ := d.inner.RxQueues[qid].Drain(out, false, nil)
	d.observer.ObserveRxBatch(n, sumSize(out[:n]), 0, time.Since(start))
	return n
}

// RxBatchHints harvests received buffers and decodes any out-of-band scale
// hints carried in their completions' RxHash fields. Decoded hints are
// staged onto queue qid's hint ring for PopHints, in addition to being
// written into hintsOut for callers that want them inline immediately.
func (d *Device) RxBatchHints(qid int, out []*bufpool.PktBuf, hintsOut []hints.Hint) (n, hintCount int) {
	start := time.Now()
	n, hintCount = d.inner.RxQueues[qid].Drain(out, true, hintsOut)
	d.hintRings[qid].Push(hintsOut[:hintCount])
	d.observer.ObserveRxBatch(n, sumSize(out[:n]), hintCount, time.Since(start))
	return n, hintCount
}

// PopHints drains up to len(out) hints staged for queue qid by prior
// RxBatchHints calls, for a consumer goroutine that acts on scale hints
// at a different cadence than the RX poll loop.
func (d *Device) PopHints(qid int, out []hints.Hint) int {
	return d.hintRings[qid].Pop(out)
}

// TxBatch enqueues as many of bufs as fit on queue qid before hitting the
// ring's back-pressure threshold.
func (d *Device) TxBatch(qid int, bufs []*bufpool.PktBuf) int {
	n, err := d.inner.TxQueues[qid].Send(bufs)
	if err != nil {
		d.logger.Error("TxBatch failed", "queue", qid, "err", err)
	}
	d.observer.ObserveTxBatch(n, sumSize(bufs[:n]), len(bufs))
	return n
}

// RegisterApp registers appID for dispatch on RX queue qid.
func (d *Device) RegisterApp(qid int, appID uint16, priority uint8) {
	d.mailboxes[qid].RegisterApp(appID, priority)
}

// DeregisterApp stops dispatch of appID on RX queue qid.
func (d *Device) DeregisterApp(qid int, appID uint16) {
	d.mailboxes[qid].DeregisterApp(appID)
}

// RxFeedback reports application-level progress for appID on RX queue qid.
func (d *Device) RxFeedback(qid int, appID uint16, updateCount uint16) {
	d.mailboxes[qid].Feedback(appID, updateCount)
}

// ResetMonitorForApp clears the per-app congestion monitor on RX queue qid.
func (d *Device) ResetMonitorForApp(qid int, appID uint16) {
	d.mailboxes[qid].ResetMonitorForApp(appID)
}

// RearmMonitor re-arms the scale-up monitor for appID on RX queue qid.
func (d *Device) RearmMonitor(qid int, appID uint16) {
	d.mailboxes[qid].RearmMonitor(appID)
}

// RearmScaleDownMonitor re-arms the scale-down monitor for appID on RX
// queue qid.
func (d *Device) RearmScaleDownMonitor(qid int, appID uint16) {
	d.mailboxes[qid].RearmScaleDownMonitor(appID)
}

// ConfigAppMAT configures the port-wide app-to-queue dispatch mapping.
func (d *Device) ConfigAppMAT(appID uint16, portNum uint16, priority uint8) {
	d.inner.Port().ConfigAppMAT(appID, portNum, priority)
}

// SetMonitor configures the port-wide congestion/scale-down monitor.
func (d *Device) SetMonitor(appID uint16, congEpochLog, scaleDownEpochLog, scaleDownThresh uint8) {
	d.inner.Port().SetMonitor(appID, congEpochLog, scaleDownEpochLog, scaleDownThresh)
}

// ResetMonitor clears all port-wide monitor state.
func (d *Device) ResetMonitor() {
	d.inner.Port().ResetMonitor()
}

// Metrics returns the live Metrics instance.
func (d *Device) Metrics() *Metrics {
	return d.metrics
}

// MetricsSnapshot returns a point-in-time snapshot of Metrics.
func (d *Device) MetricsSnapshot() MetricsSnapshot {
	return d.metrics.Snapshot(time.Now())
}

// Close frees every RX queue's mempool DMA region, closes the async
// refiller if one is running, and stops Metrics.
func (d *Device) Close() error {
	d.metrics.Stop(time.Now())
	if d.refiller != nil {
		d.refiller.Close()
	}
	return d.inner.Close()
}

func sumSize(bufs []*bufpool.PktBuf) uint64 {
	var total uint64
	for _, b := range bufs {
		total += uint64(b.Size)
	}
	return total
}
