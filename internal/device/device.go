// Package device implements the ten-step bring-up sequence: CSR discovery,
// per-queue init, hardware scheduler activation, and RSS configuration.
package device

import (
	"time"
	"unsafe"

	"github.com/mqnic-project/mqnicgo/internal/appctl"
	"github.com/mqnic-project/mqnicgo/internal/constants"
	"github.com/mqnic-project/mqnicgo/internal/dma"
	"github.com/mqnic-project/mqnicgo/internal/errs"
	"github.com/mqnic-project/mqnicgo/internal/ring"
	"github.com/mqnic-project/mqnicgo/internal/regio"
)

// Top-level CSR offsets, read once at bring-up to locate the per-block
// register windows.
const (
	regFWID          = 0x00
	regFWVer         = 0x04
	regBoardID       = 0x08
	regBoardVer      = 0x0c
	regIfCSROffset   = 0x10
	classIDOffset    = 0x14
	wantClassID      = 2
	ifRXQueueOffset  = 0x00
	ifRXCplQOffset   = 0x04
	ifTXQueueOffset  = 0x08
	ifTXCplQOffset   = 0x0c
	ifPortOffset     = 0x10
	ifEventQCount    = 0x14
	ifRXQueueCount   = 0x18
	ifTXQueueCount   = 0x1c
	portSchedOffset  = 0x00
	portSchedEnable  = 0x04
	portUserOffset   = 0x20
	portUserRSSMask  = 0x24
	portAppRSSPolicy = 0x28
)

const (
	queueBlockStride = 0x1000
	portRegUserOffsetFieldIP   = 0x2c
	portRegUserOffsetFieldRank = 0x30
)

// Config configures Init: the mapped BAR0 base, a DMA allocator, the
// number of RX and TX queues to bring up, and the bypass-mode flag applied
// to every queue.
type Config struct {
	Bar0       unsafe.Pointer
	Bar0Size   uintptr
	Alloc      dma.Allocator
	RxQueues   int
	TxQueues   int
	BypassMode bool
	QueueSize  int
}

// Device is a fully initialized NIC interface: its RX/TX queues and the
// port-level AppCtl handle.
type Device struct {
	bar      *regio.Bar
	ifCSR    *regio.Bar
	port     *appctl.PortControl
	RxQueues []*ring.RxQueue
	TxQueues []*ring.TxQueue
	alloc    dma.Allocator

	FirmwareID      uint32
	FirmwareVersion uint32
	BoardID         uint32
	BoardVersion    uint32
}

// Init performs the full bring-up sequence described for this NIC class.
func Init(cfg Config) (*Device, error) {
	if cfg.RxQueues <= 0 || cfg.RxQueues > constants.MaxQueues ||
		cfg.TxQueues <= 0 || cfg.TxQueues > constants.MaxQueues {
		return nil, errs.New("device.Init", errs.CodeConfiguration, "queue count out of range")
	}
	queueSize := cfg.QueueSize
	if queueSize == 0 {
		queueSize = constants.DefaultQueueEntries
	}

	bar := regio.NewBar(cfg.Bar0, cfg.Bar0Size)

	if classID := bar.Get32(classIDOffset); classID != wantClassID {
		return nil, errs.New("device.Init", errs.CodeConfiguration, "unexpected PCI class ID for this interface block")
	}

	fwID := bar.Get32(regFWID)
	fwVer := bar.Get32(regFWVer)
	boardID := bar.Get32(regBoardID)
	boardVer := bar.Get32(regBoardVer)

	ifOffset := uintptr(bar.Get32(regIfCSROffset))
	ifCSR := bar.Sub(ifOffset, queueBlockStride)

	rxQueueOffset := uintptr(ifCSR.Get32(ifRXQueueOffset))
	rxCplOffset := uintptr(ifCSR.Get32(ifRXCplQOffset))
	txQueueOffset := uintptr(ifCSR.Get32(ifTXQueueOffset))
	txCplOffset := uintptr(ifCSR.Get32(ifTXCplQOffset))
	portOffset := uintptr(ifCSR.Get32(ifPortOffset))

	hwRxQueueCount := int(ifCSR.Get32(ifRXQueueCount))
	hwTxQueueCount := int(ifCSR.Get32(ifTXQueueCount))
	if hwRxQueueCount > 0 && cfg.RxQueues > hwRxQueueCount {
		return nil, errs.New("device.Init", errs.CodeConfiguration, "requested RX queue count exceeds what this interface block reports")
	}
	if hwTxQueueCount > 0 && cfg.TxQueues > hwTxQueueCount {
		return nil, errs.New("device.Init", errs.CodeConfiguration, "requested TX queue count exceeds what this interface block reports")
	}

	d := &Device{
		bar:             bar,
		ifCSR:           ifCSR,
		alloc:           cfg.Alloc,
		FirmwareID:      fwID,
		FirmwareVersion: fwVer,
		BoardID:         boardID,
		BoardVersion:    boardVer,
	}
	d.port = appctl.NewPortControl(ifCSR.Sub(portOffset, queueBlockStride))

	for i := 0; i < cfg.TxQueues; i++ {
		qBar := ifCSR.Sub(txQueueOffset+uintptr(i)*queueBlockStride, queueBlockStride)
		cBar := ifCSR.Sub(txCplOffset+uintptr(i)*queueBlockStride, queueBlockStride)
		q, err := ring.NewTxQueue(ring.TxQueueConfig{
			QueueBar: qBar, CplBar: cBar, Alloc: cfg.Alloc,
			Size: queueSize, QueueIndex: i, BypassMode: cfg.BypassMode,
		})
		if err != nil {
			return nil, errs.Wrap("device.Init.initTX", err)
		}
		d.TxQueues = append(d.TxQueues, q)
	}

	for i := 0; i < cfg.RxQueues; i++ {
		qBar := ifCSR.Sub(rxQueueOffset+uintptr(i)*queueBlockStride, queueBlockStride)
		cBar := ifCSR.Sub(rxCplOffset+uintptr(i)*queueBlockStride, queueBlockStride)
		q, err := ring.NewRxQueue(ring.RxQueueConfig{
			QueueBar: qBar, CplBar: cBar, Alloc: cfg.Alloc,
			Size: queueSize, QueueIndex: i, BypassMode: cfg.BypassMode,
		})
		if err != nil {
			return nil, errs.Wrap("device.Init.initRX", err)
		}
		d.RxQueues = append(d.RxQueues, q)
	}

	port := ifCSR.Sub(portOffset, queueBlockStride)
	port.Set32(portSchedOffset, 0xFFFFFFFF)
	for i := 0; i < cfg.RxQueues; i++ {
		port.Set32(portSchedEnable+uintptr(i)*4, 3)
	}

	port.Set32(portUserOffset, constants.RxKernelQueueNumber)
	port.Set32(portUserRSSMask, uint32(cfg.RxQueues-1))
	port.Set32(portRegUserOffsetFieldIP, 0xC0A8E902)
	port.Set32(portRegUserOffsetFieldRank, constants.PerCoreRankBound*5)
	port.Set32(portAppRSSPolicy, 1)

	time.Sleep(constants.InitSettleDelay)

	return d, nil
}

// Port exposes the port-wide AppCtl handle for ConfigAppMAT/SetMonitor/
// ResetMonitor calls.
func (d *Device) Port() *appctl.PortControl {
	return d.port
}

// Close tears down every RX queue's mempool DMA region. Queue descriptor
// and completion ring regions are not freed by Close.
func (d *Device) Close() error {
	var firstErr error
	for _, q := range d.RxQueues {
		if err := d.alloc.Free(q.Pool().Region()); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
