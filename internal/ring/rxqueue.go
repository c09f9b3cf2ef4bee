// Package ring implements the RX and TX descriptor/completion ring state
// machines: bring-up, refill, batched drain, and batched send. Each queue
// is owned by exactly one OS thread; nothing here takes a lock on the ring
// state itself, only on the mempool free list it borrows from.
package ring

import (
	"github.com/mqnic-project/mqnicgo/internal/bufpool"
	"github.com/mqnic-project/mqnicgo/internal/constants"
	"github.com/mqnic-project/mqnicgo/internal/dma"
	"github.com/mqnic-project/mqnicgo/internal/regio"
)

// Register offsets within a queue's register block, relative to the block
// base each queue is handed at construction.
const (
	regBaseAddrLo      = 0x00
	regBaseAddrHi      = 0x04
	regActiveLogSize   = 0x08
	regCplQueueIndex   = 0x0c
	regHeadPtr         = 0x10
	regTailPtr         = 0x14
	activeBit          = 1 << 31
	cpuMsgOffsetInCplQ = 0x18
)

// RxQueueConfig supplies everything NewRxQueue needs: the queue's register
// block, DMA allocator, ring size, and slot index (used for the CPL
// binding). The dispatcher-init message NewRxQueue writes is the bare
// opcode word; it does not carry the slot index.
type RxQueueConfig struct {
	QueueBar   *regio.Bar
	CplBar     *regio.Bar
	Alloc      dma.Allocator
	Size       int
	QueueIndex int
	BypassMode bool
}

// RxQueue is one hardware RX descriptor ring paired with its completion
// ring and backing mempool.
type RxQueue struct {
	queueBar *regio.Bar
	cplBar   *regio.Bar

	descRegion dma.Region
	cplRegion  dma.Region

	size      int
	sizeMask  int
	hwPtrMask uint32

	rxqHead      int
	rxqTail      int
	rxqCleanTail int

	cplHead      int
	cplTail      int
	cplCleanTail int

	virtAddrs []*bufpool.PktBuf

	pool                  *bufpool.Pool
	accumulatedCQUpdates  uint32
	bypassMode            bool
}

// NewRxQueue brings up one RX queue: allocates rings, programs the CPL and
// RXQ register blocks, writes the dispatcher-init mailbox message,
// performs the initial refill, and reads back the hardware RXQ tail pointer.
func NewRxQueue(cfg RxQueueConfig) (*RxQueue, error) {
	if cfg.Size <= 0 || cfg.Size&(cfg.Size-1) != 0 {
		return nil, errInvalidSize("RxQueue", cfg.Size)
	}

	descRegion, err := cfg.Alloc.Allocate(cfg.Size * 16)
	if err != nil {
		return nil, err
	}
	cplRegion, err := cfg.Alloc.Allocate(cfg.Size * 32)
	if err != nil {
		return nil, err
	}

	pool, err := bufpool.Allocate(cfg.Alloc, nextPow2(2*cfg.Size), constants.PktBufSize)
	if err != nil {
		return nil, err
	}

	q := &RxQueue{
		queueBar:   cfg.QueueBar,
		cplBar:     cfg.CplBar,
		descRegion: descRegion,
		cplRegion:  cplRegion,
		size:       cfg.Size,
		sizeMask:   cfg.Size - 1,
		hwPtrMask:  constants.HWPtrMask,
		virtAddrs:  make([]*bufpool.PktBuf, cfg.Size),
		pool:       pool,
		bypassMode: cfg.BypassMode,
	}

	q.cplBar.Set32(regActiveLogSize, 0)
	q.cplBar.Set32(regBaseAddrLo, uint32(cplRegion.Phys))
	q.cplBar.Set32(regBaseAddrHi, uint32(cplRegion.Phys>>32))
	q.cplBar.Set32(regHeadPtr, 0)
	q.cplBar.Set32(regTailPtr, 0)
	q.cplBar.Set32(regActiveLogSize, activeBit|uint32(log2(cfg.Size)))

	q.queueBar.Set32(regActiveLogSize, 0)
	q.queueBar.Set32(regBaseAddrLo, uint32(descRegion.Phys))
	q.queueBar.Set32(regBaseAddrHi, uint32(descRegion.Phys>>32))
	q.queueBar.Set32(regCplQueueIndex, uint32(cfg.QueueIndex)+constants.RxKernelQueueNumber)
	q.queueBar.Set32(regHeadPtr, 0)
	q.queueBar.Set32(regTailPtr, 0)
	q.queueBar.Set32(regActiveLogSize, activeBit|uint32(log2(cfg.Size)))

	q.cplBar.Set32(cpuMsgOffsetInCplQ, uint32(constants.OpcodeDispatchInit))

	q.Refill()
	q.rxqTail = int(q.queueBar.Get32(regTailPtr) & q.hwPtrMask)

	return q, nil
}

// Refill tops up the RX descriptor ring from the mempool once at least
// RefillThreshold slots are free. It writes the head pointer register at
// most once per call, and not at all if no slot was filled.
func (q *RxQueue) Refill() {
	free := q.size - (q.rxqHead - q.rxqCleanTail)
	if free < constants.RefillThreshold {
		return
	}

	filled := 0
	for free > 0 {
		buf, ok := q.pool.Alloc()
		if !ok {
			break
		}
		slot := q.rxqHead & q.sizeMask
		d := dma.DescriptorAt(q.descRegion, slot)
		d.Addr = uint64(buf.Phys) + constants.PayloadOffset
		d.Len = q.pool.EntrySize()
		q.virtAddrs[slot] = buf
		q.rxqHead++
		free--
		filled++
	}

	if filled == 0 {
		return
	}

	regio.Sfence()
	q.queueBar.Set32(regHeadPtr, uint32(q.rxqHead)&q.hwPtrMask)
}

// Hint is a decoded out-of-band scale notification carried in a
// completion's RxHash field.
type Hint struct {
	AppID   uint8
	Content uint16
}

// Drain harvests up to len(out) received buffers into out, optionally
// decoding scale hints into hints (ignored when wantHints is false). It
// refills the ring first. Returns the number of buffers harvested and the
// number of hints decoded.
func (q *RxQueue) Drain(out []*bufpool.PktBuf, wantHints bool, hints []Hint) (harvested, hintCount int) {
	q.Refill()

	for harvested < len(out) {
		slot := q.cplTail & q.sizeMask
		cpl := dma.CompletionAt(q.cplRegion, slot)

		if q.bypassMode {
			if cpl.Len == 0 {
				break
			}
		} else {
			if (uint32(q.cplHead)-uint32(q.cplTail))&q.hwPtrMask == 0 {
				q.cplHead = int(q.cplBar.Get32(regHeadPtr))
				if (uint32(q.cplHead)-uint32(q.cplTail))&q.hwPtrMask == 0 {
					break
				}
			}
		}

		if wantHints && cpl.RxHash != 0 && hintCount < len(hints) {
			hints[hintCount] = Hint{
				AppID:   uint8((cpl.RxHash >> 4) & 0xff),
				Content: uint16((cpl.RxHash >> 16) & 0xffff),
			}
			hintCount++
		}

		rxqSlot := int(cpl.Index) & q.sizeMask
		buf := q.virtAddrs[rxqSlot]
		if buf != nil {
			if cpl.Len < buf.Cap {
				buf.Size = cpl.Len
			} else {
				buf.Size = buf.Cap
			}
			q.virtAddrs[rxqSlot] = nil
			out[harvested] = buf
			harvested++
		}

		cpl.Len = 0
		q.cplTail++
		q.accumulatedCQUpdates++
	}

	if q.accumulatedCQUpdates > constants.RxCQTailUpdateBatch {
		q.cplBar.Set32(regTailPtr, uint32(q.cplTail)&q.hwPtrMask)
		q.accumulatedCQUpdates = 0
	}

	if q.bypassMode {
		q.rxqTail += harvested
	} else {
		raw := q.queueBar.Get32(regTailPtr)
		delta := (raw - (uint32(q.rxqTail) & q.hwPtrMask)) & q.hwPtrMask
		q.rxqTail += int(delta)
	}

	for q.rxqCleanTail < q.rxqTail && q.virtAddrs[q.rxqCleanTail&q.sizeMask] == nil {
		q.rxqCleanTail++
	}

	return harvested, hintCount
}

// Pool exposes the backing mempool, used by appctl and device bring-up.
func (q *RxQueue) Pool() *bufpool.Pool {
	return q.pool
}

// Mailbox exposes the completion-queue register block's CPU-message slot
// for the appctl package to write into.
func (q *RxQueue) Mailbox() *regio.Bar {
	return q.cplBar
}

func nextPow2(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}

func log2(n int) int {
	l := 0
	for n > 1 {
		n >>= 1
		l++
	}
	return l
}
