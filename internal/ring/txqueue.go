package ring

import (
	"github.com/mqnic-project/mqnicgo/internal/bufpool"
	"github.com/mqnic-project/mqnicgo/internal/constants"
	"github.com/mqnic-project/mqnicgo/internal/dma"
	"github.com/mqnic-project/mqnicgo/internal/errs"
	"github.com/mqnic-project/mqnicgo/internal/regio"
)

// TxQueueConfig supplies everything NewTxQueue needs.
type TxQueueConfig struct {
	QueueBar   *regio.Bar
	CplBar     *regio.Bar
	Alloc      dma.Allocator
	Size       int
	QueueIndex int
	BypassMode bool
}

// TxQueue is one hardware TX descriptor ring paired with its completion
// ring. Unlike RxQueue it owns no mempool of its own; buffers come from
// whichever RX queue's pool originated them, or from a caller-supplied
// buffer for purely-TX traffic.
type TxQueue struct {
	queueBar *regio.Bar
	cplBar   *regio.Bar

	descRegion dma.Region
	cplRegion  dma.Region

	size      int
	sizeMask  int
	hwPtrMask uint32
	fullSize  int

	txqHead      int
	txqTail      int
	txqCleanTail int

	cplHead int
	cplTail int

	virtAddrs  []*bufpool.PktBuf
	bypassMode bool
}

// NewTxQueue brings up one TX queue: allocates rings and programs the CPL
// and TXQ register blocks. There is no mailbox init for TX queues; AppCtl
// only addresses RX queues.
func NewTxQueue(cfg TxQueueConfig) (*TxQueue, error) {
	if cfg.Size <= 0 || cfg.Size&(cfg.Size-1) != 0 {
		return nil, errInvalidSize("TxQueue", cfg.Size)
	}

	descRegion, err := cfg.Alloc.Allocate(cfg.Size * 16)
	if err != nil {
		return nil, err
	}
	cplRegion, err := cfg.Alloc.Allocate(cfg.Size * 32)
	if err != nil {
		return nil, err
	}

	q := &TxQueue{
		queueBar:   cfg.QueueBar,
		cplBar:     cfg.CplBar,
		descRegion: descRegion,
		cplRegion:  cplRegion,
		size:       cfg.Size,
		sizeMask:   cfg.Size - 1,
		hwPtrMask:  constants.HWPtrMask,
		fullSize:   cfg.Size / 2,
		virtAddrs:  make([]*bufpool.PktBuf, cfg.Size),
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
	q.queueBar.Set32(regCplQueueIndex, uint32(cfg.QueueIndex)+constants.TxKernelQueueNumber)
	q.queueBar.Set32(regHeadPtr, 0)
	q.queueBar.Set32(regTailPtr, 0)
	q.queueBar.Set32(regActiveLogSize, activeBit|uint32(log2(cfg.Size)))

	return q, nil
}

// reap walks completed TX descriptors, freeing their buffers, up to
// TxReapBudget entries. It publishes the completion tail unconditionally,
// unlike RxQueue.Drain's batched publish, because TX completions gate
// back-pressure and must be visible to the next Send call promptly.
func (q *TxQueue) reap() error {
	reaped := 0
	for reaped < constants.TxReapBudget {
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

		txqSlot := int(cpl.Index) & q.sizeMask
		buf := q.virtAddrs[txqSlot]
		if buf == nil {
			if q.bypassMode {
				return errs.NewQueue("TxQueue.reap", 0, errs.CodeInvariantViolation,
					"completion referenced an empty descriptor slot")
			}
		} else {
			q.virtAddrs[txqSlot] = nil
			buf.Free()
		}

		cpl.Len = 0
		q.cplTail++
		reaped++
	}

	q.cplBar.Set32(regTailPtr, uint32(q.cplTail)&q.hwPtrMask)

	if q.bypassMode {
		q.txqTail += reaped
	} else {
		raw := q.queueBar.Get32(regTailPtr)
		delta := (raw - (uint32(q.txqTail) & q.hwPtrMask)) & q.hwPtrMask
		q.txqTail += int(delta)
	}

	for q.txqCleanTail < q.txqTail && q.virtAddrs[q.txqCleanTail&q.sizeMask] == nil {
		q.txqCleanTail++
	}

	return nil
}

// Send reaps outstanding completions, then enqueues as many of bufs as fit
// before the ring reaches its back-pressure threshold. It never blocks;
// the returned count may be less than len(bufs). Each enqueued buffer has
// its refcount bumped, since a buffer handed to TX may still be held by
// the RX queue it originated from until the caller releases its own
// reference; the TX ring drops its hold once the completion is reaped.
func (q *TxQueue) Send(bufs []*bufpool.PktBuf) (sent int, err error) {
	if err := q.reap(); err != nil {
		return 0, err
	}

	for sent < len(bufs) {
		if q.txqHead-q.txqCleanTail >= q.fullSize {
			break
		}

		buf := bufs[sent]
		slot := q.txqHead & q.sizeMask
		d := dma.DescriptorAt(q.descRegion, slot)
		d.TxCsumCmd = 0
		d.Len = buf.Size
		d.Addr = uint64(buf.Phys) + constants.PayloadOffset

		buf.Hold()
		q.virtAddrs[slot] = buf
		q.txqHead++
		sent++
	}

	if sent > 0 {
		regio.Sfence()
		q.queueBar.Set32(regHeadPtr, uint32(q.txqHead)&q.hwPtrMask)
	}

	return sent, nil
}
