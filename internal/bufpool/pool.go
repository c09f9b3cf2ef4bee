// Package bufpool implements the packet-buffer mempool: a fixed-size,
// DMA-coherent pool of PktBufs handed to RX queues for refill and returned
// by TX queues once their completion is reaped.
//
// Buffers are tracked by pointer rather than through sync.Pool, because
// every PktBuf carries a physical address the hardware needs and a
// refcount that must reach zero before the slot is reusable; sync.Pool's
// type-erased Get/Put would lose both.
package bufpool

import (
	"sync"
	"sync/atomic"

	"github.com/mqnic-project/mqnicgo/internal/constants"
	"github.com/mqnic-project/mqnicgo/internal/dma"
)

// PktBuf is one DMA-backed packet buffer owned by a Pool.
type PktBuf struct {
	pool     *Pool
	Phys     uintptr
	Virt     []byte
	Cap      uint32
	Size     uint32
	refcount atomic.Int32
}

// Free decrements the buffer's refcount and returns it to its owning pool's
// free list once the count reaches zero. A buffer is born with refcount 1;
// a second owner (TX sharing a buffer briefly with its RX origin) must call
// Hold to take a separate reference rather than call Free twice for one hold.
func (b *PktBuf) Free() {
	if b.refcount.Add(-1) > 0 {
		return
	}
	b.Size = 0
	b.pool.release(b)
}

// Hold bumps the buffer's refcount, used when a buffer is briefly visible
// to more than one queue (TX enqueue of a buffer an RX queue still
// references until its own completion is reaped).
func (b *PktBuf) Hold() {
	b.refcount.Add(1)
}

// Pool is a LIFO free list over a single DMA-coherent region carved into
// fixed-size PktBufs.
type Pool struct {
	region    dma.Region
	entrySize uint32
	mu        sync.Mutex
	free      []*PktBuf
	all       []*PktBuf
}

// Allocate carves numEntries PktBufs of entrySize bytes out of one DMA
// allocation and pushes all of them onto the free list. numEntries is
// raised to constants.MinPoolEntries if the caller asks for fewer.
func Allocate(alloc dma.Allocator, numEntries int, entrySize uint32) (*Pool, error) {
	if numEntries < constants.MinPoolEntries {
		numEntries = constants.MinPoolEntries
	}

	region, err := alloc.Allocate(numEntries * int(entrySize))
	if err != nil {
		return nil, err
	}

	p := &Pool{
		region:    region,
		entrySize: entrySize,
		free:      make([]*PktBuf, 0, numEntries),
		all:       make([]*PktBuf, 0, numEntries),
	}

	base := uintptr(region.Virt)
	for i := 0; i < numEntries; i++ {
		off := uintptr(i) * uintptr(entrySize)
		buf := &PktBuf{
			pool: p,
			Phys: region.Phys + off,
			Virt: unsafeSlice(base+off, int(entrySize)),
			Cap:  entrySize,
		}
		buf.refcount.Store(0)
		p.free = append(p.free, buf)
		p.all = append(p.all, buf)
	}

	return p, nil
}

// Alloc pops one buffer off the free list. ok is false when the pool is
// exhausted; RxQueue.Refill treats this as a non-fatal condition and stops
// filling early, without returning an error.
func (p *Pool) Alloc() (buf *PktBuf, ok bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	n := len(p.free)
	if n == 0 {
		return nil, false
	}
	buf = p.free[n-1]
	p.free = p.free[:n-1]
	buf.refcount.Store(1)
	return buf, true
}

func (p *Pool) release(buf *PktBuf) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.free = append(p.free, buf)
}

// Len reports the number of buffers currently on the free list.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.free)
}

// Cap reports the total number of buffers this pool carved, live or free.
func (p *Pool) Cap() int {
	return len(p.all)
}

// EntrySize returns the fixed buffer size this pool was carved with.
func (p *Pool) EntrySize() uint32 {
	return p.entrySize
}

// Region exposes the backing DMA region so Close can free it.
func (p *Pool) Region() dma.Region {
	return p.region
}
