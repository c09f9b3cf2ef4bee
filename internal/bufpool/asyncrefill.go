package bufpool

import (
	"fmt"
	"unsafe"

	"github.com/pawelgaczynski/giouring"
)

// AsyncRefiller batches madvise(MADV_DONTNEED) over freshly-freed buffer
// ranges so the kernel can reclaim backing pages between bursts without the
// driver issuing one syscall per buffer. This is an optional, off-by-default
// path; the hot RX/TX loops never touch it directly.
type AsyncRefiller struct {
	ring *giouring.Ring
}

// NewAsyncRefiller creates a small io_uring instance dedicated to batched
// madvise submissions.
func NewAsyncRefiller(entries uint32) (*AsyncRefiller, error) {
	ring, err := giouring.CreateRing(entries)
	if err != nil {
		return nil, fmt.Errorf("bufpool: create async refill ring: %w", err)
	}
	return &AsyncRefiller{ring: ring}, nil
}

// Close tears down the refill ring.
func (a *AsyncRefiller) Close() {
	if a.ring != nil {
		a.ring.QueueExit()
	}
}

// Advise submits a batch of MADV_DONTNEED requests over the given buffers'
// backing pages and waits for all of them to complete.
func (a *AsyncRefiller) Advise(bufs []*PktBuf) error {
	if len(bufs) == 0 {
		return nil
	}
	for _, b := range bufs {
		sqe := a.ring.GetSQE()
		if sqe == nil {
			if _, err := a.ring.Submit(); err != nil {
				return fmt.Errorf("bufpool: submit async refill batch: %w", err)
			}
			sqe = a.ring.GetSQE()
			if sqe == nil {
				return fmt.Errorf("bufpool: no SQE available for async refill")
			}
		}
		sqe.PrepareMadvise(uintptr(unsafe.Pointer(&b.Virt[0])), uint32(len(b.Virt)), giouring.MadviseDontNeed)
	}

	submitted, err := a.ring.Submit()
	if err != nil {
		return fmt.Errorf("bufpool: submit async refill batch: %w", err)
	}

	for i := uint(0); i < uint(submitted); i++ {
		cqe, err := a.ring.WaitCQE()
		if err != nil {
			return fmt.Errorf("bufpool: wait async refill completion: %w", err)
		}
		a.ring.CQESeen(cqe)
	}
	return nil
}

// AsyncRefill runs up to n buffers from the top of the free list through
// the advise path. The buffers stay on the free list throughout; buffers
// already handed out (for example, posted to an RX ring) are not touched.
func (p *Pool) AsyncRefill(ring *AsyncRefiller, n int) error {
	p.mu.Lock()
	if n > len(p.free) {
		n = len(p.free)
	}
	batch := make([]*PktBuf, n)
	copy(batch, p.free[len(p.free)-n:])
	p.mu.Unlock()

	return ring.Advise(batch)
}
