package hints

import (
	"sync"

	"gvisor.dev/gvisor/pkg/buffer"
)

// hintWireSize is the encoded size of one staged hint: one byte for AppID,
// two bytes for Content.
const hintWireSize = 3

// Ring stages decoded hints for a consumer goroutine that runs at a
// different cadence than the RX poll loop. It is backed by gvisor's
// buffer.Buffer, the same growable byte-chain type the netstack-adjacent
// examples in this codebase use for framed data, so pushing a batch of
// hints costs one append per hint rather than growing a fixed-capacity
// slice by hand.
type Ring struct {
	mu  sync.Mutex
	buf buffer.Buffer
}

// NewRing creates an empty hint staging ring.
func NewRing() *Ring {
	return &Ring{}
}

// Push appends a batch of hints to the ring.
func (r *Ring) Push(batch []Hint) {
	if len(batch) == 0 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, h := range batch {
		enc := [hintWireSize]byte{
			h.AppID,
			byte(h.Content),
			byte(h.Content >> 8),
		}
		r.buf.Append(buffer.NewViewWithData(enc[:]))
	}
}

// Pop drains up to len(out) staged hints, returning how many were written.
// It flattens the backing buffer once per call rather than once per hint.
func (r *Ring) Pop(out []Hint) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.buf.Size() < hintWireSize {
		return 0
	}

	flat := r.buf.Flatten()
	n := 0
	for n < len(out) && len(flat) >= hintWireSize {
		out[n] = Hint{
			AppID:   flat[0],
			Content: uint16(flat[1]) | uint16(flat[2])<<8,
		}
		flat = flat[hintWireSize:]
		n++
	}
	r.buf.TrimFront(n * hintWireSize)
	return n
}

// Len reports the number of fully staged hints.
func (r *Ring) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return int(r.buf.Size()) / hintWireSize
}
