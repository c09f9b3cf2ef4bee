// Package regio provides volatile 32-bit access to memory-mapped BAR0
// registers. Every hardware register on this NIC is 32 bits wide; there are
// no narrower or wider accessors.
package regio

import (
	"sync/atomic"
	"unsafe"
)

// Get32 performs a volatile 32-bit read at base+offset.
func Get32(base unsafe.Pointer, offset uintptr) uint32 {
	p := (*uint32)(unsafe.Add(base, offset))
	return atomic.LoadUint32(p)
}

// Set32 performs a volatile 32-bit write at base+offset. atomic.StoreUint32
// already carries release semantics on every architecture Go supports, so
// no separate barrier call is required around ordinary register writes;
// Sfence/Mfence exist for the descriptor-then-pointer publish ordering
// within a ring, not for individual register accesses.
func Set32(base unsafe.Pointer, offset uintptr, value uint32) {
	p := (*uint32)(unsafe.Add(base, offset))
	atomic.StoreUint32(p, value)
}

// Bar wraps a mapped BAR0 region and a byte offset within it, used to scope
// a block of registers (a queue's register block, a port's register block)
// without repeating base-pointer arithmetic at every call site.
type Bar struct {
	base unsafe.Pointer
	size uintptr
}

// NewBar wraps an already-mapped region. Mapping the region itself (PCI
// resource file or VFIO) is an external collaborator's responsibility.
func NewBar(base unsafe.Pointer, size uintptr) *Bar {
	return &Bar{base: base, size: size}
}

// Sub returns a Bar scoped to a sub-region, letting each queue or port own
// a handle to just its register block.
func (b *Bar) Sub(offset uintptr, size uintptr) *Bar {
	return &Bar{base: unsafe.Add(b.base, offset), size: size}
}

func (b *Bar) Get32(offset uintptr) uint32 {
	return Get32(b.base, offset)
}

func (b *Bar) Set32(offset uintptr, value uint32) {
	Set32(b.base, offset, value)
}

// Size reports the byte span this Bar was scoped to.
func (b *Bar) Size() uintptr {
	return b.size
}

// Base exposes the raw pointer for callers (DMA ring setup) that need to
// compute addresses outside the Get32/Set32 contract.
func (b *Bar) Base() unsafe.Pointer {
	return b.base
}
