package mqnicgo

import (
	"sync"
	"unsafe"

	"github.com/mqnic-project/mqnicgo/internal/dma"
)

// MockAllocator is a dma.Allocator backed by plain heap memory with
// synthetic, monotonically increasing physical addresses. It never frees
// anything for real; Free only records the call. Intended for tests that
// exercise Init, the ring engines, or the mempool without real hardware.
type MockAllocator struct {
	mu        sync.Mutex
	next      uintptr
	allocated int
	freed     int
}

// NewMockAllocator creates a MockAllocator with physical addresses
// starting at the given base.
func NewMockAllocator(physBase uintptr) *MockAllocator {
	return &MockAllocator{next: physBase}
}

func (m *MockAllocator) Allocate(size int) (dma.Region, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	buf := make([]byte, size)
	r := dma.Region{Virt: unsafe.Pointer(&buf[0]), Phys: m.next, Size: size}
	m.next += uintptr(size)
	m.allocated++
	return r, nil
}

func (m *MockAllocator) Free(dma.Region) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.freed++
	return nil
}

// AllocationCount reports how many Allocate calls this allocator served.
func (m *MockAllocator) AllocationCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.allocated
}

// FreeCount reports how many Free calls this allocator served.
func (m *MockAllocator) FreeCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.freed
}

// NewMockBar0 allocates a zeroed region big enough to stand in for a
// mapped BAR0 in tests, returning its base pointer and size in bytes.
func NewMockBar0(words int) (unsafe.Pointer, uintptr) {
	buf := make([]uint32, words)
	return unsafe.Pointer(&buf[0]), uintptr(words * 4)
}
