package dma

import (
	"testing"
	"unsafe"
)

type heapAllocator struct{ next uintptr }

func (h *heapAllocator) Allocate(size int) (Region, error) {
	buf := make([]byte, size)
	phys := h.next
	h.next += uintptr(size)
	return Region{Virt: unsafe.Pointer(&buf[0]), Phys: phys, Size: size}, nil
}

func (h *heapAllocator) Free(Region) error { return nil }

func TestDescriptorCompletionSizes(t *testing.T) {
	if got := unsafe.Sizeof(Descriptor{}); got != 16 {
		t.Errorf("Descriptor size = %d, want 16", got)
	}
	if got := unsafe.Sizeof(Completion{}); got != 32 {
		t.Errorf("Completion size = %d, want 32", got)
	}
}

func TestDescriptorAtRoundTrip(t *testing.T) {
	alloc := &heapAllocator{}
	region, err := alloc.Allocate(16 * 4)
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}

	d := DescriptorAt(region, 2)
	d.Len = 2048
	d.Addr = 0xdead0000

	got := DescriptorAt(region, 2)
	if got.Len != 2048 || got.Addr != 0xdead0000 {
		t.Errorf("DescriptorAt(2) = %+v, want Len=2048 Addr=0xdead0000", *got)
	}
}

func TestCompletionAtZeroSentinel(t *testing.T) {
	alloc := &heapAllocator{}
	region, err := alloc.Allocate(32 * 4)
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	c := CompletionAt(region, 0)
	if c.Len != 0 {
		t.Errorf("fresh completion Len = %d, want 0", c.Len)
	}
}
