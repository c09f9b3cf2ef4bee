package bufpool

import (
	"testing"
	"unsafe"

	"github.com/mqnic-project/mqnicgo/internal/dma"
	"github.com/stretchr/testify/require"
)

type fakeAllocator struct{ next uintptr }

func newFakeAllocator() *fakeAllocator {
	return &fakeAllocator{next: 0x100000}
}

func (a *fakeAllocator) Allocate(size int) (dma.Region, error) {
	buf := make([]byte, size)
	phys := a.next
	a.next += uintptr(size)
	return dma.Region{Virt: unsafe.Pointer(&buf[0]), Phys: phys, Size: size}, nil
}

func (a *fakeAllocator) Free(dma.Region) error { return nil }

func TestAllocateRaisesToMinimum(t *testing.T) {
	alloc := newFakeAllocator()
	pool, err := Allocate(alloc, 16, 2048)
	require.NoError(t, err)
	require.Equal(t, 4096, pool.Cap())
}

func TestAllocFreeConservation(t *testing.T) {
	alloc := newFakeAllocator()
	pool, err := Allocate(alloc, 4096, 2048)
	require.NoError(t, err)

	var held []*PktBuf
	for i := 0; i < 100; i++ {
		buf, ok := pool.Alloc()
		require.True(t, ok)
		held = append(held, buf)
	}
	require.Equal(t, pool.Cap()-100, pool.Len())

	for _, buf := range held {
		buf.Free()
	}
	require.Equal(t, pool.Cap(), pool.Len())
}

func TestAllocExhaustion(t *testing.T) {
	alloc := newFakeAllocator()
	pool, err := Allocate(alloc, 4096, 2048)
	require.NoError(t, err)

	for i := 0; i < pool.Cap(); i++ {
		_, ok := pool.Alloc()
		require.True(t, ok)
	}
	_, ok := pool.Alloc()
	require.False(t, ok, "pool should report exhaustion once every buffer is out")
}

func TestHoldDefersRelease(t *testing.T) {
	alloc := newFakeAllocator()
	pool, err := Allocate(alloc, 4096, 2048)
	require.NoError(t, err)

	buf, ok := pool.Alloc()
	require.True(t, ok)
	buf.Hold()

	buf.Free()
	require.Equal(t, pool.Cap()-1, pool.Len(), "buffer held twice must not return after one Free")

	buf.Free()
	require.Equal(t, pool.Cap(), pool.Len())
}
