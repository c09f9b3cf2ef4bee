package device

import (
	"testing"
	"unsafe"

	"github.com/mqnic-project/mqnicgo/internal/dma"
	"github.com/mqnic-project/mqnicgo/internal/regio"
	"github.com/stretchr/testify/require"
)

type fakeAllocator struct{ next uintptr }

func (a *fakeAllocator) Allocate(size int) (dma.Region, error) {
	buf := make([]byte, size)
	phys := a.next
	a.next += uintptr(size)
	return dma.Region{Virt: unsafe.Pointer(&buf[0]), Phys: phys, Size: size}, nil
}

func (a *fakeAllocator) Free(dma.Region) error { return nil }

const (
	testIfOffset     = 0x10000
	testRxQueueOff   = 0x1000
	testRxCplOff     = 0x3000
	testTxQueueOff   = 0x5000
	testTxCplOff     = 0x7000
	testPortOff      = 0x9000
)

func newFakeBar0() unsafe.Pointer {
	buf := make([]uint32, 0x8000)
	base := unsafe.Pointer(&buf[0])

	bar := regio.NewBar(base, uintptr(len(buf)*4))
	bar.Set32(classIDOffset, wantClassID)
	bar.Set32(regIfCSROffset, testIfOffset)

	ifCSR := bar.Sub(testIfOffset, 0x1000)
	ifCSR.Set32(ifRXQueueOffset, testRxQueueOff)
	ifCSR.Set32(ifRXCplQOffset, testRxCplOff)
	ifCSR.Set32(ifTXQueueOffset, testTxQueueOff)
	ifCSR.Set32(ifTXCplQOffset, testTxCplOff)
	ifCSR.Set32(ifPortOffset, testPortOff)

	return base
}

func TestInitBringsUpQueues(t *testing.T) {
	base := newFakeBar0()

	d, err := Init(Config{
		Bar0:       base,
		Bar0Size:   0x8000 * 4,
		Alloc:      &fakeAllocator{next: 0x1000000},
		RxQueues:   2,
		TxQueues:   2,
		BypassMode: true,
		QueueSize:  64,
	})
	require.NoError(t, err)
	require.Len(t, d.RxQueues, 2)
	require.Len(t, d.TxQueues, 2)
}

func TestInitRejectsTooManyQueues(t *testing.T) {
	base := newFakeBar0()
	_, err := Init(Config{
		Bar0: base, Bar0Size: 0x8000 * 4, Alloc: &fakeAllocator{},
		RxQueues: 100000, TxQueues: 1, QueueSize: 64,
	})
	require.Error(t, err)
}

func TestInitRejectsWrongClassID(t *testing.T) {
	buf := make([]uint32, 0x8000)
	base := unsafe.Pointer(&buf[0])
	bar := regio.NewBar(base, uintptr(len(buf)*4))
	bar.Set32(classIDOffset, 9)

	_, err := Init(Config{
		Bar0: base, Bar0Size: 0x8000 * 4, Alloc: &fakeAllocator{},
		RxQueues: 1, TxQueues: 1, QueueSize: 64,
	})
	require.Error(t, err)
}
