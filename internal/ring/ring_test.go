package ring

import (
	"testing"
	"unsafe"

	"github.com/mqnic-project/mqnicgo/internal/bufpool"
	"github.com/mqnic-project/mqnicgo/internal/dma"
	"github.com/mqnic-project/mqnicgo/internal/regio"
	"github.com/stretchr/testify/require"
)

type fakeAllocator struct{ next uintptr }

func newFakeAllocator() *fakeAllocator {
	return &fakeAllocator{next: 0x10000000}
}

func (a *fakeAllocator) Allocate(size int) (dma.Region, error) {
	buf := make([]byte, size)
	phys := a.next
	a.next += uintptr(size)
	return dma.Region{Virt: unsafe.Pointer(&buf[0]), Phys: phys, Size: size}, nil
}

func (a *fakeAllocator) Free(dma.Region) error { return nil }

func newFakeBar() *regio.Bar {
	buf := make([]uint32, 16)
	return regio.NewBar(unsafe.Pointer(&buf[0]), uintptr(len(buf)*4))
}

func newTestRxQueue(t *testing.T, bypass bool) *RxQueue {
	t.Helper()
	q, err := NewRxQueue(RxQueueConfig{
		QueueBar:   newFakeBar(),
		CplBar:     newFakeBar(),
		Alloc:      newFakeAllocator(),
		Size:       256,
		QueueIndex: 0,
		BypassMode: bypass,
	})
	require.NoError(t, err)
	return q
}

func TestNewRxQueueRejectsNonPow2(t *testing.T) {
	_, err := NewRxQueue(RxQueueConfig{
		QueueBar: newFakeBar(), CplBar: newFakeBar(), Alloc: newFakeAllocator(), Size: 100,
	})
	require.Error(t, err)
}

func TestNewRxQueueFullyPostsRing(t *testing.T) {
	q := newTestRxQueue(t, true)
	require.Equal(t, q.size, q.rxqHead)
	for i := 0; i < q.size; i++ {
		require.NotNil(t, q.virtAddrs[i])
	}
}

func TestRxQueueDrainEmptyDoesNoMMIOWrites(t *testing.T) {
	q := newTestRxQueue(t, true)
	before := q.cplBar.Get32(regTailPtr)

	harvested, hintCount := q.Drain(make([]*bufpool.PktBuf, 8), false, nil)
	require.Equal(t, 0, harvested)
	require.Equal(t, 0, hintCount)
	require.Equal(t, before, q.cplBar.Get32(regTailPtr))
}

func TestRxQueueDrainHarvestsPostedCompletion(t *testing.T) {
	q := newTestRxQueue(t, true)

	slot := q.cplTail & q.sizeMask
	cpl := dma.CompletionAt(q.cplRegion, slot)
	cpl.Len = 1500
	cpl.Index = uint16(slot)
	cpl.RxHash = 0

	out := make([]*bufpool.PktBuf, 4)
	harvested, hintCount := q.Drain(out, false, nil)

	require.Equal(t, 1, harvested)
	require.Equal(t, 0, hintCount)
	require.EqualValues(t, 1500, out[0].Size)
	require.Nil(t, q.virtAddrs[slot])
}

func TestRxQueueDrainDecodesHint(t *testing.T) {
	q := newTestRxQueue(t, true)

	slot := q.cplTail & q.sizeMask
	cpl := dma.CompletionAt(q.cplRegion, slot)
	cpl.Len = 64
	cpl.Index = uint16(slot)
	// app_id = 7, content = 42
	cpl.RxHash = (7 << 4) | (42 << 16) | 1

	out := make([]*bufpool.PktBuf, 4)
	hints := make([]Hint, 4)
	harvested, hintCount := q.Drain(out, true, hints)

	require.Equal(t, 1, harvested)
	require.Equal(t, 1, hintCount)
	require.EqualValues(t, 7, hints[0].AppID)
	require.EqualValues(t, 42, hints[0].Content)
}

func TestRxQueuePublishesCplTailAfterBatchThreshold(t *testing.T) {
	q := newTestRxQueue(t, true)

	for i := 0; i < 40; i++ {
		slot := (q.cplTail + i) & q.sizeMask
		cpl := dma.CompletionAt(q.cplRegion, slot)
		cpl.Len = 64
		cpl.Index = uint16(slot)
	}

	out := make([]*bufpool.PktBuf, 40)
	harvested, _ := q.Drain(out, false, nil)
	require.Equal(t, 40, harvested)
	require.EqualValues(t, 40, q.cplBar.Get32(regTailPtr), "tail publishes once the batch threshold is exceeded")
}

func newTestTxQueue(t *testing.T, bypass bool) *TxQueue {
	t.Helper()
	q, err := NewTxQueue(TxQueueConfig{
		QueueBar:   newFakeBar(),
		CplBar:     newFakeBar(),
		Alloc:      newFakeAllocator(),
		Size:       256,
		QueueIndex: 0,
		BypassMode: bypass,
	})
	require.NoError(t, err)
	return q
}

func testPktBuf(t *testing.T, pool *bufpool.Pool) *bufpool.PktBuf {
	t.Helper()
	buf, ok := pool.Alloc()
	require.True(t, ok)
	buf.Size = 512
	return buf
}

func TestTxQueueSendRespectsBackpressure(t *testing.T) {
	q := newTestTxQueue(t, true)
	pool, err := bufpool.Allocate(newFakeAllocator(), 8192, 2048)
	require.NoError(t, err)

	bufs := make([]*bufpool.PktBuf, q.fullSize+10)
	for i := range bufs {
		bufs[i] = testPktBuf(t, pool)
	}

	sent, err := q.Send(bufs)
	require.NoError(t, err)
	require.Equal(t, q.fullSize, sent, "Send must stop at the back-pressure threshold")
}

func TestTxQueueReapFreesBuffers(t *testing.T) {
	q := newTestTxQueue(t, true)
	pool, err := bufpool.Allocate(newFakeAllocator(), 8192, 2048)
	require.NoError(t, err)

	buf := testPktBuf(t, pool)
	sent, err := q.Send([]*bufpool.PktBuf{buf})
	require.NoError(t, err)
	require.Equal(t, 1, sent)

	// Send held a second reference on top of the buffer's origin hold; the
	// caller (standing in for the RX queue it came from) must release its
	// own hold before the pool sees it back.
	buf.Free()
	freeBefore := pool.Len()

	slot := q.cplTail & q.sizeMask
	cpl := dma.CompletionAt(q.cplRegion, slot)
	cpl.Len = 512
	cpl.Index = uint16(slot)

	_, err = q.Send(nil)
	require.NoError(t, err)
	require.Equal(t, freeBefore+1, pool.Len())
}
