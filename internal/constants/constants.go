package constants

import "time"

// Ring sizing constants. All three ring kinds (RX descriptor, TX
// descriptor, completion) use the same entry count by default; hardware
// requires every ring to be a power of two.
const (
	DefaultQueueEntries = 256

	// HWPtrMask is the width of the hardware head/tail pointer registers.
	// Pointer arithmetic on a queue's logical index wraps at the ring
	// size, but the register itself is a 16-bit free-running counter, so
	// publishing to hardware always masks with HWPtrMask rather than the
	// ring's own size mask.
	HWPtrMask = 0xFFFF

	// MinPoolEntries is the minimum number of PktBufs carved for any
	// mempool, regardless of the owning ring's size.
	MinPoolEntries = 4096

	// PktBufSize is the fixed DMA buffer size for every packet buffer in
	// this driver. Hardware descriptors never request a different size.
	PktBufSize = 2048

	// RefillThreshold is the minimum number of free RX descriptor slots
	// that must accumulate before Refill does any work. Refilling one
	// slot at a time would mean one mempool pop plus one MMIO write per
	// received packet; batching amortizes both.
	RefillThreshold = 8

	// RxCQTailUpdateBatch bounds how many completions RxQueue.Drain
	// consumes before it publishes the completion-queue tail pointer.
	// Matches the hardware's own completion coalescing window.
	RxCQTailUpdateBatch = 32

	// TxReapBudget bounds how many TX completions Send reaps per call so
	// that a TX-heavy burst from the NIC never stalls the send path.
	TxReapBudget = 64

	// BypassBatch is the look-ahead used by the bypass-mode completion
	// peek; 0 means the peek reads the current completion slot itself (the
	// slot at cplTail), which is what RxQueue.Drain and TxQueue.reap do.
	BypassBatch = 0
)

const (
	// MaxQueues bounds RxQueues/TxQueues accepted by Init. The mailbox
	// protocol packs a queue-local CPU-message slot into a fixed-width
	// field, which is what actually limits this.
	MaxQueues = 256
)

// RxKernelQueueNumber and TxKernelQueueNumber are the count of RX/TX queue
// slots reserved ahead of this driver's own queues for a kernel netdev
// coexisting on the same interface block. Every CPL-queue-index binding
// and the port's user-queue offset register are shifted by these so the
// two drivers' queues never alias.
const (
	RxKernelQueueNumber = 1
	TxKernelQueueNumber = 1
)

// PerCoreRankBound is the base per-core dispatch rank budget the port's
// user-queue-bound register is configured with at bring-up, scaled by 5
// to get the actual register value.
const PerCoreRankBound = 32

// AppCtl mailbox opcodes. Opcodes 3-7 are packed into the low nibble of the
// CPU-message register; OpcodeDispatchInit (17) does not fit in a nibble and
// is written as the whole register word. Values are fixed by the hardware's
// message decoder.
const (
	OpcodeRegisterApp   = 3
	OpcodeDeregisterApp = 4
	OpcodeFeedback      = 5
	OpcodeMonitorReset  = 6
	OpcodeRearm         = 7
	OpcodeDispatchInit  = 17
)

// Timing constants for device bring-up.
//
// The NIC's internal scheduler and RSS tables are updated asynchronously
// relative to the CSR writes that configure them; Init settles for a short
// fixed delay after the last configuration write rather than polling a
// "configuration applied" bit that the hardware does not expose.
const (
	// InitSettleDelay is how long Init waits after activating the
	// hardware scheduler and RSS tables before returning. Too short and
	// the first RxBatch call on a freshly-initialized queue can race the
	// NIC's own ring activation; 5ms has a wide margin over the observed
	// activation latency.
	InitSettleDelay = 5 * time.Millisecond
)

// PayloadOffset is the byte offset into a PktBuf's DMA region where
// hardware writes the actual packet payload, reserving headroom for
// encapsulation headers the driver may prepend on the TX side.
const PayloadOffset = 64
