package mqnicgo

import "github.com/mqnic-project/mqnicgo/internal/constants"

// Params configures Init.
type Params struct {
	// RxQueues and TxQueues set the queue counts to bring up. Both must
	// be in [1, MaxQueues].
	RxQueues int
	TxQueues int

	// QueueEntries sets the descriptor/completion ring depth for every
	// queue. Must be a power of two.
	QueueEntries int

	// BypassMode selects the zero-MMIO-read completion peek instead of
	// reading the hardware head pointer register on every poll. Both
	// modes are behaviorally identical; bypass mode trades one fewer
	// PCIe round trip per poll for reliance on the zero-length sentinel.
	BypassMode bool

	// EnableAsyncRefill turns on the giouring-backed batched madvise path
	// in bufpool immediately after mempool allocation.
	EnableAsyncRefill bool

	// CPUAffinity lists the CPU for queue i's poll loop at index i. Init
	// does not read it; cmd/mqnic-bench pins its poll goroutines from it.
	CPUAffinity []int
}

// DefaultParams returns sane defaults: a single RX/TX queue pair, exact
// (non-bypass) completion polling, default ring depth, no async refill.
func DefaultParams() Params {
	return Params{
		RxQueues:     1,
		TxQueues:     1,
		QueueEntries: constants.DefaultQueueEntries,
		BypassMode:   false,
	}
}

// MaxQueues re-exports the hardware queue-count ceiling.
const MaxQueues = constants.MaxQueues
