// Package appctl implements the CPU-message mailbox protocol: per-app
// registration, feedback, and congestion-monitor control. Every operation
// here performs exactly one MMIO write, except Mailbox.RearmMonitor, which
// performs two (a monitor reset, then the rearm); there is no batching or
// queuing in this package because the hardware mailbox itself is a single
// register.
package appctl

import (
	"github.com/mqnic-project/mqnicgo/internal/constants"
	"github.com/mqnic-project/mqnicgo/internal/regio"
)

const cpuMsgOffset = 0x18

// mmioWriter is the minimal surface Mailbox needs from a register block.
// Tests substitute a spy that records the write sequence in place of a
// real *regio.Bar, since RearmMonitor's correctness depends on the order
// of two writes to the same register, not just its final value.
type mmioWriter interface {
	Set32(offset uintptr, value uint32)
}

// Mailbox is a single RX queue's CPU-message register.
type Mailbox struct {
	bar mmioWriter
}

// NewMailbox wraps an RX queue's completion-queue register block.
func NewMailbox(bar *regio.Bar) *Mailbox {
	return &Mailbox{bar: bar}
}

func (m *Mailbox) write(word uint32) {
	m.bar.Set32(cpuMsgOffset, word)
}

// RegisterApp tells the NIC to start dispatching packets tagged for appID
// to this queue, at the given scheduling priority.
func (m *Mailbox) RegisterApp(appID uint16, priority uint8) {
	word := uint32(1)<<20 | uint32(5)<<16 |
		(uint32(appID)<<4)&0x00000ff0 |
		(uint32(priority)<<12)&0x0000f000 |
		constants.OpcodeRegisterApp
	m.write(word)
}

// DeregisterApp stops dispatch for appID on this queue.
func (m *Mailbox) DeregisterApp(appID uint16) {
	word := (uint32(appID)<<4)&0x00000ff0 | constants.OpcodeDeregisterApp
	m.write(word)
}

// Feedback reports updateCount application-level progress units back to
// the NIC's congestion model for appID. updateCount of zero is a legal,
// no-op-value feedback call; it still performs the MMIO write.
func (m *Mailbox) Feedback(appID uint16, updateCount uint16) {
	word := (uint32(updateCount)<<16)&0xffff0000 |
		(uint32(appID)<<4)&0x00000ff0 |
		constants.OpcodeFeedback
	m.write(word)
}

// ResetMonitorForApp clears the per-app congestion monitor state.
func (m *Mailbox) ResetMonitorForApp(appID uint16) {
	word := (uint32(appID)<<4)&0x00000ff0 | constants.OpcodeMonitorReset
	m.write(word)
}

// RearmMonitor re-arms the scale-up congestion monitor for appID after the
// consumer has acted on a previous hint. This takes two writes to the
// mailbox register: a monitor reset for appID, immediately followed by
// the rearm opcode; a single rearm write with stale monitor state would
// leave the previous epoch's counters in place.
func (m *Mailbox) RearmMonitor(appID uint16) {
	reset := (uint32(appID)<<4)&0x00000ff0 | constants.OpcodeMonitorReset
	m.write(reset)
	rearm := (uint32(appID)<<4)&0x00000ff0 | constants.OpcodeRearm
	m.write(rearm)
}

// RearmScaleDownMonitor re-arms the scale-down monitor for appID. Unlike
// RearmMonitor this is a single write; the scale-down monitor's epoch
// counters don't need the preceding reset.
func (m *Mailbox) RearmScaleDownMonitor(appID uint16) {
	word := (uint32(appID)<<4)&0x00000ff0 | constants.OpcodeRearm
	m.write(word)
}
