package appctl

import "github.com/mqnic-project/mqnicgo/internal/regio"

const portRegAppConfig = 0x40

// PortControl wraps a port's register block for the app-match-table and
// monitor configuration calls, distinct from the per-queue Mailbox.
type PortControl struct {
	bar *regio.Bar
}

// NewPortControl wraps a port's register block.
func NewPortControl(bar *regio.Bar) *PortControl {
	return &PortControl{bar: bar}
}

// ConfigAppMAT maps appID to portNum in the port-wide RSS/dispatch match
// table at the given scheduling priority. This is op 0 in the port's
// app-config register; it carries no opcode nibble of its own because the
// low 4 bits are always zero for a plain mapping write.
func (p *PortControl) ConfigAppMAT(appID uint16, portNum uint16, priority uint8) {
	word := (uint32(portNum)<<16)&0xffff0000 |
		(uint32(priority)<<12)&0x0000f000 |
		(uint32(appID)<<4)&0x00000ff0
	p.bar.Set32(portRegAppConfig, word)
}

// SetMonitor configures the congestion and scale-down monitor epochs and
// threshold for appID. This is op 1.
func (p *PortControl) SetMonitor(appID uint16, congEpochLog, scaleDownEpochLog, scaleDownThresh uint8) {
	word := uint32(1) |
		(uint32(appID)<<4)&0x00000ff0 |
		(uint32(scaleDownEpochLog)<<12)&0x000ff000 |
		(uint32(congEpochLog)<<20)&0x0ff00000 |
		(uint32(scaleDownThresh)<<28)&0xf0000000
	p.bar.Set32(portRegAppConfig, word)
}

// ResetMonitor clears all monitor state for the port. This is op 2.
func (p *PortControl) ResetMonitor() {
	p.bar.Set32(portRegAppConfig, 2)
}
