package appctl

import (
	"testing"
	"unsafe"

	"github.com/mqnic-project/mqnicgo/internal/regio"
	"github.com/stretchr/testify/require"
)

func newFakeBar() *regio.Bar {
	buf := make([]uint32, 16)
	return regio.NewBar(unsafe.Pointer(&buf[0]), uintptr(len(buf)*4))
}

func TestRegisterAppEncoding(t *testing.T) {
	bar := newFakeBar()
	m := NewMailbox(bar)
	m.RegisterApp(5, 2)

	want := uint32(1)<<20 | uint32(5)<<16 | (5 << 4) | (2 << 12) | 3
	require.Equal(t, want, bar.Get32(cpuMsgOffset))
}

func TestDeregisterAppEncoding(t *testing.T) {
	bar := newFakeBar()
	m := NewMailbox(bar)
	m.DeregisterApp(9)

	want := uint32(9<<4) | 4
	require.Equal(t, want, bar.Get32(cpuMsgOffset))
}

func TestFeedbackZeroUpdateCountStillWrites(t *testing.T) {
	bar := newFakeBar()
	m := NewMailbox(bar)
	m.Feedback(3, 0)

	want := uint32(3<<4) | 5
	require.Equal(t, want, bar.Get32(cpuMsgOffset))
}

// recordingWriter is a spy mmioWriter that remembers every value written,
// so tests can assert on write order rather than just final register
// state.
type recordingWriter struct {
	writes []uint32
}

func (r *recordingWriter) Set32(offset uintptr, value uint32) {
	r.writes = append(r.writes, value)
}

func TestRearmMonitorWritesResetThenRearm(t *testing.T) {
	spy := &recordingWriter{}
	m := &Mailbox{bar: spy}

	m.RearmMonitor(11)

	want := []uint32{
		uint32(11<<4) | 6,
		uint32(11<<4) | 7,
	}
	require.Equal(t, want, spy.writes)
}

func TestRearmScaleDownMonitorWritesSingleOpcode(t *testing.T) {
	spy := &recordingWriter{}
	m := &Mailbox{bar: spy}

	m.RearmScaleDownMonitor(11)

	want := []uint32{uint32(11<<4) | 7}
	require.Equal(t, want, spy.writes)
}

func TestConfigAppMAT(t *testing.T) {
	bar := newFakeBar()
	p := NewPortControl(bar)
	p.ConfigAppMAT(2, 1, 3)

	want := uint32(1)<<16 | (3 << 12) | (2 << 4)
	require.Equal(t, want, bar.Get32(portRegAppConfig))
}
