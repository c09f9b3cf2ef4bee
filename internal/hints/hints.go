// Package hints decodes and stages out-of-band scale notifications the
// NIC encodes in a completion record's RxHash field. Decoding is
// deliberately separate from acting on a hint: nothing in this package
// ever calls into appctl.
package hints

import "github.com/mqnic-project/mqnicgo/internal/ring"

// Hint is re-exported from ring so callers working only with this package
// don't need to import ring for the type.
type Hint = ring.Hint

// Decode extracts a Hint from a completion's RxHash field. ok is false
// when rxHash is zero, meaning the completion carries no hint.
func Decode(rxHash uint32) (Hint, bool) {
	if rxHash == 0 {
		return Hint{}, false
	}
	return Hint{
		AppID:   uint8((rxHash >> 4) & 0xff),
		Content: uint16((rxHash >> 16) & 0xffff),
	}, true
}
