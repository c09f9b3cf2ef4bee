package hints

import "testing"

func TestDecodeZeroIsNoHint(t *testing.T) {
	if _, ok := Decode(0); ok {
		t.Errorf("Decode(0) reported a hint, want none")
	}
}

func TestDecodeExtractsFields(t *testing.T) {
	rxHash := uint32(7) | (0x1234 << 16) | (7 << 4)
	h, ok := Decode(rxHash)
	if !ok {
		t.Fatalf("Decode() reported no hint for nonzero rxHash")
	}
	if h.AppID != 7 {
		t.Errorf("AppID = %d, want 7", h.AppID)
	}
	if h.Content != 0x1234 {
		t.Errorf("Content = %#x, want 0x1234", h.Content)
	}
}

func TestRingPushPop(t *testing.T) {
	r := NewRing()
	r.Push([]Hint{{AppID: 1, Content: 100}, {AppID: 2, Content: 200}})

	if got := r.Len(); got != 2 {
		t.Fatalf("Len() = %d, want 2", got)
	}

	out := make([]Hint, 4)
	n := r.Pop(out)
	if n != 2 {
		t.Fatalf("Pop() = %d, want 2", n)
	}
	if out[0] != (Hint{AppID: 1, Content: 100}) {
		t.Errorf("out[0] = %+v, want {1 100}", out[0])
	}
	if out[1] != (Hint{AppID: 2, Content: 200}) {
		t.Errorf("out[1] = %+v, want {2 200}", out[1])
	}
	if r.Len() != 0 {
		t.Errorf("Len() after full pop = %d, want 0", r.Len())
	}
}
