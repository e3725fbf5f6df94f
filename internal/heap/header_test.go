package heap

import "testing"

func TestRoundUp(t *testing.T) {
	cases := []struct{ n, m, want int }{
		{0, 8, 0},
		{1, 8, 8},
		{8, 8, 8},
		{9, 8, 16},
		{17, 16, 32},
	}

	for _, c := range cases {
		if got := roundUp(c.n, c.m); got != c.want {
			t.Errorf("roundUp(%d, %d) = %d, want %d", c.n, c.m, got, c.want)
		}
	}
}

func TestHeaderCodecRoundTrip(t *testing.T) {
	buf := make([]byte, 64)
	r := newRegion(buf, 8)

	r.setHeader(0, 24, true)
	if got := r.blockSize(0); got != 24 {
		t.Errorf("blockSize = %d, want 24", got)
	}
	if !r.blockUsed(0) {
		t.Error("blockUsed = false, want true")
	}

	r.markFree(0)
	if got := r.blockSize(0); got != 24 {
		t.Errorf("markFree changed size: got %d, want 24", got)
	}
	if r.blockUsed(0) {
		t.Error("blockUsed = true after markFree, want false")
	}
}

func TestNextHeaderOffAndSentinelOff(t *testing.T) {
	buf := make([]byte, 64)
	r := newRegion(buf, 8)

	r.setHeader(0, 16, true)
	if got := r.nextHeaderOff(0); got != 24 {
		t.Errorf("nextHeaderOff = %d, want 24", got)
	}
	if got := r.sentinelOff(); got != 56 {
		t.Errorf("sentinelOff = %d, want 56", got)
	}
}

func TestHeaderOffsetOfRoundTrip(t *testing.T) {
	buf := make([]byte, 64)
	r := newRegion(buf, 8)

	r.setHeader(0, 16, true)
	p := r.payloadSlice(0, 16)

	off, ok := r.headerOffsetOf(p)
	if !ok {
		t.Fatal("headerOffsetOf: not found")
	}
	if off != 0 {
		t.Errorf("headerOffsetOf = %d, want 0", off)
	}
}

func TestHeaderOffsetOfRejectsForeignSlice(t *testing.T) {
	buf := make([]byte, 64)
	r := newRegion(buf, 8)

	foreign := make([]byte, 16)

	if _, ok := r.headerOffsetOf(foreign); ok {
		t.Error("headerOffsetOf accepted a slice outside the region")
	}
}

func TestHeaderOffsetOfRejectsEmptySlice(t *testing.T) {
	buf := make([]byte, 64)
	r := newRegion(buf, 8)

	if _, ok := r.headerOffsetOf(nil); ok {
		t.Error("headerOffsetOf accepted a nil slice")
	}
	if _, ok := r.headerOffsetOf([]byte{}); ok {
		t.Error("headerOffsetOf accepted an empty slice")
	}
}

func TestLinkFieldRoundTrip(t *testing.T) {
	buf := make([]byte, 64)
	r := newRegion(buf, 8)

	r.setHeader(0, 32, false)
	r.putLinkField(0, 0, nilOffset)
	r.putLinkField(0, 1, 40)

	if got := r.linkField(0, 0); got != nilOffset {
		t.Errorf("linkField(0, prev) = %d, want nilOffset", got)
	}
	if got := r.linkField(0, 1); got != 40 {
		t.Errorf("linkField(0, next) = %d, want 40", got)
	}
}
