package heap

import (
	"fmt"
	"io"
)

// Implicit is the first-fit, non-coalescing allocator variant: free
// blocks are found by a linear scan of the whole region and Free only ever
// clears the used-bit. External fragmentation is the deliberate cost of
// this design; Implicit never merges adjacent free blocks on its own, only
// Reallocate routes around fragmentation, and only by relocating.
type Implicit struct {
	r   region
	cfg Config
}

// NewImplicit installs sentinel headers over buf and returns an allocator
// ready to serve Allocate/Free/Reallocate/Validate calls against it. buf is
// never grown, moved, or returned to the OS by this package.
func NewImplicit(buf []byte, opts ...Option) (*Implicit, error) {
	cfg := resolveConfig(opts)

	minSize := 3 * cfg.Alignment
	if len(buf) < minSize {
		return nil, fmt.Errorf("%w: need at least %d bytes, got %d", ErrRegionTooSmall, minSize, len(buf))
	}

	r := newRegion(buf, cfg.Alignment)

	freeSize := r.size - 2*cfg.Alignment
	r.setHeader(0, freeSize, false)
	r.setHeader(r.sentinelOff(), 0, true)

	return &Implicit{r: r, cfg: cfg}, nil
}

// Allocate returns a payload slice of at least n bytes, or an error if n is
// out of range or no free block is large enough.
func (h *Implicit) Allocate(n int) ([]byte, error) {
	if n <= 0 || n > h.r.size-h.r.alignment {
		return nil, fmt.Errorf("%w: %d", ErrInvalidSize, n)
	}

	need := roundUp(n, h.r.alignment)
	sentinel := h.r.sentinelOff()

	for off := 0; off < sentinel; off = h.r.nextHeaderOff(off) {
		if h.r.blockUsed(off) {
			continue
		}

		size := h.r.blockSize(off)
		if size < need {
			continue
		}

		return h.takeBlock(off, need), nil
	}

	return nil, fmt.Errorf("%w: requested %d bytes", ErrNoFit, n)
}

// takeBlock marks the free block at headerOff used for need bytes, splitting
// off a trailing free block for any remainder.
func (h *Implicit) takeBlock(headerOff, need int) []byte {
	orig := h.r.blockSize(headerOff)
	h.r.setHeader(headerOff, need, true)

	if orig > need {
		remOff := headerOff + h.r.alignment + need
		h.r.setHeader(remOff, orig-need-h.r.alignment, false)
	}

	return h.r.payloadSlice(headerOff, need)
}

// Free clears the used-bit of the block p points to. A nil slice, or a
// slice whose block is already free, is a silent no-op.
func (h *Implicit) Free(p []byte) {
	if p == nil {
		return
	}

	off, ok := h.r.headerOffsetOf(p)
	if !ok || !h.r.blockUsed(off) {
		return
	}

	h.r.markFree(off)
}

// Reallocate resizes the allocation at p to n bytes. The implicit variant
// never grows or shrinks in place: it always allocates fresh, copies the
// overlapping prefix, and frees the old block.
func (h *Implicit) Reallocate(p []byte, n int) ([]byte, error) {
	if p == nil {
		return h.Allocate(n)
	}

	if n == 0 {
		return nil, fmt.Errorf("%w: 0", ErrInvalidSize)
	}

	if _, ok := h.r.headerOffsetOf(p); !ok {
		return nil, ErrForeignPointer
	}

	newP, err := h.Allocate(n)
	if err != nil {
		return nil, err
	}

	copy(newP, p)
	h.Free(p)

	return newP, nil
}

// Calloc allocates n bytes and zeroes them before returning.
func (h *Implicit) Calloc(n int) ([]byte, error) {
	b, err := h.Allocate(n)
	if err != nil {
		return nil, err
	}

	for i := range b {
		b[i] = 0
	}

	return b, nil
}

// Validate walks the region and checks the invariants from the data model:
// the walk lands exactly on the terminating sentinel, the sentinel is a
// zero-size used header, and accounted bytes equal the region size.
func (h *Implicit) Validate() error {
	sentinel := h.r.sentinelOff()
	accounted := 0

	off := 0
	for off < sentinel {
		accounted += h.r.alignment + h.r.blockSize(off)
		off = h.r.nextHeaderOff(off)
	}

	if off != sentinel {
		return fmt.Errorf("%w: walk overshot sentinel at %d (expected %d)", ErrCorrupted, off, sentinel)
	}

	if !h.r.blockUsed(sentinel) || h.r.blockSize(sentinel) != 0 {
		return fmt.Errorf("%w: terminating sentinel malformed at %d", ErrCorrupted, sentinel)
	}

	accounted += h.r.alignment // sentinel header itself

	if accounted != h.r.size {
		return fmt.Errorf("%w: accounted %d bytes, region is %d", ErrCorrupted, accounted, h.r.size)
	}

	return nil
}

// Dump writes the region bounds and, for every block in linear order, its
// offset, size, and status.
func (h *Implicit) Dump(w io.Writer) {
	fmt.Fprintf(w, "implicit heap: [0, %d)\n", h.r.size)

	sentinel := h.r.sentinelOff()
	for off := 0; off < sentinel; off = h.r.nextHeaderOff(off) {
		status := "free"
		if h.r.blockUsed(off) {
			status = "used"
		}

		fmt.Fprintf(w, "  %6d: %s, size %d\n", off, status, h.r.blockSize(off))
	}

	fmt.Fprintf(w, "  %6d: terminator\n", sentinel)
}
