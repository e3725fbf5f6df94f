package heap

import (
	"fmt"
	"io"
)

// Explicit is the address-ordered, doubly-linked free-list allocator
// variant. It splits in place on allocation, coalesces with whichever of
// its neighbors are free on every Free, and absorbs free right neighbors
// on grow-Reallocate.
//
// The free-list offset fields (prev/next) are overlaid on the first two
// 8-byte words of every free block's own payload, which is why the
// smallest allocatable block is 2*alignment bytes even when the caller
// asked for less.
type Explicit struct {
	r    region
	cfg  Config
	head int // header offset of the first free block, or nilOffset
}

// NewExplicit installs sentinel headers over buf, seeds the free list with
// a single block spanning the whole region, and returns an allocator ready
// to serve calls against it.
func NewExplicit(buf []byte, opts ...Option) (*Explicit, error) {
	cfg := resolveConfig(opts)

	minBlock := 2 * cfg.Alignment
	minSize := 2*cfg.Alignment + minBlock

	if len(buf) < minSize {
		return nil, fmt.Errorf("%w: need at least %d bytes, got %d", ErrRegionTooSmall, minSize, len(buf))
	}

	r := newRegion(buf, cfg.Alignment)

	freeSize := r.size - 2*cfg.Alignment
	r.setHeader(0, freeSize, false)
	r.setHeader(r.sentinelOff(), 0, true)
	r.putLinkField(0, 0, nilOffset)
	r.putLinkField(0, 1, nilOffset)

	return &Explicit{r: r, cfg: cfg, head: 0}, nil
}

// minBlockSize is the smallest payload a free block (and thus any
// allocated block, since it may later be freed) may have: room for the
// prev/next offsets overlaid on its payload.
func (h *Explicit) minBlockSize() int {
	return 2 * h.r.alignment
}

// Allocate returns a payload slice of at least n bytes using first-fit
// search over the free list, splitting the candidate if the remainder
// would itself be a usable free block.
func (h *Explicit) Allocate(n int) ([]byte, error) {
	if n <= 0 || n > h.r.size-h.r.alignment {
		return nil, fmt.Errorf("%w: %d", ErrInvalidSize, n)
	}

	need := roundUp(n, h.r.alignment)

	for cur := h.head; cur != nilOffset; cur = h.r.linkField(cur, 1) {
		if h.r.blockSize(cur) < need {
			continue
		}

		return h.takeFree(cur, need), nil
	}

	return nil, fmt.Errorf("%w: requested %d bytes", ErrNoFit, n)
}

// takeFree carves need bytes out of the free block at cur, splitting off a
// trailing free remainder when it would be large enough to be useful.
func (h *Explicit) takeFree(cur, need int) []byte {
	c := h.r.blockSize(cur)
	minBlock := h.minBlockSize()

	takeSize := need
	if takeSize < minBlock {
		takeSize = minBlock
	}

	splitThreshold := takeSize + h.r.alignment + minBlock
	if c >= splitThreshold {
		newFreeOff := cur + h.r.alignment + takeSize
		newFreeSize := c - takeSize - h.r.alignment

		h.r.setHeader(cur, takeSize, true)
		h.r.setHeader(newFreeOff, newFreeSize, false)
		h.replaceFree(cur, newFreeOff)

		return h.r.payloadSlice(cur, takeSize)
	}

	h.unlinkFree(cur)
	h.r.setHeader(cur, c, true)

	return h.r.payloadSlice(cur, c)
}

// unlinkFree removes the free block at off from the free list.
func (h *Explicit) unlinkFree(off int) {
	prevOff := h.r.linkField(off, 0)
	nextOff := h.r.linkField(off, 1)

	if prevOff == nilOffset {
		h.head = nextOff
	} else {
		h.r.putLinkField(prevOff, 1, nextOff)
	}

	if nextOff != nilOffset {
		h.r.putLinkField(nextOff, 0, prevOff)
	}
}

// replaceFree substitutes newOff for oldOff in the free list, inheriting
// oldOff's neighbors. Used when a split candidate's trailing remainder
// takes over the candidate's old slot.
func (h *Explicit) replaceFree(oldOff, newOff int) {
	prevOff := h.r.linkField(oldOff, 0)
	nextOff := h.r.linkField(oldOff, 1)

	h.r.putLinkField(newOff, 0, prevOff)
	h.r.putLinkField(newOff, 1, nextOff)

	if prevOff == nilOffset {
		h.head = newOff
	} else {
		h.r.putLinkField(prevOff, 1, newOff)
	}

	if nextOff != nilOffset {
		h.r.putLinkField(nextOff, 0, newOff)
	}
}

// addressPredecessor returns the free-list node with the greatest address
// less than off, and the node with the smallest address greater than off
// (nilOffset if either doesn't exist).
func (h *Explicit) addressPredecessor(off int) (prev, next int) {
	prev = nilOffset
	cur := h.head

	for cur != nilOffset && cur < off {
		prev = cur
		cur = h.r.linkField(cur, 1)
	}

	return prev, cur
}

// insertFreeAddressOrdered splices off into the free list at the position
// that preserves ascending address order.
func (h *Explicit) insertFreeAddressOrdered(off int) {
	prevOff, nextOff := h.addressPredecessor(off)

	h.r.putLinkField(off, 0, prevOff)
	h.r.putLinkField(off, 1, nextOff)

	if prevOff == nilOffset {
		h.head = off
	} else {
		h.r.putLinkField(prevOff, 1, off)
	}

	if nextOff != nilOffset {
		h.r.putLinkField(nextOff, 0, off)
	}
}

// Free returns the block at p to the allocator, coalescing with whichever
// of its immediate neighbors (by address) are currently free. A nil slice,
// or a slice whose block is already free, is a silent no-op.
//
// The spec this allocator is modeled on only coalesces rightward on free,
// which lets two free blocks end up adjacent after a second, unrelated
// free (free the middle of three used blocks, then free its former right
// neighbor). That breaks the "no two adjacent free blocks" invariant under
// perfectly ordinary sequences, so this implementation also coalesces
// leftward, using the address-ordered free list to find the left neighbor
// in O(free-list length) instead of rescanning the whole region.
func (h *Explicit) Free(p []byte) {
	if p == nil {
		return
	}

	off, ok := h.r.headerOffsetOf(p)
	if !ok || !h.r.blockUsed(off) {
		return
	}

	h.freeBlock(off)
}

func (h *Explicit) freeBlock(off int) {
	sentinel := h.r.sentinelOff()
	size := h.r.blockSize(off)

	prevFree, nextFree := h.addressPredecessor(off)

	rightOff := h.r.nextHeaderOff(off)
	mergeRight := rightOff != sentinel && !h.r.blockUsed(rightOff)
	mergeLeft := prevFree != nilOffset && h.r.nextHeaderOff(prevFree) == off

	switch {
	case mergeLeft && mergeRight:
		rightSize := h.r.blockSize(rightOff)
		rightNext := h.r.linkField(rightOff, 1)
		merged := h.r.blockSize(prevFree) + h.r.alignment + size + h.r.alignment + rightSize

		h.r.setHeader(prevFree, merged, false)
		h.r.putLinkField(prevFree, 1, rightNext)

		if rightNext != nilOffset {
			h.r.putLinkField(rightNext, 0, prevFree)
		}
	case mergeLeft:
		merged := h.r.blockSize(prevFree) + h.r.alignment + size
		h.r.setHeader(prevFree, merged, false)
	case mergeRight:
		rightSize := h.r.blockSize(rightOff)
		rightNext := h.r.linkField(rightOff, 1)
		merged := size + h.r.alignment + rightSize

		h.r.setHeader(off, merged, false)
		h.r.putLinkField(off, 0, prevFree)
		h.r.putLinkField(off, 1, rightNext)

		if prevFree == nilOffset {
			h.head = off
		} else {
			h.r.putLinkField(prevFree, 1, off)
		}

		if rightNext != nilOffset {
			h.r.putLinkField(rightNext, 0, off)
		}
	default:
		h.r.markFree(off)
		h.r.putLinkField(off, 0, prevFree)
		h.r.putLinkField(off, 1, nextFree)

		if prevFree == nilOffset {
			h.head = off
		} else {
			h.r.putLinkField(prevFree, 1, off)
		}

		if nextFree != nilOffset {
			h.r.putLinkField(nextFree, 0, off)
		}
	}
}

// Reallocate resizes the allocation at p to n bytes: shrinking stays in
// place (splitting off a trailing free remainder when it is large enough
// to be useful), growing first tries to absorb free right-neighbors in
// place, and falls back to allocate-copy-free only if that is not enough.
func (h *Explicit) Reallocate(p []byte, n int) ([]byte, error) {
	if p == nil {
		return h.Allocate(n)
	}

	if n <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidSize, n)
	}

	headerOff, ok := h.r.headerOffsetOf(p)
	if !ok {
		return nil, ErrForeignPointer
	}

	need := roundUp(n, h.r.alignment)
	old := h.r.blockSize(headerOff)

	if need <= old {
		return h.reallocShrink(headerOff, old, need), nil
	}

	return h.reallocGrow(p, headerOff, old, need)
}

func (h *Explicit) reallocShrink(headerOff, old, need int) []byte {
	minBlock := h.minBlockSize()

	retain := need
	if retain < minBlock {
		retain = minBlock
	}

	remainder := old - retain

	if remainder > h.r.alignment+minBlock {
		h.r.setHeader(headerOff, retain, true)

		newFreeOff := headerOff + h.r.alignment + retain
		newFreeSize := remainder - h.r.alignment
		h.r.setHeader(newFreeOff, newFreeSize, false)
		h.freeBlock(newFreeOff)
	}

	return h.r.payloadSlice(headerOff, need)
}

func (h *Explicit) reallocGrow(p []byte, headerOff, old, need int) ([]byte, error) {
	sentinel := h.r.sentinelOff()
	total := old

	for total < need {
		rightOff := h.r.nextHeaderOff(headerOff)
		if rightOff == sentinel || h.r.blockUsed(rightOff) {
			break
		}

		rightSize := h.r.blockSize(rightOff)
		h.unlinkFree(rightOff)
		total += h.r.alignment + rightSize
		h.r.setHeader(headerOff, total, true)
	}

	if total >= need {
		minBlock := h.minBlockSize()
		surplus := total - need

		if surplus > h.r.alignment+minBlock {
			h.r.setHeader(headerOff, need, true)

			newFreeOff := headerOff + h.r.alignment + need
			newFreeSize := surplus - h.r.alignment
			h.r.setHeader(newFreeOff, newFreeSize, false)
			h.freeBlock(newFreeOff)
		}

		return h.r.payloadSlice(headerOff, need), nil
	}

	newP, err := h.Allocate(need)
	if err != nil {
		return nil, err
	}

	copy(newP, p)
	h.freeBlock(headerOff)

	return newP, nil
}

// Calloc allocates n bytes and zeroes them before returning.
func (h *Explicit) Calloc(n int) ([]byte, error) {
	b, err := h.Allocate(n)
	if err != nil {
		return nil, err
	}

	for i := range b {
		b[i] = 0
	}

	return b, nil
}

// Validate walks the region and the free list, checking every invariant
// from the data model: linear-walk termination and byte accounting,
// used-bit consistency, no two adjacent free blocks, and — going beyond
// what the source this design is modeled on checks — that the free list
// has no cycles, is address-ordered, every node on it is actually free,
// and its membership exactly matches the free blocks the linear walk
// finds (neither orphaned free blocks nor phantom list entries).
func (h *Explicit) Validate() error {
	sentinel := h.r.sentinelOff()
	accounted := 0
	linearFree := make(map[int]bool)

	prevWasFree := false
	first := true

	for off := 0; off < sentinel; off = h.r.nextHeaderOff(off) {
		used := h.r.blockUsed(off)
		accounted += h.r.alignment + h.r.blockSize(off)

		if !used {
			if !first && prevWasFree {
				return fmt.Errorf("%w: adjacent free blocks ending at %d", ErrCorrupted, off)
			}

			linearFree[off] = true
		}

		prevWasFree = !used
		first = false
	}

	if !h.r.blockUsed(sentinel) || h.r.blockSize(sentinel) != 0 {
		return fmt.Errorf("%w: terminating sentinel malformed at %d", ErrCorrupted, sentinel)
	}

	accounted += h.r.alignment
	if accounted != h.r.size {
		return fmt.Errorf("%w: accounted %d bytes, region is %d", ErrCorrupted, accounted, h.r.size)
	}

	seen := make(map[int]bool)
	prevAddr := -1
	prevNode := nilOffset

	for cur := h.head; cur != nilOffset; cur = h.r.linkField(cur, 1) {
		if cur < 0 || cur >= sentinel {
			return fmt.Errorf("%w: free list node %d out of range", ErrCorrupted, cur)
		}

		if seen[cur] {
			return fmt.Errorf("%w: free list cycle at %d", ErrCorrupted, cur)
		}

		seen[cur] = true

		if cur <= prevAddr {
			return fmt.Errorf("%w: free list out of address order at %d", ErrCorrupted, cur)
		}

		if h.r.linkField(cur, 0) != prevNode {
			return fmt.Errorf("%w: free list node %d has a broken back-link", ErrCorrupted, cur)
		}

		if h.r.blockUsed(cur) {
			return fmt.Errorf("%w: free list node %d is marked used", ErrCorrupted, cur)
		}

		if !linearFree[cur] {
			return fmt.Errorf("%w: free list node %d is not a linearly-reachable free block", ErrCorrupted, cur)
		}

		delete(linearFree, cur)
		prevAddr = cur
		prevNode = cur
	}

	if len(linearFree) != 0 {
		return fmt.Errorf("%w: %d linearly-reachable free blocks are missing from the free list", ErrCorrupted, len(linearFree))
	}

	return nil
}

// Dump writes the region bounds, every block in linear order, and the
// free list in address order.
func (h *Explicit) Dump(w io.Writer) {
	fmt.Fprintf(w, "explicit heap: [0, %d)\n", h.r.size)

	sentinel := h.r.sentinelOff()
	for off := 0; off < sentinel; off = h.r.nextHeaderOff(off) {
		status := "free"
		if h.r.blockUsed(off) {
			status = "used"
		}

		fmt.Fprintf(w, "  %6d: %s, size %d\n", off, status, h.r.blockSize(off))
	}

	fmt.Fprintf(w, "  %6d: terminator\n", sentinel)

	fmt.Fprintln(w, "free list:")

	for cur := h.head; cur != nilOffset; cur = h.r.linkField(cur, 1) {
		fmt.Fprintf(w, "  %6d: size %d\n", cur, h.r.blockSize(cur))
	}
}
