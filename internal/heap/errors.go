package heap

import "errors"

// Sentinel errors for the failure kinds described by the allocator's error
// handling design. Operations that fail for more than one reason wrap one
// of these with fmt.Errorf and %w, so callers can errors.Is against the
// sentinel rather than compare strings.
var (
	// ErrRegionTooSmall is returned by NewImplicit and NewExplicit when the
	// supplied region cannot
	// hold even the sentinels plus one minimum-size free block.
	ErrRegionTooSmall = errors.New("heap: region too small")

	// ErrInvalidSize is returned by Allocate/Reallocate for a zero or
	// negative size, or a size the region could never satisfy.
	ErrInvalidSize = errors.New("heap: invalid allocation size")

	// ErrNoFit is returned by Allocate/Reallocate when no free block large
	// enough exists, even though the request itself was in range.
	ErrNoFit = errors.New("heap: no free block large enough")

	// ErrCorrupted is returned by Validate when a heap invariant is
	// violated.
	ErrCorrupted = errors.New("heap: invariant violation")

	// ErrForeignPointer is returned by Reallocate when the pointer passed
	// to it does not belong to the region it is called against. Free
	// returns no error and ignores such a pointer.
	ErrForeignPointer = errors.New("heap: pointer does not belong to this region")
)
