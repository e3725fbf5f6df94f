//go:build unix

package heapio

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// NewMapped allocates size bytes via an anonymous mmap instead of the Go
// heap. Unlike NewHeap, this memory is invisible to the garbage collector
// and to the Go runtime's own allocator, which matters for benchmarking
// the allocators in this module without the host runtime's bookkeeping
// sharing the same address space.
func NewMapped(size int) (*Region, error) {
	if size <= 0 {
		return nil, fmt.Errorf("heapio: invalid region size %d", size)
	}

	buf, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return nil, fmt.Errorf("heapio: mmap %d bytes: %w", size, err)
	}

	return &Region{
		Buf: buf,
		close: func() error {
			return unix.Munmap(buf)
		},
	}, nil
}
