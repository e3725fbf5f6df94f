// Command heapbench is a CLI test-and-demo harness for internal/heap: it
// wires one of the two allocator variants to a backing region and drives it
// either through a replayed trace file or a small built-in demo sequence,
// validating the heap's invariants after every trace directive, or after
// each free and the final grow of the demo.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/heapforge/heapalloc/internal/heap"
	"github.com/heapforge/heapalloc/internal/heapio"
)

var logger = log.New(os.Stderr, "heapbench: ", 0)

func main() {
	var (
		variant   = flag.String("variant", "explicit", "allocator variant: implicit or explicit")
		regionSz  = flag.Int("size", 4096, "backing region size in bytes")
		tracePath = flag.String("trace", "", "trace file to replay (a <id> <size> | f <id> | r <id> <size>)")
		mapped    = flag.Bool("mmap", false, "back the region with an anonymous mmap instead of the Go heap")
		dump      = flag.Bool("dump", false, "dump the final heap layout before exiting")
		alignment = flag.Int("alignment", 0, "override the allocator's alignment quantum (0 = default)")
	)

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [OPTIONS]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Drive the implicit-list or explicit-free-list heap allocator.\n\n")
		fmt.Fprintf(os.Stderr, "OPTIONS:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nTRACE FORMAT (one directive per line):\n")
		fmt.Fprintf(os.Stderr, "  a <id> <size>   allocate <size> bytes, remember the pointer as <id>\n")
		fmt.Fprintf(os.Stderr, "  f <id>          free the pointer remembered as <id>\n")
		fmt.Fprintf(os.Stderr, "  r <id> <size>   reallocate <id> to <size> bytes, keeping the same id\n")
		fmt.Fprintf(os.Stderr, "\nEXAMPLES:\n")
		fmt.Fprintf(os.Stderr, "  %s -variant implicit -size 4096 -trace run.trace\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -variant explicit -dump\n", os.Args[0])
	}

	flag.Parse()

	var opts []heap.Option
	if *alignment != 0 {
		opts = append(opts, heap.WithAlignment(*alignment))
	}

	region, err := newRegion(*mapped, *regionSz)
	if err != nil {
		logger.Fatalf("allocate backing region: %v", err)
	}
	defer region.Close()

	alloc, err := newAllocator(*variant, region.Buf, opts)
	if err != nil {
		logger.Fatalf("construct %s allocator: %v", *variant, err)
	}

	var runErr error
	if *tracePath != "" {
		runErr = replayTrace(alloc, *tracePath)
	} else {
		runErr = runDemo(alloc)
	}

	if *dump {
		alloc.Dump(os.Stdout)
	}

	if runErr != nil {
		logger.Fatal(runErr)
	}
}

func newRegion(mapped bool, size int) (*heapio.Region, error) {
	if mapped {
		return heapio.NewMapped(size)
	}

	return heapio.NewHeap(size)
}

// allocator is the common surface both heap variants expose; heapbench
// drives either one through this interface without caring which it got.
type allocator interface {
	Allocate(n int) ([]byte, error)
	Free(p []byte)
	Reallocate(p []byte, n int) ([]byte, error)
	Validate() error
	Dump(w io.Writer)
}

func newAllocator(variant string, buf []byte, opts []heap.Option) (allocator, error) {
	switch variant {
	case "implicit":
		return heap.NewImplicit(buf, opts...)
	case "explicit":
		return heap.NewExplicit(buf, opts...)
	default:
		return nil, fmt.Errorf("unknown variant %q (want implicit or explicit)", variant)
	}
}

// replayTrace runs each line of path against alloc, validating the heap
// after every directive and stopping at the first invariant violation or
// malformed line.
func replayTrace(alloc allocator, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open trace %s: %w", path, err)
	}
	defer f.Close()

	live := make(map[string][]byte)

	scanner := bufio.NewScanner(f)
	lineNo := 0
	directives := 0

	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		if err := applyDirective(alloc, live, line); err != nil {
			return fmt.Errorf("trace line %d %q: %w", lineNo, line, err)
		}

		if err := alloc.Validate(); err != nil {
			return fmt.Errorf("invariant violation after line %d %q: %w", lineNo, line, err)
		}

		directives++
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read trace %s: %w", path, err)
	}

	logger.Printf("replayed %d directive(s), heap valid", directives)

	return nil
}

func applyDirective(alloc allocator, live map[string][]byte, line string) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}

	switch fields[0] {
	case "a":
		if len(fields) != 3 {
			return fmt.Errorf("want 'a <id> <size>'")
		}

		n, err := strconv.Atoi(fields[2])
		if err != nil {
			return fmt.Errorf("bad size %q: %w", fields[2], err)
		}

		p, err := alloc.Allocate(n)
		if err != nil {
			return fmt.Errorf("allocate %d: %w", n, err)
		}

		live[fields[1]] = p

		return nil

	case "f":
		if len(fields) != 2 {
			return fmt.Errorf("want 'f <id>'")
		}

		alloc.Free(live[fields[1]])
		delete(live, fields[1])

		return nil

	case "r":
		if len(fields) != 3 {
			return fmt.Errorf("want 'r <id> <size>'")
		}

		n, err := strconv.Atoi(fields[2])
		if err != nil {
			return fmt.Errorf("bad size %q: %w", fields[2], err)
		}

		p, err := alloc.Reallocate(live[fields[1]], n)
		if err != nil {
			return fmt.Errorf("reallocate %d: %w", n, err)
		}

		live[fields[1]] = p

		return nil

	default:
		return fmt.Errorf("unknown directive %q", fields[0])
	}
}

// runDemo exercises a small built-in sequence when no trace file is given,
// so the binary is useful without any setup.
func runDemo(alloc allocator) error {
	a, err := alloc.Allocate(16)
	if err != nil {
		return fmt.Errorf("allocate a: %w", err)
	}

	b, err := alloc.Allocate(16)
	if err != nil {
		return fmt.Errorf("allocate b: %w", err)
	}

	c, err := alloc.Allocate(16)
	if err != nil {
		return fmt.Errorf("allocate c: %w", err)
	}

	alloc.Free(b)

	if err := alloc.Validate(); err != nil {
		return fmt.Errorf("after freeing b: %w", err)
	}

	alloc.Free(a)

	if err := alloc.Validate(); err != nil {
		return fmt.Errorf("after freeing a: %w", err)
	}

	if _, err := alloc.Reallocate(c, 48); err != nil {
		return fmt.Errorf("grow c: %w", err)
	}

	if err := alloc.Validate(); err != nil {
		return fmt.Errorf("after growing c: %w", err)
	}

	logger.Print("demo sequence completed, heap valid")

	return nil
}
