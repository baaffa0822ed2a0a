// Package mem provides the arena allocator that backs the constant pool and
// the interpreter's slot tables.
//
// An Arena hands out zero-initialized blocks from a single growable region
// and never frees them individually. Everything allocated from an arena is
// released together by Teardown. Blocks are addressed by stable offset
// handles rather than raw slices, so growing the region never invalidates
// a block that was handed out earlier.
//
// An Arena is not safe for concurrent use.
package mem

import (
	"errors"
	"fmt"
)

const (
	// DefaultLimit is the region size used when New is given a zero limit (1 MiB).
	DefaultLimit = 1 << 20

	// align is the allocation granularity in bytes.
	align = 8

	initialRegion = 4096
)

var (
	// ErrExhausted is returned when an allocation would exceed the arena limit.
	ErrExhausted = errors.New("mem: arena exhausted")

	// ErrAlreadyInitialized is returned by Init on an arena that is live.
	ErrAlreadyInitialized = errors.New("mem: arena already initialized")

	// ErrNotInitialized is returned when allocating from an arena before Init
	// or after Teardown.
	ErrNotInitialized = errors.New("mem: arena not initialized")
)

// Block is a handle to a region of arena memory.
type Block struct {
	Offset int
	Len    int
}

// End returns the offset one past the block's last byte.
func (b Block) End() int { return b.Offset + b.Len }

// IsZero reports whether b is the zero Block.
func (b Block) IsZero() bool { return b.Offset == 0 && b.Len == 0 }

// Arena is a bump allocator over one growable byte region.
type Arena struct {
	region []byte
	used   int
	limit  int
	blocks int
	live   bool
}

// New returns an arena that will hold at most limit bytes. It must be
// initialized with Init before use.
func New(limit int) *Arena {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &Arena{limit: limit}
}

// Init establishes the allocation state. Calling Init on a live arena is a
// lifecycle error; the arena is left untouched.
func (a *Arena) Init() error {
	if a.live {
		return ErrAlreadyInitialized
	}
	size := initialRegion
	if size > a.limit {
		size = a.limit
	}
	a.region = make([]byte, 0, size)
	a.used = 0
	a.blocks = 0
	a.live = true
	return nil
}

// MustInit is like Init but panics on error.
func (a *Arena) MustInit() *Arena {
	if err := a.Init(); err != nil {
		panic(err)
	}
	return a
}

// Live reports whether the arena has been initialized and not torn down.
func (a *Arena) Live() bool { return a.live }

// Alloc returns a zero-initialized block of size bytes. A zero size yields
// an empty block at the current high-water mark.
func (a *Arena) Alloc(size int) (Block, error) {
	if !a.live {
		return Block{}, ErrNotInitialized
	}
	if size < 0 {
		return Block{}, fmt.Errorf("mem: negative allocation size %d", size)
	}

	start := (a.used + align - 1) &^ (align - 1)
	end := start + size
	if end > a.limit {
		return Block{}, fmt.Errorf("%w: need %d bytes, %d of %d in use", ErrExhausted, size, a.used, a.limit)
	}

	if end > cap(a.region) {
		a.grow(end)
	}
	a.region = a.region[:end]
	clear(a.region[a.used:end])

	a.used = end
	a.blocks++
	return Block{Offset: start, Len: size}, nil
}

// MustAlloc is like Alloc but panics on error.
func (a *Arena) MustAlloc(size int) Block {
	b, err := a.Alloc(size)
	if err != nil {
		panic(err)
	}
	return b
}

func (a *Arena) grow(need int) {
	newCap := cap(a.region) * 2
	if newCap < need {
		newCap = need
	}
	if newCap > a.limit {
		newCap = a.limit
	}
	region := make([]byte, len(a.region), newCap)
	copy(region, a.region)
	a.region = region
}

// Bytes returns the memory backing b. The slice is only valid until the
// next Alloc; hold on to the Block, not the slice.
func (a *Arena) Bytes(b Block) []byte {
	if !a.live || b.End() > len(a.region) {
		panic(fmt.Sprintf("mem: block [%d,%d) outside arena (used %d)", b.Offset, b.End(), a.used))
	}
	return a.region[b.Offset:b.End():b.End()]
}

// Teardown releases every block at once. The arena may be initialized again
// afterwards; blocks from before the teardown must not be used.
func (a *Arena) Teardown() {
	a.region = nil
	a.used = 0
	a.blocks = 0
	a.live = false
}

// Used returns the number of bytes handed out, including alignment padding.
func (a *Arena) Used() int { return a.used }

// Limit returns the maximum number of bytes the arena may hold.
func (a *Arena) Limit() int { return a.limit }

// Blocks returns the number of blocks allocated since Init.
func (a *Arena) Blocks() int { return a.blocks }

// String summarizes arena usage for logs.
func (a *Arena) String() string {
	return fmt.Sprintf("arena{used=%d limit=%d blocks=%d live=%t}", a.used, a.limit, a.blocks, a.live)
}
