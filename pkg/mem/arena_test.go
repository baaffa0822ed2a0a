package mem

import (
	"errors"
	"testing"
)

func TestArenaLifecycle(t *testing.T) {
	a := New(0)
	if a.Limit() != DefaultLimit {
		t.Errorf("Limit() = %d, want %d", a.Limit(), DefaultLimit)
	}

	if _, err := a.Alloc(8); !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("Alloc before Init: err = %v, want ErrNotInitialized", err)
	}

	if err := a.Init(); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	if err := a.Init(); !errors.Is(err, ErrAlreadyInitialized) {
		t.Fatalf("second Init: err = %v, want ErrAlreadyInitialized", err)
	}

	a.Teardown()
	if a.Live() {
		t.Error("arena still live after Teardown")
	}
	if err := a.Init(); err != nil {
		t.Fatalf("Init after Teardown failed: %v", err)
	}
}

func TestAllocZeroedAndAligned(t *testing.T) {
	a := New(1024).MustInit()

	b1 := a.MustAlloc(3)
	b2 := a.MustAlloc(16)

	if b2.Offset%align != 0 {
		t.Errorf("block offset %d not aligned to %d", b2.Offset, align)
	}
	if b2.Offset < b1.End() {
		t.Errorf("blocks overlap: %+v and %+v", b1, b2)
	}
	for i, c := range a.Bytes(b2) {
		if c != 0 {
			t.Fatalf("byte %d = %d, want 0", i, c)
		}
	}
	if a.Blocks() != 2 {
		t.Errorf("Blocks() = %d, want 2", a.Blocks())
	}
}

func TestBlocksSurviveGrowth(t *testing.T) {
	a := New(1 << 16).MustInit()

	first := a.MustAlloc(4)
	copy(a.Bytes(first), "abcd")

	// Force several region reallocations.
	for i := 0; i < 10; i++ {
		a.MustAlloc(initialRegion)
	}

	if got := string(a.Bytes(first)); got != "abcd" {
		t.Errorf("first block = %q after growth, want %q", got, "abcd")
	}
}

func TestAllocExhausted(t *testing.T) {
	a := New(64).MustInit()

	if _, err := a.Alloc(64); err != nil {
		t.Fatalf("Alloc(64) failed: %v", err)
	}
	_, err := a.Alloc(1)
	if !errors.Is(err, ErrExhausted) {
		t.Fatalf("err = %v, want ErrExhausted", err)
	}
}

func TestMustAllocPanicsWhenExhausted(t *testing.T) {
	a := New(8).MustInit()
	defer func() {
		r := recover()
		if r == nil {
			t.Fatal("expected panic")
		}
		if err, ok := r.(error); !ok || !errors.Is(err, ErrExhausted) {
			t.Errorf("panic value = %v, want ErrExhausted", r)
		}
	}()
	a.MustAlloc(9)
}

func TestBytesCannotReachNextBlock(t *testing.T) {
	a := New(256).MustInit()
	b := a.MustAlloc(4)
	a.MustAlloc(4)

	buf := a.Bytes(b)
	if cap(buf) != 4 {
		t.Errorf("cap(Bytes) = %d, want 4", cap(buf))
	}
}

func TestIndependentArenas(t *testing.T) {
	a := New(128).MustInit()
	b := New(128).MustInit()

	a.MustAlloc(100)
	if _, err := b.Alloc(100); err != nil {
		t.Fatalf("second arena affected by first: %v", err)
	}
	a.Teardown()
	if !b.Live() {
		t.Error("tearing down one arena killed the other")
	}
}
