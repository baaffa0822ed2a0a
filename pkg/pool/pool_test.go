package pool

import (
	"errors"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/chazu/slotvm/pkg/mem"
)

func newTestPool(t *testing.T) *Pool {
	t.Helper()
	a := mem.New(1 << 16)
	if err := a.Init(); err != nil {
		t.Fatalf("arena init: %v", err)
	}
	t.Cleanup(a.Teardown)
	return New(a)
}

func TestReferenceLayout(t *testing.T) {
	p := newTestPool(t)

	base, err := p.DumpStrings([]string{"a", "b"})
	if err != nil {
		t.Fatalf("DumpStrings: %v", err)
	}
	if base != 0 {
		t.Errorf("base = %d, want 0", base)
	}

	next, err := p.DumpNums([]float64{2}, 1, base, 2)
	if err != nil {
		t.Fatalf("DumpNums: %v", err)
	}
	if next != 3 {
		t.Errorf("next = %d, want 3", next)
	}

	if s, err := p.String(1); err != nil || s != "b" {
		t.Errorf("String(1) = %q, %v; want \"b\"", s, err)
	}
	if n, err := p.Number(2); err != nil || n != 2 {
		t.Errorf("Number(2) = %v, %v; want 2", n, err)
	}
}

func TestStringRoundTrip(t *testing.T) {
	tests := [][]string{
		{},
		{""},
		{"a", "b"},
		{"hello", "", "wörld", "tab\tnewline\n"},
	}

	for _, strs := range tests {
		p := newTestPool(t)
		// Offset the base so the law is checked away from zero.
		if _, err := p.DumpStrings([]string{"pad"}); err != nil {
			t.Fatal(err)
		}

		base, err := p.DumpStrings(strs)
		if err != nil {
			t.Fatalf("DumpStrings(%q): %v", strs, err)
		}
		for i, want := range strs {
			got, err := p.String(base + Offset(i))
			if err != nil {
				t.Fatalf("String(%d): %v", base+Offset(i), err)
			}
			if got != want {
				t.Errorf("String(%d) = %q, want %q", base+Offset(i), got, want)
			}
		}
	}
}

func TestNumberRoundTrip(t *testing.T) {
	nums := []float64{0, -0.5, 1e300, math.Inf(-1), 253, 42}

	p := newTestPool(t)
	base, err := p.DumpStrings([]string{"x"})
	if err != nil {
		t.Fatal(err)
	}
	next, err := p.DumpNums(nums, len(nums), base, 1)
	if err != nil {
		t.Fatalf("DumpNums: %v", err)
	}
	if int(next) != 1+len(nums) {
		t.Errorf("next = %d, want %d", next, 1+len(nums))
	}
	for i, want := range nums {
		got, err := p.Number(Offset(1 + i))
		if err != nil {
			t.Fatal(err)
		}
		if got != want {
			t.Errorf("Number(%d) = %v, want %v", 1+i, got, want)
		}
	}
}

func TestDumpNumsUsesCountPrefix(t *testing.T) {
	p := newTestPool(t)
	next, err := p.DumpNums([]float64{1, 2, 3}, 2, 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	if next != 2 || p.Len() != 2 {
		t.Errorf("next = %d, Len = %d; want 2, 2", next, p.Len())
	}
}

func TestDumpNumsLayoutErrors(t *testing.T) {
	tests := []struct {
		name   string
		nums   []float64
		count  int
		start  Offset
		stride int
	}{
		{"count exceeds slice", []float64{1}, 2, 0, 2},
		{"negative count", []float64{1}, -1, 0, 2},
		{"negative stride", []float64{1}, 1, 0, -1},
		{"collision", []float64{1}, 1, 0, 1},
		{"gap", []float64{1}, 1, 0, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newTestPool(t)
			if _, err := p.DumpStrings([]string{"a", "b"}); err != nil {
				t.Fatal(err)
			}
			_, err := p.DumpNums(tt.nums, tt.count, tt.start, tt.stride)
			if !errors.Is(err, ErrLayout) {
				t.Errorf("err = %v, want ErrLayout", err)
			}
			if p.Len() != 2 {
				t.Errorf("failed dump changed pool length to %d", p.Len())
			}
		})
	}
}

func TestOffsetsStableAcrossAppends(t *testing.T) {
	p := newTestPool(t)
	base, err := p.DumpStrings([]string{"first"})
	if err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 200; i++ {
		if _, err := p.DumpStrings([]string{"filler-filler-filler"}); err != nil {
			t.Fatal(err)
		}
	}

	got, err := p.String(base)
	if err != nil || got != "first" {
		t.Errorf("String(%d) = %q, %v after appends; want \"first\"", base, got, err)
	}
}

func TestLookupErrors(t *testing.T) {
	p := newTestPool(t)
	base, _ := p.DumpStrings([]string{"s"})
	p.DumpNums([]float64{1}, 1, base, 1)

	if _, err := p.Number(0); !errors.Is(err, ErrKindMismatch) {
		t.Errorf("Number(string offset): err = %v, want ErrKindMismatch", err)
	}
	if _, err := p.String(1); !errors.Is(err, ErrKindMismatch) {
		t.Errorf("String(number offset): err = %v, want ErrKindMismatch", err)
	}
	if _, err := p.String(9); !errors.Is(err, ErrNoEntry) {
		t.Errorf("String(9): err = %v, want ErrNoEntry", err)
	}
	if _, ok := p.Kind(9); ok {
		t.Error("Kind(9) reported an entry")
	}
}

func TestStringTooLong(t *testing.T) {
	p := newTestPool(t)
	long := string(make([]byte, math.MaxUint16+1))
	if _, err := p.DumpStrings([]string{long}); !errors.Is(err, ErrLayout) {
		t.Errorf("err = %v, want ErrLayout", err)
	}
}

func TestDumpPropagatesArenaExhaustion(t *testing.T) {
	a := mem.New(16).MustInit()
	p := New(a)
	if _, err := p.DumpStrings([]string{"this string is longer than sixteen bytes"}); !errors.Is(err, mem.ErrExhausted) {
		t.Errorf("err = %v, want mem.ErrExhausted", err)
	}
}

func TestEntriesAndLoad(t *testing.T) {
	src := newTestPool(t)
	base, _ := src.DumpStrings([]string{"a", "b"})
	src.DumpNums([]float64{2, 3.5}, 2, base, 2)
	src.DumpStrings([]string{"c"})

	snap := src.Entries()
	want := []Entry{
		{Offset: 0, Kind: KindString, Str: "a"},
		{Offset: 1, Kind: KindString, Str: "b"},
		{Offset: 2, Kind: KindNumber, Num: 2},
		{Offset: 3, Kind: KindNumber, Num: 3.5},
		{Offset: 4, Kind: KindString, Str: "c"},
	}
	if diff := cmp.Diff(want, snap); diff != "" {
		t.Fatalf("Entries() mismatch (-want +got):\n%s", diff)
	}

	dst := newTestPool(t)
	if err := dst.Load(snap); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if diff := cmp.Diff(snap, dst.Entries()); diff != "" {
		t.Errorf("loaded pool mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadRejectsMisplacedSnapshot(t *testing.T) {
	p := newTestPool(t)
	err := p.Load([]Entry{{Offset: 5, Kind: KindString, Str: "x"}})
	if !errors.Is(err, ErrLayout) {
		t.Errorf("err = %v, want ErrLayout", err)
	}
}
