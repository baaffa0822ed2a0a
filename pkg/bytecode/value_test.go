package bytecode

import (
	"errors"
	"math"
	"testing"

	"github.com/chazu/slotvm/pkg/mem"
	"github.com/chazu/slotvm/pkg/pool"
)

func TestTruthy(t *testing.T) {
	arena := newArena(t, mem.DefaultLimit)
	p := pool.New(arena)
	if _, err := p.DumpStrings([]string{"", "x"}); err != nil {
		t.Fatalf("DumpStrings: %v", err)
	}

	tests := []struct {
		name string
		v    Value
		want bool
	}{
		{"undefined", Undefined(), false},
		{"boolean false", Bool(false), false},
		{"boolean true", Bool(true), true},
		{"smallint zero", SmallInt(0), false},
		{"smallint nonzero", SmallInt(253), true},
		{"number zero", Number(0), false},
		{"number negative zero", Number(math.Copysign(0, -1)), false},
		{"number NaN", Number(math.NaN()), false},
		{"number nonzero", Number(2), true},
		{"number infinity", Number(math.Inf(-1)), true},
		{"empty string", StringRef(0), false},
		{"non-empty string", StringRef(1), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.v.Truthy(p)
			if err != nil {
				t.Fatalf("Truthy: %v", err)
			}
			if got != tt.want {
				t.Errorf("Truthy(%v) = %t, want %t", tt.v, got, tt.want)
			}
		})
	}
}

func TestTruthyDanglingStringRef(t *testing.T) {
	arena := newArena(t, mem.DefaultLimit)
	p := pool.New(arena)
	if _, err := p.DumpNums([]float64{1}, 1, 0, 0); err != nil {
		t.Fatalf("DumpNums: %v", err)
	}

	tests := []struct {
		name string
		off  pool.Offset
		want error
	}{
		{"points at number", 0, pool.ErrKindMismatch},
		{"past end", 7, pool.ErrNoEntry},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := StringRef(tt.off).Truthy(p)
			if !errors.Is(err, tt.want) {
				t.Errorf("Truthy error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestBooleanSlotExitStatus(t *testing.T) {
	for _, b := range []bool{false, true} {
		arena := newArena(t, mem.DefaultLimit)
		vm := NewVM(arena, nil)
		prog := Encode(RegVarDecl{Min: 0, Max: 0}, ExitVal{Slot: 0})
		if err := vm.Init(prog); err != nil {
			t.Fatalf("Init: %v", err)
		}
		vm.slots.set(0, Bool(b))
		got, err := vm.Run()
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
		if got != b {
			t.Errorf("exit with boolean %t = %t", b, got)
		}
	}
}
