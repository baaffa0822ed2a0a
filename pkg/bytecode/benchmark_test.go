// Package bytecode benchmarks
//
// These benchmarks measure the performance of:
// - VM initialization and execution
// - Instruction decoding
// - Image serialization/deserialization
//
// Run: go test -bench=. ./pkg/bytecode/...
// Run with memory stats: go test -bench=. -benchmem ./pkg/bytecode/...
package bytecode

import (
	"testing"

	"github.com/chazu/slotvm/pkg/mem"
)

// ============================================================
// Execution Benchmarks
// ============================================================

// BenchmarkRunReference measures a full init+run of the reference program
// on a fresh arena each iteration.
func BenchmarkRunReference(b *testing.B) {
	prog := referenceProgram()

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		arena := mem.New(mem.DefaultLimit).MustInit()
		vm := NewVM(arena, referencePool(b, arena))
		if err := vm.Init(prog); err != nil {
			b.Fatal(err)
		}
		if _, err := vm.Run(); err != nil {
			b.Fatal(err)
		}
		arena.Teardown()
	}
}

// BenchmarkRunLoop measures dispatch on a program that bounces through
// relative jumps before exiting.
func BenchmarkRunLoop(b *testing.B) {
	bld := NewBuilder()
	bld.RegVarDecl(0, 0)
	for j := 0; j < 200; j++ {
		next := bld.NewLabel()
		bld.Jump(next)
		bld.Emit(Nop{})
		bld.Mark(next)
	}
	bld.ExitVal(0)
	prog := bld.MustProgram()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		arena := mem.New(mem.DefaultLimit).MustInit()
		vm := NewVM(arena, nil)
		if err := vm.Init(prog); err != nil {
			b.Fatal(err)
		}
		if _, err := vm.Run(); err != nil {
			b.Fatal(err)
		}
		arena.Teardown()
	}
}

// ============================================================
// Decoding Benchmarks
// ============================================================

func BenchmarkDecode(b *testing.B) {
	prog := referenceProgram()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		for _, in := range prog {
			if _, err := in.Decode(); err != nil {
				b.Fatal(err)
			}
		}
	}
}

// ============================================================
// Serialization Benchmarks
// ============================================================

func BenchmarkMarshalImage(b *testing.B) {
	img := referenceImage(b)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := MarshalImage(img); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkUnmarshalImage(b *testing.B) {
	data, err := MarshalImage(referenceImage(b))
	if err != nil {
		b.Fatal(err)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := UnmarshalImage(data); err != nil {
			b.Fatal(err)
		}
	}
}
