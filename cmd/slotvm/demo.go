package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/tebeka/atexit"

	"github.com/chazu/slotvm/manifest"
	"github.com/chazu/slotvm/pkg/bytecode"
	"github.com/chazu/slotvm/pkg/mem"
	"github.com/chazu/slotvm/pkg/pool"
)

const demoName = "demo"

// buildDemo assembles the demo program and its literals. Slot 0 gets the
// string "b" and is copied to slot 1; since "b" is truthy the jump skips to
// the second half, which stores 253 and 2.0 and exits with slot 0.
func buildDemo(arena *mem.Arena) (bytecode.Program, *pool.Pool, error) {
	lits := pool.New(arena)
	base, err := lits.DumpStrings([]string{"a", "b"})
	if err != nil {
		return nil, nil, err
	}
	if _, err := lits.DumpNums([]float64{2}, 1, base, 2); err != nil {
		return nil, nil, err
	}

	b := bytecode.NewBuilder()
	b.RegVarDecl(255, 255)
	b.VarDecl(0)
	b.VarDecl(1)
	b.AssignString(0, uint8(base)+1)
	b.AssignVar(1, 0)
	second := b.NewLabel()
	b.JumpTrue(1, second)
	exit1 := b.NewLabel()
	b.Jump(exit1)
	b.Mark(second)
	b.AssignSmallInt(0, 253)
	b.AssignNumber(1, uint8(base)+2)
	b.JumpFalse(1, exit1)
	b.ExitVal(0)
	b.Mark(exit1)
	b.ExitVal(1)

	prog, err := b.Program()
	if err != nil {
		return nil, nil, err
	}
	return prog, lits, nil
}

// demoImage builds the demo in a scratch arena and captures it as an image.
func demoImage() (*bytecode.Image, error) {
	arena := mem.New(0)
	if err := arena.Init(); err != nil {
		return nil, err
	}
	defer arena.Teardown()

	prog, lits, err := buildDemo(arena)
	if err != nil {
		return nil, err
	}
	return bytecode.NewImage(demoName, prog, lits), nil
}

// handleDemoCommand processes the `slotvm demo` subcommand.
func handleDemoCommand(args []string, m *manifest.Manifest) {
	fs := flag.NewFlagSet("demo", flag.ExitOnError)
	out := fs.String("o", "", "Write the demo image to this file instead of running it")
	trace := fs.Bool("trace", m.Engine.Trace, "Print each instruction as it executes")
	journalPath := fs.String("journal", m.JournalPath(), "Record the run in this journal database")
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: slotvm demo [-o file] [-trace] [-journal runs.db]")
		fs.PrintDefaults()
	}
	fs.Parse(args)
	if fs.NArg() != 0 {
		fs.Usage()
		atexit.Exit(exitFault)
	}

	img, err := demoImage()
	if err != nil {
		fatal("building demo: %v", err)
	}

	if *out != "" {
		if err := bytecode.WriteImageFile(*out, img); err != nil {
			fatal("%v", err)
		}
		fmt.Printf("wrote %s (%d instructions, %d literals)\n", *out, len(img.Code)/bytecode.InstructionWidth, len(img.Literals))
		return
	}

	res, err := execute(os.Stdout, img, runOptions{
		name:        demoName,
		trace:       *trace,
		verify:      true,
		journalPath: *journalPath,
		arenaLimit:  m.Engine.ArenaLimit,
	})
	exitWith(res, err)
}
