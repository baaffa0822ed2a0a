package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/tebeka/atexit"

	"github.com/chazu/slotvm/journal"
	"github.com/chazu/slotvm/manifest"
	"github.com/chazu/slotvm/pkg/bytecode"
	"github.com/chazu/slotvm/pkg/mem"
	"github.com/chazu/slotvm/pkg/pool"
)

// runOptions controls a single execution.
type runOptions struct {
	name        string // recorded in the journal
	trace       bool
	verify      bool
	journalPath string
	arenaLimit  int
}

// runResult is what execute learned about a run.
type runResult struct {
	status bool
	steps  uint64
	trace  []int
	runID  string // empty when not journaled
}

// handleRunCommand processes the `slotvm run` subcommand.
func handleRunCommand(args []string, m *manifest.Manifest) {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	trace := fs.Bool("trace", m.Engine.Trace, "Print each instruction as it executes")
	verify := fs.Bool("verify", m.Engine.Verify, "Verify the program before running it")
	journalPath := fs.String("journal", m.JournalPath(), "Record the run in this journal database")
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: slotvm run [-trace] [-verify] [-journal runs.db] image.svm")
		fs.PrintDefaults()
	}
	fs.Parse(args)
	if fs.NArg() != 1 {
		fs.Usage()
		atexit.Exit(exitFault)
	}

	path := fs.Arg(0)
	img, err := bytecode.ReadImageFile(path)
	if err != nil {
		fatal("%v", err)
	}
	name := img.Name
	if name == "" {
		name = filepath.Base(path)
	}

	res, err := execute(os.Stdout, img, runOptions{
		name:        name,
		trace:       *trace,
		verify:      *verify,
		journalPath: *journalPath,
		arenaLimit:  m.Engine.ArenaLimit,
	})
	exitWith(res, err)
}

// exitWith ends the process with the code matching a run's outcome.
func exitWith(res runResult, err error) {
	if err != nil {
		fatal("%v", err)
	}
	if res.status {
		atexit.Exit(exitTrue)
	}
	atexit.Exit(exitFalse)
}

// execute loads img into a fresh arena and runs it. A fault is returned as
// the error; when a journal is configured the run is recorded either way.
func execute(w io.Writer, img *bytecode.Image, opts runOptions) (runResult, error) {
	var res runResult

	arena := mem.New(opts.arenaLimit)
	if err := arena.Init(); err != nil {
		return res, err
	}
	atexit.Register(arena.Teardown)

	lits := pool.New(arena)
	if err := img.LoadLiterals(lits); err != nil {
		return res, fmt.Errorf("loading literals: %w", err)
	}
	prog, err := img.Program()
	if err != nil {
		return res, err
	}

	if opts.verify {
		if err := bytecode.VerifyError(prog, lits); err != nil {
			return res, fmt.Errorf("%s failed verification:\n%w", opts.name, err)
		}
	}

	var j *journal.Journal
	if opts.journalPath != "" {
		j, err = journal.Open(opts.journalPath)
		if err != nil {
			return res, fmt.Errorf("opening journal %s: %w", opts.journalPath, err)
		}
		atexit.Register(func() { j.Close() })
	}

	var vmOpts []bytecode.Option
	if j != nil || opts.trace {
		vmOpts = append(vmOpts, bytecode.WithRecordTrace())
	}
	if opts.trace {
		vmOpts = append(vmOpts, bytecode.WithStepFunc(func(pc int, op bytecode.Op) {
			fmt.Fprintf(w, "%04d  %s\n", pc, bytecode.DisassembleInstruction(prog, pc, lits))
		}))
	}

	vm := bytecode.NewVM(arena, lits, vmOpts...)
	runErr := vm.Init(prog)
	if runErr == nil {
		res.status, runErr = vm.Run()
	}
	res.steps = vm.Steps()
	res.trace = vm.Trace()
	log.Infof("%s: state %s after %d steps, %s", opts.name, vm.State(), res.steps, arena)

	if j != nil {
		run := &journal.Run{
			Image:  opts.name,
			Status: res.status,
			Steps:  res.steps,
			Trace:  res.trace,
		}
		if runErr != nil {
			run.Fault = runErr.Error()
		}
		if err := j.Record(run); err != nil {
			log.Errorf("recording run: %v", err)
		} else {
			res.runID = run.ID.String()
		}
	}

	if runErr != nil {
		return res, runErr
	}
	fmt.Fprintf(w, "%s: %t\n", opts.name, res.status)
	if res.runID != "" {
		fmt.Fprintf(w, "recorded run %s\n", res.runID)
	}
	return res, nil
}

// loadImage reads an image and its literals into a fresh arena, for the
// commands that inspect rather than run.
func loadImage(path string, arenaLimit int) (*bytecode.Image, bytecode.Program, *pool.Pool) {
	img, err := bytecode.ReadImageFile(path)
	if err != nil {
		fatal("%v", err)
	}
	arena := mem.New(arenaLimit)
	if err := arena.Init(); err != nil {
		fatal("%v", err)
	}
	atexit.Register(arena.Teardown)

	lits := pool.New(arena)
	if err := img.LoadLiterals(lits); err != nil {
		fatal("loading literals: %v", err)
	}
	prog, err := img.Program()
	if err != nil {
		fatal("%v", err)
	}
	return img, prog, lits
}

// handleDisasmCommand processes the `slotvm disasm` subcommand.
func handleDisasmCommand(args []string, m *manifest.Manifest) {
	if len(args) != 1 {
		fmt.Fprintln(os.Stderr, "Usage: slotvm disasm image.svm")
		atexit.Exit(exitFault)
	}
	img, prog, lits := loadImage(args[0], m.Engine.ArenaLimit)
	name := img.Name
	if name == "" {
		name = filepath.Base(args[0])
	}
	fmt.Print(bytecode.DisassembleWithName(name, prog, lits))
}

// handleVerifyCommand processes the `slotvm verify` subcommand.
func handleVerifyCommand(args []string, m *manifest.Manifest) {
	if len(args) != 1 {
		fmt.Fprintln(os.Stderr, "Usage: slotvm verify image.svm")
		atexit.Exit(exitFault)
	}
	_, prog, lits := loadImage(args[0], m.Engine.ArenaLimit)
	problems := bytecode.Verify(prog, lits)
	if len(problems) == 0 {
		fmt.Printf("%s: ok (%d instructions, %d literals)\n", args[0], len(prog), lits.Len())
		return
	}
	for _, p := range problems {
		fmt.Fprintf(os.Stderr, "%s: %v\n", args[0], p)
	}
	atexit.Exit(exitFault)
}
