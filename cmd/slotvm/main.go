// slotvm CLI - runs, inspects and records slot VM program images
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/tebeka/atexit"
	"github.com/tliron/commonlog"

	"github.com/chazu/slotvm/manifest"

	_ "github.com/tliron/commonlog/simple"
)

// Process exit codes. A run that ends with ExitVal exits 0 or 1 according to
// its status; everything else that stops the process is exitFault.
const (
	exitTrue  = 0
	exitFalse = 1
	exitFault = 2
)

func main() {
	configPath := flag.String("config", "", "Path to slotvm.toml (default: search upward from the working directory)")
	verbosity := flag.Int("v", -1, "Log verbosity: 0 notice, 1 info, 2+ debug (overrides [log].verbosity)")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: slotvm [options] <command> [args...]\n\n")
		fmt.Fprintf(os.Stderr, "Runs and inspects slot VM program images.\n\n")
		fmt.Fprintf(os.Stderr, "Commands:\n")
		fmt.Fprintf(os.Stderr, "  run [-trace] [-verify] [-journal runs.db] image.svm   Run an image\n")
		fmt.Fprintf(os.Stderr, "  disasm image.svm                                     Print a listing\n")
		fmt.Fprintf(os.Stderr, "  verify image.svm                                     Check an image without running it\n")
		fmt.Fprintf(os.Stderr, "  demo [-o file] [-trace] [-journal runs.db]           Run or write the built-in demo program\n")
		fmt.Fprintf(os.Stderr, "  journal [-n 20] [-delete] [runs.db] [run-id]         List, show or delete recorded runs\n")
		fmt.Fprintf(os.Stderr, "\nOptions:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExit status of run and demo: 0 when the program exits true, 1 when it\n")
		fmt.Fprintf(os.Stderr, "exits false, 2 on a fault or any other error.\n")
	}
	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		atexit.Exit(exitFault)
	}

	m, err := loadConfig(*configPath)
	if err != nil {
		fatal("%v", err)
	}
	if *verbosity >= 0 {
		m.Log.Verbosity = *verbosity
	}
	commonlog.Initialize(m.Log.Verbosity, m.LogFile())
	log.Debugf("arena limit %d, journal %q", m.Engine.ArenaLimit, m.JournalPath())

	args := flag.Args()
	switch args[0] {
	case "run":
		handleRunCommand(args[1:], m)
	case "disasm":
		handleDisasmCommand(args[1:], m)
	case "verify":
		handleVerifyCommand(args[1:], m)
	case "demo":
		handleDemoCommand(args[1:], m)
	case "journal":
		handleJournalCommand(args[1:], m)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", args[0])
		flag.Usage()
		atexit.Exit(exitFault)
	}
	atexit.Exit(exitTrue)
}

var log = commonlog.GetLogger("slotvm")

// loadConfig reads an explicit config file, or searches upward for one,
// falling back to defaults.
func loadConfig(path string) (*manifest.Manifest, error) {
	if path != "" {
		return manifest.LoadFile(path)
	}
	wd, err := os.Getwd()
	if err != nil {
		return nil, err
	}
	m, err := manifest.FindAndLoad(wd)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return manifest.Default(), nil
	}
	return m, nil
}

// fatal reports an error and exits through atexit so that registered
// teardown (arena, journal) still runs.
func fatal(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	atexit.Exit(exitFault)
}
