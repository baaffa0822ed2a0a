package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/tebeka/atexit"

	"github.com/chazu/slotvm/journal"
	"github.com/chazu/slotvm/manifest"
)

// handleJournalCommand processes the `slotvm journal` subcommand.
// Usage:
//
//	slotvm journal [-n 20] [runs.db]           List recent runs
//	slotvm journal [runs.db] <run-id>          Show one run and its trace
//	slotvm journal -delete [runs.db] <run-id>  Remove a run
func handleJournalCommand(args []string, m *manifest.Manifest) {
	fs := flag.NewFlagSet("journal", flag.ExitOnError)
	limit := fs.Int("n", 20, "Number of runs to list (0 for all)")
	del := fs.Bool("delete", false, "Delete the given run instead of showing it")
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: slotvm journal [-n 20] [-delete] [runs.db] [run-id]")
		fmt.Fprintln(os.Stderr, "  runs.db defaults to [journal].path from slotvm.toml")
		fs.PrintDefaults()
	}
	fs.Parse(args)

	path := m.JournalPath()
	rest := fs.Args()
	if len(rest) > 0 {
		if _, err := uuid.Parse(rest[0]); err != nil {
			path, rest = rest[0], rest[1:]
		}
	}
	if path == "" || len(rest) > 1 || (*del && len(rest) != 1) {
		fs.Usage()
		atexit.Exit(exitFault)
	}

	j, err := journal.Open(path)
	if err != nil {
		fatal("opening journal %s: %v", path, err)
	}
	atexit.Register(func() { j.Close() })

	if len(rest) == 1 {
		id, err := uuid.Parse(rest[0])
		if err != nil {
			fatal("invalid run id %q: %v", rest[0], err)
		}
		if *del {
			if err := j.Delete(id); err != nil {
				fatal("%s: %v", id, err)
			}
			fmt.Printf("deleted run %s\n", id)
			return
		}
		run, err := j.Get(id)
		if err != nil {
			fatal("%s: %v", id, err)
		}
		printRun(os.Stdout, run)
		return
	}

	runs, err := j.List(*limit)
	if err != nil {
		fatal("%v", err)
	}
	printRuns(os.Stdout, runs)
}

func outcome(r *journal.Run) string {
	if r.Faulted() {
		return "fault"
	}
	return fmt.Sprintf("%t", r.Status)
}

func printRuns(w io.Writer, runs []journal.Run) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tIMAGE\tSTARTED\tRESULT\tSTEPS")
	for i := range runs {
		r := &runs[i]
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\n", r.ID, r.Image, r.Started.Local().Format(time.DateTime), outcome(r), r.Steps)
	}
	tw.Flush()
}

func printRun(w io.Writer, r *journal.Run) {
	fmt.Fprintf(w, "Run:     %s\n", r.ID)
	fmt.Fprintf(w, "Image:   %s\n", r.Image)
	fmt.Fprintf(w, "Started: %s\n", r.Started.Local().Format(time.RFC3339Nano))
	fmt.Fprintf(w, "Result:  %s\n", outcome(r))
	if r.Faulted() {
		fmt.Fprintf(w, "Fault:   %s\n", r.Fault)
	}
	fmt.Fprintf(w, "Steps:   %d\n", r.Steps)
	if len(r.Trace) > 0 {
		fmt.Fprintf(w, "Trace:   %v\n", r.Trace)
	}
}
