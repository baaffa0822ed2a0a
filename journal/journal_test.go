package journal

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
)

func openTestJournal(t *testing.T) *Journal {
	t.Helper()
	j, err := Open(filepath.Join(t.TempDir(), "runs.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { j.Close() })
	return j
}

func TestRecordAndGet(t *testing.T) {
	j := openTestJournal(t)

	run := &Run{
		Image:   "reference",
		Started: time.Date(2026, 3, 1, 12, 0, 0, 42, time.UTC),
		Status:  true,
		Steps:   10,
		Trace:   []int{0, 1, 2, 3, 4, 5, 7, 8, 9, 10},
	}
	if err := j.Record(run); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if run.ID == uuid.Nil {
		t.Fatal("Record did not assign an ID")
	}

	got, err := j.Get(run.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if diff := cmp.Diff(run, got); diff != "" {
		t.Errorf("run mismatch (-want +got):\n%s", diff)
	}
	if got.Faulted() {
		t.Error("Faulted() = true for a clean run")
	}
}

func TestRecordFaultWithoutTrace(t *testing.T) {
	j := openTestJournal(t)

	run := &Run{
		Image: "broken",
		Fault: "bytecode: out-of-range jump at pc 1: target 3 outside [0, 3)",
		Steps: 2,
	}
	if err := j.Record(run); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if run.Started.IsZero() {
		t.Error("Record did not set Started")
	}

	got, err := j.Get(run.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !got.Faulted() || got.Fault != run.Fault {
		t.Errorf("Fault = %q, want %q", got.Fault, run.Fault)
	}
	if got.Status {
		t.Error("Status = true for a faulted run")
	}
	if got.Trace != nil {
		t.Errorf("Trace = %v, want nil", got.Trace)
	}
}

func TestGetMissing(t *testing.T) {
	j := openTestJournal(t)
	if _, err := j.Get(uuid.New()); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("Get of unknown run = %v, want ErrRunNotFound", err)
	}
}

func TestDuplicateID(t *testing.T) {
	j := openTestJournal(t)
	run := &Run{Image: "a"}
	if err := j.Record(run); err != nil {
		t.Fatalf("Record: %v", err)
	}
	dup := &Run{ID: run.ID, Image: "b"}
	if err := j.Record(dup); err == nil {
		t.Error("Record accepted a duplicate ID")
	}
}

func TestListNewestFirst(t *testing.T) {
	j := openTestJournal(t)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	for i, name := range []string{"first", "second", "third"} {
		run := &Run{
			Image:   name,
			Started: base.Add(time.Duration(i) * time.Minute),
			Trace:   []int{0, 1},
		}
		if err := j.Record(run); err != nil {
			t.Fatalf("Record %s: %v", name, err)
		}
	}

	runs, err := j.List(0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	var names []string
	for _, r := range runs {
		names = append(names, r.Image)
		if r.Trace != nil {
			t.Errorf("List returned a trace for %s", r.Image)
		}
	}
	if diff := cmp.Diff([]string{"third", "second", "first"}, names); diff != "" {
		t.Errorf("order mismatch (-want +got):\n%s", diff)
	}

	runs, err = j.List(2)
	if err != nil {
		t.Fatalf("List(2): %v", err)
	}
	if len(runs) != 2 {
		t.Errorf("List(2) returned %d runs", len(runs))
	}
}

func TestDelete(t *testing.T) {
	j := openTestJournal(t)
	run := &Run{Image: "gone", Trace: []int{0}}
	if err := j.Record(run); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if err := j.Delete(run.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := j.Get(run.ID); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("Get after Delete = %v, want ErrRunNotFound", err)
	}
	if err := j.Delete(run.ID); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("second Delete = %v, want ErrRunNotFound", err)
	}
}

func TestReopenKeepsRuns(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runs.db")
	j, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	run := &Run{Image: "persisted", Status: true, Trace: []int{0, 3}}
	if err := j.Record(run); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if err := j.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	j, err = Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer j.Close()
	got, err := j.Get(run.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if diff := cmp.Diff(run.Trace, got.Trace); diff != "" {
		t.Errorf("trace mismatch (-want +got):\n%s", diff)
	}
}
