package manifest

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/chazu/slotvm/pkg/mem"
)

func writeManifest(t *testing.T, dir, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, FileName), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestLoadManifest(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, `
[engine]
arena-limit = 65536
trace = true
verify = true

[log]
verbosity = 2
file = "slotvm.log"

[journal]
path = "runs.db"
`)

	m, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if m.Engine.ArenaLimit != 65536 {
		t.Errorf("arena-limit = %d, want 65536", m.Engine.ArenaLimit)
	}
	if !m.Engine.Trace {
		t.Error("engine trace = false, want true")
	}
	if !m.Engine.Verify {
		t.Error("engine verify = false, want true")
	}
	if m.Log.Verbosity != 2 {
		t.Errorf("log verbosity = %d, want 2", m.Log.Verbosity)
	}
	if got, want := m.LogFile(), filepath.Join(m.Dir, "slotvm.log"); got != want {
		t.Errorf("LogFile() = %q, want %q", got, want)
	}
	if got, want := m.JournalPath(), filepath.Join(m.Dir, "runs.db"); got != want {
		t.Errorf("JournalPath() = %q, want %q", got, want)
	}
}

func TestLoadManifestDefaults(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, `
[log]
verbosity = 1
`)

	m, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if m.Engine.ArenaLimit != mem.DefaultLimit {
		t.Errorf("default arena-limit = %d, want %d", m.Engine.ArenaLimit, mem.DefaultLimit)
	}
	if m.Engine.Trace {
		t.Error("default trace = true, want false")
	}
	if m.JournalPath() != "" {
		t.Errorf("default journal path = %q, want empty", m.JournalPath())
	}
	if m.LogFile() != "" {
		t.Errorf("default log file = %q, want empty", m.LogFile())
	}
}

func TestDefault(t *testing.T) {
	m := Default()
	if m.Engine.ArenaLimit != mem.DefaultLimit {
		t.Errorf("arena-limit = %d, want %d", m.Engine.ArenaLimit, mem.DefaultLimit)
	}
	if m.Dir != "" {
		t.Errorf("Dir = %q, want empty", m.Dir)
	}
}

func TestAbsolutePathsKept(t *testing.T) {
	dir := t.TempDir()
	abs := filepath.Join(t.TempDir(), "elsewhere.db")
	writeManifest(t, dir, "[journal]\npath = \""+filepath.ToSlash(abs)+"\"\n")

	m, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if m.JournalPath() != abs {
		t.Errorf("JournalPath() = %q, want %q", m.JournalPath(), abs)
	}
}

func TestLoadManifestErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"syntax", "[engine\n", "parse error"},
		{"wrong type", "[engine]\narena-limit = \"big\"\n", "parse error"},
		{"unknown key", "[engine]\narena-size = 10\n", "engine.arena-size"},
		{"negative limit", "[engine]\narena-limit = -1\n", "arena-limit"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			writeManifest(t, dir, tt.content)
			_, err := Load(dir)
			if err == nil {
				t.Fatal("Load succeeded")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}

func TestLoadMissing(t *testing.T) {
	if _, err := Load(t.TempDir()); err == nil {
		t.Error("Load of a directory without slotvm.toml succeeded")
	}
}

func TestFindAndLoad(t *testing.T) {
	root := t.TempDir()
	writeManifest(t, root, "[engine]\ntrace = true\n")

	nested := filepath.Join(root, "a", "b", "c")
	if err := os.MkdirAll(nested, 0755); err != nil {
		t.Fatal(err)
	}

	m, err := FindAndLoad(nested)
	if err != nil {
		t.Fatalf("FindAndLoad failed: %v", err)
	}
	if m == nil {
		t.Fatal("FindAndLoad returned nil manifest")
	}
	if !m.Engine.Trace {
		t.Error("found manifest has trace = false")
	}

	absRoot, _ := filepath.Abs(root)
	if m.Dir != absRoot {
		t.Errorf("Dir = %q, want %q", m.Dir, absRoot)
	}
}
