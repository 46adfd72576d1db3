package session

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/kobzarvs/qdoc/internal/document"
	"github.com/kobzarvs/qdoc/internal/linestream"
	"github.com/kobzarvs/qdoc/internal/markers"
)

func TestManagerPersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "session.json")
	m, err := NewManager(path, 0)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	m.SetFileState("/tmp/a.txt", FileState{
		Encoding: "utf-16le",
		Markers:  []MarkerState{{Kind: "bookmark", Line: 3, Note: "todo"}},
	})
	if err := m.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if err := m.Stop(); err != nil {
		t.Fatalf("second Stop: %v", err)
	}

	again, err := NewManager(path, 0)
	if err != nil {
		t.Fatalf("NewManager reload: %v", err)
	}
	state, ok := again.FileState("/tmp/a.txt")
	if !ok || len(state.Markers) != 1 || state.Markers[0].Note != "todo" {
		t.Fatalf("FileState = %+v, %v", state, ok)
	}
	if again.ActiveFile() != "/tmp/a.txt" {
		t.Fatalf("ActiveFile = %q", again.ActiveFile())
	}
	again.Forget("/tmp/a.txt")
	if files := again.Files(); len(files) != 0 {
		t.Fatalf("Files after Forget = %v", files)
	}
}

func TestManagerCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	m, err := NewManager(path, 0)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	if files := m.Files(); len(files) != 0 {
		t.Fatalf("Files = %v", files)
	}
}

func TestAutosave(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	m, err := NewManager(path, 10*time.Millisecond)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	defer m.Stop()
	m.SetFileState("/x", FileState{})
	deadline := time.Now().Add(2 * time.Second)
	for {
		if _, err := os.Stat(path); err == nil {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("autosave did not write %s", path)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestCaptureRestore(t *testing.T) {
	b := document.New(document.DefaultOptions())
	if err := b.Load(strings.NewReader("a\r\nb\r\nc"), "f.txt"); err != nil {
		t.Fatalf("Load: %v", err)
	}
	b.ToggleMarker(1, markers.Breakpoint, "cond")
	b.ToggleMarker(2, markers.Bookmark, nil)

	state := Capture(b)
	if state.Encoding != "utf-8" || state.LineEnding != "crlf" || len(state.Markers) != 2 {
		t.Fatalf("Capture = %+v", state)
	}
	f, ok := state.Format()
	if !ok || f.LineEnding != linestream.CRLF {
		t.Fatalf("Format = %v, %v", f, ok)
	}

	fresh := document.New(document.DefaultOptions())
	fresh.SetText("a\nb", nil)
	if err := Restore(fresh, state); err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if n := fresh.Markers().Len(); n != 1 {
		t.Fatalf("restored %d markers, want 1 (line 2 is out of range)", n)
	}
	m, _ := fresh.Markers().Find(1, markers.Breakpoint)
	if m == nil || m.Payload != "cond" {
		t.Fatalf("restored marker = %+v", m)
	}
	if err := Restore(fresh, state); err != nil || fresh.Markers().Len() != 1 {
		t.Fatalf("second Restore duplicated markers")
	}

	bad := FileState{Markers: []MarkerState{{Kind: "flag", Line: 0}}}
	if err := Restore(fresh, bad); err == nil {
		t.Fatalf("Restore accepted unknown kind")
	}
}
