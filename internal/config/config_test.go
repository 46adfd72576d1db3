package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/kobzarvs/qdoc/internal/linestream"
)

func writeFile(t *testing.T, path, contents string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func TestConfigDirEnv(t *testing.T) {
	t.Setenv("QDOC_CONFIG_HOME", "/tmp/qdoc-config")
	dir, err := ConfigDir()
	if err != nil {
		t.Fatalf("ConfigDir error: %v", err)
	}
	if dir != "/tmp/qdoc-config" {
		t.Fatalf("ConfigDir = %q, want %q", dir, "/tmp/qdoc-config")
	}

	t.Setenv("QDOC_CONFIG_HOME", "")
	t.Setenv("XDG_CONFIG_HOME", "/tmp/xdg")
	dir, err = ConfigDir()
	if err != nil {
		t.Fatalf("ConfigDir error: %v", err)
	}
	if dir != "/tmp/xdg/qdoc" {
		t.Fatalf("ConfigDir = %q, want %q", dir, "/tmp/xdg/qdoc")
	}
}

func TestStateDirEnv(t *testing.T) {
	t.Setenv("QDOC_STATE_HOME", "")
	t.Setenv("XDG_STATE_HOME", "/tmp/state")
	dir, err := StateDir()
	if err != nil {
		t.Fatalf("StateDir error: %v", err)
	}
	if dir != "/tmp/state/qdoc" {
		t.Fatalf("StateDir = %q, want %q", dir, "/tmp/state/qdoc")
	}
}

func TestLoadMissingUsesDefaults(t *testing.T) {
	t.Setenv("QDOC_CONFIG_HOME", t.TempDir())
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	opts := cfg.DocumentOptions()
	if !opts.Multiline || !opts.AutodetectEncoding || opts.ReadOnly {
		t.Fatalf("DocumentOptions = %+v", opts)
	}
	if cfg.Document.TabWidth != 4 {
		t.Fatalf("TabWidth = %d, want 4", cfg.Document.TabWidth)
	}
}

func TestLoadOverrides(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("QDOC_CONFIG_HOME", dir)

	writeFile(t, filepath.Join(dir, "config.toml"), `
[document]
multiline = false
autodetect-encoding = false
max-undo = 50
camel-case-words = true
tab-width = 8

[save]
encoding = "UTF-16LE"
line-ending = "crlf"
bom = true

[session]
autosave = "5s"
`)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	opts := cfg.DocumentOptions()
	if opts.Multiline || opts.AutodetectEncoding || !opts.CamelCaseWords || opts.MaxUndo != 50 {
		t.Fatalf("DocumentOptions = %+v", opts)
	}
	if cfg.Document.TabWidth != 8 {
		t.Fatalf("TabWidth = %d, want 8", cfg.Document.TabWidth)
	}
	f, err := cfg.SaveFormat()
	if err != nil {
		t.Fatalf("SaveFormat error: %v", err)
	}
	want := linestream.Format{Encoding: linestream.UTF16LE, LineEnding: linestream.CRLF, BOM: true}
	if f != want {
		t.Fatalf("SaveFormat = %v, want %v", f, want)
	}
	if d, _ := cfg.AutosaveInterval(); d != 5*time.Second {
		t.Fatalf("AutosaveInterval = %v", d)
	}
	if d, _ := cfg.DebounceInterval(); d != 200*time.Millisecond {
		t.Fatalf("DebounceInterval = %v", d)
	}
	if !cfg.Session.Enabled {
		t.Fatalf("Session.Enabled reset by partial section")
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	tests := []struct {
		name, body, want string
	}{
		{"encoding", "[save]\nencoding = \"latin1\"\n", "save.encoding"},
		{"duration", "[watch]\ndebounce = \"soon\"\n", "watch.debounce"},
		{"unknown key", "[document]\nwrap = true\n", "unknown key"},
	}
	for _, tt := range tests {
		path := filepath.Join(t.TempDir(), "config.toml")
		writeFile(t, path, tt.body)
		if _, err := LoadFile(path); err == nil || !strings.Contains(err.Error(), tt.want) {
			t.Fatalf("%s: err = %v, want containing %q", tt.name, err, tt.want)
		}
	}
}
