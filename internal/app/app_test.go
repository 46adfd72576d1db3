package app

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kobzarvs/qdoc/internal/watcher"
)

func setupEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("QDOC_CONFIG_HOME", filepath.Join(dir, "config"))
	t.Setenv("QDOC_STATE_HOME", filepath.Join(dir, "state"))
	t.Setenv("QDOC_LOG_FILE", filepath.Join(dir, "qdoc.log"))
	return dir
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	a := New(args)
	a.SetOutput(&stdout, &stderr)
	err := a.RunContext(context.Background())
	return stdout.String(), err
}

func mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, err := run(t, args...)
	if err != nil {
		t.Fatalf("qdoc %s: %v", strings.Join(args, " "), err)
	}
	return out
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	return string(data)
}

func TestUsageErrors(t *testing.T) {
	setupEnv(t)
	for _, args := range [][]string{nil, {"frobnicate"}, {"info"}, {"mark", "only-file"}} {
		if _, err := run(t, args...); !errors.Is(err, ErrUsage) {
			t.Fatalf("qdoc %v = %v, want ErrUsage", args, err)
		}
	}
}

func TestInfo(t *testing.T) {
	dir := setupEnv(t)
	path := filepath.Join(dir, "main.go")
	writeFile(t, path, "package main\n\n\tfunc main() {}\n")

	out := mustRun(t, "info", path)
	for _, want := range []string{
		"encoding:    utf-8",
		"line-ending: lf",
		"lines:       4",
		"blank:       2",
		"width:       18",
		"language:    go",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("info output missing %q:\n%s", want, out)
		}
	}
}

func TestInfoMissingFile(t *testing.T) {
	dir := setupEnv(t)
	if _, err := run(t, "info", filepath.Join(dir, "nope.txt")); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("info on missing file = %v, want not-exist", err)
	}
}

func TestConvert(t *testing.T) {
	dir := setupEnv(t)
	src := filepath.Join(dir, "a.txt")
	dst := filepath.Join(dir, "b.txt")
	writeFile(t, src, "a\nb\n")

	mustRun(t, "convert", src, "-o", dst, "-encoding", "utf-16le", "-eol", "crlf")
	want := "\xff\xfea\x00\r\x00\n\x00b\x00\r\x00\n\x00"
	if got := readFile(t, dst); got != want {
		t.Fatalf("converted bytes = %q, want %q", got, want)
	}
	if got := readFile(t, src); got != "a\nb\n" {
		t.Fatalf("source changed: %q", got)
	}

	out := mustRun(t, "info", dst)
	if !strings.Contains(out, "utf-16le") || !strings.Contains(out, "crlf") {
		t.Fatalf("info after convert:\n%s", out)
	}

	mustRun(t, "convert", "-encoding", "utf-8", "-bom=false", dst)
	if got := readFile(t, dst); got != "a\r\nb\r\n" {
		t.Fatalf("converted back = %q", got)
	}
}

func TestConvertBadEncoding(t *testing.T) {
	dir := setupEnv(t)
	src := filepath.Join(dir, "a.txt")
	writeFile(t, src, "a")
	if _, err := run(t, "convert", src, "-encoding", "latin-9"); err == nil {
		t.Fatalf("convert with unknown encoding succeeded")
	}
}

func TestTokens(t *testing.T) {
	dir := setupEnv(t)
	path := filepath.Join(dir, "main.go")
	writeFile(t, path, "package main\n// note\n")

	out := mustRun(t, "tokens", path)
	for _, want := range []string{`1:1 keyword "package"`, `2:1 comment "// note"`} {
		if !strings.Contains(out, want) {
			t.Fatalf("tokens output missing %q:\n%s", want, out)
		}
	}

	txt := filepath.Join(dir, "notes.unknown")
	writeFile(t, txt, "x")
	if _, err := run(t, "tokens", txt); err == nil {
		t.Fatalf("tokens on unhighlighted file succeeded")
	}
}

func TestMarkers(t *testing.T) {
	dir := setupEnv(t)
	path := filepath.Join(dir, "list.txt")
	writeFile(t, path, "a\nb\nc\n")

	if out := mustRun(t, "mark", path, "2", "-note", "todo"); out != "added bookmark at line 2\n" {
		t.Fatalf("mark = %q", out)
	}
	mustRun(t, "mark", "-kind", "breakpoint", path, "3")
	if out := mustRun(t, "marks", path); out != "2 bookmark todo\n3 breakpoint \n" {
		t.Fatalf("marks = %q", out)
	}

	script := filepath.Join(dir, "edit.toml")
	writeFile(t, script, "[[step]]\nop = \"insert\"\nat = [1, 1]\ntext = \"x\\n\"\n")
	mustRun(t, "apply", path, script)
	if got := readFile(t, path); got != "x\na\nb\nc\n" {
		t.Fatalf("file after apply = %q", got)
	}
	if out := mustRun(t, "marks", path, "-kind", "bookmark"); out != "3 bookmark todo\n" {
		t.Fatalf("marks after insert = %q", out)
	}
	if out := mustRun(t, "marks", path, "-kind", "breakpoint", "-near", "1"); out != "4 breakpoint \n" {
		t.Fatalf("nearest breakpoint = %q", out)
	}
	if out := mustRun(t, "mark", path, "3"); out != "removed bookmark at line 3\n" {
		t.Fatalf("second mark = %q", out)
	}
	if out := mustRun(t, "marks", path, "-kind", "bookmark"); out != "" {
		t.Fatalf("marks after toggle off = %q", out)
	}
	if _, err := run(t, "mark", path, "99"); err == nil {
		t.Fatalf("mark past the end succeeded")
	}
}

func TestMarkWithoutSession(t *testing.T) {
	dir := setupEnv(t)
	if err := os.MkdirAll(filepath.Join(dir, "config"), 0o755); err != nil {
		t.Fatal(err)
	}
	writeFile(t, filepath.Join(dir, "config", "config.toml"), "[session]\nenabled = false\n")
	path := filepath.Join(dir, "a.txt")
	writeFile(t, path, "a")
	if _, err := run(t, "mark", path, "1"); err == nil {
		t.Fatalf("mark with session disabled succeeded")
	}
}

func TestReload(t *testing.T) {
	dir := setupEnv(t)
	path := filepath.Join(dir, "live.txt")
	writeFile(t, path, "one\n")

	var stdout, stderr bytes.Buffer
	a := New(nil)
	a.SetOutput(&stdout, &stderr)
	if err := a.setup("", false, false); err != nil {
		t.Fatalf("setup: %v", err)
	}
	defer a.shutdown()

	buf, abs, err := a.open(path, false)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	writeFile(t, path, "one\ntwo\nthree\n")
	a.reload(buf, abs, watcher.Event{Path: abs, Op: watcher.OpWrite})
	if got := buf.LineCount(); got != 4 {
		t.Fatalf("LineCount after reload = %d, want 4", got)
	}
	if !strings.Contains(stdout.String(), "reloaded") {
		t.Fatalf("reload output = %q", stdout.String())
	}

	a.reload(buf, abs, watcher.Event{Path: abs, Op: watcher.OpRemove})
	if !strings.Contains(stdout.String(), "removed") {
		t.Fatalf("remove output = %q", stdout.String())
	}
}

func TestWatchStopsOnCancel(t *testing.T) {
	dir := setupEnv(t)
	path := filepath.Join(dir, "live.txt")
	writeFile(t, path, "one\n")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var stdout, stderr bytes.Buffer
	a := New([]string{"watch", path})
	a.SetOutput(&stdout, &stderr)
	if err := a.RunContext(ctx); err != nil {
		t.Fatalf("watch with cancelled context = %v", err)
	}
	if !strings.Contains(stdout.String(), "watching") {
		t.Fatalf("watch output = %q", stdout.String())
	}
}
