package document

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/kobzarvs/qdoc/internal/history"
	"github.com/kobzarvs/qdoc/internal/linestream"
	"github.com/kobzarvs/qdoc/internal/logger"
)

// LoadError reports a failed load. Line and Col are 1-based and zero when
// the failure has no position.
type LoadError struct {
	Filename string
	Line     int
	Col      int
	Err      error
}

func (e *LoadError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("load %s:%d:%d: %v", e.Filename, e.Line, e.Col, e.Err)
	}
	return fmt.Sprintf("load %s: %v", e.Filename, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// Load replaces the content with the lines decoded from r. On a decode
// failure the buffer is reset to one empty line and a *LoadError is
// returned. Listeners are told about the replacement either way.
func (b *Buffer) Load(r io.Reader, filename string) error {
	rd := linestream.NewReader(r, b.opts.AutodetectEncoding)
	lines, err := rd.ReadAll()
	b.filename = filename
	if err != nil {
		b.reset(nil, history.Unchanged)
		b.format = linestream.Format{Encoding: linestream.EncodingUnknown, LineEnding: linestream.LineEndingUnknown}
		b.notifyWhole(nil, ReasonLoad)

		lerr := &LoadError{Filename: filename, Err: err}
		var derr *linestream.DecodeError
		if errors.As(err, &derr) {
			lerr.Line, lerr.Col = derr.Line, derr.Col
		}
		logger.Warn("load failed", "file", filename, "err", err)
		return lerr
	}

	if !b.opts.Multiline {
		lines = collapse(lines)
	}
	b.reset(lines, history.Unchanged)
	b.format = rd.Format()
	logger.Debug("loaded", "file", filename, "lines", len(b.lines), "format", b.format.String())
	b.notifyWhole(nil, ReasonLoad)
	return nil
}

// LoadFile opens path and loads it. If the file cannot be opened the
// buffer is left untouched.
func (b *Buffer) LoadFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return &LoadError{Filename: path, Err: err}
	}
	defer f.Close()
	return b.Load(f, path)
}

func (b *Buffer) saveFormat(f *linestream.Format) linestream.Format {
	if f != nil {
		return f.Normalized()
	}
	if b.format.Encoding != linestream.EncodingUnknown {
		return b.format.Normalized()
	}
	return linestream.DefaultFormat()
}

func (b *Buffer) encode(w io.Writer, f linestream.Format) error {
	wr := linestream.NewWriter(w, f)
	if err := wr.WriteLines(b.lines); err != nil {
		return err
	}
	return wr.Close()
}

// commitSave records a successful save of the current content in format f.
func (b *Buffer) commitSave(f linestream.Format) {
	b.log.MarkSaved()
	for i, m := range b.marks {
		if m == history.Changed {
			b.marks[i] = history.Saved
		}
	}
	b.format = f
	b.notify(ChangeEvent{Op: &history.Operation{Action: history.ContentSaved}, Reason: ReasonSave})
}

// Save writes the content to w using f, or the detected format when f is
// nil. The saved state is unchanged on failure.
func (b *Buffer) Save(w io.Writer, f *linestream.Format) error {
	format := b.saveFormat(f)
	if err := b.encode(w, format); err != nil {
		logger.Warn("save failed", "file", b.filename, "err", err)
		return fmt.Errorf("save %s: %w", b.filename, err)
	}
	b.commitSave(format)
	return nil
}

// SaveFile writes to a temporary file beside path and renames it over
// path, keeping the existing file mode.
func (b *Buffer) SaveFile(path string, f *linestream.Format) (err error) {
	format := b.saveFormat(f)
	defer func() {
		if err != nil {
			logger.Warn("save failed", "file", path, "err", err)
			err = fmt.Errorf("save %s: %w", path, err)
		}
	}()

	mode := os.FileMode(0o644)
	if st, statErr := os.Stat(path); statErr == nil {
		mode = st.Mode().Perm()
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	cleanup := func() {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
	}
	if err := b.encode(tmp, format); err != nil {
		cleanup()
		return err
	}
	if err := tmp.Chmod(mode); err != nil {
		cleanup()
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return err
	}

	b.filename = path
	logger.Debug("saved", "file", path, "lines", len(b.lines), "format", format.String())
	b.commitSave(format)
	return nil
}
