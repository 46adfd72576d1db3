package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/BurntSushi/toml"

	"github.com/kobzarvs/qdoc/internal/document"
	"github.com/kobzarvs/qdoc/internal/logger"
	"github.com/kobzarvs/qdoc/internal/markers"
	"github.com/kobzarvs/qdoc/internal/textpos"
)

var (
	errNothingToUndo = errors.New("nothing to undo")
	errNothingToRedo = errors.New("nothing to redo")
)

// An edit script is a TOML file of [[step]] tables run in order. Positions
// are [line, col] pairs counted from 1.
//
//	[[step]]
//	op = "insert"
//	at = [1, 1]
//	text = "// header\n"
type script struct {
	Save  *bool  `toml:"save"`
	Steps []step `toml:"step"`
}

type step struct {
	Op    string `toml:"op"`
	At    []int  `toml:"at"`
	To    []int  `toml:"to"`
	Text  string `toml:"text"`
	Count int    `toml:"count"`
}

type scriptSource struct{ path string }

func loadScript(path string) (script, error) {
	var s script
	md, err := toml.DecodeFile(path, &s)
	if err != nil {
		return s, fmt.Errorf("%s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return s, fmt.Errorf("%s: unknown key %q", path, undecoded[0].String())
	}
	for i, st := range s.Steps {
		if err := st.validate(); err != nil {
			return s, fmt.Errorf("%s: step %d: %w", path, i+1, err)
		}
	}
	return s, nil
}

func (st step) validate() error {
	switch st.Op {
	case "insert":
		_, err := toPos("at", st.At)
		return err
	case "delete", "replace":
		if _, err := toPos("at", st.At); err != nil {
			return err
		}
		_, err := toPos("to", st.To)
		return err
	case "set", "undo", "redo":
		return nil
	case "":
		return fmt.Errorf("missing op")
	}
	return fmt.Errorf("unknown op %q", st.Op)
}

func toPos(key string, v []int) (textpos.Pos, error) {
	if len(v) != 2 {
		return textpos.Pos{}, fmt.Errorf("%s must be [line, col]", key)
	}
	if v[0] < 1 || v[1] < 1 {
		return textpos.Pos{}, fmt.Errorf("%s %v: lines and columns start at 1", key, v)
	}
	return textpos.Pos{Line: v[0] - 1, Col: v[1] - 1}, nil
}

func (st step) rng() textpos.Range {
	at, _ := toPos("at", st.At)
	to, _ := toPos("to", st.To)
	return textpos.Range{Start: at, End: to}.Normalized()
}

func (st step) apply(buf *document.Buffer, src any) error {
	switch st.Op {
	case "insert":
		at, _ := toPos("at", st.At)
		_, err := buf.Insert(at, st.Text, src)
		return err
	case "delete":
		_, err := buf.Delete(st.rng(), src)
		return err
	case "replace":
		_, err := buf.Replace(st.rng(), st.Text, src)
		return err
	case "set":
		return buf.SetText(st.Text, src)
	}

	n := st.Count
	if n < 1 {
		n = 1
	}
	for i := 0; i < n; i++ {
		var ok bool
		var err error
		if st.Op == "undo" {
			ok, err = buf.Undo(src)
		} else {
			ok, err = buf.Redo(src)
		}
		if err != nil {
			return err
		}
		if !ok {
			if st.Op == "undo" {
				return errNothingToUndo
			}
			return errNothingToRedo
		}
	}
	return nil
}

// run applies every step and reports how many succeeded.
func (s script) run(buf *document.Buffer, src any) (int, error) {
	for i, st := range s.Steps {
		if err := st.apply(buf, src); err != nil {
			return i, fmt.Errorf("step %d (%s): %w", i+1, st.Op, err)
		}
	}
	return len(s.Steps), nil
}

func (a *App) cmdApply(_ context.Context, args []string) error {
	flags := a.flagSet("apply")
	dryRun := flags.Bool("dry-run", false, "print the result instead of saving")
	pos, err := a.positional(flags, args, 2)
	if err != nil {
		return err
	}
	s, err := loadScript(pos[1])
	if err != nil {
		return err
	}
	buf, abs, err := a.open(pos[0], true)
	if err != nil {
		return err
	}
	buf.OnMarkersChanged(func(moved, removed []*markers.Marker) {
		logger.Debug("markers re-anchored", "file", abs, "moved", len(moved), "removed", len(removed))
	})

	n, err := s.run(buf, scriptSource{path: pos[1]})
	if err != nil {
		return err
	}
	if *dryRun {
		fmt.Fprint(a.stdout, buf.Text())
		return nil
	}

	saved := false
	if (s.Save == nil || *s.Save) && buf.Modified() {
		f, err := a.saveFormat(buf)
		if err != nil {
			return err
		}
		if err := buf.SaveFile(abs, f); err != nil {
			return err
		}
		saved = true
	}
	a.remember(buf, abs)
	fmt.Fprintf(a.stdout, "applied %d steps to %s (undo depth %d, saved %t)\n", n, abs, buf.History().UndoLen(), saved)
	return nil
}

