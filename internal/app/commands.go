package app

import (
	"context"
	"flag"
	"fmt"
	"strconv"

	"github.com/kobzarvs/qdoc/internal/document"
	"github.com/kobzarvs/qdoc/internal/linestream"
	"github.com/kobzarvs/qdoc/internal/logger"
	"github.com/kobzarvs/qdoc/internal/markers"
	"github.com/kobzarvs/qdoc/internal/session"
	"github.com/kobzarvs/qdoc/internal/treesitter"
	"github.com/kobzarvs/qdoc/internal/watcher"
)

func (a *App) cmdInfo(_ context.Context, args []string) error {
	flags := a.flagSet("info")
	pos, err := a.positional(flags, args, 1)
	if err != nil {
		return err
	}
	buf, abs, err := a.open(pos[0], false)
	if err != nil {
		return err
	}

	f := buf.Format()
	lang := "-"
	if l := a.langs.Match(abs); l != nil {
		lang = l.Name
	}
	blank, width := 0, 0
	for _, line := range buf.Lines() {
		m := document.MeasureLine(line, a.cfg.Document.TabWidth)
		if m.Blank {
			blank++
		}
		if m.Width > width {
			width = m.Width
		}
	}
	counts := make(map[markers.Kind]int)
	for _, m := range buf.Markers().All() {
		counts[m.Kind]++
	}

	row := func(key string, value any) { fmt.Fprintf(a.stdout, "%-12s %v\n", key+":", value) }
	row("file", abs)
	row("encoding", f.Encoding)
	row("line-ending", f.LineEnding)
	row("bom", f.BOM)
	row("lines", buf.LineCount())
	row("blank", blank)
	row("width", width)
	row("language", lang)
	row("bookmarks", counts[markers.Bookmark])
	row("breakpoints", counts[markers.Breakpoint])
	row("errors", counts[markers.Error])
	return nil
}

func (a *App) cmdConvert(_ context.Context, args []string) error {
	flags := a.flagSet("convert")
	out := flags.String("o", "", "output file (default: rewrite FILE)")
	enc := flags.String("encoding", "", "utf-8, utf-16be, utf-16le, utf-32be, utf-32le or ascii")
	eol := flags.String("eol", "", "lf, crlf or cr")
	bom := flags.Bool("bom", false, "write a byte order mark")
	pos, err := a.positional(flags, args, 1)
	if err != nil {
		return err
	}
	bomSet := false
	flags.Visit(func(f *flag.Flag) {
		if f.Name == "bom" {
			bomSet = true
		}
	})

	buf, abs, err := a.open(pos[0], false)
	if err != nil {
		return err
	}
	target := buf.Format().Normalized()
	if *enc != "" {
		if target.Encoding, err = linestream.ParseEncoding(*enc); err != nil {
			return err
		}
		// UTF-16 and UTF-32 are only recognised on load through their BOM
		target.BOM = target.Encoding != linestream.UTF8 && target.Encoding != linestream.ASCII
	}
	if *eol != "" {
		if target.LineEnding, err = linestream.ParseLineEnding(*eol); err != nil {
			return err
		}
	}
	if bomSet {
		target.BOM = *bom
	}

	dst := abs
	if *out != "" {
		dst = *out
	}
	if err := buf.SaveFile(dst, &target); err != nil {
		return err
	}
	fmt.Fprintf(a.stdout, "wrote %s (%s)\n", dst, target)
	return nil
}

func (a *App) cmdTokens(_ context.Context, args []string) error {
	flags := a.flagSet("tokens")
	pos, err := a.positional(flags, args, 1)
	if err != nil {
		return err
	}
	if a.ts.Highlighter(pos[0]) == nil {
		return fmt.Errorf("no highlighter for %s", pos[0])
	}
	buf, _, err := a.open(pos[0], false)
	if err != nil {
		return err
	}
	for i, line := range buf.Lines() {
		toks := buf.Tokens(i)
		for start := 0; start < len(toks); {
			end := start + 1
			for end < len(toks) && toks[end] == toks[start] {
				end++
			}
			if toks[start] != treesitter.TokenText {
				fmt.Fprintf(a.stdout, "%d:%d %s %q\n", i+1, start+1, treesitter.CategoryName(toks[start]), string(line[start:end]))
			}
			start = end
		}
	}
	return nil
}

func (a *App) cmdMark(_ context.Context, args []string) error {
	flags := a.flagSet("mark")
	kindName := flags.String("kind", "bookmark", "bookmark, breakpoint or error")
	note := flags.String("note", "", "text stored with the marker")
	pos, err := a.positional(flags, args, 2)
	if err != nil {
		return err
	}
	if a.sessions == nil {
		return fmt.Errorf("markers are not persisted: session is disabled")
	}
	kind, err := markers.ParseKind(*kindName)
	if err != nil {
		return err
	}
	buf, abs, err := a.open(pos[0], false)
	if err != nil {
		return err
	}
	line, err := a.lineArg(buf, pos[1])
	if err != nil {
		return err
	}

	var payload any
	if *note != "" {
		payload = *note
	}
	m, added := buf.ToggleMarker(line, kind, payload)
	a.remember(buf, abs)
	if added {
		fmt.Fprintf(a.stdout, "added %s at line %d\n", m.Kind, m.Line+1)
	} else {
		fmt.Fprintf(a.stdout, "removed %s at line %d\n", m.Kind, m.Line+1)
	}
	return nil
}

func (a *App) cmdMarks(_ context.Context, args []string) error {
	flags := a.flagSet("marks")
	kindName := flags.String("kind", "", "only list markers of this kind")
	near := flags.Int("near", 0, "print only the marker nearest to this line")
	backward := flags.Bool("backward", false, "search backward with -near")
	pos, err := a.positional(flags, args, 1)
	if err != nil {
		return err
	}
	buf, _, err := a.open(pos[0], false)
	if err != nil {
		return err
	}

	list := buf.Markers().All()
	if *kindName != "" {
		kind, err := markers.ParseKind(*kindName)
		if err != nil {
			return err
		}
		list = buf.Markers().FindAll(kind)
		if *near > 0 {
			dir := markers.Forward
			if *backward {
				dir = markers.Backward
			}
			list = nil
			if m := buf.NearestMarker(kind, *near-1, dir); m != nil {
				list = append(list, m)
			}
		}
	} else if *near > 0 {
		return fmt.Errorf("-near needs -kind")
	}
	for _, m := range list {
		note, _ := m.Payload.(string)
		fmt.Fprintf(a.stdout, "%d %s %s\n", m.Line+1, m.Kind, note)
	}
	return nil
}

func (a *App) cmdWatch(ctx context.Context, args []string) error {
	flags := a.flagSet("watch")
	pos, err := a.positional(flags, args, 1)
	if err != nil {
		return err
	}
	buf, abs, err := a.open(pos[0], false)
	if err != nil {
		return err
	}
	delay, err := a.cfg.DebounceInterval()
	if err != nil {
		return err
	}
	w, err := watcher.New(delay, func(ev watcher.Event) { a.reload(buf, abs, ev) })
	if err != nil {
		return err
	}
	if err := w.Add(abs); err != nil {
		return err
	}
	fmt.Fprintf(a.stdout, "watching %s (%d lines, %s)\n", abs, buf.LineCount(), buf.Format())
	return w.Run(ctx)
}

// reload re-reads abs after an external change and puts the remembered
// markers back.
func (a *App) reload(buf *document.Buffer, abs string, ev watcher.Event) {
	if ev.Op == watcher.OpRemove {
		fmt.Fprintf(a.stdout, "%s removed\n", abs)
		return
	}
	if err := buf.LoadFile(abs); err != nil {
		fmt.Fprintln(a.stderr, "qdoc: reload:", err)
		return
	}
	if a.sessions != nil {
		if state, ok := a.sessions.FileState(abs); ok {
			if err := session.Restore(buf, state); err != nil {
				logger.Warn("markers not restored", "file", abs, "err", err)
			}
		}
	}
	fmt.Fprintf(a.stdout, "reloaded %s (%d lines, %s)\n", abs, buf.LineCount(), buf.Format())
}

// lineArg parses a 1-based line argument into a line index of buf.
func (a *App) lineArg(buf *document.Buffer, s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("line %q: %w", s, err)
	}
	if n < 1 || n > buf.LineCount() {
		return 0, fmt.Errorf("line %d out of range 1-%d", n, buf.LineCount())
	}
	return n - 1, nil
}
