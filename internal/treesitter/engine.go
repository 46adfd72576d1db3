// Package treesitter turns document lines into per-rune token categories
// using tree-sitter grammars, or line-local regexes for simple formats.
package treesitter

import (
	"context"
	"math"
	"strings"
	"sync"
	"unicode/utf8"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/bash"
	"github.com/smacker/go-tree-sitter/golang"
	mdblock "github.com/smacker/go-tree-sitter/markdown/tree-sitter-markdown"
	mdinline "github.com/smacker/go-tree-sitter/markdown/tree-sitter-markdown-inline"
	"github.com/smacker/go-tree-sitter/toml"
	"github.com/smacker/go-tree-sitter/yaml"

	"github.com/kobzarvs/qdoc/internal/config"
	"github.com/kobzarvs/qdoc/internal/document"
	"github.com/kobzarvs/qdoc/internal/logger"
)

// Span is a highlighted run on one line. Columns count runes; EndCol may
// exceed the line length for captures that continue on the next line.
type Span struct {
	StartCol int
	EndCol   int
	Kind     string
}

type grammar struct {
	parser *sitter.Parser
	query  *sitter.Query
	// second pass run on each line, only set for markdown
	inline      *sitter.Parser
	inlineQuery *sitter.Query
	// last parse, reused while the source is unchanged
	source []byte
	tree   *sitter.Tree
}

type Engine struct {
	langs    config.Languages
	grammars map[string]*grammar
	mu       sync.Mutex
}

func New(langs config.Languages) *Engine {
	return &Engine{
		langs:    langs,
		grammars: make(map[string]*grammar),
	}
}

// Start compiles the bundled grammars. A grammar whose query fails to
// compile is skipped.
func (e *Engine) Start() error {
	languages := []struct {
		name  string
		lang  *sitter.Language
		query string
	}{
		{"go", golang.GetLanguage(), goHighlightQuery},
		{"yaml", yaml.GetLanguage(), yamlHighlightQuery},
		{"toml", toml.GetLanguage(), tomlHighlightQuery},
		{"bash", bash.GetLanguage(), bashHighlightQuery},
		{"markdown", mdblock.GetLanguage(), markdownBlockHighlightQuery},
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	for _, l := range languages {
		query, err := sitter.NewQuery([]byte(l.query), l.lang)
		if err != nil {
			logger.Warn("highlight query rejected", "language", l.name, "err", err)
			continue
		}
		p := sitter.NewParser()
		p.SetLanguage(l.lang)
		e.grammars[l.name] = &grammar{parser: p, query: query}
	}

	if md := e.grammars["markdown"]; md != nil {
		query, err := sitter.NewQuery([]byte(markdownInlineHighlightQuery), mdinline.GetLanguage())
		if err != nil {
			logger.Warn("highlight query rejected", "language", "markdown-inline", "err", err)
			return nil
		}
		md.inline = sitter.NewParser()
		md.inline.SetLanguage(mdinline.GetLanguage())
		md.inlineQuery = query
	}
	return nil
}

func (e *Engine) Stop() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	for name, g := range e.grammars {
		if g.tree != nil {
			g.tree.Close()
		}
		g.query.Close()
		g.parser.Close()
		if g.inline != nil {
			g.inlineQuery.Close()
			g.inline.Close()
		}
		delete(e.grammars, name)
	}
	return nil
}

// Supports reports whether grammar can be highlighted.
func (e *Engine) Supports(grammar string) bool {
	if _, ok := regexGrammars[grammar]; ok {
		return true
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.grammars[grammar]
	return ok
}

// Language returns the configured language for path, or nil.
func (e *Engine) Language(path string) *config.Language {
	return e.langs.Match(path)
}

// Highlighter returns a document hook for path, or nil when the file type
// has no highlighter.
func (e *Engine) Highlighter(path string) document.Highlighter {
	lang := e.langs.Match(path)
	if lang == nil || !e.Supports(lang.Grammar()) {
		return nil
	}
	name := lang.Grammar()
	return document.HighlightFunc(func(lines [][]rune, tokens [][]byte, start, end int) {
		fillTokens(lines, tokens, e.Spans(name, lines, start, end), start, end)
	})
}

// Spans highlights lines [start, end) of a document written in grammar.
func (e *Engine) Spans(name string, lines [][]rune, start, end int) map[int][]Span {
	if start < 0 {
		start = 0
	}
	if end > len(lines) {
		end = len(lines)
	}
	if start >= end {
		return nil
	}
	if fn, ok := regexGrammars[name]; ok {
		out := make(map[int][]Span, end-start)
		for row := start; row < end; row++ {
			out[row] = fn(string(lines[row]))
		}
		return out
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	g := e.grammars[name]
	if g == nil {
		return nil
	}
	source := joinSource(lines)
	if g.tree == nil || string(g.source) != string(source) {
		tree, err := g.parser.ParseCtx(context.Background(), nil, source)
		if err != nil {
			logger.Debug("parse failed", "language", name, "err", err)
			return nil
		}
		if g.tree != nil {
			g.tree.Close()
		}
		g.tree, g.source = tree, source
	}
	byteSpans := queryHighlights(g.query, g.tree, g.source, start, end-1)
	if g.inline != nil {
		g.inlineSpans(byteSpans, lines, start, end)
	}
	out := make(map[int][]Span, len(byteSpans))
	for row, spans := range byteSpans {
		line := string(lines[row])
		for _, sp := range spans {
			out[row] = append(out[row], Span{
				StartCol: runeCol(line, sp.StartCol),
				EndCol:   runeCol(line, sp.EndCol),
				Kind:     sp.Kind,
			})
		}
	}
	return out
}

// inlineSpans adds the inline grammar's captures for rows [start, end),
// skipping fenced code blocks.
func (g *grammar) inlineSpans(out map[int][]Span, lines [][]rune, start, end int) {
	fenced := fencedRows(g.tree.RootNode())
	for row := start; row < end; row++ {
		if fenced[row] || len(lines[row]) == 0 {
			continue
		}
		src := []byte(string(lines[row]))
		tree, err := g.inline.ParseCtx(context.Background(), nil, src)
		if err != nil || tree == nil {
			continue
		}
		for _, spans := range queryHighlights(g.inlineQuery, tree, src, 0, 0) {
			out[row] = append(out[row], spans...)
		}
		tree.Close()
	}
}

func fencedRows(root *sitter.Node) map[int]bool {
	rows := make(map[int]bool)
	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		if n.Type() == "fenced_code_block" {
			first, end := int(n.StartPoint().Row), n.EndPoint()
			last := int(end.Row)
			if end.Column == 0 && last > first {
				last--
			}
			for r := first; r <= last; r++ {
				rows[r] = true
			}
			return
		}
		for i := 0; i < int(n.NamedChildCount()); i++ {
			walk(n.NamedChild(i))
		}
	}
	walk(root)
	return rows
}

func joinSource(lines [][]rune) []byte {
	var b strings.Builder
	for i, line := range lines {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(string(line))
	}
	return []byte(b.String())
}

// runeCol converts a byte column within line to a rune column.
func runeCol(line string, byteCol int) int {
	if byteCol >= len(line) {
		if byteCol == math.MaxInt32 {
			return byteCol
		}
		return utf8.RuneCountInString(line) + byteCol - len(line)
	}
	return utf8.RuneCountInString(line[:byteCol])
}

// queryHighlights returns captures for rows [startLine, endLine] with byte columns.
func queryHighlights(query *sitter.Query, tree *sitter.Tree, source []byte, startLine, endLine int) map[int][]Span {
	if query == nil || tree == nil {
		return nil
	}
	cursor := sitter.NewQueryCursor()
	defer cursor.Close()
	cursor.SetPointRange(
		sitter.Point{Row: uint32(startLine), Column: 0},
		sitter.Point{Row: uint32(endLine + 1), Column: 0},
	)
	cursor.Exec(query, tree.RootNode())

	out := make(map[int][]Span)
	for {
		match, ok := cursor.NextMatch()
		if !ok {
			break
		}
		match = cursor.FilterPredicates(match, source)
		if match == nil {
			continue
		}
		for _, capture := range match.Captures {
			kind := query.CaptureNameForId(capture.Index)
			start := capture.Node.StartPoint()
			end := capture.Node.EndPoint()
			startRow, endRow := int(start.Row), int(end.Row)
			if endRow < startLine || startRow > endLine {
				continue
			}
			for row := max(startRow, startLine); row <= min(endRow, endLine); row++ {
				startCol := 0
				endCol := int(math.MaxInt32)
				if row == startRow {
					startCol = int(start.Column)
				}
				if row == endRow {
					endCol = int(end.Column)
				}
				out[row] = append(out[row], Span{StartCol: startCol, EndCol: endCol, Kind: kind})
			}
		}
	}
	return out
}
