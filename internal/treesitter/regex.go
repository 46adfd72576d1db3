package treesitter

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// Line-local patterns for formats without a bundled grammar.
var (
	jsonString  = regexp.MustCompile(`"(?:[^"\\]|\\.)*"`)
	jsonNumber  = regexp.MustCompile(`-?\d+(?:\.\d+)?(?:[eE][+-]?\d+)?`)
	jsonLiteral = regexp.MustCompile(`\b(true|false|null)\b`)

	gitComment = regexp.MustCompile(`^#.*`)
	gitNegate  = regexp.MustCompile(`^!`)
	gitGlob    = regexp.MustCompile(`[*?]|\[.+?\]`)
)

type lineFunc func(line string) []Span

var regexGrammars = map[string]lineFunc{
	"json":      jsonLine,
	"gitignore": gitignoreLine,
}

func runeSpan(line string, loc []int, kind string) Span {
	return Span{
		StartCol: utf8.RuneCountInString(line[:loc[0]]),
		EndCol:   utf8.RuneCountInString(line[:loc[1]]),
		Kind:     kind,
	}
}

// outsideString reports whether byte offset off is not inside a JSON string.
func outsideString(line string, off int) bool {
	before := line[:off]
	return (strings.Count(before, `"`)-strings.Count(before, `\"`))%2 == 0
}

func jsonLine(line string) []Span {
	var spans []Span
	for _, loc := range jsonString.FindAllStringIndex(line, -1) {
		rest := strings.TrimLeft(line[loc[1]:], " \t")
		kind := "string"
		if strings.HasPrefix(rest, ":") {
			kind = "field"
		}
		spans = append(spans, runeSpan(line, loc, kind))
	}
	for _, loc := range jsonNumber.FindAllStringIndex(line, -1) {
		if outsideString(line, loc[0]) {
			spans = append(spans, runeSpan(line, loc, "number"))
		}
	}
	for _, loc := range jsonLiteral.FindAllStringIndex(line, -1) {
		if outsideString(line, loc[0]) {
			spans = append(spans, runeSpan(line, loc, "constant"))
		}
	}
	return spans
}

func gitignoreLine(line string) []Span {
	if line == "" {
		return nil
	}
	if gitComment.MatchString(line) {
		return []Span{{StartCol: 0, EndCol: utf8.RuneCountInString(line), Kind: "comment"}}
	}
	var spans []Span
	if gitNegate.MatchString(line) {
		spans = append(spans, Span{StartCol: 0, EndCol: 1, Kind: "keyword"})
	}
	for _, loc := range gitGlob.FindAllStringIndex(line, -1) {
		spans = append(spans, runeSpan(line, loc, "operator"))
	}
	return spans
}
