package textpos

import "strings"

// SplitLines breaks text on LF, CRLF and CR into rune lines. The result
// always has at least one element.
func SplitLines(text string) [][]rune {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	parts := strings.Split(text, "\n")
	lines := make([][]rune, len(parts))
	for i, p := range parts {
		lines[i] = []rune(p)
	}
	return lines
}

// JoinLines is the inverse of SplitLines using LF.
func JoinLines(lines [][]rune) string {
	var b strings.Builder
	for i, line := range lines {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(string(line))
	}
	return b.String()
}

// Extent returns the range occupied by content when inserted at start.
func Extent(start Pos, content [][]rune) Range {
	switch len(content) {
	case 0:
		return Range{Start: start, End: start}
	case 1:
		return Range{Start: start, End: start.Offset(len(content[0]))}
	}
	last := content[len(content)-1]
	return Range{
		Start: start,
		End:   Pos{Line: start.Line + len(content) - 1, Col: len(last)},
	}
}
