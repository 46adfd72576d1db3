package treesitter

// Token categories stored in document token arrays. Zero means plain text.
const (
	TokenText byte = iota
	TokenKeyword
	TokenString
	TokenComment
	TokenType
	TokenFunction
	TokenNumber
	TokenConstant
	TokenBuiltin
	TokenOperator
	TokenPunctuation
	TokenField
	TokenVariable
	TokenParameter
)

var categories = map[string]byte{
	"keyword":     TokenKeyword,
	"string":      TokenString,
	"comment":     TokenComment,
	"type":        TokenType,
	"function":    TokenFunction,
	"number":      TokenNumber,
	"constant":    TokenConstant,
	"builtin":     TokenBuiltin,
	"operator":    TokenOperator,
	"punctuation": TokenPunctuation,
	"field":       TokenField,
	"variable":    TokenVariable,
	"parameter":   TokenParameter,
}

var categoryNames = func() map[byte]string {
	m := make(map[byte]string, len(categories)+1)
	for name, c := range categories {
		m[c] = name
	}
	m[TokenText] = "text"
	return m
}()

// Category maps a capture name to its token byte; unknown names are text.
func Category(kind string) byte {
	return categories[kind]
}

func CategoryName(c byte) string {
	if name, ok := categoryNames[c]; ok {
		return name
	}
	return "unknown"
}

// priority decides which capture wins when spans overlap.
func priority(kind string) int {
	switch kind {
	case "comment":
		return 7
	case "string":
		return 6
	case "keyword":
		return 5
	case "constant", "builtin":
		return 4
	case "parameter", "type", "function", "number":
		return 3
	case "field", "variable":
		return 2
	case "operator", "punctuation":
		return 1
	default:
		return 0
	}
}

// fillTokens writes one category per rune for rows [start, end). Rows
// without spans get nil.
func fillTokens(lines [][]rune, tokens [][]byte, spans map[int][]Span, start, end int) {
	for row := start; row < end && row < len(lines); row++ {
		rowSpans := spans[row]
		if len(rowSpans) == 0 {
			tokens[row] = nil
			continue
		}
		n := len(lines[row])
		cats := make([]byte, n)
		best := make([]int, n)
		for _, sp := range rowSpans {
			p := priority(sp.Kind)
			if p == 0 {
				continue
			}
			c := Category(sp.Kind)
			for col := max(sp.StartCol, 0); col < min(sp.EndCol, n); col++ {
				if p > best[col] {
					best[col] = p
					cats[col] = c
				}
			}
		}
		tokens[row] = cats
	}
}
