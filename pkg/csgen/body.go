package csgen

import (
	"strings"

	"github.com/raymyers/cpp2cs/pkg/lexer"
)

var literalWords = map[string]string{
	"NULL":    "null",
	"nullptr": "null",
	"TRUE":    "true",
	"FALSE":   "false",
}

// ConvertCode rewrites the C++ spellings in body text that have a direct
// C# equivalent: `_T("x")` becomes `"x"`, `->` and `::` become `.`, and
// NULL, TRUE and FALSE become literals. Strings, characters and comments
// are copied unchanged.
func ConvertCode(text string) string {
	toks := lexer.Tokenize(text)
	var sb strings.Builder
	for i := 0; i < len(toks); i++ {
		tok := toks[i]
		switch {
		case tok.Type == lexer.TokenEOF:
		case tok.Is("_T") || tok.Is("_"):
			if lit, end, ok := unwrapT(toks, i); ok {
				sb.WriteString(lit)
				i = end
				continue
			}
			sb.WriteString(tok.Text)
		case tok.Type == lexer.TokenIdent:
			if lit, ok := literalWords[tok.Text]; ok {
				sb.WriteString(lit)
				continue
			}
			sb.WriteString(tok.Text)
		case tok.Is("->"):
			sb.WriteString(".")
		case tok.Is("::"):
			// a leading `::` names the global scope
			if i > 0 && toks[i-1].Type == lexer.TokenIdent {
				sb.WriteString(".")
			}
		default:
			sb.WriteString(tok.Text)
		}
	}
	return sb.String()
}

// unwrapT matches `_T ( "x" )` starting at i.
func unwrapT(toks []lexer.Token, i int) (string, int, bool) {
	j := next(toks, i+1)
	if j >= len(toks) || !toks[j].Is("(") {
		return "", 0, false
	}
	j = next(toks, j+1)
	if j >= len(toks) || toks[j].Type != lexer.TokenString && toks[j].Type != lexer.TokenChar {
		return "", 0, false
	}
	lit := toks[j].Text
	j = next(toks, j+1)
	if j >= len(toks) || !toks[j].Is(")") {
		return "", 0, false
	}
	return lit, j, true
}

func next(toks []lexer.Token, i int) int {
	for i < len(toks) && toks[i].IsSpace() {
		i++
	}
	return i
}

// Reindent splits text into lines with tabs expanded, blank edges removed
// and the common leading indentation stripped.
func Reindent(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\t", "    ")
	lines := strings.Split(text, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimRight(l, " ")
	}
	for len(lines) > 0 && lines[0] == "" {
		lines = lines[1:]
	}
	for len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}

	common := -1
	for _, l := range lines {
		if l == "" {
			continue
		}
		n := len(l) - len(strings.TrimLeft(l, " "))
		if common < 0 || n < common {
			common = n
		}
	}
	if common <= 0 {
		return lines
	}
	for i, l := range lines {
		if l != "" {
			lines[i] = l[common:]
		}
	}
	return lines
}
