package params

import (
	"strings"

	"github.com/raymyers/cpp2cs/pkg/lexer"
	"github.com/raymyers/cpp2cs/pkg/model"
	"github.com/raymyers/cpp2cs/pkg/signature"
)

// Words that complete a type and therefore never name a parameter.
var typeWords = map[string]bool{
	"void": true, "bool": true, "char": true, "wchar_t": true, "short": true,
	"int": true, "long": true, "float": true, "double": true,
	"signed": true, "unsigned": true, "const": true, "volatile": true,
	"struct": true, "class": true, "enum": true, "typename": true,
}

// Extract turns one block into a parameter.
func Extract(b Block) model.Parameter {
	toks := b.Tokens
	if toks == nil {
		all := lexer.Tokenize(b.Text)
		toks = all[:len(all)-1]
	}
	p := model.Parameter{Raw: b.Text}

	// Significant tokens, remembering where each comment sat.
	var sig []lexer.Token
	var comments []rawComment
	seen := 0
	for _, tok := range toks {
		switch {
		case tok.IsComment():
			comments = append(comments, rawComment{text: strings.TrimSpace(tok.Text), after: seen})
		case tok.IsSpace():
			// spacing only matters inside default values
			if len(sig) > 0 && !sig[len(sig)-1].IsSpace() {
				sig = append(sig, lexer.Token{Type: lexer.TokenWhitespace, Text: " "})
			}
		default:
			sig = append(sig, tok)
			seen++
		}
	}
	sig = trimSpaceTokens(sig)

	// Default value: everything after a top-level '='.
	decl := sig
	if eq := indexTopLevel(sig, "="); eq >= 0 {
		decl = trimSpaceTokens(sig[:eq])
		p.DefaultValue = strings.TrimSpace(collapse(sig[eq+1:]))
	}
	words := withoutSpace(decl)

	nameIdx := findName(words)
	var typeToks []lexer.Token
	switch {
	case nameIdx < 0:
		typeToks = words
	case isFuncPointer(words):
		p.Name = words[nameIdx].Text
		p.Type = lexer.Render(removeIndex(words, nameIdx))
		p.Canonical = signature.NormalizeParameterType(p.Type)
		p.Comments = position(comments, len(words), nameIdx)
		return p
	default:
		p.Name = words[nameIdx].Text
		typeToks = append(typeToks, words[:nameIdx]...)
		// int a[10] keeps the array marker on the type
		if nameIdx+1 < len(words) && words[nameIdx+1].Is("[") {
			typeToks = append(typeToks, lexer.Token{Type: lexer.TokenPunct, Text: "[]"})
		}
	}

	var base []lexer.Token
	depth := 0
	for _, tok := range typeToks {
		switch {
		case tok.Is("<"):
			depth++
		case tok.Is(">"):
			depth--
		}
		if depth == 0 {
			switch {
			case tok.Is("const"), tok.Is("volatile"):
				p.IsConst = p.IsConst || tok.Text == "const"
				continue
			case tok.Is("*"):
				p.IsPointer = true
				continue
			case tok.Is("&"), tok.Is("&&"):
				p.IsReference = true
				continue
			}
		}
		base = append(base, tok)
	}
	p.Type = lexer.Render(base)
	p.Canonical = signature.NormalizeParameterType(p.Type)
	p.Comments = position(comments, len(words), nameIdx)
	return p
}

// findName returns the index of the parameter name in words, or -1 for an
// unnamed parameter.
func findName(words []lexer.Token) int {
	if i := funcPointerName(words); i >= 0 {
		return i
	}
	end := len(words)
	if open := indexTopLevel(words, "["); open > 0 {
		end = open
	}
	if end == 0 {
		return -1
	}
	last := end - 1
	tok := words[last]
	if tok.Type != lexer.TokenIdent || typeWords[tok.Text] {
		return -1
	}
	if last > 0 && words[last-1].Is("::") {
		return -1
	}
	// the name needs a type in front of it
	for _, w := range words[:last] {
		if w.Type == lexer.TokenIdent && w.Text != "const" && w.Text != "volatile" {
			return last
		}
	}
	return -1
}

// funcPointerName finds the name in `ret (*name)(args)`.
func funcPointerName(words []lexer.Token) int {
	for i := 0; i+3 < len(words); i++ {
		if words[i].Is("(") && words[i+1].Is("*") && words[i+2].Type == lexer.TokenIdent && words[i+3].Is(")") {
			return i + 2
		}
	}
	return -1
}

func isFuncPointer(words []lexer.Token) bool {
	return funcPointerName(words) >= 0
}

type rawComment struct {
	text string
	// number of non-space tokens before the comment
	after int
}

// position tags comments by where they sat relative to the type and name.
func position(comments []rawComment, nWords, nameIdx int) []model.PositionedComment {
	if len(comments) == 0 {
		return nil
	}
	out := make([]model.PositionedComment, 0, len(comments))
	for _, c := range comments {
		pos := model.AfterType
		switch {
		case c.after == 0:
			pos = model.BeforeType
		case nameIdx >= 0 && c.after > nameIdx:
			pos = model.AfterName
		case nameIdx < 0 && c.after >= nWords:
			pos = model.AfterName
		}
		out = append(out, model.PositionedComment{Text: c.text, Position: pos})
	}
	return out
}

func indexTopLevel(toks []lexer.Token, text string) int {
	depth := 0
	for i, tok := range toks {
		if tok.Type != lexer.TokenPunct {
			continue
		}
		switch tok.Text {
		case "(", "<", "[", "{":
			if depth == 0 && tok.Text == text {
				return i
			}
			depth++
		case ")", ">", "]", "}":
			depth--
		default:
			if depth == 0 && tok.Text == text {
				return i
			}
		}
	}
	return -1
}

func withoutSpace(toks []lexer.Token) []lexer.Token {
	out := make([]lexer.Token, 0, len(toks))
	for _, t := range toks {
		if !t.IsSpace() {
			out = append(out, t)
		}
	}
	return out
}

func trimSpaceTokens(toks []lexer.Token) []lexer.Token {
	for len(toks) > 0 && toks[0].IsSpace() {
		toks = toks[1:]
	}
	for len(toks) > 0 && toks[len(toks)-1].IsSpace() {
		toks = toks[:len(toks)-1]
	}
	return toks
}

func removeIndex(toks []lexer.Token, i int) []lexer.Token {
	out := make([]lexer.Token, 0, len(toks)-1)
	out = append(out, toks[:i]...)
	return append(out, toks[i+1:]...)
}

// collapse joins tokens keeping single spaces where the source had any.
func collapse(toks []lexer.Token) string {
	var sb strings.Builder
	for _, t := range toks {
		sb.WriteString(t.Text)
	}
	return sb.String()
}
