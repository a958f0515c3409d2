// Package params splits C++ parameter lists into parameters and extracts
// type, name, qualifiers and positioned comments from each one.
package params

import (
	"strings"

	"github.com/raymyers/cpp2cs/pkg/lexer"
)

// Block is the raw text of one parameter
type Block struct {
	Text  string
	Index int
	// Tokens of Text, without the EOF token
	Tokens []lexer.Token
}

// Split cuts a parameter list (the text between the parentheses) at
// top-level commas. Empty input gives no blocks.
//
// A comment right after a separating comma belongs to the parameter before
// the comma when it is a line comment, or a block comment followed only by
// a line break. Otherwise it starts the next parameter.
func Split(raw string) []Block {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	toks := lexer.Tokenize(raw)
	toks = toks[:len(toks)-1]

	var blocks []Block
	var cur []lexer.Token
	flush := func() {
		blocks = append(blocks, newBlock(cur, len(blocks)))
		cur = nil
	}

	depth := 0
	for i := 0; i < len(toks); i++ {
		tok := toks[i]
		if tok.Type == lexer.TokenPunct {
			switch tok.Text {
			case "(", "<", "[":
				depth++
			case ")", ">", "]":
				if depth > 0 {
					depth--
				}
			case ",":
				if depth == 0 {
					i = claimTrailingComment(toks, i, &cur)
					flush()
					continue
				}
			}
		}
		cur = append(cur, tok)
	}
	flush()
	return blocks
}

// claimTrailingComment moves a comment that follows the comma at index
// comma onto cur when it belongs to the previous parameter, and returns
// the index of the last token consumed.
func claimTrailingComment(toks []lexer.Token, comma int, cur *[]lexer.Token) int {
	j := comma + 1
	for j < len(toks) && toks[j].Type == lexer.TokenWhitespace {
		j++
	}
	if j >= len(toks) {
		return comma
	}
	switch toks[j].Type {
	case lexer.TokenLineComment:
		*cur = append(*cur, toks[comma+1:j+1]...)
		return j
	case lexer.TokenBlockComment:
		k := j + 1
		for k < len(toks) && toks[k].Type == lexer.TokenWhitespace {
			k++
		}
		if k >= len(toks) || toks[k].Type == lexer.TokenNewline {
			*cur = append(*cur, toks[comma+1:j+1]...)
			return j
		}
	}
	return comma
}

func newBlock(toks []lexer.Token, index int) Block {
	return Block{
		Text:   strings.TrimSpace(lexer.Join(toks)),
		Index:  index,
		Tokens: toks,
	}
}
