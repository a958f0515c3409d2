// Package lexer tokenizes C++ headers and sources without discarding
// comments or preprocessor lines, so later stages can re-emit them.
package lexer

import (
	"strings"
)

// Lexer tokenizes C++ source code
type Lexer struct {
	input  string
	pos    int
	line   int
	column int
	atBOL  bool // only whitespace seen since the last newline
}

// New creates a new Lexer for the given input
func New(input string) *Lexer {
	return &Lexer{input: input, line: 1, column: 1, atBOL: true}
}

// Tokenize returns every token of input, ending with TokenEOF.
func Tokenize(input string) []Token {
	l := New(input)
	var tokens []Token
	for {
		tok := l.NextToken()
		tokens = append(tokens, tok)
		if tok.Type == TokenEOF {
			return tokens
		}
	}
}

// NextToken returns the next token from the input
func (l *Lexer) NextToken() Token {
	if l.pos >= len(l.input) {
		return Token{Type: TokenEOF, Loc: l.loc()}
	}

	c := l.peek()
	switch {
	case c == '\n':
		tok := Token{Type: TokenNewline, Text: "\n", Loc: l.loc()}
		l.advance()
		l.atBOL = true
		return tok
	case isSpace(c):
		return l.scanWhitespace()
	case c == '/' && l.peekAt(1) == '/':
		l.atBOL = false
		return l.scanLineComment()
	case c == '/' && l.peekAt(1) == '*':
		return l.scanBlockComment()
	case c == '#' && l.atBOL:
		l.atBOL = false
		return l.scanDirective()
	}

	l.atBOL = false
	switch {
	case c == '"':
		return l.scanQuoted(TokenString, '"')
	case c == '\'':
		return l.scanQuoted(TokenChar, '\'')
	case isDigit(c) || (c == '.' && isDigit(l.peekAt(1))):
		return l.scanNumber()
	case isIdentStart(c):
		return l.scanIdentifier()
	}
	return l.scanPunctuator()
}

func (l *Lexer) loc() Loc {
	return Loc{Line: l.line, Column: l.column, Offset: l.pos}
}

func (l *Lexer) peek() byte {
	return l.peekAt(0)
}

func (l *Lexer) peekAt(offset int) byte {
	if l.pos+offset >= len(l.input) {
		return 0
	}
	return l.input[l.pos+offset]
}

func (l *Lexer) advance() {
	if l.pos < len(l.input) {
		if l.input[l.pos] == '\n' {
			l.line++
			l.column = 1
		} else {
			l.column++
		}
		l.pos++
	}
}

func (l *Lexer) token(typ TokenType, loc Loc) Token {
	return Token{Type: typ, Text: l.input[loc.Offset:l.pos], Loc: loc}
}

func (l *Lexer) scanWhitespace() Token {
	loc := l.loc()
	for l.pos < len(l.input) && isSpace(l.peek()) {
		l.advance()
	}
	return l.token(TokenWhitespace, loc)
}

func (l *Lexer) scanLineComment() Token {
	loc := l.loc()
	for l.pos < len(l.input) && l.peek() != '\n' {
		l.advance()
	}
	text := strings.TrimRight(l.input[loc.Offset:l.pos], "\r")
	return Token{Type: TokenLineComment, Text: text, Loc: loc}
}

func (l *Lexer) scanBlockComment() Token {
	loc := l.loc()
	l.advance()
	l.advance()
	for l.pos < len(l.input) {
		if l.peek() == '*' && l.peekAt(1) == '/' {
			l.advance()
			l.advance()
			break
		}
		l.advance()
	}
	return l.token(TokenBlockComment, loc)
}

// scanDirective consumes a preprocessor line including backslash
// continuations. A trailing comment is left for the next token so it can
// attach to the directive as a postfix comment.
func (l *Lexer) scanDirective() Token {
	loc := l.loc()
	for l.pos < len(l.input) {
		c := l.peek()
		if c == '\\' && (l.peekAt(1) == '\n' || (l.peekAt(1) == '\r' && l.peekAt(2) == '\n')) {
			for l.peek() != '\n' {
				l.advance()
			}
			l.advance()
			continue
		}
		if c == '\n' || (c == '/' && (l.peekAt(1) == '/' || l.peekAt(1) == '*')) {
			break
		}
		if c == '"' || c == '\'' {
			l.scanQuoted(TokenString, c)
			continue
		}
		l.advance()
	}
	text := strings.TrimRight(l.input[loc.Offset:l.pos], " \t\r")
	return Token{Type: TokenDirective, Text: text, Loc: loc}
}

func (l *Lexer) scanQuoted(typ TokenType, quote byte) Token {
	loc := l.loc()
	l.advance()
	for l.pos < len(l.input) {
		c := l.peek()
		if c == quote {
			l.advance()
			break
		}
		if c == '\\' {
			l.advance()
			l.advance()
			continue
		}
		if c == '\n' {
			// unterminated literal
			break
		}
		l.advance()
	}
	return l.token(typ, loc)
}

func (l *Lexer) scanNumber() Token {
	loc := l.loc()
	for l.pos < len(l.input) {
		c := l.peek()
		if !isIdentContinue(c) && c != '.' {
			break
		}
		if (c == 'e' || c == 'E' || c == 'p' || c == 'P') && (l.peekAt(1) == '+' || l.peekAt(1) == '-') {
			l.advance()
		}
		l.advance()
	}
	return l.token(TokenNumber, loc)
}

func (l *Lexer) scanIdentifier() Token {
	loc := l.loc()
	for l.pos < len(l.input) && isIdentContinue(l.peek()) {
		l.advance()
	}
	return l.token(TokenIdent, loc)
}

// Angle brackets and shifts stay single characters so template argument
// lists can be depth-counted.
var multiPunct = []string{
	"...", "::", "->", "==", "!=", "<=", ">=", "&&", "||", "++", "--",
	"+=", "-=", "*=", "/=", "%=", "&=", "|=", "^=",
}

func (l *Lexer) scanPunctuator() Token {
	loc := l.loc()
	rest := l.input[l.pos:]
	for _, p := range multiPunct {
		if strings.HasPrefix(rest, p) {
			for i := 0; i < len(p); i++ {
				l.advance()
			}
			return l.token(TokenPunct, loc)
		}
	}
	l.advance()
	return l.token(TokenPunct, loc)
}

// Join concatenates token text back into source form.
func Join(tokens []Token) string {
	var sb strings.Builder
	for _, tok := range tokens {
		sb.WriteString(tok.Text)
	}
	return sb.String()
}

// Render joins significant tokens with canonical spacing: a space between
// adjacent words and after commas, nothing around other punctuators.
func Render(tokens []Token) string {
	var sb strings.Builder
	for i, t := range tokens {
		if i > 0 {
			prev := tokens[i-1]
			if isWord(prev) && isWord(t) || prev.Is(",") {
				sb.WriteByte(' ')
			}
		}
		sb.WriteString(t.Text)
	}
	return sb.String()
}

func isWord(t Token) bool {
	return t.Type == TokenIdent || t.Type == TokenNumber
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\r' || c == '\f' || c == '\v'
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func isIdentStart(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c == '_' || c >= 0x80
}

func isIdentContinue(c byte) bool {
	return isIdentStart(c) || isDigit(c)
}

// IsIdentifier checks if a string is a valid C++ identifier.
func IsIdentifier(s string) bool {
	if s == "" || !isIdentStart(s[0]) {
		return false
	}
	for i := 1; i < len(s); i++ {
		if !isIdentContinue(s[i]) {
			return false
		}
	}
	return true
}
