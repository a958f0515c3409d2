package lexer

import "errors"

// ErrUnbalanced is returned by parsers when a bracket is never closed.
var ErrUnbalanced = errors.New("unbalanced brackets")

// Scanner walks a token slice while tracking brace depth, and answers the
// bracket-matching questions the declaration parsers ask.
type Scanner struct {
	src   string
	toks  []Token
	pos   int
	depth int
}

// NewScanner tokenizes src and positions the scanner at the first token.
func NewScanner(src string) *Scanner {
	return &Scanner{src: src, toks: Tokenize(src)}
}

// Tokens returns the full token slice, ending with TokenEOF.
func (s *Scanner) Tokens() []Token {
	return s.toks
}

// Pos returns the index of the current token.
func (s *Scanner) Pos() int {
	return s.pos
}

// Depth returns the brace depth before the current token.
func (s *Scanner) Depth() int {
	return s.depth
}

// Cur returns the current token.
func (s *Scanner) Cur() Token {
	return s.At(s.pos)
}

// At returns the token at index i, or an EOF token when out of range.
func (s *Scanner) At(i int) Token {
	if i < 0 || i >= len(s.toks) {
		return Token{Type: TokenEOF, Loc: Loc{Offset: len(s.src)}}
	}
	return s.toks[i]
}

// EOF reports whether the scanner is at the end of input.
func (s *Scanner) EOF() bool {
	return s.Cur().Type == TokenEOF
}

// Advance moves to the next token, updating the brace depth.
func (s *Scanner) Advance() {
	if s.pos >= len(s.toks) {
		return
	}
	switch tok := s.toks[s.pos]; {
	case tok.Is("{"):
		s.depth++
	case tok.Is("}"):
		if s.depth > 0 {
			s.depth--
		}
	}
	s.pos++
}

// AdvanceTo moves forward to index i. Moving backwards is not allowed.
func (s *Scanner) AdvanceTo(i int) {
	for s.pos < i && s.pos < len(s.toks) {
		s.Advance()
	}
}

// Significant returns the index of the first non-trivia token at or
// after i.
func (s *Scanner) Significant(i int) int {
	for i < len(s.toks) && s.toks[i].IsTrivia() {
		i++
	}
	return i
}

// PrevSignificant returns the index of the last non-trivia token before
// i, or -1.
func (s *Scanner) PrevSignificant(i int) int {
	for i--; i >= 0; i-- {
		if !s.toks[i].IsTrivia() {
			return i
		}
	}
	return -1
}

var closers = map[string]string{"{": "}", "(": ")", "[": "]"}

// MatchingClose returns the index of the bracket closing the one at
// index open, or -1 when the input ends first.
func (s *Scanner) MatchingClose(open int) int {
	opener := s.At(open).Text
	closer, ok := closers[opener]
	if !ok || s.At(open).Type != TokenPunct {
		return -1
	}
	depth := 0
	for i := open; i < len(s.toks); i++ {
		tok := s.toks[i]
		if tok.Type != TokenPunct {
			continue
		}
		switch tok.Text {
		case opener:
			depth++
		case closer:
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// Find returns the index of the first token at or after i that is the
// given punctuator at bracket depth zero relative to i, or -1.
func (s *Scanner) Find(i int, text string) int {
	depth := 0
	for ; i < len(s.toks); i++ {
		tok := s.toks[i]
		if tok.Type != TokenPunct {
			continue
		}
		if depth == 0 && tok.Text == text {
			return i
		}
		switch tok.Text {
		case "(", "[", "{":
			depth++
		case ")", "]", "}":
			depth--
			if depth < 0 {
				return -1
			}
		}
	}
	return -1
}

// Source returns the verbatim input covered by tokens [from, to).
func (s *Scanner) Source(from, to int) string {
	if from >= to {
		return ""
	}
	start := s.At(from).Loc.Offset
	return s.src[start:s.At(to-1).End()]
}

// Line returns the source line number of the token at index i.
func (s *Scanner) Line(i int) int {
	return s.At(i).Loc.Line
}
