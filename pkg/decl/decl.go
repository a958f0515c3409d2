// Package decl recognizes the declaration shapes shared by the header and
// source parsers: function heads, trailers, initializer lists, local
// structs and the leading-comment buffer.
package decl

import (
	"errors"
	"fmt"
	"strings"

	"github.com/raymyers/cpp2cs/pkg/lexer"
	"github.com/raymyers/cpp2cs/pkg/model"
	"github.com/raymyers/cpp2cs/pkg/params"
)

// specifiers are leading words that qualify a declaration without being
// part of its type.
var specifiers = map[string]bool{
	"virtual": true, "static": true, "inline": true, "explicit": true,
	"extern": true, "friend": true, "mutable": true, "__forceinline": true,
	"afx_msg": true, "constexpr": true,
}

// ErrNotFunction is returned when tokens after a parameter list cannot
// belong to a function declaration, as with macro invocations that have no
// trailing semicolon.
var ErrNotFunction = errors.New("not a function declaration")

// trailers may follow the parameter list without changing the signature.
var trailers = map[string]bool{"override": true, "final": true, "volatile": true}

// Head is the part of a function declaration before its parameter list
type Head struct {
	Specifiers map[string]bool
	ReturnType string
	// Qualifier is the class in `Class::Name`, empty when unqualified
	Qualifier    string
	Name         string
	IsDestructor bool
}

// Has reports whether the head carried the given specifier.
func (h Head) Has(spec string) bool {
	return h.Specifiers[spec]
}

// ParseHead splits the tokens before a function's `(` into specifiers,
// return type, qualifier and name. ok is false when there is no name.
func ParseHead(toks []lexer.Token) (h Head, ok bool) {
	words := significant(toks)
	h.Specifiers = map[string]bool{}
	for len(words) > 0 {
		w := words[0]
		if specifiers[w.Text] && w.Type == lexer.TokenIdent {
			h.Specifiers[w.Text] = true
			words = words[1:]
			continue
		}
		if w.Is("__declspec") && len(words) > 1 && words[1].Is("(") {
			end := closeIn(words, 1)
			if end < 0 {
				return h, false
			}
			words = words[end+1:]
			continue
		}
		break
	}
	if len(words) == 0 {
		return h, false
	}

	nameAt := len(words) - 1
	if op := indexOf(words, "operator"); op >= 0 {
		nameAt = op
		h.Name = "operator" + lexer.Join(words[op+1:])
	} else {
		if words[nameAt].Type != lexer.TokenIdent {
			return h, false
		}
		h.Name = words[nameAt].Text
	}
	if nameAt > 0 && words[nameAt-1].Is("~") {
		h.IsDestructor = true
		nameAt--
	}
	if nameAt > 1 && words[nameAt-1].Is("::") && words[nameAt-2].Type == lexer.TokenIdent {
		h.Qualifier = words[nameAt-2].Text
		nameAt -= 2
		// drop outer namespaces of the qualifier
		for nameAt > 1 && words[nameAt-1].Is("::") {
			nameAt -= 2
		}
	}
	h.ReturnType = lexer.Render(words[:nameAt])
	return h, true
}

// Function is a function declaration or definition located in a scanner
type Function struct {
	Head Head
	// Params is the raw text between the parentheses
	Params       string
	IsConst      bool
	IsPure       bool
	Initializers []model.Initializer
	// TrailingComments sit between `)` and the body or `;`
	TrailingComments []string
	// BodyOpen and BodyClose index the braces, -1 without a body
	BodyOpen  int
	BodyClose int
	// End is the index of the last token consumed
	End  int
	Line int
}

// HasBody reports whether the function was defined in place.
func (f Function) HasBody() bool {
	return f.BodyOpen >= 0
}

// ParseFunction reads the function whose declaration starts at token start
// and whose parameter list opens at token open.
func ParseFunction(s *lexer.Scanner, start, open int) (Function, error) {
	f := Function{BodyOpen: -1, BodyClose: -1, Line: s.Line(s.Significant(start))}
	head, ok := ParseHead(s.Tokens()[start:open])
	if !ok {
		return f, fmt.Errorf("line %d: declaration has no name", f.Line)
	}
	f.Head = head
	closeParen := s.MatchingClose(open)
	if closeParen < 0 {
		return f, fmt.Errorf("line %d: %w", s.Line(open), lexer.ErrUnbalanced)
	}
	f.Params = s.Source(open+1, closeParen)

	for i := closeParen + 1; ; i++ {
		tok := s.At(i)
		switch {
		case tok.Type == lexer.TokenEOF:
			return f, fmt.Errorf("line %d: unterminated declaration of %s", f.Line, head.Name)
		case tok.IsComment():
			f.TrailingComments = append(f.TrailingComments, strings.TrimSpace(tok.Text))
		case tok.IsTrivia(), tok.Type == lexer.TokenDirective:
		case tok.Is("const"):
			f.IsConst = true
		case tok.Is("throw"), tok.Is("noexcept"), tok.Is("__attribute__"):
			if next := s.Significant(i + 1); s.At(next).Is("(") {
				if i = s.MatchingClose(next); i < 0 {
					return f, fmt.Errorf("line %d: %w", s.Line(next), lexer.ErrUnbalanced)
				}
			}
		case tok.Is("="):
			next := s.Significant(i + 1)
			if s.At(next).Text == "0" {
				f.IsPure = true
			}
			i = next
		case tok.Is(":"):
			inits, brace, err := parseInitializers(s, i+1)
			if err != nil {
				return f, err
			}
			f.Initializers = inits
			i = brace - 1
		case tok.Is("{"):
			closeBrace := s.MatchingClose(i)
			if closeBrace < 0 {
				return f, fmt.Errorf("line %d: %w", s.Line(i), lexer.ErrUnbalanced)
			}
			f.BodyOpen, f.BodyClose, f.End = i, closeBrace, closeBrace
			if semi := s.Significant(closeBrace + 1); s.At(semi).Is(";") {
				f.End = semi
			}
			return f, nil
		case tok.Is(";"):
			f.End = i
			return f, nil
		case tok.Type == lexer.TokenIdent && !trailers[tok.Text]:
			f.End = closeParen
			return f, fmt.Errorf("line %d: %w", s.Line(i), ErrNotFunction)
		}
	}
}

// StatementEnd returns the index of the last token of the statement
// starting at i: its `;`, or the `}` closing its body (plus a following
// `;`). A `}` closing an enclosing block ends the statement before it.
func StatementEnd(s *lexer.Scanner, i int) int {
	depth := 0
	for j := i; ; j++ {
		tok := s.At(j)
		if tok.Type == lexer.TokenEOF {
			return j - 1
		}
		if tok.Type != lexer.TokenPunct {
			continue
		}
		switch tok.Text {
		case "(", "[":
			depth++
		case ")", "]":
			depth--
		case "{":
			closeBrace := s.MatchingClose(j)
			if closeBrace < 0 {
				return len(s.Tokens()) - 2
			}
			if depth > 0 {
				j = closeBrace
				continue
			}
			if semi := s.Significant(closeBrace + 1); s.At(semi).Is(";") {
				return semi
			}
			return closeBrace
		case "}":
			return j - 1
		case ";":
			if depth <= 0 {
				return j
			}
		}
	}
}

// parseInitializers reads `a(x), b{y}` starting at token i and returns the
// entries and the index of the body's opening brace.
func parseInitializers(s *lexer.Scanner, i int) ([]model.Initializer, int, error) {
	var out []model.Initializer
	for {
		i = s.Significant(i)
		var name []lexer.Token
		for s.At(i).Type == lexer.TokenIdent || s.At(i).Is("::") || s.At(i).IsTrivia() {
			if !s.At(i).IsTrivia() {
				name = append(name, s.At(i))
			}
			i++
		}
		tok := s.At(i)
		if len(name) == 0 {
			if tok.Is("{") {
				return out, i, nil
			}
			return nil, 0, fmt.Errorf("line %d: malformed initializer list", s.Line(i))
		}
		if !tok.Is("(") && !tok.Is("{") {
			return nil, 0, fmt.Errorf("line %d: malformed initializer list", s.Line(i))
		}
		end := s.MatchingClose(i)
		if end < 0 {
			return nil, 0, fmt.Errorf("line %d: %w", s.Line(i), lexer.ErrUnbalanced)
		}
		out = append(out, model.Initializer{
			Member: lexer.Render(name),
			Value:  strings.TrimSpace(s.Source(i+1, end)),
		})
		i = s.Significant(end + 1)
		switch {
		case s.At(i).Is(","):
			i++
		case s.At(i).Is("{"):
			return out, i, nil
		default:
			return nil, 0, fmt.Errorf("line %d: malformed initializer list", s.Line(i))
		}
	}
}

// Method builds a model method from a parsed function. className decides
// whether the function is a constructor.
func (f Function) Method(className string, access model.Access) model.Method {
	m := model.Method{
		Name:            f.Head.Name,
		ClassName:       className,
		ReturnType:      f.Head.ReturnType,
		Parameters:      params.Parse(f.Params),
		ParamsMultiline: strings.Contains(strings.TrimSpace(f.Params), "\n"),
		IsStatic:        f.Head.Has("static"),
		IsVirtual:       f.Head.Has("virtual"),
		IsConst:         f.IsConst,
		IsPure:          f.IsPure,
		IsDestructor:    f.Head.IsDestructor,
		Access:          access,
		Initializers:    f.Initializers,
		Line:            f.Line,
	}
	if !m.IsDestructor && m.ReturnType == "" && className != "" && m.Name == className {
		m.IsConstructor = true
	}
	if n := len(m.Parameters); n > 0 && len(f.TrailingComments) > 0 {
		last := &m.Parameters[n-1]
		for _, c := range f.TrailingComments {
			last.Comments = append(last.Comments, model.PositionedComment{Text: c, Position: model.AfterName})
		}
	}
	return m
}

// Body returns the body text between the braces. Preprocessor lines
// inside a local struct are left out.
func (f Function) Body(s *lexer.Scanner, unit string) *model.Body {
	if !f.HasBody() {
		return nil
	}
	drop := map[int]bool{}
	for _, sp := range structSpans(s, f.BodyOpen, f.BodyClose) {
		directiveLines(s, sp.start, sp.end, drop)
	}
	return &model.Body{
		Text: sourceWithout(s, f.BodyOpen+1, f.BodyClose, drop),
		Unit: unit,
		Line: s.Line(f.BodyOpen),
	}
}

// LocalStructs finds struct definitions strictly inside the tokens
// (open, close). Their text has no preprocessor lines.
func LocalStructs(s *lexer.Scanner, open, close int) []model.Struct {
	var out []model.Struct
	for _, sp := range structSpans(s, open, close) {
		drop := map[int]bool{}
		directiveLines(s, sp.start, sp.end, drop)
		out = append(out, model.Struct{
			Name:    sp.name,
			IsLocal: true,
			Text:    sourceWithout(s, sp.start, sp.end+1, drop),
			Line:    s.Line(sp.start),
		})
	}
	return out
}

// structSpan is a struct definition as an inclusive token range
type structSpan struct {
	name       string
	start, end int
}

func structSpans(s *lexer.Scanner, open, close int) []structSpan {
	var out []structSpan
	for i := open + 1; i < close; i++ {
		start := i
		tok := s.At(i)
		if tok.Is("typedef") {
			i = s.Significant(i + 1)
			tok = s.At(i)
		}
		if !tok.Is("struct") {
			continue
		}
		j := s.Significant(i + 1)
		name := ""
		if s.At(j).Type == lexer.TokenIdent {
			name = s.At(j).Text
			j = s.Significant(j + 1)
		}
		if !s.At(j).Is("{") {
			continue
		}
		end := s.MatchingClose(j)
		if end < 0 || end >= close {
			break
		}
		if k := s.Find(end+1, ";"); k >= 0 && k < close {
			if alias := s.PrevSignificant(k); name == "" && s.At(alias).Type == lexer.TokenIdent {
				name = s.At(alias).Text
			}
			end = k
		}
		out = append(out, structSpan{name: name, start: start, end: end})
		i = end
	}
	return out
}

// directiveLines adds the lines covered by directives among tokens
// [from, to] to lines.
func directiveLines(s *lexer.Scanner, from, to int, lines map[int]bool) {
	for i := from; i <= to; i++ {
		tok := s.At(i)
		if tok.Type != lexer.TokenDirective {
			continue
		}
		for n := 0; n <= strings.Count(tok.Text, "\n"); n++ {
			lines[tok.Loc.Line+n] = true
		}
	}
}

// sourceWithout returns the source of tokens [from, to) minus the given
// source lines.
func sourceWithout(s *lexer.Scanner, from, to int, drop map[int]bool) string {
	text := s.Source(from, to)
	if len(drop) == 0 {
		return text
	}
	first := s.Line(from)
	lines := strings.Split(text, "\n")
	out := lines[:0]
	for i, l := range lines {
		if !drop[first+i] {
			out = append(out, l)
		}
	}
	return strings.Join(out, "\n")
}

// Comments buffers comments until the next construct claims them. A blank
// line between comments, or between the last comment and the construct,
// is kept as an empty entry.
type Comments struct {
	pending  []string
	newlines int
}

// Newline records a line break.
func (c *Comments) Newline() {
	c.newlines++
}

// Add buffers a comment.
func (c *Comments) Add(text string) {
	if len(c.pending) > 0 && c.newlines >= 2 {
		c.pending = append(c.pending, "")
	}
	c.pending = append(c.pending, strings.TrimRight(text, " \t\r"))
	c.newlines = 0
}

// Take returns and clears the buffered comments.
func (c *Comments) Take() []string {
	out := c.pending
	if len(out) > 0 && c.newlines >= 2 {
		out = append(out, "")
	}
	c.pending = nil
	c.newlines = 0
	return out
}

// Len returns the number of buffered comments.
func (c *Comments) Len() int {
	return len(c.pending)
}

func significant(toks []lexer.Token) []lexer.Token {
	out := make([]lexer.Token, 0, len(toks))
	for _, t := range toks {
		if !t.IsTrivia() && t.Type != lexer.TokenDirective && t.Type != lexer.TokenEOF {
			out = append(out, t)
		}
	}
	return out
}

func indexOf(toks []lexer.Token, text string) int {
	for i, t := range toks {
		if t.Is(text) {
			return i
		}
	}
	return -1
}

// closeIn finds the token closing the paren at index open of toks.
func closeIn(toks []lexer.Token, open int) int {
	depth := 0
	for i := open; i < len(toks); i++ {
		switch {
		case toks[i].Is("("):
			depth++
		case toks[i].Is(")"):
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}
