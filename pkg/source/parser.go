// Package source parses C++ source files for out-of-line method
// definitions, free functions, static member initializers, defines and
// region markers.
package source

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/raymyers/cpp2cs/pkg/decl"
	"github.com/raymyers/cpp2cs/pkg/diag"
	"github.com/raymyers/cpp2cs/pkg/directive"
	"github.com/raymyers/cpp2cs/pkg/lexer"
	"github.com/raymyers/cpp2cs/pkg/model"
)

// Parser parses one source file into a model.SourceFile
type Parser struct {
	s        *lexer.Scanner
	name     string
	file     *model.SourceFile
	comments decl.Comments
	errors   []error
	seen     bool

	// regions read since the last definition
	regions []model.Region

	postfix     func(string)
	postfixLine int
}

// New creates a Parser for source text.
func New(name, src string) *Parser {
	return &Parser{
		s:    lexer.NewScanner(src),
		name: name,
		file: &model.SourceFile{Name: name},
	}
}

// Errors returns the fatal parse errors
func (p *Parser) Errors() []error {
	return p.errors
}

func (p *Parser) addError(err error) {
	p.errors = append(p.errors, err)
}

// Parse parses source text.
func Parse(name, text string) (*model.SourceFile, error) {
	p := New(name, text)
	sf := p.Parse()
	if len(p.errors) > 0 {
		return sf, fmt.Errorf("%s: %w", name, errors.Join(p.errors...))
	}
	return sf, nil
}

// ParseFile reads and parses one source file.
func ParseFile(path string) (*model.SourceFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, diag.Wrap(diag.IO, path, err)
	}
	sf, err := Parse(model.BaseName(path), string(data))
	if sf != nil {
		sf.Path = path
	}
	return sf, err
}

// Parse parses the whole input.
func (p *Parser) Parse() *model.SourceFile {
	for !p.s.EOF() && len(p.errors) == 0 {
		p.parseTopLevel()
	}
	p.file.TrailingRegions = append(p.file.TrailingRegions, p.regions...)
	p.regions = nil
	return p.file
}

func (p *Parser) trivia() bool {
	tok := p.s.Cur()
	switch {
	case tok.Type == lexer.TokenNewline:
		p.comments.Newline()
	case tok.Type == lexer.TokenWhitespace:
	case tok.IsComment():
		if p.postfix != nil && tok.Loc.Line == p.postfixLine {
			p.postfix(strings.TrimSpace(tok.Text))
		} else {
			p.comments.Add(tok.Text)
		}
		p.postfix = nil
	default:
		return false
	}
	p.s.Advance()
	return true
}

func (p *Parser) setPostfix(line int, f func(string)) {
	p.postfix = f
	p.postfixLine = line
}

func (p *Parser) parseTopLevel() {
	if p.trivia() {
		return
	}
	tok := p.s.Cur()
	start := p.s.Pos()
	switch {
	case tok.Type == lexer.TokenDirective:
		if !p.seen && p.comments.Len() > 0 {
			p.file.FileComment = strings.Join(trimBlank(p.comments.Take()), "\n")
		}
		p.seen = true
		p.directive()
		p.s.Advance()
	case tok.Is("struct"), tok.Is("class"), tok.Is("typedef") && p.s.At(p.s.Significant(start+1)).Is("struct"):
		p.seen = true
		if !p.topLevelStruct(start) {
			p.statement(start)
		}
	case tok.Is("namespace"), tok.Is("extern") && p.s.At(p.s.Significant(start+1)).Type == lexer.TokenString:
		open := p.s.Find(start, "{")
		if semi := p.s.Find(start, ";"); open < 0 || semi >= 0 && semi < open {
			p.statement(start)
			return
		}
		p.s.AdvanceTo(open + 1)
	case tok.Is("}"), tok.Is(";"):
		p.s.Advance()
	default:
		p.seen = true
		p.statement(start)
	}
}

func (p *Parser) directive() {
	tok := p.s.Cur()
	d := directive.Parse(tok.Text, tok.Loc.Line)
	switch d.Type {
	case directive.DirInclude:
		p.file.Includes = append(p.file.Includes, d.Name)
	case directive.DirDefine, directive.DirMacro:
		def, ok := d.Define(model.FromSource, p.name)
		if !ok {
			return
		}
		def.Comments = p.comments.Take()
		p.file.Defines = append(p.file.Defines, def)
		idx := len(p.file.Defines) - 1
		p.setPostfix(tok.Loc.Line, func(c string) { p.file.Defines[idx].PostfixComment = c })
	case directive.DirRegion, directive.DirEndRegion:
		r, _ := d.Region()
		p.regions = append(p.regions, r)
		idx := len(p.regions) - 1
		p.setPostfix(tok.Loc.Line, func(c string) { p.regions[idx].PostfixComment = c })
	}
}

// topLevelStruct records a struct defined at file scope verbatim.
func (p *Parser) topLevelStruct(start int) bool {
	i := start
	if p.s.At(i).Is("typedef") {
		i = p.s.Significant(i + 1)
	}
	name := ""
	open := -1
	for j := p.s.Significant(i + 1); open < 0; j = p.s.Significant(j + 1) {
		tok := p.s.At(j)
		switch {
		case tok.Is("{"):
			open = j
		case tok.Type == lexer.TokenIdent && name == "":
			name = tok.Text
		case tok.Is(":") || tok.Type == lexer.TokenIdent || tok.Is(",") || tok.Is("<") || tok.Is(">"):
		default:
			return false
		}
	}
	closeBrace := p.s.MatchingClose(open)
	if closeBrace < 0 {
		p.addError(fmt.Errorf("line %d: struct %s: %w", p.s.Line(open), name, lexer.ErrUnbalanced))
		return true
	}
	end := decl.StatementEnd(p.s, start)
	if end < closeBrace {
		end = closeBrace
	}
	if name == "" {
		if alias := p.s.PrevSignificant(end); p.s.At(alias).Type == lexer.TokenIdent {
			name = p.s.At(alias).Text
		}
	}
	p.file.Structs = append(p.file.Structs, model.Struct{
		Name:     name,
		Text:     p.s.Source(start, end+1),
		Comments: p.comments.Take(),
		Order:    len(p.file.Structs) + len(p.file.Definitions),
		Line:     p.s.Line(start),
	})
	p.s.AdvanceTo(end + 1)
	return true
}

// statement classifies the file-scope statement at start as a function
// definition, a static member initializer, a prototype or a fragment.
func (p *Parser) statement(start int) {
	end := decl.StatementEnd(p.s, start)
	paren, eq := -1, -1
	depth := 0
	for i := start; i <= end; i++ {
		tok := p.s.At(i)
		if tok.Type != lexer.TokenPunct {
			continue
		}
		switch tok.Text {
		case "(":
			if depth == 0 && paren < 0 && eq < 0 {
				paren = i
			}
			depth++
		case "[", "{":
			depth++
		case ")", "]", "}":
			depth--
		case "=":
			if depth == 0 && eq < 0 {
				eq = i
			}
		}
	}

	switch {
	case paren >= 0:
		p.function(start, paren)
	case eq >= 0 && p.s.At(end).Is(";"):
		if !p.staticInit(start, eq, end) {
			p.fragment(start, end)
		}
	default:
		p.fragment(start, end)
	}
}

func (p *Parser) function(start, paren int) {
	f, err := decl.ParseFunction(p.s, start, paren)
	switch {
	case errors.Is(err, lexer.ErrUnbalanced):
		p.addError(err)
		return
	case err != nil:
		p.fragment(start, f.End)
		return
	}
	if !f.HasBody() {
		// prototypes carry nothing the model needs
		p.comments.Take()
		p.s.AdvanceTo(f.End + 1)
		return
	}

	m := f.Method(f.Head.Qualifier, model.AccessNone)
	m.OutOfLine = f.Body(p.s, p.name)
	m.LocalStructs = decl.LocalStructs(p.s, f.BodyOpen, f.BodyClose)
	m.SourceComments = p.comments.Take()
	m.Order = len(p.file.Structs) + len(p.file.Definitions)

	p.file.Definitions = append(p.file.Definitions, model.Definition{
		ClassName: f.Head.Qualifier,
		Method:    m,
		Regions:   p.regions,
		Unit:      p.name,
		Line:      f.Line,
	})
	p.regions = nil
	idx := len(p.file.Definitions) - 1
	p.setPostfix(p.s.Line(f.End), func(c string) { p.file.Definitions[idx].Method.PostfixComment = c })
	p.s.AdvanceTo(f.End + 1)
}

// staticInit parses `[static] [const] [T] Class::member[[]] = value;`.
func (p *Parser) staticInit(start, eq, end int) bool {
	var words []lexer.Token
	for i := start; i < eq; i++ {
		if tok := p.s.At(i); !tok.IsTrivia() {
			words = append(words, tok)
		}
	}
	// `[N]` after the member name
	n := len(words)
	if n > 0 && words[n-1].Is("]") {
		for n > 0 && !words[n-1].Is("[") {
			n--
		}
		n--
	}
	if n < 3 || !words[n-2].Is("::") || words[n-1].Type != lexer.TokenIdent || words[n-3].Type != lexer.TokenIdent {
		return false
	}
	init := model.StaticInit{
		ClassName: words[n-3].Text,
		Member:    words[n-1].Text,
		Value:     strings.TrimSpace(p.s.Source(eq+1, end)),
		Unit:      p.name,
		Line:      p.s.Line(p.s.Significant(start)),
	}
	var typ []lexer.Token
	for _, w := range words[:n-3] {
		switch w.Text {
		case "const":
			init.IsConst = true
		case "static":
		default:
			typ = append(typ, w)
		}
	}
	init.Type = lexer.Render(typ)
	p.comments.Take()
	p.file.StaticInits = append(p.file.StaticInits, init)
	p.s.AdvanceTo(end + 1)
	return true
}

func (p *Parser) fragment(start, end int) {
	if end < start {
		end = start
	}
	line := p.s.Line(p.s.Significant(start))
	text := strings.TrimSpace(p.s.Source(start, end+1))
	frag := model.Fragment{Text: text, Order: len(p.file.Structs) + len(p.file.Definitions), Line: line}
	if comments := trimBlank(p.comments.Take()); len(comments) > 0 {
		frag.Text = strings.Join(comments, "\n") + "\n" + text
	}
	p.file.Fragments = append(p.file.Fragments, frag)
	first := text
	if i := strings.IndexByte(first, '\n'); i >= 0 {
		first = first[:i] + " ..."
	}
	p.file.Diagnostics.Add(diag.New(diag.Unrecognized, p.name, line, "unrecognized statement %q", first))
	p.s.AdvanceTo(end + 1)
}

func trimBlank(comments []string) []string {
	for len(comments) > 0 && comments[len(comments)-1] == "" {
		comments = comments[:len(comments)-1]
	}
	return comments
}
