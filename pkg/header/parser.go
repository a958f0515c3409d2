// Package header implements a recursive descent parser for C++ header
// files. It recognizes classes, structs, typedef'd structs, members,
// methods and directives, and keeps everything else as verbatim fragments.
package header

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"unicode"

	"github.com/raymyers/cpp2cs/pkg/decl"
	"github.com/raymyers/cpp2cs/pkg/diag"
	"github.com/raymyers/cpp2cs/pkg/directive"
	"github.com/raymyers/cpp2cs/pkg/lexer"
	"github.com/raymyers/cpp2cs/pkg/model"
	"github.com/raymyers/cpp2cs/pkg/params"
)

// Parser parses one header into a model.HeaderFile
type Parser struct {
	s        *lexer.Scanner
	name     string
	file     *model.HeaderFile
	comments decl.Comments
	errors   []error
	order    int

	// seen is set once a directive or construct has been read; comments
	// before that are the file comment
	seen bool

	// postfix receives a comment on postfixLine, the line the last
	// construct ended on
	postfix     func(string)
	postfixLine int
}

// New creates a Parser for header text. name is the unit name used in
// diagnostics and as the origin of the parsed entities.
func New(name, src string) *Parser {
	return &Parser{
		s:    lexer.NewScanner(src),
		name: name,
		file: &model.HeaderFile{Name: name},
	}
}

// Errors returns the fatal parse errors
func (p *Parser) Errors() []error {
	return p.errors
}

func (p *Parser) addError(err error) {
	p.errors = append(p.errors, err)
}

// Parse parses header text.
func Parse(name, text string) (*model.HeaderFile, error) {
	p := New(name, text)
	hf := p.Parse()
	if len(p.errors) > 0 {
		return hf, fmt.Errorf("%s: %w", name, errors.Join(p.errors...))
	}
	return hf, nil
}

// ParseFile reads and parses one header. The unit name is the file's base
// name.
func ParseFile(path string) (*model.HeaderFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, diag.Wrap(diag.IO, path, err)
	}
	hf, err := Parse(model.BaseName(path), string(data))
	if hf != nil {
		hf.Path = path
	}
	return hf, err
}

// Parse parses the whole input. Parsing stops at the first unbalanced
// bracket; everything read up to there is kept.
func (p *Parser) Parse() *model.HeaderFile {
	for !p.s.EOF() && len(p.errors) == 0 {
		p.parseTopLevel()
	}
	if rest := p.comments.Take(); len(rest) > 0 {
		p.file.Fragments = append(p.file.Fragments, model.Fragment{
			Text:  strings.TrimSpace(strings.Join(rest, "\n")),
			Order: p.nextOrder(),
		})
	}
	return p.file
}

func (p *Parser) nextOrder() int {
	p.order++
	return p.order
}

// trivia consumes whitespace and comments, routing each comment to the
// postfix slot or the pending buffer.
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

// fileComment claims pending comments as the file comment when nothing has
// been read yet.
func (p *Parser) fileComment() {
	if !p.seen && p.comments.Len() > 0 {
		p.file.FileComment = joinComments(p.comments.Take())
	}
	p.seen = true
}

func (p *Parser) parseTopLevel() {
	if p.trivia() {
		return
	}
	tok := p.s.Cur()
	start := p.s.Pos()
	switch {
	case tok.Type == lexer.TokenDirective:
		p.fileComment()
		p.directive(nil)
		p.s.Advance()
	case tok.Is("class"), tok.Is("struct"):
		p.seen = true
		cls, ok := p.parseAggregate(kindOf(tok.Text))
		if !ok {
			p.forwardOrFragment(start, nil)
			return
		}
		p.file.Classes = append(p.file.Classes, *cls)
		idx := len(p.file.Classes) - 1
		p.setPostfix(p.s.Line(p.s.Pos()-1), func(c string) { p.file.Classes[idx].PostfixComment = c })
	case tok.Is("typedef") && p.s.At(p.s.Significant(start+1)).Is("struct"):
		p.seen = true
		p.s.AdvanceTo(p.s.Significant(start + 1))
		cls, ok := p.parseAggregate(model.KindTypedefStruct)
		if !ok {
			p.fragment(start, nil)
			return
		}
		p.file.Classes = append(p.file.Classes, *cls)
		idx := len(p.file.Classes) - 1
		p.setPostfix(p.s.Line(p.s.Pos()-1), func(c string) { p.file.Classes[idx].PostfixComment = c })
	case tok.Is("namespace"), tok.Is("extern") && p.s.At(p.s.Significant(start+1)).Type == lexer.TokenString:
		// enter the block; its closing brace is skipped below
		open := p.s.Find(start, "{")
		if semi := p.s.Find(start, ";"); open < 0 || semi >= 0 && semi < open {
			p.fragment(start, nil)
			return
		}
		p.s.AdvanceTo(open + 1)
	case tok.Is("}"), tok.Is(";"):
		p.s.Advance()
	default:
		p.seen = true
		p.fragment(start, nil)
	}
}

func (p *Parser) directive(cls *model.Class) {
	tok := p.s.Cur()
	d := directive.Parse(tok.Text, tok.Loc.Line)
	switch d.Type {
	case directive.DirInclude:
		p.file.Includes = append(p.file.Includes, d.Name)
	case directive.DirDefine, directive.DirMacro:
		def, ok := d.Define(model.FromHeader, p.name)
		if !ok {
			return
		}
		def.Comments = p.comments.Take()
		p.file.Defines = append(p.file.Defines, def)
		idx := len(p.file.Defines) - 1
		p.setPostfix(tok.Loc.Line, func(c string) { p.file.Defines[idx].PostfixComment = c })
	case directive.DirRegion, directive.DirEndRegion:
		if cls == nil {
			return
		}
		r, _ := d.Region()
		r.Order = p.nextOrder()
		cls.Regions = append(cls.Regions, r)
		idx := len(cls.Regions) - 1
		p.setPostfix(tok.Loc.Line, func(c string) { cls.Regions[idx].PostfixComment = c })
	}
}

func kindOf(keyword string) model.Kind {
	if keyword == "struct" {
		return model.KindStruct
	}
	return model.KindClass
}

// parseAggregate parses `class|struct [__declspec(..)] Name [: bases] {
// ... } [Alias];` with the scanner on the keyword. ok is false for forward
// declarations and elaborated type uses, leaving the scanner in place.
func (p *Parser) parseAggregate(kind model.Kind) (*model.Class, bool) {
	start := p.s.Pos()
	cls := &model.Class{Kind: kind, Unit: p.name, Line: p.s.Line(start)}

	brace := -1
	var bases []lexer.Token
	inBases := false
scan:
	for i := start + 1; ; i++ {
		tok := p.s.At(i)
		switch {
		case tok.IsTrivia():
		case tok.Type == lexer.TokenEOF, tok.Is(";"), tok.Is("("), tok.Is("="):
			return nil, false
		case tok.Is("{"):
			brace = i
			break scan
		case tok.Is("__declspec"):
			open := p.s.Significant(i + 1)
			end := p.s.MatchingClose(open)
			if end < 0 {
				return nil, false
			}
			if strings.Contains(p.s.Source(open, end+1), "dllexport") {
				cls.IsExported = true
			}
			i = end
		case tok.Is(":") && !inBases:
			inBases = true
		case inBases:
			bases = append(bases, tok)
		case tok.Type == lexer.TokenIdent:
			cls.Name = tok.Text
		}
	}
	cls.Bases = splitBases(bases)
	cls.Comments = p.comments.Take()

	closeBrace := p.s.MatchingClose(brace)
	if closeBrace < 0 {
		p.addError(fmt.Errorf("line %d: class %s: %w", p.s.Line(brace), cls.Name, lexer.ErrUnbalanced))
		p.s.AdvanceTo(len(p.s.Tokens()) - 1)
		return cls, true
	}
	p.s.AdvanceTo(brace + 1)
	p.parseClassBody(cls, closeBrace)

	// `} Alias;` names typedef'd and anonymous structs
	end := closeBrace
	for i := p.s.Significant(closeBrace + 1); ; i = p.s.Significant(i + 1) {
		tok := p.s.At(i)
		if tok.Is(";") {
			end = i
			break
		}
		if tok.Type != lexer.TokenIdent {
			break
		}
		if kind == model.KindTypedefStruct || cls.Name == "" {
			cls.Name = tok.Text
		}
	}
	p.s.AdvanceTo(end + 1)
	cls.IsInterface = isInterface(cls)
	return cls, true
}

// splitBases turns `public A, private B<int>` into ["A", "B<int>"].
func splitBases(toks []lexer.Token) []string {
	var out []string
	var cur []lexer.Token
	depth := 0
	flush := func() {
		if len(cur) > 0 {
			out = append(out, lexer.Render(cur))
		}
		cur = nil
	}
	for _, tok := range toks {
		switch {
		case tok.Is("<"):
			depth++
		case tok.Is(">"):
			depth--
		case tok.Is(",") && depth == 0:
			flush()
			continue
		case depth == 0 && (tok.Is("public") || tok.Is("protected") || tok.Is("private") || tok.Is("virtual")):
			continue
		}
		cur = append(cur, tok)
	}
	flush()
	return out
}

// parseClassBody parses declarations up to the brace at index closeBrace.
func (p *Parser) parseClassBody(cls *model.Class, closeBrace int) {
	access := cls.Kind.DefaultAccess()
	for p.s.Pos() < closeBrace && len(p.errors) == 0 {
		if p.trivia() {
			continue
		}
		tok := p.s.Cur()
		start := p.s.Pos()
		next := p.s.Significant(start + 1)
		switch {
		case tok.Type == lexer.TokenDirective:
			p.directive(cls)
			p.s.Advance()
		case tok.Type == lexer.TokenIdent && p.s.At(next).Is(":"):
			if a, ok := model.ParseAccess(tok.Text); ok {
				access = a
			}
			// Qt-style `signals:` and friends only switch sections
			p.s.AdvanceTo(next + 1)
		case tok.Is("public") || tok.Is("protected") || tok.Is("private"):
			// `public slots:`
			colon := p.s.Find(start, ":")
			if a, ok := model.ParseAccess(tok.Text); ok {
				access = a
			}
			if colon < 0 || colon > closeBrace {
				p.fragment(start, cls)
				continue
			}
			p.s.AdvanceTo(colon + 1)
		case tok.Is(";"):
			p.s.Advance()
		case tok.Is("class"), tok.Is("struct"):
			p.nested(cls, kindOf(tok.Text), start, access)
		case tok.Is("typedef") && p.s.At(next).Is("struct"):
			p.s.AdvanceTo(next)
			p.nested(cls, model.KindTypedefStruct, start, access)
		case tok.Is("enum"), tok.Is("typedef"), tok.Is("friend"), tok.Is("using"), tok.Is("template"):
			p.fragment(start, cls)
		default:
			p.declaration(cls, start, access)
		}
	}
	if rest := p.comments.Take(); len(rest) > 0 {
		cls.Fragments = append(cls.Fragments, model.Fragment{
			Text:  joinComments(rest),
			Order: p.nextOrder(),
			Line:  p.s.Line(closeBrace),
		})
	}
	p.s.AdvanceTo(closeBrace + 1)
}

// nested parses an aggregate declared inside cls.
func (p *Parser) nested(cls *model.Class, kind model.Kind, start int, access model.Access) {
	inner, ok := p.parseAggregate(kind)
	if !ok {
		if end := decl.StatementEnd(p.s, start); p.isForwardDecl(start, end) {
			p.s.AdvanceTo(end + 1)
			return
		}
		// `struct Foo* m_p;` is an elaborated member type
		p.declaration(cls, start, access)
		return
	}
	cls.Structs = append(cls.Structs, model.Struct{
		Name:     inner.Name,
		Members:  inner.Members,
		Methods:  inner.Methods,
		Comments: inner.Comments,
		Order:    p.nextOrder(),
		Line:     inner.Line,
	})
}

// declaration parses a method or member declaration starting at start.
func (p *Parser) declaration(cls *model.Class, start int, access model.Access) {
	end := p.statementEnd(start)
	paren, eq, brace := -1, -1, -1
	depth := 0
	for i := start; i <= end; i++ {
		tok := p.s.At(i)
		if tok.Type != lexer.TokenPunct {
			continue
		}
		switch tok.Text {
		case "(":
			if depth == 0 && paren < 0 {
				paren = i
			}
			depth++
		case "[":
			depth++
		case ")", "]":
			depth--
		case "=":
			if depth == 0 && eq < 0 {
				eq = i
			}
		case "{":
			if depth == 0 && brace < 0 {
				brace = i
			}
		}
	}

	isMethod := paren >= 0 && (eq < 0 || paren < eq) && (brace < 0 || paren < brace) &&
		!p.s.At(p.s.Significant(paren+1)).Is("*")
	if isMethod {
		p.method(cls, start, paren, access)
		return
	}
	if !p.s.At(end).Is(";") {
		p.fragment(start, cls)
		return
	}
	p.members(cls, start, end, access)
}

func (p *Parser) method(cls *model.Class, start, paren int, access model.Access) {
	f, err := decl.ParseFunction(p.s, start, paren)
	switch {
	case errors.Is(err, lexer.ErrUnbalanced):
		p.addError(err)
		return
	case err != nil:
		p.fragmentTo(start, f.End, cls)
		return
	}
	m := f.Method(cls.Name, access)
	m.Inline = f.Body(p.s, p.name)
	if f.HasBody() {
		m.LocalStructs = decl.LocalStructs(p.s, f.BodyOpen, f.BodyClose)
	}
	m.Comments = p.comments.Take()
	m.Order = p.nextOrder()
	cls.Methods = append(cls.Methods, m)
	idx := len(cls.Methods) - 1
	p.setPostfix(p.s.Line(f.End), func(c string) { cls.Methods[idx].PostfixComment = c })
	p.s.AdvanceTo(f.End + 1)
}

var memberSpecifiers = map[string]bool{
	"static": true, "mutable": true, "inline": true, "constexpr": true, "struct": true, "class": true,
}

// members parses `[static] T a [= v], b[N];` ending at the `;` at end.
func (p *Parser) members(cls *model.Class, start, end int, access model.Access) {
	isStatic := false
	from := start
	for ; from < end; from++ {
		tok := p.s.At(from)
		if tok.IsTrivia() {
			continue
		}
		if !memberSpecifiers[tok.Text] || tok.Type != lexer.TokenIdent {
			break
		}
		isStatic = isStatic || tok.Text == "static"
	}

	var out []model.Member
	var typePrefix string
	for k, b := range params.Split(p.s.Source(from, end)) {
		text := b.Text
		if k > 0 {
			text = typePrefix + " " + text
		}
		text, size, isArray := cutArray(text)
		prm := params.Extract(params.Block{Text: text})
		if prm.Name == "" {
			p.fragmentTo(start, end, cls)
			return
		}
		if k == 0 {
			typePrefix = prm.Type
			if prm.IsConst {
				typePrefix = "const " + typePrefix
			}
		}
		out = append(out, model.Member{
			Type:         prm.Type,
			Name:         prm.Name,
			IsArray:      isArray,
			ArraySize:    size,
			DefaultValue: prm.DefaultValue,
			IsStatic:     isStatic,
			IsConst:      prm.IsConst,
			IsPointer:    prm.IsPointer,
			Access:       access,
			Order:        p.nextOrder(),
			Line:         p.s.Line(p.s.Significant(start)),
		})
	}
	if len(out) == 0 {
		p.fragmentTo(start, end, cls)
		return
	}
	out[0].Comments = p.comments.Take()
	cls.Members = append(cls.Members, out...)
	idx := len(cls.Members) - 1
	p.setPostfix(p.s.Line(end), func(c string) { cls.Members[idx].PostfixComment = c })
	p.s.AdvanceTo(end + 1)
}

// cutArray removes `[size]` from a declarator.
func cutArray(text string) (rest, size string, ok bool) {
	head := text
	if eq := strings.IndexByte(text, '='); eq >= 0 {
		head = text[:eq]
	}
	open := strings.IndexByte(head, '[')
	if open < 0 {
		return text, "", false
	}
	closeAt := strings.IndexByte(head[open:], ']')
	if closeAt < 0 {
		return text, "", false
	}
	closeAt += open
	return text[:open] + text[closeAt+1:], strings.TrimSpace(text[open+1 : closeAt]), true
}

// forwardOrFragment skips `class Name;` and keeps anything else as a
// fragment.
func (p *Parser) forwardOrFragment(start int, cls *model.Class) {
	end := decl.StatementEnd(p.s, start)
	if p.isForwardDecl(start, end) {
		p.s.AdvanceTo(end + 1)
		return
	}
	p.fragmentTo(start, end, cls)
}

func (p *Parser) isForwardDecl(start, end int) bool {
	n := 0
	for i := start; i <= end; i++ {
		if !p.s.At(i).IsTrivia() {
			n++
		}
	}
	return n == 3 && p.s.At(end).Is(";")
}

// fragment keeps the statement at start as verbatim text.
func (p *Parser) fragment(start int, cls *model.Class) {
	p.fragmentTo(start, p.statementEnd(start), cls)
}

// statementEnd is decl.StatementEnd, except that a macro name alone on
// its line, like `Q_OBJECT`, ends where it stands.
func (p *Parser) statementEnd(start int) int {
	if p.bareMacro(start) {
		return start
	}
	return decl.StatementEnd(p.s, start)
}

func (p *Parser) bareMacro(i int) bool {
	if tok := p.s.At(i); tok.Type != lexer.TokenIdent || !isMacroName(tok.Text) {
		return false
	}
	for j := i + 1; ; j++ {
		tok := p.s.At(j)
		switch {
		case tok.Type == lexer.TokenWhitespace:
		case tok.Type == lexer.TokenNewline, tok.Type == lexer.TokenLineComment, tok.Type == lexer.TokenEOF:
			next := p.s.At(p.s.Significant(j))
			return next.Type == lexer.TokenIdent || next.Type == lexer.TokenDirective ||
				next.Type == lexer.TokenEOF || next.Is("}") || next.Is("~")
		default:
			return false
		}
	}
}

// isMacroName reports whether name is spelled like a macro: upper case,
// digits and underscores.
func isMacroName(name string) bool {
	if len(name) < 2 || !unicode.IsUpper(rune(name[0])) {
		return false
	}
	for _, r := range name {
		if !unicode.IsUpper(r) && !unicode.IsDigit(r) && r != '_' {
			return false
		}
	}
	return true
}

func (p *Parser) fragmentTo(start, end int, cls *model.Class) {
	if end < start {
		end = start
	}
	line := p.s.Line(p.s.Significant(start))
	text := strings.TrimSpace(p.s.Source(start, end+1))
	frag := model.Fragment{Text: text, Order: p.nextOrder(), Line: line}
	if comments := p.comments.Take(); len(comments) > 0 {
		frag.Text = joinComments(comments) + "\n" + text
	}
	d := diag.New(diag.Unrecognized, p.name, line, "unrecognized declaration %q", summarize(text))
	if cls != nil {
		cls.Fragments = append(cls.Fragments, frag)
		d = d.In(cls.Name, "")
	} else {
		p.file.Fragments = append(p.file.Fragments, frag)
	}
	p.file.Diagnostics.Add(d)
	p.s.AdvanceTo(end + 1)
}

func summarize(text string) string {
	if i := strings.IndexByte(text, '\n'); i >= 0 {
		text = text[:i] + " ..."
	}
	if len(text) > 60 {
		text = text[:57] + "..."
	}
	return text
}

func joinComments(comments []string) string {
	for len(comments) > 0 && comments[len(comments)-1] == "" {
		comments = comments[:len(comments)-1]
	}
	return strings.Join(comments, "\n")
}

// isInterface reports whether a class only declares pure virtual methods,
// ignoring constructors, destructors and statics. A class named I<Upper>
// qualifies with at least one pure method.
func isInterface(c *model.Class) bool {
	if len(c.Members) > 0 {
		return false
	}
	pure, other := 0, 0
	for _, m := range c.Methods {
		switch {
		case m.IsPure:
			pure++
		case m.IsStatic, m.IsConstructor, m.IsDestructor:
		default:
			other++
		}
	}
	if pure == 0 {
		return false
	}
	return other == 0 || hasInterfaceMarker(c.Name)
}

func hasInterfaceMarker(name string) bool {
	return len(name) > 1 && name[0] == 'I' && unicode.IsUpper(rune(name[1]))
}
