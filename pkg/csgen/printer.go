// Package csgen renders merged units as C# source.
package csgen

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"unicode"

	"github.com/raymyers/cpp2cs/pkg/merge"
	"github.com/raymyers/cpp2cs/pkg/model"
	"github.com/raymyers/cpp2cs/pkg/typeconv"
)

// Options controls the generated file header
type Options struct {
	Namespace string
	Usings    []string
	// InterfaceUsings are added to units that declare an interface
	InterfaceUsings []string
	Types           *typeconv.Converter
}

// Printer outputs a merged unit as C#
type Printer struct {
	w      io.Writer
	indent int
	opts   Options
	types  *typeconv.Converter
}

// NewPrinter creates a new C# printer
func NewPrinter(w io.Writer, opts Options) *Printer {
	types := opts.Types
	if types == nil {
		types = typeconv.New(nil)
	}
	return &Printer{w: w, opts: opts, types: types}
}

// Generate renders one unit.
func Generate(u *merge.Unit, opts Options) []byte {
	var buf bytes.Buffer
	NewPrinter(&buf, opts).PrintUnit(u)
	return buf.Bytes()
}

func (p *Printer) writeIndent() {
	fmt.Fprint(p.w, strings.Repeat("    ", p.indent))
}

// line writes one indented line. An empty line gets no indentation.
func (p *Printer) line(format string, args ...any) {
	text := format
	if len(args) > 0 {
		text = fmt.Sprintf(format, args...)
	}
	if text != "" {
		p.writeIndent()
	}
	fmt.Fprintln(p.w, text)
}

func (p *Printer) comments(lines []string) {
	for _, c := range lines {
		for _, l := range strings.Split(c, "\n") {
			p.line(strings.TrimRight(l, " \t"))
		}
	}
}

// PrintUnit prints a complete output file
func (p *Printer) PrintUnit(u *merge.Unit) {
	if u.FileComment != "" {
		p.comments([]string{u.FileComment})
		p.line("")
	}

	usings := append([]string{}, p.opts.Usings...)
	if hasInterface(u) {
		usings = appendMissing(usings, p.opts.InterfaceUsings...)
	}
	for _, using := range usings {
		p.line("using %s;", using)
	}
	for _, s := range u.StaticUsings {
		if p.opts.Namespace != "" {
			s = p.opts.Namespace + "." + s
		}
		p.line("using static %s;", s)
	}
	if len(usings) > 0 || len(u.StaticUsings) > 0 {
		p.line("")
	}

	if p.opts.Namespace != "" {
		p.line("namespace %s;", p.opts.Namespace)
		p.line("")
	}

	for i, c := range u.Classes {
		if i > 0 {
			p.line("")
		}
		p.printClass(c)
		if c.IsInterface && len(c.Extensions) > 0 {
			p.line("")
			p.printExtensions(c)
		}
	}
}

func hasInterface(u *merge.Unit) bool {
	for _, c := range u.Classes {
		if c.IsInterface {
			return true
		}
	}
	return false
}

func appendMissing(list []string, more ...string) []string {
	for _, m := range more {
		found := false
		for _, l := range list {
			if l == m {
				found = true
				break
			}
		}
		if !found {
			list = append(list, m)
		}
	}
	return list
}

func visibility(c *merge.Class) string {
	if c.IsDefines || c.IsInterface && c.IsExported {
		return "public"
	}
	return "internal"
}

func (p *Printer) printClass(c *merge.Class) {
	p.comments(c.Comments)
	if c.Factory != "" {
		p.line("[Create(typeof(%s))]", c.Factory)
	}

	words := []string{visibility(c)}
	if c.IsStatic {
		words = append(words, "static")
	}
	if c.IsPartial {
		words = append(words, "partial")
	}
	switch {
	case c.IsInterface:
		words = append(words, "interface")
	case c.Kind != model.KindClass && !c.IsStatic:
		words = append(words, "struct")
	default:
		words = append(words, "class")
	}
	head := strings.Join(words, " ") + " " + c.Name
	if len(c.Bases) > 0 {
		bases := make([]string, len(c.Bases))
		for i, b := range c.Bases {
			bases[i] = p.types.Convert(b)
		}
		head += " : " + strings.Join(bases, ", ")
	}
	p.line(withPostfix(head, c.PostfixComment))
	p.line("{")
	p.indent++

	for _, d := range c.Defines {
		p.printDefine(c, d)
	}
	if len(c.Defines) > 0 && len(c.Items) > 0 {
		p.line("")
	}

	var prev *merge.Item
	for i := range c.Items {
		it := &c.Items[i]
		if !shown(c, *it) {
			continue
		}
		if prev != nil && (spaced(c, *prev) || spaced(c, *it)) && !(prev.Region != nil && !prev.Region.End) {
			p.line("")
		}
		p.printItem(c, *it)
		prev = it
	}

	p.indent--
	p.line("}")
}

// spaced reports whether an item is separated from its neighbours by a
// blank line. Interface signatures are not.
func spaced(c *merge.Class, it merge.Item) bool {
	if it.Method != nil {
		return !c.IsInterface
	}
	return it.Struct != nil || it.Fragment != nil
}

// shown is false for items a class kind cannot declare.
func shown(c *merge.Class, it merge.Item) bool {
	if c.IsInterface && it.Method != nil {
		return !it.Method.IsConstructor && !it.Method.IsDestructor
	}
	return true
}

func withPostfix(text, postfix string) string {
	if postfix == "" {
		return text
	}
	return text + " " + postfix
}

func (p *Printer) printItem(c *merge.Class, it merge.Item) {
	switch {
	case it.Member != nil:
		p.printMember(*it.Member)
	case it.Method != nil:
		if c.IsInterface {
			p.printInterfaceMethod(*it.Method)
		} else {
			p.printMethod(*it.Method)
		}
	case it.Struct != nil:
		p.printStruct(*it.Struct)
	case it.Region != nil:
		p.printRegion(*it.Region)
	case it.Fragment != nil:
		for _, l := range Reindent(it.Fragment.Text) {
			p.line(l)
		}
	}
}

func (p *Printer) printDefine(c *merge.Class, d model.Define) {
	p.comments(d.Comments)
	if d.Type == "" {
		p.line(withPostfix(strings.TrimSpace("//#define "+d.Name+" "+d.Value), d.PostfixComment))
		return
	}
	access := "internal"
	switch {
	case c.IsDefines:
		access = "public"
	case d.Origin == model.FromSource:
		access = "private"
	}
	p.line(withPostfix(fmt.Sprintf("%s const %s %s = %s;", access, d.Type, d.Name, d.CSValue), d.PostfixComment))
}

func (p *Printer) printRegion(r model.Region) {
	text := "//#endregion"
	if !r.End {
		text = strings.TrimSpace("//#region " + r.Name)
	}
	p.line(withPostfix(text, r.PostfixComment))
}

func accessWord(a model.Access) string {
	if a == model.AccessNone {
		return "public"
	}
	return a.String()
}

func (p *Printer) printMember(m model.Member) {
	p.comments(m.Comments)
	words := []string{accessWord(m.Access)}
	value := m.DefaultValue
	switch {
	case m.IsConst && m.IsStatic && value != "" && !m.IsArray:
		words = append(words, "const")
	case m.IsStatic && m.IsConst:
		words = append(words, "static", "readonly")
	case m.IsStatic:
		words = append(words, "static")
	case m.IsConst:
		words = append(words, "readonly")
	}

	typ := p.types.Convert(m.Type)
	decl := ""
	switch {
	case m.IsArray && value != "":
		decl = fmt.Sprintf("%s[] %s = %s;", typ, m.Name, typeconv.ConvertDefault(value))
	case m.IsArray && m.ArraySize != "":
		decl = fmt.Sprintf("%s[] %s = new %s[%s];", typ, m.Name, typ, m.ArraySize)
	case m.IsArray:
		decl = fmt.Sprintf("%s[] %s;", typ, m.Name)
	case value != "":
		decl = fmt.Sprintf("%s %s = %s;", typ, m.Name, ConvertCode(typeconv.ConvertDefault(value)))
	default:
		decl = fmt.Sprintf("%s %s;", typ, m.Name)
	}
	p.line(withPostfix(strings.Join(words, " ")+" "+decl, m.PostfixComment))
}

func (p *Printer) printStruct(s model.Struct) {
	p.comments(s.Comments)
	if s.Text != "" {
		for _, l := range Reindent(s.Text) {
			p.line(l)
		}
		return
	}
	p.line("public struct %s", s.Name)
	p.line("{")
	p.indent++
	for _, m := range s.Members {
		p.printMember(m)
	}
	for _, m := range s.Methods {
		p.line("")
		p.printMethod(m)
	}
	p.indent--
	p.line("}")
}

func (p *Printer) returnType(m model.Method) string {
	if m.ReturnType == "" {
		return "void"
	}
	return p.types.Convert(m.ReturnType)
}

// head is the part of a method declaration before the parameter list.
func (p *Printer) head(m model.Method) string {
	switch {
	case m.IsDestructor:
		return "~" + strings.TrimPrefix(m.Name, "~")
	case m.IsConstructor:
		if m.IsStatic {
			return "static " + m.Name
		}
		return accessWord(m.Access) + " " + m.Name
	}
	words := []string{accessWord(m.Access)}
	if m.IsStatic {
		words = append(words, "static")
	}
	words = append(words, p.returnType(m), m.Name)
	return strings.Join(words, " ")
}

func (p *Printer) printInterfaceMethod(m model.Method) {
	p.comments(m.Comments)
	p.signature(p.returnType(m)+" "+m.Name, m, ";", m.PostfixComment)
}

func (p *Printer) printMethod(m model.Method) {
	p.comments(m.Comments)
	p.comments(m.SourceComments)
	p.signature(p.head(m), m, "", m.PostfixComment)
	p.body(m)
}

// signature writes `head(params)suffix`, one parameter per line when the
// declaration was multi-line or any parameter carries comments. Multi-line
// parameters are aligned after the opening parenthesis.
func (p *Printer) signature(head string, m model.Method, suffix, postfix string) {
	ps := p.parameters(m.Parameters)
	if !m.ParamsMultiline && !hasComments(m.Parameters) || len(ps) == 0 {
		texts := make([]string, len(ps))
		for i, pp := range ps {
			texts[i] = pp.text
		}
		p.line(withPostfix(head+"("+strings.Join(texts, ", ")+")"+suffix, postfix))
		return
	}

	pad := strings.Repeat(" ", len(head)+1)
	for i, pp := range ps {
		lead := pad
		if i == 0 {
			lead = head + "("
		}
		for _, c := range pp.before {
			if i == 0 {
				p.line(c)
				continue
			}
			p.line(pad + c)
		}
		tail := ","
		if i == len(ps)-1 {
			tail = ")" + suffix
		}
		text := lead + pp.text + tail
		if pp.line != "" {
			text += " " + pp.line
		}
		if i == len(ps)-1 {
			text = withPostfix(text, postfix)
		}
		p.line(text)
	}
}

type param struct {
	text string
	// before holds line comments that sat before the type
	before []string
	// line holds trailing line comments
	line string
}

func hasComments(ps []model.Parameter) bool {
	for _, pp := range ps {
		if len(pp.Comments) > 0 {
			return true
		}
	}
	return false
}

// parameters renders each parameter. Non-const pointers become out
// parameters and non-const references become ref parameters.
func (p *Printer) parameters(ps []model.Parameter) []param {
	out := make([]param, 0, len(ps))
	for i, pp := range ps {
		var words []string
		var res param
		block := func(pos model.CommentPosition) {
			for _, c := range pp.CommentsAt(pos) {
				if strings.HasPrefix(c, "//") {
					if pos == model.BeforeType {
						res.before = append(res.before, c)
					} else {
						res.line = strings.TrimSpace(res.line + " " + c)
					}
					continue
				}
				words = append(words, c)
			}
		}

		block(model.BeforeType)
		modifier := ""
		switch {
		case pp.IsPointer && !pp.IsConst:
			modifier = "out"
		case pp.IsReference && !pp.IsConst:
			modifier = "ref"
		}
		if modifier != "" {
			words = append(words, modifier)
		}
		words = append(words, p.types.Convert(pp.Type))
		block(model.AfterType)
		name := pp.Name
		if name == "" {
			name = fmt.Sprintf("arg%d", i)
		}
		if pp.DefaultValue != "" && modifier == "" {
			name += " = " + ConvertCode(typeconv.ConvertDefault(pp.DefaultValue))
		}
		words = append(words, name)
		block(model.AfterName)
		res.text = strings.Join(words, " ")
		out = append(out, res)
	}
	return out
}

func (p *Printer) body(m model.Method) {
	p.line("{")
	p.indent++
	for _, init := range m.Initializers {
		p.line("%s = %s;", init.Member, ConvertCode(typeconv.ConvertDefault(init.Value)))
	}
	if b := m.Body(); b != nil {
		for _, l := range Reindent(ConvertCode(b.Text)) {
			p.line(l)
		}
	} else {
		p.line("// no definition found")
		if rt := p.returnType(m); rt != "void" && !m.IsConstructor && !m.IsDestructor {
			p.line("return default;")
		}
	}
	p.indent--
	p.line("}")
}

func (p *Printer) printExtensions(c *merge.Class) {
	p.line("%s static class %sExtensions", visibility(c), c.Name)
	p.line("{")
	p.indent++
	receiver := receiverName(c.Name)
	for i, m := range c.Extensions {
		if i > 0 {
			p.line("")
		}
		p.comments(m.Comments)
		p.comments(m.SourceComments)
		ext := m
		ext.Parameters = append([]model.Parameter{{Type: c.Name, Name: receiver}}, m.Parameters...)
		head := fmt.Sprintf("public static %s %s", p.returnType(m), m.Name)
		ps := p.parameters(ext.Parameters)
		ps[0].text = "this " + ps[0].text
		texts := make([]string, len(ps))
		for j, pp := range ps {
			texts[j] = pp.text
		}
		p.line(withPostfix(head+"("+strings.Join(texts, ", ")+")", m.PostfixComment))
		p.body(m)
	}
	p.indent--
	p.line("}")
}

// receiverName derives `sample` from `ISample`.
func receiverName(iface string) string {
	name := iface
	if len(name) > 1 && name[0] == 'I' && unicode.IsUpper(rune(name[1])) {
		name = name[1:]
	}
	r := []rune(name)
	r[0] = unicode.ToLower(r[0])
	return string(r)
}
