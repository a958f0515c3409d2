// Package merge joins parsed headers and sources into output units: it
// attaches out-of-line bodies to their declarations, decides which classes
// are emitted as partial classes, and routes defines, free functions and
// source-local types to a host class.
//
// Merge is a barrier. It needs every unit of the run, because matching and
// the partial decision depend on all definitions of a class.
package merge

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/raymyers/cpp2cs/pkg/diag"
	"github.com/raymyers/cpp2cs/pkg/model"
	"github.com/raymyers/cpp2cs/pkg/params"
	"github.com/raymyers/cpp2cs/pkg/signature"
)

// ErrDuplicateUnit is returned when two inputs of the same kind share a
// unit name, since both would write the same output file.
var ErrDuplicateUnit = errors.New("duplicate unit name")

// Options controls merging
type Options struct {
	// DefinesSuffix names the class that holds the defines of a header
	// without a host class: <Header><DefinesSuffix>
	DefinesSuffix string
}

// DefaultOptions returns the options used by the converter.
func DefaultOptions() Options {
	return Options{DefinesSuffix: "Defines"}
}

// Item is one entry of a class body, in output order. Exactly one field is
// set.
type Item struct {
	Member   *model.Member
	Method   *model.Method
	Struct   *model.Struct
	Region   *model.Region
	Fragment *model.Fragment
}

// Class is a class as it is written to one unit
type Class struct {
	Name           string
	Kind           model.Kind
	Bases          []string
	IsInterface    bool
	IsExported     bool
	IsStatic       bool
	IsPartial      bool
	IsDefines      bool
	Comments       []string
	PostfixComment string
	Defines        []model.Define
	Items          []Item
	// Extensions holds the static methods of an interface
	Extensions []model.Method
	// Factory is the concrete class an interface's factory constructs
	Factory string
}

// Unit is one output file
type Unit struct {
	Name        string
	FileComment string
	// StaticUsings names defines classes to import with `using static`
	StaticUsings []string
	Classes      []*Class

	includes []string
}

// Result is the merged run
type Result struct {
	Units       []*Unit
	Diagnostics diag.List
}

// classInfo tracks one header class through the merge
type classInfo struct {
	cls    model.Class
	header *model.HeaderFile
	main   *Class
	// parts are partial pieces in units other than the header's
	parts map[string]*Class
	// bodyUnits records where method bodies came from
	bodyUnits map[string]bool
	// pending are matched methods waiting for their source unit
	pending map[signature.Key]model.Method
	// declared holds the signatures already emitted for the header
	declared map[signature.Key]int
}

type merger struct {
	opts    Options
	index   *signature.Index
	used    map[signature.Key]bool
	classes map[string]*classInfo
	order   []*classInfo
	units   map[string]*Unit
	unitSeq []*Unit
	inits   map[string]map[string]model.StaticInit
	orphans map[string]*Class
	// orphanUnits counts the units an orphan class appears in
	orphanUnits map[string]map[string]bool
	headerNames map[string]*model.HeaderFile
	definesOf   map[string]string
	diags       diag.List
}

// Merge merges every parsed unit of a run.
func Merge(headers []*model.HeaderFile, sources []*model.SourceFile, opts Options) (*Result, error) {
	if opts.DefinesSuffix == "" {
		opts.DefinesSuffix = DefaultOptions().DefinesSuffix
	}
	m := &merger{
		opts:        opts,
		index:       signature.NewIndex(nil),
		used:        map[signature.Key]bool{},
		classes:     map[string]*classInfo{},
		units:       map[string]*Unit{},
		inits:       map[string]map[string]model.StaticInit{},
		orphans:     map[string]*Class{},
		orphanUnits: map[string]map[string]bool{},
		headerNames: map[string]*model.HeaderFile{},
		definesOf:   map[string]string{},
	}
	if err := m.checkNames(headers, sources); err != nil {
		return nil, err
	}
	for _, s := range sources {
		for _, d := range s.Definitions {
			if d.ClassName != "" {
				m.index.Add(d)
			}
		}
		for _, init := range s.StaticInits {
			if m.inits[init.ClassName] == nil {
				m.inits[init.ClassName] = map[string]model.StaticInit{}
			}
			m.inits[init.ClassName][init.Member] = init
		}
	}
	for _, h := range headers {
		m.register(h)
	}

	for _, h := range headers {
		m.mergeHeader(h, sourceNamed(sources, h.Name))
	}
	for _, s := range sources {
		m.mergeSource(s)
	}
	m.finish()

	m.diags.Sort()
	return &Result{Units: m.unitSeq, Diagnostics: m.diags}, nil
}

func (m *merger) checkNames(headers []*model.HeaderFile, sources []*model.SourceFile) error {
	seen := map[string]string{}
	for _, h := range headers {
		key := strings.ToLower(h.Name)
		if prev, ok := seen[key]; ok {
			return fmt.Errorf("%w: %s and %s", ErrDuplicateUnit, prev, h.Path)
		}
		seen[key] = h.Path
		m.headerNames[key] = h
	}
	seen = map[string]string{}
	for _, s := range sources {
		key := strings.ToLower(s.Name)
		if prev, ok := seen[key]; ok {
			return fmt.Errorf("%w: %s and %s", ErrDuplicateUnit, prev, s.Path)
		}
		seen[key] = s.Path
	}
	return nil
}

func sourceNamed(sources []*model.SourceFile, name string) *model.SourceFile {
	for _, s := range sources {
		if strings.EqualFold(s.Name, name) {
			return s
		}
	}
	return nil
}

// register records the classes of a header. The first declaration of a
// class name wins.
func (m *merger) register(h *model.HeaderFile) {
	for _, c := range h.Classes {
		if prev, ok := m.classes[c.Name]; ok {
			d := diag.New(diag.StructuralMismatch, h.Name, c.Line, "class %s already declared in %s, skipped", c.Name, prev.header.Name)
			d.Severity = diag.SeverityWarning
			m.diags.Add(d.In(c.Name, ""))
			continue
		}
		info := &classInfo{
			cls:       c,
			header:    h,
			parts:     map[string]*Class{},
			bodyUnits: map[string]bool{},
			pending:   map[signature.Key]model.Method{},
			declared:  map[signature.Key]int{},
		}
		m.classes[c.Name] = info
		m.order = append(m.order, info)
	}
}

func (m *merger) unit(name, fileComment string) *Unit {
	key := strings.ToLower(name)
	if u, ok := m.units[key]; ok {
		if u.FileComment == "" {
			u.FileComment = fileComment
		}
		return u
	}
	u := &Unit{Name: name, FileComment: fileComment}
	m.units[key] = u
	m.unitSeq = append(m.unitSeq, u)
	return u
}

func (m *merger) mergeHeader(h *model.HeaderFile, same *model.SourceFile) {
	comment := h.FileComment
	if comment == "" && same != nil {
		comment = same.FileComment
	}
	u := m.unit(h.Name, comment)
	u.includes = append(u.includes, h.Includes...)

	for _, c := range h.Classes {
		info := m.classes[c.Name]
		if info == nil || info.header != h {
			continue
		}
		info.main = m.mergeClass(info)
		u.Classes = append(u.Classes, info.main)
	}

	host := m.headerHost(h)
	switch {
	case host != nil:
		host.Defines = append(host.Defines, h.Defines...)
		host.Items = append(host.Items, fragmentItems(h.Fragments)...)
	case len(h.Defines) > 0:
		dc := &Class{
			Name:      h.Name + m.opts.DefinesSuffix,
			IsStatic:  true,
			IsDefines: true,
			Defines:   h.Defines,
		}
		u.Classes = append(u.Classes, dc)
		m.definesOf[strings.ToLower(h.Name)] = dc.Name
	}
}

// headerHost is the class that receives a header's defines: the class
// named like the header, else its first class. Interfaces and structs
// never host.
func (m *merger) headerHost(h *model.HeaderFile) *Class {
	var first *Class
	for _, c := range h.Classes {
		info := m.classes[c.Name]
		if info == nil || info.header != h || info.main == nil || c.IsInterface || c.Kind != model.KindClass {
			continue
		}
		if strings.EqualFold(c.Name, h.Name) {
			return info.main
		}
		if first == nil {
			first = info.main
		}
	}
	return first
}

// mergeClass builds the header unit's view of a class.
func (m *merger) mergeClass(info *classInfo) *Class {
	c := info.cls
	out := &Class{
		Name:           c.Name,
		Kind:           c.Kind,
		Bases:          c.Bases,
		IsInterface:    c.IsInterface,
		IsExported:     c.IsExported,
		Comments:       c.Comments,
		PostfixComment: c.PostfixComment,
	}

	type entry struct {
		order int
		items []Item
	}
	var entries []entry
	for i := range c.Members {
		mem := m.withStaticInit(c.Name, c.Members[i])
		entries = append(entries, entry{mem.Order, []Item{{Member: &mem}}})
	}
	for i := range c.Structs {
		st := c.Structs[i]
		entries = append(entries, entry{st.Order, []Item{{Struct: &st}}})
	}
	for i := range c.Regions {
		r := c.Regions[i]
		entries = append(entries, entry{r.Order, []Item{{Region: &r}}})
	}
	for i := range c.Fragments {
		f := c.Fragments[i]
		entries = append(entries, entry{f.Order, []Item{{Fragment: &f}}})
	}
	for _, decl := range c.Methods {
		if c.IsInterface && decl.IsStatic {
			out.Extensions = append(out.Extensions, m.resolveFactory(info, out, decl))
			continue
		}
		items := m.mergeMethod(info, decl)
		if len(items) > 0 {
			entries = append(entries, entry{decl.Order, items})
		}
	}
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].order < entries[j].order })
	for _, e := range entries {
		out.Items = append(out.Items, e.items...)
	}
	return out
}

// mergeMethod attaches the out-of-line body of decl. It returns the items to
// place in the header unit, which are empty when the body lives in another
// unit or the method is skipped. Only the first declaration of a
// canonical signature is kept.
func (m *merger) mergeMethod(info *classInfo, decl model.Method) []Item {
	c := info.cls
	key := signature.KeyOf(c.Name, decl)
	if line, dup := info.declared[key]; dup {
		m.diags.Add(diag.New(diag.AmbiguousOverload, info.header.Name, decl.Line,
			"%s also declared at line %d, declaration skipped", key.Signature, line).In(c.Name, decl.Name))
		return nil
	}
	info.declared[key] = decl.Line
	def, conflicts, ok := m.index.Lookup(key)
	if ok {
		m.used[key] = true
		for _, other := range conflicts {
			m.diags.Add(diag.New(diag.AmbiguousOverload, other.Unit, other.Line,
				"%s also defined at %s:%d, first definition wins", key.Signature, def.Unit, def.Line).In(c.Name, decl.Name))
		}
	}

	switch {
	case ok && decl.Inline != nil:
		m.diags.Add(diag.New(diag.StructuralMismatch, def.Unit, def.Line,
			"%s has an inline body in %s and an out-of-line definition, method skipped", key.Signature, info.header.Name).In(c.Name, decl.Name))
		return nil
	case decl.Inline != nil:
		info.bodyUnits["header"] = true
		meth := decl
		return []Item{{Method: &meth}}
	case ok:
		info.bodyUnits["source:"+strings.ToLower(def.Unit)] = true
		meth := attach(decl, def)
		if !strings.EqualFold(def.Unit, info.header.Name) {
			info.pending[key] = meth
			return nil
		}
		return append(regionItems(def.Regions), Item{Method: &meth})
	default:
		if !decl.IsPure {
			m.diags.Add(diag.New(diag.Unmatched, info.header.Name, decl.Line,
				"no definition found for %s", key.Signature).In(c.Name, decl.Name))
		}
		meth := decl
		return []Item{{Method: &meth}}
	}
}

// attach returns decl with the body, names and comments of def. Default
// values come from the declaration.
func attach(decl model.Method, def model.Definition) model.Method {
	out := decl
	out.Parameters = params.MergeDefaults(decl.Parameters, def.Method.Parameters)
	out.ParamsMultiline = def.Method.ParamsMultiline
	out.OutOfLine = def.Method.OutOfLine
	out.SourceComments = def.Method.SourceComments
	out.LocalStructs = def.Method.LocalStructs
	if len(def.Method.Initializers) > 0 {
		out.Initializers = def.Method.Initializers
	}
	if out.PostfixComment == "" {
		out.PostfixComment = def.Method.PostfixComment
	}
	return out
}

var newExpr = regexp.MustCompile(`\bnew\s+([A-Za-z_]\w*)\s*\(`)

// resolveFactory finds the body of an interface's static method. C++
// often defines it on an implementing class, as in
// `ISample* CSample::GetInstance()`.
func (m *merger) resolveFactory(info *classInfo, iface *Class, decl model.Method) model.Method {
	keys := []signature.Key{signature.KeyOf(info.cls.Name, decl)}
	for _, other := range m.order {
		if other != info && contains(other.cls.Bases, info.cls.Name) {
			keys = append(keys, signature.KeyOf(other.cls.Name, decl))
		}
	}
	for _, key := range keys {
		def, _, ok := m.index.Lookup(key)
		if !ok || m.used[key] {
			continue
		}
		m.used[key] = true
		meth := attach(decl, def)
		if iface.Factory == "" {
			if sub := newExpr.FindStringSubmatch(def.Method.OutOfLine.Text); sub != nil {
				iface.Factory = sub[1]
			}
		}
		return meth
	}
	m.diags.Add(diag.New(diag.Unmatched, info.header.Name, decl.Line,
		"no definition found for %s", signature.Of(decl)).In(info.cls.Name, decl.Name))
	return decl
}

func (m *merger) withStaticInit(class string, mem model.Member) model.Member {
	init, ok := m.inits[class][mem.Name]
	if !ok {
		return mem
	}
	delete(m.inits[class], mem.Name)
	if mem.DefaultValue == "" {
		mem.DefaultValue = init.Value
	}
	mem.IsConst = mem.IsConst || init.IsConst
	return mem
}

// mergeSource places the definitions of one source unit.
func (m *merger) mergeSource(s *model.SourceFile) {
	header := m.headerNames[strings.ToLower(s.Name)]
	u := m.unit(s.Name, s.FileComment)
	u.includes = append(u.includes, s.Includes...)

	for _, d := range s.Definitions {
		if d.ClassName == "" {
			continue
		}
		key := signature.KeyOf(d.ClassName, d.Method)
		info := m.classes[d.ClassName]
		switch {
		case info == nil:
			m.diags.Add(diag.New(diag.Orphan, s.Name, d.Line, "%s has no header declaration", key.Signature).In(d.ClassName, d.Method.Name))
			cls := m.orphanClass(u, d.ClassName)
			cls.Items = append(cls.Items, definitionItems(d)...)
		case m.used[key]:
			first, _, _ := m.index.Lookup(key)
			if first.Unit != d.Unit || first.Line != d.Line {
				continue
			}
			meth, ok := info.pending[key]
			if !ok {
				continue
			}
			delete(info.pending, key)
			part := m.part(info, u)
			part.Items = append(part.Items, regionItems(d.Regions)...)
			part.Items = append(part.Items, Item{Method: &meth})
		default:
			m.used[key] = true
			m.diags.Add(diag.New(diag.Orphan, s.Name, d.Line, "%s is not declared in %s", key.Signature, info.header.Name).In(d.ClassName, d.Method.Name))
			info.bodyUnits["source:"+strings.ToLower(s.Name)] = true
			target := m.part(info, u)
			target.Items = append(target.Items, definitionItems(d)...)
		}
	}

	host := m.sourceHost(s, u, header)
	host.Defines = append(host.Defines, s.Defines...)
	for _, d := range s.Definitions {
		if d.ClassName != "" {
			continue
		}
		host.Items = append(host.Items, definitionItems(d)...)
	}
	for i := range s.Structs {
		st := s.Structs[i]
		st.Text = stripDirectives(st.Text)
		host.Items = append(host.Items, Item{Struct: &st})
	}
	host.Items = append(host.Items, fragmentItems(s.Fragments)...)
	host.Items = append(host.Items, regionItems(s.TrailingRegions)...)

	for class, rest := range m.inits {
		for member, init := range rest {
			if init.Unit != s.Name {
				continue
			}
			m.diags.Add(diag.New(diag.Orphan, s.Name, init.Line, "static initializer for undeclared member %s", member).In(class, ""))
			delete(rest, member)
		}
	}
}

// definitionItems turns a definition without a declaration into items.
// Free functions become private static methods.
func definitionItems(d model.Definition) []Item {
	meth := d.Method
	meth.Access = model.AccessPrivate
	if d.ClassName == "" {
		meth.IsStatic = true
	}
	return append(regionItems(d.Regions), Item{Method: &meth})
}

// sourceHost is the class that receives a source unit's defines, free
// functions and local types.
func (m *merger) sourceHost(s *model.SourceFile, u *Unit, header *model.HeaderFile) *Class {
	if header != nil {
		if host := m.headerHost(header); host != nil {
			return host
		}
	}
	for _, d := range s.Definitions {
		if d.ClassName == "" {
			continue
		}
		if info := m.classes[d.ClassName]; info != nil {
			if info.header == header {
				return info.main
			}
			return m.part(info, u)
		}
		return m.orphanClass(u, d.ClassName)
	}
	name := s.Name
	if header != nil {
		name += "Functions"
	}
	for _, c := range u.Classes {
		if c.Name == name {
			return c
		}
	}
	c := &Class{Name: name, IsStatic: true}
	u.Classes = append(u.Classes, c)
	return c
}

// part returns the partial piece of a header class in unit u.
func (m *merger) part(info *classInfo, u *Unit) *Class {
	key := strings.ToLower(u.Name)
	if strings.EqualFold(u.Name, info.header.Name) {
		return info.main
	}
	if p, ok := info.parts[key]; ok {
		return p
	}
	p := &Class{Name: info.cls.Name, Kind: info.cls.Kind, IsPartial: true}
	info.parts[key] = p
	u.Classes = append(u.Classes, p)
	return p
}

func (m *merger) orphanClass(u *Unit, name string) *Class {
	if m.orphanUnits[name] == nil {
		m.orphanUnits[name] = map[string]bool{}
	}
	m.orphanUnits[name][strings.ToLower(u.Name)] = true
	key := strings.ToLower(u.Name) + "/" + name
	if c, ok := m.orphans[key]; ok {
		return c
	}
	c := &Class{Name: name}
	m.orphans[key] = c
	u.Classes = append(u.Classes, c)
	return c
}

// finish decides partial and static emission and the static usings.
func (m *merger) finish() {
	for _, info := range m.order {
		if info.main == nil {
			continue
		}
		partial := len(info.bodyUnits) > 1 || len(info.parts) > 0
		info.main.IsPartial = partial
		if !info.main.IsInterface {
			info.main.IsStatic = allStatic(info.main)
		}
		for _, p := range info.parts {
			p.IsPartial = true
			p.IsStatic = info.main.IsStatic && allStatic(p)
		}
	}
	for key, c := range m.orphans {
		name := key[strings.IndexByte(key, '/')+1:]
		c.IsPartial = len(m.orphanUnits[name]) > 1
	}

	for _, u := range m.unitSeq {
		for header, defines := range m.definesOf {
			if strings.EqualFold(u.Name, header) || !model.IncludesHeader(u.includes, header) {
				continue
			}
			u.StaticUsings = append(u.StaticUsings, defines)
		}
		sort.Strings(u.StaticUsings)
	}
}

func allStatic(c *Class) bool {
	n := 0
	for _, it := range c.Items {
		switch {
		case it.Member != nil:
			if !it.Member.IsStatic {
				return false
			}
			n++
		case it.Method != nil:
			if !it.Method.IsStatic {
				return false
			}
			n++
		}
	}
	return n > 0
}

func regionItems(regions []model.Region) []Item {
	out := make([]Item, 0, len(regions))
	for i := range regions {
		r := regions[i]
		out = append(out, Item{Region: &r})
	}
	return out
}

func fragmentItems(frags []model.Fragment) []Item {
	out := make([]Item, 0, len(frags))
	for i := range frags {
		f := frags[i]
		out = append(out, Item{Fragment: &f})
	}
	return out
}

// stripDirectives drops preprocessor lines from an aggregate's text.
func stripDirectives(text string) string {
	lines := strings.Split(text, "\n")
	out := lines[:0]
	for _, l := range lines {
		if strings.HasPrefix(strings.TrimSpace(l), "#") {
			continue
		}
		out = append(out, l)
	}
	return strings.Join(out, "\n")
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
