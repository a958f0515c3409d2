// Package model defines the structural model produced by the header and
// source parsers and consumed by the merger and the C# generator.
//
// Values are built by exactly one parse and are not mutated afterwards;
// the merger copies what it changes.
package model

import (
	"strings"

	"github.com/raymyers/cpp2cs/pkg/diag"
)

// Access is a C++ access level
type Access int

const (
	// AccessNone is used where C++ gave no specifier and the kind has no
	// default (typedef structs)
	AccessNone Access = iota
	AccessPublic
	AccessProtected
	AccessPrivate
)

func (a Access) String() string {
	switch a {
	case AccessPublic:
		return "public"
	case AccessProtected:
		return "protected"
	case AccessPrivate:
		return "private"
	}
	return ""
}

// MarshalYAML writes the keyword, or "none".
func (a Access) MarshalYAML() (any, error) {
	if a == AccessNone {
		return "none", nil
	}
	return a.String(), nil
}

// ParseAccess maps a specifier keyword to an Access.
func ParseAccess(s string) (Access, bool) {
	switch s {
	case "public":
		return AccessPublic, true
	case "protected":
		return AccessProtected, true
	case "private":
		return AccessPrivate, true
	}
	return AccessNone, false
}

// Kind is how an aggregate was declared
type Kind int

const (
	KindClass Kind = iota
	KindStruct
	KindTypedefStruct
)

func (k Kind) String() string {
	switch k {
	case KindStruct:
		return "struct"
	case KindTypedefStruct:
		return "typedef struct"
	}
	return "class"
}

func (k Kind) MarshalYAML() (any, error) {
	return k.String(), nil
}

// DefaultAccess is the access of members declared before any specifier.
func (k Kind) DefaultAccess() Access {
	switch k {
	case KindStruct:
		return AccessPublic
	case KindTypedefStruct:
		return AccessNone
	}
	return AccessPrivate
}

// CommentPosition is where a comment sat relative to a parameter
type CommentPosition int

const (
	BeforeType CommentPosition = iota
	AfterType
	AfterName
)

func (p CommentPosition) String() string {
	switch p {
	case BeforeType:
		return "before-type"
	case AfterType:
		return "after-type"
	case AfterName:
		return "after-name"
	}
	return "unknown"
}

func (p CommentPosition) MarshalYAML() (any, error) {
	return p.String(), nil
}

// PositionedComment is a comment anchored to one parameter
type PositionedComment struct {
	Text     string          `yaml:"text"`
	Position CommentPosition `yaml:"position"`
}

// Parameter is one entry of a parameter list
type Parameter struct {
	Type         string              `yaml:"type"`
	Name         string              `yaml:"name,omitempty"`
	DefaultValue string              `yaml:"default,omitempty"`
	IsConst      bool                `yaml:"const,omitempty"`
	IsPointer    bool                `yaml:"pointer,omitempty"`
	IsReference  bool                `yaml:"reference,omitempty"`
	Comments     []PositionedComment `yaml:"comments,omitempty"`
	Raw          string              `yaml:"raw"`
	// Canonical is the lower-cased base type used in signatures
	Canonical string `yaml:"canonical"`
}

// CommentsAt returns the comments recorded at pos.
func (p Parameter) CommentsAt(pos CommentPosition) []string {
	var out []string
	for _, c := range p.Comments {
		if c.Position == pos {
			out = append(out, c.Text)
		}
	}
	return out
}

// Member is a data member
type Member struct {
	Type           string   `yaml:"type"`
	Name           string   `yaml:"name"`
	IsArray        bool     `yaml:"array,omitempty"`
	ArraySize      string   `yaml:"array_size,omitempty"`
	DefaultValue   string   `yaml:"default,omitempty"`
	IsStatic       bool     `yaml:"static,omitempty"`
	IsConst        bool     `yaml:"const,omitempty"`
	IsPointer      bool     `yaml:"pointer,omitempty"`
	Access         Access   `yaml:"access"`
	Comments       []string `yaml:"comments,omitempty"`
	PostfixComment string   `yaml:"postfix,omitempty"`
	Order          int      `yaml:"order"`
	Line           int      `yaml:"line"`
}

// Body is method body text without the outer braces
type Body struct {
	Text string `yaml:"text"`
	Unit string `yaml:"unit"`
	Line int    `yaml:"line"`
}

// Initializer is one entry of a constructor's member-initializer list
type Initializer struct {
	Member string `yaml:"member"`
	Value  string `yaml:"value"`
}

// Method is a member function declaration, with its bodies once known
type Method struct {
	Name          string        `yaml:"name"`
	ClassName     string        `yaml:"class,omitempty"`
	ReturnType    string        `yaml:"return_type,omitempty"`
	Parameters    []Parameter   `yaml:"parameters,omitempty"`
	// ParamsMultiline is set when the declaration spread its parameters
	// over several lines
	ParamsMultiline bool `yaml:"params_multiline,omitempty"`
	IsStatic      bool          `yaml:"static,omitempty"`
	IsConst       bool          `yaml:"const,omitempty"`
	IsVirtual     bool          `yaml:"virtual,omitempty"`
	IsPure        bool          `yaml:"pure,omitempty"`
	IsConstructor bool          `yaml:"constructor,omitempty"`
	IsDestructor  bool          `yaml:"destructor,omitempty"`
	Access        Access        `yaml:"access"`
	Inline        *Body         `yaml:"inline,omitempty"`
	OutOfLine     *Body         `yaml:"out_of_line,omitempty"`
	Initializers  []Initializer `yaml:"initializers,omitempty"`
	LocalStructs  []Struct      `yaml:"local_structs,omitempty"`
	Comments      []string      `yaml:"comments,omitempty"`
	// SourceComments precede the out-of-line definition
	SourceComments []string `yaml:"source_comments,omitempty"`
	PostfixComment string   `yaml:"postfix,omitempty"`
	Order          int      `yaml:"order"`
	Line           int      `yaml:"line"`
}

// Body returns whichever body the method has, or nil.
func (m Method) Body() *Body {
	if m.Inline != nil {
		return m.Inline
	}
	return m.OutOfLine
}

// Struct is an aggregate nested in a class or in a method body
type Struct struct {
	Name     string   `yaml:"name"`
	Members  []Member `yaml:"members,omitempty"`
	Methods  []Method `yaml:"methods,omitempty"`
	IsLocal  bool     `yaml:"local,omitempty"`
	Text     string   `yaml:"text,omitempty"`
	Comments []string `yaml:"comments,omitempty"`
	Order    int      `yaml:"order"`
	Line     int      `yaml:"line"`
}

// Region is a region marker
type Region struct {
	Name           string `yaml:"name,omitempty"`
	End            bool   `yaml:"end,omitempty"`
	PostfixComment string `yaml:"postfix,omitempty"`
	Order          int    `yaml:"order"`
}

// Fragment is text the parser could not classify, kept in place
type Fragment struct {
	Text  string `yaml:"text"`
	Order int    `yaml:"order"`
	Line  int    `yaml:"line"`
}

// Class is a class, struct, or typedef'd struct from a header
type Class struct {
	Name           string     `yaml:"name"`
	Kind           Kind       `yaml:"kind"`
	Bases          []string   `yaml:"bases,omitempty"`
	IsInterface    bool       `yaml:"interface,omitempty"`
	IsExported     bool       `yaml:"exported,omitempty"`
	Members        []Member   `yaml:"members,omitempty"`
	Methods        []Method   `yaml:"methods,omitempty"`
	Structs        []Struct   `yaml:"structs,omitempty"`
	Regions        []Region   `yaml:"regions,omitempty"`
	Fragments      []Fragment `yaml:"fragments,omitempty"`
	Comments       []string   `yaml:"comments,omitempty"`
	PostfixComment string     `yaml:"postfix,omitempty"`
	Unit           string     `yaml:"unit"`
	Line           int        `yaml:"line"`
}

// IsStatic reports whether every member and method is static. A class
// with nothing in it is not static.
func (c Class) IsStatic() bool {
	if len(c.Members) == 0 && len(c.Methods) == 0 {
		return false
	}
	for _, m := range c.Members {
		if !m.IsStatic {
			return false
		}
	}
	for _, m := range c.Methods {
		if !m.IsStatic {
			return false
		}
	}
	return true
}

// DefineOrigin is where a #define was found
type DefineOrigin int

const (
	FromHeader DefineOrigin = iota
	FromSource
)

// Define is a #define turned into a typed constant
type Define struct {
	Name           string       `yaml:"name"`
	Value          string       `yaml:"value"`
	Type           string       `yaml:"type"`
	CSValue        string       `yaml:"cs_value"`
	Origin         DefineOrigin `yaml:"origin"`
	Unit           string       `yaml:"unit"`
	Comments       []string     `yaml:"comments,omitempty"`
	PostfixComment string       `yaml:"postfix,omitempty"`
	Line           int          `yaml:"line"`
}

// Definition is an out-of-line method or free function from a source
type Definition struct {
	// ClassName is empty for free functions
	ClassName string   `yaml:"class,omitempty"`
	Method    Method   `yaml:"method"`
	Regions   []Region `yaml:"regions,omitempty"`
	Unit      string   `yaml:"unit"`
	Line      int      `yaml:"line"`
}

// StaticInit is `Class::member = value;` at file scope
type StaticInit struct {
	ClassName string `yaml:"class"`
	Member    string `yaml:"member"`
	Type      string `yaml:"type,omitempty"`
	Value     string `yaml:"value"`
	IsConst   bool   `yaml:"const,omitempty"`
	Unit      string `yaml:"unit"`
	Line      int    `yaml:"line"`
}

// HeaderFile is the parse result of one header unit
type HeaderFile struct {
	Name        string     `yaml:"name"`
	Path        string     `yaml:"path"`
	FileComment string     `yaml:"file_comment,omitempty"`
	Includes    []string   `yaml:"includes,omitempty"`
	Defines     []Define   `yaml:"defines,omitempty"`
	Classes     []Class    `yaml:"classes,omitempty"`
	Fragments   []Fragment `yaml:"fragments,omitempty"`
	Diagnostics diag.List  `yaml:"-"`
}

// SourceFile is the parse result of one source unit
type SourceFile struct {
	Name            string       `yaml:"name"`
	Path            string       `yaml:"path"`
	FileComment     string       `yaml:"file_comment,omitempty"`
	Includes        []string     `yaml:"includes,omitempty"`
	Defines         []Define     `yaml:"defines,omitempty"`
	Definitions     []Definition `yaml:"definitions,omitempty"`
	StaticInits     []StaticInit `yaml:"static_inits,omitempty"`
	Structs         []Struct     `yaml:"structs,omitempty"`
	TrailingRegions []Region     `yaml:"trailing_regions,omitempty"`
	Fragments       []Fragment   `yaml:"fragments,omitempty"`
	Diagnostics     diag.List    `yaml:"-"`
}

// BaseName strips directory and extension from a path.
func BaseName(path string) string {
	if i := strings.LastIndexAny(path, `/\`); i >= 0 {
		path = path[i+1:]
	}
	if i := strings.LastIndex(path, "."); i > 0 {
		path = path[:i]
	}
	return path
}

// IncludesHeader reports whether includes names the header with the given
// base name.
func IncludesHeader(includes []string, base string) bool {
	for _, inc := range includes {
		if strings.EqualFold(BaseName(inc), base) {
			return true
		}
	}
	return false
}
