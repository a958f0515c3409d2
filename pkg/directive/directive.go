// Package directive classifies preprocessor lines. Nothing is expanded:
// directives are metadata of the unit they appear in, and only #define,
// #include and region markers carry anything the converter re-emits.
package directive

import (
	"regexp"
	"strings"

	"github.com/raymyers/cpp2cs/pkg/model"
)

// Type is the kind of a directive line
type Type int

const (
	DirOther Type = iota
	DirDefine
	DirMacro // function-like #define
	DirInclude
	DirRegion
	DirEndRegion
	DirPragmaOnce
	DirConditional // #if, #ifdef, #ifndef, #elif, #else, #endif
	DirUndef
)

var typeNames = map[Type]string{
	DirOther:       "other",
	DirDefine:      "define",
	DirMacro:       "macro",
	DirInclude:     "include",
	DirRegion:      "region",
	DirEndRegion:   "endregion",
	DirPragmaOnce:  "pragma once",
	DirConditional: "conditional",
	DirUndef:       "undef",
}

func (t Type) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return "unknown"
}

// Directive is one parsed preprocessor line
type Directive struct {
	Type Type
	// Name is the macro name, include path, or region label
	Name  string
	Value string
	Text  string
	Line  int
}

// Parse classifies a directive token's text.
func Parse(text string, line int) Directive {
	d := Directive{Type: DirOther, Text: text, Line: line}
	body := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(text), "#"))
	body = joinContinuations(body)
	keyword, rest := splitWord(body)

	switch keyword {
	case "define":
		name, value := splitWord(rest)
		if i := strings.IndexByte(name, '('); i >= 0 {
			d.Type = DirMacro
			d.Name = name[:i]
			d.Value = strings.TrimSpace(body[len("define"):])
			return d
		}
		d.Type = DirDefine
		d.Name = name
		d.Value = strings.TrimSpace(value)
	case "undef":
		d.Type = DirUndef
		d.Name = strings.TrimSpace(rest)
	case "include":
		d.Type = DirInclude
		d.Name = strings.Trim(strings.TrimSpace(rest), `"<>`)
	case "region":
		d.Type = DirRegion
		d.Name = strings.TrimSpace(rest)
	case "endregion":
		d.Type = DirEndRegion
	case "pragma":
		sub, label := splitWord(rest)
		switch sub {
		case "once":
			d.Type = DirPragmaOnce
		case "region":
			d.Type = DirRegion
			d.Name = strings.TrimSpace(label)
		case "endregion":
			d.Type = DirEndRegion
		}
	case "if", "ifdef", "ifndef", "elif", "else", "endif":
		d.Type = DirConditional
		d.Name = strings.TrimSpace(rest)
	}
	return d
}

// Region converts a region directive to a model region.
func (d Directive) Region() (model.Region, bool) {
	switch d.Type {
	case DirRegion:
		return model.Region{Name: d.Name}, true
	case DirEndRegion:
		return model.Region{End: true}, true
	}
	return model.Region{}, false
}

// Define converts a #define directive to a typed constant. ok is false for
// value-less defines such as include guards.
func (d Directive) Define(origin model.DefineOrigin, unit string) (model.Define, bool) {
	switch d.Type {
	case DirDefine:
		if d.Value == "" {
			return model.Define{}, false
		}
		typ, value := Infer(d.Value)
		return model.Define{
			Name:    d.Name,
			Value:   d.Value,
			Type:    typ,
			CSValue: value,
			Origin:  origin,
			Unit:    unit,
			Line:    d.Line,
		}, true
	case DirMacro:
		// kept as text, rendered as a comment
		return model.Define{Name: d.Name, Value: d.Value, Origin: origin, Unit: unit, Line: d.Line}, true
	}
	return model.Define{}, false
}

var (
	charMacro   = regexp.MustCompile(`^_T\s*\(\s*('(?:[^'\\]|\\.)*')\s*\)$`)
	stringMacro = regexp.MustCompile(`^_T?\s*\(\s*("(?:[^"\\]|\\.)*")\s*\)$`)
	charLit     = regexp.MustCompile(`^'(?:[^'\\]|\\.)*'$`)
	stringLit   = regexp.MustCompile(`^"(?:[^"\\]|\\.)*"$`)
	longLit     = regexp.MustCompile(`^[-+]?\d+[lL]$`)
	doubleLit   = regexp.MustCompile(`^[-+]?(?:\d+\.\d*|\.\d+|\d+[dD]|\d+\.\d*[dD])$`)
)

var boolWords = map[string]string{
	"TRUE": "true", "YES": "true", "OK": "true", "true": "true",
	"FALSE": "false", "NO": "false", "NOTOK": "false", "false": "false",
}

// Infer returns the C# type and value for a #define value.
func Infer(raw string) (csType, value string) {
	v := strings.TrimSpace(raw)
	switch {
	case charMacro.MatchString(v):
		return "char", charMacro.FindStringSubmatch(v)[1]
	case charLit.MatchString(v):
		return "char", v
	case stringMacro.MatchString(v):
		return "string", stringMacro.FindStringSubmatch(v)[1]
	case stringLit.MatchString(v):
		return "string", v
	case longLit.MatchString(v):
		return "long", v
	case doubleLit.MatchString(v):
		return "double", v
	}
	if b, ok := boolWords[v]; ok {
		return "bool", b
	}
	return "int", v
}

func splitWord(s string) (word, rest string) {
	s = strings.TrimSpace(s)
	i := strings.IndexAny(s, " \t")
	if i < 0 {
		return s, ""
	}
	return s[:i], s[i+1:]
}

func joinContinuations(s string) string {
	s = strings.ReplaceAll(s, "\\\r\n", " ")
	return strings.ReplaceAll(s, "\\\n", " ")
}
