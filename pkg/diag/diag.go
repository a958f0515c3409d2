// Package diag carries the conversion problems every stage can report.
// None of them abort a run; each one names the file and line it came from.
package diag

import (
	"fmt"
	"sort"
	"strings"
)

// Kind is the category of a diagnostic
type Kind int

const (
	// Unrecognized: text matched no declaration shape and is kept verbatim
	Unrecognized Kind = iota
	// AmbiguousOverload: several definitions share a canonical signature
	AmbiguousOverload
	// Unmatched: a declaration without body found no definition
	Unmatched
	// StructuralMismatch: a method has both an inline and an out-of-line body
	StructuralMismatch
	// IO: a unit could not be read or written
	IO
	// Orphan: a definition matched no header declaration
	Orphan
)

var kindNames = map[Kind]string{
	Unrecognized:       "unrecognized syntax",
	AmbiguousOverload:  "ambiguous overload",
	Unmatched:          "unmatched declaration",
	StructuralMismatch: "structural mismatch",
	IO:                 "io failure",
	Orphan:             "orphan definition",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

// Severity represents how much a diagnostic affects the output
type Severity int

const (
	// SeverityInfo - output is complete
	SeverityInfo Severity = iota
	// SeverityWarning - output is complete but may need a manual look
	SeverityWarning
	// SeverityError - something was left out of the output
	SeverityError
)

func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	}
	return "unknown"
}

// DefaultSeverity is the severity a kind gets unless overridden.
func (k Kind) DefaultSeverity() Severity {
	switch k {
	case StructuralMismatch, IO:
		return SeverityError
	case Orphan:
		return SeverityInfo
	}
	return SeverityWarning
}

// Diagnostic is one reported problem
type Diagnostic struct {
	Kind     Kind
	Severity Severity
	File     string
	Line     int
	Class    string
	Method   string
	Message  string
}

// New builds a diagnostic with the kind's default severity.
func New(kind Kind, file string, line int, format string, args ...any) Diagnostic {
	return Diagnostic{
		Kind:     kind,
		Severity: kind.DefaultSeverity(),
		File:     file,
		Line:     line,
		Message:  fmt.Sprintf(format, args...),
	}
}

// In returns a copy of d scoped to a class and method.
func (d Diagnostic) In(class, method string) Diagnostic {
	d.Class = class
	d.Method = method
	return d
}

func (d Diagnostic) String() string {
	var sb strings.Builder
	if d.File != "" {
		sb.WriteString(d.File)
		if d.Line > 0 {
			fmt.Fprintf(&sb, ":%d", d.Line)
		}
		sb.WriteString(": ")
	}
	fmt.Fprintf(&sb, "%s: %s", d.Severity, d.Kind)
	if d.Class != "" {
		sb.WriteString(" in ")
		sb.WriteString(d.Class)
		if d.Method != "" {
			sb.WriteString("::")
			sb.WriteString(d.Method)
		}
	}
	if d.Message != "" {
		sb.WriteString(": ")
		sb.WriteString(d.Message)
	}
	return sb.String()
}

// Error is a diagnostic raised as an error value, for the kinds that
// stop a single file or method from being produced.
type Error struct {
	Diagnostic
	Cause error
}

// Wrap turns err into an *Error of the given kind for file.
func Wrap(kind Kind, file string, err error) *Error {
	return &Error{
		Diagnostic: New(kind, file, 0, "%v", err),
		Cause:      err,
	}
}

// Error implements the error interface
func (e *Error) Error() string {
	return e.Diagnostic.String()
}

// Unwrap returns the underlying cause
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches another *Error of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// List is an ordered collection of diagnostics
type List []Diagnostic

// Add appends diagnostics.
func (l *List) Add(d ...Diagnostic) {
	*l = append(*l, d...)
}

// Sort orders by file, line, then kind, keeping insertion order for ties.
func (l List) Sort() {
	sort.SliceStable(l, func(i, j int) bool {
		if l[i].File != l[j].File {
			return l[i].File < l[j].File
		}
		if l[i].Line != l[j].Line {
			return l[i].Line < l[j].Line
		}
		return l[i].Kind < l[j].Kind
	})
}

// Count returns how many diagnostics have the given severity.
func (l List) Count(sev Severity) int {
	n := 0
	for _, d := range l {
		if d.Severity == sev {
			n++
		}
	}
	return n
}

// OfKind returns the diagnostics of one kind, in order.
func (l List) OfKind(kind Kind) List {
	var out List
	for _, d := range l {
		if d.Kind == kind {
			out = append(out, d)
		}
	}
	return out
}
