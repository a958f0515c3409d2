// Package typeconv maps C++ type spellings and literal values to C#.
package typeconv

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// defaultTypes covers built-in spellings that do not exist in C#. Anything
// not listed passes through unchanged.
var defaultTypes = map[string]string{
	"unsigned":           "uint",
	"unsigned int":       "uint",
	"signed int":         "int",
	"unsigned short":     "ushort",
	"unsigned char":      "byte",
	"signed char":        "sbyte",
	"unsigned long":      "uint",
	"long long":          "long",
	"unsigned long long": "ulong",
	"__int64":            "long",
	"unsigned __int64":   "ulong",
	"wchar_t":            "char",
	"size_t":             "ulong",
	"BOOL":               "bool",
	"BYTE":               "byte",
	"DWORD":              "uint",
	"LPCTSTR":            "string",
	"LPCSTR":             "string",
	"std::string":        "string",
	"std::wstring":       "string",
	"std::vector":        "List",
	"std::list":          "List",
	"std::map":           "Dictionary",
	"std::unordered_map": "Dictionary",
	"std::set":           "HashSet",
	"std::pair":          "KeyValuePair",
}

// Converter converts type names using an explicit table
type Converter struct {
	types map[string]string
}

// New returns a converter with the default table plus extra entries,
// which override defaults.
func New(extra map[string]string) *Converter {
	c := &Converter{types: make(map[string]string, len(defaultTypes)+len(extra))}
	for k, v := range defaultTypes {
		c.types[k] = v
	}
	for k, v := range extra {
		c.types[strings.TrimSpace(k)] = strings.TrimSpace(v)
	}
	return c
}

// TypeMapFile is the layout of a type map YAML file
type TypeMapFile struct {
	Types map[string]string `yaml:"types"`
}

// LoadFile builds a converter from the default table and a YAML type map.
func LoadFile(path string) (*Converter, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read type map: %w", err)
	}
	var f TypeMapFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%s: failed to parse type map: %w", path, err)
	}
	return New(f.Types), nil
}

// Convert maps a C++ type to C#. Qualifiers are dropped, template
// arguments are converted recursively and `::` becomes `.` for names the
// table does not know.
func (c *Converter) Convert(cppType string) string {
	t := strip(cppType)
	if t == "" {
		return ""
	}
	if strings.HasSuffix(t, "[]") {
		return c.Convert(strings.TrimSuffix(t, "[]")) + "[]"
	}
	if cs, ok := c.types[t]; ok {
		return cs
	}

	open := strings.IndexByte(t, '<')
	if open > 0 && strings.HasSuffix(t, ">") {
		head := strings.TrimSpace(t[:open])
		args := splitArgs(t[open+1 : len(t)-1])
		for i, a := range args {
			args[i] = c.Convert(a)
		}
		return c.convertName(head) + "<" + strings.Join(args, ", ") + ">"
	}
	return c.convertName(t)
}

func (c *Converter) convertName(name string) string {
	if cs, ok := c.types[name]; ok {
		return cs
	}
	return strings.ReplaceAll(name, "::", ".")
}

var qualifier = regexp.MustCompile(`\b(const|volatile|struct|class|typename)\b`)

func strip(t string) string {
	t = qualifier.ReplaceAllString(t, "")
	t = strings.NewReplacer("*", "", "&", "").Replace(t)
	return strings.Join(strings.Fields(t), " ")
}

// splitArgs splits template arguments at top-level commas.
func splitArgs(s string) []string {
	var out []string
	depth, start := 0, 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '<', '(':
			depth++
		case '>', ')':
			depth--
		case ',':
			if depth == 0 {
				out = append(out, strings.TrimSpace(s[start:i]))
				start = i + 1
			}
		}
	}
	return append(out, strings.TrimSpace(s[start:]))
}

var tMacro = regexp.MustCompile(`\b_T\s*\(\s*("(?:[^"\\]|\\.)*"|'(?:[^'\\]|\\.)*')\s*\)`)

// ConvertDefault converts a default value or initializer expression.
func ConvertDefault(value string) string {
	v := strings.TrimSpace(value)
	switch v {
	case "NULL", "nullptr":
		return "null"
	case "TRUE":
		return "true"
	case "FALSE":
		return "false"
	}
	return tMacro.ReplaceAllString(v, "$1")
}
