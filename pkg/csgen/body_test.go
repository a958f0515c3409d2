package csgen

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConvertCode(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"arrow", "p->Run();", "p.Run();"},
		{"scope", "CFoo::Bar(x);", "CFoo.Bar(x);"},
		{"global scope", "x = ::GetX();", "x = GetX();"},
		{"null", "if (p == NULL) return;", "if (p == null) return;"},
		{"bools", "ok = TRUE; bad = FALSE;", "ok = true; bad = false;"},
		{"T macro", `s = _T("abc");`, `s = "abc";`},
		{"T macro char", `c = _T( 'x' );`, `c = 'x';`},
		{"strings untouched", `s = "a->b NULL";`, `s = "a->b NULL";`},
		{"comments untouched", "// p->x is NULL\nx = 1;", "// p->x is NULL\nx = 1;"},
		{"identifier prefix", "NULLABLE = TRUEVALUE;", "NULLABLE = TRUEVALUE;"},
		{"T call not literal", "_T(name)", "_T(name)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ConvertCode(tt.input))
		})
	}
}

func TestReindent(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{"inline", " return x; ", []string{"return x;"}},
		{"tabs", "\n\tif (x)\n\t\treturn 1;\n\n\treturn 0;\n", []string{"if (x)", "    return 1;", "", "return 0;"}},
		{"spaces", "\n        a();\n          b();\n", []string{"a();", "  b();"}},
		{"crlf", "\r\n    a();\r\n", []string{"a();"}},
		{"empty", "\n\n", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Reindent(tt.input)
			if len(tt.want) == 0 {
				assert.Empty(t, got)
				return
			}
			assert.Equal(t, tt.want, got)
		})
	}
}
