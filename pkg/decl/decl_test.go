package decl

import (
	"testing"

	"github.com/raymyers/cpp2cs/pkg/lexer"
	"github.com/raymyers/cpp2cs/pkg/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// lastParen finds the `(` opening the parameter list of the first
// declaration in s.
func lastParen(s *lexer.Scanner) int {
	open := -1
	for i, tok := range s.Tokens() {
		if tok.Is(";") || tok.Is("{") {
			break
		}
		if tok.Is("(") && (open < 0 || s.At(s.PrevSignificant(i)).Type == lexer.TokenIdent) {
			open = i
		}
	}
	return open
}

func parseFunction(t *testing.T, src string) (*lexer.Scanner, Function, error) {
	t.Helper()
	s := lexer.NewScanner(src)
	open := s.Find(0, "(")
	require.GreaterOrEqual(t, open, 0)
	f, err := ParseFunction(s, 0, open)
	return s, f, err
}

func TestParseHead(t *testing.T) {
	tests := []struct {
		name       string
		src        string
		specs      []string
		returnType string
		qualifier  string
		funcName   string
		destructor bool
	}{
		{"plain", "int Count(", nil, "int", "", "Count", false},
		{"qualified", "int CSample::Count(", nil, "int", "CSample", "Count", false},
		{"specifiers", "virtual static bool Check(", []string{"virtual", "static"}, "bool", "", "Check", false},
		{"destructor", "CSample::~CSample(", nil, "", "CSample", "CSample", true},
		{"namespace", "int ns::CSample::Count(", nil, "int", "CSample", "Count", false},
		{"declspec", "__declspec(dllexport) int Count(", nil, "int", "", "Count", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := lexer.NewScanner(tt.src)
			h, ok := ParseHead(s.Tokens()[:lastParen(s)])
			require.True(t, ok)
			for _, spec := range tt.specs {
				assert.True(t, h.Has(spec), spec)
			}
			assert.Equal(t, tt.returnType, h.ReturnType)
			assert.Equal(t, tt.qualifier, h.Qualifier)
			assert.Equal(t, tt.funcName, h.Name)
			assert.Equal(t, tt.destructor, h.IsDestructor)
		})
	}
}

func TestParseHeadWithoutName(t *testing.T) {
	s := lexer.NewScanner("static (")
	_, ok := ParseHead(s.Tokens()[:s.Find(0, "(")])
	assert.False(t, ok)
}

func TestParseFunctionWithBody(t *testing.T) {
	s, f, err := parseFunction(t, "int CSample::Count(const CString& key) const\n{\n    return 0;\n}\n")
	require.NoError(t, err)

	assert.Equal(t, "CSample", f.Head.Qualifier)
	assert.True(t, f.IsConst)
	require.True(t, f.HasBody())
	body := f.Body(s, "CSample")
	assert.Contains(t, body.Text, "return 0;")
	assert.Equal(t, "CSample", body.Unit)

	m := f.Method("CSample", model.AccessPublic)
	assert.Equal(t, "Count", m.Name)
	assert.False(t, m.IsConstructor)
	require.Len(t, m.Parameters, 1)
	assert.Equal(t, "key", m.Parameters[0].Name)
}

func TestParseFunctionInitializers(t *testing.T) {
	_, f, err := parseFunction(t, "CSample::CSample() : m_a(0), m_b{_T(\"x\")}\n{\n}\n")
	require.NoError(t, err)

	assert.Equal(t, []model.Initializer{
		{Member: "m_a", Value: "0"},
		{Member: "m_b", Value: `_T("x")`},
	}, f.Initializers)
	m := f.Method("CSample", model.AccessPublic)
	assert.True(t, m.IsConstructor)
	assert.Equal(t, f.Initializers, m.Initializers)
}

func TestParseFunctionPure(t *testing.T) {
	_, f, err := parseFunction(t, "virtual bool MethodTwo() = 0;")
	require.NoError(t, err)
	assert.True(t, f.IsPure)
	assert.False(t, f.HasBody())
	assert.True(t, f.Head.Has("virtual"))
}

func TestParseFunctionTrailingComment(t *testing.T) {
	_, f, err := parseFunction(t, "void Set(int value) /* clamped */;")
	require.NoError(t, err)

	m := f.Method("", model.AccessPrivate)
	require.Len(t, m.Parameters, 1)
	assert.Equal(t, []string{"/* clamped */"}, m.Parameters[0].CommentsAt(model.AfterName))
}

func TestParseFunctionErrors(t *testing.T) {
	_, _, err := parseFunction(t, "DECLARE_MESSAGE_MAP() int x;")
	assert.ErrorIs(t, err, ErrNotFunction)

	_, _, err = parseFunction(t, "int Count(int a")
	assert.ErrorIs(t, err, lexer.ErrUnbalanced)

	_, _, err = parseFunction(t, "int Count(int a)")
	assert.Error(t, err)
}

func TestStatementEnd(t *testing.T) {
	s := lexer.NewScanner("int x = f(a, b); int y;")
	assert.Equal(t, s.Find(0, ";"), StatementEnd(s, 0))

	s = lexer.NewScanner("struct S { int a; }; int y;")
	end := StatementEnd(s, 0)
	assert.Equal(t, ";", s.At(end).Text)
	assert.Equal(t, s.Significant(s.MatchingClose(s.Find(0, "{"))+1), end)
}

func TestLocalStructs(t *testing.T) {
	s := lexer.NewScanner("{\n    struct Local { int a; };\n    typedef struct { int b; } Alias;\n    int x;\n}")
	open := s.Find(0, "{")
	structs := LocalStructs(s, open, s.MatchingClose(open))

	require.Len(t, structs, 2)
	assert.Equal(t, "Local", structs[0].Name)
	assert.True(t, structs[0].IsLocal)
	assert.Equal(t, "struct Local { int a; };", structs[0].Text)
	assert.Equal(t, "Alias", structs[1].Name)
}

func TestBodyDropsDirectivesInLocalStructs(t *testing.T) {
	s, f, err := parseFunction(t, "void CSample::Run()\n{\n    struct Tmp\n    {\n#define LOCAL_MAX 3\n        int a;\n    };\n#ifdef TRACE\n    Tmp t;\n#endif\n}\n")
	require.NoError(t, err)

	body := f.Body(s, "CSample")
	require.NotNil(t, body)
	assert.NotContains(t, body.Text, "LOCAL_MAX")
	assert.Contains(t, body.Text, "    struct Tmp\n    {\n        int a;\n    };")
	// directives outside a struct stay in the body
	assert.Contains(t, body.Text, "#ifdef TRACE")

	structs := LocalStructs(s, f.BodyOpen, f.BodyClose)
	require.Len(t, structs, 1)
	assert.Equal(t, "struct Tmp\n    {\n        int a;\n    };", structs[0].Text)
}

func TestComments(t *testing.T) {
	var c Comments
	c.Add("// a")
	c.Newline()
	c.Newline()
	c.Add("// b  ")
	assert.Equal(t, 3, c.Len())
	assert.Equal(t, []string{"// a", "", "// b"}, c.Take())
	assert.Equal(t, 0, c.Len())

	c.Add("// c")
	c.Newline()
	c.Newline()
	assert.Equal(t, []string{"// c", ""}, c.Take())
}
