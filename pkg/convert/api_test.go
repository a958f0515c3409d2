package convert

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/raymyers/cpp2cs/pkg/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPackageConvertDirectory(t *testing.T) {
	in := t.TempDir()
	writeFiles(t, in, map[string]string{"CWidget.h": widgetH, "CWidget.cpp": widgetCpp})
	out := filepath.Join(t.TempDir(), "cs")

	report, err := ConvertDirectory(context.Background(), in, out)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(out, "CWidget.cs")}, report.Written)

	report, err = ConvertFiles(context.Background(), nil, []string{filepath.Join(in, "CWidget.cpp")}, out)
	require.NoError(t, err)
	assert.Len(t, report.Written, 1)
}

func TestParseHeaderFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "CWidget.h")
	require.NoError(t, os.WriteFile(path, []byte(widgetH), 0644))

	classes, err := ParseHeaderFile(path)
	require.NoError(t, err)
	require.Len(t, classes, 1)
	assert.Equal(t, "CWidget", classes[0].Name)
	assert.Len(t, classes[0].Methods, 2)

	_, err = ParseHeaderFile(filepath.Join(t.TempDir(), "missing.h"))
	assert.Error(t, err)
}

func TestParseParameters(t *testing.T) {
	for _, raw := range []string{"(int a, const CString& b = _T(\"x\"))", "int a, const CString& b = _T(\"x\")"} {
		ps := ParseParameters(raw)
		require.Len(t, ps, 2, raw)
		assert.Equal(t, "int", ps[0].Type)
		assert.Equal(t, "a", ps[0].Name)
		assert.True(t, ps[1].IsReference)
		assert.True(t, ps[1].IsConst)
		assert.Equal(t, "b", ps[1].Name)
	}
	assert.Empty(t, ParseParameters("()"))
}

func TestSignatureHelpers(t *testing.T) {
	m := model.Method{
		Name:       "Find",
		ReturnType: "int",
		Parameters: ParseParameters("const CString &key, int* pIndex"),
	}
	assert.Equal(t, GetMethodSignature(m), GetMethodSignature(model.Method{
		Name:       "Find",
		Parameters: ParseParameters("const CString& other, int *index"),
	}))
	assert.Equal(t, NormalizeParameterType("const CString&"), NormalizeParameterType("const  CString &"))
}
