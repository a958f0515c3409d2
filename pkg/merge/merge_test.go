package merge

import (
	"testing"

	"github.com/raymyers/cpp2cs/pkg/diag"
	"github.com/raymyers/cpp2cs/pkg/header"
	"github.com/raymyers/cpp2cs/pkg/model"
	"github.com/raymyers/cpp2cs/pkg/signature"
	"github.com/raymyers/cpp2cs/pkg/source"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parseHeader(t *testing.T, name, text string) *model.HeaderFile {
	t.Helper()
	hf, err := header.Parse(name, text)
	require.NoError(t, err)
	return hf
}

func parseSource(t *testing.T, name, text string) *model.SourceFile {
	t.Helper()
	sf, err := source.Parse(name, text)
	require.NoError(t, err)
	return sf
}

func mergeAll(t *testing.T, headers []*model.HeaderFile, sources []*model.SourceFile) *Result {
	t.Helper()
	res, err := Merge(headers, sources, DefaultOptions())
	require.NoError(t, err)
	return res
}

func unitNamed(t *testing.T, res *Result, name string) *Unit {
	t.Helper()
	for _, u := range res.Units {
		if u.Name == name {
			return u
		}
	}
	require.Failf(t, "missing unit", "no unit %s", name)
	return nil
}

func methods(c *Class) map[string]model.Method {
	out := map[string]model.Method{}
	for _, it := range c.Items {
		if it.Method != nil {
			out[signature.Of(*it.Method)] = *it.Method
		}
	}
	return out
}

const sampleH = `#pragma once
#include "ISample.h"

#define MY_DEFINE 1

class CSample : public ISample
{
public:
	CSample();
	bool MethodTwo() { return true; }

private:
	bool MethodP1(const TDimValue& dim1, const agrint& int2=0, bool bool1=false);
	static agrint m_iIndex;
};
`

const sampleCpp = `// Top comment for CSample file
#include "CSample.h"

#define CPP_DEFINE 10

CSample::m_iIndex = -1;

CSample::CSample()
{
}

#pragma region Private

bool CSample::MethodP1(const TDimValue& dim1, const agrint& int2, bool bool1)
{
	return false;
}

ISample* CSample::GetInstance()
{
	return new CSample();
}

bool Helper(int x)
{
	return x > 0;
}
`

const isampleH = `#pragma once
#define INTERFACE_DEFINE _T("I")

class __declspec(dllexport) ISample
{
public:
	virtual ~ISample(){};
	static ISample* GetInstance();
	virtual bool MethodTwo() = 0;
};
`

func TestAllInlineIsSingle(t *testing.T) {
	h := parseHeader(t, "CInline", "class CInline\n{\npublic:\n\tint A() { return 1; }\n\tint B() { return 2; }\n};\n")
	res := mergeAll(t, []*model.HeaderFile{h}, nil)

	require.Len(t, res.Units, 1)
	c := res.Units[0].Classes[0]
	assert.False(t, c.IsPartial)
	assert.Len(t, methods(c), 2)
	assert.Empty(t, res.Diagnostics)
}

func TestOutOfLineFromOneUnitIsSingle(t *testing.T) {
	h := parseHeader(t, "CPlain", "class CPlain\n{\npublic:\n\tint A();\n\tint B();\n};\n")
	s := parseSource(t, "CPlain", "int CPlain::A()\n{\n\treturn 1;\n}\nint CPlain::B()\n{\n\treturn 2;\n}\n")
	res := mergeAll(t, []*model.HeaderFile{h}, []*model.SourceFile{s})

	require.Len(t, res.Units, 1)
	c := res.Units[0].Classes[0]
	assert.False(t, c.IsPartial)
	for sig, m := range methods(c) {
		assert.NotNil(t, m.OutOfLine, sig)
	}
}

func TestMixedInlineAndOutOfLineIsPartial(t *testing.T) {
	res := mergeAll(t,
		[]*model.HeaderFile{parseHeader(t, "ISample", isampleH), parseHeader(t, "CSample", sampleH)},
		[]*model.SourceFile{parseSource(t, "CSample", sampleCpp)})

	u := unitNamed(t, res, "CSample")
	assert.Equal(t, "// Top comment for CSample file", u.FileComment, "header without a file comment takes the source's")
	require.Len(t, u.Classes, 1)
	c := u.Classes[0]
	assert.True(t, c.IsPartial)
	assert.False(t, c.IsStatic)

	ms := methods(c)
	p1 := ms["MethodP1(tdimvalue,agrint,bool)"]
	require.NotNil(t, p1.OutOfLine)
	assert.Equal(t, "0", p1.Parameters[1].DefaultValue)
	assert.Equal(t, "false", p1.Parameters[2].DefaultValue)
	assert.NotNil(t, ms["MethodTwo()"].Inline)

	helper := ms["Helper(int)"]
	assert.True(t, helper.IsStatic, "free functions become static")
	assert.Equal(t, model.AccessPrivate, helper.Access)

	var regions []model.Region
	var index model.Member
	for _, it := range c.Items {
		if it.Region != nil {
			regions = append(regions, *it.Region)
		}
		if it.Member != nil && it.Member.Name == "m_iIndex" {
			index = *it.Member
		}
	}
	assert.Equal(t, []model.Region{{Name: "Private"}}, regions)
	assert.Equal(t, "-1", index.DefaultValue)

	require.Len(t, c.Defines, 2)
	assert.Equal(t, model.FromHeader, c.Defines[0].Origin)
	assert.Equal(t, model.FromSource, c.Defines[1].Origin)

	assert.Equal(t, []string{"ISampleDefines"}, u.StaticUsings)
	_, ok := ms["GetInstance()"]
	assert.False(t, ok, "the factory body moves to the interface")
}

func TestInterfaceDefinesAndFactory(t *testing.T) {
	res := mergeAll(t,
		[]*model.HeaderFile{parseHeader(t, "ISample", isampleH), parseHeader(t, "CSample", sampleH)},
		[]*model.SourceFile{parseSource(t, "CSample", sampleCpp)})

	u := unitNamed(t, res, "ISample")
	require.Len(t, u.Classes, 2)
	iface := u.Classes[0]
	assert.True(t, iface.IsInterface)
	assert.Equal(t, "CSample", iface.Factory)
	require.Len(t, iface.Extensions, 1)
	assert.Equal(t, "GetInstance", iface.Extensions[0].Name)
	require.NotNil(t, iface.Extensions[0].OutOfLine)

	defs := u.Classes[1]
	assert.Equal(t, "ISampleDefines", defs.Name)
	assert.True(t, defs.IsDefines)
	assert.True(t, defs.IsStatic)
	require.Len(t, defs.Defines, 1)
	assert.Equal(t, "INTERFACE_DEFINE", defs.Defines[0].Name)

	assert.Empty(t, res.Diagnostics.OfKind(diag.Unmatched))
	assert.Empty(t, res.Diagnostics.OfKind(diag.Orphan))
}

const partialH = `class CPartialSample
{
public:
	CPartialSample();
	void MethodOne();
	agrint GetRelValue(const CString& cKey);
	bool Inline() { return true; }
};
`

func TestForeignSourceUnitGetsPartialPiece(t *testing.T) {
	h := parseHeader(t, "CPartialSample", partialH)
	main := parseSource(t, "CPartialSample", "CPartialSample::CPartialSample()\n{\n}\nvoid CPartialSample::MethodOne()\n{\n}\n")
	other := parseSource(t, "CPartialSampleMethods", `/* methods */
#include "CPartialSample.h"

#region Values
agrint CPartialSample::GetRelValue(const CString& cKey)
{
	return 0;
}
#endregion

bool LocalFunction2(const agrint& valueIn)
{
	return valueIn > 0;
}
`)
	res := mergeAll(t, []*model.HeaderFile{h}, []*model.SourceFile{main, other})
	require.Len(t, res.Units, 2)

	head := unitNamed(t, res, "CPartialSample").Classes[0]
	assert.True(t, head.IsPartial)
	ms := methods(head)
	assert.Contains(t, ms, "CPartialSample()")
	assert.Contains(t, ms, "MethodOne()")
	assert.Contains(t, ms, "Inline()")
	assert.NotContains(t, ms, "GetRelValue(cstring)")

	u := unitNamed(t, res, "CPartialSampleMethods")
	assert.Equal(t, "/* methods */", u.FileComment)
	require.Len(t, u.Classes, 1)
	part := u.Classes[0]
	assert.Equal(t, "CPartialSample", part.Name)
	assert.True(t, part.IsPartial)

	require.Len(t, part.Items, 4)
	assert.Equal(t, "Values", part.Items[0].Region.Name)
	require.NotNil(t, part.Items[1].Method)
	assert.Equal(t, "GetRelValue", part.Items[1].Method.Name)
	assert.NotNil(t, part.Items[1].Method.OutOfLine)
	assert.True(t, part.Items[2].Region.End)
	free := part.Items[3].Method
	require.NotNil(t, free)
	assert.Equal(t, "LocalFunction2", free.Name)
	assert.True(t, free.IsStatic)
	assert.Empty(t, res.Diagnostics)
}

func TestStructuralMismatchSkipsMethod(t *testing.T) {
	h := parseHeader(t, "CDup", "class CDup\n{\npublic:\n\tint A() { return 1; }\n};\n")
	s := parseSource(t, "CDup", "int CDup::A()\n{\n\treturn 2;\n}\n")
	res := mergeAll(t, []*model.HeaderFile{h}, []*model.SourceFile{s})

	c := unitNamed(t, res, "CDup").Classes[0]
	assert.Empty(t, methods(c))
	mismatch := res.Diagnostics.OfKind(diag.StructuralMismatch)
	require.Len(t, mismatch, 1)
	assert.Equal(t, diag.SeverityError, mismatch[0].Severity)
	assert.Equal(t, "CDup", mismatch[0].Class)
	assert.Empty(t, res.Diagnostics.OfKind(diag.Orphan))
}

func TestUnmatchedAndAmbiguous(t *testing.T) {
	h := parseHeader(t, "CAmb", "class CAmb\n{\npublic:\n\tvoid Missing();\n\tvoid Twice(int a);\n\tvirtual void Pure() = 0;\n};\n")
	s := parseSource(t, "CAmb", "void CAmb::Twice(int a)\n{\n\tfirst();\n}\nvoid CAmb::Twice(const int& b)\n{\n\tsecond();\n}\n")
	res := mergeAll(t, []*model.HeaderFile{h}, []*model.SourceFile{s})

	unmatched := res.Diagnostics.OfKind(diag.Unmatched)
	require.Len(t, unmatched, 1)
	assert.Equal(t, "Missing", unmatched[0].Method)

	amb := res.Diagnostics.OfKind(diag.AmbiguousOverload)
	require.Len(t, amb, 1)
	assert.Equal(t, 5, amb[0].Line)

	ms := methods(unitNamed(t, res, "CAmb").Classes[0])
	assert.Nil(t, ms["Missing()"].Body(), "unmatched declarations stay bodyless")
	assert.Contains(t, ms["Twice(int)"].OutOfLine.Text, "first();")
	assert.Empty(t, res.Diagnostics.OfKind(diag.Orphan))
}

func TestOrphanClass(t *testing.T) {
	s := parseSource(t, "CPartialSampleGetRelValue", `agrint CAgrLibHS::GetRelValue(CString cKey)
{
	return 1;
}
bool CAgrLibHS::Other()
{
	return true;
}
`)
	res := mergeAll(t, nil, []*model.SourceFile{s})
	require.Len(t, res.Units, 1)
	u := res.Units[0]
	require.Len(t, u.Classes, 1)
	c := u.Classes[0]
	assert.Equal(t, "CAgrLibHS", c.Name)
	assert.False(t, c.IsPartial)
	assert.Len(t, methods(c), 2)

	orphans := res.Diagnostics.OfKind(diag.Orphan)
	require.Len(t, orphans, 2)
	assert.Equal(t, diag.SeverityInfo, orphans[0].Severity)
}

func TestOrphanInKnownClassStaysInClass(t *testing.T) {
	h := parseHeader(t, "CKnown", "class CKnown\n{\npublic:\n\tvoid A();\n};\n")
	s := parseSource(t, "CKnown", "void CKnown::A()\n{\n}\nvoid CKnown::Extra(int x)\n{\n}\n")
	res := mergeAll(t, []*model.HeaderFile{h}, []*model.SourceFile{s})

	c := unitNamed(t, res, "CKnown").Classes[0]
	extra, ok := methods(c)["Extra(int)"]
	require.True(t, ok)
	assert.Equal(t, model.AccessPrivate, extra.Access)
	assert.False(t, c.IsPartial)
	assert.Len(t, res.Diagnostics.OfKind(diag.Orphan), 1)
}

func TestStaticClassWithoutHeader(t *testing.T) {
	s := parseSource(t, "Routines", "#define LIMIT 5\nint Clamp(int v)\n{\n\treturn v;\n}\n")
	res := mergeAll(t, nil, []*model.SourceFile{s})
	c := res.Units[0].Classes[0]
	assert.Equal(t, "Routines", c.Name)
	assert.True(t, c.IsStatic)
	require.Len(t, c.Defines, 1)
	assert.Contains(t, methods(c), "Clamp(int)")
}

func TestDuplicateUnit(t *testing.T) {
	a := parseHeader(t, "Same", "class A\n{\n};\n")
	b := parseHeader(t, "Same", "class B\n{\n};\n")
	_, err := Merge([]*model.HeaderFile{a, b}, nil, DefaultOptions())
	assert.ErrorIs(t, err, ErrDuplicateUnit)
}

func TestDuplicateClassIsSkipped(t *testing.T) {
	a := parseHeader(t, "A", "struct StructOne\n{\n\tint x;\n};\n")
	b := parseHeader(t, "B", "struct StructOne\n{\n\tint x;\n};\n")
	res := mergeAll(t, []*model.HeaderFile{a, b}, nil)
	assert.Len(t, unitNamed(t, res, "A").Classes, 1)
	assert.Empty(t, unitNamed(t, res, "B").Classes)
	require.Len(t, res.Diagnostics, 1)
	assert.Equal(t, diag.SeverityWarning, res.Diagnostics[0].Severity)
}

func TestStripDirectives(t *testing.T) {
	text := "struct S\n{\n#ifdef X\n\tint a;\n#endif\n};"
	assert.Equal(t, "struct S\n{\n\tint a;\n};", stripDirectives(text))
}

func TestStructNeverHostsDefines(t *testing.T) {
	h := parseHeader(t, "Globals", `typedef struct
{
#define MAX_X 5
	int a;
} GLOBALS;

class IThing
{
public:
	virtual void Go() = 0;
};
`)
	res := mergeAll(t, []*model.HeaderFile{h}, nil)

	u := unitNamed(t, res, "Globals")
	require.Len(t, u.Classes, 3)
	st := u.Classes[0]
	assert.Equal(t, "GLOBALS", st.Name)
	assert.Empty(t, st.Defines)
	for _, it := range st.Items {
		assert.Nil(t, it.Fragment)
	}
	defs := u.Classes[2]
	assert.Equal(t, "GlobalsDefines", defs.Name)
	require.Len(t, defs.Defines, 1)
	assert.Equal(t, "MAX_X", defs.Defines[0].Name)
}

func TestDuplicateSignatureKeepsFirstDeclaration(t *testing.T) {
	h := parseHeader(t, "CDupSig", "class CDupSig\n{\npublic:\n\tvoid F(const T& a);\n\tvoid F(T* a);\n};\n")
	s := parseSource(t, "CDupSig", "void CDupSig::F(const T& a)\n{\n\tone();\n}\n")
	res := mergeAll(t, []*model.HeaderFile{h}, []*model.SourceFile{s})

	c := unitNamed(t, res, "CDupSig").Classes[0]
	var emitted []model.Method
	for _, it := range c.Items {
		if it.Method != nil {
			emitted = append(emitted, *it.Method)
		}
	}
	require.Len(t, emitted, 1)
	assert.Equal(t, 4, emitted[0].Line)
	assert.Contains(t, emitted[0].OutOfLine.Text, "one();")

	amb := res.Diagnostics.OfKind(diag.AmbiguousOverload)
	require.Len(t, amb, 1)
	assert.Equal(t, 5, amb[0].Line)
	assert.Equal(t, "F", amb[0].Method)
	assert.Empty(t, res.Diagnostics.OfKind(diag.Unmatched))
}

func TestLocalStructDirectivesLeaveBody(t *testing.T) {
	h := parseHeader(t, "CRun", "class CRun\n{\npublic:\n\tvoid Run();\n};\n")
	s := parseSource(t, "CRun", "void CRun::Run()\n{\n\tstruct Tmp\n\t{\n#define LOCAL_MAX 3\n\t\tint a;\n\t};\n\tTmp t;\n}\n")
	res := mergeAll(t, []*model.HeaderFile{h}, []*model.SourceFile{s})

	c := unitNamed(t, res, "CRun").Classes[0]
	for _, it := range c.Items {
		assert.Nil(t, it.Struct, "local structs stay in their method")
	}
	run := methods(c)["Run()"]
	require.NotNil(t, run.OutOfLine)
	assert.NotContains(t, run.OutOfLine.Text, "LOCAL_MAX")
	assert.Contains(t, run.OutOfLine.Text, "\tstruct Tmp\n\t{\n\t\tint a;\n\t};\n\tTmp t;")
	require.Len(t, run.LocalStructs, 1)
	assert.NotContains(t, run.LocalStructs[0].Text, "#define")
	assert.Empty(t, c.Defines)
}
