package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const sampleH = `#pragma once
// A sample class
class CSample
{
public:
    CSample();
    int Count(const CString& key) const;
private:
    int m_count;
};
`

const sampleCpp = `#include "CSample.h"

CSample::CSample() : m_count(0)
{
}

int CSample::Count(const CString& key) const
{
    return m_count;
}
`

func writeSample(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "CSample.h"), []byte(sampleH), 0644); err != nil {
		t.Fatalf("failed to write header: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "CSample.cpp"), []byte(sampleCpp), 0644); err != nil {
		t.Fatalf("failed to write source: %v", err)
	}
	return dir
}

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := newRootCmd(&out, &errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), errOut.String(), err
}

func TestVersion(t *testing.T) {
	if version == "" {
		t.Error("version should not be empty")
	}
}

func TestCommandsExist(t *testing.T) {
	var out, errOut bytes.Buffer
	cmd := newRootCmd(&out, &errOut)

	for _, name := range []string{"convert", "parse", "signature", "watch"} {
		found, _, err := cmd.Find([]string{name})
		if err != nil || found.Name() != name {
			t.Errorf("expected command %s to exist", name)
		}
	}
	for _, name := range []string{"namespace", "output", "type-map", "include", "exclude", "workers", "log-level", "progress", "verbose", "strict"} {
		if cmd.PersistentFlags().Lookup(name) == nil {
			t.Errorf("expected flag --%s to exist", name)
		}
	}
}

func TestConvertDirectory(t *testing.T) {
	dir := writeSample(t)

	out, errOut, err := execute(t, "convert", "--progress=false", dir)
	if err != nil {
		t.Fatalf("expected no error, got %v (stderr %q)", err, errOut)
	}
	if !strings.Contains(out, "Wrote 1 file(s)") {
		t.Errorf("expected summary line, got %q", out)
	}

	data, err := os.ReadFile(filepath.Join(dir, "Generated_CS", "CSample.cs"))
	if err != nil {
		t.Fatalf("expected output file: %v", err)
	}
	got := string(data)
	for _, want := range []string{
		"namespace Converted;",
		"// A sample class\ninternal class CSample",
		"    public CSample()\n    {\n        m_count = 0;\n    }",
		"    public int Count(CString key)\n    {\n        return m_count;\n    }",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("expected output to contain %q, got:\n%s", want, got)
		}
	}
}

func TestConvertFlagsOverrideDefaults(t *testing.T) {
	dir := writeSample(t)
	outDir := filepath.Join(t.TempDir(), "cs")

	_, errOut, err := execute(t, "convert", "--progress=false", "--namespace", "Legacy", "-o", outDir, dir)
	if err != nil {
		t.Fatalf("expected no error, got %v (stderr %q)", err, errOut)
	}
	data, err := os.ReadFile(filepath.Join(outDir, "CSample.cs"))
	if err != nil {
		t.Fatalf("expected output file: %v", err)
	}
	if !strings.Contains(string(data), "namespace Legacy;") {
		t.Errorf("expected namespace Legacy, got:\n%s", data)
	}
}

func TestConvertExplicitFiles(t *testing.T) {
	dir := writeSample(t)
	outDir := filepath.Join(t.TempDir(), "cs")

	out, errOut, err := execute(t, "convert", "--progress=false", "-o", outDir, filepath.Join(dir, "CSample.cpp"))
	if err != nil {
		t.Fatalf("expected no error, got %v (stderr %q)", err, errOut)
	}
	if !strings.Contains(out, "Wrote 1 file(s)") {
		t.Errorf("expected summary line, got %q", out)
	}
	if _, err := os.Stat(filepath.Join(outDir, "CSample.cs")); err != nil {
		t.Errorf("expected CSample.cs: %v", err)
	}
}

func TestConvertRejectsOtherFiles(t *testing.T) {
	file := filepath.Join(t.TempDir(), "notes.txt")
	if err := os.WriteFile(file, []byte("x"), 0644); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}
	_, errOut, err := execute(t, "convert", "--progress=false", file)
	if err == nil {
		t.Fatal("expected error for a non C++ file")
	}
	if !strings.Contains(errOut, "not a C++ header or source") {
		t.Errorf("expected explanation on stderr, got %q", errOut)
	}
}

func TestConvertInvalidConfig(t *testing.T) {
	dir := writeSample(t)
	_, errOut, err := execute(t, "convert", "--progress=false", "--workers", "-1", dir)
	if err == nil {
		t.Fatal("expected error for negative workers")
	}
	if !strings.Contains(errOut, "workers must be positive") {
		t.Errorf("expected validation message, got %q", errOut)
	}
}

func TestConvertStrict(t *testing.T) {
	dir := writeSample(t)
	// an inline body plus an out-of-line definition is an error diagnostic
	inline := strings.Replace(sampleH, "int Count(const CString& key) const;", "int Count(const CString& key) const { return 0; }", 1)
	if err := os.WriteFile(filepath.Join(dir, "CSample.h"), []byte(inline), 0644); err != nil {
		t.Fatalf("failed to write header: %v", err)
	}

	out, _, err := execute(t, "convert", "--progress=false", "--log-level", "error", dir)
	if err != nil {
		t.Fatalf("expected no error without --strict, got %v", err)
	}
	if !strings.Contains(out, "1 error(s)") {
		t.Errorf("expected one error in summary, got %q", out)
	}

	_, _, err = execute(t, "convert", "--progress=false", "--log-level", "error", "--strict", dir)
	if !errors.Is(err, ErrConversionFailed) {
		t.Errorf("expected ErrConversionFailed, got %v", err)
	}
}

func TestParseHeader(t *testing.T) {
	dir := writeSample(t)

	out, _, err := execute(t, "parse", filepath.Join(dir, "CSample.h"))
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	for _, want := range []string{"name: CSample", "kind: class", "access: private", "name: m_count"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected output to contain %q, got:\n%s", want, out)
		}
	}
}

func TestParseSource(t *testing.T) {
	dir := writeSample(t)

	out, _, err := execute(t, "parse", filepath.Join(dir, "CSample.cpp"))
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	for _, want := range []string{"definitions:", "class: CSample", "name: Count", "member: m_count"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected output to contain %q, got:\n%s", want, out)
		}
	}
}

func TestParseFileNotFound(t *testing.T) {
	_, errOut, err := execute(t, "parse", filepath.Join(t.TempDir(), "missing.h"))
	if err == nil {
		t.Fatal("expected error for missing file")
	}
	if !strings.Contains(errOut, "missing.h") {
		t.Errorf("expected file name in error, got %q", errOut)
	}
}

func TestSignature(t *testing.T) {
	tests := []struct {
		decl string
		want string
	}{
		{"int Count(const CString& key) const;", "Count(cstring)"},
		{"int CSample::Count(const CString &key) const", "CSample::Count(cstring)"},
		{"void Reset()", "Reset()"},
		{"void Copy(const char* src, int* pOut)", "Copy(char,int)"},
	}
	for _, tt := range tests {
		t.Run(tt.decl, func(t *testing.T) {
			out, _, err := execute(t, "signature", tt.decl)
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if got := strings.TrimSpace(out); got != tt.want {
				t.Errorf("signature(%q) = %q, want %q", tt.decl, got, tt.want)
			}
		})
	}
}

func TestSignatureRejectsNonFunction(t *testing.T) {
	_, _, err := execute(t, "signature", "int x = 3;")
	if err == nil {
		t.Error("expected error for a declaration without parameters")
	}
}

func TestSplitFiles(t *testing.T) {
	headers, sources, err := splitFiles([]string{"a.h", "b.cpp", "c.hpp"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(headers) != 2 || len(sources) != 1 {
		t.Errorf("got headers %v sources %v", headers, sources)
	}
	if _, _, err := splitFiles([]string{"a.txt"}); err == nil {
		t.Error("expected error for a.txt")
	}
}
