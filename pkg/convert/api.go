package convert

import (
	"context"
	"io"
	"strings"

	"github.com/raymyers/cpp2cs/pkg/config"
	"github.com/raymyers/cpp2cs/pkg/header"
	"github.com/raymyers/cpp2cs/pkg/model"
	"github.com/raymyers/cpp2cs/pkg/params"
	"github.com/raymyers/cpp2cs/pkg/signature"
	"github.com/sirupsen/logrus"
)

func quietConverter() *Converter {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	c, _ := New(config.Default(), logger)
	return c
}

// ConvertDirectory converts a directory with the default configuration.
func ConvertDirectory(ctx context.Context, inputPath, outputPath string) (*Report, error) {
	return quietConverter().ConvertDirectory(ctx, inputPath, outputPath)
}

// ConvertFiles converts explicit headers and sources with the default
// configuration.
func ConvertFiles(ctx context.Context, headers, sources []string, outputPath string) (*Report, error) {
	return quietConverter().ConvertFiles(ctx, headers, sources, outputPath)
}

// ParseHeaderFile returns the classes declared in one header.
func ParseHeaderFile(path string) ([]model.Class, error) {
	hf, err := header.ParseFile(path)
	if err != nil {
		return nil, err
	}
	return hf.Classes, nil
}

// ParseParameters parses a raw parameter list, with or without the
// enclosing parentheses.
func ParseParameters(raw string) []model.Parameter {
	trimmed := strings.TrimSpace(raw)
	if strings.HasPrefix(trimmed, "(") && strings.HasSuffix(trimmed, ")") {
		raw = trimmed[1 : len(trimmed)-1]
	}
	return params.Parse(raw)
}

// GetMethodSignature returns the canonical signature of m.
func GetMethodSignature(m model.Method) string {
	return signature.Of(m)
}

// NormalizeParameterType returns the canonical form of a parameter type.
func NormalizeParameterType(raw string) string {
	return signature.NormalizeParameterType(raw)
}
