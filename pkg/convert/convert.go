// Package convert runs a whole conversion: discovery, a parallel parse of
// every unit, the merge barrier, generation and output.
package convert

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/raymyers/cpp2cs/pkg/config"
	"github.com/raymyers/cpp2cs/pkg/csgen"
	"github.com/raymyers/cpp2cs/pkg/diag"
	"github.com/raymyers/cpp2cs/pkg/header"
	"github.com/raymyers/cpp2cs/pkg/merge"
	"github.com/raymyers/cpp2cs/pkg/model"
	"github.com/raymyers/cpp2cs/pkg/source"
	"github.com/raymyers/cpp2cs/pkg/typeconv"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// ErrNoInput is returned when a run finds nothing to convert
var ErrNoInput = errors.New("no input files")

// DefaultOutputDir is used below the input directory when no output is set
const DefaultOutputDir = "Generated_CS"

// Report describes one run
type Report struct {
	RunID       string
	Written     []string
	Skipped     []string
	Diagnostics diag.List
}

// ProgressReporter is told about parse progress. Calls to OnFileParsed may
// come from several goroutines.
type ProgressReporter interface {
	OnStart(total int)
	OnFileParsed(path string)
	OnDone()
}

// Converter runs conversions with one configuration
type Converter struct {
	cfg      *config.Config
	logger   *logrus.Logger
	types    *typeconv.Converter
	progress ProgressReporter
}

// New creates a converter. The type map file, when configured, is loaded
// here.
func New(cfg *config.Config, logger *logrus.Logger) (*Converter, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if logger == nil {
		logger = logrus.New()
	}
	types := typeconv.New(nil)
	if cfg.TypeMapFile != "" {
		var err error
		if types, err = typeconv.LoadFile(cfg.TypeMapFile); err != nil {
			return nil, err
		}
	}
	return &Converter{cfg: cfg, logger: logger, types: types}, nil
}

// SetProgress installs a progress reporter.
func (c *Converter) SetProgress(p ProgressReporter) {
	c.progress = p
}

// OutputDir resolves where a run over input writes.
func (c *Converter) OutputDir(input, output string) string {
	switch {
	case output != "":
		return output
	case c.cfg.OutputDir != "":
		return c.cfg.OutputDir
	}
	return filepath.Join(input, DefaultOutputDir)
}

// ConvertDirectory converts every matching header and source below input.
func (c *Converter) ConvertDirectory(ctx context.Context, input, output string) (*Report, error) {
	info, err := os.Stat(input)
	if err != nil {
		return nil, diag.Wrap(diag.IO, input, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s: not a directory", input)
	}
	output = c.OutputDir(input, output)

	d, err := NewDiscovery(input, c.cfg.Include, c.cfg.Exclude)
	if err != nil {
		return nil, fmt.Errorf("invalid pattern: %w", err)
	}
	d.Skip(output)
	headers, sources, err := d.Files()
	if err != nil {
		return nil, diag.Wrap(diag.IO, input, err)
	}
	return c.ConvertFiles(ctx, headers, sources, output)
}

// parsed is the result slot of one unit
type parsed struct {
	path   string
	header *model.HeaderFile
	source *model.SourceFile
	err    error
}

// ConvertFiles converts the given units and writes one .cs file per output
// unit into output.
func (c *Converter) ConvertFiles(ctx context.Context, headers, sources []string, output string) (*Report, error) {
	if len(headers)+len(sources) == 0 {
		return nil, ErrNoInput
	}
	report := &Report{RunID: uuid.New().String()}
	log := c.logger.WithField("run_id", report.RunID)
	log.WithFields(logrus.Fields{
		"headers": len(headers),
		"sources": len(sources),
		"output":  output,
	}).Info("Starting conversion")

	results, err := c.parseAll(ctx, headers, sources)
	if err != nil {
		return nil, err
	}

	var hs []*model.HeaderFile
	var ss []*model.SourceFile
	for _, r := range results {
		switch {
		case r.err != nil:
			report.Skipped = append(report.Skipped, r.path)
			report.Diagnostics.Add(errorDiagnostic(r.path, r.err))
		case r.header != nil:
			hs = append(hs, r.header)
			report.Diagnostics.Add(r.header.Diagnostics...)
		case r.source != nil:
			ss = append(ss, r.source)
			report.Diagnostics.Add(r.source.Diagnostics...)
		}
	}

	merged, err := merge.Merge(hs, ss, merge.DefaultOptions())
	if err != nil {
		return nil, err
	}
	report.Diagnostics.Add(merged.Diagnostics...)

	if err := os.MkdirAll(output, 0755); err != nil {
		return nil, diag.Wrap(diag.IO, output, err)
	}
	opts := csgen.Options{
		Namespace:       c.cfg.Namespace,
		Usings:          c.cfg.Usings,
		InterfaceUsings: c.cfg.InterfaceUsings,
		Types:           c.types,
	}
	units := append([]*merge.Unit{}, merged.Units...)
	sort.SliceStable(units, func(i, j int) bool { return units[i].Name < units[j].Name })
	for _, u := range units {
		if len(u.Classes) == 0 {
			continue
		}
		path := filepath.Join(output, u.Name+".cs")
		if err := os.WriteFile(path, csgen.Generate(u, opts), 0644); err != nil {
			report.Skipped = append(report.Skipped, path)
			report.Diagnostics.Add(diag.New(diag.IO, path, 0, "%v", err))
			continue
		}
		report.Written = append(report.Written, path)
		log.WithField("file", path).Debug("Wrote unit")
	}

	report.Diagnostics.Sort()
	c.logDiagnostics(log, report.Diagnostics)
	log.WithFields(logrus.Fields{
		"written":  len(report.Written),
		"skipped":  len(report.Skipped),
		"errors":   report.Diagnostics.Count(diag.SeverityError),
		"warnings": report.Diagnostics.Count(diag.SeverityWarning),
	}).Info("Conversion completed")
	return report, nil
}

// parseAll parses every unit concurrently. Each task writes only its own
// slot; per-file failures are kept in the slot, not returned.
func (c *Converter) parseAll(ctx context.Context, headers, sources []string) ([]parsed, error) {
	paths := append(append([]string{}, headers...), sources...)
	results := make([]parsed, len(paths))
	if c.progress != nil {
		c.progress.OnStart(len(paths))
		defer c.progress.OnDone()
	}
	var mu sync.Mutex

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(c.cfg.Workers, 1))
	for i, path := range paths {
		i, path := i, path
		isHeader := i < len(headers)
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			r := parsed{path: path}
			if isHeader {
				r.header, r.err = header.ParseFile(path)
			} else {
				r.source, r.err = source.ParseFile(path)
			}
			results[i] = r
			c.logger.WithField("file", path).Debug("Parsed unit")
			if c.progress != nil {
				mu.Lock()
				c.progress.OnFileParsed(path)
				mu.Unlock()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// errorDiagnostic turns a failed parse into a diagnostic. IO failures keep
// their kind; anything else is reported as unrecognized input.
func errorDiagnostic(path string, err error) diag.Diagnostic {
	var de *diag.Error
	if errors.As(err, &de) {
		return de.Diagnostic
	}
	d := diag.New(diag.Unrecognized, path, 0, "file skipped: %v", err)
	d.Severity = diag.SeverityError
	return d
}

func (c *Converter) logDiagnostics(log *logrus.Entry, list diag.List) {
	for _, d := range list {
		entry := log.WithFields(logrus.Fields{
			"file": d.File,
			"line": d.Line,
			"kind": d.Kind.String(),
		})
		if d.Class != "" {
			entry = entry.WithField("class", d.Class)
		}
		switch d.Severity {
		case diag.SeverityError:
			entry.Error(d.Message)
		case diag.SeverityWarning:
			entry.Warn(d.Message)
		default:
			entry.Info(d.Message)
		}
	}
}
