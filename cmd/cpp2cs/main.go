package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/raymyers/cpp2cs/pkg/config"
	"github.com/raymyers/cpp2cs/pkg/convert"
	"github.com/raymyers/cpp2cs/pkg/diag"
	"github.com/raymyers/cpp2cs/pkg/header"
	"github.com/raymyers/cpp2cs/pkg/signature"
	"github.com/raymyers/cpp2cs/pkg/source"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var version = "0.1.0"

// Conversion options shared by convert and watch
var (
	namespace string
	outputDir string
	typeMap   string
	includes  []string
	excludes  []string
	workers   int
	logLevel  string
	progress  bool
	verbose   bool
	strict    bool
)

// ErrConversionFailed is returned when a run reported error diagnostics
// and --strict is set
var ErrConversionFailed = errors.New("conversion reported errors")

func main() {
	os.Exit(run())
}

func run() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	rootCmd := newRootCmd(os.Stdout, os.Stderr)
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		return 1
	}
	return 0
}

func newRootCmd(out, errOut io.Writer) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "cpp2cs",
		Short: "cpp2cs converts C++ headers and sources into C# classes",
		Long: `cpp2cs reads C++ headers and their implementation files and
writes one C# file per unit. It converts structure, not semantics:
classes, members, signatures and comments are carried over and method
bodies are copied with light token rewriting.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.SetOut(out)
	rootCmd.SetErr(errOut)

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&namespace, "namespace", "", "C# namespace of the generated files")
	flags.StringVarP(&outputDir, "output", "o", "", "Output directory (default <input>/"+convert.DefaultOutputDir+")")
	flags.StringVar(&typeMap, "type-map", "", "YAML file with extra C++ to C# type mappings")
	flags.StringSliceVar(&includes, "include", nil, "Glob patterns of files to convert, relative to the input")
	flags.StringSliceVar(&excludes, "exclude", nil, "Glob patterns of files to skip")
	flags.IntVarP(&workers, "workers", "j", 0, "Number of files parsed in parallel")
	flags.StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	flags.BoolVar(&progress, "progress", true, "Show a progress bar while parsing")
	flags.BoolVarP(&verbose, "verbose", "v", false, "Log every diagnostic and file")
	flags.BoolVar(&strict, "strict", false, "Exit with an error when any diagnostic is an error")

	rootCmd.AddCommand(
		newConvertCmd(out, errOut),
		newParseCmd(out, errOut),
		newSignatureCmd(out, errOut),
		newWatchCmd(out, errOut),
	)
	return rootCmd
}

func newConvertCmd(out, errOut io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "convert <input> [file...]",
		Short: "Convert a directory, or the listed headers and sources",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return doConvert(cmd, args, out, errOut)
		},
	}
}

func newParseCmd(out, errOut io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "parse <file>",
		Short: "Dump the structural model of a header or source as YAML",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return doParse(args[0], out, errOut)
		},
	}
}

func newSignatureCmd(out, errOut io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "signature <declaration>",
		Short: "Print the canonical signature used to match a declaration to its definition",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return doSignature(strings.Join(args, " "), out, errOut)
		},
	}
}

func newWatchCmd(out, errOut io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "watch <input>",
		Short: "Convert a directory and convert again whenever a header or source changes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return doWatch(cmd, args[0], out, errOut)
		},
	}
}

// loadConfig reads the configuration for an input path. Files use their
// directory.
func loadConfig(cmd *cobra.Command, input string, errOut io.Writer) (*config.Config, error) {
	dir := input
	if info, err := os.Stat(input); err == nil && !info.IsDir() {
		dir = filepath.Dir(input)
	}
	cfg, err := config.Load(dir, cmd.Flags())
	if err != nil {
		fmt.Fprintf(errOut, "cpp2cs: %v\n", err)
		return nil, err
	}
	if verbose {
		cfg.Log.Level = "debug"
	}
	return cfg, nil
}

// newLogger builds the logger handed to the converter
func newLogger(cfg *config.Config, errOut io.Writer) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(errOut)
	logger.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})
	level, err := logrus.ParseLevel(cfg.Log.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)
	return logger
}

func newConverter(cmd *cobra.Command, input string, errOut io.Writer) (*convert.Converter, error) {
	cfg, err := loadConfig(cmd, input, errOut)
	if err != nil {
		return nil, err
	}
	conv, err := convert.New(cfg, newLogger(cfg, errOut))
	if err != nil {
		fmt.Fprintf(errOut, "cpp2cs: %v\n", err)
		return nil, err
	}
	if cfg.Progress && !verbose {
		conv.SetProgress(newProgressReporter(errOut))
	}
	return conv, nil
}

// doConvert converts one directory, or an explicit list of files
func doConvert(cmd *cobra.Command, args []string, out, errOut io.Writer) error {
	conv, err := newConverter(cmd, args[0], errOut)
	if err != nil {
		return err
	}

	var report *convert.Report
	info, statErr := os.Stat(args[0])
	if len(args) == 1 && statErr == nil && info.IsDir() {
		report, err = conv.ConvertDirectory(cmd.Context(), args[0], "")
	} else {
		var headers, sources []string
		headers, sources, err = splitFiles(args)
		if err == nil {
			report, err = conv.ConvertFiles(cmd.Context(), headers, sources, conv.OutputDir(filepath.Dir(args[0]), ""))
		}
	}
	if err != nil {
		fmt.Fprintf(errOut, "cpp2cs: %v\n", err)
		return err
	}
	return printReport(report, out)
}

// splitFiles sorts explicit arguments into headers and sources
func splitFiles(args []string) (headers, sources []string, err error) {
	for _, a := range args {
		switch {
		case convert.IsHeader(a):
			headers = append(headers, a)
		case convert.IsSource(a):
			sources = append(sources, a)
		default:
			return nil, nil, fmt.Errorf("%s: not a C++ header or source", a)
		}
	}
	return headers, sources, nil
}

// printReport writes the summary line and, with --strict, turns error
// diagnostics into a failed exit.
func printReport(report *convert.Report, out io.Writer) error {
	errs := report.Diagnostics.Count(diag.SeverityError)
	fmt.Fprintf(out, "Wrote %d file(s), skipped %d, %d error(s), %d warning(s)\n",
		len(report.Written), len(report.Skipped), errs, report.Diagnostics.Count(diag.SeverityWarning))
	if strict && errs > 0 {
		return ErrConversionFailed
	}
	return nil
}

// doParse dumps what the header or source parser sees in one file
func doParse(filename string, out, errOut io.Writer) error {
	var dump any
	var diags diag.List
	switch {
	case convert.IsHeader(filename):
		hf, err := header.ParseFile(filename)
		if err != nil {
			fmt.Fprintf(errOut, "cpp2cs: %v\n", err)
			return err
		}
		dump, diags = hf, hf.Diagnostics
	case convert.IsSource(filename):
		sf, err := source.ParseFile(filename)
		if err != nil {
			fmt.Fprintf(errOut, "cpp2cs: %v\n", err)
			return err
		}
		dump, diags = sf, sf.Diagnostics
	default:
		err := fmt.Errorf("%s: not a C++ header or source", filename)
		fmt.Fprintf(errOut, "cpp2cs: %v\n", err)
		return err
	}

	enc := yaml.NewEncoder(out)
	enc.SetIndent(2)
	if err := enc.Encode(dump); err != nil {
		return err
	}
	if err := enc.Close(); err != nil {
		return err
	}
	for _, d := range diags {
		fmt.Fprintf(errOut, "cpp2cs: %s\n", d)
	}
	return nil
}

// doSignature parses one function declaration and prints its canonical
// signature, qualified with the class when one is given.
func doSignature(decl string, out, errOut io.Writer) error {
	text := strings.TrimSpace(decl)
	text = strings.TrimSuffix(text, ";")
	if !strings.HasSuffix(text, "}") {
		text += "\n{\n}\n"
	}
	sf, err := source.Parse("signature", text)
	if err == nil && len(sf.Definitions) == 0 {
		err = fmt.Errorf("no function declaration in %q", decl)
	}
	if err != nil {
		fmt.Fprintf(errOut, "cpp2cs: %v\n", err)
		return err
	}
	def := sf.Definitions[0]
	sig := signature.Of(def.Method)
	if def.ClassName != "" {
		sig = def.ClassName + "::" + sig
	}
	fmt.Fprintln(out, sig)
	return nil
}

// doWatch converts input and keeps converting on change until interrupted
func doWatch(cmd *cobra.Command, input string, out, errOut io.Writer) error {
	conv, err := newConverter(cmd, input, errOut)
	if err != nil {
		return err
	}
	w, err := convert.NewWatcher(conv, input, "")
	if err != nil {
		fmt.Fprintf(errOut, "cpp2cs: %v\n", err)
		return err
	}
	w.OnRun = func(report *convert.Report, err error) {
		if err != nil {
			fmt.Fprintf(errOut, "cpp2cs: %v\n", err)
			return
		}
		printReport(report, out)
	}
	fmt.Fprintf(errOut, "cpp2cs: watching %s\n", input)
	return w.Run(cmd.Context())
}
