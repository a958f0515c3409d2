// Package config loads converter settings from defaults, an optional
// cpp2cs.yaml, the CPP2CS_OUTPUT environment variable (also read from a
// .env file) and command line flags, in increasing priority.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/gobwas/glob"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config is the complete converter configuration.
type Config struct {
	Namespace       string    `yaml:"namespace" mapstructure:"namespace"`
	Usings          []string  `yaml:"usings" mapstructure:"usings"`
	InterfaceUsings []string  `yaml:"interface_usings" mapstructure:"interface_usings"`
	OutputDir       string    `yaml:"output_dir" mapstructure:"output_dir"`
	TypeMapFile     string    `yaml:"type_map_file" mapstructure:"type_map_file"`
	Include         []string  `yaml:"include" mapstructure:"include"` // glob patterns relative to the input
	Exclude         []string  `yaml:"exclude" mapstructure:"exclude"`
	Workers         int       `yaml:"workers" mapstructure:"workers"`
	Log             LogConfig `yaml:"log" mapstructure:"log"`
	Progress        bool      `yaml:"progress" mapstructure:"progress"`
}

// LogConfig configures logging
type LogConfig struct {
	Level string `yaml:"level" mapstructure:"level"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		Namespace: "Converted",
		Usings:    []string{"System"},
		Include:   []string{"**.h", "**.cpp"},
		Workers:   runtime.NumCPU(),
		Log:       LogConfig{Level: "info"},
		Progress:  true,
	}
}

var (
	// ErrEmptyNamespace indicates a missing namespace
	ErrEmptyNamespace = errors.New("namespace must not be empty")

	// ErrInvalidWorkers indicates a non-positive worker count
	ErrInvalidWorkers = errors.New("workers must be positive")

	// ErrInvalidLogLevel indicates an unknown log level
	ErrInvalidLogLevel = errors.New("invalid log level")

	// ErrInvalidPattern indicates an include or exclude pattern that does not compile
	ErrInvalidPattern = errors.New("invalid glob pattern")
)

// Validate checks cfg and reports every problem at once.
func Validate(cfg *Config) error {
	var errs []error
	if strings.TrimSpace(cfg.Namespace) == "" {
		errs = append(errs, ErrEmptyNamespace)
	}
	if cfg.Workers <= 0 {
		errs = append(errs, fmt.Errorf("%w: %d", ErrInvalidWorkers, cfg.Workers))
	}
	if _, err := logrus.ParseLevel(cfg.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("%w: %q", ErrInvalidLogLevel, cfg.Log.Level))
	}
	for _, p := range append(append([]string{}, cfg.Include...), cfg.Exclude...) {
		if _, err := glob.Compile(p, '/'); err != nil {
			errs = append(errs, fmt.Errorf("%w %q: %v", ErrInvalidPattern, p, err))
		}
	}
	return errors.Join(errs...)
}

// flagKeys maps command line flags to configuration keys
var flagKeys = map[string]string{
	"namespace": "namespace",
	"output":    "output_dir",
	"type-map":  "type_map_file",
	"include":   "include",
	"exclude":   "exclude",
	"workers":   "workers",
	"log-level": "log.level",
	"progress":  "progress",
}

// Load reads the configuration for an input directory. flags may be nil;
// only flags that were set on the command line override other sources.
func Load(dir string, flags *pflag.FlagSet) (*Config, error) {
	if err := loadDotEnv(dir); err != nil {
		return nil, err
	}

	v := viper.New()
	v.SetConfigName("cpp2cs")
	v.SetConfigType("yaml")
	v.AddConfigPath(dir)
	v.AddConfigPath(".")

	// the output directory is the only setting read from the environment
	if err := v.BindEnv("output_dir", "CPP2CS_OUTPUT", "CPP2CS_OUTPUT_DIR"); err != nil {
		return nil, err
	}

	setDefaults(v)
	if err := BindFlags(v, flags); err != nil {
		return nil, err
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// BindFlags binds the known flags present in flags to their keys.
func BindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	if flags == nil {
		return nil
	}
	for name, key := range flagKeys {
		f := flags.Lookup(name)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("failed to bind flag %s: %w", name, err)
		}
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("namespace", d.Namespace)
	v.SetDefault("usings", d.Usings)
	v.SetDefault("interface_usings", d.InterfaceUsings)
	v.SetDefault("output_dir", d.OutputDir)
	v.SetDefault("type_map_file", d.TypeMapFile)
	v.SetDefault("include", d.Include)
	v.SetDefault("exclude", d.Exclude)
	v.SetDefault("workers", d.Workers)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("progress", d.Progress)
}

// loadDotEnv loads dir/.env when it exists. Variables already set in the
// environment win.
func loadDotEnv(dir string) error {
	path := filepath.Join(dir, ".env")
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}
