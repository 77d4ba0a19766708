package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml"

	"github.com/wippyai/wasm2obj/errors"
	"github.com/wippyai/wasm2obj/isa/x64"
)

// config holds the driver settings. A TOML file may provide any of them;
// flags given on the command line take precedence.
type config struct {
	Target   string `toml:"target"`
	Output   string `toml:"output"`
	Workers  int    `toml:"workers"`
	Validate bool   `toml:"validate"`
	Verbose  bool   `toml:"verbose"`
}

func defaultConfig() config {
	return config{
		Target:  x64.Name,
		Workers: 1,
	}
}

// loadConfigFile overlays the keys present in the TOML file at path on cfg.
func loadConfigFile(path string, cfg *config) error {
	buf, err := os.ReadFile(path)
	if err != nil {
		return errors.IO(errors.PhaseConfig, "read config", err)
	}
	tree, err := toml.LoadBytes(buf)
	if err != nil {
		return errors.Wrap(errors.PhaseConfig, errors.KindInvalidInput, err, fmt.Sprintf("parse %s: %v", path, err))
	}
	var file config
	if err := tree.Unmarshal(&file); err != nil {
		return errors.Wrap(errors.PhaseConfig, errors.KindInvalidInput, err, fmt.Sprintf("decode %s: %v", path, err))
	}

	for _, key := range tree.Keys() {
		switch key {
		case "target":
			cfg.Target = file.Target
		case "output":
			cfg.Output = file.Output
		case "workers":
			cfg.Workers = file.Workers
		case "validate":
			cfg.Validate = file.Validate
		case "verbose":
			cfg.Verbose = file.Verbose
		default:
			return errors.New(errors.PhaseConfig, errors.KindInvalidInput).
				Value(key).
				Detail("%s: unknown key %q", path, key).
				Build()
		}
	}
	return nil
}

// parseArgs builds the configuration from args and returns it with the
// input path.
func parseArgs(args []string, stderr io.Writer) (config, string, error) {
	fs := flag.NewFlagSet("wasm2obj", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprintln(stderr, "Usage: wasm2obj [-config file.toml] [-target x64] [-o out.o] [-workers n] [-validate] [-v] input.wasm")
		fs.PrintDefaults()
	}

	var (
		configPath = fs.String("config", "", "TOML configuration file")
		target     = fs.String("target", "", "Target architecture (default x64)")
		output     = fs.String("o", "", "Output object file (default: input with .o extension)")
		workers    = fs.Int("workers", 0, "Functions compiled concurrently (default 1)")
		validate   = fs.Bool("validate", false, "Validate the module with wazero before compiling")
		verbose    = fs.Bool("v", false, "Verbose logging")
	)
	if err := fs.Parse(args); err != nil {
		return config{}, "", err
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return config{}, "", errors.InvalidInput(errors.PhaseConfig, "expected exactly one input file")
	}
	input := fs.Arg(0)

	cfg := defaultConfig()
	if *configPath != "" {
		if err := loadConfigFile(*configPath, &cfg); err != nil {
			return config{}, "", err
		}
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "target":
			cfg.Target = *target
		case "o":
			cfg.Output = *output
		case "workers":
			cfg.Workers = *workers
		case "validate":
			cfg.Validate = *validate
		case "v":
			cfg.Verbose = *verbose
		}
	})

	if cfg.Workers < 1 {
		return config{}, "", errors.New(errors.PhaseConfig, errors.KindInvalidInput).
			Value(cfg.Workers).
			Detail("workers must be at least 1, got %d", cfg.Workers).
			Build()
	}
	if cfg.Output == "" {
		cfg.Output = strings.TrimSuffix(input, filepath.Ext(input)) + ".o"
	}
	return cfg, input, nil
}
