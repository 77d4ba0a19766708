// Command wasm2obj compiles a WebAssembly module to a relocatable native
// object file.
package main

import (
	"context"
	stderrors "errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/lipgloss"
	"github.com/tetratelabs/wazero"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/term"

	"github.com/wippyai/wasm2obj/emit"
	"github.com/wippyai/wasm2obj/errors"
	"github.com/wippyai/wasm2obj/isa"
	_ "github.com/wippyai/wasm2obj/isa/x64"
	"github.com/wippyai/wasm2obj/object"
	"github.com/wippyai/wasm2obj/translate"
	"github.com/wippyai/wasm2obj/wasm"
)

var (
	errorStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FF6B6B"))
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#90EE90"))
	nameStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#87CEEB"))
)

func main() {
	os.Exit(run(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	cfg, input, err := parseArgs(args, stderr)
	if err != nil {
		if stderrors.Is(err, flag.ErrHelp) {
			return 0
		}
		fmt.Fprintf(stderr, "%s %v\n", styled(stderr, errorStyle, "error:"), err)
		return 2
	}

	log, err := newLogger(cfg.Verbose, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "%s %v\n", styled(stderr, errorStyle, "error:"), err)
		return 1
	}
	defer func() { _ = log.Sync() }()
	emit.SetLogger(log.Named("emit"))
	translate.SetLogger(log.Named("translate"))

	obj, err := compile(ctx, cfg, input, log)
	if err == nil {
		err = writeObject(obj, cfg.Output)
	}
	if err != nil {
		fmt.Fprintf(stderr, "%s %s\n", styled(stderr, errorStyle, "error:"), err)
		return 1
	}

	fmt.Fprintf(stdout, "%s %s: %d functions, %d bytes of %s code\n",
		styled(stdout, okStyle, "wrote"),
		styled(stdout, nameStyle, cfg.Output),
		obj.Len(), obj.CodeSize(), obj.Target.Name)
	return 0
}

// compile runs the pipeline on the module at input.
func compile(ctx context.Context, cfg config, input string, log *zap.Logger) (*object.Artifact, error) {
	data, err := os.ReadFile(input)
	if err != nil {
		return nil, errors.IO(errors.PhaseLoad, "read input", err)
	}
	if cfg.Validate {
		if err := validate(ctx, data); err != nil {
			return nil, err
		}
		log.Debug("module validated", zap.String("input", input))
	}

	m, err := wasm.ParseModule(data)
	if err != nil {
		return nil, errors.Load("parse "+input, err)
	}

	target, err := isa.Lookup(cfg.Target)
	if err != nil {
		return nil, err
	}
	objTarget, err := object.TargetFor(target.Name())
	if err != nil {
		return nil, err
	}

	rt := translate.NewRuntime()
	tr, err := translate.Translate(m, rt)
	if err != nil {
		return nil, err
	}
	log.Debug("module translated",
		zap.Int("functions", len(tr.Functions)),
		zap.Int("imports", rt.NumImportedFuncs()))

	obj := object.NewArtifact(filepath.Base(input), objTarget)
	opts := emit.DefaultOptions()
	opts.Workers = cfg.Workers
	if err := emit.EmitModuleWithOptions(ctx, tr, obj, target, rt, opts); err != nil {
		return nil, err
	}
	return obj, nil
}

// validate runs the full WebAssembly validation rules over data, which
// the decoder used for translation does not.
func validate(ctx context.Context, data []byte) error {
	r := wazero.NewRuntimeWithConfig(ctx, wazero.NewRuntimeConfigInterpreter())
	defer r.Close(ctx)

	compiled, err := r.CompileModule(ctx, data)
	if err != nil {
		return errors.Wrap(errors.PhaseLoad, errors.KindInvalidData, err, "invalid module: "+err.Error())
	}
	return compiled.Close(ctx)
}

// writeObject writes obj next to path and renames it into place, so a failed
// write never leaves a truncated object behind.
func writeObject(obj io.WriterTo, path string) error {
	f, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return errors.IO(errors.PhaseObject, "create output", err)
	}
	tmp := f.Name()
	if err := f.Chmod(0o644); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return errors.IO(errors.PhaseObject, "create output", err)
	}
	if _, err := obj.WriteTo(f); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return errors.IO(errors.PhaseObject, "close output", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return errors.IO(errors.PhaseObject, "rename output", err)
	}
	return nil
}

func newLogger(verbose bool, w io.Writer) (*zap.Logger, error) {
	var cfg zap.Config
	if verbose {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
		cfg.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
	}
	if w != os.Stderr {
		core := zapcore.NewCore(zapcore.NewConsoleEncoder(cfg.EncoderConfig), zapcore.AddSync(w), cfg.Level)
		return zap.New(core), nil
	}
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}
	return cfg.Build()
}

// styled renders text with style when w is a terminal.
func styled(w io.Writer, style lipgloss.Style, text string) string {
	f, ok := w.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return text
	}
	return style.Render(text)
}
