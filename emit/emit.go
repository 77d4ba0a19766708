// Package emit compiles the functions of a translated WebAssembly module to
// machine code and collects them into an object artifact.
//
// For every function EmitModule verifies the IR, compiles it for the target,
// emits it into a buffer of exactly the reported size and checks that the
// backend recorded no relocations, since the artifact cannot resolve them
// yet. One failing function aborts the whole module: the artifact is only
// written after every function has compiled, in module order.
package emit

import (
	"context"
	stderrors "errors"
	"strings"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/wippyai/wasm2obj/codegen"
	"github.com/wippyai/wasm2obj/errors"
	"github.com/wippyai/wasm2obj/isa"
	"github.com/wippyai/wasm2obj/object"
	"github.com/wippyai/wasm2obj/translate"
	"github.com/wippyai/wasm2obj/verifier"
)

// Options configures module emission.
type Options struct {
	// Namer derives linkage names. Nil selects DefaultNamer.
	Namer Namer

	// PlaceholderName, when set, names every function the same and takes
	// precedence over Namer. Modules with more than one function then fail
	// with a duplicate symbol error.
	PlaceholderName string

	// Workers is the number of functions compiled concurrently.
	// Values below 2 compile one function at a time in module order.
	Workers int

	// OptLevel is passed to the code generator. Verification is always on.
	OptLevel codegen.OptLevel
}

// DefaultOptions returns sequential emission with export-based names.
func DefaultOptions() Options {
	return Options{
		Workers:  1,
		OptLevel: codegen.OptNone,
	}
}

func (o Options) namer(tr *translate.TranslationResult) Namer {
	switch {
	case o.PlaceholderName != "":
		return placeholderNamer(o.PlaceholderName)
	case o.Namer != nil:
		return o.Namer
	}
	return DefaultNamer(tr)
}

// compiledFunc is the machine code of one function, ready to be added to
// the artifact.
type compiledFunc struct {
	name  string
	index uint32
	code  []byte
}

type emitter struct {
	tr     *translate.TranslationResult
	target isa.TargetISA
	flags  codegen.Flags
	namer  Namer
}

// EmitModule emits every function of tr into obj with the default options.
func EmitModule(ctx context.Context, tr *translate.TranslationResult, obj *object.Artifact, target isa.TargetISA, rt *translate.Runtime) error {
	return EmitModuleWithOptions(ctx, tr, obj, target, rt, DefaultOptions())
}

// EmitModuleWithOptions emits every function of tr into obj. rt describes
// the imports the module was translated against and may be nil.
//
// On error obj is left unchanged. The error is an *errors.Error whose
// message is the full diagnostic; its Kind identifies the failure.
func EmitModuleWithOptions(ctx context.Context, tr *translate.TranslationResult, obj *object.Artifact, target isa.TargetISA, rt *translate.Runtime, opts Options) error {
	if tr == nil || obj == nil || target == nil {
		return errors.InvalidInput(errors.PhaseEmit, "translation result, artifact and target are required")
	}
	for i, fn := range tr.Functions {
		if fn == nil {
			return errors.New(errors.PhaseEmit, errors.KindInvalidInput).
				Value(tr.FuncIndex(i)).
				Detail("function %d has no IR", tr.FuncIndex(i)).
				Build()
		}
	}
	if err := checkStart(tr, rt); err != nil {
		return err
	}

	e := &emitter{
		tr:     tr,
		target: target,
		flags:  codegen.NewFlags(codegen.WithVerifier(true), codegen.WithOptLevel(opts.OptLevel)),
		namer:  opts.namer(tr),
	}

	var (
		funcs []compiledFunc
		err   error
	)
	if opts.Workers > 1 && len(tr.Functions) > 1 {
		funcs, err = e.compileParallel(ctx, opts.Workers)
	} else {
		funcs, err = e.compileSequential(ctx)
	}
	if err != nil {
		return err
	}

	if err := commit(obj, funcs); err != nil {
		return err
	}
	Logger().Debug("module emitted",
		zap.String("target", target.Name()),
		zap.Int("functions", len(funcs)),
		zap.Int("bytes", obj.CodeSize()))
	return nil
}

// checkStart rejects a start function in the imported index range.
func checkStart(tr *translate.TranslationResult, rt *translate.Runtime) error {
	if tr.StartIndex == nil {
		return nil
	}
	start := *tr.StartIndex
	imported := rt.NumImportedFuncs()
	if uint64(start) < uint64(imported) {
		return errors.New(errors.PhaseEmit, errors.KindInvalidStart).
			Value(start).
			Detail("start function %d is imported (%d imported functions); imported start functions are not supported", start, imported).
			Build()
	}
	return nil
}

func (e *emitter) compileSequential(ctx context.Context) ([]compiledFunc, error) {
	funcs := make([]compiledFunc, len(e.tr.Functions))
	for i := range e.tr.Functions {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		cf, err := e.compile(i)
		if err != nil {
			return nil, err
		}
		funcs[i] = cf
	}
	return funcs, nil
}

// compileParallel compiles on up to workers goroutines. Functions after the
// lowest failing index are skipped, and that failure is reported, so the
// result matches compileSequential.
func (e *emitter) compileParallel(ctx context.Context, workers int) ([]compiledFunc, error) {
	n := len(e.tr.Functions)
	funcs := make([]compiledFunc, n)
	errs := make([]error, n)

	var lowest atomic.Int64
	lowest.Store(int64(n))

	var g errgroup.Group
	g.SetLimit(workers)
	for i := range e.tr.Functions {
		if err := ctx.Err(); err != nil {
			break
		}
		if int64(i) > lowest.Load() {
			break
		}
		g.Go(func() error {
			if int64(i) > lowest.Load() || ctx.Err() != nil {
				return nil
			}
			cf, err := e.compile(i)
			if err != nil {
				errs[i] = err
				for {
					cur := lowest.Load()
					if int64(i) >= cur || lowest.CompareAndSwap(cur, int64(i)) {
						break
					}
				}
				return nil
			}
			funcs[i] = cf
			return nil
		})
	}
	_ = g.Wait()

	if i := lowest.Load(); i < int64(n) {
		return nil, errs[i]
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return funcs, nil
}

// compile verifies, compiles and emits the i-th function.
func (e *emitter) compile(i int) (compiledFunc, error) {
	fn := e.tr.Functions[i]
	idx := e.tr.FuncIndex(i)
	name := e.namer(idx)

	if err := verifier.Verify(fn, e.target); err != nil {
		return compiledFunc{}, errors.New(errors.PhaseVerify, errors.KindVerifier).
			Function(name).
			Value(idx).
			Cause(err).
			Detail("%s", prettyError(fn, e.target, err)).
			Build()
	}

	cctx := codegen.NewContextForFunction(fn.Clone())
	size, err := cctx.Compile(e.target, e.flags)
	if err != nil {
		return compiledFunc{}, compileError(cctx, e.target, name, idx, err)
	}
	if size == 0 {
		return compiledFunc{}, errors.New(errors.PhaseCompile, errors.KindNoCode).
			Function(name).
			Value(idx).
			Detail("no code generated").
			Build()
	}

	code := make([]byte, size)
	relocs := newRelocSink()
	if err := cctx.EmitToMemory(code, relocs, e.target); err != nil {
		return compiledFunc{}, compileError(cctx, e.target, name, idx, err)
	}
	if msg, ok := relocs.unsupportedReloc(); ok {
		return compiledFunc{}, errors.New(errors.PhaseEmit, errors.KindUnsupportedReloc).
			Function(name).
			Value(idx).
			Detail("%s", msg).
			Build()
	}

	Logger().Debug("function compiled",
		zap.Uint32("index", idx),
		zap.String("name", name),
		zap.Int("size", len(code)))
	return compiledFunc{name: name, index: idx, code: code}, nil
}

func compileError(cctx *codegen.Context, target isa.TargetISA, name string, idx uint32, err error) error {
	var verr *verifier.Error
	if stderrors.As(err, &verr) {
		return errors.New(errors.PhaseVerify, errors.KindVerifier).
			Function(name).
			Value(idx).
			Cause(err).
			Detail("%s", prettyVerifierError(cctx.Func, target, verr)).
			Build()
	}
	return errors.New(errors.PhaseCompile, errors.KindCodegen).
		Function(name).
		Value(idx).
		Cause(err).
		Detail("%s", prettyError(cctx.Func, target, err)).
		Build()
}

// commit adds funcs to obj after checking that every name is usable, so a
// rejected name leaves obj unchanged.
func commit(obj *object.Artifact, funcs []compiledFunc) error {
	seen := make(map[string]uint32, len(funcs))
	for _, cf := range funcs {
		if cf.name == "" {
			return errors.New(errors.PhaseEmit, errors.KindInvalidInput).
				Value(cf.index).
				Detail("function %d has an empty linkage name", cf.index).
				Build()
		}
		if strings.IndexByte(cf.name, 0) >= 0 {
			return errors.New(errors.PhaseEmit, errors.KindInvalidInput).
				Function(cf.name).
				Value(cf.index).
				Detail("linkage name %q of function %d contains a NUL byte", cf.name, cf.index).
				Build()
		}
		if prev, ok := seen[cf.name]; ok {
			return errors.New(errors.PhaseEmit, errors.KindDuplicateSymbol).
				Function(cf.name).
				Value(cf.index).
				Detail("linkage name %q of function %d is already used by function %d", cf.name, cf.index, prev).
				Build()
		}
		if obj.Has(cf.name) {
			return errors.New(errors.PhaseEmit, errors.KindDuplicateSymbol).
				Function(cf.name).
				Value(cf.index).
				Detail("linkage name %q of function %d is already defined in %s", cf.name, cf.index, obj.Name).
				Build()
		}
		seen[cf.name] = cf.index
	}

	for _, cf := range funcs {
		if err := obj.AddCode(cf.name, cf.code); err != nil {
			return err
		}
	}
	return nil
}
