// Package compiler drives code generation: it turns resolved functions
// into bytecode and, optionally, baseline machine code, over a bounded
// pool of workers.
package compiler

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"time"

	"github.com/google/uuid"
	"github.com/tliron/commonlog"
	"golang.org/x/sync/errgroup"

	"github.com/chazu/dora/pkg/asm"
	"github.com/chazu/dora/pkg/ast"
	"github.com/chazu/dora/pkg/baseline"
	"github.com/chazu/dora/pkg/bytecode"
	"github.com/chazu/dora/pkg/cache"
	"github.com/chazu/dora/vm"
)

var log = commonlog.GetLogger("dora.compiler")

// Phase names the stage a compilation failed in.
type Phase string

const (
	PhaseBytecode Phase = "bytecode"
	PhaseVerify   Phase = "verify"
	PhaseBaseline Phase = "baseline"
)

// CompileError reports an internal-consistency fault raised while
// compiling one function.
type CompileError struct {
	Function string
	Phase    Phase
	Reason   string
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("%s: %s: %s", e.Function, e.Phase, e.Reason)
}

// Options configure a compilation.
type Options struct {
	Arch     *asm.Arch // defaults to asm.X64
	Baseline bool      // also generate baseline code
	Workers  int       // defaults to GOMAXPROCS
	Cache    *cache.Cache
	Session  string // assigned by CompileAll when empty
}

// Result is the outcome for one function.
type Result struct {
	Function string
	Session  string
	Bytecode *bytecode.Function
	Baseline *baseline.Code
	Digest   string // set when the bytecode was cached
	Elapsed  time.Duration
	Err      error
}

// CompileFunction compiles fn. Panics raised by the generators are
// returned as a *CompileError in Result.Err.
func CompileFunction(reg *vm.Registry, fn *ast.Function, opts Options) (res Result) {
	res = Result{Function: fn.Name, Session: opts.Session}
	start := time.Now()
	phase := PhaseBytecode

	defer func() {
		res.Elapsed = time.Since(start)
		if r := recover(); r != nil {
			res.Bytecode, res.Baseline = nil, nil
			res.Err = &CompileError{Function: fn.Name, Phase: phase, Reason: fmt.Sprint(r)}
			log.Errorf("%s", res.Err)
		}
	}()

	res.Bytecode = bytecode.Generate(reg, fn)

	phase = PhaseVerify
	bytecode.Build(res.Bytecode)

	if opts.Baseline {
		phase = PhaseBaseline
		arch := opts.Arch
		if arch == nil {
			arch = asm.X64
		}
		res.Baseline = baseline.Generate(reg, fn, arch)
	}

	if opts.Cache != nil {
		digest, err := opts.Cache.Put(res.Bytecode, metaOf(&res))
		if err != nil {
			res.Err = fmt.Errorf("%s: caching: %w", fn.Name, err)
			return res
		}
		res.Digest = digest
	}

	log.Debugf("compiled %s: %d bytes of bytecode, %d registers", fn.Name, len(res.Bytecode.Code), res.Bytecode.RegisterCount())
	return res
}

func metaOf(res *Result) cache.Meta {
	m := cache.Meta{
		Name:      res.Function,
		Session:   res.Session,
		Registers: res.Bytecode.RegisterCount(),
		CodeSize:  len(res.Bytecode.Code),
	}
	if res.Baseline != nil {
		m.FrameSize = res.Baseline.FrameSize
		m.GcPoints = len(res.Baseline.GcPoints)
		m.Arch = res.Baseline.Arch.Name
	}
	return m
}

// CompileAll compiles fns concurrently. Results are in input order. The
// returned error joins the failures of individual functions; functions
// not started before ctx is done fail with the context's error.
func CompileAll(ctx context.Context, reg *vm.Registry, fns []*ast.Function, opts Options) ([]Result, error) {
	if opts.Session == "" {
		opts.Session = uuid.NewString()
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	log.Infof("session %s: compiling %d functions on %d workers", opts.Session, len(fns), workers)
	start := time.Now()

	results := make([]Result, len(fns))
	var g errgroup.Group
	g.SetLimit(workers)

	scheduled := 0
	for i, fn := range fns {
		if ctx.Err() != nil {
			break
		}
		scheduled++
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				results[i] = Result{Function: fn.Name, Session: opts.Session, Err: err}
				return nil
			}
			results[i] = CompileFunction(reg, fn, opts)
			return nil
		})
	}
	g.Wait()

	var errs []error
	failed := 0
	for i := range results {
		r := &results[i]
		if i >= scheduled {
			*r = Result{Function: fns[i].Name, Session: opts.Session, Err: ctx.Err()}
		}
		if r.Err != nil {
			errs = append(errs, r.Err)
			failed++
		}
	}

	log.Infof("session %s: %d compiled, %d failed in %s", opts.Session, len(fns)-failed, failed, time.Since(start))
	return results, errors.Join(errs...)
}
