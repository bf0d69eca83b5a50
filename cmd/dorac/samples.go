package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/docker/go-units"

	"github.com/chazu/dora/compiler"
	"github.com/chazu/dora/pkg/asm"
	"github.com/chazu/dora/pkg/bytecode"
	"github.com/chazu/dora/pkg/cache"
	"github.com/chazu/dora/pkg/samples"
)

// samples compiles the built-in programs, prints their listings and
// records the bytecode in the cache.
//
//	dorac samples [-arch x64] [-baseline] [-o dir] [-workers n]
func (e *env) samples(args []string) error {
	fs := flag.NewFlagSet("samples", flag.ContinueOnError)
	fs.SetOutput(e.stderr)
	archName := fs.String("arch", e.manifest.Compiler.Arch, "Target architecture: x64 or arm64")
	withBaseline := fs.Bool("baseline", e.manifest.Compiler.Baseline, "Also generate baseline code")
	outDir := fs.String("o", "", "Write each function's bytecode to <dir>/<name>.drbc")
	workers := fs.Int("workers", e.manifest.Compiler.Workers, "Number of parallel compile workers")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}

	arch, err := asm.ArchByName(*archName)
	if err != nil {
		return err
	}

	c, err := cache.Open(e.cachePath)
	if err != nil {
		return err
	}
	defer c.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	p := samples.Load()
	results, compileErr := compiler.CompileAll(ctx, p.Registry, p.Functions, compiler.Options{
		Arch:     arch,
		Baseline: *withBaseline,
		Workers:  *workers,
		Cache:    c,
	})

	var total int
	for _, r := range results {
		if r.Err != nil {
			fmt.Fprintf(e.stdout, "; %s failed: %v\n\n", r.Function, r.Err)
			continue
		}
		fmt.Fprintf(e.stdout, "; digest %s\n", r.Digest)
		fmt.Fprint(e.stdout, bytecode.Disassemble(r.Bytecode))
		if r.Baseline != nil {
			fmt.Fprint(e.stdout, r.Baseline.Listing())
		}
		fmt.Fprintln(e.stdout)
		total += len(r.Bytecode.Code)

		if *outDir != "" {
			if err := writeFunction(*outDir, r.Bytecode); err != nil {
				return err
			}
		}
	}

	session := ""
	if len(results) > 0 {
		session = results[0].Session
	}
	fmt.Fprintf(e.stdout, "; %d functions, %s of bytecode, session %s\n",
		len(results), units.HumanSize(float64(total)), session)
	return compileErr
}

func writeFunction(dir string, fn *bytecode.Function) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}
	path := filepath.Join(dir, fn.Name+".drbc")
	if err := os.WriteFile(path, bytecode.Marshal(fn), 0644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	log.Debugf("wrote %s", path)
	return nil
}

// dump disassembles an encoded function.
//
//	dorac dump <file.drbc>
func (e *env) dump(args []string) error {
	if len(args) != 1 {
		fmt.Fprintln(e.stderr, "Usage: dorac dump <file.drbc>")
		return errUsage
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}
	fn, err := bytecode.Unmarshal(data)
	if err != nil {
		return fmt.Errorf("%s: %w", args[0], err)
	}
	fmt.Fprint(e.stdout, bytecode.Disassemble(fn))
	return nil
}
