// dorac compiles the built-in sample programs, inspects encoded bytecode
// and manages the compiled-function cache.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"

	"github.com/chazu/dora/manifest"
)

var log = commonlog.GetLogger("dora.cli")

// env carries what every subcommand needs.
type env struct {
	manifest  *manifest.Manifest
	cachePath string
	stdout    io.Writer
	stderr    io.Writer
}

var errUsage = errors.New("usage")

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("dorac", flag.ContinueOnError)
	fs.SetOutput(stderr)
	verbosity := fs.Int("v", -1, "Log verbosity (overrides [log] verbosity)")
	cachePath := fs.String("cache", "", "Cache database path (overrides [cache] path)")
	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: dorac [options] <command> [arguments]\n\n")
		fmt.Fprintf(stderr, "Commands:\n")
		fmt.Fprintf(stderr, "  samples [-arch x64] [-baseline] [-o dir]  Compile the built-in samples\n")
		fmt.Fprintf(stderr, "  dump <file.drbc>                          Disassemble an encoded function\n")
		fmt.Fprintf(stderr, "  cache ls                                  List cached functions\n")
		fmt.Fprintf(stderr, "  cache show <digest|name>                  Disassemble a cached function\n")
		fmt.Fprintf(stderr, "  cache prune [-max-size 64MB]              Drop the oldest entries\n")
		fmt.Fprintf(stderr, "\nOptions:\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return 2
	}

	m, err := loadManifest()
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	level := m.Log.Verbosity
	if *verbosity >= 0 {
		level = *verbosity
	}
	commonlog.Configure(level, nil)

	e := &env{manifest: m, cachePath: m.CachePath(), stdout: stdout, stderr: stderr}
	if *cachePath != "" {
		e.cachePath = *cachePath
	}

	cmd, rest := fs.Arg(0), fs.Args()[1:]
	switch cmd {
	case "samples":
		err = e.samples(rest)
	case "dump":
		err = e.dump(rest)
	case "cache":
		err = e.cache(rest)
	default:
		fmt.Fprintf(stderr, "Unknown command: %s\n", cmd)
		fs.Usage()
		return 2
	}

	switch {
	case errors.Is(err, errUsage):
		return 2
	case err != nil:
		log.Errorf("%s: %s", cmd, err)
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

// loadManifest finds dora.toml above the working directory, falling back
// to the defaults.
func loadManifest() (*manifest.Manifest, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, err
	}
	m, err := manifest.FindAndLoad(cwd)
	if err != nil {
		return nil, err
	}
	if m == nil {
		m = manifest.Default()
	}
	return m, nil
}
