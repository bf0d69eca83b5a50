package main

import (
	"errors"
	"flag"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/docker/go-units"

	"github.com/chazu/dora/pkg/bytecode"
	"github.com/chazu/dora/pkg/cache"
)

// cache handles the `dorac cache` subcommands.
//
//	dorac cache ls
//	dorac cache show <digest|name>
//	dorac cache prune [-max-size 64MB]
func (e *env) cache(args []string) error {
	if len(args) == 0 {
		fmt.Fprintln(e.stderr, "Usage: dorac cache [ls|show|prune] ...")
		fmt.Fprintln(e.stderr, "  ls                       List cached functions, oldest first")
		fmt.Fprintln(e.stderr, "  show <digest|name>       Disassemble a cached function")
		fmt.Fprintln(e.stderr, "  prune [-max-size 64MB]   Drop the oldest entries until the cache fits")
		return errUsage
	}

	c, err := cache.Open(e.cachePath)
	if err != nil {
		return err
	}
	defer c.Close()

	switch args[0] {
	case "ls":
		return e.cacheList(c)
	case "show":
		if len(args) != 2 {
			fmt.Fprintln(e.stderr, "Usage: dorac cache show <digest|name>")
			return errUsage
		}
		return e.cacheShow(c, args[1])
	case "prune":
		return e.cachePrune(c, args[1:])
	default:
		fmt.Fprintf(e.stderr, "Unknown cache subcommand: %s\n", args[0])
		return errUsage
	}
}

func (e *env) cacheList(c *cache.Cache) error {
	entries, err := c.List()
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(e.stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "DIGEST\tNAME\tSIZE\tCREATED\tSESSION")
	var total int64
	for _, en := range entries {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s ago\t%s\n",
			en.Digest[:12], en.Name, units.HumanSize(float64(en.Size)),
			units.HumanDuration(time.Since(en.Created)), en.Session)
		total += en.Size
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(e.stdout, "%d entries, %s\n", len(entries), units.BytesSize(float64(total)))
	return nil
}

func (e *env) cacheShow(c *cache.Cache, key string) error {
	fn, meta, err := c.Get(key)
	if errors.Is(err, cache.ErrNotFound) {
		digest, lerr := c.Lookup(key)
		if lerr != nil {
			return fmt.Errorf("%s: %w", key, lerr)
		}
		key = digest
		fn, meta, err = c.Get(key)
	}
	if err != nil {
		return err
	}

	fmt.Fprintf(e.stdout, "; digest %s\n", key)
	fmt.Fprintf(e.stdout, "; session %s, %d registers, %d bytes of code\n", meta.Session, meta.Registers, meta.CodeSize)
	if meta.Arch != "" {
		fmt.Fprintf(e.stdout, "; baseline %s: frame %d bytes, %d gc points\n", meta.Arch, meta.FrameSize, meta.GcPoints)
	}
	fmt.Fprint(e.stdout, bytecode.Disassemble(fn))
	return nil
}

func (e *env) cachePrune(c *cache.Cache, args []string) error {
	fs := flag.NewFlagSet("prune", flag.ContinueOnError)
	fs.SetOutput(e.stderr)
	maxSize := fs.String("max-size", e.manifest.Cache.MaxSize, "Size limit, e.g. 64MB or 1GiB")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	limit, err := units.RAMInBytes(*maxSize)
	if err != nil {
		return fmt.Errorf("invalid -max-size %q: %w", *maxSize, err)
	}

	n, err := c.Prune(limit)
	if err != nil {
		return err
	}
	left, err := c.TotalSize()
	if err != nil {
		return err
	}
	fmt.Fprintf(e.stdout, "removed %d entries, %s left (limit %s)\n",
		n, units.BytesSize(float64(left)), units.BytesSize(float64(limit)))
	return nil
}
