package baseline

import (
	"fmt"
	"sort"
	"strings"

	"github.com/chazu/dora/pkg/asm"
	"github.com/chazu/dora/pkg/ast"
	"github.com/chazu/dora/vm"
)

// GcPointEntry is the set of live reference slots at a call or allocation.
type GcPointEntry struct {
	Op    int
	Point vm.GcPoint
}

// PositionEntry maps a trapping op to its source position.
type PositionEntry struct {
	Op  int
	Pos ast.Position
}

// Code is the baseline output for one function.
type Code struct {
	Name      string
	Arch      *asm.Arch
	Ops       []asm.Op
	FrameSize uint32
	GcPoints  []GcPointEntry // ascending by Op
	Positions []PositionEntry
}

// GcPointAt returns the GC point recorded for op.
func (c *Code) GcPointAt(op int) (vm.GcPoint, bool) {
	i := sort.Search(len(c.GcPoints), func(i int) bool { return c.GcPoints[i].Op >= op })
	if i < len(c.GcPoints) && c.GcPoints[i].Op == op {
		return c.GcPoints[i].Point, true
	}
	return vm.GcPoint{}, false
}

// PositionAt returns the source position recorded for op.
func (c *Code) PositionAt(op int) (ast.Position, bool) {
	i := sort.Search(len(c.Positions), func(i int) bool { return c.Positions[i].Op >= op })
	if i < len(c.Positions) && c.Positions[i].Op == op {
		return c.Positions[i].Pos, true
	}
	return ast.Position{}, false
}

// Listing prints the ops with their GC points and positions.
func (c *Code) Listing() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "; === %s (%s) ===\n", c.Name, c.Arch.Name)
	fmt.Fprintf(&sb, "; Frame: %d bytes\n", c.FrameSize)

	for i, op := range c.Ops {
		text := c.Arch.Format(op)
		var notes []string
		if p, ok := c.PositionAt(i); ok {
			notes = append(notes, p.String())
		}
		if g, ok := c.GcPointAt(i); ok {
			notes = append(notes, "gc "+g.String())
		}
		if len(notes) == 0 {
			fmt.Fprintf(&sb, "%04d  %s\n", i, text)
		} else {
			fmt.Fprintf(&sb, "%04d  %-40s ; %s\n", i, text, strings.Join(notes, " "))
		}
	}
	return sb.String()
}
