package vm

import (
	"fmt"
	"slices"
	"strings"
)

// GcPoint lists the frame-pointer-relative offsets of every stack slot that
// holds a live reference at a safepoint. Offsets are sorted ascending.
type GcPoint struct {
	Offsets []int32
}

// GcPointFromOffsets builds a GcPoint, sorting a copy of offsets.
func GcPointFromOffsets(offsets []int32) GcPoint {
	sorted := slices.Clone(offsets)
	slices.Sort(sorted)
	return GcPoint{Offsets: sorted}
}

// Len returns the number of reference slots.
func (g GcPoint) Len() int { return len(g.Offsets) }

// Contains reports whether offset is a reference slot.
func (g GcPoint) Contains(offset int32) bool {
	_, found := slices.BinarySearch(g.Offsets, offset)
	return found
}

// String formats the offsets like "{-16, -8}".
func (g GcPoint) String() string {
	parts := make([]string, len(g.Offsets))
	for i, off := range g.Offsets {
		parts[i] = fmt.Sprintf("%d", off)
	}
	return "{" + strings.Join(parts, ", ") + "}"
}
