package baseline

import (
	"fmt"

	"github.com/google/btree"

	"github.com/chazu/dora/pkg/ty"
)

// FreeSlot is a free byte range [Start, Start+Size) of the stack frame,
// measured downwards from the frame pointer.
type FreeSlot struct {
	Start uint32
	Size  uint32
}

// End returns the first byte after the slot.
func (s FreeSlot) End() uint32 { return s.Start + s.Size }

func (s FreeSlot) String() string { return fmt.Sprintf("[%d,%d)", s.Start, s.End()) }

// FreeSlots keeps the released ranges of a frame ordered by start.
// Adjacent ranges are always merged, so no two slots touch.
type FreeSlots struct {
	tree *btree.BTreeG[FreeSlot]
}

// NewFreeSlots creates an empty free list.
func NewFreeSlots() *FreeSlots {
	return &FreeSlots{
		tree: btree.NewG[FreeSlot](8, func(a, b FreeSlot) bool {
			return a.Start < b.Start
		}),
	}
}

// Len returns the number of free ranges.
func (f *FreeSlots) Len() int { return f.tree.Len() }

// Slots returns the free ranges in ascending order.
func (f *FreeSlots) Slots() []FreeSlot {
	slots := make([]FreeSlot, 0, f.tree.Len())
	f.tree.Ascend(func(s FreeSlot) bool {
		slots = append(slots, s)
		return true
	})
	return slots
}

// Free returns a range to the list, merging it with its neighbours.
func (f *FreeSlots) Free(slot FreeSlot) {
	if slot.Size == 0 {
		return
	}

	var prev, next FreeSlot
	var hasPrev, hasNext bool
	f.tree.DescendLessOrEqual(slot, func(s FreeSlot) bool {
		prev, hasPrev = s, true
		return false
	})
	f.tree.AscendGreaterOrEqual(slot, func(s FreeSlot) bool {
		next, hasNext = s, true
		return false
	})

	if hasPrev && prev.End() > slot.Start || hasNext && slot.End() > next.Start {
		panic(fmt.Sprintf("freed slot %s overlaps a free slot", slot))
	}

	merged := slot
	if hasPrev && prev.End() == slot.Start {
		f.tree.Delete(prev)
		merged = FreeSlot{Start: prev.Start, Size: merged.End() - prev.Start}
	}
	if hasNext && next.Start == slot.End() {
		f.tree.Delete(next)
		merged.Size = next.End() - merged.Start
	}
	f.tree.ReplaceOrInsert(merged)
}

// Alloc reserves size bytes at the given alignment from the best fitting
// range and returns its start. A range of exactly the requested size is
// taken at once when its start is aligned; otherwise the range leaving the
// smallest gaps wins, the lowest one on ties.
func (f *FreeSlots) Alloc(size, align uint32) (uint32, bool) {
	var best FreeSlot
	bestGap := ^uint32(0)
	found := false

	f.tree.Ascend(func(s FreeSlot) bool {
		switch {
		case s.Size < size:
			return true
		case s.Size == size:
			if ty.IsAligned(s.Start, align) {
				best, bestGap, found = s, 0, true
				return false
			}
			return true
		}

		start := ty.AlignUp(s.Start, align)
		if start+size > s.End() {
			return true
		}
		gap := (start - s.Start) + (s.End() - (start + size))
		if gap < bestGap {
			best, bestGap, found = s, gap, true
		}
		return true
	})

	if !found {
		return 0, false
	}

	f.tree.Delete(best)
	start := ty.AlignUp(best.Start, align)
	if left := start - best.Start; left > 0 {
		f.tree.ReplaceOrInsert(FreeSlot{Start: best.Start, Size: left})
	}
	if right := best.End() - (start + size); right > 0 {
		f.tree.ReplaceOrInsert(FreeSlot{Start: start + size, Size: right})
	}
	return start, true
}
