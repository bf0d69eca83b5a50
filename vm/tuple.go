package vm

import (
	"fmt"
	"strings"

	"github.com/chazu/dora/pkg/ty"
)

// TupleLayout is the memory layout of one tuple shape.
type TupleLayout struct {
	ID         ty.TupleID
	Elems      []ty.Type
	Offsets    []int32
	Size       uint32
	Align      uint32
	References []int32 // offsets of reference fields, nested tuples flattened
}

// EnsureTuple interns the tuple shape with the given element types and
// returns its id. The same element list always yields the same id.
func (r *Registry) EnsureTuple(elems ...ty.Type) ty.TupleID {
	key := tupleKey(elems)

	r.mu.RLock()
	id, ok := r.tupleIndex[key]
	r.mu.RUnlock()
	if ok {
		return id
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if id, ok := r.tupleIndex[key]; ok {
		return id
	}

	layout := &TupleLayout{
		ID:    ty.TupleID(len(r.tuples)),
		Elems: append([]ty.Type(nil), elems...),
		Align: 1,
	}
	lockedLayouts := registryLayouts{r}
	var offset uint32
	for _, e := range elems {
		align := e.Align(lockedLayouts)
		offset = ty.AlignUp(offset, align)
		layout.Offsets = append(layout.Offsets, int32(offset))

		if e.IsReference() {
			layout.References = append(layout.References, int32(offset))
		} else if nested, ok := e.TupleID(); ok {
			for _, ref := range r.tupleLocked(nested).References {
				layout.References = append(layout.References, int32(offset)+ref)
			}
		}

		offset += e.Size(lockedLayouts)
		if align > layout.Align {
			layout.Align = align
		}
	}
	layout.Size = ty.AlignUp(offset, layout.Align)

	r.tuples = append(r.tuples, layout)
	r.tupleIndex[key] = layout.ID
	return layout.ID
}

// Tuple returns the layout of a tuple shape.
func (r *Registry) Tuple(id ty.TupleID) *TupleLayout {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.tupleLocked(id)
}

func (r *Registry) tupleLocked(id ty.TupleID) *TupleLayout {
	if int(id) >= len(r.tuples) {
		panic(fmt.Sprintf("unknown tuple %d", id))
	}
	return r.tuples[id]
}

// TupleSize implements ty.Layouts.
func (r *Registry) TupleSize(id ty.TupleID) uint32 { return r.Tuple(id).Size }

// TupleAlign implements ty.Layouts.
func (r *Registry) TupleAlign(id ty.TupleID) uint32 { return r.Tuple(id).Align }

// TupleReferences returns the offsets of the reference fields of a tuple.
func (r *Registry) TupleReferences(id ty.TupleID) []int32 { return r.Tuple(id).References }

// registryLayouts answers layout queries while the registry lock is held.
type registryLayouts struct{ r *Registry }

func (l registryLayouts) TupleSize(id ty.TupleID) uint32  { return l.r.tupleLocked(id).Size }
func (l registryLayouts) TupleAlign(id ty.TupleID) uint32 { return l.r.tupleLocked(id).Align }

func tupleKey(elems []ty.Type) string {
	var sb strings.Builder
	for _, e := range elems {
		fmt.Fprintf(&sb, "%d:%d:%d;", e.Kind, e.ID, e.Elem)
	}
	return sb.String()
}
