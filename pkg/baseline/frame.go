package baseline

import (
	"fmt"

	"github.com/chazu/dora/pkg/ty"
	"github.com/chazu/dora/vm"
)

// StackFrameAlignment is the alignment of the reserved frame size.
const StackFrameAlignment = 16

// Layouts answers the size and reference queries the frame needs for
// tuple-typed slots. *vm.Registry implements it.
type Layouts interface {
	ty.Layouts
	TupleReferences(id ty.TupleID) []int32
}

// ManagedVar identifies a stack slot of the frame under construction.
type ManagedVar int

// ManagedVarData describes a live slot.
type ManagedVarData struct {
	Type        ty.Type
	Offset      int32 // relative to the frame pointer, always negative
	Initialized bool
}

// ManagedStackSlot is the handle returned by the allocation operations.
type ManagedStackSlot struct {
	Var    ManagedVar
	Offset int32
}

// ManagedStackScope lists the slots released together at scope exit.
type ManagedStackScope struct {
	vars []ManagedVar
}

// ManagedStackFrame hands out frame-pointer-relative slots for locals and
// temporaries while a function is compiled, reusing released space and
// telling the collector which slots hold live references.
type ManagedStackFrame struct {
	layouts   Layouts
	vars      map[ManagedVar]*ManagedVarData
	scopes    []*ManagedStackScope
	nextVar   ManagedVar
	freeSlots *FreeSlots
	stacksize uint32
}

// NewManagedStackFrame creates an empty frame.
func NewManagedStackFrame(layouts Layouts) *ManagedStackFrame {
	return &ManagedStackFrame{
		layouts:   layouts,
		vars:      make(map[ManagedVar]*ManagedVarData),
		freeSlots: NewFreeSlots(),
	}
}

// IsEmpty reports whether no scope is open and no slot is live.
func (f *ManagedStackFrame) IsEmpty() bool {
	return len(f.scopes) == 0 && len(f.vars) == 0
}

// PushScope opens a scope.
func (f *ManagedStackFrame) PushScope() {
	f.scopes = append(f.scopes, &ManagedStackScope{})
}

// PopScope closes the innermost scope and frees its slots.
func (f *ManagedStackFrame) PopScope() {
	if len(f.scopes) == 0 {
		panic("no active scope")
	}
	scope := f.scopes[len(f.scopes)-1]
	f.scopes = f.scopes[:len(f.scopes)-1]
	for _, v := range scope.vars {
		f.Free(v)
	}
}

// AddScope allocates an initialized slot owned by the innermost scope.
func (f *ManagedStackFrame) AddScope(t ty.Type) ManagedStackSlot {
	return f.addScope(t, true)
}

// AddScopeUninitialized allocates a scope slot the collector ignores until
// MarkInitialized.
func (f *ManagedStackFrame) AddScopeUninitialized(t ty.Type) ManagedStackSlot {
	return f.addScope(t, false)
}

func (f *ManagedStackFrame) addScope(t ty.Type, initialized bool) ManagedStackSlot {
	if len(f.scopes) == 0 {
		panic("no active scope")
	}
	slot := f.alloc(t, initialized)
	scope := f.scopes[len(f.scopes)-1]
	scope.vars = append(scope.vars, slot.Var)
	return slot
}

// AddTemp allocates an initialized temporary; release it with FreeTemp.
func (f *ManagedStackFrame) AddTemp(t ty.Type) ManagedStackSlot {
	return f.alloc(t, true)
}

// AddTempUninitialized allocates a temporary the collector ignores until
// MarkInitialized.
func (f *ManagedStackFrame) AddTempUninitialized(t ty.Type) ManagedStackSlot {
	return f.alloc(t, false)
}

// FreeTemp releases a temporary.
func (f *ManagedStackFrame) FreeTemp(slot ManagedStackSlot) {
	f.Free(slot.Var)
}

func (f *ManagedStackFrame) sizeAlign(t ty.Type) (uint32, uint32) {
	if t.Kind == ty.Nil {
		return ty.PtrSize, ty.PtrSize
	}
	return t.Size(f.layouts), t.Align(f.layouts)
}

func (f *ManagedStackFrame) alloc(t ty.Type, initialized bool) ManagedStackSlot {
	v := f.nextVar
	f.nextVar++

	size, align := f.sizeAlign(t)
	var offset int32
	if start, ok := f.freeSlots.Alloc(size, align); ok {
		offset = -int32(start + size)
	} else {
		offset = f.extendStack(size, align)
	}

	f.vars[v] = &ManagedVarData{Type: t, Offset: offset, Initialized: initialized}
	return ManagedStackSlot{Var: v, Offset: offset}
}

func (f *ManagedStackFrame) extendStack(size, align uint32) int32 {
	f.stacksize = ty.AlignUp(f.stacksize, align) + size
	return -int32(f.stacksize)
}

// InitialStackSize reserves size bytes below the frame pointer before the
// first slot is handed out.
func (f *ManagedStackFrame) InitialStackSize(size uint32) {
	if f.stacksize != 0 {
		panic(fmt.Sprintf("initial stack size set after %d bytes were allocated", f.stacksize))
	}
	f.stacksize = size
}

// MarkInitialized makes a slot visible to the collector.
func (f *ManagedStackFrame) MarkInitialized(v ManagedVar) {
	f.Var(v).Initialized = true
}

// Var returns the data of a live slot.
func (f *ManagedStackFrame) Var(v ManagedVar) *ManagedVarData {
	data, ok := f.vars[v]
	if !ok {
		panic("var not found")
	}
	return data
}

// Free releases a slot so later allocations can reuse its bytes.
func (f *ManagedStackFrame) Free(v ManagedVar) {
	data, ok := f.vars[v]
	if !ok {
		panic("var not found")
	}
	delete(f.vars, v)

	size, _ := f.sizeAlign(data.Type)
	start := -(data.Offset + int32(size))
	f.freeSlots.Free(FreeSlot{Start: uint32(start), Size: size})
}

// GcPoint returns the offsets of every initialized reference, including
// references inside tuple slots.
func (f *ManagedStackFrame) GcPoint() vm.GcPoint {
	var offsets []int32
	for _, data := range f.vars {
		if !data.Initialized {
			continue
		}
		if data.Type.IsReference() {
			offsets = append(offsets, data.Offset)
		} else if id, ok := data.Type.TupleID(); ok {
			for _, ref := range f.layouts.TupleReferences(id) {
				offsets = append(offsets, data.Offset+ref)
			}
		}
	}
	return vm.GcPointFromOffsets(offsets)
}

// RawStackSize returns the bytes in use, before frame alignment.
func (f *ManagedStackFrame) RawStackSize() uint32 { return f.stacksize }

// StackSize returns the frame size to reserve.
func (f *ManagedStackFrame) StackSize() uint32 {
	return ty.AlignUp(f.stacksize, StackFrameAlignment)
}

// FreeSlots exposes the free list.
func (f *ManagedStackFrame) FreeSlots() []FreeSlot { return f.freeSlots.Slots() }
