package vm

import (
	"fmt"
	"sync"

	"github.com/chazu/dora/pkg/ty"
)

// ---------------------------------------------------------------------------
// Registry: resolved program metadata shared by all compilations
// ---------------------------------------------------------------------------

// ClassID identifies a class definition.
type ClassID uint32

// FieldID is the index of a field within its class, inherited fields first.
type FieldID uint32

// FctID identifies a function, method or constructor.
type FctID uint32

// GlobalID identifies a global variable.
type GlobalID uint32

// EnumID identifies an enum definition.
type EnumID uint32

// NoFct marks the absence of a function (e.g. a class without constructor).
const NoFct FctID = ^FctID(0)

// Registry holds the class, field, function, global, enum and tuple tables.
// It is filled in before code generation starts; compilations only read it
// and may do so from many goroutines at once.
type Registry struct {
	mu sync.RWMutex

	classes []*Class
	fcts    []*Fct
	globals []*Global
	enums   []*Enum

	tuples     []*TupleLayout
	tupleIndex map[string]ty.TupleID
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		tupleIndex: make(map[string]ty.TupleID),
	}
}

// Fct describes a callable. Methods have an owning class; virtual methods
// are dispatched through their vtable index.
type Fct struct {
	ID          FctID
	Name        string
	Owner       *ClassID
	Params      []ty.Type
	Ret         ty.Type
	Virtual     bool
	VTableIndex uint32
}

// Global describes a global variable.
type Global struct {
	ID   GlobalID
	Name string
	Type ty.Type
}

// Enum describes an enum and its variant names.
type Enum struct {
	ID       EnumID
	Name     string
	Variants []string
}

// AddFct registers a free function and returns its id.
func (r *Registry) AddFct(name string, params []ty.Type, ret ty.Type) FctID {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := FctID(len(r.fcts))
	r.fcts = append(r.fcts, &Fct{ID: id, Name: name, Params: params, Ret: ret})
	return id
}

// AddMethod registers a method of cls. Virtual methods receive the next
// free vtable index of the class.
func (r *Registry) AddMethod(cls ClassID, name string, params []ty.Type, ret ty.Type, virtual bool) FctID {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := r.classLocked(cls)
	id := FctID(len(r.fcts))
	owner := cls
	f := &Fct{ID: id, Name: name, Owner: &owner, Params: params, Ret: ret, Virtual: virtual}
	if virtual {
		f.VTableIndex = uint32(len(c.VTable))
		c.VTable = append(c.VTable, id)
	}
	r.fcts = append(r.fcts, f)
	return id
}

// Fct returns the function with the given id.
func (r *Registry) Fct(id FctID) *Fct {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if int(id) >= len(r.fcts) {
		panic(fmt.Sprintf("unknown function %d", id))
	}
	return r.fcts[id]
}

// AddGlobal registers a global variable and returns its id.
func (r *Registry) AddGlobal(name string, t ty.Type) GlobalID {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := GlobalID(len(r.globals))
	r.globals = append(r.globals, &Global{ID: id, Name: name, Type: t})
	return id
}

// Global returns the global with the given id.
func (r *Registry) Global(id GlobalID) *Global {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if int(id) >= len(r.globals) {
		panic(fmt.Sprintf("unknown global %d", id))
	}
	return r.globals[id]
}

// AddEnum registers an enum and returns its id.
func (r *Registry) AddEnum(name string, variants ...string) EnumID {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := EnumID(len(r.enums))
	r.enums = append(r.enums, &Enum{ID: id, Name: name, Variants: variants})
	return id
}

// Enum returns the enum with the given id.
func (r *Registry) Enum(id EnumID) *Enum {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if int(id) >= len(r.enums) {
		panic(fmt.Sprintf("unknown enum %d", id))
	}
	return r.enums[id]
}

// FctByName returns the first function registered under name.
func (r *Registry) FctByName(name string) (FctID, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, f := range r.fcts {
		if f.Name == name {
			return f.ID, true
		}
	}
	return 0, false
}

// Counts returns the number of classes, functions, globals and tuple shapes.
func (r *Registry) Counts() (classes, fcts, globals, tuples int) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.classes), len(r.fcts), len(r.globals), len(r.tuples)
}
