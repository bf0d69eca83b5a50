package vm

import (
	"fmt"

	"github.com/chazu/dora/pkg/ty"
)

// ---------------------------------------------------------------------------
// Class: object layout
// ---------------------------------------------------------------------------

// Object layout constants. Every heap object starts with a vtable word
// followed by a GC header word; arrays store their length after the header.
const (
	ObjectHeaderSize  = 2 * ty.PtrSize
	ArrayLengthOffset = ObjectHeaderSize
	ArrayDataOffset   = ObjectHeaderSize + ty.PtrSize
)

// FieldDef is the input description of a field.
type FieldDef struct {
	Name string
	Type ty.Type
}

// Field is a laid-out field.
type Field struct {
	ID     FieldID
	Name   string
	Type   ty.Type
	Offset int32
}

// Class is a laid-out class definition.
type Class struct {
	ID           ClassID
	Name         string
	Parent       *Class
	Fields       []Field // inherited fields first
	InstanceSize uint32
	VTable       []FctID
}

// AddClass registers a class. Fields are placed after the parent's fields
// (or the object header), each at its natural alignment.
func (r *Registry) AddClass(name string, parent *ClassID, fields ...FieldDef) ClassID {
	r.mu.Lock()
	defer r.mu.Unlock()

	c := &Class{ID: ClassID(len(r.classes)), Name: name}
	offset := uint32(ObjectHeaderSize)
	if parent != nil {
		p := r.classLocked(*parent)
		c.Parent = p
		c.Fields = append(c.Fields, p.Fields...)
		c.VTable = append(c.VTable, p.VTable...)
		offset = p.InstanceSize
	}

	for _, fd := range fields {
		if fd.Type.IsTuple() {
			panic(fmt.Sprintf("class %s: tuple field %s is not supported", name, fd.Name))
		}
		offset = ty.AlignUp(offset, fd.Type.Align(nil))
		c.Fields = append(c.Fields, Field{
			ID:     FieldID(len(c.Fields)),
			Name:   fd.Name,
			Type:   fd.Type,
			Offset: int32(offset),
		})
		offset += fd.Type.Size(nil)
	}
	c.InstanceSize = ty.AlignUp(offset, ty.PtrSize)

	r.classes = append(r.classes, c)
	return c.ID
}

// Class returns the class with the given id.
func (r *Registry) Class(id ClassID) *Class {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.classLocked(id)
}

func (r *Registry) classLocked(id ClassID) *Class {
	if int(id) >= len(r.classes) {
		panic(fmt.Sprintf("unknown class %d", id))
	}
	return r.classes[id]
}

// Field returns a field of a class.
func (r *Registry) Field(cls ClassID, id FieldID) Field {
	c := r.Class(cls)
	if int(id) >= len(c.Fields) {
		panic(fmt.Sprintf("class %s has no field %d", c.Name, id))
	}
	return c.Fields[id]
}

// FieldByName looks up a field by name, searching inherited fields too.
func (c *Class) FieldByName(name string) (Field, bool) {
	for _, f := range c.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// IsSubclassOf returns true if c is other or inherits from it.
func (c *Class) IsSubclassOf(other *Class) bool {
	for current := c; current != nil; current = current.Parent {
		if current == other {
			return true
		}
	}
	return false
}
