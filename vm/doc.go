// Package vm holds the runtime tables the code generators compile
// against.
//
// This package contains:
//   - the registry of classes, functions, globals and enums
//   - object layout: field offsets, instance sizes and vtables
//   - tuple shapes with their size, alignment and reference offsets
//   - GC points, the reference slots of a frame at a safepoint
package vm
