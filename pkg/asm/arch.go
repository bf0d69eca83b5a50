// Package asm is the abstract macro-assembler the baseline code generator
// targets. It records architecture-neutral operations on concrete machine
// registers and frame-pointer-relative stack slots; turning them into ISA
// bytes is left to a backend.
package asm

import (
	"fmt"
	"sort"
	"strings"
)

// Reg is a general-purpose machine register.
type Reg uint8

// FReg is a floating point machine register.
type FReg uint8

// AnyReg is either a general-purpose or a floating point register.
type AnyReg struct {
	Float bool
	N     uint8
}

// Any widens r to an AnyReg.
func (r Reg) Any() AnyReg { return AnyReg{N: uint8(r)} }

// Any widens f to an AnyReg.
func (f FReg) Any() AnyReg { return AnyReg{Float: true, N: uint8(f)} }

// Reg narrows a to a general-purpose register.
func (a AnyReg) Reg() Reg {
	if a.Float {
		panic(fmt.Sprintf("f%d is not a general-purpose register", a.N))
	}
	return Reg(a.N)
}

// FReg narrows a to a floating point register.
func (a AnyReg) FReg() FReg {
	if !a.Float {
		panic(fmt.Sprintf("r%d is not a floating point register", a.N))
	}
	return FReg(a.N)
}

// Arch describes the calling convention and register file of a target.
type Arch struct {
	Name       string
	PtrSize    uint32
	StackAlign uint32

	Params  []Reg  // integer and pointer arguments, in order
	FParams []FReg // floating point arguments, in order
	Result  Reg
	FResult FReg
	Tmp1    Reg
	Tmp2    Reg
	FTmp1   FReg
	FP      Reg
	SP      Reg

	regNames  []string
	fregNames []string
}

// RegName returns the assembler name of r.
func (a *Arch) RegName(r Reg) string {
	if int(r) < len(a.regNames) {
		return a.regNames[r]
	}
	return fmt.Sprintf("r%d", r)
}

// FRegName returns the assembler name of f.
func (a *Arch) FRegName(f FReg) string {
	if int(f) < len(a.fregNames) {
		return a.fregNames[f]
	}
	return fmt.Sprintf("f%d", f)
}

// AnyRegName returns the assembler name of r.
func (a *Arch) AnyRegName(r AnyReg) string {
	if r.Float {
		return a.FRegName(FReg(r.N))
	}
	return a.RegName(Reg(r.N))
}

// x86-64 register numbers.
const (
	RAX Reg = iota
	RCX
	RDX
	RBX
	RSP
	RBP
	RSI
	RDI
	R8
	R9
	R10
	R11
	R12
	R13
	R14
	R15
)

// X64 follows the System V AMD64 calling convention.
var X64 = &Arch{
	Name:       "x64",
	PtrSize:    8,
	StackAlign: 16,
	Params:     []Reg{RDI, RSI, RDX, RCX, R8, R9},
	FParams:    []FReg{0, 1, 2, 3, 4, 5, 6, 7},
	Result:     RAX,
	FResult:    0,
	Tmp1:       R10,
	Tmp2:       R11,
	FTmp1:      8,
	FP:         RBP,
	SP:         RSP,
	regNames: []string{
		"rax", "rcx", "rdx", "rbx", "rsp", "rbp", "rsi", "rdi",
		"r8", "r9", "r10", "r11", "r12", "r13", "r14", "r15",
	},
	fregNames: numbered("xmm", 16),
}

// Arm64 follows the AAPCS64 calling convention.
var Arm64 = &Arch{
	Name:       "arm64",
	PtrSize:    8,
	StackAlign: 16,
	Params:     []Reg{0, 1, 2, 3, 4, 5, 6, 7},
	FParams:    []FReg{0, 1, 2, 3, 4, 5, 6, 7},
	Result:     0,
	FResult:    0,
	Tmp1:       10,
	Tmp2:       11,
	FTmp1:      16,
	FP:         29,
	SP:         31,
	regNames:   append(numbered("x", 31), "sp"),
	fregNames:  numbered("d", 32),
}

func numbered(prefix string, n int) []string {
	names := make([]string, n)
	for i := range names {
		names[i] = fmt.Sprintf("%s%d", prefix, i)
	}
	return names
}

var archs = map[string]*Arch{
	"x64":     X64,
	"amd64":   X64,
	"arm64":   Arm64,
	"aarch64": Arm64,
}

// ArchByName returns the architecture with the given name or alias.
func ArchByName(name string) (*Arch, error) {
	if a, ok := archs[strings.ToLower(name)]; ok {
		return a, nil
	}
	names := make([]string, 0, len(archs))
	for n := range archs {
		names = append(names, n)
	}
	sort.Strings(names)
	return nil, fmt.Errorf("unknown architecture %q (known: %s)", name, strings.Join(names, ", "))
}
