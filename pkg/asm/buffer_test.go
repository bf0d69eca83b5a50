package asm

import (
	"strings"
	"testing"

	"github.com/chazu/dora/pkg/bytecode"
	"github.com/chazu/dora/pkg/ty"
)

func expectPanic(t *testing.T, name string, fn func()) {
	t.Helper()
	defer func() {
		if recover() == nil {
			t.Errorf("%s did not panic", name)
		}
	}()
	fn()
}

func TestArchByName(t *testing.T) {
	tests := []struct {
		name string
		want *Arch
	}{
		{"x64", X64},
		{"AMD64", X64},
		{"arm64", Arm64},
		{"aarch64", Arm64},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ArchByName(tt.name)
			if err != nil {
				t.Fatalf("ArchByName(%q) error = %v", tt.name, err)
			}
			if got != tt.want {
				t.Errorf("ArchByName(%q) = %s, want %s", tt.name, got.Name, tt.want.Name)
			}
		})
	}

	if _, err := ArchByName("mips"); err == nil || !strings.Contains(err.Error(), "arm64") {
		t.Errorf("ArchByName(mips) error = %v, want list of known names", err)
	}
}

func TestArchRegisters(t *testing.T) {
	for _, a := range []*Arch{X64, Arm64} {
		t.Run(a.Name, func(t *testing.T) {
			if a.PtrSize != 8 || a.StackAlign != 16 {
				t.Errorf("PtrSize, StackAlign = %d, %d, want 8, 16", a.PtrSize, a.StackAlign)
			}
			seen := map[Reg]bool{}
			for _, r := range a.Params {
				seen[r] = true
			}
			for _, r := range []Reg{a.Tmp1, a.Tmp2, a.FP, a.SP} {
				if seen[r] {
					t.Errorf("%s is both a parameter and a reserved register", a.RegName(r))
				}
			}
			if a.Tmp1 == a.Tmp2 {
				t.Errorf("Tmp1 == Tmp2 == %s", a.RegName(a.Tmp1))
			}
		})
	}

	if got := X64.RegName(RBP); got != "rbp" {
		t.Errorf("RegName(RBP) = %q, want rbp", got)
	}
	if got := Arm64.RegName(Arm64.SP); got != "sp" {
		t.Errorf("RegName(SP) = %q, want sp", got)
	}
	if got := Arm64.AnyRegName(FReg(3).Any()); got != "d3" {
		t.Errorf("AnyRegName(d3) = %q, want d3", got)
	}
}

func TestAnyRegNarrowing(t *testing.T) {
	if got := RDI.Any().Reg(); got != RDI {
		t.Errorf("Reg() = %d, want %d", got, RDI)
	}
	expectPanic(t, "FReg on a general-purpose register", func() { RDI.Any().FReg() })
	expectPanic(t, "Reg on a float register", func() { FReg(1).Any().Reg() })
}

func TestBufferLabelsAndFrame(t *testing.T) {
	b := NewBuffer(X64)
	b.Prologue()
	end := b.CreateLabel()
	b.LoadImm(ty.BoolType, RAX, 1)
	b.JumpIfZero(RAX, end)
	b.Compute(bytecode.OpAddInt, ty.IntType, RAX.Any(), RAX.Any(), R10.Any())
	b.BindLabel(end)
	b.Epilogue()
	b.Ret()
	b.PatchFrameSize(32)

	ops := b.Finish()
	if ops[0].Index != 32 || ops[5].Index != 32 {
		t.Errorf("frame sizes = %d, %d, want 32, 32", ops[0].Index, ops[5].Index)
	}
	if idx, ok := b.LabelOp(end); !ok || idx != 4 {
		t.Errorf("LabelOp = %d, %v, want 4, true", idx, ok)
	}

	want := strings.Join([]string{
		"0000  prologue frame 32",
		"0001  load_imm Bool, rax, 1",
		"0002  jump_if_zero rax, L0",
		"0003  compute AddInt, rax, rax, r10",
		"0004  bind L0",
		"0005  epilogue frame 32",
		"0006  ret",
		"",
	}, "\n")
	if got := b.Listing(); got != want {
		t.Errorf("Listing() =\n%s\nwant\n%s", got, want)
	}
}

func TestBufferLabelMisuse(t *testing.T) {
	expectPanic(t, "binding twice", func() {
		b := NewBuffer(Arm64)
		l := b.CreateLabel()
		b.BindLabel(l)
		b.BindLabel(l)
	})
	expectPanic(t, "finishing with an unbound label", func() {
		b := NewBuffer(Arm64)
		b.Jump(b.CreateLabel())
		b.Finish()
	})
	expectPanic(t, "jumping to an unknown label", func() {
		NewBuffer(Arm64).Jump(Label(3))
	})

	b := NewBuffer(Arm64)
	b.CreateLabel()
	b.Ret()
	if got := len(b.Finish()); got != 1 {
		t.Errorf("len(Finish()) = %d, want 1; unused labels are fine", got)
	}
}

func TestCopyElidesSelfMoves(t *testing.T) {
	b := NewBuffer(X64)
	b.Copy(ty.IntType, RAX.Any(), RAX.Any())
	b.Copy(ty.IntType, R10.Any(), RAX.Any())
	if b.Len() != 1 {
		t.Errorf("Len() = %d, want 1", b.Len())
	}
}

func TestFormatMemoryOperands(t *testing.T) {
	tests := []struct {
		arch *Arch
		mem  Mem
		want string
	}{
		{X64, Local(X64, -8), "[rbp-8]"},
		{X64, Offset(RAX, 0), "[rax]"},
		{X64, Indexed(RAX, R10, 4, 24), "[rax+r10*4+24]"},
		{Arm64, Local(Arm64, -16), "[x29-16]"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.arch.FormatMem(tt.mem); got != tt.want {
				t.Errorf("FormatMem() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFormatOps(t *testing.T) {
	tests := []struct {
		op   Op
		want string
	}{
		{Op{Kind: OpLoadFImm, Type: ty.DoubleType, Dst: FReg(0).Any(), FImm: 2.5}, "load_fimm Double, xmm0, 2.5"},
		{Op{Kind: OpLoadString, Dst: RAX.Any(), Str: "hi"}, `load_string rax, "hi"`},
		{Op{Kind: OpStore, Type: ty.IntType, Src: RAX.Any(), Mem: Local(X64, -4)}, "store Int, [rbp-4], rax"},
		{Op{Kind: OpVirtualCall, Fct: 3, Index: 1}, "call_virtual fct 3, vtable 1"},
		{Op{Kind: OpAlloc, Dst: RAX.Any(), Class: 2, Index: 24}, "alloc rax, class 2, size 24"},
		{Op{Kind: OpBoundsCheck, Src: RAX.Any(), Rhs: R10.Any()}, "bounds_check rax, r10"},
		{Op{Kind: OpStoreArg, Type: ty.PtrType, Index: 0, Src: R10.Any()}, "store_arg Ptr, arg 0, r10"},
		{Op{Kind: OpStoreGlobal, Type: ty.IntType, Global: 1, Src: RAX.Any()}, "store_global Int, global 1, rax"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := X64.Format(tt.op); got != tt.want {
				t.Errorf("Format() = %q, want %q", got, tt.want)
			}
		})
	}
}
