package bytecode

import (
	"os"
	"strings"
	"testing"

	"golang.org/x/tools/txtar"

	"github.com/chazu/dora/pkg/ast"
	"github.com/chazu/dora/pkg/ty"
	"github.com/chazu/dora/vm"
)

func disasmFixtures() map[string]*ast.Function {
	sub := ast.NewFunction(0, "sub", ty.IntType)
	a, b := sub.Param("a", ty.IntType), sub.Param("b", ty.IntType)

	return map[string]*ast.Function{
		"sub":   sub.Body(ast.Ret(ast.Bin(ast.Sub, ast.Use(a), ast.Use(b)))),
		"seven": ast.NewFunction(1, "seven", ty.IntType).Body(ast.Ret(lit(7))),
		"spin": ast.NewFunction(2, "spin", ty.UnitType).Body(
			&ast.While{Cond: &ast.LitBool{Value: true}, Body: ast.Blk()},
		),
	}
}

func TestDisassembleGolden(t *testing.T) {
	data, err := os.ReadFile("testdata/disasm.txtar")
	if err != nil {
		t.Fatal(err)
	}
	archive := txtar.Parse(data)
	fixtures := disasmFixtures()
	reg := vm.NewRegistry()

	for _, f := range archive.Files {
		t.Run(f.Name, func(t *testing.T) {
			fn, ok := fixtures[f.Name]
			if !ok {
				t.Fatalf("no fixture named %q", f.Name)
			}
			got := Disassemble(Generate(reg, fn))
			if got != string(f.Data) {
				t.Errorf("Disassemble() =\n%s\nwant\n%s", got, f.Data)
			}
		})
	}
}

func TestDisassemblePositionsAndWide(t *testing.T) {
	w := NewWriter("wide")
	for i := 0; i < 300; i++ {
		w.AddRegister(ty.BoolType)
	}
	w.EmitRegs(OpConstTrue, 299)
	w.SetPosition(ast.Position{Line: 12, Column: 4})
	w.EmitRegs(OpAssert, 299)
	w.EmitRegs(OpRetVoid)

	output := Disassemble(w.Generate())
	if !strings.Contains(output, "Wide ConstTrue r299") {
		t.Error("Missing wide instruction")
	}
	if !strings.Contains(output, "; 12:4") {
		t.Error("Missing source position")
	}
}

func TestDisassembleConstJump(t *testing.T) {
	w := NewWriter("far")
	r := w.AddRegister(ty.BoolType)
	end := w.NewLabel()
	w.EmitJumpIfFalse(r, end)
	for i := 0; i < 130; i++ {
		w.EmitRegs(OpMovBool, r, r)
	}
	w.BindLabel(end)

	output := Disassemble(w.Generate())
	// 3 bytes for the jump, 130 moves of 3 bytes each
	if !strings.Contains(output, "JumpIfFalseConst r0, -> 0189") {
		t.Errorf("Missing const jump in:\n%s", output)
	}
}
