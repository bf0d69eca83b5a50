// Package bytecode is the register-based instruction set of the runtime
// and everything that produces or consumes it.
//
// # Architecture Overview
//
//   - Opcodes: a closed set of typed instructions. Every opcode that
//     produces a value carries its operand width in its name (AddInt,
//     AddDouble, ...), so the interpreter never dispatches on value type.
//
//   - Writer: encodes instructions into a Function. Operands are single
//     bytes unless one exceeds 255, in which case the instruction gets a
//     Wide prefix and four-byte little-endian operands. Forward jumps are
//     patched when their label is bound; a narrow jump that cannot reach
//     its target switches to the constant-pool variant.
//
//   - Reader and Build: decode a Function back into Inst values. Build
//     resolves byte-relative jump distances into instruction indices in
//     two passes: backward jumps immediately, forward jumps after the
//     whole stream has been seen.
//
//   - Generate: lowers a type-checked ast.Function into a Function.
//
//   - Marshal and Unmarshal: the portable "DRBC" container used by the
//     compile cache.
//
// Internal-consistency violations (unknown opcodes, truncated streams,
// jumps to offsets that were never decoded, pool entries of the wrong
// kind) panic. The compile driver recovers them per function.
package bytecode
