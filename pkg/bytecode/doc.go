// Package bytecode implements a small slot-based virtual machine: the
// instruction encoding, a program builder, the interpreter, a static
// verifier, a disassembler and a CBOR image format for storing programs.
//
// # Instructions
//
// Every instruction is four bytes wide: an opcode tag followed by three
// operand bytes. Jump targets and offsets are 16-bit and occupy the last two
// bytes, big-endian. Decoding yields one of the Op variants, which the VM
// dispatches on with a type switch.
//
//   - RegVarDecl min, max sizes the slot table to max+1 slots and declares
//     slots min..max as registers. It must be the first instruction.
//   - VarDecl slot declares a slot and sets it to undefined.
//   - Assignment dest, kind, value stores a string literal, another slot, an
//     inline small integer or a numeric literal into dest.
//   - IsTrueJump and IsFalseJump branch to an absolute pc on the truthiness
//     of a slot.
//   - JumpDown and JumpUp move pc by a relative offset.
//   - ExitVal slot ends the run with the truthiness of a slot.
//
// # Values
//
// Slots hold tagged values: undefined, boolean, small integer, number or a
// reference to a string literal. Literals live in a pool.Pool whose offsets
// are shared by strings and numbers.
//
// # Faults
//
// Structural violations (allocation failure, a malformed program, access to
// an undeclared slot, a jump outside the program, an operand of the wrong
// kind) stop the run. They are returned as *Fault values; the VM never
// continues past one and never clamps a jump target into range.
package bytecode
