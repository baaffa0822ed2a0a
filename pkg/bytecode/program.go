package bytecode

import (
	"fmt"
	"math"
)

// Program is an ordered, immutable sequence of instructions indexed by pc.
type Program []Instruction

// Encode builds a program from decoded ops, in order.
func Encode(ops ...Op) Program {
	prog := make(Program, len(ops))
	for i, op := range ops {
		prog[i] = op.Encode()
	}
	return prog
}

// Bytes returns the program's flat encoding, InstructionWidth bytes per
// instruction.
func (p Program) Bytes() []byte {
	buf := make([]byte, 0, len(p)*InstructionWidth)
	for _, in := range p {
		buf = append(buf, in[:]...)
	}
	return buf
}

// ProgramFromBytes splits a flat encoding back into instructions. It does
// not decode them; use Verify for that.
func ProgramFromBytes(code []byte) (Program, error) {
	if len(code)%InstructionWidth != 0 {
		return nil, fmt.Errorf("bytecode: code length %d is not a multiple of %d", len(code), InstructionWidth)
	}
	prog := make(Program, len(code)/InstructionWidth)
	for i := range prog {
		copy(prog[i][:], code[i*InstructionWidth:])
	}
	return prog, nil
}

// Label names a jump target whose pc may not be known yet.
type Label int

type fixup struct {
	pc    int
	label Label
}

// Builder assembles a program, patching forward jumps once their labels are
// marked.
type Builder struct {
	code   Program
	labels []int // label -> pc, -1 until marked
	fixups []fixup
}

// NewBuilder creates an empty builder.
func NewBuilder() *Builder {
	return &Builder{code: make(Program, 0, 16)}
}

// Emit appends an op and returns its pc.
func (b *Builder) Emit(op Op) int {
	pc := len(b.code)
	b.code = append(b.code, op.Encode())
	return pc
}

// CurrentPC returns the pc the next emitted instruction will have.
func (b *Builder) CurrentPC() int {
	return len(b.code)
}

// RegVarDecl emits a slot table declaration.
func (b *Builder) RegVarDecl(min, max uint8) int { return b.Emit(RegVarDecl{Min: min, Max: max}) }

// VarDecl emits a slot declaration.
func (b *Builder) VarDecl(slot uint8) int { return b.Emit(VarDecl{Slot: slot}) }

// AssignString emits dest = string literal at off.
func (b *Builder) AssignString(dest, off uint8) int {
	return b.Emit(Assignment{Dest: dest, Kind: OperandString, Value: off})
}

// AssignVar emits dest = slot src.
func (b *Builder) AssignVar(dest, src uint8) int {
	return b.Emit(Assignment{Dest: dest, Kind: OperandVariable, Value: src})
}

// AssignSmallInt emits dest = n.
func (b *Builder) AssignSmallInt(dest, n uint8) int {
	return b.Emit(Assignment{Dest: dest, Kind: OperandSmallInt, Value: n})
}

// AssignNumber emits dest = numeric literal at off.
func (b *Builder) AssignNumber(dest, off uint8) int {
	return b.Emit(Assignment{Dest: dest, Kind: OperandNumber, Value: off})
}

// ExitVal emits the terminating instruction.
func (b *Builder) ExitVal(slot uint8) int { return b.Emit(ExitVal{Slot: slot}) }

// NewLabel allocates an unmarked label.
func (b *Builder) NewLabel() Label {
	b.labels = append(b.labels, -1)
	return Label(len(b.labels) - 1)
}

// Mark binds l to the current pc.
func (b *Builder) Mark(l Label) {
	if b.labels[l] >= 0 {
		panic(fmt.Sprintf("bytecode: label %d marked twice", l))
	}
	b.labels[l] = len(b.code)
}

// JumpTrue emits a jump to l taken when slot cond is truthy.
func (b *Builder) JumpTrue(cond uint8, l Label) int {
	return b.emitFixup(IsTrueJump{Cond: cond}, l)
}

// JumpFalse emits a jump to l taken when slot cond is falsy.
func (b *Builder) JumpFalse(cond uint8, l Label) int {
	return b.emitFixup(IsFalseJump{Cond: cond}, l)
}

// Jump emits an unconditional relative jump to l, choosing JumpDown or
// JumpUp once the label's pc is known.
func (b *Builder) Jump(l Label) int {
	return b.emitFixup(JumpDown{}, l)
}

func (b *Builder) emitFixup(op Op, l Label) int {
	pc := b.Emit(op)
	b.fixups = append(b.fixups, fixup{pc: pc, label: l})
	return pc
}

// Program patches all jumps and returns the finished program. Every label
// used by a jump must have been marked.
func (b *Builder) Program() (Program, error) {
	prog := make(Program, len(b.code))
	copy(prog, b.code)

	for _, f := range b.fixups {
		target := b.labels[f.label]
		if target < 0 {
			return nil, fmt.Errorf("bytecode: jump at pc %d uses unmarked label %d", f.pc, f.label)
		}
		if target > math.MaxUint16 {
			return nil, fmt.Errorf("bytecode: label %d at pc %d is out of jump range", f.label, target)
		}

		switch op := prog[f.pc].MustDecode().(type) {
		case IsTrueJump:
			op.Target = uint16(target)
			prog[f.pc] = op.Encode()
		case IsFalseJump:
			op.Target = uint16(target)
			prog[f.pc] = op.Encode()
		case JumpDown:
			if target >= f.pc {
				prog[f.pc] = JumpDown{Offset: uint16(target - f.pc)}.Encode()
			} else {
				prog[f.pc] = JumpUp{Offset: uint16(f.pc - target)}.Encode()
			}
		}
	}
	return prog, nil
}

// MustProgram is like Program but panics on error.
func (b *Builder) MustProgram() Program {
	prog, err := b.Program()
	if err != nil {
		panic(err)
	}
	return prog
}
