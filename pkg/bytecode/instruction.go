package bytecode

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// InstructionWidth is the encoded size of every instruction in bytes.
const InstructionWidth = 4

var (
	// ErrUnknownOpcode is returned when decoding an undefined tag byte.
	ErrUnknownOpcode = errors.New("bytecode: unknown opcode")

	// ErrOperandKind is returned when an assignment carries an unrecognized
	// operand kind.
	ErrOperandKind = errors.New("bytecode: unknown operand kind")
)

// Instruction is one encoded instruction: [opcode, a, b, c].
type Instruction [InstructionWidth]byte

// Opcode returns the instruction's tag byte.
func (in Instruction) Opcode() Opcode { return Opcode(in[0]) }

func (in Instruction) wide() uint16 { return binary.BigEndian.Uint16(in[2:]) }

func wideInstr(op Opcode, a uint8, bc uint16) Instruction {
	in := Instruction{byte(op), a}
	binary.BigEndian.PutUint16(in[2:], bc)
	return in
}

// Op is a decoded instruction. The concrete types are RegVarDecl, VarDecl,
// Assignment, IsTrueJump, IsFalseJump, JumpDown, JumpUp, ExitVal and Nop.
type Op interface {
	Opcode() Opcode
	Encode() Instruction
	String() string
	isOp()
}

// RegVarDecl sizes the slot table. Slots Min..Max are registers, declared
// implicitly; the table holds Max+1 slots.
type RegVarDecl struct{ Min, Max uint8 }

// VarDecl declares Slot, setting it to Undefined.
type VarDecl struct{ Slot uint8 }

// Assignment stores the operand Value, interpreted per Kind, into Dest.
type Assignment struct {
	Dest  uint8
	Kind  OperandKind
	Value uint8
}

// IsTrueJump sets pc to Target when slot Cond is truthy.
type IsTrueJump struct {
	Cond   uint8
	Target uint16
}

// IsFalseJump sets pc to Target when slot Cond is falsy.
type IsFalseJump struct {
	Cond   uint8
	Target uint16
}

// JumpDown moves pc forward by Offset instructions.
type JumpDown struct{ Offset uint16 }

// JumpUp moves pc backward by Offset instructions.
type JumpUp struct{ Offset uint16 }

// ExitVal ends the run with the boolean coercion of Slot.
type ExitVal struct{ Slot uint8 }

// Nop does nothing.
type Nop struct{}

func (RegVarDecl) Opcode() Opcode  { return OpRegVarDecl }
func (VarDecl) Opcode() Opcode     { return OpVarDecl }
func (Assignment) Opcode() Opcode  { return OpAssignment }
func (IsTrueJump) Opcode() Opcode  { return OpIsTrueJump }
func (IsFalseJump) Opcode() Opcode { return OpIsFalseJump }
func (JumpDown) Opcode() Opcode    { return OpJumpDown }
func (JumpUp) Opcode() Opcode      { return OpJumpUp }
func (ExitVal) Opcode() Opcode     { return OpExitVal }
func (Nop) Opcode() Opcode         { return OpNop }

func (RegVarDecl) isOp()  {}
func (VarDecl) isOp()     {}
func (Assignment) isOp()  {}
func (IsTrueJump) isOp()  {}
func (IsFalseJump) isOp() {}
func (JumpDown) isOp()    {}
func (JumpUp) isOp()      {}
func (ExitVal) isOp()     {}
func (Nop) isOp()         {}

func (o RegVarDecl) Encode() Instruction {
	return Instruction{byte(OpRegVarDecl), o.Min, o.Max}
}

func (o VarDecl) Encode() Instruction {
	return Instruction{byte(OpVarDecl), o.Slot}
}

// Encode panics if Kind is not a recognized operand kind.
func (o Assignment) Encode() Instruction {
	if !o.Kind.Valid() {
		panic(fmt.Sprintf("bytecode: assignment to slot %d with %v", o.Dest, o.Kind))
	}
	return Instruction{byte(OpAssignment), o.Dest, byte(o.Kind), o.Value}
}

func (o IsTrueJump) Encode() Instruction {
	return wideInstr(OpIsTrueJump, o.Cond, o.Target)
}

func (o IsFalseJump) Encode() Instruction {
	return wideInstr(OpIsFalseJump, o.Cond, o.Target)
}

func (o JumpDown) Encode() Instruction { return wideInstr(OpJumpDown, 0, o.Offset) }
func (o JumpUp) Encode() Instruction   { return wideInstr(OpJumpUp, 0, o.Offset) }
func (o ExitVal) Encode() Instruction  { return Instruction{byte(OpExitVal), o.Slot} }
func (Nop) Encode() Instruction        { return Instruction{byte(OpNop)} }

func (o RegVarDecl) String() string {
	return fmt.Sprintf("%s %d, %d", OpRegVarDecl, o.Min, o.Max)
}

func (o Assignment) String() string {
	return fmt.Sprintf("%s %d, %s %d", OpAssignment, o.Dest, o.Kind, o.Value)
}

func (o IsTrueJump) String() string {
	return fmt.Sprintf("%s %d, @%d", OpIsTrueJump, o.Cond, o.Target)
}

func (o IsFalseJump) String() string {
	return fmt.Sprintf("%s %d, @%d", OpIsFalseJump, o.Cond, o.Target)
}

func (o VarDecl) String() string  { return fmt.Sprintf("%s %d", OpVarDecl, o.Slot) }
func (o JumpDown) String() string { return fmt.Sprintf("%s +%d", OpJumpDown, o.Offset) }
func (o JumpUp) String() string   { return fmt.Sprintf("%s -%d", OpJumpUp, o.Offset) }
func (o ExitVal) String() string  { return fmt.Sprintf("%s %d", OpExitVal, o.Slot) }
func (Nop) String() string        { return OpNop.String() }

// Decode unpacks the instruction into its Op variant.
func (in Instruction) Decode() (Op, error) {
	switch op := in.Opcode(); op {
	case OpNop:
		return Nop{}, nil
	case OpRegVarDecl:
		return RegVarDecl{Min: in[1], Max: in[2]}, nil
	case OpVarDecl:
		return VarDecl{Slot: in[1]}, nil
	case OpAssignment:
		kind := OperandKind(in[2])
		if !kind.Valid() {
			return nil, fmt.Errorf("%w %d in assignment to slot %d", ErrOperandKind, in[2], in[1])
		}
		return Assignment{Dest: in[1], Kind: kind, Value: in[3]}, nil
	case OpIsTrueJump:
		return IsTrueJump{Cond: in[1], Target: in.wide()}, nil
	case OpIsFalseJump:
		return IsFalseJump{Cond: in[1], Target: in.wide()}, nil
	case OpJumpDown:
		return JumpDown{Offset: in.wide()}, nil
	case OpJumpUp:
		return JumpUp{Offset: in.wide()}, nil
	case OpExitVal:
		return ExitVal{Slot: in[1]}, nil
	default:
		return nil, fmt.Errorf("%w 0x%02X", ErrUnknownOpcode, byte(op))
	}
}

// MustDecode is like Decode but panics on error.
func (in Instruction) MustDecode() Op {
	op, err := in.Decode()
	if err != nil {
		panic(err)
	}
	return op
}

// String disassembles the instruction on its own.
func (in Instruction) String() string {
	op, err := in.Decode()
	if err != nil {
		return fmt.Sprintf("%s [% x]", in.Opcode(), in[:])
	}
	return op.String()
}
