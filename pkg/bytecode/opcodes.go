package bytecode

import "fmt"

// Opcode is the tag byte of an instruction.
// Opcodes are organized into ranges by category for easy identification.
type Opcode byte

const (
	// ========================================================================
	// Misc (0x00-0x0F)
	// ========================================================================

	OpNop Opcode = 0x00 // No operation

	// ========================================================================
	// Declarations (0x10-0x1F)
	// ========================================================================

	OpRegVarDecl Opcode = 0x10 // Size slot table: OpRegVarDecl <min:u8> <max:u8>
	OpVarDecl    Opcode = 0x11 // Declare slot: OpVarDecl <slot:u8>

	// ========================================================================
	// Assignment (0x20-0x2F)
	// ========================================================================

	OpAssignment Opcode = 0x20 // Store operand: OpAssignment <dest:u8> <kind:u8> <value:u8>

	// ========================================================================
	// Control flow (0x30-0x3F)
	// ========================================================================

	OpIsTrueJump  Opcode = 0x30 // Jump if slot truthy: OpIsTrueJump <cond:u8> <target:u16>
	OpIsFalseJump Opcode = 0x31 // Jump if slot falsy: OpIsFalseJump <cond:u8> <target:u16>
	OpJumpDown    Opcode = 0x32 // pc += offset: OpJumpDown <offset:u16>
	OpJumpUp      Opcode = 0x33 // pc -= offset: OpJumpUp <offset:u16>

	// ========================================================================
	// Termination (0xF0-0xFF)
	// ========================================================================

	OpExitVal Opcode = 0xF0 // Terminate with coerced slot: OpExitVal <slot:u8>
)

// Operand layouts. Every instruction is four bytes: the opcode followed by
// three operand bytes a, b and c. A 16-bit operand occupies b and c,
// big-endian.
const (
	LayoutNone  = "-"
	LayoutAB    = "a b"
	LayoutA     = "a"
	LayoutABC   = "a b c"
	LayoutAWide = "a bc"
	LayoutWide  = "bc"
)

// OpcodeInfo provides metadata about each opcode for debugging and validation.
type OpcodeInfo struct {
	Name   string // Human-readable name
	Layout string // Which operand bytes are meaningful
	Jump   bool   // Can transfer control somewhere other than pc+1
}

// opcodeInfoTable maps opcodes to their metadata.
var opcodeInfoTable = map[Opcode]OpcodeInfo{
	OpNop: {"NOP", LayoutNone, false},

	OpRegVarDecl: {"REG_VAR_DECL", LayoutAB, false},
	OpVarDecl:    {"VAR_DECL", LayoutA, false},

	OpAssignment: {"ASSIGNMENT", LayoutABC, false},

	OpIsTrueJump:  {"IS_TRUE_JMP", LayoutAWide, true},
	OpIsFalseJump: {"IS_FALSE_JMP", LayoutAWide, true},
	OpJumpDown:    {"JMP_DOWN", LayoutWide, true},
	OpJumpUp:      {"JMP_UP", LayoutWide, true},

	OpExitVal: {"EXITVAL", LayoutA, false},
}

// GetOpcodeInfo returns metadata for an opcode.
// Returns a zero OpcodeInfo with name "UNKNOWN" if the opcode is not recognized.
func GetOpcodeInfo(op Opcode) OpcodeInfo {
	if info, ok := opcodeInfoTable[op]; ok {
		return info
	}
	return OpcodeInfo{Name: fmt.Sprintf("UNKNOWN(0x%02X)", byte(op)), Layout: LayoutNone}
}

// Valid reports whether op is a defined opcode.
func (op Opcode) Valid() bool {
	_, ok := opcodeInfoTable[op]
	return ok
}

// String returns the human-readable name of an opcode.
func (op Opcode) String() string {
	return GetOpcodeInfo(op).Name
}

// IsJump returns true if this opcode is a jump instruction.
func (op Opcode) IsJump() bool {
	return op >= OpIsTrueJump && op <= OpJumpUp
}

// IsConditional returns true for jumps that read a condition slot.
func (op Opcode) IsConditional() bool {
	return op == OpIsTrueJump || op == OpIsFalseJump
}

// AllOpcodes returns a slice of all defined opcodes.
func AllOpcodes() []Opcode {
	opcodes := make([]Opcode, 0, len(opcodeInfoTable))
	for op := range opcodeInfoTable {
		opcodes = append(opcodes, op)
	}
	return opcodes
}

// OpcodeCount returns the number of defined opcodes.
func OpcodeCount() int {
	return len(opcodeInfoTable)
}

// OperandKind says how the value operand of an assignment is resolved.
type OperandKind uint8

const (
	OperandString   OperandKind = 1 // literal offset of a string entry
	OperandVariable OperandKind = 2 // slot id
	OperandSmallInt OperandKind = 3 // inline unsigned 8-bit integer
	OperandNumber   OperandKind = 4 // literal offset of a numeric entry
)

// Valid reports whether k is a recognized operand kind.
func (k OperandKind) Valid() bool {
	return k >= OperandString && k <= OperandNumber
}

// String returns a human-readable name for the operand kind.
func (k OperandKind) String() string {
	switch k {
	case OperandString:
		return "string"
	case OperandVariable:
		return "var"
	case OperandSmallInt:
		return "smallint"
	case OperandNumber:
		return "number"
	default:
		return fmt.Sprintf("OperandKind(%d)", k)
	}
}
