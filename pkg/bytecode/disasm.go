package bytecode

import (
	"fmt"
	"strings"

	"github.com/chazu/slotvm/pkg/pool"
)

// Disassemble returns a human-readable listing of prog. Literal operands
// are annotated from lits when it is non-nil.
func Disassemble(prog Program, lits *pool.Pool) string {
	return DisassembleWithName("", prog, lits)
}

// DisassembleWithName returns a human-readable listing with a name header.
func DisassembleWithName(name string, prog Program, lits *pool.Pool) string {
	var sb strings.Builder

	// Header
	if name != "" {
		sb.WriteString(fmt.Sprintf("; === %s ===\n", name))
	}
	sb.WriteString(fmt.Sprintf("; %d instructions, %d bytes\n", len(prog), len(prog)*InstructionWidth))
	sb.WriteString("\n")

	// Literals
	if lits != nil && lits.Len() > 0 {
		sb.WriteString("; Literals:\n")
		for _, e := range lits.Entries() {
			switch e.Kind {
			case pool.KindString:
				// Truncate long strings for readability
				display := e.Str
				if len(display) > 40 {
					display = display[:37] + "..."
				}
				sb.WriteString(fmt.Sprintf(";   [%3d] %q\n", e.Offset, display))
			case pool.KindNumber:
				sb.WriteString(fmt.Sprintf(";   [%3d] %v\n", e.Offset, e.Num))
			}
		}
		sb.WriteString("\n")
	}

	// Code section
	sb.WriteString("; Code:\n")
	for _, line := range DisassembleToLines(prog, lits) {
		sb.WriteString(line)
		sb.WriteByte('\n')
	}
	return sb.String()
}

// DisassembleToLines returns the code listing as a slice of lines.
func DisassembleToLines(prog Program, lits *pool.Pool) []string {
	lines := make([]string, len(prog))
	for pc := range prog {
		lines[pc] = fmt.Sprintf("%04d  %s", pc, DisassembleInstruction(prog, pc, lits))
	}
	return lines
}

// DisassembleInstruction renders the instruction at pc, annotating jump
// destinations and literal operands.
func DisassembleInstruction(prog Program, pc int, lits *pool.Pool) string {
	if pc < 0 || pc >= len(prog) {
		return "<end of code>"
	}

	in := prog[pc]
	op, err := in.Decode()
	if err != nil {
		return fmt.Sprintf("%-14s [% x] ; %v", in.Opcode(), in[:], err)
	}

	switch op := op.(type) {
	case Assignment:
		line := op.String()
		if note := literalNote(op, lits); note != "" {
			return fmt.Sprintf("%-28s ; %s", line, note)
		}
		return line

	case JumpDown:
		return fmt.Sprintf("%-28s ; -> %04d", op.String(), pc+int(op.Offset))

	case JumpUp:
		return fmt.Sprintf("%-28s ; -> %04d", op.String(), pc-int(op.Offset))

	default:
		return op.String()
	}
}

func literalNote(op Assignment, lits *pool.Pool) string {
	if lits == nil {
		return ""
	}
	off := pool.Offset(op.Value)
	switch op.Kind {
	case OperandString:
		s, err := lits.String(off)
		if err != nil {
			return "?"
		}
		if len(s) > 20 {
			s = s[:17] + "..."
		}
		return fmt.Sprintf("%q", s)
	case OperandNumber:
		n, err := lits.Number(off)
		if err != nil {
			return "?"
		}
		return fmt.Sprintf("%v", n)
	}
	return ""
}
