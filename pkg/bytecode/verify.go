package bytecode

import (
	"errors"
	"fmt"

	"github.com/chazu/slotvm/pkg/pool"
)

// Problem is a structural defect found by Verify. Kind names the fault the
// interpreter would raise if it reached the defect.
type Problem struct {
	PC      int
	Kind    FaultKind
	Message string
}

func (p Problem) Error() string {
	if p.PC < 0 {
		return fmt.Sprintf("%s: %s", p.Kind, p.Message)
	}
	return fmt.Sprintf("pc %d: %s: %s", p.PC, p.Kind, p.Message)
}

type verifier struct {
	prog     Program
	lits     *pool.Pool
	slots    int
	regMin   int
	declared map[uint8]bool
	problems []Problem
}

// Verify checks prog for defects that would make the interpreter fault,
// without running it. Literal operands are checked against lits when it is
// non-nil. A program with no problems may still fault at run time, for
// example by reading a slot before the VarDecl that declares it executes.
func Verify(prog Program, lits *pool.Pool) []Problem {
	v := &verifier{prog: prog, lits: lits, declared: make(map[uint8]bool)}
	v.run()
	return v.problems
}

// VerifyError runs Verify and joins any problems into one error.
func VerifyError(prog Program, lits *pool.Pool) error {
	problems := Verify(prog, lits)
	if len(problems) == 0 {
		return nil
	}
	errs := make([]error, len(problems))
	for i, p := range problems {
		errs[i] = p
	}
	return errors.Join(errs...)
}

func (v *verifier) add(pc int, kind FaultKind, format string, args ...any) {
	v.problems = append(v.problems, Problem{PC: pc, Kind: kind, Message: fmt.Sprintf(format, args...)})
}

func (v *verifier) run() {
	if len(v.prog) == 0 {
		v.add(-1, FaultMalformedProgram, "empty program")
		return
	}

	ops := make([]Op, len(v.prog))
	for pc, in := range v.prog {
		op, err := in.Decode()
		if err != nil {
			v.add(pc, FaultMalformedProgram, "%v", err)
			continue
		}
		ops[pc] = op
	}

	decl, ok := ops[0].(RegVarDecl)
	if !ok {
		v.add(0, FaultMalformedProgram, "program must start with %s", OpRegVarDecl)
		return
	}
	if decl.Min > decl.Max {
		v.add(0, FaultMalformedProgram, "register range %d..%d is inverted", decl.Min, decl.Max)
		return
	}
	v.slots = int(decl.Max) + 1
	v.regMin = int(decl.Min)

	for _, op := range ops {
		if d, ok := op.(VarDecl); ok {
			v.declared[d.Slot] = true
		}
	}

	exits := 0
	for pc, op := range ops {
		switch op := op.(type) {
		case VarDecl:
			v.checkSlotRange(pc, op.Slot)
		case Assignment:
			v.checkSlot(pc, op.Dest)
			v.checkOperand(pc, op)
		case IsTrueJump:
			v.checkSlot(pc, op.Cond)
			v.checkTarget(pc, int(op.Target))
		case IsFalseJump:
			v.checkSlot(pc, op.Cond)
			v.checkTarget(pc, int(op.Target))
		case JumpDown:
			v.checkTarget(pc, pc+int(op.Offset))
		case JumpUp:
			v.checkTarget(pc, pc-int(op.Offset))
		case ExitVal:
			v.checkSlot(pc, op.Slot)
			exits++
		}
	}

	if exits == 0 {
		v.add(-1, FaultMalformedProgram, "no %s instruction", OpExitVal)
	}

	last := len(ops) - 1
	switch ops[last].(type) {
	case ExitVal, JumpDown, JumpUp, nil:
	default:
		v.add(last, FaultMalformedProgram, "execution can fall off the end of the program")
	}
}

func (v *verifier) checkSlotRange(pc int, id uint8) bool {
	if int(id) >= v.slots {
		v.add(pc, FaultUndeclaredSlot, "slot %d beyond table of %d slots", id, v.slots)
		return false
	}
	return true
}

// checkSlot also requires that a non-register slot is declared somewhere.
func (v *verifier) checkSlot(pc int, id uint8) {
	if !v.checkSlotRange(pc, id) {
		return
	}
	if int(id) < v.regMin && !v.declared[id] {
		v.add(pc, FaultUndeclaredSlot, "slot %d is never declared", id)
	}
}

func (v *verifier) checkTarget(pc, target int) {
	if target < 0 || target >= len(v.prog) {
		v.add(pc, FaultOutOfRangeJump, "target %d outside [0, %d)", target, len(v.prog))
	}
}

func (v *verifier) checkOperand(pc int, op Assignment) {
	switch op.Kind {
	case OperandVariable:
		v.checkSlot(pc, op.Value)
	case OperandString:
		v.checkLiteral(pc, pool.Offset(op.Value), pool.KindString)
	case OperandNumber:
		v.checkLiteral(pc, pool.Offset(op.Value), pool.KindNumber)
	}
}

func (v *verifier) checkLiteral(pc int, off pool.Offset, want pool.EntryKind) {
	if v.lits == nil {
		return
	}
	k, ok := v.lits.Kind(off)
	switch {
	case !ok:
		v.add(pc, FaultOperandKind, "no literal at offset %d", off)
	case k != want:
		v.add(pc, FaultOperandKind, "literal %d is a %s, not a %s", off, k, want)
	}
}
