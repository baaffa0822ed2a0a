package bytecode

import (
	"errors"
	"fmt"
)

// FaultKind classifies the structural violations that stop a run.
type FaultKind uint8

const (
	FaultAllocationExhausted FaultKind = iota + 1
	FaultMalformedProgram
	FaultUndeclaredSlot
	FaultOutOfRangeJump
	FaultOperandKind
)

// Sentinels matched by errors.Is against a *Fault of the same kind.
var (
	ErrAllocationExhausted = errors.New("allocation exhausted")
	ErrMalformedProgram    = errors.New("malformed program")
	ErrUndeclaredSlot      = errors.New("undeclared slot access")
	ErrOutOfRangeJump      = errors.New("out-of-range jump")
	ErrOperandKindMismatch = errors.New("operand kind mismatch")
)

// Lifecycle errors. These are caller mistakes, not program faults.
var (
	ErrNotInitialized     = errors.New("bytecode: vm not initialized")
	ErrAlreadyInitialized = errors.New("bytecode: vm already initialized")
	ErrAlreadyRun         = errors.New("bytecode: vm already ran")
)

func (k FaultKind) sentinel() error {
	switch k {
	case FaultAllocationExhausted:
		return ErrAllocationExhausted
	case FaultMalformedProgram:
		return ErrMalformedProgram
	case FaultUndeclaredSlot:
		return ErrUndeclaredSlot
	case FaultOutOfRangeJump:
		return ErrOutOfRangeJump
	case FaultOperandKind:
		return ErrOperandKindMismatch
	default:
		return nil
	}
}

// String returns the fault kind's name.
func (k FaultKind) String() string {
	if err := k.sentinel(); err != nil {
		return err.Error()
	}
	return fmt.Sprintf("FaultKind(%d)", k)
}

// Fault is an unrecoverable error raised while initializing or running a
// program. The VM that raised it is left in StateFaulted.
type Fault struct {
	Kind FaultKind
	PC   int   // instruction being executed, or -1 during Init
	Err  error // underlying cause, may be nil
}

func (f *Fault) Error() string {
	where := "init"
	if f.PC >= 0 {
		where = fmt.Sprintf("pc %d", f.PC)
	}
	if f.Err == nil {
		return fmt.Sprintf("bytecode: %s at %s", f.Kind, where)
	}
	return fmt.Sprintf("bytecode: %s at %s: %v", f.Kind, where, f.Err)
}

// Unwrap exposes both the kind sentinel and the cause to errors.Is/As.
func (f *Fault) Unwrap() []error {
	errs := make([]error, 0, 2)
	if s := f.Kind.sentinel(); s != nil {
		errs = append(errs, s)
	}
	if f.Err != nil {
		errs = append(errs, f.Err)
	}
	return errs
}

// AsFault returns the *Fault in err's chain, if any.
func AsFault(err error) (*Fault, bool) {
	var f *Fault
	if errors.As(err, &f) {
		return f, true
	}
	return nil, false
}

func fault(kind FaultKind, pc int, format string, args ...any) *Fault {
	return &Fault{Kind: kind, PC: pc, Err: fmt.Errorf(format, args...)}
}

func wrapFault(kind FaultKind, pc int, err error) *Fault {
	return &Fault{Kind: kind, PC: pc, Err: err}
}
