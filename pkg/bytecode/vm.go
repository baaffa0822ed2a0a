package bytecode

import (
	"fmt"

	"github.com/tliron/commonlog"

	"github.com/chazu/slotvm/pkg/mem"
	"github.com/chazu/slotvm/pkg/pool"
)

// State is the lifecycle state of a VM.
type State uint8

const (
	StateNew State = iota
	StateInitialized
	StateRunning
	StateExited
	StateFaulted
)

// String returns a human-readable name for the state.
func (s State) String() string {
	switch s {
	case StateNew:
		return "new"
	case StateInitialized:
		return "initialized"
	case StateRunning:
		return "running"
	case StateExited:
		return "exited"
	case StateFaulted:
		return "faulted"
	default:
		return fmt.Sprintf("State(%d)", s)
	}
}

// StepFunc observes each instruction just before it executes.
type StepFunc func(pc int, op Op)

// Option configures a VM.
type Option func(*VM)

// WithStepFunc installs a per-instruction observer.
func WithStepFunc(fn StepFunc) Option {
	return func(vm *VM) { vm.onStep = fn }
}

// WithRecordTrace makes the VM keep the sequence of executed pcs, readable
// with Trace after the run.
func WithRecordTrace() Option {
	return func(vm *VM) { vm.recordTrace = true }
}

// WithLogger overrides the VM's logger.
func WithLogger(log commonlog.Logger) Option {
	return func(vm *VM) { vm.log = log }
}

// VM executes one program against a constant pool. Its slot table is
// allocated from the arena at Init. A VM runs at most once; build a fresh
// one to run a program again. A VM is not safe for concurrent use.
type VM struct {
	arena *mem.Arena
	pool  *pool.Pool

	// Current execution state
	prog   Program
	pc     int
	state  State
	status bool
	slots  slotTable
	regMin int
	steps  uint64

	// Debug/trace
	recordTrace bool
	trace       []int
	onStep      StepFunc
	log         commonlog.Logger
}

// NewVM creates a VM that allocates from arena and resolves literals in p.
// A nil pool is replaced by an empty one.
func NewVM(arena *mem.Arena, p *pool.Pool, opts ...Option) *VM {
	if p == nil {
		p = pool.New(arena)
	}
	vm := &VM{
		arena: arena,
		pool:  p,
		log:   commonlog.GetLogger("slotvm.bytecode"),
	}
	for _, opt := range opts {
		opt(vm)
	}
	return vm
}

// Init validates the program header, allocates the slot table and resets
// pc to 0. The first instruction must be RegVarDecl; the table gets Max+1
// slots and the registers Min..Max start out declared as Undefined.
//
// Every failure to allocate the slot table is a FaultAllocationExhausted
// fault, including an arena that was never initialized or has been torn
// down; errors.Is still matches the arena's own error.
func (vm *VM) Init(prog Program) error {
	if vm.state != StateNew {
		return ErrAlreadyInitialized
	}
	if err := vm.init(prog); err != nil {
		vm.state = StateFaulted
		return err
	}
	vm.state = StateInitialized
	vm.log.Debugf("init: %d instructions, %d slots (registers %d..%d), %s",
		len(prog), vm.slots.len(), vm.regMin, vm.slots.len()-1, vm.arena)
	return nil
}

func (vm *VM) init(prog Program) error {
	if len(prog) == 0 {
		return fault(FaultMalformedProgram, -1, "empty program")
	}

	op, err := prog[0].Decode()
	if err != nil {
		return wrapFault(FaultMalformedProgram, 0, err)
	}
	decl, ok := op.(RegVarDecl)
	if !ok {
		return fault(FaultMalformedProgram, 0, "program must start with %s, found %s", OpRegVarDecl, op.Opcode())
	}
	if decl.Min > decl.Max {
		return fault(FaultMalformedProgram, 0, "register range %d..%d is inverted", decl.Min, decl.Max)
	}

	slots, err := newSlotTable(vm.arena, int(decl.Max)+1)
	if err != nil {
		return wrapFault(FaultAllocationExhausted, -1, err)
	}
	for id := int(decl.Min); id <= int(decl.Max); id++ {
		slots.set(id, Undefined())
	}

	vm.prog = prog
	vm.slots = slots
	vm.regMin = int(decl.Min)
	vm.pc = 0
	return nil
}

// Run executes the program until ExitVal and returns the coerced exit
// status. Any fault stops the run for good; the VM moves to StateFaulted
// and the *Fault is returned.
func (vm *VM) Run() (bool, error) {
	switch vm.state {
	case StateNew:
		return false, ErrNotInitialized
	case StateInitialized:
	default:
		return false, ErrAlreadyRun
	}

	vm.state = StateRunning
	status, err := vm.run()
	if err != nil {
		vm.state = StateFaulted
		vm.log.Debugf("run faulted after %d steps: %v", vm.steps, err)
		return false, err
	}
	vm.state = StateExited
	vm.status = status
	vm.log.Debugf("run exited after %d steps with status %t", vm.steps, status)
	return status, nil
}

// run is the main execution loop.
func (vm *VM) run() (bool, error) {
	tracing := vm.log.AllowLevel(commonlog.Debug)

	for {
		if vm.pc >= len(vm.prog) {
			return false, fault(FaultMalformedProgram, vm.pc, "fell off the end of a %d-instruction program without %s", len(vm.prog), OpExitVal)
		}

		pc := vm.pc
		op, err := vm.prog[pc].Decode()
		if err != nil {
			return false, wrapFault(FaultMalformedProgram, pc, err)
		}

		vm.steps++
		if vm.recordTrace {
			vm.trace = append(vm.trace, pc)
		}
		if vm.onStep != nil {
			vm.onStep(pc, op)
		}
		if tracing {
			vm.log.Debugf("[%04d] %s", pc, op)
		}

		switch op := op.(type) {
		case Nop, RegVarDecl:
			vm.pc++

		case VarDecl:
			if err := vm.checkSlot(pc, op.Slot); err != nil {
				return false, err
			}
			vm.slots.set(int(op.Slot), Undefined())
			vm.pc++

		case Assignment:
			v, err := vm.resolve(pc, op.Kind, op.Value)
			if err != nil {
				return false, err
			}
			if _, err := vm.load(pc, op.Dest); err != nil {
				return false, err
			}
			vm.slots.set(int(op.Dest), v)
			vm.pc++

		case IsTrueJump:
			if err := vm.condJump(pc, op.Cond, op.Target, true); err != nil {
				return false, err
			}

		case IsFalseJump:
			if err := vm.condJump(pc, op.Cond, op.Target, false); err != nil {
				return false, err
			}

		case JumpDown:
			if err := vm.jump(pc, pc+int(op.Offset)); err != nil {
				return false, err
			}

		case JumpUp:
			if err := vm.jump(pc, pc-int(op.Offset)); err != nil {
				return false, err
			}

		case ExitVal:
			v, err := vm.load(pc, op.Slot)
			if err != nil {
				return false, err
			}
			return vm.truthy(pc, v)

		default:
			return false, fault(FaultMalformedProgram, pc, "no handler for %s", op.Opcode())
		}
	}
}

// checkSlot faults if id is outside the slot table.
func (vm *VM) checkSlot(pc int, id uint8) error {
	if int(id) >= vm.slots.len() {
		return fault(FaultUndeclaredSlot, pc, "slot %d beyond table of %d slots", id, vm.slots.len())
	}
	return nil
}

// load reads a declared slot.
func (vm *VM) load(pc int, id uint8) (Value, error) {
	if err := vm.checkSlot(pc, id); err != nil {
		return Value{}, err
	}
	v, ok := vm.slots.get(int(id))
	if !ok {
		return Value{}, fault(FaultUndeclaredSlot, pc, "slot %d used before %s", id, OpVarDecl)
	}
	return v, nil
}

// resolve turns an assignment operand into a runtime value.
func (vm *VM) resolve(pc int, kind OperandKind, raw uint8) (Value, error) {
	switch kind {
	case OperandString:
		off := pool.Offset(raw)
		if k, ok := vm.pool.Kind(off); !ok || k != pool.KindString {
			return Value{}, vm.literalFault(pc, off, pool.KindString)
		}
		return StringRef(off), nil

	case OperandVariable:
		return vm.load(pc, raw)

	case OperandSmallInt:
		return SmallInt(raw), nil

	case OperandNumber:
		f, err := vm.pool.Number(pool.Offset(raw))
		if err != nil {
			return Value{}, vm.literalFault(pc, pool.Offset(raw), pool.KindNumber)
		}
		return Number(f), nil

	default:
		return Value{}, fault(FaultOperandKind, pc, "%v", kind)
	}
}

func (vm *VM) literalFault(pc int, off pool.Offset, want pool.EntryKind) *Fault {
	k, ok := vm.pool.Kind(off)
	if !ok {
		return wrapFault(FaultOperandKind, pc, fmt.Errorf("%s operand: %w %d", want, pool.ErrNoEntry, off))
	}
	return wrapFault(FaultOperandKind, pc, fmt.Errorf("%w: %s operand points at %s literal %d", pool.ErrKindMismatch, want, k, off))
}

func (vm *VM) truthy(pc int, v Value) (bool, error) {
	b, err := v.Truthy(vm.pool)
	if err != nil {
		return false, wrapFault(FaultOperandKind, pc, err)
	}
	return b, nil
}

// condJump checks target before the condition, so an out-of-range target
// faults whether or not the branch is taken.
func (vm *VM) condJump(pc int, cond uint8, target uint16, when bool) error {
	if err := vm.checkTarget(pc, int(target)); err != nil {
		return err
	}
	v, err := vm.load(pc, cond)
	if err != nil {
		return err
	}
	b, err := vm.truthy(pc, v)
	if err != nil {
		return err
	}
	if b != when {
		vm.pc++
		return nil
	}
	vm.pc = int(target)
	return nil
}

func (vm *VM) checkTarget(pc, target int) error {
	if target < 0 || target >= len(vm.prog) {
		return fault(FaultOutOfRangeJump, pc, "target %d outside [0, %d)", target, len(vm.prog))
	}
	return nil
}

func (vm *VM) jump(pc, target int) error {
	if err := vm.checkTarget(pc, target); err != nil {
		return err
	}
	vm.pc = target
	return nil
}

// Slot returns the value held in a declared slot. It is meant for hosts and
// tests inspecting a VM after a run.
func (vm *VM) Slot(id uint8) (Value, error) {
	if vm.state == StateNew {
		return Value{}, ErrNotInitialized
	}
	return vm.load(vm.pc, id)
}

// State returns the VM's lifecycle state.
func (vm *VM) State() State { return vm.state }

// PC returns the current program counter.
func (vm *VM) PC() int { return vm.pc }

// Status returns the exit status of a completed run.
func (vm *VM) Status() bool { return vm.status }

// Steps returns the number of instructions executed.
func (vm *VM) Steps() uint64 { return vm.steps }

// Trace returns the executed pcs in order. It is empty unless the VM was
// built with WithRecordTrace.
func (vm *VM) Trace() []int { return vm.trace }

// Pool returns the constant pool the VM resolves literals against.
func (vm *VM) Pool() *pool.Pool { return vm.pool }
