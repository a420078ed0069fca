package assembler

import (
	"github.com/pkg/errors"
	"github.com/xiaobogaga/knightcode/isa"
)

// The assembler turns a unit of symbolic instructions into a loadable module. It works in two passes per
// routine, the same way a classic assembler does: the first pass records the address of every label, the
// second pass drops the label pseudo instructions, resolves jump targets to addresses and moves text
// constants into a unit wide pool. Afterwards the operand stack depth is computed along every control
// flow path, which gives the frame size a machine must reserve.

var (
	ErrDuplicateLabel   = errors.New("found duplicate label")
	ErrUndefinedLabel   = errors.New("undefined label")
	ErrDuplicateRoutine = errors.New("found duplicate routine")
	ErrNoEntry          = errors.New("missing entry routine")
	ErrStackDepth       = errors.New("inconsistent stack depth")
	ErrControlFlow      = errors.New("control flow leaves routine without return")
	ErrBadModule        = errors.New("bad module")
)

// Code is a resolved instruction. Operand holds the constant for OpPushInt, the pool index for OpPushText,
// the slot for OpLoad and OpStore and the target address for jumps.
type Code struct {
	Op      isa.Opcode
	Kind    isa.Kind
	Cond    isa.Condition
	Operand int32
}

type Routine struct {
	Name      string
	MaxStack  int
	MaxLocals int
	Code      []Code
}

type Module struct {
	Name      string
	Constants []string
	Routines  []*Routine
}

func (module *Module) Routine(name string) *Routine {
	for _, routine := range module.Routines {
		if routine.Name == name {
			return routine
		}
	}
	return nil
}

type Assembler struct {
	constants        []string
	constantIndexMap map[string]int
	labelLocationMap map[isa.Label]int
}

func NewAssembler() *Assembler {
	return &Assembler{
		constants:        []string{},
		constantIndexMap: map[string]int{},
	}
}

// Assemble resolves unit into a module.
func Assemble(unit *isa.Unit) (*Module, error) {
	return NewAssembler().Assemble(unit)
}

func (asm *Assembler) Assemble(unit *isa.Unit) (*Module, error) {
	module := &Module{Name: unit.Name, Routines: make([]*Routine, 0, len(unit.Routines))}
	for _, routine := range unit.Routines {
		if module.Routine(routine.Name) != nil {
			return nil, errors.Wrapf(ErrDuplicateRoutine, "unit %s: routine %s", unit.Name, routine.Name)
		}
		assembled, err := asm.assembleRoutine(routine)
		if err != nil {
			return nil, errors.WithMessagef(err, "unit %s", unit.Name)
		}
		module.Routines = append(module.Routines, assembled)
	}
	if module.Routine(isa.EntryRoutine) == nil {
		return nil, errors.Wrapf(ErrNoEntry, "unit %s", unit.Name)
	}
	module.Constants = asm.constants
	return module, nil
}

func (asm *Assembler) assembleRoutine(routine *isa.Routine) (*Routine, error) {
	err := asm.updateLabelLocationMap(routine)
	if err != nil {
		return nil, err
	}
	codes := make([]Code, 0, len(routine.Code))
	maxLocals := routine.Locals
	for _, ins := range routine.Code {
		if ins.Op == isa.OpLabel {
			continue
		}
		code := Code{Op: ins.Op}
		switch ins.Op {
		case isa.OpPushInt:
			code.Operand = ins.Operand
		case isa.OpPushText:
			code.Kind, code.Operand = isa.Ref, int32(asm.internConstant(ins.Text))
		case isa.OpLoad, isa.OpStore:
			code.Kind, code.Operand = ins.Kind, ins.Operand
			if ins.Slot()+1 > maxLocals {
				maxLocals = ins.Slot() + 1
			}
		case isa.OpPrint:
			code.Kind = ins.Kind
		case isa.OpIf, isa.OpGoto:
			addr, exist := asm.labelLocationMap[ins.Target]
			if !exist {
				return nil, errors.Wrapf(ErrUndefinedLabel, "routine %s: %s", routine.Name, ins.Target)
			}
			code.Cond, code.Operand = ins.Cond, int32(addr)
			if ins.Op == isa.OpGoto {
				code.Cond = 0
			}
		}
		codes = append(codes, code)
	}
	maxStack, err := computeMaxStack(codes)
	if err != nil {
		return nil, errors.WithMessagef(err, "routine %s", routine.Name)
	}
	return &Routine{Name: routine.Name, MaxStack: maxStack, MaxLocals: maxLocals, Code: codes}, nil
}

// updateLabelLocationMap records the address of every label of routine. A label addresses the
// instruction that follows it.
func (asm *Assembler) updateLabelLocationMap(routine *isa.Routine) error {
	asm.labelLocationMap = map[isa.Label]int{}
	addr := 0
	for _, ins := range routine.Code {
		if ins.Op != isa.OpLabel {
			addr++
			continue
		}
		if _, exist := asm.labelLocationMap[ins.Target]; exist {
			return errors.Wrapf(ErrDuplicateLabel, "routine %s: %s", routine.Name, ins.Target)
		}
		asm.labelLocationMap[ins.Target] = addr
	}
	return nil
}

func (asm *Assembler) internConstant(text string) int {
	index, exist := asm.constantIndexMap[text]
	if exist {
		return index
	}
	index = len(asm.constants)
	asm.constants = append(asm.constants, text)
	asm.constantIndexMap[text] = index
	return index
}

// computeMaxStack walks every path of codes and returns the deepest operand stack seen. Every address
// must be reached with the same depth on all paths.
func computeMaxStack(codes []Code) (int, error) {
	if len(codes) == 0 {
		return 0, ErrControlFlow
	}
	depth := make([]int, len(codes))
	for i := range depth {
		depth[i] = -1
	}
	depth[0] = 0
	maxStack := 0
	workList := []int{0}
	for len(workList) > 0 {
		pc := workList[len(workList)-1]
		workList = workList[:len(workList)-1]
		code := codes[pc]
		pop, push := isa.Instruction{Op: code.Op}.StackEffect()
		if depth[pc] < pop {
			return 0, errors.Wrapf(ErrStackDepth, "stack underflow at %d", pc)
		}
		next := depth[pc] - pop + push
		if next > maxStack {
			maxStack = next
		}
		var successors []int
		switch code.Op {
		case isa.OpReturn:
		case isa.OpGoto:
			successors = []int{int(code.Operand)}
		case isa.OpIf:
			successors = []int{pc + 1, int(code.Operand)}
		default:
			successors = []int{pc + 1}
		}
		for _, successor := range successors {
			if successor < 0 || successor >= len(codes) {
				return 0, errors.Wrapf(ErrControlFlow, "at %d", pc)
			}
			if depth[successor] == -1 {
				depth[successor] = next
				workList = append(workList, successor)
				continue
			}
			if depth[successor] != next {
				return 0, errors.Wrapf(ErrStackDepth, "address %d reached with depth %d and %d", successor,
					depth[successor], next)
			}
		}
	}
	return maxStack, nil
}
