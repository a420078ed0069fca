package isa

import (
	"fmt"
	"strconv"
)

// Instructions of the KnightCode stack machine. A routine owns an operand stack and an array of
// local slots; every slot holds either an integer or a reference (text, input or output handle).

type Opcode byte

const (
	OpPushInt    Opcode = iota + 1 // push an int32 constant
	OpPushText                     // push a text constant
	OpLoad                         // push the content of a local slot
	OpStore                        // pop into a local slot
	OpAdd                          // pop b, pop a, push a + b
	OpSub                          // pop b, pop a, push a - b
	OpMul                          // pop b, pop a, push a * b
	OpDiv                          // pop b, pop a, push a / b
	OpIf                           // pop b, pop a, jump when a <cond> b
	OpGoto                         // jump unconditionally
	OpLabel                        // pseudo instruction marking a jump target
	OpOpenOutput                   // push the output handle
	OpOpenInput                    // push a fresh input handle
	OpPrint                        // pop value, pop output handle, print value and a newline
	OpReadInt                      // pop input handle, push the next integer token
	OpReadLine                     // pop input handle, push the rest of the current line
	OpReturn                       // leave the routine
)

var opcodeNames = map[Opcode]string{
	OpPushInt:    "PUSH",
	OpPushText:   "PUSH",
	OpLoad:       "LOAD",
	OpStore:      "STORE",
	OpAdd:        "ADD",
	OpSub:        "SUB",
	OpMul:        "MUL",
	OpDiv:        "DIV",
	OpIf:         "IF",
	OpGoto:       "GOTO",
	OpLabel:      "LABEL",
	OpOpenOutput: "OUTPUT",
	OpOpenInput:  "INPUT",
	OpPrint:      "PRINT",
	OpReadInt:    "READINT",
	OpReadLine:   "READLINE",
	OpReturn:     "RETURN",
}

func (op Opcode) String() string {
	name, ok := opcodeNames[op]
	if !ok {
		return fmt.Sprintf("OP(%d)", byte(op))
	}
	return name
}

// Valid reports whether op is a known opcode.
func (op Opcode) Valid() bool {
	_, ok := opcodeNames[op]
	return ok
}

// Kind selects between the integer and the reference flavour of load, store and print.
type Kind byte

const (
	Int Kind = iota
	Ref
)

func (kind Kind) String() string {
	if kind == Ref {
		return "REF"
	}
	return "INT"
}

// Condition is the relation tested by an OpIf.
type Condition byte

const (
	GT Condition = iota
	LT
	EQ
	NE
	GE
	LE
)

var conditionNames = [...]string{GT: "GT", LT: "LT", EQ: "EQ", NE: "NE", GE: "GE", LE: "LE"}

func (cond Condition) String() string {
	if int(cond) >= len(conditionNames) {
		return fmt.Sprintf("COND(%d)", byte(cond))
	}
	return conditionNames[cond]
}

// Negate returns the condition that holds exactly when cond does not.
func (cond Condition) Negate() Condition {
	switch cond {
	case GT:
		return LE
	case LT:
		return GE
	case EQ:
		return NE
	case NE:
		return EQ
	case GE:
		return LT
	default:
		return GT
	}
}

func (cond Condition) Holds(a, b int32) bool {
	switch cond {
	case GT:
		return a > b
	case LT:
		return a < b
	case EQ:
		return a == b
	case NE:
		return a != b
	case GE:
		return a >= b
	case LE:
		return a <= b
	}
	return false
}

// Label names a jump target. Labels are unique inside a unit.
type Label string

type Instruction struct {
	Op      Opcode
	Kind    Kind
	Cond    Condition
	Operand int32
	Text    string
	Target  Label
}

func PushInt(value int32) Instruction {
	return Instruction{Op: OpPushInt, Operand: value}
}

func PushText(text string) Instruction {
	return Instruction{Op: OpPushText, Kind: Ref, Text: text}
}

func Load(kind Kind, slot int) Instruction {
	return Instruction{Op: OpLoad, Kind: kind, Operand: int32(slot)}
}

func Store(kind Kind, slot int) Instruction {
	return Instruction{Op: OpStore, Kind: kind, Operand: int32(slot)}
}

func If(cond Condition, target Label) Instruction {
	return Instruction{Op: OpIf, Cond: cond, Target: target}
}

func Goto(target Label) Instruction {
	return Instruction{Op: OpGoto, Target: target}
}

func Mark(label Label) Instruction {
	return Instruction{Op: OpLabel, Target: label}
}

func Print(kind Kind) Instruction {
	return Instruction{Op: OpPrint, Kind: kind}
}

// Op builds an instruction that carries no operand, such as OpAdd or OpReturn.
func Op(op Opcode) Instruction {
	return Instruction{Op: op}
}

// Slot returns the local slot addressed by a load or store.
func (ins Instruction) Slot() int {
	return int(ins.Operand)
}

// IsJump reports whether ins transfers control to its Target.
func (ins Instruction) IsJump() bool {
	return ins.Op == OpIf || ins.Op == OpGoto
}

// StackEffect returns how many operands ins pops and pushes.
func (ins Instruction) StackEffect() (pop, push int) {
	switch ins.Op {
	case OpPushInt, OpPushText, OpLoad, OpOpenOutput, OpOpenInput:
		return 0, 1
	case OpStore:
		return 1, 0
	case OpAdd, OpSub, OpMul, OpDiv:
		return 2, 1
	case OpIf, OpPrint:
		return 2, 0
	case OpReadInt, OpReadLine:
		return 1, 1
	}
	return 0, 0
}

// String renders ins in the text assembly syntax accepted by ParseText.
func (ins Instruction) String() string {
	switch ins.Op {
	case OpPushInt:
		return fmt.Sprintf("PUSH INT %d", ins.Operand)
	case OpPushText:
		return fmt.Sprintf("PUSH TEXT %s", strconv.Quote(ins.Text))
	case OpLoad, OpStore:
		return fmt.Sprintf("%s %s %d", ins.Op, ins.Kind, ins.Operand)
	case OpIf:
		return fmt.Sprintf("IF %s %s", ins.Cond, ins.Target)
	case OpGoto, OpLabel:
		return fmt.Sprintf("%s %s", ins.Op, ins.Target)
	case OpPrint:
		return fmt.Sprintf("PRINT %s", ins.Kind)
	}
	return ins.Op.String()
}
