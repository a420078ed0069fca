package machine

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/xiaobogaga/knightcode/assembler"
	"github.com/xiaobogaga/knightcode/isa"
	"github.com/xiaobogaga/knightcode/util"
)

var (
	ErrDivisionByZero = errors.New("division by zero")
	ErrStepLimit      = errors.New("step limit exceeded")
	ErrStackUnderflow = errors.New("operand stack underflow")
	ErrStackOverflow  = errors.New("operand stack overflow")
	ErrUninitialized  = errors.New("load of an uninitialized slot")
	ErrTypeMismatch   = errors.New("type mismatch")
	ErrBadInput       = errors.New("bad input")
	ErrBadOpcode      = errors.New("bad opcode")
)

// checkInterval is how many instructions run between two context checks.
const checkInterval = 1024

// Machine executes the entry routine of an assembled module.
type Machine struct {
	module   *assembler.Module
	input    *bufio.Reader
	output   io.Writer
	maxSteps int

	steps  int
	stack  []Value
	locals []Value
}

type Option func(machine *Machine)

func WithInput(rd io.Reader) Option {
	return func(machine *Machine) {
		machine.input = bufio.NewReader(rd)
	}
}

func WithOutput(w io.Writer) Option {
	return func(machine *Machine) {
		machine.output = w
	}
}

// WithMaxSteps bounds the number of executed instructions, zero means unbounded.
func WithMaxSteps(steps int) Option {
	return func(machine *Machine) {
		machine.maxSteps = steps
	}
}

func New(module *assembler.Module, options ...Option) *Machine {
	machine := &Machine{module: module}
	for _, option := range options {
		option(machine)
	}
	if machine.input == nil {
		machine.input = bufio.NewReader(os.Stdin)
	}
	if machine.output == nil {
		machine.output = os.Stdout
	}
	return machine
}

// Steps returns how many instructions the last Run executed.
func (machine *Machine) Steps() int {
	return machine.steps
}

// Run executes the entry routine until it returns.
func (machine *Machine) Run(ctx context.Context) error {
	routine := machine.module.Routine(isa.EntryRoutine)
	if routine == nil {
		return errors.Wrapf(assembler.ErrNoEntry, "module %s", machine.module.Name)
	}
	slog.Debug("machine: start", "module", machine.module.Name, "max_stack", routine.MaxStack,
		"max_locals", routine.MaxLocals)
	machine.steps = 0
	machine.stack = make([]Value, 0, routine.MaxStack)
	machine.locals = make([]Value, routine.MaxLocals)
	err := machine.run(ctx, routine)
	slog.Debug("machine: stop", "module", machine.module.Name, "steps", machine.steps, "err", err)
	return err
}

func (machine *Machine) run(ctx context.Context, routine *assembler.Routine) error {
	pc := 0
	for pc < len(routine.Code) {
		if machine.maxSteps > 0 && machine.steps >= machine.maxSteps {
			return errors.Wrapf(ErrStepLimit, "after %d steps", machine.steps)
		}
		if machine.steps%checkInterval == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		machine.steps++
		code := routine.Code[pc]
		next, err := machine.execute(routine, pc, code)
		if err != nil {
			return errors.WithMessagef(err, "%s.%s at %d (%s)", machine.module.Name, routine.Name, pc, code.Op)
		}
		if next < 0 {
			return nil
		}
		pc = next
	}
	return errors.Wrapf(assembler.ErrControlFlow, "routine %s", routine.Name)
}

// execute runs one instruction and returns the next pc, or -1 when the routine returns.
func (machine *Machine) execute(routine *assembler.Routine, pc int, code assembler.Code) (int, error) {
	switch code.Op {
	case isa.OpPushInt:
		return pc + 1, machine.push(routine, IntValue(code.Operand))
	case isa.OpPushText:
		if int(code.Operand) >= len(machine.module.Constants) {
			return 0, errors.Wrapf(assembler.ErrBadModule, "constant %d", code.Operand)
		}
		return pc + 1, machine.push(routine, TextValue(machine.module.Constants[code.Operand]))
	case isa.OpLoad:
		slot, err := machine.slot(code)
		if err != nil {
			return 0, err
		}
		if machine.locals[slot].IsNull() {
			return 0, errors.Wrapf(ErrUninitialized, "slot %d", slot)
		}
		return pc + 1, machine.push(routine, machine.locals[slot])
	case isa.OpStore:
		slot, err := machine.slot(code)
		if err != nil {
			return 0, err
		}
		value, err := machine.pop()
		if err != nil {
			return 0, err
		}
		machine.locals[slot] = value
		return pc + 1, nil
	case isa.OpAdd, isa.OpSub, isa.OpMul, isa.OpDiv:
		return pc + 1, machine.arithmetic(routine, code.Op)
	case isa.OpIf:
		a, b, err := machine.popInts()
		if err != nil {
			return 0, err
		}
		if code.Cond.Holds(a, b) {
			return int(code.Operand), nil
		}
		return pc + 1, nil
	case isa.OpGoto:
		return int(code.Operand), nil
	case isa.OpOpenOutput:
		return pc + 1, machine.push(routine, Value{kind: outputHandle})
	case isa.OpOpenInput:
		return pc + 1, machine.push(routine, Value{kind: inputHandle})
	case isa.OpPrint:
		return pc + 1, machine.print()
	case isa.OpReadInt, isa.OpReadLine:
		return pc + 1, machine.read(routine, code.Op)
	case isa.OpReturn:
		return -1, nil
	}
	return 0, errors.Wrapf(ErrBadOpcode, "%d", byte(code.Op))
}

func (machine *Machine) slot(code assembler.Code) (int, error) {
	slot := int(code.Operand)
	if slot < 0 || slot >= len(machine.locals) {
		return 0, errors.Wrapf(assembler.ErrBadModule, "slot %d out of range", slot)
	}
	return slot, nil
}

func (machine *Machine) push(routine *assembler.Routine, value Value) error {
	if len(machine.stack) >= routine.MaxStack {
		return errors.Wrapf(ErrStackOverflow, "max stack %d", routine.MaxStack)
	}
	machine.stack = append(machine.stack, value)
	return nil
}

func (machine *Machine) pop() (Value, error) {
	if len(machine.stack) == 0 {
		return Value{}, ErrStackUnderflow
	}
	value := machine.stack[len(machine.stack)-1]
	machine.stack = machine.stack[:len(machine.stack)-1]
	return value, nil
}

// popInts pops b then a.
func (machine *Machine) popInts() (a, b int32, err error) {
	right, err := machine.pop()
	if err != nil {
		return 0, 0, err
	}
	left, err := machine.pop()
	if err != nil {
		return 0, 0, err
	}
	var ok1, ok2 bool
	a, ok1 = left.Int()
	b, ok2 = right.Int()
	if !ok1 || !ok2 {
		return 0, 0, errors.Wrapf(ErrTypeMismatch, "expect integers, got %s and %s", left, right)
	}
	return a, b, nil
}

// arithmetic wraps on overflow and truncates division toward zero.
func (machine *Machine) arithmetic(routine *assembler.Routine, op isa.Opcode) error {
	a, b, err := machine.popInts()
	if err != nil {
		return err
	}
	var result int32
	switch op {
	case isa.OpAdd:
		result = a + b
	case isa.OpSub:
		result = a - b
	case isa.OpMul:
		result = a * b
	case isa.OpDiv:
		if b == 0 {
			return ErrDivisionByZero
		}
		result = a / b
	}
	return machine.push(routine, IntValue(result))
}

func (machine *Machine) print() error {
	value, err := machine.pop()
	if err != nil {
		return err
	}
	handle, err := machine.pop()
	if err != nil {
		return err
	}
	if handle.kind != outputHandle {
		return errors.Wrapf(ErrTypeMismatch, "print to %s", handle)
	}
	_, err = fmt.Fprintln(machine.output, value.String())
	return err
}

func (machine *Machine) read(routine *assembler.Routine, op isa.Opcode) error {
	handle, err := machine.pop()
	if err != nil {
		return err
	}
	if handle.kind != inputHandle {
		return errors.Wrapf(ErrTypeMismatch, "read from %s", handle)
	}
	if op == isa.OpReadLine {
		line, err := machine.readLine()
		if err != nil {
			return err
		}
		return machine.push(routine, TextValue(line))
	}
	token, err := machine.readToken()
	if err != nil {
		return err
	}
	value, err := strconv.ParseInt(token, 10, 32)
	if err != nil {
		return errors.Wrapf(ErrBadInput, "not an integer: %q", token)
	}
	return machine.push(routine, IntValue(int32(value)))
}

// readToken skips leading white space and returns the next white space delimited token. The delimiter
// stays unread.
func (machine *Machine) readToken() (string, error) {
	sb := strings.Builder{}
	for {
		b, err := machine.input.ReadByte()
		if err == io.EOF && sb.Len() > 0 {
			return sb.String(), nil
		}
		if err != nil {
			return "", errors.Wrap(ErrBadInput, err.Error())
		}
		if util.IsSpace(b) {
			if sb.Len() == 0 {
				continue
			}
			_ = machine.input.UnreadByte()
			return sb.String(), nil
		}
		sb.WriteByte(b)
	}
}

// readLine returns the rest of the current line without its terminator.
func (machine *Machine) readLine() (string, error) {
	line, err := machine.input.ReadString('\n')
	if err == io.EOF && len(line) > 0 {
		err = nil
	}
	if err != nil {
		return "", errors.Wrap(ErrBadInput, err.Error())
	}
	line = strings.TrimSuffix(line, "\n")
	return strings.TrimSuffix(line, "\r"), nil
}
