package isa

import (
	"fmt"
	"io"
)

// EntryRoutine is the name of the routine a machine starts executing.
const EntryRoutine = "main"

// Unit is the artifact of compiling one program: a named container of routines.
type Unit struct {
	Name     string
	Routines []*Routine
}

type Routine struct {
	Name   string
	Locals int
	Code   []Instruction
	closed bool
}

func NewUnit(name string) *Unit {
	return &Unit{Name: name}
}

// OpenRoutine appends a new empty routine to the unit and returns it.
func (unit *Unit) OpenRoutine(name string) *Routine {
	routine := &Routine{Name: name}
	unit.Routines = append(unit.Routines, routine)
	return routine
}

func (unit *Unit) Routine(name string) *Routine {
	for _, routine := range unit.Routines {
		if routine.Name == name {
			return routine
		}
	}
	return nil
}

// InstructionCount counts real instructions, labels excluded.
func (unit *Unit) InstructionCount() int {
	count := 0
	for _, routine := range unit.Routines {
		for _, ins := range routine.Code {
			if ins.Op != OpLabel {
				count++
			}
		}
	}
	return count
}

func (routine *Routine) Emit(instructions ...Instruction) {
	routine.Code = append(routine.Code, instructions...)
}

// Close terminates the routine with a return and records how many local slots it uses.
func (routine *Routine) Close(locals int) {
	if routine.closed {
		return
	}
	routine.Emit(Op(OpReturn))
	routine.Locals = locals
	routine.closed = true
}

// LabelAllocator hands out labels that are unique inside one unit.
type LabelAllocator struct {
	next int
}

func (allocator *LabelAllocator) New(hint string) Label {
	label := Label(fmt.Sprintf("%s_%d", hint, allocator.next))
	allocator.next++
	return label
}

// TextSink persists units as text assembly.
type TextSink struct {
	w io.Writer
}

func NewTextSink(w io.Writer) *TextSink {
	return &TextSink{w: w}
}

func (sink *TextSink) Persist(unit *Unit) error {
	_, err := io.WriteString(sink.w, Format(unit))
	return err
}
