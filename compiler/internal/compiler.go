package internal

import (
	"io"
	"log/slog"

	"github.com/pkg/errors"
	"github.com/xiaobogaga/knightcode/isa"
)

// InstructionSink receives the unit of a successful compilation. It is never called when compilation fails.
type InstructionSink interface {
	Persist(unit *isa.Unit) error
}

type Result struct {
	Program *ProgramAst
	Unit    *isa.Unit
	Symbols []*Variable
}

// CompileUnit turns a parsed program into a unit with exactly one entry routine.
func CompileUnit(program *ProgramAst) (*isa.Unit, error) {
	return newUnitCompiler().compileProgram(program)
}

func CompileFile(path string, sink InstructionSink) (*Result, error) {
	parser := &Parser{}
	slog.Debug("compiler: start parser", "path", path)
	program, err := parser.ParseFile(path)
	if err != nil {
		return nil, errors.WithMessage(err, path)
	}
	result, err := compileProgram(program, sink)
	if err != nil {
		return nil, errors.WithMessage(err, path)
	}
	return result, nil
}

// Compile parses rd, compiles the program and hands the unit to sink.
func Compile(rd io.Reader, sink InstructionSink) (*Result, error) {
	parser := &Parser{}
	slog.Debug("compiler: start parser")
	program, err := parser.Parse(rd)
	if err != nil {
		return nil, err
	}
	return compileProgram(program, sink)
}

func compileProgram(program *ProgramAst, sink InstructionSink) (*Result, error) {
	slog.Debug("compiler: start generate codes", "program", program.Name,
		"declarations", len(program.Declarations), "statements", len(program.Statements))
	compiler := newUnitCompiler()
	unit, err := compiler.compileProgram(program)
	if err != nil {
		return nil, err
	}
	slog.Debug("compiler: persist unit", "unit", unit.Name, "variables", compiler.symbolTable.Len(),
		"slots", compiler.memoryPointer, "instructions", unit.InstructionCount())
	err = sink.Persist(unit)
	if err != nil {
		return nil, errors.WithMessage(err, "persist")
	}
	return &Result{Program: program, Unit: unit, Symbols: compiler.symbolTable.Variables()}, nil
}
