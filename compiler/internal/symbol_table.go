package internal

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/xiaobogaga/knightcode/isa"
)

type VariableType int

const (
	IntegerVariableType VariableType = iota
	TextVariableType
)

// variableTypeMap maps the type spellings accepted in a declaration block.
var variableTypeMap = map[string]VariableType{
	"INTEGER": IntegerVariableType,
	"STRING":  TextVariableType,
}

func (t VariableType) String() string {
	if t == TextVariableType {
		return "STRING"
	}
	return "INTEGER"
}

// Kind is the load and store flavour used for variables of type t.
func (t VariableType) Kind() isa.Kind {
	if t == TextVariableType {
		return isa.Ref
	}
	return isa.Int
}

// Variable is a declared name and the local slot that holds its value.
type Variable struct {
	Name string
	Type VariableType
	Slot int
	Line int
}

// SymbolTable maps names to variables for one program. There is one flat scope, filled by the declaration
// block and read-only afterwards.
type SymbolTable struct {
	variables map[string]*Variable
	ordered   []*Variable
}

func NewSymbolTable() *SymbolTable {
	return &SymbolTable{variables: map[string]*Variable{}}
}

// Declare adds name with the spelled type at slot.
func (symbolTable *SymbolTable) Declare(name string, typeName string, slot int, line int) (*Variable, error) {
	tp, supported := variableTypeMap[typeName]
	if !supported {
		return nil, makeSemanticError(ErrUnsupportedType, fmt.Sprintf("%s of %s", typeName, name), line)
	}
	if previous, exist := symbolTable.variables[name]; exist {
		return nil, makeSemanticError(ErrDuplicateDeclaration,
			fmt.Sprintf("%s (first declared at line %d)", name, previous.Line), line)
	}
	variable := &Variable{Name: name, Type: tp, Slot: slot, Line: line}
	symbolTable.variables[name] = variable
	symbolTable.ordered = append(symbolTable.ordered, variable)
	return variable, nil
}

func (symbolTable *SymbolTable) Lookup(name string, line int) (*Variable, error) {
	variable, exist := symbolTable.variables[name]
	if !exist {
		return nil, makeSemanticError(ErrUndeclaredVariable, name, line)
	}
	return variable, nil
}

// Variables returns the declared variables in declaration order.
func (symbolTable *SymbolTable) Variables() []*Variable {
	ret := make([]*Variable, len(symbolTable.ordered))
	copy(ret, symbolTable.ordered)
	return ret
}

func (symbolTable *SymbolTable) Len() int {
	return len(symbolTable.ordered)
}

// SymbolListing renders variables as a table.
func SymbolListing(programName string, variables []*Variable) string {
	symbolTable := table.NewWriter()
	symbolTable.SetTitle(fmt.Sprintf("Symbol table of %s", programName))
	symbolTable.AppendHeader(table.Row{"Name", "Type", "Slot", "Line"})
	for _, variable := range variables {
		symbolTable.AppendRow(table.Row{variable.Name, variable.Type, variable.Slot, variable.Line})
	}
	return symbolTable.Render()
}
