package internal

import (
	"github.com/pkg/errors"
	"github.com/xiaobogaga/knightcode/isa"
)

// Polarity tells the condition compiler whether to branch when the comparison holds or when it fails.
type Polarity int

const (
	BranchIfHolds Polarity = iota
	BranchIfFails
)

var comparatorConditionMap = map[string]isa.Condition{
	">":  isa.GT,
	"<":  isa.LT,
	"=":  isa.EQ,
	"<>": isa.NE,
}

func comparatorCondition(comparator string, polarity Polarity, line int) (isa.Condition, error) {
	cond, exist := comparatorConditionMap[comparator]
	if !exist {
		return 0, makeSemanticError(ErrUnknownComparator, comparator, line)
	}
	if polarity == BranchIfFails {
		return cond.Negate(), nil
	}
	return cond, nil
}

// stripQuotes drops exactly one leading and one trailing character of a string literal.
func stripQuotes(raw string) string {
	if len(raw) < 2 {
		return ""
	}
	return raw[1 : len(raw)-1]
}

// unitCompiler holds the state of compiling one program: the unit being filled, the symbol table and the
// memory pointer, which is the next free local slot.
type unitCompiler struct {
	unit          *isa.Unit
	routine       *isa.Routine
	symbolTable   *SymbolTable
	memoryPointer int
	labels        isa.LabelAllocator
}

func newUnitCompiler() *unitCompiler {
	return &unitCompiler{symbolTable: NewSymbolTable()}
}

func (compiler *unitCompiler) writeOutput(instructions ...isa.Instruction) {
	compiler.routine.Emit(instructions...)
}

// allocateSlot reserves the next local slot.
func (compiler *unitCompiler) allocateSlot() int {
	slot := compiler.memoryPointer
	compiler.memoryPointer++
	return slot
}

// generateExpressionCode leaves the value of expr on top of the stack. A post order traversal is enough.
func (compiler *unitCompiler) generateExpressionCode(expr ExpressionAst) error {
	switch expr := expr.(type) {
	case *NumberLiteralAst:
		compiler.writeOutput(isa.PushInt(expr.Value))
	case *StringLiteralAst:
		compiler.writeOutput(isa.PushText(stripQuotes(expr.Raw)))
	case *IdentifierAst:
		variable, err := compiler.symbolTable.Lookup(expr.Name, expr.Line)
		if err != nil {
			return err
		}
		compiler.writeOutput(isa.Load(variable.Type.Kind(), variable.Slot))
	case *SubExpressionAst:
		return compiler.generateExpressionCode(expr.Inner)
	case *BinaryExpressionAst:
		return compiler.generateBinaryExpressionCode(expr)
	case *ComparisonAst:
		return compiler.generateComparisonValueCode(expr)
	default:
		return errors.Wrapf(ErrInternal, "unknown expression %T", expr)
	}
	return nil
}

var arithmeticOpcodeMap = map[OpType]isa.Opcode{
	AddOpTP:      isa.OpAdd,
	MinusOpTP:    isa.OpSub,
	MultipleOpTP: isa.OpMul,
	DivideOpTP:   isa.OpDiv,
}

func (compiler *unitCompiler) generateBinaryExpressionCode(expr *BinaryExpressionAst) error {
	opcode, exist := arithmeticOpcodeMap[expr.Op]
	if !exist {
		return errors.Wrapf(ErrInternal, "unknown arithmetic operator %s", expr.Op)
	}
	err := compiler.generateExpressionCode(expr.Left)
	if err != nil {
		return err
	}
	err = compiler.generateExpressionCode(expr.Right)
	if err != nil {
		return err
	}
	compiler.writeOutput(isa.Op(opcode))
	return nil
}

// A comparison used as a value:
// left, right
// IF <cond> true_label
// PUSH 0
// GOTO end_label
// LABEL true_label
// PUSH 1
// LABEL end_label
func (compiler *unitCompiler) generateComparisonValueCode(expr *ComparisonAst) error {
	cond, err := comparatorCondition(expr.Comparator, BranchIfHolds, expr.Line)
	if err != nil {
		return err
	}
	err = compiler.generateExpressionCode(expr.Left)
	if err != nil {
		return err
	}
	err = compiler.generateExpressionCode(expr.Right)
	if err != nil {
		return err
	}
	trueLabel, endLabel := compiler.labels.New("cmp_true"), compiler.labels.New("cmp_end")
	compiler.writeOutput(
		isa.If(cond, trueLabel),
		isa.PushInt(0),
		isa.Goto(endLabel),
		isa.Mark(trueLabel),
		isa.PushInt(1),
		isa.Mark(endLabel),
	)
	return nil
}

// generateConditionCode pushes both operands as integers and branches to target according to polarity.
func (compiler *unitCompiler) generateConditionCode(condition *ConditionAst, polarity Polarity, target isa.Label) error {
	cond, err := comparatorCondition(condition.Comparator, polarity, condition.Line)
	if err != nil {
		return err
	}
	for _, operand := range []OperandAst{condition.Left, condition.Right} {
		err = compiler.generateOperandCode(operand)
		if err != nil {
			return err
		}
	}
	compiler.writeOutput(isa.If(cond, target))
	return nil
}

func (compiler *unitCompiler) generateOperandCode(operand OperandAst) error {
	switch operand := operand.(type) {
	case *NumberLiteralAst:
		compiler.writeOutput(isa.PushInt(operand.Value))
	case *IdentifierAst:
		variable, err := compiler.symbolTable.Lookup(operand.Name, operand.Line)
		if err != nil {
			return err
		}
		compiler.writeOutput(isa.Load(isa.Int, variable.Slot))
	default:
		return errors.Wrapf(ErrInternal, "unknown operand %T", operand)
	}
	return nil
}

func (compiler *unitCompiler) generateStatementsCode(statements []StatementAst) error {
	for _, stm := range statements {
		err := compiler.generateStatementCode(stm)
		if err != nil {
			return err
		}
	}
	return nil
}

func (compiler *unitCompiler) generateStatementCode(statement StatementAst) error {
	switch stm := statement.(type) {
	case *SetStatementAst:
		return compiler.generateSetStatementCode(stm)
	case *PrintStatementAst:
		return compiler.generatePrintStatementCode(stm)
	case *ReadStatementAst:
		return compiler.generateReadStatementCode(stm)
	case *IncStatementAst:
		return compiler.generateIncStatementCode(stm)
	case *IfStatementAst:
		return compiler.generateIfStatementCode(stm)
	case *WhileStatementAst:
		return compiler.generateWhileStatementCode(stm)
	}
	return errors.Wrapf(ErrInternal, "unknown statement %T", statement)
}

// SET name := expression stores with the flavour of the variable's type, SET name := "text" always
// stores a reference.
func (compiler *unitCompiler) generateSetStatementCode(stm *SetStatementAst) error {
	variable, err := compiler.symbolTable.Lookup(stm.Target, stm.Line)
	if err != nil {
		return err
	}
	if text, ok := stm.Value.(*StringLiteralAst); ok {
		compiler.writeOutput(isa.PushText(stripQuotes(text.Raw)), isa.Store(isa.Ref, variable.Slot))
		return nil
	}
	err = compiler.generateExpressionCode(stm.Value)
	if err != nil {
		return err
	}
	compiler.writeOutput(isa.Store(variable.Type.Kind(), variable.Slot))
	return nil
}

// OUTPUT
// value
// PRINT INT|REF
func (compiler *unitCompiler) generatePrintStatementCode(stm *PrintStatementAst) error {
	switch value := stm.Value.(type) {
	case *IdentifierAst:
		variable, err := compiler.symbolTable.Lookup(value.Name, value.Line)
		if err != nil {
			return err
		}
		compiler.writeOutput(
			isa.Op(isa.OpOpenOutput),
			isa.Load(variable.Type.Kind(), variable.Slot),
			isa.Print(variable.Type.Kind()),
		)
	case *StringLiteralAst:
		compiler.writeOutput(isa.Op(isa.OpOpenOutput), isa.PushText(stripQuotes(value.Raw)), isa.Print(isa.Ref))
	default:
		return errors.Wrapf(ErrInternal, "cannot print %T", stm.Value)
	}
	return nil
}

// Every READ opens its own input handle in a fresh slot; the slot is never reused.
// INPUT
// STORE REF handle
// LOAD REF handle
// READINT|READLINE
// STORE INT|REF variable
func (compiler *unitCompiler) generateReadStatementCode(stm *ReadStatementAst) error {
	variable, err := compiler.symbolTable.Lookup(stm.Target, stm.Line)
	if err != nil {
		return err
	}
	handleSlot := compiler.allocateSlot()
	readOp := isa.OpReadInt
	if variable.Type == TextVariableType {
		readOp = isa.OpReadLine
	}
	compiler.writeOutput(
		isa.Op(isa.OpOpenInput),
		isa.Store(isa.Ref, handleSlot),
		isa.Load(isa.Ref, handleSlot),
		isa.Op(readOp),
		isa.Store(variable.Type.Kind(), variable.Slot),
	)
	return nil
}

func (compiler *unitCompiler) generateIncStatementCode(stm *IncStatementAst) error {
	variable, err := compiler.symbolTable.Lookup(stm.Target, stm.Line)
	if err != nil {
		return err
	}
	err = compiler.generateExpressionCode(stm.Value)
	if err != nil {
		return err
	}
	compiler.writeOutput(isa.Store(isa.Int, variable.Slot))
	return nil
}

// condition IF <cond> then_label
// else statements
// GOTO end_label
// LABEL then_label
// then statements
// LABEL end_label
// The GOTO is emitted even without an ELSE, so both paths always meet at end_label.
func (compiler *unitCompiler) generateIfStatementCode(stm *IfStatementAst) error {
	thenLabel, endLabel := compiler.labels.New("if_then"), compiler.labels.New("if_end")
	err := compiler.generateConditionCode(stm.Condition, BranchIfHolds, thenLabel)
	if err != nil {
		return err
	}
	err = compiler.generateStatementsCode(stm.ElseStatements)
	if err != nil {
		return err
	}
	compiler.writeOutput(isa.Goto(endLabel), isa.Mark(thenLabel))
	err = compiler.generateStatementsCode(stm.IfTrueStatements)
	if err != nil {
		return err
	}
	compiler.writeOutput(isa.Mark(endLabel))
	return nil
}

// LABEL begin_label
// condition IF <negated cond> exit_label
// statements
// GOTO begin_label
// LABEL exit_label
func (compiler *unitCompiler) generateWhileStatementCode(stm *WhileStatementAst) error {
	beginLabel, exitLabel := compiler.labels.New("while_begin"), compiler.labels.New("while_exit")
	compiler.writeOutput(isa.Mark(beginLabel))
	err := compiler.generateConditionCode(stm.Condition, BranchIfFails, exitLabel)
	if err != nil {
		return err
	}
	err = compiler.generateStatementsCode(stm.Statements)
	if err != nil {
		return err
	}
	compiler.writeOutput(isa.Goto(beginLabel), isa.Mark(exitLabel))
	return nil
}

// compileProgram runs the declaration block and then the statements of program into a new unit.
func (compiler *unitCompiler) compileProgram(program *ProgramAst) (*isa.Unit, error) {
	compiler.unit = isa.NewUnit(program.Name)
	compiler.memoryPointer = 0
	for _, declaration := range program.Declarations {
		_, err := compiler.symbolTable.Declare(declaration.VarName, declaration.TypeName,
			compiler.memoryPointer, declaration.Line)
		if err != nil {
			return nil, err
		}
		compiler.memoryPointer++
	}
	compiler.routine = compiler.unit.OpenRoutine(isa.EntryRoutine)
	err := compiler.generateStatementsCode(program.Statements)
	if err != nil {
		return nil, err
	}
	compiler.routine.Close(compiler.memoryPointer)
	return compiler.unit, nil
}
