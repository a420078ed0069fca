package internal

// In this file, we defined all ast of KnightCode according to its grammar. A KnightCode file holds exactly
// one program: a name, an optional declaration block and a body of statements.
//
// Statements and expressions are closed sets: the unexported marker methods keep other packages from
// adding variants, so a type switch over them only needs a default for the impossible case.

type ProgramAst struct {
	Name         string
	Declarations []*DeclarationAst
	Statements   []StatementAst
	Line         int
}

// DeclarationAst keeps the type spelling as written; the symbol table decides whether it is supported.
type DeclarationAst struct {
	TypeName string
	VarName  string
	Line     int
}

type StatementAst interface {
	GetLine() int
	statementNode()
}

type position struct {
	Line int
}

func (p position) GetLine() int {
	return p.Line
}

// SET name := value. Value is either an arithmetic expression or a *StringLiteralAst.
type SetStatementAst struct {
	position
	Target string
	Value  ExpressionAst
}

// PRINT value. Value is either an *IdentifierAst or a *StringLiteralAst.
type PrintStatementAst struct {
	position
	Value ExpressionAst
}

type ReadStatementAst struct {
	position
	Target string
}

type IncStatementAst struct {
	position
	Target string
	Value  ExpressionAst
}

// IF condition THEN statements [ELSE statements] ENDIF. ElseStatements is nil when there is no ELSE.
type IfStatementAst struct {
	position
	Condition        *ConditionAst
	IfTrueStatements []StatementAst
	ElseStatements   []StatementAst
}

type WhileStatementAst struct {
	position
	Condition  *ConditionAst
	Statements []StatementAst
}

func (*SetStatementAst) statementNode()   {}
func (*PrintStatementAst) statementNode() {}
func (*ReadStatementAst) statementNode()  {}
func (*IncStatementAst) statementNode()   {}
func (*IfStatementAst) statementNode()    {}
func (*WhileStatementAst) statementNode() {}

// ConditionAst is the two operand comparison that controls IF and WHILE.
type ConditionAst struct {
	position
	Left       OperandAst
	Comparator string
	Right      OperandAst
}

type ExpressionAst interface {
	GetLine() int
	expressionNode()
}

// OperandAst is an expression allowed on either side of a condition: a number or an identifier.
type OperandAst interface {
	ExpressionAst
	operandNode()
}

type NumberLiteralAst struct {
	position
	Value int32
}

// StringLiteralAst keeps the quotes of the source text.
type StringLiteralAst struct {
	position
	Raw string
}

type IdentifierAst struct {
	position
	Name string
}

type SubExpressionAst struct {
	position
	Inner ExpressionAst
}

type BinaryExpressionAst struct {
	position
	Op    OpType
	Left  ExpressionAst
	Right ExpressionAst
}

// ComparisonAst is a comparison used as a value: 1 when it holds, 0 otherwise.
type ComparisonAst struct {
	position
	Comparator string
	Left       ExpressionAst
	Right      ExpressionAst
}

func (*NumberLiteralAst) expressionNode()    {}
func (*StringLiteralAst) expressionNode()    {}
func (*IdentifierAst) expressionNode()       {}
func (*SubExpressionAst) expressionNode()    {}
func (*BinaryExpressionAst) expressionNode() {}
func (*ComparisonAst) expressionNode()       {}

func (*NumberLiteralAst) operandNode() {}
func (*IdentifierAst) operandNode()    {}

type OpType int

const (
	AddOpTP OpType = iota
	MinusOpTP
	MultipleOpTP
	DivideOpTP
	CompareOpTP
)

func (op OpType) String() string {
	switch op {
	case AddOpTP:
		return "+"
	case MinusOpTP:
		return "-"
	case MultipleOpTP:
		return "*"
	case DivideOpTP:
		return "/"
	}
	return "compare"
}

// OpAst is a binary operator seen by the parser. Comparator is set for CompareOpTP only.
type OpAst struct {
	Op         OpType
	Comparator string
	priority   int
}

// * and / bind tighter than + and -, which bind tighter than the comparisons. Operators of the same
// priority associate to the left.
var (
	MultipleOpAst = OpAst{Op: MultipleOpTP, priority: 2}
	DivideOpAst   = OpAst{Op: DivideOpTP, priority: 2}
	AddOpAst      = OpAst{Op: AddOpTP, priority: 1}
	MinusOpAst    = OpAst{Op: MinusOpTP, priority: 1}
)

func makeCompareOpAst(comparator string) *OpAst {
	return &OpAst{Op: CompareOpTP, Comparator: comparator, priority: 0}
}
