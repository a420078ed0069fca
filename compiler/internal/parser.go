package internal

import (
	"io"
	"os"
	"strconv"

	"github.com/pkg/errors"
)

type Parser struct {
	currentTokenPos int
	currentTokens   []*Token
}

func (parser *Parser) reset() {
	parser.currentTokenPos, parser.currentTokens = 0, nil
}

func (parser *Parser) ParseFile(fileName string) (*ProgramAst, error) {
	rd, err := os.Open(fileName)
	if err != nil {
		return nil, err
	}
	defer rd.Close()
	return parser.Parse(rd)
}

func (parser *Parser) Parse(rd io.Reader) (*ProgramAst, error) {
	parser.reset()
	tokenizer := &Tokenizer{}
	tokens, err := tokenizer.Tokenize(rd)
	if err != nil {
		return nil, err
	}
	parser.currentTokens = tokens
	return parser.ParseProgram()
}

// PROGRAM name
// [DECLARE type name ...]
// BEGIN statements END
func (parser *Parser) ParseProgram() (*ProgramAst, error) {
	programToken, match := parser.expectToken(ProgramTP, true)
	if !match {
		return nil, parser.makeError(true)
	}
	nameToken, match := parser.expectToken(IdentifierTP, true)
	if !match {
		return nil, parser.makeError(true)
	}
	program := &ProgramAst{Name: nameToken.content, Line: programToken.line}

	_, match = parser.expectToken(DeclareTP, false)
	if match {
		declarations, err := parser.parseDeclarations()
		if err != nil {
			return nil, err
		}
		program.Declarations = declarations
	}

	_, match = parser.expectToken(BeginTP, true)
	if !match {
		return nil, parser.makeError(true)
	}
	statements, err := parser.parseStatements(EndTP)
	if err != nil {
		return nil, err
	}
	program.Statements = statements
	_, match = parser.expectToken(EndTP, true)
	if !match {
		return nil, parser.makeError(true)
	}
	// Nothing may follow END.
	if parser.hasRemainTokens() {
		return nil, parser.makeError(true)
	}
	return program, nil
}

// DECLARE INTEGER a STRING b ...
// Any identifier is accepted as a type here, the symbol table rejects the unsupported ones.
func (parser *Parser) parseDeclarations() (declarations []*DeclarationAst, err error) {
	_, match := parser.expectToken(DeclareTP, true)
	if !match {
		return nil, parser.makeError(false)
	}
	for parser.hasRemainTokens() {
		token, _ := parser.getCurrentToken()
		if token.tp == BeginTP {
			break
		}
		declaration, err := parser.parseVariableDeclaration()
		if err != nil {
			return nil, err
		}
		declarations = append(declarations, declaration)
	}
	if len(declarations) == 0 {
		return nil, parser.makeError(true)
	}
	return
}

func (parser *Parser) parseVariableDeclaration() (*DeclarationAst, error) {
	typeToken, err := parser.getCurrentToken()
	if err != nil {
		return nil, err
	}
	switch typeToken.tp {
	case IntegerTypeTP, StringTypeTP, IdentifierTP:
	default:
		return nil, parser.makeError(true)
	}
	parser.stepForward()
	nameToken, match := parser.expectToken(IdentifierTP, true)
	if !match {
		return nil, parser.makeError(true)
	}
	return &DeclarationAst{TypeName: typeToken.content, VarName: nameToken.content, Line: typeToken.line}, nil
}

func (parser *Parser) getCurrentToken() (*Token, error) {
	if !parser.hasRemainTokens() {
		return nil, parser.makeError(true)
	}
	return parser.currentTokens[parser.currentTokenPos], nil
}

func (parser *Parser) stepForward() {
	parser.currentTokenPos++
}

func (parser *Parser) hasRemainTokens() bool {
	return parser.currentTokenPos < len(parser.currentTokens)
}

// parseStatements parses statements until one of terminators is the current token. The terminator is not
// consumed.
func (parser *Parser) parseStatements(terminators ...TokenType) (stms []StatementAst, err error) {
	for parser.hasRemainTokens() {
		if parser.matchAny(terminators...) {
			return
		}
		stm, err := parser.parseStatement()
		if err != nil {
			return nil, err
		}
		stms = append(stms, stm)
	}
	return nil, parser.makeError(true)
}

// parseNonEmptyStatements is parseStatements for blocks that need at least one statement.
func (parser *Parser) parseNonEmptyStatements(terminators ...TokenType) ([]StatementAst, error) {
	stms, err := parser.parseStatements(terminators...)
	if err != nil {
		return nil, err
	}
	if len(stms) == 0 {
		return nil, parser.makeError(true)
	}
	return stms, nil
}

func (parser *Parser) parseStatement() (stm StatementAst, err error) {
	token, err := parser.getCurrentToken()
	if err != nil {
		return nil, err
	}
	switch token.tp {
	case SetTP:
		stm, err = parser.parseSetStatement()
	case PrintTP:
		stm, err = parser.parsePrintStatement()
	case ReadTP:
		stm, err = parser.parseReadStatement()
	case IfTP:
		stm, err = parser.parseIfStatement()
	case WhileTP:
		stm, err = parser.parseWhileStatement()
	case IncTP:
		stm, err = parser.parseIncStatement()
	default:
		err = parser.makeError(true)
	}
	return
}

// SET a := expression | SET a := "text"
func (parser *Parser) parseSetStatement() (StatementAst, error) {
	setToken, _ := parser.expectToken(SetTP, true)
	target, match := parser.expectToken(IdentifierTP, true)
	if !match {
		return nil, parser.makeError(true)
	}
	_, match = parser.expectToken(AssignTP, true)
	if !match {
		return nil, parser.makeError(true)
	}
	stm := &SetStatementAst{position: position{Line: setToken.line}, Target: target.content}
	textToken, match := parser.expectToken(StringTP, true)
	if match {
		stm.Value = &StringLiteralAst{position: position{Line: textToken.line}, Raw: textToken.content}
		return stm, nil
	}
	value, err := parser.parseExpression()
	if err != nil {
		return nil, err
	}
	stm.Value = value
	return stm, nil
}

// PRINT a | PRINT "text"
func (parser *Parser) parsePrintStatement() (StatementAst, error) {
	printToken, _ := parser.expectToken(PrintTP, true)
	token, err := parser.getCurrentToken()
	if err != nil {
		return nil, err
	}
	stm := &PrintStatementAst{position: position{Line: printToken.line}}
	switch token.tp {
	case IdentifierTP:
		stm.Value = &IdentifierAst{position: position{Line: token.line}, Name: token.content}
	case StringTP:
		stm.Value = &StringLiteralAst{position: position{Line: token.line}, Raw: token.content}
	default:
		return nil, parser.makeError(true)
	}
	parser.stepForward()
	return stm, nil
}

func (parser *Parser) parseReadStatement() (StatementAst, error) {
	readToken, _ := parser.expectToken(ReadTP, true)
	target, match := parser.expectToken(IdentifierTP, true)
	if !match {
		return nil, parser.makeError(true)
	}
	return &ReadStatementAst{position: position{Line: readToken.line}, Target: target.content}, nil
}

// INC a := expression
func (parser *Parser) parseIncStatement() (StatementAst, error) {
	incToken, _ := parser.expectToken(IncTP, true)
	target, match := parser.expectToken(IdentifierTP, true)
	if !match {
		return nil, parser.makeError(true)
	}
	_, match = parser.expectToken(AssignTP, true)
	if !match {
		return nil, parser.makeError(true)
	}
	value, err := parser.parseExpression()
	if err != nil {
		return nil, err
	}
	return &IncStatementAst{position: position{Line: incToken.line}, Target: target.content, Value: value}, nil
}

// IF operand comparator operand THEN statements [ELSE statements] ENDIF
func (parser *Parser) parseIfStatement() (StatementAst, error) {
	ifToken, _ := parser.expectToken(IfTP, true)
	condition, err := parser.parseCondition()
	if err != nil {
		return nil, err
	}
	_, match := parser.expectToken(ThenTP, true)
	if !match {
		return nil, parser.makeError(true)
	}
	ifTrueStatements, err := parser.parseNonEmptyStatements(ElseTP, EndIfTP)
	if err != nil {
		return nil, err
	}
	stm := &IfStatementAst{
		position:         position{Line: ifToken.line},
		Condition:        condition,
		IfTrueStatements: ifTrueStatements,
	}
	_, match = parser.expectToken(ElseTP, true)
	if match {
		stm.ElseStatements, err = parser.parseNonEmptyStatements(EndIfTP)
		if err != nil {
			return nil, err
		}
	}
	_, match = parser.expectToken(EndIfTP, true)
	if !match {
		return nil, parser.makeError(true)
	}
	return stm, nil
}

// WHILE operand comparator operand DO statements ENDWHILE
func (parser *Parser) parseWhileStatement() (StatementAst, error) {
	whileToken, _ := parser.expectToken(WhileTP, true)
	condition, err := parser.parseCondition()
	if err != nil {
		return nil, err
	}
	_, match := parser.expectToken(DoTP, true)
	if !match {
		return nil, parser.makeError(true)
	}
	statements, err := parser.parseNonEmptyStatements(EndWhileTP)
	if err != nil {
		return nil, err
	}
	_, match = parser.expectToken(EndWhileTP, true)
	if !match {
		return nil, parser.makeError(true)
	}
	return &WhileStatementAst{
		position:   position{Line: whileToken.line},
		Condition:  condition,
		Statements: statements,
	}, nil
}

func (parser *Parser) parseCondition() (*ConditionAst, error) {
	left, err := parser.parseOperand()
	if err != nil {
		return nil, err
	}
	comparatorToken, err := parser.getCurrentToken()
	if err != nil {
		return nil, err
	}
	if !isComparatorToken(comparatorToken.tp) {
		return nil, parser.makeError(true)
	}
	parser.stepForward()
	right, err := parser.parseOperand()
	if err != nil {
		return nil, err
	}
	return &ConditionAst{
		position:   position{Line: left.GetLine()},
		Left:       left,
		Comparator: comparatorToken.content,
		Right:      right,
	}, nil
}

func (parser *Parser) parseOperand() (OperandAst, error) {
	token, err := parser.getCurrentToken()
	if err != nil {
		return nil, err
	}
	switch token.tp {
	case IdentifierTP:
		parser.stepForward()
		return &IdentifierAst{position: position{Line: token.line}, Name: token.content}, nil
	case NumberTP:
		return parser.parseNumber()
	}
	return nil, parser.makeError(true)
}

func (parser *Parser) parseNumber() (*NumberLiteralAst, error) {
	token, match := parser.expectToken(NumberTP, false)
	if !match {
		return nil, parser.makeError(true)
	}
	value, err := strconv.ParseInt(token.content, 10, 32)
	if err != nil {
		return nil, errors.Errorf("syntax error near %s at line %d: number out of range", token.content, token.line)
	}
	parser.stepForward()
	return &NumberLiteralAst{position: position{Line: token.line}, Value: int32(value)}, nil
}

func isComparatorToken(tp TokenType) bool {
	return tp == GreaterTP || tp == LessTP || tp == EqualTP || tp == NotEqualTP
}

func (parser *Parser) matchAny(expectedTokenTPs ...TokenType) bool {
	for _, tokenType := range expectedTokenTPs {
		if _, match := parser.expectToken(tokenType, false); match {
			return true
		}
	}
	return false
}

func (parser *Parser) expectToken(expectedTokenTp TokenType, walk bool) (*Token, bool) {
	if parser.currentTokenPos >= len(parser.currentTokens) || parser.currentTokens[parser.currentTokenPos].tp !=
		expectedTokenTp {
		return nil, false
	}
	token := parser.currentTokens[parser.currentTokenPos]
	if walk {
		parser.currentTokenPos++
	}
	return token, true
}

func (parser *Parser) makeError(useCurrentPos bool) error {
	currentPos := parser.currentTokenPos
	if !useCurrentPos {
		currentPos--
	}
	if currentPos < 0 || currentPos >= len(parser.currentTokens) {
		return errors.New("syntax error: unexpected end of program")
	}
	currentToken := parser.currentTokens[currentPos]
	return errors.Errorf("syntax error near %s at line %d", currentToken.content, currentToken.line)
}
