package internal

// Expressions are parsed as a flat list of terms separated by operators, then folded into a tree by
// precedence climbing: * and / first, then + and -, then the comparisons, each level left to right.
// For example: 1 + a * 2 - 3 > b
//
//                      >
//                    /   \
//                   -     b
//                 /   \
//                +     3
//              /   \
//             1     *
//                 /   \
//                a     2

func buildExpressionsTree(ops []*OpAst, exprTerms []ExpressionAst) ExpressionAst {
	if len(ops) == 0 {
		return exprTerms[0]
	}
	terms := make([]ExpressionAst, len(exprTerms))
	copy(terms, exprTerms)
	ret, _ := buildExpressionsTree0(ops, terms, 0, 0)
	return ret
}

// buildExpressionsTree0 folds the terms starting at loc while the operators bind at least as tight as
// minPriority. It returns the folded expression and the index of the first operator not consumed.
func buildExpressionsTree0(ops []*OpAst, exprTerms []ExpressionAst, loc int, minPriority int) (ExpressionAst, int) {
	lhs := exprTerms[loc]
	i := loc
	for i < len(ops) && ops[i].priority >= minPriority {
		op := ops[i]
		rhs := exprTerms[i+1]
		j := i + 1
		for j < len(ops) && ops[j].priority > op.priority {
			rhs, j = buildExpressionsTree0(ops, exprTerms, j, ops[j].priority)
		}
		lhs = makeNewExpression(lhs, rhs, op)
		exprTerms[j] = lhs
		i = j
	}
	return lhs, i
}

func makeNewExpression(leftExpr ExpressionAst, rightExpr ExpressionAst, op *OpAst) ExpressionAst {
	pos := position{Line: leftExpr.GetLine()}
	if op.Op == CompareOpTP {
		return &ComparisonAst{position: pos, Comparator: op.Comparator, Left: leftExpr, Right: rightExpr}
	}
	return &BinaryExpressionAst{position: pos, Op: op.Op, Left: leftExpr, Right: rightExpr}
}

func (parser *Parser) parseExpression() (ExpressionAst, error) {
	leftExprTerm, err := parser.parseExpressionTerm()
	if err != nil {
		return nil, err
	}
	var ops []*OpAst
	exprTerms := []ExpressionAst{leftExprTerm}
	for parser.matchOp() {
		op, err := parser.parseOpAst()
		if err != nil {
			return nil, err
		}
		exprTerm, err := parser.parseExpressionTerm()
		if err != nil {
			return nil, err
		}
		ops = append(ops, op)
		exprTerms = append(exprTerms, exprTerm)
	}
	return buildExpressionsTree(ops, exprTerms), nil
}

func (parser *Parser) parseExpressionTerm() (ExpressionAst, error) {
	token, err := parser.getCurrentToken()
	if err != nil {
		return nil, err
	}
	switch token.tp {
	case NumberTP:
		return parser.parseNumber()
	case IdentifierTP:
		parser.stepForward()
		return &IdentifierAst{position: position{Line: token.line}, Name: token.content}, nil
	case LeftParentThesesTP:
		return parser.parseSubExpressionTerm()
	}
	return nil, parser.makeError(true)
}

func (parser *Parser) parseSubExpressionTerm() (ExpressionAst, error) {
	leftToken, match := parser.expectToken(LeftParentThesesTP, true)
	if !match {
		return nil, parser.makeError(true)
	}
	expr, err := parser.parseExpression()
	if err != nil {
		return nil, err
	}
	_, match = parser.expectToken(RightParentThesesTP, true)
	if !match {
		return nil, parser.makeError(true)
	}
	return &SubExpressionAst{position: position{Line: leftToken.line}, Inner: expr}, nil
}

func (parser *Parser) parseOpAst() (*OpAst, error) {
	token, err := parser.getCurrentToken()
	if err != nil {
		return nil, err
	}
	var op *OpAst
	switch token.tp {
	case AddTP:
		op = &AddOpAst
	case MinusTP:
		op = &MinusOpAst
	case MultiplyTP:
		op = &MultipleOpAst
	case DivideTP:
		op = &DivideOpAst
	case GreaterTP, LessTP, EqualTP, NotEqualTP:
		op = makeCompareOpAst(token.content)
	default:
		return nil, parser.makeError(true)
	}
	parser.stepForward()
	return op, nil
}

func (parser *Parser) matchOp() bool {
	if !parser.hasRemainTokens() {
		return false
	}
	token, _ := parser.getCurrentToken()
	switch token.tp {
	case AddTP, MinusTP, MultiplyTP, DivideTP, GreaterTP, LessTP, EqualTP, NotEqualTP:
		return true
	default:
		return false
	}
}
