package internal

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kinds of semantic errors. They are all fatal: compilation stops and no unit is produced. Use errors.Is
// to test the kind of an error returned by the compiler.
var (
	ErrUndeclaredVariable   = errors.New("undeclared variable")
	ErrDuplicateDeclaration = errors.New("duplicate declaration")
	ErrUnsupportedType      = errors.New("unsupported type")
	ErrUnknownComparator    = errors.New("unknown comparator")
	ErrInternal             = errors.New("internal compiler error")
)

type SemanticError struct {
	Kind    error
	Subject string
	Line    int
}

func (e *SemanticError) Error() string {
	return fmt.Sprintf("semantic error at line %d: %s %s", e.Line, e.Kind, e.Subject)
}

func (e *SemanticError) Unwrap() error {
	return e.Kind
}

func makeSemanticError(kind error, subject string, line int) error {
	return &SemanticError{Kind: kind, Subject: subject, Line: line}
}
