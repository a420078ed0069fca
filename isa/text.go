package isa

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Text assembly: one instruction per line, `//` starts a comment.
//
//	UNIT Hello
//	ROUTINE main 1
//		PUSH INT 14
//		STORE INT 0
//		OUTPUT
//		LOAD INT 0
//		PRINT INT
//		RETURN

// TextFileExt is the suffix of text assembly files.
const TextFileExt = ".kca"

type keyWordTP int

const (
	unitKeyWordTP keyWordTP = iota
	routineKeyWordTP
	pushKeyWordTP
	loadKeyWordTP
	storeKeyWordTP
	addKeyWordTP
	subKeyWordTP
	mulKeyWordTP
	divKeyWordTP
	ifKeyWordTP
	gotoKeyWordTP
	labelKeyWordTP
	outputKeyWordTP
	inputKeyWordTP
	printKeyWordTP
	readIntKeyWordTP
	readLineKeyWordTP
	returnKeyWordTP
	commentKeyWordTP
)

var keyWordsMap = map[string]keyWordTP{
	"UNIT":     unitKeyWordTP,
	"ROUTINE":  routineKeyWordTP,
	"PUSH":     pushKeyWordTP,
	"LOAD":     loadKeyWordTP,
	"STORE":    storeKeyWordTP,
	"ADD":      addKeyWordTP,
	"SUB":      subKeyWordTP,
	"MUL":      mulKeyWordTP,
	"DIV":      divKeyWordTP,
	"IF":       ifKeyWordTP,
	"GOTO":     gotoKeyWordTP,
	"LABEL":    labelKeyWordTP,
	"OUTPUT":   outputKeyWordTP,
	"INPUT":    inputKeyWordTP,
	"PRINT":    printKeyWordTP,
	"READINT":  readIntKeyWordTP,
	"READLINE": readLineKeyWordTP,
	"RETURN":   returnKeyWordTP,
	"//":       commentKeyWordTP,
}

var simpleOpcodes = map[keyWordTP]Opcode{
	addKeyWordTP:      OpAdd,
	subKeyWordTP:      OpSub,
	mulKeyWordTP:      OpMul,
	divKeyWordTP:      OpDiv,
	outputKeyWordTP:   OpOpenOutput,
	inputKeyWordTP:    OpOpenInput,
	readIntKeyWordTP:  OpReadInt,
	readLineKeyWordTP: OpReadLine,
	returnKeyWordTP:   OpReturn,
}

var kindsMap = map[string]Kind{"INT": Int, "REF": Ref}

var conditionsMap = map[string]Condition{"GT": GT, "LT": LT, "EQ": EQ, "NE": NE, "GE": GE, "LE": LE}

// Format renders unit as text assembly.
func Format(unit *Unit) string {
	bf := bytes.Buffer{}
	bf.WriteString(fmt.Sprintf("UNIT %s\n", unit.Name))
	for _, routine := range unit.Routines {
		bf.WriteString(fmt.Sprintf("ROUTINE %s %d\n", routine.Name, routine.Locals))
		for _, ins := range routine.Code {
			if ins.Op == OpLabel {
				bf.WriteString(ins.String() + "\n")
				continue
			}
			bf.WriteString("\t" + ins.String() + "\n")
		}
	}
	return bf.String()
}

type textParser struct {
	line    int
	unit    *Unit
	routine *Routine
}

// ParseText reads text assembly produced by Format or written by hand.
func ParseText(rd io.Reader) (*Unit, error) {
	parser := &textParser{}
	reader := bufio.NewReader(rd)
	for {
		line, err := reader.ReadBytes('\n')
		if err != nil && err != io.EOF {
			return nil, err
		}
		parser.line++
		if len(line) > 0 {
			if parseErr := parser.parseLine(line); parseErr != nil {
				return nil, parseErr
			}
		}
		if err == io.EOF {
			break
		}
	}
	if parser.unit == nil {
		return nil, errors.New("text assembly: missing UNIT header")
	}
	return parser.unit, nil
}

// getNextToken returns the first whitespace separated token of line and the remaining bytes.
func (parser *textParser) getNextToken(line []byte) (string, []byte) {
	line = bytes.TrimSpace(line)
	for i := 0; i < len(line); i++ {
		c := line[i]
		if c == ' ' || c == '\t' {
			return string(line[:i]), bytes.TrimSpace(line[i:])
		}
	}
	return string(line), nil
}

func (parser *textParser) parseLine(line []byte) (err error) {
	token, line := parser.getNextToken(line)
	if len(token) == 0 || strings.HasPrefix(token, "//") {
		return nil
	}
	keyWordTP, exist := keyWordsMap[strings.ToUpper(token)]
	if !exist {
		return parser.makeError("unknown instruction %s", token)
	}
	if keyWordTP == unitKeyWordTP {
		return parser.parseUnit(line)
	}
	if parser.unit == nil {
		return parser.makeError("instruction before UNIT header")
	}
	if keyWordTP == routineKeyWordTP {
		return parser.parseRoutine(line)
	}
	if parser.routine == nil {
		return parser.makeError("instruction outside of a routine")
	}
	if op, ok := simpleOpcodes[keyWordTP]; ok {
		return parser.emit(Op(op), line)
	}
	switch keyWordTP {
	case pushKeyWordTP:
		err = parser.parsePush(line)
	case loadKeyWordTP, storeKeyWordTP:
		err = parser.parseLoadOrStore(keyWordTP, line)
	case ifKeyWordTP:
		err = parser.parseIf(line)
	case gotoKeyWordTP:
		err = parser.parseJumpOrLabel(OpGoto, line)
	case labelKeyWordTP:
		err = parser.parseJumpOrLabel(OpLabel, line)
	case printKeyWordTP:
		err = parser.parsePrint(line)
	default:
		err = parser.makeError("unexpected %s", token)
	}
	return err
}

func (parser *textParser) parseUnit(line []byte) error {
	if parser.unit != nil {
		return parser.makeError("duplicate UNIT header")
	}
	name, rest := parser.getNextToken(line)
	if name == "" || len(rest) > 0 {
		return parser.makeError("UNIT expects exactly one name")
	}
	parser.unit = NewUnit(name)
	return nil
}

func (parser *textParser) parseRoutine(line []byte) error {
	name, rest := parser.getNextToken(line)
	if name == "" {
		return parser.makeError("ROUTINE expects a name")
	}
	locals, rest, err := parser.getIntegerValue(rest)
	if err != nil {
		return err
	}
	if locals < 0 {
		return parser.makeError("negative locals count %d", locals)
	}
	if len(rest) > 0 {
		return parser.makeError("unexpected %s", string(rest))
	}
	parser.routine = parser.unit.OpenRoutine(name)
	parser.routine.Locals = int(locals)
	return nil
}

func (parser *textParser) parsePush(line []byte) error {
	kind, rest := parser.getNextToken(line)
	switch strings.ToUpper(kind) {
	case "INT":
		value, rest, err := parser.getIntegerValue(rest)
		if err != nil {
			return err
		}
		return parser.emit(PushInt(value), rest)
	case "TEXT":
		text, err := strconv.Unquote(string(rest))
		if err != nil {
			return parser.makeError("bad text constant %s", string(rest))
		}
		return parser.emit(PushText(text), nil)
	}
	return parser.makeError("PUSH expects INT or TEXT, got %s", kind)
}

func (parser *textParser) parseLoadOrStore(keyWordTP keyWordTP, line []byte) error {
	kindToken, rest := parser.getNextToken(line)
	kind, ok := kindsMap[strings.ToUpper(kindToken)]
	if !ok {
		return parser.makeError("expect INT or REF, got %s", kindToken)
	}
	slot, rest, err := parser.getIntegerValue(rest)
	if err != nil {
		return err
	}
	if slot < 0 {
		return parser.makeError("negative slot %d", slot)
	}
	if keyWordTP == loadKeyWordTP {
		return parser.emit(Load(kind, int(slot)), rest)
	}
	return parser.emit(Store(kind, int(slot)), rest)
}

func (parser *textParser) parseIf(line []byte) error {
	condToken, rest := parser.getNextToken(line)
	cond, ok := conditionsMap[strings.ToUpper(condToken)]
	if !ok {
		return parser.makeError("unknown condition %s", condToken)
	}
	target, rest := parser.getNextToken(rest)
	if target == "" {
		return parser.makeError("IF expects a label")
	}
	return parser.emit(If(cond, Label(target)), rest)
}

func (parser *textParser) parseJumpOrLabel(op Opcode, line []byte) error {
	target, rest := parser.getNextToken(line)
	if target == "" {
		return parser.makeError("%s expects a label", op)
	}
	return parser.emit(Instruction{Op: op, Target: Label(target)}, rest)
}

func (parser *textParser) parsePrint(line []byte) error {
	kindToken, rest := parser.getNextToken(line)
	kind, ok := kindsMap[strings.ToUpper(kindToken)]
	if !ok {
		return parser.makeError("expect INT or REF, got %s", kindToken)
	}
	return parser.emit(Print(kind), rest)
}

func (parser *textParser) getIntegerValue(line []byte) (int32, []byte, error) {
	token, rest := parser.getNextToken(line)
	value, err := strconv.ParseInt(token, 10, 32)
	if err != nil {
		return 0, nil, parser.makeError("wrong integer format %s", token)
	}
	return int32(value), rest, nil
}

// emit appends ins to the current routine; rest must be empty or a comment.
func (parser *textParser) emit(ins Instruction, rest []byte) error {
	rest = bytes.TrimSpace(rest)
	if len(rest) > 0 && !bytes.HasPrefix(rest, []byte("//")) {
		return parser.makeError("unexpected %s", string(rest))
	}
	parser.routine.Emit(ins)
	return nil
}

func (parser *textParser) makeError(format string, args ...interface{}) error {
	return errors.Errorf("text assembly: syntax error at line %d: %s", parser.line, fmt.Sprintf(format, args...))
}
