package machine

import "strconv"

type valueKind byte

const (
	nullValue valueKind = iota
	intValue
	textValue
	outputHandle
	inputHandle
)

// Value is the content of an operand stack entry or a local slot.
type Value struct {
	kind valueKind
	i    int32
	s    string
}

func IntValue(i int32) Value {
	return Value{kind: intValue, i: i}
}

func TextValue(s string) Value {
	return Value{kind: textValue, s: s}
}

func (v Value) IsNull() bool {
	return v.kind == nullValue
}

// Int returns the integer held by v.
func (v Value) Int() (int32, bool) {
	return v.i, v.kind == intValue
}

func (v Value) String() string {
	switch v.kind {
	case intValue:
		return strconv.Itoa(int(v.i))
	case textValue:
		return v.s
	case outputHandle:
		return "<output>"
	case inputHandle:
		return "<input>"
	}
	return "null"
}
