package assembler

import (
	"bytes"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/xiaobogaga/knightcode/isa"
)

func makeUnit(locals int, code ...isa.Instruction) *isa.Unit {
	unit := isa.NewUnit("Test")
	routine := unit.OpenRoutine(isa.EntryRoutine)
	routine.Emit(code...)
	routine.Close(locals)
	return unit
}

// comparisonAsValue stores (x > 3) into slot 1.
func comparisonAsValue() *isa.Unit {
	return makeUnit(2,
		isa.Load(isa.Int, 0),
		isa.PushInt(3),
		isa.If(isa.GT, "true_0"),
		isa.PushInt(0),
		isa.Goto("end_1"),
		isa.Mark("true_0"),
		isa.PushInt(1),
		isa.Mark("end_1"),
		isa.Store(isa.Int, 1),
	)
}

func TestAssembler_ResolveLabels(t *testing.T) {
	module, err := Assemble(comparisonAsValue())
	assert.Nil(t, err)
	routine := module.Routine(isa.EntryRoutine)
	assert.Len(t, routine.Code, 8)
	assert.Equal(t, Code{Op: isa.OpIf, Cond: isa.GT, Operand: 5}, routine.Code[2])
	assert.Equal(t, Code{Op: isa.OpGoto, Operand: 6}, routine.Code[4])
	assert.Equal(t, 2, routine.MaxStack)
	assert.Equal(t, 2, routine.MaxLocals)
}

func TestAssembler_Errors(t *testing.T) {
	testData := []struct {
		name   string
		unit   *isa.Unit
		expect error
	}{
		{name: "duplicate label", unit: makeUnit(0, isa.Mark("a"), isa.Mark("a")), expect: ErrDuplicateLabel},
		{name: "undefined label", unit: makeUnit(0, isa.Goto("nowhere")), expect: ErrUndefinedLabel},
		{name: "underflow", unit: makeUnit(0, isa.Op(isa.OpAdd)), expect: ErrStackDepth},
		{name: "merge depth", unit: makeUnit(0,
			isa.PushInt(1), isa.PushInt(2), isa.If(isa.GT, "l"), isa.PushInt(5), isa.Mark("l")), expect: ErrStackDepth},
		{name: "no entry", unit: isa.NewUnit("Empty"), expect: ErrNoEntry},
	}
	for _, data := range testData {
		_, err := Assemble(data.unit)
		assert.True(t, errors.Is(err, data.expect), "%s: %v", data.name, err)
	}
}

func TestAssembler_FallThrough(t *testing.T) {
	unit := isa.NewUnit("Open")
	unit.OpenRoutine(isa.EntryRoutine).Emit(isa.PushInt(1), isa.Store(isa.Int, 0))
	_, err := Assemble(unit)
	assert.True(t, errors.Is(err, ErrControlFlow), "%v", err)
}

func TestAssembler_DuplicateRoutine(t *testing.T) {
	unit := makeUnit(0)
	unit.OpenRoutine(isa.EntryRoutine).Close(0)
	_, err := Assemble(unit)
	assert.True(t, errors.Is(err, ErrDuplicateRoutine), "%v", err)
}

func TestAssembler_Constants(t *testing.T) {
	unit := makeUnit(2,
		isa.PushText("hi"), isa.Store(isa.Ref, 0),
		isa.PushText("there"), isa.Store(isa.Ref, 1),
		isa.PushText("hi"), isa.Store(isa.Ref, 0),
	)
	module, err := Assemble(unit)
	assert.Nil(t, err)
	assert.Equal(t, []string{"hi", "there"}, module.Constants)
	code := module.Routine(isa.EntryRoutine).Code
	assert.Equal(t, code[0], code[4])
	assert.Equal(t, int32(1), code[2].Operand)
}

func TestAssembler_MaxLocalsFromSlots(t *testing.T) {
	module, err := Assemble(makeUnit(1, isa.PushInt(1), isa.Store(isa.Int, 4)))
	assert.Nil(t, err)
	assert.Equal(t, 5, module.Routines[0].MaxLocals)
}

func TestEncodeDecode(t *testing.T) {
	unit := comparisonAsValue()
	unit.Routines[0].Code = append([]isa.Instruction{
		isa.Op(isa.OpOpenOutput), isa.PushText("x > 3:"), isa.Print(isa.Ref),
	}, unit.Routines[0].Code...)
	module, err := Assemble(unit)
	assert.Nil(t, err)
	buf := &bytes.Buffer{}
	assert.Nil(t, Encode(buf, module))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("KCM1")))
	decoded, err := Decode(bytes.NewReader(buf.Bytes()))
	assert.Nil(t, err)
	assert.Equal(t, module, decoded)
}

func TestDecode_Errors(t *testing.T) {
	module, err := Assemble(comparisonAsValue())
	assert.Nil(t, err)
	buf := &bytes.Buffer{}
	assert.Nil(t, Encode(buf, module))
	encoded := buf.Bytes()

	testData := []struct {
		name    string
		content []byte
	}{
		{name: "empty", content: nil},
		{name: "magic", content: append([]byte("XXXX"), encoded[4:]...)},
		{name: "truncated", content: encoded[:len(encoded)-3]},
	}
	for _, data := range testData {
		_, err := Decode(bytes.NewReader(data.content))
		assert.True(t, errors.Is(err, ErrBadModule), "%s: %v", data.name, err)
	}

	// A jump past the end of the routine.
	module.Routines[0].Code[4].Operand = 100
	buf.Reset()
	assert.Nil(t, Encode(buf, module))
	_, err = Decode(buf)
	assert.True(t, errors.Is(err, ErrBadModule), "%v", err)
}

func TestListing(t *testing.T) {
	module, err := Assemble(makeUnit(1, isa.PushText("hello"), isa.Store(isa.Ref, 0)))
	assert.Nil(t, err)
	listing := Listing(module)
	assert.True(t, strings.Contains(listing, "Test.main"), listing)
	assert.True(t, strings.Contains(listing, `"hello"`), listing)
	assert.True(t, strings.Contains(listing, "REF 0"), listing)
}

func TestStreamSink_Persist(t *testing.T) {
	buf := &bytes.Buffer{}
	sink := NewStreamSink(buf)
	assert.Nil(t, sink.Persist(comparisonAsValue()))
	assert.NotNil(t, sink.Module())
	decoded, err := Decode(buf)
	assert.Nil(t, err)
	assert.Equal(t, sink.Module(), decoded)

	buf.Reset()
	failing := NewStreamSink(buf)
	assert.NotNil(t, failing.Persist(makeUnit(0, isa.Goto("x"))))
	assert.Nil(t, failing.Module())
	assert.Equal(t, 0, buf.Len())
}
