package assembler

import (
	"bytes"
	"encoding/binary"
	"io"
	"math"

	"github.com/pkg/errors"
	"github.com/xiaobogaga/knightcode/isa"
)

// Binary layout of a module, all integers big endian:
//
//	magic      "KCM1"
//	name       u16 length, bytes
//	constants  u32 count, then u32 length and bytes per constant
//	routines   u16 count, then per routine:
//	           name, u16 max stack, u16 max locals, u32 code count,
//	           6 bytes per code: u8 opcode, u8 kind or condition, i32 operand

var magic = [4]byte{'K', 'C', 'M', '1'}

// FileExt is the extension of encoded modules.
const FileExt = ".kcm"

type moduleWriter struct {
	w   io.Writer
	err error
}

func (mw *moduleWriter) write(v interface{}) {
	if mw.err != nil {
		return
	}
	mw.err = binary.Write(mw.w, binary.BigEndian, v)
}

func (mw *moduleWriter) writeString(s string, wide bool) {
	if wide {
		mw.write(uint32(len(s)))
	} else {
		mw.write(uint16(len(s)))
	}
	mw.write([]byte(s))
}

// Encode writes module to w.
func Encode(w io.Writer, module *Module) error {
	if len(module.Name) > math.MaxUint16 || len(module.Routines) > math.MaxUint16 {
		return errors.Wrap(ErrBadModule, "module too large to encode")
	}
	mw := &moduleWriter{w: w}
	mw.write(magic)
	mw.writeString(module.Name, false)
	mw.write(uint32(len(module.Constants)))
	for _, constant := range module.Constants {
		mw.writeString(constant, true)
	}
	mw.write(uint16(len(module.Routines)))
	for _, routine := range module.Routines {
		if routine.MaxStack > math.MaxUint16 || routine.MaxLocals > math.MaxUint16 {
			return errors.Wrapf(ErrBadModule, "routine %s: frame too large to encode", routine.Name)
		}
		mw.writeString(routine.Name, false)
		mw.write(uint16(routine.MaxStack))
		mw.write(uint16(routine.MaxLocals))
		mw.write(uint32(len(routine.Code)))
		for _, code := range routine.Code {
			mw.write([2]byte{byte(code.Op), code.aux()})
			mw.write(code.Operand)
		}
	}
	return mw.err
}

func (code Code) aux() byte {
	switch code.Op {
	case isa.OpIf:
		return byte(code.Cond)
	case isa.OpPushText, isa.OpLoad, isa.OpStore, isa.OpPrint:
		return byte(code.Kind)
	}
	return 0
}

type moduleReader struct {
	r   io.Reader
	err error
}

func (mr *moduleReader) read(v interface{}) {
	if mr.err != nil {
		return
	}
	mr.err = binary.Read(mr.r, binary.BigEndian, v)
}

func (mr *moduleReader) readString(wide bool) string {
	var length uint32
	if wide {
		mr.read(&length)
	} else {
		var short uint16
		mr.read(&short)
		length = uint32(short)
	}
	if mr.err != nil {
		return ""
	}
	buf := bytes.Buffer{}
	_, err := io.CopyN(&buf, mr.r, int64(length))
	if err != nil {
		mr.err = err
		return ""
	}
	return buf.String()
}

// Decode reads a module written by Encode and validates it.
func Decode(r io.Reader) (*Module, error) {
	mr := &moduleReader{r: r}
	var header [4]byte
	mr.read(&header)
	if mr.err == nil && header != magic {
		return nil, errors.Wrap(ErrBadModule, "wrong magic")
	}
	module := &Module{Name: mr.readString(false)}
	var constantCount uint32
	mr.read(&constantCount)
	if mr.err != nil {
		return nil, errors.Wrap(ErrBadModule, mr.err.Error())
	}
	module.Constants = make([]string, 0, minInt(int(constantCount), 1024))
	for i := uint32(0); i < constantCount && mr.err == nil; i++ {
		module.Constants = append(module.Constants, mr.readString(true))
	}
	var routineCount uint16
	mr.read(&routineCount)
	module.Routines = make([]*Routine, 0, routineCount)
	for i := uint16(0); i < routineCount && mr.err == nil; i++ {
		module.Routines = append(module.Routines, mr.readRoutine())
	}
	if mr.err != nil {
		return nil, errors.Wrap(ErrBadModule, mr.err.Error())
	}
	if err := module.validate(); err != nil {
		return nil, err
	}
	return module, nil
}

func (mr *moduleReader) readRoutine() *Routine {
	routine := &Routine{Name: mr.readString(false)}
	var maxStack, maxLocals uint16
	var codeCount uint32
	mr.read(&maxStack)
	mr.read(&maxLocals)
	mr.read(&codeCount)
	if mr.err != nil {
		return routine
	}
	routine.MaxStack, routine.MaxLocals = int(maxStack), int(maxLocals)
	routine.Code = make([]Code, 0, minInt(int(codeCount), 1<<16))
	for i := uint32(0); i < codeCount && mr.err == nil; i++ {
		var head [2]byte
		var operand int32
		mr.read(&head)
		mr.read(&operand)
		code := Code{Op: isa.Opcode(head[0]), Operand: operand}
		switch code.Op {
		case isa.OpIf:
			code.Cond = isa.Condition(head[1])
		case isa.OpPushText, isa.OpLoad, isa.OpStore, isa.OpPrint:
			code.Kind = isa.Kind(head[1])
		}
		routine.Code = append(routine.Code, code)
	}
	return routine
}

func (module *Module) validate() error {
	if module.Routine(isa.EntryRoutine) == nil {
		return errors.Wrapf(ErrNoEntry, "module %s", module.Name)
	}
	for _, routine := range module.Routines {
		for pc, code := range routine.Code {
			if !code.Op.Valid() || code.Op == isa.OpLabel {
				return errors.Wrapf(ErrBadModule, "routine %s: bad opcode %d at %d", routine.Name, code.Op, pc)
			}
			if code.Kind > isa.Ref || code.Cond > isa.LE {
				return errors.Wrapf(ErrBadModule, "routine %s: bad operand kind at %d", routine.Name, pc)
			}
			switch code.Op {
			case isa.OpPushText:
				if code.Operand < 0 || int(code.Operand) >= len(module.Constants) {
					return errors.Wrapf(ErrBadModule, "routine %s: constant %d out of range", routine.Name, code.Operand)
				}
			case isa.OpLoad, isa.OpStore:
				if code.Operand < 0 || int(code.Operand) >= routine.MaxLocals {
					return errors.Wrapf(ErrBadModule, "routine %s: slot %d out of range", routine.Name, code.Operand)
				}
			case isa.OpIf, isa.OpGoto:
				if code.Operand < 0 || int(code.Operand) >= len(routine.Code) {
					return errors.Wrapf(ErrBadModule, "routine %s: jump target %d out of range", routine.Name, code.Operand)
				}
			}
		}
	}
	return nil
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
