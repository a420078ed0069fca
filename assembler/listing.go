package assembler

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/xiaobogaga/knightcode/isa"
)

// Listing renders a disassembly table per routine of module.
func Listing(module *Module) string {
	sb := strings.Builder{}
	for _, routine := range module.Routines {
		codeTable := table.NewWriter()
		codeTable.SetTitle(fmt.Sprintf("%s.%s (max stack %d, max locals %d)", module.Name, routine.Name,
			routine.MaxStack, routine.MaxLocals))
		codeTable.AppendHeader(table.Row{"PC", "Op", "Operand"})
		for pc, code := range routine.Code {
			codeTable.AppendRow(table.Row{pc, code.Op.String(), module.describeOperand(code)})
		}
		sb.WriteString(codeTable.Render())
		sb.WriteString("\n")
	}
	return sb.String()
}

func (module *Module) describeOperand(code Code) string {
	switch code.Op {
	case isa.OpPushInt:
		return strconv.Itoa(int(code.Operand))
	case isa.OpPushText:
		if int(code.Operand) < len(module.Constants) {
			return fmt.Sprintf("#%d %s", code.Operand, strconv.Quote(module.Constants[code.Operand]))
		}
		return fmt.Sprintf("#%d", code.Operand)
	case isa.OpLoad, isa.OpStore:
		return fmt.Sprintf("%s %d", code.Kind, code.Operand)
	case isa.OpPrint:
		return code.Kind.String()
	case isa.OpIf:
		return fmt.Sprintf("%s -> %d", code.Cond, code.Operand)
	case isa.OpGoto:
		return fmt.Sprintf("-> %d", code.Operand)
	}
	return ""
}

// StreamSink assembles every persisted unit and writes the encoded module to w.
type StreamSink struct {
	w      io.Writer
	module *Module
}

func NewStreamSink(w io.Writer) *StreamSink {
	return &StreamSink{w: w}
}

func (sink *StreamSink) Persist(unit *isa.Unit) error {
	module, err := Assemble(unit)
	if err != nil {
		return err
	}
	err = Encode(sink.w, module)
	if err != nil {
		return err
	}
	sink.module = module
	return nil
}

// Module returns the last module written by the sink.
func (sink *StreamSink) Module() *Module {
	return sink.module
}
