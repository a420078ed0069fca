package machine_test

import (
	"bytes"
	"context"
	"strconv"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/xiaobogaga/knightcode/assembler"
	"github.com/xiaobogaga/knightcode/isa"
	"github.com/xiaobogaga/knightcode/machine"
)

func assemble(text string) *assembler.Module {
	unit, err := isa.ParseText(strings.NewReader(text))
	Expect(err).NotTo(HaveOccurred())
	module, err := assembler.Assemble(unit)
	Expect(err).NotTo(HaveOccurred())
	return module
}

var _ = Describe("Machine", func() {
	var (
		input  *strings.Reader
		output *bytes.Buffer
	)

	BeforeEach(func() {
		input = strings.NewReader("")
		output = &bytes.Buffer{}
	})

	run := func(text string, options ...machine.Option) error {
		options = append([]machine.Option{machine.WithInput(input), machine.WithOutput(output)}, options...)
		return machine.New(assemble(text), options...).Run(context.Background())
	}

	printTop := `
	STORE INT 0
	OUTPUT
	LOAD INT 0
	PRINT INT
	RETURN`

	DescribeTable("should compute int32 arithmetic",
		func(a, b int32, op string, expected string) {
			text := "UNIT Arith\nROUTINE main 1\n" +
				"PUSH INT " + itoa(a) + "\nPUSH INT " + itoa(b) + "\n" + op + printTop
			Expect(run(text)).To(Succeed())
			Expect(output.String()).To(Equal(expected + "\n"))
		},
		Entry("add", int32(2), int32(3), "ADD", "5"),
		Entry("sub", int32(2), int32(3), "SUB", "-1"),
		Entry("mul", int32(4), int32(-3), "MUL", "-12"),
		Entry("truncating division", int32(7), int32(2), "DIV", "3"),
		Entry("truncating negative division", int32(-7), int32(2), "DIV", "-3"),
		Entry("wrapping add", int32(2147483647), int32(1), "ADD", "-2147483648"),
		Entry("wrapping division", int32(-2147483648), int32(-1), "DIV", "-2147483648"),
	)

	It("should fail on division by zero", func() {
		err := run("UNIT D\nROUTINE main 1\nPUSH INT 1\nPUSH INT 0\nDIV" + printTop)
		Expect(err).To(MatchError(machine.ErrDivisionByZero))
		Expect(output.Len()).To(Equal(0))
	})

	It("should print text and integers on separate lines", func() {
		err := run(`UNIT P
ROUTINE main 0
	OUTPUT
	PUSH TEXT "hello world"
	PRINT REF
	OUTPUT
	PUSH INT 42
	PRINT INT
	RETURN`)
		Expect(err).NotTo(HaveOccurred())
		Expect(output.String()).To(Equal("hello world\n42\n"))
	})

	It("should read an integer token and then the rest of the line", func() {
		input = strings.NewReader("  17 tail\nnext line\n")
		err := run(`UNIT R
ROUTINE main 2
	INPUT
	READINT
	STORE INT 0
	INPUT
	READLINE
	STORE REF 1
	OUTPUT
	LOAD INT 0
	PRINT INT
	OUTPUT
	LOAD REF 1
	PRINT REF
	RETURN`)
		Expect(err).NotTo(HaveOccurred())
		Expect(output.String()).To(Equal("17\n tail\n"))
	})

	It("should read a whole line", func() {
		input = strings.NewReader("Ada Lovelace\r\n")
		err := run(`UNIT R
ROUTINE main 1
	INPUT
	READLINE
	STORE REF 0
	OUTPUT
	LOAD REF 0
	PRINT REF
	RETURN`)
		Expect(err).NotTo(HaveOccurred())
		Expect(output.String()).To(Equal("Ada Lovelace\n"))
	})

	It("should reject input that is not an integer", func() {
		input = strings.NewReader("abc\n")
		err := run("UNIT R\nROUTINE main 1\nINPUT\nREADINT\nSTORE INT 0\nRETURN")
		Expect(err).To(MatchError(machine.ErrBadInput))
	})

	It("should branch on conditions", func() {
		err := run(`UNIT B
ROUTINE main 0
	PUSH INT 3
	PUSH INT 5
	IF LT less_0
	OUTPUT
	PUSH TEXT "no"
	PRINT REF
	GOTO end_1
LABEL less_0
	OUTPUT
	PUSH TEXT "yes"
	PRINT REF
LABEL end_1
	RETURN`)
		Expect(err).NotTo(HaveOccurred())
		Expect(output.String()).To(Equal("yes\n"))
	})

	It("should stop runaway loops at the step limit", func() {
		m := machine.New(assemble("UNIT L\nROUTINE main 0\nLABEL l_0\nGOTO l_0\nRETURN"),
			machine.WithMaxSteps(100), machine.WithOutput(output))
		err := m.Run(context.Background())
		Expect(err).To(MatchError(machine.ErrStepLimit))
		Expect(m.Steps()).To(Equal(100))
	})

	It("should stop when the context is cancelled", func() {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		m := machine.New(assemble("UNIT L\nROUTINE main 0\nLABEL l_0\nGOTO l_0\nRETURN"))
		Expect(m.Run(ctx)).To(MatchError(context.Canceled))
	})

	It("should refuse to load a slot that was never stored", func() {
		err := run("UNIT U\nROUTINE main 1\nLOAD INT 0\nSTORE INT 0\nRETURN")
		Expect(err).To(MatchError(machine.ErrUninitialized))
	})

	It("should refuse arithmetic on text", func() {
		err := run("UNIT T\nROUTINE main 1\nPUSH TEXT \"a\"\nPUSH INT 1\nADD" + printTop)
		Expect(err).To(MatchError(machine.ErrTypeMismatch))
	})
})

func itoa(v int32) string {
	return strconv.Itoa(int(v))
}
