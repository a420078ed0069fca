package internal_test

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	gomock "github.com/golang/mock/gomock"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/pkg/errors"
	"github.com/xiaobogaga/knightcode/assembler"
	"github.com/xiaobogaga/knightcode/compiler/internal"
	"github.com/xiaobogaga/knightcode/isa"
	"github.com/xiaobogaga/knightcode/machine"
)

// compileAndRun compiles source through a stream sink and runs the module with input on stdin.
func compileAndRun(source string, input string) (string, *internal.Result) {
	sink := assembler.NewStreamSink(&bytes.Buffer{})
	result, err := internal.Compile(strings.NewReader(source), sink)
	Expect(err).NotTo(HaveOccurred())
	Expect(sink.Module()).NotTo(BeNil())

	output := &bytes.Buffer{}
	vm := machine.New(sink.Module(), machine.WithInput(strings.NewReader(input)), machine.WithOutput(output))
	Expect(vm.Run(context.Background())).To(Succeed())
	return output.String(), result
}

var _ = Describe("Compiler", func() {
	var (
		mockCtrl *gomock.Controller
		mockSink *MockInstructionSink
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		mockSink = NewMockInstructionSink(mockCtrl)
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	It("should persist the unit exactly once", func() {
		var persisted *isa.Unit
		mockSink.EXPECT().
			Persist(gomock.Any()).
			Do(func(unit *isa.Unit) { persisted = unit }).
			Return(nil).
			Times(1)

		result, err := internal.Compile(strings.NewReader(
			"PROGRAM P DECLARE INTEGER x STRING s BEGIN SET x := 1 END"), mockSink)

		Expect(err).NotTo(HaveOccurred())
		Expect(persisted).To(BeIdenticalTo(result.Unit))
		Expect(result.Program.Name).To(Equal("P"))
		Expect(result.Unit.Routines).To(HaveLen(1))
		Expect(result.Unit.Routines[0].Name).To(Equal(isa.EntryRoutine))
		Expect(result.Symbols).To(HaveLen(2))
		Expect(result.Symbols[0].Slot).To(Equal(0))
		Expect(result.Symbols[1].Slot).To(Equal(1))
	})

	It("should never persist when there is a semantic error", func() {
		mockSink.EXPECT().Persist(gomock.Any()).Times(0)

		result, err := internal.Compile(strings.NewReader(
			"PROGRAM P DECLARE INTEGER x BEGIN SET x := y END"), mockSink)

		Expect(result).To(BeNil())
		Expect(err).To(MatchError(internal.ErrUndeclaredVariable))
	})

	It("should never persist when there is a syntax error", func() {
		mockSink.EXPECT().Persist(gomock.Any()).Times(0)

		_, err := internal.Compile(strings.NewReader("PROGRAM P BEGIN SET := 1 END"), mockSink)

		Expect(err).To(MatchError(ContainSubstring("syntax error near :=")))
	})

	It("should report a failing sink", func() {
		mockSink.EXPECT().Persist(gomock.Any()).Return(errors.New("disk full"))

		_, err := internal.Compile(strings.NewReader("PROGRAM P BEGIN END"), mockSink)

		Expect(err).To(MatchError("persist: disk full"))
	})

	It("should compile a file", func() {
		path := filepath.Join(GinkgoT().TempDir(), "demo.kc")
		Expect(os.WriteFile(path, []byte("PROGRAM Demo\nBEGIN\n\tPRINT \"hi\"\nEND\n"), 0o644)).To(Succeed())
		mockSink.EXPECT().Persist(gomock.Any()).Return(nil)

		result, err := internal.CompileFile(path, mockSink)

		Expect(err).NotTo(HaveOccurred())
		Expect(result.Unit.Name).To(Equal("Demo"))
	})

	It("should name the file of a failing compilation", func() {
		path := filepath.Join(GinkgoT().TempDir(), "bad.kc")
		Expect(os.WriteFile(path, []byte("PROGRAM Bad BEGIN READ x END"), 0o644)).To(Succeed())
		mockSink.EXPECT().Persist(gomock.Any()).Times(0)

		_, err := internal.CompileFile(path, mockSink)

		Expect(err).To(MatchError(internal.ErrUndeclaredVariable))
		Expect(err.Error()).To(HavePrefix(path))
	})

	It("should name the file of a syntax error", func() {
		path := filepath.Join(GinkgoT().TempDir(), "syntax.kc")
		Expect(os.WriteFile(path, []byte("PROGRAM Bad\nBEGIN\nPRINT 1\nEND"), 0o644)).To(Succeed())
		mockSink.EXPECT().Persist(gomock.Any()).Times(0)

		_, err := internal.CompileFile(path, mockSink)

		Expect(err).To(MatchError(ContainSubstring("syntax error near 1 at line 3")))
		Expect(err.Error()).To(HavePrefix(path))
	})

	It("should log the variables and slots of the persisted unit", func() {
		logs := &bytes.Buffer{}
		previous := slog.Default()
		slog.SetDefault(slog.New(slog.NewTextHandler(logs, &slog.HandlerOptions{Level: slog.LevelDebug})))
		DeferCleanup(func() { slog.SetDefault(previous) })
		mockSink.EXPECT().Persist(gomock.Any()).Return(nil)

		_, err := internal.Compile(strings.NewReader(
			"PROGRAM P DECLARE INTEGER x STRING s BEGIN READ x END"), mockSink)

		Expect(err).NotTo(HaveOccurred())
		Expect(logs.String()).To(ContainSubstring(`msg="compiler: persist unit"`))
		Expect(logs.String()).To(ContainSubstring("variables=2 slots=3"))
	})

	It("should report a missing file", func() {
		mockSink.EXPECT().Persist(gomock.Any()).Times(0)

		_, err := internal.CompileFile(filepath.Join(GinkgoT().TempDir(), "missing.kc"), mockSink)

		Expect(errors.Is(err, os.ErrNotExist)).To(BeTrue())
	})
})

var _ = Describe("Compiled programs", func() {
	It("should evaluate with precedence", func() {
		output, result := compileAndRun(
			"PROGRAM P DECLARE INTEGER x BEGIN SET x := 2+3*4 PRINT x END", "")

		Expect(output).To(Equal("14\n"))
		Expect(result.Symbols[0].Name).To(Equal("x"))
		Expect(result.Symbols[0].Slot).To(Equal(0))
	})

	DescribeTable("arithmetic",
		func(expr string, expected string) {
			output, _ := compileAndRun(
				"PROGRAM P DECLARE INTEGER x BEGIN SET x := "+expr+" PRINT x END", "")
			Expect(output).To(Equal(expected + "\n"))
		},
		Entry("parenthesis", "(2 + 3) * 4", "20"),
		Entry("left associative subtraction", "10 - 2 - 3", "5"),
		Entry("minus and plus left to right", "10 - 2 + 3", "11"),
		Entry("divide and times left to right", "8 / 2 * 2", "8"),
		Entry("divide before times", "6 / 2 * 3", "9"),
		Entry("mixed levels", "1 + 12 / 4 * 2 - 3", "4"),
		Entry("truncating division", "7 / 2", "3"),
		Entry("negative result", "2 - 5", "-3"),
		Entry("wrapping overflow", "2147483647 + 1", "-2147483648"),
	)

	It("should yield 1 or 0 for comparisons", func() {
		output, _ := compileAndRun(`PROGRAM P DECLARE INTEGER a
BEGIN
	SET a := 3 > 2
	PRINT a
	SET a := 3 < 2
	PRINT a
	SET a := 2 = 2
	PRINT a
	SET a := 2 <> 2
	PRINT a
	SET a := (1 < 2) + (2 < 3)
	PRINT a
END`, "")

		Expect(output).To(Equal("1\n0\n1\n0\n2\n"))
	})

	DescribeTable("decisions run exactly one branch",
		func(input string, expected string) {
			output, _ := compileAndRun(`PROGRAM P DECLARE INTEGER x
BEGIN
	READ x
	IF x > 5 THEN
		PRINT "big"
	ELSE
		PRINT "small"
	ENDIF
	IF x = 5 THEN
		PRINT "five"
	ENDIF
	PRINT "end"
END`, input)
			Expect(output).To(Equal(expected))
		},
		Entry("then branch", "7\n", "big\nend\n"),
		Entry("else branch", "3\n", "small\nend\n"),
		Entry("boundary", "5\n", "small\nfive\nend\n"),
	)

	DescribeTable("loops run zero or more times",
		func(input string, expected string) {
			output, _ := compileAndRun(`PROGRAM P DECLARE INTEGER n INTEGER i
BEGIN
	READ n
	SET i := 0
	WHILE i < n DO
		PRINT i
		INC i := i + 1
	ENDWHILE
	PRINT "done"
END`, input)
			Expect(output).To(Equal(expected))
		},
		Entry("no iteration", "0", "done\n"),
		Entry("three iterations", "3", "0\n1\n2\ndone\n"),
	)

	It("should read integers and lines from one input", func() {
		output, result := compileAndRun(`PROGRAM P DECLARE INTEGER n STRING s STRING name
BEGIN
	READ n
	READ s
	READ name
	PRINT n
	PRINT s
	PRINT name
END`, "5 apples\nAda Lovelace\r\n")

		Expect(output).To(Equal("5\n apples\nAda Lovelace\n"))
		Expect(result.Unit.Routines[0].Locals).To(Equal(6))
	})

	It("should print text literals and text variables", func() {
		output, _ := compileAndRun(`PROGRAM P DECLARE STRING s
BEGIN
	SET s := "hello"
	PRINT s
	PRINT "world"
END`, "")

		Expect(output).To(Equal("hello\nworld\n"))
	})
})
