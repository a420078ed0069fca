package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/tebeka/atexit"
	"github.com/xiaobogaga/knightcode/assembler"
	"github.com/xiaobogaga/knightcode/compiler/internal"
	"github.com/xiaobogaga/knightcode/config"
	"github.com/xiaobogaga/knightcode/isa"
	"github.com/xiaobogaga/knightcode/util"
)

// kcc compiles one KnightCode source file to a module that kvm can run.

var (
	output     = flag.String("o", "", "the output path, default is <program name>.kcm next to the input")
	emitText   = flag.Bool("S", false, "write text assembly instead of a binary module")
	symbols    = flag.Bool("symbols", false, "print the symbol table")
	listing    = flag.Bool("list", false, "print the disassembly listing")
	configPath = flag.String("config", "", "the yaml config file")
	verbose    = flag.Bool("v", false, "whether print debug logs")
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: kcc [flags] <input.kc>\n")
		flag.PrintDefaults()
	}
	flag.Parse()
	atexit.Exit(run())
}

func run() int {
	if flag.NArg() != 1 {
		flag.Usage()
		return 2
	}
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "[kcc]: %v\n", err)
		return 1
	}
	cfg.EmitText = cfg.EmitText || *emitText
	cfg.EmitSymbols = cfg.EmitSymbols || *symbols
	cfg.EmitListing = cfg.EmitListing || *listing
	if *verbose {
		cfg.LogLevel = "debug"
	}
	cfg.InstallLogger(os.Stderr)

	path := flag.Arg(0)
	if !util.IsKnightCodeFile(path) {
		slog.Warn("kcc: unexpected source file suffix", "path", path)
	}
	err = compile(cfg, path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "[kcc]: failed to compile %s, err: %v\n", path, err)
		return 1
	}
	return 0
}

func outputDir(cfg *config.Config, path string) string {
	if *output != "" {
		return filepath.Dir(*output)
	}
	if cfg.OutputDir != "" {
		return cfg.OutputDir
	}
	return filepath.Dir(path)
}

// compile writes into a temp file next to the final output and renames it once everything succeeded.
func compile(cfg *config.Config, path string) error {
	dir := outputDir(cfg, path)
	tmp, err := os.CreateTemp(dir, ".kcc-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	atexit.Register(func() {
		_ = os.Remove(tmpName)
	})

	var sink internal.InstructionSink
	if cfg.EmitText {
		sink = isa.NewTextSink(tmp)
	} else {
		sink = assembler.NewStreamSink(tmp)
	}
	result, err := internal.CompileFile(path, sink)
	closeErr := tmp.Close()
	if err != nil {
		return err
	}
	if closeErr != nil {
		return closeErr
	}

	if cfg.EmitSymbols {
		fmt.Println(internal.SymbolListing(result.Program.Name, result.Symbols))
	}
	if cfg.EmitListing {
		module, err := assembler.Assemble(result.Unit)
		if err != nil {
			return err
		}
		fmt.Println(assembler.Listing(module))
	}

	target := *output
	if target == "" {
		ext := assembler.FileExt
		if cfg.EmitText {
			ext = isa.TextFileExt
		}
		target = filepath.Join(dir, result.Unit.Name+ext)
	}
	err = os.Rename(tmpName, target)
	if err != nil {
		return err
	}
	slog.Info("kcc: compiled", "source", path, "output", target,
		"variables", len(result.Symbols), "instructions", result.Unit.InstructionCount())
	return nil
}
