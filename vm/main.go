package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/tebeka/atexit"
	"github.com/xiaobogaga/knightcode/assembler"
	"github.com/xiaobogaga/knightcode/config"
	"github.com/xiaobogaga/knightcode/isa"
	"github.com/xiaobogaga/knightcode/machine"
)

// kvm runs a module produced by kcc. Text assembly files (.kca) are assembled before running.

var (
	maxSteps   = flag.Int("max-steps", 0, "stop after this many instructions, 0 means no limit")
	listing    = flag.Bool("list", false, "print the disassembly listing before running")
	configPath = flag.String("config", "", "the yaml config file")
	verbose    = flag.Bool("v", false, "whether print debug logs")
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: kvm [flags] <module.kcm>\n")
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
		fmt.Fprintf(os.Stderr, "[kvm]: %v\n", err)
		return 1
	}
	flag.Visit(func(f *flag.Flag) {
		if f.Name == "max-steps" {
			cfg.MaxSteps = *maxSteps
		}
	})
	cfg.EmitListing = cfg.EmitListing || *listing
	if *verbose {
		cfg.LogLevel = "debug"
	}
	cfg.InstallLogger(os.Stderr)

	path := flag.Arg(0)
	module, err := loadModule(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "[kvm]: failed to load %s, err: %v\n", path, err)
		return 1
	}
	if cfg.EmitListing {
		fmt.Println(assembler.Listing(module))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	vm := machine.New(module, machine.WithMaxSteps(cfg.MaxSteps))
	err = vm.Run(ctx)
	slog.Debug("kvm: finished", "module", module.Name, "steps", vm.Steps())
	if err != nil {
		fmt.Fprintf(os.Stderr, "[kvm]: %s stopped after %d steps, err: %v\n", module.Name, vm.Steps(), err)
		return 1
	}
	return 0
}

func loadModule(path string) (*assembler.Module, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	if strings.EqualFold(filepath.Ext(path), isa.TextFileExt) {
		unit, err := isa.ParseText(f)
		if err != nil {
			return nil, err
		}
		return assembler.Assemble(unit)
	}
	return assembler.Decode(f)
}
