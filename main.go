//go:build !js

package main

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/bradleyjkemp/memviz"

	"gochip8/pkg/asm"
	"gochip8/pkg/clock"
	"gochip8/pkg/cpu"
	"gochip8/pkg/utils"
)

func init() {
	exe, _ := os.Executable()
	log.SetFlags(0)
	log.SetPrefix(fmt.Sprintf("%s: ", filepath.Base(exe)))
	log.SetOutput(os.Stderr)
}

type runOptions struct {
	maxCycles   int
	cpuHz       int
	seed        uint64
	trace       bool
	skipUnknown bool
	screenshot  string
	memvizPath  string
}

func main() {
	inPath := flag.String("in", "", "input assembly file path")
	outPath := flag.String("out", "", "output ROM file path (default: input with .ch8 extension)")
	disPath := flag.String("dis", "", "disassemble a ROM file to stdout")
	runProgram := flag.Bool("run", false, "run the assembled ROM headless")
	runBinPath := flag.String("run-bin", "", "run an existing ROM file headless")

	var opts runOptions
	flag.IntVar(&opts.maxCycles, "cycles", 100000, "maximum instructions to execute")
	flag.IntVar(&opts.cpuHz, "hz", clock.DefaultCPUHz, "instructions per second of emulated time")
	flag.Uint64Var(&opts.seed, "seed", 0, "random seed (0 picks one)")
	flag.BoolVar(&opts.trace, "trace", false, "log every executed instruction")
	flag.BoolVar(&opts.skipUnknown, "skip-unknown", false, "skip unknown opcodes instead of stopping")
	flag.StringVar(&opts.screenshot, "screenshot", "", "write the final display to this PNG file")
	flag.StringVar(&opts.memvizPath, "memviz", "", "write a graphviz dump of the final machine state")
	flag.Parse()

	if *runProgram && *runBinPath != "" {
		log.Println("use either -run or -run-bin, not both")
		os.Exit(2)
	}

	if *disPath != "" {
		if err := disassembleFile(*disPath); err != nil {
			log.Printf("disassembly failed for %q: %v", *disPath, err)
			os.Exit(1)
		}
		if *inPath == "" && *runBinPath == "" {
			return
		}
	}

	assembledOutput := ""
	if *inPath != "" {
		source, err := os.ReadFile(*inPath)
		if err != nil {
			log.Printf("failed to read input file %q: %v", *inPath, err)
			os.Exit(1)
		}

		code, _, err := asm.Assemble(string(source))
		if err != nil {
			log.Printf("assembly failed: %v", err)
			os.Exit(1)
		}

		output := *outPath
		if output == "" {
			output = defaultOutputPath(*inPath)
		}

		if err := writeBinary(output, code); err != nil {
			log.Printf("failed to write ROM file %q: %v", output, err)
			os.Exit(1)
		}

		fmt.Printf("assembled %d bytes -> %s\n", len(code), output)
		assembledOutput = output
	}

	if *inPath == "" && *runBinPath == "" && !*runProgram {
		log.Println("nothing to do: provide -in to assemble, -dis to disassemble, -run to run assembled output, or -run-bin <file> to run an existing ROM")
		flag.Usage()
		os.Exit(2)
	}

	runTarget := ""
	switch {
	case *runBinPath != "":
		runTarget = *runBinPath
	case *runProgram:
		if assembledOutput == "" {
			log.Println("-run requires -in, or use -run-bin <file>")
			os.Exit(2)
		}
		runTarget = assembledOutput
	default:
		return
	}

	if err := runBinary(runTarget, opts); err != nil {
		log.Printf("run failed for %q: %v", runTarget, err)
		os.Exit(1)
	}
}

func defaultOutputPath(inPath string) string {
	return utils.ReplaceExt(inPath, ".ch8")
}

func writeBinary(path string, data []byte) error {
	return os.WriteFile(path, data, 0o644)
}

func disassembleFile(path string) error {
	rom, err := utils.ReadROM(path, cpu.MaxROMSize)
	if err != nil {
		return err
	}
	fmt.Println(strings.Join(cpu.Disassemble(rom), "\n"))
	return nil
}

func newMachine(seed uint64) *cpu.CPU {
	if seed == 0 {
		return cpu.NewCPU()
	}
	return cpu.NewCPU(cpu.WithSeed(seed))
}

// runHeadless executes rom one emulated frame at a time: a timer tick, then
// the frame's share of the instruction budget.
func runHeadless(vm *cpu.CPU, opts runOptions) (int, error) {
	clk, err := clock.New(opts.cpuHz, clock.DefaultTimerHz)
	if err != nil {
		return 0, err
	}

	executed := 0
	for executed < opts.maxCycles {
		vm.TickTimers()
		budget := clk.Tick()
		for i := 0; i < budget && executed < opts.maxCycles; i++ {
			pc := vm.PC
			state, err := vm.Step()
			if err != nil {
				if opts.skipUnknown && errors.Is(err, cpu.ErrUnknownOpcode) {
					log.Printf("skipping: %v", err)
					vm.Skip()
					continue
				}
				return executed, err
			}
			executed++
			if opts.trace {
				logInstruction(vm, pc)
			}
			switch state {
			case cpu.Halted:
				return executed, nil
			case cpu.AwaitingKey:
				return executed, fmt.Errorf("program is waiting for a key at 0x%03X", vm.PC)
			}
		}
	}
	return executed, nil
}

func logInstruction(vm *cpu.CPU, pc uint16) {
	op := uint16(vm.Memory[pc])<<8 | uint16(vm.Memory[pc+1])
	text := fmt.Sprintf("DW $%04X", op)
	if in, err := cpu.Decode(op); err == nil {
		text = in.String()
	}
	log.Printf("%03X: %04X  %-18s I=%03X V=% X", pc, op, text, vm.I, vm.V[:])
}

func runBinary(path string, opts runOptions) error {
	rom, err := utils.ReadROM(path, cpu.MaxROMSize)
	if err != nil {
		return err
	}

	vm := newMachine(opts.seed)
	if err := vm.LoadROM(rom); err != nil {
		return err
	}

	executed, runErr := runHeadless(vm, opts)

	fmt.Printf("run complete (%s): %d instructions, state %s\n", path, executed, vm.State)
	fmt.Print(registerDump(vm))

	if opts.screenshot != "" {
		if err := vm.SaveScreenshot(opts.screenshot, 8); err != nil {
			return fmt.Errorf("screenshot: %w", err)
		}
	}
	if opts.memvizPath != "" {
		if err := writeMemviz(opts.memvizPath, vm); err != nil {
			return fmt.Errorf("memviz: %w", err)
		}
	}
	return runErr
}

func registerDump(vm *cpu.CPU) string {
	var b strings.Builder
	fmt.Fprintf(&b, "PC=0x%03X I=0x%03X SP=%d DT=%d\n", vm.PC, vm.I, vm.SP, vm.DT)
	for i, v := range vm.V {
		fmt.Fprintf(&b, "V%X=0x%02X", i, v)
		if i%8 == 7 {
			b.WriteByte('\n')
		} else {
			b.WriteByte(' ')
		}
	}
	return b.String()
}

// writeMemviz dumps the register file and stack as a graphviz graph. Memory
// and the display are left out to keep the graph readable.
func writeMemviz(path string, vm *cpu.CPU) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}

	snapshot := struct {
		PC, I  uint16
		SP     uint8
		DT     byte
		V      [16]byte
		Stack  []uint16
		State  string
		Cycles uint64
	}{
		PC:     vm.PC,
		I:      vm.I,
		SP:     vm.SP,
		DT:     vm.DT,
		V:      vm.V,
		Stack:  append([]uint16(nil), vm.Stack[:vm.SP]...),
		State:  vm.State.String(),
		Cycles: vm.Cycles,
	}
	memviz.Map(f, &snapshot)
	return f.Close()
}
