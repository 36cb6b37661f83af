//go:build linux || darwin

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	"gochip8/pkg/asm"
	"gochip8/pkg/clock"
	"gochip8/pkg/cpu"
	"gochip8/pkg/grid"
)

var errQuit = errors.New("quit")

// session wraps the CPU with the pause and single-step controls.
type session struct {
	vm          *cpu.CPU
	pad         keypad
	paused      bool
	stepOnce    bool
	skipUnknown bool
	input       <-chan byte
}

// Step reports AwaitingKey while paused so the scheduler ends the frame.
func (s *session) Step() (cpu.State, error) {
	if s.paused {
		if !s.stepOnce {
			return cpu.AwaitingKey, nil
		}
		s.stepOnce = false
	}
	return s.vm.Step()
}

func (s *session) TickTimers() {
	if !s.paused {
		s.vm.TickTimers()
	}
}

// handleInput drains pending key bytes without blocking.
func (s *session) handleInput() error {
	for {
		select {
		case b, ok := <-s.input:
			if !ok {
				return errQuit
			}
			switch b {
			case keyQuit, keyIntr:
				return errQuit
			case keyPause:
				s.paused = !s.paused
			case keyStep:
				s.stepOnce = s.paused
			default:
				if k, ok := keyIndex(b); ok {
					s.pad.press(k)
				}
			}
		default:
			s.pad.apply(s.vm)
			return nil
		}
	}
}

func (s *session) stepError(err error) error {
	if s.skipUnknown && errors.Is(err, cpu.ErrUnknownOpcode) {
		s.vm.Skip()
		return nil
	}
	return err
}

func (s *session) status() string {
	switch {
	case s.vm.State == cpu.Halted:
		return "HALTED"
	case s.paused:
		return fmt.Sprintf("PAUSED at %03X (n steps)", s.vm.PC)
	case s.vm.State == cpu.AwaitingKey:
		return "WAITING FOR KEY"
	}
	return "esc quits, p pauses"
}

// readInput forwards bytes from r to out until r fails or done is closed.
func readInput(r io.Reader, out chan<- byte, done <-chan struct{}) {
	defer close(out)
	buf := make([]byte, 16)
	for {
		n, err := r.Read(buf)
		if err != nil {
			return
		}
		for _, b := range buf[:n] {
			select {
			case out <- b:
			case <-done:
				return
			}
		}
	}
}

func init() {
	exe, _ := os.Executable()
	log.SetFlags(0)
	log.SetPrefix(fmt.Sprintf("%s: ", filepath.Base(exe)))
	log.SetOutput(os.Stderr)
}

func main() {
	cpuHz := flag.Int("hz", clock.DefaultCPUHz, "instructions per second")
	seed := flag.Uint64("seed", 0, "random seed (0 picks one)")
	skipUnknown := flag.Bool("skip-unknown", false, "skip unknown opcodes instead of stopping")
	flag.Parse()

	if flag.NArg() != 1 {
		log.Fatalf("usage: %s [flags] <rom.ch8|source.asm>", filepath.Base(os.Args[0]))
	}

	rom, err := asm.LoadProgram(flag.Arg(0))
	if err != nil {
		log.Fatalf("Failed to load program: %v", err)
	}

	if cols, rows, err := geometry(); err == nil {
		if cols < cpu.Width || rows < grid.HalfBlockRows(cpu.Height)+1 {
			log.Fatalf("terminal is %dx%d, need at least %dx%d", cols, rows, cpu.Width, grid.HalfBlockRows(cpu.Height)+1)
		}
	}

	var opts []cpu.Option
	if *seed != 0 {
		opts = append(opts, cpu.WithSeed(*seed))
	}
	vm := cpu.NewCPU(opts...)
	if err := vm.LoadROM(rom); err != nil {
		log.Fatal(err)
	}

	clk, err := clock.New(*cpuHz, clock.DefaultTimerHz)
	if err != nil {
		log.Fatal(err)
	}

	tty, err := openTerminal()
	if err != nil {
		log.Fatal(err)
	}

	input := make(chan byte, 64)
	done := make(chan struct{})
	go readInput(tty, input, done)

	s := &session{vm: vm, skipUnknown: *skipUnknown, input: input}

	fmt.Print(ansiClear, ansiHideCursor)
	runErr := clk.Run(context.Background(), s, clock.Hooks{
		Frame: func() error {
			if err := s.handleInput(); err != nil {
				return err
			}
			fmt.Print(renderFrame(vm.Display[:], s.status()))
			s.vm.ClearDirty()
			return nil
		},
		StepError: s.stepError,
	})
	close(done)
	fmt.Print(renderFrame(vm.Display[:], s.status()), ansiShowCursor)

	if err := tty.Close(); err != nil {
		log.Print(err)
	}

	if runErr != nil && !errors.Is(runErr, errQuit) {
		log.Fatal(runErr)
	}
}
