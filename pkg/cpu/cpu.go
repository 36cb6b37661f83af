package cpu

import (
	"fmt"
	"io"
	"math/rand/v2"
)

const (
	MemorySize   = 4096
	ProgramStart = 0x200
	MaxROMSize   = MemorySize - ProgramStart
	StackSize    = 16
	NumKeys      = 16

	Width  = 64
	Height = 32

	// FlagReg is VF, overwritten by carry, borrow, shift and collision results.
	FlagReg = 0xF
)

// Mode selects the drawing mode. ModeExtended is recorded but draws with
// the standard 64x32 addressing.
type Mode uint8

const (
	ModeStandard Mode = iota
	ModeExtended
)

func (m Mode) String() string {
	if m == ModeExtended {
		return "extended"
	}
	return "standard"
}

// State is the scheduling state of the machine after a cycle.
type State uint8

const (
	// Running means the next Step executes the instruction at PC.
	Running State = iota
	// AwaitingKey means a key-wait instruction found no key latched. PC
	// still points at it and the next Step retries.
	AwaitingKey
	// Halted means the exit instruction ran. Step is a no-op from here on.
	Halted
)

func (s State) String() string {
	switch s {
	case Running:
		return "running"
	case AwaitingKey:
		return "awaiting key"
	case Halted:
		return "halted"
	}
	return fmt.Sprintf("State(%d)", uint8(s))
}

type CPU struct {
	V  [16]byte
	I  uint16
	PC uint16

	Stack [StackSize]uint16
	SP    uint8

	DT byte

	Memory [MemorySize]byte

	Keys [NumKeys]bool

	Display [Width * Height]byte
	// Dirty is set whenever Display changes. The presenter clears it after
	// drawing with ClearDirty.
	Dirty bool

	Mode  Mode
	State State

	// Cycles counts successfully executed instructions.
	Cycles uint64

	Rand *rand.Rand
}

// Option configures a CPU created by NewCPU.
type Option func(*CPU)

// WithRand sets the random source used by the RND instruction.
func WithRand(r *rand.Rand) Option {
	return func(c *CPU) {
		c.Rand = r
	}
}

// WithSeed seeds a deterministic random source for the RND instruction.
func WithSeed(seed uint64) Option {
	return WithRand(rand.New(rand.NewPCG(seed, seed^0x9E3779B97F4A7C15)))
}

func NewCPU(opts ...Option) *CPU {
	c := &CPU{}
	for _, opt := range opts {
		opt(c)
	}
	c.Reset()
	return c
}

func newRand() *rand.Rand {
	return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
}

// random returns the random source, seeding one for a CPU that was never
// reset.
func (c *CPU) random() *rand.Rand {
	if c.Rand == nil {
		c.Rand = newRand()
	}
	return c.Rand
}

// Reset zeroes the machine, writes the font and points PC at the program
// start. The random source is kept, or seeded when there is none.
func (c *CPU) Reset() {
	r := c.Rand
	if r == nil {
		r = newRand()
	}
	*c = CPU{Rand: r}
	c.PC = ProgramStart
	copy(c.Memory[FontStart:], fontSet[:])
}

// LoadROM copies rom into memory at ProgramStart. Memory is left untouched
// when the ROM does not fit.
func (c *CPU) LoadROM(rom []byte) error {
	if len(rom) > MaxROMSize {
		return fmt.Errorf("%w: %d bytes, limit is %d", ErrRomTooLarge, len(rom), MaxROMSize)
	}
	copy(c.Memory[ProgramStart:], rom)
	return nil
}

// LoadROMFrom reads a ROM image from r and loads it with LoadROM.
func (c *CPU) LoadROMFrom(r io.Reader) error {
	rom, err := io.ReadAll(io.LimitReader(r, MaxROMSize+1))
	if err != nil {
		return fmt.Errorf("reading rom: %w", err)
	}
	return c.LoadROM(rom)
}

// SetKey latches the pressed state of a logical key. Keys outside 0x0-0xF
// are ignored.
func (c *CPU) SetKey(key uint8, pressed bool) {
	if key < NumKeys {
		c.Keys[key] = pressed
	}
}

func (c *CPU) ReleaseAll() {
	c.Keys = [NumKeys]bool{}
}

// TickTimers is the 60 Hz timer edge. It is owned by the scheduler and is
// never called from Step.
func (c *CPU) TickTimers() {
	if c.DT > 0 {
		c.DT--
	}
}

// Fetch reads the big-endian opcode at PC.
func (c *CPU) Fetch() (uint16, error) {
	if int(c.PC)+1 >= MemorySize {
		return 0, boundsError(int(c.PC), 2)
	}
	return uint16(c.Memory[c.PC])<<8 | uint16(c.Memory[c.PC+1]), nil
}

// Step performs one instruction cycle. On error nothing has been modified,
// so the caller may retry, Skip, or stop.
func (c *CPU) Step() (State, error) {
	if c.State == Halted {
		return Halted, nil
	}

	pc := c.PC
	op, err := c.Fetch()
	if err != nil {
		return c.State, &StepError{PC: pc, Err: err}
	}

	in, err := Decode(op)
	if err != nil {
		return c.State, &StepError{PC: pc, Opcode: op, Err: err}
	}

	state, err := c.Execute(in)
	if err != nil {
		return c.State, &StepError{PC: pc, Opcode: op, Err: err}
	}
	c.Cycles++
	return state, nil
}

// Skip moves PC past the current instruction. Callers use it to step over
// an unknown opcode.
func (c *CPU) Skip() {
	c.PC += 2
}

// Run executes up to max cycles, stopping early when the machine halts,
// waits for a key or fails. It returns the number of instructions executed.
func (c *CPU) Run(max int) (int, error) {
	n := 0
	for n < max {
		if c.State == Halted {
			break
		}
		before := c.Cycles
		state, err := c.Step()
		if c.Cycles != before {
			n++
		}
		if err != nil {
			return n, err
		}
		if state != Running {
			break
		}
	}
	return n, nil
}

// RunUntilWait steps until the machine halts, waits for a key or fails.
// A program that never does either keeps it running.
func (c *CPU) RunUntilWait() (int, error) {
	n := 0
	for c.State == Running {
		before := c.Cycles
		_, err := c.Step()
		if c.Cycles != before {
			n++
		}
		if err != nil {
			return n, err
		}
	}
	return n, nil
}
