package cpu

import (
	"bytes"
	"errors"
	"testing"
)

// w16 writes a big-endian opcode at addr.
func w16(c *CPU, addr uint16, val uint16) {
	c.Memory[addr] = byte(val >> 8)
	c.Memory[addr+1] = byte(val & 0xFF)
}

// loadProgram loads a slice of opcodes into memory starting at ProgramStart.
func loadProgram(c *CPU, words ...uint16) {
	addr := uint16(ProgramStart)
	for _, w := range words {
		w16(c, addr, w)
		addr += 2
	}
}

// mustStep runs one cycle and fails the test on error.
func mustStep(t *testing.T, c *CPU) State {
	t.Helper()
	state, err := c.Step()
	if err != nil {
		t.Fatalf("Step at 0x%03X: unexpected error: %v", c.PC, err)
	}
	return state
}

func TestNewCPU(t *testing.T) {
	c := NewCPU()
	if c.PC != ProgramStart {
		t.Errorf("PC: expected 0x%03X, got 0x%03X", ProgramStart, c.PC)
	}
	if c.SP != 0 || c.I != 0 || c.DT != 0 {
		t.Errorf("expected zeroed SP/I/DT, got SP=%d I=0x%X DT=%d", c.SP, c.I, c.DT)
	}
	if !bytes.Equal(c.Memory[FontStart:FontStart+80], fontSet[:]) {
		t.Errorf("font not written to low memory")
	}
	if c.State != Running {
		t.Errorf("State: expected running, got %v", c.State)
	}
	for i := ProgramStart; i < MemorySize; i++ {
		if c.Memory[i] != 0 {
			t.Fatalf("Memory[0x%03X]: expected 0, got 0x%02X", i, c.Memory[i])
		}
	}
}

func TestFontGlyphs(t *testing.T) {
	font := fontSet[:]
	if len(font) != 80 {
		t.Fatalf("font length: expected 80, got %d", len(font))
	}
	// Spot check glyphs 0, 8 and F.
	checks := map[int][]byte{
		0x0: {0xF0, 0x90, 0x90, 0x90, 0xF0},
		0x8: {0xF0, 0x90, 0xF0, 0x90, 0xF0},
		0xF: {0xF0, 0x80, 0xF0, 0x80, 0x80},
	}
	for glyph, want := range checks {
		got := font[glyph*GlyphSize : glyph*GlyphSize+GlyphSize]
		if !bytes.Equal(got, want) {
			t.Errorf("glyph %X: expected % X, got % X", glyph, want, got)
		}
	}
}

func TestReset(t *testing.T) {
	c := NewCPU(WithSeed(7))
	r := c.Rand
	c.V[3] = 9
	c.PC = 0x400
	c.Display[10] = 1
	c.State = Halted
	c.Reset()
	if c.V[3] != 0 || c.PC != ProgramStart || c.Display[10] != 0 || c.State != Running {
		t.Errorf("Reset did not restore initial state")
	}
	if c.Rand != r {
		t.Errorf("Reset replaced the random source")
	}
}

func TestLoadAndAddScenario(t *testing.T) {
	c := NewCPU()
	if err := c.LoadROM([]byte{0x60, 0x0A, 0x70, 0x05, 0x00, 0x00}); err != nil {
		t.Fatalf("LoadROM: %v", err)
	}
	mustStep(t, c)
	mustStep(t, c)
	if c.V[0] != 0x0F {
		t.Errorf("V0: expected 0x0F, got 0x%02X", c.V[0])
	}
	if c.PC != 0x204 {
		t.Errorf("PC: expected 0x204, got 0x%03X", c.PC)
	}

	// 0x0000 is not an instruction: the cycle aborts and PC stays.
	_, err := c.Step()
	if !errors.Is(err, ErrUnknownOpcode) {
		t.Fatalf("expected ErrUnknownOpcode, got %v", err)
	}
	if c.PC != 0x204 {
		t.Errorf("PC after unknown opcode: expected 0x204, got 0x%03X", c.PC)
	}
	c.Skip()
	if c.PC != 0x206 {
		t.Errorf("PC after Skip: expected 0x206, got 0x%03X", c.PC)
	}
}

func TestAddImmediateWrapIdentity(t *testing.T) {
	c := NewCPU()
	for r := uint16(0); r < 16; r++ {
		for b := 0; b < 256; b += 17 {
			orig := byte(r*13 + uint16(b))
			c.V[r] = orig
			for _, imm := range []byte{byte(b), byte(256 - b)} {
				in, err := Decode(0x7000 | r<<8 | uint16(imm))
				if err != nil {
					t.Fatalf("Decode: %v", err)
				}
				if _, err := c.Execute(in); err != nil {
					t.Fatalf("Execute: %v", err)
				}
			}
			if c.V[r] != orig {
				t.Errorf("V%X: add %d then %d: expected 0x%02X, got 0x%02X", r, b, 256-b, orig, c.V[r])
			}
		}
	}
}

func TestALU(t *testing.T) {
	tests := []struct {
		name   string
		opcode uint16
		vx, vy byte
		wantVx byte
		wantVF byte
	}{
		{"LD", 0x8120, 0x11, 0x22, 0x22, 0},
		{"OR", 0x8121, 0xF0, 0x0F, 0xFF, 0},
		{"AND", 0x8122, 0xF3, 0x3F, 0x33, 0},
		{"XOR", 0x8123, 0xFF, 0x0F, 0xF0, 0},
		{"ADD no carry", 0x8124, 1, 2, 3, 0},
		{"ADD carry", 0x8124, 200, 100, 44, 1},
		{"ADD exact 255", 0x8124, 0xF0, 0x0F, 0xFF, 0},
		{"SUB no borrow", 0x8125, 5, 3, 2, 1},
		{"SUB borrow", 0x8125, 3, 5, 254, 0},
		{"SUB equal", 0x8125, 5, 5, 0, 0},
		{"SUBN no borrow", 0x8127, 3, 5, 2, 1},
		{"SUBN borrow", 0x8127, 5, 3, 254, 0},
		{"SUBN equal", 0x8127, 5, 5, 0, 1},
		{"SHR low bit set", 0x8126, 0x05, 0xFF, 0x02, 1},
		{"SHR low bit clear", 0x8126, 0x04, 0xFF, 0x02, 0},
		{"SHL high bit set", 0x812E, 0x81, 0x00, 0x02, 1},
		{"SHL high bit clear", 0x812E, 0x01, 0x00, 0x02, 0},
	}

	for _, tc := range tests {
		c := NewCPU()
		c.V[1] = tc.vx
		c.V[2] = tc.vy
		loadProgram(c, tc.opcode)
		mustStep(t, c)
		if c.V[1] != tc.wantVx {
			t.Errorf("%s: expected V1=0x%02X, got 0x%02X", tc.name, tc.wantVx, c.V[1])
		}
		if c.V[FlagReg] != tc.wantVF {
			t.Errorf("%s: expected VF=%d, got %d", tc.name, tc.wantVF, c.V[FlagReg])
		}
		if c.V[2] != tc.vy {
			t.Errorf("%s: Vy modified: expected 0x%02X, got 0x%02X", tc.name, tc.vy, c.V[2])
		}
		if c.PC != 0x202 {
			t.Errorf("%s: expected PC=0x202, got 0x%03X", tc.name, c.PC)
		}
	}
}

func TestFlagRegisterAsDestination(t *testing.T) {
	// ADD VF, V0: the result is written after the carry.
	c := NewCPU()
	c.V[FlagReg] = 0xFF
	c.V[0] = 0x01
	loadProgram(c, 0x8F04)
	mustStep(t, c)
	if c.V[FlagReg] != 0x00 {
		t.Errorf("ADD VF, V0: expected VF=0x00, got 0x%02X", c.V[FlagReg])
	}
}

func TestSkips(t *testing.T) {
	tests := []struct {
		name   string
		opcode uint16
		vx, vy byte
		wantPC uint16
	}{
		{"SE byte taken", 0x3142, 0x42, 0, 0x204},
		{"SE byte not taken", 0x3142, 0x41, 0, 0x202},
		{"SNE byte taken", 0x4142, 0x41, 0, 0x204},
		{"SNE byte not taken", 0x4142, 0x42, 0, 0x202},
		{"SE reg taken", 0x5120, 7, 7, 0x204},
		{"SE reg not taken", 0x5120, 7, 8, 0x202},
		{"SNE reg taken", 0x9120, 7, 8, 0x204},
		{"SNE reg not taken", 0x9120, 7, 7, 0x202},
	}
	for _, tc := range tests {
		c := NewCPU()
		c.V[1] = tc.vx
		c.V[2] = tc.vy
		loadProgram(c, tc.opcode)
		mustStep(t, c)
		if c.PC != tc.wantPC {
			t.Errorf("%s: expected PC=0x%03X, got 0x%03X", tc.name, tc.wantPC, c.PC)
		}
	}
}

func TestJumps(t *testing.T) {
	c := NewCPU()
	loadProgram(c, 0x1234)
	mustStep(t, c)
	if c.PC != 0x234 {
		t.Errorf("JP: expected PC=0x234, got 0x%03X", c.PC)
	}

	c = NewCPU()
	c.V[0] = 0x10
	loadProgram(c, 0xB300)
	mustStep(t, c)
	if c.PC != 0x310 {
		t.Errorf("JP V0: expected PC=0x310, got 0x%03X", c.PC)
	}
}

func TestCallReturn(t *testing.T) {
	c := NewCPU()
	loadProgram(c, 0x2300)
	w16(c, 0x300, 0x00EE)

	mustStep(t, c)
	if c.PC != 0x300 || c.SP != 1 || c.Stack[0] != 0x200 {
		t.Fatalf("CALL: expected PC=0x300 SP=1 Stack[0]=0x200, got PC=0x%03X SP=%d Stack[0]=0x%03X", c.PC, c.SP, c.Stack[0])
	}
	mustStep(t, c)
	if c.PC != 0x202 || c.SP != 0 {
		t.Errorf("RET: expected PC=0x202 SP=0, got PC=0x%03X SP=%d", c.PC, c.SP)
	}
}

// nestedCalls lays out 16 call sites at 0x300, 0x310, ... each calling the
// next, with a RET after every call site. site(16) holds last.
func nestedCalls(c *CPU, last uint16) {
	site := func(i int) uint16 { return uint16(0x300 + i*0x10) }
	for i := 0; i < StackSize; i++ {
		w16(c, site(i), 0x2000|site(i+1))
		w16(c, site(i)+2, 0x00EE)
	}
	w16(c, site(StackSize), last)
	c.PC = site(0)
}

func TestNestedCallsUnwind(t *testing.T) {
	c := NewCPU()
	nestedCalls(c, 0x00EE)

	for i := 0; i < StackSize; i++ {
		mustStep(t, c)
	}
	if c.SP != StackSize || c.PC != 0x400 {
		t.Fatalf("after 16 calls: expected SP=16 PC=0x400, got SP=%d PC=0x%03X", c.SP, c.PC)
	}

	for i := StackSize - 1; i >= 0; i-- {
		mustStep(t, c)
		want := uint16(0x300+i*0x10) + 2
		if c.PC != want {
			t.Fatalf("return %d: expected PC=0x%03X, got 0x%03X", StackSize-i, want, c.PC)
		}
	}
	if c.SP != 0 {
		t.Fatalf("expected empty stack, got SP=%d", c.SP)
	}

	// The RET at 0x302 now has nothing to pop.
	_, err := c.Step()
	if !errors.Is(err, ErrStackUnderflow) {
		t.Fatalf("expected ErrStackUnderflow, got %v", err)
	}
	if c.PC != 0x302 || c.SP != 0 {
		t.Errorf("state changed on underflow: PC=0x%03X SP=%d", c.PC, c.SP)
	}
}

func TestStackOverflow(t *testing.T) {
	c := NewCPU()
	nestedCalls(c, 0x2500)
	for i := 0; i < StackSize; i++ {
		mustStep(t, c)
	}
	stack := c.Stack

	_, err := c.Step()
	if !errors.Is(err, ErrStackOverflow) {
		t.Fatalf("expected ErrStackOverflow, got %v", err)
	}
	var stepErr *StepError
	if !errors.As(err, &stepErr) {
		t.Fatalf("expected *StepError, got %T", err)
	}
	if stepErr.PC != 0x400 || stepErr.Opcode != 0x2500 {
		t.Errorf("StepError: expected PC=0x400 opcode=0x2500, got PC=0x%03X opcode=0x%04X", stepErr.PC, stepErr.Opcode)
	}
	if c.PC != 0x400 || c.SP != StackSize || c.Stack != stack {
		t.Errorf("state changed on overflow: PC=0x%03X SP=%d", c.PC, c.SP)
	}
}

func TestLoadIndexAndFont(t *testing.T) {
	c := NewCPU()
	c.V[4] = 0xA
	loadProgram(c, 0xA123, 0xF429)
	mustStep(t, c)
	if c.I != 0x123 {
		t.Errorf("LD I: expected 0x123, got 0x%03X", c.I)
	}
	mustStep(t, c)
	if c.I != 0xA*GlyphSize {
		t.Errorf("LD F: expected 0x%03X, got 0x%03X", 0xA*GlyphSize, c.I)
	}
}

func TestAddIndexUnmasked(t *testing.T) {
	c := NewCPU()
	c.I = 0xFFF
	c.V[0] = 0x10
	loadProgram(c, 0xF01E, 0xF033)
	mustStep(t, c)
	if c.I != 0x100F {
		t.Errorf("ADD I: expected 0x100F, got 0x%04X", c.I)
	}

	// The overflow surfaces only when I is used.
	_, err := c.Step()
	if !errors.Is(err, ErrOutOfBounds) {
		t.Fatalf("expected ErrOutOfBounds, got %v", err)
	}
	if c.PC != 0x202 {
		t.Errorf("PC: expected 0x202, got 0x%03X", c.PC)
	}
}

func TestBCD(t *testing.T) {
	c := NewCPU()
	c.V[5] = 234
	c.I = 0x300
	loadProgram(c, 0xF533)
	mustStep(t, c)
	got := c.Memory[0x300:0x303]
	if !bytes.Equal(got, []byte{2, 3, 4}) {
		t.Errorf("BCD 234: expected 02 03 04, got % X", got)
	}

	c = NewCPU()
	c.V[5] = 7
	c.I = MemorySize - 2
	loadProgram(c, 0xF533)
	if _, err := c.Step(); !errors.Is(err, ErrOutOfBounds) {
		t.Errorf("BCD at end of memory: expected ErrOutOfBounds, got %v", err)
	}
	if c.Memory[MemorySize-2] != 0 || c.Memory[MemorySize-1] != 0 {
		t.Errorf("BCD wrote memory before failing")
	}
}

func TestStoreLoadRegisters(t *testing.T) {
	c := NewCPU()
	for i := range c.V {
		c.V[i] = byte(0xA0 + i)
	}
	c.I = 0x400
	loadProgram(c, 0xF355)
	mustStep(t, c)
	if !bytes.Equal(c.Memory[0x400:0x404], []byte{0xA0, 0xA1, 0xA2, 0xA3}) {
		t.Errorf("LD [I], V3: got % X", c.Memory[0x400:0x405])
	}
	if c.Memory[0x404] != 0 {
		t.Errorf("LD [I], V3 wrote past V3")
	}
	if c.I != 0x400 {
		t.Errorf("LD [I], V3: I changed to 0x%03X", c.I)
	}

	c = NewCPU()
	c.I = 0x500
	copy(c.Memory[0x500:], []byte{1, 2, 3})
	c.V[3] = 0xEE
	loadProgram(c, 0xF265)
	mustStep(t, c)
	if c.V[0] != 1 || c.V[1] != 2 || c.V[2] != 3 || c.V[3] != 0xEE {
		t.Errorf("LD V2, [I]: got V0..V3 = % X", c.V[:4])
	}

	c = NewCPU()
	c.I = MemorySize - 4
	loadProgram(c, 0xFF55)
	if _, err := c.Step(); !errors.Is(err, ErrOutOfBounds) {
		t.Errorf("LD [I], VF near end of memory: expected ErrOutOfBounds, got %v", err)
	}
}

func TestRandomMask(t *testing.T) {
	c := NewCPU(WithSeed(42))
	for i := 0; i < 64; i++ {
		c.PC = ProgramStart
		loadProgram(c, 0xC30F)
		mustStep(t, c)
		if c.V[3] > 0x0F {
			t.Fatalf("RND V3, $0F: got 0x%02X", c.V[3])
		}
	}
	c.PC = ProgramStart
	loadProgram(c, 0xC300)
	mustStep(t, c)
	if c.V[3] != 0 {
		t.Errorf("RND V3, $00: expected 0, got 0x%02X", c.V[3])
	}

	a, b := NewCPU(WithSeed(3)), NewCPU(WithSeed(3))
	loadProgram(a, 0xC0FF)
	loadProgram(b, 0xC0FF)
	mustStep(t, a)
	mustStep(t, b)
	if a.V[0] != b.V[0] {
		t.Errorf("same seed produced 0x%02X and 0x%02X", a.V[0], b.V[0])
	}
}

func TestRandomWithoutSource(t *testing.T) {
	var c CPU
	c.Reset()
	if c.Rand == nil {
		t.Fatalf("Reset left the random source nil")
	}
	loadProgram(&c, 0xC10F)
	mustStep(t, &c)
	if c.V[1] > 0x0F {
		t.Errorf("RND V1, $0F: got 0x%02X", c.V[1])
	}

	var raw CPU
	raw.PC = ProgramStart
	loadProgram(&raw, 0xC2FF)
	mustStep(t, &raw)
	if raw.Rand == nil {
		t.Errorf("RND on a never-reset CPU left the random source nil")
	}
}

func TestDelayTimer(t *testing.T) {
	c := NewCPU()
	c.V[2] = 3
	loadProgram(c, 0xF215, 0x6000, 0x6000, 0xF307)
	mustStep(t, c)
	if c.DT != 3 {
		t.Fatalf("LD DT, V2: expected 3, got %d", c.DT)
	}

	// Cycles never touch the timer.
	mustStep(t, c)
	mustStep(t, c)
	if c.DT != 3 {
		t.Errorf("DT changed during cycles: %d", c.DT)
	}

	c.TickTimers()
	mustStep(t, c)
	if c.V[3] != 2 {
		t.Errorf("LD V3, DT: expected 2, got %d", c.V[3])
	}

	for i := 0; i < 10; i++ {
		c.TickTimers()
	}
	if c.DT != 0 {
		t.Errorf("DT should stop at 0, got %d", c.DT)
	}
}

func TestSoundTimerAccepted(t *testing.T) {
	c := NewCPU()
	c.V[1] = 10
	loadProgram(c, 0xF118)
	mustStep(t, c)
	if c.PC != 0x202 {
		t.Errorf("LD ST, V1: expected PC=0x202, got 0x%03X", c.PC)
	}
}

func TestKeySkips(t *testing.T) {
	c := NewCPU()
	c.V[1] = 5
	c.SetKey(5, true)
	loadProgram(c, 0xE19E)
	mustStep(t, c)
	if c.PC != 0x204 {
		t.Errorf("SKP pressed: expected PC=0x204, got 0x%03X", c.PC)
	}

	c = NewCPU()
	c.V[1] = 5
	loadProgram(c, 0xE1A1)
	mustStep(t, c)
	if c.PC != 0x204 {
		t.Errorf("SKNP released: expected PC=0x204, got 0x%03X", c.PC)
	}

	c = NewCPU()
	c.V[1] = 5
	c.SetKey(5, true)
	loadProgram(c, 0xE1A1)
	mustStep(t, c)
	if c.PC != 0x202 {
		t.Errorf("SKNP pressed: expected PC=0x202, got 0x%03X", c.PC)
	}
}

func TestSetKeyRange(t *testing.T) {
	c := NewCPU()
	c.SetKey(16, true)
	c.SetKey(0xFF, true)
	for k, down := range c.Keys {
		if down {
			t.Errorf("key %X latched by out-of-range SetKey", k)
		}
	}
	c.SetKey(0xF, true)
	c.ReleaseAll()
	if c.Keys[0xF] {
		t.Errorf("ReleaseAll left key F latched")
	}
}

func TestWaitKey(t *testing.T) {
	c := NewCPU()
	loadProgram(c, 0xF30A)

	for i := 0; i < 5; i++ {
		state := mustStep(t, c)
		if state != AwaitingKey {
			t.Fatalf("cycle %d: expected awaiting key, got %v", i, state)
		}
		if c.PC != 0x200 {
			t.Fatalf("cycle %d: PC advanced to 0x%03X", i, c.PC)
		}
	}

	c.SetKey(0xB, true)
	c.SetKey(0xD, true)
	state := mustStep(t, c)
	if state != Running {
		t.Errorf("expected running after key press, got %v", state)
	}
	if c.V[3] != 0xB {
		t.Errorf("LD V3, K: expected 0xB, got 0x%X", c.V[3])
	}
	if c.PC != 0x202 {
		t.Errorf("PC: expected 0x202, got 0x%03X", c.PC)
	}
}

func TestExitHalts(t *testing.T) {
	c := NewCPU()
	loadProgram(c, 0x00FD, 0x6001)
	state := mustStep(t, c)
	if state != Halted {
		t.Fatalf("EXIT: expected halted, got %v", state)
	}
	cycles := c.Cycles
	state = mustStep(t, c)
	if state != Halted || c.PC != 0x200 || c.V[0] != 0 || c.Cycles != cycles {
		t.Errorf("Step on halted machine changed state")
	}
}

func TestModeSwitch(t *testing.T) {
	c := NewCPU()
	loadProgram(c, 0x00FF, 0x00FE)
	mustStep(t, c)
	if c.Mode != ModeExtended {
		t.Errorf("HIGH: expected extended mode, got %v", c.Mode)
	}
	mustStep(t, c)
	if c.Mode != ModeStandard {
		t.Errorf("LOW: expected standard mode, got %v", c.Mode)
	}
	if c.PC != 0x204 {
		t.Errorf("PC: expected 0x204, got 0x%03X", c.PC)
	}
}

func TestLoadROMLimits(t *testing.T) {
	c := NewCPU()
	big := bytes.Repeat([]byte{0xAA}, MaxROMSize+1)
	if err := c.LoadROM(big); !errors.Is(err, ErrRomTooLarge) {
		t.Fatalf("expected ErrRomTooLarge, got %v", err)
	}
	if c.Memory[ProgramStart] != 0 {
		t.Errorf("memory written by oversized ROM")
	}

	if err := c.LoadROM(big[:MaxROMSize]); err != nil {
		t.Fatalf("ROM of exactly %d bytes: %v", MaxROMSize, err)
	}
	if c.Memory[MemorySize-1] != 0xAA {
		t.Errorf("last byte not loaded")
	}

	c = NewCPU()
	if err := c.LoadROMFrom(bytes.NewReader(big)); !errors.Is(err, ErrRomTooLarge) {
		t.Errorf("LoadROMFrom: expected ErrRomTooLarge, got %v", err)
	}
	if err := c.LoadROMFrom(bytes.NewReader([]byte{0x12, 0x00})); err != nil {
		t.Errorf("LoadROMFrom: %v", err)
	}
	if c.Memory[ProgramStart] != 0x12 {
		t.Errorf("LoadROMFrom did not load at 0x200")
	}
}

func TestFetchOutOfBounds(t *testing.T) {
	c := NewCPU()
	c.PC = MemorySize - 1
	_, err := c.Step()
	if !errors.Is(err, ErrOutOfBounds) {
		t.Fatalf("expected ErrOutOfBounds, got %v", err)
	}
	var stepErr *StepError
	if !errors.As(err, &stepErr) || stepErr.PC != MemorySize-1 {
		t.Errorf("expected StepError at 0x%03X, got %v", MemorySize-1, err)
	}

	c.PC = MemorySize - 2
	w16(c, MemorySize-2, 0x1200)
	mustStep(t, c)
	if c.PC != 0x200 {
		t.Errorf("fetch of last word: expected jump to 0x200, got 0x%03X", c.PC)
	}
}

func TestRun(t *testing.T) {
	c := NewCPU()
	loadProgram(c, 0x6001, 0x7001, 0x7001, 0xF00A, 0x7001)
	n, err := c.Run(100)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if n != 4 {
		t.Errorf("Run: expected 4 cycles, got %d", n)
	}
	if c.State != AwaitingKey || c.V[0] != 3 {
		t.Errorf("Run: expected awaiting key with V0=3, got %v V0=%d", c.State, c.V[0])
	}

	c = NewCPU()
	loadProgram(c, 0x1200)
	n, err = c.Run(50)
	if err != nil || n != 50 {
		t.Errorf("Run on loop: expected 50 cycles, got %d (%v)", n, err)
	}

	c = NewCPU()
	loadProgram(c, 0x6001, 0x0000)
	n, err = c.Run(10)
	if !errors.Is(err, ErrUnknownOpcode) || n != 1 {
		t.Errorf("Run into bad opcode: expected 1 cycle and ErrUnknownOpcode, got %d (%v)", n, err)
	}
}

func TestRunUntilWait(t *testing.T) {
	c := NewCPU()
	loadProgram(c, 0x6001, 0x7001, 0xF00A, 0x7001)
	n, err := c.RunUntilWait()
	if err != nil {
		t.Fatalf("RunUntilWait: %v", err)
	}
	if n != 3 || c.State != AwaitingKey || c.V[0] != 2 {
		t.Errorf("RunUntilWait: expected 3 cycles awaiting key with V0=2, got %d %v V0=%d", n, c.State, c.V[0])
	}

	n, err = c.RunUntilWait()
	if err != nil || n != 0 {
		t.Errorf("RunUntilWait while awaiting key: expected 0 cycles, got %d (%v)", n, err)
	}

	c = NewCPU()
	loadProgram(c, 0x6001, 0x00FD, 0x7001)
	n, err = c.RunUntilWait()
	if err != nil || n != 2 || c.State != Halted || c.V[0] != 1 {
		t.Errorf("RunUntilWait to EXIT: expected 2 cycles halted with V0=1, got %d %v V0=%d (%v)", n, c.State, c.V[0], err)
	}

	c = NewCPU()
	loadProgram(c, 0x6001, 0x0000)
	n, err = c.RunUntilWait()
	if !errors.Is(err, ErrUnknownOpcode) || n != 1 {
		t.Errorf("RunUntilWait into bad opcode: expected 1 cycle and ErrUnknownOpcode, got %d (%v)", n, err)
	}
}
