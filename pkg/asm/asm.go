package asm

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"gochip8/pkg/cpu"
)

// Fixed-encoding instructions without operands.
var zeroOperandOps = map[string]uint16{
	"CLS":  0x00E0,
	"RET":  0x00EE,
	"EXIT": 0x00FD,
	"LOW":  0x00FE,
	"HIGH": 0x00FF,
}

// Vx, Vy instructions of the 8xyN family.
var twoRegisterOps = map[string]uint16{
	"OR":   0x8001,
	"AND":  0x8002,
	"XOR":  0x8003,
	"SUB":  0x8005,
	"SUBN": 0x8007,
}

// Instructions taking Vx with an optional, ignored Vy.
var shiftOps = map[string]uint16{
	"SHR": 0x8006,
	"SHL": 0x800E,
}

var keyOps = map[string]uint16{
	"SKP":  0xE09E,
	"SKNP": 0xE0A1,
}

// Fx instructions written LD <special>, Vx.
var loadFromRegister = map[string]uint16{
	"DT":  0xF015,
	"ST":  0xF018,
	"F":   0xF029,
	"B":   0xF033,
	"[I]": 0xF055,
}

// Fx instructions written LD Vx, <special>.
var loadIntoRegister = map[string]uint16{
	"DT":  0xF007,
	"K":   0xF00A,
	"[I]": 0xF065,
}

var otherOps = map[string]bool{
	"JP":   true,
	"CALL": true,
	"SE":   true,
	"SNE":  true,
	"LD":   true,
	"ADD":  true,
	"RND":  true,
	"DRW":  true,
}

type Assembler struct {
	labels map[string]uint16
}

type parsedLine struct {
	lineNo   int
	labels   []string
	mnemonic string
	operands []string
}

func NewAssembler() *Assembler {
	return &Assembler{
		labels: make(map[string]uint16),
	}
}

// Assemble translates CHIP-8 assembly into a ROM image meant to be loaded at
// cpu.ProgramStart. The source map is keyed by absolute address.
func Assemble(code string) ([]byte, map[uint16]int, error) {
	return NewAssembler().Assemble(code)
}

func (a *Assembler) Assemble(code string) ([]byte, map[uint16]int, error) {
	lines := strings.Split(code, "\n")
	a.labels = make(map[string]uint16)

	if err := a.pass1(lines); err != nil {
		return nil, nil, err
	}

	return a.pass2(lines)
}

// Label returns the address bound to name by the last Assemble call.
func (a *Assembler) Label(name string) (uint16, bool) {
	addr, ok := a.labels[normalizeLabel(name)]
	return addr, ok
}

func (a *Assembler) pass1(lines []string) error {
	address := uint32(cpu.ProgramStart)

	for i, raw := range lines {
		lineNo := i + 1
		p, err := parseLine(raw, lineNo)
		if err != nil {
			return err
		}

		for _, lbl := range p.labels {
			if address > cpu.MemorySize-1 {
				return fmt.Errorf("label '%s' on line %d points past addressable memory", lbl, lineNo)
			}
			key := normalizeLabel(lbl)
			if _, exists := a.labels[key]; exists {
				return fmt.Errorf("duplicate label '%s' on line %d", lbl, lineNo)
			}
			a.labels[key] = uint16(address)
		}

		if p.mnemonic == "" {
			continue
		}

		if p.mnemonic == ".ORG" {
			target, err := parseOrigin(p.operands, lineNo, address)
			if err != nil {
				return err
			}
			address = target
			continue
		}

		length, err := directiveLength(p)
		if err != nil {
			return err
		}
		if length == 0 {
			if !isMnemonic(p.mnemonic) {
				return fmt.Errorf("unknown instruction on line %d: %s", lineNo, p.mnemonic)
			}
			length = 2
		}

		if address+length > cpu.MemorySize {
			return fmt.Errorf("program too large near line %d", lineNo)
		}
		address += length
	}

	return nil
}

func (a *Assembler) pass2(lines []string) ([]byte, map[uint16]int, error) {
	program := make([]byte, 0)
	sourceMap := make(map[uint16]int)

	for i, raw := range lines {
		lineNo := i + 1
		p, err := parseLine(raw, lineNo)
		if err != nil {
			return nil, nil, err
		}

		if p.mnemonic == "" {
			continue
		}

		address := uint32(cpu.ProgramStart + len(program))
		mnemonic := p.mnemonic
		ops := p.operands

		if mnemonic == ".ORG" {
			target, err := parseOrigin(ops, lineNo, address)
			if err != nil {
				return nil, nil, err
			}
			program = append(program, make([]byte, target-address)...)
			continue
		}

		sourceMap[uint16(address)] = lineNo

		switch mnemonic {
		case ".BYTE", "DB":
			for _, op := range ops {
				val, err := a.parseValue(op, 0xFF, lineNo)
				if err != nil {
					return nil, nil, err
				}
				program = append(program, byte(val))
			}
			continue
		case ".WORD", "DW":
			for _, op := range ops {
				val, err := a.parseValue(op, 0xFFFF, lineNo)
				if err != nil {
					return nil, nil, err
				}
				program = append(program, byte(val>>8), byte(val&0xFF))
			}
			continue
		}

		instr, err := a.encode(mnemonic, ops, lineNo)
		if err != nil {
			return nil, nil, err
		}
		program = append(program, byte(instr>>8), byte(instr&0xFF))
	}

	if len(program) > cpu.MaxROMSize {
		return nil, nil, fmt.Errorf("program too large: %d bytes", len(program))
	}
	return program, sourceMap, nil
}

// encode produces the opcode for one instruction line.
func (a *Assembler) encode(mnemonic string, ops []string, lineNo int) (uint16, error) {
	if opcode, ok := zeroOperandOps[mnemonic]; ok {
		if len(ops) != 0 {
			return 0, fmt.Errorf("%s expects 0 operands on line %d", mnemonic, lineNo)
		}
		return opcode, nil
	}

	if opcode, ok := twoRegisterOps[mnemonic]; ok {
		if err := expectOperands(mnemonic, ops, 2, lineNo); err != nil {
			return 0, err
		}
		x, y, err := parseRegisterPair(ops, lineNo)
		if err != nil {
			return 0, err
		}
		return opcode | x<<8 | y<<4, nil
	}

	if opcode, ok := shiftOps[mnemonic]; ok {
		if len(ops) != 1 && len(ops) != 2 {
			return 0, fmt.Errorf("%s expects 1 or 2 operands on line %d", mnemonic, lineNo)
		}
		x, err := parseRegister(ops[0], lineNo)
		if err != nil {
			return 0, err
		}
		var y uint16
		if len(ops) == 2 {
			if y, err = parseRegister(ops[1], lineNo); err != nil {
				return 0, err
			}
		}
		return opcode | x<<8 | y<<4, nil
	}

	if opcode, ok := keyOps[mnemonic]; ok {
		if err := expectOperands(mnemonic, ops, 1, lineNo); err != nil {
			return 0, err
		}
		x, err := parseRegister(ops[0], lineNo)
		if err != nil {
			return 0, err
		}
		return opcode | x<<8, nil
	}

	switch mnemonic {
	case "JP":
		if len(ops) == 2 {
			if reg, err := parseRegister(ops[0], lineNo); err != nil || reg != 0 {
				return 0, fmt.Errorf("JP with offset must use V0 on line %d", lineNo)
			}
			addr, err := a.parseValue(ops[1], 0xFFF, lineNo)
			if err != nil {
				return 0, err
			}
			return 0xB000 | addr, nil
		}
		return a.encodeAddress(0x1000, mnemonic, ops, lineNo)

	case "CALL":
		return a.encodeAddress(0x2000, mnemonic, ops, lineNo)

	case "SE", "SNE":
		if err := expectOperands(mnemonic, ops, 2, lineNo); err != nil {
			return 0, err
		}
		regOp, immOp := uint16(0x5000), uint16(0x3000)
		if mnemonic == "SNE" {
			regOp, immOp = 0x9000, 0x4000
		}
		return a.encodeRegOrByte(regOp, immOp, ops, lineNo)

	case "ADD":
		if err := expectOperands(mnemonic, ops, 2, lineNo); err != nil {
			return 0, err
		}
		if strings.ToUpper(ops[0]) == "I" {
			x, err := parseRegister(ops[1], lineNo)
			if err != nil {
				return 0, err
			}
			return 0xF01E | x<<8, nil
		}
		return a.encodeRegOrByte(0x8004, 0x7000, ops, lineNo)

	case "LD":
		return a.encodeLoad(ops, lineNo)

	case "RND":
		if err := expectOperands(mnemonic, ops, 2, lineNo); err != nil {
			return 0, err
		}
		x, err := parseRegister(ops[0], lineNo)
		if err != nil {
			return 0, err
		}
		kk, err := a.parseValue(ops[1], 0xFF, lineNo)
		if err != nil {
			return 0, err
		}
		return 0xC000 | x<<8 | kk, nil

	case "DRW":
		if err := expectOperands(mnemonic, ops, 3, lineNo); err != nil {
			return 0, err
		}
		x, y, err := parseRegisterPair(ops, lineNo)
		if err != nil {
			return 0, err
		}
		n, err := a.parseValue(ops[2], 0xF, lineNo)
		if err != nil {
			return 0, err
		}
		return 0xD000 | x<<8 | y<<4 | n, nil
	}

	return 0, fmt.Errorf("unknown instruction on line %d: %s", lineNo, mnemonic)
}

func (a *Assembler) encodeAddress(base uint16, mnemonic string, ops []string, lineNo int) (uint16, error) {
	if err := expectOperands(mnemonic, ops, 1, lineNo); err != nil {
		return 0, err
	}
	addr, err := a.parseValue(ops[0], 0xFFF, lineNo)
	if err != nil {
		return 0, err
	}
	return base | addr, nil
}

// encodeRegOrByte handles the Vx, Vy / Vx, byte operand pairs.
func (a *Assembler) encodeRegOrByte(regOp, immOp uint16, ops []string, lineNo int) (uint16, error) {
	x, err := parseRegister(ops[0], lineNo)
	if err != nil {
		return 0, err
	}
	if isRegister(ops[1]) {
		y, err := parseRegister(ops[1], lineNo)
		if err != nil {
			return 0, err
		}
		return regOp | x<<8 | y<<4, nil
	}
	kk, err := a.parseValue(ops[1], 0xFF, lineNo)
	if err != nil {
		return 0, err
	}
	return immOp | x<<8 | kk, nil
}

func (a *Assembler) encodeLoad(ops []string, lineNo int) (uint16, error) {
	if err := expectOperands("LD", ops, 2, lineNo); err != nil {
		return 0, err
	}
	dst, src := strings.ToUpper(ops[0]), strings.ToUpper(ops[1])

	if dst == "I" {
		addr, err := a.parseValue(ops[1], 0xFFF, lineNo)
		if err != nil {
			return 0, err
		}
		return 0xA000 | addr, nil
	}

	if opcode, ok := loadFromRegister[dst]; ok {
		x, err := parseRegister(ops[1], lineNo)
		if err != nil {
			return 0, err
		}
		return opcode | x<<8, nil
	}

	x, err := parseRegister(ops[0], lineNo)
	if err != nil {
		return 0, err
	}
	if opcode, ok := loadIntoRegister[src]; ok {
		return opcode | x<<8, nil
	}
	return a.encodeRegOrByte(0x8000, 0x6000, ops, lineNo)
}

func expectOperands(mnemonic string, ops []string, n int, lineNo int) error {
	if len(ops) != n {
		return fmt.Errorf("%s expects %d operands on line %d", mnemonic, n, lineNo)
	}
	return nil
}

func parseRegisterPair(ops []string, lineNo int) (uint16, uint16, error) {
	x, err := parseRegister(ops[0], lineNo)
	if err != nil {
		return 0, 0, err
	}
	y, err := parseRegister(ops[1], lineNo)
	if err != nil {
		return 0, 0, err
	}
	return x, y, nil
}

func parseOrigin(ops []string, lineNo int, current uint32) (uint32, error) {
	if len(ops) != 1 {
		return 0, fmt.Errorf(".ORG expects exactly one operand on line %d", lineNo)
	}
	target, err := parseNumber(ops[0])
	if err != nil {
		return 0, fmt.Errorf("invalid .ORG value on line %d: %s", lineNo, ops[0])
	}
	if target < cpu.ProgramStart || target >= cpu.MemorySize {
		return 0, fmt.Errorf(".ORG out of range on line %d: %s", lineNo, ops[0])
	}
	if uint32(target) < current {
		return 0, fmt.Errorf("cannot move origin backward on line %d", lineNo)
	}
	return uint32(target), nil
}

// directiveLength returns the size of a data directive, or 0 for anything
// else.
func directiveLength(p parsedLine) (uint32, error) {
	switch p.mnemonic {
	case ".BYTE", "DB":
		if len(p.operands) == 0 {
			return 0, fmt.Errorf("%s expects at least one operand on line %d", p.mnemonic, p.lineNo)
		}
		return uint32(len(p.operands)), nil
	case ".WORD", "DW":
		if len(p.operands) == 0 {
			return 0, fmt.Errorf("%s expects at least one operand on line %d", p.mnemonic, p.lineNo)
		}
		return uint32(len(p.operands) * 2), nil
	}
	return 0, nil
}

func parseLine(raw string, lineNo int) (parsedLine, error) {
	p := parsedLine{lineNo: lineNo}

	line := strings.TrimSpace(stripComments(raw))
	if line == "" {
		return p, nil
	}

	for {
		colon := strings.IndexByte(line, ':')
		if colon <= 0 {
			break
		}

		beforeColon := strings.TrimSpace(line[:colon])
		if strings.ContainsAny(beforeColon, " \t") {
			break
		}

		if !isIdentifier(beforeColon) {
			return p, fmt.Errorf("invalid label '%s' on line %d", beforeColon, lineNo)
		}

		p.labels = append(p.labels, beforeColon)
		line = strings.TrimSpace(line[colon+1:])
		if line == "" {
			return p, nil
		}
	}

	line = normalizeInstructionText(line)
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return p, nil
	}

	p.mnemonic = strings.ToUpper(fields[0])
	if len(fields) > 1 {
		p.operands = fields[1:]
	}

	if p.mnemonic == ".ORG" && len(p.operands) != 1 {
		return p, fmt.Errorf(".ORG expects exactly one operand on line %d", lineNo)
	}

	return p, nil
}

func stripComments(line string) string {
	semicolon := strings.Index(line, ";")
	doubleSlash := strings.Index(line, "//")

	cut := -1
	if semicolon >= 0 {
		cut = semicolon
	}
	if doubleSlash >= 0 && (cut == -1 || doubleSlash < cut) {
		cut = doubleSlash
	}
	if cut >= 0 {
		return line[:cut]
	}
	return line
}

func normalizeInstructionText(line string) string {
	return strings.ReplaceAll(line, ",", " ")
}

func isRegister(token string) bool {
	_, err := parseRegister(token, 0)
	return err == nil
}

func parseRegister(token string, lineNo int) (uint16, error) {
	upper := strings.ToUpper(token)
	if len(upper) == 2 && upper[0] == 'V' {
		if v, err := strconv.ParseUint(upper[1:], 16, 8); err == nil {
			return uint16(v), nil
		}
	}
	return 0, fmt.Errorf("invalid register '%s' on line %d", token, lineNo)
}

// parseNumber accepts Go integer literals plus $-prefixed and #-prefixed hex.
func parseNumber(token string) (uint64, error) {
	switch {
	case strings.HasPrefix(token, "$"), strings.HasPrefix(token, "#"):
		return strconv.ParseUint(token[1:], 16, 32)
	}
	return strconv.ParseUint(token, 0, 32)
}

// parseValue resolves a number or label and checks it fits in max.
func (a *Assembler) parseValue(token string, max uint16, lineNo int) (uint16, error) {
	if value, err := parseNumber(token); err == nil {
		if value > uint64(max) {
			return 0, fmt.Errorf("immediate out of range on line %d: %s", lineNo, token)
		}
		return uint16(value), nil
	}

	label := normalizeLabel(token)
	if addr, ok := a.labels[label]; ok {
		if addr > max {
			return 0, fmt.Errorf("label '%s' does not fit operand on line %d", token, lineNo)
		}
		return addr, nil
	}

	if isIdentifier(token) {
		return 0, fmt.Errorf("undefined label '%s' on line %d", token, lineNo)
	}

	return 0, fmt.Errorf("invalid immediate '%s' on line %d", token, lineNo)
}

func isMnemonic(mnemonic string) bool {
	mnemonic = strings.ToUpper(mnemonic)

	if _, ok := zeroOperandOps[mnemonic]; ok {
		return true
	}
	if _, ok := twoRegisterOps[mnemonic]; ok {
		return true
	}
	if _, ok := shiftOps[mnemonic]; ok {
		return true
	}
	if _, ok := keyOps[mnemonic]; ok {
		return true
	}
	return otherOps[mnemonic]
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}

	for i, r := range s {
		if i == 0 {
			if !unicode.IsLetter(r) && r != '_' {
				return false
			}
			continue
		}

		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_' {
			return false
		}
	}

	return true
}

func normalizeLabel(label string) string {
	return strings.ToUpper(label)
}
