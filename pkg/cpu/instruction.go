package cpu

import (
	"fmt"
	"strings"

	"github.com/retroenv/retrogolib/arch/cpu/chip8"
)

// Kind identifies a decoded instruction.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindCls
	KindRet
	KindExit
	KindLow
	KindHigh
	KindJump
	KindCall
	KindSkipEqByte
	KindSkipNeByte
	KindSkipEqReg
	KindSkipNeReg
	KindLoadByte
	KindAddByte
	KindMove
	KindOr
	KindAnd
	KindXor
	KindAddReg
	KindSub
	KindShr
	KindSubn
	KindShl
	KindLoadIndex
	KindJumpOffset
	KindRandom
	KindDraw
	KindSkipKey
	KindSkipNotKey
	KindLoadDelay
	KindWaitKey
	KindSetDelay
	KindSetSound
	KindAddIndex
	KindLoadFont
	KindStoreBCD
	KindStoreRegs
	KindLoadRegs
)

// superChipNames covers the SUPER-CHIP opcodes the base opcode table lacks.
var superChipNames = map[uint16]string{
	0x00FD: "EXIT",
	0x00FE: "LOW",
	0x00FF: "HIGH",
}

// lookupMnemonic finds op in the CHIP-8 opcode table grouped by first nibble.
func lookupMnemonic(op uint16) (string, bool) {
	for _, o := range chip8.Opcodes[op>>12] {
		if op&o.Info.Mask == o.Info.Value {
			return strings.ToUpper(o.Instruction.Name), true
		}
	}
	name, ok := superChipNames[op]
	return name, ok
}

// Instruction is a decoded opcode with its operand fields projected out.
type Instruction struct {
	Kind   Kind
	Opcode uint16
	X, Y   uint8
	N      uint8
	NN     byte
	NNN    uint16
}

// Operand projections of a raw opcode.

func Addr(op uint16) uint16 { return op & 0x0FFF }
func Byte(op uint16) byte { return byte(op & 0x00FF) }
func Nibble(op uint16) uint8 { return uint8(op & 0x000F) }
func RegX(op uint16) uint8 { return uint8((op & 0x0F00) >> 8) }
func RegY(op uint16) uint8 { return uint8((op & 0x00F0) >> 4) }

// Decode maps an opcode onto its instruction kind. Opcodes matching no
// instruction return an *OpcodeError.
func Decode(op uint16) (Instruction, error) {
	in := Instruction{
		Opcode: op,
		X:      RegX(op),
		Y:      RegY(op),
		N:      Nibble(op),
		NN:     Byte(op),
		NNN:    Addr(op),
	}

	switch op & 0xF000 {
	case 0x0000:
		switch op {
		case 0x00E0:
			in.Kind = KindCls
		case 0x00EE:
			in.Kind = KindRet
		case 0x00FD:
			in.Kind = KindExit
		case 0x00FE:
			in.Kind = KindLow
		case 0x00FF:
			in.Kind = KindHigh
		}
	case 0x1000:
		in.Kind = KindJump
	case 0x2000:
		in.Kind = KindCall
	case 0x3000:
		in.Kind = KindSkipEqByte
	case 0x4000:
		in.Kind = KindSkipNeByte
	case 0x5000:
		if in.N == 0 {
			in.Kind = KindSkipEqReg
		}
	case 0x6000:
		in.Kind = KindLoadByte
	case 0x7000:
		in.Kind = KindAddByte
	case 0x8000:
		switch in.N {
		case 0x0:
			in.Kind = KindMove
		case 0x1:
			in.Kind = KindOr
		case 0x2:
			in.Kind = KindAnd
		case 0x3:
			in.Kind = KindXor
		case 0x4:
			in.Kind = KindAddReg
		case 0x5:
			in.Kind = KindSub
		case 0x6:
			in.Kind = KindShr
		case 0x7:
			in.Kind = KindSubn
		case 0xE:
			in.Kind = KindShl
		}
	case 0x9000:
		if in.N == 0 {
			in.Kind = KindSkipNeReg
		}
	case 0xA000:
		in.Kind = KindLoadIndex
	case 0xB000:
		in.Kind = KindJumpOffset
	case 0xC000:
		in.Kind = KindRandom
	case 0xD000:
		in.Kind = KindDraw
	case 0xE000:
		switch in.NN {
		case 0x9E:
			in.Kind = KindSkipKey
		case 0xA1:
			in.Kind = KindSkipNotKey
		}
	case 0xF000:
		switch in.NN {
		case 0x07:
			in.Kind = KindLoadDelay
		case 0x0A:
			in.Kind = KindWaitKey
		case 0x15:
			in.Kind = KindSetDelay
		case 0x18:
			in.Kind = KindSetSound
		case 0x1E:
			in.Kind = KindAddIndex
		case 0x29:
			in.Kind = KindLoadFont
		case 0x33:
			in.Kind = KindStoreBCD
		case 0x55:
			in.Kind = KindStoreRegs
		case 0x65:
			in.Kind = KindLoadRegs
		}
	}

	if in.Kind == KindInvalid {
		return in, &OpcodeError{Opcode: op}
	}
	return in, nil
}

// Mnemonic returns the assembler mnemonic of the opcode, or "DW" when the
// opcode matches no instruction.
func (in Instruction) Mnemonic() string {
	if in.Kind == KindInvalid {
		return "DW"
	}
	if name, ok := lookupMnemonic(in.Opcode); ok {
		return name
	}
	return "DW"
}

// String formats the instruction in Cowgod assembler syntax, the same syntax
// pkg/asm accepts.
func (in Instruction) String() string {
	name := in.Mnemonic()
	switch in.Kind {
	case KindCls, KindRet, KindExit, KindLow, KindHigh:
		return name
	case KindJump, KindCall:
		return fmt.Sprintf("%s $%03X", name, in.NNN)
	case KindJumpOffset:
		return fmt.Sprintf("%s V0, $%03X", name, in.NNN)
	case KindSkipEqByte, KindSkipNeByte, KindLoadByte, KindAddByte, KindRandom:
		return fmt.Sprintf("%s V%X, $%02X", name, in.X, in.NN)
	case KindSkipEqReg, KindSkipNeReg, KindMove, KindOr, KindAnd, KindXor,
		KindAddReg, KindSub, KindSubn:
		return fmt.Sprintf("%s V%X, V%X", name, in.X, in.Y)
	case KindShr, KindShl, KindSkipKey, KindSkipNotKey:
		return fmt.Sprintf("%s V%X", name, in.X)
	case KindLoadIndex:
		return fmt.Sprintf("%s I, $%03X", name, in.NNN)
	case KindDraw:
		return fmt.Sprintf("%s V%X, V%X, $%X", name, in.X, in.Y, in.N)
	case KindLoadDelay:
		return fmt.Sprintf("%s V%X, DT", name, in.X)
	case KindWaitKey:
		return fmt.Sprintf("%s V%X, K", name, in.X)
	case KindSetDelay:
		return fmt.Sprintf("%s DT, V%X", name, in.X)
	case KindSetSound:
		return fmt.Sprintf("%s ST, V%X", name, in.X)
	case KindAddIndex:
		return fmt.Sprintf("%s I, V%X", name, in.X)
	case KindLoadFont:
		return fmt.Sprintf("%s F, V%X", name, in.X)
	case KindStoreBCD:
		return fmt.Sprintf("%s B, V%X", name, in.X)
	case KindStoreRegs:
		return fmt.Sprintf("%s [I], V%X", name, in.X)
	case KindLoadRegs:
		return fmt.Sprintf("%s V%X, [I]", name, in.X)
	}
	return fmt.Sprintf("DW $%04X", in.Opcode)
}

// Disassemble decodes every opcode in rom, which is assumed to be loaded at
// ProgramStart. Undecodable words and a trailing odd byte are rendered as
// data.
func Disassemble(rom []byte) []string {
	lines := make([]string, 0, len(rom)/2+1)
	for off := 0; off < len(rom); off += 2 {
		addr := ProgramStart + off
		if off+1 >= len(rom) {
			lines = append(lines, fmt.Sprintf("%03X: %02X    DB $%02X", addr, rom[off], rom[off]))
			break
		}
		op := uint16(rom[off])<<8 | uint16(rom[off+1])
		in, _ := Decode(op)
		lines = append(lines, fmt.Sprintf("%03X: %04X  %s", addr, op, in))
	}
	return lines
}
