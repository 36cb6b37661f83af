package cpu

import (
	"errors"
	"fmt"
)

var (
	ErrUnknownOpcode  = errors.New("unknown opcode")
	ErrStackOverflow  = errors.New("stack overflow")
	ErrStackUnderflow = errors.New("stack underflow")
	ErrOutOfBounds    = errors.New("memory access out of bounds")
	ErrRomTooLarge    = errors.New("rom too large")
)

// OpcodeError reports an opcode that matches no instruction.
type OpcodeError struct {
	Opcode uint16
}

func (e *OpcodeError) Error() string {
	return fmt.Sprintf("unknown opcode 0x%04X", e.Opcode)
}

func (e *OpcodeError) Unwrap() error {
	return ErrUnknownOpcode
}

// StepError is returned by Step when a cycle fails. The machine state is
// exactly as it was before the cycle started.
type StepError struct {
	PC     uint16
	Opcode uint16
	Err    error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("cycle at 0x%03X (opcode 0x%04X): %v", e.PC, e.Opcode, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

func boundsError(addr int, length int) error {
	return fmt.Errorf("%w: 0x%X+%d", ErrOutOfBounds, addr, length)
}
