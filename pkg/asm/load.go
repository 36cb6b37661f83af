package asm

import (
	"fmt"
	"os"

	"gochip8/pkg/cpu"
	"gochip8/pkg/utils"
)

// LoadProgram returns the ROM bytes for path, assembling it first when it is
// a source file.
func LoadProgram(path string) ([]byte, error) {
	if !utils.IsSource(path) {
		return utils.ReadROM(path, cpu.MaxROMSize)
	}

	fullPath, _, err := utils.GetPathInfo(path)
	if err != nil {
		return nil, err
	}
	source, err := os.ReadFile(fullPath)
	if err != nil {
		return nil, err
	}
	rom, _, err := Assemble(string(source))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return rom, nil
}
