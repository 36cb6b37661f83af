//go:build linux || darwin

package main

import (
	"strings"

	"gochip8/pkg/cpu"
	"gochip8/pkg/grid"
)

const (
	ansiHome       = "\x1b[H"
	ansiClear      = "\x1b[2J"
	ansiHideCursor = "\x1b[?25l"
	ansiShowCursor = "\x1b[?25h"
	ansiClearLine  = "\x1b[K"
)

// Two pixel rows share one character cell.
var halfBlocks = [4]string{" ", "▀", "▄", "█"}

// renderFrame draws fb with half-block characters followed by a status line.
// Lines end in CRLF because the terminal is in raw mode.
func renderFrame(fb []byte, status string) string {
	var b strings.Builder
	b.Grow(grid.HalfBlockRows(cpu.Height) * (cpu.Width*3 + 2))
	b.WriteString(ansiHome)

	cells := grid.HalfBlockRows(cpu.Height) * cpu.Width
	for i := 0; i < cells; i++ {
		x, row := grid.GetGridCoords(i, cpu.Width)
		top := fb[grid.GetIndex(x, row*2, cpu.Width, cpu.Height)]
		var bottom byte
		if row*2+1 < cpu.Height {
			bottom = fb[grid.GetIndex(x, row*2+1, cpu.Width, cpu.Height)]
		}
		b.WriteString(halfBlocks[top|bottom<<1])
		if x == cpu.Width-1 {
			b.WriteString("\r\n")
		}
	}

	b.WriteString("MACHINE: CHIP8  ")
	b.WriteString(status)
	b.WriteString(ansiClearLine)
	b.WriteString("\r\n")
	return b.String()
}
