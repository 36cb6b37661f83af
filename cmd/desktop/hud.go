package main

import (
	"fmt"
	"image/color"
	"strings"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/text/v2"
	"golang.org/x/image/font/basicfont"

	"gochip8/pkg/cpu"
)

const hudHeight = 20

var hudFace = text.NewGoXFace(basicfont.Face7x13)

var hudColor = color.RGBA{R: 0xC0, G: 0xC0, B: 0xC0, A: 0xFF}

func (g *Game) status() string {
	switch {
	case g.err != nil:
		return "ERROR: " + g.err.Error()
	case g.vm.State == cpu.Halted:
		return "HALTED"
	case g.paused:
		return "PAUSED (N steps)"
	case g.vm.State == cpu.AwaitingKey:
		return "WAITING FOR KEY"
	}
	return fmt.Sprintf("%d Hz", g.clk.CPUHz)
}

func (g *Game) drawHUD(screen *ebiten.Image) {
	op := &text.DrawOptions{}
	op.GeoM.Translate(4, float64(cpu.Height*g.scale+3))
	op.ColorScale.ScaleWithColor(hudColor)
	text.Draw(screen, "MACHINE: CHIP8  "+g.status(), hudFace, op)

	if g.showRegs {
		ebitenutil.DebugPrintAt(screen, registerText(g.vm), 4, 4)
	}
}

func registerText(vm *cpu.CPU) string {
	var b strings.Builder
	fmt.Fprintf(&b, "PC %03X  I %03X  SP %X  DT %02X\n", vm.PC, vm.I, vm.SP, vm.DT)
	for i, v := range vm.V {
		fmt.Fprintf(&b, "V%X %02X", i, v)
		if i%4 == 3 {
			b.WriteByte('\n')
		} else {
			b.WriteString("  ")
		}
	}
	if op, err := vm.Fetch(); err == nil {
		if in, err := cpu.Decode(op); err == nil {
			fmt.Fprintf(&b, "next %s", in)
		}
	}
	return b.String()
}
