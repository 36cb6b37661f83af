package main

import (
	"errors"
	"flag"
	"fmt"
	"image/color"
	"log"
	"os"
	"path/filepath"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"

	"gochip8/pkg/asm"
	"gochip8/pkg/clock"
	"gochip8/pkg/cpu"
	"gochip8/pkg/statsview"
)

type Game struct {
	vm  *cpu.CPU
	clk *clock.Clock

	scale       int
	on, off     color.RGBA
	skipUnknown bool

	paused   bool
	showRegs bool
	err      error

	screenImg *ebiten.Image // reused 64x32 canvas
	drawn     bool
}

type config struct {
	scale       int
	cpuHz       int
	seed        uint64
	skipUnknown bool
	on, off     color.RGBA
}

func newGame(rom []byte, cfg config) (*Game, error) {
	var opts []cpu.Option
	if cfg.seed != 0 {
		opts = append(opts, cpu.WithSeed(cfg.seed))
	}
	vm := cpu.NewCPU(opts...)
	if err := vm.LoadROM(rom); err != nil {
		return nil, err
	}
	clk, err := clock.New(cfg.cpuHz, clock.DefaultTimerHz)
	if err != nil {
		return nil, err
	}
	return &Game{
		vm:          vm,
		clk:         clk,
		scale:       cfg.scale,
		on:          cfg.on,
		off:         cfg.off,
		skipUnknown: cfg.skipUnknown,
	}, nil
}

func (g *Game) Update() error {
	if inpututil.IsKeyJustPressed(ebiten.KeyEscape) {
		return ebiten.Termination
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyP) {
		g.paused = !g.paused
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyF1) {
		g.showRegs = !g.showRegs
	}
	syncKeys(g.vm, ebiten.IsKeyPressed)

	if g.paused {
		if inpututil.IsKeyJustPressed(ebiten.KeyN) {
			g.step()
		}
		return nil
	}
	g.frame()
	return nil
}

// frame runs one 60 Hz tick: the timers, then this frame's cycle budget.
func (g *Game) frame() {
	if g.err != nil || g.vm.State == cpu.Halted {
		return
	}
	g.vm.TickTimers()
	for n := g.clk.Tick(); n > 0; n-- {
		if !g.step() || g.vm.State != cpu.Running {
			return
		}
	}
}

// step runs one instruction and reports whether execution may continue.
func (g *Game) step() bool {
	_, err := g.vm.Step()
	if err == nil {
		return true
	}
	if g.skipUnknown && errors.Is(err, cpu.ErrUnknownOpcode) {
		log.Printf("skipping: %v", err)
		g.vm.Skip()
		return true
	}
	log.Print(err)
	g.err = err
	g.paused = true
	return false
}

func (g *Game) Draw(screen *ebiten.Image) {
	if g.screenImg == nil {
		g.screenImg = ebiten.NewImage(cpu.Width, cpu.Height)
	}
	if g.vm.Dirty || !g.drawn {
		g.screenImg.WritePixels(g.vm.FramebufferRGBA(g.on, g.off))
		g.vm.ClearDirty()
		g.drawn = true
	}

	op := &ebiten.DrawImageOptions{}
	op.GeoM.Scale(float64(g.scale), float64(g.scale))
	screen.DrawImage(g.screenImg, op)

	g.drawHUD(screen)
}

func (g *Game) Layout(outsideWidth, outsideHeight int) (int, int) {
	return cpu.Width * g.scale, cpu.Height*g.scale + hudHeight
}

func parseColor(s string) (color.RGBA, error) {
	var c color.RGBA
	if _, err := fmt.Sscanf(s, "#%02x%02x%02x", &c.R, &c.G, &c.B); err != nil {
		return c, fmt.Errorf("invalid color %q: want #rrggbb", s)
	}
	c.A = 0xFF
	return c, nil
}

func init() {
	exe, _ := os.Executable()
	log.SetFlags(0)
	log.SetPrefix(fmt.Sprintf("%s: ", filepath.Base(exe)))
	log.SetOutput(os.Stderr)
}

func main() {
	var cfg config
	flag.IntVar(&cfg.scale, "scale", 7, "window scale factor")
	flag.IntVar(&cfg.cpuHz, "hz", clock.DefaultCPUHz, "instructions per second")
	flag.Uint64Var(&cfg.seed, "seed", 0, "random seed (0 picks one)")
	flag.BoolVar(&cfg.skipUnknown, "skip-unknown", false, "skip unknown opcodes instead of pausing")
	onColor := flag.String("on", "#ff0000", "lit pixel color")
	offColor := flag.String("off", "#000000", "unlit pixel color")
	stats := flag.Bool("stats", false, "serve runtime statistics at "+statsview.URL(""))
	flag.Parse()

	if flag.NArg() != 1 {
		log.Fatalf("usage: %s [flags] <rom.ch8|source.asm>", filepath.Base(os.Args[0]))
	}

	var err error
	if cfg.on, err = parseColor(*onColor); err != nil {
		log.Fatal(err)
	}
	if cfg.off, err = parseColor(*offColor); err != nil {
		log.Fatal(err)
	}

	rom, err := asm.LoadProgram(flag.Arg(0))
	if err != nil {
		log.Fatalf("Failed to load program: %v", err)
	}

	game, err := newGame(rom, cfg)
	if err != nil {
		log.Fatal(err)
	}

	if *stats {
		statsview.Launch("", os.Stdout)
	}

	w, h := game.Layout(0, 0)
	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)
	ebiten.SetWindowSize(w, h)
	ebiten.SetWindowTitle("CHIP-8 - " + filepath.Base(flag.Arg(0)))
	ebiten.SetTPS(clock.DefaultTimerHz)

	if err := ebiten.RunGame(game); err != nil {
		log.Fatal(err)
	}
}
