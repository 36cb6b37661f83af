package main

import (
	"github.com/hajimehoshi/ebiten/v2"

	"gochip8/pkg/cpu"
)

// keyMap is indexed by CHIP-8 key. The left side of a QWERTY keyboard stands
// in for the 4x4 hex pad:
//
//	1 2 3 C      1 2 3 4
//	4 5 6 D  ->  Q W E R
//	7 8 9 E      A S D F
//	A 0 B F      Z X C V
var keyMap = [cpu.NumKeys]ebiten.Key{
	ebiten.KeyX,
	ebiten.Key1,
	ebiten.Key2,
	ebiten.Key3,
	ebiten.KeyQ,
	ebiten.KeyW,
	ebiten.KeyE,
	ebiten.KeyA,
	ebiten.KeyS,
	ebiten.KeyD,
	ebiten.KeyZ,
	ebiten.KeyC,
	ebiten.Key4,
	ebiten.KeyR,
	ebiten.KeyF,
	ebiten.KeyV,
}

// syncKeys copies the host keyboard into the machine's keypad.
func syncKeys(vm *cpu.CPU, pressed func(ebiten.Key) bool) {
	for k, key := range keyMap {
		vm.SetKey(uint8(k), pressed(key))
	}
}
