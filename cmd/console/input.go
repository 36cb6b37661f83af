//go:build linux || darwin

package main

import "gochip8/pkg/cpu"

// keyLayout lists the host key for each CHIP-8 key, 0 through F.
const keyLayout = "x123qweasdzc4rfv"

// Terminals report presses but not releases, so a key stays down for
// holdFrames frames after its last byte arrives.
const holdFrames = 6

const (
	keyQuit  = 0x1B // escape
	keyIntr  = 0x03 // ctrl-c
	keyPause = 'p'
	keyStep  = 'n'
)

func keyIndex(b byte) (uint8, bool) {
	if b >= 'A' && b <= 'Z' {
		b += 'a' - 'A'
	}
	for i := 0; i < len(keyLayout); i++ {
		if keyLayout[i] == b {
			return uint8(i), true
		}
	}
	return 0, false
}

type keypad struct {
	held [cpu.NumKeys]int
}

func (k *keypad) press(key uint8) {
	k.held[key] = holdFrames
}

// apply writes the pad into vm and ages every held key by one frame.
func (k *keypad) apply(vm *cpu.CPU) {
	for i := range k.held {
		vm.SetKey(uint8(i), k.held[i] > 0)
		if k.held[i] > 0 {
			k.held[i]--
		}
	}
}
