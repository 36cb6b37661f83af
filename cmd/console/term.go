//go:build linux || darwin

package main

import (
	"fmt"
	"os"

	"github.com/pkg/term"
	"golang.org/x/sys/unix"
)

type terminal struct {
	tty *term.Term
}

func openTerminal() (*terminal, error) {
	tty, err := term.Open("/dev/tty", term.RawMode)
	if err != nil {
		return nil, fmt.Errorf("open tty: %w", err)
	}
	return &terminal{tty: tty}, nil
}

func (t *terminal) Read(p []byte) (int, error) {
	return t.tty.Read(p)
}

// Close puts the terminal back into the mode it was opened in.
func (t *terminal) Close() error {
	if err := t.tty.Restore(); err != nil {
		t.tty.Close()
		return err
	}
	return t.tty.Close()
}

// geometry returns the character size of the output terminal.
func geometry() (cols, rows int, err error) {
	ws, err := unix.IoctlGetWinsize(int(os.Stdout.Fd()), unix.TIOCGWINSZ)
	if err != nil {
		return 0, 0, err
	}
	return int(ws.Col), int(ws.Row), nil
}
