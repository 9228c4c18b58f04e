package cancel

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync/atomic"

	"github.com/mattn/go-isatty"
	"golang.org/x/term"
)

// ErrNotTerminal is returned when keypress detection is asked for on a
// file that is not an interactive terminal.
var ErrNotTerminal = errors.New("not a terminal")

// KeypressToken latches on the first byte read from the terminal.
type KeypressToken struct {
	pressed atomic.Bool
	restore func() error
}

// Keypress puts f into raw mode and watches it for a single key.
// Close restores the terminal. The reader goroutine stays blocked on f
// after Close; the process is expected to exit soon after.
func Keypress(f *os.File) (*KeypressToken, error) {
	if !isatty.IsTerminal(f.Fd()) && !isatty.IsCygwinTerminal(f.Fd()) {
		return nil, ErrNotTerminal
	}

	fd := int(f.Fd())
	state, err := term.MakeRaw(fd)
	if err != nil {
		return nil, fmt.Errorf("enter raw mode: %w", err)
	}

	t := watch(f)
	t.restore = func() error {
		return term.Restore(fd, state)
	}
	return t, nil
}

func watch(r io.Reader) *KeypressToken {
	t := &KeypressToken{}
	go func() {
		buf := make([]byte, 1)
		for {
			n, err := r.Read(buf)
			if n > 0 {
				t.pressed.Store(true)
				return
			}
			if err != nil {
				return
			}
		}
	}()
	return t
}

// Cancelled reports whether a key has been pressed.
func (t *KeypressToken) Cancelled() bool {
	return t.pressed.Load()
}

// Close restores the terminal mode. Safe to call more than once.
func (t *KeypressToken) Close() error {
	if t.restore == nil {
		return nil
	}
	restore := t.restore
	t.restore = nil
	return restore()
}
