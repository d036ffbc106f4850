package scan

import (
	"bufio"
	"io"
	"strings"
)

type Key int

const (
	KeyNone Key = iota
	KeyPause
	KeyQuit
)

func (k Key) String() string {
	switch k {
	case KeyPause:
		return "pause"
	case KeyQuit:
		return "quit"
	default:
		return "none"
	}
}

// Control is polled once per loop iteration and must not block.
type Control interface {
	Poll() Key
}

type NoControl struct{}

func (NoControl) Poll() Key { return KeyNone }

// ChanControl polls a channel of keys.
type ChanControl <-chan Key

func (c ChanControl) Poll() Key {
	select {
	case k, ok := <-c:
		if !ok {
			return KeyNone
		}
		return k
	default:
		return KeyNone
	}
}

// ReaderControl maps lines read from r to keys: "p" toggles pause and "q"
// quits. The reader is consumed on its own goroutine; the returned channel
// closes when r is exhausted.
func ReaderControl(r io.Reader) ChanControl {
	keys := make(chan Key, 4)
	go func() {
		defer close(keys)
		sc := bufio.NewScanner(r)
		for sc.Scan() {
			switch strings.ToLower(strings.TrimSpace(sc.Text())) {
			case "p", "pause":
				keys <- KeyPause
			case "q", "quit":
				keys <- KeyQuit
			}
		}
	}()
	return keys
}
