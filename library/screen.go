package library

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

type Level int

const (
	LevelSuccess Level = iota
	LevelError
)

func (l Level) String() string {
	if l == LevelError {
		return "error"
	}
	return "success"
}

// Screen is what the manager needs from whatever renders it.
type Screen interface {
	Notify(level Level, msg string)
	Confirm(prompt string) bool
	ScrollToTop()
}

// ConsoleScreen renders notifications as single lines and reads
// confirmations from in.
type ConsoleScreen struct {
	in  *bufio.Scanner
	out io.Writer
	tty bool
}

// NewConsoleScreen shares in with the caller; pass the same scanner the
// shell reads commands from so input is not split between two buffers.
func NewConsoleScreen(in *bufio.Scanner, out io.Writer) *ConsoleScreen {
	tty := false
	if f, ok := out.(*os.File); ok {
		tty = term.IsTerminal(int(f.Fd()))
	}
	return &ConsoleScreen{in: in, out: out, tty: tty}
}

func (s *ConsoleScreen) Notify(level Level, msg string) {
	switch level {
	case LevelError:
		fmt.Fprintf(s.out, "✗ %s\n", msg)
	default:
		fmt.Fprintf(s.out, "✓ %s\n", msg)
	}
}

func (s *ConsoleScreen) Confirm(prompt string) bool {
	fmt.Fprintf(s.out, "%s [y/N]: ", prompt)
	if s.in == nil || !s.in.Scan() {
		fmt.Fprintln(s.out)
		return false
	}
	switch strings.ToLower(strings.TrimSpace(s.in.Text())) {
	case "y", "yes":
		return true
	}
	return false
}

// ScrollToTop clears the terminal. It is a no-op when out is not a TTY.
func (s *ConsoleScreen) ScrollToTop() {
	if s.tty {
		fmt.Fprint(s.out, "\033[2J\033[H")
	}
}

// AutoConfirm answers every confirmation with yes. Used by --yes.
type AutoConfirm struct {
	Screen
}

func (AutoConfirm) Confirm(string) bool { return true }
