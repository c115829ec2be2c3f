package termdock

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// Confirmer answers yes/no questions before destructive operations. Kill
// consults the manager's Confirmer before terminating a process.
type Confirmer interface {
	Confirm(prompt string) (bool, error)
}

// ParseConfirmation interprets a user answer to a yes/no prompt. It accepts
// "y", "ye" and "yes" in any case; every other answer, including an
// unrecognized one, declines.
func ParseConfirmation(answer string) bool {
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "ye", "yes":
		return true
	default:
		return false
	}
}

// ReaderConfirmer prompts on out and reads one answer line from in. It
// blocks the calling goroutine until the user answers, so it is only suited
// to interactive hosts; servers should gate destructive calls with their own
// request/confirm round trip and use StaticConfirmer.
type ReaderConfirmer struct {
	In  io.Reader
	Out io.Writer
}

func (c ReaderConfirmer) Confirm(prompt string) (bool, error) {
	if c.Out != nil {
		if _, err := fmt.Fprint(c.Out, prompt); err != nil {
			return false, err
		}
	}

	line, err := bufio.NewReader(c.In).ReadString('\n')
	if err != nil && line == "" {
		return false, err
	}
	return ParseConfirmation(line), nil
}

// StaticConfirmer always answers the same way.
type StaticConfirmer bool

func (c StaticConfirmer) Confirm(string) (bool, error) { return bool(c), nil }
