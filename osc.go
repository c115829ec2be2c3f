package termdock

import (
	"net/url"
	"strings"
)

// Terminal programs advertise their title and working directory through OSC
// escape sequences. The PTY backend watches its output stream for them to
// keep ChannelInfo fresh. Priority for the working directory follows common
// integrations: VSCode (OSC 633) > iTerm2 (OSC 1337) > OSC 7.

// extractOSCTitle returns the last title set via OSC 0 or OSC 2 in output.
func extractOSCTitle(output string) (string, bool) {
	title := ""
	found := false
	for _, prefix := range []string{"\x1b]0;", "\x1b]2;"} {
		rest := output
		for {
			start := strings.Index(rest, prefix)
			if start == -1 {
				break
			}
			rest = rest[start+len(prefix):]
			body, ok := untilOSCTerminator(rest)
			if !ok {
				break
			}
			title = body
			found = true
		}
	}
	return title, found
}

// extractOSCWorkingDir returns the last working directory advertised in
// output, if any.
func extractOSCWorkingDir(output string) (string, bool) {
	if !strings.Contains(output, "\x1b]633;P;Cwd=") &&
		!strings.Contains(output, "\x1b]1337;CurrentDir=") &&
		!strings.Contains(output, "\x1b]7;file://") {
		return "", false
	}

	if dir := lastOSCValue(output, "\x1b]633;P;Cwd="); dir != "" {
		return dir, true
	}
	if dir := lastOSCValue(output, "\x1b]1337;CurrentDir="); dir != "" {
		return dir, true
	}
	if dir := lastOSC7Dir(output); dir != "" {
		return dir, true
	}
	return "", false
}

func lastOSCValue(output, prefix string) string {
	value := ""
	rest := output
	for {
		start := strings.Index(rest, prefix)
		if start == -1 {
			return value
		}
		rest = rest[start+len(prefix):]
		body, ok := untilOSCTerminator(rest)
		if !ok {
			return value
		}
		value = body
	}
}

// lastOSC7Dir parses OSC 7 sequences: ESC ] 7 ; file://host/path ST|BEL.
func lastOSC7Dir(output string) string {
	dir := ""
	rest := output
	for {
		start := strings.Index(rest, "\x1b]7;file://")
		if start == -1 {
			return dir
		}
		rest = rest[start+len("\x1b]7;file://"):]
		body, ok := untilOSCTerminator(rest)
		if !ok {
			return dir
		}
		slash := strings.Index(body, "/")
		if slash == -1 {
			continue
		}
		path := body[slash:]
		if decoded, err := url.QueryUnescape(path); err == nil {
			path = decoded
		}
		dir = path
	}
}

// untilOSCTerminator returns the sequence body up to BEL or ST.
func untilOSCTerminator(s string) (string, bool) {
	bel := strings.Index(s, "\a")
	st := strings.Index(s, "\x1b\\")
	switch {
	case bel == -1 && st == -1:
		return "", false
	case bel == -1:
		return s[:st], true
	case st == -1 || bel < st:
		return s[:bel], true
	default:
		return s[:st], true
	}
}

// directoryName derives a short display name from a path, used when a title
// falls back to the working directory.
func directoryName(path string) string {
	path = strings.TrimSuffix(path, "/")
	if path == "" {
		return "root"
	}
	parts := strings.Split(path, "/")
	if name := parts[len(parts)-1]; name != "" {
		return name
	}
	return "root"
}
