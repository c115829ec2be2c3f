package termdock

import "strings"

// NormalizeInput prepares lines for writing to a process's input channel:
// the indentation common to all non-blank lines is stripped (so a multi-line
// block pasted from source code arrives without its incidental leading
// whitespace), blank lines are removed, and the payload ends with exactly
// one trailing newline. Arguments containing newlines are split first, so a
// single multi-line string and a slice of lines behave the same.
//
// The result is empty when no non-blank line remains.
func NormalizeInput(lines []string) string {
	var split []string
	for _, l := range lines {
		split = append(split, strings.Split(l, "\n")...)
	}

	indent := commonIndent(split)

	out := make([]string, 0, len(split))
	for _, l := range split {
		if strings.TrimSpace(l) == "" {
			continue
		}
		out = append(out, strings.TrimPrefix(l, indent))
	}

	if len(out) == 0 {
		return ""
	}
	return strings.Join(out, "\n") + "\n"
}

// commonIndent returns the longest whitespace prefix shared by every
// non-blank line.
func commonIndent(lines []string) string {
	indent := ""
	first := true
	for _, l := range lines {
		if strings.TrimSpace(l) == "" {
			continue
		}
		li := leadingWhitespace(l)
		if first {
			indent = li
			first = false
			continue
		}
		indent = commonPrefix(indent, li)
		if indent == "" {
			return ""
		}
	}
	return indent
}

func leadingWhitespace(s string) string {
	for i, r := range s {
		if r != ' ' && r != '\t' {
			return s[:i]
		}
	}
	return s
}

func commonPrefix(a, b string) string {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	i := 0
	for i < n && a[i] == b[i] {
		i++
	}
	return a[:i]
}
