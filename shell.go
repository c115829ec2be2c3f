package termdock

import (
	"bufio"
	"os"
	"os/user"
	"path/filepath"
	"strings"
)

// DefaultCommand is the command used when a terminal's Config.Cmd is empty:
// the user's login shell, started as a login shell.
func DefaultCommand(logger Logger) []string {
	return []string{ResolveShell(logger), "-l"}
}

// ResolveShell returns the executable path of the user's shell: $SHELL when
// it points at an existing file, then the /etc/passwd entry, then common
// fallbacks.
func ResolveShell(logger Logger) string {
	if logger == nil {
		logger = NopLogger{}
	}

	if shell := os.Getenv("SHELL"); shell != "" {
		if _, err := os.Stat(shell); err == nil {
			return shell
		}
		logger.Warn("SHELL points to missing file", "shell", shell)
	}

	if shell := shellFromPasswd(logger); shell != "" {
		return shell
	}

	for _, shell := range []string{"/bin/bash", "/bin/zsh", "/bin/sh"} {
		if _, err := os.Stat(shell); err == nil {
			logger.Info("Using fallback shell", "shell", filepath.Base(shell))
			return shell
		}
	}

	logger.Warn("No suitable shell found, using /bin/sh")
	return "/bin/sh"
}

func shellFromPasswd(logger Logger) string {
	current, err := user.Current()
	if err != nil {
		logger.Warn("Failed to resolve current user", "error", err)
		return ""
	}

	passwd, err := os.Open("/etc/passwd")
	if err != nil {
		logger.Warn("Failed to open /etc/passwd", "error", err)
		return ""
	}
	defer passwd.Close()

	scanner := bufio.NewScanner(passwd)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "#") || strings.TrimSpace(line) == "" {
			continue
		}

		fields := strings.Split(line, ":")
		if len(fields) < 7 || fields[0] != current.Username {
			continue
		}

		shell := fields[6]
		if _, err := os.Stat(shell); err == nil {
			return shell
		}
		logger.Warn("Shell from /etc/passwd missing", "shell", filepath.Base(shell))
	}

	if err := scanner.Err(); err != nil {
		logger.Warn("Error reading /etc/passwd", "error", err)
	}

	return ""
}
