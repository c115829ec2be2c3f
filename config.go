package termdock

import "os"

// Config is the per-terminal configuration. A Manager carries an immutable
// defaults Config; each terminal gets its own value produced by MergeConfig,
// so changing defaults later never affects existing terminals.
type Config struct {
	// Cmd is the argv to run. Empty means the user's login shell with a
	// login flag (see DefaultCommand).
	Cmd []string

	// Cwd is the working directory. CwdFunc, when set, takes precedence
	// and is invoked at spawn time.
	Cwd     string
	CwdFunc func() string

	// Env entries are added to the spawned process environment. With
	// ClearEnv set the process starts from an empty environment instead of
	// inheriting this process's.
	Env      map[string]string
	ClearEnv bool

	// Autoclose tears the display down when the process exits or the
	// consumer starts closing, instead of leaving the dead surface around.
	Autoclose bool

	Layout Layout

	// HistoryChunks is the OutputRing capacity in chunks.
	HistoryChunks int

	OnExit   func(t *Terminal, exitCode int)
	OnStdout func(t *Terminal, data []byte)
	OnStderr func(t *Terminal, data []byte)
}

// MergeConfig produces the effective configuration for one terminal:
// explicit fields of override win, everything else inherits from defaults.
// Env merges key-by-key; Layout merges deeply. Boolean flags combine by OR
// since their zero value is the default. Neither input is mutated.
func MergeConfig(defaults, override Config) Config {
	merged := defaults

	if len(override.Cmd) > 0 {
		merged.Cmd = append([]string(nil), override.Cmd...)
	} else {
		merged.Cmd = append([]string(nil), defaults.Cmd...)
	}
	if override.Cwd != "" {
		merged.Cwd = override.Cwd
	}
	if override.CwdFunc != nil {
		merged.CwdFunc = override.CwdFunc
	}

	merged.Env = make(map[string]string, len(defaults.Env)+len(override.Env))
	for k, v := range defaults.Env {
		merged.Env[k] = v
	}
	for k, v := range override.Env {
		merged.Env[k] = v
	}

	merged.ClearEnv = defaults.ClearEnv || override.ClearEnv
	merged.Autoclose = defaults.Autoclose || override.Autoclose
	merged.Layout = defaults.Layout.Merge(override.Layout)

	if override.HistoryChunks > 0 {
		merged.HistoryChunks = override.HistoryChunks
	}
	if override.OnExit != nil {
		merged.OnExit = override.OnExit
	}
	if override.OnStdout != nil {
		merged.OnStdout = override.OnStdout
	}
	if override.OnStderr != nil {
		merged.OnStderr = override.OnStderr
	}

	return merged
}

// resolveCwd returns the working directory to spawn in, invoking CwdFunc
// when present.
func (c Config) resolveCwd() string {
	if c.CwdFunc != nil {
		return c.CwdFunc()
	}
	if c.Cwd != "" {
		return c.Cwd
	}
	if home, err := os.UserHomeDir(); err == nil {
		return home
	}
	return "/"
}

// applyDefaults fills unset defaults-level fields with safe values.
func (c Config) applyDefaults(logger Logger) Config {
	if len(c.Cmd) == 0 {
		c.Cmd = DefaultCommand(logger)
	}
	if c.Layout == nil {
		c.Layout = DefaultLayout()
	}
	if c.HistoryChunks <= 0 {
		c.HistoryChunks = 2048
	}
	return c
}
