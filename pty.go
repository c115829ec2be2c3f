package termdock

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/creack/pty"
)

const (
	minPTYCols = 20
	minPTYRows = 5
	maxPTYCols = 500
	maxPTYRows = 200
)

// PTYEnv is the baseline environment applied to every spawned process.
type PTYEnv struct {
	Term      string
	ColorTerm string
	Lang      string
}

// DefaultPTYEnv returns the baseline environment configuration.
func DefaultPTYEnv() PTYEnv {
	return PTYEnv{
		Term:      "xterm-256color",
		ColorTerm: "truecolor",
		Lang:      "en_US.UTF-8",
	}
}

// PTYBackendOptions configures a PTYBackend. Zero values get defaults.
type PTYBackendOptions struct {
	Logger Logger
	Cols   int
	Rows   int
	Env    PTYEnv

	// TerminateGrace is how long Terminate waits for a SIGTERM'd process
	// before escalating to SIGKILL.
	TerminateGrace time.Duration
}

// PTYBackend is a ProcessBackend that runs commands on a pseudo-terminal.
// Each process gets a reader goroutine delivering output chunks and a waiter
// goroutine delivering the exit code; titles are refreshed from OSC
// sequences observed in the output stream.
type PTYBackend struct {
	mu    sync.Mutex
	next  ProcHandle
	procs map[ProcHandle]*ptyProc

	logger Logger
	cols   int
	rows   int
	env    PTYEnv
	grace  time.Duration
}

type ptyProc struct {
	ptmx *os.File
	cmd  *exec.Cmd

	mu       sync.Mutex
	info     ChannelInfo
	dir      string
	sawTitle bool

	waitDone chan struct{}
}

// NewPTYBackend creates a PTY process backend.
func NewPTYBackend(opts PTYBackendOptions) *PTYBackend {
	logger := opts.Logger
	if logger == nil {
		logger = NopLogger{}
	}
	cols, rows := clampPTYSize(opts.Cols, opts.Rows)
	env := opts.Env
	if env == (PTYEnv{}) {
		env = DefaultPTYEnv()
	}
	grace := opts.TerminateGrace
	if grace <= 0 {
		grace = 2 * time.Second
	}
	return &PTYBackend{
		procs:  make(map[ProcHandle]*ptyProc),
		logger: logger,
		cols:   cols,
		rows:   rows,
		env:    env,
		grace:  grace,
	}
}

func clampPTYSize(cols, rows int) (int, int) {
	if cols <= 0 {
		cols = 80
	}
	if rows <= 0 {
		rows = 24
	}
	if cols < minPTYCols {
		cols = minPTYCols
	}
	if rows < minPTYRows {
		rows = minPTYRows
	}
	if cols > maxPTYCols {
		cols = maxPTYCols
	}
	if rows > maxPTYRows {
		rows = maxPTYRows
	}
	return cols, rows
}

// Spawn starts spec.Command on a new PTY and returns its handle. Callbacks
// in spec fire from backend goroutines after Spawn returns.
func (b *PTYBackend) Spawn(spec SpawnSpec) (ProcHandle, error) {
	if len(spec.Command) == 0 {
		return 0, fmt.Errorf("empty command")
	}

	cmd := exec.Command(spec.Command[0], spec.Command[1:]...)
	cmd.Dir = spec.Dir

	var env []string
	if !spec.ClearEnv {
		env = os.Environ()
	}
	for k, v := range spec.Env {
		env = append(env, k+"="+v)
	}
	env = append(env,
		"TERM="+b.env.Term,
		"COLORTERM="+b.env.ColorTerm,
		"LANG="+b.env.Lang,
		fmt.Sprintf("COLUMNS=%d", b.cols),
		fmt.Sprintf("LINES=%d", b.rows),
	)
	cmd.Env = env

	ptmx, err := pty.StartWithSize(cmd, &pty.Winsize{
		Cols: uint16(b.cols),
		Rows: uint16(b.rows),
	})
	if err != nil {
		return 0, fmt.Errorf("start pty: %w", err)
	}

	p := &ptyProc{
		ptmx: ptmx,
		cmd:  cmd,
		dir:  spec.Dir,
		info: ChannelInfo{
			Argv:  append([]string(nil), spec.Command...),
			PID:   cmd.Process.Pid,
			Title: strings.Join(spec.Command, " "),
		},
		waitDone: make(chan struct{}),
	}

	b.mu.Lock()
	b.next++
	handle := b.next
	b.procs[handle] = p
	b.mu.Unlock()

	go b.readOutput(handle, p, spec)
	go b.waitExit(handle, p, spec)

	b.logger.Info("Started PTY process", "proc", int(handle), "pid", p.info.PID, "cmd", p.info.Title)
	return handle, nil
}

func (b *PTYBackend) readOutput(handle ProcHandle, p *ptyProc, spec SpawnSpec) {
	buf := make([]byte, 4096)
	for {
		n, err := p.ptmx.Read(buf)
		if n > 0 {
			data := make([]byte, n)
			copy(data, buf[:n])
			b.scanEscapes(handle, p, spec, string(data))
			if spec.OnStdout != nil {
				spec.OnStdout(handle, data)
			}
		}
		if err != nil {
			b.logger.Debug("PTY read finished", "proc", int(handle), "error", err)
			return
		}
	}
}

// scanEscapes refreshes the process title from OSC sequences. An explicit
// OSC 0/2 title wins; otherwise the advertised working directory names the
// process.
func (b *PTYBackend) scanEscapes(handle ProcHandle, p *ptyProc, spec SpawnSpec, output string) {
	if !strings.Contains(output, "\x1b]") {
		return
	}

	newTitle := ""
	p.mu.Lock()
	if title, ok := extractOSCTitle(output); ok && title != "" {
		p.sawTitle = true
		if title != p.info.Title {
			p.info.Title = title
			newTitle = title
		}
	}
	if dir, ok := extractOSCWorkingDir(output); ok && dir != "" && dir != p.dir {
		p.dir = dir
		if !p.sawTitle {
			name := directoryName(dir)
			if name != p.info.Title {
				p.info.Title = name
				newTitle = name
			}
		}
	}
	p.mu.Unlock()

	if newTitle != "" && spec.OnTitle != nil {
		spec.OnTitle(handle, newTitle)
	}
}

func (b *PTYBackend) waitExit(handle ProcHandle, p *ptyProc, spec SpawnSpec) {
	err := p.cmd.Wait()
	exitCode := 0
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
		} else {
			exitCode = -1
		}
	}

	_ = p.ptmx.Close()
	close(p.waitDone)

	b.mu.Lock()
	delete(b.procs, handle)
	b.mu.Unlock()

	b.logger.Info("PTY process exited", "proc", int(handle), "exitCode", exitCode)
	if spec.OnExit != nil {
		spec.OnExit(handle, exitCode)
	}
}

func (b *PTYBackend) lookup(proc ProcHandle) (*ptyProc, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	p, ok := b.procs[proc]
	if !ok {
		return nil, fmt.Errorf("process %d: %w", proc, ErrNoSuchTerminal)
	}
	return p, nil
}

// Write sends data to the process input.
func (b *PTYBackend) Write(proc ProcHandle, data []byte) error {
	p, err := b.lookup(proc)
	if err != nil {
		return err
	}
	if _, err := p.ptmx.Write(data); err != nil {
		return fmt.Errorf("write to pty: %w", err)
	}
	return nil
}

// Terminate asks the process to exit with SIGTERM and escalates to SIGKILL
// after the configured grace period. Fire-and-forget: the exit itself is
// reported through the spawn spec's OnExit.
func (b *PTYBackend) Terminate(proc ProcHandle) error {
	p, err := b.lookup(proc)
	if err != nil {
		return err
	}

	if p.cmd.Process == nil {
		return nil
	}
	if err := p.cmd.Process.Signal(syscall.SIGTERM); err != nil {
		b.logger.Debug("SIGTERM failed", "proc", int(proc), "error", err)
	}

	go func() {
		select {
		case <-p.waitDone:
		case <-time.After(b.grace):
			b.logger.Debug("Force killing process", "proc", int(proc))
			_ = p.cmd.Process.Kill()
		}
	}()
	return nil
}

// ChannelInfo reports the process's argv, pid and current title.
func (b *PTYBackend) ChannelInfo(proc ProcHandle) (ChannelInfo, error) {
	p, err := b.lookup(proc)
	if err != nil {
		return ChannelInfo{}, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	info := p.info
	info.Argv = append([]string(nil), p.info.Argv...)
	return info, nil
}

// Resize changes the PTY dimensions for a running process.
func (b *PTYBackend) Resize(proc ProcHandle, cols, rows int) error {
	p, err := b.lookup(proc)
	if err != nil {
		return err
	}
	cols, rows = clampPTYSize(cols, rows)
	if err := pty.Setsize(p.ptmx, &pty.Winsize{Cols: uint16(cols), Rows: uint16(rows)}); err != nil {
		return fmt.Errorf("resize pty: %w", err)
	}
	return nil
}
