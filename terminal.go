package termdock

import (
	"fmt"
	"strings"
)

// State is a terminal's position in its lifecycle.
type State int

const (
	// StateUnattached: constructed, no process yet.
	StateUnattached State = iota
	// StateAttached: process and output consumer set, present in the
	// registry.
	StateAttached
	// StateDetached: process gone or consumer destroyed; handles cleared,
	// registry entry removed. The object remains a valid handle whose
	// operations are no-ops or re-spawns.
	StateDetached
)

func (s State) String() string {
	switch s {
	case StateAttached:
		return "attached"
	case StateDetached:
		return "detached"
	default:
		return "unattached"
	}
}

// Terminal is one logical terminal: a configuration plus, while attached, a
// process handle and the output consumer its process is channeled into.
// Construct with Manager.NewTerminal. The configuration is immutable for the
// terminal's lifetime; the handles change only under the manager's mutex.
type Terminal struct {
	mgr *Manager
	cfg Config

	state    State
	proc     ProcHandle
	consumer ConsumerHandle
	title    string

	ring *OutputRing
}

// Spawn starts the configured command and attaches the terminal: the process
// handle and the display's current output consumer are recorded together and
// the terminal enters the registry, all under one registry update. The
// current consumer must be fresh: when none exists or it already belongs to
// a registered terminal, Spawn fails before the backend is asked. Open
// creates a surface first and satisfies this; bare Spawn callers must
// arrange a consumer themselves. Spawning an already-attached terminal is a
// no-op. On failure the terminal stays unattached and the error wraps
// ErrSpawnFailed; the call may be retried.
func (t *Terminal) Spawn() error {
	m := t.mgr

	spec := SpawnSpec{
		Command:  t.cfg.Cmd,
		Dir:      t.cfg.resolveCwd(),
		Env:      t.cfg.Env,
		ClearEnv: t.cfg.ClearEnv,
		OnExit:   m.reapProcess,
		OnStdout: func(p ProcHandle, d []byte) { m.deliverOutput(p, StreamStdout, d) },
		OnStderr: func(p ProcHandle, d []byte) { m.deliverOutput(p, StreamStderr, d) },
		OnTitle:  m.handleTitle,
	}

	// The registry insert happens in the same critical section as the
	// backend call, so an immediate exit (reapProcess blocks on the same
	// mutex) can never observe the handle before it is registered.
	m.mu.Lock()
	if t.state == StateAttached {
		m.mu.Unlock()
		return nil
	}

	consumer := m.display.CurrentConsumer()
	if consumer == 0 {
		m.mu.Unlock()
		m.logger.Error("Terminal spawn failed", "cmd", strings.Join(t.cfg.Cmd, " "), "error", "no current output consumer")
		return fmt.Errorf("%w: no current output consumer", ErrSpawnFailed)
	}
	if _, owner, owned := m.registry.LookupByConsumer(consumer); owned {
		ownerProc := owner.proc
		m.mu.Unlock()
		m.logger.Error("Terminal spawn failed", "cmd", strings.Join(t.cfg.Cmd, " "), "consumer", int(consumer), "owner", int(ownerProc))
		return fmt.Errorf("%w: consumer %d already belongs to process %d", ErrSpawnFailed, consumer, ownerProc)
	}

	proc, err := m.proc.Spawn(spec)
	if err != nil || proc <= 0 {
		m.mu.Unlock()
		if err == nil {
			err = fmt.Errorf("backend returned invalid handle %d", proc)
		}
		m.logger.Error("Terminal spawn failed", "cmd", strings.Join(t.cfg.Cmd, " "), "error", err)
		return fmt.Errorf("%w: %v", ErrSpawnFailed, err)
	}

	t.proc = proc
	t.consumer = consumer
	t.state = StateAttached
	t.title = strings.Join(t.cfg.Cmd, " ")
	if info, infoErr := m.proc.ChannelInfo(proc); infoErr == nil && info.Title != "" {
		t.title = info.Title
	}
	if prev := m.registry.Insert(proc, t); prev != nil {
		// Process handle uniqueness is a backend guarantee; a collision
		// here is a programming error.
		m.logger.Error("Registry collision", "proc", int(proc))
	}
	m.mu.Unlock()

	m.logger.Info("Spawned terminal", "proc", int(proc), "consumer", int(t.Consumer()), "cmd", strings.Join(t.cfg.Cmd, " "))
	m.handler.OnTerminalRegistered(t)
	return nil
}

// Open makes the terminal visible. When a surface in the current display
// context already shows it and force is false, that surface is focused and
// nothing else changes. Otherwise a new surface is created from the merged
// layout; an unattached terminal is spawned into it, an attached one has the
// surface rebound to its existing consumer and the empty consumer produced
// as a side effect of surface creation discarded.
func (t *Terminal) Open(layoutOverride Layout, force bool) error {
	m := t.mgr

	if !force {
		if windows := t.CurrentContextWindows(); len(windows) > 0 {
			return m.display.FocusSurface(windows[0])
		}
	}

	layout := t.cfg.Layout.Merge(layoutOverride)
	surface, fresh, err := m.display.CreateSurface(layout)
	if err != nil {
		return fmt.Errorf("create surface: %w", err)
	}

	if !t.Attached() {
		if err := t.Spawn(); err != nil {
			m.logger.Error("Open could not start terminal", "error", err)
			return err
		}
		return nil
	}

	if err := m.display.BindSurface(surface, t.Consumer()); err != nil {
		return fmt.Errorf("bind surface %d: %w", surface, err)
	}
	if fresh != t.Consumer() {
		if err := m.display.DestroyConsumer(fresh, true); err != nil {
			m.logger.Warn("Discarding empty consumer failed", "consumer", int(fresh), "error", err)
		}
	}
	return nil
}

// Close destroys the first surface showing this terminal in the current
// display context. With no such surface it is a no-op. A destroy refusal is
// reported to the caller but changes no terminal state: detachment only ever
// happens through the manager's reconciliation paths.
func (t *Terminal) Close() error {
	windows := t.CurrentContextWindows()
	if len(windows) == 0 {
		return nil
	}

	if err := t.mgr.display.DestroySurface(windows[0], false); err != nil {
		t.mgr.logger.Warn("Surface destroy refused", "surface", int(windows[0]), "error", err)
		return fmt.Errorf("destroy surface %d: %w", windows[0], err)
	}
	return nil
}

// Toggle closes the terminal when it is visible in the current context and
// opens it otherwise.
func (t *Terminal) Toggle(layoutOverride Layout, force bool) error {
	if len(t.CurrentContextWindows()) > 0 {
		return t.Close()
	}
	return t.Open(layoutOverride, force)
}

// Kill terminates the terminal's process after interactive confirmation.
// Not attached: no-op. Declined or unrecognized answers abort with no state
// change. On confirmation the display closes best-effort, the process is
// asked to terminate and the consumer is destroyed with forced semantics;
// the registry entry is cleaned up by the consumer-closing reconciliation,
// not here.
func (t *Terminal) Kill() error {
	m := t.mgr

	m.mu.RLock()
	attached := t.state == StateAttached
	proc := t.proc
	consumer := t.consumer
	title := t.title
	m.mu.RUnlock()

	if !attached {
		return nil
	}

	ok, err := m.confirm.Confirm(fmt.Sprintf("Kill terminal %q? [y/N] ", title))
	if err != nil {
		return fmt.Errorf("confirm kill: %w", err)
	}
	if !ok {
		m.logger.Info("Kill declined", "proc", int(proc))
		return nil
	}

	if err := t.Close(); err != nil {
		m.logger.Warn("Close before kill failed", "proc", int(proc), "error", err)
	}
	if err := m.proc.Terminate(proc); err != nil {
		m.logger.Warn("Terminate failed", "proc", int(proc), "error", err)
	}
	if err := m.display.DestroyConsumer(consumer, true); err != nil {
		m.logger.Warn("Consumer destroy failed", "consumer", int(consumer), "error", err)
	}
	return nil
}

// Send normalizes lines (common indentation stripped, blank lines removed,
// exactly one trailing newline) and writes them to the process input.
// Returns ErrNotAttached when there is no process to write to.
func (t *Terminal) Send(lines ...string) error {
	m := t.mgr

	m.mu.RLock()
	proc := t.proc
	m.mu.RUnlock()
	if proc <= 0 {
		return ErrNotAttached
	}

	payload := NormalizeInput(lines)
	if payload == "" {
		return nil
	}
	if err := m.proc.Write(proc, []byte(payload)); err != nil {
		return fmt.Errorf("write to process %d: %w", proc, err)
	}
	return nil
}

// State returns the terminal's lifecycle state.
func (t *Terminal) State() State {
	t.mgr.mu.RLock()
	defer t.mgr.mu.RUnlock()
	return t.state
}

// Attached reports whether the terminal holds a live process and consumer.
func (t *Terminal) Attached() bool { return t.State() == StateAttached }

// Proc returns the process handle, zero when not attached.
func (t *Terminal) Proc() ProcHandle {
	t.mgr.mu.RLock()
	defer t.mgr.mu.RUnlock()
	return t.proc
}

// Consumer returns the output consumer handle, zero when not attached.
func (t *Terminal) Consumer() ConsumerHandle {
	t.mgr.mu.RLock()
	defer t.mgr.mu.RUnlock()
	return t.consumer
}

// Title returns the descriptive title sourced from the backend.
func (t *Terminal) Title() string {
	t.mgr.mu.RLock()
	defer t.mgr.mu.RUnlock()
	return t.title
}

// Config returns the terminal's effective configuration.
func (t *Terminal) Config() Config { return t.cfg }

// Windows returns every surface currently showing this terminal, in the
// display backend's stable order. Empty when not attached.
func (t *Terminal) Windows() []SurfaceHandle {
	consumer := t.Consumer()
	if consumer == 0 {
		return nil
	}
	return t.mgr.display.SurfacesShowing(consumer)
}

// CurrentContextWindows filters Windows down to the active display context.
func (t *Terminal) CurrentContextWindows() []SurfaceHandle {
	var out []SurfaceHandle
	for _, s := range t.Windows() {
		if t.mgr.display.InCurrentContext(s) {
			out = append(out, s)
		}
	}
	return out
}

// Index returns the terminal's position in registry order.
func (t *Terminal) Index() (int, bool) {
	return t.mgr.IndexOf(t)
}

// History returns retained output chunks with sequence >= fromSeq.
func (t *Terminal) History(fromSeq int64) []Chunk {
	return t.ring.ChunksFrom(fromSeq)
}

// ClearHistory drops the retained output.
func (t *Terminal) ClearHistory() {
	t.ring.Clear()
}
