package termdock

import (
	"fmt"
	"strings"
	"sync"
)

// ManagerOptions configures a Manager. Process and Display are required;
// everything else has a safe default.
type ManagerOptions struct {
	Process ProcessBackend
	Display DisplayBackend

	// Defaults is the base configuration every terminal inherits from.
	Defaults Config

	Logger    Logger
	Confirmer Confirmer
	Handler   EventHandler

	// Defer runs a function outside the current event delivery, used for
	// teardown that must not recurse into an in-progress destroy. Defaults
	// to running in a new goroutine.
	Defer func(func())
}

// Manager owns the active-terminal registry and the backends, and is the
// single serialization point for every registry mutation and terminal state
// transition. Its mutex is the write boundary required for correctness when
// lifecycle events arrive from backend goroutines; queries take read locks
// and may be called from anywhere.
type Manager struct {
	mu       sync.RWMutex
	registry *Registry

	proc     ProcessBackend
	display  DisplayBackend
	defaults Config
	logger   Logger
	confirm  Confirmer
	handler  EventHandler
	deferFn  func(func())
}

// NewManager creates a manager over the given backends.
func NewManager(opts ManagerOptions) (*Manager, error) {
	if opts.Process == nil {
		return nil, fmt.Errorf("process backend is required")
	}
	if opts.Display == nil {
		return nil, fmt.Errorf("display backend is required")
	}

	logger := opts.Logger
	if logger == nil {
		logger = NopLogger{}
	}
	confirm := opts.Confirmer
	if confirm == nil {
		confirm = StaticConfirmer(true)
	}
	handler := opts.Handler
	if handler == nil {
		handler = NopEventHandler{}
	}
	deferFn := opts.Defer
	if deferFn == nil {
		deferFn = func(fn func()) { go fn() }
	}

	return &Manager{
		registry: NewRegistry(),
		proc:     opts.Process,
		display:  opts.Display,
		defaults: opts.Defaults.applyDefaults(logger),
		logger:   logger,
		confirm:  confirm,
		handler:  handler,
		deferFn:  deferFn,
	}, nil
}

// NewTerminal constructs an unattached terminal whose configuration is the
// manager defaults deep-merged with override. The terminal holds its own
// configuration value; later changes to defaults do not reach it.
func (m *Manager) NewTerminal(override Config) *Terminal {
	cfg := MergeConfig(m.defaults, override)
	return &Terminal{
		mgr:  m,
		cfg:  cfg,
		ring: NewOutputRing(cfg.HistoryChunks),
	}
}

// Terminals returns all attached terminals in registry order.
func (m *Manager) Terminals() []*Terminal {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.registry.Terminals()
}

// Lookup returns the terminal attached to proc.
func (m *Manager) Lookup(proc ProcHandle) (*Terminal, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.registry.Lookup(proc)
}

// LookupByConsumer returns the terminal attached to the given output
// consumer together with its registry order index.
func (m *Manager) LookupByConsumer(consumer ConsumerHandle) (int, *Terminal, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.registry.LookupByConsumer(consumer)
}

// IndexOf returns t's position in registry order.
func (m *Manager) IndexOf(t *Terminal) (int, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.registry.IndexOf(t)
}

// AdoptConsumer claims an externally-opened process-backed consumer that
// this manager did not create: the host calls it on its
// "output-consumer-opened" event. The process handle, command and title are
// read back from the backends and a new attached Terminal wraps them,
// skipping the spawn step. Adopting an already-tracked process handle is
// idempotent and returns the existing terminal.
func (m *Manager) AdoptConsumer(consumer ConsumerHandle) (*Terminal, error) {
	proc, ok := m.display.ConsumerProcess(consumer)
	if !ok || proc <= 0 {
		return nil, fmt.Errorf("consumer %d is not process-backed", consumer)
	}

	if t, exists := m.Lookup(proc); exists {
		return t, nil
	}

	info, err := m.proc.ChannelInfo(proc)
	if err != nil {
		return nil, fmt.Errorf("channel info for process %d: %w", proc, err)
	}

	title := m.display.ConsumerTitle(consumer)
	if title == "" {
		title = info.Title
	}
	if title == "" {
		title = strings.Join(info.Argv, " ")
	}

	cfg := MergeConfig(m.defaults, Config{Cmd: info.Argv})
	t := &Terminal{
		mgr:  m,
		cfg:  cfg,
		ring: NewOutputRing(cfg.HistoryChunks),
	}

	m.mu.Lock()
	if existing, exists := m.registry.Lookup(proc); exists {
		// Duplicate event lost the race; keep the single entry.
		m.mu.Unlock()
		return existing, nil
	}
	t.proc = proc
	t.consumer = consumer
	t.title = title
	t.state = StateAttached
	m.registry.Insert(proc, t)
	m.mu.Unlock()

	m.logger.Info("Adopted external terminal", "proc", int(proc), "consumer", int(consumer), "cmd", strings.Join(info.Argv, " "))
	m.handler.OnTerminalRegistered(t)
	return t, nil
}

// ConsumerClosing reconciles the registry with a consumer that is being torn
// down: the host calls it on its "output-consumer-closing" event, before the
// consumer is gone. This is the sole Attached -> Detached path for
// externally-triggered teardown: the owning terminal's handles are cleared
// and it leaves the registry unconditionally. With autoclose set, remaining
// surfaces are closed and a non-forced consumer destroy is deferred so it
// cannot recurse into the teardown already in progress.
//
// Untracked consumers are ignored. Failures are logged, never propagated:
// this runs inside the host's own event delivery.
func (m *Manager) ConsumerClosing(consumer ConsumerHandle) {
	m.mu.Lock()
	_, t, ok := m.registry.LookupByConsumer(consumer)
	if !ok {
		m.mu.Unlock()
		return
	}
	proc := t.proc
	t.proc = 0
	t.consumer = 0
	t.state = StateDetached
	m.registry.Remove(proc)
	m.mu.Unlock()

	m.logger.Info("Terminal consumer closing", "proc", int(proc), "consumer", int(consumer))

	if t.cfg.Autoclose {
		for _, s := range m.display.SurfacesShowing(consumer) {
			if err := m.display.DestroySurface(s, false); err != nil {
				m.logger.Warn("Autoclose surface destroy failed", "surface", int(s), "error", err)
				m.handler.OnTerminalError(proc, err)
			}
		}
		m.deferFn(func() {
			if err := m.display.DestroyConsumer(consumer, false); err != nil {
				m.logger.Warn("Autoclose consumer destroy failed", "consumer", int(consumer), "error", err)
				m.handler.OnTerminalError(proc, err)
			}
		})
	}

	m.handler.OnTerminalDetached(proc)
}

// reapProcess handles a process exit reported by the backend. The terminal
// detaches immediately: a registry entry never outlives its process.
func (m *Manager) reapProcess(proc ProcHandle, exitCode int) {
	m.mu.Lock()
	t, ok := m.registry.Lookup(proc)
	if !ok {
		m.mu.Unlock()
		return
	}
	consumer := t.consumer
	t.proc = 0
	t.consumer = 0
	t.state = StateDetached
	m.registry.Remove(proc)
	m.mu.Unlock()

	m.logger.Info("Terminal process exited", "proc", int(proc), "exitCode", exitCode)

	if t.cfg.Autoclose {
		for _, s := range m.display.SurfacesShowing(consumer) {
			if err := m.display.DestroySurface(s, false); err != nil {
				m.logger.Warn("Autoclose surface destroy failed", "surface", int(s), "error", err)
				m.handler.OnTerminalError(proc, err)
			}
		}
		m.deferFn(func() {
			if err := m.display.DestroyConsumer(consumer, false); err != nil {
				m.logger.Warn("Autoclose consumer destroy failed", "consumer", int(consumer), "error", err)
				m.handler.OnTerminalError(proc, err)
			}
		})
	}

	if t.cfg.OnExit != nil {
		t.cfg.OnExit(t, exitCode)
	}
	m.handler.OnTerminalExited(proc, exitCode)
	m.handler.OnTerminalDetached(proc)
}

// deliverOutput routes backend output to the owning terminal's history ring,
// its configured callback and the manager-wide handler. Output for a handle
// that already detached is dropped.
func (m *Manager) deliverOutput(proc ProcHandle, stream Stream, data []byte) {
	m.mu.RLock()
	t, ok := m.registry.Lookup(proc)
	m.mu.RUnlock()
	if !ok {
		return
	}

	seq := t.ring.Write(data)

	if stream == StreamStderr {
		if t.cfg.OnStderr != nil {
			t.cfg.OnStderr(t, data)
		}
	} else if t.cfg.OnStdout != nil {
		t.cfg.OnStdout(t, data)
	}

	m.handler.OnTerminalOutput(proc, stream, data, seq)
}

// handleTitle applies a backend-reported title change.
func (m *Manager) handleTitle(proc ProcHandle, title string) {
	m.mu.Lock()
	t, ok := m.registry.Lookup(proc)
	if !ok || t.title == title {
		m.mu.Unlock()
		return
	}
	t.title = title
	m.mu.Unlock()

	m.handler.OnTerminalTitle(proc, title)
}

// Shutdown detaches every terminal, terminating its process and force
// destroying its consumer. No confirmation is asked; this is for host
// shutdown, not interactive kills.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	terms := m.registry.Terminals()
	type teardown struct {
		proc     ProcHandle
		consumer ConsumerHandle
	}
	work := make([]teardown, 0, len(terms))
	for _, t := range terms {
		work = append(work, teardown{t.proc, t.consumer})
		m.registry.Remove(t.proc)
		t.proc = 0
		t.consumer = 0
		t.state = StateDetached
	}
	m.mu.Unlock()

	m.logger.Info("Shutting down all terminals", "count", len(work))
	for _, w := range work {
		if err := m.proc.Terminate(w.proc); err != nil {
			m.logger.Warn("Terminate failed during shutdown", "proc", int(w.proc), "error", err)
			m.handler.OnTerminalError(w.proc, err)
		}
		if err := m.display.DestroyConsumer(w.consumer, true); err != nil {
			m.logger.Warn("Consumer destroy failed during shutdown", "consumer", int(w.consumer), "error", err)
			m.handler.OnTerminalError(w.proc, err)
		}
		m.handler.OnTerminalDetached(w.proc)
	}
}
