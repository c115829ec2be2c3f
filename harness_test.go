package termdock

import (
	"fmt"
	"strings"
	"sync"
	"testing"
)

// fakeBackend is a scriptable ProcessBackend. Exits and output are injected
// by tests after Spawn returns, matching the real backend's contract that
// callbacks never fire from inside Spawn.
type fakeBackend struct {
	mu         sync.Mutex
	next       ProcHandle
	specs      map[ProcHandle]SpawnSpec
	infos      map[ProcHandle]ChannelInfo
	written    map[ProcHandle][]byte
	terminated map[ProcHandle]bool

	spawnErr  error
	badHandle bool
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		specs:      make(map[ProcHandle]SpawnSpec),
		infos:      make(map[ProcHandle]ChannelInfo),
		written:    make(map[ProcHandle][]byte),
		terminated: make(map[ProcHandle]bool),
	}
}

func (f *fakeBackend) Spawn(spec SpawnSpec) (ProcHandle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.spawnErr != nil {
		return 0, f.spawnErr
	}
	if f.badHandle {
		return -1, nil
	}

	f.next++
	h := f.next
	f.specs[h] = spec
	f.infos[h] = ChannelInfo{
		Argv:  append([]string(nil), spec.Command...),
		PID:   4000 + int(h),
		Title: strings.Join(spec.Command, " "),
	}
	return h, nil
}

func (f *fakeBackend) Write(proc ProcHandle, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.infos[proc]; !ok {
		return fmt.Errorf("fake: no process %d", proc)
	}
	f.written[proc] = append(f.written[proc], data...)
	return nil
}

func (f *fakeBackend) Terminate(proc ProcHandle) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.infos[proc]; !ok {
		return fmt.Errorf("fake: no process %d", proc)
	}
	f.terminated[proc] = true
	return nil
}

func (f *fakeBackend) ChannelInfo(proc ProcHandle) (ChannelInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	info, ok := f.infos[proc]
	if !ok {
		return ChannelInfo{}, fmt.Errorf("fake: no process %d", proc)
	}
	return info, nil
}

// addExternal registers a process that exists without having been spawned
// through this backend, as if another actor started it.
func (f *fakeBackend) addExternal(argv []string) ProcHandle {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.next++
	h := f.next
	f.infos[h] = ChannelInfo{
		Argv:  append([]string(nil), argv...),
		PID:   4000 + int(h),
		Title: strings.Join(argv, " "),
	}
	return h
}

// exit delivers the process exit callback the way the waiter goroutine
// would.
func (f *fakeBackend) exit(proc ProcHandle, code int) {
	f.mu.Lock()
	spec := f.specs[proc]
	delete(f.infos, proc)
	f.mu.Unlock()

	if spec.OnExit != nil {
		spec.OnExit(proc, code)
	}
}

// output delivers a stdout chunk.
func (f *fakeBackend) output(proc ProcHandle, data []byte) {
	f.mu.Lock()
	spec := f.specs[proc]
	f.mu.Unlock()

	if spec.OnStdout != nil {
		spec.OnStdout(proc, data)
	}
}

func (f *fakeBackend) writtenTo(proc ProcHandle) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return string(f.written[proc])
}

func (f *fakeBackend) wasTerminated(proc ProcHandle) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.terminated[proc]
}

func (f *fakeBackend) spawnCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.specs)
}

// captureHandler records manager events.
type captureHandler struct {
	mu         sync.Mutex
	registered []*Terminal
	exited     map[ProcHandle]int
	detached   []ProcHandle
	outputs    []string
	titles     map[ProcHandle]string
	failures   map[ProcHandle][]error
}

func newCaptureHandler() *captureHandler {
	return &captureHandler{
		exited:   make(map[ProcHandle]int),
		titles:   make(map[ProcHandle]string),
		failures: make(map[ProcHandle][]error),
	}
}

func (h *captureHandler) OnTerminalRegistered(t *Terminal) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.registered = append(h.registered, t)
}

func (h *captureHandler) OnTerminalOutput(_ ProcHandle, _ Stream, data []byte, _ int64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.outputs = append(h.outputs, string(data))
}

func (h *captureHandler) OnTerminalExited(proc ProcHandle, code int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.exited[proc] = code
}

func (h *captureHandler) OnTerminalDetached(proc ProcHandle) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.detached = append(h.detached, proc)
}

func (h *captureHandler) OnTerminalTitle(proc ProcHandle, title string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.titles[proc] = title
}

func (h *captureHandler) OnTerminalError(proc ProcHandle, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.failures[proc] = append(h.failures[proc], err)
}

func (h *captureHandler) detachedCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.detached)
}

func (h *captureHandler) failureCount(proc ProcHandle) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.failures[proc])
}

// testEnv bundles a manager over fake process and virtual display backends.
// The display's closing hook is wired to the manager and autoclose deferrals
// run synchronously so tests observe teardown immediately.
type testEnv struct {
	mgr     *Manager
	proc    *fakeBackend
	display *VirtualDisplay
	handler *captureHandler
}

func newTestEnv(t *testing.T, defaults Config) *testEnv {
	t.Helper()

	if len(defaults.Cmd) == 0 {
		defaults.Cmd = []string{"/bin/sh", "-l"}
	}

	proc := newFakeBackend()
	display := NewVirtualDisplay(NopLogger{})
	handler := newCaptureHandler()

	mgr, err := NewManager(ManagerOptions{
		Process:  proc,
		Display:  display,
		Defaults: defaults,
		Handler:  handler,
		Defer:    func(fn func()) { fn() },
	})
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	display.SetClosingHook(mgr.ConsumerClosing)

	return &testEnv{mgr: mgr, proc: proc, display: display, handler: handler}
}
