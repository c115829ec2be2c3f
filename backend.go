package termdock

// ProcHandle identifies a live process managed by a ProcessBackend.
// Valid handles are positive; zero means "no process".
type ProcHandle int

// SurfaceHandle identifies a visible display surface (a window).
type SurfaceHandle int

// ConsumerHandle identifies an output consumer (the buffer-like object a
// process's output is attached to). A consumer can be shown by zero or more
// surfaces at a time.
type ConsumerHandle int

// Stream distinguishes the origin of process output.
type Stream int

const (
	StreamStdout Stream = iota
	StreamStderr
)

func (s Stream) String() string {
	if s == StreamStderr {
		return "stderr"
	}
	return "stdout"
}

// SpawnSpec describes a process to start and the callbacks that receive its
// lifecycle events. Callbacks are invoked from backend-owned goroutines,
// never from the Spawn call itself.
type SpawnSpec struct {
	Command  []string
	Dir      string
	Env      map[string]string
	ClearEnv bool

	OnExit   func(proc ProcHandle, exitCode int)
	OnStdout func(proc ProcHandle, data []byte)
	OnStderr func(proc ProcHandle, data []byte)
	OnTitle  func(proc ProcHandle, title string)
}

// ChannelInfo describes a running process as known to its backend. Argv is
// the originating command; Title starts as the command line and may be
// refined by the backend (e.g. from OSC title sequences).
type ChannelInfo struct {
	Argv  []string
	PID   int
	Title string
}

// ProcessBackend spawns commands attached to a pseudo-terminal-like channel
// and delivers their exit and output asynchronously. Spawn itself returns
// synchronously with success or failure.
type ProcessBackend interface {
	Spawn(spec SpawnSpec) (ProcHandle, error)
	Write(proc ProcHandle, data []byte) error
	Terminate(proc ProcHandle) error
	ChannelInfo(proc ProcHandle) (ChannelInfo, error)
}

// DisplayBackend creates and destroys display surfaces according to an
// opaque layout descriptor and maps surfaces to output consumers. "Current
// context" is backend-defined (the active tab, workspace or equivalent);
// open/close decisions only consider surfaces within it.
type DisplayBackend interface {
	// CreateSurface makes a new surface per the layout, together with a
	// fresh, empty output consumer which becomes current.
	CreateSurface(layout Layout) (SurfaceHandle, ConsumerHandle, error)

	// BindSurface rebinds a surface to show an existing consumer.
	BindSurface(surface SurfaceHandle, consumer ConsumerHandle) error

	FocusSurface(surface SurfaceHandle) error

	// DestroySurface tears down one surface. It must not destroy the
	// consumer the surface was showing.
	DestroySurface(surface SurfaceHandle, force bool) error

	// DestroyConsumer tears down a consumer and every surface showing it.
	// force discards unsaved state.
	DestroyConsumer(consumer ConsumerHandle, force bool) error

	// SurfacesShowing returns, in stable order, every surface currently
	// bound to the consumer.
	SurfacesShowing(consumer ConsumerHandle) []SurfaceHandle

	InCurrentContext(surface SurfaceHandle) bool

	// CurrentConsumer is the consumer a newly spawned process attaches to.
	CurrentConsumer() ConsumerHandle

	// ConsumerProcess reports the process a consumer is channeling, if any.
	// Used to claim externally-opened terminals.
	ConsumerProcess(consumer ConsumerHandle) (ProcHandle, bool)

	ConsumerTitle(consumer ConsumerHandle) string
}
