package termdock

// EventHandler receives terminal lifecycle and output events from a Manager.
// Handlers run on manager or backend goroutines and are never invoked while
// internal locks are held, so they may call back into the Manager.
//
// Detach events carry the process handle the terminal held while attached,
// since the terminal's own handles are already cleared by the time the event
// fires.
type EventHandler interface {
	// OnTerminalRegistered fires when a terminal enters the registry,
	// whether by Spawn or by adoption of an externally-opened process.
	OnTerminalRegistered(t *Terminal)

	OnTerminalOutput(proc ProcHandle, stream Stream, data []byte, seq int64)

	OnTerminalExited(proc ProcHandle, exitCode int)

	// OnTerminalDetached fires when a terminal leaves the registry, after
	// its handles are cleared.
	OnTerminalDetached(proc ProcHandle)

	OnTerminalTitle(proc ProcHandle, title string)

	// OnTerminalError reports a backend failure during reconciliation or
	// teardown that was logged rather than propagated.
	OnTerminalError(proc ProcHandle, err error)
}

// NopEventHandler ignores all events.
type NopEventHandler struct{}

func (NopEventHandler) OnTerminalRegistered(*Terminal)                     {}
func (NopEventHandler) OnTerminalOutput(ProcHandle, Stream, []byte, int64) {}
func (NopEventHandler) OnTerminalExited(ProcHandle, int)                   {}
func (NopEventHandler) OnTerminalDetached(ProcHandle)                      {}
func (NopEventHandler) OnTerminalTitle(ProcHandle, string)                 {}
func (NopEventHandler) OnTerminalError(ProcHandle, error)                  {}
