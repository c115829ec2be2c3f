// Package termdock manages long-lived interactive shell (or arbitrary
// command) subprocesses and keeps an authoritative registry correlating
// process handles, display surfaces and logical terminal objects.
//
// The package does not emulate a terminal and does not implement a layout
// engine. Processes are started through a ProcessBackend and shown through a
// DisplayBackend; both are interfaces so hosts can plug in their own
// primitives. A PTY-backed ProcessBackend and an in-memory DisplayBackend
// are included.
//
// A Manager owns the registry of attached terminals and serializes every
// state transition behind a single mutex, so lifecycle events arriving from
// the outside world (a process exiting on its own, a surface being closed by
// the user, a terminal opened by something other than this manager) can be
// reconciled without racing the caller's own open/close/kill operations.
package termdock
