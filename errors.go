package termdock

import "errors"

var (
	// ErrNotAttached is returned by operations that require a live process
	// and output consumer, such as Send.
	ErrNotAttached = errors.New("terminal not attached")

	// ErrSpawnFailed wraps process backend failures during Spawn. The
	// terminal stays unattached and the call may be retried.
	ErrSpawnFailed = errors.New("spawn failed")

	// ErrNoSuchTerminal is returned by backend operations addressing a
	// process handle the backend does not track.
	ErrNoSuchTerminal = errors.New("no such terminal")
)
