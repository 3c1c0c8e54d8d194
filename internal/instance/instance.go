// Package instance keeps a second copy of the daemon from grabbing the
// same devices.
package instance

import "errors"

// DefaultLockFile is used when no lock path is configured.
const DefaultLockFile = "/run/mouse-debouncer.lock"

// ErrAlreadyRunning is returned by Acquire when another process holds the lock.
var ErrAlreadyRunning = errors.New("another instance is already running")

var errNotHeld = errors.New("lock not held")
