//go:build !linux

package instance

import (
	"fmt"
	"os"
)

// Lock is an exclusive lock file. Without flock the file is created with
// O_EXCL and removed on Release.
type Lock struct {
	path string
}

// Acquire creates path, failing if it already exists.
func Acquire(path string) (*Lock, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return nil, ErrAlreadyRunning
		}
		return nil, fmt.Errorf("open lock file %s: %w", path, err)
	}
	f.Close()
	return &Lock{path: path}, nil
}

// WritePID replaces the file contents with the process id.
func (l *Lock) WritePID() error {
	if l == nil || l.path == "" {
		return errNotHeld
	}
	if err := os.WriteFile(l.path, []byte(fmt.Sprintf("%d\n", os.Getpid())), 0o644); err != nil {
		return fmt.Errorf("write pid to %s: %w", l.path, err)
	}
	return nil
}

// Path returns the lock file path.
func (l *Lock) Path() string { return l.path }

// Release removes the lock file.
func (l *Lock) Release() error {
	if l == nil || l.path == "" {
		return nil
	}
	err := os.Remove(l.path)
	l.path = ""
	return err
}
