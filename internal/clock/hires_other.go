//go:build !linux

package clock

import "errors"

// NewHighRes is not available on non-Linux platforms.
func NewHighRes() (*HighRes, error) {
	return nil, errors.New("clock: high-resolution counter not supported on this platform (requires Linux)")
}
