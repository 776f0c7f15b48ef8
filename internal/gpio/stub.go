//go:build !linux

package gpio

import "errors"

// ErrUnsupported is returned when the operator panel is requested off Linux.
var ErrUnsupported = errors.New("gpio: operator panel requires the Linux GPIO character device")

// RealReader is a placeholder so the package builds on development machines.
// Use the gamepad or auto lifecycle there instead.
type RealReader struct{}

// NewRealReader always fails with ErrUnsupported.
func NewRealReader(pinStart, pinEnable int) (*RealReader, error) {
	return nil, ErrUnsupported
}

func (r *RealReader) Read() (bool, bool, error) { return false, false, ErrUnsupported }

func (r *RealReader) Close() error { return nil }
