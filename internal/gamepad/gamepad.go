// Package gamepad provides the two drivers' controller samples to the control loop.
package gamepad

import (
	"sync"

	"github.com/sweeney/teleop/internal/control"
)

// Source provides the latest sample of both gamepads.
type Source interface {
	Read() (driver1, driver2 control.Gamepad, err error)
}

// Frame is one message from the driver station.
type Frame struct {
	Gamepad1 control.Gamepad `json:"gamepad1"`
	Gamepad2 control.Gamepad `json:"gamepad2"`
}

// FakeSource returns a scripted sequence of frames for tests.
// Once the script runs out the last frame repeats.
type FakeSource struct {
	mu      sync.Mutex
	queue   []Frame
	current Frame
	reads   int
	err     error
}

// NewFakeSource creates a fake with the given frames.
func NewFakeSource(frames ...Frame) *FakeSource {
	return &FakeSource{queue: frames}
}

// Read implements Source.
func (f *FakeSource) Read() (control.Gamepad, control.Gamepad, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.reads++
	if f.err != nil {
		return control.Gamepad{}, control.Gamepad{}, f.err
	}
	if len(f.queue) > 0 {
		f.current = f.queue[0]
		f.queue = f.queue[1:]
	}
	return f.current.Gamepad1, f.current.Gamepad2, nil
}

// Push appends frames to the script.
func (f *FakeSource) Push(frames ...Frame) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queue = append(f.queue, frames...)
}

// Reads returns how many times Read was called.
func (f *FakeSource) Reads() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reads
}

// SetError makes every subsequent Read fail with err (nil clears it).
func (f *FakeSource) SetError(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}
