package gpio

import (
	"errors"
	"sync"
)

// Sample is one logical panel reading.
type Sample struct {
	Start  bool // button held
	Enable bool // key turned on
}

// FakeReader replays panel samples for tests. The final sample sticks once
// the script is consumed, so a test can end on "key on" and keep running.
type FakeReader struct {
	mu sync.Mutex

	Samples   []Sample
	ReadError error
	Closed    bool

	next  int
	reads int
}

// NewFakeReader creates a FakeReader with the given samples.
func NewFakeReader(samples []Sample) *FakeReader {
	return &FakeReader{Samples: samples}
}

// Read implements Reader.
func (f *FakeReader) Read() (bool, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.reads++
	switch {
	case f.ReadError != nil:
		return false, false, f.ReadError
	case len(f.Samples) == 0:
		return false, false, errors.New("fake panel: empty script")
	}

	s := f.Samples[f.next]
	if f.next+1 < len(f.Samples) {
		f.next++
	}
	return s.Start, s.Enable, nil
}

// Push appends samples to the script.
func (f *FakeReader) Push(samples ...Sample) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Samples = append(f.Samples, samples...)
}

// Reads returns how many times Read was called.
func (f *FakeReader) Reads() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reads
}

// Close implements Reader.
func (f *FakeReader) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Closed = true
	return nil
}

// Reset replays the script from the first sample.
func (f *FakeReader) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.next, f.reads = 0, 0
	f.Closed = false
}
