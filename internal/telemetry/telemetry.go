// Package telemetry models the per-tick key/value report of a running program.
package telemetry

import (
	"fmt"
	"time"
)

// Line is one key/value entry of a frame.
type Line struct {
	Section string `json:"section,omitempty"`
	Key     string `json:"key"`
	Value   string `json:"value"`
}

// Frame is the full report of one tick, in display order.
type Frame struct {
	Program string    `json:"program"`
	Time    time.Time `json:"-"`
	Lines   []Line    `json:"lines"`
}

// Get returns the value for section/key, if present.
func (f Frame) Get(section, key string) (string, bool) {
	for _, l := range f.Lines {
		if l.Section == section && l.Key == key {
			return l.Value, true
		}
	}
	return "", false
}

// Sections returns the section names in first-seen order.
func (f Frame) Sections() []string {
	var out []string
	seen := map[string]bool{}
	for _, l := range f.Lines {
		if !seen[l.Section] {
			seen[l.Section] = true
			out = append(out, l.Section)
		}
	}
	return out
}

// Sink receives one frame per tick.
type Sink interface {
	Update(frame Frame) error
}

// Builder accumulates the lines of a frame.
type Builder struct {
	section string
	lines   []Line
}

// Section starts a new group; following lines belong to it.
func (b *Builder) Section(name string) {
	b.section = name
}

// Add appends a line. Floats are formatted with two decimals.
func (b *Builder) Add(key string, value any) {
	var s string
	switch v := value.(type) {
	case float64:
		s = fmt.Sprintf("%.2f", v)
	case float32:
		s = fmt.Sprintf("%.2f", v)
	case time.Duration:
		s = fmt.Sprintf("%.2fs", v.Seconds())
	default:
		s = fmt.Sprint(v)
	}
	b.lines = append(b.lines, Line{Section: b.section, Key: key, Value: s})
}

// Frame returns the accumulated frame and resets the builder.
func (b *Builder) Frame(program string, t time.Time) Frame {
	f := Frame{Program: program, Time: t, Lines: b.lines}
	b.lines = nil
	b.section = ""
	return f
}

// Multi fans a frame out to several sinks, returning the first error.
// Every sink is updated even if an earlier one fails.
type Multi []Sink

// Update sends frame to every sink.
func (m Multi) Update(frame Frame) error {
	var first error
	for _, s := range m {
		if err := s.Update(frame); err != nil && first == nil {
			first = err
		}
	}
	return first
}
