//go:build linux

package gpio

import (
	"errors"
	"fmt"

	"github.com/warthog618/go-gpiocdev"
)

// RealReader reads the panel from actual hardware using the Linux GPIO character device.
type RealReader struct {
	chip      *gpiocdev.Chip
	startPin  *gpiocdev.Line
	enablePin *gpiocdev.Line
}

// NewRealReader requests both panel inputs on gpiochip0.
func NewRealReader(pinStart, pinEnable int) (*RealReader, error) {
	chip, err := gpiocdev.NewChip("gpiochip0")
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}

	// Switches short to ground, so inputs idle high.
	startLine, err := chip.RequestLine(pinStart, gpiocdev.AsInput, gpiocdev.WithPullUp)
	if err != nil {
		chip.Close()
		return nil, fmt.Errorf("request START pin %d: %w", pinStart, err)
	}

	enableLine, err := chip.RequestLine(pinEnable, gpiocdev.AsInput, gpiocdev.WithPullUp)
	if err != nil {
		startLine.Close()
		chip.Close()
		return nil, fmt.Errorf("request ENABLE pin %d: %w", pinEnable, err)
	}

	return &RealReader{
		chip:      chip,
		startPin:  startLine,
		enablePin: enableLine,
	}, nil
}

// Read returns the logical states of START and ENABLE.
func (r *RealReader) Read() (bool, bool, error) {
	startRaw, err := r.startPin.Value()
	if err != nil {
		return false, false, fmt.Errorf("read START pin: %w", err)
	}

	enableRaw, err := r.enablePin.Value()
	if err != nil {
		return false, false, fmt.Errorf("read ENABLE pin: %w", err)
	}

	return startRaw == 0, enableRaw == 0, nil
}

// Close releases GPIO resources.
// Pins go back to input with pull-down (Pi boot default) before closing.
func (r *RealReader) Close() error {
	var errs []error

	for _, p := range []struct {
		name string
		line *gpiocdev.Line
	}{{"START", r.startPin}, {"ENABLE", r.enablePin}} {
		if p.line == nil {
			continue
		}
		if err := p.line.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullDown); err != nil {
			errs = append(errs, fmt.Errorf("reconfigure %s pin: %w", p.name, err))
		}
		if err := p.line.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s pin: %w", p.name, err))
		}
	}
	if r.chip != nil {
		if err := r.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
	}

	return errors.Join(errs...)
}
