package gpio

import "sync"

// Panel turns raw panel readings into a program lifecycle.
// The program starts on the first START press while ENABLE is on, and stays
// active until ENABLE is switched off.
type Panel struct {
	reader Reader

	mu      sync.Mutex
	started bool
}

// NewPanel wraps a panel reader.
func NewPanel(r Reader) *Panel {
	return &Panel{reader: r}
}

// Started reports whether START has been pressed with ENABLE on. It latches.
func (p *Panel) Started() (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.started {
		return true, nil
	}
	start, enable, err := p.reader.Read()
	if err != nil {
		return false, err
	}
	p.started = start && enable
	return p.started, nil
}

// Active reports whether the ENABLE key is still on.
func (p *Panel) Active() (bool, error) {
	_, enable, err := p.reader.Read()
	if err != nil {
		return false, err
	}
	return enable, nil
}

// Close releases the underlying reader.
func (p *Panel) Close() error {
	return p.reader.Close()
}
