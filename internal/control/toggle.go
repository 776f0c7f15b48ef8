package control

// Toggle detects presses of a held button from successive samples.
// The zero value treats the button as released.
type Toggle struct {
	prev bool
}

// Rising reports true only on the first sample a button is held.
func (t *Toggle) Rising(pressed bool) bool {
	edge := pressed && !t.prev
	t.prev = pressed
	return edge
}
