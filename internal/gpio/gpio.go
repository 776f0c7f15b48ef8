// Package gpio reads the robot's operator panel: a START push button and an
// ENABLE key switch wired to Raspberry Pi inputs.
// The real implementation uses the Linux GPIO character device.
// The fake implementation allows testing without hardware.
package gpio

// Reader reads the operator panel.
type Reader interface {
	// Read returns the logical states of START and ENABLE.
	// Both inputs are wired active-low: raw 0 = logical pressed/on.
	Read() (start, enable bool, err error)

	// Close releases GPIO resources.
	Close() error
}

// Default pin definitions (BCM numbering)
const (
	PinStart  = 17
	PinEnable = 27
)
