package hardware

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/tarm/serial"

	"github.com/sweeney/teleop/internal/control"
)

// DefaultReadTimeout bounds the wait for an encoder reply.
const DefaultReadTimeout = 50 * time.Millisecond

// ErrHubTimeout is returned when the hub does not answer an encoder query in time.
var ErrHubTimeout = errors.New("hub did not answer")

// HubConfig maps device names to the hub's motor and servo ports.
type HubConfig struct {
	Port        string
	Baud        int
	ReadTimeout time.Duration
	Motors      map[string]int
	Servos      map[string]int
}

// Hub speaks the newline text protocol of a serial motor hub:
//
//	P <port> <power>     set motor power in [-1, 1]
//	R <port> <0|1>       run mode, 1 is run-to-position
//	T <port> <ticks>     run-to-position target
//	B <port> <0|1>       brake at zero power
//	S <port> <position>  servo position in [0, 1]
//	E <port>             encoder query, answered by "<position> <velocity>"
//
// Set commands whose value has not changed since the last write are not sent.
type Hub struct {
	mu     sync.Mutex
	src    io.Reader
	r      *bufio.Reader
	w      *bufio.Writer
	closer io.Closer
	motors map[string]int
	servos map[string]int
	cache  map[string]string
}

// OpenHub opens the serial port and returns a hub backend.
func OpenHub(cfg HubConfig) (*Hub, error) {
	baud := cfg.Baud
	if baud == 0 {
		baud = 115200
	}
	timeout := cfg.ReadTimeout
	if timeout <= 0 {
		timeout = DefaultReadTimeout
	}
	port, err := serial.OpenPort(&serial.Config{Name: cfg.Port, Baud: baud, ReadTimeout: timeout})
	if err != nil {
		return nil, fmt.Errorf("open hub %s: %w", cfg.Port, err)
	}
	h := NewHub(timeoutLink{port}, cfg.Motors, cfg.Servos)
	h.closer = port
	return h, nil
}

// timeoutLink turns the empty read of an expired serial ReadTimeout into
// ErrHubTimeout, so a silent hub fails the query instead of blocking.
type timeoutLink struct {
	io.ReadWriter
}

func (l timeoutLink) Read(p []byte) (int, error) {
	n, err := l.ReadWriter.Read(p)
	if n == 0 && (err == nil || errors.Is(err, io.EOF)) {
		return 0, ErrHubTimeout
	}
	return n, err
}

// NewHub creates a hub backend over an already open link.
func NewHub(rw io.ReadWriter, motors, servos map[string]int) *Hub {
	return &Hub{
		src:    rw,
		r:      bufio.NewReader(rw),
		w:      bufio.NewWriter(rw),
		motors: motors,
		servos: servos,
		cache:  make(map[string]string),
	}
}

// Close closes the serial port, if the hub owns one.
func (h *Hub) Close() error {
	if h.closer == nil {
		return nil
	}
	return h.closer.Close()
}

// Motor implements Backend.
func (h *Hub) Motor(name string) (Motor, error) {
	port, ok := h.motors[name]
	if !ok {
		return nil, fmt.Errorf("hub motor %q: %w", name, ErrDeviceNotFound)
	}
	return &hubMotor{hub: h, port: port}, nil
}

// Servo implements Backend.
func (h *Hub) Servo(name string) (Servo, error) {
	port, ok := h.servos[name]
	if !ok {
		return nil, fmt.Errorf("hub servo %q: %w", name, ErrDeviceNotFound)
	}
	return &hubServo{hub: h, port: port}, nil
}

func (h *Hub) set(cmd byte, port int, value string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	key := fmt.Sprintf("%c%d", cmd, port)
	if old, ok := h.cache[key]; ok && old == value {
		return nil
	}
	if _, err := fmt.Fprintf(h.w, "%c %d %s\n", cmd, port, value); err != nil {
		return fmt.Errorf("hub write: %w", err)
	}
	if err := h.w.Flush(); err != nil {
		return fmt.Errorf("hub flush: %w", err)
	}
	h.cache[key] = value
	return nil
}

func (h *Hub) encoder(port int) (int, float64, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	// Drop anything left from a reply that missed its query.
	if n := h.r.Buffered(); n > 0 {
		h.r.Discard(n)
	}
	if _, err := fmt.Fprintf(h.w, "E %d\n", port); err != nil {
		return 0, 0, fmt.Errorf("hub write: %w", err)
	}
	if err := h.w.Flush(); err != nil {
		return 0, 0, fmt.Errorf("hub flush: %w", err)
	}
	line, err := h.r.ReadString('\n')
	if err != nil {
		h.r.Reset(h.src)
		return 0, 0, fmt.Errorf("hub read port %d: %w", port, err)
	}
	return parseEncoder(line)
}

func parseEncoder(line string) (int, float64, error) {
	fields := strings.Fields(line)
	if len(fields) != 2 {
		return 0, 0, fmt.Errorf("hub encoder reply %q: expected 2 fields", strings.TrimSpace(line))
	}
	pos, err := strconv.Atoi(fields[0])
	if err != nil {
		return 0, 0, fmt.Errorf("hub encoder position %q: %w", fields[0], err)
	}
	vel, err := strconv.ParseFloat(fields[1], 64)
	if err != nil {
		return 0, 0, fmt.Errorf("hub encoder velocity %q: %w", fields[1], err)
	}
	return pos, vel, nil
}

func boolArg(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

type hubMotor struct {
	hub  *Hub
	port int
}

func (m *hubMotor) SetPower(power float64) error {
	return m.hub.set('P', m.port, strconv.FormatFloat(control.ClampPower(power), 'f', 3, 64))
}

func (m *hubMotor) SetMode(mode control.RunMode) error {
	return m.hub.set('R', m.port, boolArg(mode == control.RunToPosition))
}

func (m *hubMotor) SetTargetPosition(target int) error {
	return m.hub.set('T', m.port, strconv.Itoa(target))
}

func (m *hubMotor) SetBrake(on bool) error {
	return m.hub.set('B', m.port, boolArg(on))
}

func (m *hubMotor) Encoder() (int, float64, error) {
	return m.hub.encoder(m.port)
}

func (m *hubMotor) Position() (int, error) {
	pos, _, err := m.hub.encoder(m.port)
	return pos, err
}

func (m *hubMotor) Velocity() (float64, error) {
	_, vel, err := m.hub.encoder(m.port)
	return vel, err
}

type hubServo struct {
	hub  *Hub
	port int

	mu   sync.Mutex
	last float64
}

func (s *hubServo) SetPosition(pos float64) error {
	pos = control.ClampPosition(pos)
	if err := s.hub.set('S', s.port, strconv.FormatFloat(pos, 'f', 3, 64)); err != nil {
		return err
	}
	s.mu.Lock()
	s.last = pos
	s.mu.Unlock()
	return nil
}

func (s *hubServo) Position() (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last, nil
}
