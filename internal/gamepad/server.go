package gamepad

import (
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/sweeney/teleop/internal/control"
)

// DefaultTimeout is how long a frame stays valid without a newer one.
const DefaultTimeout = 500 * time.Millisecond

// Server accepts gamepad frames from a single driver station over a websocket
// and serves the most recent one as a Source.
type Server struct {
	timeout  time.Duration
	now      func() time.Time
	upgrader websocket.Upgrader

	mu        sync.Mutex
	latest    Frame
	received  time.Time
	connected bool
	frames    int
}

// NewServer creates a gamepad server. A zero timeout uses DefaultTimeout.
func NewServer(timeout time.Duration) *Server {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Server{
		timeout: timeout,
		now:     time.Now,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// ServeHTTP upgrades the request and reads frames until the socket closes.
// Only one driver station may be connected at a time.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	if s.connected {
		s.mu.Unlock()
		http.Error(w, "driver station already connected", http.StatusConflict)
		return
	}
	s.connected = true
	s.mu.Unlock()

	// A dropped station reads neutral at once, not after the timeout.
	defer func() {
		s.mu.Lock()
		s.connected = false
		s.latest = Frame{}
		s.received = time.Time{}
		s.mu.Unlock()
	}()

	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("Gamepad upgrade failed: %v", err)
		return
	}
	defer ws.Close()

	log.Printf("Driver station connected from %s", r.RemoteAddr)
	for {
		var f Frame
		if err := ws.ReadJSON(&f); err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Printf("Driver station disconnected")
			} else {
				log.Printf("Gamepad read failed: %v", err)
			}
			return
		}
		s.mu.Lock()
		s.latest = f
		s.received = s.now()
		s.frames++
		s.mu.Unlock()
	}
}

// Read implements Source. A stale or missing frame reads as both gamepads released.
func (s *Server) Read() (control.Gamepad, control.Gamepad, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.received.IsZero() || s.now().Sub(s.received) > s.timeout {
		return control.Gamepad{}, control.Gamepad{}, nil
	}
	return s.latest.Gamepad1, s.latest.Gamepad2, nil
}

// Connected reports whether a driver station is attached.
func (s *Server) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

// Frames returns how many frames have been received.
func (s *Server) Frames() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frames
}
