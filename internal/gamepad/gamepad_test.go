package gamepad

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/sweeney/teleop/internal/control"
)

func TestFakeSourceScript(t *testing.T) {
	f := NewFakeSource(
		Frame{Gamepad1: control.Gamepad{A: true}},
		Frame{Gamepad2: control.Gamepad{B: true}},
	)

	d1, _, _ := f.Read()
	if !d1.A {
		t.Error("frame 1: expected driver1 A")
	}
	_, d2, _ := f.Read()
	if !d2.B {
		t.Error("frame 2: expected driver2 B")
	}
	// Script exhausted: last frame repeats
	_, d2, _ = f.Read()
	if !d2.B {
		t.Error("expected last frame to repeat")
	}

	f.Push(Frame{})
	_, d2, _ = f.Read()
	if d2.B {
		t.Error("expected pushed frame")
	}
	if f.Reads() != 4 {
		t.Errorf("expected 4 reads, got %d", f.Reads())
	}
}

func TestFakeSourceError(t *testing.T) {
	f := NewFakeSource()
	boom := errors.New("usb unplugged")
	f.SetError(boom)
	if _, _, err := f.Read(); !errors.Is(err, boom) {
		t.Errorf("expected error, got %v", err)
	}
}

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	return ws
}

func waitFrames(t *testing.T, s *Server, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for s.Frames() < n {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %d frames, got %d", n, s.Frames())
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestServerReceivesFrames(t *testing.T) {
	c := &clock{t: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	s := NewServer(200 * time.Millisecond)
	s.now = c.now

	srv := httptest.NewServer(s)
	defer srv.Close()

	ws := dial(t, srv)
	defer ws.Close()

	msg := `{"gamepad1":{"left_stick_y":-0.5,"a":true},"gamepad2":{"dpad_up":true}}`
	if err := ws.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
		t.Fatal(err)
	}
	waitFrames(t, s, 1)

	d1, d2, err := s.Read()
	if err != nil {
		t.Fatal(err)
	}
	if d1.LeftStickY != -0.5 || !d1.A {
		t.Errorf("driver1: got %+v", d1)
	}
	if !d2.DpadUp {
		t.Errorf("driver2: got %+v", d2)
	}
	if !s.Connected() {
		t.Error("expected connected")
	}
}

func TestServerStaleFrameIsNeutral(t *testing.T) {
	c := &clock{t: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	s := NewServer(200 * time.Millisecond)
	s.now = c.now

	srv := httptest.NewServer(s)
	defer srv.Close()

	ws := dial(t, srv)
	defer ws.Close()

	if err := ws.WriteJSON(Frame{Gamepad1: control.Gamepad{LeftStickY: -1}}); err != nil {
		t.Fatal(err)
	}
	waitFrames(t, s, 1)

	c.advance(300 * time.Millisecond)
	d1, _, _ := s.Read()
	if d1 != (control.Gamepad{}) {
		t.Errorf("expected neutral gamepad after timeout, got %+v", d1)
	}
}

func TestServerDisconnectIsNeutral(t *testing.T) {
	c := &clock{t: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	s := NewServer(time.Hour)
	s.now = c.now

	srv := httptest.NewServer(s)
	defer srv.Close()

	ws := dial(t, srv)
	if err := ws.WriteJSON(Frame{Gamepad1: control.Gamepad{LeftStickY: -1}}); err != nil {
		t.Fatal(err)
	}
	waitFrames(t, s, 1)
	if d1, _, _ := s.Read(); d1.LeftStickY != -1 {
		t.Fatalf("expected live frame, got %+v", d1)
	}

	ws.Close()
	deadline := time.Now().Add(2 * time.Second)
	for s.Connected() {
		if time.Now().After(deadline) {
			t.Fatal("station never dropped")
		}
		time.Sleep(5 * time.Millisecond)
	}

	// The clock has not moved, so only the disconnect can clear the frame
	if d1, d2, _ := s.Read(); d1 != (control.Gamepad{}) || d2 != (control.Gamepad{}) {
		t.Errorf("expected neutral after disconnect, got %+v %+v", d1, d2)
	}
}

func TestServerNoFrameIsNeutral(t *testing.T) {
	s := NewServer(0)
	d1, d2, err := s.Read()
	if err != nil || d1 != (control.Gamepad{}) || d2 != (control.Gamepad{}) {
		t.Errorf("expected neutral, got %+v %+v %v", d1, d2, err)
	}
}

func TestServerRejectsSecondStation(t *testing.T) {
	s := NewServer(0)
	srv := httptest.NewServer(s)
	defer srv.Close()

	ws := dial(t, srv)
	defer ws.Close()

	deadline := time.Now().Add(2 * time.Second)
	for !s.Connected() {
		if time.Now().After(deadline) {
			t.Fatal("first station never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err == nil {
		t.Fatal("expected second dial to fail")
	}
	if resp == nil || resp.StatusCode != http.StatusConflict {
		t.Errorf("expected 409, got %v", resp)
	}
}
