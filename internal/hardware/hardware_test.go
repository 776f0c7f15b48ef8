package hardware

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/sweeney/teleop/internal/control"
)

func TestBindMissingDevice(t *testing.T) {
	b := NewFakeBackend([]string{control.MotorLeft}, nil)

	_, err := Bind(b, []string{control.MotorLeft, control.MotorRight}, nil, Options{})
	if !errors.Is(err, ErrDeviceNotFound) {
		t.Fatalf("expected ErrDeviceNotFound, got %v", err)
	}
	if !strings.Contains(err.Error(), control.MotorRight) {
		t.Errorf("error should name the missing device: %v", err)
	}

	_, err = Bind(b, []string{control.MotorLeft}, []string{control.ServoClawLeft}, Options{})
	if !errors.Is(err, ErrDeviceNotFound) {
		t.Fatalf("expected ErrDeviceNotFound for servo, got %v", err)
	}
}

func TestReverseNegatesEverything(t *testing.T) {
	b := NewFakeBackend([]string{control.MotorCollector}, nil)
	m, err := Bind(b, []string{control.MotorCollector}, nil, Options{Reversed: []string{control.MotorCollector}})
	if err != nil {
		t.Fatal(err)
	}

	raw := b.FakeMotor(control.MotorCollector)
	raw.SetEncoder(120, 300)

	err = m.Apply(control.Output{Motors: []control.MotorWrite{
		{Name: control.MotorCollector, Command: control.HoldAt(50, 0.8)},
	}})
	if err != nil {
		t.Fatal(err)
	}

	want := control.MotorCommand{Mode: control.RunToPosition, Power: -0.8, Target: -50}
	if got := raw.Command(); got != want {
		t.Errorf("raw command: got %+v, want %+v", got, want)
	}

	readings, err := m.Read()
	if err != nil {
		t.Fatal(err)
	}
	if r := readings[control.MotorCollector]; r.Position != -120 || r.Velocity != -300 {
		t.Errorf("reading: got %+v", r)
	}
}

func TestReverseTwiceIsIdentity(t *testing.T) {
	m := &FakeMotor{}
	if Reverse(Reverse(m)) != Motor(m) {
		t.Error("double reverse should unwrap")
	}
}

func TestBindEnablesBrake(t *testing.T) {
	b := NewFakeBackend([]string{control.MotorLeft, control.MotorRight}, nil)
	_, err := Bind(b, []string{control.MotorLeft, control.MotorRight}, nil, Options{
		Reversed: []string{control.MotorRight},
		Brake:    []string{control.MotorLeft, control.MotorRight},
	})
	if err != nil {
		t.Fatal(err)
	}
	for _, n := range []string{control.MotorLeft, control.MotorRight} {
		if !b.FakeMotor(n).Brake() {
			t.Errorf("%s: expected brake enabled", n)
		}
	}
}

func TestApplyJoinsErrors(t *testing.T) {
	b := NewFakeBackend([]string{control.MotorLeft, control.MotorRight}, []string{control.ServoClawLeft})
	m, err := Bind(b, []string{control.MotorLeft, control.MotorRight}, []string{control.ServoClawLeft}, Options{})
	if err != nil {
		t.Fatal(err)
	}

	boom := errors.New("bus fault")
	b.FakeMotor(control.MotorLeft).SetError(boom)

	err = m.Apply(control.Output{
		Motors: []control.MotorWrite{
			{Name: control.MotorLeft, Command: control.Direct(0.5)},
			{Name: control.MotorRight, Command: control.Direct(0.5)},
		},
		Servos: []control.ServoWrite{{Name: control.ServoClawLeft, Position: 0.3}},
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected joined bus fault, got %v", err)
	}

	// The failing motor does not block the others
	if p := b.FakeMotor(control.MotorRight).Command().Power; p != 0.5 {
		t.Errorf("right power: got %v, want 0.5", p)
	}
	if h := b.FakeServo(control.ServoClawLeft).History(); len(h) != 1 || h[0] != 0.3 {
		t.Errorf("servo history: got %v", h)
	}
}

func TestStopZeroesEveryMotor(t *testing.T) {
	b := NewFakeBackend(control.DriveMotors, nil)
	m, err := Bind(b, control.DriveMotors, nil, Options{})
	if err != nil {
		t.Fatal(err)
	}

	var out control.Output
	for _, n := range control.DriveMotors {
		out.Motors = append(out.Motors, control.MotorWrite{Name: n, Command: control.HoldAt(100, 1)})
	}
	if err := m.Apply(out); err != nil {
		t.Fatal(err)
	}
	if err := m.Stop(); err != nil {
		t.Fatal(err)
	}

	for _, n := range control.DriveMotors {
		cmd := b.FakeMotor(n).Command()
		if cmd.Power != 0 || cmd.Mode != control.RunWithoutEncoder {
			t.Errorf("%s: expected zero direct power, got %+v", n, cmd)
		}
	}
}

func TestServoPositions(t *testing.T) {
	b := NewFakeBackend(nil, []string{control.ServoFilterLeft})
	m, err := Bind(b, nil, []string{control.ServoFilterLeft}, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if err := m.Apply(control.Output{Servos: []control.ServoWrite{{Name: control.ServoFilterLeft, Position: 0.42}}}); err != nil {
		t.Fatal(err)
	}

	got, err := m.ServoPositions([]string{control.ServoFilterLeft})
	if err != nil {
		t.Fatal(err)
	}
	if got[control.ServoFilterLeft] != 0.42 {
		t.Errorf("got %v", got)
	}

	if _, err := m.ServoPositions([]string{control.ServoClawRight}); !errors.Is(err, ErrDeviceNotFound) {
		t.Errorf("expected ErrDeviceNotFound, got %v", err)
	}
}

func TestSimMotorReachesSpeed(t *testing.T) {
	s := NewSim(SimConfig{Motors: map[string]control.MotorType{control.MotorCollector: control.HDHex}})
	m, _ := s.Motor(control.MotorCollector)

	t0 := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	s.Advance(t0)
	_ = m.SetPower(1)
	s.Advance(t0.Add(time.Second))

	vel, _ := m.Velocity()
	if full := control.HDHex.TicksPerSecond(); vel < 0.99*full {
		t.Errorf("expected near full speed %v, got %v", full, vel)
	}
	if pos, _ := m.Position(); pos <= 0 {
		t.Errorf("expected forward motion, got %d", pos)
	}
}

func TestSimJamStopsMotor(t *testing.T) {
	s := NewSim(SimConfig{Motors: map[string]control.MotorType{control.MotorCollector: control.HDHex}})
	m, _ := s.Motor(control.MotorCollector)

	t0 := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	s.Advance(t0)
	_ = m.SetPower(1)
	s.Advance(t0.Add(500 * time.Millisecond))

	if err := s.Jam(control.MotorCollector, true); err != nil {
		t.Fatal(err)
	}
	before, _ := m.Position()
	s.Advance(t0.Add(time.Second))

	if vel, _ := m.Velocity(); vel != 0 {
		t.Errorf("jammed velocity: got %v", vel)
	}
	if after, _ := m.Position(); after != before {
		t.Errorf("jammed motor moved from %d to %d", before, after)
	}

	if err := s.Jam("nope", true); !errors.Is(err, ErrDeviceNotFound) {
		t.Errorf("expected ErrDeviceNotFound, got %v", err)
	}
}

func TestSimRunToPositionSettles(t *testing.T) {
	s := NewSim(SimConfig{Motors: map[string]control.MotorType{control.MotorLeftLift: control.HDHex}})
	m, _ := s.Motor(control.MotorLeftLift)

	t0 := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	s.Advance(t0)
	_ = m.SetTargetPosition(1000)
	_ = m.SetMode(control.RunToPosition)
	_ = m.SetPower(1)
	s.Advance(t0.Add(3 * time.Second))

	if pos, _ := m.Position(); pos < 980 || pos > 1020 {
		t.Errorf("expected position near 1000, got %d", pos)
	}
}

type link struct {
	io.Reader
	io.Writer
}

func TestHubWritesProtocolAndCaches(t *testing.T) {
	var sent bytes.Buffer
	h := NewHub(link{Reader: strings.NewReader(""), Writer: &sent},
		map[string]int{control.MotorLeft: 0}, map[string]int{control.ServoClawLeft: 3})

	m, err := h.Motor(control.MotorLeft)
	if err != nil {
		t.Fatal(err)
	}
	s, err := h.Servo(control.ServoClawLeft)
	if err != nil {
		t.Fatal(err)
	}

	_ = m.SetPower(0.5)
	_ = m.SetPower(0.5)
	_ = m.SetMode(control.RunToPosition)
	_ = m.SetTargetPosition(-40)
	_ = m.(Braker).SetBrake(true)
	_ = s.SetPosition(1.4)
	_ = m.SetPower(-0.25)

	want := "P 0 0.500\nR 0 1\nT 0 -40\nB 0 1\nS 3 1.000\nP 0 -0.250\n"
	if got := sent.String(); got != want {
		t.Errorf("sent:\n%q\nwant:\n%q", got, want)
	}
	if pos, _ := s.Position(); pos != 1 {
		t.Errorf("servo position: got %v", pos)
	}
}

func TestHubEncoderQuery(t *testing.T) {
	var sent bytes.Buffer
	h := NewHub(link{Reader: strings.NewReader("1234 -56.5\ngarbage\n"), Writer: &sent},
		map[string]int{control.MotorHook: 2}, nil)

	m, _ := h.Motor(control.MotorHook)
	pos, vel, err := m.(EncoderReader).Encoder()
	if err != nil {
		t.Fatal(err)
	}
	if pos != 1234 || vel != -56.5 {
		t.Errorf("got (%d, %v)", pos, vel)
	}
	if sent.String() != "E 2\n" {
		t.Errorf("sent %q", sent.String())
	}

	if _, err := m.Position(); err == nil {
		t.Error("expected error once the replies run out")
	}
}

func TestHubMalformedReply(t *testing.T) {
	h := NewHub(link{Reader: strings.NewReader("garbage\n"), Writer: io.Discard},
		map[string]int{control.MotorHook: 2}, nil)
	m, _ := h.Motor(control.MotorHook)
	if _, err := m.Position(); err == nil || !strings.Contains(err.Error(), "expected 2 fields") {
		t.Errorf("expected parse error, got %v", err)
	}
}

// chunks returns one scripted chunk per Read; an empty chunk is a read
// that timed out with nothing received.
type chunks struct {
	replies []string
}

func (c *chunks) Read(p []byte) (int, error) {
	if len(c.replies) == 0 {
		return 0, nil
	}
	r := c.replies[0]
	c.replies = c.replies[1:]
	return copy(p, r), nil
}

func TestHubSilentTimesOut(t *testing.T) {
	src := &chunks{replies: []string{"", "10 2.5\n"}}
	h := NewHub(timeoutLink{link{Reader: src, Writer: io.Discard}},
		map[string]int{control.MotorLeftLift: 2}, nil)
	m, _ := h.Motor(control.MotorLeftLift)

	if _, err := m.Position(); !errors.Is(err, ErrHubTimeout) {
		t.Fatalf("expected ErrHubTimeout, got %v", err)
	}
	// The next query is answered normally
	pos, err := m.Position()
	if err != nil || pos != 10 {
		t.Errorf("after timeout: got (%d, %v)", pos, err)
	}
}

func TestHubUnknownPort(t *testing.T) {
	h := NewHub(link{Reader: strings.NewReader(""), Writer: io.Discard}, nil, nil)
	if _, err := h.Motor(control.MotorLeft); !errors.Is(err, ErrDeviceNotFound) {
		t.Errorf("expected ErrDeviceNotFound, got %v", err)
	}
}
