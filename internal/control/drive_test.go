package control

import "testing"

func TestDriveArcadeFullForward(t *testing.T) {
	left, right := Drive(DriveArcade, Gamepad{LeftStickY: -1.0, LeftStickX: 0.0}, 1.0)
	if left != 1.0 || right != 1.0 {
		t.Errorf("expected (1, 1), got (%v, %v)", left, right)
	}
}

func TestDriveMappings(t *testing.T) {
	tests := []struct {
		name      string
		mode      DriveMode
		pad       Gamepad
		mlt       float64
		wantLeft  float64
		wantRight float64
	}{
		{"arcade idle", DriveArcade, Gamepad{}, 1.0, 0, 0},
		{"arcade turn right", DriveArcade, Gamepad{LeftStickX: 0.5}, 1.0, 0.5, -0.5},
		{"arcade turn scaled", DriveArcade, Gamepad{LeftStickX: 0.5}, 0.5, 0.25, -0.25},
		{"arcade backward", DriveArcade, Gamepad{LeftStickY: 0.5}, 1.0, -0.5, -0.5},
		{"arcade mixed overflows", DriveArcade, Gamepad{LeftStickY: -1, LeftStickX: 1}, 1.0, 2, 0},
		{"tank", DriveTank, Gamepad{LeftStickY: -1, RightStickY: 0.5}, 1.0, 1, -0.5},
		{"tank scaled", DriveTank, Gamepad{LeftStickY: -1, RightStickY: 1}, 0.5, 0.5, -0.5},
		{"unknown mode is arcade", DriveMode("joystick"), Gamepad{LeftStickY: -1}, 1.0, 1, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			left, right := Drive(tt.mode, tt.pad, tt.mlt)
			if left != tt.wantLeft || right != tt.wantRight {
				t.Errorf("got (%v, %v), want (%v, %v)", left, right, tt.wantLeft, tt.wantRight)
			}
		})
	}
}

func TestClampPower(t *testing.T) {
	tests := []struct {
		in, want float64
	}{
		{2, 1},
		{1, 1},
		{0.3, 0.3},
		{-1, -1},
		{-1.7, -1},
	}
	for _, tt := range tests {
		if got := ClampPower(tt.in); got != tt.want {
			t.Errorf("ClampPower(%v): got %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestClampPosition(t *testing.T) {
	if got := ClampPosition(-0.2); got != 0 {
		t.Errorf("ClampPosition(-0.2): got %v, want 0", got)
	}
	if got := ClampPosition(1.4); got != 1 {
		t.Errorf("ClampPosition(1.4): got %v, want 1", got)
	}
	if got := ClampPosition(0.5); got != 0.5 {
		t.Errorf("ClampPosition(0.5): got %v, want 0.5", got)
	}
}

func TestDirectClampsAtCommandBoundary(t *testing.T) {
	cmd := Direct(2)
	if cmd.Power != 1 {
		t.Errorf("expected clamped power 1, got %v", cmd.Power)
	}
	if cmd.Mode != RunWithoutEncoder {
		t.Errorf("expected %s, got %s", RunWithoutEncoder, cmd.Mode)
	}

	hold := HoldAt(10, -3)
	if hold.Power != -1 || hold.Target != 10 || hold.Mode != RunToPosition {
		t.Errorf("unexpected hold command: %+v", hold)
	}
}

func TestToggleRisingEdge(t *testing.T) {
	var tg Toggle
	samples := []bool{false, true, true, true, false, true, false}
	want := []bool{false, true, false, false, false, true, false}

	for i, s := range samples {
		if got := tg.Rising(s); got != want[i] {
			t.Errorf("sample %d: got %v, want %v", i, got, want[i])
		}
	}
}

func TestGamepadPressed(t *testing.T) {
	g := Gamepad{A: true, DpadDown: true, RightBumper: true, Start: true}
	for _, b := range []Button{ButtonA, ButtonDpadDown, ButtonRightBumper, ButtonStart} {
		if !g.Pressed(b) {
			t.Errorf("expected %s pressed", b)
		}
	}
	for _, b := range []Button{ButtonB, ButtonX, ButtonY, ButtonDpadUp, ButtonLeftBumper, ButtonBack, Button("nope")} {
		if g.Pressed(b) {
			t.Errorf("expected %s released", b)
		}
	}
}

func TestMotorTypeTicksPerSecond(t *testing.T) {
	if got := HDHex.TicksPerSecond(); got != 2800 {
		t.Errorf("HD hex: got %v, want 2800", got)
	}
	if got := CoreHex.TicksPerSecond(); got != 600 {
		t.Errorf("core hex: got %v, want 600", got)
	}
	if got := MotorType("nope").TicksPerSecond(); got != 0 {
		t.Errorf("unknown: got %v, want 0", got)
	}
}
