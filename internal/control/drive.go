package control

// Drive maps driver-1 sticks to left/right drivetrain powers.
// Results are not clamped here; commands built from them are.
func Drive(mode DriveMode, g Gamepad, multiplier float64) (left, right float64) {
	switch mode {
	case DriveTank:
		return -g.LeftStickY * multiplier, -g.RightStickY * multiplier
	default:
		forward := -g.LeftStickY
		turn := g.LeftStickX * multiplier
		return forward + turn, forward - turn
	}
}
