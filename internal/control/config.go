package control

import "time"

// MotorType describes an encoder-equipped motor family.
type MotorType string

const (
	CoreHex MotorType = "core_hex"
	HDHex   MotorType = "hd_hex"
)

// TicksPerSecond returns the encoder rate at full free-running speed.
// Unknown types return 0.
func (m MotorType) TicksPerSecond() float64 {
	switch m {
	case CoreHex:
		return 288.0 * 125.0 / 60.0
	case HDHex:
		return 28.0 * 6000.0 / 60.0
	}
	return 0
}

// DriveMode selects the drivetrain mapping.
type DriveMode string

const (
	DriveArcade DriveMode = "arcade"
	DriveTank   DriveMode = "tank"
)

// Pair holds the positions of a mirrored left/right servo pair.
type Pair struct {
	Left  float64 `yaml:"left"`
	Right float64 `yaml:"right"`
}

// DriveConfig tunes the drivetrain mapping.
type DriveConfig struct {
	Mode       DriveMode
	Multiplier float64
	MotorType  MotorType
}

// CollectorConfig tunes the collector and its stall recovery.
type CollectorConfig struct {
	Power          float64
	StallThreshold time.Duration
	StallRelease   time.Duration
	StallFraction  float64
	MotorType      MotorType
}

// LiftConfig tunes the lift slides.
type LiftConfig struct {
	Multiplier float64
	HoldPower  float64
	MotorType  MotorType
}

// HookConfig tunes the hook that follows the lift.
type HookConfig struct {
	UpMultiplier   float64
	DownMultiplier float64
	HoldPower      float64
	ReleaseTicks   int
	MotorType      MotorType
}

// FilterPresets holds the filter servo positions.
type FilterPresets struct {
	Downwards     Pair
	Center        Pair
	AlignWithHook Pair
}

// StoragePresets holds the storage door servo positions.
type StoragePresets struct {
	Open   Pair
	Closed Pair
}

// ClawPresets holds the claw servo positions.
type ClawPresets struct {
	Open   Pair
	Closed Pair
}

// Config is the complete tuning of the drive program.
type Config struct {
	Drive     DriveConfig
	Collector CollectorConfig
	Lift      LiftConfig
	Hook      HookConfig
	Filter    FilterPresets
	Storage   StoragePresets
	Claw      ClawPresets
}

// DefaultConfig returns the tuning used at the 2023 season event.
func DefaultConfig() Config {
	return Config{
		Drive: DriveConfig{Mode: DriveArcade, Multiplier: 1.0, MotorType: HDHex},
		Collector: CollectorConfig{
			Power:          1.0,
			StallThreshold: 1000 * time.Millisecond,
			StallRelease:   500 * time.Millisecond,
			StallFraction:  0.2,
			MotorType:      HDHex,
		},
		Lift: LiftConfig{Multiplier: 1.0, HoldPower: 1.0, MotorType: HDHex},
		Hook: HookConfig{
			UpMultiplier:   0.0,
			DownMultiplier: 1.0,
			HoldPower:      1.0,
			MotorType:      HDHex,
		},
		Filter: FilterPresets{
			Downwards:     Pair{Left: 0.637, Right: 0.447},
			Center:        Pair{Left: 0.322, Right: 0.766},
			AlignWithHook: Pair{Left: 0.48, Right: 0.61},
		},
		Storage: StoragePresets{
			Open:   Pair{Left: 0.62, Right: 0.6},
			Closed: Pair{Left: 1.0, Right: 0.22},
		},
		Claw: ClawPresets{
			Open:   Pair{Left: 0.35, Right: 0.65},
			Closed: Pair{Left: 0.05, Right: 0.95},
		},
	}
}
