// Package sim provides a deterministic synthetic IMU source for bring-up
// and tests: no hardware, no randomness, sample values are a pure function
// of elapsed time.
package sim

import (
	"fmt"
	"math"
	"time"

	"padmotion/internal/geom"
	"padmotion/internal/imu"
)

// Profiles.
const (
	ProfileRest   = "rest"   // level and motionless
	ProfileSpin   = "spin"   // constant yaw rate about Y
	ProfileWobble = "wobble" // sinusoidal tilt about X, accel follows gravity
	ProfileShake  = "shake"  // sinusoidal linear shove on X, no rotation
)

type Config struct {
	Profile string

	// SpinRateDPS is the yaw rate for the spin profile. Default 90.
	SpinRateDPS float64
	// WobbleAmpDeg is the peak tilt for the wobble profile. Default 20.
	WobbleAmpDeg float64
	// ShakeAmpG is the peak shove for the shake profile. Default 0.5.
	ShakeAmpG float64
	// Period is the oscillation period for wobble/shake. Default 4s.
	Period time.Duration

	// Now overrides the clock; tests inject a fake.
	Now func() time.Time
}

type Source struct {
	cfg   Config
	start time.Time
}

func New(cfg Config) (*Source, error) {
	switch cfg.Profile {
	case "", ProfileRest:
		cfg.Profile = ProfileRest
	case ProfileSpin, ProfileWobble, ProfileShake:
	default:
		return nil, fmt.Errorf("sim: unknown profile %q", cfg.Profile)
	}
	if cfg.SpinRateDPS == 0 {
		cfg.SpinRateDPS = 90
	}
	if cfg.WobbleAmpDeg == 0 {
		cfg.WobbleAmpDeg = 20
	}
	if cfg.ShakeAmpG == 0 {
		cfg.ShakeAmpG = 0.5
	}
	if cfg.Period <= 0 {
		cfg.Period = 4 * time.Second
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Source{cfg: cfg, start: cfg.Now()}, nil
}

func (s *Source) Read() (imu.Sample, error) {
	now := s.cfg.Now()
	t := now.Sub(s.start).Seconds()
	smp := imu.Sample{At: now}

	switch s.cfg.Profile {
	case ProfileRest:
		smp.Accel = geom.Vec3{Y: -1}

	case ProfileSpin:
		// Yaw leaves the resting gravity direction alone.
		smp.Accel = geom.Vec3{Y: -1}
		smp.Gyro = geom.Vec3{Y: s.cfg.SpinRateDPS}

	case ProfileWobble:
		w := 2 * math.Pi / s.cfg.Period.Seconds()
		thetaDeg := s.cfg.WobbleAmpDeg * math.Sin(w*t)
		theta := thetaDeg * math.Pi / 180
		// Gravity as seen from a frame tilted by theta about X, and the
		// matching rate (the analytic derivative of the tilt).
		smp.Accel = geom.Vec3{Y: -math.Cos(theta), Z: math.Sin(theta)}
		smp.Gyro = geom.Vec3{X: s.cfg.WobbleAmpDeg * w * math.Cos(w*t)}

	case ProfileShake:
		w := 2 * math.Pi / s.cfg.Period.Seconds()
		smp.Accel = geom.Vec3{X: s.cfg.ShakeAmpG * math.Sin(w*t), Y: -1}
	}

	return smp, nil
}

func (s *Source) Close() error {
	return nil
}
