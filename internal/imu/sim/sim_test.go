package sim

import (
	"math"
	"testing"
	"time"
)

// fakeClock steps a fixed amount per call.
func fakeClock(step time.Duration) func() time.Time {
	t := time.Unix(1000, 0)
	return func() time.Time {
		t = t.Add(step)
		return t
	}
}

func TestNew_RejectsUnknownProfile(t *testing.T) {
	if _, err := New(Config{Profile: "barrel-roll"}); err == nil {
		t.Fatalf("expected error")
	}
}

func TestNew_EmptyProfileIsRest(t *testing.T) {
	s, err := New(Config{Now: fakeClock(time.Millisecond)})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	smp, err := s.Read()
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if smp.Accel.Y != -1 || smp.Accel.X != 0 || smp.Accel.Z != 0 {
		t.Fatalf("accel=%v want {0 -1 0}", smp.Accel)
	}
	if !smp.Gyro.IsZero() {
		t.Fatalf("gyro=%v want zero", smp.Gyro)
	}
}

func TestSpin_ConstantRateGravityFixed(t *testing.T) {
	s, err := New(Config{Profile: ProfileSpin, SpinRateDPS: 45, Now: fakeClock(10 * time.Millisecond)})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	for i := 0; i < 5; i++ {
		smp, err := s.Read()
		if err != nil {
			t.Fatalf("Read: %v", err)
		}
		if smp.Gyro.Y != 45 {
			t.Fatalf("gyro=%v want Y=45", smp.Gyro)
		}
		if smp.Accel.Y != -1 {
			t.Fatalf("accel=%v want Y=-1", smp.Accel)
		}
	}
}

func TestWobble_AccelStaysUnitAndPeriodic(t *testing.T) {
	period := 2 * time.Second
	s, err := New(Config{Profile: ProfileWobble, Period: period, Now: fakeClock(50 * time.Millisecond)})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	var maxTiltZ float64
	for i := 0; i < 100; i++ {
		smp, err := s.Read()
		if err != nil {
			t.Fatalf("Read: %v", err)
		}
		if l := smp.Accel.Len(); math.Abs(l-1) > 1e-9 {
			t.Fatalf("|accel|=%v want 1", l)
		}
		if math.Abs(smp.Accel.Z) > maxTiltZ {
			maxTiltZ = math.Abs(smp.Accel.Z)
		}
	}
	// Peak tilt of 20° puts sin(theta) ~0.34 into Z at the extremes.
	want := math.Sin(20 * math.Pi / 180)
	if maxTiltZ < want-0.02 {
		t.Fatalf("maxTiltZ=%v want >= %v", maxTiltZ, want-0.02)
	}
}

func TestWobble_GyroIsDerivativeOfTilt(t *testing.T) {
	step := 10 * time.Millisecond
	period := 4 * time.Second
	s, err := New(Config{Profile: ProfileWobble, Period: period, Now: fakeClock(step)})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	// Compare the reported rate against a finite difference of the tilt
	// angle recovered from the accel vector.
	prev, err := s.Read()
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	for i := 0; i < 50; i++ {
		cur, err := s.Read()
		if err != nil {
			t.Fatalf("Read: %v", err)
		}
		thetaPrev := math.Atan2(prev.Accel.Z, -prev.Accel.Y) * 180 / math.Pi
		thetaCur := math.Atan2(cur.Accel.Z, -cur.Accel.Y) * 180 / math.Pi
		numeric := (thetaCur - thetaPrev) / step.Seconds()
		mid := (cur.Gyro.X + prev.Gyro.X) / 2
		if math.Abs(numeric-mid) > 1.0 {
			t.Fatalf("step %d: numeric rate %.3f vs reported %.3f", i, numeric, mid)
		}
		prev = cur
	}
}

func TestShake_NoRotation(t *testing.T) {
	s, err := New(Config{Profile: ProfileShake, ShakeAmpG: 0.25, Now: fakeClock(20 * time.Millisecond)})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	var sawShove bool
	for i := 0; i < 200; i++ {
		smp, err := s.Read()
		if err != nil {
			t.Fatalf("Read: %v", err)
		}
		if !smp.Gyro.IsZero() {
			t.Fatalf("gyro=%v want zero", smp.Gyro)
		}
		if math.Abs(smp.Accel.X) > 0.2 {
			sawShove = true
		}
	}
	if !sawShove {
		t.Fatalf("expected shake to reach near its amplitude")
	}
}
