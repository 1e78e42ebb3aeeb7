// Package filter holds the small numeric filters used by the motion
// pipeline: exponential low-pass smoothing over vector signals and a
// capped-window moving average for sensor bias tracking.
package filter

import "padmotion/internal/geom"

// LowPass is a single-pole exponential smoother over a vector signal.
// The zero value is ready to use.
type LowPass struct {
	y geom.Vec3
}

// Value returns the most recent filtered output.
func (f *LowPass) Value() geom.Vec3 {
	return f.y
}

// Update folds sample into the filter state:
//
//	y ← (1-strength)·y + strength·sample
//
// strength is clamped to [0, 1]; 0 leaves the state untouched, 1 snaps it
// to the sample.
func (f *LowPass) Update(sample geom.Vec3, strength float64) geom.Vec3 {
	if strength < 0 {
		strength = 0
	} else if strength > 1 {
		strength = 1
	}
	f.y = f.y.Scale(1 - strength).Add(sample.Scale(strength))
	return f.y
}

// Reset clears the filter state.
func (f *LowPass) Reset() {
	f.y = geom.Vec3{}
}

// LowPass2 is the two-sample variant: it blends the current output, the
// new sample and the previous raw sample.
type LowPass2 struct {
	y    geom.Vec3
	prev geom.Vec3
}

func (f *LowPass2) Value() geom.Vec3 {
	return f.y
}

// Update applies
//
//	y ← (1-s0-s1)·y + s0·sample + s1·prevSample
//
// and remembers sample as the next call's prevSample. The strengths are not
// renormalized: if s0+s1 > 1 the filter amplifies instead of smoothing.
// Callers own that risk.
func (f *LowPass2) Update(sample geom.Vec3, s0, s1 float64) geom.Vec3 {
	f.y = f.y.Scale(1 - s0 - s1).Add(sample.Scale(s0)).Add(f.prev.Scale(s1))
	f.prev = sample
	return f.y
}

func (f *LowPass2) Reset() {
	f.y = geom.Vec3{}
	f.prev = geom.Vec3{}
}
