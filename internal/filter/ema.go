package filter

import "padmotion/internal/geom"

// EMA tracks the mean of a vector signal with O(1) state.
//
// While the internal sample count is below the cap it is a true arithmetic
// mean. Once the count saturates at maxN the update weight freezes at
// 1/maxN and the estimator becomes a fixed-weight exponential moving
// average, so it can follow slow drift indefinitely. The motion tracker
// uses one EMA per sensor to estimate bias from quiescent samples.
//
// The zero value is an empty estimator.
type EMA struct {
	avg geom.Vec3
	n   int
}

// Update folds v into the running average. maxN caps the effective window;
// maxN == 0 means unbounded (plain arithmetic mean forever).
func (e *EMA) Update(v geom.Vec3, maxN int) geom.Vec3 {
	if maxN == 0 || e.n < maxN {
		e.n++
	}
	e.avg = e.avg.Add(v.Sub(e.avg).DivScalar(float64(e.n)))
	return e.avg
}

// Value returns the current average. Zero before the first Update.
func (e *EMA) Value() geom.Vec3 {
	return e.avg
}

// Count returns the internal sample count (saturates at the cap).
func (e *EMA) Count() int {
	return e.n
}

// Reset discards all accumulated state.
func (e *EMA) Reset() {
	e.avg = geom.Vec3{}
	e.n = 0
}
