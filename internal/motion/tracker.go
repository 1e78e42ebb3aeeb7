// Package motion implements the 6-axis sensor-fusion core: a complementary
// filter that blends gyro integration with the accelerometer's gravity
// direction, plus adaptive bias estimation from quiescent samples.
//
// A Tracker owns its state exclusively and is driven by sequential calls
// from a single poll loop; it is not safe for concurrent use. One tracker
// exists per connected controller. The steady-state update path performs no
// heap allocation.
package motion

import (
	"math"

	"padmotion/internal/filter"
	"padmotion/internal/geom"
)

// Tunables are the externally configurable fusion parameters. They are
// deliberately not compiled-in constants; the defaults mirror the values
// the pipeline has always shipped with.
type Tunables struct {
	// AccelCorrection is the complementary-filter blend weight: the share
	// of the accelerometer's gravity direction folded into the
	// gyro-propagated estimate each update.
	AccelCorrection float64

	// MaxBiasSamples caps the bias estimators' effective window.
	// 0 means unbounded.
	MaxBiasSamples int

	// GyroMotionThreshold is the per-tick gyro delta (deg/s) below which
	// the controller counts as rotationally stationary.
	GyroMotionThreshold float64

	// AccelMotionThreshold is the per-tick linear-acceleration delta (G)
	// below which the controller counts as translationally stationary.
	AccelMotionThreshold float64
}

// DefaultTunables returns the reference parameter set.
func DefaultTunables() Tunables {
	return Tunables{
		AccelCorrection:      0.05,
		MaxBiasSamples:       256,
		GyroMotionThreshold:  5.0,
		AccelMotionThreshold: 0.02,
	}
}

// Tracker fuses raw accel/gyro samples into an orientation estimate and a
// gravity-compensated acceleration signal.
//
// Conventions: accel in G with magnitude ~1 at rest and direction
// (0, -1, 0) when the device is idle and level; gyro in deg/s; dt in
// seconds, supplied explicitly by the caller from a monotonic source.
type Tracker struct {
	tun Tunables

	gravity       geom.Vec3
	totalRotation geom.Quat
	deltaRotation geom.Quat
	filteredAccel geom.Vec3

	gyroBias  filter.EMA
	accelBias filter.EMA

	lastRawGyro geom.Vec3
}

// gravityAtRest is the assumed gravity direction for an idle, level device.
var gravityAtRest = geom.Vec3{X: 0, Y: -1, Z: 0}

func NewTracker(tun Tunables) *Tracker {
	def := DefaultTunables()
	if tun.AccelCorrection <= 0 {
		tun.AccelCorrection = def.AccelCorrection
	}
	if tun.MaxBiasSamples < 0 {
		tun.MaxBiasSamples = def.MaxBiasSamples
	}
	if tun.GyroMotionThreshold <= 0 {
		tun.GyroMotionThreshold = def.GyroMotionThreshold
	}
	if tun.AccelMotionThreshold <= 0 {
		tun.AccelMotionThreshold = def.AccelMotionThreshold
	}
	t := &Tracker{tun: tun}
	t.resetState()
	return t
}

func (t *Tracker) resetState() {
	t.gravity = gravityAtRest
	t.totalRotation = geom.QuatIdentity()
	t.deltaRotation = geom.QuatIdentity()
	t.filteredAccel = geom.Vec3{}
	t.lastRawGyro = geom.Vec3{}
}

// Reset discards all fused state and bias estimates, returning the tracker
// to its just-connected condition.
func (t *Tracker) Reset() {
	t.resetState()
	t.gyroBias.Reset()
	t.accelBias.Reset()
}

// Update runs one fusion step on already-corrected samples.
//
// The gyro reading is integrated over dt into a delta rotation; the gravity
// estimate is carried into the new sensor frame and nudged toward the
// accelerometer's direction by the AccelCorrection weight; the delta is
// composed onto the cumulative rotation in local-frame order; and the
// linear acceleration is the raw sample minus the gravity estimate,
// expressed in the instantaneous sensor frame (not rotated into a world
// frame).
//
// Degenerate inputs follow the package policy: a zero-length gyro or a
// dt of zero leaves the delta rotation at its previous value, and a
// zero-length accel sample blends in the zero vector. Non-finite input is
// not filtered; garbage in, garbage out.
func (t *Tracker) Update(accel, gyro geom.Vec3, dt float64) {
	angleSpeed := gyro.Len() * math.Pi / 180
	angle := angleSpeed * dt
	if angle != 0 {
		t.deltaRotation = geom.AxisAngle(gyro.Normalize(), angle).Normalize()
	}

	// Carry the gravity estimate into the rotated sensor frame, then blend
	// toward the accelerometer's direction.
	t.gravity = t.deltaRotation.Inverse().Rotate(t.gravity)
	c := t.tun.AccelCorrection
	t.gravity = t.gravity.Scale(1 - c).Add(accel.Normalize().Scale(c)).Normalize()

	// Local-frame composition; the order is load-bearing.
	t.totalRotation = t.totalRotation.Mul(t.deltaRotation)

	t.filteredAccel = accel.Sub(t.gravity)
}

// ProcessRaw is the bias-aware entry point for raw sensor samples: it gates
// the bias estimators on stationarity, subtracts the current bias estimates
// and then runs Update on the corrected samples.
func (t *Tracker) ProcessRaw(accel, gyro geom.Vec3, dt float64) {
	// Rotationally stationary when the tick-to-tick gyro delta is small.
	// On the first call lastRawGyro is zero, so a quiet startup feeds the
	// estimator immediately.
	if gyro.Sub(t.lastRawGyro).Len() < t.tun.GyroMotionThreshold {
		t.gyroBias.Update(gyro, t.tun.MaxBiasSamples)
	}

	correctedAccel := accel.Sub(t.accelBias.Value())
	correctedGyro := gyro.Sub(t.gyroBias.Value())

	prevFiltered := t.filteredAccel
	t.Update(correctedAccel, correctedGyro, dt)

	// Translationally stationary when the filtered-accel delta is small;
	// the residual then is mostly accelerometer bias.
	if t.filteredAccel.Sub(prevFiltered).Len() < t.tun.AccelMotionThreshold {
		t.accelBias.Update(t.filteredAccel, t.tun.MaxBiasSamples)
	}

	t.lastRawGyro = gyro
}

// Gravity returns the current unit gravity-direction estimate in the
// sensor frame.
func (t *Tracker) Gravity() geom.Vec3 {
	return t.gravity
}

// TotalRotation returns the cumulative orientation since creation or the
// last Reset.
func (t *Tracker) TotalRotation() geom.Quat {
	return t.totalRotation
}

// DeltaRotation returns the rotation since the previous update.
func (t *Tracker) DeltaRotation() geom.Quat {
	return t.deltaRotation
}

// FilteredAccel returns the gravity-compensated acceleration from the most
// recent update, in the sensor frame.
func (t *Tracker) FilteredAccel() geom.Vec3 {
	return t.filteredAccel
}

// GyroBias returns the current gyro bias estimate (deg/s).
func (t *Tracker) GyroBias() geom.Vec3 {
	return t.gyroBias.Value()
}

// AccelBias returns the current accelerometer bias estimate (G).
func (t *Tracker) AccelBias() geom.Vec3 {
	return t.accelBias.Value()
}

// GyroBiasSamples returns how many quiescent samples have fed the gyro
// bias estimator (saturates at MaxBiasSamples).
func (t *Tracker) GyroBiasSamples() int {
	return t.gyroBias.Count()
}

// AccelBiasSamples returns how many quiescent samples have fed the accel
// bias estimator (saturates at MaxBiasSamples).
func (t *Tracker) AccelBiasSamples() int {
	return t.accelBias.Count()
}

// Tunables returns the parameter set the tracker runs with.
func (t *Tracker) Tunables() Tunables {
	return t.tun
}
