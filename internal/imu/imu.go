// Package imu defines the sample and source abstractions the motion
// pipeline consumes. Concrete sources live in subpackages (sim, iio) and
// in internal/sensors for bus-attached parts.
package imu

import (
	"time"

	"padmotion/internal/geom"
)

// Sample is one accel/gyro reading pair.
//
// Units follow the fusion core's conventions: accel in G (magnitude ~1 at
// rest), gyro in deg/s. At is the acquisition timestamp; consumers derive
// dt from consecutive stamps rather than from the wall clock at use time.
type Sample struct {
	At    time.Time
	Accel geom.Vec3
	Gyro  geom.Vec3
}

// Source produces samples at the caller's pace. Read blocks at most for
// one hardware transaction; it never waits for "the next" sample.
type Source interface {
	Read() (Sample, error)
	Close() error
}

// MountMatrix remaps sensor axes into the controller's body frame. Rows
// are the body axes expressed in sensor coordinates.
type MountMatrix struct {
	X, Y, Z geom.Vec3
}

// IdentityMount returns the no-op remap.
func IdentityMount() MountMatrix {
	return MountMatrix{
		X: geom.Vec3{X: 1},
		Y: geom.Vec3{Y: 1},
		Z: geom.Vec3{Z: 1},
	}
}

func (m MountMatrix) Apply(v geom.Vec3) geom.Vec3 {
	return geom.Vec3{
		X: m.X.Dot(v),
		Y: m.Y.Dot(v),
		Z: m.Z.Dot(v),
	}
}

// Remap wraps src so every sample passes through the mount matrix.
func Remap(src Source, m MountMatrix) Source {
	return &remapped{src: src, m: m}
}

type remapped struct {
	src Source
	m   MountMatrix
}

func (r *remapped) Read() (Sample, error) {
	s, err := r.src.Read()
	if err != nil {
		return Sample{}, err
	}
	s.Accel = r.m.Apply(s.Accel)
	s.Gyro = r.m.Apply(s.Gyro)
	return s, nil
}

func (r *remapped) Close() error {
	return r.src.Close()
}
