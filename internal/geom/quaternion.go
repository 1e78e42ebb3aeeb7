package geom

import "math"

// Quat is a rotation quaternion in (X, Y, Z, W) layout with identity
// (0, 0, 0, 1). Like Vec3 it has value semantics.
//
// Rotations are intended to stay unit length. Freshly derived rotations are
// renormalized by their producers; products of long chains are not, so the
// magnitude of an accumulated rotation can drift slightly over long runs.
type Quat struct {
	X, Y, Z, W float64
}

// QuatIdentity returns the identity rotation.
func QuatIdentity() Quat {
	return Quat{0, 0, 0, 1}
}

// AxisAngle builds the rotation of angle radians about axis.
// axis must be unit length for the result to be a unit quaternion.
func AxisAngle(axis Vec3, angle float64) Quat {
	s := math.Sin(angle / 2)
	return Quat{
		X: axis.X * s,
		Y: axis.Y * s,
		Z: axis.Z * s,
		W: math.Cos(angle / 2),
	}
}

// Mul is the Hamilton product q ⊗ o: non-commutative, associative.
// Composing local-frame rotations is q.Mul(delta), in that order.
func (q Quat) Mul(o Quat) Quat {
	return Quat{
		X: q.W*o.X + q.X*o.W + q.Y*o.Z - q.Z*o.Y,
		Y: q.W*o.Y - q.X*o.Z + q.Y*o.W + q.Z*o.X,
		Z: q.W*o.Z + q.X*o.Y - q.Y*o.X + q.Z*o.W,
		W: q.W*o.W - q.X*o.X - q.Y*o.Y - q.Z*o.Z,
	}
}

func (q Quat) Conjugate() Quat {
	return Quat{-q.X, -q.Y, -q.Z, q.W}
}

// Inverse returns conjugate(q) / |q|². For unit quaternions this equals the
// conjugate. The inverse of the zero quaternion is undefined; it returns
// identity rather than NaN components.
func (q Quat) Inverse() Quat {
	n := q.X*q.X + q.Y*q.Y + q.Z*q.Z + q.W*q.W
	if n == 0 {
		return QuatIdentity()
	}
	c := q.Conjugate()
	return Quat{c.X / n, c.Y / n, c.Z / n, c.W / n}
}

func (q Quat) Dot(o Quat) float64 {
	return q.X*o.X + q.Y*o.Y + q.Z*o.Z + q.W*o.W
}

func (q Quat) Len() float64 {
	return math.Sqrt(q.X*q.X + q.Y*q.Y + q.Z*q.Z + q.W*q.W)
}

// Normalize returns q scaled to unit length, or identity when q has zero
// length (same degenerate-input policy as Vec3.Normalize: never NaN/Inf).
func (q Quat) Normalize() Quat {
	l := q.Len()
	if l == 0 {
		return QuatIdentity()
	}
	return Quat{q.X / l, q.Y / l, q.Z / l, q.W / l}
}

// Rotate applies the rotation to v: q ⊗ (v, 0) ⊗ q⁻¹, projected back to a
// Vec3.
func (q Quat) Rotate(v Vec3) Vec3 {
	p := q.Mul(Quat{v.X, v.Y, v.Z, 0}).Mul(q.Inverse())
	return Vec3{p.X, p.Y, p.Z}
}
