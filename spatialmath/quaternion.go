// Package spatialmath defines the spatial mathematical operations used to
// relate rigid coordinate frames: quaternion rotations, nautical angles, and
// rigid transforms.
package spatialmath

import (
	"math"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/num/quat"
)

const radToDeg = 180 / math.Pi

const degToRad = math.Pi / 180

// RadToDeg converts radians to degrees.
func RadToDeg(radians float64) float64 {
	return radians * radToDeg
}

// DegToRad converts degrees to radians.
func DegToRad(degrees float64) float64 {
	return degrees * degToRad
}

// QuatFromAxisAngle returns the unit quaternion rotating vectors by theta
// radians about the given axis, following the right-hand rule. The axis must
// be a unit vector.
func QuatFromAxisAngle(axis r3.Vector, theta float64) quat.Number {
	half := theta / 2
	s := math.Sin(half)
	return quat.Number{
		Real: math.Cos(half),
		Imag: s * axis.X,
		Jmag: s * axis.Y,
		Kmag: s * axis.Z,
	}
}

// QuatFromAxes returns the rotation operator that takes world coordinates
// into the frame whose x, y, and z axes are given in world coordinates. The
// axes must form a right-handed orthonormal basis.
func QuatFromAxes(x, y, z r3.Vector) quat.Number {
	// The operator's matrix rows are the basis vectors; convert with
	// Shepperd's method, branching on the largest diagonal term.
	m00, m01, m02 := x.X, x.Y, x.Z
	m10, m11, m12 := y.X, y.Y, y.Z
	m20, m21, m22 := z.X, z.Y, z.Z

	var q quat.Number
	switch tr := m00 + m11 + m22; {
	case tr > 0:
		s := 2 * math.Sqrt(tr+1)
		q = quat.Number{
			Real: s / 4,
			Imag: (m21 - m12) / s,
			Jmag: (m02 - m20) / s,
			Kmag: (m10 - m01) / s,
		}
	case m00 > m11 && m00 > m22:
		s := 2 * math.Sqrt(1+m00-m11-m22)
		q = quat.Number{
			Real: (m21 - m12) / s,
			Imag: s / 4,
			Jmag: (m01 + m10) / s,
			Kmag: (m02 + m20) / s,
		}
	case m11 > m22:
		s := 2 * math.Sqrt(1+m11-m00-m22)
		q = quat.Number{
			Real: (m02 - m20) / s,
			Imag: (m01 + m10) / s,
			Jmag: s / 4,
			Kmag: (m12 + m21) / s,
		}
	default:
		s := 2 * math.Sqrt(1+m22-m00-m11)
		q = quat.Number{
			Real: (m10 - m01) / s,
			Imag: (m02 + m20) / s,
			Jmag: (m12 + m21) / s,
			Kmag: s / 4,
		}
	}
	return Normalize(q)
}

// Normalize scales a quaternion to unit length. The zero quaternion is
// returned unchanged rather than dividing by zero.
func Normalize(q quat.Number) quat.Number {
	n := quat.Abs(q)
	if n == 0 {
		return q
	}
	return quat.Scale(1/n, q)
}

// Rotate applies the rotation operator q to a vector.
func Rotate(q quat.Number, v r3.Vector) r3.Vector {
	p := quat.Number{Imag: v.X, Jmag: v.Y, Kmag: v.Z}
	r := quat.Mul(quat.Mul(q, p), quat.Conj(q))
	return r3.Vector{X: r.Imag, Y: r.Jmag, Z: r.Kmag}
}

// RotateInverse applies the inverse of the rotation operator q to a vector.
func RotateInverse(q quat.Number, v r3.Vector) r3.Vector {
	return Rotate(quat.Conj(q), v)
}

// QuatAlmostEqual reports whether two unit quaternions represent rotations
// within tol of each other, treating q and -q as the same rotation.
func QuatAlmostEqual(q1, q2 quat.Number, tol float64) bool {
	d := quat.Mul(quat.Conj(q1), q2)
	return 2*math.Acos(math.Min(1, math.Abs(d.Real))) <= tol
}

// normalizeAngle reduces an angle to the interval [center-pi, center+pi).
func normalizeAngle(a, center float64) float64 {
	return a - 2*math.Pi*math.Floor((a-center+math.Pi)/(2*math.Pi))
}
