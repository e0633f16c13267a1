package spatialmath

import (
	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/num/quat"
)

// Transform is a rigid affine map between two coordinate frames. Applying it
// to coordinates in the source frame yields coordinates in the destination
// frame: first the rotation, then the translation. All transforms here are
// time-independent.
type Transform struct {
	Rotation    quat.Number
	Translation r3.Vector
}

// NewZeroTransform returns the identity transform. The zero value of
// Transform carries a zero quaternion, so this must be used instead of
// Transform{}.
func NewZeroTransform() Transform {
	return Transform{Rotation: quat.Number{Real: 1}}
}

// NewTranslationTransform returns a transform that only translates.
func NewTranslationTransform(t r3.Vector) Transform {
	return Transform{Rotation: quat.Number{Real: 1}, Translation: t}
}

// NewRotationTransform returns a transform that only rotates.
func NewRotationTransform(q quat.Number) Transform {
	return Transform{Rotation: Normalize(q)}
}

// Apply maps coordinates in the transform's source frame to coordinates in
// its destination frame.
func (x Transform) Apply(v r3.Vector) r3.Vector {
	return Rotate(x.Rotation, v).Add(x.Translation)
}

// Compose returns the transform applying x first and then next.
func (x Transform) Compose(next Transform) Transform {
	return Transform{
		Rotation:    quat.Mul(next.Rotation, x.Rotation),
		Translation: Rotate(next.Rotation, x.Translation).Add(next.Translation),
	}
}

// Inverse returns the transform mapping back from destination to source.
func (x Transform) Inverse() Transform {
	inv := quat.Conj(x.Rotation)
	return Transform{
		Rotation:    inv,
		Translation: Rotate(inv, x.Translation).Mul(-1),
	}
}
