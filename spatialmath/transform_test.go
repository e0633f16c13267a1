package spatialmath

import (
	"math"
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"
)

func TestIdentityTransform(t *testing.T) {
	id := NewZeroTransform()
	v := r3.Vector{X: 1, Y: 2, Z: 3}
	test.That(t, id.Apply(v), test.ShouldResemble, v)
	test.That(t, id.Inverse().Apply(v), test.ShouldResemble, v)
}

func TestTranslation(t *testing.T) {
	x := NewTranslationTransform(r3.Vector{X: 1, Y: -2, Z: 3})
	got := x.Apply(r3.Vector{X: 1, Y: 1, Z: 1})
	test.That(t, got, test.ShouldResemble, r3.Vector{X: 2, Y: -1, Z: 4})
}

func TestComposeThenInverse(t *testing.T) {
	a := Pose{
		Position:    r3.Vector{X: 1, Y: 2, Z: 3},
		Orientation: NewNauticalAngles(0.1, -0.2, 0.3),
	}.Transform()
	b := Pose{
		Position:    r3.Vector{X: -4, Y: 0, Z: 2},
		Orientation: NewNauticalAngles(-1.0, 0.5, 2.0),
	}.Transform()

	ab := a.Compose(b)
	v := r3.Vector{X: 0.5, Y: -0.5, Z: 2}
	direct := b.Apply(a.Apply(v))
	test.That(t, ab.Apply(v).Sub(direct).Norm(), test.ShouldBeLessThan, 1e-12)

	// Composing with the inverse returns every point to itself.
	round := ab.Compose(ab.Inverse())
	test.That(t, round.Apply(v).Sub(v).Norm(), test.ShouldBeLessThan, 1e-12)
}

func TestPoseTransformRoundTrip(t *testing.T) {
	for _, pose := range []Pose{
		NewZeroPose(),
		{Position: r3.Vector{X: 1}},
		{Position: r3.Vector{X: 1, Y: 2, Z: 3}, Orientation: NewNauticalAngles(0.3, -0.7, 1.2)},
		{Position: r3.Vector{Z: -5}, Orientation: NewNauticalAngles(0, 0, math.Pi / 2)},
	} {
		// A pose's transform maps parent coordinates into the posed
		// frame; recovering the pose inverts that relationship.
		got := PoseFromTransform(pose.Transform().Inverse())
		test.That(t, got.AlmostEqual(pose, 1e-9, 1e-9), test.ShouldBeTrue)
	}
}

func TestTransformMapsPoseOrigin(t *testing.T) {
	pose := Pose{
		Position:    r3.Vector{X: 2, Y: -1, Z: 4},
		Orientation: NewNauticalAngles(0.2, 0.4, -0.6),
	}
	// The posed frame's origin, expressed in parent coordinates, maps to
	// zero in the posed frame.
	got := pose.Transform().Apply(pose.Position)
	test.That(t, got.Norm(), test.ShouldBeLessThan, 1e-12)
}

func TestQuatFromAxes(t *testing.T) {
	// A frame whose x-axis is world-y, y-axis is world-z, z-axis world-x.
	q := QuatFromAxes(r3.Vector{Y: 1}, r3.Vector{Z: 1}, r3.Vector{X: 1})
	got := Rotate(q, r3.Vector{Y: 1})
	test.That(t, got.Sub(r3.Vector{X: 1}).Norm(), test.ShouldBeLessThan, 1e-12)
	got = Rotate(q, r3.Vector{X: 1})
	test.That(t, got.Sub(r3.Vector{Z: 1}).Norm(), test.ShouldBeLessThan, 1e-12)
}
