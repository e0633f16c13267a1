package spatialmath

import (
	"math"
	"testing"

	"go.viam.com/test"
)

const angleTol = 1e-7

func TestNormalization(t *testing.T) {
	a := NewNauticalAngles(0, 0, 3*math.Pi)
	test.That(t, math.Abs(a.Yaw), test.ShouldAlmostEqual, math.Pi, angleTol)

	// A pitch beyond the pole reflects through it.
	a = NewNauticalAngles(0, 3*math.Pi/4, 0)
	test.That(t, a.Pitch, test.ShouldAlmostEqual, math.Pi/4, angleTol)
	test.That(t, math.Abs(a.Roll), test.ShouldAlmostEqual, math.Pi, angleTol)
	test.That(t, math.Abs(a.Yaw), test.ShouldAlmostEqual, math.Pi, angleTol)

	// The reflected angles describe the same rotation.
	b := NauticalAngles{Roll: 0, Pitch: 3 * math.Pi / 4, Yaw: 0}
	test.That(t, QuatAlmostEqual(a.ToQuat(), b.ToQuat(), angleTol), test.ShouldBeTrue)

	// Pitch exactly at the poles is preserved.
	a = NewNauticalAngles(0, math.Pi/2, 0)
	test.That(t, a.Pitch, test.ShouldAlmostEqual, math.Pi/2)
	a = NewNauticalAngles(0, -math.Pi/2, 0)
	test.That(t, a.Pitch, test.ShouldAlmostEqual, -math.Pi/2)
}

func TestRoundTrip(t *testing.T) {
	for roll := -3.0; roll <= 3.0; roll += 0.5 {
		for pitch := -1.5; pitch <= 1.5; pitch += 0.25 {
			for yaw := -3.0; yaw <= 3.0; yaw += 0.5 {
				in := NauticalAngles{Roll: roll, Pitch: pitch, Yaw: yaw}
				out := NauticalAnglesFromQuat(in.ToQuat())
				test.That(t, out.AlmostEqual(in, angleTol), test.ShouldBeTrue)
			}
		}
	}
}

func TestTransformQuatAgrees(t *testing.T) {
	for roll := -3.0; roll <= 3.0; roll += 0.7 {
		for pitch := -1.5; pitch <= 1.5; pitch += 0.4 {
			for yaw := -3.0; yaw <= 3.0; yaw += 0.7 {
				a := NauticalAngles{Roll: roll, Pitch: pitch, Yaw: yaw}
				test.That(t, QuatAlmostEqual(a.ToQuat(), a.ToTransformQuat(), 1e-12),
					test.ShouldBeTrue)
			}
		}
	}
}

func TestGimbalLock(t *testing.T) {
	for _, yaw := range []float64{0, math.Pi / 4, math.Pi / 2, math.Pi, 3 * math.Pi / 2} {
		for _, pitch := range []float64{math.Pi / 2, -math.Pi / 2} {
			in := NewNauticalAngles(0, pitch, yaw)
			out := NauticalAnglesFromQuat(in.ToQuat())
			test.That(t, out.Roll, test.ShouldEqual, 0)
			test.That(t, out.Pitch, test.ShouldAlmostEqual, pitch, 1e-6)
			test.That(t, math.Abs(normalizeAngle(out.Yaw-in.Yaw, 0)), test.ShouldBeLessThan, 1e-6)
		}
	}
}

func TestGimbalLockAbsorbsRoll(t *testing.T) {
	// At the poles roll and yaw are the same effective rotation: the
	// extracted angles report all of it as yaw. Looking up, positive roll
	// subtracts from yaw; looking down, it adds.
	for _, tc := range []struct {
		roll, pitch, yaw, wantYaw float64
	}{
		{0.3, math.Pi / 2, 1.0, 0.7},
		{-0.5, math.Pi / 2, 0.25, 0.75},
		{0.3, -math.Pi / 2, 1.0, 1.3},
		{-0.5, -math.Pi / 2, 0.25, -0.25},
	} {
		out := NauticalAnglesFromQuat(NauticalAngles{Roll: tc.roll, Pitch: tc.pitch, Yaw: tc.yaw}.ToQuat())
		test.That(t, out.Roll, test.ShouldEqual, 0)
		test.That(t, out.Pitch, test.ShouldAlmostEqual, tc.pitch, 1e-6)
		test.That(t, out.Yaw, test.ShouldAlmostEqual, tc.wantYaw, 1e-6)
	}
}

func TestNearPoleStaysDirect(t *testing.T) {
	// Just shy of the pole the direct extraction still applies and must
	// recover all three angles.
	in := NauticalAngles{Roll: 0.2, Pitch: math.Pi/2 - 1e-4, Yaw: -0.4}
	out := NauticalAnglesFromQuat(in.ToQuat())
	test.That(t, out.AlmostEqual(in, 1e-6), test.ShouldBeTrue)
}
