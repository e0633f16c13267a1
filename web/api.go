package web

import (
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"github.com/geekmug/posed/frametree"
	"github.com/geekmug/posed/geodesy"
	"github.com/geekmug/posed/spatialmath"
)

// All wire payloads speak degrees; radians stay internal to the engine.

// PoseJSON is a pose in a named frame.
type PoseJSON struct {
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Z        float64 `json:"z"`
	RollDeg  float64 `json:"roll_deg"`
	PitchDeg float64 `json:"pitch_deg"`
	YawDeg   float64 `json:"yaw_deg"`
}

func poseFromJSON(j PoseJSON) spatialmath.Pose {
	return spatialmath.Pose{
		Position: r3.Vector{X: j.X, Y: j.Y, Z: j.Z},
		Orientation: spatialmath.NewNauticalAngles(
			spatialmath.DegToRad(j.RollDeg),
			spatialmath.DegToRad(j.PitchDeg),
			spatialmath.DegToRad(j.YawDeg),
		),
	}
}

func poseToJSON(p spatialmath.Pose) PoseJSON {
	return PoseJSON{
		X:        p.Position.X,
		Y:        p.Position.Y,
		Z:        p.Position.Z,
		RollDeg:  spatialmath.RadToDeg(p.Orientation.Roll),
		PitchDeg: spatialmath.RadToDeg(p.Orientation.Pitch),
		YawDeg:   spatialmath.RadToDeg(p.Orientation.Yaw),
	}
}

// GeoPoseJSON is a geodetic pose. Exactly one of HAE or AMSL should be set
// on input; both are populated on output.
type GeoPoseJSON struct {
	LatitudeDeg  float64  `json:"latitude_deg"`
	LongitudeDeg float64  `json:"longitude_deg"`
	HAE          *float64 `json:"hae,omitempty"`
	AMSL         *float64 `json:"amsl,omitempty"`
	RollDeg      float64  `json:"roll_deg"`
	PitchDeg     float64  `json:"pitch_deg"`
	YawDeg       float64  `json:"yaw_deg"`
}

// geoPoseFromJSON converts a wire geodetic pose, resolving AMSL altitudes
// through the geoid.
func geoPoseFromJSON(j GeoPoseJSON, geoid geodesy.Geoid) (geodesy.GeodeticPose, error) {
	point := geodesy.NewGeodeticPointFromDegrees(j.LatitudeDeg, j.LongitudeDeg, 0)
	switch {
	case j.HAE != nil && j.AMSL != nil:
		return geodesy.GeodeticPose{}, errors.New("provide either hae or amsl, not both")
	case j.HAE != nil:
		point.Altitude = *j.HAE
	case j.AMSL != nil:
		point.Altitude = *j.AMSL + geoid.Undulation(point.Latitude, point.Longitude)
	default:
		return geodesy.GeodeticPose{}, errors.New("an altitude (hae or amsl) is required")
	}
	return geodesy.GeodeticPose{
		Position: point,
		Orientation: spatialmath.NewNauticalAngles(
			spatialmath.DegToRad(j.RollDeg),
			spatialmath.DegToRad(j.PitchDeg),
			spatialmath.DegToRad(j.YawDeg),
		),
	}, nil
}

func geoPoseToJSON(p geodesy.GeodeticPose, geoid geodesy.Geoid) GeoPoseJSON {
	hae := p.Position.Altitude
	amsl := hae - geoid.Undulation(p.Position.Latitude, p.Position.Longitude)
	return GeoPoseJSON{
		LatitudeDeg:  spatialmath.RadToDeg(p.Position.Latitude),
		LongitudeDeg: spatialmath.RadToDeg(p.Position.Longitude),
		HAE:          &hae,
		AMSL:         &amsl,
		RollDeg:      spatialmath.RadToDeg(p.Orientation.Roll),
		PitchDeg:     spatialmath.RadToDeg(p.Orientation.Pitch),
		YawDeg:       spatialmath.RadToDeg(p.Orientation.Yaw),
	}
}

// FrameJSON is one frame of a traversal.
type FrameJSON struct {
	Name    string    `json:"name"`
	Parent  string    `json:"parent,omitempty"`
	Unknown bool      `json:"unknown,omitempty"`
	Pose    *PoseJSON `json:"pose,omitempty"`
}

func frameToJSON(f *frametree.Frame) FrameJSON {
	out := FrameJSON{Name: f.Name(), Parent: f.Parent()}
	xfrm, err := f.TransformFromParent()
	if err != nil {
		out.Unknown = true
		return out
	}
	pose := poseToJSON(spatialmath.PoseFromTransform(xfrm.Inverse()))
	out.Pose = &pose
	return out
}

// CreateFrameJSON is the body of a frame-creation request. Omitting the
// parent creates a subgraph root awaiting geolocation.
type CreateFrameJSON struct {
	Name   string    `json:"name"`
	Parent string    `json:"parent,omitempty"`
	Pose   *PoseJSON `json:"pose,omitempty"`
}

// ChangeJSON is one change-bus event on the wire.
type ChangeJSON struct {
	Type  string     `json:"type"`
	Name  string     `json:"name"`
	Frame *FrameJSON `json:"frame,omitempty"`
}

func changeToJSON(c frametree.Change) ChangeJSON {
	switch c := c.(type) {
	case frametree.Created:
		frame := frameToJSON(c.Frame)
		return ChangeJSON{Type: "created", Name: c.Frame.Name(), Frame: &frame}
	case frametree.Removed:
		return ChangeJSON{Type: "removed", Name: c.Name}
	default:
		return ChangeJSON{Type: "unknown"}
	}
}
