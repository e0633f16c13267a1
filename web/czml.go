package web

import (
	"net/http"
	"time"

	"github.com/bep/debounce"
	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/num/quat"

	"github.com/geekmug/posed/spatialmath"
)

// czmlDebounce coalesces a burst of change events (an update touches every
// frame in a subtree) into one feed refresh.
const czmlDebounce = 100 * time.Millisecond

// CZML packet fragments, trimmed to the properties the feed uses.

type czmlPosition struct {
	Cartesian []float64 `json:"cartesian"`
}

type czmlOrientation struct {
	UnitQuaternion []float64 `json:"unitQuaternion"`
}

type czmlSolidColor struct {
	Color struct {
		RGBAF []float64 `json:"rgbaf"`
	} `json:"color"`
}

type czmlPolylineMaterial struct {
	SolidColor czmlSolidColor `json:"solidColor"`
}

type czmlPolyline struct {
	Positions czmlPosition         `json:"positions"`
	Material  czmlPolylineMaterial `json:"material"`
	Width     float64              `json:"width"`
}

type czmlPoint struct {
	PixelSize float64 `json:"pixelSize"`
}

type czmlPacket struct {
	ID          string           `json:"id"`
	Name        string           `json:"name,omitempty"`
	Version     string           `json:"version,omitempty"`
	Delete      bool             `json:"delete,omitempty"`
	Position    *czmlPosition    `json:"position,omitempty"`
	Orientation *czmlOrientation `json:"orientation,omitempty"`
	Point       *czmlPoint       `json:"point,omitempty"`
	Polyline    *czmlPolyline    `json:"polyline,omitempty"`
}

// nedToENU flips the topocentric NED axes onto the East-North-Up axes CZML
// orientations are defined against.
// ENU's x axis is NED's east, its y is north, its z is up.
var nedToENU = spatialmath.QuatFromAxes(
	r3.Vector{Y: 1}, r3.Vector{X: 1}, r3.Vector{Z: -1},
)

// czmlPackets builds one packet per geolocated frame, plus a polyline tying
// each frame below a subgraph root to its parent; subgraph roots get no
// polyline. Frames on an ungeolocated subgraph are omitted.
func (s *Server) czmlPackets() []czmlPacket {
	packets := []czmlPacket{{ID: "document", Name: "posed", Version: "1.0"}}
	snapshot := s.service.Snapshot()
	ellipsoid := s.service.Ellipsoid()

	positions := map[string][]float64{}
	for f := range snapshot.Traverse() {
		if f.IsRoot() {
			continue
		}
		geopose := s.service.Convert(f.Name(), spatialmath.NewZeroPose())
		if geopose == nil {
			continue
		}

		// Positions are given in ECEF to avoid height-reference issues.
		ecef := ellipsoid.ToECEF(geopose.Position)
		cartesian := []float64{ecef.X, ecef.Y, ecef.Z}
		positions[f.Name()] = cartesian

		// CZML orientations are Earth-fixed and ENU-based, so bake the
		// topocentric rotation into the orientation and flip NED over.
		topo := ellipsoid.TopocentricRotation(geopose.Position)
		r := quat.Mul(nedToENU, quat.Mul(geopose.Orientation.ToQuat(), topo))
		packet := czmlPacket{
			ID:       f.Name(),
			Name:     f.Name(),
			Position: &czmlPosition{Cartesian: cartesian},
			// CZML quaternions are in xyzw order.
			Orientation: &czmlOrientation{
				UnitQuaternion: []float64{r.Imag, r.Jmag, r.Kmag, r.Real},
			},
			Point: &czmlPoint{PixelSize: 8},
		}

		if parent, ok := positions[f.Parent()]; ok {
			line := &czmlPolyline{Width: 3}
			line.Positions.Cartesian = append(append([]float64{}, parent...), cartesian...)
			line.Material.SolidColor.Color.RGBAF = []float64{1, 0, 1, 1}
			packet.Polyline = line
		}
		packets = append(packets, packet)
	}
	return packets
}

// handleCzml streams CZML packets as server-sent events: a full packet set
// up front, then a refreshed set (with deletions for dropped frames) after
// every debounced burst of forest changes.
func (s *Server) handleCzml(w http.ResponseWriter, r *http.Request) {
	sse, err := newSSEWriter(w)
	if err != nil {
		writeError(w, http.StatusNotImplemented, err)
		return
	}

	ctx := r.Context()
	changes := s.service.Changes(ctx)
	heartbeat := s.clock.Ticker(heartbeatInterval)
	defer heartbeat.Stop()

	sendAll := func(known map[string]bool) (map[string]bool, error) {
		packets := s.czmlPackets()
		seen := map[string]bool{}
		for _, p := range packets {
			if err := sse.sendEvent("czml", p); err != nil {
				return nil, err
			}
			seen[p.ID] = true
		}
		for id := range known {
			if !seen[id] {
				if err := sse.sendEvent("czml", czmlPacket{ID: id, Delete: true}); err != nil {
					return nil, err
				}
			}
		}
		return seen, nil
	}

	known, err := sendAll(nil)
	if err != nil {
		return
	}

	refresh := make(chan struct{}, 1)
	debounced := debounce.New(czmlDebounce)
	for {
		select {
		case <-ctx.Done():
			return
		case <-heartbeat.C:
			if err := sse.sendHeartbeat(); err != nil {
				return
			}
		case _, ok := <-changes:
			if !ok {
				return
			}
			debounced(func() {
				select {
				case refresh <- struct{}{}:
				default:
				}
			})
		case <-refresh:
			if known, err = sendAll(known); err != nil {
				return
			}
		}
	}
}
