package posed

import (
	"context"
	"iter"
	"sync"

	"github.com/edaniels/golog"
	"github.com/prometheus/client_golang/prometheus"
	goutils "go.viam.com/utils"

	"github.com/geekmug/posed/frametree"
	"github.com/geekmug/posed/geodesy"
	"github.com/geekmug/posed/spatialmath"
)

// PoseService manages a forest of frames anchored to a reference ellipsoid
// and answers conversions between frames and geodetic coordinates.
//
// Mutations are serialized; queries run against copy-on-write snapshots and
// never block. Queries that cannot be answered (absent frame, a chain that
// crosses an ungeolocated subgraph root, or a degenerate geodetic
// conversion) return nil rather than an error.
type PoseService struct {
	logger    golog.Logger
	ellipsoid geodesy.Ellipsoid
	tree      *frametree.ChangeTracking
	rootName  string
	metrics   *serviceMetrics

	signalsMu sync.Mutex
	signals   map[string]*frameSignal

	cancel                  context.CancelFunc
	closeOnce               sync.Once
	closed                  chan struct{}
	activeBackgroundWorkers sync.WaitGroup
}

// Option configures a PoseService.
type Option func(*PoseService)

// WithMetrics registers the service's Prometheus metrics against the given
// registerer.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(s *PoseService) {
		s.metrics = newServiceMetrics(reg)
	}
}

// NewPoseService creates a pose service with a given geodetic body.
func NewPoseService(ellipsoid geodesy.Ellipsoid, logger golog.Logger, opts ...Option) *PoseService {
	s := &PoseService{
		logger:    logger,
		ellipsoid: ellipsoid,
		rootName:  ellipsoid.BodyFrameName(),
		signals:   map[string]*frameSignal{},
		closed:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.tree = frametree.NewChangeTracking(frametree.NewCopyOnWriteTree(s.rootName))

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	changes := s.tree.Subscribe(ctx)
	s.activeBackgroundWorkers.Add(1)
	goutils.ManagedGo(func() {
		s.handleChanges(changes)
	}, s.activeBackgroundWorkers.Done)
	return s
}

// handleChanges pumps committed tree changes into the per-frame signals.
func (s *PoseService) handleChanges(changes <-chan frametree.Change) {
	for change := range changes {
		switch c := change.(type) {
		case frametree.Created:
			s.tickSignal(c.Frame.Name())
		case frametree.Removed:
			s.completeSignal(c.Name)
		}
	}
}

// Close shuts the service down: the change bus completes every subscriber,
// all conversion streams terminate, and background workers drain.
func (s *PoseService) Close() error {
	s.closeOnce.Do(func() {
		close(s.closed)
		s.tree.Close()
		s.cancel()
		s.activeBackgroundWorkers.Wait()
	})
	return nil
}

// Ellipsoid returns the reference ellipsoid for this pose service.
func (s *PoseService) Ellipsoid() geodesy.Ellipsoid {
	return s.ellipsoid
}

// BodyFrameName returns the name of the root (ECEF) frame.
func (s *PoseService) BodyFrameName() string {
	return s.rootName
}

func (s *PoseService) frameCount() int {
	return s.tree.Snapshot().Len() - 1
}

// CreateRoot creates a new frame attached to the root frame with an unknown
// transform, awaiting geolocation. Re-issuing it for an existing direct
// child of the root is a no-op.
func (s *PoseService) CreateRoot(name string) error {
	if err := s.tree.CreateRoot(name); err != nil {
		return err
	}
	s.logger.Debugw("created subgraph root", "name", name)
	s.metrics.incOperation("create_root")
	s.metrics.setFrames(s.frameCount())
	return nil
}

// Create creates (or updates) a frame attached to a given parent at the
// given pose. If the frame already exists with the same parent, its
// transform is replaced and the frame and all of its descendants take new
// identities.
func (s *PoseService) Create(parentName, name string, pose spatialmath.Pose) error {
	if err := s.tree.CreatePose(parentName, name, pose); err != nil {
		return err
	}
	s.metrics.incOperation("create")
	s.metrics.setFrames(s.frameCount())
	return nil
}

// CreateTransform is Create with an explicit transform from the parent
// frame, as reconstructed by persistence.
func (s *PoseService) CreateTransform(parentName, name string, xfrm spatialmath.Transform) error {
	if err := s.tree.Create(parentName, name, xfrm); err != nil {
		return err
	}
	s.metrics.incOperation("create")
	s.metrics.setFrames(s.frameCount())
	return nil
}

// Remove removes a frame from the forest if present. Removing a frame that
// is currently a parent to other frames is an error.
func (s *PoseService) Remove(name string) error {
	if err := s.tree.Remove(name); err != nil {
		return err
	}
	s.logger.Debugw("removed frame", "name", name)
	s.metrics.incOperation("remove")
	s.metrics.setFrames(s.frameCount())
	return nil
}

// Update geolocates the given frame. The update is applied to the frame
// attached to the root of the frame's subgraph: every transform inside the
// subgraph is preserved, so the whole subgraph moves rigidly until the named
// frame lands at the given geodetic pose.
func (s *PoseService) Update(name string, geopose geodesy.GeodeticPose) error {
	snapshot := s.tree.Snapshot()
	frame := snapshot.Get(name)
	if frame == nil {
		return frametree.NewFrameNotFoundError(name)
	}

	xfrm := MakeTransform(s.ellipsoid, geopose)
	target := name
	if frame.Parent() != s.rootName {
		// Rebuild the body-to-subgraph-root transform without the
		// existing (to be replaced) transform on that link.
		subRoot := snapshot.FindRoot(name)
		frameToSubRoot, err := snapshot.TransformTo(name, subRoot.Name())
		if err != nil {
			return err
		}
		xfrm = xfrm.Compose(frameToSubRoot)
		target = subRoot.Name()
	}
	if err := s.tree.Create(s.rootName, target, xfrm); err != nil {
		return err
	}
	s.logger.Debugw("geolocated subgraph", "name", name, "root", target, "geopose", geopose.String())
	s.metrics.incOperation("update")
	return nil
}

// Snapshot captures the current forest for coherent multi-step reads.
func (s *PoseService) Snapshot() *frametree.Snapshot {
	return s.tree.Snapshot()
}

// Get returns the current record for a frame, or nil.
func (s *PoseService) Get(name string) *frametree.Frame {
	return s.tree.Get(name)
}

// Traverse returns a depth-first, pre-order traversal of the whole forest.
func (s *PoseService) Traverse() iter.Seq[*frametree.Frame] {
	return s.tree.Traverse()
}

// TraverseFrom returns a depth-first, pre-order traversal from a given root.
func (s *PoseService) TraverseFrom(name string) iter.Seq[*frametree.Frame] {
	return s.tree.TraverseFrom(name)
}

// Subgraph returns a depth-first, pre-order traversal of the subgraph
// containing the named frame, rooted at its root-of-subgraph.
func (s *PoseService) Subgraph(name string) iter.Seq[*frametree.Frame] {
	return s.tree.Subgraph(name)
}

// Changes returns a stream of forest changes, seeded with a Created for
// every current frame. See frametree.ChangeTracking.Subscribe for the
// buffering policy.
func (s *PoseService) Changes(ctx context.Context) <-chan frametree.Change {
	return s.tree.Subscribe(ctx)
}

// Convert returns the geodetic pose of a pose expressed in the named frame,
// or nil when the frame does not exist or its chain to the body frame is
// not established.
func (s *PoseService) Convert(name string, pose spatialmath.Pose) *geodesy.GeodeticPose {
	snapshot := s.tree.Snapshot()
	if snapshot.Get(name) == nil {
		return nil
	}
	frameToECEF, err := snapshot.TransformTo(name, s.rootName)
	if err != nil {
		return nil
	}
	poseToECEF := pose.Transform().Inverse().Compose(frameToECEF)
	geopose, err := geodeticPoseFromECEFTransform(s.ellipsoid, poseToECEF)
	if err != nil {
		return nil
	}
	return &geopose
}

// ConvertGeodetic returns the pose, expressed in the named frame, of a
// geodetic pose, or nil when the frame does not exist or its chain to the
// body frame is not established.
func (s *PoseService) ConvertGeodetic(name string, geopose geodesy.GeodeticPose) *spatialmath.Pose {
	snapshot := s.tree.Snapshot()
	if snapshot.Get(name) == nil {
		return nil
	}
	frameToECEF, err := snapshot.TransformTo(name, s.rootName)
	if err != nil {
		return nil
	}
	geoToFrame := MakeTransform(s.ellipsoid, geopose).Inverse().Compose(frameToECEF.Inverse())
	result := spatialmath.PoseFromTransform(geoToFrame)
	return &result
}

// Transform returns the apparent pose in a destination frame for a pose in a
// source frame, or nil when either frame is absent or the chain between
// them is not established.
func (s *PoseService) Transform(src, dst string, pose spatialmath.Pose) *spatialmath.Pose {
	srcToDst, err := s.tree.Snapshot().TransformTo(src, dst)
	if err != nil {
		return nil
	}
	poseToDst := pose.Transform().Inverse().Compose(srcToDst)
	result := spatialmath.PoseFromTransform(poseToDst)
	return &result
}

// ConvertStream returns a stream that emits the current value of
// Convert(name, pose) and re-emits it whenever the named frame (or any of
// its ancestors) moves. Bursts coalesce to the latest placement. The stream
// completes when the frame is removed or ctx is canceled.
func (s *PoseService) ConvertStream(
	ctx context.Context, name string, pose spatialmath.Pose,
) <-chan *geodesy.GeodeticPose {
	return streamOn(ctx, s, []string{name}, func() *geodesy.GeodeticPose {
		return s.Convert(name, pose)
	})
}

// ConvertGeodeticStream is ConvertStream for ConvertGeodetic.
func (s *PoseService) ConvertGeodeticStream(
	ctx context.Context, name string, geopose geodesy.GeodeticPose,
) <-chan *spatialmath.Pose {
	return streamOn(ctx, s, []string{name}, func() *spatialmath.Pose {
		return s.ConvertGeodetic(name, geopose)
	})
}

// TransformStream returns a stream that emits the current value of
// Transform(src, dst, pose) and re-emits it whenever either endpoint moves.
// The stream completes as soon as either frame is removed, or when ctx is
// canceled.
func (s *PoseService) TransformStream(
	ctx context.Context, src, dst string, pose spatialmath.Pose,
) <-chan *spatialmath.Pose {
	return streamOn(ctx, s, []string{src, dst}, func() *spatialmath.Pose {
		return s.Transform(src, dst, pose)
	})
}

// streamOn emits eval() once immediately and then again for every tick of
// any of the named frames' signals, completing when any signal completes
// (early exit), the service closes, or ctx is canceled.
func streamOn[T any](
	ctx context.Context, s *PoseService, names []string, eval func() *T,
) <-chan *T {
	out := make(chan *T)
	s.activeBackgroundWorkers.Add(1)
	goutils.ManagedGo(func() {
		defer close(out)

		sigs := make([]*frameSignal, len(names))
		waiters := make([]chan struct{}, len(names))
		lastSeen := make([]uint64, len(names))
		for i, name := range names {
			sigs[i] = s.acquireSignal(name)
			waiters[i] = sigs[i].addWaiter()
			defer s.releaseSignal(sigs[i])
			defer sigs[i].removeWaiter(waiters[i])
		}

		if !emit(ctx, s, out, eval()) {
			return
		}
		for {
			advanced, completed := false, false
			for i, sig := range sigs {
				seq, done := sig.state()
				if seq > lastSeen[i] {
					lastSeen[i] = seq
					advanced = true
				}
				completed = completed || done
			}
			if advanced {
				if !emit(ctx, s, out, eval()) {
					return
				}
				continue
			}
			if completed {
				return
			}
			if !waitAny(ctx, s, waiters) {
				return
			}
		}
	}, s.activeBackgroundWorkers.Done)
	return out
}

func emit[T any](ctx context.Context, s *PoseService, out chan<- *T, v *T) bool {
	select {
	case out <- v:
		return true
	case <-ctx.Done():
		return false
	case <-s.closed:
		return false
	}
}

func waitAny(ctx context.Context, s *PoseService, waiters []chan struct{}) bool {
	switch len(waiters) {
	case 1:
		select {
		case <-waiters[0]:
			return true
		case <-ctx.Done():
			return false
		case <-s.closed:
			return false
		}
	default:
		select {
		case <-waiters[0]:
			return true
		case <-waiters[1]:
			return true
		case <-ctx.Done():
			return false
		case <-s.closed:
			return false
		}
	}
}
