package frametree

import (
	"context"
	"iter"
	"sync"

	"github.com/google/uuid"
	goutils "go.viam.com/utils"

	"github.com/geekmug/posed/spatialmath"
)

// Change is a committed mutation of the frame forest.
type Change interface {
	isChange()
}

// Created reports the creation or update of a frame. An update of a frame
// produces one Created per affected frame (the target and every descendant,
// in pre-order), since all of their absolute placements may have moved.
type Created struct {
	Frame *Frame
}

func (Created) isChange() {}

// Removed reports the removal of a frame.
type Removed struct {
	Name string
}

func (Removed) isChange() {}

// ChangeTracking is a Tree proxy that publishes a Change stream for every
// mutation of the underlying tree.
type ChangeTracking struct {
	// mu serializes mutations with subscription seeding so that a new
	// subscriber's replayed state plus its live events are exactly the
	// commit history.
	mu       sync.Mutex
	delegate Tree
	subs     map[uuid.UUID]*subscriber
	closed   bool
}

// NewChangeTracking creates a change-tracking proxy for the given tree. The
// tree must not be mutated except through the proxy.
func NewChangeTracking(delegate Tree) *ChangeTracking {
	return &ChangeTracking{
		delegate: delegate,
		subs:     map[uuid.UUID]*subscriber{},
	}
}

// Subscribe returns a stream of changes, seeded with a synthetic Created for
// every frame currently in the forest (in pre-order) and followed by live
// changes in commit order. The stream buffers without bound while the
// consumer lags, so consumers are expected to keep up; it closes when ctx is
// canceled or the proxy is closed.
func (t *ChangeTracking) Subscribe(ctx context.Context) <-chan Change {
	t.mu.Lock()
	sub := newSubscriber()
	for f := range t.delegate.Traverse() {
		sub.publish(Created{Frame: f})
	}
	if t.closed {
		sub.finish()
	} else {
		t.subs[sub.id] = sub
	}
	t.mu.Unlock()

	goutils.PanicCapturingGo(func() {
		sub.drain(ctx, func() {
			t.mu.Lock()
			delete(t.subs, sub.id)
			t.mu.Unlock()
		})
	})
	return sub.out
}

// Close completes every subscriber stream after its pending events drain.
func (t *ChangeTracking) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	for id, sub := range t.subs {
		sub.finish()
		delete(t.subs, id)
	}
}

func (t *ChangeTracking) publishLocked(c Change) {
	for _, sub := range t.subs {
		sub.publish(c)
	}
}

func (t *ChangeTracking) emitCreatesLocked(name string) {
	for f := range t.delegate.TraverseFrom(name) {
		t.publishLocked(Created{Frame: f})
	}
}

// CreateRoot creates a frame attached to the root with an unknown transform.
// Re-issuing it for an existing direct child of the root is a no-op and
// publishes nothing.
func (t *ChangeTracking) CreateRoot(name string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if existing := t.delegate.Get(name); existing != nil {
		if existing.Parent() != t.delegate.Snapshot().Root().Name() {
			return NewDifferentParentError(name)
		}
		return nil
	}
	if err := t.delegate.CreateRoot(name); err != nil {
		return err
	}
	t.emitCreatesLocked(name)
	return nil
}

// Create creates or updates a frame under the given parent and publishes a
// Created for every affected frame.
func (t *ChangeTracking) Create(parentName, name string, xfrm spatialmath.Transform) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.delegate.Create(parentName, name, xfrm); err != nil {
		return err
	}
	t.emitCreatesLocked(name)
	return nil
}

// CreatePose is Create with the transform derived from a pose of the child
// in the parent frame.
func (t *ChangeTracking) CreatePose(parentName, name string, pose spatialmath.Pose) error {
	return t.Create(parentName, name, pose.Transform())
}

// Remove removes a childless frame and publishes a Removed. Removing an
// absent frame is a no-op and publishes nothing.
func (t *ChangeTracking) Remove(name string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.delegate.Get(name) == nil {
		return nil
	}
	if err := t.delegate.Remove(name); err != nil {
		return err
	}
	t.publishLocked(Removed{Name: name})
	return nil
}

// Get returns the current record for a frame, or nil.
func (t *ChangeTracking) Get(name string) *Frame { return t.delegate.Get(name) }

// Snapshot captures the current state for coherent multi-step reads.
func (t *ChangeTracking) Snapshot() *Snapshot { return t.delegate.Snapshot() }

// Traverse returns a pre-order traversal of the current state.
func (t *ChangeTracking) Traverse() iter.Seq[*Frame] { return t.delegate.Traverse() }

// TraverseFrom returns a pre-order traversal rooted at the named frame.
func (t *ChangeTracking) TraverseFrom(name string) iter.Seq[*Frame] {
	return t.delegate.TraverseFrom(name)
}

// FindRoot returns the root-of-subgraph containing the named frame.
func (t *ChangeTracking) FindRoot(name string) *Frame { return t.delegate.FindRoot(name) }

// Subgraph returns a pre-order traversal of the subgraph containing the
// named frame.
func (t *ChangeTracking) Subgraph(name string) iter.Seq[*Frame] {
	return t.delegate.Subgraph(name)
}

// subscriber carries changes from the commit path to one consumer without
// ever blocking the commit path.
type subscriber struct {
	id   uuid.UUID
	mu   sync.Mutex
	wake chan struct{}
	out  chan Change

	queue []Change
	done  bool
}

func newSubscriber() *subscriber {
	return &subscriber{
		id:   uuid.New(),
		wake: make(chan struct{}, 1),
		out:  make(chan Change),
	}
}

// publish enqueues a change. Callers hold the proxy's mutex, which is what
// keeps the queue in commit order.
func (s *subscriber) publish(c Change) {
	s.mu.Lock()
	s.queue = append(s.queue, c)
	s.mu.Unlock()
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// finish marks the end of the stream; drain closes out once the queue runs
// dry.
func (s *subscriber) finish() {
	s.mu.Lock()
	s.done = true
	s.mu.Unlock()
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *subscriber) drain(ctx context.Context, unregister func()) {
	defer close(s.out)
	defer unregister()
	for {
		s.mu.Lock()
		var next Change
		switch {
		case len(s.queue) > 0:
			next = s.queue[0]
			s.queue = s.queue[1:]
		case s.done:
			s.mu.Unlock()
			return
		}
		s.mu.Unlock()

		if next == nil {
			select {
			case <-s.wake:
				continue
			case <-ctx.Done():
				return
			}
		}
		select {
		case s.out <- next:
		case <-ctx.Done():
			return
		}
	}
}
