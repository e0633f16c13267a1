package frametree

import (
	"iter"
	"maps"
	"sync"
	"sync/atomic"

	"github.com/geekmug/posed/spatialmath"
)

// Tree is a concurrently readable forest of frames. Retrieval operations
// never block and reflect the most recently completed update at their onset.
type Tree interface {
	// CreateRoot creates a frame attached to the root frame with an
	// unknown transform. Re-issuing it for an existing direct child of
	// the root is a no-op.
	CreateRoot(name string) error

	// Create creates a frame under the given parent, or replaces the
	// transform of an existing frame as long as the parent is the same.
	Create(parentName, name string, xfrm spatialmath.Transform) error

	// CreatePose is Create with the transform derived from a pose of the
	// child in the parent frame.
	CreatePose(parentName, name string, pose spatialmath.Pose) error

	// Remove removes a childless frame; removing an absent frame is a
	// no-op.
	Remove(name string) error

	// Get returns the current record for a frame, or nil.
	Get(name string) *Frame

	// Snapshot captures the current state for coherent multi-step reads.
	Snapshot() *Snapshot

	Traverse() iter.Seq[*Frame]
	TraverseFrom(name string) iter.Seq[*Frame]
	FindRoot(name string) *Frame
	Subgraph(name string) iter.Seq[*Frame]
}

// CopyOnWriteTree is a Tree whose writers rebuild the affected part of an
// immutable state and atomically publish it, so readers are wait-free.
// Writers are serialized by a single mutex.
type CopyOnWriteTree struct {
	mu    sync.Mutex
	state atomic.Pointer[Snapshot]
	gen   atomic.Uint64
}

// NewCopyOnWriteTree creates a tree containing only the given root frame.
func NewCopyOnWriteTree(rootName string) *CopyOnWriteTree {
	t := &CopyOnWriteTree{}
	root := &Frame{
		name:       rootName,
		generation: t.gen.Add(1),
		fromParent: spatialmath.NewZeroTransform(),
		known:      true,
	}
	t.state.Store(&Snapshot{
		root:     root,
		frames:   map[string]*Frame{rootName: root},
		children: map[string][]string{},
	})
	return t
}

// Snapshot returns the current state. The returned snapshot is immutable and
// may be shared freely.
func (t *CopyOnWriteTree) Snapshot() *Snapshot {
	return t.state.Load()
}

// Get returns the current record for a frame, or nil.
func (t *CopyOnWriteTree) Get(name string) *Frame {
	return t.Snapshot().Get(name)
}

// Traverse returns a pre-order traversal of the current state.
func (t *CopyOnWriteTree) Traverse() iter.Seq[*Frame] {
	return t.Snapshot().Traverse()
}

// TraverseFrom returns a pre-order traversal of the current state rooted at
// the named frame.
func (t *CopyOnWriteTree) TraverseFrom(name string) iter.Seq[*Frame] {
	return t.Snapshot().TraverseFrom(name)
}

// FindRoot returns the root-of-subgraph containing the named frame.
func (t *CopyOnWriteTree) FindRoot(name string) *Frame {
	return t.Snapshot().FindRoot(name)
}

// Subgraph returns a pre-order traversal of the subgraph containing the
// named frame.
func (t *CopyOnWriteTree) Subgraph(name string) iter.Seq[*Frame] {
	return t.Snapshot().Subgraph(name)
}

// CreateRoot creates a frame attached to the root with an unknown transform.
func (t *CopyOnWriteTree) CreateRoot(name string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	s := t.state.Load()
	if existing := s.frames[name]; existing != nil {
		if existing.parent != s.root.name {
			return NewDifferentParentError(name)
		}
		return nil
	}
	return t.createLocked(s, s.root.name, name, spatialmath.Transform{}, false)
}

// Create creates a frame under the given parent, or replaces the transform
// of an existing frame as long as the parent is the same. Replacing a
// transform refreshes the record identity of the frame and every descendant.
func (t *CopyOnWriteTree) Create(parentName, name string, xfrm spatialmath.Transform) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.createLocked(t.state.Load(), parentName, name, xfrm, true)
}

// CreatePose is Create with the transform derived from a pose of the child
// in the parent frame.
func (t *CopyOnWriteTree) CreatePose(parentName, name string, pose spatialmath.Pose) error {
	return t.Create(parentName, name, pose.Transform())
}

func (t *CopyOnWriteTree) createLocked(
	s *Snapshot, parentName, name string, xfrm spatialmath.Transform, known bool,
) error {
	if name == "" || parentName == "" {
		return errEmptyName
	}
	if name == s.root.name {
		return NewReservedNameError(name)
	}
	parent := s.frames[parentName]
	if parent == nil {
		return NewParentMissingError(parentName)
	}
	existing := s.frames[name]
	if existing != nil && existing.parent != parentName {
		return NewDifferentParentError(name)
	}

	frames := maps.Clone(s.frames)
	children := s.children
	if existing == nil {
		children = maps.Clone(s.children)
		kids := s.children[parentName]
		children[parentName] = append(kids[:len(kids):len(kids)], name)
		frames[name] = &Frame{
			name:       name,
			parent:     parentName,
			generation: t.gen.Add(1),
			fromParent: xfrm,
			known:      known,
		}
	} else {
		// Refresh the whole subtree so cached records read as stale.
		for f := range s.TraverseFrom(name) {
			fresh := &Frame{
				name:       f.name,
				parent:     f.parent,
				generation: t.gen.Add(1),
				fromParent: f.fromParent,
				known:      f.known,
			}
			if f == existing {
				fresh.fromParent = xfrm
				fresh.known = known
			}
			frames[f.name] = fresh
		}
	}
	t.state.Store(&Snapshot{root: s.root, frames: frames, children: children})
	return nil
}

// Remove removes a childless frame; removing an absent frame is a no-op.
func (t *CopyOnWriteTree) Remove(name string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	s := t.state.Load()
	frame := s.frames[name]
	if frame == nil {
		return nil
	}
	if frame.IsRoot() {
		return NewReservedNameError(name)
	}
	if len(s.children[name]) > 0 {
		return NewHasChildrenError(name)
	}

	frames := maps.Clone(s.frames)
	delete(frames, name)
	children := maps.Clone(s.children)
	delete(children, name)
	siblings := s.children[frame.parent]
	pruned := make([]string, 0, len(siblings)-1)
	for _, sibling := range siblings {
		if sibling != name {
			pruned = append(pruned, sibling)
		}
	}
	children[frame.parent] = pruned

	t.state.Store(&Snapshot{root: s.root, frames: frames, children: children})
	return nil
}
