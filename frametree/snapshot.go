package frametree

import (
	"iter"

	"github.com/geekmug/posed/spatialmath"
)

// Snapshot is an immutable view of the frame forest. All reads against a
// snapshot are coherent with each other regardless of concurrent writes to
// the tree it was taken from.
type Snapshot struct {
	root     *Frame
	frames   map[string]*Frame
	children map[string][]string
}

// Root returns the root (body) frame.
func (s *Snapshot) Root() *Frame { return s.root }

// Get returns the frame with the given name, or nil.
func (s *Snapshot) Get(name string) *Frame {
	return s.frames[name]
}

// Len returns the number of frames, including the root.
func (s *Snapshot) Len() int { return len(s.frames) }

// Traverse returns a depth-first, pre-order traversal of the whole forest.
func (s *Snapshot) Traverse() iter.Seq[*Frame] {
	return s.TraverseFrom(s.root.name)
}

// TraverseFrom returns a depth-first, pre-order traversal rooted at the
// named frame. An unknown name yields an empty sequence. The sequence is
// restartable: each range re-walks the same snapshot.
func (s *Snapshot) TraverseFrom(name string) iter.Seq[*Frame] {
	return func(yield func(*Frame) bool) {
		start := s.frames[name]
		if start == nil {
			return
		}
		stack := []*Frame{start}
		for len(stack) > 0 {
			f := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if !yield(f) {
				return
			}
			kids := s.children[f.name]
			for i := len(kids) - 1; i >= 0; i-- {
				stack = append(stack, s.frames[kids[i]])
			}
		}
	}
}

// FindRoot returns the root-of-subgraph containing the named frame: the
// ancestor that is a direct child of the root frame, or the root frame
// itself. Returns nil if the frame does not exist.
func (s *Snapshot) FindRoot(name string) *Frame {
	f := s.frames[name]
	if f == nil || f.IsRoot() {
		return f
	}
	for f.parent != s.root.name {
		f = s.frames[f.parent]
	}
	return f
}

// Subgraph returns a depth-first, pre-order traversal of the subgraph
// containing the named frame, rooted at its root-of-subgraph.
func (s *Snapshot) Subgraph(name string) iter.Seq[*Frame] {
	f := s.FindRoot(name)
	if f == nil {
		return func(yield func(*Frame) bool) {}
	}
	return s.TraverseFrom(f.name)
}

// pathFromRoot returns the chain of frames from the root frame (inclusive)
// down to f (inclusive).
func (s *Snapshot) pathFromRoot(f *Frame) []*Frame {
	var rev []*Frame
	for cur := f; cur != nil; cur = s.frames[cur.parent] {
		rev = append(rev, cur)
		if cur.IsRoot() {
			break
		}
	}
	path := make([]*Frame, len(rev))
	for i, f := range rev {
		path[len(rev)-1-i] = f
	}
	return path
}

// transformFromAncestor composes the transform taking coordinates in
// path[0] into coordinates in path[len-1], where path descends the tree.
func transformFromAncestor(path []*Frame) (spatialmath.Transform, error) {
	xfrm := spatialmath.NewZeroTransform()
	for _, f := range path[1:] {
		step, err := f.TransformFromParent()
		if err != nil {
			return spatialmath.Transform{}, err
		}
		xfrm = xfrm.Compose(step)
	}
	return xfrm, nil
}

// TransformTo returns the transform taking coordinates in the src frame into
// coordinates in the dst frame. The composition walks only as far as the
// least common ancestor of the two frames; it crosses the root frame (and
// so requires both subgraphs to be geolocated) only when src and dst live in
// different subgraphs.
func (s *Snapshot) TransformTo(src, dst string) (spatialmath.Transform, error) {
	srcFrame := s.frames[src]
	if srcFrame == nil {
		return spatialmath.Transform{}, NewFrameNotFoundError(src)
	}
	dstFrame := s.frames[dst]
	if dstFrame == nil {
		return spatialmath.Transform{}, NewFrameNotFoundError(dst)
	}

	srcPath := s.pathFromRoot(srcFrame)
	dstPath := s.pathFromRoot(dstFrame)
	lca := 0
	for lca+1 < len(srcPath) && lca+1 < len(dstPath) &&
		srcPath[lca+1] == dstPath[lca+1] {
		lca++
	}

	toSrc, err := transformFromAncestor(srcPath[lca:])
	if err != nil {
		return spatialmath.Transform{}, err
	}
	toDst, err := transformFromAncestor(dstPath[lca:])
	if err != nil {
		return spatialmath.Transform{}, err
	}
	return toSrc.Inverse().Compose(toDst), nil
}
