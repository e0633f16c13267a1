// Package frametree maintains a mutable forest of named rigid frames rooted
// at an Earth-fixed body frame, with copy-on-write snapshots for readers and
// change tracking for subscribers.
package frametree

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/geekmug/posed/spatialmath"
)

// ErrUnknownTransform reports that a transform chain crosses a link whose
// transform has not been established (a subgraph root that has not been
// geolocated yet).
var ErrUnknownTransform = errors.New("unknown transform in frame chain")

var errEmptyName = errors.New("frame names must be non-empty")

// NewParentMissingError returns an error for a create whose parent frame does
// not exist.
func NewParentMissingError(parent string) error {
	return errors.Errorf("parent frame %q is not defined", parent)
}

// NewDifferentParentError returns an error for re-creating a frame under a
// different parent; a frame's parent is immutable.
func NewDifferentParentError(name string) error {
	return errors.Errorf("frame %q exists with a different parent", name)
}

// NewHasChildrenError returns an error for removing a frame that is still a
// parent to other frames.
func NewHasChildrenError(name string) error {
	return errors.Errorf("unable to remove frame %q while it is a parent to other frames", name)
}

// NewReservedNameError returns an error for using the root frame's name.
func NewReservedNameError(name string) error {
	return errors.Errorf("frame name %q is reserved for the root frame", name)
}

// NewFrameNotFoundError returns an error for an operation on a frame that
// does not exist.
func NewFrameNotFoundError(name string) error {
	return errors.Errorf("frame %q does not exist", name)
}

// Frame is an immutable record of a node in the frame forest. Every write
// that moves a frame (directly or through an ancestor) publishes a record
// with a fresh generation, so holders of a stale record can detect that the
// frame's absolute placement may have changed.
type Frame struct {
	name       string
	parent     string
	generation uint64
	fromParent spatialmath.Transform
	known      bool
}

// Name returns the frame's unique name.
func (f *Frame) Name() string { return f.name }

// Parent returns the name of the frame's parent, or the empty string for the
// root frame.
func (f *Frame) Parent() string { return f.parent }

// Generation returns the record's identity stamp. Two records with the same
// name but different generations belong to different committed states.
func (f *Frame) Generation() uint64 { return f.generation }

// IsRoot reports whether this is the forest's root (body) frame.
func (f *Frame) IsRoot() bool { return f.parent == "" }

// Known reports whether the transform to the parent has been established.
func (f *Frame) Known() bool { return f.known }

// TransformFromParent returns the transform taking parent coordinates into
// this frame, or ErrUnknownTransform for an ungeolocated subgraph root.
func (f *Frame) TransformFromParent() (spatialmath.Transform, error) {
	if !f.known {
		return spatialmath.Transform{}, ErrUnknownTransform
	}
	return f.fromParent, nil
}

func (f *Frame) String() string {
	if !f.known {
		return fmt.Sprintf("Frame(%q<-%q, unknown)", f.name, f.parent)
	}
	return fmt.Sprintf("Frame(%q<-%q)", f.name, f.parent)
}
