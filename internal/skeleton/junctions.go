package skeleton

import (
	"arbor-tracer/pkg/geometry"
)

// RootInfo describes the soma: its centre and the skeleton pixels touching
// the soma boundary. It comes from nucleus detection and is taken as given.
type RootInfo struct {
	Root     geometry.Point   `json:"root"`
	Adjacent []geometry.Point `json:"adjacent"`
}

// IsAdjacent reports whether p is one of the boundary pixels.
func (r RootInfo) IsAdjacent(p geometry.Point) bool {
	for _, a := range r.Adjacent {
		if a == p {
			return true
		}
	}
	return false
}

// AdjacentSet returns the boundary pixels as a set.
func (r RootInfo) AdjacentSet() map[geometry.Point]bool {
	set := make(map[geometry.Point]bool, len(r.Adjacent))
	for _, a := range r.Adjacent {
		set[a] = true
	}
	return set
}

// JunctionSet is an insertion-ordered set of branching points.
type JunctionSet struct {
	order []geometry.Point
	set   map[geometry.Point]bool
}

// NewJunctionSet returns a set holding seed in order, without duplicates.
func NewJunctionSet(seed ...geometry.Point) *JunctionSet {
	js := &JunctionSet{set: make(map[geometry.Point]bool, len(seed))}
	for _, p := range seed {
		js.Add(p)
	}
	return js
}

// Add appends p unless it is already present.
func (js *JunctionSet) Add(p geometry.Point) {
	if js.set[p] {
		return
	}
	js.set[p] = true
	js.order = append(js.order, p)
}

// Contains reports whether p is a junction.
func (js *JunctionSet) Contains(p geometry.Point) bool {
	return js.set[p]
}

// Points returns the junctions in insertion order. The slice must not be modified.
func (js *JunctionSet) Points() []geometry.Point {
	return js.order
}

// Len returns the number of junctions.
func (js *JunctionSet) Len() int {
	return len(js.order)
}

// Set returns a membership map over the junctions. The map must not be modified.
func (js *JunctionSet) Set() map[geometry.Point]bool {
	return js.set
}
