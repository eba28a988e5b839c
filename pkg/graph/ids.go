package graph

import "math"

// NodeID is a dense node identifier in [0, N).
type NodeID = uint32

// EdgeID is a dense index into a Facade's edge array, in [0, M).
type EdgeID = uint32

// SpecialNodeID is the sentinel for "no node".
const SpecialNodeID NodeID = math.MaxUint32

// SpecialEdgeID is the sentinel for "no edge".
const SpecialEdgeID EdgeID = math.MaxUint32

// Payload is a tagged union over an edge's extra data: either a reference
// to the original edge it was derived from, or — for a shortcut — the
// middle node of the two-edge path it summarizes. Exactly one of the two
// accessors is valid for a given Payload, governed by IsShortcut.
type Payload struct {
	middle   NodeID
	edge     EdgeID
	shortcut bool
}

// OriginalPayload builds the payload for a non-shortcut edge.
func OriginalPayload(edge EdgeID) Payload {
	return Payload{edge: edge}
}

// ShortcutPayload builds the payload for a shortcut edge summarizing a
// path through middle.
func ShortcutPayload(middle NodeID) Payload {
	return Payload{middle: middle, shortcut: true}
}

// IsShortcut reports whether this payload describes a shortcut edge.
func (p Payload) IsShortcut() bool { return p.shortcut }

// Middle returns the middle node of a shortcut edge. Only valid when
// IsShortcut() is true.
func (p Payload) Middle() NodeID {
	if !p.shortcut {
		panic("graph: Middle() called on non-shortcut payload")
	}
	return p.middle
}

// EdgeRef returns the original-edge identifier carried by a non-shortcut
// edge. Only valid when IsShortcut() is false.
func (p Payload) EdgeRef() EdgeID {
	if p.shortcut {
		panic("graph: EdgeRef() called on shortcut payload")
	}
	return p.edge
}
