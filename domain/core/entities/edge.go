package entities

import (
	"time"

	"graphstore/domain/core/valueobjects"
)

// Direction selects which side of a node an edge scan follows.
type Direction string

const (
	DirectionOutgoing Direction = "outgoing"
	DirectionIncoming Direction = "incoming"
	DirectionBoth     Direction = "both"
)

// EdgeKey is the identity of an edge. Writing an existing key upserts.
type EdgeKey struct {
	FromID string `json:"fromId"`
	ToID   string `json:"toId"`
	Role   string `json:"role"`
}

// Less orders keys by (FromID, ToID, Role).
func (k EdgeKey) Less(o EdgeKey) bool {
	if k.FromID != o.FromID {
		return k.FromID < o.FromID
	}
	if k.ToID != o.ToID {
		return k.ToID < o.ToID
	}
	return k.Role < o.Role
}

// Edge is a directed, labeled relationship between two nodes.
type Edge struct {
	FromID string            `json:"fromId"`
	ToID   string            `json:"toId"`
	Role   string            `json:"role"`
	Weight float64           `json:"weight"`
	Meta   valueobjects.Meta `json:"meta,omitempty"`

	// Sequence is the commit order of the key's first insert. It breaks
	// ties when a (from, to) pair carries several roles.
	Sequence  int64     `json:"-"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (e *Edge) Key() EdgeKey {
	return EdgeKey{FromID: e.FromID, ToID: e.ToID, Role: e.Role}
}

// Touches reports whether nodeID is either endpoint.
func (e *Edge) Touches(nodeID string) bool {
	return e.FromID == nodeID || e.ToID == nodeID
}

func (e *Edge) Clone() *Edge {
	if e == nil {
		return nil
	}
	out := *e
	out.Meta = e.Meta.Clone()
	return &out
}

// Normalized returns a clone with meta compacted.
func (e *Edge) Normalized() (*Edge, error) {
	out := e.Clone()
	meta, err := e.Meta.Normalize()
	if err != nil {
		return nil, err
	}
	out.Meta = meta
	return out, nil
}

// Stamp sets the repository-owned fields. seq is used only on first insert.
func (e *Edge) Stamp(prev *Edge, seq int64, now time.Time) {
	if prev == nil {
		e.Sequence = seq
		e.CreatedAt = now
	} else {
		e.Sequence = prev.Sequence
		e.CreatedAt = prev.CreatedAt
	}
	e.UpdatedAt = now
}
