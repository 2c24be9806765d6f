package entities

import (
	"time"

	"graphstore/domain/core/valueobjects"
)

// Node is a typed vertex of the graph. Every domain concept (users, news
// items, ontology concepts, resonance events) is stored as a Node.
type Node struct {
	ID          string                `json:"id"`
	TypeID      string                `json:"typeId"`
	State       string                `json:"state"`
	Locale      string                `json:"locale"`
	Title       string                `json:"title"`
	Description string                `json:"description"`
	Content     *valueobjects.Content `json:"content,omitempty"`
	Meta        valueobjects.Meta     `json:"meta,omitempty"`

	// Stamped by the repository.
	Version   int64     `json:"version"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Clone returns a deep copy, so stored records never alias caller memory.
func (n *Node) Clone() *Node {
	if n == nil {
		return nil
	}
	out := *n
	out.Content = n.Content.Clone()
	out.Meta = n.Meta.Clone()
	return &out
}

// Normalized returns a clone with content and meta compacted.
func (n *Node) Normalized() (*Node, error) {
	out := n.Clone()
	content, err := n.Content.Normalize()
	if err != nil {
		return nil, err
	}
	meta, err := n.Meta.Normalize()
	if err != nil {
		return nil, err
	}
	out.Content = content
	out.Meta = meta
	return out, nil
}

// Stamp sets the repository-owned fields for a write at now. prev is the
// record being replaced, or nil on first insert.
func (n *Node) Stamp(prev *Node, now time.Time) {
	if prev == nil {
		n.Version = 1
		n.CreatedAt = now
	} else {
		n.Version = prev.Version + 1
		n.CreatedAt = prev.CreatedAt
	}
	n.UpdatedAt = now
}
