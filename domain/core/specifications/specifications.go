// Package specifications holds the predicates used to scan and count
// stored records.
package specifications

import (
	"strings"

	"graphstore/domain/core/entities"
)

// NodeSpec is a conjunctive node filter. Empty fields do not constrain.
type NodeSpec struct {
	TypeID     string
	State      string
	Locale     string
	SearchTerm string
}

// Term returns the normalized search term; whitespace-only means none.
func (s NodeSpec) Term() string {
	return strings.ToLower(strings.TrimSpace(s.SearchTerm))
}

// IsSatisfiedBy reports whether node matches every set field. The search
// term is a case-insensitive substring of Title or Description.
func (s NodeSpec) IsSatisfiedBy(node *entities.Node) bool {
	if node == nil {
		return false
	}
	if s.TypeID != "" && node.TypeID != s.TypeID {
		return false
	}
	if s.State != "" && node.State != s.State {
		return false
	}
	if s.Locale != "" && node.Locale != s.Locale {
		return false
	}
	if term := s.Term(); term != "" {
		return strings.Contains(strings.ToLower(node.Title), term) ||
			strings.Contains(strings.ToLower(node.Description), term)
	}
	return true
}

// IsEmpty reports whether the spec matches every node.
func (s NodeSpec) IsEmpty() bool {
	return s.TypeID == "" && s.State == "" && s.Locale == "" && s.Term() == ""
}

// EdgeSpec is a conjunctive edge filter. NodeID matches either endpoint.
type EdgeSpec struct {
	Role   string
	FromID string
	ToID   string
	NodeID string
}

func (s EdgeSpec) IsSatisfiedBy(edge *entities.Edge) bool {
	if edge == nil {
		return false
	}
	if s.Role != "" && edge.Role != s.Role {
		return false
	}
	if s.FromID != "" && edge.FromID != s.FromID {
		return false
	}
	if s.ToID != "" && edge.ToID != s.ToID {
		return false
	}
	if s.NodeID != "" && !edge.Touches(s.NodeID) {
		return false
	}
	return true
}

func (s EdgeSpec) IsEmpty() bool {
	return s.Role == "" && s.FromID == "" && s.ToID == "" && s.NodeID == ""
}
