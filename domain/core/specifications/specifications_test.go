package specifications

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"graphstore/domain/core/entities"
)

func TestNodeSpec(t *testing.T) {
	node := &entities.Node{
		ID:          "n1",
		TypeID:      "codex.concept",
		State:       "ice",
		Locale:      "en",
		Title:       "Frozen Lake",
		Description: "A still surface",
	}

	tests := []struct {
		name string
		spec NodeSpec
		want bool
	}{
		{name: "empty matches", spec: NodeSpec{}, want: true},
		{name: "type", spec: NodeSpec{TypeID: "codex.concept"}, want: true},
		{name: "other type", spec: NodeSpec{TypeID: "codex.user"}, want: false},
		{name: "state and locale", spec: NodeSpec{State: "ice", Locale: "en"}, want: true},
		{name: "locale mismatch", spec: NodeSpec{State: "ice", Locale: "fr"}, want: false},
		{name: "title search is case insensitive", spec: NodeSpec{SearchTerm: "LAKE"}, want: true},
		{name: "description search", spec: NodeSpec{SearchTerm: "still"}, want: true},
		{name: "search miss", spec: NodeSpec{SearchTerm: "river"}, want: false},
		{name: "whitespace term ignored", spec: NodeSpec{SearchTerm: "   "}, want: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.spec.IsSatisfiedBy(node))
		})
	}

	assert.False(t, NodeSpec{}.IsSatisfiedBy(nil))
	assert.True(t, NodeSpec{SearchTerm: " "}.IsEmpty())
}

func TestEdgeSpec(t *testing.T) {
	edge := &entities.Edge{FromID: "a", ToID: "b", Role: "rel"}

	tests := []struct {
		name string
		spec EdgeSpec
		want bool
	}{
		{name: "empty", spec: EdgeSpec{}, want: true},
		{name: "role", spec: EdgeSpec{Role: "rel"}, want: true},
		{name: "from", spec: EdgeSpec{FromID: "a"}, want: true},
		{name: "to mismatch", spec: EdgeSpec{ToID: "a"}, want: false},
		{name: "node matches source", spec: EdgeSpec{NodeID: "a"}, want: true},
		{name: "node matches target", spec: EdgeSpec{NodeID: "b"}, want: true},
		{name: "node unrelated", spec: EdgeSpec{NodeID: "c"}, want: false},
		{name: "conjunction", spec: EdgeSpec{NodeID: "b", Role: "other"}, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.spec.IsSatisfiedBy(edge))
		})
	}
	assert.True(t, EdgeSpec{}.IsEmpty())
}
