package valueobjects

import (
	"encoding/json"
	"fmt"
)

// Content is a node's typed payload: an inline JSON value, an external
// reference, or both, tagged with a media type.
type Content struct {
	MediaType string          `json:"mediaType,omitempty"`
	Inline    json.RawMessage `json:"inline,omitempty"`
	Ref       string          `json:"ref,omitempty"`
}

// IsEmpty reports whether the content carries neither a value nor a reference.
func (c *Content) IsEmpty() bool {
	return c == nil || (c.MediaType == "" && len(c.Inline) == 0 && c.Ref == "")
}

// Normalize returns a copy with Inline compacted.
func (c *Content) Normalize() (*Content, error) {
	if c == nil {
		return nil, nil
	}
	out := &Content{MediaType: c.MediaType, Ref: c.Ref}
	if len(c.Inline) > 0 {
		inline, err := compactJSON(c.Inline)
		if err != nil {
			return nil, fmt.Errorf("content inline: %w", err)
		}
		out.Inline = inline
	}
	return out, nil
}

// Clone deep-copies the content.
func (c *Content) Clone() *Content {
	if c == nil {
		return nil
	}
	out := *c
	if c.Inline != nil {
		out.Inline = append(json.RawMessage(nil), c.Inline...)
	}
	return &out
}
