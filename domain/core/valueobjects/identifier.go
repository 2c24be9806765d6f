package valueobjects

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
)

// NewNodeID returns a fresh identifier for nodes created without one.
func NewNodeID() string {
	return uuid.NewString()
}

// CheckIdentifier reports why value cannot be used as a key component,
// or "" when it can. Backends join key components with NUL, so it is
// rejected along with empty and oversized values.
func CheckIdentifier(value string, maxLen int) string {
	switch {
	case strings.TrimSpace(value) == "":
		return "is required"
	case !utf8.ValidString(value):
		return "must be valid UTF-8"
	case strings.ContainsRune(value, 0):
		return "must not contain NUL characters"
	case maxLen > 0 && len(value) > maxLen:
		return fmt.Sprintf("must be at most %d bytes", maxLen)
	}
	return ""
}
