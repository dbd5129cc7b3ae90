package tool

import (
	"fmt"
	"strings"
)

// Args is the open string-keyed argument map handed to a tool handler. Models
// occasionally send numbers or booleans where a string is declared, so
// accessors coerce instead of asserting.
type Args map[string]any

// String returns the argument named key rendered as a trimmed string. Missing
// or nil values yield the empty string.
func (a Args) String(key string) string {
	v, ok := a[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s)
	}
	return strings.TrimSpace(fmt.Sprint(v))
}

// Has reports whether key is present with a non-nil value.
func (a Args) Has(key string) bool {
	v, ok := a[key]
	return ok && v != nil
}
