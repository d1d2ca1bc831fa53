// Package normalize implements the single attribute-name collation rule
// used everywhere in this repository: tag keys, restriction keys, and
// policy-selected attribute names are all compared and stored under the
// same normalized form.
//
// The exact collation is otherwise unpinned; this repository fixes it to
// ASCII lowercase with whitespace stripped (see DESIGN.md).
package normalize

import (
	"strings"
	"unicode"
)

// Name normalizes an attribute name: ASCII-lowercases it and removes all
// whitespace. The result is what's used for tag keys (attr::<name>::marker)
// and for comparing restriction keys.
func Name(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		if unicode.IsSpace(r) {
			continue
		}
		if r >= 'A' && r <= 'Z' {
			r += 'a' - 'A'
		}
		b.WriteRune(r)
	}
	return b.String()
}
