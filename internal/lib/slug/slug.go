// Package slug derives the unique URL identifier of a premier from its
// numeric id and display name.
package slug

import (
	"fmt"
	"strings"
	"unicode"
)

// Placeholder returns the sentinel slug stored between the insert and the
// follow-up update of a two-phase save. The "rand:" prefix is never a valid
// public slug, so concurrent readers can filter it out.
func Placeholder(random string) string {
	return "rand:" + random
}

// IsPlaceholder reports whether the slug is still the two-phase sentinel.
func IsPlaceholder(s string) bool {
	return strings.HasPrefix(s, "rand:")
}

// Make builds the final slug "<id>-<slugified name>".
func Make(id int64, name string) string {
	return fmt.Sprintf("%d-%s", id, Slugify(name))
}

// Slugify lowercases the name and collapses every run of non-alphanumeric
// characters into a single hyphen.
func Slugify(name string) string {
	var b strings.Builder
	lastHyphen := true

	for _, r := range strings.ToLower(name) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			lastHyphen = false
		case !lastHyphen:
			b.WriteByte('-')
			lastHyphen = true
		}
	}

	return strings.TrimSuffix(b.String(), "-")
}
