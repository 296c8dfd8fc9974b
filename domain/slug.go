package domain

import (
	"strings"

	"github.com/gosimple/slug"
)

// MaxSlugLength is the longest slug a group may carry.
const MaxSlugLength = 100

// Slugify derives a URL-safe slug from a title.
//
// Non-ASCII characters are transliterated, the result is lowercased and
// every run of whitespace or punctuation becomes a single hyphen. The slug
// is cut to MaxSlugLength characters without leaving a trailing separator.
//
//	Slugify("Test Group")       // "test-group"
//	Slugify("Тестовая группа")  // "testovaia-gruppa"
//	Slugify("!!!")              // ""
func Slugify(title string) string {
	s := slug.Make(title)
	if len(s) > MaxSlugLength {
		s = strings.TrimRight(s[:MaxSlugLength], "-_")
	}
	return s
}

// IsSlug reports whether s is acceptable as an explicitly supplied slug.
func IsSlug(s string) bool {
	return len(s) <= MaxSlugLength && slug.IsSlug(s)
}
