package extract

import (
	"strings"
	"unicode/utf8"
)

// MinRunes accepts images and text with at least n runes after trimming.
func MinRunes(c Content, n int) bool {
	if c.IsImage() {
		return !c.Empty()
	}
	return utf8.RuneCountInString(strings.TrimSpace(c.Text())) >= n
}

// CollapseSpace joins the whitespace separated words of text content with
// single spaces. Images are returned unchanged.
func CollapseSpace(c Content) Content {
	if c.IsImage() {
		return c
	}
	return NewText(strings.Join(strings.Fields(c.Text()), " "))
}

// Category abbreviates the original content to at most 50 runes.
func Category(original string) string {
	const limit = 50
	if utf8.RuneCountInString(original) <= limit {
		return original
	}
	r := []rune(original)
	return string(r[:limit-3]) + "..."
}

// NonNil returns s, or an empty slice when s is nil.
func NonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
