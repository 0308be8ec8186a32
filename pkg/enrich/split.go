package enrich

import (
	"strings"
	"unicode/utf8"
)

func isBreak(r rune) bool {
	return strings.ContainsRune("。！？；，.!?;,", r)
}

// Split cuts text into segments of at most maxLen runes. Each cut is made
// after the last punctuation mark inside the window, or at the window end
// when there is none. Surrounding space and one trailing punctuation mark
// are stripped from every segment; empty segments are dropped.
func Split(text string, maxLen int) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	r := []rune(text)
	if maxLen <= 0 || len(r) <= maxLen {
		if s := trimSegment(text); s != "" {
			return []string{s}
		}
		return nil
	}

	var segs []string
	for pos := 0; pos < len(r); {
		end := min(pos+maxLen, len(r))
		if end == len(r) {
			if s := trimSegment(string(r[pos:])); s != "" {
				segs = append(segs, s)
			}
			break
		}
		cut, next := end, end
		for i := end; i > pos; i-- {
			if isBreak(r[i-1]) {
				cut, next = i-1, i
				break
			}
		}
		if s := trimSegment(string(r[pos:cut])); s != "" {
			segs = append(segs, s)
		}
		pos = next
	}
	return segs
}

func trimSegment(s string) string {
	s = strings.TrimSpace(s)
	if r, size := utf8.DecodeLastRuneInString(s); size > 0 && isBreak(r) {
		s = strings.TrimSpace(s[:len(s)-size])
	}
	return s
}
