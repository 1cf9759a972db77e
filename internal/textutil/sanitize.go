package textutil

import "strings"

// maxSegmentLength caps each path segment for cross-platform safety.
const maxSegmentLength = 200

// SanitizeSegment replaces filesystem-unsafe characters in a path segment
// with underscores and truncates the result to 200 characters. Control
// characters (0x00-0x1f, 0x7f-0x9f) are treated as unsafe.
func SanitizeSegment(segment string) string {
	var b strings.Builder
	b.Grow(len(segment))
	for _, r := range segment {
		switch {
		case r < 0x20 || (r >= 0x7f && r <= 0x9f):
			b.WriteByte('_')
		case strings.ContainsRune(`<>:"/\|?*`, r):
			b.WriteByte('_')
		default:
			b.WriteRune(r)
		}
	}
	return TruncateRunes(b.String(), maxSegmentLength)
}

// TruncateRunes cuts s to at most n runes, never splitting a multi-byte
// character.
func TruncateRunes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
