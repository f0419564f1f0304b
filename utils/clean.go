package utils

import (
	"strings"
)

// SafeTitle makes a novel title usable as a single path segment.
func SafeTitle(input string) string {
	return strings.NewReplacer("/", "_", "\\", "_").Replace(input)
}

// AbsUrl resolves protocol-relative and host-relative hrefs against base,
// which must be a scheme+host without trailing slash.
func AbsUrl(href, base string) string {
	switch {
	case strings.HasPrefix(href, "//"):
		return "https:" + href
	case strings.HasPrefix(href, "/"):
		return base + href
	default:
		return href
	}
}
