package utils

import (
	"regexp"
	"strings"
)

var iframeSrcPattern = regexp.MustCompile(`(?i)<iframe[^>]*\ssrc\s*=\s*["']([^"']+)["']`)

// NormalizeMapEmbedURL accepts either a bare URL or a pasted <iframe> snippet
// and returns the URL to store.
func NormalizeMapEmbedURL(input string) string {
	input = strings.TrimSpace(input)
	if input == "" {
		return ""
	}
	if m := iframeSrcPattern.FindStringSubmatch(input); m != nil {
		return strings.TrimSpace(m[1])
	}
	if strings.Contains(strings.ToLower(input), "<iframe") {
		return ""
	}
	return input
}
