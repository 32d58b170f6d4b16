package utils

import (
	"crypto/md5"
	"encoding/hex"
	"strings"
	"unicode/utf8"
)

// CleanToValidUTF8 strips invalid UTF-8 sequences from scraped text.
func CleanToValidUTF8(s string) string {
	if utf8.ValidString(s) {
		return s
	}
	return strings.ToValidUTF8(s, "")
}

// ContainsString reports whether list contains s (case-insensitive).
func ContainsString(list []string, s string) bool {
	for _, item := range list {
		if strings.EqualFold(item, s) {
			return true
		}
	}
	return false
}

// HashString returns the hex md5 digest of s, used as a cache key.
func HashString(s string) string {
	sum := md5.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}

// Truncate shortens s to at most n runes, appending an ellipsis when cut.
func Truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}
