// Package sanitize turns remote-reported file names into names that are
// safe to create in a local directory.
package sanitize

import (
	"regexp"
	"strings"
)

// fallbackName is used when nothing usable is left of a name.
const fallbackName = "download"

var (
	// Characters Windows refuses in file names, plus the path separators.
	reservedChars = regexp.MustCompile(`[<>:"/\\|?*]`)
	controlChars  = regexp.MustCompile(`[\x00-\x1f\x7f]`)
	spaceRuns     = regexp.MustCompile(`[ \t]+`)
)

// FileName returns name reduced to a single safe path element. It never
// returns "", "." or "..".
func FileName(name string) string {
	name = removeInvisibleChars(name)
	name = controlChars.ReplaceAllString(name, "")
	name = reservedChars.ReplaceAllString(name, "_")
	name = spaceRuns.ReplaceAllString(name, " ")
	name = strings.TrimSpace(name)
	// Trailing dots and spaces are dropped silently on Windows.
	name = strings.TrimRight(name, ". ")

	if name == "" || strings.Trim(name, "_") == "" {
		return fallbackName
	}
	return name
}

// removeInvisibleChars removes zero-width and other invisible Unicode characters
func removeInvisibleChars(s string) string {
	invisibleChars := []string{
		"\u200B", // Zero-width space
		"\u200C", // Zero-width non-joiner
		"\u200D", // Zero-width joiner
		"\uFEFF", // Zero-width no-break space (BOM)
		"\u00AD", // Soft hyphen
		"\u2060", // Word joiner
		"\u180E", // Mongolian vowel separator
	}

	for _, char := range invisibleChars {
		s = strings.ReplaceAll(s, char, "")
	}

	return s
}
