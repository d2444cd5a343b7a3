// Package text formats counts and labels for terminal output.
package text

import "strconv"

// Pluralize returns word for a count of one and word+"s" otherwise.
// Example: Pluralize("file", 1) returns "file", Pluralize("file", 2) returns "files"
func Pluralize(word string, count int) string {
	if count == 1 {
		return word
	}
	return word + "s"
}

// Count joins count and the matching form of word: "1 file", "0 files".
func Count(count int, word string) string {
	return strconv.Itoa(count) + " " + Pluralize(word, count)
}
