package strings

import (
	"strings"
)

// DefaultBodyMaxLen is the maximum length of an upstream response body quoted
// in error messages.
const DefaultBodyMaxLen = 256

// DefaultIDPrefixLen is how many characters of a state token or session key
// are kept when it is written to a log line.
const DefaultIDPrefixLen = 8

// minTruncateLen leaves room for at least one character plus "...".
const minTruncateLen = 4

// TruncateBody collapses whitespace in s to single spaces and cuts it to maxLen
// runes, appending "..." when anything was removed. It is used to quote
// response bodies in errors without dumping whole HTML pages into logs.
func TruncateBody(s string, maxLen int) string {
	if maxLen < minTruncateLen {
		maxLen = minTruncateLen
	}

	s = strings.Join(strings.Fields(s), " ")

	runes := []rune(s)
	if len(runes) > maxLen {
		return string(runes[:maxLen-3]) + "..."
	}
	return s
}

// TruncateID returns the first DefaultIDPrefixLen characters of id followed by
// "...". Identifiers that are already short are returned unchanged.
func TruncateID(id string) string {
	if len(id) <= DefaultIDPrefixLen {
		return id
	}
	return id[:DefaultIDPrefixLen] + "..."
}
