package stream

import "strings"

const punctuation = ".,!?;:"

// Format returns the displayed form of an accumulated buffer: a space is inserted before the first
// punctuation character of the buffer, unless that character already follows a space. Only the
// first occurrence is considered, so later punctuation is left as received.
func Format(buffer string) string {
	idx := strings.IndexAny(buffer, punctuation)
	if idx == -1 {
		return buffer
	}
	if idx > 0 && buffer[idx-1] == ' ' {
		return buffer
	}
	return buffer[:idx] + " " + buffer[idx:]
}
